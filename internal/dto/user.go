package dto

// LoginRequest 登录请求
type LoginRequest struct {
	Username    string `json:"username" binding:"required,max=50"`
	Password    string `json:"password" binding:"required,max=128"`
	CaptchaID   string `json:"captcha_id"`
	CaptchaCode string `json:"captcha_code"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"` // 秒
}

// CaptchaResponse 验证码响应
type CaptchaResponse struct {
	CaptchaID string `json:"captcha_id"`
	Image     string `json:"image"` // base64 图片
}

// UserUpdateRequest 更新用户信息请求，需要提供当前密码，空字符串表示不修改
type UserUpdateRequest struct {
	Password string `json:"password" binding:"required"`
	Username string `json:"username" binding:"max=50"`
	Nickname string `json:"nickname" binding:"max=50"`
	Email    string `json:"email" binding:"omitempty,email,max=100"`
	Avatar   string `json:"avatar" binding:"omitempty,max=255"`
}

// PasswordUpdateRequest 修改密码请求
type PasswordUpdateRequest struct {
	Password    string `json:"password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6,max=128"`
}

// UserResponse 用户信息响应
type UserResponse struct {
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	Nickname    string `json:"nickname"`
	Email       string `json:"email"`
	Avatar      string `json:"avatar"`
	LastLoginAt string `json:"last_login_at,omitempty"`
	CreatedAt   string `json:"created_at"`
}
