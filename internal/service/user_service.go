package service

import (
	"context"
	"errors"
	"time"

	"github.com/nsxzhou1114/startpage-api/internal/config"
	"github.com/nsxzhou1114/startpage-api/internal/dto"
	"github.com/nsxzhou1114/startpage-api/internal/logger"
	"github.com/nsxzhou1114/startpage-api/internal/model"
	"github.com/nsxzhou1114/startpage-api/pkg/apperr"
	"github.com/nsxzhou1114/startpage-api/pkg/auth"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserService 用户服务
type UserService struct {
	db       *gorm.DB
	logger   *zap.SugaredLogger
	tokens   *auth.TokenManager
	sessions auth.SessionStore // 未启用会话白名单时为空
	captcha  *CaptchaService   // 未启用验证码时为空
	baseURL  func() string
}

// NewUserService 创建用户服务实例
func NewUserService(db *gorm.DB, tokens *auth.TokenManager, sessions auth.SessionStore, captcha *CaptchaService) *UserService {
	return &UserService{
		db:       db,
		logger:   logger.GetSugaredLogger(),
		tokens:   tokens,
		sessions: sessions,
		captcha:  captcha,
		baseURL:  config.UploadBaseURL,
	}
}

// HashPassword 生成密码哈希
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", apperr.Internal("密码加密失败", err)
	}
	return string(hashed), nil
}

func checkPassword(user *model.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) == nil
}

// findUser 根据用户名查询用户
func (s *UserService) findUser(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("用户不存在")
		}
		return nil, apperr.Internal("查询用户失败", err)
	}
	return &user, nil
}

// CaptchaEnabled 登录是否需要验证码
func (s *UserService) CaptchaEnabled() bool {
	return s.captcha != nil
}

// Login 用户登录，签发令牌并记录到会话白名单
func (s *UserService) Login(ctx context.Context, req *dto.LoginRequest, clientIP string) (*dto.LoginResponse, error) {
	if s.captcha != nil && !s.captcha.Verify(req.CaptchaID, req.CaptchaCode) {
		return nil, apperr.BadRequest("验证码错误")
	}

	user, err := s.findUser(ctx, req.Username)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Unauthorized("用户名或密码错误")
		}
		return nil, err
	}
	if !checkPassword(user, req.Password) {
		s.logger.Warnf("登录密码错误: username=%s, ip=%s", user.Username, clientIP)
		return nil, apperr.Unauthorized("用户名或密码错误")
	}

	token, err := s.tokens.Generate(user.Username)
	if err != nil {
		return nil, apperr.Internal("生成令牌失败", err)
	}
	if s.sessions != nil {
		if err := s.sessions.Save(ctx, user.Username, token.Token, s.tokens.Expires()); err != nil {
			return nil, apperr.Internal("保存会话失败", err)
		}
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(user).Updates(map[string]interface{}{
		"last_login_at": now,
		"last_login_ip": clientIP,
	}).Error; err != nil {
		s.logger.Warnf("更新登录信息失败: %v", err)
	}

	s.logger.Infow("用户登录", "username", user.Username, "ip", clientIP)
	return &dto.LoginResponse{Token: token.Token, ExpiresIn: token.ExpiresIn}, nil
}

// Logout 撤销用户会话
func (s *UserService) Logout(ctx context.Context, username string) error {
	if s.sessions == nil {
		return nil
	}
	if err := s.sessions.Revoke(ctx, username); err != nil {
		return apperr.Internal("退出登录失败", err)
	}
	return nil
}

// Profile 获取当前用户信息
func (s *UserService) Profile(ctx context.Context, username string) (*dto.UserResponse, error) {
	user, err := s.findUser(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.Response(user), nil
}

// Update 更新用户信息，需校验当前密码，空字符串字段保持原值；修改用户名时会撤销当前会话
func (s *UserService) Update(ctx context.Context, username string, req *dto.UserUpdateRequest) (*dto.UserResponse, bool, error) {
	user, err := s.findUser(ctx, username)
	if err != nil {
		return nil, false, err
	}
	if !checkPassword(user, req.Password) {
		return nil, false, apperr.Unauthorized("密码错误")
	}

	updates := map[string]interface{}{}
	renamed := false
	if name := sanitizeText(req.Username); name != "" && name != user.Username {
		var count int64
		if err := s.db.WithContext(ctx).Model(&model.User{}).Where("username = ?", name).Count(&count).Error; err != nil {
			return nil, false, apperr.Internal("查询用户失败", err)
		}
		if count > 0 {
			return nil, false, apperr.AlreadyExists("用户名已存在")
		}
		updates["username"] = name
		renamed = true
	}
	if nickname := sanitizeText(req.Nickname); nickname != "" {
		updates["nickname"] = nickname
	}
	if req.Email != "" {
		updates["email"] = req.Email
	}
	if avatar := StandardizeIcon(req.Avatar, s.baseURL()); avatar != "" {
		updates["avatar"] = avatar
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
			return nil, false, apperr.Internal("更新用户信息失败", err)
		}
	}

	if renamed && s.sessions != nil {
		if err := s.sessions.Revoke(ctx, username); err != nil {
			s.logger.Warnf("撤销会话失败: %v", err)
		}
	}

	var updated model.User
	if err := s.db.WithContext(ctx).First(&updated, user.ID).Error; err != nil {
		return nil, false, apperr.Internal("查询用户失败", err)
	}
	return s.Response(&updated), renamed, nil
}

// ChangePassword 修改密码，成功后撤销当前会话
func (s *UserService) ChangePassword(ctx context.Context, username string, req *dto.PasswordUpdateRequest) error {
	user, err := s.findUser(ctx, username)
	if err != nil {
		return err
	}
	if !checkPassword(user, req.Password) {
		return apperr.Unauthorized("密码错误")
	}

	hashed, err := HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password", hashed).Error; err != nil {
		return apperr.Internal("修改密码失败", err)
	}

	return s.Logout(ctx, username)
}

// CreateUser 创建用户
func (s *UserService) CreateUser(ctx context.Context, username, password, nickname string) (*model.User, error) {
	if username == "" || password == "" {
		return nil, apperr.BadRequest("用户名和密码不能为空")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, apperr.Internal("查询用户失败", err)
	}
	if count > 0 {
		return nil, apperr.AlreadyExists("用户名已存在")
	}

	hashed, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	if nickname == "" {
		nickname = username
	}

	user := &model.User{Username: username, Password: hashed, Nickname: nickname}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, apperr.Internal("创建用户失败", err)
	}
	return user, nil
}

// ResetPassword 重置密码，不校验旧密码
func (s *UserService) ResetPassword(ctx context.Context, username, password string) error {
	user, err := s.findUser(ctx, username)
	if err != nil {
		return err
	}
	hashed, err := HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password", hashed).Error; err != nil {
		return apperr.Internal("重置密码失败", err)
	}
	return s.Logout(ctx, username)
}

// ListUsers 全部用户
func (s *UserService) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := s.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, apperr.Internal("查询用户失败", err)
	}
	return users, nil
}

// Response 生成用户响应DTO
func (s *UserService) Response(user *model.User) *dto.UserResponse {
	resp := &dto.UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Nickname:  user.Nickname,
		Email:     user.Email,
		Avatar:    NormalizeIcon(user.Avatar, s.baseURL()),
		CreatedAt: user.CreatedAt.Format(dto.TimeLayout),
	}
	if user.LastLoginAt != nil {
		resp.LastLoginAt = user.LastLoginAt.Format(dto.TimeLayout)
	}
	return resp
}
