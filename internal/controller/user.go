package controller

import (
	"github.com/gin-gonic/gin"
	"github.com/nsxzhou1114/startpage-api/internal/dto"
	"github.com/nsxzhou1114/startpage-api/internal/logger"
	"github.com/nsxzhou1114/startpage-api/internal/middleware"
	"github.com/nsxzhou1114/startpage-api/internal/service"
	"github.com/nsxzhou1114/startpage-api/pkg/apperr"
	"github.com/nsxzhou1114/startpage-api/pkg/response"
	"go.uber.org/zap"
)

// UserApi 登录与用户信息控制器
type UserApi struct {
	logger         *zap.SugaredLogger
	userService    *service.UserService
	captchaService *service.CaptchaService
}

// NewUserApi 创建用户控制器，captchaService 为空表示未启用验证码
func NewUserApi(userService *service.UserService, captchaService *service.CaptchaService) *UserApi {
	return &UserApi{
		logger:         logger.GetSugaredLogger(),
		userService:    userService,
		captchaService: captchaService,
	}
}

func (api *UserApi) fail(c *gin.Context, err error, message string) {
	if apperr.Is(err, apperr.KindInternal) {
		api.logger.Errorf("%s: %v", message, err)
	}
	response.FromError(c, err, message)
}

func setTokenCookie(c *gin.Context, token string, maxAge int) {
	c.SetCookie(middleware.TokenCookie, token, maxAge, "/", "", c.Request.TLS != nil, true)
}

func clearTokenCookie(c *gin.Context) {
	setTokenCookie(c, "", -1)
}

// Captcha 获取登录验证码
func (api *UserApi) Captcha(c *gin.Context) {
	if api.captchaService == nil {
		response.Success(c, "未启用验证码", gin.H{"enabled": false})
		return
	}

	captcha, err := api.captchaService.Generate()
	if err != nil {
		api.fail(c, err, "验证码生成失败")
		return
	}
	response.Success(c, "获取成功", captcha)
}

// Login 用户登录
func (api *UserApi) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := api.userService.Login(c.Request.Context(), &req, c.ClientIP())
	if err != nil {
		api.fail(c, err, "登录失败")
		return
	}

	setTokenCookie(c, result.Token, int(result.ExpiresIn))
	response.Success(c, "登录成功", result)
}

// Logout 退出登录
func (api *UserApi) Logout(c *gin.Context) {
	username, ok := currentUser(c)
	if !ok {
		return
	}

	if err := api.userService.Logout(c.Request.Context(), username); err != nil {
		api.fail(c, err, "退出登录失败")
		return
	}

	clearTokenCookie(c)
	response.Success(c, "退出成功", nil)
}

// Profile 当前用户信息
func (api *UserApi) Profile(c *gin.Context) {
	username, ok := currentUser(c)
	if !ok {
		return
	}

	user, err := api.userService.Profile(c.Request.Context(), username)
	if err != nil {
		api.fail(c, err, "获取用户信息失败")
		return
	}

	response.Success(c, "获取成功", user)
}

// Update 更新当前用户信息，修改用户名后需要重新登录
func (api *UserApi) Update(c *gin.Context) {
	username, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.UserUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	user, renamed, err := api.userService.Update(c.Request.Context(), username, &req)
	if err != nil {
		api.fail(c, err, "更新用户信息失败")
		return
	}

	if renamed {
		clearTokenCookie(c)
		response.Success(c, "用户名已修改，请重新登录", user)
		return
	}
	response.Success(c, "更新成功", user)
}

// ChangePassword 修改密码，成功后需要重新登录
func (api *UserApi) ChangePassword(c *gin.Context) {
	username, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.PasswordUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	if err := api.userService.ChangePassword(c.Request.Context(), username, &req); err != nil {
		api.fail(c, err, "修改密码失败")
		return
	}

	clearTokenCookie(c)
	response.Success(c, "密码已修改，请重新登录", nil)
}
