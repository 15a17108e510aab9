package service

import (
	"time"

	"github.com/mojocn/base64Captcha"
	"github.com/nsxzhou1114/startpage-api/internal/config"
	"github.com/nsxzhou1114/startpage-api/internal/dto"
	"github.com/nsxzhou1114/startpage-api/pkg/apperr"
)

// CaptchaService 登录图形验证码
type CaptchaService struct {
	store  base64Captcha.Store
	driver base64Captcha.Driver
}

// NewCaptchaService 创建验证码服务
func NewCaptchaService(cfg *config.CaptchaConfig) *CaptchaService {
	return &CaptchaService{
		store: base64Captcha.NewMemoryStore(base64Captcha.GCLimitNumber, 5*time.Minute),
		driver: base64Captcha.NewDriverDigit(
			cfg.Height,
			cfg.Width,
			cfg.Length,
			0.7,
			70,
		),
	}
}

// Generate 生成验证码
func (s *CaptchaService) Generate() (*dto.CaptchaResponse, error) {
	captcha := base64Captcha.NewCaptcha(s.driver, s.store)
	id, b64s, _, err := captcha.Generate()
	if err != nil {
		return nil, apperr.Internal("验证码生成失败", err)
	}
	return &dto.CaptchaResponse{CaptchaID: id, Image: b64s}, nil
}

// Verify 校验验证码，校验后立即失效
func (s *CaptchaService) Verify(id, code string) bool {
	if id == "" || code == "" {
		return false
	}
	return s.store.Verify(id, code, true)
}
