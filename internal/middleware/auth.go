package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nsxzhou1114/startpage-api/internal/logger"
	"github.com/nsxzhou1114/startpage-api/pkg/auth"
	"github.com/nsxzhou1114/startpage-api/pkg/response"
)

const (
	// TokenCookie 登录后写入的令牌Cookie
	TokenCookie = "token"

	usernameKey = "username"
)

var (
	errNoToken       = errors.New("缺少令牌")
	errInvalidToken  = errors.New("无效的令牌")
	errRevokedToken  = errors.New("令牌已失效")
	errSessionFailed = errors.New("会话校验失败")
)

// Authenticate 校验令牌，sessions 为空时只校验签名和有效期
func Authenticate(ctx context.Context, tokens *auth.TokenManager, sessions auth.SessionStore, token string) (string, error) {
	if token == "" {
		return "", errNoToken
	}

	claims, err := tokens.Parse(token)
	if err != nil {
		return "", errInvalidToken
	}

	username := claims.Username()
	if sessions != nil {
		ok, err := auth.IsCurrent(ctx, sessions, username, token)
		if err != nil {
			logger.Errorf("会话校验失败: %v", err)
			return "", errSessionFailed
		}
		if !ok {
			return "", errRevokedToken
		}
	}
	return username, nil
}

// IsSessionFailure 会话存储不可用，属于服务端错误
func IsSessionFailure(err error) bool {
	return errors.Is(err, errSessionFailed)
}

// tokenFromRequest 优先读取 Authorization 头，其次读取Cookie
func tokenFromRequest(c *gin.Context) (string, error) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			return "", errors.New("Authorization格式错误")
		}
		return strings.TrimSpace(parts[1]), nil
	}
	if cookie, err := c.Cookie(TokenCookie); err == nil {
		return cookie, nil
	}
	return "", errNoToken
}

// JWTAuth JWT认证中间件
func JWTAuth(tokens *auth.TokenManager, sessions auth.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := tokenFromRequest(c)
		if err != nil {
			if errors.Is(err, errNoToken) {
				response.Unauthorized(c, "请先登录", nil)
			} else {
				response.Unauthorized(c, err.Error(), nil)
			}
			c.Abort()
			return
		}

		username, err := Authenticate(c.Request.Context(), tokens, sessions, token)
		if err != nil {
			if IsSessionFailure(err) {
				response.InternalServerError(c, err.Error(), nil)
			} else {
				logger.Warnf("认证失败: %v, ip=%s", err, c.ClientIP())
				response.Unauthorized(c, err.Error(), nil)
			}
			c.Abort()
			return
		}

		c.Set(usernameKey, username)
		c.Next()
	}
}

// GetUsername 从上下文中获取用户名
func GetUsername(c *gin.Context) (string, bool) {
	username, exists := c.Get(usernameKey)
	if !exists {
		return "", false
	}
	name, ok := username.(string)
	return name, ok
}
