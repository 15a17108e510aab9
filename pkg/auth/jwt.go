package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt"
	"github.com/nsxzhou1114/startpage-api/internal/config"
)

// Claims 自定义JWT声明结构体，Subject 为用户名
type Claims struct {
	jwt.StandardClaims
}

// Username 令牌所属用户
func (c *Claims) Username() string {
	return c.Subject
}

// Token 签发结果
type Token struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"` // 过期时间（秒）
}

// TokenManager 令牌签发与校验
type TokenManager struct {
	secret  []byte
	issuer  string
	expires time.Duration
	node    *snowflake.Node
}

// NewTokenManager 创建令牌管理器
func NewTokenManager(cfg *config.JWTConfig) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("jwt.secret_key 未配置")
	}

	expires, err := ParseExpiresIn(cfg.ExpiresIn)
	if err != nil {
		return nil, err
	}

	// 生成令牌ID
	node, err := snowflake.NewNode(cfg.MachineID)
	if err != nil {
		return nil, fmt.Errorf("初始化雪花节点失败: %w", err)
	}

	return &TokenManager{
		secret:  []byte(cfg.SecretKey),
		issuer:  cfg.Issuer,
		expires: expires,
		node:    node,
	}, nil
}

// Expires 令牌有效期
func (m *TokenManager) Expires() time.Duration {
	return m.expires
}

// Generate 为用户签发令牌
func (m *TokenManager) Generate(username string) (*Token, error) {
	now := time.Now()
	claims := Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        m.node.Generate().String(),
			Subject:   username,
			Issuer:    m.issuer,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(m.expires).Unix(),
		},
	}

	// 使用密钥签名并获得完整的编码字符串令牌
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.secret)
	if err != nil {
		return nil, err
	}

	return &Token{
		Token:     tokenString,
		ExpiresIn: int64(m.expires.Seconds()),
	}, nil
}

// Parse 解析并校验令牌签名与有效期
func (m *TokenManager) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("不支持的签名算法: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}

	// 校验令牌
	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.Subject != "" {
		return claims, nil
	}

	return nil, errors.New("无效的令牌")
}
