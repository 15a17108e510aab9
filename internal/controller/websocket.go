package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nsxzhou1114/startpage-api/internal/logger"
	"github.com/nsxzhou1114/startpage-api/internal/middleware"
	"github.com/nsxzhou1114/startpage-api/pkg/auth"
	"github.com/nsxzhou1114/startpage-api/pkg/websocket"
	"go.uber.org/zap"
)

// WebSocketApi WebSocket API控制器
type WebSocketApi struct {
	logger           *zap.SugaredLogger
	websocketManager *websocket.Manager
	tokens           *auth.TokenManager
	sessions         auth.SessionStore
}

// NewWebSocketApi 创建WebSocket API实例
func NewWebSocketApi(manager *websocket.Manager, tokens *auth.TokenManager, sessions auth.SessionStore) *WebSocketApi {
	return &WebSocketApi{
		logger:           logger.GetSugaredLogger(),
		websocketManager: manager,
		tokens:           tokens,
		sessions:         sessions,
	}
}

// HandleWebSocket 浏览器无法设置请求头，令牌通过查询参数传递
func (api *WebSocketApi) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token, _ = c.Cookie(middleware.TokenCookie)
	}

	username, err := middleware.Authenticate(c.Request.Context(), api.tokens, api.sessions, token)
	if err != nil {
		api.logger.Warnf("WebSocket连接认证失败: %v", err)
		if middleware.IsSessionFailure(err) {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	api.websocketManager.HandleWebSocket(c, username)
}
