package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/nsxzhou1114/startpage-api/internal/logger"
	"go.uber.org/zap"
)

const inactiveTimeout = 5 * time.Minute

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Manager WebSocket连接管理器，向所有已认证的连接广播数据变更
type Manager struct {
	clients    map[*Client]struct{} // 在线连接
	register   chan *Client         // 注册通道
	unregister chan *Client         // 注销通道
	logger     *zap.SugaredLogger   // 日志记录器
	ctx        context.Context      // 上下文
	cancel     context.CancelFunc   // 取消函数
	mutex      sync.RWMutex         // 并发锁
	startOnce  sync.Once
}

var (
	manager     *Manager
	managerOnce sync.Once
)

// NewManager 创建管理器
func NewManager() *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client, 32),
		unregister: make(chan *Client, 32),
		logger:     logger.GetSugaredLogger(),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// GetManager 获取WebSocket管理器单例
func GetManager() *Manager {
	managerOnce.Do(func() {
		manager = NewManager()
	})
	return manager
}

// Start 启动管理器主循环
func (m *Manager) Start() {
	m.startOnce.Do(func() {
		go m.run()
	})
}

// Shutdown 关闭管理器
func (m *Manager) Shutdown() {
	m.logger.Info("正在关闭WebSocket管理器...")
	m.cancel()

	m.mutex.Lock()
	for client := range m.clients {
		client.Close()
	}
	m.clients = make(map[*Client]struct{})
	m.mutex.Unlock()

	m.logger.Info("WebSocket管理器已关闭")
}

// run 运行管理器主循环
func (m *Manager) run() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case client := <-m.register:
			m.handleRegister(client)
		case client := <-m.unregister:
			m.handleUnregister(client)
		case <-ticker.C:
			m.cleanInactiveConnections()
		}
	}
}

func (m *Manager) handleRegister(client *Client) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.clients[client] = struct{}{}
	m.logger.Infof("用户 %s 已连接，当前连接数: %d", client.Username, len(m.clients))
}

func (m *Manager) handleUnregister(client *Client) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.clients[client]; exists {
		delete(m.clients, client)
		client.Close()
		m.logger.Infof("用户 %s 已断开连接，当前连接数: %d", client.Username, len(m.clients))
	}
}

// cleanInactiveConnections 清理不活跃的连接
func (m *Manager) cleanInactiveConnections() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for client := range m.clients {
		if !client.IsActive(inactiveTimeout) {
			client.Close()
			delete(m.clients, client)
			m.logger.Infof("清理不活跃连接：%s", client.ID)
		}
	}
}

// Notify 广播变更事件
func (m *Manager) Notify(eventType string, data any) {
	message, err := NewEvent(eventType, data).ToJSON()
	if err != nil {
		m.logger.Errorf("序列化事件失败: %v", err)
		return
	}
	m.Broadcast(message)
}

// Broadcast 发送消息到所有连接，缓冲区已满的连接会被关闭
func (m *Manager) Broadcast(message []byte) {
	m.mutex.RLock()
	var slow []*Client
	for client := range m.clients {
		if !client.trySend(message) {
			slow = append(slow, client)
		}
	}
	m.mutex.RUnlock()

	for _, client := range slow {
		m.logger.Warnf("连接发送失败，关闭连接: %s", client.ID)
		client.Close()
	}
}

// HandleWebSocket 升级连接并注册客户端
func (m *Manager) HandleWebSocket(c *gin.Context, username string) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		m.logger.Errorf("WebSocket升级失败: %v", err)
		return
	}

	client := NewClient(username, conn, m)
	select {
	case m.register <- client:
	case <-m.ctx.Done():
		client.Close()
		return
	}

	go client.readPump()
	go client.writePump()
}

// ConnectionCount 当前连接数
func (m *Manager) ConnectionCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients)
}
