package websocket

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Client 表示一个WebSocket客户端连接，同一用户可以有多个
type Client struct {
	ID         string          // 连接唯一标识符
	Username   string          // 用户名
	Conn       *websocket.Conn // WebSocket连接
	send       chan []byte     // 发送消息的通道
	manager    *Manager        // 所属的管理器
	lastActive time.Time       // 最后活跃时间
	closed     bool            // 连接是否已关闭
	closeMutex sync.RWMutex    // 关闭状态的互斥锁
}

// NewClient 创建新的客户端实例
func NewClient(username string, conn *websocket.Conn, manager *Manager) *Client {
	return &Client{
		ID:         generateConnID(username),
		Username:   username,
		Conn:       conn,
		send:       make(chan []byte, 256),
		manager:    manager,
		lastActive: time.Now(),
	}
}

// readPump 处理从客户端读取消息
func (c *Client) readPump() {
	defer func() {
		select {
		case c.manager.unregister <- c:
		case <-c.manager.ctx.Done():
		}
	}()

	c.Conn.SetReadLimit(4096)
	c.Conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.updateActivity()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			break
		}

		c.updateActivity()
		if len(message) > 0 {
			c.handleMessage(message)
		}
	}
}

// writePump 处理向客户端发送消息
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.writeMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.writeMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 处理接收到的消息，目前只有心跳
func (c *Client) handleMessage(message []byte) {
	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}

	if msg.Type == "ping" {
		if data, err := NewEvent("pong", nil).ToJSON(); err == nil {
			c.trySend(data)
		}
	}
}

func (c *Client) writeMessage(messageType int, data []byte) error {
	c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.Conn.WriteMessage(messageType, data)
}

// trySend 非阻塞发送，连接已关闭或缓冲区满时返回 false
func (c *Client) trySend(data []byte) bool {
	c.closeMutex.RLock()
	defer c.closeMutex.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close 关闭客户端连接
func (c *Client) Close() {
	c.closeMutex.Lock()
	defer c.closeMutex.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
		c.Conn.Close()
	}
}

// updateActivity 更新最后活跃时间
func (c *Client) updateActivity() {
	c.closeMutex.Lock()
	c.lastActive = time.Now()
	c.Conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.closeMutex.Unlock()
}

// IsActive 检查客户端是否活跃
func (c *Client) IsActive(timeout time.Duration) bool {
	c.closeMutex.RLock()
	defer c.closeMutex.RUnlock()
	return !c.closed && time.Since(c.lastActive) < timeout
}

// generateConnID 生成连接ID
func generateConnID(username string) string {
	return fmt.Sprintf("%s_%d", username, time.Now().UnixNano())
}
