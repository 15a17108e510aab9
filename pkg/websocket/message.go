package websocket

import (
	"encoding/json"
	"time"
)

// Event 推送给客户端的变更事件
type Event struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

// NewEvent 创建事件
func NewEvent(eventType string, data any) *Event {
	return &Event{Type: eventType, Data: data, Timestamp: time.Now().Unix()}
}

// ToJSON 将事件转换为JSON
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
