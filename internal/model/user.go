package model

import (
	"time"
)

// User 用户模型
type User struct {
	Base
	Username    string     `gorm:"size:50;not null;uniqueIndex" json:"username"`
	Password    string     `gorm:"size:100;not null" json:"-"`
	Nickname    string     `gorm:"size:50" json:"nickname"`
	Email       string     `gorm:"size:100" json:"email"`
	Avatar      string     `gorm:"size:255" json:"avatar"`
	LastLoginAt *time.Time `json:"last_login_at"`
	LastLoginIP string     `gorm:"size:64" json:"last_login_ip"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}
