package models

import (
	"time"
)

// Message 消息模型
//
// Name 是发送时刻作者显示名的快照，之后改名不回填。
type Message struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	GroupID uint   `gorm:"not null;index" json:"group_id"`
	UserID  uint   `gorm:"not null" json:"user_id"`
	Name    string `gorm:"not null" json:"name"`
	Content string `gorm:"not null" json:"content"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`

	User  *User  `gorm:"foreignKey:UserID" json:"-"`
	Group *Group `gorm:"foreignKey:GroupID" json:"-"`
}

func (Message) TableName() string {
	return "messages"
}
