package models

import (
	"time"
)

// ArchivedMessage 归档消息，append-only 终端存储
//
// ID 沿用原消息的主键（不自增），归档插入带 ON CONFLICT DO NOTHING，
// 重复归档同一条消息不会产生重复行。不挂外键：归档行与活跃的
// 用户/群组关系彻底解耦。
type ArchivedMessage struct {
	ID      uint   `gorm:"primaryKey;autoIncrement:false" json:"id"`
	GroupID uint   `gorm:"not null;index" json:"group_id"`
	UserID  uint   `gorm:"not null" json:"user_id"`
	Name    string `gorm:"not null" json:"name"`
	Content string `gorm:"not null" json:"content"`

	CreatedAt  time.Time `json:"created_at"`
	ArchivedAt time.Time `gorm:"autoCreateTime" json:"archived_at"`
}

func (ArchivedMessage) TableName() string {
	return "archived_messages"
}
