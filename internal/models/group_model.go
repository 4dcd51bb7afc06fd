package models

import (
	"time"
)

// Group 群组模型
//
// Admin 只记录创建者的显示名，仅作展示用；真正的管理员权限
// 存放在 Membership.IsAdmin 上。
type Group struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Name  string `gorm:"uniqueIndex;not null" json:"name"`
	Admin string `gorm:"not null" json:"admin"`

	Members  []Membership `gorm:"foreignKey:GroupID" json:"-"`
	Messages []Message    `gorm:"foreignKey:GroupID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Group) TableName() string {
	return "groups"
}
