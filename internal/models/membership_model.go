package models

import (
	"time"
)

// Membership 群组成员模型，(user, group) 至多一行
type Membership struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	UserID  uint `gorm:"not null;uniqueIndex:idx_user_group" json:"user_id"`
	GroupID uint `gorm:"not null;uniqueIndex:idx_user_group" json:"group_id"`
	IsAdmin bool `gorm:"not null;default:false" json:"is_admin"`

	CreatedAt time.Time `json:"created_at"`

	User  *User  `gorm:"foreignKey:UserID" json:"-"`
	Group *Group `gorm:"foreignKey:GroupID" json:"-"`
}

func (Membership) TableName() string {
	return "memberships"
}
