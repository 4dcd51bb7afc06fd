package repositories

import (
	"gorm.io/gorm"

	"github.com/parleychat/parley/internal/models"
)

// MessageRepository 消息仓储
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建消息仓储实例
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create 写入消息
func (r *MessageRepository) Create(message *models.Message) error {
	return r.db.Create(message).Error
}

// GetByGroup 按创建顺序返回群组全部消息（旧到新）
func (r *MessageRepository) GetByGroup(groupID uint) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.Where("group_id = ?", groupID).
		Order("created_at, id").
		Find(&messages).Error
	return messages, err
}
