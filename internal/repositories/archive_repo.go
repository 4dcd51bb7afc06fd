package repositories

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/parleychat/parley/internal/models"
)

// ArchiveRepository 归档仓储
type ArchiveRepository struct {
	db *gorm.DB
}

// NewArchiveRepository 创建归档仓储实例
func NewArchiveRepository(db *gorm.DB) *ArchiveRepository {
	return &ArchiveRepository{db: db}
}

// MoveBefore 把 cutoff 之前的消息搬进归档表并删除原行，单事务完成。
// 归档插入按消息ID做 ON CONFLICT DO NOTHING，重跑不会产生重复归档行。
func (r *ArchiveRepository) MoveBefore(cutoff time.Time) (moved int64, err error) {
	err = r.db.Transaction(func(tx *gorm.DB) error {
		var messages []models.Message
		if err := tx.Where("created_at < ?", cutoff).Find(&messages).Error; err != nil {
			return err
		}
		if len(messages) == 0 {
			return nil
		}

		archived := make([]models.ArchivedMessage, 0, len(messages))
		ids := make([]uint, 0, len(messages))
		for _, m := range messages {
			archived = append(archived, models.ArchivedMessage{
				ID:        m.ID,
				GroupID:   m.GroupID,
				UserID:    m.UserID,
				Name:      m.Name,
				Content:   m.Content,
				CreatedAt: m.CreatedAt,
			})
			ids = append(ids, m.ID)
		}

		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&archived).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Message{}, ids)
		if res.Error != nil {
			return res.Error
		}
		moved = res.RowsAffected
		return nil
	})
	return moved, err
}

// CountByGroup 统计某群组的归档行数
func (r *ArchiveRepository) CountByGroup(groupID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.ArchivedMessage{}).Where("group_id = ?", groupID).Count(&count).Error
	return count, err
}
