package repositories

import (
	"gorm.io/gorm"

	"github.com/parleychat/parley/internal/models"
)

// GroupRepository 群组与成员仓储
type GroupRepository struct {
	db *gorm.DB
}

// NewGroupRepository 创建群组仓储实例
func NewGroupRepository(db *gorm.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// CreateWithAdmin 创建群组并在同一事务里写入创建者的管理员成员行
func (r *GroupRepository) CreateWithAdmin(group *models.Group, creatorID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(group).Error; err != nil {
			return err
		}
		member := &models.Membership{
			UserID:  creatorID,
			GroupID: group.ID,
			IsAdmin: true,
		}
		return tx.Create(member).Error
	})
}

// GetByID 根据ID获取群组
func (r *GroupRepository) GetByID(id uint) (*models.Group, error) {
	var group models.Group
	if err := r.db.First(&group, id).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

// GetByName 根据群组名获取群组
func (r *GroupRepository) GetByName(name string) (*models.Group, error) {
	var group models.Group
	if err := r.db.Where("name = ?", name).First(&group).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

// GetUserGroups 获取用户所在的所有群组
func (r *GroupRepository) GetUserGroups(userID uint) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.Joins("JOIN memberships ON memberships.group_id = groups.id").
		Where("memberships.user_id = ?", userID).
		Order("groups.id").
		Find(&groups).Error
	return groups, err
}

// GetMember 获取某用户在某群组的成员行
func (r *GroupRepository) GetMember(groupID, userID uint) (*models.Membership, error) {
	var member models.Membership
	if err := r.db.Where("group_id = ? AND user_id = ?", groupID, userID).First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// GetMembers 获取群组全部成员（带用户信息）
func (r *GroupRepository) GetMembers(groupID uint) ([]models.Membership, error) {
	var members []models.Membership
	err := r.db.Where("group_id = ?", groupID).
		Preload("User").
		Order("id").
		Find(&members).Error
	return members, err
}

// AddMember 添加成员行
func (r *GroupRepository) AddMember(member *models.Membership) error {
	return r.db.Create(member).Error
}

// SetAdmin 设置成员的管理员标志
func (r *GroupRepository) SetAdmin(groupID, userID uint, isAdmin bool) error {
	return r.db.Model(&models.Membership{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Update("is_admin", isAdmin).Error
}

// RemoveMember 删除成员行。若删除后群组没有任何成员，则在同一事务里
// 级联删除群组消息与群组本身，返回 groupDeleted=true。
func (r *GroupRepository) RemoveMember(groupID, userID uint) (groupDeleted bool, err error) {
	err = r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("group_id = ? AND user_id = ?", groupID, userID).
			Delete(&models.Membership{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		var remaining int64
		if err := tx.Model(&models.Membership{}).
			Where("group_id = ?", groupID).
			Count(&remaining).Error; err != nil {
			return err
		}
		if remaining > 0 {
			return nil
		}

		// 最后一个成员被移除，群组成为孤儿，连同消息一并删除
		if err := tx.Where("group_id = ?", groupID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Group{}, groupID).Error; err != nil {
			return err
		}
		groupDeleted = true
		return nil
	})
	return groupDeleted, err
}
