package services

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/parleychat/parley/internal/models"
	"github.com/parleychat/parley/internal/repositories"
	logger "github.com/parleychat/parley/middleware/log"
)

// GroupService 群组服务：创建、成员管理、权限检查都在这里
type GroupService struct {
	groupRepo *repositories.GroupRepository
	userRepo  *repositories.UserRepository
	logger    *logger.Logger
}

// NewGroupService 创建群组服务实例
func NewGroupService(groupRepo *repositories.GroupRepository, userRepo *repositories.UserRepository, log *logger.Logger) *GroupService {
	return &GroupService{
		groupRepo: groupRepo,
		userRepo:  userRepo,
		logger:    log,
	}
}

// CreateGroupRequest 创建群组请求
type CreateGroupRequest struct {
	Name string `json:"name" binding:"required"`
}

// GroupDTO 群组数据传输对象
type GroupDTO struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Admin     string    `json:"admin"`
	CreatedAt time.Time `json:"created_at"`
}

// GroupMemberDTO 群组成员数据传输对象
type GroupMemberDTO struct {
	ID      uint   `json:"id"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"is_admin"`
}

// Caller 已认证调用者身份，由 JWT 中间件解出
type Caller struct {
	ID   uint
	Name string
}

func groupToDTO(g *models.Group) *GroupDTO {
	return &GroupDTO{
		ID:        g.ID,
		Name:      g.Name,
		Admin:     g.Admin,
		CreatedAt: g.CreatedAt,
	}
}

// CreateGroup 创建群组，创建者自动成为管理员成员
func (s *GroupService) CreateGroup(caller Caller, req *CreateGroupRequest) (*GroupDTO, error) {
	if _, err := s.groupRepo.GetByName(req.Name); err == nil {
		return nil, ErrGroupExists
	}

	group := &models.Group{
		Name:  req.Name,
		Admin: caller.Name,
	}
	if err := s.groupRepo.CreateWithAdmin(group, caller.ID); err != nil {
		s.logger.Error("failed to create group", zap.String("name", req.Name), zap.Error(err))
		return nil, fmt.Errorf("failed to create group: %w", err)
	}
	return groupToDTO(group), nil
}

// ListGroups 返回调用者加入的全部群组
func (s *GroupService) ListGroups(caller Caller) ([]GroupDTO, error) {
	groups, err := s.groupRepo.GetUserGroups(caller.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	dtos := make([]GroupDTO, 0, len(groups))
	for i := range groups {
		dtos = append(dtos, *groupToDTO(&groups[i]))
	}
	return dtos, nil
}

// requireAdmin 校验群组存在且调用者是该群组的管理员成员
func (s *GroupService) requireAdmin(groupID uint, callerID uint) error {
	if _, err := s.groupRepo.GetByID(groupID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrGroupNotFound
		}
		return fmt.Errorf("failed to look up group: %w", err)
	}

	member, err := s.groupRepo.GetMember(groupID, callerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotAdmin
		}
		return fmt.Errorf("failed to look up membership: %w", err)
	}
	if !member.IsAdmin {
		return ErrNotAdmin
	}
	return nil
}

// AddMember 管理员按邮箱把用户拉进群组
func (s *GroupService) AddMember(groupID uint, caller Caller, targetEmail string) error {
	if err := s.requireAdmin(groupID, caller.ID); err != nil {
		return err
	}

	target, err := s.userRepo.GetByEmail(targetEmail)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to look up user: %w", err)
	}

	if _, err := s.groupRepo.GetMember(groupID, target.ID); err == nil {
		return ErrAlreadyMember
	}

	member := &models.Membership{
		UserID:  target.ID,
		GroupID: groupID,
		IsAdmin: false,
	}
	if err := s.groupRepo.AddMember(member); err != nil {
		s.logger.Error("failed to add member",
			zap.Uint("group_id", groupID),
			zap.Uint("user_id", target.ID),
			zap.Error(err))
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// RemoveMemberResult 区分普通移除与触发级联删除的移除
type RemoveMemberResult struct {
	GroupDeleted bool `json:"group_deleted"`
}

// RemoveMember 管理员移除成员；移走最后一个成员时级联删除群组及其消息
func (s *GroupService) RemoveMember(groupID uint, caller Caller, targetUserID uint) (*RemoveMemberResult, error) {
	if err := s.requireAdmin(groupID, caller.ID); err != nil {
		return nil, err
	}

	if _, err := s.groupRepo.GetMember(groupID, targetUserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to look up membership: %w", err)
	}

	groupDeleted, err := s.groupRepo.RemoveMember(groupID, targetUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMembershipNotFound
		}
		s.logger.Error("failed to remove member",
			zap.Uint("group_id", groupID),
			zap.Uint("user_id", targetUserID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to remove member: %w", err)
	}

	if groupDeleted {
		s.logger.Info("group orphaned and deleted", zap.Uint("group_id", groupID))
	}
	return &RemoveMemberResult{GroupDeleted: groupDeleted}, nil
}

// PromoteAdmin 管理员按邮箱提升已有成员为管理员
func (s *GroupService) PromoteAdmin(groupID uint, caller Caller, targetEmail string) error {
	if err := s.requireAdmin(groupID, caller.ID); err != nil {
		return err
	}

	target, err := s.userRepo.GetByEmail(targetEmail)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to look up user: %w", err)
	}

	if _, err := s.groupRepo.GetMember(groupID, target.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 提升的目标必须已经在群里
			return fmt.Errorf("%w: user is not a member of this group", ErrBadRequest)
		}
		return fmt.Errorf("failed to look up membership: %w", err)
	}

	if err := s.groupRepo.SetAdmin(groupID, target.ID, true); err != nil {
		return fmt.Errorf("failed to promote admin: %w", err)
	}
	return nil
}

// ListMembers 群组成员列表，要求调用者本身是成员
func (s *GroupService) ListMembers(groupID uint, caller Caller) ([]GroupMemberDTO, error) {
	if _, err := s.groupRepo.GetMember(groupID, caller.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotMember
		}
		return nil, fmt.Errorf("failed to look up membership: %w", err)
	}

	members, err := s.groupRepo.GetMembers(groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	dtos := make([]GroupMemberDTO, 0, len(members))
	for _, m := range members {
		dto := GroupMemberDTO{ID: m.UserID, IsAdmin: m.IsAdmin}
		if m.User != nil {
			dto.Name = m.User.Name
		}
		dtos = append(dtos, dto)
	}
	return dtos, nil
}

// IsMember 判断用户是否群组成员（供 ws 层复用）
func (s *GroupService) IsMember(groupID, userID uint) (bool, error) {
	_, err := s.groupRepo.GetMember(groupID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up membership: %w", err)
	}
	return true, nil
}
