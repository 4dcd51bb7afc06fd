package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/parleychat/parley/internal/fanout"
	"github.com/parleychat/parley/internal/models"
	"github.com/parleychat/parley/internal/repositories"
	logger "github.com/parleychat/parley/middleware/log"
)

// Publisher 群组广播通道，消息服务只负责发布
type Publisher interface {
	Publish(ctx context.Context, event fanout.Event) error
}

// Uploader 附件上传器，返回可公开访问的 URL
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

// MessageService 消息服务
type MessageService struct {
	messageRepo *repositories.MessageRepository
	groupRepo   *repositories.GroupRepository
	publisher   Publisher
	uploader    Uploader
	logger      *logger.Logger
}

// NewMessageService 创建消息服务实例
func NewMessageService(
	messageRepo *repositories.MessageRepository,
	groupRepo *repositories.GroupRepository,
	publisher Publisher,
	uploader Uploader,
	log *logger.Logger,
) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		groupRepo:   groupRepo,
		publisher:   publisher,
		uploader:    uploader,
		logger:      log,
	}
}

// MessageDTO 消息数据传输对象
type MessageDTO struct {
	ID        uint      `json:"id"`
	GroupID   uint      `json:"group_id"`
	Content   string    `json:"content"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func messageToDTO(m *models.Message) *MessageDTO {
	return &MessageDTO{
		ID:        m.ID,
		GroupID:   m.GroupID,
		Content:   m.Content,
		Name:      m.Name,
		CreatedAt: m.CreatedAt,
	}
}

// requireMember 校验调用者是群组成员
func (s *MessageService) requireMember(groupID, userID uint) error {
	if _, err := s.groupRepo.GetMember(groupID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotMember
		}
		return fmt.Errorf("failed to look up membership: %w", err)
	}
	return nil
}

// persist 写入一条消息，作者显示名在此刻定格
func (s *MessageService) persist(groupID uint, caller Caller, content string) (*models.Message, error) {
	message := &models.Message{
		GroupID: groupID,
		UserID:  caller.ID,
		Name:    caller.Name,
		Content: content,
	}
	if err := s.messageRepo.Create(message); err != nil {
		s.logger.Error("failed to save message",
			zap.Uint("group_id", groupID),
			zap.Uint("user_id", caller.ID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to save message: %w", err)
	}
	return message, nil
}

// SendMessage 同步发送：成员校验、落库、返回，不广播
func (s *MessageService) SendMessage(groupID uint, caller Caller, content string) (*MessageDTO, error) {
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrBadRequest)
	}
	if err := s.requireMember(groupID, caller.ID); err != nil {
		return nil, err
	}

	message, err := s.persist(groupID, caller, content)
	if err != nil {
		return nil, err
	}
	return messageToDTO(message), nil
}

// SendMessageRealtime 实时发送：成员校验、落库，然后发布到群组广播通道。
// 广播失败只记日志，消息本身已经持久化。
func (s *MessageService) SendMessageRealtime(ctx context.Context, groupID uint, caller Caller, content string) (*MessageDTO, error) {
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrBadRequest)
	}
	if err := s.requireMember(groupID, caller.ID); err != nil {
		return nil, err
	}

	message, err := s.persist(groupID, caller, content)
	if err != nil {
		return nil, err
	}

	s.broadcast(ctx, message)
	return messageToDTO(message), nil
}

func (s *MessageService) broadcast(ctx context.Context, message *models.Message) {
	event := fanout.Event{
		GroupID: message.GroupID,
		Message: fanout.MessagePayload{
			ID:        message.ID,
			Content:   message.Content,
			Name:      message.Name,
			CreatedAt: message.CreatedAt,
		},
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("failed to broadcast message",
			zap.Uint("group_id", message.GroupID),
			zap.Uint("message_id", message.ID),
			zap.Error(err))
	}
}

// GetGroupMessages 返回群组全部消息，旧到新
func (s *MessageService) GetGroupMessages(groupID uint, caller Caller) ([]MessageDTO, error) {
	if err := s.requireMember(groupID, caller.ID); err != nil {
		return nil, err
	}

	messages, err := s.messageRepo.GetByGroup(groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	dtos := make([]MessageDTO, 0, len(messages))
	for i := range messages {
		dtos = append(dtos, *messageToDTO(&messages[i]))
	}
	return dtos, nil
}

// UploadResult 附件上传结果
type UploadResult struct {
	FileURL string      `json:"file_url"`
	Message *MessageDTO `json:"message"`
}

// UploadAttachment 上传附件，把对象 URL 作为消息内容落库并广播
func (s *MessageService) UploadAttachment(ctx context.Context, groupID uint, caller Caller, filename, contentType string, body io.Reader) (*UploadResult, error) {
	if filename == "" || body == nil {
		return nil, fmt.Errorf("%w: file and filename are required", ErrBadRequest)
	}

	if _, err := s.groupRepo.GetByID(groupID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to look up group: %w", err)
	}

	key := fmt.Sprintf("%d/%d-%s", groupID, time.Now().UnixNano(), path.Base(filename))
	fileURL, err := s.uploader.Upload(ctx, key, contentType, body)
	if err != nil {
		s.logger.Error("failed to upload attachment",
			zap.Uint("group_id", groupID),
			zap.String("filename", filename),
			zap.Error(err))
		return nil, fmt.Errorf("failed to upload attachment: %w", err)
	}

	message, err := s.persist(groupID, caller, fileURL)
	if err != nil {
		return nil, err
	}

	s.broadcast(ctx, message)
	return &UploadResult{FileURL: fileURL, Message: messageToDTO(message)}, nil
}
