package services

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/parleychat/parley/internal/fanout"
	"github.com/parleychat/parley/internal/models"
	"github.com/parleychat/parley/internal/repositories"
	"github.com/parleychat/parley/internal/storage"
	logger "github.com/parleychat/parley/middleware/log"
)

// setupTestDB 连接本地测试库，连不上就跳过
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := storage.BuildDSN("127.0.0.1", "5432", "postgres", "postgres", "parley_test")
	db, err := storage.InitPostgres(dsn, 2, 5)
	if err != nil {
		t.Skipf("Skipping test: Postgres not available: %v", err)
	}

	// 每个测试从干净状态开始
	err = db.Exec("TRUNCATE memberships, messages, archived_messages, groups, users RESTART IDENTITY CASCADE").Error
	require.NoError(t, err)

	return db
}

type testEnv struct {
	db             *gorm.DB
	userRepo       *repositories.UserRepository
	groupRepo      *repositories.GroupRepository
	messageRepo    *repositories.MessageRepository
	groupService   *GroupService
	messageService *MessageService
	publisher      *fakePublisher
	uploader       *fakeUploader
}

func setupServices(t *testing.T) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	log, err := logger.NewDevelopmentLogger()
	require.NoError(t, err)

	userRepo := repositories.NewUserRepository(db)
	groupRepo := repositories.NewGroupRepository(db)
	messageRepo := repositories.NewMessageRepository(db)

	publisher := &fakePublisher{}
	uploader := &fakeUploader{}

	return &testEnv{
		db:             db,
		userRepo:       userRepo,
		groupRepo:      groupRepo,
		messageRepo:    messageRepo,
		groupService:   NewGroupService(groupRepo, userRepo, log),
		messageService: NewMessageService(messageRepo, groupRepo, publisher, uploader, log),
		publisher:      publisher,
		uploader:       uploader,
	}
}

// createUser 直接写库造用户，省掉注册流程
func (e *testEnv) createUser(t *testing.T, name, email string) Caller {
	t.Helper()

	user := &models.User{Name: name, Email: email, PasswordHash: "x"}
	require.NoError(t, e.userRepo.Create(user))
	return Caller{ID: user.ID, Name: name}
}

// fakePublisher 记录所有广播事件
type fakePublisher struct {
	mu     sync.Mutex
	events []fanout.Event
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, event fanout.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) Events() []fanout.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]fanout.Event(nil), p.events...)
}

// fakeUploader 返回假的对象 URL
type fakeUploader struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (u *fakeUploader) Upload(_ context.Context, key, _ string, body io.Reader) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return "", u.err
	}
	if _, err := io.ReadAll(body); err != nil {
		return "", err
	}
	u.keys = append(u.keys, key)
	return fmt.Sprintf("https://bucket.s3.test/%s", key), nil
}
