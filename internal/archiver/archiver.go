package archiver

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/parleychat/parley/internal/repositories"
	logger "github.com/parleychat/parley/middleware/log"
)

// Archiver 定时把超过保留期的消息搬进归档表。
// 单次运行只计算一次 cutoff；失败记日志，等下一轮重跑。
type Archiver struct {
	archiveRepo *repositories.ArchiveRepository
	schedule    string
	retention   time.Duration
	logger      *logger.Logger
	cron        *cron.Cron
}

// New 创建归档器，schedule 为 cron 表达式
func New(archiveRepo *repositories.ArchiveRepository, schedule string, retention time.Duration, log *logger.Logger) *Archiver {
	return &Archiver{
		archiveRepo: archiveRepo,
		schedule:    schedule,
		retention:   retention,
		logger:      log,
	}
}

// Start 注册定时任务并启动调度
func (a *Archiver) Start() error {
	a.cron = cron.New()
	if _, err := a.cron.AddFunc(a.schedule, func() {
		a.Sweep(time.Now())
	}); err != nil {
		return err
	}
	a.cron.Start()
	a.logger.Info("archiver started",
		zap.String("schedule", a.schedule),
		zap.Duration("retention", a.retention))
	return nil
}

// Stop 停止调度，不中断正在执行的 sweep
func (a *Archiver) Stop() {
	if a.cron != nil {
		a.cron.Stop()
	}
}

// Sweep 执行一次归档：cutoff 之前的消息进归档表并从活跃表删除
func (a *Archiver) Sweep(now time.Time) {
	cutoff := now.Add(-a.retention)

	moved, err := a.archiveRepo.MoveBefore(cutoff)
	if err != nil {
		a.logger.Error("archive sweep failed",
			zap.Time("cutoff", cutoff),
			zap.Error(err))
		return
	}
	if moved > 0 {
		a.logger.Info("archive sweep done",
			zap.Time("cutoff", cutoff),
			zap.Int64("moved", moved))
	}
}
