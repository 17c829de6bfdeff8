package services

import (
	"context"
	"time"

	"codecommunity/internal/storage"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// TagSyncTask 定时根据文章重新计算标签的 articlesCount，修复计数漂移
type TagSyncTask struct {
	store storage.Storage
	cron  *cron.Cron
	log   *zap.Logger
	// onChange 在有标签计数被修正时调用（用于清理缓存）
	onChange func()
}

func NewTagSyncTask(store storage.Storage, log *zap.Logger, onChange func()) *TagSyncTask {
	return &TagSyncTask{
		store:    store,
		cron:     cron.New(),
		log:      log,
		onChange: onChange,
	}
}

// Start schedules the reconciliation with a cron spec such as "@every 10m".
func (t *TagSyncTask) Start(spec string) error {
	entryID, err := t.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		t.Run(ctx)
	})
	if err != nil {
		return err
	}
	t.cron.Start()
	t.log.Info("Tag reconciliation scheduled", zap.String("schedule", spec), zap.Int("cronEntryID", int(entryID)))
	return nil
}

// Run executes one reconciliation pass.
func (t *TagSyncTask) Run(ctx context.Context) int {
	start := time.Now()
	changed, err := t.store.ReconcileTagCounts(ctx)
	if err != nil {
		t.log.Error("Tag reconciliation failed", zap.Error(err))
		return 0
	}
	if changed > 0 {
		t.log.Info("Tag counts repaired", zap.Int("changed", changed), zap.Duration("duration", time.Since(start)))
		if t.onChange != nil {
			t.onChange()
		}
	}
	return changed
}

// Stop 停止调度，返回的 context 在正在执行的任务结束后关闭
func (t *TagSyncTask) Stop() context.Context {
	return t.cron.Stop()
}
