package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"codecommunity/internal/storage"

	"go.uber.org/zap"
)

// ViewRecorder 异步批量累加文章浏览量
// 详情接口只做内存计数，后台按固定间隔把增量写回存储
type ViewRecorder struct {
	store    storage.Storage
	log      *zap.Logger
	interval time.Duration

	mu      sync.Mutex
	pending map[string]int

	stop chan struct{}
	done chan struct{}
}

func NewViewRecorder(store storage.Storage, log *zap.Logger, interval time.Duration) *ViewRecorder {
	return &ViewRecorder{
		store:    store,
		log:      log,
		interval: interval,
		pending:  make(map[string]int),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the background flusher.
func (r *ViewRecorder) Start() {
	go r.worker()
}

// Record 记录一次浏览（非阻塞）
func (r *ViewRecorder) Record(articleID string) {
	r.mu.Lock()
	r.pending[articleID]++
	r.mu.Unlock()
}

// Pending returns the not-yet-flushed views of an article.
func (r *ViewRecorder) Pending(articleID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending[articleID]
}

func (r *ViewRecorder) worker() {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Flush(context.Background())
		case <-r.stop:
			r.Flush(context.Background())
			return
		}
	}
}

// Flush writes every pending increment to storage. Articles deleted in the
// meantime are dropped silently.
func (r *ViewRecorder) Flush(ctx context.Context) {
	r.mu.Lock()
	batch := r.pending
	r.pending = make(map[string]int)
	r.mu.Unlock()

	for id, delta := range batch {
		if err := r.store.IncrementArticleViews(ctx, id, delta); err != nil && !errors.Is(err, storage.ErrNotFound) {
			r.log.Warn("Failed to flush article views", zap.String("articleId", id), zap.Int("delta", delta), zap.Error(err))
		}
	}
	if len(batch) > 0 {
		r.log.Debug("Flushed article views", zap.Int("articles", len(batch)))
	}
}

// Stop 停止后台 worker 并写回剩余增量，只能在 Start 之后调用一次
func (r *ViewRecorder) Stop() {
	close(r.stop)
	<-r.done
}
