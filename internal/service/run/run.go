package run

import (
	"context"
	"sync"

	"github.com/weibaohui/goalagent/backend/internal/domain"
)

// Run 一次已提交运行的句柄
type Run struct {
	ID      string
	Request domain.RunRequest

	generation uint64
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}

	mu       sync.Mutex
	stopped  error
	answer   *domain.AggregatedAnswer
	err      error
	finished bool
}

// Done 运行结束（完成、失败、取消或被覆盖）时关闭
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Generation 提交代次
func (r *Run) Generation() uint64 {
	return r.generation
}

// Wait 等待运行结束
// 被覆盖时返回 domain.ErrRunSuperseded，被取消时返回 domain.ErrRunCanceled
func (r *Run) Wait(ctx context.Context) (*domain.AggregatedAnswer, error) {
	select {
	case <-r.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.answer, r.err
}

// stop 记录停止原因并取消运行上下文
func (r *Run) stop(reason error) {
	r.mu.Lock()
	if r.stopped == nil {
		r.stopped = reason
	}
	r.mu.Unlock()
	r.cancel()
}

func (r *Run) stopReason() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

func (r *Run) finish(answer *domain.AggregatedAnswer, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return
	}
	r.finished = true
	r.answer = answer
	r.err = err
}
