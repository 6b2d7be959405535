package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/weibaohui/goalagent/backend/internal/domain"
	"k8s.io/klog/v2"
)

// -----------------------------
// 错误定义
// -----------------------------
var (
	ErrOrchestratorStopped = errors.New("orchestrator is stopped")
)

const maxBackoff = 30 * time.Second

// -----------------------------
// Invoker 接口
// -----------------------------

// Invoker 执行单个计划步骤，返回纯文本结果
type Invoker interface {
	Invoke(ctx context.Context, step domain.PlanStep) (string, error)
}

// InvokerFunc 函数适配器
type InvokerFunc func(ctx context.Context, step domain.PlanStep) (string, error)

func (f InvokerFunc) Invoke(ctx context.Context, step domain.PlanStep) (string, error) {
	return f(ctx, step)
}

// Progress 进度回调参数
type Progress struct {
	Done    int
	Total   int
	Percent int
	Outcome domain.ExecutionOutcome
}

// Options 执行器配置
type Options struct {
	MaxWorkers   int
	StepTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// -----------------------------
// Orchestrator
// -----------------------------
type Orchestrator struct {
	pool *ants.Pool
	opts Options

	stopOnce sync.Once
}

// NewOrchestrator 创建计划执行器，持有一个有界协程池
func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 1
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	pool, err := ants.NewPool(opts.MaxWorkers,
		ants.WithNonblocking(false),
		ants.WithMaxBlockingTasks(1000),
		ants.WithExpiryDuration(5*time.Minute),
	)
	if err != nil {
		klog.Errorf("ants pool initialization failed: %v", err)
		return nil, err
	}

	klog.V(6).Infof("Orchestrator initialized: maxWorkers=%d, stepTimeout=%v, maxRetries=%d", opts.MaxWorkers, opts.StepTimeout, opts.MaxRetries)
	return &Orchestrator{pool: pool, opts: opts}, nil
}

// -----------------------------
// 停止
// -----------------------------
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		klog.V(6).Infof("Orchestrator stopping...")

		if running := o.pool.Running(); running > 0 {
			klog.V(6).Infof("Waiting for %d running groups to complete", running)
		}

		timeout := o.opts.StepTimeout*time.Duration(o.opts.MaxRetries+1) + time.Minute
		if err := o.pool.ReleaseTimeout(timeout); err != nil {
			klog.Warningf("Timeout after %v: some running steps may be forced to stop", timeout)
		}

		klog.V(6).Infof("Orchestrator stopped completely")
	})
}

// -----------------------------
// 执行计划
// -----------------------------

// Execute 执行全部步骤并返回与步骤一一对应、按生成顺序排列的结果
// 同一资源的步骤串行执行，不同资源之间并发执行
// onProgress 在每个步骤结束后调用，百分比单调不减
func (o *Orchestrator) Execute(ctx context.Context, steps []domain.PlanStep, invoker Invoker, onProgress func(Progress)) []domain.ExecutionOutcome {
	outcomes := make([]domain.ExecutionOutcome, len(steps))
	if len(steps) == 0 {
		return outcomes
	}

	total := len(steps)
	done := 0
	var progressMu sync.Mutex
	report := func(outcome domain.ExecutionOutcome) {
		progressMu.Lock()
		defer progressMu.Unlock()
		outcomes[outcome.Step.Index] = outcome
		done++
		if onProgress != nil {
			onProgress(Progress{
				Done:    done,
				Total:   total,
				Percent: done * 100 / total,
				Outcome: outcome,
			})
		}
	}

	groups := groupByResource(steps)
	klog.V(6).Infof("开始执行计划: steps=%d, groups=%d", total, len(groups))

	var wg sync.WaitGroup
	for _, group := range groups {
		wg.Add(1)
		err := o.pool.Submit(func() {
			defer wg.Done()
			for _, step := range group {
				report(o.runStep(ctx, step, invoker))
			}
		})
		if err != nil {
			wg.Done()
			klog.Errorf("提交步骤组到协程池失败: resource=%s, err=%v", group[0].Resource, err)
			for _, step := range group {
				report(failedOutcome(step, fmt.Errorf("%w: %v", ErrOrchestratorStopped, err), 0, 0))
			}
		}
	}
	wg.Wait()

	klog.V(6).Infof("计划执行完成: steps=%d", total)
	return outcomes
}

// runStep 带超时与重试地执行单个步骤；软失败不重试
func (o *Orchestrator) runStep(ctx context.Context, step domain.PlanStep, invoker Invoker) domain.ExecutionOutcome {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return failedOutcome(step, err, 0, time.Since(start))
	}

	var lastErr *domain.ToolError
	attempts := 0
	for i := 0; i <= o.opts.MaxRetries; i++ {
		attempts++
		text, err := o.invokeOnce(ctx, step, invoker)
		if err == nil {
			step.Status = domain.StepCompleted
			klog.V(6).Infof("步骤执行成功: step=%s, tool=%s, resource=%s, attempts=%d", step.ID, step.Tool, step.Resource, attempts)
			return domain.ExecutionOutcome{Step: step, Text: text, Attempts: attempts, Duration: time.Since(start)}
		}

		lastErr = domain.ClassifyToolError(step.Tool, err)
		if lastErr.Soft() {
			klog.V(6).Infof("步骤无可处理内容: step=%s, tool=%s, resource=%s, detail=%s", step.ID, step.Tool, step.Resource, lastErr.Message)
			break
		}
		if ctx.Err() != nil || i == o.opts.MaxRetries {
			break
		}

		backoff := retryDelay(o.opts.RetryBackoff, i)
		klog.Warningf("步骤执行失败，准备重试: step=%s, tool=%s, retry=%d/%d, err=%v, backoff=%v",
			step.ID, step.Tool, i+1, o.opts.MaxRetries, lastErr, backoff)
		if backoff == 0 {
			continue
		}

		select {
		case <-ctx.Done():
			klog.Warningf("步骤被取消: step=%s", step.ID)
		case <-time.After(backoff):
		}
		if ctx.Err() != nil {
			break
		}
	}

	step.Status = domain.StepFailed
	if !lastErr.Soft() {
		klog.Warningf("步骤执行失败: step=%s, tool=%s, resource=%s, attempts=%d, err=%v", step.ID, step.Tool, step.Resource, attempts, lastErr)
	}
	return domain.ExecutionOutcome{Step: step, Err: lastErr, Attempts: attempts, Duration: time.Since(start)}
}

// retryDelay 第 attempt 次重试前的等待时间：base << attempt，溢出或超过上限时取上限；base 为 0 时立即重试
func retryDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	backoff := base << attempt
	if backoff <= 0 || backoff > maxBackoff || backoff>>attempt != base {
		return maxBackoff
	}
	return backoff
}

// invokeOnce 单次调用，附带步骤超时与 panic 恢复
func (o *Orchestrator) invokeOnce(ctx context.Context, step domain.PlanStep, invoker Invoker) (text string, err error) {
	if o.opts.StepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.StepTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			klog.Errorf("Step panic recovered: step=%s, err=%v", step.ID, r)
			text = ""
			err = domain.NewHardFailure(step.Tool, fmt.Errorf("panic: %v", r))
		}
	}()

	return invoker.Invoke(ctx, step)
}

func failedOutcome(step domain.PlanStep, err error, attempts int, d time.Duration) domain.ExecutionOutcome {
	step.Status = domain.StepFailed
	return domain.ExecutionOutcome{
		Step:     step,
		Err:      domain.ClassifyToolError(step.Tool, err),
		Attempts: attempts,
		Duration: d,
	}
}

// groupByResource 按主资源分组，保持首次出现顺序与组内生成顺序
func groupByResource(steps []domain.PlanStep) [][]domain.PlanStep {
	index := make(map[string]int)
	var groups [][]domain.PlanStep
	for _, step := range steps {
		key := step.Resource.Key()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], step)
	}
	return groups
}

// -----------------------------
// Pool Status
// -----------------------------
type PoolStatus struct {
	Capacity      int `json:"capacity"`
	ActiveWorkers int `json:"active_workers"`
	FreeWorkers   int `json:"free_workers"`
	Waiting       int `json:"waiting"`
}

// Status 协程池状态
func (o *Orchestrator) Status() *PoolStatus {
	return &PoolStatus{
		Capacity:      o.pool.Cap(),
		ActiveWorkers: o.pool.Running(),
		FreeWorkers:   o.pool.Free(),
		Waiting:       o.pool.Waiting(),
	}
}
