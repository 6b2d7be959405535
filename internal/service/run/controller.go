package run

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/weibaohui/goalagent/backend/internal/domain"
	"github.com/weibaohui/goalagent/backend/internal/eventbus"
	"github.com/weibaohui/goalagent/backend/internal/service/aggregator"
	"github.com/weibaohui/goalagent/backend/internal/service/orchestrator"
	"github.com/weibaohui/goalagent/backend/internal/service/statemachine"
	"k8s.io/klog/v2"
)

// Classifier 目标分类
type Classifier interface {
	Classify(ctx context.Context, goal string, resources []domain.Resource) (*domain.ClassificationResult, error)
}

// PlanBuilder 计划构建
type PlanBuilder interface {
	Build(classification *domain.ClassificationResult, goal string) []domain.PlanStep
}

// Executor 计划执行
type Executor interface {
	Execute(ctx context.Context, steps []domain.PlanStep, invoker orchestrator.Invoker, onProgress func(orchestrator.Progress)) []domain.ExecutionOutcome
}

// InvokerFactory 为每次运行创建工具调用器
type InvokerFactory func(req domain.RunRequest) orchestrator.Invoker

// Controller 运行控制器：持有运行状态机，串行化并取消并发提交
type Controller struct {
	classifier Classifier
	planner    PlanBuilder
	executor   Executor
	invokers   InvokerFactory
	bus        *eventbus.RunEventBus
	sm         *statemachine.RunStateMachine

	generation atomic.Uint64

	// pubMu 串行化"检查代次 + 发布事件"，被覆盖运行的事件不会晚于覆盖事件发布；先于 mu 加锁
	pubMu sync.Mutex

	mu      sync.Mutex
	state   domain.RunState
	answer  *domain.AggregatedAnswer
	current *Run
}

// NewController 创建运行控制器，bus 可以为 nil
func NewController(classifier Classifier, planner PlanBuilder, executor Executor, invokers InvokerFactory, bus *eventbus.RunEventBus) *Controller {
	return &Controller{
		classifier: classifier,
		planner:    planner,
		executor:   executor,
		invokers:   invokers,
		bus:        bus,
		sm:         statemachine.NewRunStateMachine(),
		state: domain.RunState{
			Phase:     domain.PhaseIdle,
			UpdatedAt: time.Now(),
		},
	}
}

// Submit 提交一次运行
// 校验失败时返回 *domain.ValidationError，状态不变；进行中的运行会被取消并覆盖
func (c *Controller) Submit(ctx context.Context, req domain.RunRequest) (*Run, error) {
	if err := req.Validate(); err != nil {
		klog.V(6).Infof("运行提交被拒绝: err=%v", err)
		return nil, err
	}

	var events []eventbus.RunEvent

	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	c.mu.Lock()
	if prev := c.current; prev != nil && c.state.InFlight() {
		prev.stop(domain.ErrRunSuperseded)
		c.generation.Add(1)
		if err := c.sm.Transition(c.state.Phase, domain.PhaseIdle, prev.ID); err == nil {
			c.setState(prev, domain.PhaseIdle, nil)
		}
		klog.V(6).Infof("运行被新的提交覆盖: runID=%s", prev.ID)
		events = append(events, eventbus.RunEvent{
			Type:    eventbus.RunSuperseded,
			RunID:   prev.ID,
			Request: prev.Request,
			State:   c.state,
			Err:     domain.ErrRunSuperseded,
		})
	}

	gen := c.generation.Add(1)
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &Run{
		ID:         uuid.New().String(),
		Request:    req,
		generation: gen,
		ctx:        runCtx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	if err := c.sm.Transition(c.state.Phase, domain.PhaseAnalyzing, r.ID); err != nil {
		c.mu.Unlock()
		cancel()
		return nil, err
	}
	c.current = r
	c.answer = nil
	c.setState(r, domain.PhaseAnalyzing, func(s *domain.RunState) {
		s.ProgressPercent = 0
		s.CurrentStepIndex = 0
		s.TotalSteps = 0
		s.Error = ""
	})
	events = append(events,
		eventbus.RunEvent{Type: eventbus.RunStarted, RunID: r.ID, Request: req, State: c.state},
		eventbus.RunEvent{Type: eventbus.RunPhaseChanged, RunID: r.ID, Request: req, State: c.state},
	)
	c.mu.Unlock()

	c.publish(events...)
	klog.V(6).Infof("运行已提交: runID=%s, generation=%d, resources=%d", r.ID, gen, len(req.Resources()))

	go c.execute(r)
	return r, nil
}

// execute 运行主流程：分析 -> 执行 -> 汇总
func (c *Controller) execute(r *Run) {
	defer close(r.done)
	defer r.cancel()

	req := r.Request
	resources := req.Resources()

	classification, err := c.classifier.Classify(r.ctx, req.Goal, resources)
	if err != nil {
		klog.Errorf("目标分类失败: runID=%s, err=%v", r.ID, err)
		ok := c.advance(r, domain.PhaseFailed, func(s *domain.RunState) {
			s.Error = err.Error()
		}, eventbus.RunFailed, nil, err)
		r.finish(nil, c.resultErr(r, ok, err))
		return
	}

	steps := c.planner.Build(classification, req.Goal)
	if !c.advance(r, domain.PhaseExecuting, func(s *domain.RunState) {
		s.TotalSteps = len(steps)
	}, eventbus.RunPhaseChanged, nil, nil) {
		r.finish(nil, c.resultErr(r, false, nil))
		return
	}

	outcomes := c.executor.Execute(r.ctx, steps, c.invokers(req), func(p orchestrator.Progress) {
		c.progress(r, p)
	})
	answer := aggregator.Aggregate(classification, outcomes)

	ok := c.advance(r, domain.PhaseCompleted, func(s *domain.RunState) {
		s.ProgressPercent = 100
		s.CurrentStepIndex = len(steps)
	}, eventbus.RunCompleted, answer, nil)
	if !ok {
		r.finish(nil, c.resultErr(r, false, nil))
		return
	}
	klog.V(6).Infof("运行完成: runID=%s, steps=%d, errors=%d", r.ID, len(steps), len(answer.Errors))
	r.finish(answer, nil)
}

// advance 当前代次仍有效时迁移阶段并发布事件；过期运行的写入被丢弃
func (c *Controller) advance(r *Run, to domain.Phase, mutate func(*domain.RunState), eventType eventbus.RunEventType, answer *domain.AggregatedAnswer, runErr error) bool {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	c.mu.Lock()
	if !c.isCurrent(r) {
		c.mu.Unlock()
		klog.V(6).Infof("丢弃过期运行的状态写入: runID=%s, to=%s", r.ID, to)
		return false
	}
	if err := c.sm.Transition(c.state.Phase, to, r.ID); err != nil {
		c.mu.Unlock()
		klog.Errorf("运行阶段迁移失败: runID=%s, err=%v", r.ID, err)
		return false
	}
	c.setState(r, to, mutate)
	if answer != nil {
		c.answer = answer
	}
	event := eventbus.RunEvent{
		Type:    eventType,
		RunID:   r.ID,
		Request: r.Request,
		State:   c.state,
		Answer:  answer,
		Err:     runErr,
	}
	c.mu.Unlock()

	c.publish(event)
	return true
}

// progress 进度只增不减
func (c *Controller) progress(r *Run, p orchestrator.Progress) {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	c.mu.Lock()
	if !c.isCurrent(r) || c.state.Phase != domain.PhaseExecuting {
		c.mu.Unlock()
		return
	}
	if p.Percent < c.state.ProgressPercent {
		c.mu.Unlock()
		return
	}
	c.setState(r, domain.PhaseExecuting, func(s *domain.RunState) {
		s.ProgressPercent = p.Percent
		s.CurrentStepIndex = p.Done
		s.TotalSteps = p.Total
	})
	event := eventbus.RunEvent{Type: eventbus.RunProgress, RunID: r.ID, Request: r.Request, State: c.state}
	c.mu.Unlock()

	c.publish(event)
}

// Cancel 取消进行中的运行，状态回到 idle
func (c *Controller) Cancel() error {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	c.mu.Lock()
	r := c.current
	if r == nil || !c.state.InFlight() {
		c.mu.Unlock()
		return domain.ErrNoActiveRun
	}
	r.stop(domain.ErrRunCanceled)
	c.generation.Add(1)
	if err := c.sm.Transition(c.state.Phase, domain.PhaseIdle, r.ID); err != nil {
		c.mu.Unlock()
		return err
	}
	c.setState(r, domain.PhaseIdle, nil)
	event := eventbus.RunEvent{
		Type:    eventbus.RunPhaseChanged,
		RunID:   r.ID,
		Request: r.Request,
		State:   c.state,
		Err:     domain.ErrRunCanceled,
	}
	c.mu.Unlock()

	klog.V(6).Infof("运行已取消: runID=%s", r.ID)
	c.publish(event)
	return nil
}

// State 当前状态快照
func (c *Controller) State() domain.RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Answer 最近一次完成运行的答案，发布后不再修改
func (c *Controller) Answer() *domain.AggregatedAnswer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answer
}

// Current 最近一次提交的运行
func (c *Controller) Current() *Run {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Shutdown 取消进行中的运行
func (c *Controller) Shutdown() {
	if err := c.Cancel(); err != nil && !errors.Is(err, domain.ErrNoActiveRun) {
		klog.Warningf("关闭时取消运行失败: err=%v", err)
	}
}

// isCurrent 调用方需持有 c.mu
func (c *Controller) isCurrent(r *Run) bool {
	return c.current == r && r.generation == c.generation.Load()
}

// setState 调用方需持有 c.mu
func (c *Controller) setState(r *Run, phase domain.Phase, mutate func(*domain.RunState)) {
	c.state.RunID = r.ID
	c.state.Generation = r.generation
	c.state.Phase = phase
	if mutate != nil {
		mutate(&c.state)
	}
	c.state.UpdatedAt = time.Now()
}

// resultErr 过期运行返回其被停止的原因
func (c *Controller) resultErr(r *Run, applied bool, err error) error {
	if applied {
		return err
	}
	if reason := r.stopReason(); reason != nil {
		return reason
	}
	if err != nil {
		return err
	}
	return domain.ErrRunSuperseded
}

func (c *Controller) publish(events ...eventbus.RunEvent) {
	for _, event := range events {
		if err := eventbus.PublishRun(context.Background(), c.bus, event); err != nil {
			klog.Warningf("运行事件处理失败: type=%s, runID=%s, err=%v", event.Type, event.RunID, err)
		}
	}
}
