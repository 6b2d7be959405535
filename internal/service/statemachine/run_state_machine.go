package statemachine

import (
	"fmt"

	"github.com/weibaohui/goalagent/backend/internal/domain"
	"k8s.io/klog/v2"
)

// RunTransition 定义运行阶段迁移
type RunTransition struct {
	From domain.Phase
	To   domain.Phase
}

// RunStateMachine 运行阶段状态机
type RunStateMachine struct {
	// 定义所有合法的阶段迁移
	allowedTransitions map[RunTransition]bool
}

// NewRunStateMachine 创建新的运行状态机
func NewRunStateMachine() *RunStateMachine {
	sm := &RunStateMachine{
		allowedTransitions: make(map[RunTransition]bool),
	}

	// idle -> analyzing -> executing -> completed
	// analyzing -> failed（分析服务无法降级）
	// analyzing/executing -> idle（取消或被新提交覆盖）
	// completed/failed -> analyzing（新提交）
	// executing 不会进入 failed：部分失败仍然是 completed
	transitions := []RunTransition{
		// 正常执行流程
		{domain.PhaseIdle, domain.PhaseAnalyzing},
		{domain.PhaseAnalyzing, domain.PhaseExecuting},
		{domain.PhaseExecuting, domain.PhaseCompleted},

		// 分类失败
		{domain.PhaseAnalyzing, domain.PhaseFailed},

		// 取消 / 覆盖
		{domain.PhaseAnalyzing, domain.PhaseIdle},
		{domain.PhaseExecuting, domain.PhaseIdle},

		// 重新提交
		{domain.PhaseCompleted, domain.PhaseAnalyzing},
		{domain.PhaseFailed, domain.PhaseAnalyzing},
	}

	for _, t := range transitions {
		sm.allowedTransitions[t] = true
	}

	return sm
}

// CanTransition 检查阶段迁移是否合法
func (sm *RunStateMachine) CanTransition(from, to domain.Phase) bool {
	if from == to {
		return false
	}
	return sm.allowedTransitions[RunTransition{From: from, To: to}]
}

// ValidateTransition 验证阶段迁移并返回错误
func (sm *RunStateMachine) ValidateTransition(from, to domain.Phase) error {
	if !sm.CanTransition(from, to) {
		return &InvalidStateTransitionError{
			From: string(from),
			To:   string(to),
		}
	}
	return nil
}

// Transition 执行阶段迁移（带日志）
func (sm *RunStateMachine) Transition(from, to domain.Phase, runID string) error {
	if err := sm.ValidateTransition(from, to); err != nil {
		klog.V(6).Infof("运行阶段迁移被拒绝: runID=%s, %s -> %s, error=%v", runID, from, to, err)
		return err
	}

	klog.V(6).Infof("运行阶段迁移成功: runID=%s, %s -> %s", runID, from, to)
	return nil
}

// InvalidStateTransitionError 无效的阶段迁移错误
type InvalidStateTransitionError struct {
	From string
	To   string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid run phase transition: %s -> %s", e.From, e.To)
}

// IsTerminal 判断阶段是否为本次运行的终态
func IsTerminal(phase domain.Phase) bool {
	return phase == domain.PhaseCompleted || phase == domain.PhaseFailed
}

// IsInFlight 判断运行是否在进行中
func IsInFlight(phase domain.Phase) bool {
	return phase == domain.PhaseAnalyzing || phase == domain.PhaseExecuting
}
