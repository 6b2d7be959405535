package domain

import (
	"strings"
	"time"
)

// RunRequest 一次运行的不可变输入
type RunRequest struct {
	Goal      string   `json:"goal"`
	Workspace string   `json:"space_key"`
	Pages     []string `json:"page_titles"`
}

// Resources 规范化后的资源集合
func (r RunRequest) Resources() []Resource {
	return NormalizeResources(r.Workspace, r.Pages)
}

// Validate 校验提交参数
func (r RunRequest) Validate() error {
	if strings.TrimSpace(r.Goal) == "" {
		return &ValidationError{Field: "goal", Message: "goal must not be empty"}
	}
	if strings.TrimSpace(r.Workspace) == "" {
		return &ValidationError{Field: "space_key", Message: "a space must be selected"}
	}
	if len(r.Resources()) == 0 {
		return &ValidationError{Field: "page_titles", Message: "at least one page must be selected"}
	}
	return nil
}

// Phase 运行阶段
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseAnalyzing Phase = "analyzing"
	PhaseExecuting Phase = "executing"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
)

// RunState 运行状态快照
type RunState struct {
	RunID            string    `json:"run_id,omitempty"`
	Generation       uint64    `json:"generation"`
	Phase            Phase     `json:"phase"`
	ProgressPercent  int       `json:"progress_percent"`
	CurrentStepIndex int       `json:"current_step_index"`
	TotalSteps       int       `json:"total_steps"`
	Error            string    `json:"error,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// InFlight 是否处于分析或执行中
func (s RunState) InFlight() bool {
	return s.Phase == PhaseAnalyzing || s.Phase == PhaseExecuting
}
