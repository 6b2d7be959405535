package domain

import "time"

// ClassificationSource 分类结果来源
type ClassificationSource string

const (
	SourceAnalyzer  ClassificationSource = "analyzer"
	SourceHeuristic ClassificationSource = "heuristic"
)

// ClassificationResult 目标分类结果
// Resources 始终是输入资源的子集；Tools 为空时使用 ToolNone 占位
type ClassificationResult struct {
	Reasoning string               `json:"reasoning"`
	Tools     []ToolKind           `json:"tools"`
	Resources []Resource           `json:"resources"`
	Source    ClassificationSource `json:"source"`
}

// StepStatus 计划步骤状态
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// PlanStep 一次针对单个资源的工具调用
type PlanStep struct {
	ID             string     `json:"id"`
	Index          int        `json:"index"`
	Resource       Resource   `json:"resource"`
	Peer           *Resource  `json:"peer,omitempty"` // 仅影响分析使用：对比的第二个资源
	Tool           ToolKind   `json:"tool"`
	Instruction    string     `json:"instruction"`
	Label          string     `json:"label,omitempty"` // 拆分后的单条搜索指令，未拆分时为空
	TargetLanguage string     `json:"target_language,omitempty"`
	Status         StepStatus `json:"status"`
}

// SectionTitle 答案分节标题；拆分的搜索步骤带上对应的指令
func (s PlanStep) SectionTitle() string {
	if s.Label == "" {
		return s.Tool.Title()
	}
	return s.Tool.Title() + " (" + s.Label + ")"
}

// ExecutionOutcome 单个步骤的执行结果，每个步骤必有一条
type ExecutionOutcome struct {
	Step     PlanStep      `json:"step"`
	Text     string        `json:"text,omitempty"`
	Err      *ToolError    `json:"error,omitempty"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
}

// Succeeded 是否执行成功
func (o ExecutionOutcome) Succeeded() bool {
	return o.Err == nil
}
