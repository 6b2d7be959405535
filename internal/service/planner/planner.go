package planner

import (
	"fmt"
	"strings"

	"github.com/weibaohui/goalagent/backend/internal/domain"
	"github.com/weibaohui/goalagent/backend/internal/service/classifier"
	"k8s.io/klog/v2"
)

const (
	codeDirective   = "Return only the raw code. Do not include explanations or markdown code fences."
	directDirective = "Answer directly. Do not add meta-commentary about the question or the process."
)

// Planner 将分类结果展开为有序的执行步骤
type Planner struct {
	splitInstructions bool
}

// NewPlanner 创建计划构建器
// splitInstructions 为 true 时，搜索步骤按句拆分为多个步骤
func NewPlanner(splitInstructions bool) *Planner {
	return &Planner{splitInstructions: splitInstructions}
}

// Build 生成执行计划，纯函数，不会失败
// 按资源顺序遍历，每个资源对每个适用的工具生成一个步骤；影响分析只在第一个资源上生成一次
func (p *Planner) Build(classification *domain.ClassificationResult, goal string) []domain.PlanStep {
	if classification == nil {
		return nil
	}
	resources := classification.Resources
	var steps []domain.PlanStep

	emit := func(step domain.PlanStep) {
		step.Index = len(steps)
		step.ID = fmt.Sprintf("step-%d", step.Index+1)
		step.Status = domain.StepPending
		steps = append(steps, step)
	}

	impactEmitted := false
	for i, res := range resources {
		for _, tool := range classification.Tools {
			switch tool {
			case domain.ToolNone:
				continue
			case domain.ToolImpactAnalyzer:
				if impactEmitted || i != 0 || len(resources) < tool.MinResources() {
					continue
				}
				peer := resources[1]
				emit(domain.PlanStep{
					Resource:    res,
					Peer:        &peer,
					Tool:        tool,
					Instruction: Instruction(tool, goal),
				})
				impactEmitted = true
			case domain.ToolSearch:
				instructions := p.searchInstructions(goal)
				for _, instr := range instructions {
					step := domain.PlanStep{
						Resource:    res,
						Tool:        tool,
						Instruction: Instruction(tool, instr),
					}
					if len(instructions) > 1 {
						step.Label = instr
					}
					emit(step)
				}
			case domain.ToolCodeAssistant:
				emit(domain.PlanStep{
					Resource:       res,
					Tool:           tool,
					Instruction:    Instruction(tool, goal),
					TargetLanguage: DetectTargetLanguage(goal),
				})
			default:
				emit(domain.PlanStep{
					Resource:    res,
					Tool:        tool,
					Instruction: Instruction(tool, goal),
				})
			}
		}
	}

	klog.V(6).Infof("执行计划生成完成: steps=%d, resources=%d, tools=%v", len(steps), len(resources), classification.Tools)
	return steps
}

func (p *Planner) searchInstructions(goal string) []string {
	if !p.splitInstructions {
		return []string{goal}
	}
	parts := SplitInstructions(goal)
	if len(parts) == 0 {
		return []string{goal}
	}
	return parts
}

// Instruction 目标加上工具对应的指令后缀
func Instruction(tool domain.ToolKind, goal string) string {
	goal = strings.TrimSpace(goal)
	switch tool {
	case domain.ToolCodeAssistant:
		return goal + "\n\n" + codeDirective
	case domain.ToolImpactAnalyzer:
		return goal + "\n\n" + directDirective
	case domain.ToolSearch:
		if classifier.IsSummaryGoal(goal) {
			return goal + "\n\n" + directDirective
		}
	}
	return goal
}

// SplitInstructions 按换行与句号拆分指令，去除空白项
func SplitInstructions(input string) []string {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == '\n' || r == '\r' || r == '.'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
