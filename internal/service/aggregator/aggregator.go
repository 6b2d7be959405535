package aggregator

import (
	"sort"
	"strings"

	"github.com/weibaohui/goalagent/backend/internal/domain"
	"k8s.io/klog/v2"
)

const (
	// SectionDelimiter 答案分节分隔符
	SectionDelimiter = "\n\n---\n\n"
	// NoActionPlaceholder 资源没有任何成功结果时的占位文本
	NoActionPlaceholder = "No applicable action was performed for this page."
)

// Aggregate 把步骤结果汇总为最终答案，纯函数，不会失败
// 答案顺序等于资源选择顺序，与完成顺序无关
func Aggregate(classification *domain.ClassificationResult, outcomes []domain.ExecutionOutcome) *domain.AggregatedAnswer {
	answer := &domain.AggregatedAnswer{}
	if classification == nil {
		return answer
	}
	answer.Reasoning = classification.Reasoning
	answer.Resources = append([]domain.Resource(nil), classification.Resources...)

	ordered := make([]domain.ExecutionOutcome, len(outcomes))
	copy(ordered, outcomes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Step.Index < ordered[j].Step.Index
	})

	primary := make(map[string]bool)
	peerOnly := make(map[string]bool)
	labels := make(map[string]string)
	for _, out := range ordered {
		primary[out.Step.Resource.Key()] = true
		if out.Step.Peer != nil {
			peerOnly[out.Step.Peer.Key()] = true
			labels[out.Step.Resource.Key()] = out.Step.Resource.Page + " ↔ " + out.Step.Peer.Page
		}
	}

	used := make(map[domain.ToolKind]bool)
	for _, res := range classification.Resources {
		key := res.Key()
		if peerOnly[key] && !primary[key] {
			continue
		}

		var sections []string
		var errLines []string
		for _, out := range ordered {
			if out.Step.Resource != res {
				continue
			}
			if out.Succeeded() {
				sections = append(sections, out.Step.SectionTitle()+":\n"+out.Text)
				used[out.Step.Tool] = true
				continue
			}
			if out.Err.Soft() {
				continue
			}
			errLines = append(errLines, "- "+out.Step.SectionTitle()+": "+out.Err.Message)
			answer.Errors = append(answer.Errors, domain.AnswerError{
				Resource: res,
				Tool:     out.Step.Tool,
				Kind:     out.Err.Kind,
				Message:  out.Err.Message,
			})
		}
		if len(errLines) > 0 {
			sections = append(sections, "Errors:\n"+strings.Join(errLines, "\n"))
		}

		text := NoActionPlaceholder
		if len(sections) > 0 {
			text = strings.Join(sections, SectionDelimiter)
		}
		label := labels[key]
		if label == "" {
			label = res.Page
		}
		answer.Answers = append(answer.Answers, domain.ResourceAnswer{Resource: res, Label: label, Text: text})
	}

	for _, tool := range domain.AllTools() {
		if used[tool] {
			answer.ToolsUsed = append(answer.ToolsUsed, tool)
		}
	}

	klog.V(6).Infof("答案汇总完成: answers=%d, errors=%d, toolsUsed=%v", len(answer.Answers), len(answer.Errors), answer.ToolsUsed)
	return answer
}
