package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/weibaohui/goalagent/backend/internal/domain"
	"github.com/weibaohui/goalagent/backend/internal/pkg/llm"
	"k8s.io/klog/v2"
)

// Analyzer 外部目标分析服务
type Analyzer interface {
	Analyze(ctx context.Context, req llm.AnalysisRequest) (*llm.AnalysisResponse, error)
}

// Classifier 两级目标分类器：外部分析服务 + 本地规则
type Classifier struct {
	analyzer      Analyzer
	localFallback bool
}

// NewClassifier 创建分类器，analyzer 可以为 nil
func NewClassifier(analyzer Analyzer, localFallback bool) *Classifier {
	return &Classifier{
		analyzer:      analyzer,
		localFallback: localFallback,
	}
}

// Classify 将目标分类为工具计划
// 只有外部分析服务出现无法降级的错误时才返回 error
func (c *Classifier) Classify(ctx context.Context, goal string, resources []domain.Resource) (*domain.ClassificationResult, error) {
	if c.analyzer != nil {
		result, err := c.classifyWithAnalyzer(ctx, goal, resources)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, domain.ErrClassificationUnavailable) || !c.localFallback {
			klog.Errorf("目标分析失败且无法降级: err=%v", err)
			return nil, err
		}
		klog.Warningf("目标分析服务不可用，降级为本地规则: err=%v", err)
	}
	return Heuristic(goal, resources), nil
}

func (c *Classifier) classifyWithAnalyzer(ctx context.Context, goal string, resources []domain.Resource) (*domain.ClassificationResult, error) {
	titles := make([]string, 0, len(resources))
	for _, r := range resources {
		titles = append(titles, r.Page)
	}

	resp, err := c.analyzer.Analyze(ctx, llm.AnalysisRequest{Goal: goal, Resources: titles})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: nil analyzer response", domain.ErrClassificationUnavailable)
	}

	tools := parseTools(resp.Tools)
	if len(tools) == 0 {
		tools = []domain.ToolKind{domain.ToolNone}
	}
	selected := narrowResources(resources, resp.Resources)

	reasoning := strings.TrimSpace(resp.Reasoning)
	if reasoning == "" {
		reasoning = "Analysis complete."
	}

	klog.V(6).Infof("目标分析完成: source=analyzer, tools=%v, resources=%d/%d", tools, len(selected), len(resources))
	return &domain.ClassificationResult{
		Reasoning: reasoning,
		Tools:     tools,
		Resources: selected,
		Source:    domain.SourceAnalyzer,
	}, nil
}

// Heuristic 本地规则分类，始终返回结果
func Heuristic(goal string, resources []domain.Resource) *domain.ClassificationResult {
	selected := make([]domain.Resource, len(resources))
	copy(selected, resources)

	rule, ok := MatchRule(goal, len(resources))
	if !ok {
		klog.V(6).Infof("目标分析完成: source=heuristic, rule=default, tool=%s", domain.ToolSearch)
		return &domain.ClassificationResult{
			Reasoning: "No specific tool matched the goal; searching the selected pages with the full goal as the query.",
			Tools:     []domain.ToolKind{domain.ToolSearch},
			Resources: selected,
			Source:    domain.SourceHeuristic,
		}
	}

	klog.V(6).Infof("目标分析完成: source=heuristic, rule=%s, tool=%s", rule.Name, rule.Tool)
	return &domain.ClassificationResult{
		Reasoning: fmt.Sprintf("The goal matched the %q rule, so %s will be used on %d selected page(s).", rule.Name, rule.Tool.Title(), len(selected)),
		Tools:     []domain.ToolKind{rule.Tool},
		Resources: selected,
		Source:    domain.SourceHeuristic,
	}
}

// parseTools 解析工具标识，丢弃未知项并去重，保留顺序
func parseTools(names []string) []domain.ToolKind {
	seen := make(map[domain.ToolKind]struct{}, len(names))
	var tools []domain.ToolKind
	for _, name := range names {
		kind, ok := domain.ParseToolKind(name)
		if !ok {
			klog.V(6).Infof("忽略未知工具标识: %s", name)
			continue
		}
		if kind == domain.ToolNone {
			continue
		}
		if _, dup := seen[kind]; dup {
			continue
		}
		seen[kind] = struct{}{}
		tools = append(tools, kind)
	}
	return tools
}

// narrowResources 按外部分析结果收窄资源，结果总是输入的子集且保持输入顺序
// 收窄后为空时退回完整输入
func narrowResources(input []domain.Resource, titles []string) []domain.Resource {
	all := make([]domain.Resource, len(input))
	copy(all, input)
	if len(titles) == 0 {
		return all
	}

	wanted := make(map[string]struct{}, len(titles))
	for _, t := range titles {
		wanted[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	var selected []domain.Resource
	for _, r := range input {
		if _, ok := wanted[strings.ToLower(r.Page)]; ok {
			selected = append(selected, r)
		}
	}
	if len(selected) == 0 {
		return all
	}
	return selected
}
