package classifier

import (
	"strings"

	"github.com/weibaohui/goalagent/backend/internal/domain"
)

// Rule 本地分类规则：按表顺序求值，首个命中的规则决定工具
type Rule struct {
	Name  string
	Tool  domain.ToolKind
	Match func(goal string, resourceCount int) bool
}

// defaultRules 优先级即顺序，修改顺序会改变多关键词目标的裁决结果
var defaultRules = []Rule{
	{
		Name: "video-summary",
		Tool: domain.ToolVideoSummarizer,
		Match: func(goal string, _ int) bool {
			return strings.Contains(goal, "video") && strings.Contains(goal, "summar")
		},
	},
	{
		Name: "code",
		Tool: domain.ToolCodeAssistant,
		Match: func(goal string, _ int) bool {
			return containsAny(goal, "code", "convert", "refactor")
		},
	},
	{
		Name: "chart",
		Tool: domain.ToolChartBuilder,
		Match: func(goal string, _ int) bool {
			return containsAny(goal, "chart", "graph")
		},
	},
	{
		Name: "impact",
		Tool: domain.ToolImpactAnalyzer,
		Match: func(goal string, n int) bool {
			return n >= domain.ToolImpactAnalyzer.MinResources() && strings.Contains(goal, "impact")
		},
	},
	{
		Name: "test",
		Tool: domain.ToolTestSupport,
		Match: func(goal string, _ int) bool {
			return containsAny(goal, "test strategy", "test plan", "test case", "testing")
		},
	},
	{
		Name: "image",
		Tool: domain.ToolImageInsights,
		Match: func(goal string, _ int) bool {
			return containsAny(goal, "image", "picture", "diagram", "screenshot")
		},
	},
	{
		Name: "summary",
		Tool: domain.ToolSearch,
		Match: func(goal string, _ int) bool {
			return IsSummaryGoal(goal)
		},
	},
}

// Rules 返回本地规则表的副本
func Rules() []Rule {
	out := make([]Rule, len(defaultRules))
	copy(out, defaultRules)
	return out
}

// IsSummaryGoal 目标是否要求摘要
func IsSummaryGoal(goal string) bool {
	return strings.Contains(strings.ToLower(goal), "summar")
}

// MatchRule 返回首个命中的规则；均未命中时 ok 为 false
func MatchRule(goal string, resourceCount int) (Rule, bool) {
	lower := strings.ToLower(goal)
	for _, r := range defaultRules {
		if r.Match(lower, resourceCount) {
			return r, true
		}
	}
	return Rule{}, false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
