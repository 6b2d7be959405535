package domain

import "strings"

// ToolKind 后端分析工具类型
type ToolKind string

const (
	ToolSearch          ToolKind = "search"           // AI 搜索
	ToolCodeAssistant   ToolKind = "code_assistant"   // 代码助手
	ToolVideoSummarizer ToolKind = "video_summarizer" // 视频摘要
	ToolChartBuilder    ToolKind = "chart_builder"    // 图表构建
	ToolImpactAnalyzer  ToolKind = "impact_analyzer"  // 影响分析
	ToolTestSupport     ToolKind = "test_support"     // 测试策略
	ToolImageInsights   ToolKind = "image_insights"   // 图片洞察

	// ToolNone 没有任何工具适用时的占位
	ToolNone ToolKind = "none"
)

var allTools = []ToolKind{
	ToolSearch,
	ToolCodeAssistant,
	ToolVideoSummarizer,
	ToolChartBuilder,
	ToolImpactAnalyzer,
	ToolTestSupport,
	ToolImageInsights,
}

var toolTitles = map[ToolKind]string{
	ToolSearch:          "AI Powered Search",
	ToolCodeAssistant:   "Code Assistant",
	ToolVideoSummarizer: "Video Analysis",
	ToolChartBuilder:    "Chart Builder",
	ToolImpactAnalyzer:  "Impact Analysis",
	ToolTestSupport:     "Test Strategy",
	ToolImageInsights:   "Image Insights",
	ToolNone:            "No Action",
}

var toolAliases = map[string]ToolKind{
	"search":          ToolSearch,
	"aisearch":        ToolSearch,
	"code":            ToolCodeAssistant,
	"codeassistant":   ToolCodeAssistant,
	"video":           ToolVideoSummarizer,
	"videosummarizer": ToolVideoSummarizer,
	"chart":           ToolChartBuilder,
	"chartbuilder":    ToolChartBuilder,
	"impact":          ToolImpactAnalyzer,
	"impactanalyzer":  ToolImpactAnalyzer,
	"test":            ToolTestSupport,
	"testsupport":     ToolTestSupport,
	"image":           ToolImageInsights,
	"imageinsights":   ToolImageInsights,
	"none":            ToolNone,
	"noaction":        ToolNone,
}

// AllTools 按规范顺序返回全部工具（不含 ToolNone）
func AllTools() []ToolKind {
	out := make([]ToolKind, len(allTools))
	copy(out, allTools)
	return out
}

// ParseToolKind 宽松解析工具标识，忽略大小写以及 - _ 空格
func ParseToolKind(s string) (ToolKind, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "", "_", "", " ", "").Replace(key)
	kind, ok := toolAliases[key]
	return kind, ok
}

// Title 结果分节标题
func (k ToolKind) Title() string {
	if t, ok := toolTitles[k]; ok {
		return t
	}
	return string(k)
}

// MinResources 工具所需的最少资源数
func (k ToolKind) MinResources() int {
	if k == ToolImpactAnalyzer {
		return 2
	}
	return 1
}

// Order 规范顺序下标，未知工具排在最后
func (k ToolKind) Order() int {
	for i, t := range allTools {
		if t == k {
			return i
		}
	}
	return len(allTools)
}
