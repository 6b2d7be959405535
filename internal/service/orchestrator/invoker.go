package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/weibaohui/goalagent/backend/internal/domain"
	"github.com/weibaohui/goalagent/backend/internal/pkg/toolclient"
	"github.com/weibaohui/goalagent/backend/internal/utils"
	"k8s.io/klog/v2"
)

// ToolBackend 工具后端，由 toolclient.Client 实现
type ToolBackend interface {
	Search(ctx context.Context, req toolclient.SearchRequest) (*toolclient.SearchResponse, error)
	CodeAssistant(ctx context.Context, req toolclient.CodeRequest) (*toolclient.CodeResponse, error)
	VideoSummarizer(ctx context.Context, req toolclient.VideoRequest) (*toolclient.VideoResponse, error)
	ImpactAnalyzer(ctx context.Context, req toolclient.ImpactRequest) (*toolclient.ImpactResponse, error)
	ChartBuilder(ctx context.Context, req toolclient.ChartRequest) (*toolclient.ChartResponse, error)
	TestSupport(ctx context.Context, req toolclient.TestRequest) (*toolclient.TestResponse, error)
	ImageInsights(ctx context.Context, req toolclient.ImageRequest) (*toolclient.ImageResponse, error)
	ListImages(ctx context.Context, spaceKey, pageTitle string) ([]string, error)
}

var chartTypes = []string{"bar", "line", "pie", "scatter", "area"}

// ToolInvoker 把计划步骤翻译成工具后端调用，并把结果渲染为纯文本
type ToolInvoker struct {
	backend ToolBackend
	goal    string
}

// NewToolInvoker 创建工具调用器；goal 用于识别图表类型
func NewToolInvoker(backend ToolBackend, goal string) *ToolInvoker {
	return &ToolInvoker{backend: backend, goal: goal}
}

// Invoke 执行单个步骤
func (t *ToolInvoker) Invoke(ctx context.Context, step domain.PlanStep) (string, error) {
	res := step.Resource
	switch step.Tool {
	case domain.ToolSearch:
		resp, err := t.backend.Search(ctx, toolclient.SearchRequest{
			SpaceKey:   res.Workspace,
			PageTitles: []string{res.Page},
			Query:      step.Instruction,
		})
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(resp.Response), nil

	case domain.ToolCodeAssistant:
		resp, err := t.backend.CodeAssistant(ctx, toolclient.CodeRequest{
			SpaceKey:       res.Workspace,
			PageTitle:      res.Page,
			Instruction:    step.Instruction,
			TargetLanguage: step.TargetLanguage,
		})
		if err != nil {
			return "", err
		}
		code := utils.StripCodeFence(resp.Best(step.TargetLanguage))
		if code != "" {
			return code, nil
		}
		// 只有说明没有代码时返回说明
		if summary := strings.TrimSpace(resp.Summary); summary != "" {
			return summary, nil
		}
		return "", domain.NewSoftFailure(step.Tool, "no code found on page")

	case domain.ToolVideoSummarizer:
		resp, err := t.backend.VideoSummarizer(ctx, toolclient.VideoRequest{
			SpaceKey:  res.Workspace,
			PageTitle: res.Page,
		})
		if err != nil {
			return "", err
		}
		return renderVideo(resp), nil

	case domain.ToolImpactAnalyzer:
		if step.Peer == nil {
			return "", domain.NewHardFailure(step.Tool, fmt.Errorf("impact analysis needs two pages"))
		}
		resp, err := t.backend.ImpactAnalyzer(ctx, toolclient.ImpactRequest{
			SpaceKey:     res.Workspace,
			OldPageTitle: res.Page,
			NewPageTitle: step.Peer.Page,
			Question:     step.Instruction,
		})
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(resp.ImpactAnalysis), nil

	case domain.ToolChartBuilder:
		images, err := t.images(ctx, step)
		if err != nil {
			return "", err
		}
		resp, err := t.backend.ChartBuilder(ctx, toolclient.ChartRequest{
			SpaceKey:  res.Workspace,
			PageTitle: res.Page,
			ImageURL:  images[0],
			ChartType: DetectChartType(t.goal),
		})
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(resp.ChartData), nil

	case domain.ToolTestSupport:
		resp, err := t.backend.TestSupport(ctx, toolclient.TestRequest{
			SpaceKey:      res.Workspace,
			CodePageTitle: res.Page,
			Question:      step.Instruction,
		})
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(resp.TestStrategy), nil

	case domain.ToolImageInsights:
		images, err := t.images(ctx, step)
		if err != nil {
			return "", err
		}
		return t.imageInsights(ctx, step, images)
	}

	return "", domain.NewSoftFailure(step.Tool, "no applicable action")
}

// images 页面图片列表，没有图片时为软失败
func (t *ToolInvoker) images(ctx context.Context, step domain.PlanStep) ([]string, error) {
	images, err := t.backend.ListImages(ctx, step.Resource.Workspace, step.Resource.Page)
	if err != nil {
		return nil, domain.ClassifyToolError(step.Tool, err)
	}
	if len(images) == 0 {
		return nil, domain.NewSoftFailure(step.Tool, "no images found on page")
	}
	return images, nil
}

// imageInsights 逐张分析图片，部分失败时保留成功部分
func (t *ToolInvoker) imageInsights(ctx context.Context, step domain.PlanStep, images []string) (string, error) {
	var sections []string
	var firstErr error
	for i, img := range images {
		resp, err := t.backend.ImageInsights(ctx, toolclient.ImageRequest{
			SpaceKey:  step.Resource.Workspace,
			PageTitle: step.Resource.Page,
			ImageURL:  img,
		})
		if err != nil {
			klog.V(6).Infof("图片分析失败: step=%s, image=%s, err=%v", step.ID, img, err)
			if firstErr == nil {
				firstErr = err
			}
			if ctx.Err() != nil {
				break
			}
			continue
		}
		sections = append(sections, fmt.Sprintf("Image %d (%s):\n%s", i+1, img, strings.TrimSpace(resp.Summary)))
	}
	if len(sections) == 0 {
		return "", firstErr
	}
	return strings.Join(sections, "\n\n"), nil
}

func renderVideo(resp *toolclient.VideoResponse) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(resp.Summary))
	if len(resp.Quotes) > 0 {
		b.WriteString("\n\nKey Quotes:")
		for _, q := range resp.Quotes {
			b.WriteString("\n- " + strings.TrimSpace(q))
		}
	}
	if len(resp.Timestamps) > 0 {
		b.WriteString("\n\nTimestamps:")
		for _, ts := range resp.Timestamps {
			b.WriteString("\n- " + strings.TrimSpace(ts))
		}
	}
	return b.String()
}

// DetectChartType 从目标中识别图表类型，默认柱状图
func DetectChartType(goal string) string {
	lower := strings.ToLower(goal)
	for _, ct := range chartTypes {
		if strings.Contains(lower, ct) {
			return ct
		}
	}
	return "bar"
}
