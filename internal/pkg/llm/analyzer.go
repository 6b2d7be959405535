package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/weibaohui/goalagent/backend/config"
	"github.com/weibaohui/goalagent/backend/internal/domain"
	"github.com/weibaohui/goalagent/backend/internal/utils"
	"k8s.io/klog/v2"
)

// ErrAnalyzerMisconfigured 分析服务配置错误，不能降级
var ErrAnalyzerMisconfigured = errors.New("goal analyzer misconfigured")

const analyzerSystemPrompt = `You are the planner of a documentation assistant.
Given a user goal and the selected pages, decide which tools answer the goal.
Allowed tools: search, code_assistant, video_summarizer, chart_builder, impact_analyzer, test_support, image_insights.
impact_analyzer compares exactly two pages.
Reply with JSON only, no prose:
{"reasoning": "<one short paragraph>", "tools": ["<tool>", ...], "resources": ["<page title>", ...]}
"resources" must only contain titles from the selected pages.`

// AnalysisRequest 目标分析请求
type AnalysisRequest struct {
	Goal      string   `json:"goal"`
	Resources []string `json:"resources"`
}

// AnalysisResponse 目标分析结果
type AnalysisResponse struct {
	Reasoning string   `json:"reasoning"`
	Tools     []string `json:"tools"`
	Resources []string `json:"resources"`
}

// GoalAnalyzer 基于 Eino ChatModel 的目标分析服务
type GoalAnalyzer struct {
	cfg config.LLMConfig

	once      sync.Once
	chatModel model.BaseChatModel
	initErr   error
}

// NewGoalAnalyzer 创建目标分析服务
// 未配置 API Key 时返回 nil，调用方只使用本地规则分类
func NewGoalAnalyzer(cfg *config.Config) *GoalAnalyzer {
	if cfg == nil || strings.TrimSpace(cfg.LLM.APIKey) == "" {
		klog.V(6).Infof("[GoalAnalyzer] 未配置 API Key，跳过外部目标分析")
		return nil
	}
	return &GoalAnalyzer{cfg: cfg.LLM}
}

// NewGoalAnalyzerWithModel 使用已有的 ChatModel 创建分析服务
func NewGoalAnalyzerWithModel(chatModel model.BaseChatModel) *GoalAnalyzer {
	a := &GoalAnalyzer{chatModel: chatModel}
	a.once.Do(func() {})
	return a
}

// model 延迟创建 ChatModel
func (a *GoalAnalyzer) model() (model.BaseChatModel, error) {
	a.once.Do(func() {
		if strings.TrimSpace(a.cfg.Model) == "" {
			a.initErr = fmt.Errorf("%w: model name is empty", ErrAnalyzerMisconfigured)
			return
		}
		conf := &openai.ChatModelConfig{
			APIKey: a.cfg.APIKey,
			Model:  a.cfg.Model,
		}
		if a.cfg.APIURL != "" {
			conf.BaseURL = a.cfg.APIURL
		}
		if a.cfg.MaxTokens > 0 {
			maxTokens := a.cfg.MaxTokens
			conf.MaxTokens = &maxTokens
		}
		cm, err := openai.NewChatModel(context.Background(), conf)
		if err != nil {
			klog.Errorf("[GoalAnalyzer] 创建 ChatModel 失败: %v", err)
			a.initErr = fmt.Errorf("%w: %v", ErrAnalyzerMisconfigured, err)
			return
		}
		klog.V(6).Infof("[GoalAnalyzer] ChatModel 创建成功: model=%s", a.cfg.Model)
		a.chatModel = cm
	})
	return a.chatModel, a.initErr
}

// Analyze 分析目标，返回推理说明、工具列表与资源列表
// 调用或解析失败时返回包装了 domain.ErrClassificationUnavailable 的错误
func (a *GoalAnalyzer) Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisResponse, error) {
	cm, err := a.model()
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrClassificationUnavailable, err)
	}
	messages := []*schema.Message{
		schema.SystemMessage(analyzerSystemPrompt),
		schema.UserMessage(string(payload)),
	}

	klog.V(6).Infof("[GoalAnalyzer] Generate 开始: goalLength=%d, resources=%d", len(req.Goal), len(req.Resources))
	resp, err := cm.Generate(ctx, messages)
	if err != nil {
		klog.Warningf("[GoalAnalyzer] Generate 失败: %v", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrClassificationUnavailable, err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return nil, fmt.Errorf("%w: empty analyzer response", domain.ErrClassificationUnavailable)
	}
	klog.V(8).Infof("[GoalAnalyzer] 原始回复: %s", resp.Content)

	var out AnalysisResponse
	if err := json.Unmarshal([]byte(utils.ExtractJSON(resp.Content)), &out); err != nil {
		klog.Warningf("[GoalAnalyzer] 回复解析失败: %v", err)
		return nil, fmt.Errorf("%w: malformed analyzer response: %v", domain.ErrClassificationUnavailable, err)
	}

	klog.V(6).Infof("[GoalAnalyzer] Generate 完成: tools=%v, resources=%d", out.Tools, len(out.Resources))
	return &out, nil
}
