package toolclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/weibaohui/goalagent/backend/config"
	"github.com/weibaohui/goalagent/backend/internal/domain"
	"k8s.io/klog/v2"
)

// softMarkers 工具返回这些描述时视为"没有可处理内容"
var softMarkers = []string{
	"not found",
	"no video",
	"no image",
	"no code",
	"no applicable",
	"no content",
}

// Client 工具后端客户端，每种工具一个操作
type Client struct {
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
}

// NewClient 创建工具客户端
func NewClient(cfg *config.Config) *Client {
	return &Client{
		BaseURL: strings.TrimRight(cfg.Tools.BaseURL, "/"),
		Timeout: cfg.Tools.Timeout,
		Client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
		},
	}
}

// Search AI 搜索
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	var resp SearchResponse
	detail, err := c.post(ctx, domain.ToolSearch, "/search", req, &resp)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.Response) == "" {
		return nil, emptyResult(domain.ToolSearch, detail, "empty search response")
	}
	return &resp, nil
}

// CodeAssistant 代码助手
func (c *Client) CodeAssistant(ctx context.Context, req CodeRequest) (*CodeResponse, error) {
	var resp CodeResponse
	detail, err := c.post(ctx, domain.ToolCodeAssistant, "/code-assistant", req, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Best(req.TargetLanguage) == "" && resp.Summary == "" {
		return nil, domain.NewSoftFailure(domain.ToolCodeAssistant, softDetail(detail, "no code found on page"))
	}
	return &resp, nil
}

// VideoSummarizer 视频摘要
func (c *Client) VideoSummarizer(ctx context.Context, req VideoRequest) (*VideoResponse, error) {
	var resp VideoResponse
	detail, err := c.post(ctx, domain.ToolVideoSummarizer, "/video-summarizer", req, &resp)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.Summary) == "" {
		return nil, emptyResult(domain.ToolVideoSummarizer, detail, "empty video summary")
	}
	return &resp, nil
}

// ImpactAnalyzer 影响分析
func (c *Client) ImpactAnalyzer(ctx context.Context, req ImpactRequest) (*ImpactResponse, error) {
	var resp ImpactResponse
	detail, err := c.post(ctx, domain.ToolImpactAnalyzer, "/impact-analyzer", req, &resp)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.ImpactAnalysis) == "" {
		return nil, emptyResult(domain.ToolImpactAnalyzer, detail, "empty impact analysis")
	}
	return &resp, nil
}

// ChartBuilder 图表构建
func (c *Client) ChartBuilder(ctx context.Context, req ChartRequest) (*ChartResponse, error) {
	var resp ChartResponse
	detail, err := c.post(ctx, domain.ToolChartBuilder, "/chart-builder", req, &resp)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.ChartData) == "" {
		return nil, emptyResult(domain.ToolChartBuilder, detail, "empty chart data")
	}
	return &resp, nil
}

// TestSupport 测试策略
func (c *Client) TestSupport(ctx context.Context, req TestRequest) (*TestResponse, error) {
	var resp TestResponse
	detail, err := c.post(ctx, domain.ToolTestSupport, "/test-support", req, &resp)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.TestStrategy) == "" {
		return nil, emptyResult(domain.ToolTestSupport, detail, "empty test strategy")
	}
	return &resp, nil
}

// ImageInsights 图片洞察
func (c *Client) ImageInsights(ctx context.Context, req ImageRequest) (*ImageResponse, error) {
	var resp ImageResponse
	detail, err := c.post(ctx, domain.ToolImageInsights, "/image-insights", req, &resp)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.Summary) == "" {
		return nil, emptyResult(domain.ToolImageInsights, detail, "empty image summary")
	}
	return &resp, nil
}

// ListSpaces 列出全部空间
func (c *Client) ListSpaces(ctx context.Context) ([]Space, error) {
	var resp spacesResponse
	if _, err := c.get(ctx, "", "/spaces", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Spaces, nil
}

// ListPages 列出空间下的页面
func (c *Client) ListPages(ctx context.Context, spaceKey string) ([]string, error) {
	var resp pagesResponse
	if _, err := c.get(ctx, "", "/pages/"+url.PathEscape(spaceKey), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Pages, nil
}

// ListImages 列出页面中的图片地址
func (c *Client) ListImages(ctx context.Context, spaceKey, pageTitle string) ([]string, error) {
	var resp imagesResponse
	query := url.Values{}
	query.Set("space_key", spaceKey)
	query.Set("page_title", pageTitle)
	if _, err := c.get(ctx, "", "/images", query, &resp); err != nil {
		return nil, err
	}
	return resp.Images, nil
}

func (c *Client) post(ctx context.Context, tool domain.ToolKind, path string, reqBody, out any) (string, error) {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", domain.NewHardFailure(tool, fmt.Errorf("failed to marshal request: %w", err))
	}
	return c.do(ctx, tool, http.MethodPost, path, nil, data, out)
}

func (c *Client) get(ctx context.Context, tool domain.ToolKind, path string, query url.Values, out any) (string, error) {
	return c.do(ctx, tool, http.MethodGet, path, query, nil, out)
}

// do 发送请求并把失败归类为软/硬失败
// 成功时返回响应体中的 detail/error 描述，供调用方判断空结果的原因
func (c *Client) do(ctx context.Context, tool domain.ToolKind, method, path string, query url.Values, body []byte, out any) (string, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	target := c.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	klog.V(6).Infof("调用工具: tool=%s, method=%s, url=%s", tool, method, target)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return "", domain.NewHardFailure(tool, fmt.Errorf("failed to create request: %w", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", domain.ClassifyToolError(tool, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.NewHardFailure(tool, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode >= 300 {
		return "", classifyStatus(tool, resp.StatusCode, raw)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return "", domain.NewHardFailure(tool, fmt.Errorf("failed to unmarshal response: %w", err))
	}
	var detail errorBody
	_ = json.Unmarshal(raw, &detail)
	return detail.message(), nil
}

// classifyStatus 404 或带有"未找到"描述的 4xx 视为软失败，其余为硬失败
func classifyStatus(tool domain.ToolKind, status int, raw []byte) error {
	var body errorBody
	_ = json.Unmarshal(raw, &body)
	msg := body.message()
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	if status == http.StatusNotFound || (status < 500 && isSoftMessage(msg)) {
		klog.V(6).Infof("工具未找到可处理内容: tool=%s, status=%d, detail=%s", tool, status, msg)
		return domain.NewSoftFailure(tool, msg)
	}
	klog.Warningf("工具调用失败: tool=%s, status=%d, detail=%s", tool, status, msg)
	return &domain.ToolError{
		Kind:    domain.ErrorKindToolHardFailure,
		Tool:    tool,
		Message: fmt.Sprintf("status %d: %s", status, msg),
	}
}

// emptyResult 必填字段为空：响应描述为"未找到"类时是软失败，否则是硬失败
func emptyResult(tool domain.ToolKind, detail, reason string) error {
	if isSoftMessage(detail) {
		klog.V(6).Infof("工具未找到可处理内容: tool=%s, detail=%s", tool, detail)
		return domain.NewSoftFailure(tool, detail)
	}
	if detail != "" {
		reason += ": " + detail
	}
	return domain.NewHardFailure(tool, errors.New(reason))
}

func softDetail(detail, fallback string) string {
	if isSoftMessage(detail) {
		return detail
	}
	return fallback
}

func isSoftMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range softMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
