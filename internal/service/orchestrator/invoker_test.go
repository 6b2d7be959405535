package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weibaohui/goalagent/backend/internal/domain"
	"github.com/weibaohui/goalagent/backend/internal/pkg/toolclient"
)

type fakeBackend struct {
	images     []string
	imageErr   map[string]error
	chartReq   toolclient.ChartRequest
	impactReq  toolclient.ImpactRequest
	codeResp   *toolclient.CodeResponse
	searchResp string
}

func (f *fakeBackend) Search(ctx context.Context, req toolclient.SearchRequest) (*toolclient.SearchResponse, error) {
	return &toolclient.SearchResponse{Response: f.searchResp + " " + req.Query}, nil
}

func (f *fakeBackend) CodeAssistant(ctx context.Context, req toolclient.CodeRequest) (*toolclient.CodeResponse, error) {
	return f.codeResp, nil
}

func (f *fakeBackend) VideoSummarizer(ctx context.Context, req toolclient.VideoRequest) (*toolclient.VideoResponse, error) {
	return &toolclient.VideoResponse{
		Summary:    "A walkthrough.",
		Quotes:     []string{"ship it"},
		Timestamps: []string{"00:10 intro"},
	}, nil
}

func (f *fakeBackend) ImpactAnalyzer(ctx context.Context, req toolclient.ImpactRequest) (*toolclient.ImpactResponse, error) {
	f.impactReq = req
	return &toolclient.ImpactResponse{ImpactAnalysis: "risky"}, nil
}

func (f *fakeBackend) ChartBuilder(ctx context.Context, req toolclient.ChartRequest) (*toolclient.ChartResponse, error) {
	f.chartReq = req
	return &toolclient.ChartResponse{ChartData: "chart"}, nil
}

func (f *fakeBackend) TestSupport(ctx context.Context, req toolclient.TestRequest) (*toolclient.TestResponse, error) {
	return &toolclient.TestResponse{TestStrategy: "unit tests for " + req.CodePageTitle}, nil
}

func (f *fakeBackend) ImageInsights(ctx context.Context, req toolclient.ImageRequest) (*toolclient.ImageResponse, error) {
	if err := f.imageErr[req.ImageURL]; err != nil {
		return nil, err
	}
	return &toolclient.ImageResponse{Summary: "about " + req.ImageURL}, nil
}

func (f *fakeBackend) ListImages(ctx context.Context, spaceKey, pageTitle string) ([]string, error) {
	return f.images, nil
}

var pageA = domain.Resource{Workspace: "ENG", Page: "A"}

func TestToolInvoker_Video(t *testing.T) {
	inv := NewToolInvoker(&fakeBackend{}, "summarize the video")
	text, err := inv.Invoke(context.Background(), domain.PlanStep{Resource: pageA, Tool: domain.ToolVideoSummarizer})
	require.NoError(t, err)
	assert.Equal(t, "A walkthrough.\n\nKey Quotes:\n- ship it\n\nTimestamps:\n- 00:10 intro", text)
}

func TestToolInvoker_CodeStripsFence(t *testing.T) {
	backend := &fakeBackend{codeResp: &toolclient.CodeResponse{
		OriginalCode:  "x = 1",
		ConvertedCode: "```go\nx := 1\n```",
	}}
	inv := NewToolInvoker(backend, "")
	text, err := inv.Invoke(context.Background(), domain.PlanStep{Resource: pageA, Tool: domain.ToolCodeAssistant, TargetLanguage: "go"})
	require.NoError(t, err)
	assert.Equal(t, "x := 1", text)
}

func TestToolInvoker_CodeEmptyIsSoft(t *testing.T) {
	inv := NewToolInvoker(&fakeBackend{codeResp: &toolclient.CodeResponse{}}, "")
	_, err := inv.Invoke(context.Background(), domain.PlanStep{Resource: pageA, Tool: domain.ToolCodeAssistant})
	var te *domain.ToolError
	require.ErrorAs(t, err, &te)
	assert.True(t, te.Soft())
}

func TestToolInvoker_CodeSummaryOnly(t *testing.T) {
	backend := &fakeBackend{codeResp: &toolclient.CodeResponse{Summary: "  This function parses the config file.\n"}}
	inv := NewToolInvoker(backend, "summarize the code")
	text, err := inv.Invoke(context.Background(), domain.PlanStep{Resource: pageA, Tool: domain.ToolCodeAssistant})
	require.NoError(t, err)
	assert.Equal(t, "This function parses the config file.", text)
}

func TestToolInvoker_ImpactUsesPeer(t *testing.T) {
	backend := &fakeBackend{}
	inv := NewToolInvoker(backend, "")
	peer := domain.Resource{Workspace: "ENG", Page: "B"}

	text, err := inv.Invoke(context.Background(), domain.PlanStep{Resource: pageA, Peer: &peer, Tool: domain.ToolImpactAnalyzer, Instruction: "what breaks"})
	require.NoError(t, err)
	assert.Equal(t, "risky", text)
	assert.Equal(t, "A", backend.impactReq.OldPageTitle)
	assert.Equal(t, "B", backend.impactReq.NewPageTitle)
	assert.Equal(t, "what breaks", backend.impactReq.Question)

	_, err = inv.Invoke(context.Background(), domain.PlanStep{Resource: pageA, Tool: domain.ToolImpactAnalyzer})
	assert.Error(t, err)
}

func TestToolInvoker_ChartUsesFirstImage(t *testing.T) {
	backend := &fakeBackend{images: []string{"http://img/1.png", "http://img/2.png"}}
	inv := NewToolInvoker(backend, "build a pie chart")

	text, err := inv.Invoke(context.Background(), domain.PlanStep{Resource: pageA, Tool: domain.ToolChartBuilder})
	require.NoError(t, err)
	assert.Equal(t, "chart", text)
	assert.Equal(t, "http://img/1.png", backend.chartReq.ImageURL)
	assert.Equal(t, "pie", backend.chartReq.ChartType)
}

func TestToolInvoker_NoImagesIsSoft(t *testing.T) {
	inv := NewToolInvoker(&fakeBackend{}, "")
	for _, tool := range []domain.ToolKind{domain.ToolChartBuilder, domain.ToolImageInsights} {
		_, err := inv.Invoke(context.Background(), domain.PlanStep{Resource: pageA, Tool: tool})
		var te *domain.ToolError
		require.ErrorAs(t, err, &te)
		assert.True(t, te.Soft(), tool)
		assert.Equal(t, tool, te.Tool)
	}
}

func TestToolInvoker_ImageInsightsPartial(t *testing.T) {
	backend := &fakeBackend{
		images:   []string{"u1", "u2"},
		imageErr: map[string]error{"u1": errors.New("bad image")},
	}
	inv := NewToolInvoker(backend, "")
	text, err := inv.Invoke(context.Background(), domain.PlanStep{Resource: pageA, Tool: domain.ToolImageInsights})
	require.NoError(t, err)
	assert.Equal(t, "Image 2 (u2):\nabout u2", text)

	backend.imageErr["u2"] = errors.New("bad image")
	_, err = inv.Invoke(context.Background(), domain.PlanStep{Resource: pageA, Tool: domain.ToolImageInsights})
	assert.EqualError(t, err, "bad image")
}

func TestToolInvoker_NoneIsSoft(t *testing.T) {
	inv := NewToolInvoker(&fakeBackend{}, "")
	_, err := inv.Invoke(context.Background(), domain.PlanStep{Resource: pageA, Tool: domain.ToolNone})
	var te *domain.ToolError
	require.ErrorAs(t, err, &te)
	assert.True(t, te.Soft())
}

func TestDetectChartType(t *testing.T) {
	assert.Equal(t, "line", DetectChartType("Plot a LINE graph"))
	assert.Equal(t, "scatter", DetectChartType("scatter plot please"))
	assert.Equal(t, "bar", DetectChartType("make a chart"))
}
