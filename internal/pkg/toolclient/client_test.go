package toolclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weibaohui/goalagent/backend/config"
	"github.com/weibaohui/goalagent/backend/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Tools.BaseURL = srv.URL + "/"
	cfg.Tools.Timeout = time.Second
	return NewClient(cfg)
}

func requireToolError(t *testing.T, err error) *domain.ToolError {
	t.Helper()
	var te *domain.ToolError
	require.True(t, errors.As(err, &te), "expected ToolError, got %v", err)
	return te
}

func TestSearch_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req SearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ENG", req.SpaceKey)
		assert.Equal(t, []string{"Runbook"}, req.PageTitles)
		assert.Equal(t, "how to deploy", req.Query)

		_ = json.NewEncoder(w).Encode(SearchResponse{Response: "use the pipeline"})
	})

	resp, err := c.Search(context.Background(), SearchRequest{SpaceKey: "ENG", PageTitles: []string{"Runbook"}, Query: "how to deploy"})
	require.NoError(t, err)
	assert.Equal(t, "use the pipeline", resp.Response)
}

func TestVideoSummarizer_NotFoundIsSoft(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"No video attachment found on page"}`))
	})

	_, err := c.VideoSummarizer(context.Background(), VideoRequest{SpaceKey: "ENG", PageTitle: "Demo"})
	te := requireToolError(t, err)
	assert.True(t, te.Soft())
	assert.Equal(t, domain.ToolVideoSummarizer, te.Tool)
	assert.Contains(t, te.Message, "No video")
}

func TestBadRequestWithSoftDetailIsSoft(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"No code blocks found"}`))
	})

	_, err := c.CodeAssistant(context.Background(), CodeRequest{SpaceKey: "ENG", PageTitle: "Doc"})
	assert.True(t, requireToolError(t, err).Soft())
}

func TestServerErrorIsHard(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"page not found in cache"}`))
	})

	_, err := c.Search(context.Background(), SearchRequest{SpaceKey: "ENG", Query: "q"})
	te := requireToolError(t, err)
	assert.Equal(t, domain.ErrorKindToolHardFailure, te.Kind, "5xx 即便描述含 not found 也是硬失败")
	assert.Contains(t, te.Message, "status 500")
}

func TestMalformedBodyIsHard(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	})

	_, err := c.TestSupport(context.Background(), TestRequest{SpaceKey: "ENG", CodePageTitle: "Code"})
	assert.Equal(t, domain.ErrorKindToolHardFailure, requireToolError(t, err).Kind)
}

func TestEmptyMandatoryFieldIsHard(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"impact_analysis":"  "}`))
	})

	_, err := c.ImpactAnalyzer(context.Background(), ImpactRequest{SpaceKey: "ENG", OldPageTitle: "A", NewPageTitle: "B"})
	assert.Equal(t, domain.ErrorKindToolHardFailure, requireToolError(t, err).Kind)
}

func TestSuccessStatusWithSoftDetailIsSoft(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"detail":"No video found on this page"}`))
	})

	_, err := c.VideoSummarizer(context.Background(), VideoRequest{SpaceKey: "ENG", PageTitle: "Demo"})
	te := requireToolError(t, err)
	assert.True(t, te.Soft())
	assert.Equal(t, domain.ToolVideoSummarizer, te.Tool)
	assert.Equal(t, "No video found on this page", te.Message)
}

func TestSuccessStatusWithOtherDetailIsHard(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"detail":"model overloaded"}`))
	})

	_, err := c.ChartBuilder(context.Background(), ChartRequest{SpaceKey: "ENG", PageTitle: "Metrics", ImageURL: "u"})
	te := requireToolError(t, err)
	assert.Equal(t, domain.ErrorKindToolHardFailure, te.Kind)
	assert.Equal(t, "empty chart data: model overloaded", te.Message)
}

func TestTimeoutIsHard(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	c.Timeout = 20 * time.Millisecond

	_, err := c.ImageInsights(context.Background(), ImageRequest{SpaceKey: "ENG", PageTitle: "P", ImageURL: "x"})
	te := requireToolError(t, err)
	assert.Equal(t, domain.ErrorKindToolHardFailure, te.Kind)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestCodeResponseBest(t *testing.T) {
	r := &CodeResponse{OriginalCode: "orig", ModifiedCode: "mod", ConvertedCode: "conv"}
	assert.Equal(t, "conv", r.Best("python"))
	assert.Equal(t, "mod", r.Best(""))

	r = &CodeResponse{OriginalCode: "orig"}
	assert.Equal(t, "orig", r.Best("python"))

	var nilResp *CodeResponse
	assert.Equal(t, "", nilResp.Best(""))
}

func TestListing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/spaces":
			_, _ = w.Write([]byte(`{"spaces":[{"key":"ENG","name":"Engineering"}]}`))
		case "/pages/ENG":
			_, _ = w.Write([]byte(`{"pages":["A","B"]}`))
		case "/images":
			assert.Equal(t, "ENG", r.URL.Query().Get("space_key"))
			assert.Equal(t, "A", r.URL.Query().Get("page_title"))
			_, _ = w.Write([]byte(`{"images":["http://img/1.png"]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	spaces, err := c.ListSpaces(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Space{{Key: "ENG", Name: "Engineering"}}, spaces)

	pages, err := c.ListPages(context.Background(), "ENG")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, pages)

	images, err := c.ListImages(context.Background(), "ENG", "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"http://img/1.png"}, images)
}
