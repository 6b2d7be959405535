package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/weibaohui/goalagent/backend/internal/domain"
	"github.com/weibaohui/goalagent/backend/internal/model"
	"github.com/weibaohui/goalagent/backend/internal/repository"
	"github.com/weibaohui/goalagent/backend/internal/service/orchestrator"
	"github.com/weibaohui/goalagent/backend/internal/service/run"
	"k8s.io/klog/v2"
)

type runController interface {
	Submit(ctx context.Context, req domain.RunRequest) (*run.Run, error)
	State() domain.RunState
	Answer() *domain.AggregatedAnswer
	Cancel() error
}

type runHistory interface {
	GetByRunID(ctx context.Context, runID string) (*model.RunRecord, error)
	List(ctx context.Context, limit int) ([]model.RunRecord, error)
}

type poolStatus interface {
	Status() *orchestrator.PoolStatus
}

type RunHandler struct {
	controller   runController
	history      runHistory
	pool         poolStatus
	historyLimit int
}

func NewRunHandler(controller runController, history runHistory, pool poolStatus, historyLimit int) *RunHandler {
	if historyLimit <= 0 {
		historyLimit = 50
	}
	return &RunHandler{
		controller:   controller,
		history:      history,
		pool:         pool,
		historyLimit: historyLimit,
	}
}

// Submit 异步提交运行
func (h *RunHandler) Submit(c *gin.Context) {
	var req domain.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	r, err := h.controller.Submit(c.Request.Context(), req)
	if err != nil {
		h.writeSubmitError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"run_id": r.ID,
		"state":  h.controller.State(),
	})
}

// SubmitSync 提交运行并等待结果
func (h *RunHandler) SubmitSync(c *gin.Context) {
	var req domain.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	r, err := h.controller.Submit(c.Request.Context(), req)
	if err != nil {
		h.writeSubmitError(c, err)
		return
	}

	answer, err := r.Wait(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRunSuperseded), errors.Is(err, domain.ErrRunCanceled):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "run_id": r.ID})
		default:
			klog.Errorf("同步运行失败: runID=%s, err=%v", r.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "run_id": r.ID})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id": r.ID,
		"answer": answer,
	})
}

// Current 当前状态与最近一次答案
func (h *RunHandler) Current(c *gin.Context) {
	resp := gin.H{"state": h.controller.State()}
	if answer := h.controller.Answer(); answer != nil {
		resp["answer"] = answer
	}
	c.JSON(http.StatusOK, resp)
}

// Cancel 取消当前运行
func (h *RunHandler) Cancel(c *gin.Context) {
	if err := h.controller.Cancel(); err != nil {
		if errors.Is(err, domain.ErrNoActiveRun) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "run canceled", "state": h.controller.State()})
}

// List 运行历史
func (h *RunHandler) List(c *gin.Context) {
	limit := h.historyLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	records, err := h.history.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, records)
}

// Get 单条运行历史
func (h *RunHandler) Get(c *gin.Context) {
	record, err := h.history.GetByRunID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, record)
}

// Tools 可用工具列表
func (h *RunHandler) Tools(c *gin.Context) {
	tools := make([]gin.H, 0, len(domain.AllTools()))
	for _, t := range domain.AllTools() {
		tools = append(tools, gin.H{
			"kind":          t,
			"title":         t.Title(),
			"min_resources": t.MinResources(),
		})
	}
	c.JSON(http.StatusOK, tools)
}

// Status 运行状态与协程池状态
func (h *RunHandler) Status(c *gin.Context) {
	resp := gin.H{"state": h.controller.State()}
	if h.pool != nil {
		resp["pool"] = h.pool.Status()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RunHandler) writeSubmitError(c *gin.Context, err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "field": ve.Field})
		return
	}
	klog.Errorf("运行提交失败: err=%v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
