package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/weibaohui/goalagent/backend/internal/domain"
	"github.com/weibaohui/goalagent/backend/internal/pkg/toolclient"
)

type catalogSource interface {
	ListSpaces(ctx context.Context) ([]toolclient.Space, error)
	ListPages(ctx context.Context, spaceKey string) ([]string, error)
}

// CatalogHandler 空间与页面目录，代理工具后端
type CatalogHandler struct {
	source catalogSource
}

func NewCatalogHandler(source catalogSource) *CatalogHandler {
	return &CatalogHandler{source: source}
}

func (h *CatalogHandler) Spaces(c *gin.Context) {
	spaces, err := h.source.ListSpaces(c.Request.Context())
	if err != nil {
		writeBackendError(c, err)
		return
	}
	if spaces == nil {
		spaces = []toolclient.Space{}
	}
	c.JSON(http.StatusOK, spaces)
}

func (h *CatalogHandler) Pages(c *gin.Context) {
	pages, err := h.source.ListPages(c.Request.Context(), c.Param("key"))
	if err != nil {
		writeBackendError(c, err)
		return
	}
	if pages == nil {
		pages = []string{}
	}
	c.JSON(http.StatusOK, pages)
}

func writeBackendError(c *gin.Context, err error) {
	var te *domain.ToolError
	if errors.As(err, &te) && te.Soft() {
		c.JSON(http.StatusNotFound, gin.H{"error": te.Message})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
}
