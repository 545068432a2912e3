package handler

import (
	"context"
	"doc-qa-go/internal/model"
	"doc-qa-go/pkg/log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// StatsProvider 是统计处理器需要的存储接口。
type StatsProvider interface {
	Stats(ctx context.Context, namespace string) (*model.IndexStats, error)
}

// StatsHandler 负责处理索引统计的 API 请求。
type StatsHandler struct {
	store     StatsProvider
	namespace string
}

// NewStatsHandler 创建一个新的 StatsHandler 实例。
func NewStatsHandler(store StatsProvider, namespace string) *StatsHandler {
	return &StatsHandler{store: store, namespace: namespace}
}

// Stats 返回固定 namespace 下的索引统计信息。
func (h *StatsHandler) Stats(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context(), h.namespace)
	if err != nil {
		log.Errorf("[StatsHandler] 查询索引统计失败, error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询索引统计失败", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
