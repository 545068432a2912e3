// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"doc-qa-go/internal/service"
	"doc-qa-go/pkg/log"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// QAHandler 负责处理问答相关的 API 请求。
type QAHandler struct {
	answerService service.AnswerService
}

// NewQAHandler 创建一个新的 QAHandler 实例。
func NewQAHandler(answerService service.AnswerService) *QAHandler {
	return &QAHandler{answerService: answerService}
}

// AskRequest 定义了问答 API 的请求体结构。
type AskRequest struct {
	Question string `json:"question"`
}

// Ask 处理问答请求。
func (h *QAHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}

	if strings.TrimSpace(req.Question) == "" {
		log.Warnf("[QAHandler] 问答请求失败: question 为空")
		c.JSON(http.StatusBadRequest, gin.H{"error": "question 不能为空"})
		return
	}

	answer, err := h.answerService.Answer(c.Request.Context(), req.Question)
	if err != nil {
		if errors.Is(err, service.ErrEmptyQuestion) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Errorf("[QAHandler] 问答服务返回错误, error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "问答失败", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"answer": answer})
}
