package handler

import (
	"context"
	"doc-qa-go/internal/loader"
	"doc-qa-go/pkg/log"
	"doc-qa-go/pkg/tika"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Ingestor 是上传处理器需要的入库流水线接口。
type Ingestor interface {
	Ingest(ctx context.Context, file io.Reader, fileName, mimeType string) (int, error)
}

// UploadHandler 负责处理文档上传入库的 API 请求。
type UploadHandler struct {
	ingestor Ingestor
}

// NewUploadHandler 创建一个新的 UploadHandler 实例。
func NewUploadHandler(ingestor Ingestor) *UploadHandler {
	return &UploadHandler{ingestor: ingestor}
}

// Upload 处理 multipart 文件上传并触发入库流水线。
func (h *UploadHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		log.Warnf("[UploadHandler] 上传请求缺少文件: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "未能获取上传的文件"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		log.Error("UploadHandler: 打开上传文件失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取上传文件失败", "details": err.Error()})
		return
	}
	defer file.Close()

	mimeType := fileHeader.Header.Get("Content-Type")
	chunkCount, err := h.ingestor.Ingest(c.Request.Context(), file, fileHeader.Filename, mimeType)
	if err != nil {
		h.writeIngestError(c, fileHeader.Filename, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"message":    fmt.Sprintf("文档处理完成, 共入库 %d 个分块", chunkCount),
		"chunkCount": chunkCount,
	})
}

// writeIngestError 将入库错误映射到边界约定的状态码：
// 类型不支持与解析器明确拒绝 -> 400，其余 -> 500。
func (h *UploadHandler) writeIngestError(c *gin.Context, fileName string, err error) {
	if errors.Is(err, loader.ErrUnsupportedType) {
		log.Warnf("[UploadHandler] 不支持的文件类型, fileName: %s, error: %v", fileName, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var statusErr *tika.StatusError
	if errors.As(err, &statusErr) && statusErr.ClientRejected() {
		log.Warnf("[UploadHandler] 文档被解析器拒绝, fileName: %s, error: %v", fileName, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "文档解析被拒绝", "details": err.Error()})
		return
	}

	log.Errorf("[UploadHandler] 文档入库失败, fileName: %s, error: %v", fileName, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "文档入库失败", "details": err.Error()})
}
