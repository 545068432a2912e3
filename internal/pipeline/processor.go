// Package pipeline 定义了文档入库的核心流程。
package pipeline

import (
	"context"
	"crypto/md5"
	"doc-qa-go/internal/chunker"
	"doc-qa-go/internal/loader"
	"doc-qa-go/internal/model"
	"doc-qa-go/pkg/embedding"
	"doc-qa-go/pkg/log"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"
)

// VectorStore 是入库流水线需要的最小存储接口。
type VectorStore interface {
	Upsert(ctx context.Context, namespace string, records []model.IndexedRecord) error
}

// Options 配置入库流水线。
type Options struct {
	Namespace    string
	ModelVersion string // 写入记录的 embedding 模型标识
	TempDir      string // 暂存目录，空值使用系统临时目录
}

// Processor 封装了文档入库的全部依赖：
// 校验 MIME -> 暂存 -> 解析 -> 分块 -> 逐块向量化 -> 写入向量索引。
type Processor struct {
	docLoader       loader.Loader
	splitter        *chunker.Splitter
	embeddingClient embedding.Client
	store           VectorStore
	opts            Options
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(docLoader loader.Loader, splitter *chunker.Splitter, embeddingClient embedding.Client, store VectorStore, opts Options) *Processor {
	return &Processor{
		docLoader:       docLoader,
		splitter:        splitter,
		embeddingClient: embeddingClient,
		store:           store,
		opts:            opts,
	}
}

// Ingest 处理一次文档上传，返回入库的分块数。
// 暂存文件在所有退出路径（成功、校验失败、下游错误）上都会被删除。
func (p *Processor) Ingest(ctx context.Context, file io.Reader, fileName, mimeType string) (int, error) {
	log.Infof("[Processor] 开始处理文件, FileName: %s, MIME: %s", fileName, mimeType)

	// 1. 校验 MIME 类型，未通过前不触达任何下游服务
	if !p.docLoader.Supports(mimeType) {
		log.Warnf("[Processor] 不支持的文件类型: %s, FileName: %s", mimeType, fileName)
		return 0, fmt.Errorf("%w: %s", loader.ErrUnsupportedType, mimeType)
	}

	// 2. 暂存到临时文件，同时计算 MD5 作为文档标识
	stagedPath, fileMD5, err := p.stage(file, fileName)
	if err != nil {
		return 0, fmt.Errorf("暂存上传文件失败: %w", err)
	}
	defer func() {
		if removeErr := os.Remove(stagedPath); removeErr != nil {
			log.Warnf("[Processor] 删除暂存文件失败: %s, err=%v", stagedPath, removeErr)
		}
	}()
	log.Infof("[Processor] 步骤1: 文件已暂存, path: %s, md5: %s", stagedPath, fileMD5)

	// 3. 解析为文本段落
	segments, err := p.docLoader.Load(ctx, stagedPath, mimeType)
	if err != nil {
		log.Errorf("[Processor] 解析文件失败, FileName: %s, Error: %v", fileName, err)
		return 0, err
	}
	totalRunes := 0
	for _, seg := range segments {
		totalRunes += utf8.RuneCountInString(seg.Text)
	}
	log.Infof("[Processor] 步骤2: 文本提取成功, 段落数: %d, 总长度: %d 字符", len(segments), totalRunes)

	// 4. 文本切块
	chunks := p.splitter.Split(segments)
	log.Infof("[Processor] 步骤3: 文本分块完成, 共生成 %d 个分块", len(chunks))
	if len(chunks) == 0 {
		log.Warnf("[Processor] 未生成任何文本分块, 处理中止, FileName: %s", fileName)
		return 0, errors.New("未生成任何文本分块")
	}

	// 5. 逐块向量化（串行，不做本地并发编排）
	records := make([]model.IndexedRecord, 0, len(chunks))
	now := time.Now().UnixMilli()
	for i, chunk := range chunks {
		vector, err := p.embeddingClient.CreateEmbedding(ctx, chunk.Text)
		if err != nil {
			log.Errorf("[Processor] 分块 %d 向量化失败, Error: %v", chunk.Index, err)
			return 0, fmt.Errorf("块 %d 向量化失败: %w", chunk.Index, err)
		}
		records = append(records, model.IndexedRecord{
			VectorID:     fmt.Sprintf("%s_%d", fileMD5, chunk.Index),
			Namespace:    p.opts.Namespace,
			FileMD5:      fileMD5,
			FileName:     fileName,
			ChunkID:      chunk.Index,
			Page:         chunk.Page,
			TextContent:  chunk.Text,
			Vector:       vector,
			ModelVersion: p.opts.ModelVersion,
			CreatedAt:    now,
		})
		log.Debugf("[Processor] 分块 %d/%d 向量化成功", i+1, len(chunks))
	}

	// 6. 写入向量索引（固定 namespace）
	if err := p.store.Upsert(ctx, p.opts.Namespace, records); err != nil {
		log.Errorf("[Processor] 写入向量索引失败, FileName: %s, Error: %v", fileName, err)
		return 0, fmt.Errorf("写入向量索引失败: %w", err)
	}

	log.Infof("[Processor] 文件处理成功完成, FileName: %s, 入库分块数: %d", fileName, len(records))
	return len(records), nil
}

// stage 将上传内容写入临时文件并返回路径与内容 MD5。
func (p *Processor) stage(file io.Reader, fileName string) (string, string, error) {
	tmp, err := os.CreateTemp(p.opts.TempDir, "ingest-*"+filepath.Ext(fileName))
	if err != nil {
		return "", "", err
	}

	hash := md5.New()
	_, copyErr := io.Copy(tmp, io.TeeReader(file, hash))
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmp.Name())
		if copyErr != nil {
			return "", "", copyErr
		}
		return "", "", closeErr
	}

	return tmp.Name(), fmt.Sprintf("%x", hash.Sum(nil)), nil
}
