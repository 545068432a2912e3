// Package loader 负责将上传的二进制文件解析为带元数据的文本段落。
package loader

import (
	"context"
	"doc-qa-go/pkg/log"
	"doc-qa-go/pkg/tika"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrUnsupportedType 表示声明的 MIME 类型不在支持列表内。
var ErrUnsupportedType = errors.New("不支持的文件类型")

// 支持的 MIME 类型：PDF 与 DOCX。
var supportedTypes = map[string]struct{}{
	"application/pdf": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
}

// Segment 是从文档中提取出的一段原始文本。
// PDF 的每一页对应一个 Segment；DOCX 整体为一个 Segment。
type Segment struct {
	Text string
	Page int // 从 1 开始
}

// Loader 将文件路径与声明的 MIME 类型解析为有序文本段落。
type Loader interface {
	Supports(mimeType string) bool
	Load(ctx context.Context, path, mimeType string) ([]Segment, error)
}

type tikaLoader struct {
	client *tika.Client
}

// NewTikaLoader 创建一个基于 Tika 文本提取的 Loader。
func NewTikaLoader(client *tika.Client) Loader {
	return &tikaLoader{client: client}
}

// Supports 判断声明的 MIME 类型是否受支持。
func (l *tikaLoader) Supports(mimeType string) bool {
	_, ok := supportedTypes[normalizeMime(mimeType)]
	return ok
}

// Load 读取暂存文件并经 Tika 提取文本。
// 解析失败（文件损坏、不可读）作为错误整体上抛，不返回部分结果。
func (l *tikaLoader) Load(ctx context.Context, path, mimeType string) ([]Segment, error) {
	normalized := normalizeMime(mimeType)
	if _, ok := supportedTypes[normalized]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mimeType)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开暂存文件失败: %w", err)
	}
	defer f.Close()

	text, err := l.client.ExtractText(ctx, f, normalized)
	if err != nil {
		return nil, fmt.Errorf("使用 Tika 提取文本失败: %w", err)
	}

	segments := splitPages(text)
	log.Debugf("[Loader] 文本提取完成, mime: %s, 段落数: %d", normalized, len(segments))
	return segments, nil
}

// normalizeMime 去掉 MIME 参数部分（如 "; charset=utf-8"）并统一小写。
func normalizeMime(mimeType string) string {
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// splitPages 按换页符切分 Tika 输出，空白页被丢弃。
func splitPages(text string) []Segment {
	var segments []Segment
	page := 0
	for _, part := range strings.Split(text, "\f") {
		page++
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		segments = append(segments, Segment{Text: trimmed, Page: page})
	}
	return segments
}
