// Package service 提供了检索与问答的业务逻辑。
package service

import (
	"context"
	"doc-qa-go/internal/model"
	"doc-qa-go/pkg/embedding"
	"doc-qa-go/pkg/log"
	"fmt"
)

// VectorSearcher 是检索服务需要的最小存储接口。
// SimilaritySearch 是高层 kNN 检索路径，RawQuery 是绕过它的直接向量查询路径。
type VectorSearcher interface {
	SimilaritySearch(ctx context.Context, namespace string, vector []float32, k int) ([]model.RetrievedChunk, error)
	RawQuery(ctx context.Context, namespace string, vector []float32, k int) ([]model.RetrievedChunk, error)
}

// RetrievalService 接口定义了检索操作：一次调用内部封装主路径与兜底路径。
type RetrievalService interface {
	Retrieve(ctx context.Context, question string) ([]model.RetrievedChunk, error)
}

type retrievalService struct {
	embeddingClient embedding.Client
	store           VectorSearcher
	namespace       string
	topK            int
	fallbackTopK    int
}

// NewRetrievalService 创建一个新的 RetrievalService 实例。
// topK 作用于主路径，fallbackTopK 作用于兜底路径；兜底召回数更大，
// 在主路径异常返回空时撒更大的网。
func NewRetrievalService(embeddingClient embedding.Client, store VectorSearcher, namespace string, topK, fallbackTopK int) RetrievalService {
	return &retrievalService{
		embeddingClient: embeddingClient,
		store:           store,
		namespace:       namespace,
		topK:            topK,
		fallbackTopK:    fallbackTopK,
	}
}

// Retrieve 将问题向量化后检索相关分块。
// 主路径（kNN 检索）存在偶发空结果的问题：同一向量经直接查询路径却能命中。
// 因此主路径返回空时自动走一次 RawQuery 兜底，两条路径都是正确性所必需的。
func (s *retrievalService) Retrieve(ctx context.Context, question string) ([]model.RetrievedChunk, error) {
	log.Infof("[RetrievalService] 开始检索, question: '%s'", truncate(question, 64))

	queryVector, err := s.embeddingClient.CreateEmbedding(ctx, question)
	if err != nil {
		log.Errorf("[RetrievalService] 向量化查询失败: %v", err)
		return nil, fmt.Errorf("failed to create query embedding: %w", err)
	}

	chunks, err := s.store.SimilaritySearch(ctx, s.namespace, queryVector, s.topK)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	if len(chunks) == 0 {
		log.Warnf("[RetrievalService] kNN 检索返回 0 条命中, 使用直接向量查询兜底, k: %d", s.fallbackTopK)
		chunks, err = s.store.RawQuery(ctx, s.namespace, queryVector, s.fallbackTopK)
		if err != nil {
			return nil, fmt.Errorf("raw vector query failed: %w", err)
		}
	}

	log.Infof("[RetrievalService] 检索完成, 命中 %d 条分块", len(chunks))
	return chunks, nil
}

// truncate 截断过长的输入用于日志，避免刷屏。
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
