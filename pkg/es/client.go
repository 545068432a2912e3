// Package es 提供了基于 Elasticsearch 的向量索引客户端。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"doc-qa-go/internal/config"
	"doc-qa-go/internal/model"
	"doc-qa-go/pkg/log"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Store 封装了对 Elasticsearch 向量索引的全部操作。
// 实例在进程启动时构建一次并显式注入到各流水线，不使用包级全局客户端。
type Store struct {
	client    *elasticsearch.Client
	indexName string
	dims      int
}

// NewStore 根据配置创建一个新的 Store 实例。
// dims 为向量维度，需与 Embedding 模型的输出一致，索引 mapping 以此为准。
func NewStore(cfg config.ElasticsearchConfig, dims int) (*Store, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.Addresses},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("创建 Elasticsearch 客户端失败: %w", err)
	}
	return &Store{client: client, indexName: cfg.IndexName, dims: dims}, nil
}

// EnsureIndex 检查索引是否存在，不存在则按向量 mapping 创建它。
func (s *Store) EnsureIndex(ctx context.Context) error {
	res, err := s.client.Indices.Exists([]string{s.indexName}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	defer res.Body.Close()

	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", s.indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	// namespace 为 keyword 过滤字段；text_content 保留分块原文用于查询时还原上下文
	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"vector_id":     { "type": "keyword" },
				"namespace":     { "type": "keyword" },
				"file_md5":      { "type": "keyword" },
				"file_name":     { "type": "keyword" },
				"chunk_id":      { "type": "integer" },
				"page":          { "type": "integer" },
				"text_content":  { "type": "text" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				},
				"model_version": { "type": "keyword" },
				"created_at":    { "type": "long" }
			}
		}
	}`, s.dims)

	createRes, err := s.client.Indices.Create(
		s.indexName,
		s.client.Indices.Create.WithContext(ctx),
		s.client.Indices.Create.WithBody(bytes.NewReader([]byte(mapping))),
	)
	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", s.indexName, err)
		return err
	}
	defer createRes.Body.Close()
	if createRes.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", s.indexName, createRes.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", s.indexName)
	return nil
}

// Upsert 将一批向量记录写入指定 namespace。
// 以 VectorID 作为文档 ID，重复入库同一文件时记录被覆盖而不是累加。
func (s *Store) Upsert(ctx context.Context, namespace string, records []model.IndexedRecord) error {
	for _, record := range records {
		record.Namespace = namespace
		docBytes, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("序列化索引记录失败: %w", err)
		}

		req := esapi.IndexRequest{
			Index:      s.indexName,
			DocumentID: record.VectorID,
			Body:       bytes.NewReader(docBytes),
			Refresh:    "true",
		}
		res, err := req.Do(ctx, s.client)
		if err != nil {
			return fmt.Errorf("写入索引记录 %s 失败: %w", record.VectorID, err)
		}
		if res.IsError() {
			body := res.String()
			res.Body.Close()
			log.Errorf("索引记录到 Elasticsearch 出错: %s", body)
			return fmt.Errorf("写入索引记录 %s 时 Elasticsearch 返回错误", record.VectorID)
		}
		res.Body.Close()
	}
	return nil
}

// SimilaritySearch 是检索的主路径：通过 kNN 检索端点取回 top-k 近邻。
func (s *Store) SimilaritySearch(ctx context.Context, namespace string, vector []float32, k int) ([]model.RetrievedChunk, error) {
	esQuery := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   vector,
			"k":              k,
			"num_candidates": k * 10,
			"filter": map[string]interface{}{
				"term": map[string]interface{}{"namespace": namespace},
			},
		},
		"size": k,
	}
	return s.search(ctx, esQuery)
}

// RawQuery 是兜底路径：绕过 kNN 端点，直接用 script_score 余弦相似度
// 对 namespace 内全量候选打分取 top-k。kNN 路径偶发空结果时由它兜底召回。
func (s *Store) RawQuery(ctx context.Context, namespace string, vector []float32, k int) ([]model.RetrievedChunk, error) {
	esQuery := map[string]interface{}{
		"query": map[string]interface{}{
			"script_score": map[string]interface{}{
				"query": map[string]interface{}{
					"bool": map[string]interface{}{
						"filter": map[string]interface{}{
							"term": map[string]interface{}{"namespace": namespace},
						},
					},
				},
				"script": map[string]interface{}{
					"source": "cosineSimilarity(params.query_vector, 'vector') + 1.0",
					"params": map[string]interface{}{"query_vector": vector},
				},
			},
		},
		"size": k,
	}
	return s.search(ctx, esQuery)
}

func (s *Store) search(ctx context.Context, esQuery map[string]interface{}) ([]model.RetrievedChunk, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("序列化 Elasticsearch 查询失败: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.indexName),
		s.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.Status())
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source model.IndexedRecord `json:"_source"`
				Score  float64             `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("解析 Elasticsearch 响应失败: %w", err)
	}

	chunks := make([]model.RetrievedChunk, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		chunks = append(chunks, model.RetrievedChunk{
			FileName:    hit.Source.FileName,
			ChunkID:     hit.Source.ChunkID,
			Page:        hit.Source.Page,
			TextContent: hit.Source.TextContent,
			Score:       hit.Score,
		})
	}
	return chunks, nil
}

// Stats 返回指定 namespace 下的索引记录数。
func (s *Store) Stats(ctx context.Context, namespace string) (*model.IndexStats, error) {
	body := fmt.Sprintf(`{"query":{"term":{"namespace":%q}}}`, namespace)
	res, err := s.client.Count(
		s.client.Count.WithContext(ctx),
		s.client.Count.WithIndex(s.indexName),
		s.client.Count.WithBody(bytes.NewReader([]byte(body))),
	)
	if err != nil {
		return nil, fmt.Errorf("查询索引统计失败: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("查询索引统计时 Elasticsearch 返回错误: %s", res.Status())
	}

	var countResp struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&countResp); err != nil {
		return nil, fmt.Errorf("解析索引统计响应失败: %w", err)
	}

	return &model.IndexStats{
		IndexName:   s.indexName,
		Namespace:   namespace,
		RecordCount: countResp.Count,
	}, nil
}
