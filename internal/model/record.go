// Package model 定义了索引文档与接口 DTO 的 Go 结构体。
package model

// IndexedRecord 代表持久化到 Elasticsearch 的最小单元：
// 一个分块的向量加上足以在查询时还原上下文的原始文本与来源元数据。
// 文档一经写入不再修改。
type IndexedRecord struct {
	VectorID     string    `json:"vector_id"` // 唯一标识，fileMd5 + chunkId
	Namespace    string    `json:"namespace"`
	FileMD5      string    `json:"file_md5"`
	FileName     string    `json:"file_name"`
	ChunkID      int       `json:"chunk_id"`
	Page         int       `json:"page"`
	TextContent  string    `json:"text_content"` // 分块原文，检索时直接从这里读回上下文
	Vector       []float32 `json:"vector"`
	ModelVersion string    `json:"model_version"`
	CreatedAt    int64     `json:"created_at"`
}

// RetrievedChunk 是检索阶段返回的单条排序结果。
type RetrievedChunk struct {
	FileName    string  `json:"fileName"`
	ChunkID     int     `json:"chunkId"`
	Page        int     `json:"page"`
	TextContent string  `json:"textContent"`
	Score       float64 `json:"score"`
}

// IndexStats 描述向量索引的当前状态。
type IndexStats struct {
	IndexName   string `json:"indexName"`
	Namespace   string `json:"namespace"`
	RecordCount int64  `json:"recordCount"`
}
