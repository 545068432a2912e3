package service

import (
	"context"
	"errors"
	"os"
	"testing"

	"doc-qa-go/internal/model"
	"doc-qa-go/pkg/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	log.Init("error", "json", "")
	os.Exit(m.Run())
}

type fakeEmbedder struct {
	calls  int
	vector []float32
	err    error
}

func (f *fakeEmbedder) CreateEmbedding(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

type fakeSearcher struct {
	primaryHits  []model.RetrievedChunk
	primaryErr   error
	fallbackHits []model.RetrievedChunk
	fallbackErr  error

	primaryCalls  int
	fallbackCalls int
	primaryK      int
	fallbackK     int
	namespace     string
}

func (f *fakeSearcher) SimilaritySearch(_ context.Context, namespace string, _ []float32, k int) ([]model.RetrievedChunk, error) {
	f.primaryCalls++
	f.primaryK = k
	f.namespace = namespace
	return f.primaryHits, f.primaryErr
}

func (f *fakeSearcher) RawQuery(_ context.Context, namespace string, _ []float32, k int) ([]model.RetrievedChunk, error) {
	f.fallbackCalls++
	f.fallbackK = k
	f.namespace = namespace
	return f.fallbackHits, f.fallbackErr
}

func TestRetrievePrimaryPath(t *testing.T) {
	searcher := &fakeSearcher{
		primaryHits: []model.RetrievedChunk{
			{ChunkID: 1, TextContent: "第一条", Score: 0.9},
			{ChunkID: 2, TextContent: "第二条", Score: 0.8},
		},
	}
	svc := NewRetrievalService(&fakeEmbedder{vector: []float32{1, 2}}, searcher, "knowledge", 3, 10)

	chunks, err := svc.Retrieve(context.Background(), "什么是向量检索")
	require.NoError(t, err)
	assert.Len(t, chunks, 2)

	// 主路径命中时不触发兜底查询
	assert.Equal(t, 1, searcher.primaryCalls)
	assert.Zero(t, searcher.fallbackCalls)
	assert.Equal(t, 3, searcher.primaryK)
	assert.Equal(t, "knowledge", searcher.namespace)
}

// 主路径空结果时必须走直接向量查询兜底，且召回数使用 fallback 配置。
func TestRetrieveFallbackPath(t *testing.T) {
	searcher := &fakeSearcher{
		fallbackHits: []model.RetrievedChunk{{ChunkID: 7, TextContent: "兜底命中", Score: 0.5}},
	}
	svc := NewRetrievalService(&fakeEmbedder{vector: []float32{1}}, searcher, "knowledge", 3, 10)

	chunks, err := svc.Retrieve(context.Background(), "问题")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "兜底命中", chunks[0].TextContent)

	assert.Equal(t, 1, searcher.primaryCalls)
	assert.Equal(t, 1, searcher.fallbackCalls)
	assert.Equal(t, 10, searcher.fallbackK)
}

func TestRetrieveBothPathsEmpty(t *testing.T) {
	searcher := &fakeSearcher{}
	svc := NewRetrievalService(&fakeEmbedder{vector: []float32{1}}, searcher, "knowledge", 3, 10)

	chunks, err := svc.Retrieve(context.Background(), "问题")
	require.NoError(t, err)
	assert.Empty(t, chunks)
	assert.Equal(t, 1, searcher.fallbackCalls)
}

func TestRetrieveEmbeddingError(t *testing.T) {
	searcher := &fakeSearcher{}
	svc := NewRetrievalService(&fakeEmbedder{err: errors.New("quota exceeded")}, searcher, "knowledge", 3, 10)

	_, err := svc.Retrieve(context.Background(), "问题")
	require.Error(t, err)
	assert.Zero(t, searcher.primaryCalls)
	assert.Zero(t, searcher.fallbackCalls)
}

func TestRetrieveSearchErrors(t *testing.T) {
	t.Run("主路径错误直接上抛", func(t *testing.T) {
		searcher := &fakeSearcher{primaryErr: errors.New("es down")}
		svc := NewRetrievalService(&fakeEmbedder{vector: []float32{1}}, searcher, "knowledge", 3, 10)

		_, err := svc.Retrieve(context.Background(), "问题")
		require.Error(t, err)
		assert.Zero(t, searcher.fallbackCalls)
	})

	t.Run("兜底路径错误直接上抛", func(t *testing.T) {
		searcher := &fakeSearcher{fallbackErr: errors.New("es down")}
		svc := NewRetrievalService(&fakeEmbedder{vector: []float32{1}}, searcher, "knowledge", 3, 10)

		_, err := svc.Retrieve(context.Background(), "问题")
		require.Error(t, err)
	})
}
