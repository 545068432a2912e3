package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"testing"

	"doc-qa-go/internal/loader"
	"doc-qa-go/internal/model"
	"doc-qa-go/pkg/log"
	"doc-qa-go/pkg/tika"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	log.Init("error", "json", "")
	os.Exit(m.Run())
}

type fakeAnswerService struct {
	answer string
	err    error
	calls  int
}

func (f *fakeAnswerService) Answer(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.answer, f.err
}

type fakeIngestor struct {
	count int
	err   error
	calls int

	fileName string
	mimeType string
	content  []byte
}

func (f *fakeIngestor) Ingest(_ context.Context, file io.Reader, fileName, mimeType string) (int, error) {
	f.calls++
	f.fileName = fileName
	f.mimeType = mimeType
	f.content, _ = io.ReadAll(file)
	return f.count, f.err
}

func askRouter(svc *fakeAnswerService) *gin.Engine {
	r := gin.New()
	r.POST("/api/v1/qa/ask", NewQAHandler(svc).Ask)
	return r
}

func uploadRouter(ing *fakeIngestor) *gin.Engine {
	r := gin.New()
	r.POST("/api/v1/qa/upload", NewUploadHandler(ing).Upload)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestAskSuccess(t *testing.T) {
	svc := &fakeAnswerService{answer: "年假为每年 10 天。"}
	w := doJSON(t, askRouter(svc), "/api/v1/qa/ask", `{"question":"年假有几天？"}`)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, "年假为每年 10 天。", resp["answer"])
}

// 缺失/空白 question 返回 400，且不触达问答服务。
func TestAskMissingQuestion(t *testing.T) {
	for _, body := range []string{`{}`, `{"question":""}`, `{"question":"   "}`} {
		svc := &fakeAnswerService{}
		w := doJSON(t, askRouter(svc), "/api/v1/qa/ask", body)

		require.Equal(t, http.StatusBadRequest, w.Code, "body: %s", body)
		resp := decodeBody(t, w)
		assert.NotEmpty(t, resp["error"])
		assert.Zero(t, svc.calls)
	}
}

func TestAskInvalidPayload(t *testing.T) {
	svc := &fakeAnswerService{}
	w := doJSON(t, askRouter(svc), "/api/v1/qa/ask", `not-json`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, svc.calls)
}

func TestAskServiceError(t *testing.T) {
	svc := &fakeAnswerService{err: errors.New("llm unavailable")}
	w := doJSON(t, askRouter(svc), "/api/v1/qa/ask", `{"question":"问题"}`)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, "问答失败", resp["error"])
	assert.Contains(t, resp["details"], "llm unavailable")
}

func multipartUpload(t *testing.T, fileName, mimeType, content string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, fileName))
	header.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func doUpload(t *testing.T, r *gin.Engine, fileName, mimeType, content string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartUpload(t, fileName, mimeType, content)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/qa/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUploadSuccess(t *testing.T) {
	ing := &fakeIngestor{count: 4}
	w := doUpload(t, uploadRouter(ing), "report.pdf", "application/pdf", "%PDF fake")

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, "success", resp["status"])
	assert.NotEmpty(t, resp["message"])
	assert.EqualValues(t, 4, resp["chunkCount"])

	assert.Equal(t, 1, ing.calls)
	assert.Equal(t, "report.pdf", ing.fileName)
	assert.Equal(t, "application/pdf", ing.mimeType)
	assert.Equal(t, []byte("%PDF fake"), ing.content)
}

func TestUploadMissingFile(t *testing.T) {
	ing := &fakeIngestor{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/qa/upload", nil)
	w := httptest.NewRecorder()
	uploadRouter(ing).ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, ing.calls)
}

func TestUploadUnsupportedType(t *testing.T) {
	ing := &fakeIngestor{err: fmt.Errorf("%w: text/plain", loader.ErrUnsupportedType)}
	w := doUpload(t, uploadRouter(ing), "notes.txt", "text/plain", "plain text")

	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeBody(t, w)
	assert.Contains(t, resp["error"], "不支持的文件类型")
}

// 解析器明确拒绝（Tika 4xx）映射为 400，其余失败映射为 500。
func TestUploadLoadErrorMapping(t *testing.T) {
	t.Run("解析器拒绝", func(t *testing.T) {
		ing := &fakeIngestor{err: fmt.Errorf("使用 Tika 提取文本失败: %w",
			&tika.StatusError{StatusCode: http.StatusUnprocessableEntity, Body: "corrupt"})}
		w := doUpload(t, uploadRouter(ing), "broken.pdf", "application/pdf", "junk")

		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("服务故障", func(t *testing.T) {
		ing := &fakeIngestor{err: errors.New("es rejected")}
		w := doUpload(t, uploadRouter(ing), "report.pdf", "application/pdf", "%PDF fake")

		require.Equal(t, http.StatusInternalServerError, w.Code)
		resp := decodeBody(t, w)
		assert.Equal(t, "文档入库失败", resp["error"])
		assert.NotEmpty(t, resp["details"])
	})
}

func TestStats(t *testing.T) {
	r := gin.New()
	r.GET("/api/v1/qa/stats", NewStatsHandler(&fakeStats{stats: &model.IndexStats{
		IndexName:   "knowledge_base",
		Namespace:   "knowledge",
		RecordCount: 42,
	}}, "knowledge").Stats)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/qa/stats", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, "knowledge_base", resp["indexName"])
	assert.EqualValues(t, 42, resp["recordCount"])
}

type fakeStats struct {
	stats *model.IndexStats
	err   error
}

func (f *fakeStats) Stats(_ context.Context, _ string) (*model.IndexStats, error) {
	return f.stats, f.err
}
