package loader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"doc-qa-go/pkg/log"
	"doc-qa-go/pkg/tika"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	log.Init("error", "json", "")
	os.Exit(m.Run())
}

func stageFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "staged.pdf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSupports(t *testing.T) {
	l := NewTikaLoader(tika.NewClient("http://unused"))

	assert.True(t, l.Supports("application/pdf"))
	assert.True(t, l.Supports("application/vnd.openxmlformats-officedocument.wordprocessingml.document"))
	// MIME 参数与大小写不影响判定
	assert.True(t, l.Supports("application/PDF; charset=UTF-8"))
	assert.False(t, l.Supports("text/plain"))
	assert.False(t, l.Supports("image/png"))
	assert.False(t, l.Supports(""))
}

// 不支持的类型在发起任何 Tika 调用之前就被拒绝。
func TestLoadUnsupportedType(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	l := NewTikaLoader(tika.NewClient(server.URL))
	_, err := l.Load(context.Background(), stageFile(t, "raw"), "text/plain")

	require.ErrorIs(t, err, ErrUnsupportedType)
	assert.Zero(t, calls)
}

func TestLoadSplitsPages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "application/pdf", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte("第一页内容\f第二页内容\f\f第四页内容"))
	}))
	defer server.Close()

	l := NewTikaLoader(tika.NewClient(server.URL))
	segments, err := l.Load(context.Background(), stageFile(t, "%PDF-1.4 fake"), "application/pdf")

	require.NoError(t, err)
	require.Len(t, segments, 3)
	assert.Equal(t, Segment{Text: "第一页内容", Page: 1}, segments[0])
	assert.Equal(t, Segment{Text: "第二页内容", Page: 2}, segments[1])
	// 空白页被丢弃，页码保持原始顺序
	assert.Equal(t, Segment{Text: "第四页内容", Page: 4}, segments[2])
}

// Tika 4xx 表示解析器明确拒绝了文件，错误类型要可供上层识别。
func TestLoadParserRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte("corrupt document"))
	}))
	defer server.Close()

	l := NewTikaLoader(tika.NewClient(server.URL))
	_, err := l.Load(context.Background(), stageFile(t, "broken"), "application/pdf")

	require.Error(t, err)
	var statusErr *tika.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.True(t, statusErr.ClientRejected())
}

func TestLoadMissingFile(t *testing.T) {
	l := NewTikaLoader(tika.NewClient("http://unused"))
	_, err := l.Load(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"), "application/pdf")
	require.Error(t, err)
}
