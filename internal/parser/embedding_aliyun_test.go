package parser

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-hire-go/internal/config"
)

// TestNewAliyunEmbedderRequiresAPIKey 空密钥应拒绝创建
func TestNewAliyunEmbedderRequiresAPIKey(t *testing.T) {
	_, err := NewAliyunEmbedder("", config.EmbeddingConfig{})
	require.Error(t, err)
}

// TestEmbedStringsAgainstFakeServer 用本地假服务器验证请求与响应解析
func TestEmbedStringsAgainstFakeServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-v3", req.Model)

		// 故意乱序返回，验证按Index归位
		resp := map[string]interface{}{
			"object": "list",
			"data": []map[string]interface{}{
				{"object": "embedding", "embedding": []float64{0.4, 0.5}, "index": 1},
				{"object": "embedding", "embedding": []float64{0.1, 0.2}, "index": 0},
			},
			"model": req.Model,
			"usage": map[string]int{"prompt_tokens": 4, "total_tokens": 4},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	embedder, err := NewAliyunEmbedder("test-key", config.EmbeddingConfig{
		Model:   "text-embedding-v3",
		BaseURL: server.URL,
	})
	require.NoError(t, err)

	vectors, err := embedder.EmbedStrings(context.Background(), []string{"resume text", "job text"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float64{0.1, 0.2}, vectors[0])
	assert.Equal(t, []float64{0.4, 0.5}, vectors[1])
}

// TestEmbedStringsEmptyInput 空输入直接返回空结果，不访问网络
func TestEmbedStringsEmptyInput(t *testing.T) {
	embedder, err := NewAliyunEmbedder("test-key", config.EmbeddingConfig{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	vectors, err := embedder.EmbedStrings(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

// TestEmbedStringsServerError 服务器错误要带上状态码和错误消息
func TestEmbedStringsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"message": "rate limit exceeded",
			"type":    "requests",
			"code":    "429",
		})
	}))
	defer server.Close()

	embedder, err := NewAliyunEmbedder("test-key", config.EmbeddingConfig{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = embedder.EmbedStrings(context.Background(), []string{"text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

// TestCompositeExtractorPlainText 组合提取器直接读取txt
func TestCompositeExtractorPlainText(t *testing.T) {
	c := NewCompositeExtractor(nil, nil)

	dir := t.TempDir()
	path := dir + "/resume.txt"
	require.NoError(t, writeFile(path, "plain resume content"))

	text, meta, err := c.ExtractFromFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "plain resume content", text)
	assert.Equal(t, len("plain resume content"), meta["text_length"])
}

// TestCompositeExtractorUnsupported 未知格式必须报错而不是静默跳过
func TestCompositeExtractorUnsupported(t *testing.T) {
	c := NewCompositeExtractor(nil, nil)

	_, _, err := c.ExtractFromFile(context.Background(), "photo.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".png")
}

// TestCompositeExtractorMissingBackend 对应提取器未配置时报错
func TestCompositeExtractorMissingBackend(t *testing.T) {
	c := NewCompositeExtractor(nil, nil)

	_, _, err := c.ExtractFromFile(context.Background(), "resume.pdf")
	require.Error(t, err)

	_, _, err = c.ExtractFromFile(context.Background(), "resume.docx")
	require.Error(t, err)
}

// TestTikaExtractorAgainstFakeServer 用假Tika服务器验证提取流程
func TestTikaExtractorAgainstFakeServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/tika", r.URL.Path)
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
		w.Write([]byte("extracted docx text"))
	}))
	defer server.Close()

	e := NewTikaExtractor(server.URL)

	dir := t.TempDir()
	path := dir + "/resume.docx"
	require.NoError(t, writeFile(path, "binary-ish content"))

	text, meta, err := e.ExtractFromFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "extracted docx text", text)
	assert.NotEmpty(t, meta["tika_content_type"])
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}
