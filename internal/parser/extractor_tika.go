package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"smart-hire-go/internal/logger"
)

// TikaExtractor 通过Apache Tika服务器提取文本，处理DOCX等办公文档
type TikaExtractor struct {
	serverURL string
	client    *http.Client
	// 是否在元数据中附带内容类型等信息
	includeMetadata bool
	log             zerolog.Logger
}

// TikaOption 配置选项
type TikaOption func(*TikaExtractor)

// WithTikaTimeout 设置HTTP客户端超时
func WithTikaTimeout(timeout time.Duration) TikaOption {
	return func(e *TikaExtractor) {
		e.client.Timeout = timeout
	}
}

// WithTikaMetadata 配置是否在返回的元数据中附带Tika响应头信息
func WithTikaMetadata(include bool) TikaOption {
	return func(e *TikaExtractor) {
		e.includeMetadata = include
	}
}

// WithTikaLogger 配置自定义日志记录器
func WithTikaLogger(log zerolog.Logger) TikaOption {
	return func(e *TikaExtractor) {
		e.log = log
	}
}

// NewTikaExtractor 创建Tika提取器，serverURL例如 http://localhost:9998
func NewTikaExtractor(serverURL string, options ...TikaOption) *TikaExtractor {
	extractor := &TikaExtractor{
		serverURL:       serverURL,
		client:          &http.Client{Timeout: 60 * time.Second},
		includeMetadata: true,
		log:             logger.Logger.With().Str("component", "tika_extractor").Logger(),
	}

	for _, option := range options {
		option(extractor)
	}

	return extractor
}

// ExtractFromFile 从文件提取文本
func (e *TikaExtractor) ExtractFromFile(ctx context.Context, filePath string) (string, map[string]interface{}, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", nil, fmt.Errorf("打开文件失败 %s: %w", filePath, err)
	}
	defer file.Close()

	return e.ExtractFromReader(ctx, file, filePath)
}

// ExtractFromReader 将内容PUT到Tika的/tika端点，取回纯文本
func (e *TikaExtractor) ExtractFromReader(ctx context.Context, reader io.Reader, uri string) (string, map[string]interface{}, error) {
	startTime := time.Now()

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", nil, fmt.Errorf("读取文档内容失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, e.serverURL+"/tika", bytes.NewReader(data))
	if err != nil {
		return "", nil, fmt.Errorf("创建Tika请求失败: %w", err)
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("调用Tika服务器失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("读取Tika响应失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("Tika服务器返回错误, 状态码: %d, 响应: %.200s", resp.StatusCode, string(body))
	}

	duration := time.Since(startTime)
	text := string(body)

	metadata := map[string]interface{}{
		"source_uri":             uri,
		"text_length":            len(text),
		"processing_duration_ms": duration.Milliseconds(),
	}
	if e.includeMetadata {
		metadata["tika_content_type"] = resp.Header.Get("Content-Type")
	}

	e.log.Debug().Str("uri", uri).Int("chars", len(text)).Dur("duration", duration).Msg("Tika提取完成")
	return text, metadata, nil
}

var _ TextExtractor = (*TikaExtractor)(nil)
