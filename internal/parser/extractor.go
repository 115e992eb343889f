package parser

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// TextExtractor 文档文本提取接口
type TextExtractor interface {
	// ExtractFromFile 从文件提取纯文本和元数据
	ExtractFromFile(ctx context.Context, filePath string) (string, map[string]interface{}, error)

	// ExtractFromReader 从io.Reader提取纯文本和元数据，uri仅用于日志和元数据
	ExtractFromReader(ctx context.Context, reader io.Reader, uri string) (string, map[string]interface{}, error)
}

// CompositeExtractor 按文件扩展名路由到具体提取器：
// PDF走本地解析，DOCX等办公格式走Tika，纯文本直接读取
type CompositeExtractor struct {
	pdf  TextExtractor
	tika TextExtractor
}

// NewCompositeExtractor 创建组合提取器；tika可以为nil，此时仅支持PDF和TXT
func NewCompositeExtractor(pdf TextExtractor, tika TextExtractor) *CompositeExtractor {
	return &CompositeExtractor{pdf: pdf, tika: tika}
}

// ExtractFromFile 根据扩展名选择提取器
func (c *CompositeExtractor) ExtractFromFile(ctx context.Context, filePath string) (string, map[string]interface{}, error) {
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".txt", ".md":
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", nil, fmt.Errorf("读取文本文件失败: %w", err)
		}
		meta := map[string]interface{}{
			"source_file_path": filePath,
			"text_length":      len(data),
		}
		return string(data), meta, nil

	case ".pdf":
		if c.pdf == nil {
			return "", nil, fmt.Errorf("未配置PDF提取器")
		}
		return c.pdf.ExtractFromFile(ctx, filePath)

	case ".docx", ".doc", ".rtf", ".odt":
		if c.tika == nil {
			return "", nil, fmt.Errorf("未配置Tika服务器，无法处理 %s 格式", ext)
		}
		return c.tika.ExtractFromFile(ctx, filePath)

	default:
		return "", nil, fmt.Errorf("不支持的文件格式: %s", ext)
	}
}

// ExtractFromReader 根据uri的扩展名选择提取器
func (c *CompositeExtractor) ExtractFromReader(ctx context.Context, reader io.Reader, uri string) (string, map[string]interface{}, error) {
	ext := strings.ToLower(filepath.Ext(uri))

	switch ext {
	case ".txt", ".md":
		data, err := io.ReadAll(reader)
		if err != nil {
			return "", nil, fmt.Errorf("读取文本内容失败: %w", err)
		}
		meta := map[string]interface{}{
			"source_uri":  uri,
			"text_length": len(data),
		}
		return string(data), meta, nil

	case ".pdf":
		if c.pdf == nil {
			return "", nil, fmt.Errorf("未配置PDF提取器")
		}
		return c.pdf.ExtractFromReader(ctx, reader, uri)

	case ".docx", ".doc", ".rtf", ".odt":
		if c.tika == nil {
			return "", nil, fmt.Errorf("未配置Tika服务器，无法处理 %s 格式", ext)
		}
		return c.tika.ExtractFromReader(ctx, reader, uri)

	default:
		return "", nil, fmt.Errorf("不支持的文件格式: %s", ext)
	}
}

var _ TextExtractor = (*CompositeExtractor)(nil)
