package parser

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
	"github.com/rs/zerolog"

	"smart-hire-go/internal/logger"
)

// EinoPDFExtractor 使用eino PDF parser提取文本
type EinoPDFExtractor struct {
	parser  *pdf.PDFParser
	timeout time.Duration
	log     zerolog.Logger
}

// EinoPDFOption PDF提取器的配置选项
type EinoPDFOption func(*EinoPDFExtractor)

// WithExtractTimeout 设置单次提取的超时时间
func WithExtractTimeout(timeout time.Duration) EinoPDFOption {
	return func(e *EinoPDFExtractor) {
		e.timeout = timeout
	}
}

// WithEinoLogger 配置自定义日志记录器
func WithEinoLogger(log zerolog.Logger) EinoPDFOption {
	return func(e *EinoPDFExtractor) {
		e.log = log
	}
}

// NewEinoPDFExtractor 初始化PDF文本提取器
// 不按页面分割，整个文档作为一段连续文本返回
func NewEinoPDFExtractor(ctx context.Context, options ...EinoPDFOption) (*EinoPDFExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{
		ToPages: false,
	})
	if err != nil {
		return nil, fmt.Errorf("创建PDF解析器失败: %w", err)
	}

	extractor := &EinoPDFExtractor{
		parser:  p,
		timeout: 30 * time.Second,
		log:     logger.Logger.With().Str("component", "pdf_extractor").Logger(),
	}

	for _, option := range options {
		option(extractor)
	}

	return extractor, nil
}

// ExtractFromFile 从PDF文件提取纯文本
func (e *EinoPDFExtractor) ExtractFromFile(ctx context.Context, filePath string) (string, map[string]interface{}, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", nil, fmt.Errorf("打开PDF文件失败 %s: %w", filePath, err)
	}
	defer file.Close()

	return e.ExtractFromReader(ctx, file, filePath)
}

// ExtractFromReader 从io.Reader提取纯文本和解析元数据
func (e *EinoPDFExtractor) ExtractFromReader(ctx context.Context, reader io.Reader, uri string) (string, map[string]interface{}, error) {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	docs, err := e.parser.Parse(ctx, reader, einoParser.WithURI(uri))
	duration := time.Since(startTime)
	if err != nil {
		e.log.Error().Err(err).Str("uri", uri).Dur("duration", duration).Msg("PDF提取失败")
		return "", nil, fmt.Errorf("PDF解析失败 %s: %w", uri, err)
	}
	if len(docs) == 0 {
		return "", nil, fmt.Errorf("PDF解析无结果: %s", uri)
	}

	// ToPages=false时通常只有一个文档，多个时拼接
	var fullText string
	for i, doc := range docs {
		fullText += doc.Content
		if i < len(docs)-1 {
			fullText += "\n\n"
		}
	}

	metadata := make(map[string]interface{})
	if docs[0].MetaData != nil {
		for k, v := range docs[0].MetaData {
			metadata[k] = v
		}
	}
	metadata["source_uri"] = uri
	metadata["document_count"] = len(docs)
	metadata["text_length"] = len(fullText)
	metadata["processing_duration_ms"] = duration.Milliseconds()

	e.log.Debug().Str("uri", uri).Int("chars", len(fullText)).Dur("duration", duration).Msg("PDF提取完成")
	return fullText, metadata, nil
}

var _ TextExtractor = (*EinoPDFExtractor)(nil)
