package processor

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"smart-hire-go/internal/config"
	"smart-hire-go/internal/constants"
	"smart-hire-go/internal/logger"
	"smart-hire-go/internal/parser"
	"smart-hire-go/internal/storage"
	"smart-hire-go/internal/storage/models"
	"smart-hire-go/internal/tracing"
	"smart-hire-go/internal/types"
)

var processorTracer = otel.Tracer("smart-hire-go/processor")

// IngestInput 一次简历入库请求
type IngestInput struct {
	// CandidateID 候选人标识，同时作为索引中的SourceID
	CandidateID string
	// Filename 原始文件名，用于选择提取器
	Filename string
	// Reader 文件内容
	Reader io.Reader
	// Size 文件字节数，未知时传-1
	Size int64
	// TargetJobID 可选，指定后入库完成会触发该岗位的匹配事件
	TargetJobID string
}

// IngestResult 入库结果
type IngestResult struct {
	CandidateID string              `json:"candidate_id"`
	Duplicate   bool                `json:"duplicate"`
	ChunkCount  int                 `json:"chunk_count"`
	Profile     types.ParsedProfile `json:"profile"`
	TextLength  int                 `json:"text_length"`
}

// IngestProcessor 简历入库流水线：提取 -> 去重 -> 画像解析 -> 分块 -> 建索引 -> 落库
type IngestProcessor struct {
	extractor TextExtractor
	chunker   *parser.Chunker
	indexer   ChunkIndexer

	// 以下依赖均可为nil，缺失时对应步骤跳过
	dedup     DedupStore
	objects   ObjectStore
	db        CandidateStore
	publisher EventPublisher

	mqCfg *config.RabbitMQConfig
	log   zerolog.Logger
}

// IngestOption 配置选项
type IngestOption func(*IngestProcessor)

// WithDedupStore 启用基于MD5的内容去重
func WithDedupStore(dedup DedupStore) IngestOption {
	return func(p *IngestProcessor) {
		p.dedup = dedup
	}
}

// WithObjectStore 启用原始文件和解析文本的对象存储
func WithObjectStore(objects ObjectStore) IngestOption {
	return func(p *IngestProcessor) {
		p.objects = objects
	}
}

// WithCandidateStore 启用候选人关系库落库
func WithCandidateStore(db CandidateStore) IngestOption {
	return func(p *IngestProcessor) {
		p.db = db
	}
}

// WithEventPublisher 启用入库完成后的事件发布
func WithEventPublisher(publisher EventPublisher, mqCfg *config.RabbitMQConfig) IngestOption {
	return func(p *IngestProcessor) {
		p.publisher = publisher
		p.mqCfg = mqCfg
	}
}

// NewIngestProcessor 创建入库流水线；extractor、chunker、indexer为必需依赖
func NewIngestProcessor(extractor TextExtractor, chunker *parser.Chunker, indexer ChunkIndexer, options ...IngestOption) *IngestProcessor {
	p := &IngestProcessor{
		extractor: extractor,
		chunker:   chunker,
		indexer:   indexer,
		log:       logger.Logger.With().Str("component", "ingest").Logger(),
	}
	for _, option := range options {
		option(p)
	}
	return p
}

// ProcessResume 执行完整的简历入库流程
// 内容重复时返回Duplicate=true并跳过后续步骤
func (p *IngestProcessor) ProcessResume(ctx context.Context, input IngestInput) (*IngestResult, error) {
	ctx, span := processorTracer.Start(ctx, "IngestProcessor.ProcessResume",
		trace.WithAttributes(
			attribute.String("candidate_id", input.CandidateID),
			attribute.String("filename", input.Filename)))
	defer span.End()

	if input.CandidateID == "" {
		err := fmt.Errorf("候选人标识不能为空")
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}

	// 先把内容读进内存：提取和对象存储都需要完整内容
	data, err := io.ReadAll(input.Reader)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return nil, fmt.Errorf("读取上传内容失败: %w", err)
	}

	var originalPath string
	if p.objects != nil {
		ext := filepath.Ext(input.Filename)
		originalPath, _, err = p.objects.UploadOriginalFile(ctx, input.CandidateID, ext, bytes.NewReader(data), int64(len(data)))
		if err != nil {
			// 对象存储失败不阻断入库，原始文件丢失可以重传
			p.log.Warn().Err(err).Str("candidate_id", input.CandidateID).Msg("上传原始文件失败")
		}
	}

	text, _, err := p.extractor.ExtractFromReader(ctx, bytes.NewReader(data), input.Filename)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExtraction)
		p.markFailed(ctx, input, originalPath)
		return nil, fmt.Errorf("提取文本失败: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		err := fmt.Errorf("文档中没有可用文本: %s", input.Filename)
		tracing.RecordError(span, err, tracing.ErrorTypeExtraction)
		p.markFailed(ctx, input, originalPath)
		return nil, err
	}

	textMD5 := md5Hex(text)
	span.SetAttributes(attribute.String("text_md5", textMD5))

	if p.dedup != nil {
		fresh, err := p.dedup.CheckAndRecordTextMD5(ctx, textMD5)
		if err != nil {
			// 去重服务故障时放行，宁可重复处理也不丢简历
			p.log.Warn().Err(err).Msg("MD5去重检查失败，跳过去重")
		} else if !fresh {
			p.log.Info().Str("candidate_id", input.CandidateID).Str("md5", textMD5).Msg("检测到重复简历内容")
			p.persistCandidate(ctx, input, originalPath, "", text, textMD5, types.ParsedProfile{}, models.StatusDuplicate)
			span.SetAttributes(attribute.Bool("duplicate", true))
			span.SetStatus(codes.Ok, "")
			return &IngestResult{CandidateID: input.CandidateID, Duplicate: true, TextLength: len(text)}, nil
		}
	}

	profile := parser.ParseProfile(text)

	chunks := p.chunker.Split(text, input.CandidateID, constants.TagResume)
	if err := p.indexer.Upsert(ctx, chunks); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeIndex)
		p.markFailed(ctx, input, originalPath)
		return nil, fmt.Errorf("写入向量索引失败: %w", err)
	}

	var parsedPath string
	if p.objects != nil {
		parsedPath, err = p.objects.UploadParsedText(ctx, input.CandidateID, text)
		if err != nil {
			p.log.Warn().Err(err).Str("candidate_id", input.CandidateID).Msg("上传解析文本失败")
		}
	}

	p.persistCandidate(ctx, input, originalPath, parsedPath, text, textMD5, profile, models.StatusProcessed)

	if p.publisher != nil && p.mqCfg != nil && input.TargetJobID != "" {
		msg := storage.MatchNeededMessage{JobID: input.TargetJobID, CandidateID: input.CandidateID, RequestedAt: time.Now()}
		if err := p.publisher.PublishJSON(ctx, p.mqCfg.MatchEventsExchange, p.mqCfg.MatchNeededRoutingKey, msg, true); err != nil {
			p.log.Warn().Err(err).Str("job_id", input.TargetJobID).Msg("发布匹配事件失败")
		}
	}

	p.log.Info().
		Str("candidate_id", input.CandidateID).
		Int("chunks", len(chunks)).
		Int("skills", len(profile.Skills)).
		Msg("简历入库完成")

	span.SetAttributes(attribute.Int("chunk_count", len(chunks)))
	span.SetStatus(codes.Ok, "")
	return &IngestResult{
		CandidateID: input.CandidateID,
		ChunkCount:  len(chunks),
		Profile:     profile,
		TextLength:  len(text),
	}, nil
}

// IngestJob 岗位描述入库：解析要求、落库、分块进索引（供问答检索）
func (p *IngestProcessor) IngestJob(ctx context.Context, jobID, title, description string) error {
	ctx, span := processorTracer.Start(ctx, "IngestProcessor.IngestJob",
		trace.WithAttributes(attribute.String("job_id", jobID)))
	defer span.End()

	if strings.TrimSpace(description) == "" {
		err := fmt.Errorf("岗位描述不能为空")
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return err
	}

	requirements := parser.ParseProfile(description)

	if p.db != nil {
		reqJSON, _ := json.Marshal(requirements)
		job := &models.Job{
			JobID:              jobID,
			JobTitle:           title,
			JobDescriptionText: description,
			RequirementsJSON:   datatypes.JSON(reqJSON),
			Status:             "ACTIVE",
		}
		if err := p.db.UpsertJob(ctx, job); err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeDB)
			return fmt.Errorf("岗位落库失败: %w", err)
		}
	}

	chunks := p.chunker.Split(description, jobID, constants.TagJobDescription)
	if err := p.indexer.Upsert(ctx, chunks); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeIndex)
		return fmt.Errorf("岗位描述写入索引失败: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// persistCandidate 尽力把候选人状态落库，失败只记录日志
func (p *IngestProcessor) persistCandidate(ctx context.Context, input IngestInput, originalPath, parsedPath, text, textMD5 string, profile types.ParsedProfile, status string) {
	if p.db == nil {
		return
	}

	profileJSON, _ := json.Marshal(profile)
	candidate := &models.Candidate{
		CandidateID:         input.CandidateID,
		OriginalFilename:    input.Filename,
		OriginalFilePathOSS: originalPath,
		ParsedTextPathOSS:   parsedPath,
		RawTextMD5:          textMD5,
		ProfileJSON:         datatypes.JSON(profileJSON),
		ResumeText:          text,
		ProcessingStatus:    status,
	}
	if err := p.db.UpsertCandidate(ctx, candidate); err != nil {
		p.log.Error().Err(err).Str("candidate_id", input.CandidateID).Msg("候选人落库失败")
	}
}

// markFailed 把失败状态落库
func (p *IngestProcessor) markFailed(ctx context.Context, input IngestInput, originalPath string) {
	p.persistCandidate(ctx, input, originalPath, "", "", "", types.ParsedProfile{}, models.StatusFailed)
}

func md5Hex(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}
