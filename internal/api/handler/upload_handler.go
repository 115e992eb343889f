package handler

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"smart-hire-go/internal/config"
	"smart-hire-go/internal/logger"
	"smart-hire-go/internal/processor"
	"smart-hire-go/internal/storage"
)

// 上传响应中的处理状态
const (
	StatusSubmitted        = "SUBMITTED_FOR_PROCESSING"
	StatusProcessed        = "PROCESSED"
	StatusDuplicateFile    = "DUPLICATE_FILE_SKIPPED"
	StatusDuplicateContent = "DUPLICATE_CONTENT_SKIPPED"
)

// UploadHandler 简历上传入口，协调去重、对象存储和入库流程
type UploadHandler struct {
	cfg     *config.Config
	storage *storage.Storage
	ingest  *processor.IngestProcessor
}

// NewUploadHandler 创建上传处理器
func NewUploadHandler(cfg *config.Config, storageManager *storage.Storage, ingest *processor.IngestProcessor) *UploadHandler {
	return &UploadHandler{
		cfg:     cfg,
		storage: storageManager,
		ingest:  ingest,
	}
}

// ResumeUploadResponse 简历上传响应
type ResumeUploadResponse struct {
	CandidateID string `json:"candidate_id"`
	Status      string `json:"status"`
	// Result 同步处理模式下附带的入库结果
	Result *processor.IngestResult `json:"result,omitempty"`
}

// HandleResumeUpload 处理简历上传
// MinIO和RabbitMQ都可用时走异步路径：上传文件、发布事件、立即返回；
// 否则退化为同步入库，处理完成后才返回
func (h *UploadHandler) HandleResumeUpload(ctx context.Context, reader io.Reader, fileSize int64,
	filename string, targetJobID string) (*ResumeUploadResponse, error) {

	// reader只能读一次，先读进内存供MD5、MinIO和提取共用
	fileBytes, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("读取上传文件内容失败: %w", err)
	}
	if len(fileBytes) == 0 {
		return nil, fmt.Errorf("上传文件为空: %s", filename)
	}

	if h.storage != nil && h.storage.Redis != nil {
		sum := md5.Sum(fileBytes)
		fileMD5 := hex.EncodeToString(sum[:])

		fresh, err := h.storage.Redis.CheckAndRecordFileMD5(ctx, fileMD5)
		if err != nil {
			// 去重失败放行，后面的文本级MD5是第二道防线
			logger.Warn().Err(err).Str("md5", fileMD5).Msg("文件MD5去重检查失败")
		} else if !fresh {
			logger.Info().Str("md5", fileMD5).Str("filename", filename).Msg("检测到重复文件，跳过处理")
			return &ResumeUploadResponse{Status: StatusDuplicateFile}, nil
		}
	}

	candidateID := uuid.NewString()

	if h.asyncAvailable() {
		return h.submitAsync(ctx, candidateID, filename, targetJobID, fileBytes)
	}

	result, err := h.ingest.ProcessResume(ctx, processor.IngestInput{
		CandidateID: candidateID,
		Filename:    filename,
		Reader:      bytes.NewReader(fileBytes),
		Size:        int64(len(fileBytes)),
		TargetJobID: targetJobID,
	})
	if err != nil {
		return nil, err
	}

	status := StatusProcessed
	if result.Duplicate {
		status = StatusDuplicateContent
	}
	return &ResumeUploadResponse{CandidateID: candidateID, Status: status, Result: result}, nil
}

func (h *UploadHandler) asyncAvailable() bool {
	return h.storage != nil && h.storage.MinIO != nil && h.storage.RabbitMQ != nil
}

func (h *UploadHandler) submitAsync(ctx context.Context, candidateID, filename, targetJobID string, fileBytes []byte) (*ResumeUploadResponse, error) {
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".pdf"
	}

	objectKey, _, err := h.storage.MinIO.UploadOriginalFile(ctx, candidateID, ext, bytes.NewReader(fileBytes), int64(len(fileBytes)))
	if err != nil {
		return nil, fmt.Errorf("上传简历到MinIO失败: %w", err)
	}

	message := storage.ResumeUploadedMessage{
		CandidateID:         candidateID,
		OriginalFilePathOSS: objectKey,
		OriginalFilename:    filename,
		TargetJobID:         targetJobID,
		SubmittedAt:         time.Now(),
	}
	if err := h.storage.RabbitMQ.PublishJSON(ctx,
		h.cfg.RabbitMQ.ResumeEventsExchange,
		h.cfg.RabbitMQ.UploadedRoutingKey,
		message, true); err != nil {
		return nil, fmt.Errorf("发布简历上传事件失败: %w", err)
	}

	logger.Info().
		Str("candidate_id", candidateID).
		Str("object_key", objectKey).
		Msg("简历已提交异步处理")
	return &ResumeUploadResponse{CandidateID: candidateID, Status: StatusSubmitted}, nil
}
