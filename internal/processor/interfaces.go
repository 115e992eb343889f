package processor

import (
	"context"
	"io"

	"smart-hire-go/internal/storage/models"
	"smart-hire-go/internal/types"
)

// TextExtractor 文档文本提取接口，由parser包实现
type TextExtractor interface {
	ExtractFromReader(ctx context.Context, reader io.Reader, uri string) (string, map[string]interface{}, error)
}

// ChunkIndexer 向量索引写入接口，由index包实现
type ChunkIndexer interface {
	Upsert(ctx context.Context, chunks []types.Chunk) error
	Count() int
}

// DedupStore 内容去重接口，由Redis实现
type DedupStore interface {
	CheckAndRecordTextMD5(ctx context.Context, md5Hex string) (bool, error)
}

// ObjectStore 对象存储接口，由MinIO实现
type ObjectStore interface {
	UploadOriginalFile(ctx context.Context, candidateID, fileExt string, reader io.Reader, fileSize int64) (string, string, error)
	UploadParsedText(ctx context.Context, candidateID string, text string) (string, error)
	GetOriginalFile(ctx context.Context, objectName string) ([]byte, error)
}

// CandidateStore 候选人与岗位的关系库接口，由MySQL实现
type CandidateStore interface {
	UpsertCandidate(ctx context.Context, candidate *models.Candidate) error
	GetJobByID(ctx context.Context, jobID string) (*models.Job, error)
	UpsertJob(ctx context.Context, job *models.Job) error
	ListProcessedCandidates(ctx context.Context) ([]models.Candidate, error)
	UpsertMatchScore(ctx context.Context, score *models.MatchScore) error
}

// EventPublisher 事件发布接口，由RabbitMQ实现
type EventPublisher interface {
	PublishJSON(ctx context.Context, exchangeName, routingKey string, data interface{}, persistent bool) error
}
