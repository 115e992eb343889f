package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"smart-hire-go/internal/processor"
	"smart-hire-go/internal/storage/models"
	"smart-hire-go/internal/types"
)

// MatchScoreReader 已持久化匹配得分的读取接口，由MySQL实现
type MatchScoreReader interface {
	ListMatchScoresByJob(ctx context.Context, jobID string, onlyEligible bool) ([]models.MatchScore, error)
}

// JobHandler 岗位管理：创建岗位、触发匹配排名、查询历史得分
type JobHandler struct {
	ingest *processor.IngestProcessor
	match  *processor.MatchProcessor
	scores MatchScoreReader
}

// NewJobHandler 创建岗位处理器；scores可为nil，此时历史得分查询不可用
func NewJobHandler(ingest *processor.IngestProcessor, match *processor.MatchProcessor, scores MatchScoreReader) *JobHandler {
	return &JobHandler{
		ingest: ingest,
		match:  match,
		scores: scores,
	}
}

// JobCreateRequest 创建岗位请求
type JobCreateRequest struct {
	// JobID 可选，为空时自动生成
	JobID       string `json:"job_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// JobCreateResponse 创建岗位响应
type JobCreateResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// HandleCreateJob 创建岗位：解析要求、落库并建立检索索引
func (h *JobHandler) HandleCreateJob(ctx context.Context, req JobCreateRequest) (*JobCreateResponse, error) {
	if strings.TrimSpace(req.Description) == "" {
		return nil, fmt.Errorf("岗位描述不能为空")
	}

	jobID := req.JobID
	if jobID == "" {
		jobID = uuid.NewString()
	}

	if err := h.ingest.IngestJob(ctx, jobID, req.Title, req.Description); err != nil {
		return nil, err
	}
	return &JobCreateResponse{JobID: jobID, Status: "ACTIVE"}, nil
}

// RankResponse 匹配排名响应
type RankResponse struct {
	JobID      string                  `json:"job_id"`
	Candidates []types.RankedCandidate `json:"candidates"`
}

// HandleRankJob 对岗位执行一次完整匹配并返回排名
func (h *JobHandler) HandleRankJob(ctx context.Context, jobID string) (*RankResponse, error) {
	if jobID == "" {
		return nil, fmt.Errorf("岗位标识不能为空")
	}
	if h.match == nil {
		return nil, fmt.Errorf("关系库未配置，匹配排名不可用")
	}

	ranked, err := h.match.RunMatch(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &RankResponse{JobID: jobID, Candidates: ranked}, nil
}

// MatchScoreItem 历史得分查询结果中的一项
type MatchScoreItem struct {
	CandidateID string                `json:"candidate_id"`
	Score       float64               `json:"score"`
	Components  types.ScoreComponents `json:"components"`
	Eligible    bool                  `json:"eligible"`
	EvaluatedAt string                `json:"evaluated_at"`
}

// HandleListMatches 查询岗位已持久化的匹配得分，按分数降序
func (h *JobHandler) HandleListMatches(ctx context.Context, jobID string, onlyEligible bool) ([]MatchScoreItem, error) {
	if h.scores == nil {
		return nil, fmt.Errorf("关系库未配置，历史得分查询不可用")
	}

	records, err := h.scores.ListMatchScoresByJob(ctx, jobID, onlyEligible)
	if err != nil {
		return nil, fmt.Errorf("查询匹配得分失败: %w", err)
	}

	items := make([]MatchScoreItem, 0, len(records))
	for _, record := range records {
		var components types.ScoreComponents
		if len(record.ComponentsJSON) > 0 {
			// 分项解析失败不影响总分展示
			_ = json.Unmarshal(record.ComponentsJSON, &components)
		}
		items = append(items, MatchScoreItem{
			CandidateID: record.CandidateID,
			Score:       record.Score,
			Components:  components,
			Eligible:    record.Eligible,
			EvaluatedAt: record.EvaluatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return items, nil
}
