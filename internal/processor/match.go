package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"smart-hire-go/internal/constants"
	"smart-hire-go/internal/logger"
	"smart-hire-go/internal/matcher"
	"smart-hire-go/internal/storage/models"
	"smart-hire-go/internal/tracing"
	"smart-hire-go/internal/types"
)

// MatchProcessor 岗位匹配流程：取候选人全集、打分、落库、产出排名
type MatchProcessor struct {
	db     CandidateStore
	ranker *matcher.Ranker
	topK   int
	log    zerolog.Logger
}

// MatchOption 配置选项
type MatchOption func(*MatchProcessor)

// WithMatchTopK 设置排名输出的候选人数
func WithMatchTopK(k int) MatchOption {
	return func(p *MatchProcessor) {
		if k > 0 {
			p.topK = k
		}
	}
}

// NewMatchProcessor 创建匹配流程
func NewMatchProcessor(db CandidateStore, ranker *matcher.Ranker, options ...MatchOption) *MatchProcessor {
	p := &MatchProcessor{
		db:     db,
		ranker: ranker,
		topK:   constants.DefaultTopKCandidates,
		log:    logger.Logger.With().Str("component", "match").Logger(),
	}
	for _, option := range options {
		option(p)
	}
	return p
}

// RunMatch 对岗位执行一次完整的匹配评估
// 所有候选人的得分都会落库；返回通过门槛的前topK名
func (p *MatchProcessor) RunMatch(ctx context.Context, jobID string) ([]types.RankedCandidate, error) {
	ctx, span := processorTracer.Start(ctx, "MatchProcessor.RunMatch",
		trace.WithAttributes(attribute.String("job_id", jobID)))
	defer span.End()

	job, err := p.db.GetJobByID(ctx, jobID)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, fmt.Errorf("获取岗位 %s 失败: %w", jobID, err)
	}

	candidates, err := p.db.ListProcessedCandidates(ctx)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, fmt.Errorf("获取候选人列表失败: %w", err)
	}
	if len(candidates) == 0 {
		span.SetStatus(codes.Ok, "")
		return []types.RankedCandidate{}, nil
	}

	docs := make([]matcher.CandidateDoc, len(candidates))
	for i, cand := range candidates {
		docs[i] = matcher.CandidateDoc{Ref: cand.CandidateID, Text: cand.ResumeText}
	}

	results := p.ranker.ScoreAll(ctx, jobID, job.JobDescriptionText, docs)

	now := time.Now()
	for _, res := range results {
		componentsJSON, _ := json.Marshal(res.Components)
		score := &models.MatchScore{
			CandidateID:    res.CandidateRef,
			JobID:          jobID,
			Score:          res.Score,
			ComponentsJSON: datatypes.JSON(componentsJSON),
			Eligible:       res.Eligible,
			EvaluatedAt:    now,
		}
		if err := p.db.UpsertMatchScore(ctx, score); err != nil {
			// 单条落库失败不中断整体评估
			p.log.Error().Err(err).
				Str("candidate_id", res.CandidateRef).
				Str("job_id", jobID).
				Msg("匹配得分落库失败")
		}
	}

	ranked := topRanked(results, p.topK)

	p.log.Info().
		Str("job_id", jobID).
		Int("scored", len(results)).
		Int("ranked", len(ranked)).
		Msg("岗位匹配评估完成")

	span.SetAttributes(
		attribute.Int("scored_count", len(results)),
		attribute.Int("ranked_count", len(ranked)))
	span.SetStatus(codes.Ok, "")
	return ranked, nil
}

// topRanked 从全量结果中取通过门槛的前k名，分数降序、同分保持原顺序
func topRanked(results []types.MatchResult, k int) []types.RankedCandidate {
	sorted := append([]types.MatchResult(nil), results...)
	sort.SliceStable(sorted, func(a, b int) bool {
		return sorted[a].Score > sorted[b].Score
	})

	ranked := make([]types.RankedCandidate, 0, k)
	for _, res := range sorted {
		if !res.Eligible {
			continue
		}
		ranked = append(ranked, types.RankedCandidate{
			CandidateRef: res.CandidateRef,
			Score:        res.Score,
			Components:   res.Components,
		})
		if len(ranked) >= k {
			break
		}
	}
	return ranked
}
