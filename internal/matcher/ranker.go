package matcher

import (
	"context"
	"sort"

	"github.com/cloudwego/eino/components/embedding"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"smart-hire-go/internal/constants"
	"smart-hire-go/internal/index"
	"smart-hire-go/internal/logger"
	"smart-hire-go/internal/parser"
	"smart-hire-go/internal/types"
)

var matcherTracer = otel.Tracer("smart-hire-go/matcher")

// CandidateDoc 待排名的候选人文档
type CandidateDoc struct {
	// Ref 候选人标识，透传到排名结果
	Ref string
	// Text 简历全文
	Text string
}

// VectorCache 岗位向量缓存，命中时省掉岗位文本的重复嵌入
// 未命中约定返回(nil, nil)
type VectorCache interface {
	GetJobVector(ctx context.Context, jobID string) ([]float64, error)
	SetJobVector(ctx context.Context, jobID string, vector []float64) error
}

// Ranker 对一批候选人做岗位匹配排名
type Ranker struct {
	scorer   *Scorer
	embedder embedding.Embedder
	cache    VectorCache
	topK     int
}

// RankerOption 配置选项
type RankerOption func(*Ranker)

// WithTopK 设置排名输出的候选人数
func WithTopK(k int) RankerOption {
	return func(r *Ranker) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithVectorCache 设置岗位向量缓存；缓存读写失败只降级为重新嵌入
func WithVectorCache(cache VectorCache) RankerOption {
	return func(r *Ranker) {
		r.cache = cache
	}
}

// NewRanker 创建排名器；embedder缺失时语义分项恒为0，其余分项照常计算
func NewRanker(scorer *Scorer, embedder embedding.Embedder, options ...RankerOption) *Ranker {
	r := &Ranker{
		scorer:   scorer,
		embedder: embedder,
		topK:     constants.DefaultTopKCandidates,
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// RankCandidates 计算所有候选人的匹配结果并返回前topK名
// 全部候选人都会被打分；未通过资格门槛的不进入输出
// 嵌入失败时降级为语义分0，不中断整个排名
// jobID用于岗位向量缓存，可以为空（空串跳过缓存）
func (r *Ranker) RankCandidates(ctx context.Context, jobID, jobText string, candidates []CandidateDoc) ([]types.RankedCandidate, error) {
	ctx, span := matcherTracer.Start(ctx, "Ranker.RankCandidates",
		trace.WithAttributes(
			attribute.Int("candidate_count", len(candidates)),
			attribute.Int("top_k", r.topK)))
	defer span.End()

	if len(candidates) == 0 {
		span.SetStatus(codes.Ok, "")
		return []types.RankedCandidate{}, nil
	}

	jobProfile := parser.ParseProfile(jobText)

	// 一次批量调用嵌入岗位文本和全部简历，失败时整批降级为零向量
	semantics := r.semanticSimilarities(ctx, jobID, jobText, candidates)

	results := make([]types.MatchResult, 0, len(candidates))
	for i, cand := range candidates {
		profile := parser.ParseProfile(cand.Text)
		results = append(results, r.scorer.Score(cand.Ref, profile, jobProfile, semantics[i]))
	}

	// 分数降序；同分时保持输入顺序
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})

	ranked := make([]types.RankedCandidate, 0, r.topK)
	for _, res := range results {
		if !res.Eligible {
			continue
		}
		ranked = append(ranked, types.RankedCandidate{
			CandidateRef: res.CandidateRef,
			Score:        res.Score,
			Components:   res.Components,
		})
		if len(ranked) >= r.topK {
			break
		}
	}

	span.SetAttributes(attribute.Int("ranked_count", len(ranked)))
	span.SetStatus(codes.Ok, "")
	return ranked, nil
}

// ScoreAll 计算全部候选人的匹配结果，不过滤、不截断，供落库使用
func (r *Ranker) ScoreAll(ctx context.Context, jobID, jobText string, candidates []CandidateDoc) []types.MatchResult {
	ctx, span := matcherTracer.Start(ctx, "Ranker.ScoreAll",
		trace.WithAttributes(attribute.Int("candidate_count", len(candidates))))
	defer span.End()

	jobProfile := parser.ParseProfile(jobText)
	semantics := r.semanticSimilarities(ctx, jobID, jobText, candidates)

	results := make([]types.MatchResult, 0, len(candidates))
	for i, cand := range candidates {
		profile := parser.ParseProfile(cand.Text)
		results = append(results, r.scorer.Score(cand.Ref, profile, jobProfile, semantics[i]))
	}

	span.SetStatus(codes.Ok, "")
	return results
}

// semanticSimilarities 返回每个候选人与岗位文本的余弦相似度
// 岗位向量优先走缓存，未命中时随本批一起嵌入并回填
// 嵌入器缺失或调用失败时全部返回0
func (r *Ranker) semanticSimilarities(ctx context.Context, jobID, jobText string, candidates []CandidateDoc) []float64 {
	similarities := make([]float64, len(candidates))
	if r.embedder == nil || len(candidates) == 0 {
		return similarities
	}

	jobVector := r.cachedJobVector(ctx, jobID)

	texts := make([]string, 0, len(candidates)+1)
	if jobVector == nil {
		texts = append(texts, jobText)
	}
	for _, cand := range candidates {
		texts = append(texts, cand.Text)
	}

	vectors, err := r.embedder.EmbedStrings(ctx, texts)
	if err != nil || len(vectors) != len(texts) {
		logger.Ctx(ctx).Warn().Err(err).
			Int("candidates", len(candidates)).
			Msg("批量嵌入失败，语义分项降级为0")
		return similarities
	}

	candidateVectors := vectors
	if jobVector == nil {
		jobVector = vectors[0]
		candidateVectors = vectors[1:]
		r.storeJobVector(ctx, jobID, jobVector)
	}

	for i := range candidates {
		similarities[i] = index.CosineSimilarity(jobVector, candidateVectors[i])
	}
	return similarities
}

// cachedJobVector 读取缓存的岗位向量；缓存缺失或读失败都返回nil
func (r *Ranker) cachedJobVector(ctx context.Context, jobID string) []float64 {
	if r.cache == nil || jobID == "" {
		return nil
	}
	vector, err := r.cache.GetJobVector(ctx, jobID)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).
			Str("job_id", jobID).
			Msg("读取岗位向量缓存失败，回退到重新嵌入")
		return nil
	}
	return vector
}

// storeJobVector 回填岗位向量缓存，写失败只记日志
func (r *Ranker) storeJobVector(ctx context.Context, jobID string, vector []float64) {
	if r.cache == nil || jobID == "" {
		return
	}
	if err := r.cache.SetJobVector(ctx, jobID, vector); err != nil {
		logger.Ctx(ctx).Warn().Err(err).
			Str("job_id", jobID).
			Msg("写入岗位向量缓存失败")
	}
}
