package matcher

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedEmbedder 按文本前缀返回固定向量，并记录每次收到的文本
type fixedEmbedder struct {
	vectors map[string][]float64
	err     error
	calls   [][]string
}

func (f *fixedEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		if v, ok := f.vectors[text]; ok {
			out[i] = v
		} else {
			out[i] = []float64{0, 0, 1}
		}
	}
	return out, nil
}

const jobText = "Looking for ML engineer: python, tensorflow required, 4 years experience, master degree, aws certified preferred"

// TestRankCandidatesOrdering 端到端：强候选人排在弱候选人前面
func TestRankCandidatesOrdering(t *testing.T) {
	strongResume := "Master graduate, 5 years of python and tensorflow, aws certified"
	partialResume := "Bachelor, 1 year of python work"

	emb := &fixedEmbedder{vectors: map[string][]float64{
		jobText:       {1, 0, 0},
		strongResume:  {0.95, 0.05, 0},
		partialResume: {0.5, 0.5, 0},
	}}

	r := NewRanker(mustScorer(t), emb, WithTopK(5))

	ranked, err := r.RankCandidates(context.Background(), "job-1", jobText, []CandidateDoc{
		{Ref: "partial", Text: partialResume},
		{Ref: "strong", Text: strongResume},
	})
	require.NoError(t, err)

	require.Len(t, ranked, 1, "partial的经验分1/4=0.25不达门槛，应被排除")
	assert.Equal(t, "strong", ranked[0].CandidateRef)
	assert.Greater(t, ranked[0].Score, 0.8)
}

// TestRankCandidatesGateExcludes 不达门槛的候选人被计算但不输出
func TestRankCandidatesGateExcludes(t *testing.T) {
	r := NewRanker(mustScorer(t), nil, WithTopK(5))

	ranked, err := r.RankCandidates(context.Background(), "job-1", jobText, []CandidateDoc{
		{Ref: "unrelated", Text: "Accountant with excel skills"},
	})
	require.NoError(t, err)
	assert.Empty(t, ranked, "技能为0的候选人不应进入排名")
}

// TestRankCandidatesTopK 输出数量不超过topK
func TestRankCandidatesTopK(t *testing.T) {
	r := NewRanker(mustScorer(t), nil, WithTopK(2))

	resume := "5 years python and tensorflow, master degree"
	docs := make([]CandidateDoc, 5)
	for i := range docs {
		docs[i] = CandidateDoc{Ref: string(rune('a' + i)), Text: resume}
	}

	ranked, err := r.RankCandidates(context.Background(), "job-1", jobText, docs)
	require.NoError(t, err)
	assert.Len(t, ranked, 2)
	// 同分时保持输入顺序
	assert.Equal(t, "a", ranked[0].CandidateRef)
	assert.Equal(t, "b", ranked[1].CandidateRef)
}

// TestRankCandidatesEmbedderFailureDegrades 嵌入失败时语义分为0但排名继续
func TestRankCandidatesEmbedderFailureDegrades(t *testing.T) {
	emb := &fixedEmbedder{err: errors.New("upstream unavailable")}
	r := NewRanker(mustScorer(t), emb, WithTopK(5))

	ranked, err := r.RankCandidates(context.Background(), "job-1", jobText, []CandidateDoc{
		{Ref: "strong", Text: "Master, 5 years python and tensorflow, aws certified"},
	})
	require.NoError(t, err, "嵌入失败不应导致整个排名失败")
	require.Len(t, ranked, 1)
	assert.Equal(t, 0.0, ranked[0].Components.Semantic)
	assert.Greater(t, ranked[0].Score, 0.0)
}

// TestRankCandidatesEmptyInput 空候选人列表返回空结果
func TestRankCandidatesEmptyInput(t *testing.T) {
	r := NewRanker(mustScorer(t), nil)

	ranked, err := r.RankCandidates(context.Background(), "job-1", jobText, nil)
	require.NoError(t, err)
	assert.Empty(t, ranked)
}

// stubVectorCache 内存版岗位向量缓存
type stubVectorCache struct {
	vectors map[string][]float64
	getErr  error
}

func (s *stubVectorCache) GetJobVector(ctx context.Context, jobID string) ([]float64, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.vectors[jobID], nil
}

func (s *stubVectorCache) SetJobVector(ctx context.Context, jobID string, vector []float64) error {
	if s.vectors == nil {
		s.vectors = make(map[string][]float64)
	}
	s.vectors[jobID] = vector
	return nil
}

// TestRankCandidatesJobVectorCacheHit 缓存命中时岗位文本不再重复嵌入
func TestRankCandidatesJobVectorCacheHit(t *testing.T) {
	strongResume := "Master graduate, 5 years of python and tensorflow, aws certified"
	emb := &fixedEmbedder{vectors: map[string][]float64{
		strongResume: {0.95, 0.05, 0},
	}}
	cache := &stubVectorCache{vectors: map[string][]float64{
		"job-1": {1, 0, 0},
	}}

	r := NewRanker(mustScorer(t), emb, WithTopK(5), WithVectorCache(cache))

	ranked, err := r.RankCandidates(context.Background(), "job-1", jobText, []CandidateDoc{
		{Ref: "strong", Text: strongResume},
	})
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Greater(t, ranked[0].Components.Semantic, 0.9, "语义分应基于缓存的岗位向量计算")

	require.Len(t, emb.calls, 1)
	assert.Equal(t, []string{strongResume}, emb.calls[0], "命中缓存后嵌入批次里不应再有岗位文本")
}

// TestRankCandidatesJobVectorCacheMissBackfills 缓存未命中时嵌入岗位文本并回填
func TestRankCandidatesJobVectorCacheMissBackfills(t *testing.T) {
	strongResume := "Master graduate, 5 years of python and tensorflow, aws certified"
	emb := &fixedEmbedder{vectors: map[string][]float64{
		jobText:      {1, 0, 0},
		strongResume: {0.95, 0.05, 0},
	}}
	cache := &stubVectorCache{vectors: map[string][]float64{}}

	r := NewRanker(mustScorer(t), emb, WithTopK(5), WithVectorCache(cache))

	_, err := r.RankCandidates(context.Background(), "job-1", jobText, []CandidateDoc{
		{Ref: "strong", Text: strongResume},
	})
	require.NoError(t, err)

	require.Len(t, emb.calls, 1)
	assert.Equal(t, []string{jobText, strongResume}, emb.calls[0])
	assert.Equal(t, []float64{1, 0, 0}, cache.vectors["job-1"], "岗位向量应回填到缓存")
}

// TestRankCandidatesCacheFailureFallsBack 缓存读失败时回退到重新嵌入
func TestRankCandidatesCacheFailureFallsBack(t *testing.T) {
	strongResume := "Master graduate, 5 years of python and tensorflow, aws certified"
	emb := &fixedEmbedder{vectors: map[string][]float64{
		jobText:      {1, 0, 0},
		strongResume: {0.95, 0.05, 0},
	}}
	cache := &stubVectorCache{getErr: errors.New("redis unavailable")}

	r := NewRanker(mustScorer(t), emb, WithTopK(5), WithVectorCache(cache))

	ranked, err := r.RankCandidates(context.Background(), "job-1", jobText, []CandidateDoc{
		{Ref: "strong", Text: strongResume},
	})
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Greater(t, ranked[0].Components.Semantic, 0.9)

	require.Len(t, emb.calls, 1)
	assert.Equal(t, []string{jobText, strongResume}, emb.calls[0], "缓存失败时岗位文本照常进入嵌入批次")
}

// TestScoreAllIncludesIneligible ScoreAll不过滤不合格候选人
func TestScoreAllIncludesIneligible(t *testing.T) {
	r := NewRanker(mustScorer(t), nil)

	results := r.ScoreAll(context.Background(), "job-1", jobText, []CandidateDoc{
		{Ref: "strong", Text: "Master, 5 years python and tensorflow"},
		{Ref: "unrelated", Text: "Accountant"},
	})

	require.Len(t, results, 2)
	assert.True(t, results[0].Eligible)
	assert.False(t, results[1].Eligible)
}
