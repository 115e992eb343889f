package index

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"smart-hire-go/internal/tracing"
	"smart-hire-go/internal/types"
)

var indexTracer = otel.Tracer("smart-hire-go/index")

// PointIDNamespace 生成确定性分块ID的专用命名空间
// 同一文档的同一分块永远得到同一个ID，保证重复入库时覆盖而不是追加
var PointIDNamespace = uuid.Must(uuid.FromString("b1f7a1d4-9c2e-4e8a-b6d0-3f2a5c7e9b01"))

// indexFileName 持久化目录中的索引文件名
const indexFileName = "flat_index.json"

// entry 索引中的一条记录
type entry struct {
	ID     string      `json:"id"`
	Vector []float64   `json:"vector"`
	Chunk  types.Chunk `json:"chunk"`
}

// FlatIndex 内存中的平铺向量索引，余弦相似度全量扫描
// 并发安全；通过Persist/Load在目录间持久化
type FlatIndex struct {
	mu        sync.RWMutex
	embedder  embedding.Embedder
	dimension int
	entries   []entry
	byID      map[string]int // point ID -> entries下标
}

// Option 配置选项
type Option func(*FlatIndex)

// WithDimension 设置期望的向量维度；0表示按首个入库向量确定
func WithDimension(dim int) Option {
	return func(f *FlatIndex) {
		f.dimension = dim
	}
}

// NewFlatIndex 创建空索引；embedder用于Upsert和SearchText时的向量化
func NewFlatIndex(embedder embedding.Embedder, options ...Option) *FlatIndex {
	f := &FlatIndex{
		embedder: embedder,
		byID:     make(map[string]int),
	}
	for _, option := range options {
		option(f)
	}
	return f
}

// pointID 由(来源文档, 分块序号)生成确定性ID
func pointID(sourceID string, chunkIndex int) string {
	return uuid.NewV5(PointIDNamespace, fmt.Sprintf("source_id:%s_chunk_index:%d", sourceID, chunkIndex)).String()
}

// Count 返回索引中的分块数
func (f *FlatIndex) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}

// Upsert 嵌入并写入一批分块
// 以(SourceID, ChunkIndex)为幂等键：重复写入覆盖旧向量，不产生重复记录
func (f *FlatIndex) Upsert(ctx context.Context, chunks []types.Chunk) error {
	ctx, span := indexTracer.Start(ctx, "FlatIndex.Upsert",
		trace.WithAttributes(attribute.Int("chunk_count", len(chunks))))
	defer span.End()

	if len(chunks) == 0 {
		span.SetStatus(codes.Ok, "")
		return nil
	}
	if f.embedder == nil {
		err := fmt.Errorf("索引未配置嵌入器")
		tracing.RecordError(span, err, tracing.ErrorTypeIndex)
		return err
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := f.embedder.EmbedStrings(ctx, texts)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeEmbedding)
		return fmt.Errorf("嵌入分块失败: %w", err)
	}
	if len(vectors) != len(chunks) {
		err := fmt.Errorf("嵌入结果数量不匹配: 期望 %d, 实际 %d", len(chunks), len(vectors))
		tracing.RecordError(span, err, tracing.ErrorTypeEmbedding)
		return err
	}

	return f.UpsertVectors(ctx, chunks, vectors)
}

// UpsertVectors 用已计算好的向量写入分块，调用方保证chunks与vectors一一对应
func (f *FlatIndex) UpsertVectors(ctx context.Context, chunks []types.Chunk, vectors [][]float64) error {
	_, span := indexTracer.Start(ctx, "FlatIndex.UpsertVectors",
		trace.WithAttributes(attribute.Int("chunk_count", len(chunks))))
	defer span.End()

	if len(chunks) != len(vectors) {
		err := fmt.Errorf("分块与向量数量不一致: %d vs %d", len(chunks), len(vectors))
		tracing.RecordError(span, err, tracing.ErrorTypeIndex)
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for i, chunk := range chunks {
		vector := vectors[i]
		if len(vector) == 0 {
			err := fmt.Errorf("分块 (%s, %d) 的向量为空", chunk.SourceID, chunk.ChunkIndex)
			tracing.RecordError(span, err, tracing.ErrorTypeIndex)
			return err
		}
		if f.dimension == 0 {
			f.dimension = len(vector)
		} else if len(vector) != f.dimension {
			err := fmt.Errorf("向量维度不匹配: 期望 %d, 实际 %d", f.dimension, len(vector))
			tracing.RecordError(span, err, tracing.ErrorTypeIndex)
			return err
		}

		id := pointID(chunk.SourceID, chunk.ChunkIndex)
		if idx, ok := f.byID[id]; ok {
			// 覆盖旧记录
			f.entries[idx] = entry{ID: id, Vector: vector, Chunk: chunk}
		} else {
			f.byID[id] = len(f.entries)
			f.entries = append(f.entries, entry{ID: id, Vector: vector, Chunk: chunk})
		}
	}

	span.SetAttributes(attribute.Int("index_size", len(f.entries)))
	span.SetStatus(codes.Ok, "")
	return nil
}

// Search 按余弦相似度返回与查询向量最相似的k个分块
// k<=0或索引为空时返回空结果；相似度相同时按入库顺序稳定排序
func (f *FlatIndex) Search(ctx context.Context, queryVector []float64, k int) ([]types.SearchHit, error) {
	_, span := indexTracer.Start(ctx, "FlatIndex.Search",
		trace.WithAttributes(attribute.Int("top_k", k)))
	defer span.End()

	if k <= 0 {
		span.SetStatus(codes.Ok, "")
		return []types.SearchHit{}, nil
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.entries) == 0 {
		span.SetStatus(codes.Ok, "")
		return []types.SearchHit{}, nil
	}
	if f.dimension > 0 && len(queryVector) != f.dimension {
		err := fmt.Errorf("查询向量维度不匹配: 期望 %d, 实际 %d", f.dimension, len(queryVector))
		tracing.RecordError(span, err, tracing.ErrorTypeIndex)
		return nil, err
	}

	type scored struct {
		order int
		sim   float64
	}
	results := make([]scored, len(f.entries))
	for i, e := range f.entries {
		results[i] = scored{order: i, sim: CosineSimilarity(queryVector, e.Vector)}
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].sim > results[b].sim
	})

	if k > len(results) {
		k = len(results)
	}

	hits := make([]types.SearchHit, k)
	for i := 0; i < k; i++ {
		e := f.entries[results[i].order]
		hits[i] = types.SearchHit{Chunk: e.Chunk, Similarity: results[i].sim}
	}

	span.SetAttributes(attribute.Int("hit_count", len(hits)))
	span.SetStatus(codes.Ok, "")
	return hits, nil
}

// SearchText 先嵌入查询文本再检索
func (f *FlatIndex) SearchText(ctx context.Context, query string, k int) ([]types.SearchHit, error) {
	ctx, span := indexTracer.Start(ctx, "FlatIndex.SearchText",
		trace.WithAttributes(
			attribute.String("query", tracing.SafeAttributeValue("query", query, tracing.MaxQuestionLength)),
			attribute.Int("top_k", k)))
	defer span.End()

	if f.embedder == nil {
		err := fmt.Errorf("索引未配置嵌入器")
		tracing.RecordError(span, err, tracing.ErrorTypeIndex)
		return nil, err
	}

	vectors, err := f.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeEmbedding)
		return nil, fmt.Errorf("嵌入查询失败: %w", err)
	}
	if len(vectors) != 1 {
		err := fmt.Errorf("嵌入查询返回了 %d 个向量", len(vectors))
		tracing.RecordError(span, err, tracing.ErrorTypeEmbedding)
		return nil, err
	}

	return f.Search(ctx, vectors[0], k)
}

// persistedIndex 持久化文件的结构
type persistedIndex struct {
	Dimension int     `json:"dimension"`
	Entries   []entry `json:"entries"`
}

// Persist 将索引写入目录，先写临时文件再原子替换
func (f *FlatIndex) Persist(ctx context.Context, dir string) error {
	_, span := indexTracer.Start(ctx, "FlatIndex.Persist",
		trace.WithAttributes(attribute.String("dir", dir)))
	defer span.End()

	f.mu.RLock()
	snapshot := persistedIndex{
		Dimension: f.dimension,
		Entries:   append([]entry(nil), f.entries...),
	}
	f.mu.RUnlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeIndex)
		return fmt.Errorf("创建索引目录失败: %w", err)
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeIndex)
		return fmt.Errorf("序列化索引失败: %w", err)
	}

	tmpPath := filepath.Join(dir, indexFileName+".tmp")
	finalPath := filepath.Join(dir, indexFileName)

	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeIndex)
		return fmt.Errorf("写入索引临时文件失败: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeIndex)
		return fmt.Errorf("替换索引文件失败: %w", err)
	}

	span.SetAttributes(attribute.Int("entry_count", len(snapshot.Entries)))
	span.SetStatus(codes.Ok, "")
	return nil
}

// Load 从目录加载索引，替换当前内容
// 目录或文件不存在时返回os.ErrNotExist，调用方据此决定是否重建
func (f *FlatIndex) Load(ctx context.Context, dir string) error {
	_, span := indexTracer.Start(ctx, "FlatIndex.Load",
		trace.WithAttributes(attribute.String("dir", dir)))
	defer span.End()

	data, err := os.ReadFile(filepath.Join(dir, indexFileName))
	if err != nil {
		if !os.IsNotExist(err) {
			tracing.RecordError(span, err, tracing.ErrorTypeIndex)
		}
		return err
	}

	var snapshot persistedIndex
	if err := json.Unmarshal(data, &snapshot); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeIndex)
		return fmt.Errorf("解析索引文件失败: %w", err)
	}

	byID := make(map[string]int, len(snapshot.Entries))
	for i, e := range snapshot.Entries {
		byID[e.ID] = i
	}

	f.mu.Lock()
	f.dimension = snapshot.Dimension
	f.entries = snapshot.Entries
	f.byID = byID
	f.mu.Unlock()

	span.SetAttributes(attribute.Int("entry_count", len(snapshot.Entries)))
	span.SetStatus(codes.Ok, "")
	return nil
}

// CosineSimilarity 计算两个向量的余弦相似度
// 任一向量为零向量时返回0
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
