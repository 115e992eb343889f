package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestChunkerShortTextSingleChunk 不超过分块大小的文本只产出一块
func TestChunkerShortTextSingleChunk(t *testing.T) {
	c := NewChunker(WithChunkSize(100), WithChunkOverlap(10))

	chunks := c.Split("short resume text", "cand-1", "resume")

	require.Len(t, chunks, 1)
	assert.Equal(t, "short resume text", chunks[0].Text)
	assert.Equal(t, "cand-1", chunks[0].SourceID)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.True(t, chunks[0].HasTag("resume"))
}

// TestChunkerEmptyText 空白文本不产出分块
func TestChunkerEmptyText(t *testing.T) {
	c := NewChunker()

	assert.Empty(t, c.Split("", "cand-1"))
	assert.Empty(t, c.Split("   \n\n  ", "cand-1"))
}

// TestChunkerLongTextRespectsSize 长文本的每个分块都不超过上限
func TestChunkerLongTextRespectsSize(t *testing.T) {
	c := NewChunker(WithChunkSize(100), WithChunkOverlap(20))

	var sb strings.Builder
	for i := 0; i < 50; i++ {
		sb.WriteString("worked on distributed systems and model serving pipelines. ")
	}

	chunks := c.Split(sb.String(), "cand-2", "resume")

	require.Greater(t, len(chunks), 1)
	for i, chunk := range chunks {
		// 重叠不能把分块撑到上限之外
		assert.LessOrEqual(t, len(chunk.Text), 100, "分块 %d 超出大小上限", i)
		assert.Equal(t, i, chunk.ChunkIndex, "分块序号必须连续")
		assert.Equal(t, "cand-2", chunk.SourceID)
	}
}

// TestChunkerPrefersParagraphBoundaries 优先在段落边界处断开
func TestChunkerPrefersParagraphBoundaries(t *testing.T) {
	c := NewChunker(WithChunkSize(60), WithChunkOverlap(0))

	text := "first paragraph about python skills.\n\nsecond paragraph about tensorflow work experience."
	chunks := c.Split(text, "cand-3")

	require.Greater(t, len(chunks), 1)
	assert.Contains(t, chunks[0].Text, "first paragraph")
	assert.Contains(t, chunks[len(chunks)-1].Text, "work experience")
}

// TestChunkerHardSplitNoSeparators 无任何分隔符的文本按字符硬切
func TestChunkerHardSplitNoSeparators(t *testing.T) {
	c := NewChunker(WithChunkSize(50), WithChunkOverlap(10))

	text := strings.Repeat("a", 200)
	chunks := c.Split(text, "cand-4")

	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk.Text), 50)
	}
}

// TestChunkerInvalidOverlapCorrected 重叠大于等于分块大小时自动修正
func TestChunkerInvalidOverlapCorrected(t *testing.T) {
	c := NewChunker(WithChunkSize(100), WithChunkOverlap(200))

	assert.Less(t, c.overlap, c.chunkSize)
}
