package parser

import (
	"strings"

	"smart-hire-go/internal/constants"
	"smart-hire-go/internal/types"
)

// Chunker 将长文本切分为带重叠的分块
// 优先在段落、行、词边界处断开，实在断不开时按字符硬切
type Chunker struct {
	chunkSize int
	overlap   int
	// separators 按优先级尝试的分隔符，最后的空串表示按字符切
	separators []string
}

// ChunkerOption 配置选项
type ChunkerOption func(*Chunker)

// WithChunkSize 设置分块大小（字符数）
func WithChunkSize(size int) ChunkerOption {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithChunkOverlap 设置相邻分块的重叠字符数
func WithChunkOverlap(overlap int) ChunkerOption {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// NewChunker 创建分块器，默认500字符分块、50字符重叠
func NewChunker(options ...ChunkerOption) *Chunker {
	c := &Chunker{
		chunkSize:  constants.DefaultChunkSize,
		overlap:    constants.DefaultChunkOverlap,
		separators: []string{"\n\n", "\n", " ", ""},
	}

	for _, option := range options {
		option(c)
	}

	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 10
	}

	return c
}

// Split 切分文本并标注来源。空白文本返回空切片
func (c *Chunker) Split(text string, sourceID string, tags ...string) []types.Chunk {
	pieces := c.splitText(text)

	chunks := make([]types.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, types.Chunk{
			Text:       piece,
			SourceID:   sourceID,
			ChunkIndex: i,
			Tags:       tags,
		})
	}
	return chunks
}

// splitText 递归按分隔符切分，合并相邻片段到目标大小
func (c *Chunker) splitText(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if len(text) <= c.chunkSize {
		return []string{text}
	}

	pieces := c.recursiveSplit(text, 0)
	return c.mergePieces(pieces)
}

// recursiveSplit 用第sepIdx级分隔符切分，过大的片段下沉到下一级
func (c *Chunker) recursiveSplit(text string, sepIdx int) []string {
	if len(text) <= c.chunkSize {
		return []string{text}
	}
	if sepIdx >= len(c.separators) {
		return c.hardSplit(text)
	}

	sep := c.separators[sepIdx]
	if sep == "" {
		return c.hardSplit(text)
	}

	parts := strings.Split(text, sep)
	var result []string
	for i, part := range parts {
		// 保留分隔符，避免合并后丢失原有边界
		if i < len(parts)-1 {
			part += sep
		}
		if len(part) > c.chunkSize {
			result = append(result, c.recursiveSplit(part, sepIdx+1)...)
		} else if part != "" {
			result = append(result, part)
		}
	}
	return result
}

// hardSplit 按字符硬切，带重叠
func (c *Chunker) hardSplit(text string) []string {
	var result []string
	step := c.chunkSize - c.overlap
	for start := 0; start < len(text); start += step {
		end := start + c.chunkSize
		if end > len(text) {
			end = len(text)
		}
		result = append(result, text[start:end])
		if end == len(text) {
			break
		}
	}
	return result
}

// mergePieces 将小片段贪心合并到接近chunkSize，并在块间保留重叠
func (c *Chunker) mergePieces(pieces []string) []string {
	var chunks []string
	var current strings.Builder

	flush := func() {
		s := strings.TrimSpace(current.String())
		if s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}

	for _, piece := range pieces {
		if current.Len()+len(piece) > c.chunkSize && current.Len() > 0 {
			prev := current.String()
			flush()
			// 从上一块尾部取overlap个字符作为新块的开头；
			// 重叠加上新片段必须仍装得进一个块，否则放弃这次重叠
			if c.overlap > 0 && len(prev) > c.overlap && c.overlap+len(piece) <= c.chunkSize {
				current.WriteString(prev[len(prev)-c.overlap:])
			}
		}
		current.WriteString(piece)
	}
	flush()

	return chunks
}
