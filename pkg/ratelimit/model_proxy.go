package ratelimit

import (
	"context"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ChatModelProxy 对话模型的限流代理，实现model.ToolCallingChatModel
type ChatModelProxy struct {
	inner   model.ToolCallingChatModel
	limiter *Limiter
}

// NewChatModelProxy 包装原始模型，按QPM限流
func NewChatModelProxy(inner model.ToolCallingChatModel, qpm int) *ChatModelProxy {
	return &ChatModelProxy{
		inner:   inner,
		limiter: NewLimiter(qpm, qpm/2),
	}
}

// WithRetryPolicy 设置重试策略
func (p *ChatModelProxy) WithRetryPolicy(wait time.Duration, maxRetries int) *ChatModelProxy {
	p.limiter.WithRetryPolicy(wait, maxRetries)
	return p
}

// Generate 代理Generate，在限流与重试保护下调用原始模型
func (p *ChatModelProxy) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	var response *schema.Message

	err := p.limiter.Do(ctx, func() error {
		var genErr error
		response, genErr = p.inner.Generate(ctx, messages, options...)
		return genErr
	})

	return response, err
}

// Stream 代理Stream
func (p *ChatModelProxy) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	var stream *schema.StreamReader[*schema.Message]

	err := p.limiter.Do(ctx, func() error {
		var streamErr error
		stream, streamErr = p.inner.Stream(ctx, messages, options...)
		return streamErr
	})

	return stream, err
}

// WithTools 代理WithTools，新模型共享同一个限流器
func (p *ChatModelProxy) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	inner, err := p.inner.WithTools(tools)
	if err != nil {
		return nil, err
	}
	return &ChatModelProxy{inner: inner, limiter: p.limiter}, nil
}

// EmbedderProxy 嵌入模型的限流代理，实现embedding.Embedder
type EmbedderProxy struct {
	inner   embedding.Embedder
	limiter *Limiter
}

// NewEmbedderProxy 包装嵌入器，按QPM限流
func NewEmbedderProxy(inner embedding.Embedder, qpm int) *EmbedderProxy {
	return &EmbedderProxy{
		inner:   inner,
		limiter: NewLimiter(qpm, qpm/2),
	}
}

// EmbedStrings 代理EmbedStrings，在限流与重试保护下调用原始嵌入器
func (p *EmbedderProxy) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	var vectors [][]float64

	err := p.limiter.Do(ctx, func() error {
		var embErr error
		vectors, embErr = p.inner.EmbedStrings(ctx, texts, opts...)
		return embErr
	})

	return vectors, err
}

// WrapChatModel 根据配置为模型挑选QPM并包装限流代理
// modelQPM为按模型名配置的上限表，留10%余量以避免贴线触发服务端限流
func WrapChatModel(inner model.ToolCallingChatModel, modelName string, modelQPM map[string]int, fallbackQPM int, maxRetries int, retryWait time.Duration) model.ToolCallingChatModel {
	qpm := fallbackQPM
	if modelQPM != nil && modelName != "" {
		if v, ok := modelQPM[modelName]; ok && v > 0 {
			qpm = int(float64(v) * 0.9)
		}
	}
	if qpm <= 0 {
		qpm = 30
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}

	return NewChatModelProxy(inner, qpm).WithRetryPolicy(retryWait, maxRetries)
}
