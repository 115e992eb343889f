package qa

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"smart-hire-go/internal/constants"
	"smart-hire-go/internal/logger"
	"smart-hire-go/internal/tracing"
	"smart-hire-go/internal/types"
)

var qaTracer = otel.Tracer("smart-hire-go/qa")

// NotAvailableAnswer 知识库为空时返回的固定提示
const NotAvailableAnswer = "RAG system not available. Please ensure documents are loaded."

// Retriever 检索接口，由向量索引实现
type Retriever interface {
	SearchText(ctx context.Context, query string, k int) ([]types.SearchHit, error)
	Count() int
}

// Answer 问答结果
type Answer struct {
	// Text 回答正文
	Text string `json:"text"`
	// Sources 引用的来源文档标识，去重后按相关度排列
	Sources []string `json:"sources,omitempty"`
}

// Answerer 基于检索增强的问答器：先从索引取相关分块，再让LLM基于分块作答
type Answerer struct {
	llm            model.ToolCallingChatModel
	retriever      Retriever
	topK           int
	promptTemplate string
	log            zerolog.Logger
}

// AnswererOption 配置选项
type AnswererOption func(*Answerer)

// WithRetrievalTopK 设置检索的分块数
func WithRetrievalTopK(k int) AnswererOption {
	return func(a *Answerer) {
		if k > 0 {
			a.topK = k
		}
	}
}

// WithPromptTemplate 设置自定义提示词模板，须包含两个%s占位（上下文、问题）
func WithPromptTemplate(template string) AnswererOption {
	return func(a *Answerer) {
		a.promptTemplate = template
	}
}

// NewAnswerer 创建问答器
func NewAnswerer(llm model.ToolCallingChatModel, retriever Retriever, options ...AnswererOption) *Answerer {
	a := &Answerer{
		llm:       llm,
		retriever: retriever,
		topK:      constants.DefaultRetrievalTopK,
		log:       logger.Logger.With().Str("component", "qa").Logger(),
	}

	a.promptTemplate = defaultPromptTemplate

	for _, option := range options {
		option(a)
	}

	return a
}

const defaultPromptTemplate = `你是一位招聘团队的智能助手。请仅根据下面提供的【资料片段】回答用户的问题。

**回答要求：**
- 只使用资料片段中的信息，不要编造资料中没有的内容。
- 如果资料片段不足以回答问题，明确说明"根据现有资料无法回答"。
- 回答中引用资料时注明来源编号，例如 [1]。
- 回答保持简洁，直接针对问题。

【资料片段】:
%s

【问题】:
%s`

// Ask 回答问题
// 索引为空或未配置时返回固定提示而不是报错；模型调用失败时返回错误
func (a *Answerer) Ask(ctx context.Context, question string) (*Answer, error) {
	ctx, span := qaTracer.Start(ctx, "Answerer.Ask",
		trace.WithAttributes(
			attribute.String("question", tracing.SafeAttributeValue("question", question, tracing.MaxQuestionLength))))
	defer span.End()

	if strings.TrimSpace(question) == "" {
		err := fmt.Errorf("问题不能为空")
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}

	if a.retriever == nil || a.retriever.Count() == 0 {
		span.SetAttributes(attribute.Bool("knowledge_base_empty", true))
		span.SetStatus(codes.Ok, "")
		return &Answer{Text: NotAvailableAnswer}, nil
	}

	hits, err := a.retriever.SearchText(ctx, question, a.topK)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeIndex)
		return nil, fmt.Errorf("检索相关资料失败: %w", err)
	}
	if len(hits) == 0 {
		span.SetStatus(codes.Ok, "")
		return &Answer{Text: NotAvailableAnswer}, nil
	}

	contextText, sources := buildContext(hits)
	prompt := fmt.Sprintf(a.promptTemplate, contextText, question)

	messages := []*einoschema.Message{
		einoschema.SystemMessage("你是一位严谨的招聘助手，只根据给定资料回答问题。"),
		einoschema.UserMessage(prompt),
	}

	if a.llm == nil {
		err := fmt.Errorf("未配置问答模型")
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return nil, err
	}

	response, err := a.llm.Generate(ctx, messages)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return nil, fmt.Errorf("问答模型调用失败: %w", err)
	}

	a.log.Debug().
		Int("retrieved", len(hits)).
		Int("answer_chars", len(response.Content)).
		Msg("问答完成")

	span.SetAttributes(attribute.Int("retrieved_count", len(hits)))
	span.SetStatus(codes.Ok, "")
	return &Answer{Text: response.Content, Sources: sources}, nil
}

// buildContext 将检索命中拼成带编号的资料片段，并收集去重后的来源
func buildContext(hits []types.SearchHit) (string, []string) {
	var sb strings.Builder
	var sources []string
	seen := make(map[string]bool)

	for i, hit := range hits {
		fmt.Fprintf(&sb, "[%d] (来源: %s)\n%s\n\n", i+1, hit.Chunk.SourceID, hit.Chunk.Text)
		if !seen[hit.Chunk.SourceID] {
			seen[hit.Chunk.SourceID] = true
			sources = append(sources, hit.Chunk.SourceID)
		}
	}

	return sb.String(), sources
}
