package qa

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-hire-go/internal/types"
)

// fakeRetriever 返回预置命中的测试检索器
type fakeRetriever struct {
	hits []types.SearchHit
	err  error
}

func (f *fakeRetriever) SearchText(ctx context.Context, query string, k int) ([]types.SearchHit, error) {
	if f.err != nil {
		return nil, f.err
	}
	if k > len(f.hits) {
		k = len(f.hits)
	}
	return f.hits[:k], nil
}

func (f *fakeRetriever) Count() int {
	return len(f.hits)
}

// fakeChatModel 返回固定回答的测试模型
type fakeChatModel struct {
	response    string
	err         error
	lastPrompt  string
	generations int
}

func (f *fakeChatModel) Generate(ctx context.Context, messages []*einoschema.Message, opts ...model.Option) (*einoschema.Message, error) {
	f.generations++
	if len(messages) > 0 {
		f.lastPrompt = messages[len(messages)-1].Content
	}
	if f.err != nil {
		return nil, f.err
	}
	return einoschema.AssistantMessage(f.response, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, messages []*einoschema.Message, opts ...model.Option) (*einoschema.StreamReader[*einoschema.Message], error) {
	return nil, errors.New("not implemented")
}

func (f *fakeChatModel) WithTools(tools []*einoschema.ToolInfo) (model.ToolCallingChatModel, error) {
	return f, nil
}

func hit(text, sourceID string, sim float64) types.SearchHit {
	return types.SearchHit{
		Chunk:      types.Chunk{Text: text, SourceID: sourceID},
		Similarity: sim,
	}
}

// TestAskEmptyKnowledgeBase 知识库为空时返回固定提示而不是报错
func TestAskEmptyKnowledgeBase(t *testing.T) {
	llm := &fakeChatModel{response: "should not be called"}
	a := NewAnswerer(llm, &fakeRetriever{})

	answer, err := a.Ask(context.Background(), "who knows python?")
	require.NoError(t, err)
	assert.Equal(t, NotAvailableAnswer, answer.Text)
	assert.Zero(t, llm.generations, "知识库为空时不应调用模型")
}

// TestAskNilRetriever 未配置检索器同样返回固定提示
func TestAskNilRetriever(t *testing.T) {
	a := NewAnswerer(&fakeChatModel{}, nil)

	answer, err := a.Ask(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, NotAvailableAnswer, answer.Text)
}

// TestAskGroundedAnswer 正常问答：上下文进入提示词，来源被去重收集
func TestAskGroundedAnswer(t *testing.T) {
	retriever := &fakeRetriever{hits: []types.SearchHit{
		hit("Alice has 5 years of python", "cand-alice", 0.9),
		hit("Alice also knows tensorflow", "cand-alice", 0.8),
		hit("Bob is an accountant", "cand-bob", 0.3),
	}}
	llm := &fakeChatModel{response: "Alice [1]"}
	a := NewAnswerer(llm, retriever)

	answer, err := a.Ask(context.Background(), "who knows python?")
	require.NoError(t, err)
	assert.Equal(t, "Alice [1]", answer.Text)
	assert.Equal(t, []string{"cand-alice", "cand-bob"}, answer.Sources)

	// 提示词中包含检索到的资料和问题本身
	assert.Contains(t, llm.lastPrompt, "Alice has 5 years of python")
	assert.Contains(t, llm.lastPrompt, "cand-alice")
	assert.Contains(t, llm.lastPrompt, "who knows python?")
}

// TestAskModelFailure 模型调用失败时返回错误
func TestAskModelFailure(t *testing.T) {
	retriever := &fakeRetriever{hits: []types.SearchHit{hit("text", "cand-1", 0.9)}}
	llm := &fakeChatModel{err: errors.New("upstream timeout")}
	a := NewAnswerer(llm, retriever)

	_, err := a.Ask(context.Background(), "question")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "问答模型调用失败")
}

// TestAskRetrieverFailure 检索失败时返回错误
func TestAskRetrieverFailure(t *testing.T) {
	retriever := &fakeRetriever{err: errors.New("index corrupted"), hits: []types.SearchHit{hit("x", "c", 1)}}
	a := NewAnswerer(&fakeChatModel{}, retriever)

	_, err := a.Ask(context.Background(), "question")
	require.Error(t, err)
}

// TestAskEmptyQuestion 空问题是调用方错误
func TestAskEmptyQuestion(t *testing.T) {
	a := NewAnswerer(&fakeChatModel{}, &fakeRetriever{})

	_, err := a.Ask(context.Background(), "   ")
	require.Error(t, err)
}

// TestAskRespectsTopK 检索数量受topK控制
func TestAskRespectsTopK(t *testing.T) {
	retriever := &fakeRetriever{hits: []types.SearchHit{
		hit("a", "s1", 0.9), hit("b", "s2", 0.8), hit("c", "s3", 0.7),
	}}
	llm := &fakeChatModel{response: "ok"}
	a := NewAnswerer(llm, retriever, WithRetrievalTopK(2))

	answer, err := a.Ask(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, answer.Sources)
}
