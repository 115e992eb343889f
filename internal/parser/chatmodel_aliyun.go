package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"smart-hire-go/internal/config"
	"smart-hire-go/internal/logger"
)

// AliyunChatModel 通过阿里云OpenAI兼容端点调用生成模型
// 实现 cloudwego/eino 的 model.ToolCallingChatModel 接口
type AliyunChatModel struct {
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	tools       []chatTool
	httpClient  *http.Client
	log         zerolog.Logger
}

// NewAliyunChatModel 创建生成模型客户端；apiKey不能为空
func NewAliyunChatModel(apiKey string, cfg config.LLMConfig) (*AliyunChatModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("生成模型API密钥不能为空")
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = "qwen-plus"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions"
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &AliyunChatModel{
		apiKey:      apiKey,
		model:       modelName,
		baseURL:     baseURL,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  &http.Client{Timeout: timeout},
		log:         logger.Logger.With().Str("component", "aliyun_chat_model").Logger(),
	}, nil
}

// chatMessage OpenAI兼容的消息体
type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
}

type chatToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chatTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string      `json:"name"`
		Description string      `json:"description,omitempty"`
		Parameters  interface{} `json:"parameters,omitempty"`
	} `json:"function"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Tools       []chatTool    `json:"tools,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *apiError `json:"error,omitempty"`
}

// Generate 调用生成模型，实现 model.BaseChatModel 接口
func (a *AliyunChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if len(input) == 0 {
		return nil, fmt.Errorf("消息列表不能为空")
	}

	options := model.GetCommonOptions(&model.Options{}, opts...)

	modelName := a.model
	if options.Model != nil && *options.Model != "" {
		modelName = *options.Model
	}
	temperature := a.temperature
	if options.Temperature != nil {
		temperature = float64(*options.Temperature)
	}
	maxTokens := a.maxTokens
	if options.MaxTokens != nil {
		maxTokens = *options.MaxTokens
	}

	messages := make([]chatMessage, 0, len(input))
	for _, msg := range input {
		messages = append(messages, toChatMessage(msg))
	}

	reqBody := chatRequest{
		Model:       modelName,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Tools:       a.tools,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("序列化生成请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建生成请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	startTime := time.Now()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("调用生成API失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取生成响应失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("生成API调用失败, 状态码: %d, 类型: %s, 错误: %s", resp.StatusCode, apiErr.Type, apiErr.Message)
		}
		return nil, fmt.Errorf("生成API调用失败, 状态码: %d, 响应: %.200s", resp.StatusCode, string(body))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("解析生成响应失败: %w", err)
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return nil, fmt.Errorf("生成API返回错误: 类型=%s, 消息=%s", parsed.Error.Type, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("生成响应中没有choices")
	}

	a.log.Debug().
		Str("model", modelName).
		Int("total_tokens", parsed.Usage.TotalTokens).
		Dur("duration", time.Since(startTime)).
		Msg("生成完成")

	return fromChatMessage(parsed.Choices[0].Message), nil
}

// Stream 以单块流的形式返回完整回复
// 底层端点未启用流式传输，退化为一次性生成
func (a *AliyunChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := a.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// WithTools 返回绑定了工具列表的新实例，实现 model.ToolCallingChatModel 接口
func (a *AliyunChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	converted := make([]chatTool, 0, len(tools))
	for _, tool := range tools {
		if tool == nil {
			continue
		}
		ct := chatTool{Type: "function"}
		ct.Function.Name = tool.Name
		ct.Function.Description = tool.Desc
		if tool.ParamsOneOf != nil {
			params, err := tool.ParamsOneOf.ToOpenAPIV3()
			if err != nil {
				return nil, fmt.Errorf("转换工具 %s 的参数定义失败: %w", tool.Name, err)
			}
			ct.Function.Parameters = params
		}
		converted = append(converted, ct)
	}

	clone := *a
	clone.tools = converted
	return &clone, nil
}

func toChatMessage(msg *schema.Message) chatMessage {
	out := chatMessage{
		Role:       string(msg.Role),
		Content:    msg.Content,
		ToolCallID: msg.ToolCallID,
	}
	for _, call := range msg.ToolCalls {
		tc := chatToolCall{ID: call.ID, Type: "function"}
		tc.Function.Name = call.Function.Name
		tc.Function.Arguments = call.Function.Arguments
		out.ToolCalls = append(out.ToolCalls, tc)
	}
	return out
}

func fromChatMessage(msg chatMessage) *schema.Message {
	out := &schema.Message{
		Role:    schema.RoleType(msg.Role),
		Content: msg.Content,
	}
	for _, call := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, schema.ToolCall{
			ID:   call.ID,
			Type: call.Type,
			Function: schema.FunctionCall{
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			},
		})
	}
	return out
}

var _ model.ToolCallingChatModel = (*AliyunChatModel)(nil)
