package handler

import (
	"context"
	"fmt"
	"strings"

	"smart-hire-go/internal/qa"
)

// QAHandler 基于已索引文档的检索增强问答
type QAHandler struct {
	answerer *qa.Answerer
}

// NewQAHandler 创建问答处理器
func NewQAHandler(answerer *qa.Answerer) *QAHandler {
	return &QAHandler{answerer: answerer}
}

// AskRequest 问答请求
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse 问答响应
type AskResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources,omitempty"`
}

// HandleAsk 回答关于候选人和岗位的问题
// 知识库为空时返回固定提示文案而非错误
func (h *QAHandler) HandleAsk(ctx context.Context, req AskRequest) (*AskResponse, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, fmt.Errorf("问题不能为空")
	}

	answer, err := h.answerer.Ask(ctx, req.Question)
	if err != nil {
		return nil, err
	}
	return &AskResponse{Answer: answer.Text, Sources: answer.Sources}, nil
}
