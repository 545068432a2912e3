package service

import (
	"context"
	"doc-qa-go/internal/config"
	"doc-qa-go/internal/model"
	"doc-qa-go/pkg/llm"
	"doc-qa-go/pkg/log"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyQuestion 表示请求缺少问题内容。
var ErrEmptyQuestion = errors.New("question 不能为空")

// 提示词默认值，未在配置中覆盖时生效。
const (
	defaultRules = "你是一个严谨的知识库问答助手。仅依据参考内容回答问题，回答保持简洁。" +
		"如果参考内容不足以回答问题，请明确说明无法从已有文档中得到答案，不要编造。"
	defaultRefStart     = "<<REF>>"
	defaultRefEnd       = "<<END>>"
	defaultNoResultText = "未在知识库中检索到相关文档，请先上传文档后再提问。"
)

// AnswerService 接口定义了问答操作。
type AnswerService interface {
	Answer(ctx context.Context, question string) (string, error)
}

type answerService struct {
	retrieval RetrievalService
	llmClient llm.Client
	promptCfg config.PromptConfig
}

// NewAnswerService 创建一个新的 AnswerService 实例。
func NewAnswerService(retrieval RetrievalService, llmClient llm.Client, promptCfg config.PromptConfig) AnswerService {
	return &answerService{
		retrieval: retrieval,
		llmClient: llmClient,
		promptCfg: promptCfg,
	}
}

// Answer 协调 RAG 问答流程：检索 -> 组装提示词 -> 生成。
// 两条检索路径都未命中时直接返回固定文案，不调用生成模型。
func (s *answerService) Answer(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}

	chunks, err := s.retrieval.Retrieve(ctx, question)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve context: %w", err)
	}

	if len(chunks) == 0 {
		log.Infof("[AnswerService] 无检索结果, 返回固定文案, question: '%s'", truncate(question, 64))
		return s.noResultText(), nil
	}

	prompt := s.buildPrompt(chunks, question)
	answer, err := s.llmClient.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}

	log.Infof("[AnswerService] 问答完成, 上下文分块数: %d, 回答长度: %d", len(chunks), len(answer))
	return answer, nil
}

// buildPrompt 构建确定性的提示词：规则 + 包裹的上下文 + 问题。
// 上下文按检索排序以双换行拼接。
func (s *answerService) buildPrompt(chunks []model.RetrievedChunk, question string) string {
	texts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		texts = append(texts, chunk.TextContent)
	}
	contextText := strings.Join(texts, "\n\n")

	rules := s.promptCfg.Rules
	if rules == "" {
		rules = defaultRules
	}
	refStart := s.promptCfg.RefStart
	if refStart == "" {
		refStart = defaultRefStart
	}
	refEnd := s.promptCfg.RefEnd
	if refEnd == "" {
		refEnd = defaultRefEnd
	}

	var sb strings.Builder
	sb.WriteString(rules)
	sb.WriteString("\n\n")
	sb.WriteString(refStart)
	sb.WriteString("\n")
	sb.WriteString(contextText)
	sb.WriteString("\n")
	sb.WriteString(refEnd)
	sb.WriteString("\n\n问题：")
	sb.WriteString(question)
	return sb.String()
}

// noResultText 返回无结果时的固定文案。
func (s *answerService) noResultText() string {
	if s.promptCfg.NoResultText != "" {
		return s.promptCfg.NoResultText
	}
	return defaultNoResultText
}
