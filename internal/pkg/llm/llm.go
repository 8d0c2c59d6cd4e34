package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mika2333/daily_english_server/config"
	"github.com/mika2333/daily_english_server/internal/model"
)

var ErrEmptyResult = errors.New("generator returned empty result")

const systemPrompt = `You are an English reading material generator for Japanese learners.
Respond with a single JSON object: {"english_text": string, "important_words": string[], "japanese_translation": string}.
important_words lists 5-8 words from the text with a short Japanese gloss each, e.g. "sustain - 維持する".`

type Client struct {
	api   *openai.Client
	model string
}

func NewClient(cfg *config.OpenAIConfig) *Client {
	return &Client{
		api:   openai.NewClient(cfg.APIKey),
		model: cfg.Model,
	}
}

// Generate 按难度与目标词数生成一篇带译文和单词表的短文
func (c *Client) Generate(ctx context.Context, topic, level string, wordTarget int) (*model.Article, error) {
	prompt := fmt.Sprintf(
		"Write an English reading passage about %q for a %s-level learner, around %d words. Then provide the important words and a full Japanese translation.",
		topic, level, wordTarget,
	)

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResult
	}

	return ParseArticle(resp.Choices[0].Message.Content)
}

// ParseArticle 解析模型输出并校验必填字段
func ParseArticle(raw string) (*model.Article, error) {
	raw = strings.TrimSpace(raw)
	// 个别模型会包一层 markdown 代码块
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var article model.Article
	if err := json.Unmarshal([]byte(raw), &article); err != nil {
		return nil, fmt.Errorf("invalid generator output: %w", err)
	}
	if article.EnglishText == "" || article.JapaneseTranslation == "" {
		return nil, ErrEmptyResult
	}
	return &article, nil
}
