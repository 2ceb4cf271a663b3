package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient 基于官方 SDK 的 Messages API 实现 Completer。
type AnthropicClient struct {
	client anthropic.Client
	model  string
	ready  bool
}

var _ Completer = (*AnthropicClient)(nil)

type AnthropicOptions struct {
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration
	// Retry 为 429/5xx 的重试次数（由 SDK 处理）。
	Retry int
}

func NewAnthropic(opts AnthropicOptions) *AnthropicClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Retry < 0 {
		opts.Retry = 0
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithRequestTimeout(opts.Timeout),
		option.WithMaxRetries(opts.Retry),
	}
	if opts.Endpoint != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(strings.TrimRight(opts.Endpoint, "/")+"/"))
	}
	return &AnthropicClient{
		client: anthropic.NewClient(reqOpts...),
		model:  opts.Model,
		ready:  opts.APIKey != "" && opts.Model != "",
	}
}

// Complete 发送单轮用户消息并返回拼接后的文本内容。
func (c *AnthropicClient) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if c == nil {
		return "", errors.New("anthropic client is nil")
	}
	if !c.ready {
		return "", errors.New("anthropic client misconfigured")
	}
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("anthropic error %d: %w", apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("send message: %w", err)
	}
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", errors.New("anthropic response has no text content")
	}
	return b.String(), nil
}
