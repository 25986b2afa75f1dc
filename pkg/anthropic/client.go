// Package anthropic wraps the official anthropic-sdk-go behind the small
// messages surface the extraction agents use, with our own request and
// response types so callers never touch SDK params directly.
package anthropic

import (
	"context"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Client defines the Anthropic API operations used by the agents.
type Client interface {
	CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error)
}

// MessageRequest is our own request type for CreateMessage.
type MessageRequest struct {
	Model       string
	MaxTokens   int64
	System      []SystemBlock
	Messages    []Message
	Temperature *float64
}

// SystemBlock is a system prompt block, optionally cached so repeated
// per-page calls reuse the shared prefix.
type SystemBlock struct {
	Text         string
	CacheControl *CacheControl
}

// CacheControl configures prompt caching for a content block.
type CacheControl struct {
	TTL string // "5m" or "1h"
}

// Message is a single conversational message.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// MessageResponse is our own response type from CreateMessage.
type MessageResponse struct {
	ID         string
	Model      string
	Content    []ContentBlock
	StopReason string
	Usage      TokenUsage
}

// ContentBlock is one block of response content.
type ContentBlock struct {
	Type string
	Text string
}

// Text concatenates the text blocks of the response.
func (r *MessageResponse) Text() string {
	var out string
	for _, b := range r.Content {
		if b.Type == "text" {
			out += b.Text
		}
	}
	return out
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

// Log emits token usage with structured fields for cost attribution.
func (u TokenUsage) Log(model, phase string) {
	zap.L().Info("token usage",
		zap.String("model", model),
		zap.String("phase", phase),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Int64("cache_write_tokens", u.CacheCreationInputTokens),
		zap.Int64("cache_read_tokens", u.CacheReadInputTokens),
	)
}

// sdkClient implements Client using the official anthropic-sdk-go.
type sdkClient struct {
	client sdk.Client
}

// NewClient creates an Anthropic client backed by the SDK.
func NewClient(apiKey string, opts ...option.RequestOption) Client {
	all := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &sdkClient{client: sdk.NewClient(all...)}
}

func (c *sdkClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages:  toSDKMessages(req.Messages),
	}
	if len(req.System) > 0 {
		params.System = toSDKSystemBlocks(req.System)
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, eris.Wrap(err, "anthropic: create message")
	}
	return fromSDKMessage(msg), nil
}

func toSDKMessages(msgs []Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, len(msgs))
	for i, m := range msgs {
		block := sdk.NewTextBlock(m.Content)
		switch m.Role {
		case "assistant":
			out[i] = sdk.NewAssistantMessage(block)
		default:
			out[i] = sdk.NewUserMessage(block)
		}
	}
	return out
}

func toSDKSystemBlocks(blocks []SystemBlock) []sdk.TextBlockParam {
	out := make([]sdk.TextBlockParam, len(blocks))
	for i, b := range blocks {
		out[i] = sdk.TextBlockParam{Text: b.Text}
		if b.CacheControl != nil {
			cc := sdk.NewCacheControlEphemeralParam()
			if b.CacheControl.TTL != "" {
				cc.TTL = sdk.CacheControlEphemeralTTL(b.CacheControl.TTL)
			}
			out[i].CacheControl = cc
		}
	}
	return out
}

func fromSDKMessage(msg *sdk.Message) *MessageResponse {
	blocks := make([]ContentBlock, 0, len(msg.Content))
	for _, b := range msg.Content {
		blocks = append(blocks, ContentBlock{Type: b.Type, Text: b.Text})
	}
	return &MessageResponse{
		ID:         msg.ID,
		Model:      string(msg.Model),
		Content:    blocks,
		StopReason: string(msg.StopReason),
		Usage: TokenUsage{
			InputTokens:              msg.Usage.InputTokens,
			OutputTokens:             msg.Usage.OutputTokens,
			CacheCreationInputTokens: msg.Usage.CacheCreationInputTokens,
			CacheReadInputTokens:     msg.Usage.CacheReadInputTokens,
		},
	}
}
