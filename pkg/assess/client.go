// Package assess calls the Anthropic messages API to produce a free-text
// security assessment for one record.
package assess

import (
	"context"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

// Client produces the raw assessment text for a prompt. The response is free
// text that may ignore the requested format; callers must parse defensively.
// Any returned error is fatal for the record being assessed.
type Client interface {
	Assess(ctx context.Context, prompt string) (string, error)
}

const (
	defaultModel     = "claude-haiku-4-5-20251001"
	defaultMaxTokens = 1024
)

// Option configures the client.
type Option func(*sdkClient)

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *sdkClient) {
		c.model = model
	}
}

// WithMaxTokens overrides the default output token ceiling.
func WithMaxTokens(n int64) Option {
	return func(c *sdkClient) {
		c.maxTokens = n
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *sdkClient) {
		c.temperature = &t
	}
}

// WithSystemPrompt sets the system instruction sent with every request.
func WithSystemPrompt(s string) Option {
	return func(c *sdkClient) {
		c.system = s
	}
}

// WithStreaming switches to the streaming endpoint. The stream is always
// drained completely and its deltas accumulated in arrival order before the
// text is returned; a broken stream fails the whole call.
func WithStreaming(enabled bool) Option {
	return func(c *sdkClient) {
		c.streaming = enabled
	}
}

// WithRequestOptions forwards extra request options to the underlying SDK
// client, such as a base URL or HTTP client override.
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(c *sdkClient) {
		c.sdkOpts = append(c.sdkOpts, opts...)
	}
}

// sdkClient implements Client using the official anthropic-sdk-go.
type sdkClient struct {
	client      sdk.Client
	sdkOpts     []option.RequestOption
	model       string
	maxTokens   int64
	temperature *float64
	system      string
	streaming   bool
}

// NewClient creates an assessment client backed by the SDK.
func NewClient(apiKey string, opts ...Option) Client {
	c := &sdkClient{
		sdkOpts:   []option.RequestOption{option.WithAPIKey(apiKey)},
		model:     defaultModel,
		maxTokens: defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.client = sdk.NewClient(c.sdkOpts...)
	return c
}

func (c *sdkClient) Assess(ctx context.Context, prompt string) (string, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	}
	if c.system != "" {
		params.System = []sdk.TextBlockParam{{Text: c.system}}
	}
	if c.temperature != nil {
		params.Temperature = sdk.Float(*c.temperature)
	}

	if c.streaming {
		return c.assessStreaming(ctx, params)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", eris.Wrap(err, "assess: create message")
	}
	return textContent(msg), nil
}

func (c *sdkClient) assessStreaming(ctx context.Context, params sdk.MessageNewParams) (string, error) {
	stream := c.client.Messages.NewStreaming(ctx, params)

	var acc sdk.Message
	for stream.Next() {
		if err := acc.Accumulate(stream.Current()); err != nil {
			return "", eris.Wrap(err, "assess: accumulate stream event")
		}
	}
	// Partial delivery on a broken connection fails the call; nothing of the
	// accumulated text is handed to the parser.
	if err := stream.Err(); err != nil {
		return "", eris.Wrap(err, "assess: stream")
	}
	return textContent(&acc), nil
}

// textContent concatenates the text blocks of a response in order.
func textContent(msg *sdk.Message) string {
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}
