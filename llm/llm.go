// Package llm provides a chat completion interface for grounded answer
// generation over retrieved transactions.
package llm

import (
	"context"
	"errors"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrEmptyPrompt is returned when the prompt has no content.
var ErrEmptyPrompt = errors.New("llm: empty prompt")

// Completer generates a text completion for a system/user prompt pair.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

const defaultChatModel = "gpt-4o-mini"

// OpenAI implements [Completer] using the OpenAI chat completions API.
// Any OpenAI-compatible provider works via WithBaseURL.
type OpenAI struct {
	client    *openai.Client
	model     string
	maxTokens int64
}

var _ Completer = (*OpenAI)(nil)

type config struct {
	model      string
	baseURL    string
	maxTokens  int64
	httpClient *http.Client
}

// Option configures the completer.
type Option func(*config)

// WithModel sets the chat model name.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithMaxTokens caps the completion length. Zero leaves the provider
// default in place.
func WithMaxTokens(n int64) Option {
	return func(c *config) { c.maxTokens = n }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.httpClient = client }
}

// NewOpenAI creates an OpenAI chat completer.
func NewOpenAI(apiKey string, opts ...Option) *OpenAI {
	cfg := config{
		model:      defaultChatModel,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(&cfg)
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(cfg.httpClient),
	}
	if cfg.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.baseURL))
	}
	client := openai.NewClient(clientOpts...)

	return &OpenAI{
		client:    &client,
		model:     cfg.model,
		maxTokens: cfg.maxTokens,
	}
}

// Model returns the configured chat model identifier.
func (o *OpenAI) Model() string {
	return o.model
}

// Complete sends the prompt pair and returns the first choice's text.
func (o *OpenAI) Complete(ctx context.Context, system, user string) (string, error) {
	if user == "" {
		return "", ErrEmptyPrompt
	}

	messages := []openai.ChatCompletionMessageParamUnion{}
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(user))

	params := openai.ChatCompletionNewParams{
		Model:    o.model,
		Messages: messages,
	}
	if o.maxTokens > 0 {
		params.MaxTokens = openai.Int(o.maxTokens)
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("llm: no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
