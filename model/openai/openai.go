// Package openai provides an implementation of model.Model using the OpenAI
// Chat Completions API with streaming. It adapts the jarvis transcript into
// the SDK's message format and forwards each content delta as a fragment.
package openai

import (
	"context"
	"net/http"
	"time"

	"github.com/hupe1980/jarvis/core"
	"github.com/hupe1980/jarvis/logging"
	"github.com/hupe1980/jarvis/model"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = openai.ChatModelGPT4oMini

// Options configure the OpenAI model adapter.
// Fields mirror a subset of Chat Completion parameters intentionally kept
// minimal; extend via functional options without breaking callers.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int64
	APIKey      string
	BaseURL     string
	HTTPClient  *http.Client
	MaxRetries  int
	Logger      logging.Logger
}

// Model wraps the OpenAI Chat Completions API behind the generic model.Model interface.
type Model struct {
	client *openai.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:       DefaultModel,
		Temperature: 0.7,
		MaxTokens:   1024,
		MaxRetries:  2,
		Logger:      logging.NoOpLogger{},
	}
}

// NewModel creates a new OpenAI model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	clientOpts := []option.RequestOption{option.WithMaxRetries(opts.MaxRetries)}
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(opts.HTTPClient))
	}

	client := openai.NewClient(clientOpts...)
	return newModel(&client, opts)
}

// NewModelFromClient creates a new OpenAI model from an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return newModel(client, opts)
}

func newModel(client *openai.Client, opts Options) *Model {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Model{client: client, opts: opts}
}

// Generate streams a chat completion for the transcript, yielding each
// non-empty content delta as a fragment.
func (m *Model) Generate(ctx context.Context, messages []core.Message) <-chan model.Fragment {
	out := make(chan model.Fragment, 32)
	go func() {
		defer close(out)
		start := time.Now()
		n, err := m.stream(ctx, buildParams(m.opts, messages), out)
		if err != nil && ctx.Err() == nil {
			m.opts.Logger.Error("openai api error", "model", m.opts.Model, "error", err)
			model.Send(ctx, out, model.ErrorFragment(err))
			return
		}
		m.opts.Logger.Debug("openai stream finished", "model", m.opts.Model, "fragments", n, "duration", time.Since(start))
	}()
	return out
}

// buildMessages converts the transcript into OpenAI chat messages, keeping
// roles as-is.
func buildMessages(messages []core.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case core.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case core.RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

// buildParams assembles the OpenAI request parameters.
func buildParams(opts Options, messages []core.Message) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Messages:    buildMessages(messages),
		Model:       opts.Model,
		Temperature: openai.Float(opts.Temperature),
		MaxTokens:   openai.Int(opts.MaxTokens),
	}
}

// stream forwards content deltas until the vendor signals completion and
// returns the number of fragments delivered.
func (m *Model) stream(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Fragment,
) (int, error) {
	stream := m.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	n := 0
	for stream.Next() {
		for _, ch := range stream.Current().Choices {
			if ch.Delta.Content == "" {
				continue
			}
			if !model.Send(ctx, out, model.Fragment{Text: ch.Delta.Content}) {
				return n, ctx.Err()
			}
			n++
		}
	}
	if err := stream.Err(); err != nil {
		return n, err
	}
	return n, nil
}

// Info returns metadata describing this OpenAI model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:      m.opts.Model,
		Provider:  core.ProviderOpenAI,
		Streaming: true,
	}
}
