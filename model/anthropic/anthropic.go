// Package anthropic provides a model wrapper for the Anthropic Claude API.
//
// The adapter uses the text completions endpoint: the transcript is flattened
// into a single prompt ("System: ...\nUser: ...\nAssistant:") and the streamed
// completion deltas are forwarded as fragments.
package anthropic

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hupe1980/jarvis/core"
	"github.com/hupe1980/jarvis/logging"
	"github.com/hupe1980/jarvis/model"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = anthropic.Model("claude-2.1")

// assistantCue terminates every flattened prompt.
const assistantCue = "Assistant:"

// Options configures the Anthropic model adapter (temperature, model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	BaseURL     string
	HTTPClient  *http.Client
	MaxRetries  int
	Logger      logging.Logger
}

// Model wraps the Anthropic completions API behind the generic model.Model interface.
type Model struct {
	client *anthropic.Client
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

// NewModel creates a new Anthropic model using the official client
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

	client := anthropic.NewClient(clientOpts...)

	return newModel(&client, opts)
}

// NewModelFromClient creates a new Anthropic model from an existing client
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()

	for _, fn := range optFns {
		fn(&opts)
	}

	return newModel(client, opts)
}

func newModel(client *anthropic.Client, opts Options) *Model {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Model{client: client, opts: opts}
}

// Generate streams a completion for the flattened transcript.
func (m *Model) Generate(ctx context.Context, messages []core.Message) <-chan model.Fragment {
	out := make(chan model.Fragment, 32)

	go func() {
		defer close(out)

		start := time.Now()
		params := anthropic.CompletionNewParams{
			Model:             m.opts.Model,
			Prompt:            buildPrompt(messages),
			MaxTokensToSample: m.opts.MaxTokens,
			Temperature:       anthropic.Float(m.opts.Temperature),
		}

		n, err := m.stream(ctx, params, out)
		if err != nil && ctx.Err() == nil {
			m.opts.Logger.Error("anthropic api error", "model", string(m.opts.Model), "error", err)
			model.Send(ctx, out, model.ErrorFragment(err))
			return
		}

		m.opts.Logger.Debug("anthropic stream finished", "model", string(m.opts.Model), "fragments", n, "duration", time.Since(start))
	}()

	return out
}

// buildPrompt renders each turn as "<Role>: <content>", one per line, and
// appends the assistant cue.
func buildPrompt(messages []core.Message) string {
	lines := make([]string, 0, len(messages)+1)
	for _, msg := range messages {
		lines = append(lines, msg.String())
	}
	lines = append(lines, assistantCue)
	return strings.Join(lines, "\n")
}

func (m *Model) stream(ctx context.Context, params anthropic.CompletionNewParams, out chan<- model.Fragment) (int, error) {
	stream := m.client.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	n := 0
	for stream.Next() {
		delta := stream.Current().Completion
		if delta == "" {
			continue
		}
		if !model.Send(ctx, out, model.Fragment{Text: delta}) {
			return n, ctx.Err()
		}
		n++
	}

	return n, stream.Err()
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:      string(m.opts.Model),
		Provider:  core.ProviderClaude,
		Streaming: true,
	}
}
