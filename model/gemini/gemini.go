// Package gemini provides an implementation of model.Model for Google Gemini
// using the google.golang.org/genai client. Gemini has no system role in this
// adapter: the system turn is folded into the first user turn and the reply
// is fetched with a single non-streamed call.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hupe1980/jarvis/core"
	"github.com/hupe1980/jarvis/logging"
	"github.com/hupe1980/jarvis/model"
	"google.golang.org/genai"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.0-flash"

const (
	roleUser  = "user"
	roleModel = "model"
)

// Options configures the Gemini model adapter.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int64
	APIKey      string
	BaseURL     string
	HTTPClient  *http.Client
	Logger      logging.Logger
}

// Model wraps the Gemini generateContent API behind the generic model.Model interface.
type Model struct {
	client *genai.Client
	// initErr is reported in-band on every Generate call when the client
	// could not be constructed.
	initErr error
	opts    Options
}

func defaultOptions() Options {
	return Options{
		Model:       DefaultModel,
		Temperature: 0.7,
		MaxTokens:   1024,
		Logger:      logging.NoOpLogger{},
	}
}

// NewModel creates a new Gemini model. Client construction errors (e.g. a
// missing API key) do not fail here; they surface as an error fragment.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(context.Background(), cfg)
	m := newModel(client, opts)
	if err != nil {
		m.initErr = fmt.Errorf("gemini client: %w", err)
	}
	return m
}

// NewModelFromClient creates a new Gemini model from an existing client.
func NewModelFromClient(client *genai.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return newModel(client, opts)
}

func newModel(client *genai.Client, opts Options) *Model {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Model{client: client, opts: opts}
}

// Generate issues one generateContent call and yields the whole reply as a
// single fragment.
func (m *Model) Generate(ctx context.Context, messages []core.Message) <-chan model.Fragment {
	out := make(chan model.Fragment, 1)
	go func() {
		defer close(out)
		start := time.Now()
		text, err := m.generate(ctx, messages)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.opts.Logger.Error("gemini api error", "model", m.opts.Model, "error", err)
			model.Send(ctx, out, model.ErrorFragment(err))
			return
		}
		m.opts.Logger.Debug("gemini call finished", "model", m.opts.Model, "chars", len(text), "duration", time.Since(start))
		model.Send(ctx, out, model.Fragment{Text: text})
	}()
	return out
}

func (m *Model) generate(ctx context.Context, messages []core.Message) (string, error) {
	if m.initErr != nil {
		return "", m.initErr
	}
	if m.client == nil {
		return "", errors.New("gemini client not configured")
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(m.opts.Temperature)),
		MaxOutputTokens: int32(m.opts.MaxTokens),
	}

	resp, err := m.client.Models.GenerateContent(ctx, m.opts.Model, toContents(buildTurns(messages)), cfg)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// turn is the vendor-neutral form of a Gemini content entry.
type turn struct {
	Role string
	Text string
}

// buildTurns drops system messages, maps user->user and assistant->model and,
// if a system message existed, prefixes its content plus a blank line to the
// first turn when that turn is a user turn. Without a leading user turn the
// system content is dropped.
func buildTurns(messages []core.Message) []turn {
	var (
		system string
		turns  []turn
	)
	for _, msg := range messages {
		switch msg.Role {
		case core.RoleSystem:
			system = msg.Content
		case core.RoleUser:
			turns = append(turns, turn{Role: roleUser, Text: msg.Content})
		case core.RoleAssistant:
			turns = append(turns, turn{Role: roleModel, Text: msg.Content})
		}
	}
	if system != "" && len(turns) > 0 && turns[0].Role == roleUser {
		turns[0].Text = system + "\n\n" + turns[0].Text
	}
	return turns
}

func toContents(turns []turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		contents = append(contents, genai.NewContentFromText(t.Text, genai.Role(t.Role)))
	}
	return contents
}

// Info returns metadata describing this Gemini model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:      m.opts.Model,
		Provider:  core.ProviderGemini,
		Streaming: false,
	}
}
