package provider

import (
	"fmt"
	"net/http"

	"github.com/hupe1980/jarvis/core"
	"github.com/hupe1980/jarvis/logging"
	"github.com/hupe1980/jarvis/model"
	"github.com/hupe1980/jarvis/model/anthropic"
	"github.com/hupe1980/jarvis/model/gemini"
	"github.com/hupe1980/jarvis/model/openai"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
)

// Options configures the transport side of every handle built by a Factory.
type Options struct {
	// BaseURLs overrides the vendor endpoint per provider (proxies, tests).
	BaseURLs map[core.ProviderID]string
	// HTTPClient is shared by all handles when set.
	HTTPClient *http.Client
	// MaxRetries applies to vendors whose SDK retries transient failures.
	MaxRetries int
	// Logger receives adapter level error logs. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Factory builds provider handles from a Settings snapshot.
type Factory struct {
	settings core.Settings
	opts     Options
}

// NewFactory creates a Factory reading credentials and generation
// parameters from settings.
func NewFactory(settings core.Settings, optFns ...func(o *Options)) *Factory {
	opts := Options{
		BaseURLs:   map[core.ProviderID]string{},
		MaxRetries: 2,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Factory{settings: settings, opts: opts}
}

// New constructs the adapter named by id. Unsupported identifiers fail with
// an error wrapping core.ErrUnknownProvider and never yield a handle.
func (f *Factory) New(id core.ProviderID) (model.Model, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownProvider, id)
	}

	key, _ := f.settings.Credential(id)
	gen := f.generation(id)
	baseURL := f.opts.BaseURLs[id]

	logging.ForComponent(f.opts.Logger, "factory").Debug("constructing provider handle", "provider", string(id), "model", gen.Model)
	logger := logging.ForComponent(f.opts.Logger, string(id))

	switch id {
	case core.ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			o.APIKey = key
			o.Model = gen.Model
			o.Temperature = gen.Temperature
			o.MaxTokens = int64(gen.MaxTokens)
			o.BaseURL = baseURL
			o.HTTPClient = f.opts.HTTPClient
			o.MaxRetries = f.opts.MaxRetries
			o.Logger = logger
		}), nil
	case core.ProviderClaude:
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.APIKey = key
			o.Model = anthropicsdk.Model(gen.Model)
			o.Temperature = gen.Temperature
			o.MaxTokens = int64(gen.MaxTokens)
			o.BaseURL = baseURL
			o.HTTPClient = f.opts.HTTPClient
			o.MaxRetries = f.opts.MaxRetries
			o.Logger = logger
		}), nil
	case core.ProviderGemini:
		return gemini.NewModel(func(o *gemini.Options) {
			o.APIKey = key
			o.Model = gen.Model
			o.Temperature = gen.Temperature
			o.MaxTokens = int64(gen.MaxTokens)
			o.BaseURL = baseURL
			o.HTTPClient = f.opts.HTTPClient
			o.Logger = logger
		}), nil
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownProvider, id)
	}
}

// generation returns the shared settings with the per-provider model name
// applied when the settings source offers one.
func (f *Factory) generation(id core.ProviderID) core.GenerationSettings {
	gen := f.settings.Generation()
	if mo, ok := f.settings.(core.ModelOverrider); ok {
		if name := mo.ModelFor(id); name != "" {
			gen.Model = name
		}
	}
	return gen
}
