// Package jarvis provides a high-level façade over the provider factory and
// the chat session. Most applications interact with this package by:
//  1. Creating a Jarvis via New() from a core.Settings source (usually *config.Config)
//  2. Running an interactive chat against a session.Presenter (Chat)
//  3. Or sending a single prompt to one provider (Ask / AskSync)
//
// All defaults are safe for local use: no logging, vendor endpoints from the
// SDKs, and the built-in persona.
package jarvis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hupe1980/jarvis/core"
	"github.com/hupe1980/jarvis/logging"
	"github.com/hupe1980/jarvis/model"
	"github.com/hupe1980/jarvis/provider"
	"github.com/hupe1980/jarvis/session"
)

// Options configures the Jarvis instance.
type Options struct {
	// Provider is the explicitly requested default provider (e.g. a CLI
	// flag). Used only when it has a credential.
	Provider core.ProviderID

	// Fallback is the configured default provider, tried after Provider.
	// When neither is available a random available provider is chosen.
	Fallback core.ProviderID

	// Persona seeds every transcript. Defaults to core.DefaultPersona.
	Persona string

	// BaseURLs overrides vendor endpoints per provider (proxies, tests).
	BaseURLs map[core.ProviderID]string

	// HTTPClient is shared by all provider handles when set.
	HTTPClient *http.Client

	// MaxRetries for SDKs that retry transient failures.
	MaxRetries int

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Jarvis is the high-level façade aggregating settings, the provider
// factory and session construction.
type Jarvis struct {
	opts     Options
	settings core.Settings
	factory  *provider.Factory
}

// New creates a Jarvis reading credentials and generation parameters from
// settings.
func New(settings core.Settings, optFns ...func(o *Options)) *Jarvis {
	opts := Options{
		Persona:    core.DefaultPersona,
		MaxRetries: 2,
		Logger:     logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	f := provider.NewFactory(settings, func(o *provider.Options) {
		for id, u := range opts.BaseURLs {
			o.BaseURLs[id] = u
		}
		o.HTTPClient = opts.HTTPClient
		o.MaxRetries = opts.MaxRetries
		o.Logger = opts.Logger
	})

	return &Jarvis{opts: opts, settings: settings, factory: f}
}

// Available returns the providers with a configured credential.
func (j *Jarvis) Available() []core.ProviderID { return j.settings.Available() }

// Start begins a chat session rendering to presenter.
func (j *Jarvis) Start(presenter session.Presenter) (*session.Session, error) {
	return session.Start(j.settings, j.factory, presenter, func(o *session.Options) {
		o.Provider = j.opts.Provider
		o.Fallback = j.opts.Fallback
		o.Persona = j.opts.Persona
		o.Logger = j.opts.Logger
	})
}

// Chat starts a session and runs it until the user leaves or ctx is done.
func (j *Jarvis) Chat(ctx context.Context, presenter session.Presenter) error {
	s, err := j.Start(presenter)
	if err != nil {
		return err
	}
	return s.Run(ctx)
}

// Ask sends a single prompt, framed by the persona, to one provider and
// streams the reply. An empty id selects Provider, then Fallback, then the
// first available provider.
func (j *Jarvis) Ask(ctx context.Context, id core.ProviderID, prompt string) (<-chan model.Fragment, error) {
	id, err := j.resolve(id)
	if err != nil {
		return nil, err
	}

	handle, err := j.factory.New(id)
	if err != nil {
		return nil, err
	}

	j.opts.Logger.Debug("one-shot prompt", "provider", string(id), "model", handle.Info().Name)

	return handle.Generate(ctx, []core.Message{
		core.SystemMessage(j.opts.Persona),
		core.UserMessage(prompt),
	}), nil
}

// AskSync is a synchronous helper that drains Ask. A vendor failure is
// returned as an error.
func (j *Jarvis) AskSync(ctx context.Context, id core.ProviderID, prompt string) (string, error) {
	ch, err := j.Ask(ctx, id, prompt)
	if err != nil {
		return "", err
	}

	var (
		text    strings.Builder
		failure string
	)
	for f := range ch {
		if f.Failed {
			failure = strings.TrimPrefix(f.Text, "Error: ")
			continue
		}
		text.WriteString(f.Text)
	}

	if ctx.Err() != nil {
		return text.String(), ctx.Err()
	}
	if failure != "" {
		return text.String(), errors.New(failure)
	}

	return text.String(), nil
}

func (j *Jarvis) resolve(id core.ProviderID) (core.ProviderID, error) {
	if id != "" {
		if !id.Valid() {
			return "", fmt.Errorf("%w: %q", core.ErrUnknownProvider, id)
		}
		if !core.IsAvailable(j.settings, id) {
			return "", fmt.Errorf("%w: %s", core.ErrProviderUnavailable, id)
		}
		return id, nil
	}

	for _, want := range []core.ProviderID{j.opts.Provider, j.opts.Fallback} {
		if want != "" && core.IsAvailable(j.settings, want) {
			return want, nil
		}
	}

	available := j.settings.Available()
	if len(available) == 0 {
		return "", fmt.Errorf("%w: no API keys configured", core.ErrProviderUnavailable)
	}

	return available[0], nil
}
