package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/jarvis/core"
	"github.com/hupe1980/jarvis/logging"
	"github.com/hupe1980/jarvis/model"
)

// Presenter is the presentation collaborator of a session. It reads user
// lines and renders replies, warnings and failures.
type Presenter interface {
	// ReadLine blocks for the next user line. Ctrl+C / Ctrl+D must be
	// reported as core.ErrInterrupted.
	ReadLine(ctx context.Context) (string, error)
	// BeginReply prints the speaker label of a reply.
	BeginReply(label string)
	// Emit echoes one fragment as soon as it arrives.
	Emit(ctx context.Context, f model.Fragment) error
	// EndReply terminates the reply line.
	EndReply()
	// Warn shows a recoverable notice.
	Warn(msg string)
	// Fail shows a turn failure.
	Fail(err error)
}

// Builder constructs provider handles. *provider.Factory implements it.
type Builder interface {
	New(id core.ProviderID) (model.Model, error)
}

// Options configures Start.
type Options struct {
	// Provider is the explicitly requested default (e.g. a CLI flag). Ignored
	// when it is not available.
	Provider core.ProviderID
	// Fallback is the configured default provider, tried after Provider.
	Fallback core.ProviderID
	// Persona is the system prompt seeding the transcript.
	Persona string
	// Logger receives session diagnostics.
	Logger logging.Logger
	// Pick returns a number in [0,n) and selects the default among the
	// available providers when neither Provider nor Fallback apply.
	Pick func(n int) int
	// MaxReadFailures ends Run after this many consecutive read errors.
	MaxReadFailures int
}

// Session is one interactive conversation.
type Session struct {
	id         string
	settings   core.Settings
	builder    Builder
	presenter  Presenter
	logger     logging.Logger
	transcript *core.Transcript

	defaultID     core.ProviderID
	defaultHandle model.Model
	overrides     map[core.ProviderID]model.Model

	maxReadFailures int
}

// Start validates the settings, picks the default provider and builds its
// handle. With zero available providers nothing is constructed and an error
// wrapping core.ErrSessionStart is returned.
func Start(settings core.Settings, builder Builder, presenter Presenter, optFns ...func(o *Options)) (*Session, error) {
	opts := Options{
		Persona:         core.DefaultPersona,
		Logger:          logging.NoOpLogger{},
		Pick:            rand.IntN,
		MaxReadFailures: 3,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	available := settings.Available()
	if len(available) == 0 {
		return nil, fmt.Errorf("%w: no API keys configured, run 'jarvis setup' first", core.ErrSessionStart)
	}

	id := chooseDefault(available, opts)

	handle, err := builder.New(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSessionStart, err)
	}

	s := &Session{
		id:              uuid.NewString(),
		settings:        settings,
		builder:         builder,
		presenter:       presenter,
		logger:          logging.ForComponent(opts.Logger, "session"),
		transcript:      core.NewTranscript(opts.Persona),
		defaultID:       id,
		defaultHandle:   handle,
		overrides:       make(map[core.ProviderID]model.Model),
		maxReadFailures: opts.MaxReadFailures,
	}

	s.logger.Info("session started", "session_id", s.id, "provider", id, "model", handle.Info().Name, "available", len(available))

	return s, nil
}

func chooseDefault(available []core.ProviderID, opts Options) core.ProviderID {
	for _, want := range []core.ProviderID{opts.Provider, opts.Fallback} {
		if want == "" {
			continue
		}
		for _, p := range available {
			if p == want {
				return p
			}
		}
	}
	return available[opts.Pick(len(available))]
}

// ID returns the session identifier used for log correlation.
func (s *Session) ID() string { return s.id }

// Provider returns the default provider of the session.
func (s *Session) Provider() core.ProviderID { return s.defaultID }

// Model returns metadata of the default handle.
func (s *Session) Model() model.Info { return s.defaultHandle.Info() }

// Available returns the providers that can be addressed with an override.
func (s *Session) Available() []core.ProviderID { return s.settings.Available() }

// Transcript returns the shared message history.
func (s *Session) Transcript() *core.Transcript { return s.transcript }

// Run loops reading lines and executing turns until the presenter reports
// an interrupt or ctx is cancelled; both end the session with a nil error.
// Failures inside a turn are logged, reported and the loop continues.
func (s *Session) Run(ctx context.Context) error {
	readFailures := 0

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := s.presenter.ReadLine(ctx)
		if err != nil {
			if isInterrupt(ctx, err) {
				return nil
			}
			readFailures++
			s.logger.Error("read failed", "session_id", s.id, "error", err)
			if readFailures >= s.maxReadFailures {
				return fmt.Errorf("reading input: %w", err)
			}
			s.presenter.Fail(err)
			continue
		}
		readFailures = 0

		if err := s.Turn(ctx, line); err != nil {
			if isInterrupt(ctx, err) {
				s.logger.Info("turn interrupted", "session_id", s.id)
				return nil
			}
			s.logger.Error("turn failed", "session_id", s.id, "error", err)
			s.presenter.Fail(err)
		}
	}
}

// Turn executes one conversation turn for a raw input line. Empty input
// (after removing an override prefix) abandons the turn without touching
// the transcript. Vendor failures arrive in-band and are committed like any
// other reply; if ctx is cancelled while streaming, the user turn stays but
// the partial reply is discarded and core.ErrInterrupted is returned.
//
// Replies are labelled "Jarvis" when they come from the default provider,
// including an override prefix that names the default provider, and
// "Jarvis (<Provider>)" otherwise.
func (s *Session) Turn(ctx context.Context, input string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			perr := core.PanicError(r)
			logging.Stack(s.logger, perr, "turn panicked", "session_id", s.id)
			err = &core.TurnError{Input: input, Err: perr}
		}
	}()

	id, text := s.route(input)
	if text == "" {
		return nil
	}

	handle, err := s.handle(id)
	if err != nil {
		return &core.TurnError{Input: input, Err: err}
	}

	s.transcript.Append(core.UserMessage(text))

	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	reply, fragments, callErr, emitErr := s.stream(turnCtx, handle, s.label(id))
	if callErr == nil {
		callErr = emitErr
	}
	logging.ProviderCall(s.logger, string(id), handle.Info().Name, fragments, time.Since(start), callErr)

	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", core.ErrInterrupted, ctx.Err())
	}
	if emitErr != nil {
		return &core.TurnError{Input: input, Err: emitErr}
	}

	s.transcript.Append(core.AssistantMessage(reply))

	return nil
}

// route resolves the provider for a line and strips a recognized prefix.
// An override to an unavailable provider is downgraded to the default with
// a warning.
func (s *Session) route(input string) (core.ProviderID, string) {
	id, rest, ok := ParseOverride(input)
	if !ok {
		return s.defaultID, strings.TrimSpace(input)
	}

	if !core.IsAvailable(s.settings, id) {
		err := fmt.Errorf("%w: %s", core.ErrProviderUnavailable, id)
		s.logger.Warn("override ignored", "session_id", s.id, "error", err)
		s.presenter.Warn(fmt.Sprintf("%s is unavailable currently. Using available provider.", id.DisplayName()))
		return s.defaultID, rest
	}

	return id, rest
}

// handle returns the cached handle for id, building it on first use.
func (s *Session) handle(id core.ProviderID) (model.Model, error) {
	if id == s.defaultID {
		return s.defaultHandle, nil
	}
	if h, ok := s.overrides[id]; ok {
		return h, nil
	}

	h, err := s.builder.New(id)
	if err != nil {
		return nil, fmt.Errorf("building %s handle: %w", id, err)
	}
	s.overrides[id] = h

	return h, nil
}

func (s *Session) label(id core.ProviderID) string {
	if id == s.defaultID {
		return "Jarvis"
	}
	return fmt.Sprintf("Jarvis (%s)", id.DisplayName())
}

// stream echoes the reply of handle. failure reports an in-band vendor
// failure; emitErr is set when the presenter gave up.
func (s *Session) stream(ctx context.Context, handle model.Model, label string) (reply string, n int, failure, emitErr error) {
	var sb strings.Builder

	s.presenter.BeginReply(label)
	defer s.presenter.EndReply()

	for f := range handle.Generate(ctx, s.transcript.Messages()) {
		n++
		sb.WriteString(f.Text)
		if f.Failed {
			failure = errors.New(strings.TrimPrefix(f.Text, "Error: "))
		}
		if err := s.presenter.Emit(ctx, f); err != nil {
			// cancelling unblocks the adapter goroutine
			return sb.String(), n, failure, err
		}
	}

	return sb.String(), n, failure, nil
}

func isInterrupt(ctx context.Context, err error) bool {
	return errors.Is(err, core.ErrInterrupted) || errors.Is(err, context.Canceled) || ctx.Err() != nil
}
