package session

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/jarvis/core"
	"github.com/hupe1980/jarvis/internal/testutil"
	"github.com/hupe1980/jarvis/logging"
	"github.com/hupe1980/jarvis/model"
)

func settingsFor(ids ...core.ProviderID) core.StaticSettings {
	creds := map[core.ProviderID]string{}
	for _, id := range ids {
		creds[id] = "key-" + string(id)
	}
	return core.StaticSettings{
		Credentials: creds,
		Params:      core.GenerationSettings{Model: "m", Temperature: 0.7, MaxTokens: 1024},
	}
}

func startSession(t *testing.T, settings core.Settings, b Builder, p Presenter, def core.ProviderID) *Session {
	t.Helper()
	s, err := Start(settings, b, p, func(o *Options) {
		o.Provider = def
		o.Persona = "persona"
	})
	require.NoError(t, err)
	require.Equal(t, def, s.Provider())
	return s
}

func TestParseOverride(t *testing.T) {
	tests := []struct {
		input string
		id    core.ProviderID
		rest  string
		ok    bool
	}{
		{"o: hello", core.ProviderOpenAI, "hello", true},
		{"c:hi there ", core.ProviderClaude, "hi there", true},
		{"g:   ", core.ProviderGemini, "", true},
		{"o:", core.ProviderOpenAI, "", true},
		{"x: hello", "", "x: hello", false},
		{"O: hello", "", "O: hello", false},
		{" o: hello", "", " o: hello", false},
		{"hello o: world", "", "hello o: world", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			id, rest, ok := ParseOverride(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.id, id)
			assert.Equal(t, tt.rest, rest)
		})
	}
}

func TestShortcuts(t *testing.T) {
	got := Shortcuts([]core.ProviderID{core.ProviderOpenAI, core.ProviderGemini})
	assert.Equal(t, []string{"o: for OpenAI", "g: for Gemini"}, got)
}

func TestStart(t *testing.T) {
	t.Run("NoProviders", func(t *testing.T) {
		b := testutil.NewStubBuilder()
		s, err := Start(settingsFor(), b, testutil.NewScriptedPresenter())
		require.Error(t, err)
		assert.Nil(t, s)
		assert.ErrorIs(t, err, core.ErrSessionStart)
		for _, id := range core.Providers {
			assert.Zero(t, b.Builds(id))
		}
	})

	t.Run("RequestedProvider", func(t *testing.T) {
		b := testutil.NewStubBuilder(testutil.NewStubModel(core.ProviderOpenAI), testutil.NewStubModel(core.ProviderClaude))
		s, err := Start(settingsFor(core.ProviderOpenAI, core.ProviderClaude), b, testutil.NewScriptedPresenter(), func(o *Options) {
			o.Provider = core.ProviderClaude
			o.Fallback = core.ProviderOpenAI
		})
		require.NoError(t, err)
		assert.Equal(t, core.ProviderClaude, s.Provider())
		assert.Equal(t, 1, b.Builds(core.ProviderClaude))
		assert.Zero(t, b.Builds(core.ProviderOpenAI))
	})

	t.Run("FallbackWhenRequestedUnavailable", func(t *testing.T) {
		b := testutil.NewStubBuilder(testutil.NewStubModel(core.ProviderGemini))
		s, err := Start(settingsFor(core.ProviderGemini), b, testutil.NewScriptedPresenter(), func(o *Options) {
			o.Provider = core.ProviderOpenAI
			o.Fallback = core.ProviderGemini
		})
		require.NoError(t, err)
		assert.Equal(t, core.ProviderGemini, s.Provider())
	})

	t.Run("RandomAmongAvailable", func(t *testing.T) {
		b := testutil.NewStubBuilder(testutil.NewStubModel(core.ProviderClaude), testutil.NewStubModel(core.ProviderGemini))
		var gotN int
		s, err := Start(settingsFor(core.ProviderClaude, core.ProviderGemini), b, testutil.NewScriptedPresenter(), func(o *Options) {
			o.Fallback = core.ProviderOpenAI
			o.Pick = func(n int) int { gotN = n; return 1 }
		})
		require.NoError(t, err)
		assert.Equal(t, 2, gotN)
		assert.Equal(t, core.ProviderGemini, s.Provider())
	})

	t.Run("BuilderError", func(t *testing.T) {
		b := testutil.NewStubBuilder()
		b.Err = errors.New("bad key")
		_, err := Start(settingsFor(core.ProviderOpenAI), b, testutil.NewScriptedPresenter())
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrSessionStart)
		assert.ErrorIs(t, err, b.Err)
	})

	t.Run("SeedsTranscript", func(t *testing.T) {
		b := testutil.NewStubBuilder(testutil.NewStubModel(core.ProviderOpenAI))
		s, err := Start(settingsFor(core.ProviderOpenAI), b, testutil.NewScriptedPresenter())
		require.NoError(t, err)
		msgs := s.Transcript().Messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, core.SystemMessage(core.DefaultPersona), msgs[0])
		assert.NotEmpty(t, s.ID())
	})
}

func TestTurn(t *testing.T) {
	ctx := context.Background()

	t.Run("DefaultProvider", func(t *testing.T) {
		def := testutil.NewStubModel(core.ProviderOpenAI, "Hello", " there")
		p := testutil.NewScriptedPresenter()
		s := startSession(t, settingsFor(core.ProviderOpenAI), testutil.NewStubBuilder(def), p, core.ProviderOpenAI)

		require.NoError(t, s.Turn(ctx, "  hi  "))

		want := testutil.NewTranscriptBuilder("persona").Exchange("hi", "Hello there").Messages()
		assert.Equal(t, want, s.Transcript().Messages())
		assert.Equal(t, []string{"Jarvis"}, p.Labels())
		assert.Equal(t, []string{"Hello there"}, p.Replies())
		require.Len(t, def.Calls(), 1)
		assert.Equal(t, want[:2], def.Calls()[0])
	})

	t.Run("OverrideRoutesSingleTurn", func(t *testing.T) {
		def := testutil.NewStubModel(core.ProviderClaude, "from claude")
		oai := testutil.NewStubModel(core.ProviderOpenAI, "from openai")
		b := testutil.NewStubBuilder(def, oai)
		p := testutil.NewScriptedPresenter()
		s := startSession(t, settingsFor(core.ProviderOpenAI, core.ProviderClaude), b, p, core.ProviderClaude)

		require.NoError(t, s.Turn(ctx, "o: hello"))
		require.NoError(t, s.Turn(ctx, "and you?"))

		msgs := s.Transcript().Messages()
		require.Len(t, msgs, 5)
		assert.Equal(t, core.UserMessage("hello"), msgs[1])
		assert.Equal(t, core.AssistantMessage("from openai"), msgs[2])
		assert.Equal(t, core.AssistantMessage("from claude"), msgs[4])
		assert.Equal(t, []string{"Jarvis (OpenAI)", "Jarvis"}, p.Labels())

		// the second provider sees the whole shared history
		require.Len(t, def.Calls(), 1)
		assert.Len(t, def.Calls()[0], 4)
	})

	t.Run("OverrideHandleIsCached", func(t *testing.T) {
		b := testutil.NewStubBuilder(testutil.NewStubModel(core.ProviderClaude, "c"), testutil.NewStubModel(core.ProviderOpenAI, "o"))
		s := startSession(t, settingsFor(core.ProviderOpenAI, core.ProviderClaude), b, testutil.NewScriptedPresenter(), core.ProviderClaude)

		require.NoError(t, s.Turn(ctx, "o: one"))
		require.NoError(t, s.Turn(ctx, "o: two"))
		assert.Equal(t, 1, b.Builds(core.ProviderOpenAI))
		assert.Equal(t, 1, b.Builds(core.ProviderClaude))
	})

	t.Run("OverrideToDefaultUsesDefaultHandle", func(t *testing.T) {
		b := testutil.NewStubBuilder(testutil.NewStubModel(core.ProviderOpenAI, "o"))
		p := testutil.NewScriptedPresenter()
		s := startSession(t, settingsFor(core.ProviderOpenAI), b, p, core.ProviderOpenAI)

		require.NoError(t, s.Turn(ctx, "o: same"))
		assert.Equal(t, 1, b.Builds(core.ProviderOpenAI))
		assert.Equal(t, []string{"Jarvis"}, p.Labels())
	})

	t.Run("EmptyOverrideAbandonsTurn", func(t *testing.T) {
		b := testutil.NewStubBuilder(testutil.NewStubModel(core.ProviderClaude), testutil.NewStubModel(core.ProviderOpenAI))
		p := testutil.NewScriptedPresenter()
		s := startSession(t, settingsFor(core.ProviderOpenAI, core.ProviderClaude), b, p, core.ProviderClaude)

		require.NoError(t, s.Turn(ctx, "o:"))
		require.NoError(t, s.Turn(ctx, "   "))
		assert.Equal(t, 1, s.Transcript().Len())
		assert.Zero(t, b.Builds(core.ProviderOpenAI))
		assert.Empty(t, p.Labels())
	})

	t.Run("UnknownPrefixIsLiteral", func(t *testing.T) {
		def := testutil.NewStubModel(core.ProviderOpenAI, "ok")
		s := startSession(t, settingsFor(core.ProviderOpenAI), testutil.NewStubBuilder(def), testutil.NewScriptedPresenter(), core.ProviderOpenAI)

		require.NoError(t, s.Turn(ctx, "x: hello"))
		assert.Equal(t, core.UserMessage("x: hello"), s.Transcript().Messages()[1])
	})

	t.Run("UnavailableOverrideFallsBack", func(t *testing.T) {
		def := testutil.NewStubModel(core.ProviderOpenAI, "fallback")
		b := testutil.NewStubBuilder(def)
		p := testutil.NewScriptedPresenter()
		s := startSession(t, settingsFor(core.ProviderOpenAI), b, p, core.ProviderOpenAI)

		require.NoError(t, s.Turn(ctx, "g: hi"))

		require.Len(t, p.Warnings(), 1)
		assert.Contains(t, p.Warnings()[0], "Gemini is unavailable")
		assert.Zero(t, b.Builds(core.ProviderGemini))
		assert.Equal(t, core.UserMessage("hi"), s.Transcript().Messages()[1])
		assert.Equal(t, []string{"Jarvis"}, p.Labels())
	})

	t.Run("UnavailableEmptyOverrideWarnsWithoutMutation", func(t *testing.T) {
		p := testutil.NewScriptedPresenter()
		s := startSession(t, settingsFor(core.ProviderOpenAI), testutil.NewStubBuilder(testutil.NewStubModel(core.ProviderOpenAI)), p, core.ProviderOpenAI)

		require.NoError(t, s.Turn(ctx, "c:"))
		assert.Len(t, p.Warnings(), 1)
		assert.Equal(t, 1, s.Transcript().Len())
	})

	t.Run("VendorFailureIsCommitted", func(t *testing.T) {
		def := &testutil.StubModel{
			Provider:  core.ProviderOpenAI,
			Fragments: []model.Fragment{model.ErrorFragment(errors.New("rate limited"))},
		}
		p := testutil.NewScriptedPresenter()
		s := startSession(t, settingsFor(core.ProviderOpenAI), testutil.NewStubBuilder(def), p, core.ProviderOpenAI)

		require.NoError(t, s.Turn(ctx, "hi"))
		assert.Equal(t, core.AssistantMessage("Error: rate limited"), s.Transcript().Last())
		assert.Empty(t, p.Failures())
	})

	t.Run("CancelledStreamIsNotCommitted", func(t *testing.T) {
		def := &testutil.StubModel{
			Provider:  core.ProviderOpenAI,
			Fragments: []model.Fragment{{Text: "par"}, {Text: "tial"}},
			Block:     true,
		}
		p := testutil.NewScriptedPresenter()
		s := startSession(t, settingsFor(core.ProviderOpenAI), testutil.NewStubBuilder(def), p, core.ProviderOpenAI)

		turnCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		p.OnEmit = func(model.Fragment) { cancel() }

		err := s.Turn(turnCtx, "hi")
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrInterrupted)

		msgs := s.Transcript().Messages()
		require.Len(t, msgs, 2)
		assert.Equal(t, core.UserMessage("hi"), msgs[1])
	})

	t.Run("EmitFailure", func(t *testing.T) {
		def := &testutil.StubModel{
			Provider:  core.ProviderOpenAI,
			Fragments: []model.Fragment{{Text: "a"}, {Text: "b"}},
			Block:     true,
		}
		p := testutil.NewScriptedPresenter()
		p.EmitErr = errors.New("broken pipe")
		s := startSession(t, settingsFor(core.ProviderOpenAI), testutil.NewStubBuilder(def), p, core.ProviderOpenAI)

		err := s.Turn(ctx, "hi")
		var turnErr *core.TurnError
		require.ErrorAs(t, err, &turnErr)
		assert.ErrorIs(t, err, p.EmitErr)
		assert.Equal(t, core.RoleUser, s.Transcript().Last().Role)
	})

	t.Run("PanicIsRecovered", func(t *testing.T) {
		def := &testutil.StubModel{Provider: core.ProviderOpenAI, Panic: "boom"}
		s := startSession(t, settingsFor(core.ProviderOpenAI), testutil.NewStubBuilder(def), testutil.NewScriptedPresenter(), core.ProviderOpenAI)

		err := s.Turn(ctx, "hi")
		var turnErr *core.TurnError
		require.ErrorAs(t, err, &turnErr)
		assert.Equal(t, "hi", turnErr.Input)
		assert.Contains(t, err.Error(), "boom")
	})
}

func TestRun(t *testing.T) {
	t.Run("InterruptEndsSession", func(t *testing.T) {
		def := testutil.NewStubModel(core.ProviderOpenAI, "ok")
		p := testutil.NewScriptedPresenter("hi", "", "again")
		s := startSession(t, settingsFor(core.ProviderOpenAI), testutil.NewStubBuilder(def), p, core.ProviderOpenAI)

		require.NoError(t, s.Run(context.Background()))
		assert.Equal(t, 2, s.Transcript().Turns())
		assert.Equal(t, []string{"ok", "ok"}, p.Replies())
	})

	t.Run("CancelledContextEndsSession", func(t *testing.T) {
		p := testutil.NewScriptedPresenter("hi")
		s := startSession(t, settingsFor(core.ProviderOpenAI), testutil.NewStubBuilder(testutil.NewStubModel(core.ProviderOpenAI)), p, core.ProviderOpenAI)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.NoError(t, s.Run(ctx))
		assert.Equal(t, 1, s.Transcript().Len())
	})

	t.Run("TurnFailureContinues", func(t *testing.T) {
		def := testutil.NewStubModel(core.ProviderClaude, "still here")
		broken := &testutil.StubModel{Provider: core.ProviderOpenAI, Panic: errors.New("nil map")}
		p := testutil.NewScriptedPresenter("o: crash", "hello")
		s := startSession(t, settingsFor(core.ProviderOpenAI, core.ProviderClaude), testutil.NewStubBuilder(def, broken), p, core.ProviderClaude)

		require.NoError(t, s.Run(context.Background()))

		require.Len(t, p.Failures(), 1)
		var turnErr *core.TurnError
		assert.ErrorAs(t, p.Failures()[0], &turnErr)
		assert.Equal(t, core.AssistantMessage("still here"), s.Transcript().Last())
	})

	t.Run("InterruptDuringStream", func(t *testing.T) {
		def := &testutil.StubModel{Provider: core.ProviderOpenAI, Fragments: []model.Fragment{{Text: "x"}}, Block: true}
		p := testutil.NewScriptedPresenter("hi", "never read")
		s := startSession(t, settingsFor(core.ProviderOpenAI), testutil.NewStubBuilder(def), p, core.ProviderOpenAI)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		p.OnEmit = func(model.Fragment) { cancel() }

		require.NoError(t, s.Run(ctx))
		assert.Empty(t, p.Failures())
		assert.Equal(t, 1, s.Transcript().Turns())
		assert.Equal(t, core.RoleUser, s.Transcript().Last().Role)
	})

	t.Run("PersistentReadFailure", func(t *testing.T) {
		p := testutil.NewScriptedPresenter()
		p.Done = errors.New("terminal gone")
		s := startSession(t, settingsFor(core.ProviderOpenAI), testutil.NewStubBuilder(testutil.NewStubModel(core.ProviderOpenAI)), p, core.ProviderOpenAI)

		err := s.Run(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, p.Done)
		assert.Len(t, p.Failures(), 2)
	})
}

func TestTurnLogging(t *testing.T) {
	newLogged := func(t *testing.T, m *testutil.StubModel) (*Session, *bytes.Buffer) {
		t.Helper()
		var buf bytes.Buffer
		logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelDebug, Format: "text", Output: &buf})
		s, err := Start(settingsFor(core.ProviderOpenAI), testutil.NewStubBuilder(m), testutil.NewScriptedPresenter(), func(o *Options) {
			o.Logger = logger
		})
		require.NoError(t, err)
		return s, &buf
	}

	t.Run("ProviderCallRecorded", func(t *testing.T) {
		s, buf := newLogged(t, testutil.NewStubModel(core.ProviderOpenAI, "a", "b"))
		require.NoError(t, s.Turn(context.Background(), "hi"))

		out := buf.String()
		assert.Contains(t, out, "component=session")
		assert.Contains(t, out, "provider call completed")
		assert.Contains(t, out, "provider=openai")
		assert.Contains(t, out, "fragment_count=2")
	})

	t.Run("VendorFailureRecorded", func(t *testing.T) {
		s, buf := newLogged(t, &testutil.StubModel{
			Provider:  core.ProviderOpenAI,
			Fragments: []model.Fragment{model.ErrorFragment(errors.New("rate limited"))},
		})
		require.NoError(t, s.Turn(context.Background(), "hi"))

		assert.Contains(t, buf.String(), "provider call failed")
		assert.Contains(t, buf.String(), "rate limited")
	})

	t.Run("PanicLoggedWithStack", func(t *testing.T) {
		s, buf := newLogged(t, &testutil.StubModel{Provider: core.ProviderOpenAI, Panic: "boom"})
		require.Error(t, s.Turn(context.Background(), "hi"))

		assert.Contains(t, buf.String(), "turn panicked")
		assert.Contains(t, buf.String(), "stack_trace")
	})
}
