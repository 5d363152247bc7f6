package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/peterh/liner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/jarvis/config"
	"github.com/hupe1980/jarvis/core"
	"github.com/hupe1980/jarvis/model"
)

// fakeReader answers prompts from a queue; an exhausted queue yields io.EOF.
type fakeReader struct {
	answers  []string
	errs     map[int]error
	prompts  []string
	history  []string
	password error
	closed   bool
}

func (f *fakeReader) next(prompt string) (string, error) {
	i := len(f.prompts)
	f.prompts = append(f.prompts, prompt)
	if err, ok := f.errs[i]; ok {
		return "", err
	}
	if len(f.answers) == 0 {
		return "", io.EOF
	}
	a := f.answers[0]
	f.answers = f.answers[1:]
	return a, nil
}

func (f *fakeReader) Prompt(p string) (string, error) { return f.next(p) }

func (f *fakeReader) PasswordPrompt(p string) (string, error) {
	if f.password != nil {
		return "", f.password
	}
	return f.next(p)
}

func (f *fakeReader) PromptWithSuggestion(p, text string, _ int) (string, error) {
	a, err := f.next(p)
	if err != nil {
		return "", err
	}
	if a == "" {
		return text, nil
	}
	return a, nil
}

func (f *fakeReader) AppendHistory(item string) { f.history = append(f.history, item) }

func (f *fakeReader) ReadHistory(r io.Reader) (int, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	for _, l := range strings.Split(strings.TrimSpace(string(b)), "\n") {
		if l != "" {
			f.history = append(f.history, l)
		}
	}
	return len(f.history), nil
}

func (f *fakeReader) WriteHistory(w io.Writer) (int, error) {
	for _, h := range f.history {
		if _, err := io.WriteString(w, h+"\n"); err != nil {
			return 0, err
		}
	}
	return len(f.history), nil
}

func (f *fakeReader) Close() error { f.closed = true; return nil }

func newTestConsole(r lineReader, out *bytes.Buffer, optFns ...func(o *Options)) *Console {
	fns := append([]func(o *Options){func(o *Options) {
		o.Out = out
		o.NoColor = true
		o.EchoDelay = 0
	}}, optFns...)
	return newConsole(r, fns...)
}

func TestReadLine(t *testing.T) {
	t.Run("RecordsHistory", func(t *testing.T) {
		r := &fakeReader{answers: []string{"hello", "   "}}
		c := newTestConsole(r, &bytes.Buffer{})

		line, err := c.ReadLine(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "hello", line)

		line, err = c.ReadLine(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "   ", line)

		assert.Equal(t, []string{"hello"}, r.history)
		assert.Equal(t, "You: ", r.prompts[0])
	})

	t.Run("CtrlDInterrupts", func(t *testing.T) {
		c := newTestConsole(&fakeReader{}, &bytes.Buffer{})
		_, err := c.ReadLine(context.Background())
		assert.ErrorIs(t, err, core.ErrInterrupted)
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("CtrlCInterrupts", func(t *testing.T) {
		c := newTestConsole(&fakeReader{errs: map[int]error{0: liner.ErrPromptAborted}}, &bytes.Buffer{})
		_, err := c.ReadLine(context.Background())
		assert.ErrorIs(t, err, core.ErrInterrupted)
	})

	t.Run("OtherErrorsPassThrough", func(t *testing.T) {
		boom := errors.New("tty lost")
		c := newTestConsole(&fakeReader{errs: map[int]error{0: boom}}, &bytes.Buffer{})
		_, err := c.ReadLine(context.Background())
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, core.ErrInterrupted)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		r := &fakeReader{answers: []string{"never"}}
		c := newTestConsole(r, &bytes.Buffer{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := c.ReadLine(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, r.prompts)
	})
}

func TestReply(t *testing.T) {
	var out bytes.Buffer
	c := newTestConsole(&fakeReader{}, &out)
	ctx := context.Background()

	c.BeginReply("Jarvis (Claude)")
	require.NoError(t, c.Emit(ctx, model.Fragment{Text: "Hi "}))
	require.NoError(t, c.Emit(ctx, model.Fragment{Text: "there"}))
	c.EndReply()

	assert.Equal(t, "Jarvis (Claude): Hi there\n\n", out.String())
}

func TestEmitFailure(t *testing.T) {
	var out bytes.Buffer
	c := newTestConsole(&fakeReader{}, &out)

	require.NoError(t, c.Emit(context.Background(), model.ErrorFragment(errors.New("quota"))))
	assert.Equal(t, "Error: quota", out.String())
}

func TestEmitPaced(t *testing.T) {
	var out bytes.Buffer
	c := newTestConsole(&fakeReader{}, &out, func(o *Options) { o.EchoDelay = time.Millisecond })

	start := time.Now()
	require.NoError(t, c.Emit(context.Background(), model.Fragment{Text: "héllo"}))
	assert.Equal(t, "héllo", out.String())
	assert.GreaterOrEqual(t, time.Since(start), 3*time.Millisecond)
}

func TestEmitPacedCancelled(t *testing.T) {
	var out bytes.Buffer
	c := newTestConsole(&fakeReader{}, &out, func(o *Options) { o.EchoDelay = time.Hour })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Emit(ctx, model.Fragment{Text: "abc"})
	require.Error(t, err)
	assert.Less(t, len(out.String()), 3)
}

func TestWarnFailBanner(t *testing.T) {
	var out bytes.Buffer
	c := newTestConsole(&fakeReader{}, &out)

	c.Warn("Gemini is unavailable currently. Using available provider.")
	c.Fail(errors.New("boom"))
	c.Banner(core.ProviderClaude, []string{"o: for OpenAI", "c: for Claude"})
	c.Goodbye()

	s := out.String()
	assert.Contains(t, s, "⚠️  Gemini is unavailable currently.")
	assert.Contains(t, s, "Error: boom")
	assert.Contains(t, s, "Jarvis online. Provider: CLAUDE")
	assert.Contains(t, s, "Available shortcuts:")
	assert.Contains(t, s, "  • o: for OpenAI\n")
	assert.Contains(t, s, "  • c: for Claude\n")
	assert.Contains(t, s, "Have a great day!")
}

func TestHistoryPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "history")

	r := &fakeReader{answers: []string{"first", "second"}}
	c := newTestConsole(r, &bytes.Buffer{}, func(o *Options) { o.HistoryFile = path })
	for range 2 {
		_, err := c.ReadLine(context.Background())
		require.NoError(t, err)
	}
	require.NoError(t, c.Close())
	assert.True(t, r.closed)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	r2 := &fakeReader{}
	newTestConsole(r2, &bytes.Buffer{}, func(o *Options) { o.HistoryFile = path })
	assert.Equal(t, []string{"first", "second"}, r2.history)
}

func TestSetup(t *testing.T) {
	t.Run("UpdatesConfig", func(t *testing.T) {
		cfg := config.Default()
		cfg.SetCredential(core.ProviderOpenAI, "old-openai")

		r := &fakeReader{answers: []string{
			"",            // keep openai key
			"sk-ant",      // anthropic
			"",            // no gemini key
			"mistral",     // invalid provider, asked again
			"anthropic",   // alias
			"",            // keep model name
			"9",           // out of range
			"0.3",         // temperature
			"512",         // max tokens
		}}
		var out bytes.Buffer
		c := newTestConsole(r, &out)

		require.NoError(t, c.Setup(cfg))

		key, _ := cfg.Credential(core.ProviderOpenAI)
		assert.Equal(t, "old-openai", key)
		key, _ = cfg.Credential(core.ProviderClaude)
		assert.Equal(t, "sk-ant", key)
		_, ok := cfg.Credential(core.ProviderGemini)
		assert.False(t, ok)

		assert.Equal(t, "claude", cfg.DefaultProvider)
		assert.Equal(t, "gpt-4", cfg.Model.Name)
		assert.InDelta(t, 0.3, cfg.Model.Temperature, 1e-9)
		assert.Equal(t, 512, cfg.Model.MaxTokens)
		require.NoError(t, cfg.Validate())

		assert.Contains(t, r.prompts[0], "(set, Enter keeps it)")
		assert.Contains(t, out.String(), "unknown provider")
	})

	t.Run("RepairsInvalidConfig", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		require.NoError(t, os.WriteFile(path, []byte("[api]\nopenai_api_key = \"sk\"\n[model]\ntemperature = 3.0\n"), 0600))
		for _, k := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY", "JARVIS_MODEL", "JARVIS_PROVIDER", "JARVIS_LOG_LEVEL"} {
			t.Setenv(k, "")
		}

		cfg, err := config.LoadFromPath(path)
		require.ErrorIs(t, err, config.ErrInvalid)

		r := &fakeReader{answers: []string{
			"", "", "", // keys
			"", // provider
			"", // model
			"", // keeps 3, rejected
			"1.2",
			"",
		}}
		var out bytes.Buffer
		c := newTestConsole(r, &out)

		require.NoError(t, c.Setup(cfg))
		require.NoError(t, cfg.Validate())
		assert.InDelta(t, 1.2, cfg.Model.Temperature, 1e-9)
		assert.Contains(t, out.String(), "out of range")
		require.NoError(t, cfg.Save())
	})

	t.Run("NonTerminalFallsBackToPrompt", func(t *testing.T) {
		cfg := config.Default()
		r := &fakeReader{
			password: liner.ErrNotTerminalOutput,
			answers:  []string{"k1", "", "", "", "", "", ""},
		}
		c := newTestConsole(r, &bytes.Buffer{})

		require.NoError(t, c.Setup(cfg))
		key, _ := cfg.Credential(core.ProviderOpenAI)
		assert.Equal(t, "k1", key)
	})

	t.Run("AbortStopsSetup", func(t *testing.T) {
		cfg := config.Default()
		c := newTestConsole(&fakeReader{errs: map[int]error{1: liner.ErrPromptAborted}, answers: []string{"k"}}, &bytes.Buffer{})

		err := c.Setup(cfg)
		assert.ErrorIs(t, err, core.ErrInterrupted)
	})
}
