package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/jarvis/core"
	"github.com/hupe1980/jarvis/model"
)

// StubModel is a scripted model.Model. It streams Fragments, then either
// closes the channel or, with Block set, waits for cancellation. A non-nil
// Panic value is raised synchronously from Generate.
type StubModel struct {
	Name      string
	Provider  core.ProviderID
	Fragments []model.Fragment
	Block     bool
	Panic     any

	mu   sync.Mutex
	seen [][]core.Message
}

// NewStubModel returns a model replying with the given text fragments.
func NewStubModel(provider core.ProviderID, texts ...string) *StubModel {
	m := &StubModel{Name: "stub-" + string(provider), Provider: provider}
	for _, t := range texts {
		m.Fragments = append(m.Fragments, model.Fragment{Text: t})
	}
	return m
}

// Generate implements model.Model.
func (m *StubModel) Generate(ctx context.Context, messages []core.Message) <-chan model.Fragment {
	m.mu.Lock()
	m.seen = append(m.seen, messages)
	m.mu.Unlock()

	if m.Panic != nil {
		panic(m.Panic)
	}

	out := make(chan model.Fragment)
	go func() {
		defer close(out)
		for _, f := range m.Fragments {
			if !model.Send(ctx, out, f) {
				return
			}
		}
		if m.Block {
			<-ctx.Done()
		}
	}()
	return out
}

// Info implements model.Model.
func (m *StubModel) Info() model.Info {
	return model.Info{Name: m.Name, Provider: m.Provider, Streaming: true}
}

// Calls returns the transcripts passed to Generate, oldest first.
func (m *StubModel) Calls() [][]core.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]core.Message(nil), m.seen...)
}

// StubBuilder hands out pre-registered models by provider and counts builds.
type StubBuilder struct {
	Models map[core.ProviderID]model.Model
	Err    error

	mu     sync.Mutex
	builds map[core.ProviderID]int
}

// NewStubBuilder registers the given models under their Info().Provider.
func NewStubBuilder(models ...model.Model) *StubBuilder {
	b := &StubBuilder{Models: map[core.ProviderID]model.Model{}, builds: map[core.ProviderID]int{}}
	for _, m := range models {
		b.Models[m.Info().Provider] = m
	}
	return b
}

// New returns the registered model for id.
func (b *StubBuilder) New(id core.ProviderID) (model.Model, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.builds[id]++
	if b.Err != nil {
		return nil, b.Err
	}
	m, ok := b.Models[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownProvider, id)
	}
	return m, nil
}

// Builds returns how often New was called for id.
func (b *StubBuilder) Builds(id core.ProviderID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.builds[id]
}

// ScriptedPresenter feeds Lines to ReadLine and records everything the
// session renders. When Lines run out ReadLine returns Done, which defaults
// to core.ErrInterrupted.
type ScriptedPresenter struct {
	Lines   []string
	Done    error
	EmitErr error
	// OnEmit runs after a fragment was recorded.
	OnEmit func(f model.Fragment)

	mu       sync.Mutex
	labels   []string
	replies  []string
	warnings []string
	failures []error
	current  strings.Builder
	reads    int
}

// NewScriptedPresenter returns a presenter that will read the given lines.
func NewScriptedPresenter(lines ...string) *ScriptedPresenter {
	return &ScriptedPresenter{Lines: lines}
}

// ReadLine implements session.Presenter.
func (p *ScriptedPresenter) ReadLine(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.reads >= len(p.Lines) {
		if p.Done != nil {
			return "", p.Done
		}
		return "", core.ErrInterrupted
	}
	line := p.Lines[p.reads]
	p.reads++
	return line, nil
}

// BeginReply implements session.Presenter.
func (p *ScriptedPresenter) BeginReply(label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.labels = append(p.labels, label)
	p.current.Reset()
}

// Emit implements session.Presenter.
func (p *ScriptedPresenter) Emit(_ context.Context, f model.Fragment) error {
	p.mu.Lock()
	if p.EmitErr != nil {
		p.mu.Unlock()
		return p.EmitErr
	}
	p.current.WriteString(f.Text)
	hook := p.OnEmit
	p.mu.Unlock()

	if hook != nil {
		hook(f)
	}
	return nil
}

// EndReply implements session.Presenter.
func (p *ScriptedPresenter) EndReply() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies = append(p.replies, p.current.String())
}

// Warn implements session.Presenter.
func (p *ScriptedPresenter) Warn(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.warnings = append(p.warnings, msg)
}

// Fail implements session.Presenter.
func (p *ScriptedPresenter) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = append(p.failures, err)
}

// Labels returns the reply labels in order.
func (p *ScriptedPresenter) Labels() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.labels...)
}

// Replies returns the echoed text of each reply.
func (p *ScriptedPresenter) Replies() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.replies...)
}

// Warnings returns the recorded warnings.
func (p *ScriptedPresenter) Warnings() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.warnings...)
}

// Failures returns the recorded turn failures.
func (p *ScriptedPresenter) Failures() []error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]error(nil), p.failures...)
}
