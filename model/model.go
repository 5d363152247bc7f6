package model

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/jarvis/core"
)

// Fragment is one incremental piece of an assistant reply.
type Fragment struct {
	Text string `json:"text"`
	// Failed marks the in-band error fragment emitted when the vendor call
	// fails. Text still carries the full "Error: <message>" string.
	Failed bool `json:"failed,omitempty"`
}

// ErrorFragment builds the single fragment an adapter yields when its vendor
// call fails.
func ErrorFragment(err error) Fragment {
	return Fragment{Text: fmt.Sprintf("Error: %v", err), Failed: true}
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string          `json:"name"`
	Provider core.ProviderID `json:"provider"`
	// Streaming reports whether replies arrive in more than one fragment.
	Streaming bool `json:"streaming"`
}

// Model is the minimal interface a provider adapter implements.
//
// Generate receives the full transcript, system turn included, and returns a
// channel of fragments that is closed once the reply is complete. Each call
// yields a fresh channel. Generate never returns an error: vendor failures
// are reported as a single ErrorFragment. When ctx is cancelled the channel
// is closed without an error fragment.
type Model interface {
	Generate(ctx context.Context, messages []core.Message) <-chan Fragment

	// Info returns information about the model implementation.
	Info() Info
}

// Collect drains a fragment channel and returns the concatenated text.
func Collect(ch <-chan Fragment) string {
	var b strings.Builder
	for f := range ch {
		b.WriteString(f.Text)
	}
	return b.String()
}

// Send delivers f on out unless ctx is cancelled first. It reports whether
// the fragment was delivered.
func Send(ctx context.Context, out chan<- Fragment, f Fragment) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- f:
		return true
	}
}

// MockModel is a lightweight in‑memory Model useful for tests & examples.
type MockModel struct {
	info      Info
	responses map[string]string
	chunkSize int
	calls     int
}

// NewMockModel constructs a MockModel that streams its replies.
func NewMockModel(name string, provider core.ProviderID) *MockModel {
	return &MockModel{
		info: Info{
			Name:      name,
			Provider:  provider,
			Streaming: true,
		},
		responses: make(map[string]string),
		chunkSize: 1,
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) { m.responses[prompt] = response }

// SetChunkSize sets how many runes each streamed fragment carries.
func (m *MockModel) SetChunkSize(n int) {
	if n > 0 {
		m.chunkSize = n
	}
}

// Calls returns how many times Generate was invoked.
func (m *MockModel) Calls() int { return m.calls }

// Generate implements Model; replies to the last user turn in rune chunks.
func (m *MockModel) Generate(ctx context.Context, messages []core.Message) <-chan Fragment {
	m.calls++
	out := make(chan Fragment, 16)

	go func() {
		defer close(out)
		var last string
		for i := len(messages) - 1; i >= 0; i-- {
			if messages[i].Role == core.RoleUser {
				last = messages[i].Content
				break
			}
		}
		full, ok := m.responses[last]
		if !ok {
			full = fmt.Sprintf("Mock response to: %s", last)
		}
		runes := []rune(full)
		for start := 0; start < len(runes); start += m.chunkSize {
			end := min(start+m.chunkSize, len(runes))
			if !Send(ctx, out, Fragment{Text: string(runes[start:end])}) {
				return
			}
		}
	}()
	return out
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
