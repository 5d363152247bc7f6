package testutil

import (
	"github.com/hupe1980/jarvis/core"
)

// TranscriptBuilder helps construct transcripts with fluent chaining for tests.
// Example:
//
//	tr := NewTranscriptBuilder("be brief").User("hi").Assistant("hello").Build()
type TranscriptBuilder struct {
	system   string
	messages []core.Message
}

// NewTranscriptBuilder creates a builder seeded with a system prompt.
func NewTranscriptBuilder(system string) *TranscriptBuilder {
	return &TranscriptBuilder{system: system}
}

// User appends a user turn (chainable).
func (b *TranscriptBuilder) User(text string) *TranscriptBuilder {
	b.messages = append(b.messages, core.UserMessage(text))
	return b
}

// Assistant appends an assistant turn (chainable).
func (b *TranscriptBuilder) Assistant(text string) *TranscriptBuilder {
	b.messages = append(b.messages, core.AssistantMessage(text))
	return b
}

// Exchange appends a user turn followed by its reply (chainable).
func (b *TranscriptBuilder) Exchange(user, assistant string) *TranscriptBuilder {
	return b.User(user).Assistant(assistant)
}

// Messages returns the built history as a plain slice, system turn first.
func (b *TranscriptBuilder) Messages() []core.Message {
	out := make([]core.Message, 0, len(b.messages)+1)
	out = append(out, core.SystemMessage(b.system))
	return append(out, b.messages...)
}

// Build returns a *core.Transcript with the configured history.
func (b *TranscriptBuilder) Build() *core.Transcript {
	t := core.NewTranscript(b.system)
	for _, m := range b.messages {
		t.Append(m)
	}
	return t
}
