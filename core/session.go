package core

import (
	"sync"
	"time"
)

// DefaultPersona is the system prompt every chat session starts with.
const DefaultPersona = "You are Jarvis, a brilliant AI assistant with a witty personality. " +
	"Keep responses short, precise, and to the point. Be helpful and slightly witty, but concise."

// Transcript is the ordered message history of one chat session. It always
// starts with exactly one system message and only ever grows.
//
// Contract:
//   - Append never edits or removes earlier messages
//   - Messages returns a defensive copy to avoid external mutation
//   - Updated tracks the time of the last append
type Transcript struct {
	messages []Message
	created  time.Time
	updated  time.Time
	mu       sync.RWMutex
}

// NewTranscript creates a transcript seeded with the given system prompt.
func NewTranscript(systemPrompt string) *Transcript {
	now := time.Now()
	return &Transcript{
		messages: []Message{SystemMessage(systemPrompt)},
		created:  now,
		updated:  now,
	}
}

// Append adds a message to the end of the transcript.
func (t *Transcript) Append(m Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, m)
	t.updated = time.Now()
}

// Messages returns a copy of the full message slice, system turn included.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages including the system turn.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Last returns the most recent message.
func (t *Transcript) Last() Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.messages[len(t.messages)-1]
}

// Turns returns the number of user turns committed so far.
func (t *Transcript) Turns() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, m := range t.messages {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}

// Created returns the creation time of the transcript.
func (t *Transcript) Created() time.Time { return t.created }

// Updated returns the time of the last append.
func (t *Transcript) Updated() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.updated
}
