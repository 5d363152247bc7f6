package core

import (
	"fmt"
	"strings"
)

// Role identifies the author of a transcript message.
type Role string

const (
	// RoleSystem carries the persona / instructions for the assistant.
	RoleSystem Role = "system"
	// RoleUser marks a message typed by the user.
	RoleUser Role = "user"
	// RoleAssistant marks a reply produced by a provider.
	RoleAssistant Role = "assistant"
)

// Title returns the capitalized role name ("System", "User", "Assistant").
func (r Role) Title() string {
	if r == "" {
		return ""
	}
	s := string(r)
	return strings.ToUpper(s[:1]) + s[1:]
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// Message is a single provider-agnostic conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SystemMessage builds a system turn.
func SystemMessage(text string) Message { return Message{Role: RoleSystem, Content: text} }

// UserMessage builds a user turn.
func UserMessage(text string) Message { return Message{Role: RoleUser, Content: text} }

// AssistantMessage builds an assistant turn.
func AssistantMessage(text string) Message { return Message{Role: RoleAssistant, Content: text} }

// String renders the message as "<Role>: <content>".
func (m Message) String() string {
	return fmt.Sprintf("%s: %s", m.Role.Title(), m.Content)
}
