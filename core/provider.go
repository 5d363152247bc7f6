package core

import (
	"fmt"
	"strings"
)

// ProviderID names one of the supported hosted model vendors. The set is
// closed: adding a vendor means adding a constant here and a case in the
// provider factory.
type ProviderID string

const (
	// ProviderOpenAI selects the OpenAI chat completions adapter.
	ProviderOpenAI ProviderID = "openai"
	// ProviderClaude selects the Anthropic adapter.
	ProviderClaude ProviderID = "claude"
	// ProviderGemini selects the Google Gemini adapter.
	ProviderGemini ProviderID = "gemini"
)

// Providers lists every supported provider in display order.
var Providers = []ProviderID{ProviderOpenAI, ProviderClaude, ProviderGemini}

// ParseProviderID maps user input (flags, config values) to a ProviderID.
// "anthropic" and "google" are accepted as aliases.
func ParseProviderID(s string) (ProviderID, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai":
		return ProviderOpenAI, nil
	case "claude", "anthropic":
		return ProviderClaude, nil
	case "gemini", "google":
		return ProviderGemini, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
}

// Valid reports whether p is a member of the supported set.
func (p ProviderID) Valid() bool {
	switch p {
	case ProviderOpenAI, ProviderClaude, ProviderGemini:
		return true
	default:
		return false
	}
}

// DisplayName returns the human facing vendor name.
func (p ProviderID) DisplayName() string {
	switch p {
	case ProviderOpenAI:
		return "OpenAI"
	case ProviderClaude:
		return "Claude"
	case ProviderGemini:
		return "Gemini"
	default:
		return string(p)
	}
}

// Shortcut returns the two character input prefix that routes a single turn
// to this provider ("o:", "c:", "g:").
func (p ProviderID) Shortcut() string {
	switch p {
	case ProviderOpenAI:
		return "o:"
	case ProviderClaude:
		return "c:"
	case ProviderGemini:
		return "g:"
	default:
		return ""
	}
}
