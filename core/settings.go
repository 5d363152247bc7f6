package core

import (
	"errors"
	"fmt"
)

// GenerationSettings holds the sampling parameters shared by every provider
// handle of a session.
type GenerationSettings struct {
	Model       string  `json:"name" toml:"name"`
	Temperature float64 `json:"temperature" toml:"temperature"`
	MaxTokens   int     `json:"max_tokens" toml:"max_tokens"`
}

// Validate checks Temperature is within [0,2] and MaxTokens is positive.
func (g GenerationSettings) Validate() error {
	var errs []error
	if g.Temperature < 0 || g.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature %.2f out of range [0,2]", g.Temperature))
	}
	if g.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("max_tokens must be positive, got %d", g.MaxTokens))
	}
	return errors.Join(errs...)
}

// Settings is the read-only view of user configuration consumed by the
// provider factory and the chat session. The core never persists settings.
type Settings interface {
	// Credential returns the secret for a provider and whether it is set.
	Credential(id ProviderID) (string, bool)
	// Available returns the providers with a non-empty credential in
	// Providers order.
	Available() []ProviderID
	// Generation returns the shared generation parameters.
	Generation() GenerationSettings
}

// ModelOverrider is optionally implemented by Settings values that allow a
// per-provider model name. An empty result means "use the shared name".
type ModelOverrider interface {
	ModelFor(id ProviderID) string
}

// IsAvailable reports whether id is in the available set of s.
func IsAvailable(s Settings, id ProviderID) bool {
	for _, p := range s.Available() {
		if p == id {
			return true
		}
	}
	return false
}

// StaticSettings is a plain in-memory Settings implementation.
type StaticSettings struct {
	Credentials map[ProviderID]string
	Params      GenerationSettings
	Models      map[ProviderID]string
}

// Credential implements Settings.
func (s StaticSettings) Credential(id ProviderID) (string, bool) {
	v, ok := s.Credentials[id]
	return v, ok && v != ""
}

// Available implements Settings.
func (s StaticSettings) Available() []ProviderID {
	var out []ProviderID
	for _, p := range Providers {
		if _, ok := s.Credential(p); ok {
			out = append(out, p)
		}
	}
	return out
}

// Generation implements Settings.
func (s StaticSettings) Generation() GenerationSettings { return s.Params }

// ModelFor implements ModelOverrider.
func (s StaticSettings) ModelFor(id ProviderID) string { return s.Models[id] }
