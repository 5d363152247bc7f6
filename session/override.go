package session

import (
	"strings"

	"github.com/hupe1980/jarvis/core"
)

// ParseOverride detects a one-turn provider prefix at the very start of
// input. It returns the addressed provider and the whitespace-trimmed
// remainder. Anything that is not exactly "o:", "c:" or "g:" (e.g. "x:",
// "O:") is left untouched and reported with ok == false.
func ParseOverride(input string) (id core.ProviderID, rest string, ok bool) {
	for _, p := range core.Providers {
		if prefix := p.Shortcut(); prefix != "" && strings.HasPrefix(input, prefix) {
			return p, strings.TrimSpace(input[len(prefix):]), true
		}
	}
	return "", input, false
}

// Shortcuts returns the override prefixes usable with the given providers,
// e.g. "o: for OpenAI".
func Shortcuts(ids []core.ProviderID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.Shortcut()+" for "+id.DisplayName())
	}
	return out
}
