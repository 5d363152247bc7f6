// Package session runs an interactive chat: it owns the transcript, the
// default provider handle and the per-turn override handles, and drives the
// read -> route -> generate -> echo loop against a Presenter.
//
// Routing is decided per turn. A line starting with "o:", "c:" or "g:" is
// sent to OpenAI, Claude or Gemini for that turn only; every other line goes
// to the provider chosen when the session started. All providers see the
// same shared transcript, so switching mid-conversation keeps context.
//
// The presentation layer (terminal, tests) is injected, so the package never
// touches stdin/stdout itself.
package session
