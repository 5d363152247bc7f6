// Package model defines the provider-agnostic generation contract used by
// the jarvis chat session.
//
// Core goals:
//   - Unify streaming and non-streaming vendors behind a single interface
//   - Never fail past the adapter boundary: vendor errors become an in-band
//     "Error: ..." fragment
//   - Keep the message shape minimal (role + text) and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Vendors (OpenAI, Anthropic, Gemini) implement Model in sub packages so the
// session stays decoupled from vendor SDKs.
package model
