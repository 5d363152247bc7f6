// Package core provides the foundational domain types shared by every layer
// of jarvis. It defines:
//
//   - Messages and the append-only Transcript of a chat session
//   - ProviderID, the closed set of supported vendors
//   - GenerationSettings and the Settings contract consumed by the factory
//     and the session (credentials, availability, generation parameters)
//   - The error taxonomy (unknown provider, unavailable provider, session
//     start failure, interrupt, turn failure)
//
// The package has no vendor SDK dependencies so adapters, the session loop
// and the presentation layer can all depend on it without cycles.
package core
