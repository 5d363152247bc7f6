// Package config loads and persists the jarvis user configuration
// (~/.jarvis/config.toml, or the legacy config.json).
//
// Resolution order: built-in defaults, then the config file, then
// environment variables (optionally seeded from .env files). A file that
// cannot be decoded is moved aside to <file>.bak and defaults are used, so a
// broken config never prevents the chat from starting.
//
// *Config implements core.Settings, so it can be handed directly to the
// provider factory and the chat session.
package config
