// Package provider constructs model.Model handles for the closed set of
// supported vendors. It is the only place that knows about the concrete
// adapter packages; the chat session only sees the model.Model interface.
//
// Usage:
//
//	f := provider.NewFactory(cfg, func(o *provider.Options) { o.Logger = logger })
//	handle, err := f.New(core.ProviderClaude)
//	if errors.Is(err, core.ErrUnknownProvider) { ... }
package provider
