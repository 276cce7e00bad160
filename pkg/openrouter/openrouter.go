package openrouter

import "github.com/google/wire"

// ProviderSet is openrouter providers.
var ProviderSet = wire.NewSet(NewClient)
