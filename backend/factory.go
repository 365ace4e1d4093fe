package backend

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// HandlerConfig carries the per-session parameters a variant needs when
// constructing a handler.
type HandlerConfig struct {
	Model       string
	Temperature float64
}

// Variant describes one registered backend shape: its capability descriptor
// and a handler constructor.
type Variant struct {
	Capabilities Capabilities
	New          func(ctx context.Context, cfg HandlerConfig) (Handler, error)
}

// ProviderInfo describes a registered provider's name and capabilities.
type ProviderInfo struct {
	Name         string
	Capabilities Capabilities
}

// Factory manages named backend variants. Capabilities resolve synchronously
// without constructing a handler; handlers are created on demand, one per
// session epoch. Thread-safe for concurrent access.
type Factory struct {
	mu       sync.RWMutex
	variants map[string]Variant
}

// NewFactory creates an empty Factory.
func NewFactory() *Factory {
	return &Factory{variants: make(map[string]Variant)}
}

// Register adds a named provider variant to the factory.
func (f *Factory) Register(provider string, v Variant) error {
	if provider == "" {
		return ErrEmptyProvider
	}
	if v.New == nil {
		return fmt.Errorf("provider %q has no handler constructor", provider)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.variants[provider]; exists {
		return fmt.Errorf("%w: %s", ErrProviderExists, provider)
	}

	f.variants[provider] = v
	return nil
}

// Capabilities returns the capability descriptor for a provider.
func (f *Factory) Capabilities(provider string) (Capabilities, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	v, exists := f.variants[provider]
	if !exists {
		return Capabilities{}, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	return v.Capabilities, nil
}

// NewHandler constructs a handler for a provider.
func (f *Factory) NewHandler(ctx context.Context, provider string, cfg HandlerConfig) (Handler, error) {
	f.mu.RLock()
	v, exists := f.variants[provider]
	f.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	h, err := v.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create handler for %q: %w", provider, err)
	}
	return h, nil
}

// List returns information about all registered providers, sorted by name.
func (f *Factory) List() []ProviderInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()

	infos := make([]ProviderInfo, 0, len(f.variants))
	for name, v := range f.variants {
		infos = append(infos, ProviderInfo{Name: name, Capabilities: v.Capabilities})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})

	return infos
}

// PersistentVariant wraps a session engine as a registrable variant.
func PersistentVariant(engine SessionEngine, tracksTokens bool) Variant {
	return Variant{
		Capabilities: Capabilities{SupportsMultiTurn: true, SupportsTokenTracking: tracksTokens},
		New: func(ctx context.Context, cfg HandlerConfig) (Handler, error) {
			return NewPersistentHandler(engine, cfg.Temperature, tracksTokens), nil
		},
	}
}

// OneShotVariant wraps a task engine as a registrable variant.
func OneShotVariant(engine TaskEngine, tracksTokens bool) Variant {
	return Variant{
		Capabilities: Capabilities{SupportsMultiTurn: false, SupportsTokenTracking: tracksTokens},
		New: func(ctx context.Context, cfg HandlerConfig) (Handler, error) {
			return NewOneShotHandler(engine, tracksTokens), nil
		},
	}
}

// BatchVariant wraps a batch engine as a registrable variant. Multi-turn is
// supported by reconstructing the full message list per call.
func BatchVariant(engine BatchEngine, tracksTokens bool) Variant {
	return Variant{
		Capabilities: Capabilities{SupportsMultiTurn: true, SupportsTokenTracking: tracksTokens},
		New: func(ctx context.Context, cfg HandlerConfig) (Handler, error) {
			return NewBatchHandler(engine, cfg.Temperature, tracksTokens), nil
		},
	}
}
