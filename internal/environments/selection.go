package environments

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/parampatil/dashboardv2-sub000/pkg/cache"
)

// Selector resolves which backend environment a user's session targets,
// constrained to the user's entitlements. Selections persist in the cache for
// continuity across sessions; a persisted selection that is no longer allowed
// is corrected on the next resolve, not eagerly.
type Selector struct {
	registry   *Registry
	store      cache.Cache
	defaultEnv string
	logger     *zap.Logger
}

// NewSelector creates a Selector. defaultEnv is used when the user has no
// environment entitlements at all.
func NewSelector(registry *Registry, store cache.Cache, defaultEnv string, logger *zap.Logger) *Selector {
	return &Selector{
		registry:   registry,
		store:      store,
		defaultEnv: defaultEnv,
		logger:     logger,
	}
}

// Active resolves the environment key for uid given the user's allowed
// environments: a still-allowed persisted selection wins; otherwise the first
// allowed environment in registry order; otherwise the built-in default.
func (s *Selector) Active(ctx context.Context, uid string, allowed map[string]string) string {
	selected, err := s.store.Get(ctx, selectionKey(uid))
	if err != nil {
		s.logger.Warn("failed to read environment selection; falling back",
			zap.String("uid", uid), zap.Error(err))
		selected = ""
	}
	if selected != "" {
		if _, ok := allowed[selected]; ok {
			return selected
		}
	}
	return s.fallback(allowed)
}

// Select records uid's environment choice. The choice must be one of the
// user's allowed environments and a registered environment key.
func (s *Selector) Select(ctx context.Context, uid, key string, allowed map[string]string) error {
	if _, ok := s.registry.Get(key); !ok {
		return fmt.Errorf("unknown environment '%s'", key)
	}
	if _, ok := allowed[key]; !ok {
		return fmt.Errorf("environment '%s' is not in the user's entitlements", key)
	}
	if err := s.store.Set(ctx, selectionKey(uid), key, 0); err != nil {
		return fmt.Errorf("failed to persist environment selection: %w", err)
	}
	return nil
}

// Clear drops uid's persisted selection.
func (s *Selector) Clear(ctx context.Context, uid string) error {
	return s.store.Delete(ctx, selectionKey(uid))
}

// fallback picks the first allowed environment in registry declaration
// order, or the default when the user has no entitlements.
func (s *Selector) fallback(allowed map[string]string) string {
	for _, key := range s.registry.Keys() {
		if _, ok := allowed[key]; ok {
			return key
		}
	}
	return s.defaultEnv
}

func selectionKey(uid string) string {
	return "envselection:" + uid
}
