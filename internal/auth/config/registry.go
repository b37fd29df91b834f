package config

import (
	"sort"
	"strings"

	"github.com/gosimple/slug"
	"github.com/smallbiznis/flowmarket/internal/auth/features"
	"go.uber.org/zap"
)

// AuthProviderRegistry captures parsed providers and activation state.
type AuthProviderRegistry struct {
	All     map[string]AuthProviderConfig
	Active  map[string]AuthProviderConfig
	Ignored map[string]string
}

// BuildAuthProviderRegistry builds a registry from parsed provider configs.
func BuildAuthProviderRegistry(log *zap.Logger, cfgs map[string]AuthProviderConfig) AuthProviderRegistry {
	log = log.Named("auth.providers")
	registry := AuthProviderRegistry{
		All:     make(map[string]AuthProviderConfig, len(cfgs)),
		Active:  make(map[string]AuthProviderConfig),
		Ignored: make(map[string]string),
	}

	for key, cfg := range cfgs {
		cfg = normalizeProviderConfig(key, cfg)
		registry.All[cfg.Type] = cfg
	}

	keys := make([]string, 0, len(registry.All))
	for key := range registry.All {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		cfg := registry.All[key]
		fields := []zap.Field{zap.String("provider", cfg.Type), zap.Bool("enabled", cfg.Enabled)}
		if !cfg.Enabled {
			log.Info("provider disabled", fields...)
			continue
		}
		if !features.ImplementedAuthFeatures[cfg.Type] {
			registry.Ignored[cfg.Type] = "enabled in config but feature not implemented"
			log.Warn("provider ignored, not implemented", fields...)
			continue
		}
		registry.Active[cfg.Type] = cfg
		log.Info("provider active", fields...)
	}

	return registry
}

// Lookup returns an active provider by any spelling of its name ("Google", " google ").
func (r AuthProviderRegistry) Lookup(name string) (AuthProviderConfig, bool) {
	key := NormalizeProviderType(name)
	if key == "" {
		return AuthProviderConfig{}, false
	}
	cfg, ok := r.Active[key]
	return cfg, ok
}

// ActiveNames lists active providers in stable order.
func (r AuthProviderRegistry) ActiveNames() []string {
	names := make([]string, 0, len(r.Active))
	for name := range r.Active {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeProviderConfig(key string, cfg AuthProviderConfig) AuthProviderConfig {
	if cfg.Type == "" {
		cfg.Type = key
	}
	cfg.Type = NormalizeProviderType(cfg.Type)
	if cfg.Name == "" {
		cfg.Name = cfg.Type
	}
	return cfg
}

// NormalizeProviderType maps a provider name to its registry key.
func NormalizeProviderType(raw string) string {
	return strings.ReplaceAll(slug.Make(strings.TrimSpace(raw)), "-", "_")
}
