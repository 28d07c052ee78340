// Package environments models the backend deployment environments the
// dashboard can target, which environment a session is pointed at, and the
// gRPC connections to each environment's services.
package environments

import (
	"github.com/parampatil/dashboardv2-sub000/internal/config"
)

// Environment describes one backend deployment environment.
type Environment struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Endpoint string `json:"endpoint,omitempty"`
}

// Registry is the static, ordered set of known environments. It is read-only
// configuration; entitlements on user records reference it by key.
type Registry struct {
	ordered []Environment
	byKey   map[string]Environment
}

// NewRegistry builds the registry in declaration order (dev, preprod, prod)
// with endpoints taken from the app configuration.
func NewRegistry(cfg *config.Config) *Registry {
	envs := []Environment{
		{Key: "dev", Name: "Development", Endpoint: cfg.DevEndpoint},
		{Key: "preprod", Name: "Pre-Production", Endpoint: cfg.PreprodEndpoint},
		{Key: "prod", Name: "Production", Endpoint: cfg.ProdEndpoint},
	}
	return NewRegistryFrom(envs)
}

// NewRegistryFrom builds a registry from an explicit ordered environment
// list.
func NewRegistryFrom(envs []Environment) *Registry {
	byKey := make(map[string]Environment, len(envs))
	for _, env := range envs {
		byKey[env.Key] = env
	}
	return &Registry{ordered: envs, byKey: byKey}
}

// List returns the environments in declaration order.
func (r *Registry) List() []Environment {
	return append([]Environment(nil), r.ordered...)
}

// Get returns the environment for key.
func (r *Registry) Get(key string) (Environment, bool) {
	env, ok := r.byKey[key]
	return env, ok
}

// Keys returns the environment keys in declaration order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.ordered))
	for _, env := range r.ordered {
		keys = append(keys, env.Key)
	}
	return keys
}
