package driver

import "github.com/makeit3d/forge-gateway/internal/domain"

// key identifies one (provider, operation) pair.
type key struct {
	provider  domain.Provider
	operation domain.Operation
}

// Registry is the concrete domain.DriverRegistry: exactly one Driver
// instance per (provider, operation) pair the system supports (spec §4.1).
type Registry struct {
	drivers map[key]domain.Driver
}

// NewRegistry builds an empty registry; callers Register each driver.
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[key]domain.Driver)}
}

// Register binds a Driver to a (provider, operation) pair.
func (r *Registry) Register(provider domain.Provider, op domain.Operation, d domain.Driver) {
	r.drivers[key{provider, op}] = d
}

// Lookup implements domain.DriverRegistry.
func (r *Registry) Lookup(provider domain.Provider, op domain.Operation) (domain.Driver, bool) {
	d, ok := r.drivers[key{provider, op}]
	return d, ok
}
