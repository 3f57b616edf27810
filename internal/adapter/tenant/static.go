// Package tenant implements the external TenantResolver collaborator the
// core only consumes as an interface (spec §6.1: tenant credential
// verification is out of scope for the core, supplied externally).
package tenant

import (
	"crypto/subtle"
	"strings"

	"github.com/makeit3d/forge-gateway/internal/domain"
)

// StaticResolver authenticates X-API-Key headers against a fixed
// key->tenant table loaded at startup, grounded on the admin surface's
// constant-time credential comparison (internal/adapter/httpserver/auth.go)
// generalized from one admin credential to many tenant credentials.
type StaticResolver struct {
	tenants map[string]domain.TenantContext
}

// NewStaticResolver parses "key:tenant_id[:type]" entries separated by
// commas, e.g. "sk-abc:acme:paid,sk-def:sandbox:development".
func NewStaticResolver(spec string) *StaticResolver {
	r := &StaticResolver{tenants: make(map[string]domain.TenantContext)}
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) < 2 {
			continue
		}
		tt := domain.TenantCustom
		if len(parts) == 3 {
			switch strings.ToLower(parts[2]) {
			case "development":
				tt = domain.TenantDevelopment
			case "shopify":
				tt = domain.TenantShopify
			case "supabase_app":
				tt = domain.TenantSupabaseApp
			}
		}
		r.tenants[parts[0]] = domain.TenantContext{TenantID: parts[1], TenantType: tt}
	}
	return r
}

// Resolve implements domain.TenantResolver.
func (r *StaticResolver) Resolve(_ domain.Context, apiKey string) (domain.TenantContext, error) {
	for key, tenant := range r.tenants {
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1 {
			return tenant, nil
		}
	}
	return domain.TenantContext{}, domain.ErrUnauthorized
}
