package web

import (
	"context"
	"net/http"
	"strings"

	"github.com/JonMunkholm/gridhost/internal/core"
)

// defaultTenant is used when a request names no tenant.
const defaultTenant = "default"

// withTenant stores the tenant named by the X-Tenant header, or the
// tenant query parameter, on the request context.
func withTenant(ctx context.Context, r *http.Request) context.Context {
	tenant := strings.TrimSpace(r.Header.Get("X-Tenant"))
	if tenant == "" {
		tenant = strings.TrimSpace(r.URL.Query().Get("tenant"))
	}
	if tenant == "" {
		tenant = defaultTenant
	}
	return core.ContextWithTenant(ctx, tenant)
}
