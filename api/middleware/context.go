package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/dailyledger/api/responses"
	pkgerrors "github.com/angelmondragon/dailyledger/pkg/errors"
	"github.com/angelmondragon/dailyledger/pkg/logger"
)

type contextKey string

const ctxTenant contextKey = "tenant"

// TenantResolver reports whether a tenant has a configured ledger.
type TenantResolver interface {
	SheetID(tenant string) (string, bool)
}

func TenantFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxTenant).(string); ok {
		return v
	}
	return ""
}

// WithTenant injects the tenant name into the context.
func WithTenant(ctx context.Context, tenant string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxTenant, tenant)
}

// Tenant rejects requests whose {tenant} path segment has no ledger and
// tags the request context with the tenant otherwise.
func Tenant(tenants TenantResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant := strings.TrimSpace(chi.URLParam(r, "tenant"))
			if _, ok := tenants.SheetID(tenant); !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "unknown tenant"))
				return
			}
			ctx := WithTenant(r.Context(), tenant)
			if logg != nil {
				ctx = logg.WithTenant(ctx, tenant)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
