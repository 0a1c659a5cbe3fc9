package middleware

import (
	"context"
	"net/http"

	"github.com/edvin/bookwell/internal/api/response"
	"github.com/edvin/bookwell/internal/model"
)

// GetIdentity extracts the APIKeyIdentity from the request context.
func GetIdentity(ctx context.Context) *APIKeyIdentity {
	identity, _ := ctx.Value(APIKeyIdentityKey).(*APIKeyIdentity)
	return identity
}

// IsOwner checks whether the identity carries the owner role.
func IsOwner(identity *APIKeyIdentity) bool {
	return identity != nil && identity.Role == model.RoleOwner
}

// RequireOwner returns middleware that restricts the route to owner keys.
// Billing runs and subscription mutations go through here; viewer keys get
// the read side only.
func RequireOwner() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsOwner(GetIdentity(r.Context())) {
				response.WriteError(w, http.StatusForbidden, "owner access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
