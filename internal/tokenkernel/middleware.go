package tokenkernel

import (
	"context"
	"net/http"

	"github.com/talebox/slepau/internal/common/slepauerr"
)

type claimsCtxKey struct{}

// WithClaims runs Authenticate and attaches the result to the request
// context for every downstream handler and middleware to read.
func (k *Kernel) WithClaims(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := k.Authenticate(r)
		ctx := context.WithValue(r.Context(), claimsCtxKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext reads the claims WithClaims attached, defaulting to public if
// none were ever attached (e.g. in a test harness that skips the middleware).
func FromContext(ctx context.Context) Claims {
	if c, ok := ctx.Value(claimsCtxKey{}).(Claims); ok {
		return c
	}
	return Public()
}

// AuthRequired rejects requests whose claims are still the public default.
func AuthRequired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if FromContext(r.Context()).IsPublic() {
			slepauerr.WriteHTTP(w, slepauerr.Auth("authentication required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// OnlyAdmins rejects requests whose claims do not carry the admin flag.
func OnlyAdmins(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !FromContext(r.Context()).Admin {
			slepauerr.WriteHTTP(w, slepauerr.Auth("admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// OnlySupers rejects requests whose claims do not carry the super flag.
func OnlySupers(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !FromContext(r.Context()).Super {
			slepauerr.WriteHTTP(w, slepauerr.Auth("super admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// PublicOnlyGET restricts an unauthenticated caller to GET/HEAD; an
// authenticated caller (site user or admin) passes through unrestricted.
func PublicOnlyGET(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if FromContext(r.Context()).IsPublic() && r.Method != http.MethodGet && r.Method != http.MethodHead {
			slepauerr.WriteHTTP(w, slepauerr.Auth("public users may only read"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
