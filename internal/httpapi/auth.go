package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/talebox/slepau/internal/accessstore"
	"github.com/talebox/slepau/internal/common/slepauerr"
	"github.com/talebox/slepau/internal/common/snapshot"
	"github.com/talebox/slepau/internal/idempotency"
	"github.com/talebox/slepau/internal/ratelimit"
	"github.com/talebox/slepau/internal/tokenkernel"
)

// AuthAPI wires the access-substrate HTTP surface: login, registration,
// password reset, and the caller's own claims.
type AuthAPI struct {
	Store     *accessstore.Store
	Kernel    *tokenkernel.Kernel
	MagicBean string
	Logger    *slog.Logger

	// Each credential endpoint gets its own limiter, since the original's
	// per-route rates differ (1-per-5s for login, 1-per-10s for the rest).
	LoginLimiter    *ratelimit.Limiter
	RegisterLimiter *ratelimit.Limiter
	ResetLimiter    *ratelimit.Limiter

	// Idempotency guards /register and /reset against a client's retried
	// POST creating a second account or firing a second reset email after a
	// dropped response; nil disables replay caching.
	Idempotency *idempotency.Cache
}

// Mount installs the /login, /register, /reset, /user, /logout, and
// /api/mirror/:bean routes. Callers must install Kernel.WithClaims on the
// parent router first; the three public credential endpoints additionally
// enforce a per-IP rate limit tighter than the ambient default.
func (a *AuthAPI) Mount(r chi.Router) {
	r.With(a.rateLimited(a.LoginLimiter)).Post("/login", a.handleLogin)
	r.With(a.rateLimited(a.RegisterLimiter), a.idempotent()).Post("/register", a.handleRegister)
	r.With(a.rateLimited(a.ResetLimiter), a.idempotent()).Post("/reset", a.handleReset)

	r.Get("/user", a.handleGetUser)
	r.With(tokenkernel.AuthRequired).Patch("/user", a.handlePatchUser)
	r.Get("/api/mirror/{bean}", a.handleMirror)
	r.Get("/logout", a.handleLogout)
}

// rateLimited wraps a handler with the given per-IP token bucket.
func (a *AuthAPI) rateLimited(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return limiter.Middleware
}

// idempotent is a no-op passthrough when Idempotency is unset.
func (a *AuthAPI) idempotent() func(http.Handler) http.Handler {
	if a.Idempotency == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return idempotency.Middleware(a.Idempotency)
}

func (a *AuthAPI) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds [2]string
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		slepauerr.WriteHTTP(w, slepauerr.Custom("malformed body, expected [user, pass]"))
		return
	}
	asAdmin := r.URL.Query().Get("admin") == "true"

	cookie, claims, err := a.Kernel.Login(r.Host, creds[0], creds[1], asAdmin)
	if err != nil {
		slepauerr.WriteHTTP(w, err)
		return
	}
	http.SetCookie(w, cookie)
	writeJSON(w, http.StatusOK, claims)
}

func (a *AuthAPI) handleRegister(w http.ResponseWriter, r *http.Request) {
	var creds [2]string
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		slepauerr.WriteHTTP(w, slepauerr.Custom("malformed body, expected [user, pass]"))
		return
	}
	isAdmin, site, err := a.Store.Register(r.Host, creds[0], creds[1])
	if err != nil {
		slepauerr.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"admin": isAdmin,
		"site":  site.String(),
	})
}

func (a *AuthAPI) handleReset(w http.ResponseWriter, r *http.Request) {
	var body [3]string // [user, old, new]
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		slepauerr.WriteHTTP(w, slepauerr.Custom("malformed body, expected [user, old, new]"))
		return
	}
	claims := tokenkernel.FromContext(r.Context())

	var siteID *accessstore.SiteID
	if !claims.Admin {
		siteID = claims.Site
		if siteID == nil {
			id, ok := a.Store.ResolveHost(r.Host)
			if !ok {
				slepauerr.WriteHTTP(w, slepauerr.InvalidSite("host is not bound to any site"))
				return
			}
			siteID = &id
		}
	}

	if err := a.Store.ResetPassword(siteID, body[0], body[1], body[2]); err != nil {
		slepauerr.WriteHTTP(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (a *AuthAPI) handleGetUser(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, tokenkernel.FromContext(r.Context()))
}

func (a *AuthAPI) handlePatchUser(w http.ResponseWriter, r *http.Request) {
	var patch accessstore.ClaimPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		slepauerr.WriteHTTP(w, slepauerr.Custom("malformed claim patch"))
		return
	}
	claims := tokenkernel.FromContext(r.Context())
	if claims.Site == nil {
		slepauerr.WriteHTTP(w, slepauerr.Auth("admins have no self-service claims"))
		return
	}
	if err := a.Store.ModUserSelf(*claims.Site, claims.User, patch); err != nil {
		slepauerr.WriteHTTP(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (a *AuthAPI) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:   tokenkernel.CookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	referer := r.Header.Get("Referer")
	if referer == "" {
		referer = "/"
	}
	http.Redirect(w, r, referer, http.StatusFound)
}

func (a *AuthAPI) handleMirror(w http.ResponseWriter, r *http.Request) {
	r.SetPathValue("bean", chi.URLParam(r, "bean"))
	snapshot.MirrorHandler(a.MagicBean, a.Store.Snapshot)(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
