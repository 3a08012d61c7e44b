package tokenkernel

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/talebox/slepau/internal/accessstore"
	"github.com/talebox/slepau/internal/common/hostcanon"
	"github.com/talebox/slepau/internal/common/slepauerr"
)

// CookieName is the name of the cookie carrying a sealed token.
const CookieName = "auth"

// Kernel turns credentials into bearer tokens and bearer tokens plus a host
// header back into claims. It holds no mutable state of its own beyond the
// store reference and the process-wide symmetric key.
type Kernel struct {
	store       *accessstore.Store
	seal        *sealer
	externalURL string // controls the cookie's Secure flag
}

// New builds a Kernel from a 32-byte symmetric key (read from the K_PRIVATE
// file at startup) and the configured external URL.
func New(store *accessstore.Store, key []byte, externalURL string) (*Kernel, error) {
	s, err := newSealer(key)
	if err != nil {
		return nil, err
	}
	return &Kernel{store: store, seal: s, externalURL: externalURL}, nil
}

func (k *Kernel) secureCookie() bool {
	return strings.HasPrefix(k.externalURL, "https://")
}

// Login verifies credentials and returns a ready-to-set cookie scoped to
// the canonical host, plus the claims it encodes.
func (k *Kernel) Login(host, username, password string, asAdmin bool) (*http.Cookie, Claims, error) {
	canonical := hostcanon.Canonicalize(host)

	var siteID *accessstore.SiteID
	if !asAdmin {
		id, ok := k.store.ResolveHost(canonical)
		if !ok {
			return nil, Claims{}, slepauerr.InvalidSite("host is not bound to any site")
		}
		siteID = &id
	}

	isAdmin, isSuper, claimMap, err := k.store.VerifyLogin(siteID, username, password)
	if err != nil {
		return nil, Claims{}, err
	}

	maxAge := accessstore.DefaultMaxAge
	if siteID != nil {
		maxAge = k.store.SiteMaxAge(*siteID)
	}

	now := time.Now()
	claims := Claims{
		Issuer:    issuer,
		Audience:  canonical,
		User:      username,
		Admin:     isAdmin,
		Super:     isSuper,
		Site:      siteID,
		Extra:     stripReserved(claimMap),
		IssuedAt:  now,
		NotBefore: now,
		ExpiresAt: now.Add(time.Duration(maxAge) * time.Second),
	}

	token, err := k.seal.seal(claims)
	if err != nil {
		return nil, Claims{}, slepauerr.Custom(err.Error())
	}

	cookie := &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Domain:   canonical,
		Path:     "/",
		SameSite: http.SameSiteStrictMode,
		HttpOnly: true,
		Secure:   k.secureCookie(),
		MaxAge:   maxAge,
	}
	return cookie, claims, nil
}

// Authenticate extracts and verifies the auth cookie against the request's
// canonical host, returning public claims on any absence or failure rather
// than an error: authentication always forwards, authorization is separate.
func (k *Kernel) Authenticate(r *http.Request) Claims {
	canonical := hostcanon.Canonicalize(r.Host)

	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return Public()
	}
	claims, err := k.seal.open(cookie.Value)
	if err != nil {
		return Public()
	}
	if claims.Issuer != issuer || claims.Audience != canonical {
		return Public()
	}
	if claims.expired(time.Now()) {
		return Public()
	}
	return claims
}

// stripReserved removes the admin/super keys before they're merged into a
// claims map headed for the Extra field: those two live as first-class
// Claims fields, never as arbitrary claim entries.
func stripReserved(in map[string]json.RawMessage) map[string]json.RawMessage {
	if in == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(in))
	for k, v := range in {
		if k == "admin" || k == "super" {
			continue
		}
		out[k] = v
	}
	return out
}
