package tokenkernel

import (
	"encoding/json"
	"time"

	"github.com/talebox/slepau/internal/accessstore"
)

// issuer is the fixed issuer every sealed token carries and every
// Authenticate call rejects a mismatch on.
const issuer = "slepau:auth"

// Claims is the request-scoped identity record attached to every request
// after Authenticate runs, whether or not a valid token was presented.
type Claims struct {
	Issuer    string                     `json:"iss"`
	Audience  string                     `json:"aud"`
	User      string                     `json:"user"`
	Admin     bool                       `json:"admin,omitempty"`
	Super     bool                       `json:"super,omitempty"`
	Site      *accessstore.SiteID        `json:"site,omitempty"`
	Extra     map[string]json.RawMessage `json:"claims,omitempty"`
	IssuedAt  time.Time                  `json:"iat"`
	NotBefore time.Time                  `json:"nbf"`
	ExpiresAt time.Time                  `json:"exp"`
}

// Public is the default identity attached to every request that carries no
// valid token.
func Public() Claims {
	return Claims{User: "public"}
}

// IsPublic reports whether these are the unauthenticated default claims.
func (c Claims) IsPublic() bool { return c.User == "public" && !c.Admin && !c.Super }

// expired reports whether now falls outside [nbf, exp).
func (c Claims) expired(now time.Time) bool {
	if !c.NotBefore.IsZero() && now.Before(c.NotBefore) {
		return true
	}
	if !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt) {
		return true
	}
	return false
}
