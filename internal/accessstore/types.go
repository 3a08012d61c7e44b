// Package accessstore is the multi-tenant identity store: sites, their
// per-site users, cross-site admins, and the host→site binding table.
// It is the authoritative (sites+hosts+admins+users) schema; the
// single-tenant (users-only) form seen elsewhere in the corpus this was
// ported from is superseded and intentionally not implemented.
package accessstore

import (
	"encoding/json"

	"github.com/talebox/slepau/internal/common/proquint"
)

// SiteID opaquely identifies a tenant, rendered to clients as a
// two-word hyphenated proquint.
type SiteID uint32

func (id SiteID) String() string { return proquint.EncodeUint32(uint32(id)) }

// ParseSiteID decodes a two-word proquint into a SiteID.
func ParseSiteID(s string) (SiteID, error) {
	v, err := proquint.DecodeUint32(s)
	if err != nil {
		return 0, err
	}
	return SiteID(v), nil
}

const defaultMaxAge = 60 * 60 * 24 // 24h, in seconds

// DefaultMaxAge is the token lifetime (seconds) used for admin logins and
// any site that hasn't overridden its own max_age.
const DefaultMaxAge = defaultMaxAge

// User is a per-site account.
type User struct {
	Username string                 `json:"user"`
	PassHash string                 `json:"pass"`
	Active   bool                   `json:"active"`
	Claims   map[string]json.RawMessage `json:"claims"`
}

// Site is one tenant: its users, claim template, and token lifetime policy.
type Site struct {
	ID         SiteID                     `json:"id"`
	Name       string                     `json:"name"`
	Users      map[string]*User           `json:"users"`
	MaxAge     int                        `json:"max_age"`
	AllowAdmin bool                       `json:"allow_admin"`
	Claims     map[string]json.RawMessage `json:"claims"`
}

func newSite(id SiteID, name string) *Site {
	return &Site{
		ID:     id,
		Name:   name,
		Users:  make(map[string]*User),
		MaxAge: defaultMaxAge,
		Claims: make(map[string]json.RawMessage),
	}
}

// Admin is a cross-site account: a user record plus the set of sites it
// administers (held as ids — the weak-reference upgrade/prune that the
// original models as fallible pointer dereference is just a map lookup
// here; DelSite prunes a deleted site's id from every admin's SiteIDs).
type Admin struct {
	User    User     `json:"user"`
	SiteIDs []SiteID `json:"sites"`
	Super   bool     `json:"super"`
}

// HostBinding maps one external hostname to a site, by id (weak reference:
// resolving a binding whose site no longer exists yields "unbound", not an
// error).
type HostBinding struct {
	Host   string `json:"host"`
	SiteID SiteID `json:"site_id"`
}

// ClaimPatch is the whitelist of claims a user may set on themselves
// without admin mediation.
type ClaimPatch struct {
	Photo *uint64 `json:"photo,omitempty"`
}

// SitePatch is the mutable surface of ModSite.
type SitePatch struct {
	Name   string                     `json:"name"`
	Hosts  []string                   `json:"hosts"`
	MaxAge int                        `json:"max_age"`
	Claims map[string]json.RawMessage `json:"claims"`
}

// AdminPatch is the mutable surface of ModAdmin.
type AdminPatch struct {
	Active bool                       `json:"active"`
	Claims map[string]json.RawMessage `json:"claims"`
	Sites  []SiteID                   `json:"sites"`
	Super  bool                       `json:"super"`
}

// UserPatch is the mutable surface of ModUser (admin-initiated).
type UserPatch struct {
	Active *bool                      `json:"active,omitempty"`
	Claims map[string]json.RawMessage `json:"claims,omitempty"`
	Pass   *string                    `json:"pass,omitempty"`
}

// DataSlice is a paginated listing result.
type DataSlice[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

const pageSize = 10

// Filter selects rows either by exact id or by substring-of-name match.
type Filter struct {
	ID   *uint64
	Text string
}
