package accessstore

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/talebox/slepau/internal/common/proquint"
	"github.com/talebox/slepau/internal/common/slepauerr"
)

// Store is the single process-wide identity store, held under one
// reader/writer lock: all mutations take the write side briefly and
// release before any socket I/O, matching the concurrency policy shared
// across every slepau component.
type Store struct {
	mu     sync.RWMutex
	sites  map[SiteID]*Site
	hosts  map[string]SiteID // host -> site id; pruned lazily if the site is gone
	admins map[string]*Admin
}

// New returns an empty store.
func New() *Store {
	return &Store{
		sites:  make(map[SiteID]*Site),
		hosts:  make(map[string]SiteID),
		admins: make(map[string]*Admin),
	}
}

func newSiteID() SiteID { return SiteID(proquint.RandomUint32()) }

// ResolveHost upgrades a host binding to its site id. A stale binding
// (pointing at a deleted site) resolves to (0, false) rather than erroring,
// matching the weak-reference semantics in the data model.
func (s *Store) ResolveHost(host string) (SiteID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.hosts[host]
	if !ok {
		return 0, false
	}
	if _, exists := s.sites[id]; !exists {
		return 0, false
	}
	return id, true
}

// IsEmpty reports whether the store has zero admins (the bootstrap trigger).
func (s *Store) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.admins) == 0
}

// NewAdmin creates an admin account. The first admin ever created becomes
// super unconditionally.
func (s *Store) NewAdmin(username, password string) (*Admin, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.admins[username]; exists {
		return nil, slepauerr.UserTaken("admin already exists")
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, slepauerr.Custom(err.Error())
	}
	admin := &Admin{
		User: User{
			Username: username,
			PassHash: hash,
			Active:   true,
			Claims:   map[string]json.RawMessage{},
		},
		Super: len(s.admins) == 0,
	}
	s.admins[username] = admin
	return admin, nil
}

// NewSite creates a site administered (weakly) by admin.
func (s *Store) NewSite(adminUser, name string) (*Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	admin, ok := s.admins[adminUser]
	if !ok {
		return nil, slepauerr.Auth("unknown admin")
	}
	site := newSite(newSiteID(), name)
	s.sites[site.ID] = site
	admin.SiteIDs = append(admin.SiteIDs, site.ID)
	return site, nil
}

// BindHost points host at site, overwriting any prior binding.
func (s *Store) BindHost(host string, site SiteID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hosts[host] = site
}

// NewUser creates a user within site, enforcing the username regex,
// blacklist, and password rule, and per-site username uniqueness.
func (s *Store) NewUser(username, password string, site SiteID) (*User, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sites[site]
	if !ok {
		return nil, slepauerr.InvalidSite("unknown site")
	}
	if _, exists := st.Users[username]; exists {
		return nil, slepauerr.UserTaken("username already taken on this site")
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, slepauerr.Custom(err.Error())
	}
	u := &User{Username: username, PassHash: hash, Active: true, Claims: map[string]json.RawMessage{}}
	st.Users[username] = u
	return u, nil
}

// adminCanManage reports whether admin is super or administers site.
func (a *Admin) adminCanManage(site SiteID) bool {
	if a.Super {
		return true
	}
	for _, id := range a.SiteIDs {
		if id == site {
			return true
		}
	}
	return false
}

// ModSite replaces name, max_age, host bindings, and claims. Only callable
// by super or an admin whose site-set contains site.
func (s *Store) ModSite(adminUser string, site SiteID, patch SitePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	admin, ok := s.admins[adminUser]
	if !ok {
		return slepauerr.Auth("unknown admin")
	}
	if !admin.adminCanManage(site) {
		return slepauerr.Auth("not authorized for this site")
	}
	st, ok := s.sites[site]
	if !ok {
		return slepauerr.InvalidSite("unknown site")
	}

	for host, id := range s.hosts {
		if id == site {
			delete(s.hosts, host)
		}
	}
	for _, host := range patch.Hosts {
		s.hosts[host] = site
	}

	st.Name = patch.Name
	st.MaxAge = patch.MaxAge
	st.Claims = reinterpretClaims(patch.Claims)
	// A string claim whose text is itself valid JSON is stored as that JSON.
	for k, v := range st.Claims {
		var str string
		if json.Unmarshal(v, &str) == nil && json.Valid([]byte(str)) {
			st.Claims[k] = json.RawMessage(str)
		}
	}
	return nil
}

// ModAdmin is super-only and guards against self-demotion of the super
// flag or the active flag.
func (s *Store) ModAdmin(superUser, targetUser string, patch AdminPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	super, ok := s.admins[superUser]
	if !ok || !super.Super {
		return slepauerr.Auth("requires super admin")
	}
	target, ok := s.admins[targetUser]
	if !ok {
		return slepauerr.Auth("unknown admin")
	}
	for _, id := range patch.Sites {
		if _, exists := s.sites[id]; !exists {
			return slepauerr.InvalidSite("site not found, make sure the site ids are correct")
		}
	}

	changingThemselves := superUser == targetUser
	if changingThemselves {
		if target.Super && !patch.Super {
			return slepauerr.Auth("You can't get rid of your powers.")
		}
		if target.User.Active && !patch.Active {
			return slepauerr.Auth("Your power is too strong to be disabled.")
		}
	}

	target.User.Active = patch.Active
	target.User.Claims = reinterpretClaims(patch.Claims)
	target.SiteIDs = append([]SiteID{}, patch.Sites...)
	target.Super = patch.Super
	return nil
}

// ModUser is admin-initiated: active flag, claims, and password reset
// without requiring the old password.
func (s *Store) ModUser(adminUser string, site SiteID, username string, patch UserPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	admin, ok := s.admins[adminUser]
	if !ok || !admin.adminCanManage(site) {
		return slepauerr.Auth("not authorized for this site")
	}
	st, ok := s.sites[site]
	if !ok {
		return slepauerr.NotFound("site not found")
	}
	u, ok := st.Users[username]
	if !ok {
		return slepauerr.NotFound("user not found")
	}
	if patch.Active != nil {
		u.Active = *patch.Active
	}
	if patch.Claims != nil {
		u.Claims = reinterpretClaims(patch.Claims)
	}
	if patch.Pass != nil {
		if err := validatePassword(*patch.Pass); err != nil {
			return err
		}
		hash, err := hashPassword(*patch.Pass)
		if err != nil {
			return slepauerr.Custom(err.Error())
		}
		u.PassHash = hash
	}
	return nil
}

// ModUserSelf lets a user update the whitelisted claim subset on their own
// account (e.g. photo) without admin mediation.
func (s *Store) ModUserSelf(site SiteID, username string, patch ClaimPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sites[site]
	if !ok {
		return slepauerr.Auth("unknown site")
	}
	u, ok := st.Users[username]
	if !ok {
		return slepauerr.Auth("unknown user")
	}
	if u.Claims == nil {
		u.Claims = map[string]json.RawMessage{}
	}
	if patch.Photo != nil {
		u.Claims["photo"] = rawJSONUint64(*patch.Photo)
	}
	return nil
}

// DelAdmin is super-only.
func (s *Store) DelAdmin(superUser, targetUser string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	super, ok := s.admins[superUser]
	if !ok || !super.Super {
		return slepauerr.Auth("requires super admin")
	}
	if _, ok := s.admins[targetUser]; !ok {
		return slepauerr.NotFound("admin not found")
	}
	delete(s.admins, targetUser)
	return nil
}

// DelSite is callable by super or the owning admin; also prunes host
// bindings that pointed at the deleted site.
func (s *Store) DelSite(adminUser string, site SiteID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	admin, ok := s.admins[adminUser]
	if !ok || !admin.adminCanManage(site) {
		return slepauerr.Auth("not authorized for this site")
	}
	if _, ok := s.sites[site]; !ok {
		return slepauerr.NotFound("site not found")
	}
	delete(s.sites, site)
	for host, id := range s.hosts {
		if id == site {
			delete(s.hosts, host)
		}
	}
	for _, a := range s.admins {
		kept := a.SiteIDs[:0]
		for _, id := range a.SiteIDs {
			if id != site {
				kept = append(kept, id)
			}
		}
		a.SiteIDs = kept
	}
	return nil
}

// DelUser removes a user from a site the caller administers.
func (s *Store) DelUser(adminUser string, site SiteID, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	admin, ok := s.admins[adminUser]
	if !ok || !admin.adminCanManage(site) {
		return slepauerr.Auth("not authorized for this site")
	}
	st, ok := s.sites[site]
	if !ok {
		return slepauerr.NotFound("site not found")
	}
	if _, ok := st.Users[username]; !ok {
		return slepauerr.NotFound("user not found")
	}
	delete(st.Users, username)
	return nil
}

// VerifyLogin checks a password against either a site user or an admin
// (when siteID is nil, meaning "as admin"). It returns whether the matched
// account is an admin, whether it is super, and the claim map to merge into
// the token.
func (s *Store) VerifyLogin(siteID *SiteID, username, password string) (isAdmin, isSuper bool, claims map[string]json.RawMessage, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if siteID == nil {
		admin, ok := s.admins[username]
		if !ok || !verifyPassword(password, admin.User.PassHash) {
			return false, false, nil, slepauerr.Auth("invalid credentials")
		}
		if !admin.User.Active {
			return false, false, nil, slepauerr.Auth("account disabled")
		}
		return true, admin.Super, admin.User.Claims, nil
	}

	st, ok := s.sites[*siteID]
	if !ok {
		return false, false, nil, slepauerr.InvalidSite("unknown site")
	}
	u, ok := st.Users[username]
	if !ok || !verifyPassword(password, u.PassHash) {
		return false, false, nil, slepauerr.Auth("invalid credentials")
	}
	if !u.Active {
		return false, false, nil, slepauerr.Auth("account disabled")
	}
	merged := mergeClaims(st.Claims, u.Claims)
	return false, false, merged, nil
}

// ResetPassword lets a caller who knows their current password set a new
// one, without admin mediation. siteID nil means "as admin", mirroring
// VerifyLogin's convention.
func (s *Store) ResetPassword(siteID *SiteID, username, oldPassword, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var passHash *string
	if siteID == nil {
		admin, ok := s.admins[username]
		if !ok || !verifyPassword(oldPassword, admin.User.PassHash) {
			return slepauerr.Auth("invalid credentials")
		}
		passHash = &admin.User.PassHash
	} else {
		st, ok := s.sites[*siteID]
		if !ok {
			return slepauerr.InvalidSite("unknown site")
		}
		u, ok := st.Users[username]
		if !ok || !verifyPassword(oldPassword, u.PassHash) {
			return slepauerr.Auth("invalid credentials")
		}
		passHash = &u.PassHash
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return slepauerr.Custom(err.Error())
	}
	*passHash = hash
	return nil
}

// SiteMaxAge returns a site's configured token lifetime, or the default if
// the site is unknown (defensive; callers should already have validated).
func (s *Store) SiteMaxAge(site SiteID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.sites[site]; ok {
		return st.MaxAge
	}
	return defaultMaxAge
}

// GetSites lists sites, optionally filtered by id or name substring, 10 per page.
func (s *Store) GetSites(filter Filter, page int) DataSlice[*Site] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*Site
	for _, st := range s.sites {
		if matchesFilter(filter, uint64(st.ID), st.Name) {
			matched = append(matched, st)
		}
	}
	return paginate(matched, page)
}

// GetAdmins lists admins, optionally filtered by name substring.
func (s *Store) GetAdmins(filter Filter, page int) DataSlice[*Admin] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*Admin
	for _, a := range s.admins {
		if matchesFilter(filter, 0, a.User.Username) {
			matched = append(matched, a)
		}
	}
	return paginate(matched, page)
}

// GetUsers lists users of one site, optionally filtered by name substring.
func (s *Store) GetUsers(site SiteID, filter Filter, page int) (DataSlice[*User], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.sites[site]
	if !ok {
		return DataSlice[*User]{}, slepauerr.InvalidSite("unknown site")
	}
	var matched []*User
	for _, u := range st.Users {
		if matchesFilter(filter, 0, u.Username) {
			matched = append(matched, u)
		}
	}
	return paginate(matched, page), nil
}

func matchesFilter(f Filter, id uint64, name string) bool {
	if f.ID != nil {
		return *f.ID == id
	}
	if f.Text == "" {
		return true
	}
	return containsFold(name, f.Text)
}

func paginate[T any](items []T, page int) DataSlice[T] {
	total := len(items)
	start := page * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return DataSlice[T]{Items: items[start:end], Total: total}
}

// reinterpretClaims returns patch verbatim if non-nil, else an empty map,
// so a cleared claims patch never leaves a site/user's Claims field nil.
func reinterpretClaims(patch map[string]json.RawMessage) map[string]json.RawMessage {
	if patch == nil {
		return map[string]json.RawMessage{}
	}
	return patch
}

// mergeClaims layers user claims over site claims, so a user-level value
// for a key shadows the site template's default for that same key.
func mergeClaims(site, user map[string]json.RawMessage) map[string]json.RawMessage {
	merged := make(map[string]json.RawMessage, len(site)+len(user))
	for k, v := range site {
		merged[k] = v
	}
	for k, v := range user {
		merged[k] = v
	}
	return merged
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func rawJSONUint64(v uint64) json.RawMessage {
	return json.RawMessage(fmt.Sprintf("%d", v))
}
