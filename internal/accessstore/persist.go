package accessstore

import (
	"context"
	"log/slog"

	"github.com/talebox/slepau/internal/common/snapshot"
)

// dbAuthData is the on-disk shape of the whole store: a flat snapshot that
// round-trips through encoding/json, independent of the in-memory Store's
// locking.
type dbAuthData struct {
	Sites  map[SiteID]*Site  `json:"sites"`
	Hosts  map[string]SiteID `json:"hosts"`
	Admins map[string]*Admin `json:"admins"`
}

// Snapshot returns a point-in-time copy of the store suitable for
// snapshot.Save / snapshot.MirrorHandler. Callers must not mutate it.
func (s *Store) Snapshot() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return dbAuthData{Sites: s.sites, Hosts: s.hosts, Admins: s.admins}
}

// Load replaces the store's contents with whatever snapshot.Load populates,
// following the mirror-then-file-then-empty precedence.
func (s *Store) Load(ctx context.Context, opts snapshot.Options, logger *slog.Logger) {
	var data dbAuthData
	snapshot.Load(ctx, opts, &data, logger)

	s.mu.Lock()
	defer s.mu.Unlock()
	if data.Sites != nil {
		s.sites = data.Sites
	} else {
		s.sites = make(map[SiteID]*Site)
	}
	if data.Hosts != nil {
		s.hosts = data.Hosts
	} else {
		s.hosts = make(map[string]SiteID)
	}
	if data.Admins != nil {
		s.admins = data.Admins
	} else {
		s.admins = make(map[string]*Admin)
	}
}

// Save persists the current contents atomically to opts.Path.
func (s *Store) Save(opts snapshot.Options, logger *slog.Logger) error {
	return snapshot.Save(opts, s.Snapshot(), logger)
}
