package accessstore

import "github.com/talebox/slepau/internal/common/slepauerr"

// Register implements the one public self-service entry point: into an
// empty store it bootstraps a super-admin plus a default site bound to
// every host ("any"); otherwise it creates a plain user on whatever site
// the request's host resolves to.
func (s *Store) Register(host, username, password string) (isAdmin bool, site SiteID, err error) {
	if s.IsEmpty() {
		admin, err := s.NewAdmin(username, password)
		if err != nil {
			return false, 0, err
		}
		defaultSite, err := s.NewSite(admin.User.Username, "default")
		if err != nil {
			return false, 0, err
		}
		s.BindHost("any", defaultSite.ID)
		return true, defaultSite.ID, nil
	}

	siteID, ok := s.ResolveHost(host)
	if !ok {
		siteID, ok = s.ResolveHost("any")
	}
	if !ok {
		return false, 0, slepauerr.InvalidSite("no site bound to this host")
	}
	if _, err := s.NewUser(username, password, siteID); err != nil {
		return false, 0, err
	}
	return false, siteID, nil
}
