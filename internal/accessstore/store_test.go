package accessstore

import (
	"testing"
)

func TestNewAdminFirstIsSuper(t *testing.T) {
	s := New()
	a, err := s.NewAdmin("root_admin", "hunter22")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.Super {
		t.Fatal("expected the first admin created to be super")
	}

	b, err := s.NewAdmin("second_admin", "hunter23")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Super {
		t.Fatal("expected the second admin not to be super by default")
	}
}

func TestNewAdminRejectsDuplicate(t *testing.T) {
	s := New()
	if _, err := s.NewAdmin("root_admin", "hunter22"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.NewAdmin("root_admin", "hunter22"); err == nil {
		t.Fatal("expected duplicate admin creation to fail")
	}
}

func TestNewSiteAndBindHost(t *testing.T) {
	s := New()
	s.NewAdmin("root_admin", "hunter22")
	site, err := s.NewSite("root_admin", "blog")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.BindHost("blog.example.com", site.ID)

	got, ok := s.ResolveHost("blog.example.com")
	if !ok || got != site.ID {
		t.Fatalf("expected host to resolve to %v, got %v (%v)", site.ID, got, ok)
	}
}

func TestResolveHostStaleBindingIsUnbound(t *testing.T) {
	s := New()
	s.NewAdmin("root_admin", "hunter22")
	site, _ := s.NewSite("root_admin", "blog")
	s.BindHost("blog.example.com", site.ID)

	if err := s.DelSite("root_admin", site.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := s.ResolveHost("blog.example.com"); ok {
		t.Fatal("expected a binding to a deleted site to resolve as unbound")
	}
}

func TestNewUserAndVerifyLogin(t *testing.T) {
	s := New()
	s.NewAdmin("root_admin", "hunter22")
	site, _ := s.NewSite("root_admin", "blog")

	if _, err := s.NewUser("alice", "correcthorse", site.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	isAdmin, isSuper, _, err := s.VerifyLogin(&site.ID, "alice", "correcthorse")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if isAdmin || isSuper {
		t.Fatal("expected a plain site user to be neither admin nor super")
	}

	if _, _, _, err := s.VerifyLogin(&site.ID, "alice", "wrongpassword"); err == nil {
		t.Fatal("expected wrong password to fail verification")
	}
}

func TestVerifyLoginAdminPath(t *testing.T) {
	s := New()
	s.NewAdmin("root_admin", "hunter22")

	isAdmin, isSuper, _, err := s.VerifyLogin(nil, "root_admin", "hunter22")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !isAdmin || !isSuper {
		t.Fatal("expected the first admin to authenticate as admin+super")
	}
}

func TestNewUserDuplicateUsernameOnSameSite(t *testing.T) {
	s := New()
	s.NewAdmin("root_admin", "hunter22")
	site, _ := s.NewSite("root_admin", "blog")
	s.NewUser("alice", "correcthorse", site.ID)

	if _, err := s.NewUser("alice", "anotherpass", site.ID); err == nil {
		t.Fatal("expected duplicate username on the same site to fail")
	}
}

func TestModAdminSelfDemotionGuards(t *testing.T) {
	s := New()
	s.NewAdmin("root_admin", "hunter22")

	err := s.ModAdmin("root_admin", "root_admin", AdminPatch{Active: true, Super: false})
	if err == nil || err.Error() != "AuthError: You can't get rid of your powers." {
		t.Fatalf("expected self-demotion-from-super guard, got %v", err)
	}

	err = s.ModAdmin("root_admin", "root_admin", AdminPatch{Active: false, Super: true})
	if err == nil || err.Error() != "AuthError: Your power is too strong to be disabled." {
		t.Fatalf("expected self-disable guard, got %v", err)
	}
}

func TestModAdminRequiresSuper(t *testing.T) {
	s := New()
	s.NewAdmin("root_admin", "hunter22")
	s.NewAdmin("plain_admin", "hunter23")

	err := s.ModAdmin("plain_admin", "root_admin", AdminPatch{Active: true, Super: true})
	if err == nil {
		t.Fatal("expected a non-super admin to be rejected")
	}
}

func TestDelSitePrunesHostBindingsAndAdminRefs(t *testing.T) {
	s := New()
	s.NewAdmin("root_admin", "hunter22")
	site, _ := s.NewSite("root_admin", "blog")
	s.BindHost("blog.example.com", site.ID)

	if err := s.DelSite("root_admin", site.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := s.ResolveHost("blog.example.com"); ok {
		t.Fatal("expected host binding to be pruned")
	}

	admins := s.GetAdmins(Filter{}, 0)
	for _, a := range admins.Items {
		for _, id := range a.SiteIDs {
			if id == site.ID {
				t.Fatal("expected admin's site reference to be pruned")
			}
		}
	}
}

func TestGetSitesPagination(t *testing.T) {
	s := New()
	s.NewAdmin("root_admin", "hunter22")
	for i := 0; i < 15; i++ {
		s.NewSite("root_admin", "site")
	}

	page0 := s.GetSites(Filter{}, 0)
	if page0.Total != 15 {
		t.Fatalf("expected total 15, got %d", page0.Total)
	}
	if len(page0.Items) != pageSize {
		t.Fatalf("expected a full first page of %d, got %d", pageSize, len(page0.Items))
	}

	page1 := s.GetSites(Filter{}, 1)
	if len(page1.Items) != 5 {
		t.Fatalf("expected 5 remaining items, got %d", len(page1.Items))
	}
}

func TestIsEmpty(t *testing.T) {
	s := New()
	if !s.IsEmpty() {
		t.Fatal("expected a fresh store to be empty")
	}
	s.NewAdmin("root_admin", "hunter22")
	if s.IsEmpty() {
		t.Fatal("expected store to be non-empty after creating an admin")
	}
}
