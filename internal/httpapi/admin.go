package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/talebox/slepau/internal/accessstore"
	"github.com/talebox/slepau/internal/common/slepauerr"
	"github.com/talebox/slepau/internal/tokenkernel"
)

// AdminAPI wires the access-store's CRUD surface: sites, cross-site admins,
// and per-site users. Every route requires an authenticated admin; the
// store itself enforces the finer-grained super-vs-site rules.
type AdminAPI struct {
	Store *accessstore.Store
}

// Mount installs the /admin/v1/* route group behind admin authentication.
func (a *AdminAPI) Mount(r chi.Router) {
	r.Use(tokenkernel.AuthRequired, tokenkernel.OnlyAdmins)

	r.Route("/sites", func(r chi.Router) {
		r.Get("/", a.listSites)
		r.Post("/", a.createSite)
		r.Route("/{siteID}", func(r chi.Router) {
			r.Patch("/", a.patchSite)
			r.Delete("/", a.deleteSite)
			r.Get("/users", a.listUsers)
			r.Post("/users", a.createUser)
			r.Patch("/users/{username}", a.patchUser)
			r.Delete("/users/{username}", a.deleteUser)
		})
	})

	r.Route("/admins", func(r chi.Router) {
		r.Get("/", a.listAdmins)
		r.With(tokenkernel.OnlySupers).Post("/", a.createAdmin)
		r.With(tokenkernel.OnlySupers).Patch("/{username}", a.patchAdmin)
		r.With(tokenkernel.OnlySupers).Delete("/{username}", a.deleteAdmin)
	})
}

func filterFromQuery(r *http.Request) accessstore.Filter {
	f := accessstore.Filter{Text: r.URL.Query().Get("filter")}
	if idStr := r.URL.Query().Get("id"); idStr != "" {
		if id, err := strconv.ParseUint(idStr, 10, 64); err == nil {
			f.ID = &id
		}
	}
	return f
}

func pageFromQuery(r *http.Request) int {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 0 {
		page = 0
	}
	return page
}

func siteIDFromPath(r *http.Request) (accessstore.SiteID, error) {
	return accessstore.ParseSiteID(chi.URLParam(r, "siteID"))
}

func (a *AdminAPI) listSites(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Store.GetSites(filterFromQuery(r), pageFromQuery(r)))
}

func (a *AdminAPI) createSite(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		slepauerr.WriteHTTP(w, slepauerr.Custom("malformed body"))
		return
	}
	claims := tokenkernel.FromContext(r.Context())
	site, err := a.Store.NewSite(claims.User, body.Name)
	if err != nil {
		slepauerr.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, site)
}

func (a *AdminAPI) patchSite(w http.ResponseWriter, r *http.Request) {
	site, err := siteIDFromPath(r)
	if err != nil {
		slepauerr.WriteHTTP(w, slepauerr.InvalidSite("malformed site id"))
		return
	}
	var patch accessstore.SitePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		slepauerr.WriteHTTP(w, slepauerr.Custom("malformed body"))
		return
	}
	claims := tokenkernel.FromContext(r.Context())
	if err := a.Store.ModSite(claims.User, site, patch); err != nil {
		slepauerr.WriteHTTP(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (a *AdminAPI) deleteSite(w http.ResponseWriter, r *http.Request) {
	site, err := siteIDFromPath(r)
	if err != nil {
		slepauerr.WriteHTTP(w, slepauerr.InvalidSite("malformed site id"))
		return
	}
	claims := tokenkernel.FromContext(r.Context())
	if err := a.Store.DelSite(claims.User, site); err != nil {
		slepauerr.WriteHTTP(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (a *AdminAPI) listUsers(w http.ResponseWriter, r *http.Request) {
	site, err := siteIDFromPath(r)
	if err != nil {
		slepauerr.WriteHTTP(w, slepauerr.InvalidSite("malformed site id"))
		return
	}
	users, err := a.Store.GetUsers(site, filterFromQuery(r), pageFromQuery(r))
	if err != nil {
		slepauerr.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (a *AdminAPI) createUser(w http.ResponseWriter, r *http.Request) {
	site, err := siteIDFromPath(r)
	if err != nil {
		slepauerr.WriteHTTP(w, slepauerr.InvalidSite("malformed site id"))
		return
	}
	var creds [2]string
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		slepauerr.WriteHTTP(w, slepauerr.Custom("malformed body, expected [user, pass]"))
		return
	}
	user, err := a.Store.NewUser(creds[0], creds[1], site)
	if err != nil {
		slepauerr.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *AdminAPI) patchUser(w http.ResponseWriter, r *http.Request) {
	site, err := siteIDFromPath(r)
	if err != nil {
		slepauerr.WriteHTTP(w, slepauerr.InvalidSite("malformed site id"))
		return
	}
	username := chi.URLParam(r, "username")
	var patch accessstore.UserPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		slepauerr.WriteHTTP(w, slepauerr.Custom("malformed body"))
		return
	}
	claims := tokenkernel.FromContext(r.Context())
	if err := a.Store.ModUser(claims.User, site, username, patch); err != nil {
		slepauerr.WriteHTTP(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (a *AdminAPI) deleteUser(w http.ResponseWriter, r *http.Request) {
	site, err := siteIDFromPath(r)
	if err != nil {
		slepauerr.WriteHTTP(w, slepauerr.InvalidSite("malformed site id"))
		return
	}
	username := chi.URLParam(r, "username")
	claims := tokenkernel.FromContext(r.Context())
	if err := a.Store.DelUser(claims.User, site, username); err != nil {
		slepauerr.WriteHTTP(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (a *AdminAPI) listAdmins(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Store.GetAdmins(filterFromQuery(r), pageFromQuery(r)))
}

func (a *AdminAPI) createAdmin(w http.ResponseWriter, r *http.Request) {
	var creds [2]string
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		slepauerr.WriteHTTP(w, slepauerr.Custom("malformed body, expected [user, pass]"))
		return
	}
	admin, err := a.Store.NewAdmin(creds[0], creds[1])
	if err != nil {
		slepauerr.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, admin)
}

func (a *AdminAPI) patchAdmin(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	var patch accessstore.AdminPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		slepauerr.WriteHTTP(w, slepauerr.Custom("malformed body"))
		return
	}
	claims := tokenkernel.FromContext(r.Context())
	if err := a.Store.ModAdmin(claims.User, username, patch); err != nil {
		slepauerr.WriteHTTP(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (a *AdminAPI) deleteAdmin(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	claims := tokenkernel.FromContext(r.Context())
	if err := a.Store.DelAdmin(claims.User, username); err != nil {
		slepauerr.WriteHTTP(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
