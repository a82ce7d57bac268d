package web

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/JonMunkholm/enricher/internal/logging"
	"github.com/JonMunkholm/enricher/internal/wizard"
)

// handleReplaceSites replaces the whole site list. URLs are normalized.
func (s *Server) handleReplaceSites(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}

	if !strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		fail(w, r, errBadRequest)
		return
	}

	var sites []wizard.Site
	if err := bindInput(r, &sites, nil); err != nil {
		fail(w, r, err)
		return
	}
	for i := range sites {
		sites[i].URL = wizard.NormalizeURL(sites[i].URL)
	}

	sess.Wizard.UpdateSites(sites)
	respondState(w, r, sess.Wizard)
}

type siteInput struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (in *siteInput) fromForm(v url.Values) {
	in.Name = v.Get("name")
	in.URL = v.Get("url")
}

// handleAddSite appends a custom search site.
func (s *Server) handleAddSite(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}

	var in siteInput
	if err := bindInput(r, &in, in.fromForm); err != nil {
		fail(w, r, err)
		return
	}

	err := sess.Wizard.EditSites(func(sites []wizard.Site) ([]wizard.Site, error) {
		return wizard.AddSite(sites, in.Name, in.URL)
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	logging.FromContext(r.Context()).Info("site added", "name", in.Name)
	respondState(w, r, sess.Wizard)
}

func (s *Server) handleToggleSite(w http.ResponseWriter, r *http.Request) {
	s.editSite(w, r, wizard.ToggleSite)
}

func (s *Server) handleRankUp(w http.ResponseWriter, r *http.Request) {
	s.editSite(w, r, wizard.IncreaseRank)
}

func (s *Server) handleRankDown(w http.ResponseWriter, r *http.Request) {
	s.editSite(w, r, wizard.DecreaseRank)
}

func (s *Server) handleRemoveSite(w http.ResponseWriter, r *http.Request) {
	s.editSite(w, r, wizard.RemoveSite)
}

// editSite applies an index-based site edit to the site at {index}.
func (s *Server) editSite(w http.ResponseWriter, r *http.Request, edit func([]wizard.Site, int) ([]wizard.Site, error)) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}

	i, err := siteIndex(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	err = sess.Wizard.EditSites(func(sites []wizard.Site) ([]wizard.Site, error) {
		return edit(sites, i)
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	respondState(w, r, sess.Wizard)
}
