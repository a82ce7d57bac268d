package web

// handlers_common.go holds helpers shared by the wizard handlers.

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/JonMunkholm/enricher/internal/csvdata"
	"github.com/JonMunkholm/enricher/internal/session"
	"github.com/JonMunkholm/enricher/internal/web/views"
	"github.com/JonMunkholm/enricher/internal/wizard"
	"github.com/go-chi/chi/v5"
)

// maxJSONBody bounds JSON request bodies. Uploads have their own limit.
const maxJSONBody = 1 << 20

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// siteIndex reads the {index} URL parameter. A malformed index is reported
// as an unknown site.
func siteIndex(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "index")
	i, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: index %q", wizard.ErrSiteNotFound, raw)
	}
	return i, nil
}

// bindInput fills v from a JSON body, or calls fromForm with the posted
// form values when the request is a form submission.
func bindInput(r *http.Request, v any, fromForm func(url.Values)) error {
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("%w: %w", errBadRequest, err)
		}
		return nil
	}

	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	fromForm(r.PostForm)
	return nil
}

// mustSession returns the request's session or writes an error.
func mustSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := currentSession(r)
	if !ok {
		fail(w, r, wizard.ErrNoSession)
		return nil, false
	}
	return sess, true
}

// respondState answers a successful write: JSON callers get the new state,
// browsers are sent back to the wizard page.
func respondState(w http.ResponseWriter, r *http.Request, wz *wizard.Wizard) {
	if !wantsJSON(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, wz.State())
}

// pageData gathers everything the page view needs from a wizard.
func pageData(wz *wizard.Wizard) views.PageData {
	st := wz.State()
	return views.PageData{
		State:           st,
		Preview:         csvdata.Preview(st.Dataset, csvdata.DefaultPreviewRows),
		TemplatePreview: wz.TemplatePreview(),
		SortedSites:     sortedSites(st.Sites),
	}
}

// sortedSites pairs each site with its index in the stored list, in
// display order. Site routes address sites by stored index.
func sortedSites(sites []wizard.Site) []views.IndexedSite {
	out := make([]views.IndexedSite, len(sites))
	for i, s := range sites {
		out[i] = views.IndexedSite{Index: i, Site: s}
	}
	slices.SortStableFunc(out, func(a, b views.IndexedSite) int {
		return cmp.Compare(b.Site.Rank, a.Site.Rank)
	})
	return out
}

// clientIP returns the request's remote IP without the port.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
