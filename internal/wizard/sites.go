package wizard

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Site is a web site consulted during enrichment. Rank orders the list for
// display; higher ranks come first.
type Site struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Selected bool   `json:"selected"`
	Rank     int    `json:"rank"`
}

// NormalizeURL trims raw and adds an https:// scheme when it has none.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	lower := strings.ToLower(u)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return u
	}
	return "https://" + u
}

// SortSites returns a copy of sites ordered by rank, highest first. Sites of
// equal rank keep their relative order.
func SortSites(sites []Site) []Site {
	out := slices.Clone(sites)
	slices.SortStableFunc(out, func(a, b Site) int {
		return cmp.Compare(b.Rank, a.Rank)
	})
	return out
}

// HasSelectedSite reports whether at least one site is selected.
func HasSelectedSite(sites []Site) bool {
	return slices.ContainsFunc(sites, func(s Site) bool { return s.Selected })
}

// AddSite appends a new selected site with rank 0. Name and URL
// are trimmed and both must be non-empty.
func AddSite(sites []Site, name, url string) ([]Site, error) {
	name = strings.TrimSpace(name)
	url = NormalizeURL(url)
	if name == "" || url == "" {
		return sites, ErrInvalidSite
	}
	out := slices.Clone(sites)
	return append(out, Site{Name: name, URL: url, Selected: true}), nil
}

// ToggleSite flips the selection of the site at index i.
func ToggleSite(sites []Site, i int) ([]Site, error) {
	return updateSite(sites, i, func(s *Site) { s.Selected = !s.Selected })
}

// IncreaseRank moves the site at index i one rank up.
func IncreaseRank(sites []Site, i int) ([]Site, error) {
	return updateSite(sites, i, func(s *Site) { s.Rank++ })
}

// DecreaseRank moves the site at index i one rank down.
func DecreaseRank(sites []Site, i int) ([]Site, error) {
	return updateSite(sites, i, func(s *Site) { s.Rank-- })
}

// RemoveSite deletes the site at index i.
func RemoveSite(sites []Site, i int) ([]Site, error) {
	if i < 0 || i >= len(sites) {
		return sites, fmt.Errorf("%w: index %d", ErrSiteNotFound, i)
	}
	out := slices.Clone(sites)
	return slices.Delete(out, i, i+1), nil
}

func updateSite(sites []Site, i int, fn func(*Site)) ([]Site, error) {
	if i < 0 || i >= len(sites) {
		return sites, fmt.Errorf("%w: index %d", ErrSiteNotFound, i)
	}
	out := slices.Clone(sites)
	fn(&out[i])
	return out, nil
}
