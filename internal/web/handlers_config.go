package web

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/JonMunkholm/enricher/internal/wizard"
	"github.com/go-chi/chi/v5"
)

type columnInput struct {
	Name string `json:"name"`
}

func (in *columnInput) fromForm(v url.Values) {
	in.Name = v.Get("name")
}

// handleAddColumn appends an empty column to the dataset and selects it.
func (s *Server) handleAddColumn(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}

	var in columnInput
	if err := bindInput(r, &in, in.fromForm); err != nil {
		fail(w, r, err)
		return
	}

	sess.Wizard.AddColumn(in.Name)
	respondState(w, r, sess.Wizard)
}

// handleSelectColumn marks a column as included in the search template.
func (s *Server) handleSelectColumn(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}

	var in columnInput
	if err := bindInput(r, &in, in.fromForm); err != nil {
		fail(w, r, err)
		return
	}

	if name := strings.TrimSpace(in.Name); name != "" {
		sess.Wizard.SelectColumn(name)
	}
	respondState(w, r, sess.Wizard)
}

// handleDeselectColumn removes {name} from the selected columns.
func (s *Server) handleDeselectColumn(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}

	name := chi.URLParam(r, "name")
	if r.URL.RawPath != "" {
		// chi matched against the escaped path.
		unescaped, err := url.PathUnescape(name)
		if err != nil {
			fail(w, r, errBadRequest)
			return
		}
		name = unescaped
	}
	sess.Wizard.DeselectColumn(name)
	respondState(w, r, sess.Wizard)
}

// configForm reads a ConfigPatch from form fields. Fields absent from the
// form stay nil so they are left unchanged.
func configForm(patch *wizard.ConfigPatch) func(url.Values) {
	return func(v url.Values) {
		if v.Has("columnToEnrich") {
			c := v.Get("columnToEnrich")
			patch.ColumnToEnrich = &c
		}
		if v.Has("selectedColumns") {
			cols := v["selectedColumns"]
			patch.SelectedColumns = &cols
		}
		if v.Has("customTemplate") {
			t := v.Get("customTemplate")
			patch.CustomTemplate = &t
		}
		if v.Has("prompt") {
			p := v.Get("prompt")
			patch.Prompt = &p
		}
	}
}

// handleUpdateConfig merges a partial configuration.
func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}

	var patch wizard.ConfigPatch
	if err := bindInput(r, &patch, configForm(&patch)); err != nil {
		fail(w, r, err)
		return
	}

	sess.Wizard.UpdateConfig(patch)
	respondState(w, r, sess.Wizard)
}

// handleTemplatePreview renders the search template against the first row.
func (s *Server) handleTemplatePreview(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"template": sess.Wizard.State().Config.CustomTemplate,
		"preview":  sess.Wizard.TemplatePreview(),
	})
}
