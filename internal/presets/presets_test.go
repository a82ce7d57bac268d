package presets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	p, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	if len(p.Sites) != 3 {
		t.Fatalf("len(Sites) = %d, want 3", len(p.Sites))
	}
	if p.Sites[0].Name != "Google" || !p.Sites[0].Selected {
		t.Errorf("Sites[0] = %+v, want selected Google", p.Sites[0])
	}
	if p.Sites[2].Name != "Crunchbase" || p.Sites[2].Selected {
		t.Errorf("Sites[2] = %+v, want unselected Crunchbase", p.Sites[2])
	}
	if len(p.Candidates) != 10 {
		t.Errorf("len(Candidates) = %d, want 10", len(p.Candidates))
	}
	if len(p.Companies) != 15 {
		t.Errorf("len(Companies) = %d, want 15", len(p.Companies))
	}
	if !strings.HasPrefix(p.Prompt, "Given the website") {
		t.Errorf("Prompt = %q", p.Prompt)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoad_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.yaml")
	content := "prompt: short prompt\ncandidates:\n  - Only Inc\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if p.Prompt != "short prompt" {
		t.Errorf("Prompt = %q, want %q", p.Prompt, "short prompt")
	}
	if len(p.Candidates) != 1 || p.Candidates[0] != "Only Inc" {
		t.Errorf("Candidates = %q", p.Candidates)
	}
	// Untouched keys keep embedded values.
	if len(p.Sites) != 3 || len(p.Companies) != 15 {
		t.Errorf("overlay dropped defaults: sites=%d companies=%d", len(p.Sites), len(p.Companies))
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(bad, []byte("sites:\n  - name: NoURL\n"), 0o644)
	if _, err := Load(bad); err == nil {
		t.Error("Load() expected error for site without url")
	}
}

func TestWizardOptions(t *testing.T) {
	p := &Presets{
		Sites:  []Site{{Name: "Example", URL: "example.com", Selected: true, Rank: 2}},
		Prompt: "extract",
	}

	opts := p.WizardOptions()

	if len(opts.DefaultSites) != 1 {
		t.Fatalf("len(DefaultSites) = %d, want 1", len(opts.DefaultSites))
	}
	s := opts.DefaultSites[0]
	if s.URL != "https://example.com" || !s.Selected || s.Rank != 2 {
		t.Errorf("DefaultSites[0] = %+v", s)
	}
	if opts.DefaultPrompt != "extract" {
		t.Errorf("DefaultPrompt = %q", opts.DefaultPrompt)
	}
}
