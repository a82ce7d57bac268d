// Package presets provides the wizard's built-in defaults: the starter search
// sites, the extraction prompt, the values used by the mock enrichment, and
// the company names shown while processing runs.
//
// Defaults are embedded from defaults.yaml. An operator file can replace any
// top-level key; keys it leaves out keep their embedded value.
package presets

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/JonMunkholm/enricher/internal/wizard"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Site is a search site as written in a presets file.
type Site struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Selected bool   `yaml:"selected"`
	Rank     int    `yaml:"rank"`
}

// Presets holds every configurable default.
type Presets struct {
	Sites      []Site   `yaml:"sites"`
	Prompt     string   `yaml:"prompt"`
	Candidates []string `yaml:"candidates"`
	Companies  []string `yaml:"companies"`
}

// Default returns the embedded presets.
func Default() (*Presets, error) {
	var p Presets
	if err := yaml.Unmarshal(defaultsYAML, &p); err != nil {
		return nil, fmt.Errorf("parse embedded presets: %w", err)
	}
	return &p, nil
}

// Load returns the embedded presets overlaid with the file at path.
// An empty path returns the embedded presets unchanged.
func Load(path string) (*Presets, error) {
	p, err := Default()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets file: %w", err)
	}

	var override Presets
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("parse presets file %s: %w", path, err)
	}
	p.merge(override)

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("presets file %s: %w", path, err)
	}
	return p, nil
}

func (p *Presets) merge(o Presets) {
	if len(o.Sites) > 0 {
		p.Sites = o.Sites
	}
	if o.Prompt != "" {
		p.Prompt = o.Prompt
	}
	if len(o.Candidates) > 0 {
		p.Candidates = o.Candidates
	}
	if len(o.Companies) > 0 {
		p.Companies = o.Companies
	}
}

// Validate reports presets the wizard cannot run with.
func (p *Presets) Validate() error {
	if len(p.Candidates) == 0 {
		return fmt.Errorf("candidates must not be empty")
	}
	if len(p.Companies) == 0 {
		return fmt.Errorf("companies must not be empty")
	}
	for i, s := range p.Sites {
		if s.Name == "" || s.URL == "" {
			return fmt.Errorf("site %d needs both name and url", i)
		}
	}
	return nil
}

// WizardOptions converts the presets into wizard defaults.
func (p *Presets) WizardOptions() wizard.Options {
	sites := make([]wizard.Site, len(p.Sites))
	for i, s := range p.Sites {
		sites[i] = wizard.Site{
			Name:     s.Name,
			URL:      wizard.NormalizeURL(s.URL),
			Selected: s.Selected,
			Rank:     s.Rank,
		}
	}
	return wizard.Options{
		DefaultSites:  sites,
		DefaultPrompt: p.Prompt,
	}
}
