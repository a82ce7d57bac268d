package wizard

import "fmt"

// Step is one screen of the wizard. Steps are ordered; Advance and Back move
// one position at a time.
type Step int

const (
	StepUpload Step = iota
	StepPreview
	StepConfigure
	StepSearchTerms
	StepPrompt
	StepSites
	StepProcessing
	StepResults
)

// Steps lists every step in order.
var Steps = []Step{
	StepUpload,
	StepPreview,
	StepConfigure,
	StepSearchTerms,
	StepPrompt,
	StepSites,
	StepProcessing,
	StepResults,
}

var stepNames = [...]string{
	StepUpload:      "upload",
	StepPreview:     "preview",
	StepConfigure:   "configure",
	StepSearchTerms: "search-terms",
	StepPrompt:      "prompt",
	StepSites:       "sites",
	StepProcessing:  "processing",
	StepResults:     "results",
}

var stepTitles = [...]string{
	StepUpload:      "Upload",
	StepPreview:     "Preview",
	StepConfigure:   "Configure",
	StepSearchTerms: "Search Terms",
	StepPrompt:      "Prompt",
	StepSites:       "Sites",
	StepProcessing:  "Processing",
	StepResults:     "Results",
}

func (s Step) valid() bool {
	return s >= StepUpload && s <= StepResults
}

// String returns the wire name of the step, e.g. "search-terms".
func (s Step) String() string {
	if !s.valid() {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

// Title returns the label shown in the step header.
func (s Step) Title() string {
	if !s.valid() {
		return s.String()
	}
	return stepTitles[s]
}

// Index returns the zero-based position of the step.
func (s Step) Index() int {
	return int(s)
}

// ParseStep converts a wire name back to a Step.
func ParseStep(name string) (Step, error) {
	for i, n := range stepNames {
		if n == name {
			return Step(i), nil
		}
	}
	return 0, fmt.Errorf("unknown step %q", name)
}

// MarshalText encodes the step by name.
func (s Step) MarshalText() ([]byte, error) {
	if !s.valid() {
		return nil, fmt.Errorf("unknown step %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a step name.
func (s *Step) UnmarshalText(b []byte) error {
	v, err := ParseStep(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
