package wizard

import (
	"errors"
	"fmt"

	"github.com/JonMunkholm/enricher/internal/csvdata"
)

// Upload errors are defined next to the reader that produces them.
var (
	ErrInvalidFileFormat = csvdata.ErrInvalidFileFormat
	ErrFileReadFailure   = csvdata.ErrFileReadFailure
)

var (
	// ErrGuardViolation is wrapped by every *GuardError.
	ErrGuardViolation = errors.New("guard violation")

	ErrSiteNotFound   = errors.New("site not found")
	ErrInvalidSite    = errors.New("invalid site: name and url are required")
	ErrProcessingBusy = errors.New("processing already running")
	ErrNotProcessing  = errors.New("wizard is not on the processing step")
	ErrNoSession      = errors.New("session not found")
)

// GuardError reports why Advance refused to leave From.
type GuardError struct {
	From   Step
	Reason string
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("guard violation: cannot advance from %s: %s", e.From, e.Reason)
}

func (e *GuardError) Unwrap() error {
	return ErrGuardViolation
}
