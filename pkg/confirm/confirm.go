// Package confirm implements the client half of the delete-confirmation
// contract. Destructive calls against the admin API require a substantive
// reason and an explicit acknowledgment; this package validates both locally
// so a malformed confirmation never leaves the process, and decodes the
// server's structured error payloads when a request is refused anyway.
//
// The acknowledgment flag is deliberately separate from the reason: typing a
// reason and confirming the action are two distinct gestures, and a caller
// that programmatically fills in both has to do so explicitly.
package confirm

import (
	"fmt"
	"strings"
)

// Reason length bounds enforced locally, mirroring the server's contract. The
// server re-validates regardless; these exist so interactive callers fail
// fast without a round trip.
const (
	MinReasonLength = 10
	MaxReasonLength = 500
)

// Confirmation carries what an operator must supply before a destructive
// action is issued.
type Confirmation struct {
	// Reason documents why the resource is being deleted. Recorded verbatim
	// in the audit trail.
	Reason string `json:"reason"`

	// Acknowledged must be set to true explicitly. It never travels on the
	// wire; it exists to force calling code to represent the operator's
	// confirmation gesture.
	Acknowledged bool `json:"-"`
}

// Validate checks the confirmation locally. A nil error means the
// confirmation is fit to send.
func (c Confirmation) Validate() error {
	if !c.Acknowledged {
		return fmt.Errorf("confirm: deletion not acknowledged")
	}
	trimmed := strings.TrimSpace(c.Reason)
	if len(trimmed) < MinReasonLength {
		return fmt.Errorf("confirm: reason must be at least %d characters after trimming whitespace", MinReasonLength)
	}
	if len(trimmed) > MaxReasonLength {
		return fmt.Errorf("confirm: reason must be at most %d characters", MaxReasonLength)
	}
	return nil
}
