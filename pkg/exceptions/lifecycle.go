package exceptions

import (
	"time"

	"github.com/pkg/errors"
)

// ErrInvalidTransition is returned when a status-transition request is not
// reachable from the exception's current status. Resolved is terminal.
var ErrInvalidTransition = errors.New("invalid exception status transition")

var validTransitions = map[Status][]Status{
	Status_New:           {Status_Investigating, Status_Resolved},
	Status_Investigating: {Status_New, Status_Resolved},
	Status_Resolved:      {},
}

func transitionAllowed(from, to Status) bool {
	for _, target := range validTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

type TransitionOptions struct {
	Resolution string
	ResolvedBy string
}

// ApplyTransition moves an exception through the status machine. A
// transition into resolved stamps ResolvedAt and records the resolution
// metadata when supplied; existing metadata is left untouched otherwise.
// UpdatedAt is stamped on every applied transition.
func ApplyTransition(ex *Exception, target Status, opts *TransitionOptions, now time.Time) error {
	if ex == nil {
		return errors.Wrap(ErrInvalidTransition, "no exception")
	}
	if !transitionAllowed(ex.Status, target) {
		return errors.Wrapf(ErrInvalidTransition, "%s -> %s", ex.Status, target)
	}

	ex.Status = target
	ex.UpdatedAt = now

	if target == Status_Resolved {
		resolvedAt := now
		ex.ResolvedAt = &resolvedAt
		if opts != nil {
			if opts.Resolution != "" {
				ex.Resolution = opts.Resolution
			}
			if opts.ResolvedBy != "" {
				ex.ResolvedBy = opts.ResolvedBy
			}
		}
	}

	return nil
}
