package core

import (
	"fmt"
	"time"
)

// TimedStatus returns the status the clock dictates for a product currently in status.
// Time only moves a product forward; leaving ended requires an admin override.
func TimedStatus(status Status, start, end, now time.Time) Status {
	switch status {
	case StatusNotStarted:
		if !now.Before(end) {
			return StatusEnded
		}
		if !now.Before(start) {
			return StatusActive
		}
	case StatusActive:
		if !now.Before(end) {
			return StatusEnded
		}
	}
	return status
}

// ValidateOverride checks an admin-requested transition. Applying the current status
// again is allowed and has no effect.
func ValidateOverride(from, to Status) error {
	if from == to {
		return nil
	}

	switch {
	case from == StatusNotStarted && (to == StatusActive || to == StatusEnded):
		return nil
	case from == StatusActive && to == StatusEnded:
		return nil
	case from == StatusEnded && to == StatusNotStarted:
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
