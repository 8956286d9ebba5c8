package campaigns

import (
	"time"

	"wacrm/internal/types"
)

// CancellationTimeout bounds how long a schedule may stay in cancelling.
// Past it, the schedule is cancelled even if work still looks pending.
const CancellationTimeout = time.Hour

// PendingSignals are the three independent sources that may still report
// outstanding work for a schedule.
type PendingSignals struct {
	External      int // pending bucket of the scheduler summary
	LocalMessages int // messages with status pending
	LocalBatches  int // batch_schedules with status pending
}

// Any reports whether any source still has pending work.
func (p PendingSignals) Any() bool {
	return p.External > 0 || p.LocalMessages > 0 || p.LocalBatches > 0
}

// ShouldFinalizeCancellation reports whether a cancelling schedule has been
// stuck for longer than CancellationTimeout.
func ShouldFinalizeCancellation(status types.ScheduleStatus, cancelledAt *time.Time, now time.Time) bool {
	return status == types.ScheduleCancelling &&
		cancelledAt != nil &&
		now.Sub(*cancelledAt) > CancellationTimeout
}

// Transition is the outcome of DecideTransition.
type Transition struct {
	Next           types.ScheduleStatus
	Changed        bool
	SetCancelledAt bool // record cancelled_at; only when it was unset
	SetCompletedAt bool
}

// DecideTransition computes the next schedule status.
//
//	force timeout                          -> cancelled
//	no pending, cancelling                 -> cancelled
//	no pending, not completed or cancelled -> completed
//	otherwise                              -> unchanged
func DecideTransition(current types.ScheduleStatus, hasPending, forceTimeout, hasCancelledAt bool) Transition {
	stay := Transition{Next: current}

	switch {
	case forceTimeout, !hasPending && current == types.ScheduleCancelling:
		if current == types.ScheduleCancelled {
			return stay
		}
		return Transition{
			Next:           types.ScheduleCancelled,
			Changed:        true,
			SetCancelledAt: !hasCancelledAt,
		}
	case !hasPending && !current.IsTerminal():
		return Transition{
			Next:           types.ScheduleCompleted,
			Changed:        true,
			SetCompletedAt: true,
		}
	default:
		return stay
	}
}
