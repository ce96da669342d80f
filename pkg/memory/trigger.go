package memory

import "time"

// Trigger reasons, advisory only.
const (
	ReasonCount = "count"
	ReasonStale = "stale"
)

// Decision is the outcome of one trigger evaluation.
type Decision struct {
	Fire   bool
	Reason string
}

// evaluateTrigger decides whether an extraction cycle should run now. It is
// a pure function; all mutation happens in the drain.
//
// Precedence: an empty buffer never fires; a buffer at or past
// countThreshold fires with reason "count"; otherwise a user whose last
// extraction (if any) is at least timeThreshold ago fires with reason
// "stale". A user with no extraction record and a small buffer waits for
// the count threshold.
func evaluateTrigger(bufferSize int, hasRecord bool, sinceLast time.Duration, countThreshold int, timeThreshold time.Duration) Decision {
	if bufferSize == 0 {
		return Decision{}
	}
	if bufferSize >= countThreshold {
		return Decision{Fire: true, Reason: ReasonCount}
	}
	if hasRecord && sinceLast >= timeThreshold {
		return Decision{Fire: true, Reason: ReasonStale}
	}
	return Decision{}
}
