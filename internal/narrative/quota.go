package narrative

import "sync"

const defaultSessionCap = 10

// QuotaGuard caps the number of generation sessions started in one
// process lifetime. The count only ever goes up; it is not persisted and
// resets on restart.
type QuotaGuard struct {
	mu   sync.Mutex
	used int
	cap  int
}

// NewQuotaGuard creates a guard with the given cap. A cap <= 0 uses the
// default.
func NewQuotaGuard(cap int) *QuotaGuard {
	if cap <= 0 {
		cap = defaultSessionCap
	}
	return &QuotaGuard{cap: cap}
}

// TryReserve claims one session slot. It returns false without side
// effect once the cap is reached.
func (q *QuotaGuard) TryReserve() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.used >= q.cap {
		return false
	}
	q.used++
	return true
}

// Exhausted reports whether the cap has been reached, without reserving.
func (q *QuotaGuard) Exhausted() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.used >= q.cap
}

// Used returns the number of sessions started so far.
func (q *QuotaGuard) Used() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.used
}

// Cap returns the configured session cap.
func (q *QuotaGuard) Cap() int {
	return q.cap
}
