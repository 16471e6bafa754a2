// Package lockout implements the anti-brute-force policy applied to Try
// attempts: each nickname accumulates failed attempts and is locked out for
// a fixed cooldown once a threshold is crossed, mirroring the
// counter-plus-deadline idiom the teacher applies to vault unlock attempts.
package lockout

import (
	"fmt"
	"sync"
	"time"

	"mpm/internal/apperr"
)

// Policy configures the lockout behaviour. MaxAttempts is how many
// consecutive failures are tolerated before locking out; Cooldown is how
// long a lockout lasts once triggered.
type Policy struct {
	MaxAttempts int
	Cooldown    time.Duration
}

// DefaultPolicy matches the teacher's own vault lockout defaults.
var DefaultPolicy = Policy{MaxAttempts: 5, Cooldown: 5 * time.Minute}

type entry struct {
	failed      int
	lockedUntil time.Time
}

// Guard tracks failed Try attempts per nickname in memory. A database
// object owns one for its lifetime; it is not persisted, matching the
// teacher's own in-process (not on-disk) lockout counters.
type Guard struct {
	mu      sync.Mutex
	entries map[string]*entry
	policy  Policy
	now     func() time.Time
}

// New builds a Guard under the given policy.
func New(policy Policy) *Guard {
	return &Guard{
		entries: make(map[string]*entry),
		policy:  policy,
		now:     time.Now,
	}
}

// Check returns ErrTryAlreadyOpen-class lockout error if nickname is
// currently locked out, nil otherwise. Call before attempting Try.
func (g *Guard) Check(nickname string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[nickname]
	if !ok {
		return nil
	}
	if g.now().Before(e.lockedUntil) {
		return fmt.Errorf("%w: %q is locked out until %s after %d failed attempts",
			apperr.ErrTryAlreadyOpen, nickname, e.lockedUntil.Format(time.RFC3339), e.failed)
	}
	return nil
}

// RecordFailure increments nickname's failure count and starts a cooldown
// once the policy's threshold is crossed.
func (g *Guard) RecordFailure(nickname string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[nickname]
	if !ok {
		e = &entry{}
		g.entries[nickname] = e
	}
	e.failed++
	if e.failed >= g.policy.MaxAttempts {
		e.lockedUntil = g.now().Add(g.policy.Cooldown)
	}
}

// RecordSuccess clears nickname's failure history.
func (g *Guard) RecordSuccess(nickname string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, nickname)
}
