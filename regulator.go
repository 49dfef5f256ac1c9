package authgate

import (
	"context"
	"log"
	"time"
)

// regulator implements sliding-window brute-force protection. A user is
// locked out while their newest maxRetries failed attempts all fall within
// banTime of now. Successes do not erase failures from the window; only
// time does.
type regulator struct {
	traces     *traceStore
	maxRetries int
	banTime    time.Duration

	// now is replaceable for simulated-clock tests.
	now func() time.Time
}

func newRegulator(traces *traceStore, cfg RegulationConfig) *regulator {
	return &regulator{
		traces:     traces,
		maxRetries: cfg.MaxRetries,
		banTime:    cfg.BanTime,
		now:        time.Now,
	}
}

// Regulate checks whether username may attempt authentication right now.
// It returns ErrAuthenticationRegulated during a lockout and
// ErrRegulationUnavailable when the trace backend cannot be reached: an
// unreachable backend fails closed, never open.
func (r *regulator) Regulate(ctx context.Context, username string) error {
	if r.maxRetries <= 0 {
		return nil
	}

	failures, err := r.traces.RecentFailures(ctx, username, r.maxRetries)
	if err != nil {
		return err
	}
	if len(failures) < r.maxRetries {
		return nil
	}

	// failures is newest first. The lockout holds while the oldest of the
	// newest maxRetries failures is still inside the ban window.
	oldest := failures[r.maxRetries-1]
	if oldest.After(r.now().Add(-r.banTime)) {
		return ErrAuthenticationRegulated
	}
	return nil
}

// Mark records the outcome of an authentication attempt. Recording is best
// effort: a trace write failure must not turn a decided authentication
// into an error, so it is logged and swallowed.
func (r *regulator) Mark(ctx context.Context, username string, successful bool) {
	if r.maxRetries <= 0 {
		return
	}

	var err error
	if successful {
		err = r.traces.AppendSuccess(ctx, username, r.now())
	} else {
		err = r.traces.AppendFailure(ctx, username, r.now())
	}
	if err != nil {
		log.Printf("[authgate] failed to record authentication trace for %q: %v", username, err)
	}
}
