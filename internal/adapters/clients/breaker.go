package clients

import (
	"sync"
	"time"
)

// State is a circuit breaker state.
type State int

const (
	// StateClosed lets every request through.
	StateClosed State = iota

	// StateOpen rejects requests until the cool-down elapses.
	StateOpen

	// StateHalfOpen admits a limited number of probe requests.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a Breaker.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the breaker.
	MaxFailures int

	// CoolDown is how long the breaker stays open before probing.
	CoolDown time.Duration

	// Probes is both the number of concurrent requests admitted while
	// half-open and the number of successes needed to close again.
	Probes int
}

// Breaker stops calling a quotes server that keeps failing.
//
//	closed    -> open       after MaxFailures consecutive failures
//	open      -> half-open  once CoolDown has passed
//	half-open -> closed     after Probes successes
//	half-open -> open       on any failure
type Breaker struct {
	mu        sync.Mutex
	cfg       BreakerConfig
	state     State
	failures  int
	successes int
	inFlight  int
	openedAt  time.Time
	onChange  func(from, to State)
	now       func() time.Time
}

// NewBreaker returns a closed breaker. Non-positive limits fall back to one.
func NewBreaker(cfg BreakerConfig) *Breaker {
	cfg.MaxFailures = max(cfg.MaxFailures, 1)
	cfg.Probes = max(cfg.Probes, 1)

	return &Breaker{cfg: cfg, now: time.Now}
}

// OnStateChange registers fn to run, in its own goroutine, on every transition.
func (b *Breaker) OnStateChange(fn func(from, to State)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.onChange = fn
}

// Allow reports whether a request may be sent. A true result must be
// followed by exactly one Success or Failure call.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true

	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.CoolDown {
			return false
		}

		b.setState(StateHalfOpen)
		b.inFlight = 1

		return true

	case StateHalfOpen:
		if b.inFlight >= b.cfg.Probes {
			return false
		}

		b.inFlight++

		return true
	}

	return false
}

// Success records a request that reached the server and got an answer.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures = 0

	case StateHalfOpen:
		b.inFlight--
		b.successes++

		if b.successes >= b.cfg.Probes {
			b.setState(StateClosed)
		}
	}
}

// Failure records a request that could not be completed.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures++

		if b.failures >= b.cfg.MaxFailures {
			b.open()
		}

	case StateHalfOpen:
		b.inFlight--
		b.open()
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state
}

func (b *Breaker) open() {
	b.openedAt = b.now()
	b.setState(StateOpen)
}

// setState must be called with mu held.
func (b *Breaker) setState(to State) {
	if b.state == to {
		return
	}

	from := b.state
	b.state = to
	b.failures = 0
	b.successes = 0

	if to != StateHalfOpen {
		b.inFlight = 0
	}

	if b.onChange != nil {
		go b.onChange(from, to)
	}
}
