package backend

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Execute while the breaker is failing fast
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State identifies the breaker position
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerSettings configures a Breaker. Zero values fall back to defaults.
type BreakerSettings struct {
	// ErrorThresholdPct is the failure percentage over the trailing
	// sample window that trips the breaker (default 50)
	ErrorThresholdPct int
	// MinSamples is the minimum number of recorded calls before the
	// failure ratio is evaluated (default 5)
	MinSamples int
	// WindowSize is the trailing sample ring size (default 20)
	WindowSize int
	// ResetTimeout is how long the breaker stays open before probing
	// (default 30s)
	ResetTimeout time.Duration
	// CallTimeout is the hard per-call deadline; a timed-out call counts
	// as a failure (default 10s)
	CallTimeout time.Duration
	// HalfOpenProbes bounds concurrent probe calls while half-open
	// (default 1)
	HalfOpenProbes int
}

func (s BreakerSettings) withDefaults() BreakerSettings {
	if s.ErrorThresholdPct <= 0 {
		s.ErrorThresholdPct = 50
	}
	if s.MinSamples <= 0 {
		s.MinSamples = 5
	}
	if s.WindowSize <= 0 {
		s.WindowSize = 20
	}
	if s.ResetTimeout <= 0 {
		s.ResetTimeout = 30 * time.Second
	}
	if s.CallTimeout <= 0 {
		s.CallTimeout = 10 * time.Second
	}
	if s.HalfOpenProbes <= 0 {
		s.HalfOpenProbes = 1
	}
	return s
}

/* Breaker guards calls to the internal backend. Process-wide state,
 * initialized at startup and alive for the process lifetime.
 *
 * CLOSED: calls pass; outcomes feed a trailing sample ring. When the
 * failure ratio over the ring reaches ErrorThresholdPct (after at least
 * MinSamples calls) the breaker opens.
 * OPEN: calls fail fast with ErrCircuitOpen until ResetTimeout elapses,
 * then the breaker moves to HALF_OPEN.
 * HALF_OPEN: up to HalfOpenProbes calls pass. A probe success closes the
 * breaker and resets counters; a probe failure reopens it.
 */
type Breaker struct {
	mu       sync.Mutex
	settings BreakerSettings

	state    State
	samples  []bool // true = failure
	sampleAt int
	filled   int
	openedAt time.Time
	probes   int

	// now is swappable for tests
	now func() time.Time
}

// NewBreaker creates a breaker in the closed state
func NewBreaker(settings BreakerSettings) *Breaker {
	settings = settings.withDefaults()
	return &Breaker{
		settings: settings,
		samples:  make([]bool, settings.WindowSize),
		now:      time.Now,
	}
}

// State returns the current breaker position
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

func (b *Breaker) stateLocked() State {
	if b.state == Open && b.now().Sub(b.openedAt) >= b.settings.ResetTimeout {
		b.state = HalfOpen
		b.probes = 0
	}
	return b.state
}

/* Execute runs fn under the breaker with the hard call timeout applied.
 * Returns ErrCircuitOpen without invoking fn when failing fast. Any fn
 * error (including the timeout) counts as a failure sample.
 */
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	probe, err := b.acquire()
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, b.settings.CallTimeout)
	defer cancel()

	callErr := fn(callCtx)
	b.record(probe, callErr == nil)
	return callErr
}

func (b *Breaker) acquire() (probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.stateLocked() {
	case Closed:
		return false, nil
	case HalfOpen:
		if b.probes >= b.settings.HalfOpenProbes {
			return false, ErrCircuitOpen
		}
		b.probes++
		return true, nil
	default:
		return false, ErrCircuitOpen
	}
}

func (b *Breaker) record(probe, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if probe {
		if success {
			b.reset()
		} else {
			b.trip()
		}
		return
	}

	// Samples recorded after the breaker left CLOSED are ignored; the
	// probe outcome alone decides the next transition.
	if b.state != Closed {
		return
	}

	b.samples[b.sampleAt] = !success
	b.sampleAt = (b.sampleAt + 1) % len(b.samples)
	if b.filled < len(b.samples) {
		b.filled++
	}

	if b.filled < b.settings.MinSamples {
		return
	}

	failures := 0
	for i := 0; i < b.filled; i++ {
		if b.samples[i] {
			failures++
		}
	}
	if failures*100 >= b.settings.ErrorThresholdPct*b.filled {
		b.trip()
	}
}

func (b *Breaker) trip() {
	b.state = Open
	b.openedAt = b.now()
	b.probes = 0
}

func (b *Breaker) reset() {
	b.state = Closed
	b.filled = 0
	b.sampleAt = 0
	b.probes = 0
	for i := range b.samples {
		b.samples[i] = false
	}
}
