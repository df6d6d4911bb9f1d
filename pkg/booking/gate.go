package booking

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultAvailabilityTimeout bounds a single availability check
const DefaultAvailabilityTimeout = 10 * time.Second

// AvailabilitySource fetches availability for a query, usually over HTTP
type AvailabilitySource interface {
	CheckAvailability(ctx context.Context, q AvailabilityQuery) (AvailabilityResult, error)
}

// AvailabilityGate runs availability checks and keeps only the answer to
// the most recently issued query. Each Check takes a sequence number; a
// response whose number is no longer current is dropped.
type AvailabilityGate struct {
	mu      sync.Mutex
	source  AvailabilitySource
	timeout time.Duration
	preview int
	seq     uint64
	query   AvailabilityQuery
	current AvailabilityResult
}

// NewAvailabilityGate creates a gate. A zero timeout uses the default.
func NewAvailabilityGate(source AvailabilitySource, timeout time.Duration) *AvailabilityGate {
	if timeout <= 0 {
		timeout = DefaultAvailabilityTimeout
	}
	// Nothing has been checked yet, which must not read as sold out.
	return &AvailabilityGate{
		source:  source,
		timeout: timeout,
		preview: DefaultBookedRangePreview,
		current: AvailabilityResult{Loading: true},
	}
}

// SetPreview sets how many booked ranges are kept from a response. It
// should match the server's preview size; n <= 0 restores the default.
func (g *AvailabilityGate) SetPreview(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n <= 0 {
		n = DefaultBookedRangePreview
	}
	g.preview = n
}

// Begin marks a new query as in flight and returns its sequence number
func (g *AvailabilityGate) Begin(q AvailabilityQuery) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	g.query = q
	g.current = AvailabilityResult{Loading: true}
	return g.seq
}

// Resolve applies a response for sequence seq. It returns false and leaves
// state untouched when a newer query has been issued since.
func (g *AvailabilityGate) Resolve(seq uint64, result AvailabilityResult, err error) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if seq != g.seq {
		return false
	}
	if err != nil {
		msg := ErrAvailabilityUnknown.Error()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrAvailabilityTimeout) {
			msg = ErrAvailabilityTimeout.Error()
		}
		g.current = AvailabilityResult{Error: true, ErrorMessage: msg}
		return true
	}
	result.Loading = false
	result.Error = false
	if result.AvailableOptionKeys == nil {
		result.AvailableOptionKeys = []string{}
	}
	if len(result.BookedRanges) > g.preview {
		result.BookedRanges = result.BookedRanges[:g.preview]
	}
	g.current = result
	return true
}

// Check issues q, waits for the source (bounded by the gate timeout) and
// returns the gate's current result plus whether this response was applied.
func (g *AvailabilityGate) Check(ctx context.Context, q AvailabilityQuery) (AvailabilityResult, bool) {
	seq := g.Begin(q)

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	result, err := g.source.CheckAvailability(callCtx, q)
	if err == nil && callCtx.Err() != nil {
		err = callCtx.Err()
	}

	applied := g.Resolve(seq, result, err)
	return g.Result(), applied
}

// Result returns the current availability state
func (g *AvailabilityGate) Result() AvailabilityResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// Query returns the most recently issued query
func (g *AvailabilityGate) Query() AvailabilityQuery {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.query
}
