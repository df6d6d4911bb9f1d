package booking

import (
	"sort"
)

// SelectionLedger maps option keys to selected quantities. It is a value:
// every mutation returns a new ledger and leaves the receiver untouched.
type SelectionLedger map[string]int

// LineSelection is one non-zero ledger entry
type LineSelection struct {
	OptionKey string `json:"optionKey"`
	Quantity  int    `json:"quantity"`
}

// NewLedger creates an empty ledger with a zero entry per option
func NewLedger(options []BookableOption) SelectionLedger {
	l := make(SelectionLedger, len(options))
	for _, opt := range options {
		l[opt.Key()] = 0
	}
	return l
}

// Clone returns an independent copy
func (l SelectionLedger) Clone() SelectionLedger {
	c := make(SelectionLedger, len(l))
	for k, v := range l {
		c[k] = v
	}
	return c
}

// Quantity returns the selected quantity for key
func (l SelectionLedger) Quantity(key string) int {
	return l[key]
}

// TotalQuantity sums every selected quantity
func (l SelectionLedger) TotalQuantity() int {
	total := 0
	for _, q := range l {
		total += q
	}
	return total
}

// Toggle flips key between 0 and 1. Options with no capacity or that the
// gate marks unavailable are left alone. The bool reports a 0 -> >0
// transition, which callers use to bring the booking summary into view.
func (l SelectionLedger) Toggle(key string, available int, gate Gate) (SelectionLedger, bool) {
	if available <= 0 || blocked(gate, key) {
		return l, false
	}
	next := l.Clone()
	prev := next[key]
	if prev > 0 {
		next[key] = 0
	} else {
		next[key] = 1
	}
	return next, prev == 0 && next[key] > 0
}

// Step adds delta to the quantity of key, clamped to [0, available]
func (l SelectionLedger) Step(key string, delta, available int, gate Gate) (SelectionLedger, bool) {
	if blocked(gate, key) {
		return l, false
	}
	if available < 0 {
		available = 0
	}
	next := l.Clone()
	prev := next[key]
	q := prev + delta
	if q < 0 {
		q = 0
	}
	if q > available {
		q = available
	}
	next[key] = q
	return next, prev == 0 && q > 0
}

// Lines returns the non-zero entries sorted by key
func (l SelectionLedger) Lines() []LineSelection {
	keys := make([]string, 0, len(l))
	for k, q := range l {
		if q > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	lines := make([]LineSelection, len(keys))
	for i, k := range keys {
		lines[i] = LineSelection{OptionKey: k, Quantity: l[k]}
	}
	return lines
}

// LedgerFromLines builds a ledger from submitted lines, summing duplicates
func LedgerFromLines(lines []LineSelection) SelectionLedger {
	l := make(SelectionLedger, len(lines))
	for _, line := range lines {
		l[line.OptionKey] += line.Quantity
	}
	return l
}

func blocked(gate Gate, key string) bool {
	return gate != nil && gate.IsUnavailable(key)
}
