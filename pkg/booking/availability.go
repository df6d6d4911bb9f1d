package booking

import (
	"time"
)

// DefaultBookedRangePreview caps how many existing reservations are shown
const DefaultBookedRangePreview = 3

// AvailabilityQuery identifies one availability check
type AvailabilityQuery struct {
	ServiceType ServiceType
	ServiceID   string
	Start       string
	End         string
}

// BookedRange is an existing reservation shown to the user
type BookedRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// AvailabilityResult is the outcome of an availability check for one
// (service, date range) pair.
type AvailabilityResult struct {
	Loading             bool          `json:"loading"`
	Error               bool          `json:"error"`
	ErrorMessage        string        `json:"errorMessage,omitempty"`
	AvailableOptionKeys []string      `json:"availableOptionKeys"`
	BookedRanges        []BookedRange `json:"bookedRanges"`
}

// Settled reports whether the result is final and trustworthy
func (r AvailabilityResult) Settled() bool {
	return !r.Loading && !r.Error
}

// SoldOut reports whether no option is free for the whole range.
// Never true while loading or after a failed check.
func (r AvailabilityResult) SoldOut(optionCount int) bool {
	return optionCount > 0 && r.Settled() && len(r.AvailableOptionKeys) == 0
}

// IsUnavailable reports whether a single option must be shown as unavailable.
// A failed check is indeterminate, so nothing is marked unavailable by it.
func (r AvailabilityResult) IsUnavailable(key string, optionCount int) bool {
	if !r.Settled() {
		return false
	}
	if r.SoldOut(optionCount) {
		return true
	}
	return len(r.AvailableOptionKeys) > 0 && !r.hasKey(key)
}

func (r AvailabilityResult) hasKey(key string) bool {
	for _, k := range r.AvailableOptionKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Gate answers whether an option key may be selected
type Gate interface {
	IsUnavailable(key string) bool
}

// OptionGate binds an availability result to the option list it describes
type OptionGate struct {
	Result      AvailabilityResult
	OptionCount int
}

// GateFor builds a gate for the given options
func GateFor(result AvailabilityResult, options []BookableOption) OptionGate {
	return OptionGate{Result: result, OptionCount: len(options)}
}

// IsUnavailable implements Gate
func (g OptionGate) IsUnavailable(key string) bool {
	return g.Result.IsUnavailable(key, g.OptionCount)
}

// SoldOut reports whether the whole range is sold out
func (g OptionGate) SoldOut() bool {
	return g.Result.SoldOut(g.OptionCount)
}

// Reservation is an existing booking's hold on options over a range
type Reservation struct {
	Range DateRange
	Items map[string]int
}

// FreeCounts returns, per option key, the smallest number of units still
// free on any day of the window.
func FreeCounts(options []BookableOption, reservations []Reservation, window DateRange) map[string]int {
	days := window.OccupiedDays()
	used := make(map[string]map[time.Time]int, len(options))

	for _, res := range reservations {
		if !res.Range.Overlaps(window) {
			continue
		}
		for _, day := range res.Range.OccupiedDays() {
			for key, qty := range res.Items {
				if qty <= 0 {
					continue
				}
				if used[key] == nil {
					used[key] = make(map[time.Time]int)
				}
				used[key][day] += qty
			}
		}
	}

	free := make(map[string]int, len(options))
	for _, opt := range options {
		key := opt.Key()
		min := opt.Capacity()
		for _, day := range days {
			left := opt.Capacity() - used[key][day]
			if left < min {
				min = left
			}
		}
		if min < 0 {
			min = 0
		}
		free[key] = min
	}
	return free
}

// FreeOptionKeys lists, in option order, the keys bookable on every day of
// the window.
func FreeOptionKeys(options []BookableOption, reservations []Reservation, window DateRange) []string {
	free := FreeCounts(options, reservations, window)
	keys := make([]string, 0, len(options))
	for _, opt := range options {
		if free[opt.Key()] > 0 {
			keys = append(keys, opt.Key())
		}
	}
	return keys
}
