package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubGate map[string]bool

func (g stubGate) IsUnavailable(key string) bool { return g[key] }

func TestLedger_Toggle(t *testing.T) {
	l := SelectionLedger{}

	next, selected := l.Toggle("A", 5, nil)
	assert.Equal(t, 1, next.Quantity("A"))
	assert.True(t, selected)
	assert.Equal(t, 0, l.Quantity("A"), "receiver must not change")

	next, selected = next.Toggle("A", 5, nil)
	assert.Equal(t, 0, next.Quantity("A"))
	assert.False(t, selected)
}

func TestLedger_ToggleClearsSteppedQuantity(t *testing.T) {
	l := SelectionLedger{"A": 3}
	next, selected := l.Toggle("A", 5, nil)
	assert.Equal(t, 0, next.Quantity("A"))
	assert.False(t, selected)
}

func TestLedger_ToggleNoCapacity(t *testing.T) {
	l := SelectionLedger{}
	for _, available := range []int{0, -1} {
		next, selected := l.Toggle("A", available, nil)
		assert.Equal(t, 0, next.Quantity("A"))
		assert.False(t, selected)
	}
}

func TestLedger_ToggleBlockedByGate(t *testing.T) {
	l := SelectionLedger{}
	next, selected := l.Toggle("A", 5, stubGate{"A": true})
	assert.Equal(t, 0, next.Quantity("A"))
	assert.False(t, selected)
}

func TestLedger_Step(t *testing.T) {
	tests := []struct {
		name      string
		start     int
		delta     int
		available int
		expected  int
		selected  bool
	}{
		{"increment from zero", 0, 1, 3, 1, true},
		{"increment", 1, 1, 3, 2, false},
		{"clamped at available", 3, 1, 3, 3, false},
		{"decrement", 2, -1, 3, 1, false},
		{"clamped at zero", 0, -1, 3, 0, false},
		{"no capacity", 0, 1, 0, 0, false},
		{"capacity shrank", 5, 0, 2, 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := SelectionLedger{"A": tt.start}
			next, selected := l.Step("A", tt.delta, tt.available, nil)
			assert.Equal(t, tt.expected, next.Quantity("A"))
			assert.Equal(t, tt.selected, selected)
		})
	}
}

func TestLedger_StepBlockedByGate(t *testing.T) {
	l := SelectionLedger{"A": 1}
	next, _ := l.Step("A", 1, 5, stubGate{"A": true})
	assert.Equal(t, 1, next.Quantity("A"))
}

func TestLedger_NeverExceedsAvailable(t *testing.T) {
	for available := 0; available <= 4; available++ {
		l := SelectionLedger{}
		for i := 0; i < 10; i++ {
			l, _ = l.Step("A", 1, available, nil)
			assert.LessOrEqual(t, l.Quantity("A"), available)
			l, _ = l.Toggle("A", available, nil)
			assert.LessOrEqual(t, l.Quantity("A"), available)
		}
	}
}

func TestLedger_Lines(t *testing.T) {
	l := SelectionLedger{"b": 2, "a": 1, "c": 0}
	assert.Equal(t, []LineSelection{
		{OptionKey: "a", Quantity: 1},
		{OptionKey: "b", Quantity: 2},
	}, l.Lines())
	assert.Equal(t, 3, l.TotalQuantity())

	back := LedgerFromLines([]LineSelection{{OptionKey: "a", Quantity: 1}, {OptionKey: "a", Quantity: 2}})
	assert.Equal(t, 3, back.Quantity("a"))
}

func TestNewLedger(t *testing.T) {
	l := NewLedger([]BookableOption{{ID: "r1", Name: "Deluxe"}, {Name: "Suite"}})
	assert.Contains(t, l, "r1")
	assert.Contains(t, l, "Suite")
	assert.Equal(t, 0, l.TotalQuantity())
}
