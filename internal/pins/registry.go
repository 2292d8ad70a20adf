package pins

import (
	"fmt"
	"strconv"

	"github.com/sweeney/odroid-io/internal/gpio"
	"github.com/sweeney/odroid-io/internal/led"
)

// Ref addresses a pin either by numeric position or by string alias.
type Ref struct {
	alias    string
	position int
	isAlias  bool
}

// P references a pin by position.
func P(position int) Ref { return Ref{position: position} }

// ID references a pin by one of its aliases, e.g. "A0" or "GPIO247".
func ID(alias string) Ref { return Ref{alias: alias, isAlias: true} }

// ParseRef reads command-line text: all digits is a position, anything
// else an alias.
func ParseRef(s string) Ref {
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return P(n)
	}
	return ID(s)
}

func (r Ref) String() string {
	if r.isAlias {
		return strconv.Quote(r.alias)
	}
	return fmt.Sprintf("%d", r.position)
}

// Servo holds the pulse-width bounds in microseconds used by servo writes.
type Servo struct {
	Min int
	Max int
}

// Default servo bounds, matching the Arduino servo library.
const (
	DefaultServoMin = 544
	DefaultServoMax = 2400
)

// State is the mutable runtime state of one position.
type State struct {
	Mode   Mode
	Value  int
	Known  bool // Value holds a sample or a write
	Report int  // 1 while the pin is under periodic sampling or ranging
	Servo  Servo

	// Backing capability acquired when the mode was set.
	Line gpio.Line
	LED  led.LED
}

// Registry holds one State per Descriptor. It does no locking; the owner
// serialises access.
type Registry struct {
	table  []Descriptor
	states []*State
	byID   map[string]int
}

// NewRegistry builds a registry from a pin table.
func NewRegistry(table []Descriptor) *Registry {
	r := &Registry{
		table:  table,
		states: make([]*State, len(table)),
		byID:   make(map[string]int),
	}
	for i, d := range table {
		r.states[i] = &State{
			Mode:  ModeUnknown,
			Servo: Servo{Min: DefaultServoMin, Max: DefaultServoMax},
		}
		for _, id := range d.IDs {
			r.byID[id] = i
		}
	}
	return r
}

// Resolve returns the position ref names, or false if it names nothing.
func (r *Registry) Resolve(ref Ref) (int, bool) {
	if ref.isAlias {
		pos, ok := r.byID[ref.alias]
		return pos, ok
	}
	if ref.position < 0 || ref.position >= len(r.table) {
		return 0, false
	}
	return ref.position, true
}

// Descriptor returns the static descriptor at pos.
func (r *Registry) Descriptor(pos int) Descriptor {
	return r.table[pos]
}

// State returns the mutable state at pos.
func (r *Registry) State(pos int) *State {
	return r.states[pos]
}

// Len returns the number of positions.
func (r *Registry) Len() int {
	return len(r.table)
}
