package board

import (
	"errors"
	"fmt"

	"github.com/sweeney/odroid-io/internal/pins"
)

// ErrClosed is returned by operations on a closed Board.
var ErrClosed = errors.New("board closed")

// UnknownPinError is returned when a reference names no position.
type UnknownPinError struct {
	Ref pins.Ref
}

func (e *UnknownPinError) Error() string {
	return fmt.Sprintf("unknown pin %s", e.Ref)
}

// ModeLockedError is returned when a pin whose mode is already set is
// asked to change to a different mode. Modes are assigned once per pin.
type ModeLockedError struct {
	Position  int
	Current   pins.Mode
	Requested pins.Mode
}

func (e *ModeLockedError) Error() string {
	return fmt.Sprintf("pin %d: mode can not be changed from %s to %s", e.Position, e.Current, e.Requested)
}

// UnsupportedModeError is returned for a mode outside the pin's supported set.
type UnsupportedModeError struct {
	Position int
	Mode     pins.Mode
}

func (e *UnsupportedModeError) Error() string {
	return fmt.Sprintf("pin %d: mode %s is not supported", e.Position, e.Mode)
}

// UnsupportedOperationError is returned when the board has no capability
// backing an operation.
type UnsupportedOperationError struct {
	Op string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("%s is not supported", e.Op)
}

// UnsupportedPinError is returned when a pin lacks the modes an operation needs.
type UnsupportedPinError struct {
	Position int
	Reason   string
}

func (e *UnsupportedPinError) Error() string {
	return fmt.Sprintf("pin %d: %s", e.Position, e.Reason)
}

// InvalidArgumentError is returned for out-of-contract arguments.
type InvalidArgumentError struct {
	Op     string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}
