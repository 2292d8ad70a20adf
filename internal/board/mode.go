package board

import (
	"github.com/pkg/errors"

	"github.com/sweeney/odroid-io/internal/pins"
)

// ServoDegreeLimit separates degree-valued servo writes (below) from
// microsecond-valued ones, as in the Arduino servo library.
const ServoDegreeLimit = 544

// SetMode assigns mode to a pin. Setting the current mode again is a
// no-op. A pin's mode is assigned once: asking for a different mode
// afterwards fails with ModeLockedError, there is no re-muxing.
func (b *Board) SetMode(ref pins.Ref, mode pins.Mode) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	pos, err := b.resolveOpen(ref)
	if err != nil {
		return err
	}
	return b.setMode(pos, mode)
}

// setMode runs the state machine for pos. Callers hold b.mu.
func (b *Board) setMode(pos int, mode pins.Mode) error {
	d := b.registry.Descriptor(pos)
	s := b.registry.State(pos)

	if s.Mode == mode {
		return nil
	}
	if !d.Supports(mode) {
		return &UnsupportedModeError{Position: pos, Mode: mode}
	}
	if s.Mode != pins.ModeUnknown {
		return &ModeLockedError{Position: pos, Current: s.Mode, Requested: mode}
	}

	activate, ok := b.caps.Modes[mode]
	if !ok {
		return &UnsupportedOperationError{Op: mode.String() + " mode"}
	}
	if err := activate(b.hw, d, s); err != nil {
		return err
	}
	s.Mode = mode
	b.log.Debugf("%s: pin %d mode %s", b.name, pos, mode)
	return nil
}

// Mode returns the current mode of a pin.
func (b *Board) Mode(ref pins.Ref) (pins.Mode, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pos, err := b.resolve(ref)
	if err != nil {
		return pins.ModeUnknown, err
	}
	return b.registry.State(pos).Mode, nil
}

// DigitalWrite drives an output pin (or its LED) to value. On a pin in
// INPUT mode the write is a pull-up (value != 0) or pull-down request
// instead, and the mode is left alone.
func (b *Board) DigitalWrite(ref pins.Ref, value int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	pos, err := b.resolveOpen(ref)
	if err != nil {
		return err
	}
	d := b.registry.Descriptor(pos)
	s := b.registry.State(pos)

	if s.Mode == pins.ModeInput {
		pull := b.caps.PullDown
		op := "enable pull-down resistor"
		if value != 0 {
			pull, op = b.caps.PullUp, "enable pull-up resistor"
		}
		if pull == nil {
			return &UnsupportedOperationError{Op: op}
		}
		return pull(d, s)
	}

	if err := b.setMode(pos, pins.ModeOutput); err != nil {
		return err
	}

	switch {
	case s.LED != nil && value != 0:
		err = s.LED.On()
	case s.LED != nil:
		err = s.LED.Off()
	case s.Line != nil:
		err = s.Line.SetValue(value)
	default:
		return &UnsupportedOperationError{Op: "digitalWrite without an output line"}
	}
	if err != nil {
		return errors.Wrapf(err, "digital write pin %d", pos)
	}
	s.Value, s.Known = value, true
	return nil
}

// PWMWrite sets a PWM duty value, switching the pin to PWM mode first.
func (b *Board) PWMWrite(ref pins.Ref, value int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	pos, err := b.resolveOpen(ref)
	if err != nil {
		return err
	}
	if err := b.setMode(pos, pins.ModePWM); err != nil {
		return err
	}
	return b.write(pos, b.caps.PWMWrite, "pwmWrite", value)
}

// AnalogWrite is PWMWrite.
func (b *Board) AnalogWrite(ref pins.Ref, value int) error {
	return b.PWMWrite(ref, value)
}

// ServoConfig sets the microsecond bounds used by ServoWrite. min must be
// at least ServoDegreeLimit so that bounds are never read as degrees.
func (b *Board) ServoConfig(ref pins.Ref, min, max int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	pos, err := b.resolveOpen(ref)
	if err != nil {
		return err
	}
	if err := b.setMode(pos, pins.ModeServo); err != nil {
		return err
	}
	if min < ServoDegreeLimit {
		return &InvalidArgumentError{Op: "servoConfig", Reason: "min value for a servo must be >= 544"}
	}
	b.registry.State(pos).Servo = pins.Servo{Min: min, Max: max}
	return nil
}

// ServoWrite moves a servo. Values below ServoDegreeLimit are degrees
// clamped to [0, 180]; others are microseconds clamped to the configured
// bounds.
func (b *Board) ServoWrite(ref pins.Ref, value int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	pos, err := b.resolveOpen(ref)
	if err != nil {
		return err
	}
	if err := b.setMode(pos, pins.ModeServo); err != nil {
		return err
	}
	return b.write(pos, b.caps.ServoWrite, "servoWrite", servoValue(b.registry.State(pos).Servo, value))
}

func servoValue(bounds pins.Servo, value int) int {
	if value < ServoDegreeLimit {
		return constrain(value, 0, 180)
	}
	return constrain(value, bounds.Min, bounds.Max)
}

func constrain(v, low, high int) int {
	return max(min(v, high), low)
}

// write hands value to a capability writer and records it. Callers hold b.mu.
func (b *Board) write(pos int, w Writer, op string, value int) error {
	if w == nil {
		return &UnsupportedOperationError{Op: op}
	}
	s := b.registry.State(pos)
	if err := w(b.registry.Descriptor(pos), s, value); err != nil {
		return err
	}
	s.Value, s.Known = value, true
	return nil
}
