// Package gpio opens digital lines by their numeric identifier.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Line is one requested GPIO line.
type Line interface {
	// Value returns the current level (0 or 1).
	Value() (int, error)

	// SetValue drives an output line to 0 or 1.
	SetValue(v int) error

	// Close releases the line.
	Close() error
}

// Opener requests lines by their sysfs line number.
type Opener interface {
	OpenInput(line int) (Line, error)
	OpenOutput(line int) (Line, error)
}

// Defaults for the ODROID-C2 periphs bank, which carries every header GPIO.
// Sysfs numbers are translated to chip offsets by subtracting the base.
const (
	DefaultChip = "gpiochip1"
	DefaultBase = 136
)

// Consumer is the label attached to requested lines.
const Consumer = "odroid-io"
