package pins

import (
	"fmt"
	"slices"
)

// Descriptor is the immutable hardware description of one logical position.
type Descriptor struct {
	Position      int
	Modes         []Mode
	GPIO          int      // sysfs line number, -1 when not GPIO-backed
	AnalogChannel int      // SAR-ADC channel, -1 when not analog
	IDs           []string // alternate identifiers resolving to Position
	LEDPath       string   // sysfs LED directory; backs OUTPUT instead of GPIO
}

// Supports reports whether mode is in the descriptor's supported set.
func (d Descriptor) Supports(mode Mode) bool {
	return slices.Contains(d.Modes, mode)
}

// IsLED reports whether OUTPUT on this position drives an LED device.
func (d Descriptor) IsLED() bool {
	return d.LEDPath != ""
}

func gpioPin(line int, position int) Descriptor {
	return Descriptor{
		Modes:         []Mode{ModeInput, ModeOutput},
		GPIO:          line,
		AnalogChannel: -1,
		IDs:           []string{fmt.Sprintf("P1-%d", position), fmt.Sprintf("GPIO%d", line)},
	}
}

func analogPin(channel int, position int) Descriptor {
	return Descriptor{
		Modes:         []Mode{ModeAnalog},
		GPIO:          -1,
		AnalogChannel: channel,
		IDs:           []string{fmt.Sprintf("P1-%d", position), fmt.Sprintf("A%d", channel)},
	}
}

func unusedPin() Descriptor {
	return Descriptor{GPIO: -1, AnalogChannel: -1}
}

// OdroidC2 returns the pin table of the ODROID-C2 40-pin header, indexed
// by wiringPi number. GPIO numbers are the kernel's sysfs line numbers.
func OdroidC2() []Descriptor {
	// wiringPi position -> sysfs GPIO number; 0 marks an unusable position.
	lines := []int{
		247, 238, 239, 237, 236, 233, 231, 249, // 0-7
		0, 0, // 8-9
		229, 225, 235, 232, 230, // 10-14
		0, 0, // 15-16 analog
		0, 0, 0, 0, // 17-20
		228, 219, 234, 214, // 21-24
		0,        // 25
		224, 218, // 26-27
	}

	table := make([]Descriptor, len(lines))
	for pos, line := range lines {
		switch {
		case pos == 15:
			table[pos] = analogPin(0, pos)
		case pos == 16:
			table[pos] = analogPin(1, pos)
		case line == 0:
			table[pos] = unusedPin()
		default:
			table[pos] = gpioPin(line, pos)
		}
		table[pos].Position = pos
	}
	return table
}

// WithLED returns a copy of table with one extra LED-backed OUTPUT position
// appended, addressable by id.
func WithLED(table []Descriptor, id, path string) []Descriptor {
	out := slices.Clone(table)
	out = append(out, Descriptor{
		Position:      len(out),
		Modes:         []Mode{ModeOutput},
		GPIO:          -1,
		AnalogChannel: -1,
		IDs:           []string{id},
		LEDPath:       path,
	})
	return out
}
