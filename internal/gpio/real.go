//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// RealChip requests lines from a Linux GPIO character device.
type RealChip struct {
	name string
	base int

	mu   sync.Mutex
	chip *gpiocdev.Chip
}

// NewRealChip creates an Opener for the named chip (e.g. "gpiochip1").
// base is the sysfs number of the chip's first line.
func NewRealChip(name string, base int) *RealChip {
	return &RealChip{name: name, base: base}
}

func (c *RealChip) open() (*gpiocdev.Chip, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.chip != nil {
		return c.chip, nil
	}
	chip, err := gpiocdev.NewChip(c.name, gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", c.name, err)
	}
	c.chip = chip
	return chip, nil
}

func (c *RealChip) offset(line int) (int, error) {
	off := line - c.base
	if off < 0 {
		return 0, fmt.Errorf("gpio %d is below chip %s base %d", line, c.name, c.base)
	}
	return off, nil
}

// OpenInput requests line as an input.
func (c *RealChip) OpenInput(line int) (Line, error) {
	return c.request(line, gpiocdev.AsInput)
}

// OpenOutput requests line as an output driven low.
func (c *RealChip) OpenOutput(line int) (Line, error) {
	return c.request(line, gpiocdev.AsOutput(0))
}

func (c *RealChip) request(line int, opt gpiocdev.LineReqOption) (Line, error) {
	chip, err := c.open()
	if err != nil {
		return nil, err
	}
	off, err := c.offset(line)
	if err != nil {
		return nil, err
	}
	l, err := chip.RequestLine(off, opt)
	if err != nil {
		return nil, fmt.Errorf("request gpio %d (offset %d): %w", line, off, err)
	}
	return &realLine{line: l, number: line}, nil
}

// Close releases the chip. Lines already requested stay valid until closed.
func (c *RealChip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.chip == nil {
		return nil
	}
	err := c.chip.Close()
	c.chip = nil
	if err != nil {
		return fmt.Errorf("close chip %s: %w", c.name, err)
	}
	return nil
}

type realLine struct {
	line   *gpiocdev.Line
	number int
}

func (l *realLine) Value() (int, error) {
	v, err := l.line.Value()
	if err != nil {
		return 0, fmt.Errorf("read gpio %d: %w", l.number, err)
	}
	return v, nil
}

func (l *realLine) SetValue(v int) error {
	if v != 0 {
		v = 1
	}
	if err := l.line.SetValue(v); err != nil {
		return fmt.Errorf("write gpio %d: %w", l.number, err)
	}
	return nil
}

// Close reconfigures the line as an input before releasing it so the pin
// is not left driving the header.
func (l *realLine) Close() error {
	var errs []error
	if err := l.line.Reconfigure(gpiocdev.AsInput); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure gpio %d: %w", l.number, err))
	}
	if err := l.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close gpio %d: %w", l.number, err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
