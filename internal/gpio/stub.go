//go:build !linux

package gpio

import "errors"

// RealChip is not available on non-Linux platforms.
type RealChip struct{}

// NewRealChip returns a chip whose requests always fail.
func NewRealChip(name string, base int) *RealChip {
	return &RealChip{}
}

// OpenInput is not implemented on non-Linux platforms.
func (c *RealChip) OpenInput(line int) (Line, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// OpenOutput is not implemented on non-Linux platforms.
func (c *RealChip) OpenOutput(line int) (Line, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Close is a no-op on non-Linux platforms.
func (c *RealChip) Close() error {
	return nil
}
