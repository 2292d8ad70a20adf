package gpio

import (
	"errors"
	"fmt"
	"sync"
)

// FakeLine is a test double that returns scripted values.
type FakeLine struct {
	mu sync.Mutex

	// Number is the line number it was opened with.
	Number int

	// Output is true when the line was opened with OpenOutput.
	Output bool

	// Samples contains scripted values to return.
	// Each call to Value() consumes the next sample.
	Samples []int

	// index tracks current position in Samples
	index int

	// Written records every SetValue call.
	Written []int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Value()
	ReadError error
}

// Value returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeLine) Value() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if len(f.Samples) == 0 {
		return 0, errors.New("no samples configured")
	}

	v := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return v, nil
}

// SetValue records the written value.
func (f *FakeLine) SetValue(v int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.Output {
		return fmt.Errorf("gpio %d: write to input line", f.Number)
	}
	f.Written = append(f.Written, v)
	return nil
}

// Close marks the line as closed.
func (f *FakeLine) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// SetSamples replaces the scripted samples and rewinds.
func (f *FakeLine) SetSamples(samples ...int) {
	f.mu.Lock()
	f.Samples = samples
	f.index = 0
	f.mu.Unlock()
}

// FakeChip hands out FakeLines and remembers them by number.
type FakeChip struct {
	mu sync.Mutex

	// Lines holds every line opened so far.
	Lines map[int]*FakeLine

	// Scripts pre-seeds samples for lines before they are opened.
	Scripts map[int][]int

	// OpenError, if set, is returned by OpenInput and OpenOutput.
	OpenError error
}

// NewFakeChip creates an empty FakeChip.
func NewFakeChip() *FakeChip {
	return &FakeChip{
		Lines:   make(map[int]*FakeLine),
		Scripts: make(map[int][]int),
	}
}

// OpenInput returns a FakeLine reading the scripted samples for line.
func (c *FakeChip) OpenInput(line int) (Line, error) {
	return c.open(line, false)
}

// OpenOutput returns a FakeLine recording writes.
func (c *FakeChip) OpenOutput(line int) (Line, error) {
	return c.open(line, true)
}

func (c *FakeChip) open(line int, output bool) (*FakeLine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.OpenError != nil {
		return nil, c.OpenError
	}
	if _, busy := c.Lines[line]; busy {
		return nil, fmt.Errorf("gpio %d: line busy", line)
	}
	l := &FakeLine{Number: line, Output: output, Samples: c.Scripts[line]}
	c.Lines[line] = l
	return l, nil
}

// Line returns the FakeLine opened for number, or nil.
func (c *FakeChip) Line(number int) *FakeLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Lines[number]
}

// SetReadError makes Value fail with err (nil clears it).
func (f *FakeLine) SetReadError(err error) {
	f.mu.Lock()
	f.ReadError = err
	f.mu.Unlock()
}

// Writes returns a copy of the values written so far.
func (f *FakeLine) Writes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.Written...)
}
