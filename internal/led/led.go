// Package led toggles discrete LEDs exposed under /sys/class/leds.
package led

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// LED is an opened LED device.
type LED interface {
	On() error
	Off() error
	Close() error
}

// Opener opens an LED by its device directory.
type Opener interface {
	Open(path string) (LED, error)
}

// Sysfs opens LEDs through their sysfs attribute files.
type Sysfs struct{}

// Open takes the LED away from any kernel trigger and switches it off.
func (Sysfs) Open(path string) (LED, error) {
	l := &sysfsLED{path: path}
	if err := l.write("trigger", "none"); err != nil {
		return nil, err
	}
	if err := l.Off(); err != nil {
		return nil, err
	}
	return l, nil
}

type sysfsLED struct {
	path string
}

func (l *sysfsLED) write(attr, value string) error {
	name := filepath.Join(l.path, attr)
	if err := os.WriteFile(name, []byte(value), 0o644); err != nil {
		return fmt.Errorf("led %s: write %s: %w", l.path, attr, err)
	}
	return nil
}

func (l *sysfsLED) On() error  { return l.write("brightness", "1") }
func (l *sysfsLED) Off() error { return l.write("brightness", "0") }
func (l *sysfsLED) Close() error {
	return nil
}

// FakeLED records the on/off history of one LED.
type FakeLED struct {
	mu      sync.Mutex
	Path    string
	History []bool
	Closed  bool
}

func (f *FakeLED) On() error  { return f.set(true) }
func (f *FakeLED) Off() error { return f.set(false) }

func (f *FakeLED) set(on bool) error {
	f.mu.Lock()
	f.History = append(f.History, on)
	f.mu.Unlock()
	return nil
}

func (f *FakeLED) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// Lit reports the last state set, false if never set.
func (f *FakeLED) Lit() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.History) == 0 {
		return false
	}
	return f.History[len(f.History)-1]
}

// FakeOpener hands out FakeLEDs keyed by path.
type FakeOpener struct {
	mu   sync.Mutex
	LEDs map[string]*FakeLED

	// OpenError, if set, is returned by Open.
	OpenError error
}

// NewFakeOpener creates an empty FakeOpener.
func NewFakeOpener() *FakeOpener {
	return &FakeOpener{LEDs: make(map[string]*FakeLED)}
}

func (o *FakeOpener) Open(path string) (LED, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.OpenError != nil {
		return nil, o.OpenError
	}
	l := &FakeLED{Path: path}
	o.LEDs[path] = l
	return l, nil
}
