// Package status provides a thread-safe status tracker for the odroid-io
// daemon. It is read by the HTTP handlers.
package status

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/sweeney/odroid-io/internal/board"
)

// Config contains daemon configuration for display.
type Config struct {
	SamplingMs int
	I2CBus     int
	GPIOChip   string
	Broker     string
	HTTPAddr   string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Name          string
	Hardware      string // from /proc/cpuinfo
	Pins          []board.PinInfo
	Counts        map[board.Kind]int
	LastError     string
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// PinSource supplies pin snapshots; *board.Board implements it.
type PinSource interface {
	Pins() []board.PinInfo
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu     sync.RWMutex
	snap   Snapshot
	source PinSource
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
			Counts:    make(map[board.Kind]int),
		},
	}
}

// SetBoard records the board identity and where pin state is read from.
func (t *Tracker) SetBoard(name, hardware string, src PinSource) {
	t.mu.Lock()
	t.snap.Name = name
	t.snap.Hardware = hardware
	t.source = src
	t.mu.Unlock()
}

// Record counts a board event. Called from the board's listener goroutines.
func (t *Tracker) Record(ev board.Event) {
	t.mu.Lock()
	t.snap.Counts[ev.Kind]++
	if ev.Kind == board.KindError && ev.Err != nil {
		t.snap.LastError = ev.Err.Error()
	}
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Counts = maps.Clone(t.snap.Counts)
	src := t.source
	t.mu.RUnlock()

	if src != nil {
		s.Pins = slices.Clone(src.Pins())
	}
	s.Now = time.Now()
	return s
}
