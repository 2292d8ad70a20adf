package status

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/odroid-io/internal/board"
	"github.com/sweeney/odroid-io/internal/pins"
)

type staticPins []board.PinInfo

func (s staticPins) Pins() []board.PinInfo { return s }

func testPins() staticPins {
	return staticPins{
		{Position: 0, IDs: []string{"P1-0", "GPIO247"}, Modes: []pins.Mode{pins.ModeInput, pins.ModeOutput}, Mode: pins.ModeInput, Value: 1, Known: true, Report: 1},
		{Position: 8},
		{Position: 15, IDs: []string{"P1-15", "A0"}, Modes: []pins.Mode{pins.ModeAnalog}, Mode: pins.ModeUnknown},
	}
}

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{SamplingMs: 10, I2CBus: 1, Broker: "tcp://localhost:1883", HTTPAddr: ":8080"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config != cfg {
		t.Errorf("Config: got %+v, want %+v", snap.Config, cfg)
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
	if snap.Pins != nil {
		t.Errorf("expected no pins before SetBoard, got %v", snap.Pins)
	}
}

func TestRecordCountsByKind(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.Record(board.Event{Kind: board.KindDigital})
	tr.Record(board.Event{Kind: board.KindDigital})
	tr.Record(board.Event{Kind: board.KindI2C})
	tr.Record(board.Event{Kind: board.KindError, Err: errors.New("saradc: timeout")})

	snap := tr.Snapshot()
	if snap.Counts[board.KindDigital] != 2 || snap.Counts[board.KindI2C] != 1 || snap.Counts[board.KindError] != 1 {
		t.Errorf("unexpected counts %v", snap.Counts)
	}
	if snap.LastError != "saradc: timeout" {
		t.Errorf("LastError: got %q", snap.LastError)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.Record(board.Event{Kind: board.KindAnalog})

	snap := tr.Snapshot()
	snap.Counts[board.KindAnalog] = 100

	if got := tr.Snapshot().Counts[board.KindAnalog]; got != 1 {
		t.Errorf("tracker state changed through snapshot: %d", got)
	}
}

func TestSetBoardAndMQTT(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.SetBoard("ODROID-IO", "ODROID-C2", testPins())
	tr.SetMQTTConnected(true)

	snap := tr.Snapshot()
	if snap.Name != "ODROID-IO" || snap.Hardware != "ODROID-C2" {
		t.Errorf("unexpected identity %q/%q", snap.Name, snap.Hardware)
	}
	if len(snap.Pins) != 3 {
		t.Errorf("expected 3 pins, got %d", len(snap.Pins))
	}
	if !snap.MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}
}

func TestUptime(t *testing.T) {
	start := time.Now().Add(-90 * time.Second)
	tr := NewTracker(start, Config{})
	if up := tr.Snapshot().Uptime(); up < 90*time.Second || up > 95*time.Second {
		t.Errorf("unexpected uptime %v", up)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.SetBoard("b", "h", testPins())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.Record(board.Event{Kind: board.KindDigital})
				tr.SetMQTTConnected(j%2 == 0)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = tr.Snapshot()
			}
		}()
	}
	wg.Wait()

	if got := tr.Snapshot().Counts[board.KindDigital]; got != 400 {
		t.Errorf("expected 400 digital events, got %d", got)
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Name:          "ODROID-IO",
		StartTime:     start,
		Now:           start.Add(61 * time.Second),
		Pins:          testPins(),
		Counts:        map[board.Kind]int{board.KindDigital: 3},
		MQTTConnected: true,
		Config:        Config{SamplingMs: 5, I2CBus: 1, GPIOChip: "gpiochip1", Broker: "tcp://b:1883", HTTPAddr: ":80"},
	}

	var sj StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &sj); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	s := sj.Status

	if s.Hardware != "UNKNOWN" {
		t.Errorf("Hardware: got %q, want UNKNOWN", s.Hardware)
	}
	if s.UptimeSeconds != 61 {
		t.Errorf("UptimeSeconds: got %d, want 61", s.UptimeSeconds)
	}
	if s.Counts.Digital != 3 || s.Counts.Error != 0 {
		t.Errorf("unexpected counts %+v", s.Counts)
	}
	if !s.MQTT.Connected || s.MQTT.Broker != "tcp://b:1883" {
		t.Errorf("unexpected mqtt %+v", s.MQTT)
	}
	if s.Config.GPIOChip != "gpiochip1" || s.Config.SamplingMs != 5 {
		t.Errorf("unexpected config %+v", s.Config)
	}

	// Position 8 has no modes and is left out.
	if len(s.Pins) != 2 {
		t.Fatalf("expected 2 pins, got %d", len(s.Pins))
	}
	p0, a0 := s.Pins[0], s.Pins[1]
	if p0.Mode != "INPUT" || p0.Value == nil || *p0.Value != 1 || !p0.Report {
		t.Errorf("unexpected pin 0 %+v", p0)
	}
	if a0.Mode != "UNKNOWN" || a0.Value != nil || a0.Modes[0] != "ANALOG" {
		t.Errorf("unexpected pin 15 %+v", a0)
	}
}
