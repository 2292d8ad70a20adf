package internal

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/sweeney/odroid-io/internal/analog"
	"github.com/sweeney/odroid-io/internal/board"
	"github.com/sweeney/odroid-io/internal/gpio"
	"github.com/sweeney/odroid-io/internal/i2c"
	"github.com/sweeney/odroid-io/internal/led"
	"github.com/sweeney/odroid-io/internal/mqtt"
	"github.com/sweeney/odroid-io/internal/pins"
	"github.com/sweeney/odroid-io/internal/status"
)

type rig struct {
	board   *board.Board
	chip    *gpio.FakeChip
	adc     *analog.FakeReader
	buses   *i2c.FakeOpener
	leds    *led.FakeOpener
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
}

// newRig wires a fake-backed board to a publisher and tracker the way the
// daemon does: errors to PublishSystem, everything else to Publish.
func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{
		chip:  gpio.NewFakeChip(),
		adc:   analog.NewFakeReader(),
		buses: i2c.NewFakeOpener(),
		leds:  led.NewFakeOpener(),
		pub:   mqtt.NewFakePublisher(),
	}
	r.board = board.New(
		board.WithPins(pins.WithLED(pins.OdroidC2(), "LED0", "/sys/class/leds/blue:heartbeat")),
		board.WithGPIO(r.chip),
		board.WithAnalog(r.adc),
		board.WithI2C(r.buses),
		board.WithLEDs(r.leds),
		board.WithSamplingInterval(2),
	)
	t.Cleanup(func() { r.board.Close() })

	r.tracker = status.NewTracker(time.Now(), status.Config{SamplingMs: 2, I2CBus: board.DefaultI2CBus})
	r.tracker.SetBoard(r.board.Name(), "ODROID-C2", r.board)

	r.board.Subscribe(func(ev board.Event) {
		if ev.Kind == board.KindError {
			return
		}
		r.tracker.Record(ev)
		r.pub.Publish(ev)
	})
	r.board.OnError(func(err error) {
		r.tracker.Record(board.Event{Kind: board.KindError, Err: err})
		r.pub.PublishSystem(mqtt.SystemEvent{Timestamp: time.Now(), Event: "ERROR", Reason: err.Error()})
	})
	return r
}

func decodePin(t *testing.T, ev board.Event) mqtt.PinPayload {
	t.Helper()
	data, err := mqtt.FormatPayload(ev)
	if err != nil {
		t.Fatalf("format payload: %v", err)
	}
	var p mqtt.Payload
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	return p.Pin
}

func TestIntegrationDigitalChangesReachPublisher(t *testing.T) {
	g := NewWithT(t)
	r := newRig(t)
	r.chip.Scripts[247] = []int{0, 0, 1, 1, 0}

	g.Expect(r.board.DigitalRead(pins.P(0), nil)).To(Succeed())
	g.Eventually(func() int { return len(r.pub.Published()) }).Should(Equal(3))
	g.Consistently(func() int { return len(r.pub.Published()) }, 20*time.Millisecond).Should(Equal(3))

	var values []int
	for _, ev := range r.pub.Published() {
		p := decodePin(t, ev)
		g.Expect(p.Event).To(Equal("digital-read-0"))
		g.Expect(p.Kind).To(Equal("digital"))
		g.Expect(p.Value).NotTo(BeNil())
		values = append(values, *p.Value)
	}
	g.Expect(values).To(Equal([]int{0, 1, 0}))

	snap := r.tracker.Snapshot()
	g.Expect(snap.Counts[board.KindDigital]).To(Equal(3))
	g.Expect(snap.Pins[0].Mode).To(Equal(pins.ModeInput))
	g.Expect(snap.Pins[0].Report).To(Equal(1))
}

func TestIntegrationAnalogAndDigitalTogether(t *testing.T) {
	g := NewWithT(t)
	r := newRig(t)
	r.chip.Scripts[238] = []int{1}
	r.adc.Set(1, 100, 100, 900)

	g.Expect(r.board.DigitalRead(pins.ID("GPIO238"), nil)).To(Succeed())
	g.Expect(r.board.AnalogRead(pins.ID("A1"), nil)).To(Succeed())

	g.Eventually(func() int { return len(r.pub.Published()) }).Should(Equal(3))
	snap := r.tracker.Snapshot()
	g.Expect(snap.Counts[board.KindDigital]).To(Equal(1))
	g.Expect(snap.Counts[board.KindAnalog]).To(Equal(2))
	g.Expect(snap.Pins[16].Value).To(Equal(900))
}

func TestIntegrationI2CPollPayload(t *testing.T) {
	g := NewWithT(t)
	r := newRig(t)
	r.buses.Bus(board.DefaultI2CBus).SetReply(0x48, 0x00, []byte{0x19, 0x80})

	g.Expect(r.board.I2CConfig(0x48)).To(Succeed())
	g.Expect(r.board.I2CReadRegister(0x48, 0x00, 2, nil)).To(Succeed())
	g.Eventually(func() int { return len(r.pub.Published()) }).Should(BeNumerically(">=", 2))

	p := decodePin(t, r.pub.Published()[0])
	g.Expect(p.Event).To(Equal("I2C-reply72-0"))
	g.Expect(p.Kind).To(Equal("i2c"))
	g.Expect(p.Address).NotTo(BeNil())
	g.Expect(*p.Address).To(Equal(0x48))
	g.Expect(*p.Register).To(Equal(0))
	g.Expect(p.Position).To(BeNil())
	g.Expect(p.Data).To(Equal([]int{0x19, 0x80}))
}

func TestIntegrationErrorsGoToSystemTopic(t *testing.T) {
	g := NewWithT(t)
	r := newRig(t)
	r.adc.SetError(0, errors.New("saradc: no such file"))

	g.Expect(r.board.AnalogRead(pins.ID("A0"), nil)).To(Succeed())
	g.Eventually(func() int { return len(r.pub.System()) }).Should(BeNumerically(">=", 1))

	se := r.pub.System()[0]
	g.Expect(se.Event).To(Equal("ERROR"))
	g.Expect(se.Reason).To(ContainSubstring("no such file"))
	g.Expect(r.pub.Published()).To(BeEmpty())

	sj := statusJSON(t, r.tracker)
	g.Expect(sj.Status.Counts.Error).To(BeNumerically(">=", 1))
	g.Expect(sj.Status.LastError).To(ContainSubstring("no such file"))
}

func TestIntegrationWritesShowInStatus(t *testing.T) {
	g := NewWithT(t)
	r := newRig(t)

	g.Expect(r.board.DigitalWrite(pins.P(7), 1)).To(Succeed())
	g.Expect(r.board.DigitalWrite(pins.ID("LED0"), 1)).To(Succeed())
	g.Expect(r.chip.Line(249).Writes()).To(Equal([]int{1}))

	sj := statusJSON(t, r.tracker)
	byPos := map[int]status.PinJSON{}
	for _, p := range sj.Status.Pins {
		byPos[p.Position] = p
	}
	g.Expect(byPos[7].Mode).To(Equal("OUTPUT"))
	g.Expect(*byPos[7].Value).To(Equal(1))

	ledPos := len(pins.OdroidC2())
	g.Expect(byPos[ledPos].IDs).To(Equal([]string{"LED0"}))
	g.Expect(*byPos[ledPos].Value).To(Equal(1))

	// Unused header positions have no modes and are left out.
	_, ok := byPos[8]
	g.Expect(ok).To(BeFalse())
}

func TestIntegrationCloseStopsPublishing(t *testing.T) {
	g := NewWithT(t)
	r := newRig(t)
	r.chip.Scripts[239] = []int{0, 1, 0, 1, 0, 1, 0, 1}
	r.buses.Bus(board.DefaultI2CBus).SetReply(0x50, 0, []byte{1})

	g.Expect(r.board.DigitalRead(pins.P(2), nil)).To(Succeed())
	g.Expect(r.board.I2CConfig(0x50)).To(Succeed())
	g.Expect(r.board.I2CRead(0x50, 1, nil)).To(Succeed())
	g.Eventually(func() int { return len(r.pub.Published()) }).Should(BeNumerically(">=", 2))

	g.Expect(r.board.Close()).To(Succeed())
	settled := len(r.pub.Published())
	g.Consistently(func() int { return len(r.pub.Published()) }, 30*time.Millisecond).Should(BeNumerically("<=", settled+2))
	n := len(r.pub.Published())
	g.Consistently(func() int { return len(r.pub.Published()) }, 30*time.Millisecond).Should(Equal(n))
}

func statusJSON(t *testing.T, tr *status.Tracker) status.StatusJSON {
	t.Helper()
	var sj status.StatusJSON
	if err := json.Unmarshal(status.FormatJSON(tr.Snapshot()), &sj); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	return sj
}
