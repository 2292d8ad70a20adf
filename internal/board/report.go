package board

import (
	"slices"
	"time"

	"github.com/pkg/errors"

	"github.com/sweeney/odroid-io/internal/pins"
)

// reportLoop is one recurring sampling task. Every method is called with
// Board.mu held. Each start or stop bumps gen, so a tick belonging to an
// earlier run sees it is stale and does not reschedule itself.
type reportLoop struct {
	tick   func(gen uint64)
	timer  *time.Timer
	gen    uint64
	active bool
}

func (l *reportLoop) running() bool { return l.active }

func (l *reportLoop) start(d time.Duration) {
	if l.active {
		return
	}
	l.active = true
	l.gen++
	l.arm(d)
}

func (l *reportLoop) arm(d time.Duration) {
	gen := l.gen
	l.timer = time.AfterFunc(d, func() { l.tick(gen) })
}

// rearm schedules the next tick unless the run gen belongs to has ended.
func (l *reportLoop) rearm(gen uint64, d time.Duration) {
	if l.current(gen) {
		l.arm(d)
	}
}

func (l *reportLoop) stop() {
	l.active = false
	l.gen++
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

func (l *reportLoop) current(gen uint64) bool {
	return l.active && l.gen == gen
}

// report is one pin registered with a loop.
type report struct {
	pos   int
	event string
}

func addReport(rs []report, r report) []report {
	if slices.Contains(rs, r) {
		return rs
	}
	return append(rs, r)
}

// DigitalRead puts a pin in INPUT mode and calls h with every new value
// the digital loop samples. Handlers are additive.
func (b *Board) DigitalRead(ref pins.Ref, h func(value int)) error {
	return b.startReport(ref, pins.ModeInput, h)
}

// AnalogRead puts a pin in ANALOG mode and calls h with every new value
// the analog loop samples. Handlers are additive.
func (b *Board) AnalogRead(ref pins.Ref, h func(value int)) error {
	return b.startReport(ref, pins.ModeAnalog, h)
}

func (b *Board) startReport(ref pins.Ref, mode pins.Mode, h func(int)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	pos, err := b.resolveOpen(ref)
	if err != nil {
		return err
	}
	if err := b.setMode(pos, mode); err != nil {
		return err
	}

	loop, event := b.digital, DigitalEvent(pos)
	if mode == pins.ModeAnalog {
		loop, event = b.analog, AnalogEvent(pos)
	}
	if h != nil {
		b.events.on(event, func(ev Event) { h(ev.Value) })
	}

	r := report{pos: pos, event: event}
	if mode == pins.ModeAnalog {
		b.analogReports = addReport(b.analogReports, r)
	} else {
		b.digitalReports = addReport(b.digitalReports, r)
	}
	b.registry.State(pos).Report = 1

	loop.start(b.period())
	return nil
}

// record stores a fresh sample and reports whether it is a change. The
// first sample of a pin always counts as one. Callers hold b.mu.
func (b *Board) record(pos, value int) bool {
	s := b.registry.State(pos)
	changed := !s.Known || s.Value != value
	s.Value, s.Known = value, true
	return changed
}

// digitalTick samples every reporting digital pin in registration order.
func (b *Board) digitalTick(gen uint64) {
	var (
		events []Event
		errs   []error
	)

	b.mu.Lock()
	if !b.digital.current(gen) {
		b.mu.Unlock()
		return
	}
	for _, r := range b.digitalReports {
		s := b.registry.State(r.pos)
		if s.Report == 0 || s.Line == nil {
			continue
		}
		v, err := s.Line.Value()
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "digital read pin %d", r.pos))
			continue
		}
		if b.record(r.pos, v) {
			events = append(events, Event{Name: r.event, Kind: KindDigital, Position: r.pos, Value: v})
		}
	}
	b.digital.rearm(gen, b.period())
	b.mu.Unlock()

	for _, err := range errs {
		b.emitError(err)
	}
	for _, ev := range events {
		b.events.emit(ev)
	}
}

type analogResult struct {
	r     report
	value int
	err   error
}

// analogTick reads every reporting analog pin concurrently. Results are
// handled as they arrive and the next tick is scheduled only once every
// read has returned, so a slow channel delays the whole loop.
func (b *Board) analogTick(gen uint64) {
	b.mu.Lock()
	if !b.analog.current(gen) {
		b.mu.Unlock()
		return
	}
	type job struct {
		r       report
		channel int
	}
	var jobs []job
	for _, r := range b.analogReports {
		if b.registry.State(r.pos).Report == 0 {
			continue
		}
		jobs = append(jobs, job{r: r, channel: b.registry.Descriptor(r.pos).AnalogChannel})
	}
	b.mu.Unlock()

	results := make(chan analogResult, len(jobs))
	for _, j := range jobs {
		go func(j job) {
			v, err := b.hw.Analog.ReadChannel(j.channel)
			results <- analogResult{r: j.r, value: v, err: err}
		}(j)
	}

	for range jobs {
		res := <-results
		if res.err != nil {
			b.emitError(errors.Wrapf(res.err, "analog read pin %d", res.r.pos))
			continue
		}
		b.mu.Lock()
		changed := b.record(res.r.pos, res.value)
		b.mu.Unlock()
		if changed {
			b.events.emit(Event{Name: res.r.event, Kind: KindAnalog, Position: res.r.pos, Value: res.value})
		}
	}

	b.mu.Lock()
	b.analog.rearm(gen, b.period())
	b.mu.Unlock()
}

// SetSamplingInterval sets the report period in milliseconds, clamped to
// [0, MaxSamplingInterval]. Running loops are restarted at the new period
// straight away; a tick already in flight finishes but does not reschedule.
func (b *Board) SetSamplingInterval(ms int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.interval = clampInterval(ms)
	for _, l := range []*reportLoop{b.digital, b.analog} {
		if l.running() {
			l.stop()
			l.start(b.period())
		}
	}
}

// SamplingInterval returns the report period in milliseconds.
func (b *Board) SamplingInterval() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.interval
}
