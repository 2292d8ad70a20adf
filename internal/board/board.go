// Package board translates generic pin operations into ODROID-C2 control
// paths. A Board owns the pin registry, the one-shot mode state machine,
// the digital and analog report loops, the I2C address-to-bus multiplexer
// and the process-wide ranging lock.
//
// All pin state is mutated under a single lock. Listeners are called after
// that lock is released, so they may call back into the Board.
package board

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/sweeney/odroid-io/internal/analog"
	"github.com/sweeney/odroid-io/internal/gpio"
	"github.com/sweeney/odroid-io/internal/i2c"
	"github.com/sweeney/odroid-io/internal/led"
	"github.com/sweeney/odroid-io/internal/pins"
)

const (
	// DefaultName is reported by Name unless WithName is given.
	DefaultName = "ODROID-IO"

	// DefaultSamplingInterval is the report period in milliseconds.
	DefaultSamplingInterval = 1

	// MaxSamplingInterval is the largest accepted report period in milliseconds.
	MaxSamplingInterval = 65535

	// DefaultI2CBus is used by I2CConfig when no bus is given.
	DefaultI2CBus = 1
)

// Hardware bundles the external drivers a Board talks to.
type Hardware struct {
	GPIO   gpio.Opener
	LEDs   led.Opener
	Analog analog.Reader
	I2C    i2c.Opener
}

// Board is the pin-abstraction layer for one board.
type Board struct {
	name string
	log  logrus.FieldLogger
	hw   Hardware
	caps Capabilities

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	table    []pins.Descriptor
	registry *pins.Registry
	interval int // milliseconds
	closed   bool

	digital        *reportLoop
	analog         *reportLoop
	digitalReports []report
	analogReports  []report

	defaultBus int
	addrToBus  map[uint8]int
	buses      map[int]*busHandle
	polls      []*i2cPoll

	pingLock  *semaphore.Weighted
	pingQueue []pingJob
	pinging   bool

	events *emitter
}

// Option configures a Board.
type Option func(*Board)

// WithName sets the board name.
func WithName(name string) Option {
	return func(b *Board) { b.name = name }
}

// WithLogger sets the logger used for lifecycle and unhandled errors.
func WithLogger(l logrus.FieldLogger) Option {
	return func(b *Board) { b.log = l }
}

// WithPins replaces the ODROID-C2 pin table.
func WithPins(table []pins.Descriptor) Option {
	return func(b *Board) { b.table = table }
}

// WithCapabilities replaces the ODROID-C2 capability table.
func WithCapabilities(c Capabilities) Option {
	return func(b *Board) { b.caps = c }
}

// WithGPIO sets the GPIO line driver.
func WithGPIO(o gpio.Opener) Option {
	return func(b *Board) { b.hw.GPIO = o }
}

// WithLEDs sets the LED driver.
func WithLEDs(o led.Opener) Option {
	return func(b *Board) { b.hw.LEDs = o }
}

// WithAnalog sets the analog channel reader.
func WithAnalog(r analog.Reader) Option {
	return func(b *Board) { b.hw.Analog = r }
}

// WithI2C sets the I2C bus driver.
func WithI2C(o i2c.Opener) Option {
	return func(b *Board) { b.hw.I2C = o }
}

// WithSamplingInterval sets the initial report period in milliseconds.
func WithSamplingInterval(ms int) Option {
	return func(b *Board) { b.interval = clampInterval(ms) }
}

// WithDefaultI2CBus sets the bus used by I2CConfig when none is given.
func WithDefaultI2CBus(bus int) Option {
	return func(b *Board) { b.defaultBus = bus }
}

// New creates a Board. Drivers not supplied by options default to the
// real Linux implementations.
func New(opts ...Option) *Board {
	b := &Board{
		name:       DefaultName,
		log:        logrus.StandardLogger(),
		caps:       OdroidC2(),
		table:      pins.OdroidC2(),
		interval:   DefaultSamplingInterval,
		defaultBus: DefaultI2CBus,
		addrToBus:  make(map[uint8]int),
		buses:      make(map[int]*busHandle),
		pingLock:   semaphore.NewWeighted(1),
		events:     newEmitter(),
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.hw.GPIO == nil {
		b.hw.GPIO = gpio.NewRealChip(gpio.DefaultChip, gpio.DefaultBase)
	}
	if b.hw.LEDs == nil {
		b.hw.LEDs = led.Sysfs{}
	}
	if b.hw.Analog == nil {
		b.hw.Analog = analog.NewSysfs(analog.DefaultRoot)
	}
	if b.hw.I2C == nil {
		b.hw.I2C = i2c.NewPeriph()
	}

	b.registry = pins.NewRegistry(b.table)
	b.ctx, b.cancel = context.WithCancel(context.Background())
	b.digital = &reportLoop{tick: b.digitalTick}
	b.analog = &reportLoop{tick: b.analogTick}
	b.events.unhandled = func(ev Event) {
		b.log.Warnf("%s: unhandled error: %v", b.name, ev.Err)
	}
	return b
}

// Name returns the board name.
func (b *Board) Name() string { return b.name }

// On adds a listener for the named event (see DigitalEvent, AnalogEvent,
// PingEvent, I2CReplyEvent).
func (b *Board) On(name string, fn func(Event)) {
	b.events.on(name, fn)
}

// OnError adds a listener for asynchronous sampling and bus errors.
func (b *Board) OnError(fn func(error)) {
	b.events.on(EventError, func(ev Event) { fn(ev.Err) })
}

// Subscribe adds a listener that receives every event.
func (b *Board) Subscribe(fn func(Event)) {
	b.events.subscribe(fn)
}

func (b *Board) emitError(err error) {
	b.events.emit(Event{Name: EventError, Kind: KindError, Err: err})
}

// resolve maps ref to a position. Callers hold b.mu.
func (b *Board) resolve(ref pins.Ref) (int, error) {
	pos, ok := b.registry.Resolve(ref)
	if !ok {
		return 0, &UnknownPinError{Ref: ref}
	}
	return pos, nil
}

// resolveOpen is resolve for operations that touch hardware. It fails with
// ErrClosed once Close has run. Callers hold b.mu.
func (b *Board) resolveOpen(ref pins.Ref) (int, error) {
	if b.closed {
		return 0, ErrClosed
	}
	return b.resolve(ref)
}

// PinInfo is a point-in-time view of one position.
type PinInfo struct {
	Position int
	IDs      []string
	Modes    []pins.Mode
	Mode     pins.Mode
	Value    int
	Known    bool
	Report   int
}

// Pins returns a snapshot of every position.
func (b *Board) Pins() []PinInfo {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]PinInfo, b.registry.Len())
	for pos := range out {
		d := b.registry.Descriptor(pos)
		s := b.registry.State(pos)
		out[pos] = PinInfo{
			Position: pos,
			IDs:      d.IDs,
			Modes:    d.Modes,
			Mode:     s.Mode,
			Value:    s.Value,
			Known:    s.Known,
			Report:   s.Report,
		}
	}
	return out
}

// Pin returns the snapshot of the position ref names.
func (b *Board) Pin(ref pins.Ref) (PinInfo, error) {
	b.mu.Lock()
	pos, err := b.resolve(ref)
	b.mu.Unlock()
	if err != nil {
		return PinInfo{}, err
	}
	return b.Pins()[pos], nil
}

// Close stops every report loop and I2C poll, abandons queued ranging
// requests and releases the hardware handles.
func (b *Board) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.digital.stop()
	b.analog.stop()
	polls := b.polls
	b.polls = nil
	b.cancel()

	var errs []error
	for pos := 0; pos < b.registry.Len(); pos++ {
		s := b.registry.State(pos)
		if s.Line != nil {
			if err := s.Line.Close(); err != nil {
				errs = append(errs, err)
			}
			s.Line = nil
		}
		if s.LED != nil {
			if err := s.LED.Close(); err != nil {
				errs = append(errs, err)
			}
			s.LED = nil
		}
	}
	for n, h := range b.buses {
		if err := h.bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close i2c bus %d: %w", n, err))
		}
	}
	b.mu.Unlock()

	for _, p := range polls {
		p.halt()
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func clampInterval(ms int) int {
	return min(max(ms, 0), MaxSamplingInterval)
}

// period returns the report period. Callers hold b.mu.
func (b *Board) period() time.Duration {
	return time.Duration(b.interval) * time.Millisecond
}

// samplingPeriod is period for callers not holding b.mu.
func (b *Board) samplingPeriod() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.period()
}

// DetectBoard returns the Hardware field of a /proc/cpuinfo listing, or
// "UNKNOWN" when there is none.
func DetectBoard(cpuinfo io.Reader) (string, error) {
	sc := bufio.NewScanner(cpuinfo)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "Hardware") {
			continue
		}
		if _, v, ok := strings.Cut(line, ":"); ok {
			return strings.TrimSpace(v), nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("read cpuinfo: %w", err)
	}
	return "UNKNOWN", nil
}
