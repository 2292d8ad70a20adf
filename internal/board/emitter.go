package board

import (
	"fmt"
	"slices"
	"sync"
	"time"
)

// Kind classifies an Event.
type Kind string

const (
	KindDigital Kind = "digital"
	KindAnalog  Kind = "analog"
	KindPing    Kind = "ping"
	KindI2C     Kind = "i2c"
	KindError   Kind = "error"
)

// EventError is the name of the process-wide error event.
const EventError = "error"

// DigitalEvent names change notifications for a digital pin.
func DigitalEvent(pos int) string { return fmt.Sprintf("digital-read-%d", pos) }

// AnalogEvent names change notifications for an analog pin.
func AnalogEvent(pos int) string { return fmt.Sprintf("analog-read-%d", pos) }

// PingEvent names ranging completions for a pin.
func PingEvent(pos int) string { return fmt.Sprintf("ping-read-%d", pos) }

// I2CReplyEvent names replies for an address and register (0 for raw reads).
func I2CReplyEvent(addr, reg uint8) string { return fmt.Sprintf("I2C-reply%d-%d", addr, reg) }

// Event is one notification emitted by the board.
type Event struct {
	Name     string
	Kind     Kind
	Position int // pin events only
	Address  uint8
	Register uint8
	Value    int
	Data     []byte
	Err      error
	Time     time.Time
}

type listener struct {
	fn   func(Event)
	once bool
}

// emitter dispatches events by name. Listeners run on the emitting
// goroutine, after the emitter lock is released.
type emitter struct {
	mu        sync.Mutex
	listeners map[string][]*listener
	all       []func(Event)
	unhandled func(Event)
}

func newEmitter() *emitter {
	return &emitter{listeners: make(map[string][]*listener)}
}

func (e *emitter) on(name string, fn func(Event)) {
	e.mu.Lock()
	e.listeners[name] = append(e.listeners[name], &listener{fn: fn})
	e.mu.Unlock()
}

func (e *emitter) once(name string, fn func(Event)) {
	e.mu.Lock()
	e.listeners[name] = append(e.listeners[name], &listener{fn: fn, once: true})
	e.mu.Unlock()
}

func (e *emitter) subscribe(fn func(Event)) {
	e.mu.Lock()
	e.all = append(e.all, fn)
	e.mu.Unlock()
}

func (e *emitter) count(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners[name])
}

func (e *emitter) emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	e.mu.Lock()
	ls := e.listeners[ev.Name]
	var keep []*listener
	for _, l := range ls {
		if !l.once {
			keep = append(keep, l)
		}
	}
	if len(keep) != len(ls) {
		e.listeners[ev.Name] = keep
	}
	all := slices.Clone(e.all)
	unhandled := e.unhandled
	e.mu.Unlock()

	for _, l := range ls {
		l.fn(ev)
	}
	for _, fn := range all {
		fn(ev)
	}
	if len(ls) == 0 && ev.Name == EventError && unhandled != nil {
		unhandled(ev)
	}
}
