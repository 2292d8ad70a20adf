package board

import (
	"github.com/pkg/errors"

	"github.com/sweeney/odroid-io/internal/pins"
)

// PingRead ranges with the ultrasonic sensor on a pin and calls h once
// with the echo time in microseconds. The pin must support INPUT and
// OUTPUT for the trigger/echo sequence.
//
// One lock is shared by every ranging pin, so at most one pulse is in
// flight at a time and sensors cannot hear each other. Pins range in the
// order PingRead was called. While a pin is already queued or ranging,
// further calls only add their handler for that result.
func (b *Board) PingRead(ref pins.Ref, h func(us int)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	pos, err := b.resolveOpen(ref)
	if err != nil {
		return err
	}
	d := b.registry.Descriptor(pos)
	if !d.Supports(pins.ModeInput) || !d.Supports(pins.ModeOutput) {
		return &UnsupportedPinError{Position: pos, Reason: "ping requires INPUT and OUTPUT modes"}
	}
	if h != nil {
		b.events.once(PingEvent(pos), func(ev Event) { h(ev.Value) })
	}

	s := b.registry.State(pos)
	if s.Report != 0 {
		return nil
	}
	s.Report = 1
	b.pingQueue = append(b.pingQueue, pingJob{pos: pos, desc: d})
	if !b.pinging {
		b.pinging = true
		go b.drainPings()
	}
	return nil
}

type pingJob struct {
	pos  int
	desc pins.Descriptor
}

// drainPings ranges queued pins one at a time until the queue is empty or
// the board is closed. Only one drainer runs at a time.
func (b *Board) drainPings() {
	for {
		b.mu.Lock()
		if len(b.pingQueue) == 0 || b.ctx.Err() != nil {
			for _, j := range b.pingQueue {
				b.registry.State(j.pos).Report = 0
			}
			b.pingQueue = nil
			b.pinging = false
			b.mu.Unlock()
			return
		}
		j := b.pingQueue[0]
		b.pingQueue = b.pingQueue[1:]
		b.mu.Unlock()

		b.ping(j.pos, j.desc)
	}
}

func (b *Board) ping(pos int, d pins.Descriptor) {
	us, err := b.rangeExclusive(d)
	if b.ctx.Err() != nil {
		// Board closed while queued or ranging.
		b.clearPing(pos)
		return
	}

	b.mu.Lock()
	s := b.registry.State(pos)
	s.Report = 0
	if err == nil {
		s.Value, s.Known = us, true
	}
	b.mu.Unlock()

	if err != nil {
		b.emitError(errors.Wrapf(err, "ping pin %d", pos))
		return
	}
	b.events.emit(Event{Name: PingEvent(pos), Kind: KindPing, Position: pos, Value: us})
}

// rangeExclusive runs one ranging attempt under the shared lock. The lock
// is released on every return path.
func (b *Board) rangeExclusive(d pins.Descriptor) (int, error) {
	if err := b.pingLock.Acquire(b.ctx, 1); err != nil {
		return 0, err
	}
	defer b.pingLock.Release(1)

	if b.caps.Ranger == nil {
		return 0, &UnsupportedOperationError{Op: "pingRead"}
	}
	return b.caps.Ranger.Range(b.ctx, d)
}

func (b *Board) clearPing(pos int) {
	b.mu.Lock()
	b.registry.State(pos).Report = 0
	b.mu.Unlock()
}
