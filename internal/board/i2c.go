package board

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/sweeney/odroid-io/internal/i2c"
)

// busHandle serialises transactions on one open bus.
type busHandle struct {
	mu     sync.Mutex
	number int
	bus    i2c.Bus
}

// I2COption configures I2CConfig.
type I2COption func(*i2cConfig)

type i2cConfig struct {
	bus    int
	hasBus bool
}

// OnBus selects the bus an address is bound to.
func OnBus(n int) I2COption {
	return func(c *i2cConfig) { c.bus, c.hasBus = n, true }
}

// I2CConfig binds address to a bus (the default bus unless OnBus is
// given) and opens that bus if needed. The first binding of an address
// wins: later calls never move it, so two devices sharing an address on
// different buses can not both be used.
func (b *Board) I2CConfig(address uint8, opts ...I2COption) error {
	cfg := i2cConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("i2c config 0x%02x: %w", address, ErrClosed)
	}
	bus, bound := b.addrToBus[address]
	if !bound {
		bus = b.defaultBus
		if cfg.hasBus {
			bus = cfg.bus
		}
	}
	if _, open := b.buses[bus]; !open {
		h, err := b.hw.I2C.Open(bus)
		if err != nil {
			return errors.Wrapf(err, "i2c config 0x%02x", address)
		}
		b.buses[bus] = &busHandle{number: bus, bus: h}
		b.log.Debugf("%s: opened i2c bus %d", b.name, bus)
	}
	if !bound {
		b.addrToBus[address] = bus
	}
	return nil
}

// BusFor returns the bus address is bound to.
func (b *Board) BusFor(address uint8) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bus, ok := b.addrToBus[address]
	return bus, ok
}

// i2cRequest is the single shape every public I2C call is reduced to.
type i2cRequest struct {
	address  uint8
	register uint8
	hasReg   bool
	data     []byte // written
	size     int    // read
}

// payload is the bytes a write puts on the wire.
func (r i2cRequest) payload() []byte {
	if !r.hasReg {
		return r.data
	}
	return append([]byte{r.register}, r.data...)
}

func (r i2cRequest) event() string {
	return I2CReplyEvent(r.address, r.register)
}

func (b *Board) handle(address uint8) (*busHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("i2c 0x%02x: %w", address, ErrClosed)
	}
	bus, ok := b.addrToBus[address]
	if !ok {
		return nil, &InvalidArgumentError{Op: "i2c", Reason: fmt.Sprintf("address 0x%02x is not configured", address)}
	}
	return b.buses[bus], nil
}

// transfer performs one transaction. Reads return the bytes received.
func (b *Board) transfer(req i2cRequest) ([]byte, error) {
	h, err := b.handle(req.address)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if req.size == 0 {
		if err := h.bus.Write(req.address, req.payload()); err != nil {
			return nil, errors.Wrapf(err, "i2c write 0x%02x on bus %d", req.address, h.number)
		}
		return nil, nil
	}

	buf := make([]byte, req.size)
	if req.hasReg {
		err = h.bus.ReadReg(req.address, req.register, buf)
	} else {
		err = h.bus.Read(req.address, buf)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "i2c read 0x%02x on bus %d", req.address, h.number)
	}
	return buf, nil
}

// I2CWrite sends raw bytes to address. The first byte is the register or
// command. Writing nothing issues no transaction.
func (b *Board) I2CWrite(address uint8, raw []byte) error {
	if len(raw) == 0 {
		return nil
	}
	_, err := b.transfer(i2cRequest{address: address, data: raw})
	return err
}

// I2CWriteRegister writes data starting at register reg. With no data
// only the register byte is sent, which sets the device's register pointer.
func (b *Board) I2CWriteRegister(address, reg uint8, data []byte) error {
	_, err := b.transfer(i2cRequest{address: address, register: reg, hasReg: true, data: data})
	return err
}

// I2CWriteReg writes one byte to register reg.
func (b *Board) I2CWriteReg(address, reg, value uint8) error {
	h, err := b.handle(address)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return errors.Wrapf(h.bus.WriteByteReg(address, reg, value), "i2c write reg 0x%02x/0x%02x", address, reg)
}

// I2CReadReg reads one byte from register reg.
func (b *Board) I2CReadReg(address, reg uint8) (uint8, error) {
	h, err := b.handle(address)
	if err != nil {
		return 0, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	v, err := h.bus.ReadByteReg(address, reg)
	if err != nil {
		return 0, errors.Wrapf(err, "i2c read reg 0x%02x/0x%02x", address, reg)
	}
	return v, nil
}

// I2CReadOnce reads size bytes from address once. h receives the next
// reply broadcast for the address, which may come from another caller's
// read of the same address.
func (b *Board) I2CReadOnce(address uint8, size int, h func(data []byte)) error {
	return b.readOnce(i2cRequest{address: address, size: size}, h)
}

// I2CReadOnceRegister is I2CReadOnce starting at register reg.
func (b *Board) I2CReadOnceRegister(address, reg uint8, size int, h func(data []byte)) error {
	return b.readOnce(i2cRequest{address: address, register: reg, hasReg: true, size: size}, h)
}

func (b *Board) readOnce(req i2cRequest, h func([]byte)) error {
	if err := b.checkRead(req); err != nil {
		return err
	}
	if h != nil {
		b.events.once(req.event(), func(ev Event) { h(ev.Data) })
	}
	go b.readAndBroadcast(req)
	return nil
}

func (b *Board) checkRead(req i2cRequest) error {
	if req.size <= 0 {
		return &InvalidArgumentError{Op: "i2cRead", Reason: "size must be positive"}
	}
	_, err := b.handle(req.address)
	return err
}

// readAndBroadcast performs req and emits the reply to every listener of
// its address/register. Failures go to the error event.
func (b *Board) readAndBroadcast(req i2cRequest) ([]byte, bool) {
	data, err := b.transfer(req)
	if err != nil {
		b.emitError(err)
		return nil, false
	}
	b.events.emit(Event{
		Name:     req.event(),
		Kind:     KindI2C,
		Address:  req.address,
		Register: req.register,
		Data:     data,
	})
	return data, true
}

// I2CRead reads size bytes from address continuously, one read per
// sampling interval, until the board is closed. Each reply goes to h and
// to the address broadcast.
func (b *Board) I2CRead(address uint8, size int, h func(data []byte)) error {
	return b.startPoll(i2cRequest{address: address, size: size}, h)
}

// I2CReadRegister is I2CRead starting at register reg.
func (b *Board) I2CReadRegister(address, reg uint8, size int, h func(data []byte)) error {
	return b.startPoll(i2cRequest{address: address, register: reg, hasReg: true, size: size}, h)
}

// i2cPoll is one continuous read task.
type i2cPoll struct {
	stop chan struct{}
	once sync.Once
}

func (p *i2cPoll) halt() {
	p.once.Do(func() { close(p.stop) })
}

func (b *Board) startPoll(req i2cRequest, h func([]byte)) error {
	if err := b.checkRead(req); err != nil {
		return err
	}
	p := &i2cPoll{stop: make(chan struct{})}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("i2c 0x%02x: %w", req.address, ErrClosed)
	}
	b.polls = append(b.polls, p)
	b.mu.Unlock()

	go b.runPoll(p, req, h)
	return nil
}

func (b *Board) runPoll(p *i2cPoll, req i2cRequest, h func([]byte)) {
	for {
		select {
		case <-p.stop:
			return
		default:
		}
		if data, ok := b.readAndBroadcast(req); ok && h != nil {
			h(data)
		}

		t := time.NewTimer(b.samplingPeriod())
		select {
		case <-p.stop:
			t.Stop()
			return
		case <-t.C:
		}
	}
}
