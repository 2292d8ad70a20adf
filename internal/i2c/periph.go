package i2c

import (
	"fmt"
	"strconv"
	"sync"

	periphi2c "periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Periph opens buses through periph.io's host drivers.
type Periph struct {
	once    sync.Once
	initErr error
}

// NewPeriph creates an Opener backed by periph.io. Host drivers are
// initialised on the first Open.
func NewPeriph() *Periph {
	return &Periph{}
}

// Open opens /dev/i2c-<bus>.
func (p *Periph) Open(bus int) (Bus, error) {
	p.once.Do(func() {
		if _, err := host.Init(); err != nil {
			p.initErr = fmt.Errorf("periph host init: %w", err)
		}
	})
	if p.initErr != nil {
		return nil, p.initErr
	}

	b, err := i2creg.Open(strconv.Itoa(bus))
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %d: %w", bus, err)
	}
	return &periphBus{bus: b, number: bus}, nil
}

type periphBus struct {
	bus    periphi2c.BusCloser
	number int
}

func (b *periphBus) tx(addr uint8, w, r []byte) error {
	if err := b.bus.Tx(uint16(addr), w, r); err != nil {
		return fmt.Errorf("i2c-%d addr=0x%02X: %w", b.number, addr, err)
	}
	return nil
}

func (b *periphBus) Read(addr uint8, buf []byte) error {
	return b.tx(addr, nil, buf)
}

func (b *periphBus) ReadReg(addr, reg uint8, buf []byte) error {
	return b.tx(addr, []byte{reg}, buf)
}

func (b *periphBus) Write(addr uint8, data []byte) error {
	return b.tx(addr, data, nil)
}

func (b *periphBus) ReadByteReg(addr, reg uint8) (uint8, error) {
	buf := make([]byte, 1)
	if err := b.tx(addr, []byte{reg}, buf); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (b *periphBus) WriteByteReg(addr, reg, value uint8) error {
	return b.tx(addr, []byte{reg, value}, nil)
}

func (b *periphBus) Close() error {
	return b.bus.Close()
}
