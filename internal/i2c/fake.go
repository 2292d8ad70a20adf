package i2c

import (
	"fmt"
	"sync"
	"time"
)

// Tx is one transaction recorded by a FakeBus.
type Tx struct {
	Addr    uint8
	Reg     uint8
	HasReg  bool
	Write   []byte
	ReadLen int
}

// FakeBus records transactions and answers reads from canned replies.
type FakeBus struct {
	mu sync.Mutex

	Number int

	// Txs contains every transaction in order.
	Txs []Tx

	// Replies maps address to the bytes a read returns. Register reads
	// look up RegReplies first.
	Replies    map[uint8][]byte
	RegReplies map[uint8]map[uint8][]byte

	// Err, if set, fails every transaction.
	Err error

	// Delay is slept inside every transaction.
	Delay time.Duration

	// MaxInFlight is the highest number of overlapping transactions seen.
	MaxInFlight int
	inFlight    int

	Closed bool
}

func newFakeBus(number int) *FakeBus {
	return &FakeBus{
		Number:     number,
		Replies:    make(map[uint8][]byte),
		RegReplies: make(map[uint8]map[uint8][]byte),
	}
}

// SetReply sets the bytes a register read of addr/reg returns.
func (b *FakeBus) SetReply(addr, reg uint8, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.RegReplies[addr] == nil {
		b.RegReplies[addr] = make(map[uint8][]byte)
	}
	b.RegReplies[addr][reg] = data
}

// SetErr makes every following transaction fail with err (nil clears it).
func (b *FakeBus) SetErr(err error) {
	b.mu.Lock()
	b.Err = err
	b.mu.Unlock()
}

// Transactions returns a copy of the recorded transactions.
func (b *FakeBus) Transactions() []Tx {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Tx(nil), b.Txs...)
}

func (b *FakeBus) do(tx Tx, buf []byte) error {
	b.mu.Lock()
	b.inFlight++
	if b.inFlight > b.MaxInFlight {
		b.MaxInFlight = b.inFlight
	}
	delay := b.Delay
	b.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.inFlight--
	b.Txs = append(b.Txs, tx)
	if b.Err != nil {
		return b.Err
	}

	reply := b.Replies[tx.Addr]
	if tx.HasReg {
		if r, ok := b.RegReplies[tx.Addr][tx.Reg]; ok {
			reply = r
		}
	}
	copy(buf, reply)
	return nil
}

func (b *FakeBus) Read(addr uint8, buf []byte) error {
	return b.do(Tx{Addr: addr, ReadLen: len(buf)}, buf)
}

func (b *FakeBus) ReadReg(addr, reg uint8, buf []byte) error {
	return b.do(Tx{Addr: addr, Reg: reg, HasReg: true, ReadLen: len(buf)}, buf)
}

func (b *FakeBus) Write(addr uint8, data []byte) error {
	return b.do(Tx{Addr: addr, Write: append([]byte(nil), data...)}, nil)
}

func (b *FakeBus) ReadByteReg(addr, reg uint8) (uint8, error) {
	buf := make([]byte, 1)
	err := b.do(Tx{Addr: addr, Reg: reg, HasReg: true, ReadLen: 1}, buf)
	return buf[0], err
}

func (b *FakeBus) WriteByteReg(addr, reg, value uint8) error {
	return b.do(Tx{Addr: addr, Reg: reg, HasReg: true, Write: []byte{value}}, nil)
}

func (b *FakeBus) Close() error {
	b.mu.Lock()
	b.Closed = true
	b.mu.Unlock()
	return nil
}

// FakeOpener creates FakeBuses on demand and counts opens per bus.
type FakeOpener struct {
	mu    sync.Mutex
	Buses map[int]*FakeBus
	Opens map[int]int

	// Missing lists bus numbers that fail to open.
	Missing map[int]bool
}

// NewFakeOpener creates an empty FakeOpener.
func NewFakeOpener() *FakeOpener {
	return &FakeOpener{
		Buses:   make(map[int]*FakeBus),
		Opens:   make(map[int]int),
		Missing: make(map[int]bool),
	}
}

func (o *FakeOpener) Open(bus int) (Bus, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Missing[bus] {
		return nil, fmt.Errorf("open i2c bus %d: no such device", bus)
	}
	o.Opens[bus]++
	b, ok := o.Buses[bus]
	if !ok {
		b = newFakeBus(bus)
		o.Buses[bus] = b
	}
	return b, nil
}

// Bus returns the FakeBus for number, creating it so replies can be
// scripted before the board opens it.
func (o *FakeOpener) Bus(number int) *FakeBus {
	o.mu.Lock()
	defer o.mu.Unlock()
	b, ok := o.Buses[number]
	if !ok {
		b = newFakeBus(number)
		o.Buses[number] = b
	}
	return b
}

// OpenCount returns how many times bus was opened.
func (o *FakeOpener) OpenCount(bus int) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.Opens[bus]
}
