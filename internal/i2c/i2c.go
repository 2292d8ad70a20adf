// Package i2c opens Linux I2C buses by number and performs raw and
// register-addressed transfers on them.
package i2c

// Bus is one open I2C bus.
type Bus interface {
	// Read fills buf from the device without addressing a register.
	Read(addr uint8, buf []byte) error

	// ReadReg writes reg then reads len(buf) bytes (block read).
	ReadReg(addr, reg uint8, buf []byte) error

	// Write sends data as a single transaction.
	Write(addr uint8, data []byte) error

	// ReadByteReg reads one byte from reg.
	ReadByteReg(addr, reg uint8) (uint8, error)

	// WriteByteReg writes value to reg.
	WriteByteReg(addr, reg, value uint8) error

	Close() error
}

// Opener opens a bus by its number (the N in /dev/i2c-N).
type Opener interface {
	Open(bus int) (Bus, error)
}
