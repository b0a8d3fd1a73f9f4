package sensor

import (
	"context"

	"codeberg.org/mutker/sensorctl/internal/errors"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	host "periph.io/x/host/v3"
)

// I2CBus talks to the sensor's SCCB port: 16-bit register address, 8-bit data.
type I2CBus struct {
	dev    *i2c.Dev
	closer i2c.BusCloser
}

// OpenI2C opens a named I2C bus (empty selects the first one) through periph.
func OpenI2C(name string, addr uint16) (*I2CBus, error) {
	errFactory := errors.New()

	if _, err := host.Init(); err != nil {
		return nil, errFactory.Wrap(ErrBusOpen, err)
	}

	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, errFactory.Wrap(ErrBusOpen, err)
	}

	return &I2CBus{dev: &i2c.Dev{Bus: bus, Addr: addr}, closer: bus}, nil
}

// NewI2CBus wraps an already opened bus.
func NewI2CBus(bus i2c.Bus, addr uint16) *I2CBus {
	return &I2CBus{dev: &i2c.Dev{Bus: bus, Addr: addr}}
}

func (b *I2CBus) ReadRegister(_ context.Context, addr uint16) (byte, error) {
	r := make([]byte, 1)
	if err := b.dev.Tx([]byte{byte(addr >> 8), byte(addr)}, r); err != nil {
		return 0, err
	}

	return r[0], nil
}

func (b *I2CBus) WriteRegister(_ context.Context, addr uint16, value byte) error {
	return b.dev.Tx([]byte{byte(addr >> 8), byte(addr), value}, nil)
}

func (b *I2CBus) String() string {
	return b.dev.String()
}

func (b *I2CBus) Close() error {
	if b.closer == nil {
		return nil
	}

	return b.closer.Close()
}
