package hardware

import (
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"

	"github.com/insolesplug-ops/selimcam/internal/errors"
)

// I2CRegisterBus adapts a periph I2C device to the haptic driver's
// register write interface. One register write is a two byte transaction:
// register address then value.
type I2CRegisterBus struct {
	bus       i2c.BusCloser
	dev       *i2c.Dev
	mu        sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// OpenI2C opens the named bus and addresses the device. An empty name
// selects the platform's first available bus.
func OpenI2C(busName string, addr uint16) (*I2CRegisterBus, error) {
	if err := initHost(); err != nil {
		return nil, errors.New(err).
			Component("hardware").
			Category(errors.CategoryHardware).
			Context("operation", "host-init").
			Build()
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, errors.New(err).
			Component("hardware").
			Category(errors.CategoryActuatorBus).
			Context("bus", busName).
			Context("address", addr).
			Build()
	}
	return &I2CRegisterBus{
		bus: bus,
		dev: &i2c.Dev{Bus: bus, Addr: addr},
	}, nil
}

// WriteRegister writes one value to one register. The mutex serializes
// transactions; the haptic driver is the only steady-state caller but the
// diagnostics probe may touch the bus too.
func (b *I2CRegisterBus) WriteRegister(reg, value byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.dev.Tx([]byte{reg, value}, nil); err != nil {
		return errors.New(err).
			Component("hardware").
			Category(errors.CategoryActuatorBus).
			Context("register", reg).
			Build()
	}
	return nil
}

// ReadRegister reads one register. Used by the diagnostics probe to
// check device presence; the haptic path is write-only.
func (b *I2CRegisterBus) ReadRegister(reg byte) (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out [1]byte
	if err := b.dev.Tx([]byte{reg}, out[:]); err != nil {
		return 0, errors.New(err).
			Component("hardware").
			Category(errors.CategoryActuatorBus).
			Context("register", reg).
			Build()
	}
	return out[0], nil
}

// Close releases the bus handle. Safe to call more than once.
func (b *I2CRegisterBus) Close() error {
	b.closeOnce.Do(func() {
		b.closeErr = b.bus.Close()
	})
	return b.closeErr
}
