package bus

import (
	"fmt"
	"sync"

	"github.com/cjeanneret/ArduGo/internal/debug"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

var (
	hostOnce sync.Once
	hostErr  error
)

// initHost loads the periph host drivers once per process.
func initHost() error {
	hostOnce.Do(func() {
		if _, err := host.Init(); err != nil {
			hostErr = fmt.Errorf("periph host init: %w", err)
		}
	})
	return hostErr
}

// PeriphSPI is a register bus on a periph.io SPI connection. The port's
// own CS line frames each transaction.
type PeriphSPI struct {
	conn spi.Conn
	port spi.PortCloser // nil when built around an existing conn
}

// OpenPeriphSPI opens the named SPI port ("" for the first one, or e.g.
// "/dev/spidev0.0" or "SPI0.0") and connects at speed in the given mode
// with 8-bit words.
func OpenPeriphSPI(name string, speed physic.Frequency, mode spi.Mode) (*PeriphSPI, error) {
	if err := initHost(); err != nil {
		return nil, err
	}
	port, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open spi port %q: %w", name, err)
	}
	conn, err := port.Connect(speed, mode, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("connect spi port %q: %w", name, err)
	}
	debug.Info("Opened SPI port %s at %s", port, speed)
	return &PeriphSPI{conn: conn, port: port}, nil
}

// NewPeriphSPI wraps an already connected SPI conn.
func NewPeriphSPI(conn spi.Conn) *PeriphSPI {
	return &PeriphSPI{conn: conn}
}

// Transact runs w followed by len(r) read cycles as one full-duplex Tx.
func (p *PeriphSPI) Transact(w, r []byte) error {
	return duplex(w, r, p.conn.Tx)
}

// Close closes the port if this value opened it.
func (p *PeriphSPI) Close() error {
	if p.port == nil {
		return nil
	}
	return p.port.Close()
}

func (p *PeriphSPI) String() string {
	return fmt.Sprintf("periph %v", p.conn)
}

// PeriphI2C is a sensor bus on a periph.io I2C bus.
type PeriphI2C struct {
	bus i2c.BusCloser
}

// OpenPeriphI2C opens the named I2C bus ("" for the first one, or e.g.
// "1" or "/dev/i2c-1"). A zero speed keeps the bus default.
func OpenPeriphI2C(name string, speed physic.Frequency) (*PeriphI2C, error) {
	if err := initHost(); err != nil {
		return nil, err
	}
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", name, err)
	}
	if speed > 0 {
		if err := b.SetSpeed(speed); err != nil {
			// Linux i2c-dev cannot change the clock; keep the kernel setting.
			debug.Verbose("I2C %s: speed %s not applied: %v", b, speed, err)
		}
	}
	debug.Info("Opened I2C bus %s", b)
	return &PeriphI2C{bus: b}, nil
}

// NewPeriphI2C wraps an already opened I2C bus.
func NewPeriphI2C(b i2c.BusCloser) *PeriphI2C {
	return &PeriphI2C{bus: b}
}

func (p *PeriphI2C) Tx(addr uint16, w, r []byte) error {
	return p.bus.Tx(addr, w, r)
}

func (p *PeriphI2C) Close() error { return p.bus.Close() }

func (p *PeriphI2C) String() string {
	return fmt.Sprintf("periph %s", p.bus)
}
