// Package periphspi is a MAX30003 bus on a Linux spidev port, with
// chip-select driven from a separate GPIO so a whole four byte frame stays
// selected while the driver clocks it one byte at a time.
package periphspi

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// DefaultSpeed is well under the chip's 12 MHz limit and long cables.
const DefaultSpeed = 1 * physic.MegaHertz

var ErrNoCSPin = errors.New("periphspi: chip select pin not found")

// Port is an opened spidev connection plus its chip-select pin.
type Port struct {
	port spi.PortCloser
	conn spi.Conn
	cs   gpio.PinOut
	log  zerolog.Logger

	w [1]byte
	r [1]byte
}

// Option configures a Port.
type Option func(p *Port)

// WithLogger traces configuration.
func WithLogger(log zerolog.Logger) Option {
	return func(p *Port) {
		p.log = log
	}
}

// Open initializes the host drivers, opens portName ("" for the first
// port) in SPI mode 0 with hardware chip-select disabled, and claims the GPIO
// named csName as chip-select.
func Open(portName, csName string, hz physic.Frequency, opts ...Option) (*Port, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periphspi: host init: %w", err)
	}

	pin := gpioreg.ByName(csName)
	if pin == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoCSPin, csName)
	}

	p, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("periphspi: open %q: %w", portName, err)
	}

	port, err := newPort(p, pin, hz, opts...)
	if err != nil {
		return nil, errors.Join(err, p.Close())
	}
	return port, nil
}

func newPort(p spi.PortCloser, cs gpio.PinOut, hz physic.Frequency, opts ...Option) (*Port, error) {
	port := &Port{port: p, cs: cs, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(port)
	}

	if hz <= 0 {
		hz = DefaultSpeed
	}

	var err error
	if port.conn, err = p.Connect(hz, spi.Mode0|spi.NoCS, 8); err != nil {
		return nil, fmt.Errorf("periphspi: connect at %s: %w", hz, err)
	}
	if err = cs.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("periphspi: park chip select %s: %w", cs, err)
	}

	port.log.Debug().Stringer("port", p).Stringer("cs", cs).Stringer("speed", hz).Msg("spi connected")
	return port, nil
}

// Transfer clocks one byte full duplex.
func (p *Port) Transfer(out byte) (byte, error) {
	p.w[0] = out
	if err := p.conn.Tx(p.w[:], p.r[:]); err != nil {
		return 0, err
	}
	return p.r[0], nil
}

// SetCS drives the chip-select GPIO. true is high.
func (p *Port) SetCS(high bool) error {
	return p.cs.Out(gpio.Level(high))
}

// Close releases the spidev port. The chip-select pin is left high.
func (p *Port) Close() error {
	return errors.Join(p.cs.Out(gpio.High), p.port.Close())
}
