package ft232h

import (
	"errors"
	"fmt"

	"github.com/yunginnanet/ft232h"
)

// SetCSPin claims an ACBUS pin as chip-select and parks it high.
func (ft *FT232H) SetCSPin(pin uint) error {
	ft.csPin = ft232h.CPin(pin)
	ft.log.Debug().Str("pin", ft.csPin.String()).Any("pos", ft.csPin.Pos()).Msg("cs set")
	if err := ft.GPIO.ConfigPin(ft.csPin, ft232h.Output, true); err != nil {
		return fmt.Errorf("configure CS pin %s: %w", ft.csPin, err)
	}
	ft.csSet = true
	return nil
}

func (ft *FT232H) CSPin() ft232h.CPin {
	return ft.csPin
}

// SetCS drives the chip-select pin. true is high.
func (ft *FT232H) SetCS(high bool) error {
	if !ft.csSet {
		return errors.New("chip select pin not set")
	}
	return ft.FT232H.GPIO.Set(ft.csPin, high)
}

// Transfer clocks one byte out and returns the byte clocked in during the
// same eight cycles. The MPSSE read buffer only ever holds that one byte.
func (ft *FT232H) Transfer(out byte) (byte, error) {
	in, err := ft.SPI.Swap([]byte{out}, false, false)
	if err != nil {
		return 0, err
	}
	if len(in) != 1 {
		return 0, fmt.Errorf("short exchange: got %d bytes", len(in))
	}
	return in[0], nil
}
