package max30003

import (
	"errors"
	"fmt"
	"time"
)

func (dev *MAX30003) setCSLow() error {
	if err := dev.busy(); err != nil {
		return err
	}
	return dev.spi.SetCS(false)
}
func (dev *MAX30003) setCSHigh() error {
	if err := dev.busy(); err != nil {
		return err
	}
	return dev.spi.SetCS(true)
}

type xferResult struct {
	in  byte
	err error
}

// transfer exchanges one byte. With a transfer timeout set, a transport that
// never completes is reported as ErrTransferStall, and the bus is refused
// until that exchange returns and chip-select has been released.
func (dev *MAX30003) transfer(out byte) (byte, error) {
	if err := dev.busy(); err != nil {
		return 0, err
	}
	if dev.xferTimeout <= 0 {
		return dev.spi.Transfer(out)
	}

	done := make(chan xferResult, 1)
	go func() {
		in, err := dev.spi.Transfer(out)
		done <- xferResult{in: in, err: err}
	}()

	timer := time.NewTimer(dev.xferTimeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return res.in, res.err
	case <-timer.C:
		dev.stalled = dev.recoverStall(done)
		return 0, fmt.Errorf("%w: byte 0x%02X not clocked within %s", ErrTransferStall, out, dev.xferTimeout)
	}
}

// recoverStall waits for an abandoned exchange, then releases chip-select.
// The returned channel closes once the transport is idle again.
func (dev *MAX30003) recoverStall(done <-chan xferResult) chan struct{} {
	idle := make(chan struct{})
	go func() {
		defer close(idle)
		res := <-done
		err := errors.Join(res.err, dev.spi.SetCS(true))
		dev.log.Warn().Err(err).Msg("stalled transfer returned, bus released")
	}()
	return idle
}

// busy fails while a stalled exchange is still in flight. Must hold dev.mu.
func (dev *MAX30003) busy() error {
	if dev.stalled == nil {
		return nil
	}
	select {
	case <-dev.stalled:
		dev.stalled = nil
		return nil
	default:
		return fmt.Errorf("%w: previous transfer still in flight", ErrTransferStall)
	}
}

// transferAll sends out and returns what came back, stopping at the first
// failed byte.
func (dev *MAX30003) transferAll(out []byte, in []byte) error {
	for i, b := range out {
		r, err := dev.transfer(b)
		if err != nil {
			return err
		}
		if in != nil {
			in[i] = r
		}
	}
	return nil
}
