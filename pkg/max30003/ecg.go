package max30003

import "fmt"

// ECG is an initialized MAX30003. It only comes from a successful
// Initialize, so holding one means the chip answered and produced a sample.
type ECG struct {
	dev          *MAX30003
	gain         Gain
	verification Verification
}

// Device returns the underlying driver for register level access.
func (e *ECG) Device() *MAX30003 {
	return e.dev
}

// Gain returns the gain that was programmed and is used for conversion.
func (e *ECG) Gain() Gain {
	return e.gain
}

// Verification returns the configuration read back during Initialize.
func (e *ECG) Verification() Verification {
	return e.verification
}

// IsReady reads STATUS and reports whether a sample is waiting. Every call is
// a fresh bus transaction.
func (e *ECG) IsReady() (bool, error) {
	e.dev.mu.Lock()
	defer e.dev.mu.Unlock()
	if e.dev.closed {
		return false, ErrClosed
	}
	return e.dev.isReady()
}

func (dev *MAX30003) isReady() (bool, error) {
	status, err := dev.readRegister(RegStatus)
	if err != nil {
		return false, err
	}
	return status&StatusEINT != 0, nil
}

// ReadSample pops one sign extended 24-bit word from the ECG FIFO. Call it
// after IsReady reported true; otherwise the word may be stale or tagged
// empty (see ETag).
func (e *ECG) ReadSample() (int32, error) {
	e.dev.mu.Lock()
	defer e.dev.mu.Unlock()
	if e.dev.closed {
		return 0, ErrClosed
	}
	return e.dev.readSample()
}

// readSample performs the FIFO read. Unlike register reads there is no
// CS-high setup delay before the frame.
func (dev *MAX30003) readSample() (int32, error) {
	reply, err := dev.readFrame(cmdFIFORead)
	if err != nil {
		return 0, fmt.Errorf("max30003: fifo read: %w", err)
	}
	dev.regLR[RegECGFIFO] = word24(reply)
	return Convert24To32(reply[:]), nil
}

// Millivolts converts a FIFO word with the programmed gain.
func (e *ECG) Millivolts(raw int32) float64 {
	return ConvertToMillivolts(raw, e.gain)
}
