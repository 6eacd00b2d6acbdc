package max30003

import "time"

// Reset issues SW_RST. The chip returns to its power-on defaults and stops
// converting; an existing ECG handle is stale until Initialize runs again.
func (dev *MAX30003) Reset() error {
	return dev.strobe(RegSwReset, resetSettle)
}

// Synch restarts the conversion pipeline and empties the FIFO.
func (dev *MAX30003) Synch() error {
	return dev.strobe(RegSynch, synchSettle)
}

// ResetFIFO empties the ECG FIFO and clears an overflow without disturbing
// the running conversion.
func (dev *MAX30003) ResetFIFO() error {
	return dev.strobe(RegFIFOReset, 0)
}

// strobe writes zero to a command register and waits for it to take effect.
func (dev *MAX30003) strobe(reg Register, settle time.Duration) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.closed {
		return ErrClosed
	}
	if err := dev.writeRegister(reg, 0); err != nil {
		return err
	}
	if settle > 0 {
		dev.sleep(settle)
	}
	return nil
}
