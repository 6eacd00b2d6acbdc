package max30003

import (
	"errors"
	"fmt"
)

var registerNames = map[Register]string{
	RegNoOp:      "NO_OP",
	RegStatus:    "STATUS",
	RegEnInt:     "EN_INT",
	RegEnInt2:    "EN_INT2",
	RegMngrInt:   "MNGR_INT",
	RegMngrDyn:   "MNGR_DYN",
	RegSwReset:   "SW_RST",
	RegSynch:     "SYNCH",
	RegFIFOReset: "FIFO_RST",
	RegInfo:      "INFO",
	RegCnfgGen:   "CNFG_GEN",
	RegCnfgCal:   "CNFG_CAL",
	RegCnfgEMux:  "CNFG_EMUX",
	RegCnfgECG:   "CNFG_ECG",
	RegCnfgRtoR1: "CNFG_RTOR1",
	RegCnfgRtoR2: "CNFG_RTOR2",
	RegECGFIFO:   "ECG_FIFO",
}

func (r Register) String() string {
	if name, ok := registerNames[r]; ok {
		return name
	}
	return fmt.Sprintf("REG_0x%02X", byte(r))
}

func (r Register) valid() bool {
	return r < NumRegisters
}

func (r Register) command(rw byte) byte {
	return byte(r)<<1 | rw
}

// LastRead returns the value most recently read from reg.
func (dev *MAX30003) LastRead(reg Register) uint32 {
	if !reg.valid() {
		return 0
	}
	dev.mu.RLock()
	v := dev.regLR[reg]
	dev.mu.RUnlock()
	return v
}

// LastWritten returns the value most recently written to reg.
func (dev *MAX30003) LastWritten(reg Register) uint32 {
	if !reg.valid() {
		return 0
	}
	dev.mu.RLock()
	v := dev.regLW[reg]
	dev.mu.RUnlock()
	return v
}

// Registers returns the last read value of every register that has a name.
func (dev *MAX30003) Registers() map[Register]uint32 {
	dev.mu.RLock()
	r := make(map[Register]uint32, len(knownRegisters))
	for _, reg := range knownRegisters {
		r[reg] = dev.regLR[reg]
	}
	dev.mu.RUnlock()
	return r
}

// WriteRegister writes the low 24 bits of value to reg in one chip-select
// frame, including the settling delay.
func (dev *MAX30003) WriteRegister(reg Register, value uint32) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.closed {
		return ErrClosed
	}
	return dev.writeRegister(reg, value)
}

// ReadRegister reads the 24-bit value of reg in one chip-select frame.
func (dev *MAX30003) ReadRegister(reg Register) (uint32, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.closed {
		return 0, ErrClosed
	}
	return dev.readRegister(reg)
}

// writeRegister writes a single register [reg], with the given value.
func (dev *MAX30003) writeRegister(reg Register, value uint32) error {
	if !reg.valid() {
		return fmt.Errorf("%w: 0x%02X", ErrBadRegister, byte(reg))
	}

	if err := dev.setCSHigh(); err != nil {
		return err
	}
	dev.sleep(csSetupWrite)

	if err := dev.setCSLow(); err != nil {
		return err
	}
	dev.sleep(csLead)

	frame := getFrame()
	defer putFrame(frame)

	frame[0] = reg.command(rwWrite)
	frame[1] = byte(value >> 16)
	frame[2] = byte(value >> 8)
	frame[3] = byte(value)

	if err := dev.transferAll(frame, nil); err != nil {
		return errors.Join(
			fmt.Errorf("max30003: write %s: %w", reg, err),
			dev.setCSHigh(),
		)
	}

	// let the 32nd clock finish before raising CS
	dev.sleep(csTrail)
	if err := dev.setCSHigh(); err != nil {
		return err
	}

	dev.regLW[reg] = value & regValueMask
	dev.sleep(writeSettle)
	return nil
}

// readRegister reads a single register [reg].
func (dev *MAX30003) readRegister(reg Register) (uint32, error) {
	if !reg.valid() {
		return 0, fmt.Errorf("%w: 0x%02X", ErrBadRegister, byte(reg))
	}

	if err := dev.setCSHigh(); err != nil {
		return 0, err
	}
	dev.sleep(csSetupRead)

	reply, err := dev.readFrame(reg.command(rwRead))
	if err != nil {
		return 0, fmt.Errorf("max30003: read %s: %w", reg, err)
	}

	value := word24(reply)
	dev.regLR[reg] = value
	return value, nil
}

// readFrame asserts CS, sends cmd followed by three dummy bytes and returns
// the three reply bytes MSB first. CS is released on every path.
func (dev *MAX30003) readFrame(cmd byte) (reply [3]byte, err error) {
	if err = dev.setCSLow(); err != nil {
		return reply, err
	}
	dev.sleep(csLead)

	frame := getFrame()
	defer putFrame(frame)

	frame[0] = cmd
	in := getFrame()
	defer putFrame(in)

	if err = dev.transferAll(frame, in); err != nil {
		return reply, errors.Join(err, dev.setCSHigh())
	}

	dev.sleep(csTrail)
	if err = dev.setCSHigh(); err != nil {
		return reply, err
	}

	copy(reply[:], in[1:4])
	return reply, nil
}

func word24(b [3]byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

// ReadAllRegisters reads back every named configuration and status register.
func (dev *MAX30003) ReadAllRegisters() (registers map[Register]uint32, err error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.closed {
		return nil, ErrClosed
	}
	registers = make(map[Register]uint32, len(knownRegisters))
	for _, reg := range knownRegisters {
		val, err := dev.readRegister(reg)
		if err != nil {
			return nil, err
		}
		registers[reg] = val
	}
	return registers, nil
}
