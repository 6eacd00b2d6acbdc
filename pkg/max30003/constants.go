package max30003

import "time"

// Constants from the datasheet

// Register is a 6-bit MAX30003 register address.
type Register byte

// Register Addresses
const (
	// RegNoOp is the no-operation register
	RegNoOp Register = 0x00
	// RegStatus is the STATUS register (EINT, EOVF, ...)
	RegStatus Register = 0x01
	// RegEnInt is the EN_INT (INTB enable) register
	RegEnInt Register = 0x02
	// RegEnInt2 is the EN_INT2 (INT2B enable) register
	RegEnInt2 Register = 0x03
	// RegMngrInt is the MNGR_INT register
	RegMngrInt Register = 0x04
	// RegMngrDyn is the MNGR_DYN register
	RegMngrDyn Register = 0x05
	// RegSwReset is the SW_RST register, any write resets the chip
	RegSwReset Register = 0x08
	// RegSynch is the SYNCH register, any write restarts the conversion pipeline
	RegSynch Register = 0x09
	// RegFIFOReset is the FIFO_RST register
	RegFIFOReset Register = 0x0A
	// RegInfo is the read-only INFO register (part revision)
	RegInfo Register = 0x0F
	// RegCnfgGen is the general configuration register (FMSTR, EN_ECG, ...)
	RegCnfgGen Register = 0x10
	// RegCnfgCal is the CNFG_CAL register
	RegCnfgCal Register = 0x12
	// RegCnfgEMux is the ECG input multiplexer register
	RegCnfgEMux Register = 0x14
	// RegCnfgECG is the ECG channel configuration register (RATE, GAIN, ...)
	RegCnfgECG Register = 0x15
	// RegCnfgRtoR1 is the first R-to-R configuration register
	RegCnfgRtoR1 Register = 0x1D
	// RegCnfgRtoR2 is the second R-to-R configuration register
	RegCnfgRtoR2 Register = 0x1E
	// RegECGFIFO is the ECG sample queue. Reading it pops one 24-bit word.
	RegECGFIFO Register = 0x21

	// NumRegisters is the size of the 6-bit address space.
	NumRegisters = 0x40
)

// knownRegisters are safe to read back for debugging; the FIFO is left out
// because reading it consumes a sample.
var knownRegisters = []Register{
	RegStatus, RegEnInt, RegEnInt2, RegMngrInt, RegMngrDyn, RegInfo,
	RegCnfgGen, RegCnfgCal, RegCnfgEMux, RegCnfgECG, RegCnfgRtoR1, RegCnfgRtoR2,
}

// Command byte framing: address in bits 7-1, R/W in bit 0.
const (
	rwWrite = 0x00
	rwRead  = 0x01

	// cmdFIFORead reads the oldest queued sample (0x43).
	cmdFIFORead = byte(RegECGFIFO)<<1 | rwRead

	regValueMask = 0xFFFFFF
)

// Bits for the STATUS register
const (
	StatusEINT uint32 = 1 << 23 // ECG FIFO has samples
	StatusEOVF uint32 = 1 << 22 // ECG FIFO overflowed
)

// Bits for the CNFG_GEN register
const (
	GenFMSTRShift        = 20
	GenFMSTRMask         = 0x03
	GenENECG      uint32 = 1 << 19
)

// FMSTR master clock codes
const (
	FMSTR32768  byte = 0b00 // 32768 Hz
	FMSTR32000  byte = 0b01 // 32000 Hz
	FMSTR32000B byte = 0b10
	FMSTR31968  byte = 0b11 // 31968.78 Hz
)

// Bits for the CNFG_ECG register
const (
	ECGRateShift = 22
	ECGRateMask  = 0x03
	ECGGainShift = 16
	ECGGainMask  = 0x03
)

// RATE codes. Rate125 is 125 sps with FMSTR32000.
const (
	Rate512 byte = 0b00
	Rate256 byte = 0b01
	Rate125 byte = 0b10
)

// ETAG codes, bits 5-3 of a FIFO word.
const (
	etagShift = 3
	etagMask  = 0x07

	ETagValid    byte = 0b000
	ETagFast     byte = 0b001
	ETagValidEOF byte = 0b010
	ETagFastEOF  byte = 0b011
	ETagEmpty    byte = 0b110
	ETagOverflow byte = 0b111
)

// The single acquisition profile this driver programs.
const (
	profileFMSTR = FMSTR32000
	profileRate  = Rate125
)

// Conversion constants: 1.0 V reference, 18-bit signed ECG code.
const (
	ecgFieldShift = 6
	ecgFieldMask  = 0x3FFFF
	ecgSignBit    = 0x20000
	ecgModulus    = 0x40000
	ecgFullScale  = 131072.0 // 2^17
	vRefMillivolt = 1000.0
)

// Bus timing. The chip's minimums are far below these; they are only ever
// loosened.
const (
	csSetupWrite = 2 * time.Millisecond
	csSetupRead  = 1 * time.Millisecond
	csLead       = 1 * time.Millisecond
	csTrail      = 1 * time.Millisecond
	writeSettle  = 10 * time.Millisecond
)

// Initialization timing.
const (
	powerSettle       = 500 * time.Millisecond
	resetSettle       = 500 * time.Millisecond
	ecgCfgSettle      = 100 * time.Millisecond
	genCfgSettle      = 200 * time.Millisecond
	synchSettle       = 200 * time.Millisecond
	emuxSettle        = 100 * time.Millisecond
	finalSynchSettle  = 500 * time.Millisecond
	readyPollInterval = 10 * time.Millisecond

	// ReadyPollLimit bounds the wait for the first sample after SYNCH.
	ReadyPollLimit = 100

	// DefaultTransferTimeout bounds a single byte exchange.
	DefaultTransferTimeout = 250 * time.Millisecond
)
