package max30003

import "fmt"

// Gain is the CNFG_ECG GAIN code.
type Gain byte

const (
	Gain20  Gain = iota // 20 V/V
	Gain40              // 40 V/V
	Gain80              // 80 V/V
	Gain160             // 160 V/V
)

func (g Gain) valid() bool {
	return g <= Gain160
}

// VPerV returns the amplification factor of g.
func (g Gain) VPerV() float64 {
	if !g.valid() {
		return 0
	}
	return float64(g.factor())
}

func (g Gain) String() string {
	if !g.valid() {
		return fmt.Sprintf("(invalid gain %d)", byte(g))
	}
	return fmt.Sprintf("%d V/V", g.factor())
}

func (g Gain) factor() int {
	return 20 << g
}

// ParseGain maps an amplification factor (20, 40, 80, 160) to its code.
func ParseGain(vPerV int) (Gain, error) {
	for g := Gain20; g <= Gain160; g++ {
		if g.factor() == vPerV {
			return g, nil
		}
	}
	return 0, fmt.Errorf("max30003: %d is not a valid gain, choose from 20, 40, 80, 160", vPerV)
}

// Convert24To32 interprets a 3-byte, 24-bit signed value
// in two's complement form, MSB first, as a 32-bit int.
func Convert24To32(data []byte) int32 {
	var u32 uint32
	u32 |= uint32(data[0]) << 16
	u32 |= uint32(data[1]) << 8
	u32 |= uint32(data[2])
	return signExtend24(u32)
}

func signExtend24(u32 uint32) int32 {
	u32 &= regValueMask
	if (u32 & 0x800000) != 0 {
		u32 |= 0xFF000000
	}
	return int32(u32)
}

// ECGField extracts the signed 18-bit ECG code held in bits 23-6 of a FIFO
// word.
func ECGField(raw int32) int32 {
	field := int32((uint32(raw) >> ecgFieldShift) & ecgFieldMask)
	if field&ecgSignBit != 0 {
		field -= ecgModulus
	}
	return field
}

// ETag returns the ETAG bits of a FIFO word.
func ETag(raw int32) byte {
	return byte(uint32(raw)>>etagShift) & etagMask
}

// ToMillivolts converts a FIFO word to millivolts at the default 20 V/V gain.
func ToMillivolts(raw int32) float64 {
	return ConvertToMillivolts(raw, Gain20)
}

// ConvertToMillivolts converts a FIFO word to millivolts.
// mV = code * Vref / (2^17 * gain) with Vref = 1.0 V.
func ConvertToMillivolts(raw int32, g Gain) float64 {
	return float64(ECGField(raw)) * vRefMillivolt / (ecgFullScale * g.VPerV())
}
