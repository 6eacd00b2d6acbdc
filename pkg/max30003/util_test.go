package max30003

import (
	"math"
	"testing"
)

func TestConvert24To32(t *testing.T) {
	t.Run("PositiveValue", func(t *testing.T) {
		data := []byte{0x7F, 0xFF, 0xFF}
		result := Convert24To32(data)
		if result != int32(8388607) {
			t.Errorf("expected 8388607, got %d", result)
		}
	})

	t.Run("NegativeValue", func(t *testing.T) {
		data := []byte{0x80, 0x00, 0x00}
		result := Convert24To32(data)
		if result != int32(-8388608) {
			t.Errorf("expected -8388608, got %d", result)
		}
	})

	t.Run("ZeroValue", func(t *testing.T) {
		data := []byte{0x00, 0x00, 0x00}
		result := Convert24To32(data)
		if result != int32(0) {
			t.Errorf("expected 0, got %d", result)
		}
	})

	t.Run("AllOnes", func(t *testing.T) {
		data := []byte{0xFF, 0xFF, 0xFF}
		result := Convert24To32(data)
		if result != int32(-1) {
			t.Errorf("expected -1, got %d", result)
		}
	})

	t.Run("IgnoresUpperByte", func(t *testing.T) {
		if got := signExtend24(0xAB7FFFFF); got != 8388607 {
			t.Errorf("expected 8388607, got %d", got)
		}
		if got := signExtend24(0x00800001); got != -8388607 {
			t.Errorf("expected -8388607, got %d", got)
		}
	})

	t.Run("Range", func(t *testing.T) {
		for u := uint32(0); u <= regValueMask; u += 0x1FFF {
			got := signExtend24(u)
			if got < -8388608 || got > 8388607 {
				t.Fatalf("0x%06X extended out of range: %d", u, got)
			}
			if uint32(got)&regValueMask != u {
				t.Fatalf("0x%06X lost its low 24 bits: 0x%08X", u, uint32(got))
			}
		}
	})
}

func TestECGField(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		for _, code := range []int32{0, 1, -1, 4242, -4242, 131071, -131072} {
			for low := uint32(0); low < 64; low += 7 {
				word := (uint32(code)&ecgFieldMask)<<ecgFieldShift | low
				if got := ECGField(signExtend24(word)); got != code {
					t.Errorf("code %d with low bits 0x%02X: got %d", code, low, got)
				}
			}
		}
	})

	t.Run("ETag", func(t *testing.T) {
		word := uint32(1234)<<ecgFieldShift | uint32(ETagEmpty)<<etagShift
		if tag := ETag(signExtend24(word)); tag != ETagEmpty {
			t.Errorf("expected empty tag, got 0b%03b", tag)
		}
		if tag := ETag(-1); tag != ETagOverflow {
			t.Errorf("expected overflow tag for all ones, got 0b%03b", tag)
		}
	})
}

func TestToMillivolts(t *testing.T) {
	const tolerance = 0.000001

	t.Run("MaxPositiveCode", func(t *testing.T) {
		result := ToMillivolts(int32(131071 << 6))
		expected := 49.99961853
		if math.Abs(result-expected) > tolerance {
			t.Errorf("expected %f, got %f", expected, result)
		}
	})

	t.Run("MaxNegativeCode", func(t *testing.T) {
		result := ToMillivolts(signExtend24(uint32(0x20000) << 6))
		if result != -50.0 {
			t.Errorf("expected -50.0, got %f", result)
		}
	})

	t.Run("ZeroCode", func(t *testing.T) {
		if result := ToMillivolts(0); result != 0.0 {
			t.Errorf("expected 0.0, got %f", result)
		}
	})

	t.Run("MinusOneLSB", func(t *testing.T) {
		result := ToMillivolts(int32(-1 << 6))
		expected := -1000.0 / (131072 * 20)
		if math.Abs(result-expected) > tolerance {
			t.Errorf("expected %f, got %f", expected, result)
		}
	})

	t.Run("TagBitsIgnored", func(t *testing.T) {
		a := ToMillivolts(int32(1000 << 6))
		b := ToMillivolts(int32(1000<<6 | 0x3F))
		if a != b {
			t.Errorf("tag bits changed the result: %f != %f", a, b)
		}
	})

	t.Run("Pure", func(t *testing.T) {
		raw := int32(-777 << 6)
		first := ToMillivolts(raw)
		for i := 0; i < 10; i++ {
			if again := ToMillivolts(raw); again != first {
				t.Fatalf("result changed between calls: %f != %f", first, again)
			}
		}
	})

	t.Run("GainDivisor", func(t *testing.T) {
		raw := int32(65536 << 6)
		for _, g := range []Gain{Gain20, Gain40, Gain80, Gain160} {
			expected := 65536 * 1000.0 / (131072 * g.VPerV())
			result := ConvertToMillivolts(raw, g)
			if math.Abs(result-expected) > tolerance {
				t.Errorf("%s: expected %f, got %f", g, expected, result)
			}
		}
		if ConvertToMillivolts(raw, Gain40) != ToMillivolts(raw)/2 {
			t.Error("40 V/V should halve the 20 V/V reading")
		}
	})
}

func TestGain(t *testing.T) {
	t.Run("Parse", func(t *testing.T) {
		for _, tc := range []struct {
			in   int
			want Gain
		}{{20, Gain20}, {40, Gain40}, {80, Gain80}, {160, Gain160}} {
			g, err := ParseGain(tc.in)
			if err != nil {
				t.Fatalf("ParseGain(%d): %v", tc.in, err)
			}
			if g != tc.want {
				t.Errorf("ParseGain(%d): expected %s, got %s", tc.in, tc.want, g)
			}
		}
		if _, err := ParseGain(50); err == nil {
			t.Error("expected error for 50 V/V")
		}
	})

	t.Run("String", func(t *testing.T) {
		if s := Gain80.String(); s != "80 V/V" {
			t.Errorf("expected 80 V/V, got %s", s)
		}
		if Gain(7).VPerV() != 0 {
			t.Error("invalid gain should have no factor")
		}
	})

	t.Run("ConfigWord", func(t *testing.T) {
		if v := ecgConfigValue(Gain20); v != 0x800000 {
			t.Errorf("expected CNFG_ECG 0x800000, got 0x%06X", v)
		}
		if v := ecgConfigValue(Gain160); v != 0x830000 {
			t.Errorf("expected CNFG_ECG 0x830000, got 0x%06X", v)
		}
		if v := genConfigValue(); v != 0x180000 {
			t.Errorf("expected CNFG_GEN 0x180000, got 0x%06X", v)
		}
	})
}
