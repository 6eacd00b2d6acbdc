package max30003

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Verification is the configuration the chip reported back after its first
// sample.
type Verification struct {
	CnfgGen uint32
	CnfgECG uint32

	FMSTR byte
	Rate  byte
	Gain  Gain

	wantGain Gain
}

func newVerification(gen, ecg uint32, want Gain) Verification {
	return Verification{
		CnfgGen:  gen,
		CnfgECG:  ecg,
		FMSTR:    byte(gen>>GenFMSTRShift) & GenFMSTRMask,
		Rate:     byte(ecg>>ECGRateShift) & ECGRateMask,
		Gain:     Gain(byte(ecg>>ECGGainShift) & ECGGainMask),
		wantGain: want,
	}
}

// Matches reports whether FMSTR, RATE and GAIN are the programmed codes.
func (v Verification) Matches() bool {
	return v.Err() == nil
}

// Err lists every mismatched field, wrapping ErrConfigMismatch. It is nil
// when the chip accepted the profile as written.
func (v Verification) Err() error {
	var errs []error
	if v.FMSTR != profileFMSTR {
		errs = append(errs, fmt.Errorf("FMSTR is %d, want %d", v.FMSTR, profileFMSTR))
	}
	if v.Rate != profileRate {
		errs = append(errs, fmt.Errorf("RATE is %d, want %d", v.Rate, profileRate))
	}
	if v.Gain != v.wantGain {
		errs = append(errs, fmt.Errorf("GAIN is %s, want %s", v.Gain, v.wantGain))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrConfigMismatch, errors.Join(errs...))
}

func (v Verification) log(log zerolog.Logger) {
	log.Info().
		Str("cnfg_gen", hex24(v.CnfgGen)).
		Str("cnfg_ecg", hex24(v.CnfgECG)).
		Uint8("fmstr", v.FMSTR).
		Uint8("rate", v.Rate).
		Stringer("gain", v.Gain).
		Msg("configuration read back")

	if v.FMSTR != profileFMSTR {
		log.Warn().Uint8("fmstr", v.FMSTR).Msg("master clock is not 32000 Hz")
	}
	if v.Rate != profileRate {
		log.Warn().Uint8("rate", v.Rate).Msg("sample rate is not 125 sps")
	}
	if v.Gain != v.wantGain {
		log.Warn().Stringer("gain", v.Gain).Stringer("want", v.wantGain).Msg("gain differs from configured value")
	}
	if err := v.Err(); err != nil {
		log.Warn().Err(err).Msg("chip may be using a different configuration")
		return
	}
	log.Info().Msg("125 sps configured")
}
