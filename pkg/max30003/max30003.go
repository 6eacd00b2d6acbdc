package max30003

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrNotDetected is returned by Initialize when the INFO register reads as
	// all zeros or all ones, which is what a floating or unpowered bus looks like.
	ErrNotDetected = errors.New("max30003: chip not detected on bus")
	// ErrConfigTimeout is returned by Initialize when the first sample never
	// shows up in STATUS.
	ErrConfigTimeout = errors.New("max30003: timed out waiting for first sample")
	// ErrConfigMismatch is reported through Verification.Err when the chip
	// accepted a different profile than the one written. It never fails
	// Initialize.
	ErrConfigMismatch = errors.New("max30003: configuration mismatch")
	// ErrTransferStall is returned when a single byte exchange does not
	// complete within the transfer timeout.
	ErrTransferStall = errors.New("max30003: spi transfer stalled")
	// ErrBadRegister is returned for addresses outside the 6-bit space.
	ErrBadRegister = errors.New("max30003: invalid register address")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("max30003: device closed")
)

// SerialInterface allows for different SPI implementations.
type SerialInterface interface {
	// Transfer shifts out one byte MSB-first and returns the byte shifted in
	// during the same eight clocks.
	Transfer(out byte) (byte, error)

	// SetCS drives the chip-select line. true is high (inactive).
	SetCS(high bool) error

	// Close closes the interface.
	Close() error
}

// MAX30003 provides control over a Maxim MAX30003 single-lead ECG front end.
type MAX30003 struct {
	mu  sync.RWMutex    // one chip-select frame at a time
	spi SerialInterface // SerialInterface interface

	log         zerolog.Logger
	sleep       func(time.Duration)
	xferTimeout time.Duration
	stalled     chan struct{} // closed once an abandoned transfer returns
	configured  bool          // set by a successful Initialize
	closed      bool

	// Last read or written register states (for reference or debugging)
	regLR [NumRegisters]uint32 // "Last Read"  register data
	regLW [NumRegisters]uint32 // "Last Write" register data
}

// Option configures a MAX30003 at construction.
type Option func(dev *MAX30003)

// WithLogger sets the diagnostic sink. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(dev *MAX30003) {
		dev.log = log
	}
}

// WithSleep replaces the blocking delay used for every timing step.
func WithSleep(sleep func(time.Duration)) Option {
	return func(dev *MAX30003) {
		if sleep != nil {
			dev.sleep = sleep
		}
	}
}

// WithTransferTimeout bounds each byte exchange. Zero waits forever.
func WithTransferTimeout(d time.Duration) Option {
	return func(dev *MAX30003) {
		dev.xferTimeout = d
	}
}

// Config represents user-level configuration parameters. Sample rate and
// master clock are fixed at 125 sps / 32000 Hz.
type Config struct {
	Gain Gain // ECG channel gain, also selects the millivolt divisor
}

// DefaultConfig provides default config.
func DefaultConfig() Config {
	return Config{
		Gain: Gain20,
	}
}

// NewMAX30003 constructs a MAX30003 on the given SerialInterface. No bus
// traffic happens until Initialize.
func NewMAX30003(spi SerialInterface, opts ...Option) *MAX30003 {
	dev := &MAX30003{
		spi:         spi,
		log:         zerolog.Nop(),
		sleep:       time.Sleep,
		xferTimeout: DefaultTransferTimeout,
	}
	for _, opt := range opts {
		opt(dev)
	}
	return dev
}

// Initialize brings the chip from power-on to the 125 sps profile and waits
// for the first sample. It returns a handle for acquisition only on success.
//
// Readback mismatches of FMSTR, RATE or GAIN are logged as warnings and kept
// in the handle's Verification; the chip is still considered usable.
func (dev *MAX30003) Initialize(cfg Config) (*ECG, error) {
	if !cfg.Gain.valid() {
		return nil, fmt.Errorf("max30003: invalid gain code %d", cfg.Gain)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.closed {
		return nil, ErrClosed
	}

	log := dev.log.With().Str("caller", "initialize").Logger()
	dev.configured = false

	if err := dev.setCSHigh(); err != nil {
		return nil, err
	}
	dev.sleep(powerSettle)

	info, err := dev.readRegister(RegInfo)
	if err != nil {
		return nil, fmt.Errorf("max30003: probe failed: %w", err)
	}
	if info == 0x000000 || info == regValueMask {
		log.Error().Str("info", hex24(info)).Msg("spi probe failed")
		return nil, ErrNotDetected
	}
	log.Info().Str("info", hex24(info)).Msg("spi connected")

	steps := []struct {
		name   string
		reg    Register
		value  uint32
		settle time.Duration
	}{
		{"software reset", RegSwReset, 0, resetSettle},
		// CNFG_ECG must land before CNFG_GEN enables the channel.
		{"configure ecg", RegCnfgECG, ecgConfigValue(cfg.Gain), ecgCfgSettle},
		{"configure general", RegCnfgGen, genConfigValue(), genCfgSettle},
		{"synch", RegSynch, 0, synchSettle},
		{"configure emux", RegCnfgEMux, 0, emuxSettle},
		{"final synch", RegSynch, 0, finalSynchSettle},
	}
	for _, step := range steps {
		log.Debug().Str("step", step.name).
			Str("reg", step.reg.String()).
			Str("value", hex24(step.value)).
			Msg("writing")
		if err = dev.writeRegister(step.reg, step.value); err != nil {
			return nil, fmt.Errorf("max30003: %s: %w", step.name, err)
		}
		dev.sleep(step.settle)
	}

	ready := false
	for polls := 0; polls < ReadyPollLimit; polls++ {
		status, err := dev.readRegister(RegStatus)
		if err != nil {
			return nil, fmt.Errorf("max30003: waiting for first sample: %w", err)
		}
		if status&StatusEINT != 0 {
			log.Debug().Int("polls", polls+1).Msg("first sample ready")
			ready = true
			break
		}
		dev.sleep(readyPollInterval)
	}
	if !ready {
		log.Error().Int("polls", ReadyPollLimit).Msg("timeout")
		return nil, ErrConfigTimeout
	}

	v, err := dev.verify(cfg.Gain)
	if err != nil {
		return nil, err
	}
	v.log(log)
	dev.configured = true

	return &ECG{dev: dev, gain: cfg.Gain, verification: v}, nil
}

func (dev *MAX30003) verify(gain Gain) (Verification, error) {
	gen, err := dev.readRegister(RegCnfgGen)
	if err != nil {
		return Verification{}, fmt.Errorf("max30003: reading back CNFG_GEN: %w", err)
	}
	ecg, err := dev.readRegister(RegCnfgECG)
	if err != nil {
		return Verification{}, fmt.Errorf("max30003: reading back CNFG_ECG: %w", err)
	}
	return newVerification(gen, ecg, gain), nil
}

func ecgConfigValue(g Gain) uint32 {
	return uint32(profileRate)<<ECGRateShift | uint32(g)<<ECGGainShift
}

func genConfigValue() uint32 {
	return uint32(profileFMSTR)<<GenFMSTRShift | GenENECG
}

// Close closes the SerialInterface. A chip that Initialize configured is
// reset first so it stops converting; one that never came up sees no further
// traffic, and neither does a bus with a stalled transfer.
func (dev *MAX30003) Close() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.closed {
		return ErrClosed
	}
	dev.closed = true
	var err error
	if dev.configured && dev.busy() == nil {
		err = dev.writeRegister(RegSwReset, 0)
	}
	return errors.Join(err, dev.spi.Close())
}

func hex24(v uint32) string {
	return fmt.Sprintf("0x%06X", v&regValueMask)
}
