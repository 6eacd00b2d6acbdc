package max30003

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/yunginnanet/ftdi-max30003/pkg/simchip"
)

func TestInitialize(t *testing.T) {
	t.Run("ReadyOnFifthPoll", func(t *testing.T) {
		h := newHarness(t, simchip.WithReadyAfter(5))
		ecg := h.initialize(t)

		if h.chip.StatusPolls() != 5 {
			t.Errorf("expected 5 status polls, got %d", h.chip.StatusPolls())
		}
		if !ecg.Verification().Matches() {
			t.Errorf("unexpected mismatch: %v", ecg.Verification().Err())
		}
		if h.logs.hasLevel(zerolog.WarnLevel) || h.logs.hasLevel(zerolog.ErrorLevel) {
			t.Errorf("unexpected warning:\n%s", h.logs.String())
		}
		if ecg.Gain() != Gain20 || ecg.Device() != h.dev {
			t.Error("handle does not describe the initialized device")
		}
	})

	t.Run("WriteSequence", func(t *testing.T) {
		h := newHarness(t)
		h.initialize(t)

		want := []simchip.Write{
			{Reg: byte(RegSwReset), Value: 0},
			{Reg: byte(RegCnfgECG), Value: 0x800000},
			{Reg: byte(RegCnfgGen), Value: 0x180000},
			{Reg: byte(RegSynch), Value: 0},
			{Reg: byte(RegCnfgEMux), Value: 0},
			{Reg: byte(RegSynch), Value: 0},
		}
		if got := h.chip.Writes(); !reflect.DeepEqual(got, want) {
			t.Errorf("unexpected write sequence:\n%s", pprint.Sdump(got))
		}

		sent := h.bus.sent()
		if len(sent) < 4 || sent[0] != 0x1F {
			t.Fatalf("expected INFO probe first, got % X", sent)
		}
	})

	t.Run("Delays", func(t *testing.T) {
		h := newHarness(t)
		h.initialize(t)
		for _, d := range []struct {
			name string
			wait int
			want int
		}{
			{"power, reset, final synch", h.sleep.count(powerSettle), 3},
			{"ecg, emux", h.sleep.count(ecgCfgSettle), 2},
			{"gen, synch", h.sleep.count(genCfgSettle), 2},
		} {
			if d.wait != d.want {
				t.Errorf("%s: expected %d waits, got %d", d.name, d.want, d.wait)
			}
		}
		if total := h.sleep.total(); total < 2100*time.Millisecond {
			t.Errorf("initialization waited only %s", total)
		}
	})

	t.Run("Gain", func(t *testing.T) {
		h := newHarness(t)
		ecg, err := h.dev.Initialize(Config{Gain: Gain80})
		if err != nil {
			t.Fatal(err)
		}
		if h.chip.Register(byte(RegCnfgECG)) != 0x820000 {
			t.Errorf("expected CNFG_ECG 0x820000, got 0x%06X", h.chip.Register(byte(RegCnfgECG)))
		}
		if ecg.Verification().Gain != Gain80 {
			t.Errorf("expected read back gain 80, got %s", ecg.Verification().Gain)
		}
		if _, err = h.dev.Initialize(Config{Gain: Gain(4)}); err == nil {
			t.Error("expected error for invalid gain")
		}
	})

	t.Run("Reinitialize", func(t *testing.T) {
		h := newHarness(t)
		h.initialize(t)
		h.initialize(t)
		if n := len(h.chip.Writes()); n != 12 {
			t.Errorf("expected the full sequence twice, got %d writes", n)
		}
	})
}

func TestInitializeFailures(t *testing.T) {
	t.Run("NotDetected", func(t *testing.T) {
		h := newHarness(t, simchip.Absent())
		ecg, err := h.dev.Initialize(DefaultConfig())
		if !errors.Is(err, ErrNotDetected) {
			t.Fatalf("expected ErrNotDetected, got %v", err)
		}
		if ecg != nil {
			t.Error("failed Initialize returned a handle")
		}
		if h.chip.Transactions() != 1 {
			t.Errorf("expected only the probe transaction, got %d", h.chip.Transactions())
		}
		if len(h.chip.Writes()) != 0 {
			t.Errorf("writes issued after a failed probe: %v", h.chip.Writes())
		}
		if !h.logs.hasLevel(zerolog.ErrorLevel) {
			t.Errorf("expected probe failure to be logged:\n%s", h.logs.String())
		}
		if err = h.dev.Close(); err != nil {
			t.Fatal(err)
		}
		if h.chip.Transactions() != 1 {
			t.Errorf("close after a failed probe reached the chip: %d transactions", h.chip.Transactions())
		}
	})

	t.Run("Floating", func(t *testing.T) {
		h := newHarness(t, simchip.Floating())
		if _, err := h.dev.Initialize(DefaultConfig()); !errors.Is(err, ErrNotDetected) {
			t.Fatalf("expected ErrNotDetected, got %v", err)
		}
	})

	t.Run("Timeout", func(t *testing.T) {
		h := newHarness(t, simchip.NeverReady())
		ecg, err := h.dev.Initialize(DefaultConfig())
		if !errors.Is(err, ErrConfigTimeout) {
			t.Fatalf("expected ErrConfigTimeout, got %v", err)
		}
		if ecg != nil {
			t.Error("failed Initialize returned a handle")
		}
		if h.chip.StatusPolls() != ReadyPollLimit {
			t.Errorf("expected %d status polls, got %d", ReadyPollLimit, h.chip.StatusPolls())
		}
		// every poll waits once, and so does every one of the six writes
		if n := h.sleep.count(readyPollInterval); n != ReadyPollLimit+6 {
			t.Errorf("expected %d 10ms waits, got %d", ReadyPollLimit+6, n)
		}
		if err = h.dev.Close(); err != nil {
			t.Fatal(err)
		}
		if w := h.chip.Writes(); len(w) != 6 {
			t.Errorf("close reset a chip that never came up: %v", w)
		}
	})

	t.Run("Closed", func(t *testing.T) {
		h := newHarness(t)
		if err := h.dev.Close(); err != nil {
			t.Fatal(err)
		}
		if _, err := h.dev.Initialize(DefaultConfig()); !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	})
}

func TestVerification(t *testing.T) {
	t.Run("RateMismatchWarns", func(t *testing.T) {
		h := newHarness(t, simchip.WithStuckRegister(byte(RegCnfgECG), 0x400000))
		ecg := h.initialize(t)

		v := ecg.Verification()
		if v.Matches() {
			t.Fatal("expected mismatch")
		}
		if v.Rate != Rate256 {
			t.Errorf("expected rate code 1, got %d", v.Rate)
		}
		if !errors.Is(v.Err(), ErrConfigMismatch) {
			t.Errorf("expected ErrConfigMismatch, got %v", v.Err())
		}
		if !h.logs.hasLevel(zerolog.WarnLevel) {
			t.Errorf("expected a warning:\n%s", h.logs.String())
		}
	})

	t.Run("ClockMismatch", func(t *testing.T) {
		h := newHarness(t, simchip.WithStuckRegister(byte(RegCnfgGen), 0x080000))
		ecg := h.initialize(t)
		v := ecg.Verification()
		if v.FMSTR != FMSTR32768 {
			t.Errorf("expected FMSTR 0, got %d", v.FMSTR)
		}
		if v.Matches() {
			t.Error("expected mismatch")
		}
	})

	t.Run("Decode", func(t *testing.T) {
		v := newVerification(0x180000, 0x810000, Gain20)
		if v.FMSTR != FMSTR32000 || v.Rate != Rate125 || v.Gain != Gain40 {
			t.Errorf("bad decode:\n%s", pprint.Sdump(v))
		}
		err := v.Err()
		if !errors.Is(err, ErrConfigMismatch) {
			t.Errorf("expected gain mismatch, got %v", err)
		}
	})
}
