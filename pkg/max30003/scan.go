package max30003

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// fifoDepth is the number of words the ECG FIFO holds.
	fifoDepth = 32
	// maxScanErrors stops a scan that keeps failing.
	maxScanErrors = 50
)

// Sample is one converted ECG reading.
type Sample struct {
	Raw        int32
	Millivolts float64
	Time       time.Time
}

// ETag returns the FIFO tag of the sample.
func (s Sample) ETag() byte {
	return ETag(s.Raw)
}

// SampleCallback receives every sample of a scan, in FIFO order.
type SampleCallback func(s Sample)

// SampleScan is a running ScanContinuously.
type SampleScan struct {
	Interval time.Duration
	done     *atomic.Bool
	running  *atomic.Bool
	finished chan struct{}
	callback SampleCallback
	err      []error
	errMu    sync.Mutex

	overflows atomic.Int64
}

func newSampleScan(interval time.Duration, onSample SampleCallback) *SampleScan {
	return &SampleScan{
		Interval: interval,
		done:     &atomic.Bool{},
		running:  &atomic.Bool{},
		finished: make(chan struct{}),
		callback: onSample,
		err:      make([]error, 0),
	}
}

func (ss *SampleScan) addErr(err error) {
	if err == nil {
		return
	}
	ss.errMu.Lock()
	ss.err = append(ss.err, err)
	if len(ss.err) >= maxScanErrors {
		ss.done.Store(true)
	}
	ss.errMu.Unlock()
}

// Err returns every error the scan ran into, joined.
func (ss *SampleScan) Err() error {
	ss.errMu.Lock()
	defer ss.errMu.Unlock()
	if len(ss.err) == 0 {
		return nil
	}
	return fmt.Errorf("sample scan errors: %w", errors.Join(ss.err...))
}

// Stop asks the scan goroutine to exit after its current pass.
func (ss *SampleScan) Stop() {
	ss.done.Store(true)
}

// Overflows counts FIFO overflows the scan recovered from. Samples were lost
// at each one.
func (ss *SampleScan) Overflows() int64 {
	return ss.overflows.Load()
}

func (ss *SampleScan) IsDone() bool {
	return ss.done.Load()
}

func (ss *SampleScan) IsRunning() bool {
	return ss.running.Load()
}

// Wait blocks until the scan goroutine has exited or ctx is done, then
// returns Err.
func (ss *SampleScan) Wait(ctx context.Context) error {
	select {
	case <-ss.finished:
	case <-ctx.Done():
		return errors.Join(ctx.Err(), ss.Err())
	}
	return ss.Err()
}

// drainFIFO reads samples while STATUS says one is waiting, up to one full
// FIFO per pass. The bus lock is held per sample, not across the callback.
func (e *ECG) drainFIFO(ss *SampleScan) {
	for i := 0; i < fifoDepth; i++ {
		if ss.done.Load() {
			return
		}

		e.dev.mu.Lock()
		if e.dev.closed {
			e.dev.mu.Unlock()
			ss.addErr(ErrClosed)
			ss.Stop()
			return
		}
		ready, err := e.dev.isReady()
		if err != nil || !ready {
			e.dev.mu.Unlock()
			ss.addErr(err)
			return
		}
		raw, err := e.dev.readSample()
		e.dev.mu.Unlock()

		if err != nil {
			ss.addErr(err)
			return
		}
		switch ETag(raw) {
		case ETagEmpty:
			return
		case ETagOverflow:
			ss.overflows.Add(1)
			e.dev.log.Warn().Int64("overflows", ss.overflows.Load()).Msg("ecg fifo overflow, resetting fifo")
			ss.addErr(e.dev.ResetFIFO())
			return
		}

		ss.callback(Sample{
			Raw:        raw,
			Millivolts: e.Millivolts(raw),
			Time:       time.Now(),
		})
	}
}

// ScanContinuously polls STATUS every interval and hands each available sample
// to onSample from a single goroutine. It stops on ctx cancellation, Stop, or
// after too many bus errors.
func (e *ECG) ScanContinuously(
	ctx context.Context,
	interval time.Duration,
	onSample SampleCallback,
) (*SampleScan, error) {
	if onSample == nil {
		return nil, errors.New("no sample callback")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("invalid scan interval %s", interval)
	}

	var cancel context.CancelFunc
	ctx, cancel = context.WithCancel(ctx)

	ss := newSampleScan(interval, onSample)
	ss.running.Store(true)

	go func() {
		defer close(ss.finished)
		defer ss.running.Store(false)
		defer cancel()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			if ss.done.Load() {
				return
			}
			e.drainFIFO(ss)
			select {
			case <-ctx.Done():
				ss.Stop()
				return
			case <-ticker.C:
			}
		}
	}()

	return ss, nil
}
