package max30003

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/l0nax/go-spew/spew"
	"github.com/rs/zerolog"

	"github.com/yunginnanet/ftdi-max30003/pkg/simchip"
)

var pprint = spew.ConfigState{
	Indent:                  "\t",
	MaxDepth:                0,
	DisableMethods:          false,
	DisablePointerMethods:   false,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	ContinueOnMethod:        true,
	SortKeys:                true,
	SpewKeys:                true,
}

type busEvent struct {
	CS   string // "high", "low" or "" for a byte exchange
	Out  byte
	In   byte
	Fail bool
}

func (e busEvent) String() string {
	if e.CS != "" {
		return "cs " + e.CS
	}
	return fmt.Sprintf("0x%02X->0x%02X", e.Out, e.In)
}

// recorder sits between the driver and a SerialInterface and keeps a
// transcript of the bus.
type recorder struct {
	SerialInterface
	mu     sync.Mutex
	events []busEvent
}

func (r *recorder) SetCS(high bool) error {
	r.mu.Lock()
	lvl := "low"
	if high {
		lvl = "high"
	}
	r.events = append(r.events, busEvent{CS: lvl})
	r.mu.Unlock()
	return r.SerialInterface.SetCS(high)
}

func (r *recorder) Transfer(out byte) (byte, error) {
	in, err := r.SerialInterface.Transfer(out)
	r.mu.Lock()
	r.events = append(r.events, busEvent{Out: out, In: in, Fail: err != nil})
	r.mu.Unlock()
	return in, err
}

func (r *recorder) transcript() []busEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]busEvent(nil), r.events...)
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// sent returns every byte the driver shifted out.
func (r *recorder) sent() []byte {
	var out []byte
	for _, e := range r.transcript() {
		if e.CS == "" {
			out = append(out, e.Out)
		}
	}
	return out
}

type sleeper struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (s *sleeper) sleep(d time.Duration) {
	s.mu.Lock()
	s.calls = append(s.calls, d)
	s.mu.Unlock()
}

func (s *sleeper) count(d time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == d {
			n++
		}
	}
	return n
}

func (s *sleeper) total() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum time.Duration
	for _, c := range s.calls {
		sum += c
	}
	return sum
}

func (s *sleeper) reset() {
	s.mu.Lock()
	s.calls = nil
	s.mu.Unlock()
}

// syncBuffer is a bytes.Buffer safe for the scan goroutine to log into.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) hasLevel(level zerolog.Level) bool {
	return strings.Contains(b.String(), `"level":"`+level.String()+`"`)
}

type harness struct {
	chip  *simchip.Chip
	bus   *recorder
	sleep *sleeper
	logs  *syncBuffer
	dev   *MAX30003
}

func newHarness(t *testing.T, chipOpts ...simchip.Option) *harness {
	t.Helper()
	h := &harness{
		chip:  simchip.New(chipOpts...),
		sleep: &sleeper{},
		logs:  &syncBuffer{},
	}
	h.bus = &recorder{SerialInterface: h.chip}
	h.dev = NewMAX30003(h.bus,
		WithSleep(h.sleep.sleep),
		WithLogger(zerolog.New(h.logs).Level(zerolog.DebugLevel)),
	)
	return h
}

func (h *harness) initialize(t *testing.T) *ECG {
	t.Helper()
	ecg, err := h.dev.Initialize(DefaultConfig())
	if err != nil {
		t.Fatalf("Initialize: %v\nlog:\n%s", err, h.logs.String())
	}
	return ecg
}

// stallBus never completes a transfer until released, and remembers the
// most transport calls it ever saw in flight at once.
type stallBus struct {
	release chan struct{}

	mu          sync.Mutex
	cs          []bool
	transfers   int
	inFlight    int
	maxInFlight int
}

func newStallBus() *stallBus {
	return &stallBus{release: make(chan struct{})}
}

func (s *stallBus) enter() {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	s.mu.Unlock()
}

func (s *stallBus) leave() {
	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
}

func (s *stallBus) Transfer(byte) (byte, error) {
	s.enter()
	defer s.leave()
	s.mu.Lock()
	s.transfers++
	s.mu.Unlock()
	<-s.release
	return 0, nil
}

func (s *stallBus) SetCS(high bool) error {
	s.enter()
	defer s.leave()
	s.mu.Lock()
	s.cs = append(s.cs, high)
	s.mu.Unlock()
	return nil
}

func (s *stallBus) lastCS() (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.cs) == 0 {
		return false, false
	}
	return s.cs[len(s.cs)-1], true
}

func (s *stallBus) stats() (transfers, maxInFlight int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transfers, s.maxInFlight
}

func (s *stallBus) Close() error {
	return nil
}

// failBus fails every transfer with err.
type failBus struct {
	err error
	cs  []bool
}

func (f *failBus) Transfer(byte) (byte, error) {
	return 0, f.err
}

func (f *failBus) SetCS(high bool) error {
	f.cs = append(f.cs, high)
	return nil
}

func (f *failBus) Close() error {
	return nil
}
