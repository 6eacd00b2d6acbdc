// Package simchip is a software MAX30003 that answers the same SPI framing as
// the real part: a command byte (address<<1 | R/W) followed by three data
// bytes, framed by chip-select.
//
// It keeps a register file with power-on defaults, honours SW_RST, SYNCH and
// FIFO_RST, and fills its ECG FIFO from a waveform Source. Samples are
// produced on demand: whenever STATUS is polled and the FIFO is empty, one new
// sample is queued. That keeps it usable both from tests, where the caller
// controls every poll, and from a live acquisition loop.
package simchip

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"
)

// Register addresses the model gives behaviour to.
const (
	regStatus       = 0x01
	regEnInt        = 0x02
	regEnInt2       = 0x03
	regMngrInt      = 0x04
	regMngrDyn      = 0x05
	regSwReset      = 0x08
	regSynch        = 0x09
	regFIFOReset    = 0x0A
	regInfo         = 0x0F
	regCnfgGen      = 0x10
	regCnfgCal      = 0x12
	regCnfgEMux     = 0x14
	regCnfgECG      = 0x15
	regCnfgRtoR1    = 0x1D
	regCnfgRtoR2    = 0x1E
	regECGFIFOBurst = 0x20
	regECGFIFO      = 0x21

	numRegisters = 0x40
)

const (
	statusEINT = 1 << 23
	statusEOVF = 1 << 22
	genENECG   = 1 << 19

	etagValid    = 0b000
	etagEmpty    = 0b110
	etagOverflow = 0b111

	fifoDepth = 32
	valueMask = 0xFFFFFF

	// DefaultInfo is the INFO word the model reports.
	DefaultInfo = 0x510000
)

// power-on values from the datasheet register map
var defaults = map[byte]uint32{
	regEnInt:     0x000003,
	regEnInt2:    0x000003,
	regMngrInt:   0x780004,
	regMngrDyn:   0x3FC000,
	regCnfgGen:   0x080004,
	regCnfgCal:   0x004800,
	regCnfgEMux:  0x300000,
	regCnfgECG:   0x805000,
	regCnfgRtoR1: 0x3FC600,
	regCnfgRtoR2: 0x202400,
}

var (
	// ErrClosed is returned by Transfer and SetCS after Close.
	ErrClosed = errors.New("simchip: closed")
)

type busMode int

const (
	busNormal busMode = iota
	busAbsent         // MISO pulled low, every byte reads 0x00
	busFloating       // MISO pulled high, every byte reads 0xFF
)

// Source returns the simulated electrode voltage in millivolts for sample n.
type Source func(n int) float64

// Write is one register write the model received.
type Write struct {
	Reg   byte
	Value uint32
}

func (w Write) String() string {
	return fmt.Sprintf("0x%02X<-0x%06X", w.Reg, w.Value)
}

// Chip is a simulated MAX30003. It implements the max30003 SerialInterface.
type Chip struct {
	mu sync.Mutex

	regs  [numRegisters]uint32
	info  uint32
	stuck map[byte]uint32

	mode   busMode
	csHigh bool
	frame  []byte
	reply  [3]byte
	closed bool

	readyAfter  int // STATUS polls after SYNCH before the first sample, <0 never
	statusPolls int
	synched     bool

	fifo     []uint32
	overflow bool
	produced int
	source   Source

	transactions int
	writes       []Write

	log zerolog.Logger
}

// Option configures a Chip.
type Option func(c *Chip)

// WithInfo sets the INFO register value.
func WithInfo(info uint32) Option {
	return func(c *Chip) {
		c.info = info & valueMask
	}
}

// WithReadyAfter makes the first sample appear on the n-th STATUS poll after
// SYNCH. The default is 1.
func WithReadyAfter(n int) Option {
	return func(c *Chip) {
		c.readyAfter = n
	}
}

// NeverReady keeps the FIFO empty forever.
func NeverReady() Option {
	return func(c *Chip) {
		c.readyAfter = -1
	}
}

// WithStuckRegister makes reg ignore writes and always read as value.
func WithStuckRegister(reg byte, value uint32) Option {
	return func(c *Chip) {
		c.stuck[reg] = value & valueMask
	}
}

// WithSource sets the waveform the FIFO is filled from.
func WithSource(src Source) Option {
	return func(c *Chip) {
		if src != nil {
			c.source = src
		}
	}
}

// Absent models an empty socket: every byte reads 0x00.
func Absent() Option {
	return func(c *Chip) {
		c.mode = busAbsent
	}
}

// Floating models an unpowered chip with MISO pulled up: every byte reads 0xFF.
func Floating() Option {
	return func(c *Chip) {
		c.mode = busFloating
	}
}

// WithLogger traces every completed frame.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Chip) {
		c.log = log
	}
}

// New returns a powered-on Chip.
func New(opts ...Option) *Chip {
	c := &Chip{
		info:       DefaultInfo,
		stuck:      make(map[byte]uint32),
		csHigh:     true,
		readyAfter: 1,
		source:     SyntheticECG(72, 125),
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.reset()
	return c
}

func (c *Chip) reset() {
	for i := range c.regs {
		c.regs[i] = 0
	}
	for reg, v := range defaults {
		c.regs[reg] = v
	}
	c.fifo = c.fifo[:0]
	c.overflow = false
	c.synched = false
	c.statusPolls = 0
}

// SetCS drives the chip-select line. A falling edge starts a new frame.
func (c *Chip) SetCS(high bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if !high && c.csHigh {
		c.transactions++
		c.frame = c.frame[:0]
	}
	if high && !c.csHigh {
		c.endFrame()
	}
	c.csHigh = high
	return nil
}

// Transfer clocks one byte in and returns the byte the chip shifts out.
func (c *Chip) Transfer(out byte) (byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrClosed
	}

	switch c.mode {
	case busAbsent:
		return 0x00, nil
	case busFloating:
		return 0xFF, nil
	}

	if c.csHigh {
		// not selected, SDO is high-Z
		return 0xFF, nil
	}

	pos := len(c.frame)
	c.frame = append(c.frame, out)

	if pos == 0 {
		if out&0x01 == 1 {
			v := c.read(out >> 1)
			c.reply = [3]byte{byte(v >> 16), byte(v >> 8), byte(v)}
		}
		return 0x00, nil
	}

	if pos > 3 {
		return 0x00, nil
	}

	cmd := c.frame[0]
	if cmd&0x01 == 1 {
		return c.reply[pos-1], nil
	}
	if pos == 3 {
		value := uint32(c.frame[1])<<16 | uint32(c.frame[2])<<8 | uint32(c.frame[3])
		c.write(cmd>>1, value)
	}
	return 0x00, nil
}

func (c *Chip) endFrame() {
	if len(c.frame) == 0 {
		return
	}
	c.log.Trace().Hex("frame", c.frame).Msg("frame")
}

func (c *Chip) read(reg byte) uint32 {
	if v, ok := c.stuck[reg]; ok {
		return v
	}
	switch reg {
	case regStatus:
		c.statusPolls++
		c.produce()
		var status uint32
		if len(c.fifo) > 0 {
			status |= statusEINT
		}
		if c.overflow {
			status |= statusEOVF
		}
		return status
	case regInfo:
		return c.info
	case regECGFIFO, regECGFIFOBurst:
		if c.overflow {
			// the chip keeps answering with the overflow tag until FIFO_RST
			return etagOverflow << 3
		}
		if len(c.fifo) == 0 {
			return etagEmpty << 3
		}
		word := c.fifo[0]
		c.fifo = c.fifo[1:]
		return word
	}
	if int(reg) < len(c.regs) {
		return c.regs[reg]
	}
	return 0
}

func (c *Chip) write(reg byte, value uint32) {
	value &= valueMask
	c.writes = append(c.writes, Write{Reg: reg, Value: value})
	c.log.Trace().Stringer("write", c.writes[len(c.writes)-1]).Msg("register write")

	if _, ok := c.stuck[reg]; ok {
		return
	}
	switch reg {
	case regSwReset:
		c.reset()
	case regSynch:
		c.fifo = c.fifo[:0]
		c.overflow = false
		c.synched = true
		c.statusPolls = 0
	case regFIFOReset:
		c.fifo = c.fifo[:0]
		c.overflow = false
	case regStatus, regInfo, regECGFIFO, regECGFIFOBurst:
		// read-only
	default:
		if int(reg) < len(c.regs) {
			c.regs[reg] = value
		}
	}
}

// produce queues the next sample when the ECG channel is running and the
// FIFO has drained.
func (c *Chip) produce() {
	if !c.synched || c.regs[regCnfgGen]&genENECG == 0 {
		return
	}
	if c.readyAfter < 0 || c.statusPolls < c.readyAfter {
		return
	}
	if len(c.fifo) > 0 {
		return
	}
	c.queue(c.encode(c.source(c.produced)))
	c.produced++
}

func (c *Chip) queue(word uint32) {
	if len(c.fifo) >= fifoDepth {
		c.overflow = true
		return
	}
	c.fifo = append(c.fifo, word&valueMask)
}

// encode turns millivolts into a FIFO word with a valid ETAG, using the
// gain currently in CNFG_ECG.
func (c *Chip) encode(mv float64) uint32 {
	gain := float64(int(20) << ((c.regs[regCnfgECG] >> 16) & 0x03))
	code := math.Round(mv / 1000 * 131072 * gain)
	code = math.Max(-131072, math.Min(131071, code))
	return EncodeSample(int32(code), etagValid)
}

// EncodeSample packs an 18-bit ECG code and an ETAG into a FIFO word.
func EncodeSample(code int32, etag byte) uint32 {
	return (uint32(code)&0x3FFFF)<<6 | uint32(etag&0x07)<<3
}

// Queue pushes raw FIFO words, bypassing the waveform source.
func (c *Chip) Queue(words ...uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, w := range words {
		c.queue(w)
	}
}

// Register returns the current content of reg.
func (c *Chip) Register(reg byte) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if int(reg) >= len(c.regs) {
		return 0
	}
	return c.regs[reg]
}

// Writes returns every register write received so far.
func (c *Chip) Writes() []Write {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Write(nil), c.writes...)
}

// Transactions counts chip-select falling edges.
func (c *Chip) Transactions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transactions
}

// StatusPolls counts STATUS reads since the last SYNCH.
func (c *Chip) StatusPolls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusPolls
}

// Close releases the chip. Further bus calls fail with ErrClosed.
func (c *Chip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.closed = true
	return nil
}
