package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/warthog618/config"
	"github.com/warthog618/config/blob"
	"github.com/warthog618/config/blob/decoder/json"
	"github.com/warthog618/config/dict"
	"github.com/warthog618/config/env"
	"github.com/warthog618/config/pflag"

	"github.com/yunginnanet/ftdi-max30003/pkg/max30003"
)

// Every key can be set from the command line (--spi-hz), the environment
// (MAX30003_SPI_HZ) or a JSON config file (-c ecgstream.json).
var defaultConfig = map[string]interface{}{
	"backend":       "ft232h",
	"ft232h.device": "index:0",
	"ft232h.cs":     0x10,
	"spi.port":      "",
	"spi.cs":        "GPIO25",
	"spi.hz":        1000000,
	"gain":          20,
	"poll.interval": "2ms",
	"xfer.timeout":  "250ms",
	"log.level":     "info",
	"hold":          false,
	"sim.bpm":       72,
	"sim.fault":     "",
}

// verbatim keeps environment values whole; the default splitter breaks
// "serial:FT4ABC" on the colon.
type verbatim struct{}

func (verbatim) Split(v string) interface{} {
	return v
}

// loadConfig layers the config sources over args. A nil args is treated as
// an empty command line, never as os.Args.
func loadConfig(args []string) *config.Config {
	if args == nil {
		args = []string{}
	}
	def := dict.New(dict.WithMap(defaultConfig))
	flags := []pflag.Flag{
		{Short: 'c', Name: "config-file"},
		{Short: 'b', Name: "backend"},
		{Short: 'g', Name: "gain"},
		{Short: 'v', Name: "log-level"},
	}
	cfg := config.New(
		pflag.New(pflag.WithFlags(flags), pflag.WithCommandLine(args)),
		env.New(env.WithEnvPrefix("MAX30003_"), env.WithListSplitter(verbatim{})),
		config.WithDefault(def))
	cfg.Append(
		blob.NewConfigFile(cfg, "config.file", "ecgstream.json", json.NewDecoder()))
	cfg = cfg.GetConfig("", config.WithMust)
	return cfg
}

type settings struct {
	Backend string

	FT232HDevice string
	FT232HCS     uint

	SPIPort string
	SPICS   string
	SPIHz   int

	Gain         max30003.Gain
	PollInterval time.Duration
	XferTimeout  time.Duration
	LogLevel     zerolog.Level
	Hold         bool

	SimBPM   float64
	SimFault string
}

const (
	backendFT232H = "ft232h"
	backendPeriph = "periph"
	backendSim    = "sim"
)

func parseSettings(cfg *config.Config) (s settings, err error) {
	s.Backend = strings.ToLower(cfg.MustGet("backend").String())
	switch s.Backend {
	case backendFT232H, backendPeriph, backendSim:
	default:
		return s, fmt.Errorf("unknown backend %q, choose from %s, %s, %s",
			s.Backend, backendFT232H, backendPeriph, backendSim)
	}

	s.FT232HDevice = cfg.MustGet("ft232h.device").String()
	s.FT232HCS = uint(cfg.MustGet("ft232h.cs").Uint())
	s.SPIPort = cfg.MustGet("spi.port").String()
	s.SPICS = cfg.MustGet("spi.cs").String()
	if s.SPIHz = cfg.MustGet("spi.hz").Int(); s.SPIHz <= 0 {
		return s, fmt.Errorf("spi.hz must be positive, got %d", s.SPIHz)
	}

	if s.Gain, err = max30003.ParseGain(cfg.MustGet("gain").Int()); err != nil {
		return s, err
	}
	if s.PollInterval = cfg.MustGet("poll.interval").Duration(); s.PollInterval <= 0 {
		return s, fmt.Errorf("poll.interval must be positive, got %s", s.PollInterval)
	}
	if s.XferTimeout = cfg.MustGet("xfer.timeout").Duration(); s.XferTimeout < 0 {
		return s, fmt.Errorf("xfer.timeout must not be negative, got %s", s.XferTimeout)
	}
	if s.LogLevel, err = zerolog.ParseLevel(cfg.MustGet("log.level").String()); err != nil {
		return s, fmt.Errorf("log.level: %w", err)
	}
	s.Hold = cfg.MustGet("hold").Bool()

	if s.SimBPM = cfg.MustGet("sim.bpm").Float(); s.SimBPM <= 0 {
		return s, fmt.Errorf("sim.bpm must be positive, got %g", s.SimBPM)
	}
	s.SimFault = strings.ToLower(cfg.MustGet("sim.fault").String())
	return s, nil
}
