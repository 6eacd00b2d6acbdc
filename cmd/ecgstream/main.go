// Command ecgstream initializes a MAX30003 and streams its ECG samples to
// stdout as "raw,mv_x10000" lines. Diagnostics go to stderr.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/yunginnanet/ftdi-max30003/pkg/max30003"
)

var log zerolog.Logger

func init() {
	cw := zerolog.ConsoleWriter{Out: os.Stderr}
	log = zerolog.New(cw).With().Timestamp().Logger()
}

func main() {
	s, err := parseSettings(loadConfig(os.Args[1:]))
	if err != nil {
		log.Fatal().Err(err).Msg("bad configuration")
	}
	log = log.Level(s.LogLevel)
	log.Debug().Any("settings", s).Msg("configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, s, os.Stdout)
	stop()
	if err != nil {
		log.Fatal().Err(err).Msg("ecgstream failed")
	}
}

// run opens the bus, brings the chip up and streams until ctx is done. A chip
// that fails to initialize is never sampled; with Hold set, run waits for ctx
// instead of returning the error.
func run(ctx context.Context, s settings, out io.Writer, opts ...max30003.Option) (err error) {
	bus, err := openBus(s, log)
	if err != nil {
		return fmt.Errorf("open %s bus: %w", s.Backend, err)
	}

	opts = append([]max30003.Option{
		max30003.WithLogger(log.With().Str("component", "max30003").Logger()),
		max30003.WithTransferTimeout(s.XferTimeout),
	}, opts...)
	dev := max30003.NewMAX30003(bus, opts...)
	defer func() {
		if cerr := dev.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("failed to close MAX30003")
		}
	}()

	ecg, err := dev.Initialize(max30003.Config{Gain: s.Gain})
	if err != nil {
		log.Error().Err(err).Msg("MAX30003 initialization failed")
		if s.Hold {
			log.Info().Msg("holding until interrupted")
			<-ctx.Done()
			return nil
		}
		return err
	}
	log.Info().Stringer("gain", ecg.Gain()).Msg("MAX30003 initialized successfully")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sw := newSampleWriter(out)
	scan, err := ecg.ScanContinuously(ctx, s.PollInterval, func(sample max30003.Sample) {
		if werr := sw.write(sample); werr != nil {
			cancel()
		}
	})
	if err != nil {
		return err
	}

	err = scan.Wait(context.Background())
	log.Info().Int("samples", sw.count()).Msg("stopped streaming")
	if sw.err != nil {
		err = errors.Join(err, fmt.Errorf("write samples: %w", sw.err))
	}
	return err
}
