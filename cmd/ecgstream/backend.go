package main

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/physic"

	"github.com/yunginnanet/ftdi-max30003/pkg/ft232h"
	"github.com/yunginnanet/ftdi-max30003/pkg/max30003"
	"github.com/yunginnanet/ftdi-max30003/pkg/periphspi"
	"github.com/yunginnanet/ftdi-max30003/pkg/simchip"
)

func openBus(s settings, log zerolog.Logger) (max30003.SerialInterface, error) {
	switch s.Backend {
	case backendFT232H:
		return openFT232H(s, log)
	case backendPeriph:
		p, err := periphspi.Open(s.SPIPort, s.SPICS, physic.Frequency(s.SPIHz)*physic.Hertz,
			periphspi.WithLogger(log))
		if err != nil {
			return nil, err
		}
		return p, nil
	case backendSim:
		return openSim(s, log)
	default:
		return nil, fmt.Errorf("unknown backend %q", s.Backend)
	}
}

func openFT232H(s settings, log zerolog.Logger) (max30003.SerialInterface, error) {
	desc, err := ft232h.ParseDescriptor(s.FT232HDevice)
	if err != nil {
		return nil, err
	}

	ft, err := ft232h.Connect(&desc, ft232h.WithLogger(log))
	if err != nil {
		return nil, err
	}
	log.Info().Any("info", ft.Info()).Msgf("connected to FT232H: %s", ft)

	if err = ft.SetCSPin(s.FT232HCS); err != nil {
		return nil, errors.Join(err, ft.Close())
	}
	if err = ft.ConfigureSPI(uint32(s.SPIHz)); err != nil {
		return nil, errors.Join(err, ft.Close())
	}
	return ft, nil
}

func openSim(s settings, log zerolog.Logger) (max30003.SerialInterface, error) {
	opts := []simchip.Option{
		simchip.WithSource(simchip.SyntheticECG(s.SimBPM, 125)),
		simchip.WithLogger(log),
	}
	switch s.SimFault {
	case "":
	case "absent":
		opts = append(opts, simchip.Absent())
	case "floating":
		opts = append(opts, simchip.Floating())
	case "never-ready":
		opts = append(opts, simchip.NeverReady())
	case "wrong-rate":
		opts = append(opts, simchip.WithStuckRegister(byte(max30003.RegCnfgECG), 0x400000))
	default:
		return nil, fmt.Errorf("unknown sim.fault %q", s.SimFault)
	}
	log.Warn().Str("fault", s.SimFault).Msg("using simulated MAX30003")
	return simchip.New(opts...), nil
}
