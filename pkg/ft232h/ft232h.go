// Package ft232h drives a MAX30003 over an FTDI FT232H in MPSSE SPI mode,
// with chip-select on a GPIO pin so the driver can frame transactions itself.
package ft232h

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/yunginnanet/ft232h"
)

// DeviceInfo represents a snapshot of the device information for the [FT232H] device.
type DeviceInfo struct {
	Index       int
	Serial      string
	Description string
	ProductID   string
	VendorID    string
	IsOpen      bool
	IsHighSpeed bool
}

func (ft DeviceInfo) String() string {
	return fmt.Sprintf(
		"DeviceInfo{Index:%d, Serial:%s, Description:%s, ProductID:%s, VendorID:%s, IsOpen:%t, IsHighSpeed:%t}",
		ft.Index, ft.Serial, ft.Description, ft.ProductID, ft.VendorID, ft.IsOpen, ft.IsHighSpeed,
	)
}

// FT232H is an opened adapter. It satisfies max30003.SerialInterface once a
// chip-select pin is set and SPI is configured.
type FT232H struct {
	*ft232h.FT232H
	desc  Descriptor
	csPin ft232h.CPin
	csSet bool
	log   zerolog.Logger
}

// Option configures an FT232H at connection time.
type Option func(ft *FT232H)

// WithLogger traces chip-select and configuration changes.
func WithLogger(log zerolog.Logger) Option {
	return func(ft *FT232H) {
		ft.log = log
	}
}

func (ft *FT232H) vidPid() (vid string, pid string) {
	vid = strconv.Itoa(int(ft.VID()))
	pid = strconv.Itoa(int(ft.PID()))

	b := bytes.NewBuffer(nil)
	h := hex.NewEncoder(b)

	if err := binary.Write(h, binary.BigEndian, ft.VID()); err == nil && len(b.String()) > 5 {
		vid = b.String()[4:]
	}

	b.Reset()

	if err := binary.Write(h, binary.BigEndian, ft.PID()); err == nil && len(b.String()) > 5 {
		pid = b.String()[4:]
	}

	return vid, pid
}

// Info returns a snapshot of the adapter's USB identity. Read-only.
func (ft *FT232H) Info() DeviceInfo {
	vid, pid := ft.vidPid()
	return DeviceInfo{
		Index:       ft.Index(),
		Serial:      ft.Serial(),
		Description: ft.Desc(),
		ProductID:   pid,
		VendorID:    vid,
		IsOpen:      ft.IsOpen(),
		IsHighSpeed: ft.IsHiSpeed(),
	}
}

func (ft *FT232H) String() string {
	info := ft.Info()
	return fmt.Sprintf("FT232H[%s:%s]: %s (%s)", info.VendorID, info.ProductID, info.Description, ft.desc)
}

// Connect opens the first adapter, or the one desc selects.
func Connect(desc *Descriptor, opts ...Option) (ft *FT232H, err error) {
	ft = &FT232H{log: zerolog.Nop(), desc: ByIndex(0)}
	for _, opt := range opts {
		opt(ft)
	}

	if desc == nil {
		ft.FT232H, err = ft232h.New()
	} else {
		if err = desc.Validate(); err != nil {
			return nil, err
		}
		ft.desc = *desc
		ft.FT232H, err = ft232h.OpenMask(desc.Mask())
	}
	if err != nil {
		return nil, fmt.Errorf("open FT232H %s: %w", ft.desc, err)
	}

	ft.log.Debug().Stringer("device", ft.Info()).Msg("opened FT232H")
	return ft, nil
}

// ConfigureSPI puts the MPSSE engine in SPI mode 0 at hz. Chip-select is left
// to SetCS.
func (ft *FT232H) ConfigureSPI(hz uint32) error {
	if !ft.csSet {
		return errors.New("chip select pin not set")
	}
	cfg := ft.SPI.GetConfig()
	cfg.Clock = hz
	cfg.CS = ft.csPin
	cfg.Mode = 0
	cfg.ActiveLow = true

	ft.log.Debug().Any("config", cfg).Msg("configuring SPI")
	if err := ft.SPI.Config(cfg); err != nil {
		return fmt.Errorf("configure SPI: %w", err)
	}
	return nil
}

// Close releases the SPI engine and the USB handle.
func (ft *FT232H) Close() error {
	return errors.Join(ft.SPI.Close(), ft.FT232H.Close())
}
