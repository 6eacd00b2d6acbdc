package ft232h

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/yunginnanet/ft232h"
)

// ErrBadDescriptor is returned when a Descriptor cannot select any adapter.
var ErrBadDescriptor = errors.New("invalid FT232H descriptor provided")

// Descriptor selects one FT232H among those attached to the host.
type Descriptor struct {
	Index  int
	Serial string
	mask   *ft232h.Mask
}

func emptyMask(mask *ft232h.Mask) bool {
	return mask == nil || (mask.Serial == "" && mask.PID == "" && mask.VID == "" && mask.Desc == "" && mask.Index == "")
}

// Validate checks that the [Descriptor] names at least one attribute.
func (ftd Descriptor) Validate() error {
	if ftd.Index < 0 && ftd.Serial == "" && emptyMask(ftd.mask) {
		return ErrBadDescriptor
	}
	return nil
}

// Mask returns the [ft232h.Mask] used to open the adapter.
func (ftd Descriptor) Mask() *ft232h.Mask {
	mask := new(ft232h.Mask)
	if ftd.mask != nil {
		*mask = *ftd.mask
	}
	if ftd.Serial != "" {
		mask.Serial = ftd.Serial
	}
	if ftd.Index >= 0 {
		mask.Index = strconv.Itoa(ftd.Index)
	}
	return mask
}

func (ftd Descriptor) String() string {
	switch {
	case ftd.Serial != "":
		return "serial:" + ftd.Serial
	case ftd.Index >= 0:
		return "index:" + strconv.Itoa(ftd.Index)
	case ftd.mask != nil:
		return fmt.Sprintf("mask:%+v", *ftd.mask)
	default:
		return "none"
	}
}

// ByIndex selects the n-th adapter.
func ByIndex(index int) Descriptor {
	return Descriptor{Index: index}
}

// BySerial selects the adapter with the given USB serial number.
func BySerial(serial string) Descriptor {
	return Descriptor{Serial: serial, Index: -1}
}

// ByMask selects adapters matching mask.
func ByMask(mask *ft232h.Mask) Descriptor {
	return Descriptor{mask: mask, Index: -1}
}

// ParseDescriptor reads "index:N", "serial:S", or a bare index.
func ParseDescriptor(s string) (Descriptor, error) {
	s = strings.TrimSpace(s)
	kind, val, found := strings.Cut(s, ":")
	if !found {
		kind, val = "index", s
	}
	switch strings.ToLower(kind) {
	case "index":
		n, err := strconv.Atoi(val)
		if err != nil || n < 0 {
			return Descriptor{}, fmt.Errorf("%w: bad index %q", ErrBadDescriptor, val)
		}
		return ByIndex(n), nil
	case "serial":
		if val == "" {
			return Descriptor{}, fmt.Errorf("%w: empty serial", ErrBadDescriptor)
		}
		return BySerial(val), nil
	default:
		return Descriptor{}, fmt.Errorf("%w: unknown selector %q", ErrBadDescriptor, kind)
	}
}
