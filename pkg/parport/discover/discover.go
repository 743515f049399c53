// Package discover lists host interfaces that could reach a PCIBX32 board.
// It lives apart from parport so the transport builds without libusb.
package discover

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/gousb"

	"github.com/OpenTraceLab/pcibx/pkg/parport"
)

// Kind categorizes host interfaces that could reach the board.
type Kind string

const (
	KindPPDev  Kind = "ppdev"
	KindIOPort Kind = "ioport"
	KindUSB    Kind = "usb-printer"
	KindSim    Kind = "simulator"
)

// Interface describes a detected interface.
type Interface struct {
	Kind        Kind
	Description string
	Path        string
	Address     uint16
	VendorID    uint16
	ProductID   uint16
	// Usable is false for interfaces that exist but cannot bit-bang the
	// control lines (USB printer-class bridges).
	Usable bool
}

// Label returns a user-friendly description for the interface.
func (i Interface) Label() string {
	switch {
	case i.Description != "":
		return i.Description
	case i.Path != "":
		return fmt.Sprintf("%s (%s)", i.Kind, i.Path)
	case i.Address != 0:
		return fmt.Sprintf("%s (0x%03X)", i.Kind, i.Address)
	}
	return fmt.Sprintf("%s (%04X:%04X)", i.Kind, i.VendorID, i.ProductID)
}

// LegacyPortBases are the conventional ISA parallel port addresses.
var LegacyPortBases = []uint16{0x378, 0x278, 0x3BC}

// Interfaces lists ppdev nodes, legacy I/O port bases (when
// /dev/port exists), USB-to-parallel bridges and the simulator. The
// simulator entry is always present so the tool can be exercised without
// hardware.
func Interfaces(ctx context.Context) ([]Interface, error) {
	results := ppdevNodes("/dev")

	if _, err := os.Stat(parport.DefaultDevPortPath); err == nil {
		for _, base := range LegacyPortBases {
			results = append(results, Interface{
				Kind:        KindIOPort,
				Description: fmt.Sprintf("Legacy I/O port 0x%03X via %s", base, parport.DefaultDevPortPath),
				Address:     base,
				Usable:      true,
			})
		}
	}

	usbInfos, err := usbBridges(ctx)
	results = append(results, usbInfos...)

	results = append(results, Interface{
		Kind:        KindSim,
		Description: "Simulator (no hardware)",
		Usable:      true,
	})

	return results, err
}

func ppdevNodes(devDir string) []Interface {
	matches, _ := filepath.Glob(filepath.Join(devDir, "parport[0-9]*"))
	sort.Strings(matches)

	infos := make([]Interface, 0, len(matches))
	for _, path := range matches {
		infos = append(infos, Interface{
			Kind:        KindPPDev,
			Description: fmt.Sprintf("Parallel port %s", path),
			Path:        path,
			Usable:      true,
		})
	}
	return infos
}

func usbBridges(ctx context.Context) ([]Interface, error) {
	var results []Interface
	usb := gousb.NewContext()
	defer usb.Close()

	_, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		if info, ok := classifyUSBDevice(desc); ok {
			results = append(results, info)
		}
		return false
	})
	if err != nil && err != gousb.ErrorAccess {
		return results, fmt.Errorf("discover: usb scan: %w", err)
	}
	return results, nil
}

// classifyUSBDevice reports USB-to-parallel bridges. They enumerate as
// printer-class devices which only stream data bytes, so they are listed as
// unusable for strobing registers.
func classifyUSBDevice(desc *gousb.DeviceDesc) (Interface, bool) {
	for _, known := range knownUSBParallelBridges {
		if uint16(desc.Vendor) == known.VendorID && uint16(desc.Product) == known.ProductID {
			return usbInfo(desc, known.Description), true
		}
	}
	for _, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if alt.Class == gousb.ClassPrinter {
					return usbInfo(desc, ""), true
				}
			}
		}
	}
	return Interface{}, false
}

func usbInfo(desc *gousb.DeviceDesc, description string) Interface {
	if description == "" {
		description = "USB printer-class device"
	}
	return Interface{
		Kind:        KindUSB,
		Description: fmt.Sprintf("%s at bus %d addr %d (printer class, no line control)", description, desc.Bus, desc.Address),
		VendorID:    uint16(desc.Vendor),
		ProductID:   uint16(desc.Product),
	}
}

type knownUSBDevice struct {
	VendorID    uint16
	ProductID   uint16
	Description string
}

var knownUSBParallelBridges = []knownUSBDevice{
	{VendorID: 0x067b, ProductID: 0x2305, Description: "Prolific PL2305 USB-to-parallel"},
	{VendorID: 0x1a86, ProductID: 0x7584, Description: "QinHeng CH340S USB-to-parallel"},
}
