package parport

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Port abstracts the raw control and data lines of a parallel port.
// Implementations perform synchronous, unbuffered I/O: every call reaches the
// hardware before it returns.
type Port interface {
	// WriteControl updates the control register. Bits set in mask take the
	// corresponding bits of value; the others are left untouched. Bit
	// ControlDirection switches the data lines to input when set.
	WriteControl(mask, value byte) error
	WriteData(b byte) error
	ReadData() (byte, error)
	Close() error
}

// ControlDirection is the control-register bit that turns the data lines
// around (set = port reads from the peripheral).
const ControlDirection byte = 0x20

// ControlIdle is the pattern written to the control lines right after a port
// is opened: data lines driven, all strobes de-asserted.
const ControlIdle byte = 0xDE

var (
	// ErrAccessDenied reports that the process may not claim the interface.
	ErrAccessDenied = errors.New("parport: access denied")
	// ErrNotFound reports a device path or I/O address that does not exist.
	ErrNotFound = errors.New("parport: not found")
	// ErrBusy reports that another process holds an exclusive claim.
	ErrBusy = errors.New("parport: interface busy")
	// ErrIO marks a single failed raw transaction. Callers may retry or
	// continue; the port stays usable.
	ErrIO = errors.New("parport: i/o failure")
	// ErrClosed is returned once the port is closed or the underlying device
	// disappeared. It is never recoverable.
	ErrClosed = errors.New("parport: port closed")
	// ErrUnsupported reports a backend that is not available on this OS.
	ErrUnsupported = errors.New("parport: backend not supported on this platform")
)

// Backend selects one of the interchangeable Port implementations.
type Backend string

const (
	BackendPPDev  Backend = "ppdev"
	BackendIOPort Backend = "ioport"
	BackendSim    Backend = "sim"
)

// ParseBackend maps a user-supplied backend name to a Backend.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ppdev", "parport":
		return BackendPPDev, nil
	case "ioport", "port", "legacy":
		return BackendIOPort, nil
	case "sim", "simulator":
		return BackendSim, nil
	}
	return "", fmt.Errorf("parport: unknown backend %q (want ppdev, ioport or sim)", s)
}

// Default locations used when a Config leaves them empty.
const (
	DefaultPPDevPath   = "/dev/parport0"
	DefaultIOPortBase  = 0x378
	DefaultDevPortPath = "/dev/port"
)

// Config describes which physical interface to open.
type Config struct {
	Backend Backend
	// Path is the ppdev node for BackendPPDev.
	Path string
	// Address is the I/O base address for BackendIOPort.
	Address uint16
}

// Open claims the interface described by cfg and puts the control lines into
// the idle pattern. BackendSim is not handled here; simulated ports are
// constructed directly because they carry a board model.
func Open(cfg Config) (Port, error) {
	switch cfg.Backend {
	case BackendPPDev, "":
		path := cfg.Path
		if path == "" {
			path = DefaultPPDevPath
		}
		p, err := openPPDev(path)
		if err != nil {
			return nil, err
		}
		return p, nil
	case BackendIOPort:
		addr := cfg.Address
		if addr == 0 {
			addr = DefaultIOPortBase
		}
		p, err := openIOPort(DefaultDevPortPath, addr)
		if err != nil {
			return nil, err
		}
		return p, nil
	case BackendSim:
		return nil, fmt.Errorf("parport: simulated ports must be constructed by the caller")
	}
	return nil, fmt.Errorf("parport: unknown backend %q", cfg.Backend)
}

// ParseAddress parses an I/O base address written as 0x378 (hex prefix
// required).
func ParseAddress(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return 0, fmt.Errorf("parport: address %q must be hex, e.g. 0x378", s)
	}
	v, err := strconv.ParseUint(s[2:], 16, 16)
	if err != nil {
		return 0, fmt.Errorf("parport: address %q: %w", s, err)
	}
	return uint16(v), nil
}
