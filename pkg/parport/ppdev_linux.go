//go:build linux

package parport

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ppdev ioctl request numbers from linux/ppdev.h ('p' magic). Encoded with
// the generic _IOC layout used by x86, arm and arm64.
const (
	ppWCONTROL = 0x40017084
	ppRDATA    = 0x80017085
	ppWDATA    = 0x40017086
	ppCLAIM    = 0x0000708B
	ppRELEASE  = 0x0000708C
	ppFCONTROL = 0x4002708E
	ppEXCL     = 0x0000708F
	ppDATADIR  = 0x40047090
)

// ppdev only lets user space frob STROBE, AUTOFD, INIT and SELECT.
const ppdevControlLines byte = 0x0F

// ppFrob mirrors struct ppdev_frob_struct.
type ppFrob struct {
	mask byte
	val  byte
}

// PPDev drives a parallel port through the Linux ppdev character device.
type PPDev struct {
	path string

	mu      sync.Mutex
	fd      int
	claimed bool
	input   bool
}

func openPPDev(path string) (*PPDev, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, classifyOpenErr(err))
	}

	p := &PPDev{path: path, fd: fd}

	// Exclusive access keeps other parport clients (lp, plip) off the bus
	// while the board is being clocked.
	if _, err := unix.IoctlRetInt(fd, ppEXCL); err != nil {
		p.Close()
		return nil, fmt.Errorf("PPEXCL %s: %w", path, classifyOpenErr(err))
	}
	if _, err := unix.IoctlRetInt(fd, ppCLAIM); err != nil {
		p.Close()
		return nil, fmt.Errorf("PPCLAIM %s: %w", path, classifyOpenErr(err))
	}
	p.claimed = true

	if err := p.WriteControl(0xFF, ControlIdle); err != nil {
		p.Close()
		return nil, fmt.Errorf("init %s: %w", path, err)
	}
	return p, nil
}

func (p *PPDev) WriteControl(mask, value byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fd < 0 {
		return ErrClosed
	}

	if mask&ControlDirection != 0 {
		input := value&ControlDirection != 0
		if input != p.input {
			if err := unix.IoctlSetPointerInt(p.fd, ppDATADIR, boolToInt(input)); err != nil {
				return classifyIOErr("PPDATADIR", err)
			}
			p.input = input
		}
	}

	frob := ppFrob{mask: mask & ppdevControlLines, val: value & mask & ppdevControlLines}
	if frob.mask == 0 {
		return nil
	}
	if frob.mask == ppdevControlLines {
		v := frob.val
		return p.ioctlByte("PPWCONTROL", ppWCONTROL, &v)
	}
	if err := ioctlPtr(p.fd, ppFCONTROL, unsafe.Pointer(&frob)); err != nil {
		return classifyIOErr("PPFCONTROL", err)
	}
	return nil
}

func (p *PPDev) WriteData(b byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fd < 0 {
		return ErrClosed
	}
	return p.ioctlByte("PPWDATA", ppWDATA, &b)
}

func (p *PPDev) ReadData() (byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fd < 0 {
		return 0, ErrClosed
	}
	var b byte
	if err := p.ioctlByte("PPRDATA", ppRDATA, &b); err != nil {
		return 0, err
	}
	return b, nil
}

// Close releases the claim and the file descriptor. It is safe to call more
// than once and on a partially opened port.
func (p *PPDev) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fd < 0 {
		return nil
	}

	var firstErr error
	if p.claimed {
		if _, err := unix.IoctlRetInt(p.fd, ppRELEASE); err != nil {
			firstErr = fmt.Errorf("PPRELEASE %s: %w", p.path, err)
		}
		p.claimed = false
	}
	if err := unix.Close(p.fd); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close %s: %w", p.path, err)
	}
	p.fd = -1
	return firstErr
}

func (p *PPDev) ioctlByte(name string, req uint, b *byte) error {
	if err := ioctlPtr(p.fd, req, unsafe.Pointer(b)); err != nil {
		return classifyIOErr(name, err)
	}
	return nil
}

func ioctlPtr(fd int, req uint, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
