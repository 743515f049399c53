//go:build linux

package parport

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Register offsets from the I/O base of a legacy (SPP/PS2) parallel port.
const (
	ioDataOffset    = 0
	ioControlOffset = 2
)

// IOPort drives a legacy parallel port by address through /dev/port. It needs
// CAP_SYS_RAWIO, which is the same privilege ioperm(2) requires.
type IOPort struct {
	base uint16

	mu      sync.Mutex
	fd      int
	control byte
}

func openIOPort(devPort string, base uint16) (*IOPort, error) {
	fd, err := unix.Open(devPort, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", devPort, classifyOpenErr(err))
	}

	p := &IOPort{base: base, fd: fd}

	// /dev/port has no claim semantics of its own; an advisory lock keeps two
	// instances of this tool from interleaving strobes on the same machine.
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		p.Close()
		return nil, fmt.Errorf("lock %s: %w", devPort, classifyOpenErr(err))
	}

	if err := p.WriteControl(0xFF, ControlIdle); err != nil {
		p.Close()
		return nil, fmt.Errorf("init port 0x%03X: %w", base, err)
	}
	return p, nil
}

func (p *IOPort) WriteControl(mask, value byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fd < 0 {
		return ErrClosed
	}
	// The control register does not read back reliably on every chipset, so
	// a shadow copy is the source of truth for the untouched bits.
	next := p.control&^mask | value&mask
	if err := p.out(ioControlOffset, next); err != nil {
		return err
	}
	p.control = next
	return nil
}

func (p *IOPort) WriteData(b byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fd < 0 {
		return ErrClosed
	}
	return p.out(ioDataOffset, b)
}

func (p *IOPort) ReadData() (byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fd < 0 {
		return 0, ErrClosed
	}
	buf := []byte{0}
	n, err := unix.Pread(p.fd, buf, int64(p.base)+ioDataOffset)
	if err != nil {
		return 0, classifyIOErr("inb", err)
	}
	if n != 1 {
		return 0, fmt.Errorf("%w: inb 0x%03X: short read", ErrIO, p.base)
	}
	return buf[0], nil
}

// Close unlocks and closes /dev/port. Safe to call more than once.
func (p *IOPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fd < 0 {
		return nil
	}
	_ = unix.Flock(p.fd, unix.LOCK_UN)
	err := unix.Close(p.fd)
	p.fd = -1
	if err != nil {
		return fmt.Errorf("close /dev/port: %w", err)
	}
	return nil
}

func (p *IOPort) out(offset uint16, b byte) error {
	addr := int64(p.base) + int64(offset)
	n, err := unix.Pwrite(p.fd, []byte{b}, addr)
	if err != nil {
		return classifyIOErr("outb", err)
	}
	if n != 1 {
		return fmt.Errorf("%w: outb 0x%03X: short write", ErrIO, addr)
	}
	return nil
}
