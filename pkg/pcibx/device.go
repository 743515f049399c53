// Package pcibx drives the Catalyst PCIBX32 PCI extender board.
//
// A Device owns one parallel port and one register bank (PCI slot 1 or 2).
// Its methods are the board commands: power sequencing, status and ID reads,
// ADC measurements, frequency measurement and RST# timing. Each command is a
// short series of register transactions issued through package bus.
//
// A Device is not safe for concurrent use; the protocol assumes a single
// owner of the port for the whole session.
package pcibx

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/OpenTraceLab/pcibx/pkg/bus"
	"github.com/OpenTraceLab/pcibx/pkg/parport"
)

// Timing of the command layer.
const (
	// DefaultPollInterval is the STATUS poll period while waiting for RST#.
	DefaultPollInterval = 200 * time.Millisecond
	// DefaultReadyTimeout bounds the RST# wait. It exceeds the longest
	// programmable reset delay (about 5.4s) with margin.
	DefaultReadyTimeout = 10 * time.Second

	freqSettle        = 15 * time.Millisecond
	measureSelectWait = 10 * time.Millisecond
	measureConvWait   = 2 * time.Millisecond
)

// ErrReadyTimeout is returned when the board never reports RST# de-asserted
// after UUT power-on.
var ErrReadyTimeout = errors.New("pcibx: timed out waiting for RST# de-assertion")

// Options configures Open and New.
type Options struct {
	// Port selects and locates the physical interface. Ignored by New.
	Port parport.Config
	Slot Slot

	// PollInterval and ReadyTimeout control the UUT power-on wait. A zero
	// ReadyTimeout waits until the context is cancelled.
	PollInterval time.Duration
	ReadyTimeout time.Duration

	Delayer bus.Delayer
	Logger  zerolog.Logger
	// Sim configures the simulated board used for parport.BackendSim.
	Sim SimConfig
}

// DefaultOptions returns Options for slot PCI_1 on the first ppdev port.
func DefaultOptions() Options {
	return Options{
		Port:         parport.Config{Backend: parport.BackendPPDev, Path: parport.DefaultPPDevPath},
		Slot:         SlotPCI1,
		PollInterval: DefaultPollInterval,
		ReadyTimeout: DefaultReadyTimeout,
		Logger:       zerolog.Nop(),
	}
}

// Device is an open handle on one board bank.
type Device struct {
	port parport.Port
	bus  *bus.Bus
	slot Slot

	pollInterval time.Duration
	readyTimeout time.Duration
	delay        bus.Delayer
	log          zerolog.Logger

	closed bool
}

// Open claims the interface described by opts.Port and returns a Device for
// opts.Slot. Failures wrap parport.ErrAccessDenied, parport.ErrNotFound or
// parport.ErrBusy.
func Open(opts Options) (*Device, error) {
	if opts.Slot == 0 {
		opts.Slot = SlotPCI1
	}
	if !opts.Slot.Valid() {
		return nil, fmt.Errorf("pcibx: invalid slot %d", int(opts.Slot))
	}

	var port parport.Port
	if opts.Port.Backend == parport.BackendSim {
		if opts.Sim.Slot == 0 {
			opts.Sim.Slot = opts.Slot
		}
		port = NewSimBoard(opts.Sim)
	} else {
		p, err := parport.Open(opts.Port)
		if err != nil {
			return nil, fmt.Errorf("pcibx: open device: %w", err)
		}
		port = p
	}

	dev := New(port, opts)
	dev.log.Debug().
		Str("backend", string(opts.Port.Backend)).
		Str("slot", opts.Slot.String()).
		Msg("device opened")
	return dev, nil
}

// New wraps an already open port. The Device takes ownership and closes port
// on Close.
func New(port parport.Port, opts Options) *Device {
	if opts.Slot == 0 {
		opts.Slot = SlotPCI1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Delayer == nil {
		opts.Delayer = bus.SystemDelayer{}
	}

	return &Device{
		port: port,
		bus: bus.New(port, opts.Slot.Offset(),
			bus.WithDelayer(opts.Delayer),
			bus.WithLogger(opts.Logger),
		),
		slot:         opts.Slot,
		pollInterval: opts.PollInterval,
		readyTimeout: opts.ReadyTimeout,
		delay:        opts.Delayer,
		log:          opts.Logger,
	}
}

// Slot returns the addressed bank.
func (d *Device) Slot() Slot {
	return d.slot
}

// IOErrors returns how many register transactions failed softly.
func (d *Device) IOErrors() int {
	return d.bus.Errors()
}

// Close releases the port. It is safe to call more than once.
func (d *Device) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if err := d.port.Close(); err != nil {
		return fmt.Errorf("pcibx: close device: %w", err)
	}
	d.log.Debug().Str("slot", d.slot.String()).Msg("device closed")
	return nil
}

func (d *Device) write(reg Register, v uint8) error {
	if err := d.bus.Write(uint8(reg), v); err != nil {
		return fmt.Errorf("pcibx: write %s: %w", reg, err)
	}
	return nil
}

func (d *Device) writeExtended(reg Register, v uint8) error {
	if err := d.bus.WriteExtended(uint8(reg), v); err != nil {
		return fmt.Errorf("pcibx: write %s: %w", reg, err)
	}
	return nil
}

func (d *Device) read(reg Register) (uint8, error) {
	v, err := d.bus.Read(uint8(reg))
	if err != nil {
		return 0, fmt.Errorf("pcibx: read %s: %w", reg, err)
	}
	return v, nil
}

func (d *Device) sending(command string) {
	d.log.Debug().Str("command", command).Msg("sending command")
}
