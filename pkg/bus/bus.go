// Package bus implements the strobe protocol that turns a raw parallel port
// into addressable 8-bit registers.
//
// Every transaction starts by latching an address: the register number plus
// the bank offset goes onto the data lines and the address strobe is pulsed.
// A write then places the value on the data lines and pulses the write
// strobe; a read turns the data lines around and samples them. Each strobe is
// held for a fixed settle time so the board's latches can follow.
//
// Raw I/O failures are soft: they are logged, counted, and the transaction
// continues with a zero byte. Only a closed or vanished port
// (parport.ErrClosed) is returned to the caller.
package bus

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/OpenTraceLab/pcibx/pkg/parport"
)

// Settle times are hard contracts with the board's latches.
const (
	// SettleTime is the hold for address and data strobes.
	SettleTime = 100 * time.Microsecond
	// ExtendedSettleTime is the hold for registers with slow latches (the
	// measurement conversion trigger).
	ExtendedSettleTime = 2 * time.Millisecond
)

// Bus sequences register transactions over a parallel port.
type Bus struct {
	port   parport.Port
	offset byte
	delay  Delayer
	log    zerolog.Logger

	state  State
	errors int
}

// Option configures a Bus.
type Option func(*Bus)

// WithDelayer replaces the wall-clock delayer.
func WithDelayer(d Delayer) Option {
	return func(b *Bus) {
		b.delay = d
	}
}

// WithLogger sets the logger used for soft I/O failures.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Bus) {
		b.log = l
	}
}

// New wraps port. offset is added to every register address and selects the
// board bank.
func New(port parport.Port, offset byte, opts ...Option) *Bus {
	b := &Bus{
		port:   port,
		offset: offset,
		delay:  SystemDelayer{},
		log:    zerolog.Nop(),
		state:  StateIdle,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Offset returns the bank offset added to register addresses.
func (b *Bus) Offset() byte {
	return b.offset
}

// State returns the sequencer state after the last primitive.
func (b *Bus) State() State {
	return b.state
}

// Errors returns how many soft I/O failures have been absorbed.
func (b *Bus) Errors() int {
	return b.errors
}

// SetAddress latches reg+offset as the target of the next data phase.
func (b *Bus) SetAddress(reg uint8) error {
	if err := b.enter(StateIdle); err != nil {
		return err
	}
	if err := b.check("address", b.port.WriteData(reg+b.offset)); err != nil {
		return err
	}
	if err := b.enter(StateAddressSet); err != nil {
		return err
	}
	b.hold(SettleTime)
	return b.enter(StateIdle)
}

// WriteByte drives v into the latched register with the normal settle time.
func (b *Bus) WriteByte(v uint8) error {
	return b.writeData(v, SettleTime)
}

// WriteByteExtended drives v with the extended settle time.
func (b *Bus) WriteByteExtended(v uint8) error {
	return b.writeData(v, ExtendedSettleTime)
}

// ReadByte samples the latched register. A failed sample reads as zero.
func (b *Bus) ReadByte() (uint8, error) {
	if err := b.enter(StateReadEnable); err != nil {
		return 0, err
	}
	v, readErr := b.port.ReadData()
	if err := b.check("read", readErr); err != nil {
		return 0, err
	}
	if readErr != nil {
		v = 0
	}
	return v, b.enter(StateIdle)
}

// Write stores v into reg.
func (b *Bus) Write(reg, v uint8) error {
	if err := b.SetAddress(reg); err != nil {
		return err
	}
	return b.WriteByte(v)
}

// WriteExtended stores v into reg using the extended settle time.
func (b *Bus) WriteExtended(reg, v uint8) error {
	if err := b.SetAddress(reg); err != nil {
		return err
	}
	return b.WriteByteExtended(v)
}

// Read returns the contents of reg.
func (b *Bus) Read(reg uint8) (uint8, error) {
	if err := b.SetAddress(reg); err != nil {
		return 0, err
	}
	return b.ReadByte()
}

func (b *Bus) writeData(v uint8, settle time.Duration) error {
	if err := b.enter(StateIdle); err != nil {
		return err
	}
	if err := b.check("data", b.port.WriteData(v)); err != nil {
		return err
	}
	if err := b.enter(StateStrobeActive); err != nil {
		return err
	}
	b.hold(settle)
	return b.enter(StateIdle)
}

// enter drives the control pattern for s. The idle pattern is rewritten even
// when already idle so every transaction starts from a known line state.
func (b *Bus) enter(s State) error {
	if err := b.check("control "+s.String(), b.port.WriteControl(0xFF, s.Control())); err != nil {
		return err
	}
	b.state = s
	return nil
}

func (b *Bus) hold(d time.Duration) {
	// Strobe holds are never cancelled; they are far shorter than any
	// reaction to a termination request.
	_ = b.delay.Delay(context.Background(), d)
}

// check absorbs soft I/O errors and passes hard ones through.
func (b *Bus) check(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, parport.ErrClosed) {
		return err
	}
	b.errors++
	b.log.Warn().
		Err(err).
		Str("op", op).
		Str("state", b.state.String()).
		Int("errors", b.errors).
		Msg("register i/o failed, continuing")
	return nil
}
