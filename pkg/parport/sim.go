package parport

import "fmt"

// OpKind identifies the primitive recorded by SimPort.
type OpKind uint8

const (
	OpWriteControl OpKind = iota
	OpWriteData
	OpReadData
)

func (k OpKind) String() string {
	switch k {
	case OpWriteControl:
		return "ctrl"
	case OpWriteData:
		return "data"
	case OpReadData:
		return "read"
	}
	return fmt.Sprintf("OpKind(%d)", uint8(k))
}

// Op captures one primitive call against a SimPort. For OpWriteControl,
// Value holds the resulting control register; for OpReadData it holds the
// byte returned.
type Op struct {
	Kind  OpKind
	Mask  byte
	Value byte
}

// ReadHook lets tests decide what the data lines read back. control is the
// control register at the time of the read and last the most recent byte
// driven onto the data lines.
type ReadHook func(control, last byte) (byte, error)

// SimPort is an in-memory Port useful for unit tests. By default it echoes the
// last byte written to the data lines, and it records every call.
type SimPort struct {
	OnRead ReadHook
	// FailWrites makes the next n data or control writes fail with ErrIO.
	FailWrites int

	control byte
	data    byte
	ops     []Op
	closed  bool
	closes  int
}

// NewSimPort returns an open simulated port with the control lines idle.
func NewSimPort() *SimPort {
	return &SimPort{control: ControlIdle}
}

func (s *SimPort) WriteControl(mask, value byte) error {
	if s.closed {
		return ErrClosed
	}
	if err := s.injectFailure("ctrl"); err != nil {
		return err
	}
	s.control = s.control&^mask | value&mask
	s.ops = append(s.ops, Op{Kind: OpWriteControl, Mask: mask, Value: s.control})
	return nil
}

func (s *SimPort) WriteData(b byte) error {
	if s.closed {
		return ErrClosed
	}
	if err := s.injectFailure("data"); err != nil {
		return err
	}
	s.data = b
	s.ops = append(s.ops, Op{Kind: OpWriteData, Mask: 0xFF, Value: b})
	return nil
}

func (s *SimPort) ReadData() (byte, error) {
	if s.closed {
		return 0, ErrClosed
	}
	v := s.data
	if s.OnRead != nil {
		var err error
		if v, err = s.OnRead(s.control, s.data); err != nil {
			return 0, err
		}
	}
	s.ops = append(s.ops, Op{Kind: OpReadData, Mask: 0xFF, Value: v})
	return v, nil
}

func (s *SimPort) Close() error {
	s.closes++
	s.closed = true
	return nil
}

// Control returns the current control register.
func (s *SimPort) Control() byte {
	return s.control
}

// Ops returns a copy of every recorded call.
func (s *SimPort) Ops() []Op {
	return append([]Op(nil), s.ops...)
}

// Reset clears the recorded calls.
func (s *SimPort) Reset() {
	s.ops = s.ops[:0]
}

// Closed reports whether Close was called and how many times.
func (s *SimPort) Closed() (bool, int) {
	return s.closed, s.closes
}

func (s *SimPort) injectFailure(op string) error {
	if s.FailWrites <= 0 {
		return nil
	}
	s.FailWrites--
	return fmt.Errorf("%w: simulated %s failure", ErrIO, op)
}
