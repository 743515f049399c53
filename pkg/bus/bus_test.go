package bus

import (
	"errors"
	"testing"

	"github.com/OpenTraceLab/pcibx/pkg/parport"
)

// registerFile is a port that decodes the strobe protocol and stores writes
// per address, so reads echo whatever was last written to that register.
type registerFile struct {
	control byte
	data    byte
	addr    byte
	regs    map[byte]byte
}

func newRegisterFile() *registerFile {
	return &registerFile{control: ControlIdle, regs: make(map[byte]byte)}
}

func (r *registerFile) WriteControl(mask, value byte) error {
	r.control = r.control&^mask | value&mask
	switch r.control {
	case ControlAddress:
		r.addr = r.data
	case ControlWrite:
		r.regs[r.addr] = r.data
	}
	return nil
}

func (r *registerFile) WriteData(b byte) error {
	r.data = b
	return nil
}

func (r *registerFile) ReadData() (byte, error) {
	if r.control != ControlReadEnable {
		return r.data, nil
	}
	return r.regs[r.addr], nil
}

func (r *registerFile) Close() error { return nil }

func TestSetAddressDrivesRegisterPlusOffset(t *testing.T) {
	for _, offset := range []byte{0x00, 0x80} {
		for reg := 0; reg < 256; reg++ {
			sim := parport.NewSimPort()
			b := New(sim, offset, WithDelayer(&RecordingDelayer{}))
			if err := b.SetAddress(uint8(reg)); err != nil {
				t.Fatalf("SetAddress(0x%02X) returned error: %v", reg, err)
			}

			want := uint8(reg) + offset
			var latched *byte
			for _, op := range sim.Ops() {
				if op.Kind == parport.OpWriteData {
					v := op.Value
					latched = &v
				}
				if op.Kind == parport.OpWriteControl && op.Value == ControlAddress {
					break
				}
			}
			if latched == nil {
				t.Fatalf("no data driven before address strobe (reg=0x%02X offset=0x%02X)", reg, offset)
			}
			if *latched != want {
				t.Fatalf("reg=0x%02X offset=0x%02X: data = 0x%02X, want 0x%02X", reg, offset, *latched, want)
			}
			if b.State() != StateIdle {
				t.Fatalf("State() = %s after SetAddress, want Idle", b.State())
			}
		}
	}
}

func TestSetAddressSequence(t *testing.T) {
	sim := parport.NewSimPort()
	delay := &RecordingDelayer{}
	b := New(sim, 0x80, WithDelayer(delay))
	if err := b.SetAddress(0x63); err != nil {
		t.Fatalf("SetAddress returned error: %v", err)
	}

	want := []parport.Op{
		{Kind: parport.OpWriteControl, Mask: 0xFF, Value: ControlIdle},
		{Kind: parport.OpWriteData, Mask: 0xFF, Value: 0xE3},
		{Kind: parport.OpWriteControl, Mask: 0xFF, Value: ControlAddress},
		{Kind: parport.OpWriteControl, Mask: 0xFF, Value: ControlIdle},
	}
	got := sim.Ops()
	if len(got) != len(want) {
		t.Fatalf("ops = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("op %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if len(delay.Delays) != 1 || delay.Delays[0] != SettleTime {
		t.Fatalf("delays = %v, want [%v]", delay.Delays, SettleTime)
	}
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	for _, offset := range []byte{0x00, 0x80} {
		b := New(newRegisterFile(), offset, WithDelayer(&RecordingDelayer{}))
		for _, v := range []uint8{0x00, 0x01, 0x5A, 0xFF} {
			if err := b.Write(0x63, v); err != nil {
				t.Fatalf("Write returned error: %v", err)
			}
			got, err := b.Read(0x63)
			if err != nil {
				t.Fatalf("Read returned error: %v", err)
			}
			if got != v {
				t.Fatalf("offset 0x%02X: Read = 0x%02X, want 0x%02X", offset, got, v)
			}
		}
	}
}

func TestSettleTimes(t *testing.T) {
	delay := &RecordingDelayer{}
	b := New(parport.NewSimPort(), 0, WithDelayer(delay))

	if err := b.Write(0x63, 1); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if delay.Count(SettleTime) != 2 || len(delay.Delays) != 2 {
		t.Fatalf("Write delays = %v, want two %v holds", delay.Delays, SettleTime)
	}

	delay.Delays = nil
	if err := b.WriteExtended(0x68, 0); err != nil {
		t.Fatalf("WriteExtended returned error: %v", err)
	}
	if delay.Count(SettleTime) != 1 || delay.Count(ExtendedSettleTime) != 1 {
		t.Fatalf("WriteExtended delays = %v, want one %v and one %v", delay.Delays, SettleTime, ExtendedSettleTime)
	}
}

func TestReadByteTurnsDataLinesAround(t *testing.T) {
	sim := parport.NewSimPort()
	var sampled byte
	sim.OnRead = func(control, _ byte) (byte, error) {
		sampled = control
		return 0x42, nil
	}
	b := New(sim, 0, WithDelayer(&RecordingDelayer{}))

	v, err := b.Read(0x53)
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if v != 0x42 {
		t.Fatalf("Read = 0x%02X, want 0x42", v)
	}
	if sampled != ControlReadEnable {
		t.Fatalf("control during read = 0x%02X, want 0x%02X", sampled, ControlReadEnable)
	}
	if sim.Control() != ControlIdle {
		t.Fatalf("control after read = 0x%02X, want idle", sim.Control())
	}
}

func TestSoftErrorsAreAbsorbed(t *testing.T) {
	sim := parport.NewSimPort()
	sim.FailWrites = 1
	b := New(sim, 0, WithDelayer(&RecordingDelayer{}))

	if err := b.Write(0x63, 1); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if b.Errors() != 1 {
		t.Fatalf("Errors() = %d, want 1", b.Errors())
	}

	sim.OnRead = func(_, _ byte) (byte, error) {
		return 0x99, parport.ErrIO
	}
	v, err := b.Read(0x76)
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if v != 0 {
		t.Fatalf("Read after failed sample = 0x%02X, want 0", v)
	}
	if b.Errors() != 2 {
		t.Fatalf("Errors() = %d, want 2", b.Errors())
	}
}

func TestClosedPortIsHardError(t *testing.T) {
	sim := parport.NewSimPort()
	sim.Close()
	b := New(sim, 0, WithDelayer(&RecordingDelayer{}))

	if err := b.Write(0x63, 1); !errors.Is(err, parport.ErrClosed) {
		t.Fatalf("Write error = %v, want ErrClosed", err)
	}
	if _, err := b.Read(0x76); !errors.Is(err, parport.ErrClosed) {
		t.Fatalf("Read error = %v, want ErrClosed", err)
	}
	if b.Errors() != 0 {
		t.Fatalf("Errors() = %d, want 0", b.Errors())
	}
}

func TestStateControlMapping(t *testing.T) {
	for _, s := range []State{StateIdle, StateAddressSet, StateStrobeActive, StateReadEnable} {
		got, ok := StateForControl(s.Control())
		if !ok || got != s {
			t.Fatalf("StateForControl(0x%02X) = %s/%v, want %s", s.Control(), got, ok, s)
		}
	}
	if _, ok := StateForControl(0x00); ok {
		t.Fatalf("StateForControl(0x00) reported a state")
	}
	if State(9).String() != "State(9)" {
		t.Fatalf("unexpected String for unknown state: %s", State(9))
	}
}
