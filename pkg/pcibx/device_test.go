package pcibx

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/OpenTraceLab/pcibx/pkg/bus"
	"github.com/OpenTraceLab/pcibx/pkg/parport"
)

func newTestDevice(t *testing.T, cfg SimConfig, opts Options) (*Device, *SimBoard, *bus.RecordingDelayer) {
	t.Helper()
	if cfg.Slot == 0 {
		cfg.Slot = opts.Slot
	}
	board := NewSimBoard(cfg)
	delay := &bus.RecordingDelayer{}
	opts.Delayer = delay
	dev := New(board, opts)
	t.Cleanup(func() { _ = dev.Close() })
	return dev, board, delay
}

func TestBoardIDAndFirmwareRevision(t *testing.T) {
	dev, _, _ := newTestDevice(t, SimConfig{BoardID: 0x42, FirmwareRevision: 0x07}, Options{})

	id, err := dev.BoardID()
	if err != nil {
		t.Fatalf("BoardID returned error: %v", err)
	}
	if id != 0x42 {
		t.Fatalf("BoardID = 0x%02X, want 0x42", id)
	}
	rev, err := dev.FirmwareRevision()
	if err != nil {
		t.Fatalf("FirmwareRevision returned error: %v", err)
	}
	if rev != 0x07 {
		t.Fatalf("FirmwareRevision = 0x%02X, want 0x07", rev)
	}
}

func TestSlotSelectsRegisterBank(t *testing.T) {
	dev, _, _ := newTestDevice(t, SimConfig{BoardID: 0x42}, Options{Slot: SlotPCI2})
	id, err := dev.BoardID()
	if err != nil {
		t.Fatalf("BoardID returned error: %v", err)
	}
	if id != 0x42 {
		t.Fatalf("PCI_2 BoardID = 0x%02X, want 0x42", id)
	}

	// A board strapped for the other bank never answers.
	other, _, _ := newTestDevice(t, SimConfig{BoardID: 0x42, Slot: SlotPCI2}, Options{Slot: SlotPCI1})
	id, err = other.BoardID()
	if err != nil {
		t.Fatalf("BoardID returned error: %v", err)
	}
	if id != 0xFF {
		t.Fatalf("mismatched bank BoardID = 0x%02X, want floating 0xFF", id)
	}
}

func TestAuxRailsAreActiveLow(t *testing.T) {
	dev, board, _ := newTestDevice(t, SimConfig{}, Options{})

	steps := []struct {
		name string
		run  func() error
		reg  Register
		want uint8
	}{
		{"aux5 on", func() error { return dev.Aux5(true) }, RegAux5V, 0},
		{"aux5 off", func() error { return dev.Aux5(false) }, RegAux5V, 1},
		{"aux33 on", func() error { return dev.Aux33(true) }, RegAux33V, 0},
		{"aux33 off", func() error { return dev.Aux33(false) }, RegAux33V, 1},
		{"ramp fast", func() error { return dev.FastRamp(true) }, RegRamp, 1},
		{"ramp slow", func() error { return dev.FastRamp(false) }, RegRamp, 0},
		{"global on", func() error { return dev.GlobalPower(true) }, RegGlobalPower, 1},
		{"global off", func() error { return dev.GlobalPower(false) }, RegGlobalPower, 0},
	}
	for _, s := range steps {
		if err := s.run(); err != nil {
			t.Fatalf("%s returned error: %v", s.name, err)
		}
		if got := board.Register(s.reg); got != s.want {
			t.Fatalf("%s: %s = %d, want %d", s.name, s.reg, got, s.want)
		}
	}
}

func TestUUTPowerOnPollsUntilReady(t *testing.T) {
	dev, board, delay := newTestDevice(t, SimConfig{ReadyAfter: 3}, Options{})

	if err := dev.UUTPower(context.Background(), true); err != nil {
		t.Fatalf("UUTPower(on) returned error: %v", err)
	}
	global, uut := board.PowerState()
	if !global || !uut {
		t.Fatalf("power state = global:%v uut:%v, want both on", global, uut)
	}
	if board.StatusReads() != 4 {
		t.Fatalf("STATUS read %d times, want 4", board.StatusReads())
	}
	if n := delay.Count(DefaultPollInterval); n != 4 {
		t.Fatalf("poll interval waited %d times, want 4", n)
	}

	// Global power is enabled before the UUT rails.
	var order []Register
	for _, w := range board.Writes {
		order = append(order, w.Reg)
	}
	if len(order) < 2 || order[0] != RegGlobalPower || order[1] != RegUUTVoltage {
		t.Fatalf("write order = %v, want GLOBALPWR then UUTVOLT", order)
	}
}

func TestUUTPowerOffSkipsPolling(t *testing.T) {
	dev, board, delay := newTestDevice(t, SimConfig{}, Options{})

	if err := dev.UUTPower(context.Background(), false); err != nil {
		t.Fatalf("UUTPower(off) returned error: %v", err)
	}
	if got := board.Register(RegUUTVoltage); got != 1 {
		t.Fatalf("UUTVOLT = %d, want 1", got)
	}
	if board.StatusReads() != 0 || delay.Count(DefaultPollInterval) != 0 {
		t.Fatal("UUTPower(off) polled STATUS")
	}
}

func TestUUTPowerReadyTimeout(t *testing.T) {
	dev, board, delay := newTestDevice(t, SimConfig{ReadyAfter: -1}, Options{ReadyTimeout: time.Second})

	err := dev.UUTPower(context.Background(), true)
	if !errors.Is(err, ErrReadyTimeout) {
		t.Fatalf("UUTPower error = %v, want ErrReadyTimeout", err)
	}
	if n := delay.Count(DefaultPollInterval); n != 5 {
		t.Fatalf("poll interval waited %d times, want 5", n)
	}
	if board.StatusReads() != 5 {
		t.Fatalf("STATUS read %d times, want 5", board.StatusReads())
	}
	if total := delay.Total(); total < time.Second {
		t.Fatalf("waited %v in total, want at least the 1s timeout", total)
	}
}

func TestUUTPowerHonorsCancellation(t *testing.T) {
	dev, _, _ := newTestDevice(t, SimConfig{ReadyAfter: -1}, Options{ReadyTimeout: 0})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := dev.UUTPower(ctx, true)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("UUTPower error = %v, want context.Canceled", err)
	}
}

func TestMeasureRunsConversionPipeline(t *testing.T) {
	cfg := DefaultSimConfig()
	dev, board, delay := newTestDevice(t, cfg, Options{})

	got, err := dev.Measure(context.Background(), ChannelV12UUT)
	if err != nil {
		t.Fatalf("Measure returned error: %v", err)
	}
	want := ChannelValue(ChannelV12UUT, cfg.Channels[ChannelV12UUT])
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("Measure(+12V UUT) = %f, want %f", got, want)
	}
	if board.PipelineClocks() != measureClocks {
		t.Fatalf("pipeline clocked %d times, want %d", board.PipelineClocks(), measureClocks)
	}
	if board.Register(RegMeasureCtl) != uint8(ChannelV12UUT) {
		t.Fatalf("MEASURE_CTL = 0x%02X, want 0x%02X", board.Register(RegMeasureCtl), uint8(ChannelV12UUT))
	}
	if n := delay.Count(measureSelectWait); n != 1 {
		t.Fatalf("select wait used %d times, want 1", n)
	}
	// One extended hold for the conversion trigger plus the conversion wait.
	if n := delay.Count(bus.ExtendedSettleTime); n != 2 {
		t.Fatalf("2ms periods = %d, want 2", n)
	}
}

func TestMeasureRejectsUnknownChannel(t *testing.T) {
	dev, board, _ := newTestDevice(t, SimConfig{}, Options{})
	if _, err := dev.Measure(context.Background(), Channel(0x03)); err == nil {
		t.Fatal("Measure(0x03) returned nil error")
	}
	if len(board.Writes) != 0 {
		t.Fatalf("invalid channel still wrote %d registers", len(board.Writes))
	}
}

func TestMeasureFrequency(t *testing.T) {
	dev, board, delay := newTestDevice(t, SimConfig{FrequencyCount: 0x100000}, Options{})

	got, err := dev.MeasureFrequency(context.Background())
	if err != nil {
		t.Fatalf("MeasureFrequency returned error: %v", err)
	}
	if math.Abs(got-100.0000954) > 1e-6 {
		t.Fatalf("MeasureFrequency = %f, want ~100.0001", got)
	}
	if board.Register(RegFreqMeasureCtl) != 1 {
		t.Fatal("frequency counter was not triggered")
	}
	if delay.Count(freqSettle) != 1 {
		t.Fatal("frequency settle wait missing")
	}
}

func TestSetResetDelayWritesLittleEndian(t *testing.T) {
	dev, board, _ := newTestDevice(t, SimConfig{}, Options{})

	if err := dev.SetResetDelay(0.150); err != nil {
		t.Fatalf("SetResetDelay returned error: %v", err)
	}
	want := []RegisterWrite{
		{RegReset0, 0xE2},
		{RegReset1, 0xE4},
		{RegReset2, 0x80},
	}
	if len(board.Writes) != len(want) {
		t.Fatalf("writes = %v, want %v", board.Writes, want)
	}
	for i := range want {
		if board.Writes[i] != want[i] {
			t.Fatalf("write %d = %+v, want %+v", i, board.Writes[i], want[i])
		}
	}

	if err := dev.DefaultResetDelay(); err != nil {
		t.Fatalf("DefaultResetDelay returned error: %v", err)
	}
	for _, reg := range []Register{RegReset0, RegReset1, RegReset2} {
		if board.Register(reg) != 0 {
			t.Fatalf("%s = 0x%02X after default, want 0", reg, board.Register(reg))
		}
	}

	written := len(board.Writes)
	for _, sec := range []float64{-1, MaxResetDelay + 0.01, 6.0} {
		if err := dev.SetResetDelay(sec); err == nil {
			t.Fatalf("SetResetDelay(%v) returned nil error", sec)
		}
	}
	if len(board.Writes) != written {
		t.Fatalf("rejected delays wrote %v", board.Writes[written:])
	}
}

func TestStatusAndClear(t *testing.T) {
	dev, _, _ := newTestDevice(t, SimConfig{StatusExtra: Status32Bit | Status64Bit}, Options{})

	st, err := dev.Status()
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if !st.Has(Status32Bit|Status64Bit) || st.Has(StatusRSTDeasserted) {
		t.Fatalf("Status = %#x, want 32/64-bit set and RST# asserted", uint8(st))
	}
	if err := dev.ClearBitStatus(); err != nil {
		t.Fatalf("ClearBitStatus returned error: %v", err)
	}
	st, _ = dev.Status()
	if st.Has(Status32Bit) || st.Has(Status64Bit) {
		t.Fatalf("Status after clear = %#x, want handshake bits clear", uint8(st))
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	port := parport.NewSimPort()
	dev := New(port, Options{Delayer: &bus.RecordingDelayer{}})

	for i := 0; i < 3; i++ {
		if err := dev.Close(); err != nil {
			t.Fatalf("Close #%d returned error: %v", i+1, err)
		}
	}
	if closed, n := port.Closed(); !closed || n != 1 {
		t.Fatalf("port closed=%v count=%d, want closed once", closed, n)
	}
	if _, err := dev.BoardID(); !errors.Is(err, parport.ErrClosed) {
		t.Fatalf("BoardID after Close error = %v, want ErrClosed", err)
	}
}

func TestOpenSimBackend(t *testing.T) {
	opts := DefaultOptions()
	opts.Port = parport.Config{Backend: parport.BackendSim}
	opts.Slot = SlotPCI2
	opts.Delayer = &bus.RecordingDelayer{}
	opts.Sim = SimConfig{BoardID: 0x5A}

	dev, err := Open(opts)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer dev.Close()

	if dev.Slot() != SlotPCI2 {
		t.Fatalf("Slot() = %s, want PCI_2", dev.Slot())
	}
	id, err := dev.BoardID()
	if err != nil {
		t.Fatalf("BoardID returned error: %v", err)
	}
	if id != 0x5A {
		t.Fatalf("BoardID = 0x%02X, want 0x5A", id)
	}
}

func TestOpenRejectsInvalidSlot(t *testing.T) {
	opts := DefaultOptions()
	opts.Slot = Slot(3)
	if _, err := Open(opts); err == nil {
		t.Fatal("Open with slot 3 returned nil error")
	}
}
