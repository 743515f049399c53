package pcibx

import (
	"github.com/OpenTraceLab/pcibx/pkg/bus"
	"github.com/OpenTraceLab/pcibx/pkg/parport"
)

// SimConfig describes the behavior of a simulated board.
type SimConfig struct {
	BoardID          uint8
	FirmwareRevision uint8
	// Slot is the bank the simulated board answers on.
	Slot Slot
	// ReadyAfter is how many STATUS reads after UUT power-on still report
	// RST# asserted. Negative means the board never becomes ready.
	ReadyAfter int
	// StatusExtra is ORed into STATUS (handshake and slot-speed bits).
	StatusExtra Status
	// FrequencyCount is the 24-bit counter latched by a frequency trigger.
	FrequencyCount uint32
	// Raw ADC codes per channel.
	Channels map[Channel]uint16
}

// DefaultSimConfig models a healthy board in slot PCI_1 running a 33 MHz
// slot with typical rail readings.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		BoardID:          0x32,
		FirmwareRevision: 0x11,
		Slot:             SlotPCI1,
		ReadyAfter:       1,
		StatusExtra:      Status32Bit | StatusDUTAsserted,
		FrequencyCount:   0x547AE1, // ~33 MHz
		Channels: map[Channel]uint16{
			ChannelV25Ref: 1812,
			ChannelV12UUT: 3419,
			ChannelV5UUT:  3625,
			ChannelV33UUT: 2392,
			ChannelV5Aux:  3625,
			ChannelA5:     290,
			ChannelA12:    72,
			ChannelA33:    435,
		},
	}
}

// SimBoard is a parport.Port that decodes the strobe protocol and emulates
// the board's register file. It backs the "sim" backend and the tests.
type SimBoard struct {
	cfg SimConfig

	control byte
	data    byte
	addr    byte
	closed  bool

	regs map[Register]uint8
	// Writes records every register write in order.
	Writes []RegisterWrite

	globalPower  bool
	uutOn        bool
	statusReads  int
	selected     Channel
	conversion   bool
	clocks       int
	freqLatched  uint32
	freqTriggers int
}

// RegisterWrite is one decoded register write.
type RegisterWrite struct {
	Reg   Register
	Value uint8
}

// NewSimBoard returns a simulated board. Zero fields of cfg fall back to
// DefaultSimConfig, except ReadyAfter and StatusExtra which are taken as
// given.
func NewSimBoard(cfg SimConfig) *SimBoard {
	def := DefaultSimConfig()
	if cfg.BoardID == 0 {
		cfg.BoardID = def.BoardID
	}
	if cfg.FirmwareRevision == 0 {
		cfg.FirmwareRevision = def.FirmwareRevision
	}
	if cfg.Slot == 0 {
		cfg.Slot = def.Slot
	}
	if cfg.FrequencyCount == 0 {
		cfg.FrequencyCount = def.FrequencyCount
	}
	if cfg.Channels == nil {
		cfg.Channels = def.Channels
	}
	return &SimBoard{
		cfg:     cfg,
		control: bus.ControlIdle,
		regs:    make(map[Register]uint8),
	}
}

func (s *SimBoard) WriteControl(mask, value byte) error {
	if s.closed {
		return parport.ErrClosed
	}
	prev := s.control
	s.control = s.control&^mask | value&mask
	if s.control == prev {
		return nil
	}
	switch s.control {
	case bus.ControlAddress:
		s.addr = s.data
	case bus.ControlWrite:
		if reg, ok := s.decode(s.addr); ok {
			s.store(reg, s.data)
		}
	}
	return nil
}

func (s *SimBoard) WriteData(b byte) error {
	if s.closed {
		return parport.ErrClosed
	}
	s.data = b
	return nil
}

func (s *SimBoard) ReadData() (byte, error) {
	if s.closed {
		return 0, parport.ErrClosed
	}
	if s.control != bus.ControlReadEnable {
		return s.data, nil
	}
	reg, ok := s.decode(s.addr)
	if !ok {
		// Another bank: nobody drives the lines.
		return 0xFF, nil
	}
	return s.load(reg), nil
}

func (s *SimBoard) Close() error {
	s.closed = true
	return nil
}

// Register returns the last value written to reg.
func (s *SimBoard) Register(reg Register) uint8 {
	return s.regs[reg]
}

// PowerState reports global and UUT power as the board sees them.
func (s *SimBoard) PowerState() (global, uut bool) {
	return s.globalPower, s.uutOn
}

// StatusReads returns how many times STATUS was read.
func (s *SimBoard) StatusReads() int {
	return s.statusReads
}

// PipelineClocks returns the number of MEASURE_STROBE clocks since the last
// conversion trigger.
func (s *SimBoard) PipelineClocks() int {
	return s.clocks
}

func (s *SimBoard) decode(addr byte) (Register, bool) {
	if addr&0x80 != s.cfg.Slot.Offset() {
		return 0, false
	}
	return Register(addr &^ 0x80), true
}

func (s *SimBoard) store(reg Register, v uint8) {
	s.regs[reg] = v
	s.Writes = append(s.Writes, RegisterWrite{Reg: reg, Value: v})

	switch reg {
	case RegGlobalPower:
		s.globalPower = v != 0
		if !s.globalPower {
			s.uutOn = false
		}
	case RegUUTVoltage:
		// Active low, and only effective with global power on.
		s.uutOn = v == 0 && s.globalPower
		s.statusReads = 0
	case RegMeasureCtl:
		s.selected = Channel(v)
		s.conversion = false
	case RegMeasureConv:
		s.conversion = true
		s.clocks = 0
	case RegMeasureStrobe:
		s.clocks++
	case RegFreqMeasureCtl:
		if v != 0 {
			s.freqTriggers++
			s.freqLatched = s.cfg.FrequencyCount & 0xFFFFFF
		}
	case RegClearBitStatus:
		s.cfg.StatusExtra &^= Status32Bit | Status64Bit
	}
}

func (s *SimBoard) load(reg Register) uint8 {
	switch reg {
	case RegBoardID:
		return s.cfg.BoardID
	case RegFirmwareRev:
		return s.cfg.FirmwareRevision
	case RegStatus:
		s.statusReads++
		st := s.cfg.StatusExtra &^ StatusRSTDeasserted
		if s.uutOn && s.cfg.ReadyAfter >= 0 && s.statusReads > s.cfg.ReadyAfter {
			st |= StatusRSTDeasserted
		}
		return uint8(st)
	case RegMeasureData0, RegMeasureData1:
		if !s.conversion || s.clocks < measureClocks {
			return 0
		}
		raw := s.cfg.Channels[s.selected]
		if reg == RegMeasureData0 {
			return uint8(raw)
		}
		return uint8(raw >> 8)
	case RegFreqMeasure0:
		return uint8(s.freqLatched)
	case RegFreqMeasure1:
		return uint8(s.freqLatched >> 8)
	case RegFreqMeasure2:
		return uint8(s.freqLatched >> 16)
	}
	return s.regs[reg]
}
