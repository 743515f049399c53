package pcibx

import "fmt"

// Register is an 8-bit offset into the board's register map.
type Register uint8

const (
	RegFirmwareRev    Register = 0x50
	RegBoardID        Register = 0x53
	RegGlobalPower    Register = 0x63
	RegUUTVoltage     Register = 0x64
	RegAux5V          Register = 0x65
	RegAux33V         Register = 0x66
	RegMeasureCtl     Register = 0x67
	RegMeasureConv    Register = 0x68
	RegMeasureStrobe  Register = 0x69
	RegMeasureData0   Register = 0x6A
	RegMeasureData1   Register = 0x6B
	RegReset0         Register = 0x71
	RegReset1         Register = 0x72
	RegReset2         Register = 0x73
	RegStatus         Register = 0x76
	RegClearBitStatus Register = 0x77
	RegFreqMeasure0   Register = 0x78
	RegFreqMeasure1   Register = 0x79
	RegFreqMeasure2   Register = 0x7A
	RegFreqMeasureCtl Register = 0x7B
	RegRamp           Register = 0x7C
)

var registerNames = map[Register]string{
	RegFirmwareRev:    "FIRMREV",
	RegBoardID:        "BOARDID",
	RegGlobalPower:    "GLOBALPWR",
	RegUUTVoltage:     "UUTVOLT",
	RegAux5V:          "AUX5V",
	RegAux33V:         "AUX33V",
	RegMeasureCtl:     "MEASURE_CTL",
	RegMeasureConv:    "MEASURE_CONV",
	RegMeasureStrobe:  "MEASURE_STROBE",
	RegMeasureData0:   "MEASURE_DATA0",
	RegMeasureData1:   "MEASURE_DATA1",
	RegReset0:         "RST_0",
	RegReset1:         "RST_1",
	RegReset2:         "RST_2",
	RegStatus:         "STATUS",
	RegClearBitStatus: "CLEARBITSTAT",
	RegFreqMeasure0:   "FREQMEASURE_0",
	RegFreqMeasure1:   "FREQMEASURE_1",
	RegFreqMeasure2:   "FREQMEASURE_2",
	RegFreqMeasureCtl: "FREQMEASURE_CTL",
	RegRamp:           "RAMP",
}

func (r Register) String() string {
	if name, ok := registerNames[r]; ok {
		return name
	}
	return fmt.Sprintf("REG_0x%02X", uint8(r))
}

// Registers returns the register map ordered by address.
func Registers() []Register {
	regs := make([]Register, 0, len(registerNames))
	for a := 0; a < 0x100; a++ {
		if _, ok := registerNames[Register(a)]; ok {
			regs = append(regs, Register(a))
		}
	}
	return regs
}

// Slot selects which of the two board banks is addressed (jumper JP15).
type Slot int

const (
	SlotPCI1 Slot = 1
	SlotPCI2 Slot = 2
)

// Register bank offsets for each slot.
const (
	RegOffsetPCI1 byte = 0x00
	RegOffsetPCI2 byte = 0x80
)

// Offset returns the constant added to every register address.
func (s Slot) Offset() byte {
	if s == SlotPCI2 {
		return RegOffsetPCI2
	}
	return RegOffsetPCI1
}

func (s Slot) String() string {
	switch s {
	case SlotPCI1:
		return "PCI_1"
	case SlotPCI2:
		return "PCI_2"
	}
	return fmt.Sprintf("Slot(%d)", int(s))
}

// Valid reports whether s names one of the two banks.
func (s Slot) Valid() bool {
	return s == SlotPCI1 || s == SlotPCI2
}
