package bus

import "fmt"

// State is the position of the strobe sequencer within one register
// transaction.
type State uint8

const (
	StateIdle State = iota
	StateAddressSet
	StateStrobeActive
	StateReadEnable
)

var stateNames = map[State]string{
	StateIdle:         "Idle",
	StateAddressSet:   "AddressSet",
	StateStrobeActive: "StrobeActive",
	StateReadEnable:   "ReadEnable",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", s)
}

// Control-line patterns driven for each state. The board decodes nSTROBE,
// nAUTOFD, nINIT and nSELECTIN; 0xFF additionally sets the direction bit so
// the data lines float for a read.
const (
	ControlIdle       byte = 0xDE
	ControlAddress    byte = 0xD6
	ControlWrite      byte = 0xDC
	ControlReadEnable byte = 0xFF
)

var stateControl = map[State]byte{
	StateIdle:         ControlIdle,
	StateAddressSet:   ControlAddress,
	StateStrobeActive: ControlWrite,
	StateReadEnable:   ControlReadEnable,
}

// Control returns the control-line pattern for s.
func (s State) Control() byte {
	return stateControl[s]
}

// StateForControl maps a control-line pattern back to its state. Unknown
// patterns report false.
func StateForControl(c byte) (State, bool) {
	for s, v := range stateControl {
		if v == c {
			return s, true
		}
	}
	return StateIdle, false
}
