package pcibx

import "strings"

// Status is the STATUS register bitmask.
type Status uint8

const (
	StatusRSTDeasserted Status = 1 << 0 // RST# released, UUT power sequence done
	Status64Bit         Status = 1 << 1 // 64-bit handshake seen
	Status32Bit         Status = 1 << 2 // 32-bit handshake seen
	Status66MHz         Status = 1 << 3 // slot runs at 66 MHz
	StatusDUTAsserted   Status = 1 << 4 // DUT fully asserted
)

// Has reports whether every bit of flag is set.
func (s Status) Has(flag Status) bool {
	return s&flag == flag
}

type statusText struct {
	bit      Status
	set, clr string
}

var statusTexts = []statusText{
	{StatusRSTDeasserted, "RST# de-asserted", "RST# asserted"},
	{Status64Bit, "64-bit operation established", "No 64-bit handshake detected"},
	{Status32Bit, "32-bit operation established", "No 32-bit handshake detected"},
	{Status66MHz, "66 Mhz enabled slot", "33 Mhz enabled slot"},
	{StatusDUTAsserted, "DUT asserted", "DUT not fully asserted"},
}

// Descriptions returns one human-readable phrase per status bit.
func (s Status) Descriptions() []string {
	out := make([]string, len(statusTexts))
	for i, t := range statusTexts {
		if s.Has(t.bit) {
			out[i] = t.set
		} else {
			out[i] = t.clr
		}
	}
	return out
}

func (s Status) String() string {
	return strings.Join(s.Descriptions(), ";  ")
}
