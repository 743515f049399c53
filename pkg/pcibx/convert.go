package pcibx

import (
	"fmt"
	"math"
)

// Channel selects one analog input of the on-board ADC.
type Channel uint8

const (
	ChannelV25Ref Channel = 0x08
	ChannelV12UUT Channel = 0x09
	ChannelV5UUT  Channel = 0x0A
	ChannelV33UUT Channel = 0x0B
	ChannelV5Aux  Channel = 0x0C
	ChannelA5     Channel = 0x0D
	ChannelA12    Channel = 0x0E
	ChannelA33    Channel = 0x0F
)

// Unit is the physical unit of a measurement.
type Unit string

const (
	UnitVolt   Unit = "Volt"
	UnitAmpere Unit = "Ampere"
	UnitMHz    Unit = "Mhz"
)

type channelInfo struct {
	label string
	unit  Unit
}

var channels = map[Channel]channelInfo{
	ChannelV25Ref: {"+2.5V Reference", UnitVolt},
	ChannelV12UUT: {"+12V UUT", UnitVolt},
	ChannelV5UUT:  {"+5V UUT", UnitVolt},
	ChannelV33UUT: {"+3.3V UUT", UnitVolt},
	ChannelV5Aux:  {"+5V AUX", UnitVolt},
	ChannelA5:     {"+5V Current", UnitAmpere},
	ChannelA12:    {"+12V Current", UnitAmpere},
	ChannelA33:    {"+3.3V Current", UnitAmpere},
}

// Channels returns all measurement channels in select-id order.
func Channels() []Channel {
	return []Channel{
		ChannelV25Ref, ChannelV12UUT, ChannelV5UUT, ChannelV33UUT,
		ChannelV5Aux, ChannelA5, ChannelA12, ChannelA33,
	}
}

// Valid reports whether c is one of the eight ADC inputs.
func (c Channel) Valid() bool {
	_, ok := channels[c]
	return ok
}

// Label returns the rail name, e.g. "+12V UUT".
func (c Channel) Label() string {
	if info, ok := channels[c]; ok {
		return info.label
	}
	return fmt.Sprintf("channel 0x%02X", uint8(c))
}

// Unit returns the physical unit the channel reports.
func (c Channel) Unit() Unit {
	if info, ok := channels[c]; ok {
		return info.unit
	}
	return UnitVolt
}

func (c Channel) String() string {
	return c.Label()
}

// ADC conversion constants. The +12V UUT rail sits behind a different
// divider than the other seven inputs.
const (
	adcReference   = 2.5
	adcFullScale   = 4096
	scaleV12UUT    = 5.75
	scaleDefault   = 2.26
	freqFullScale  = 1048575 // 2^20 - 1
	freqScaleMHz   = 100
	measureClocks  = 13
	resetTickUS    = 2.56
	resetFieldMask = 0x1FFFFF
	resetEnable    = 1 << 23
)

// ChannelValue converts a raw 16-bit ADC code read from c.
func ChannelValue(c Channel, raw uint16) float64 {
	scale := scaleDefault
	if c == ChannelV12UUT {
		scale = scaleV12UUT
	}
	return float64(raw) * scale * adcReference / adcFullScale
}

// FrequencyMHz converts the 24-bit frequency counter into MHz.
func FrequencyMHz(count uint32) float64 {
	return float64(count) * freqScaleMHz / freqFullScale
}

// MaxResetDelay is the longest RST# delay the 21-bit timer field can hold.
var MaxResetDelay = float64(resetFieldMask) * resetTickUS / 1e6

// EncodeResetDelay converts a delay in seconds into the 24-bit RST# register
// value: the tick count in bits 0-20 and the custom-value enable in bit 23.
func EncodeResetDelay(sec float64) uint32 {
	ticks := uint32(math.Round(sec/resetTickUS*1e6)) & resetFieldMask
	return ticks | resetEnable
}

// ValidateResetDelay rejects delays that cannot be encoded without
// wrapping.
func ValidateResetDelay(sec float64) error {
	if math.IsNaN(sec) || math.IsInf(sec, 0) || sec < 0 {
		return fmt.Errorf("pcibx: reset delay %v must be a non-negative number of seconds", sec)
	}
	if math.Round(sec/resetTickUS*1e6) > resetFieldMask {
		return fmt.Errorf("pcibx: reset delay %vs exceeds the %.6fs maximum", sec, MaxResetDelay)
	}
	return nil
}

// littleEndian splits the low n bytes of v.
func littleEndian(v uint32, n int) []uint8 {
	out := make([]uint8, n)
	for i := range out {
		out[i] = uint8(v >> (8 * i))
	}
	return out
}
