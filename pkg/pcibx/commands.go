package pcibx

import (
	"context"
	"fmt"
	"time"
)

// GlobalPower switches the board's global power. It does not enable the UUT
// rails.
func (d *Device) GlobalPower(on bool) error {
	if on {
		d.sending("Global Power ON")
		return d.write(RegGlobalPower, 1)
	}
	d.sending("Global Power OFF")
	return d.write(RegGlobalPower, 0)
}

// UUTPower switches the UUT rails. Switching on also enables global power and
// then waits until the board reports RST# de-asserted, polling STATUS every
// poll interval. The wait ends with ErrReadyTimeout once the ready timeout
// worth of polls has elapsed, or with ctx's error when ctx is done.
func (d *Device) UUTPower(ctx context.Context, on bool) error {
	if !on {
		d.sending("UUT Voltages OFF")
		return d.write(RegUUTVoltage, 1)
	}

	if err := d.GlobalPower(true); err != nil {
		return err
	}
	d.sending("UUT Voltages ON")
	if err := d.write(RegUUTVoltage, 0); err != nil {
		return err
	}
	return d.waitReady(ctx)
}

func (d *Device) waitReady(ctx context.Context) error {
	var waited time.Duration
	polls := 0
	for {
		if err := d.delay.Delay(ctx, d.pollInterval); err != nil {
			return fmt.Errorf("pcibx: waiting for RST#: %w", err)
		}
		waited += d.pollInterval
		polls++

		status, err := d.Status()
		if err != nil {
			return err
		}
		if status.Has(StatusRSTDeasserted) {
			d.log.Debug().Int("polls", polls).Dur("waited", waited).Msg("RST# de-asserted")
			return nil
		}
		if d.readyTimeout > 0 && waited >= d.readyTimeout {
			return fmt.Errorf("%w after %d polls (%s)", ErrReadyTimeout, polls, waited)
		}
	}
}

// BoardID reads the board ID register.
func (d *Device) BoardID() (uint8, error) {
	d.sending("Get board ID")
	return d.read(RegBoardID)
}

// FirmwareRevision reads the firmware revision register.
func (d *Device) FirmwareRevision() (uint8, error) {
	d.sending("Get firmware rev")
	return d.read(RegFirmwareRev)
}

// Status reads the status bits.
func (d *Device) Status() (Status, error) {
	d.sending("Get status bits")
	v, err := d.read(RegStatus)
	return Status(v), err
}

// ClearBitStatus clears the latched 32/64-bit handshake status.
func (d *Device) ClearBitStatus() error {
	d.sending("Clear 32/64 bit status")
	return d.write(RegClearBitStatus, 0)
}

// Aux5 switches the +5V auxiliary rail. The register is active low.
func (d *Device) Aux5(on bool) error {
	if on {
		d.sending("Aux 5V ON")
		return d.write(RegAux5V, 0)
	}
	d.sending("Aux 5V OFF")
	return d.write(RegAux5V, 1)
}

// Aux33 switches the +3.3V auxiliary rail. The register is active low.
func (d *Device) Aux33(on bool) error {
	if on {
		d.sending("Aux 3.3V ON")
		return d.write(RegAux33V, 0)
	}
	d.sending("Aux 3.3V OFF")
	return d.write(RegAux33V, 1)
}

// FastRamp selects the fast (true) or slow +5V ramp.
func (d *Device) FastRamp(fast bool) error {
	d.sending("+5V RAMP")
	if fast {
		return d.write(RegRamp, 1)
	}
	return d.write(RegRamp, 0)
}

// MeasureFrequency triggers the frequency counter and returns the system
// clock in MHz.
func (d *Device) MeasureFrequency(ctx context.Context) (float64, error) {
	d.sending("Measure system frequency")
	if err := d.write(RegFreqMeasureCtl, 1); err != nil {
		return 0, err
	}
	if err := d.wait(ctx, freqSettle); err != nil {
		return 0, err
	}

	var count uint32
	for i, reg := range []Register{RegFreqMeasure0, RegFreqMeasure1, RegFreqMeasure2} {
		v, err := d.read(reg)
		if err != nil {
			return 0, err
		}
		count |= uint32(v) << (8 * i)
	}
	return FrequencyMHz(count), nil
}

// Measure samples one ADC channel and returns volts or amperes.
func (d *Device) Measure(ctx context.Context, ch Channel) (float64, error) {
	raw, err := d.MeasureRaw(ctx, ch)
	if err != nil {
		return 0, err
	}
	return ChannelValue(ch, raw), nil
}

// MeasureRaw runs one ADC conversion on ch and returns the raw 16-bit code.
func (d *Device) MeasureRaw(ctx context.Context, ch Channel) (uint16, error) {
	if !ch.Valid() {
		return 0, fmt.Errorf("pcibx: invalid measurement channel 0x%02X", uint8(ch))
	}

	d.sending("Measuring V/A")
	if err := d.write(RegMeasureCtl, uint8(ch)); err != nil {
		return 0, err
	}
	if err := d.wait(ctx, measureSelectWait); err != nil {
		return 0, err
	}
	if err := d.writeExtended(RegMeasureConv, 0); err != nil {
		return 0, err
	}
	if err := d.wait(ctx, measureConvWait); err != nil {
		return 0, err
	}

	// Clock the conversion result through the ADC pipeline.
	if err := d.bus.SetAddress(uint8(RegMeasureStrobe)); err != nil {
		return 0, fmt.Errorf("pcibx: address %s: %w", RegMeasureStrobe, err)
	}
	for i := 0; i < measureClocks; i++ {
		if err := d.bus.WriteByte(0); err != nil {
			return 0, fmt.Errorf("pcibx: clock %s: %w", RegMeasureStrobe, err)
		}
	}

	lo, err := d.read(RegMeasureData0)
	if err != nil {
		return 0, err
	}
	hi, err := d.read(RegMeasureData1)
	if err != nil {
		return 0, err
	}
	return uint16(lo) | uint16(hi)<<8, nil
}

// SetResetDelay programs a custom RST# delay in seconds.
func (d *Device) SetResetDelay(sec float64) error {
	if err := ValidateResetDelay(sec); err != nil {
		return err
	}
	d.sending("RST#")
	return d.writeResetBytes(littleEndian(EncodeResetDelay(sec), 3))
}

// DefaultResetDelay restores the board's built-in 150ms RST# delay.
func (d *Device) DefaultResetDelay() error {
	d.sending("default RST#")
	return d.writeResetBytes([]uint8{0, 0, 0})
}

func (d *Device) writeResetBytes(b []uint8) error {
	for i, reg := range []Register{RegReset0, RegReset1, RegReset2} {
		if err := d.write(reg, b[i]); err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) wait(ctx context.Context, dur time.Duration) error {
	return d.delay.Delay(ctx, dur)
}
