package codec

import (
	"encoding/binary"
	"fmt"
)

// VRef is a 3-bit voltage reference code: bits 2..1 select the internal
// reference level, bit 0 selects the source (1 = internal Vrm, 0 = Vdd).
type VRef byte

const (
	VRefVdd   VRef = 0b000
	VRefOff   VRef = 0b001 // Vrm selected with level "off"
	VRef1V024 VRef = 0b011
	VRef2V048 VRef = 0b101
	VRef4V096 VRef = 0b111
)

const (
	vrefSourceMask = 0b001
	vrefLevelMask  = 0b110
)

// NewVRef packs a level (0..3) and source bit into a reference code.
func NewVRef(level byte, internal bool) VRef {
	v := VRef((level << 1) & vrefLevelMask)
	if internal {
		v |= vrefSourceMask
	}
	return v
}

// Internal reports whether the internal reference (Vrm) is selected.
func (v VRef) Internal() bool {
	return v&vrefSourceMask != 0
}

// Level returns the 2-bit reference level.
func (v VRef) Level() byte {
	return byte(v&vrefLevelMask) >> 1
}

// Normalize clears the level when Vdd is the source; the chip ignores it.
func (v VRef) Normalize() VRef {
	if !v.Internal() {
		return VRefVdd
	}
	return v & (vrefSourceMask | vrefLevelMask)
}

func (v VRef) String() string {
	switch v.Normalize() {
	case VRefVdd:
		return "VDD"
	case VRefOff:
		return "OFF"
	case VRef1V024:
		return "1.024V"
	case VRef2V048:
		return "2.048V"
	case VRef4V096:
		return "4.096V"
	}
	return fmt.Sprintf("VREF(%#03b)", byte(v))
}

func (v VRef) MarshalYAML() (interface{}, error) {
	return v.String(), nil
}

// ParseVRef parses the names produced by VRef.String.
func ParseVRef(s string) (VRef, error) {
	switch s {
	case "VDD", "vdd":
		return VRefVdd, nil
	case "OFF", "off":
		return VRefOff, nil
	case "1.024V", "1.024":
		return VRef1V024, nil
	case "2.048V", "2.048":
		return VRef2V048, nil
	case "4.096V", "4.096":
		return VRef4V096, nil
	}
	return 0, fmt.Errorf("unknown voltage reference %q", s)
}

// ClockDivider selects the clock output frequency: 48 MHz >> divider.
type ClockDivider byte

// DutyCycle of the clock output in 25% steps.
type DutyCycle byte

const (
	Duty0  DutyCycle = 0
	Duty25 DutyCycle = 1
	Duty50 DutyCycle = 2
	Duty75 DutyCycle = 3
)

const (
	clockDividerMask = 0b00000111
	clockDutyMask    = 0b00011000
	clockBaseHz      = 48_000_000
)

// ClockOutput is the CLK_OUT configuration packed in one byte: duty in bits
// 4..3, divider in bits 2..0.
type ClockOutput struct {
	Divider ClockDivider `yaml:"divider"`
	Duty    DutyCycle    `yaml:"duty"`
}

// DecodeClockOutput unpacks a clock configuration byte.
func DecodeClockOutput(b byte) ClockOutput {
	return ClockOutput{
		Divider: ClockDivider(b & clockDividerMask),
		Duty:    DutyCycle((b & clockDutyMask) >> 3),
	}
}

// Encode packs the configuration into its byte.
func (c ClockOutput) Encode() byte {
	return byte(c.Duty)<<3&clockDutyMask | byte(c.Divider)&clockDividerMask
}

// Valid reports whether the divider selects an output frequency. Code 0 is
// reserved.
func (c ClockOutput) Valid() bool {
	return c.Divider >= 1 && c.Divider <= 7 && c.Duty <= Duty75
}

// Hz returns the output frequency, 0 for the reserved divider.
func (c ClockOutput) Hz() uint32 {
	if !c.Valid() {
		return 0
	}
	return clockBaseHz >> c.Divider
}

// ClockDividerFor returns the divider producing hz exactly.
func ClockDividerFor(hz uint32) (ClockDivider, error) {
	for d := ClockDivider(1); d <= 7; d++ {
		if clockBaseHz>>d == hz {
			return d, nil
		}
	}
	return 0, fmt.Errorf("no clock divider produces %d Hz", hz)
}

// InterruptConfig selects the edges raising the IOC interrupt flag.
type InterruptConfig struct {
	Rising  bool `yaml:"rising"`
	Falling bool `yaml:"falling"`
	// Clear resets a pending interrupt flag. Encode only.
	Clear bool `yaml:"-"`
}

// Security is the flash access mode stored in the chip settings.
type Security byte

const (
	SecurityUnsecured Security = 0x00
	SecurityPassword  Security = 0x01
	SecurityLocked    Security = 0x02
	SecurityLocked2   Security = 0x03
)

func (s Security) String() string {
	switch s {
	case SecurityUnsecured:
		return "unsecured"
	case SecurityPassword:
		return "password"
	default:
		return "locked"
	}
}

func (s Security) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// ChipConfig is the chip settings block shared by the SRAM get response and the
// flash chip-settings read response (bytes 4..13).
type ChipConfig struct {
	CDCSerialEnumeration bool            `yaml:"cdc_serial_enumeration"`
	LEDUartRxActiveHigh  bool            `yaml:"led_uart_rx_active_high"`
	LEDUartTxActiveHigh  bool            `yaml:"led_uart_tx_active_high"`
	LEDI2CActiveHigh     bool            `yaml:"led_i2c_active_high"`
	SSPNDActiveHigh      bool            `yaml:"sspnd_active_high"`
	USBCFGActiveHigh     bool            `yaml:"usbcfg_active_high"`
	Security             Security        `yaml:"security"`
	Clock                ClockOutput     `yaml:"clock"`
	DACRef               VRef            `yaml:"dac_ref"`
	DACValue             byte            `yaml:"dac_value"`
	Interrupt            InterruptConfig `yaml:"interrupt"`
	ADCRef               VRef            `yaml:"adc_ref"`
	VendorID             uint16          `yaml:"vendor_id"`
	ProductID            uint16          `yaml:"product_id"`
	PowerAttributes      byte            `yaml:"power_attributes"`
	// RequestedCurrent is the USB bus current in mA (stored in 2 mA units).
	RequestedCurrent uint16 `yaml:"requested_current"`
}

func bit(b byte, n uint) bool {
	return (b>>n)&0x01 != 0
}

func decodeChipConfig(b []byte) ChipConfig {
	return ChipConfig{
		CDCSerialEnumeration: bit(b[0], 7),
		LEDUartRxActiveHigh:  bit(b[0], 6),
		LEDUartTxActiveHigh:  bit(b[0], 5),
		LEDI2CActiveHigh:     bit(b[0], 4),
		SSPNDActiveHigh:      bit(b[0], 3),
		USBCFGActiveHigh:     bit(b[0], 2),
		Security:             Security(b[0] & 0x03),
		Clock:                DecodeClockOutput(b[1]),
		DACRef:               VRef((b[2] >> 5) & 0x07).Normalize(),
		DACValue:             b[2] & 0x1F,
		Interrupt:            InterruptConfig{Rising: bit(b[3], 6), Falling: bit(b[3], 5)},
		ADCRef:               VRef((b[3] >> 2) & 0x07).Normalize(),
		VendorID:             binary.LittleEndian.Uint16(b[4:6]),
		ProductID:            binary.LittleEndian.Uint16(b[6:8]),
		PowerAttributes:      b[8],
		RequestedCurrent:     uint16(b[9]) * 2,
	}
}

// SRAMSettings is the decoded OpSRAMGet response.
type SRAMSettings struct {
	ChipConfig `yaml:",inline"`
	GP         [PinCount]GPSetting `yaml:"gp"`
}

// DecodeSRAM decodes an SRAM get response; GP designations are at 22..25.
func DecodeSRAM(f Frame) SRAMSettings {
	s := SRAMSettings{ChipConfig: decodeChipConfig(f[4:14])}
	for i := range s.GP {
		s.GP[i] = DecodeGPSetting(i, f[22+i])
	}
	return s
}

// SRAMUpdate is a partial SRAM configuration. Nil fields keep the current
// value.
type SRAMUpdate struct {
	Clock     *ClockOutput
	DACRef    *VRef
	DACValue  *byte
	ADCRef    *VRef
	Interrupt *InterruptConfig
	GP        [PinCount]*GPSetting
}

// ChangesGP reports whether any pin designation is part of the update.
func (u SRAMUpdate) ChangesGP() bool {
	for _, gp := range u.GP {
		if gp != nil {
			return true
		}
	}
	return false
}

// Empty reports whether the update changes nothing.
func (u SRAMUpdate) Empty() bool {
	return u.Clock == nil && u.DACRef == nil && u.DACValue == nil &&
		u.ADCRef == nil && u.Interrupt == nil && !u.ChangesGP()
}

const loadNew = 0x80

// EncodeSRAMSet builds the SRAM set command for u. cur is the configuration
// the chip currently runs (with voltage references as last set by the host)
// and live the current pin values.
//
// Writing GP designations resets both voltage references on the chip, so
// whenever GP changes the references are re-sent from cur unless u sets them.
// Unchanged pins keep their designation with bit 4 taken from the live
// output value, not from the power-up default stored in SRAM.
func EncodeSRAMSet(u SRAMUpdate, cur SRAMSettings, live GPIOValues) Frame {
	f := NewFrame(OpSRAMSet)
	if u.Clock != nil {
		f[2] = loadNew | u.Clock.Encode()
	}
	dacRef, adcRef := u.DACRef, u.ADCRef
	if u.ChangesGP() {
		if dacRef == nil {
			dacRef = &cur.DACRef
		}
		if adcRef == nil {
			adcRef = &cur.ADCRef
		}
	}
	if dacRef != nil {
		f[3] = loadNew | byte(dacRef.Normalize())
	}
	if u.DACValue != nil {
		f[4] = loadNew | *u.DACValue&0x1F
	}
	if adcRef != nil {
		f[5] = loadNew | byte(adcRef.Normalize())
	}
	if u.Interrupt != nil {
		b := byte(loadNew | 0b00010100)
		if u.Interrupt.Rising {
			b |= 0b00001000
		}
		if u.Interrupt.Falling {
			b |= 0b00000010
		}
		if u.Interrupt.Clear {
			b |= 0b00000001
		}
		f[6] = b
	}
	if u.ChangesGP() {
		f[7] = loadNew
		for i := 0; i < PinCount; i++ {
			if u.GP[i] != nil {
				f[8+i] = u.GP[i].Encode()
				continue
			}
			gp := cur.GP[i]
			if live[i].Mode != GPIOModeNoOperation {
				gp.Value = live[i].Value
			}
			f[8+i] = gp.Encode()
		}
	}
	return f
}
