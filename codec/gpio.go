package codec

import (
	"fmt"
	"strings"
)

// PinCount is the number of general purpose pins (GP0..GP3).
const PinCount = 4

type GPIOMode byte

const (
	GPIOModeOut         GPIOMode = 0b00000000
	GPIOModeIn          GPIOMode = 0b00001000
	GPIOModeNoOperation GPIOMode = 0xEE
)

func (m GPIOMode) String() string {
	switch m {
	case GPIOModeIn:
		return "INPUT"
	case GPIOModeOut:
		return "OUTPUT"
	default:
		return "NOOP"
	}
}

func (m GPIOMode) MarshalYAML() (interface{}, error) {
	return m.String(), nil
}

type GPIODesignation byte

const (
	GPIOOperation GPIODesignation = 0b00000000
	// This is alternate function of GPIO0
	GPIO0LedUartRx GPIODesignation = 0b00000001
	// This is the dedicated function operation of GPIO0
	GPIO0SSPND GPIODesignation = 0b00000010
	// This is the dedicated function of GPIO1
	GPIO1ClockOutput GPIODesignation = 0b00000001
	// This is the alternate function 0 of GPIO1
	GPIO1ADC1 GPIODesignation = 0b00000010
	// This is the alternate function 1 of GPIO1
	GPIO1LedUartTx GPIODesignation = 0b00000011
	// This is the alternate function 2 of GPIO1
	GPIO1InterruptDetection GPIODesignation = 0b00000100
	// This is the dedicated function of GPIO2
	GPIO2USBCFG GPIODesignation = 0b00000001
	// This is the alternate function 0 of GPIO2
	GPIO2ADC2 GPIODesignation = 0b00000010
	// This is the alternate function 1 of GPIO2
	GPIO2DAC1 GPIODesignation = 0b00000011
	// This is the dedicated function of GPIO3
	GPIO3LEDI2C GPIODesignation = 0b00000001
	// This is the alternate function 0 of GPIO3
	GPIO3ADC3 GPIODesignation = 0b00000010
	// This is the alternate function 1 of GPIO3
	GPIO3DAC2 GPIODesignation = 0b00000011
)

// highest designation code each pin accepts
var maxDesignation = [PinCount]GPIODesignation{
	GPIO0SSPND,
	GPIO1InterruptDetection,
	GPIO2DAC1,
	GPIO3DAC2,
}

var designationNames = [PinCount][]string{
	{"GPIO", "LED_URX", "SSPND"},
	{"GPIO", "CLK_OUT", "ADC1", "LED_UTX", "IOC"},
	{"GPIO", "USBCFG", "ADC2", "DAC1"},
	{"GPIO", "LED_I2C", "ADC3", "DAC2"},
}

const (
	gpioValueMask     = 0b00010000
	gpioModeMask      = 0b00001000
	gpioOperationMask = 0b00000111
)

// GPSetting is the SRAM/flash designation byte of one pin.
type GPSetting struct {
	Designation GPIODesignation `yaml:"designation"`
	Mode        GPIOMode        `yaml:"mode"`
	Value       byte            `yaml:"value"`
	// Reserved is set when the designation code is not defined for the pin.
	Reserved bool   `yaml:"reserved,omitempty"`
	Function string `yaml:"function"`
}

// DecodeGPSetting decodes the designation byte of pin.
func DecodeGPSetting(pin int, b byte) GPSetting {
	s := GPSetting{
		Designation: GPIODesignation(b & gpioOperationMask),
		Mode:        GPIOMode(b & gpioModeMask),
		Value:       (b & gpioValueMask) >> 4,
	}
	if pin < 0 || pin >= PinCount || s.Designation > maxDesignation[pin] {
		s.Reserved = true
		s.Function = fmt.Sprintf("RESERVED(%d)", s.Designation)
		return s
	}
	s.Function = designationNames[pin][s.Designation]
	return s
}

// Encode packs the setting back into its designation byte.
func (s GPSetting) Encode() byte {
	b := byte(s.Designation)&gpioOperationMask | byte(s.Mode)&gpioModeMask
	if s.Value != 0 {
		b |= gpioValueMask
	}
	return b
}

// ParseDesignation looks up the designation of pin by its function name as
// reported in GPSetting.Function, case-insensitively.
func ParseDesignation(pin int, name string) (GPIODesignation, error) {
	if pin < 0 || pin >= PinCount {
		return 0, fmt.Errorf("no pin GP%d", pin)
	}
	for i, n := range designationNames[pin] {
		if strings.EqualFold(n, name) {
			return GPIODesignation(i), nil
		}
	}
	return 0, fmt.Errorf("GP%d has no function %q (one of %s)", pin, name, strings.Join(designationNames[pin], ", "))
}

// ValidFor reports whether the designation is defined for pin.
func (s GPSetting) ValidFor(pin int) bool {
	return pin >= 0 && pin < PinCount && s.Designation <= maxDesignation[pin]
}

// GPIOValues is the decoded OpGPIOGet response.
type GPIOValues [PinCount]PinValue

// PinValue is the live state of one pin. Mode is GPIOModeNoOperation when the
// pin is not designated as GPIO.
type PinValue struct {
	Mode  GPIOMode `yaml:"mode"`
	Value byte     `yaml:"value"`
}

// DecodeGPIO decodes a GPIO get response: value at 2+2n, direction at 3+2n.
func DecodeGPIO(f Frame) GPIOValues {
	var v GPIOValues
	for i := range v {
		val, dir := f[2+2*i], f[3+2*i]
		if dir == byte(GPIOModeNoOperation) {
			v[i] = PinValue{Mode: GPIOModeNoOperation}
			continue
		}
		v[i] = PinValue{Mode: GPIOMode((dir & 0x01) << 3), Value: val & 0x01}
	}
	return v
}

// GPIOUpdate holds optional per-pin output values and directions. Nil fields
// leave the pin untouched.
type GPIOUpdate struct {
	Value [PinCount]*byte
	Mode  [PinCount]*GPIOMode
}

const alter = 0xFF

// EncodeGPIOSet builds a GPIO set command: for pin n, alter-output flag at
// 2+4n, value at 3+4n, alter-direction flag at 4+4n, direction at 5+4n.
func EncodeGPIOSet(u GPIOUpdate) Frame {
	f := NewFrame(OpGPIOSet)
	for i := 0; i < PinCount; i++ {
		off := 2 + 4*i
		if u.Value[i] != nil {
			f[off] = alter
			f[off+1] = *u.Value[i] & 0x01
		}
		if u.Mode[i] != nil {
			f[off+2] = alter
			if *u.Mode[i] == GPIOModeIn {
				f[off+3] = 1
			}
		}
	}
	return f
}
