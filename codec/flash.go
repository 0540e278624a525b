package codec

import (
	"errors"
	"fmt"
	"unicode/utf16"
)

// FlashSection is the flash read/write subcommand.
type FlashSection byte

const (
	FlashChipSettings  FlashSection = 0x00
	FlashGPSettings    FlashSection = 0x01
	FlashManufacturer  FlashSection = 0x02
	FlashProduct       FlashSection = 0x03
	FlashSerial        FlashSection = 0x04
	FlashFactorySerial FlashSection = 0x05
)

func (s FlashSection) String() string {
	switch s {
	case FlashChipSettings:
		return "chip settings"
	case FlashGPSettings:
		return "gp settings"
	case FlashManufacturer:
		return "manufacturer"
	case FlashProduct:
		return "product"
	case FlashSerial:
		return "serial"
	case FlashFactorySerial:
		return "factory serial"
	default:
		return fmt.Sprintf("section(%d)", byte(s))
	}
}

// IsString reports whether the section holds a descriptor string.
func (s FlashSection) IsString() bool {
	return s >= FlashManufacturer && s <= FlashFactorySerial
}

// Writable reports whether the host may write the section.
func (s FlashSection) Writable() bool {
	return s < FlashFactorySerial
}

// MaxFlashString is the longest descriptor string in UTF-16 code units.
const MaxFlashString = 30

// flashStringHeader is the size of the descriptor header counted by the
// length byte (length + descriptor type).
const flashStringHeader = 2

const usbStringDescriptor = 0x03

var ErrFlashStringTooLong = errors.New("flash string too long")

// MaxPassword is the length of the flash access password in bytes.
const MaxPassword = 8

// ResultNotAllowed answers a flash write or password command refused
// because the flash is protected or the password does not match.
const ResultNotAllowed byte = 0x03

// EncodeAccessPassword builds the command unlocking a password protected
// flash. Shorter passwords are padded with zeros.
func EncodeAccessPassword(password string) (Frame, error) {
	if len(password) > MaxPassword {
		return Frame{}, fmt.Errorf("password is %d bytes, max %d", len(password), MaxPassword)
	}
	f := NewFrame(OpFlashPassword)
	copy(f[2:2+MaxPassword], password)
	return f, nil
}

// EncodeFlashRead builds a flash read command for section.
func EncodeFlashRead(section FlashSection) Frame {
	f := NewFrame(OpFlashRead)
	f[1] = byte(section)
	return f
}

// DecodeFlashString decodes a UTF-16LE descriptor string from a flash read
// response: length byte at 2 counts the two header bytes, data starts at 4.
// Oversized lengths are clipped to the frame.
func DecodeFlashString(f Frame) string {
	n := int(f[2])
	if n < flashStringHeader {
		return ""
	}
	units := (n - flashStringHeader) / 2
	if units > MaxFlashString {
		units = MaxFlashString
	}
	u := make([]uint16, units)
	for i := range u {
		u[i] = uint16(f[4+2*i]) | uint16(f[5+2*i])<<8
	}
	return string(utf16.Decode(u))
}

// DecodeFactorySerial decodes the ASCII factory serial number.
func DecodeFactorySerial(f Frame) string {
	n := int(f[2])
	if n > FrameSize-4 {
		n = FrameSize - 4
	}
	return string(f[4 : 4+n])
}

// EncodeFlashString builds a flash write command storing s in section.
func EncodeFlashString(section FlashSection, s string) (Frame, error) {
	if !section.IsString() || !section.Writable() {
		return Frame{}, fmt.Errorf("section %s does not hold a writable string", section)
	}
	u := utf16.Encode([]rune(s))
	if len(u) > MaxFlashString {
		return Frame{}, fmt.Errorf("%w: %d units, max %d", ErrFlashStringTooLong, len(u), MaxFlashString)
	}
	f := NewFrame(OpFlashWrite)
	f[1] = byte(section)
	f[2] = byte(2*len(u) + flashStringHeader)
	f[3] = usbStringDescriptor
	for i, c := range u {
		f[4+2*i] = byte(c)
		f[5+2*i] = byte(c >> 8)
	}
	return f, nil
}

// DecodeChipSettings decodes a flash chip-settings read response.
func DecodeChipSettings(f Frame) ChipConfig {
	return decodeChipConfig(f[4:14])
}

// DecodeGPSettings decodes the power-up GP designations from a flash
// GP-settings read response (bytes 4..7).
func DecodeGPSettings(f Frame) [PinCount]GPSetting {
	var gp [PinCount]GPSetting
	for i := range gp {
		gp[i] = DecodeGPSetting(i, f[4+i])
	}
	return gp
}

// EncodeFlashGPSettings builds a flash write of the power-up GP designations
// (bytes 2..5).
func EncodeFlashGPSettings(gp [PinCount]GPSetting) Frame {
	f := NewFrame(OpFlashWrite)
	f[1] = byte(FlashGPSettings)
	for i, s := range gp {
		f[2+i] = s.Encode()
	}
	return f
}

// EncodeReset builds the reset command. The chip does not answer it.
func EncodeReset() Frame {
	f := NewFrame(OpReset)
	f[1], f[2], f[3] = 0xAB, 0xCD, 0xEF
	return f
}
