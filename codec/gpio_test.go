package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeGPSetting(t *testing.T) {
	tests := []struct {
		name string
		pin  int
		raw  byte
		want GPSetting
	}{
		{
			name: "gpio output high",
			pin:  0,
			raw:  0b00010000,
			want: GPSetting{Designation: GPIOOperation, Mode: GPIOModeOut, Value: 1, Function: "GPIO"},
		},
		{
			name: "gpio input",
			pin:  3,
			raw:  0b00001000,
			want: GPSetting{Designation: GPIOOperation, Mode: GPIOModeIn, Function: "GPIO"},
		},
		{
			name: "adc on gp1",
			pin:  1,
			raw:  0b00000010,
			want: GPSetting{Designation: GPIO1ADC1, Function: "ADC1"},
		},
		{
			name: "interrupt on gp1",
			pin:  1,
			raw:  0b00000100,
			want: GPSetting{Designation: GPIO1InterruptDetection, Function: "IOC"},
		},
		{
			name: "dac on gp3",
			pin:  3,
			raw:  0b00000011,
			want: GPSetting{Designation: GPIO3DAC2, Function: "DAC2"},
		},
		{
			name: "undefined on gp0",
			pin:  0,
			raw:  0b00000101,
			want: GPSetting{Designation: 5, Reserved: true, Function: "RESERVED(5)"},
		},
		{
			name: "undefined on gp2",
			pin:  2,
			raw:  0b00000111,
			want: GPSetting{Designation: 7, Reserved: true, Function: "RESERVED(7)"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeGPSetting(tt.pin, tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.raw, got.Encode())
			assert.Equal(t, !tt.want.Reserved, got.ValidFor(tt.pin))
		})
	}
}

func TestDecodeGPIO(t *testing.T) {
	f := NewFrame(OpGPIOGet)
	f[2], f[3] = 1, 0 // gp0 output high
	f[4], f[5] = 0, 1 // gp1 input low
	f[6], f[7] = 0xEE, 0xEE
	f[8], f[9] = 1, 1
	v := DecodeGPIO(f)
	assert.Equal(t, PinValue{Mode: GPIOModeOut, Value: 1}, v[0])
	assert.Equal(t, PinValue{Mode: GPIOModeIn, Value: 0}, v[1])
	assert.Equal(t, PinValue{Mode: GPIOModeNoOperation}, v[2])
	assert.Equal(t, PinValue{Mode: GPIOModeIn, Value: 1}, v[3])
}

func TestEncodeGPIOSet(t *testing.T) {
	one := byte(1)
	in := GPIOModeIn
	out := GPIOModeOut
	f := EncodeGPIOSet(GPIOUpdate{
		Value: [PinCount]*byte{&one, nil, nil, nil},
		Mode:  [PinCount]*GPIOMode{&out, nil, &in, nil},
	})
	assert.Equal(t, byte(OpGPIOSet), f[0])
	assert.Equal(t, []byte{0xFF, 1, 0xFF, 0}, f[2:6])
	assert.Equal(t, []byte{0, 0, 0, 0}, f[6:10])
	assert.Equal(t, []byte{0, 0, 0xFF, 1}, f[10:14])
	assert.Equal(t, []byte{0, 0, 0, 0}, f[14:18])
}

func TestParseDesignation(t *testing.T) {
	d, err := ParseDesignation(2, "dac1")
	assert.NoError(t, err)
	assert.Equal(t, GPIO2DAC1, d)

	d, err = ParseDesignation(1, "IOC")
	assert.NoError(t, err)
	assert.Equal(t, GPIO1InterruptDetection, d)

	_, err = ParseDesignation(0, "ADC1")
	assert.Error(t, err)
	_, err = ParseDesignation(4, "GPIO")
	assert.Error(t, err)
}
