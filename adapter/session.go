package adapter

import "github.com/mklimuk/mcp2221/codec"

// session is the per-connection state. It is only touched with the device
// lock held.
type session struct {
	// dirty is set when the last operation may have left the engine in a
	// state that needs recovery before the next transfer.
	dirty bool
	// speed is the last bus speed the chip accepted, 0 until set.
	speed   uint32
	divider byte
	// dacRef and adcRef are the references last written by the host. The
	// chip resets both whenever GP designations change and its SRAM read
	// back does not always reflect a host-set value, so they are kept here.
	dacRef *codec.VRef
	adcRef *codec.VRef
}

// Dirty reports whether the next transfer will start with bus recovery.
func (d *MCP2221) Dirty() bool {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.session.dirty
}

// Speed returns the last bus speed accepted by the chip, 0 if none was set
// through this connection.
func (d *MCP2221) Speed() uint32 {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.session.speed
}

func (s *session) rememberRefs(dac, adc *codec.VRef) {
	if dac != nil {
		v := dac.Normalize()
		s.dacRef = &v
	}
	if adc != nil {
		v := adc.Normalize()
		s.adcRef = &v
	}
}

// overlay replaces the SRAM read back references with the cached ones.
func (s *session) overlay(cur codec.SRAMSettings) codec.SRAMSettings {
	if s.dacRef != nil {
		cur.DACRef = *s.dacRef
	}
	if s.adcRef != nil {
		cur.ADCRef = *s.adcRef
	}
	return cur
}
