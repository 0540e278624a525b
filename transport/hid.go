package transport

import (
	"errors"
	"fmt"

	"github.com/karalabe/hid"
)

// Microchip default USB identifiers of the MCP2221/MCP2221A.
const (
	VendorID  = 0x04D8
	ProductID = 0x00DD
)

var (
	ErrUnsupported    = errors.New("USB HID is not supported on this platform")
	ErrDeviceNotFound = errors.New("device not found")
	ErrAmbiguous      = errors.New("ambiguous device identification")
)

// DeviceInfo describes an attached HID interface.
type DeviceInfo struct {
	Path         string `yaml:"path"`
	VendorID     uint16 `yaml:"vendor_id"`
	ProductID    uint16 `yaml:"product_id"`
	Release      uint16 `yaml:"release"`
	Serial       string `yaml:"serial"`
	Manufacturer string `yaml:"manufacturer"`
	Product      string `yaml:"product"`
	Interface    int    `yaml:"interface"`
}

// Opener finds and opens devices. HIDOpener is the real implementation; tests
// substitute their own.
type Opener interface {
	Enumerate(vid, pid uint16) ([]DeviceInfo, error)
	Open(info DeviceInfo) (Device, error)
}

// HIDOpener opens devices through the system HID API.
type HIDOpener struct{}

func (HIDOpener) Enumerate(vid, pid uint16) ([]DeviceInfo, error) {
	if !hid.Supported() {
		return nil, ErrUnsupported
	}
	devs := hid.Enumerate(vid, pid)
	infos := make([]DeviceInfo, 0, len(devs))
	for _, d := range devs {
		infos = append(infos, DeviceInfo{
			Path:         d.Path,
			VendorID:     d.VendorID,
			ProductID:    d.ProductID,
			Release:      d.Release,
			Serial:       d.Serial,
			Manufacturer: d.Manufacturer,
			Product:      d.Product,
			Interface:    d.Interface,
		})
	}
	return infos, nil
}

func (HIDOpener) Open(info DeviceInfo) (Device, error) {
	if !hid.Supported() {
		return nil, ErrUnsupported
	}
	for _, d := range hid.Enumerate(info.VendorID, info.ProductID) {
		if d.Path != info.Path {
			continue
		}
		dev, err := d.Open()
		if err != nil {
			return nil, fmt.Errorf("error opening device %s: %w", info.Path, err)
		}
		return dev, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, info.Path)
}

// Find returns the single attached device matching vid, pid and, when not
// empty, serial.
func Find(o Opener, vid, pid uint16, serial string) (DeviceInfo, error) {
	infos, err := o.Enumerate(vid, pid)
	if err != nil {
		return DeviceInfo{}, err
	}
	var found []DeviceInfo
	for _, info := range infos {
		if serial != "" && info.Serial != serial {
			continue
		}
		found = append(found, info)
	}
	switch len(found) {
	case 0:
		return DeviceInfo{}, fmt.Errorf("%w: %04x:%04x serial %q", ErrDeviceNotFound, vid, pid, serial)
	case 1:
		return found[0], nil
	default:
		return DeviceInfo{}, fmt.Errorf("%w: %d devices match %04x:%04x, select one by serial", ErrAmbiguous, len(found), vid, pid)
	}
}
