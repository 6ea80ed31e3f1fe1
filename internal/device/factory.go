package device

import (
	"fmt"

	"github.com/marktheknife/vesync-bridge/internal/accessory"
	"github.com/marktheknife/vesync-bridge/internal/vesync"
)

// ErrUnsupportedDevice indicates no handler variant exists for the
// device's model family.
var ErrUnsupportedDevice = fmt.Errorf("device: unsupported device type")

// Factory constructs the handler variant matching a device's class.
// Dependencies are fixed at construction and shared by all handlers.
type Factory struct {
	deps Deps
}

// NewFactory creates a handler factory with the given collaborators.
func NewFactory(deps Deps) *Factory {
	return &Factory{deps: deps}
}

// New constructs a handler for the device.
// Returns ErrUnsupportedDevice for unrecognized model families.
func (f *Factory) New(d *vesync.Device) (Handler, error) {
	switch d.Class() {
	case vesync.ClassFan:
		return NewFan(d, f.deps), nil
	case vesync.ClassOutlet:
		return NewOutlet(d, f.deps), nil
	case vesync.ClassSwitch:
		return NewSwitch(d, f.deps), nil
	case vesync.ClassBulb:
		return NewBulb(d, f.deps), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDevice, d.DeviceType)
	}
}

// CategoryFor maps a cloud deviceType string to an accessory category.
// Unrecognized models return an empty category (not Valid()).
func CategoryFor(deviceType string) accessory.Category {
	switch vesync.Classify(deviceType) {
	case vesync.ClassFan:
		return accessory.CategoryFan
	case vesync.ClassOutlet:
		return accessory.CategoryOutlet
	case vesync.ClassSwitch:
		return accessory.CategorySwitch
	case vesync.ClassBulb:
		return accessory.CategoryBulb
	default:
		return ""
	}
}
