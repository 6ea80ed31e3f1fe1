package device

import (
	"context"
	"fmt"
	"time"

	"github.com/marktheknife/vesync-bridge/internal/accessory"
	"github.com/marktheknife/vesync-bridge/internal/vesync"
)

// Bulb bridges a smart bulb: on/off plus brightness, which maps
// directly to the host's 0-100 scale (no step conversion needed).
type Bulb struct {
	base
}

// NewBulb creates a handler for a smart bulb device.
func NewBulb(d *vesync.Device, deps Deps) *Bulb {
	return &Bulb{base: newBase(d, accessory.CategoryBulb, deps)}
}

// bulbState is the payload published to the bulb's state topic.
type bulbState struct {
	On         bool `json:"on"`
	Brightness int  `json:"brightness"`
	Online     bool `json:"online"`
}

// SyncState refreshes the bulb's live state and publishes it.
func (b *Bulb) SyncState(ctx context.Context) error {
	d := b.snapshot()

	detail, err := b.deps.API.DeviceDetail(ctx, &d)
	if err != nil {
		return fmt.Errorf("bulb %s: %w", d.CompositeID(), err)
	}
	b.applyDetail(detail)

	return b.publishCurrentState()
}

// HandleCommand executes a host command against the bulb.
func (b *Bulb) HandleCommand(ctx context.Context, cmd Command) error {
	started := time.Now()
	d := b.snapshot()

	var err error
	switch cmd.Action {
	case ActionSetSwitch:
		if cmd.On == nil {
			return fmt.Errorf("%w: on", errMissingField)
		}
		err = b.deps.API.SetSwitch(ctx, &d, *cmd.On)
		if err == nil {
			b.setStatus(*cmd.On)
		}

	case ActionSetLevel:
		if cmd.Level == nil {
			return fmt.Errorf("%w: level", errMissingField)
		}
		brightness := clampPercent(*cmd.Level)
		if brightness == 0 {
			err = b.deps.API.SetSwitch(ctx, &d, false)
			if err == nil {
				b.setStatus(false)
			}
		} else {
			err = b.deps.API.SetLevel(ctx, &d, brightness)
			if err == nil {
				b.setBrightness(brightness)
			}
		}

	default:
		return fmt.Errorf("%w: %q", errUnknownAction, cmd.Action)
	}

	b.recordCommand(cmd.Action, err == nil, started)
	if err != nil {
		return fmt.Errorf("bulb %s: %s: %w", d.CompositeID(), cmd.Action, err)
	}

	return b.publishCurrentState()
}

func (b *Bulb) publishCurrentState() error {
	d := b.snapshot()
	state := bulbState{On: d.IsOn(), Brightness: d.Brightness, Online: d.IsOnline()}
	b.recordState(state.On, float64(state.Brightness))
	return b.publishState(state)
}

func (b *Bulb) setStatus(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if on {
		b.device.DeviceStatus = "on"
	} else {
		b.device.DeviceStatus = "off"
	}
}

func (b *Bulb) setBrightness(brightness int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.device.Brightness = brightness
	b.device.DeviceStatus = "on"
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
