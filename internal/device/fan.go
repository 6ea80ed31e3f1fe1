package device

import (
	"context"
	"fmt"
	"time"

	"github.com/marktheknife/vesync-bridge/internal/accessory"
	"github.com/marktheknife/vesync-bridge/internal/vesync"
)

// maxFanSpeed is the number of discrete fan speed steps the purifier
// models expose. Host-facing levels are percentages; the cloud takes
// steps.
const maxFanSpeed = 3

// Fan bridges an air purifier: on/off, discrete speed steps exposed as
// a percentage, and operating mode.
type Fan struct {
	base
}

// NewFan creates a handler for an air purifier device.
func NewFan(d *vesync.Device, deps Deps) *Fan {
	return &Fan{base: newBase(d, accessory.CategoryFan, deps)}
}

// fanState is the payload published to the fan's state topic.
type fanState struct {
	On      bool   `json:"on"`
	Speed   int    `json:"speed"`
	Percent int    `json:"percent"`
	Mode    string `json:"mode,omitempty"`
	Online  bool   `json:"online"`
}

// SpeedToPercent converts a discrete speed step to the 0-100 scale the
// host presents.
func SpeedToPercent(speed int) int {
	if speed <= 0 {
		return 0
	}
	if speed > maxFanSpeed {
		speed = maxFanSpeed
	}
	return speed * 100 / maxFanSpeed
}

// PercentToSpeed converts a host percentage to the nearest discrete
// speed step. Any non-zero percentage maps to at least step 1.
func PercentToSpeed(percent int) int {
	if percent <= 0 {
		return 0
	}
	if percent >= 100 {
		return maxFanSpeed
	}
	speed := (percent*maxFanSpeed + 50) / 100
	if speed < 1 {
		speed = 1
	}
	return speed
}

// SyncState refreshes the purifier's live state and publishes it.
func (f *Fan) SyncState(ctx context.Context) error {
	d := f.snapshot()

	detail, err := f.deps.API.DeviceDetail(ctx, &d)
	if err != nil {
		return fmt.Errorf("fan %s: %w", d.CompositeID(), err)
	}
	f.applyDetail(detail)

	return f.publishCurrentState()
}

// HandleCommand executes a host command against the purifier.
func (f *Fan) HandleCommand(ctx context.Context, cmd Command) error {
	started := time.Now()
	d := f.snapshot()

	var err error
	switch cmd.Action {
	case ActionSetSwitch:
		if cmd.On == nil {
			return fmt.Errorf("%w: on", errMissingField)
		}
		err = f.deps.API.SetSwitch(ctx, &d, *cmd.On)
		if err == nil {
			f.setStatus(*cmd.On)
		}

	case ActionSetLevel:
		if cmd.Level == nil {
			return fmt.Errorf("%w: level", errMissingField)
		}
		speed := PercentToSpeed(*cmd.Level)
		if speed == 0 {
			err = f.deps.API.SetSwitch(ctx, &d, false)
			if err == nil {
				f.setStatus(false)
			}
		} else {
			err = f.deps.API.SetLevel(ctx, &d, speed)
			if err == nil {
				f.setSpeed(speed)
			}
		}

	case ActionSetMode:
		if cmd.Mode == "" {
			return fmt.Errorf("%w: mode", errMissingField)
		}
		err = f.deps.API.SetMode(ctx, &d, cmd.Mode)
		if err == nil {
			f.setMode(cmd.Mode)
		}

	default:
		return fmt.Errorf("%w: %q", errUnknownAction, cmd.Action)
	}

	f.recordCommand(cmd.Action, err == nil, started)
	if err != nil {
		return fmt.Errorf("fan %s: %s: %w", d.CompositeID(), cmd.Action, err)
	}

	return f.publishCurrentState()
}

func (f *Fan) publishCurrentState() error {
	d := f.snapshot()
	state := fanState{
		On:      d.IsOn(),
		Speed:   d.Speed,
		Percent: SpeedToPercent(d.Speed),
		Mode:    d.Mode,
		Online:  d.IsOnline(),
	}
	f.recordState(state.On, float64(state.Percent))
	return f.publishState(state)
}

func (f *Fan) setStatus(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if on {
		f.device.DeviceStatus = "on"
	} else {
		f.device.DeviceStatus = "off"
	}
}

func (f *Fan) setSpeed(speed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.device.Speed = speed
	f.device.DeviceStatus = "on"
}

func (f *Fan) setMode(mode string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.device.Mode = mode
}
