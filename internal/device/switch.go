package device

import (
	"context"
	"fmt"
	"time"

	"github.com/marktheknife/vesync-bridge/internal/accessory"
	"github.com/marktheknife/vesync-bridge/internal/vesync"
)

// Switch bridges an in-wall light switch.
type Switch struct {
	base
}

// NewSwitch creates a handler for a wall switch device.
func NewSwitch(d *vesync.Device, deps Deps) *Switch {
	return &Switch{base: newBase(d, accessory.CategorySwitch, deps)}
}

// switchState is the payload published to the switch's state topic.
type switchState struct {
	On     bool `json:"on"`
	Online bool `json:"online"`
}

// SyncState refreshes the switch's live state and publishes it.
func (s *Switch) SyncState(ctx context.Context) error {
	d := s.snapshot()

	detail, err := s.deps.API.DeviceDetail(ctx, &d)
	if err != nil {
		return fmt.Errorf("switch %s: %w", d.CompositeID(), err)
	}
	s.applyDetail(detail)

	return s.publishCurrentState()
}

// HandleCommand executes a host command against the switch.
// Switches only support set_switch.
func (s *Switch) HandleCommand(ctx context.Context, cmd Command) error {
	started := time.Now()
	d := s.snapshot()

	if cmd.Action != ActionSetSwitch {
		return fmt.Errorf("%w: %q", errUnknownAction, cmd.Action)
	}
	if cmd.On == nil {
		return fmt.Errorf("%w: on", errMissingField)
	}

	err := s.deps.API.SetSwitch(ctx, &d, *cmd.On)
	s.recordCommand(cmd.Action, err == nil, started)
	if err != nil {
		return fmt.Errorf("switch %s: %s: %w", d.CompositeID(), cmd.Action, err)
	}

	s.mu.Lock()
	if *cmd.On {
		s.device.DeviceStatus = "on"
	} else {
		s.device.DeviceStatus = "off"
	}
	s.mu.Unlock()

	return s.publishCurrentState()
}

func (s *Switch) publishCurrentState() error {
	d := s.snapshot()
	state := switchState{On: d.IsOn(), Online: d.IsOnline()}

	level := 0.0
	if state.On {
		level = 100
	}
	s.recordState(state.On, level)
	return s.publishState(state)
}
