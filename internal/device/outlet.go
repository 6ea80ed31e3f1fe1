package device

import (
	"context"
	"fmt"
	"time"

	"github.com/marktheknife/vesync-bridge/internal/accessory"
	"github.com/marktheknife/vesync-bridge/internal/vesync"
)

// Outlet bridges a smart outlet, including individual outlets on a
// multi-outlet power strip (sub-devices).
type Outlet struct {
	base
}

// NewOutlet creates a handler for an outlet device.
func NewOutlet(d *vesync.Device, deps Deps) *Outlet {
	return &Outlet{base: newBase(d, accessory.CategoryOutlet, deps)}
}

// outletState is the payload published to the outlet's state topic.
type outletState struct {
	On     bool `json:"on"`
	Online bool `json:"online"`
}

// SyncState refreshes the outlet's live state and publishes it.
func (o *Outlet) SyncState(ctx context.Context) error {
	d := o.snapshot()

	detail, err := o.deps.API.DeviceDetail(ctx, &d)
	if err != nil {
		return fmt.Errorf("outlet %s: %w", d.CompositeID(), err)
	}
	o.applyDetail(detail)

	return o.publishCurrentState()
}

// HandleCommand executes a host command against the outlet.
// Outlets only support set_switch.
func (o *Outlet) HandleCommand(ctx context.Context, cmd Command) error {
	started := time.Now()
	d := o.snapshot()

	if cmd.Action != ActionSetSwitch {
		return fmt.Errorf("%w: %q", errUnknownAction, cmd.Action)
	}
	if cmd.On == nil {
		return fmt.Errorf("%w: on", errMissingField)
	}

	err := o.deps.API.SetSwitch(ctx, &d, *cmd.On)
	o.recordCommand(cmd.Action, err == nil, started)
	if err != nil {
		return fmt.Errorf("outlet %s: %s: %w", d.CompositeID(), cmd.Action, err)
	}

	o.mu.Lock()
	if *cmd.On {
		o.device.DeviceStatus = "on"
	} else {
		o.device.DeviceStatus = "off"
	}
	o.mu.Unlock()

	return o.publishCurrentState()
}

func (o *Outlet) publishCurrentState() error {
	d := o.snapshot()
	state := outletState{On: d.IsOn(), Online: d.IsOnline()}

	level := 0.0
	if state.On {
		level = 100
	}
	o.recordState(state.On, level)
	return o.publishState(state)
}
