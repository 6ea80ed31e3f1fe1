package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marktheknife/vesync-bridge/internal/accessory"
	"github.com/marktheknife/vesync-bridge/internal/infrastructure/mqtt"
	"github.com/marktheknife/vesync-bridge/internal/vesync"
)

// API is the subset of the cloud client that handlers use.
type API interface {
	DeviceDetail(ctx context.Context, d *vesync.Device) (*vesync.Detail, error)
	SetSwitch(ctx context.Context, d *vesync.Device, on bool) error
	SetLevel(ctx context.Context, d *vesync.Device, level int) error
	SetMode(ctx context.Context, d *vesync.Device, mode string) error
}

// Publisher is the subset of the MQTT client that handlers use.
type Publisher interface {
	PublishRetained(topic string, payload []byte) error
}

// Recorder receives state telemetry. May be absent (nil Deps.Recorder)
// when the time-series store is disabled.
type Recorder interface {
	WriteDeviceState(compositeID, category string, on bool, level float64)
	WriteCommandResult(compositeID, action string, success bool, latency time.Duration)
}

// Logger defines the logging interface used by handlers.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Deps bundles the collaborators every handler needs.
type Deps struct {
	API       API
	Publisher Publisher
	Recorder  Recorder
	Logger    Logger
}

// Command is a host-issued device command, decoded from a command topic
// payload.
type Command struct {
	// Action selects the operation: "set_switch", "set_level", "set_mode".
	Action string `json:"action"`

	// On is the target power state for set_switch.
	On *bool `json:"on,omitempty"`

	// Level is the target percentage (0-100) for set_level.
	Level *int `json:"level,omitempty"`

	// Mode is the target operating mode for set_mode.
	Mode string `json:"mode,omitempty"`
}

// Handler is the live in-memory object responsible for one device.
//
// Handlers are created by the Factory during reconciliation and
// replaced wholesale on every cycle; they hold the latest descriptor
// and know how to sync state and execute commands for their category.
type Handler interface {
	// UUID returns the accessory identifier this handler serves.
	UUID() string

	// Category returns the accessory category.
	Category() accessory.Category

	// SyncState refreshes the device's live state from the cloud and
	// publishes it to the state topic.
	SyncState(ctx context.Context) error

	// HandleCommand executes a host-issued command against the cloud
	// and publishes the resulting state.
	HandleCommand(ctx context.Context, cmd Command) error

	// UpdateDescriptor replaces the handler's device descriptor with a
	// fresher snapshot copy.
	UpdateDescriptor(d *vesync.Device)
}

// base carries the state and plumbing shared by all handler variants.
type base struct {
	uuid     string
	category accessory.Category
	deps     Deps

	mu     sync.Mutex
	device *vesync.Device
}

func newBase(d *vesync.Device, category accessory.Category, deps Deps) base {
	return base{
		uuid:     accessory.UUIDFor(d.CompositeID()),
		category: category,
		deps:     deps,
		device:   d,
	}
}

func (b *base) UUID() string                 { return b.uuid }
func (b *base) Category() accessory.Category { return b.category }

func (b *base) UpdateDescriptor(d *vesync.Device) {
	b.mu.Lock()
	b.device = d
	b.mu.Unlock()
}

// snapshot returns a copy of the current descriptor. Sync and command
// paths run concurrently on the same handler, so callers work on the
// copy and never read the shared descriptor outside the lock.
func (b *base) snapshot() vesync.Device {
	b.mu.Lock()
	defer b.mu.Unlock()
	return *b.device
}

// applyDetail folds a detail response into the descriptor.
func (b *base) applyDetail(detail *vesync.Detail) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if detail.DeviceStatus != "" {
		b.device.DeviceStatus = detail.DeviceStatus
	}
	if detail.ConnectionStatus != "" {
		b.device.ConnectionStatus = detail.ConnectionStatus
	}
	if detail.Mode != "" {
		b.device.Mode = detail.Mode
	}
	if detail.Speed > 0 {
		b.device.Speed = detail.Speed
	}
	if detail.Brightness > 0 {
		b.device.Brightness = detail.Brightness
	}
}

// publishState renders the state payload and publishes it retained.
func (b *base) publishState(state any) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	topic := mqtt.Topics{}.AccessoryState(string(b.category), b.uuid)
	if err := b.deps.Publisher.PublishRetained(topic, payload); err != nil {
		return fmt.Errorf("publishing state: %w", err)
	}
	return nil
}

// recordState writes state telemetry if a recorder is configured.
func (b *base) recordState(on bool, level float64) {
	if b.deps.Recorder == nil {
		return
	}
	d := b.snapshot()
	b.deps.Recorder.WriteDeviceState(d.CompositeID(), string(b.category), on, level)
}

// recordCommand writes command telemetry if a recorder is configured.
func (b *base) recordCommand(action string, success bool, started time.Time) {
	if b.deps.Recorder == nil {
		return
	}
	d := b.snapshot()
	b.deps.Recorder.WriteCommandResult(d.CompositeID(), action, success, time.Since(started))
}

// Command action names.
const (
	ActionSetSwitch = "set_switch"
	ActionSetLevel  = "set_level"
	ActionSetMode   = "set_mode"
)

// Command errors.
var (
	errUnknownAction = errors.New("unknown command action")
	errMissingField  = errors.New("command missing required field")
)
