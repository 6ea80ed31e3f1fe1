package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/marktheknife/vesync-bridge/internal/accessory"
	"github.com/marktheknife/vesync-bridge/internal/device"
	"github.com/marktheknife/vesync-bridge/internal/infrastructure/config"
	"github.com/marktheknife/vesync-bridge/internal/infrastructure/mqtt"
	"github.com/marktheknife/vesync-bridge/internal/vesync"
)

// commandTimeout bounds the execution of one host-issued command,
// including the readiness wait.
const commandTimeout = 60 * time.Second

// CloudAPI is the slice of the cloud client the controller drives.
type CloudAPI interface {
	Login(ctx context.Context) error
	Update(ctx context.Context) (*vesync.Snapshot, error)
}

// Messenger is the slice of the MQTT client the controller uses.
type Messenger interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Telemetry receives poll-cycle statistics. Satisfied by the InfluxDB
// client; nil disables telemetry.
type Telemetry interface {
	WritePollCycle(duration time.Duration, deviceCount, created, updated, removed int)
}

// Options configures a Controller.
type Options struct {
	Config   config.VeSyncConfig
	API      CloudAPI
	Registry *accessory.Registry
	Factory  HandlerFactory
	MQTT     Messenger

	// Optional collaborators.
	Telemetry Telemetry
	Metrics   *Metrics
	Logger    Logger
}

// Controller is the device discovery, session, and synchronization
// driver: it logs in, polls the cloud for the device list, reconciles
// the persisted accessory set against it, and drives per-device state
// sync — forever, on a fixed interval, across arbitrary outages.
type Controller struct {
	cfg        config.VeSyncConfig
	api        CloudAPI
	session    *Session
	reconciler *Reconciler
	gate       *Gate
	mqtt       Messenger
	telemetry  Telemetry
	metrics    *Metrics
	logger     Logger

	// cycleMu makes discovery cycles single-flight: a tick that fires
	// while a cycle is still running is dropped, never queued.
	cycleMu sync.Mutex

	wg    sync.WaitGroup
	cmdWG sync.WaitGroup
}

// New creates a controller.
//
// Missing credentials are the one terminal construction failure —
// everything else the controller needs can be retried into existence,
// but it cannot invent an account.
func New(opts Options) (*Controller, error) {
	if opts.Config.Username == "" || opts.Config.Password == "" {
		return nil, ErrMissingCredentials
	}
	if opts.API == nil {
		return nil, fmt.Errorf("bridge: nil API")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("bridge: nil Registry")
	}
	if opts.Factory == nil {
		return nil, fmt.Errorf("bridge: nil Factory")
	}
	if opts.MQTT == nil {
		return nil, fmt.Errorf("bridge: nil MQTT")
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	session := NewSession(opts.API, logger)
	session.metrics = opts.Metrics

	c := &Controller{
		cfg:       opts.Config,
		api:       opts.API,
		session:   session,
		gate:      NewGate(),
		mqtt:      opts.MQTT,
		telemetry: opts.Telemetry,
		metrics:   opts.Metrics,
		logger:    logger,
	}
	c.reconciler = NewReconciler(opts.Registry, opts.Factory, logger)
	return c, nil
}

// Start subscribes to command topics and launches the polling loop.
// It returns once the loop is running; use Wait to block until
// shutdown completes.
func (c *Controller) Start(ctx context.Context) error {
	topic := mqtt.Topics{}.AccessoryCommands()
	if err := c.mqtt.Subscribe(topic, 1, c.handleCommandMessage); err != nil {
		return fmt.Errorf("subscribing to command topics: %w", err)
	}

	c.wg.Add(1)
	go c.run(ctx)

	c.logger.Info("bridge controller started",
		"poll_interval", c.cfg.GetUpdateInterval())
	return nil
}

// Wait blocks until the polling loop and all in-flight command
// handlers have finished.
func (c *Controller) Wait() {
	c.wg.Wait()
	c.cmdWG.Wait()
}

// run fires the first discovery cycle immediately, releases the
// readiness gate once it completes (however it completes), then polls
// on the configured interval until ctx is cancelled.
func (c *Controller) run(ctx context.Context) {
	defer c.wg.Done()

	if err := c.DiscoverDevices(ctx); err != nil {
		c.logger.Error("initial discovery cycle failed", "error", err)
	}
	c.gate.MarkReady()

	ticker := time.NewTicker(c.cfg.GetUpdateInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("polling loop stopped")
			return
		case <-ticker.C:
			if err := c.DiscoverDevices(ctx); err != nil {
				if errors.Is(err, ErrCycleInFlight) {
					c.logger.Debug("skipping poll tick, cycle still running")
					continue
				}
				c.logger.Error("discovery cycle failed", "error", err)
			}
		}
	}
}

// DiscoverDevices runs one full cycle: ensure login, fetch the
// snapshot, reconcile the accessory set, sync every device.
//
// Cycles are single-flight; a call while one is running returns
// ErrCycleInFlight. Within a cycle the ordering is fixed — session,
// fetch, reconcile, sync — and each stage retries internally, so the
// only other error this returns is context cancellation.
func (c *Controller) DiscoverDevices(ctx context.Context) error {
	if !c.cycleMu.TryLock() {
		return ErrCycleInFlight
	}
	defer c.cycleMu.Unlock()

	started := time.Now()

	if err := c.session.EnsureLogin(ctx, false); err != nil {
		return err
	}

	snap, err := c.fetchSnapshot(ctx)
	if err != nil {
		return err
	}

	result, err := c.reconciler.Reconcile(ctx, snap)
	if err != nil {
		return err
	}

	c.syncAll(ctx, result.Handlers)

	duration := time.Since(started)
	c.metrics.observeCycle(duration, snap.Count(), result)
	c.metrics.setAccessories(c.reconciler.HandlerCount())
	if c.telemetry != nil {
		c.telemetry.WritePollCycle(duration, snap.Count(),
			result.Created, result.Updated, result.Removed)
	}

	c.logger.Info("discovery cycle complete",
		"duration", duration,
		"devices", snap.Count(),
		"created", result.Created,
		"updated", result.Updated,
		"removed", result.Removed)
	return nil
}

// AwaitReady blocks until the first discovery cycle completes, the
// readiness timeout forces the gate, or ctx is cancelled.
func (c *Controller) AwaitReady(ctx context.Context) error {
	return c.gate.AwaitReady(ctx)
}

// IsReady reports whether the first discovery cycle has completed (or
// the gate was forced by timeout).
func (c *Controller) IsReady() bool {
	return c.gate.IsReady()
}

// Session exposes the session manager for health reporting.
func (c *Controller) Session() *Session {
	return c.session
}

// HandlerCount reports the number of live device handlers.
func (c *Controller) HandlerCount() int {
	return c.reconciler.HandlerCount()
}

// commandAck is the payload published to the ack topic after a command.
type commandAck struct {
	UUID    string `json:"uuid"`
	Action  string `json:"action"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// handleCommandMessage receives a host command from MQTT and executes
// it asynchronously. Execution awaits the readiness gate first so
// commands arriving during startup wait for discovery instead of
// failing on an empty handler map.
func (c *Controller) handleCommandMessage(topic string, payload []byte) error {
	category, uuid, err := parseCommandTopic(topic)
	if err != nil {
		return err
	}

	var cmd device.Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("decoding command payload: %w", err)
	}

	c.cmdWG.Add(1)
	go func() {
		defer c.cmdWG.Done()
		c.executeCommand(category, uuid, cmd)
	}()
	return nil
}

func (c *Controller) executeCommand(category, uuid string, cmd device.Command) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := c.AwaitReady(ctx); err != nil {
		// Forced readiness: proceed anyway — the handler map may be
		// incomplete, but refusing guarantees failure.
		c.logger.Warn("command proceeding without earned readiness",
			"uuid", uuid, "action", cmd.Action, "error", err)
	}

	ack := commandAck{UUID: uuid, Action: cmd.Action, Success: true}

	handler, ok := c.reconciler.HandlerFor(uuid)
	if !ok {
		ack.Success = false
		ack.Error = "unknown accessory"
		c.logger.Warn("command for unknown accessory", "uuid", uuid, "action", cmd.Action)
	} else if err := handler.HandleCommand(ctx, cmd); err != nil {
		ack.Success = false
		ack.Error = err.Error()
		c.logger.Error("command failed", "uuid", uuid, "action", cmd.Action, "error", err)
	}

	c.metrics.observeCommand(ack.Success)

	payload, err := json.Marshal(ack)
	if err != nil {
		return
	}
	topic := mqtt.Topics{}.AccessoryAck(category, uuid)
	if err := c.mqtt.Publish(topic, payload, 1, false); err != nil {
		c.logger.Warn("publishing command ack failed", "topic", topic, "error", err)
	}
}

// parseCommandTopic extracts category and accessory uuid from a
// command topic (vesync/command/{category}/{uuid}).
func parseCommandTopic(topic string) (category, uuid string, err error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != "vesync" || parts[1] != "command" {
		return "", "", fmt.Errorf("malformed command topic %q", topic)
	}
	if parts[2] == "" || parts[3] == "" {
		return "", "", fmt.Errorf("malformed command topic %q", topic)
	}
	return parts[2], parts[3], nil
}
