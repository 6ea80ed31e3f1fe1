package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/marktheknife/vesync-bridge/internal/accessory"
	"github.com/marktheknife/vesync-bridge/internal/device"
	"github.com/marktheknife/vesync-bridge/internal/vesync"
)

// HandlerFactory constructs the per-device handler for a descriptor.
type HandlerFactory interface {
	New(d *vesync.Device) (device.Handler, error)
}

// ReconcileResult summarises one reconciliation pass.
type ReconcileResult struct {
	Created int
	Updated int
	Removed int

	// Handlers holds the live handlers for every device seen this
	// cycle, in snapshot order. The sync driver runs these.
	Handlers []device.Handler
}

// Reconciler aligns the persisted accessory set with the live device
// snapshot and maintains the identifier-to-handler map.
//
// Invariant: the handler map always holds exactly the handlers for
// currently registered accessories — a handler is added only after its
// record is persisted, and dropped when its record is removed.
//
// Thread Safety:
//   - Reconcile must not run concurrently with itself (the controller's
//     single-flight cycle lock guarantees this).
//   - HandlerFor and Handlers are safe to call concurrently with
//     Reconcile; command dispatch uses them.
type Reconciler struct {
	registry *accessory.Registry
	factory  HandlerFactory
	logger   Logger

	mu       sync.RWMutex
	handlers map[string]device.Handler
}

// NewReconciler creates a reconciler over the given registry and factory.
func NewReconciler(registry *accessory.Registry, factory HandlerFactory, logger Logger) *Reconciler {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Reconciler{
		registry: registry,
		factory:  factory,
		logger:   logger,
		handlers: make(map[string]device.Handler),
	}
}

// Reconcile diffs the snapshot against the persisted accessory set:
// registers accessories for new devices, refreshes context for known
// ones, and removes accessories whose devices no longer appear.
//
// Per-device failures are logged and skipped — one bad device must not
// abort the cycle. The returned error is reserved for failures that
// invalidate the whole pass (listing the persisted set).
func (r *Reconciler) Reconcile(ctx context.Context, snap *vesync.Snapshot) (ReconcileResult, error) {
	var result ReconcileResult

	// Identifier set of the snapshot itself, computed up front. Removal
	// is keyed on device absence, never on a transient per-device
	// failure below: a device that fails to reconcile is still present.
	inSnapshot := make(map[string]bool)
	for _, d := range snap.All() {
		inSnapshot[accessory.UUIDFor(d.CompositeID())] = true
	}

	for _, d := range snap.All() {
		_, handler, outcome, err := r.reconcileDevice(ctx, d)
		if err != nil {
			r.logger.Error("reconciling device failed",
				"device", d.CompositeID(), "name", d.DeviceName, "error", err)
			continue
		}

		result.Handlers = append(result.Handlers, handler)
		switch outcome {
		case outcomeCreated:
			result.Created++
		case outcomeUpdated:
			result.Updated++
		}
	}

	// Remove accessories whose devices vanished from the snapshot.
	records, err := r.registry.List(ctx)
	if err != nil {
		return result, fmt.Errorf("listing accessories for removal: %w", err)
	}
	for i := range records {
		rec := &records[i]
		if inSnapshot[rec.UUID] {
			continue
		}
		if err := r.registry.Unregister(ctx, rec.UUID); err != nil {
			r.logger.Error("removing stale accessory failed",
				"uuid", rec.UUID, "name", rec.Name, "error", err)
			continue
		}
		r.dropHandler(rec.UUID)
		result.Removed++
	}

	r.logger.Info("reconciliation complete",
		"devices", snap.Count(),
		"created", result.Created,
		"updated", result.Updated,
		"removed", result.Removed)
	return result, nil
}

type outcome int

const (
	outcomeUnchanged outcome = iota
	outcomeCreated
	outcomeUpdated
)

// reconcileDevice processes one device: persists or refreshes its
// accessory record and installs a fresh handler.
func (r *Reconciler) reconcileDevice(ctx context.Context, d *vesync.Device) (string, device.Handler, outcome, error) {
	uuid := accessory.UUIDFor(d.CompositeID())

	handler, err := r.factory.New(d)
	if err != nil {
		return uuid, nil, outcomeUnchanged, err
	}

	contextJSON, err := json.Marshal(d)
	if err != nil {
		return uuid, nil, outcomeUnchanged, fmt.Errorf("encoding descriptor: %w", err)
	}

	rec := &accessory.Record{
		UUID:        uuid,
		CompositeID: d.CompositeID(),
		Name:        d.DeviceName,
		Category:    handler.Category(),
		Context:     contextJSON,
	}

	existing, err := r.registry.Get(ctx, uuid)
	switch {
	case err == nil:
		out := outcomeUnchanged
		if existing.Name != rec.Name || !bytes.Equal(existing.Context, rec.Context) {
			if err := r.registry.UpdateContext(ctx, rec); err != nil {
				return uuid, nil, outcomeUnchanged, err
			}
			out = outcomeUpdated
		}
		r.setHandler(uuid, handler)
		return uuid, handler, out, nil

	case isNotFound(err):
		if err := r.registry.Register(ctx, rec); err != nil {
			return uuid, nil, outcomeUnchanged, err
		}
		r.setHandler(uuid, handler)
		return uuid, handler, outcomeCreated, nil

	default:
		return uuid, nil, outcomeUnchanged, err
	}
}

// HandlerFor returns the live handler for an accessory, if any.
func (r *Reconciler) HandlerFor(uuid string) (device.Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[uuid]
	return h, ok
}

// Handlers returns a snapshot of all live handlers.
func (r *Reconciler) Handlers() []device.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]device.Handler, 0, len(r.handlers))
	for _, h := range r.handlers {
		out = append(out, h)
	}
	return out
}

// HandlerCount returns the number of live handlers.
func (r *Reconciler) HandlerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

func (r *Reconciler) setHandler(uuid string, h device.Handler) {
	r.mu.Lock()
	r.handlers[uuid] = h
	r.mu.Unlock()
}

func (r *Reconciler) dropHandler(uuid string) {
	r.mu.Lock()
	delete(r.handlers, uuid)
	r.mu.Unlock()
}

func isNotFound(err error) bool {
	return errors.Is(err, accessory.ErrNotFound)
}
