package accessory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Event identifies an accessory lifecycle transition.
type Event string

const (
	EventAdded   Event = "added"
	EventUpdated Event = "updated"
	EventRemoved Event = "removed"
)

// Notifier receives accessory lifecycle events. The bridge wires this
// to MQTT so the host learns about additions and removals; a nil
// notifier disables notification.
type Notifier interface {
	AccessoryEvent(event Event, rec *Record)
}

// Registry provides accessory management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for fast lookups
// plus lifecycle notifications on every mutation.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by the mutating operations.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Record // Cached records by UUID
	cacheMu sync.RWMutex
	logger  Logger
	notify  Notifier
}

// NewRegistry creates a new accessory registry.
// The repository is used for persistence; the registry adds caching.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Record),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetNotifier sets the lifecycle event receiver.
func (r *Registry) SetNotifier(n Notifier) {
	r.notify = n
}

// RefreshCache reloads all accessories from the repository into the cache.
// This should be called on application startup, before the first
// reconciliation, so removals of devices that disappeared while the
// bridge was down are detected.
func (r *Registry) RefreshCache(ctx context.Context) error {
	records, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading accessories: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*Record, len(records))
	for i := range records {
		rec := records[i]
		r.cache[rec.UUID] = rec.DeepCopy()
	}

	r.logger.Info("accessory cache refreshed", "count", len(records))
	return nil
}

// Get retrieves an accessory by UUID.
// Returns ErrNotFound if the accessory does not exist.
// The returned record is a deep copy; callers can safely modify it.
func (r *Registry) Get(ctx context.Context, uuid string) (*Record, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[uuid]
	r.cacheMu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}

	rec, err := r.repo.GetByUUID(ctx, uuid)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[uuid] = rec.DeepCopy()
	r.cacheMu.Unlock()

	return rec, nil
}

// List retrieves all accessories.
// The returned records are deep copies; callers can safely modify them.
func (r *Registry) List(ctx context.Context) ([]Record, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	if len(r.cache) > 0 {
		records := make([]Record, 0, len(r.cache))
		for _, rec := range r.cache {
			records = append(records, *rec.DeepCopy())
		}
		return records, nil
	}

	return r.repo.List(ctx)
}

// Count returns the number of cached accessories.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// Register persists a new accessory and announces it.
// The record's UUID must already be derived (UUIDFor).
// Returns ErrExists if the accessory is already registered.
func (r *Registry) Register(ctx context.Context, rec *Record) error {
	if err := r.repo.Create(ctx, rec); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[rec.UUID] = rec.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("accessory registered",
		"uuid", rec.UUID, "name", rec.Name, "category", rec.Category)
	r.emit(EventAdded, rec)
	return nil
}

// UpdateContext refreshes an accessory's name and context snapshot.
// Returns ErrNotFound if the accessory does not exist.
func (r *Registry) UpdateContext(ctx context.Context, rec *Record) error {
	if err := r.repo.Update(ctx, rec); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[rec.UUID] = rec.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Debug("accessory context updated", "uuid", rec.UUID, "name", rec.Name)
	r.emit(EventUpdated, rec)
	return nil
}

// Unregister removes an accessory and announces the removal.
// Returns ErrNotFound if the accessory does not exist.
func (r *Registry) Unregister(ctx context.Context, uuid string) error {
	rec, err := r.Get(ctx, uuid)
	if err != nil {
		return err
	}

	if err := r.repo.Delete(ctx, uuid); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, uuid)
	r.cacheMu.Unlock()

	r.logger.Info("accessory unregistered", "uuid", uuid, "name", rec.Name)
	r.emit(EventRemoved, rec)
	return nil
}

func (r *Registry) emit(event Event, rec *Record) {
	if r.notify == nil {
		return
	}
	r.notify.AccessoryEvent(event, rec)
}

// EventPayload renders the lifecycle event body published to MQTT.
func EventPayload(event Event, rec *Record) ([]byte, error) {
	return json.Marshal(map[string]any{
		"event":        string(event),
		"uuid":         rec.UUID,
		"composite_id": rec.CompositeID,
		"name":         rec.Name,
		"category":     string(rec.Category),
	})
}
