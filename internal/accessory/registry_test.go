package accessory

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// mockRepository is an in-memory Repository for registry tests.
type mockRepository struct {
	mu      sync.Mutex
	records map[string]*Record
	listErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{records: make(map[string]*Record)}
}

func (m *mockRepository) GetByUUID(_ context.Context, uuid string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[uuid]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.DeepCopy(), nil
}

func (m *mockRepository) List(_ context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, *rec.DeepCopy())
	}
	return out, nil
}

func (m *mockRepository) Create(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.UUID]; ok {
		return ErrExists
	}
	m.records[rec.UUID] = rec.DeepCopy()
	return nil
}

func (m *mockRepository) Update(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.UUID]; !ok {
		return ErrNotFound
	}
	m.records[rec.UUID] = rec.DeepCopy()
	return nil
}

func (m *mockRepository) Delete(_ context.Context, uuid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[uuid]; !ok {
		return ErrNotFound
	}
	delete(m.records, uuid)
	return nil
}

// recordingNotifier captures lifecycle events in order.
type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
	uuids  []string
}

func (n *recordingNotifier) AccessoryEvent(event Event, rec *Record) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	n.uuids = append(n.uuids, rec.UUID)
}

func TestRegistryRegisterNotifies(t *testing.T) {
	reg := NewRegistry(newMockRepository())
	notifier := &recordingNotifier{}
	reg.SetNotifier(notifier)

	rec := testRecord("cid-1")
	if err := reg.Register(context.Background(), rec); err != nil {
		t.Fatalf("Register() = %v", err)
	}

	if len(notifier.events) != 1 || notifier.events[0] != EventAdded {
		t.Errorf("events = %v, want [added]", notifier.events)
	}
	if reg.Count() != 1 {
		t.Errorf("Count() = %d, want 1", reg.Count())
	}
}

func TestRegistryRegisterDuplicate(t *testing.T) {
	reg := NewRegistry(newMockRepository())

	if err := reg.Register(context.Background(), testRecord("cid-1")); err != nil {
		t.Fatal(err)
	}
	err := reg.Register(context.Background(), testRecord("cid-1"))
	if !errors.Is(err, ErrExists) {
		t.Errorf("duplicate Register() = %v, want ErrExists", err)
	}
}

func TestRegistryUpdateContext(t *testing.T) {
	reg := NewRegistry(newMockRepository())
	notifier := &recordingNotifier{}
	reg.SetNotifier(notifier)
	ctx := context.Background()

	rec := testRecord("cid-1")
	if err := reg.Register(ctx, rec); err != nil {
		t.Fatal(err)
	}

	rec.Context = []byte(`{"deviceStatus":"off"}`)
	if err := reg.UpdateContext(ctx, rec); err != nil {
		t.Fatalf("UpdateContext() = %v", err)
	}

	got, err := reg.Get(ctx, rec.UUID)
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Context) != `{"deviceStatus":"off"}` {
		t.Errorf("cache not updated: %s", got.Context)
	}
	if len(notifier.events) != 2 || notifier.events[1] != EventUpdated {
		t.Errorf("events = %v, want [added updated]", notifier.events)
	}
}

func TestRegistryUnregister(t *testing.T) {
	reg := NewRegistry(newMockRepository())
	notifier := &recordingNotifier{}
	reg.SetNotifier(notifier)
	ctx := context.Background()

	rec := testRecord("cid-1")
	if err := reg.Register(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if err := reg.Unregister(ctx, rec.UUID); err != nil {
		t.Fatalf("Unregister() = %v", err)
	}

	if _, err := reg.Get(ctx, rec.UUID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Unregister = %v, want ErrNotFound", err)
	}
	if reg.Count() != 0 {
		t.Errorf("Count() = %d, want 0", reg.Count())
	}
	if notifier.events[len(notifier.events)-1] != EventRemoved {
		t.Errorf("last event = %v, want removed", notifier.events)
	}
}

func TestRegistryUnregisterMissing(t *testing.T) {
	reg := NewRegistry(newMockRepository())

	err := reg.Unregister(context.Background(), UUIDFor("ghost"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Unregister(missing) = %v, want ErrNotFound", err)
	}
}

func TestRegistryRefreshCache(t *testing.T) {
	repo := newMockRepository()
	ctx := context.Background()

	for _, cid := range []string{"cid-1", "cid-2"} {
		if err := repo.Create(ctx, testRecord(cid)); err != nil {
			t.Fatal(err)
		}
	}

	reg := NewRegistry(repo)
	if err := reg.RefreshCache(ctx); err != nil {
		t.Fatalf("RefreshCache() = %v", err)
	}
	if reg.Count() != 2 {
		t.Errorf("Count() = %d, want 2", reg.Count())
	}

	repo.listErr = errors.New("db gone")
	if err := reg.RefreshCache(ctx); err == nil {
		t.Error("RefreshCache() with failing repo should return error")
	}
}

func TestRegistryGetReturnsCopy(t *testing.T) {
	reg := NewRegistry(newMockRepository())
	ctx := context.Background()

	rec := testRecord("cid-1")
	if err := reg.Register(ctx, rec); err != nil {
		t.Fatal(err)
	}

	got, _ := reg.Get(ctx, rec.UUID)
	got.Name = "mutated"

	again, _ := reg.Get(ctx, rec.UUID)
	if again.Name == "mutated" {
		t.Error("Get() returned a reference into the cache")
	}
}
