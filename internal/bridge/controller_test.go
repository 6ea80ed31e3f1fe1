package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/marktheknife/vesync-bridge/internal/accessory"
	"github.com/marktheknife/vesync-bridge/internal/infrastructure/config"
	"github.com/marktheknife/vesync-bridge/internal/infrastructure/mqtt"
	"github.com/marktheknife/vesync-bridge/internal/vesync"
)

// fakeCloud implements CloudAPI with a fixed snapshot.
type fakeCloud struct {
	mu        sync.Mutex
	snap      *vesync.Snapshot
	loginErr  error
	updateErr error
	logins    int
	updates   int
}

func (f *fakeCloud) Login(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++
	return f.loginErr
}

func (f *fakeCloud) Update(_ context.Context) (*vesync.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.snap, nil
}

// fakeMessenger records publishes and subscriptions.
type fakeMessenger struct {
	mu        sync.Mutex
	published map[string][]byte
	handlers  map[string]mqtt.MessageHandler
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{
		published: make(map[string][]byte),
		handlers:  make(map[string]mqtt.MessageHandler),
	}
}

func (f *fakeMessenger) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	return nil
}

func (f *fakeMessenger) Publish(topic string, payload []byte, _ byte, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[topic] = payload
	return nil
}

func (f *fakeMessenger) payloadFor(topic string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.published[topic]
	return p, ok
}

func testController(t *testing.T, cloud *fakeCloud, msgr *fakeMessenger, factory HandlerFactory) *Controller {
	t.Helper()

	c, err := New(Options{
		Config: config.VeSyncConfig{
			Username:       "user@example.com",
			Password:       "hunter2",
			UpdateInterval: 30,
		},
		API:      cloud,
		Registry: accessory.NewRegistry(newMemRepo()),
		Factory:  factory,
		MQTT:     msgr,
	})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	return c
}

func TestNewMissingCredentials(t *testing.T) {
	_, err := New(Options{Config: config.VeSyncConfig{Username: "u"}})
	if !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("New() without password = %v, want ErrMissingCredentials", err)
	}
}

func TestDiscoverDevicesFullCycle(t *testing.T) {
	cloud := &fakeCloud{snap: snapshotOf(fan("cid-1", "One"), fan("cid-2", "Two"))}
	c := testController(t, cloud, newFakeMessenger(), newFakeFactory())

	if err := c.DiscoverDevices(context.Background()); err != nil {
		t.Fatalf("DiscoverDevices() = %v", err)
	}

	if cloud.logins != 1 {
		t.Errorf("logins = %d, want 1", cloud.logins)
	}
	if cloud.updates != 1 {
		t.Errorf("updates = %d, want 1", cloud.updates)
	}
	if c.HandlerCount() != 2 {
		t.Errorf("HandlerCount() = %d, want 2", c.HandlerCount())
	}
	if !c.session.LoggedIn() {
		t.Error("session not logged in after cycle")
	}
}

func TestDiscoverDevicesSingleFlight(t *testing.T) {
	cloud := &fakeCloud{snap: snapshotOf()}
	c := testController(t, cloud, newFakeMessenger(), newFakeFactory())

	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	err := c.DiscoverDevices(context.Background())
	if !errors.Is(err, ErrCycleInFlight) {
		t.Errorf("concurrent DiscoverDevices() = %v, want ErrCycleInFlight", err)
	}
}

func TestCommandDispatch(t *testing.T) {
	factory := newFakeFactory()
	cloud := &fakeCloud{snap: snapshotOf(fan("cid-1", "One"))}
	msgr := newFakeMessenger()
	c := testController(t, cloud, msgr, factory)

	if err := c.DiscoverDevices(context.Background()); err != nil {
		t.Fatal(err)
	}
	c.gate.MarkReady()

	uuid := accessory.UUIDFor("cid-1")
	topic := "vesync/command/fan/" + uuid
	on := true
	payload, _ := json.Marshal(map[string]any{"action": "set_switch", "on": on})

	if err := c.handleCommandMessage(topic, payload); err != nil {
		t.Fatalf("handleCommandMessage() = %v", err)
	}
	c.cmdWG.Wait()

	h := factory.handlers[uuid]
	h.mu.Lock()
	commands := len(h.commands)
	h.mu.Unlock()
	if commands != 1 {
		t.Fatalf("handler received %d commands, want 1", commands)
	}

	ackTopic := "vesync/ack/fan/" + uuid
	raw, ok := msgr.payloadFor(ackTopic)
	if !ok {
		t.Fatalf("no ack published to %q", ackTopic)
	}
	var ack commandAck
	if err := json.Unmarshal(raw, &ack); err != nil {
		t.Fatal(err)
	}
	if !ack.Success {
		t.Errorf("ack.Success = false: %+v", ack)
	}
}

func TestCommandUnknownAccessory(t *testing.T) {
	cloud := &fakeCloud{snap: snapshotOf()}
	msgr := newFakeMessenger()
	c := testController(t, cloud, msgr, newFakeFactory())
	c.gate.MarkReady()

	uuid := accessory.UUIDFor("ghost")
	payload, _ := json.Marshal(map[string]any{"action": "set_switch", "on": true})
	if err := c.handleCommandMessage("vesync/command/fan/"+uuid, payload); err != nil {
		t.Fatal(err)
	}
	c.cmdWG.Wait()

	raw, ok := msgr.payloadFor("vesync/ack/fan/" + uuid)
	if !ok {
		t.Fatal("no ack published for unknown accessory")
	}
	var ack commandAck
	if err := json.Unmarshal(raw, &ack); err != nil {
		t.Fatal(err)
	}
	if ack.Success {
		t.Error("ack.Success = true for unknown accessory")
	}
}

func TestCommandMalformedTopicAndPayload(t *testing.T) {
	cloud := &fakeCloud{snap: snapshotOf()}
	c := testController(t, cloud, newFakeMessenger(), newFakeFactory())

	if err := c.handleCommandMessage("vesync/state/fan/x", []byte(`{}`)); err == nil {
		t.Error("non-command topic accepted")
	}
	if err := c.handleCommandMessage("vesync/command/fan/x", []byte(`not json`)); err == nil {
		t.Error("malformed payload accepted")
	}
}

func TestParseCommandTopic(t *testing.T) {
	tests := []struct {
		topic    string
		category string
		uuid     string
		wantErr  bool
	}{
		{"vesync/command/fan/abc", "fan", "abc", false},
		{"vesync/command/outlet/u-1", "outlet", "u-1", false},
		{"vesync/state/fan/abc", "", "", true},
		{"vesync/command/fan", "", "", true},
		{"vesync/command//abc", "", "", true},
		{"other/command/fan/abc", "", "", true},
	}

	for _, tt := range tests {
		category, uuid, err := parseCommandTopic(tt.topic)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseCommandTopic(%q): expected error", tt.topic)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseCommandTopic(%q) = %v", tt.topic, err)
			continue
		}
		if category != tt.category || uuid != tt.uuid {
			t.Errorf("parseCommandTopic(%q) = %q/%q, want %q/%q",
				tt.topic, category, uuid, tt.category, tt.uuid)
		}
	}
}

func TestRevalidateSessionClampsOnExpired(t *testing.T) {
	// A sync failure carrying "Not logged in" must clamp the login
	// backoff so the triggered re-login waits at most the short clamp.
	cloud := &fakeCloud{snap: snapshotOf()}
	c := testController(t, cloud, newFakeMessenger(), newFakeFactory())

	clock := newFakeClock()
	clock.install(c.session)

	// Session previously valid with a grown backoff.
	c.session.mu.Lock()
	c.session.loggedIn = true
	c.session.backoff = backoffCeiling
	c.session.lastAttempt = clock.now
	c.session.mu.Unlock()

	cause := errors.New("request failed: Not logged in")
	if err := c.revalidateSession(context.Background(), cause); err != nil {
		t.Fatalf("revalidateSession() = %v", err)
	}

	for _, d := range clock.sleeps() {
		if d > expiredBackoff {
			t.Errorf("re-login waited %v, want <= %v", d, expiredBackoff)
		}
	}
	if cloud.logins != 1 {
		t.Errorf("logins = %d, want 1 (revalidation must re-login)", cloud.logins)
	}
}

func TestRevalidateSessionNoOpWhenValid(t *testing.T) {
	cloud := &fakeCloud{snap: snapshotOf()}
	c := testController(t, cloud, newFakeMessenger(), newFakeFactory())
	newFakeClock().install(c.session)

	if err := c.session.EnsureLogin(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	logins := cloud.logins

	// A transport failure does not invalidate the session.
	if err := c.revalidateSession(context.Background(), errors.New("connection reset")); err != nil {
		t.Fatal(err)
	}
	if cloud.logins != logins {
		t.Errorf("revalidation re-logged in for a transport error: %d -> %d", logins, cloud.logins)
	}
}

func TestStartRunsFirstCycleAndReleasesGate(t *testing.T) {
	cloud := &fakeCloud{snap: snapshotOf(fan("cid-1", "One"))}
	msgr := newFakeMessenger()
	c := testController(t, cloud, msgr, newFakeFactory())

	ctx, cancel := context.WithCancel(context.Background())
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start() = %v", err)
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	if err := c.AwaitReady(waitCtx); err != nil {
		t.Fatalf("AwaitReady() = %v", err)
	}
	if !c.IsReady() {
		t.Error("IsReady() = false after first cycle")
	}
	if c.HandlerCount() != 1 {
		t.Errorf("HandlerCount() = %d, want 1", c.HandlerCount())
	}

	// Command subscription made on the wildcard topic.
	msgr.mu.Lock()
	_, subscribed := msgr.handlers["vesync/command/+/+"]
	msgr.mu.Unlock()
	if !subscribed {
		t.Error("command wildcard not subscribed")
	}

	cancel()
	c.Wait()
}
