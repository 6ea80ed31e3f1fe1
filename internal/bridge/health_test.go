package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestHealthReporterPublishes(t *testing.T) {
	cloud := &fakeCloud{snap: snapshotOf()}
	msgr := newFakeMessenger()
	c := testController(t, cloud, msgr, newFakeFactory())

	r := NewHealthReporter(c, msgr, nil, time.Hour)
	r.AddCheck("database", func(ctx context.Context) error { return nil })
	r.AddCheck("influxdb", func(ctx context.Context) error { return errors.New("not connected") })

	r.publish(context.Background())

	raw, ok := msgr.payloadFor("vesync/system/health")
	if !ok {
		t.Fatal("no health report published")
	}

	var report healthReport
	if err := json.Unmarshal(raw, &report); err != nil {
		t.Fatal(err)
	}
	if report.Healthy {
		t.Error("Healthy = true with a failing component")
	}
	if report.Components["database"] != "ok" {
		t.Errorf("database component = %q, want ok", report.Components["database"])
	}
	if report.Components["influxdb"] == "ok" {
		t.Error("influxdb component reported ok despite failure")
	}
	if report.Ready {
		t.Error("Ready = true before first cycle")
	}
}

func TestHealthReporterLifecycle(t *testing.T) {
	cloud := &fakeCloud{snap: snapshotOf()}
	msgr := newFakeMessenger()
	c := testController(t, cloud, msgr, newFakeFactory())

	r := NewHealthReporter(c, msgr, nil, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)

	// The immediate report lands before cancellation.
	deadline := time.After(2 * time.Second)
	for {
		if _, ok := msgr.payloadFor("vesync/system/health"); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("no report published after Start")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	r.Wait()
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.observeLogin(false)
	m.observeCycle(time.Second, 3, ReconcileResult{Created: 1})
	m.setAccessories(3)
	m.observeSyncFailure()
	m.observeCommand(true)
}

func TestMetricsRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.observeCycle(2*time.Second, 4, ReconcileResult{Created: 1, Updated: 2, Removed: 1})
	m.setAccessories(4)
	m.observeSyncFailure()
	m.observeCommand(false)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() = %v", err)
	}
	if len(families) == 0 {
		t.Error("no metric families registered")
	}
}
