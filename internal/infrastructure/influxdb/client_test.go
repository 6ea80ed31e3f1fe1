package influxdb

import (
	"context"
	"errors"
	"testing"

	"github.com/marktheknife/vesync-bridge/internal/infrastructure/config"
)

func TestConnectDisabled(t *testing.T) {
	cfg := config.InfluxDBConfig{Enabled: false}

	_, err := Connect(cfg)
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() with disabled config: got %v, want ErrDisabled", err)
	}
}

func TestCloseNilClient(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on zero client: got %v, want nil", err)
	}
}

func TestHealthCheckNotConnected(t *testing.T) {
	c := &Client{}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() disconnected: got %v, want ErrNotConnected", err)
	}
}

func TestWritesNoOpWhenDisconnected(t *testing.T) {
	// Writes on a disconnected client must be silent no-ops, not panics.
	c := &Client{}
	c.WriteDeviceState("cid-1", "fan", true, 50)
	c.WritePollCycle(0, 0, 0, 0, 0)
	c.WriteCommandResult("cid-1", "set_switch", true, 0)
	c.WritePoint("custom", nil, map[string]interface{}{"v": 1.0})
	c.Flush()
}
