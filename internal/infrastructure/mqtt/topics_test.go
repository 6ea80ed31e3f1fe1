package mqtt

import "testing"

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		got  string
		want string
	}{
		{topics.AccessoryState("fan", "abc"), "vesync/state/fan/abc"},
		{topics.AccessoryCommand("outlet", "abc"), "vesync/command/outlet/abc"},
		{topics.AccessoryCommands(), "vesync/command/+/+"},
		{topics.AccessoryAck("bulb", "abc"), "vesync/ack/bulb/abc"},
		{topics.AccessoryEvent("added", "abc"), "vesync/accessory/added/abc"},
		{topics.AccessoryEvent("removed", "abc"), "vesync/accessory/removed/abc"},
		{topics.SystemStatus(), "vesync/system/status"},
		{topics.SystemHealth(), "vesync/system/health"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("topic = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestPublishValidation(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}

	if err := c.Publish("", []byte("x"), 1, false); err != ErrInvalidTopic {
		t.Errorf("empty topic: got %v, want ErrInvalidTopic", err)
	}
	if err := c.Publish("t", []byte("x"), 3, false); err != ErrInvalidQoS {
		t.Errorf("qos 3: got %v, want ErrInvalidQoS", err)
	}
	if err := c.Publish("t", []byte("x"), 1, false); err != ErrNotConnected {
		t.Errorf("disconnected: got %v, want ErrNotConnected", err)
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := &Client{subscriptions: make(map[string]subscription)}

	if err := c.Subscribe("", 1, func(string, []byte) error { return nil }); err != ErrInvalidTopic {
		t.Errorf("empty topic: got %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("t", 1, nil); err == nil {
		t.Error("nil handler: expected error")
	}
}
