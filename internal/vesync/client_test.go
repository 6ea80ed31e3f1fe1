package vesync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/marktheknife/vesync-bridge/internal/infrastructure/config"
)

// newTestClient returns a client pointed at a stub server, with pacing
// disabled so tests run instantly.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(config.VeSyncConfig{
		Username: "user@example.com",
		Password: "hunter2",
		BaseURL:  srv.URL,
	})
	c.gap = 0
	return c
}

func TestLoginSuccess(t *testing.T) {
	var gotBody map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != loginPath {
			t.Errorf("login path = %q, want %q", r.URL.Path, loginPath)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"msg":  "request success",
			"result": map[string]any{
				"accountID": "acct-1",
				"token":     "tok-1",
			},
		})
	})

	if err := c.Login(context.Background()); err != nil {
		t.Fatalf("Login() = %v, want nil", err)
	}
	if !c.Authenticated() {
		t.Error("Authenticated() = false after successful login")
	}

	// Password must travel as the MD5 hex digest, never plaintext.
	wantHash := hashPassword("hunter2")
	if gotBody["password"] != wantHash {
		t.Errorf("password field = %v, want md5 digest %q", gotBody["password"], wantHash)
	}
}

func TestLoginRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"code": -11201,
			"msg":  "password error",
		})
	})

	err := c.Login(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Login() = %v, want *APIError", err)
	}
	if apiErr.Code != -11201 {
		t.Errorf("APIError.Code = %d, want -11201", apiErr.Code)
	}
	if c.Authenticated() {
		t.Error("Authenticated() = true after rejected login")
	}
}

func TestUpdateRequiresLogin(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request reached server without authentication")
	})

	_, err := c.Update(context.Background())
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("Update() before login = %v, want ErrNotAuthenticated", err)
	}
}

func TestUpdatePartitionsSnapshot(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case loginPath:
			json.NewEncoder(w).Encode(map[string]any{
				"code":   0,
				"result": map[string]any{"accountID": "a", "token": "t"},
			})
		case devicesPath:
			json.NewEncoder(w).Encode(map[string]any{
				"code": 0,
				"result": map[string]any{
					"total": 5,
					"list": []map[string]any{
						{"cid": "c1", "deviceType": "Core200S", "deviceName": "Bedroom Purifier", "deviceStatus": "on"},
						{"cid": "c2", "deviceType": "ESW15-USA", "deviceName": "Lamp Outlet"},
						{"cid": "c3", "deviceType": "ESWL01", "deviceName": "Hall Switch"},
						{"cid": "c4", "deviceType": "ESL100", "deviceName": "Desk Bulb"},
						{"cid": "c5", "deviceType": "UNKNOWN-99", "deviceName": "Mystery"},
					},
				},
			})
		}
	})

	if err := c.Login(context.Background()); err != nil {
		t.Fatal(err)
	}
	snap, err := c.Update(context.Background())
	if err != nil {
		t.Fatalf("Update() = %v", err)
	}

	if len(snap.Fans) != 1 || len(snap.Outlets) != 1 || len(snap.Switches) != 1 || len(snap.Bulbs) != 1 {
		t.Errorf("partition counts = %d/%d/%d/%d, want 1/1/1/1",
			len(snap.Fans), len(snap.Outlets), len(snap.Switches), len(snap.Bulbs))
	}
	if snap.Count() != 4 {
		t.Errorf("Count() = %d, want 4 (unknown model dropped)", snap.Count())
	}
	if len(snap.All()) != 4 {
		t.Errorf("All() returned %d devices, want 4", len(snap.All()))
	}
}

func TestSetSwitchSendsBypassPayload(t *testing.T) {
	var gotBody map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case loginPath:
			json.NewEncoder(w).Encode(map[string]any{
				"code":   0,
				"result": map[string]any{"accountID": "a", "token": "t"},
			})
		case bypassPath:
			json.NewDecoder(r.Body).Decode(&gotBody)
			json.NewEncoder(w).Encode(map[string]any{"code": 0})
		}
	})

	if err := c.Login(context.Background()); err != nil {
		t.Fatal(err)
	}

	d := &Device{CID: "c1", ConfigModule: "cm1", DeviceType: "ESW15-USA"}
	if err := c.SetSwitch(context.Background(), d, true); err != nil {
		t.Fatalf("SetSwitch() = %v", err)
	}

	if gotBody["cid"] != "c1" {
		t.Errorf("cid = %v, want c1", gotBody["cid"])
	}
	payload, _ := gotBody["payload"].(map[string]any)
	if payload["method"] != "setSwitch" {
		t.Errorf("payload method = %v, want setSwitch", payload["method"])
	}
}

func TestPaceEnforcesGap(t *testing.T) {
	c := New(config.VeSyncConfig{Username: "u", Password: "p"})

	clock := time.Unix(1000, 0)
	var slept []time.Duration
	c.now = func() time.Time { return clock }
	c.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		clock = clock.Add(d)
		return nil
	}

	// First request: no gap to enforce.
	if err := c.pace(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(slept) != 0 {
		t.Fatalf("first request slept %v, want none", slept)
	}

	// Immediate second request: must wait the full gap.
	if err := c.pace(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(slept) != 1 || slept[0] != minRequestGap {
		t.Errorf("second request slept %v, want [%v]", slept, minRequestGap)
	}

	// Third request after the gap has naturally passed: no wait.
	clock = clock.Add(2 * minRequestGap)
	if err := c.pace(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(slept) != 1 {
		t.Errorf("third request slept again: %v", slept)
	}
}
