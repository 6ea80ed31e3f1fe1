package vesync

import (
	"bytes"
	"context"
	"crypto/md5" // #nosec G501 -- the cloud API requires MD5-hashed passwords
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/marktheknife/vesync-bridge/internal/infrastructure/config"
)

// API endpoint paths and protocol constants.
const (
	defaultBaseURL = "https://smartapi.vesync.com"

	loginPath   = "/cloud/v1/user/login"
	devicesPath = "/cloud/v1/deviceManaged/devices"
	detailPath  = "/cloud/v1/device/deviceDetail"
	bypassPath  = "/cloud/v1/deviceManaged/bypassV2"

	// requestTimeout bounds a single HTTP exchange. Retry policy lives
	// with the callers, not here.
	requestTimeout = 15 * time.Second

	// minRequestGap is the enforced spacing between consecutive API
	// calls. The cloud rate-limits aggressively; pacing requests here
	// keeps every caller honest without coordination.
	minRequestGap = 500 * time.Millisecond

	// devicePageSize is the bulk device list page size.
	devicePageSize = 100

	appVersion = "2.8.6"
	phoneBrand = "SM N9005"
	phoneOS    = "Android"
	userType   = "1"
)

// Logger is the optional debug logging hook for request tracing.
type Logger interface {
	Debug(msg string, args ...any)
}

// Client talks to the VeSync cloud API.
//
// Requests are serialised and paced: the remote API is rate limited, so
// the client enforces a minimum gap between calls regardless of which
// goroutine issues them.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Session state (account ID, token) is guarded independently of the
//     request pacing lock.
type Client struct {
	httpClient *http.Client
	baseURL    string
	username   string
	password   string
	debug      bool
	logger     Logger

	// reqMu serialises outbound requests and guards lastRequest.
	reqMu       sync.Mutex
	lastRequest time.Time
	gap         time.Duration

	// sessionMu guards the credentials obtained at login.
	sessionMu sync.RWMutex
	accountID string
	token     string

	// now and sleep are swappable in tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a cloud API client from configuration.
// No network activity occurs until Login is called.
func New(cfg config.VeSyncConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    baseURL,
		username:   cfg.Username,
		password:   cfg.Password,
		debug:      cfg.Debug,
		gap:        minRequestGap,
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

// SetLogger sets the logger used for debug request tracing.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// apiResponse is the envelope every cloud endpoint returns.
type apiResponse struct {
	Code   int64           `json:"code"`
	Msg    string          `json:"msg"`
	Result json.RawMessage `json:"result"`
}

// Login authenticates with the cloud and stores the session token.
//
// The password is MD5-hashed before transmission (a protocol
// requirement, not a storage choice). An explicit rejection — HTTP
// success with a non-zero result code — is returned as *APIError so
// callers can distinguish it from transport failures.
//
// Parameters:
//   - ctx: Cancels the HTTP exchange
//
// Returns:
//   - error: nil on success; *APIError on rejection; transport error otherwise
func (c *Client) Login(ctx context.Context) error {
	body := map[string]any{
		"email":      c.username,
		"password":   hashPassword(c.password),
		"devToken":   "",
		"userType":   userType,
		"method":     "login",
		"appVersion": appVersion,
		"phoneBrand": phoneBrand,
		"phoneOS":    phoneOS,
		"traceId":    traceID(c.now()),
	}

	var result struct {
		AccountID string `json:"accountID"`
		Token     string `json:"token"`
	}
	if err := c.post(ctx, loginPath, body, &result); err != nil {
		return err
	}

	c.sessionMu.Lock()
	c.accountID = result.AccountID
	c.token = result.Token
	c.sessionMu.Unlock()

	return nil
}

// Authenticated reports whether a login has populated the session token.
func (c *Client) Authenticated() bool {
	c.sessionMu.RLock()
	defer c.sessionMu.RUnlock()
	return c.token != ""
}

// InvalidateSession drops the stored token, forcing the next data call
// to fail fast with ErrNotAuthenticated until a fresh Login succeeds.
func (c *Client) InvalidateSession() {
	c.sessionMu.Lock()
	c.accountID = ""
	c.token = ""
	c.sessionMu.Unlock()
}

// Update fetches the full device list in one bulk call and partitions
// it into a Snapshot by device class.
//
// Requires a prior successful Login.
func (c *Client) Update(ctx context.Context) (*Snapshot, error) {
	body, err := c.authedBody("devices")
	if err != nil {
		return nil, err
	}
	body["pageNo"] = 1
	body["pageSize"] = devicePageSize

	var result struct {
		Total int       `json:"total"`
		List  []*Device `json:"list"`
	}
	if err := c.post(ctx, devicesPath, body, &result); err != nil {
		return nil, err
	}

	return newSnapshot(result.List), nil
}

// Detail is the refreshed live state of one device.
type Detail struct {
	DeviceStatus     string `json:"deviceStatus"`
	ConnectionStatus string `json:"connectionStatus"`
	Mode             string `json:"mode"`
	Speed            int    `json:"speed"`
	Brightness       int    `json:"brightness"`
}

// DeviceDetail fetches the current state of a single device.
//
// Used by per-device sync when a handler needs fresher state than the
// last bulk snapshot provides.
func (c *Client) DeviceDetail(ctx context.Context, d *Device) (*Detail, error) {
	body, err := c.authedBody("deviceDetail")
	if err != nil {
		return nil, err
	}
	body["uuid"] = d.UUID
	body["mobileId"] = traceID(c.now())

	var detail Detail
	if err := c.post(ctx, detailPath, body, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// SetSwitch turns a device on or off.
func (c *Client) SetSwitch(ctx context.Context, d *Device, on bool) error {
	return c.bypass(ctx, d, "setSwitch", map[string]any{
		"enabled": on,
		"id":      0,
	})
}

// SetLevel sets a device's numeric level: fan speed step for purifiers,
// brightness percent for bulbs. Semantics of the value belong to the
// device class; the cloud call shape is shared.
func (c *Client) SetLevel(ctx context.Context, d *Device, level int) error {
	return c.bypass(ctx, d, "setLevel", map[string]any{
		"level": level,
		"type":  "wind",
		"id":    0,
	})
}

// SetMode sets a device's operating mode (e.g. "auto", "manual", "sleep").
func (c *Client) SetMode(ctx context.Context, d *Device, mode string) error {
	return c.bypass(ctx, d, "setPurifierMode", map[string]any{
		"mode": mode,
	})
}

// bypass issues a device command through the bypass endpoint, the
// cloud's generic command tunnel to a device.
func (c *Client) bypass(ctx context.Context, d *Device, method string, data map[string]any) error {
	body, err := c.authedBody("bypassV2")
	if err != nil {
		return err
	}
	body["cid"] = d.CID
	body["configModule"] = d.ConfigModule
	body["payload"] = map[string]any{
		"method": method,
		"source": "APP",
		"data":   data,
	}
	if d.IsSubDevice {
		body["subDeviceNo"] = d.SubDeviceNo
	}

	return c.post(ctx, bypassPath, body, nil)
}

// authedBody builds the common request body fields for authenticated
// endpoints. Fails fast if no login has succeeded yet.
func (c *Client) authedBody(method string) (map[string]any, error) {
	c.sessionMu.RLock()
	accountID, token := c.accountID, c.token
	c.sessionMu.RUnlock()

	if token == "" {
		return nil, ErrNotAuthenticated
	}

	return map[string]any{
		"method":     method,
		"accountID":  accountID,
		"token":      token,
		"appVersion": appVersion,
		"phoneBrand": phoneBrand,
		"phoneOS":    phoneOS,
		"traceId":    traceID(c.now()),
	}, nil
}

// post issues one paced JSON POST and decodes the response envelope.
// A non-zero envelope code becomes *APIError; result (when non-nil)
// receives the envelope's result payload.
func (c *Client) post(ctx context.Context, path string, body map[string]any, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("vesync: encode request: %w", err)
	}

	if err := c.pace(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("vesync: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.debug && c.logger != nil {
		c.logger.Debug("api request", "path", path)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vesync: %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("vesync: %s: read response: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vesync: %s: unexpected status %d", path, resp.StatusCode)
	}

	var envelope apiResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("vesync: %s: decode response: %w", path, err)
	}
	if envelope.Code != 0 {
		return &APIError{Code: envelope.Code, Msg: envelope.Msg}
	}

	if result != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("vesync: %s: decode result: %w", path, err)
		}
	}

	return nil
}

// pace enforces the minimum gap between consecutive requests.
func (c *Client) pace(ctx context.Context) error {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	if !c.lastRequest.IsZero() {
		if wait := c.gap - c.now().Sub(c.lastRequest); wait > 0 {
			if err := c.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
	c.lastRequest = c.now()
	return nil
}

// hashPassword returns the hex MD5 digest the login endpoint expects.
func hashPassword(password string) string {
	sum := md5.Sum([]byte(password)) // #nosec G401 -- protocol requirement
	return hex.EncodeToString(sum[:])
}

// traceID returns the per-request trace identifier (epoch seconds).
func traceID(t time.Time) string {
	return fmt.Sprintf("%d", t.Unix())
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
