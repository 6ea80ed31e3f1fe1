package vesync

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for cloud API operations.
var (
	// ErrNotAuthenticated indicates a data call was made before a
	// successful login populated the account token.
	ErrNotAuthenticated = errors.New("vesync: not authenticated")

	// ErrDeviceOffline indicates the cloud reports the device as
	// unreachable; commands cannot be delivered.
	ErrDeviceOffline = errors.New("vesync: device offline")
)

// API result codes the bridge treats specially.
const (
	// codeTokenExpired is returned when the session token is no longer
	// accepted and a fresh login is required.
	codeTokenExpired = -11001
)

// APIError is an explicit failure result from the cloud API: the HTTP
// exchange succeeded but the response carried a non-zero code.
type APIError struct {
	Code int64
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vesync: api error code=%d msg=%q", e.Code, e.Msg)
}

// IsSessionExpired reports whether err indicates the session token is
// stale rather than a genuine failure. Matches the token-expired result
// code and the literal "not logged in" message some endpoints return.
//
// Callers treat this as low-severity: clamp backoff short and re-login.
func IsSessionExpired(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == codeTokenExpired {
			return true
		}
		if containsNotLoggedIn(apiErr.Msg) {
			return true
		}
	}

	return containsNotLoggedIn(err.Error())
}

func containsNotLoggedIn(s string) bool {
	return strings.Contains(strings.ToLower(s), "not logged in")
}
