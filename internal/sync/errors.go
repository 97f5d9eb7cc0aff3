package sync

import "errors"

// SyncError codes for identity/storage gateway failures. Codes are stable
// identifiers; the message table maps them to what the user actually sees.
const (
	CodeInvalidCredentials = "auth/invalid-credentials"
	CodeEmailInUse         = "auth/email-in-use"
	CodeUserNotFound       = "auth/user-not-found"
	CodePopupClosed        = "auth/popup-closed-by-user"
	CodePopupBlocked       = "auth/popup-blocked"
	CodeSessionExpired     = "auth/session-expired"
	CodeNetworkFailure     = "net/request-failed"
	CodePermissionDenied   = "store/permission-denied"
	CodeUnavailable        = "store/unavailable"
)

var messages = map[string]string{
	CodeInvalidCredentials: "Incorrect email or password.",
	CodeEmailInUse:         "An account with this email already exists.",
	CodeUserNotFound:       "No account found for this email.",
	CodePopupBlocked:       "Sign-in popup was blocked. Allow popups and try again.",
	CodeSessionExpired:     "Your session has expired. Please sign in again.",
	CodeNetworkFailure:     "Connection problem. Check your network and try again.",
	CodePermissionDenied:   "You don't have access to this data.",
	CodeUnavailable:        "The service is temporarily unavailable. Try again shortly.",
}

// Codes deliberately suppressed: the failure is user-initiated and
// showing an error would only be noise.
var suppressed = map[string]struct{}{
	CodePopupClosed: {},
}

// SyncError is a recoverable identity/storage failure. Every instance
// maps to a fixed user-facing message via its code.
type SyncError struct {
	Code string
	Err  error
}

func NewSyncError(code string, err error) *SyncError {
	return &SyncError{Code: code, Err: err}
}

func (e *SyncError) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Err.Error()
	}
	return e.Code
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// Message returns the user-facing text for the code, or a generic retry
// message for unknown codes. Suppressed codes return the empty string.
func (e *SyncError) Message() string {
	if _, ok := suppressed[e.Code]; ok {
		return ""
	}
	if msg, ok := messages[e.Code]; ok {
		return msg
	}
	return "Something went wrong. Please try again."
}

// Suppressed reports whether this failure should not be surfaced at all.
func (e *SyncError) Suppressed() bool {
	_, ok := suppressed[e.Code]
	return ok
}

// AsSyncError unwraps err into a SyncError if it is one.
func AsSyncError(err error) (*SyncError, bool) {
	var se *SyncError
	ok := errors.As(err, &se)
	return se, ok
}
