package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"studyspend/internal/core"
	syncerr "studyspend/internal/sync"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Encode response failed", "error", err)
	}
}

// writeError maps domain failures to HTTP. Validation problems are 422
// with the offending fields; gateway failures use their code's status
// and fixed user-facing message. Suppressed failures return 204: the
// user backed out, there is nothing to report.
func writeError(w http.ResponseWriter, err error) {
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: errorDetail{
			Code:    "validation",
			Message: "Some fields are invalid.",
			Fields:  ve.Fields,
		}})
		return
	}

	if se, ok := syncerr.AsSyncError(err); ok {
		if se.Suppressed() {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, statusForCode(se.Code), errorBody{Error: errorDetail{
			Code:    se.Code,
			Message: se.Message(),
		}})
		return
	}

	slog.Error("Unhandled request error", "error", err)
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{
		Code:    "internal",
		Message: "Something went wrong. Please try again.",
	}})
}

func statusForCode(code string) int {
	switch code {
	case syncerr.CodeInvalidCredentials, syncerr.CodeSessionExpired:
		return http.StatusUnauthorized
	case syncerr.CodeEmailInUse:
		return http.StatusConflict
	case syncerr.CodeUserNotFound:
		return http.StatusNotFound
	case syncerr.CodePermissionDenied:
		return http.StatusForbidden
	case syncerr.CodePopupBlocked:
		return http.StatusBadRequest
	case syncerr.CodeNetworkFailure:
		return http.StatusBadGateway
	case syncerr.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{
			Code:    "bad_request",
			Message: "Request body is not valid JSON.",
		}})
		return false
	}
	return true
}
