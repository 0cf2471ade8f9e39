package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/dmitrijs2005/authhub/internal/common"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(kind common.Kind) int {
	switch kind {
	case common.KindValidation:
		return http.StatusBadRequest
	case common.KindInvalidCredentials, common.KindMalformedToken, common.KindInvalidSignature,
		common.KindTokenExpired, common.KindInvalidRefreshToken, common.KindTokenRevoked,
		common.KindUnauthenticated:
		return http.StatusUnauthorized
	case common.KindForbidden:
		return http.StatusForbidden
	case common.KindNotFound, common.KindEndpointPermissionNotFound, common.KindPermissionNotFound:
		return http.StatusNotFound
	case common.KindDuplicateEndpointPermission:
		return http.StatusConflict
	case common.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var messages = map[common.Kind]string{
	common.KindInternal:                    "internal error",
	common.KindValidation:                  "invalid request",
	common.KindNotFound:                    "not found",
	common.KindInvalidCredentials:          "invalid credentials",
	common.KindMalformedToken:              "malformed token",
	common.KindInvalidSignature:            "invalid token signature",
	common.KindTokenExpired:                "token expired",
	common.KindInvalidRefreshToken:         "invalid refresh token",
	common.KindTokenRevoked:                "token revoked",
	common.KindUnauthenticated:             "authentication required",
	common.KindForbidden:                   "forbidden",
	common.KindDuplicateEndpointPermission: "endpoint permission already exists",
	common.KindEndpointPermissionNotFound:  "endpoint permission not found",
	common.KindPermissionNotFound:          "permission not found",
	common.KindStoreUnavailable:            "backing store unavailable",
}

// message never exposes driver errors; validation failures carry their
// cause, and not-found kinds name the missing key.
func message(err error) string {
	var e *common.Error
	if !errors.As(err, &e) {
		return messages[common.KindInternal]
	}
	msg := messages[e.Kind]
	switch e.Kind {
	case common.KindValidation:
		if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
	case common.KindPermissionNotFound, common.KindEndpointPermissionNotFound, common.KindDuplicateEndpointPermission:
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg += " " + k + "=" + e.Fields[k]
		}
	}
	return msg
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := common.KindOf(err)
	writeJSON(w, StatusOf(kind), ErrorResponse{Error: kind.String(), Message: message(err)})
}
