package rpc

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"solation/native/bank"
	"solation/native/oracle"
	"solation/native/protocol"
	"solation/native/rfq"
)

type errorBody struct {
	Code    string `json:"code"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]errorBody{"error": {Code: code, Message: message}})
}

// statusForKind maps an engine rejection kind to an HTTP status.
func statusForKind(kind rfq.Kind, code string) int {
	switch kind {
	case rfq.KindAuthorization:
		return http.StatusForbidden
	case rfq.KindValidation:
		return http.StatusBadRequest
	case rfq.KindAuthenticity:
		return http.StatusUnprocessableEntity
	case rfq.KindStaleness:
		return http.StatusServiceUnavailable
	case rfq.KindState:
		if strings.HasSuffix(code, "NotFound") {
			return http.StatusNotFound
		}
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var typed *rfq.Error
	if errors.As(err, &typed) {
		status := statusForKind(typed.Kind, typed.Code)
		writeJSON(w, status, map[string]errorBody{"error": {
			Code:    typed.Code,
			Kind:    typed.Kind.String(),
			Message: err.Error(),
		}})
		return
	}
	status, code := http.StatusInternalServerError, "Internal"
	switch {
	case errors.Is(err, bank.ErrInsufficientBalance):
		status, code = http.StatusConflict, "InsufficientBalance"
	case errors.Is(err, bank.ErrUnauthorized),
		errors.Is(err, protocol.ErrUnauthorized),
		errors.Is(err, oracle.ErrUnauthorizedPublisher):
		status, code = http.StatusForbidden, "Unauthorized"
	case errors.Is(err, protocol.ErrAssetNotFound),
		errors.Is(err, oracle.ErrFeedNotFound):
		status, code = http.StatusNotFound, "NotFound"
	case errors.Is(err, protocol.ErrNotInitialized):
		status, code = http.StatusServiceUnavailable, "NotInitialized"
	case errors.Is(err, protocol.ErrInvalidFee),
		errors.Is(err, protocol.ErrInvalidAsset),
		errors.Is(err, protocol.ErrInvalidStrikeRange),
		errors.Is(err, protocol.ErrInvalidExpiryRange),
		errors.Is(err, oracle.ErrOutdatedUpdate):
		status, code = http.StatusBadRequest, "InvalidRequest"
	case errors.Is(err, protocol.ErrAssetExists):
		status, code = http.StatusConflict, "AssetExists"
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "method", r.Method, "error", err)
		writeJSONError(w, status, code, "internal error")
		return
	}
	writeJSONError(w, status, code, err.Error())
}
