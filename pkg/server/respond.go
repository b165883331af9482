package server

import (
	"encoding/json"
	"net/http"

	"github.com/matzehuels/kitbash/pkg/errors"
)

type errorJSON struct {
	Error string      `json:"error"`
	Code  errors.Code `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "code", code, "err", err)
	}
	writeJSON(w, status, errorJSON{Error: errors.UserMessage(err), Code: code})
}

// statusFor maps error codes to HTTP statuses.
func statusFor(code errors.Code) int {
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidLayer, errors.ErrCodeInvalidTransform,
		errors.ErrCodeInvalidExportScale, errors.ErrCodeInvalidCanvas, errors.ErrCodeInvalidPath,
		errors.ErrCodeInvalidProject:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound, errors.ErrCodeLayerNotFound:
		return http.StatusNotFound
	case errors.ErrCodeImportDecode:
		return http.StatusUnsupportedMediaType
	case errors.ErrCodeExportAllocation:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeUnsupported:
		return http.StatusNotImplemented
	case errors.ErrCodeCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
