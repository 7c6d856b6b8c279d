// Package handler exposes the checkout engine over JSON endpoints.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/hollandm/idunn/internal/domain"
	"github.com/hollandm/idunn/internal/middleware"
)

// ErrorCodeToHTTPStatus maps domain error codes onto HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized
	case domain.EPAYMENT:
		return http.StatusPaymentRequired
	case domain.EFORBIDDEN:
		return http.StatusForbidden
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ECONFLICT:
		return http.StatusConflict
	case domain.ENOTIMPL:
		return http.StatusNotImplemented
	case domain.EUNAVAILABLE:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields,omitempty"`
	} `json:"error"`
}

// RespondJSON writes v as a JSON response.
func RespondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// ErrorResponse writes err as a JSON error envelope. Field-level validation
// failures carry their per-field messages; internal errors show a generic
// message and are logged with the underlying cause.
func ErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var body errorBody

	if fields := domain.GetValidationFields(err); fields != nil {
		body.Error.Code = domain.EINVALID
		body.Error.Message = "Validation failed"
		body.Error.Fields = fields
		RespondJSON(w, http.StatusBadRequest, body)
		return
	}

	code := domain.ErrorCode(err)
	status := ErrorCodeToHTTPStatus(code)
	if status >= 500 {
		middleware.GetLogger(r.Context()).Error("request failed",
			"code", code,
			"op", domain.ErrorOp(err),
			"error", err,
		)
	}

	body.Error.Code = code
	body.Error.Message = domain.ErrorMessage(err)
	RespondJSON(w, status, body)
}
