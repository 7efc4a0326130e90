package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/subberhq/subber/internal/domain"
	"github.com/subberhq/subber/internal/middleware"
)

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
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
	case domain.EINTERNAL:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// errorBody is the JSON error envelope returned by the API.
type errorBody struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields,omitempty"`
	} `json:"error"`
}

// ErrorResponse writes an error to the response, negotiating JSON or plain
// text based on the request. Internal error details are never exposed.
func ErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	message := domain.ErrorMessage(err)
	status := ErrorCodeToHTTPStatus(code)

	logger := middleware.GetLogger(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			"status", status,
			"code", code,
			"op", domain.ErrorOp(err),
			"error", err,
		)
	} else {
		logger.Info("request rejected",
			"status", status,
			"code", code,
			"op", domain.ErrorOp(err),
		)
	}

	if !acceptsJSON(r) {
		http.Error(w, message, status)
		return
	}

	var body errorBody
	body.Error.Code = code
	body.Error.Message = message

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// ValidationErrorResponse writes a field-level validation error as JSON.
// Falls back to ErrorResponse if err is not a ValidationError.
func ValidationErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	fields := domain.GetValidationFields(err)
	if fields == nil {
		ErrorResponse(w, r, err)
		return
	}

	if !acceptsJSON(r) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var body errorBody
	body.Error.Code = domain.EINVALID
	body.Error.Message = "validation failed"
	body.Error.Fields = fields

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(body)
}

// NotFoundResponse writes a generic 404 response.
func NotFoundResponse(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, r, domain.NotFound("http.request", "resource", r.URL.Path))
}

// UnauthorizedResponse writes a generic 401 response.
func UnauthorizedResponse(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, r, domain.Unauthorized("http.request", "authentication required"))
}

// ForbiddenResponse writes a generic 403 response.
func ForbiddenResponse(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, r, domain.Forbidden("http.request", "not authorized"))
}

// InternalErrorResponse writes a generic 500 response, wrapping err for logging.
func InternalErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	ErrorResponse(w, r, domain.Internal(err, "http.request", "unexpected error"))
}

// acceptsJSON reports whether the client expects a JSON response.
func acceptsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasSuffix(r.URL.Path, ".json")
}
