// Package dto provides Data Transfer Objects for API requests and responses.
package dto

// DataResponse wraps every successful JSON payload.
type DataResponse struct {
	Data any `json:"data"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes one failed request. Details carries per-field
// validation messages.
type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Error codes.
const (
	CodeValidation      = "validation_error"
	CodeInvalidJSON     = "invalid_json"
	CodeUnauthorized    = "unauthorized"
	CodeForbidden       = "forbidden"
	CodeUpgradeRequired = "upgrade_required"
	CodeNotFound        = "not_found"
	CodeMethodNotAllow  = "method_not_allowed"
	CodePayloadTooLarge = "payload_too_large"
	CodeRateLimited     = "rate_limited"
	CodeInternal        = "internal_error"
	CodeUnavailable     = "service_unavailable"
)

// ShareRequest is the body of POST /analytics/share.
type ShareRequest struct {
	PageID  string `json:"page_id"`
	Enabled *bool  `json:"enabled"`
}
