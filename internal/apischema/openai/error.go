package openai

// Error types used in the canonical error envelope.
const (
	ErrorTypeInvalidRequest          = "invalid_request_error"
	ErrorTypeAuthentication          = "authentication_error"
	ErrorTypeNotFound                = "not_found_error"
	ErrorTypeRateLimit               = "rate_limit_error"
	ErrorTypeAPI                     = "api_error"
	ErrorTypeInvalidProviderResponse = "invalid_provider_response"
)

// ErrorResponse is the canonical error envelope. Provider tags the upstream
// that produced the fault and is suppressed under strict OpenAI compliance.
type ErrorResponse struct {
	Error    ErrorDetail `json:"error"`
	Provider string      `json:"provider,omitempty"`
}

// ErrorDetail is the inner error object.
type ErrorDetail struct {
	Message string  `json:"message"`
	Type    *string `json:"type"`
	Param   *string `json:"param"`
	Code    any     `json:"code"`
}
