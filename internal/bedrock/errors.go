package bedrock

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"

	"k8s.io/utils/ptr"

	"github.com/yduwcui/bedrock-gateway/internal/apischema/awsbedrock"
	"github.com/yduwcui/bedrock-gateway/internal/apischema/openai"
)

// GatewayError carries the canonical error envelope plus the HTTP status the
// gateway responds with.
type GatewayError struct {
	StatusCode int
	Response   openai.ErrorResponse
}

// Error implements error.
func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Response.Error.Message, e.StatusCode)
}

func newValidationError(msg string) *GatewayError {
	return &GatewayError{
		StatusCode: http.StatusBadRequest,
		Response: openai.ErrorResponse{
			Error:    openai.ErrorDetail{Message: msg, Type: ptr.To(openai.ErrorTypeInvalidRequest)},
			Provider: ProviderName,
		},
	}
}

func newUnsupportedOperation(op Operation) *GatewayError {
	return &GatewayError{
		StatusCode: http.StatusNotFound,
		Response: openai.ErrorResponse{
			Error:    openai.ErrorDetail{Message: fmt.Sprintf("%s is not supported by Bedrock", op), Code: http.StatusNotFound},
			Provider: ProviderName,
		},
	}
}

func newTransformError(msg string) *GatewayError {
	return &GatewayError{
		StatusCode: http.StatusBadGateway,
		Response: openai.ErrorResponse{
			Error:    openai.ErrorDetail{Message: msg, Type: ptr.To(openai.ErrorTypeInvalidProviderResponse)},
			Provider: ProviderName,
		},
	}
}

// mapUpstreamError normalizes a non-2xx provider response to the canonical
// envelope. The body is consumed; the caller closes it.
func mapUpstreamError(resp *http.Response) *GatewayError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	status := resp.StatusCode
	contentType := resp.Header.Get("Content-Type")

	out := &GatewayError{
		StatusCode: status,
		Response:   openai.ErrorResponse{Provider: ProviderName},
	}

	switch {
	case strings.Contains(contentType, "json"):
		var exc awsbedrock.BedrockException
		if err := json.Unmarshal(body, &exc); err == nil && exc.Message != "" {
			out.Response.Error.Message = exc.Message
			if t := resp.Header.Get("X-Amzn-Errortype"); t != "" {
				out.Response.Error.Type = ptr.To(strings.SplitN(t, ":", 2)[0])
			}
			out.Response.Error.Code = status
			break
		}
		fallthrough
	case strings.Contains(contentType, "xml") || (len(body) > 0 && body[0] == '<'):
		var s3err awsbedrock.S3Error
		if err := xml.Unmarshal(body, &s3err); err == nil && s3err.Message != "" {
			out.Response.Error.Message = s3err.Message
			out.Response.Error.Code = s3err.Code
			break
		}
		fallthrough
	default:
		out.Response.Error.Message = string(body)
		out.Response.Error.Code = status
	}

	if status == http.StatusForbidden || status == http.StatusUnauthorized {
		out.Response.Error.Type = ptr.To(openai.ErrorTypeAuthentication)
	}
	return out
}
