package bedrock

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yduwcui/bedrock-gateway/internal/apischema/openai"
)

func upstreamResponse(status int, contentType, body string, header http.Header) *http.Response {
	h := http.Header{}
	for k, v := range header {
		h[k] = v
	}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return &http.Response{
		StatusCode: status,
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestMapUpstreamError_BedrockException(t *testing.T) {
	resp := upstreamResponse(http.StatusBadRequest, "application/json",
		`{"message":"The provided model identifier is invalid."}`,
		http.Header{"X-Amzn-Errortype": []string{"ValidationException:http://internal"}})

	gerr := mapUpstreamError(resp)
	require.Equal(t, http.StatusBadRequest, gerr.StatusCode)
	require.Equal(t, "The provided model identifier is invalid.", gerr.Response.Error.Message)
	require.NotNil(t, gerr.Response.Error.Type)
	require.Equal(t, "ValidationException", *gerr.Response.Error.Type)
	require.Equal(t, ProviderName, gerr.Response.Provider)
}

func TestMapUpstreamError_S3XML(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`
	resp := upstreamResponse(http.StatusNotFound, "application/xml", body, nil)

	gerr := mapUpstreamError(resp)
	require.Equal(t, http.StatusNotFound, gerr.StatusCode)
	require.Equal(t, "The specified key does not exist.", gerr.Response.Error.Message)
	require.Equal(t, "NoSuchKey", gerr.Response.Error.Code)
}

func TestMapUpstreamError_XMLWithoutContentType(t *testing.T) {
	body := `<Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`
	resp := upstreamResponse(http.StatusForbidden, "", body, nil)

	gerr := mapUpstreamError(resp)
	require.Equal(t, "Access Denied", gerr.Response.Error.Message)
	require.NotNil(t, gerr.Response.Error.Type)
	require.Equal(t, openai.ErrorTypeAuthentication, *gerr.Response.Error.Type)
}

func TestMapUpstreamError_ForbiddenIsAuthentication(t *testing.T) {
	resp := upstreamResponse(http.StatusForbidden, "application/json",
		`{"message":"The security token included in the request is invalid."}`, nil)

	gerr := mapUpstreamError(resp)
	require.Equal(t, http.StatusForbidden, gerr.StatusCode)
	require.NotNil(t, gerr.Response.Error.Type)
	require.Equal(t, openai.ErrorTypeAuthentication, *gerr.Response.Error.Type)
}

func TestMapUpstreamError_FallbackStringifiesBody(t *testing.T) {
	resp := upstreamResponse(http.StatusServiceUnavailable, "text/plain", "upstream melted", nil)

	gerr := mapUpstreamError(resp)
	require.Equal(t, http.StatusServiceUnavailable, gerr.StatusCode)
	require.Equal(t, "upstream melted", gerr.Response.Error.Message)
	require.Equal(t, http.StatusServiceUnavailable, gerr.Response.Error.Code)
}

func TestMapUpstreamError_MalformedJSONFallsThrough(t *testing.T) {
	resp := upstreamResponse(http.StatusInternalServerError, "application/json", "not json at all", nil)

	gerr := mapUpstreamError(resp)
	require.Equal(t, "not json at all", gerr.Response.Error.Message)
}

func TestNewUnsupportedOperation(t *testing.T) {
	gerr := newUnsupportedOperation(OpListFiles)
	require.Equal(t, http.StatusNotFound, gerr.StatusCode)
	require.Equal(t, "listFiles is not supported by Bedrock", gerr.Response.Error.Message)
	require.Equal(t, http.StatusNotFound, gerr.Response.Error.Code)
	require.Equal(t, ProviderName, gerr.Response.Provider)
}
