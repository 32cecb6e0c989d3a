package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func testServer() http.Handler {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil))).Handler()
}

func doRequest(t *testing.T, method, path string, body io.Reader, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	for name, v := range header {
		req.Header.Set(name, v)
	}
	rec := httptest.NewRecorder()
	testServer().ServeHTTP(rec, req)
	return rec
}

var baseHeaders = map[string]string{
	"x-bgw-aws-region":            "us-east-1",
	"x-bgw-aws-access-key-id":     "AKIA",
	"x-bgw-aws-secret-access-key": "secret",
}

func TestListFilesUnsupported(t *testing.T) {
	rec := doRequest(t, http.MethodGet, "/v1/files", nil, baseHeaders)

	require.Equal(t, http.StatusNotFound, rec.Code)
	got := gjson.Parse(rec.Body.String())
	require.Equal(t, "listFiles is not supported by Bedrock", got.Get("error.message").String())
	require.Equal(t, int64(http.StatusNotFound), got.Get("error.code").Int())
	require.Equal(t, "bedrock", got.Get("provider").String())
}

func TestStrictComplianceSuppressesProvider(t *testing.T) {
	headers := map[string]string{"x-bgw-strict-openai-compliance": "true"}
	for k, v := range baseHeaders {
		headers[k] = v
	}
	rec := doRequest(t, http.MethodGet, "/v1/files", nil, headers)

	require.Equal(t, http.StatusNotFound, rec.Code)
	got := gjson.Parse(rec.Body.String())
	require.Equal(t, "listFiles is not supported by Bedrock", got.Get("error.message").String())
	require.False(t, got.Get("provider").Exists())

	// The flag applies even when target parsing itself fails.
	rec = doRequest(t, http.MethodPost, "/v1/chat/completions",
		strings.NewReader(`{}`), map[string]string{"x-bgw-strict-openai-compliance": "true"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, gjson.Parse(rec.Body.String()).Get("provider").Exists())
}

func TestDeleteFileUnsupported(t *testing.T) {
	rec := doRequest(t, http.MethodDelete, "/v1/files/some-id", nil, baseHeaders)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMissingRegionRejected(t *testing.T) {
	rec := doRequest(t, http.MethodPost, "/v1/chat/completions",
		strings.NewReader(`{"model":"m","messages":[]}`), nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	got := gjson.Parse(rec.Body.String())
	require.Contains(t, got.Get("error.message").String(), "x-bgw-aws-region")
	require.Equal(t, "invalid_request_error", got.Get("error.type").String())
}

func TestMalformedJSONRejected(t *testing.T) {
	rec := doRequest(t, http.MethodPost, "/v1/embeddings",
		strings.NewReader(`{not json`), baseHeaders)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_request_error",
		gjson.Parse(rec.Body.String()).Get("error.type").String())
}

func TestChatCompletionsValidationError(t *testing.T) {
	rec := doRequest(t, http.MethodPost, "/v1/chat/completions",
		strings.NewReader(`{"messages":[{"role":"user","content":"Hi"}]}`), baseHeaders)

	// No model: rejected before any upstream call.
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, gjson.Parse(rec.Body.String()).Get("error.message").String(), "model")
}

func TestUploadFileWithoutFilePart(t *testing.T) {
	body := strings.NewReader(
		"--boundary\r\n" +
			`Content-Disposition: form-data; name="purpose"` + "\r\n\r\n" +
			"batch\r\n" +
			"--boundary--\r\n")
	headers := map[string]string{"Content-Type": "multipart/form-data; boundary=boundary"}
	for k, v := range baseHeaders {
		headers[k] = v
	}
	rec := doRequest(t, http.MethodPost, "/v1/files", body, headers)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "multipart body has no file part",
		gjson.Parse(rec.Body.String()).Get("error.message").String())
}

func TestUploadFileNonMultipartRejected(t *testing.T) {
	rec := doRequest(t, http.MethodPost, "/v1/files",
		strings.NewReader(`{}`), baseHeaders)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownRouteIs404(t *testing.T) {
	rec := doRequest(t, http.MethodGet, "/v1/models", nil, baseHeaders)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
