package bedrock

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Operation is a canonical gateway operation.
type Operation string

// Canonical operations.
const (
	OpChatComplete        Operation = "chatComplete"
	OpComplete            Operation = "complete"
	OpEmbed               Operation = "embed"
	OpGenerateImage       Operation = "imageGenerate"
	OpCreateBatch         Operation = "createBatch"
	OpRetrieveBatch       Operation = "retrieveBatch"
	OpListBatches         Operation = "listBatches"
	OpCancelBatch         Operation = "cancelBatch"
	OpGetBatchOutput      Operation = "getBatchOutput"
	OpCreateFineTune      Operation = "createFinetune"
	OpRetrieveFineTune    Operation = "retrieveFinetune"
	OpListFineTunes       Operation = "listFinetunes"
	OpCancelFineTune      Operation = "cancelFinetune"
	OpUploadFile          Operation = "uploadFile"
	OpRetrieveFile        Operation = "retrieveFile"
	OpRetrieveFileContent Operation = "retrieveFileContent"
	OpListFiles           Operation = "listFiles"
	OpDeleteFile          Operation = "deleteFile"
)

// Services the router dispatches to, matching the signer's service names.
const (
	serviceBedrock        = "bedrock"
	serviceBedrockRuntime = "bedrock-runtime"
	serviceS3             = "s3"
)

// descriptor is one row of the operation table: how to reach the upstream
// endpoint for an operation. The arg parameter is operation-specific: the
// model id for inference, the job ARN for job retrieval, the object key for
// file operations.
type descriptor struct {
	method  string
	service string
	path    func(t *Target, arg string, stream bool) string
}

// operations is the immutable operation table, constructed once at startup.
// Operations absent from the table are unsupported for Bedrock and fail
// before any upstream call.
var operations = map[Operation]descriptor{
	OpChatComplete: {http.MethodPost, serviceBedrockRuntime, inferencePath},
	OpComplete:     {http.MethodPost, serviceBedrockRuntime, inferencePath},
	OpEmbed: {http.MethodPost, serviceBedrockRuntime, func(_ *Target, model string, _ bool) string {
		return "/model/" + pathSegment(model) + "/invoke"
	}},
	OpGenerateImage: {http.MethodPost, serviceBedrockRuntime, func(_ *Target, model string, _ bool) string {
		return "/model/" + pathSegment(model) + "/invoke"
	}},

	OpCreateBatch: {http.MethodPost, serviceBedrock, staticPath("/model-invocation-job")},
	OpRetrieveBatch: {http.MethodGet, serviceBedrock, func(_ *Target, id string, _ bool) string {
		return "/model-invocation-job/" + pathSegment(id)
	}},
	OpCancelBatch: {http.MethodPost, serviceBedrock, func(_ *Target, id string, _ bool) string {
		return "/model-invocation-job/" + pathSegment(id) + "/stop"
	}},
	OpListBatches: {http.MethodGet, serviceBedrock, staticPath("/model-invocation-jobs")},

	OpCreateFineTune: {http.MethodPost, serviceBedrock, staticPath("/model-customization-job")},
	OpRetrieveFineTune: {http.MethodGet, serviceBedrock, func(_ *Target, id string, _ bool) string {
		return "/model-customization-job/" + pathSegment(id)
	}},
	OpCancelFineTune: {http.MethodPost, serviceBedrock, func(_ *Target, id string, _ bool) string {
		return "/model-customization-job/" + pathSegment(id) + "/stop"
	}},
	OpListFineTunes: {http.MethodGet, serviceBedrock, staticPath("/model-customization-jobs")},

	OpUploadFile: {http.MethodPost, serviceS3, objectPath},
	OpRetrieveFileContent: {http.MethodGet, serviceS3, objectPath},
	OpRetrieveFile: {http.MethodGet, serviceS3, func(t *Target, key string, _ bool) string {
		return objectPath(t, key, false) + "?attributes"
	}},
	OpGetBatchOutput: {http.MethodGet, serviceS3, objectPath},
}

func staticPath(p string) func(*Target, string, bool) string {
	return func(*Target, string, bool) string { return p }
}

// pathSegment percent-encodes one path segment. url.PathEscape leaves ":"
// alone, but Bedrock expects model ids and job ARNs fully encoded
// ("...-v1%3A0").
func pathSegment(s string) string {
	return strings.ReplaceAll(url.PathEscape(s), ":", "%3A")
}

// inferencePath selects converse vs invoke and the streaming variants.
func inferencePath(_ *Target, model string, stream bool) string {
	encoded := pathSegment(model)
	if converseEligible(model) {
		if stream {
			return "/model/" + encoded + "/converse-stream"
		}
		return "/model/" + encoded + "/converse"
	}
	if stream {
		return "/model/" + encoded + "/invoke-with-response-stream"
	}
	return "/model/" + encoded + "/invoke"
}

func objectPath(_ *Target, key string, _ bool) string {
	return "/" + strings.TrimPrefix(key, "/")
}

// endpoint resolves the full upstream URL for an operation. The S3 service
// uses virtual-host style addressing on the target bucket.
func endpoint(op Operation, t *Target, arg string, stream bool) (method, service, rawURL string, err error) {
	d, ok := operations[op]
	if !ok {
		return "", "", "", newUnsupportedOperation(op)
	}
	var host string
	switch d.service {
	case serviceS3:
		if t.S3Bucket == "" {
			return "", "", "", newValidationError(fmt.Sprintf("missing %s%s header", HeaderPrefix, headerS3Bucket))
		}
		host = fmt.Sprintf("%s.s3.%s.amazonaws.com", t.S3Bucket, t.Region)
	default:
		host = fmt.Sprintf("%s.%s.amazonaws.com", d.service, t.Region)
	}
	return d.method, d.service, "https://" + host + d.path(t, arg, stream), nil
}

// Model family detection. Bedrock model ids are vendor-prefixed
// ("anthropic.claude-3-...", "cohere.command-r-v1:0", ...); ARNs embed the
// same ids after the last slash.
func modelFamily(model string) string {
	if i := strings.LastIndexByte(model, '/'); i >= 0 {
		model = model[i+1:]
	}
	vendor, _, ok := strings.Cut(model, ".")
	if !ok {
		return ""
	}
	return vendor
}

// converseEligible reports whether chat requests for the model go through
// the Converse API. Text-era models remain invoke-only with family-specific
// prompt assembly.
func converseEligible(model string) bool {
	switch modelFamily(model) {
	case "anthropic":
		return true
	case "cohere":
		// command-r generation only; command-text-v14 and
		// command-light-text-v14 are invoke-only.
		return strings.Contains(model, "command-r")
	case "mistral":
		return strings.Contains(model, "large")
	case "amazon":
		return strings.Contains(model, "nova")
	default:
		return false
	}
}
