package bedrock

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func testTarget() *Target {
	return &Target{Region: "us-east-1", S3Bucket: "demo-bucket"}
}

func TestEndpoint_Inference(t *testing.T) {
	tests := []struct {
		name   string
		op     Operation
		model  string
		stream bool
		url    string
	}{
		{
			name:  "converse",
			op:    OpChatComplete,
			model: "anthropic.claude-3-sonnet-20240229-v1:0",
			url:   "https://bedrock-runtime.us-east-1.amazonaws.com/model/anthropic.claude-3-sonnet-20240229-v1%3A0/converse",
		},
		{
			name:   "converse stream",
			op:     OpChatComplete,
			model:  "anthropic.claude-3-sonnet-20240229-v1:0",
			stream: true,
			url:    "https://bedrock-runtime.us-east-1.amazonaws.com/model/anthropic.claude-3-sonnet-20240229-v1%3A0/converse-stream",
		},
		{
			name:  "invoke-only chat",
			op:    OpChatComplete,
			model: "meta.llama3-8b-instruct-v1:0",
			url:   "https://bedrock-runtime.us-east-1.amazonaws.com/model/meta.llama3-8b-instruct-v1%3A0/invoke",
		},
		{
			name:   "invoke-only stream",
			op:     OpChatComplete,
			model:  "meta.llama3-8b-instruct-v1:0",
			stream: true,
			url:    "https://bedrock-runtime.us-east-1.amazonaws.com/model/meta.llama3-8b-instruct-v1%3A0/invoke-with-response-stream",
		},
		{
			name:  "embeddings always invoke",
			op:    OpEmbed,
			model: "cohere.embed-english-v3",
			url:   "https://bedrock-runtime.us-east-1.amazonaws.com/model/cohere.embed-english-v3/invoke",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			method, service, rawURL, err := endpoint(tc.op, testTarget(), tc.model, tc.stream)
			require.NoError(t, err)
			require.Equal(t, http.MethodPost, method)
			require.Equal(t, serviceBedrockRuntime, service)
			require.Equal(t, tc.url, rawURL)
		})
	}
}

func TestEndpoint_Jobs(t *testing.T) {
	arn := "arn:aws:bedrock:us-east-1:123456789012:model-invocation-job/abc123"

	method, service, rawURL, err := endpoint(OpRetrieveBatch, testTarget(), arn, false)
	require.NoError(t, err)
	require.Equal(t, http.MethodGet, method)
	require.Equal(t, serviceBedrock, service)
	require.Equal(t,
		"https://bedrock.us-east-1.amazonaws.com/model-invocation-job/arn%3Aaws%3Abedrock%3Aus-east-1%3A123456789012%3Amodel-invocation-job%2Fabc123",
		rawURL)

	method, _, rawURL, err = endpoint(OpCancelBatch, testTarget(), arn, false)
	require.NoError(t, err)
	require.Equal(t, http.MethodPost, method)
	require.Contains(t, rawURL, "/stop")

	_, _, rawURL, err = endpoint(OpListBatches, testTarget(), "", false)
	require.NoError(t, err)
	require.Equal(t, "https://bedrock.us-east-1.amazonaws.com/model-invocation-jobs", rawURL)

	_, _, rawURL, err = endpoint(OpCreateFineTune, testTarget(), "", false)
	require.NoError(t, err)
	require.Equal(t, "https://bedrock.us-east-1.amazonaws.com/model-customization-job", rawURL)
}

func TestEndpoint_S3VirtualHost(t *testing.T) {
	method, service, rawURL, err := endpoint(OpRetrieveFileContent, testTarget(), "batch/input.jsonl", false)
	require.NoError(t, err)
	require.Equal(t, http.MethodGet, method)
	require.Equal(t, serviceS3, service)
	require.Equal(t, "https://demo-bucket.s3.us-east-1.amazonaws.com/batch/input.jsonl", rawURL)

	_, _, rawURL, err = endpoint(OpRetrieveFile, testTarget(), "batch/input.jsonl", false)
	require.NoError(t, err)
	require.Equal(t, "https://demo-bucket.s3.us-east-1.amazonaws.com/batch/input.jsonl?attributes", rawURL)
}

func TestEndpoint_S3RequiresBucket(t *testing.T) {
	_, _, _, err := endpoint(OpUploadFile, &Target{Region: "us-east-1"}, "k", false)
	var gerr *GatewayError
	require.ErrorAs(t, err, &gerr)
	require.Equal(t, http.StatusBadRequest, gerr.StatusCode)
	require.Contains(t, gerr.Response.Error.Message, headerS3Bucket)
}

func TestEndpoint_Unsupported(t *testing.T) {
	for _, op := range []Operation{OpListFiles, OpDeleteFile} {
		_, _, _, err := endpoint(op, testTarget(), "", false)
		var gerr *GatewayError
		require.ErrorAs(t, err, &gerr)
		require.Equal(t, http.StatusNotFound, gerr.StatusCode)
	}
}

func TestConverseEligible(t *testing.T) {
	tests := []struct {
		model    string
		eligible bool
	}{
		{"anthropic.claude-3-sonnet-20240229-v1:0", true},
		{"anthropic.claude-instant-v1", true},
		{"cohere.command-r-v1:0", true},
		{"cohere.command-r-plus-v1:0", true},
		{"cohere.command-text-v14", false},
		{"cohere.command-light-text-v14", false},
		{"mistral.mistral-large-2402-v1:0", true},
		{"mistral.mistral-7b-instruct-v0:2", false},
		{"amazon.nova-pro-v1:0", true},
		{"amazon.titan-text-express-v1", false},
		{"meta.llama3-70b-instruct-v1:0", false},
		{"ai21.j2-ultra-v1", false},
	}
	for _, tc := range tests {
		require.Equal(t, tc.eligible, converseEligible(tc.model), tc.model)
	}
}

func TestModelFamily(t *testing.T) {
	require.Equal(t, "anthropic", modelFamily("anthropic.claude-3-sonnet-20240229-v1:0"))
	require.Equal(t, "meta", modelFamily("arn:aws:bedrock:us-east-1::foundation-model/meta.llama3-8b-instruct-v1:0"))
	require.Equal(t, "", modelFamily("no-vendor-prefix"))
}
