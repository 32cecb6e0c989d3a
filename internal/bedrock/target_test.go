package bedrock

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func targetHeaders(pairs map[string]string) http.Header {
	h := http.Header{}
	for name, v := range pairs {
		h.Set(HeaderPrefix+name, v)
	}
	return h
}

func TestTargetFromHeaders(t *testing.T) {
	h := targetHeaders(map[string]string{
		"aws-region":                "us-east-1",
		"aws-access-key-id":         "AKIA",
		"aws-secret-access-key":     "secret",
		"aws-s3-bucket":             "demo-bucket",
		"aws-bedrock-model":         "anthropic.claude-3-sonnet-20240229-v1:0",
		"strict-openai-compliance": "true",
	})

	target, err := TargetFromHeaders(h)
	require.NoError(t, err)
	require.Equal(t, ProviderName, target.Provider)
	require.Equal(t, "us-east-1", target.Region)
	require.Equal(t, AuthTypeStatic, target.AuthType)
	require.Equal(t, "AKIA", target.AccessKeyID)
	require.Equal(t, "demo-bucket", target.S3Bucket)
	require.Equal(t, "anthropic.claude-3-sonnet-20240229-v1:0", target.Model)
	require.True(t, target.StrictOpenAICompliance)
}

func TestTargetFromHeaders_MissingRegion(t *testing.T) {
	_, err := TargetFromHeaders(targetHeaders(map[string]string{
		"aws-access-key-id": "AKIA",
	}))
	var gerr *GatewayError
	require.ErrorAs(t, err, &gerr)
	require.Equal(t, http.StatusBadRequest, gerr.StatusCode)
	require.Contains(t, gerr.Response.Error.Message, "aws-region")
}

func TestTargetFromHeaders_AssumedRole(t *testing.T) {
	_, err := TargetFromHeaders(targetHeaders(map[string]string{
		"aws-region":    "us-east-1",
		"aws-auth-type": "assumedRole",
	}))
	require.Error(t, err)

	target, err := TargetFromHeaders(targetHeaders(map[string]string{
		"aws-region":    "us-east-1",
		"aws-auth-type": "assumedRole",
		"aws-role-arn":  "arn:aws:iam::123456789012:role/gw",
	}))
	require.NoError(t, err)
	require.Equal(t, AuthTypeAssumedRole, target.AuthType)
	require.Equal(t, "arn:aws:iam::123456789012:role/gw", target.RoleARN)
}

func TestTargetFromHeaders_UnknownAuthType(t *testing.T) {
	_, err := TargetFromHeaders(targetHeaders(map[string]string{
		"aws-region":    "us-east-1",
		"aws-auth-type": "mfa",
	}))
	require.Error(t, err)
}
