// Package bedrock implements the AWS Bedrock provider core: the operation
// router, the per-family request/response transforms, the streaming
// translator, and the S3 file bridge.
package bedrock

import (
	"fmt"
	"net/http"
	"strings"
)

// ProviderName tags canonical error envelopes and file ids.
const ProviderName = "bedrock"

// HeaderPrefix is the vendor prefix of the per-request target headers.
const HeaderPrefix = "x-bgw-"

// Target header names (without prefix).
const (
	headerProvider     = "provider"
	headerRegion       = "aws-region"
	headerAccessKeyID  = "aws-access-key-id"
	headerSecretKey    = "aws-secret-access-key"
	headerSessionToken = "aws-session-token"
	headerAuthType     = "aws-auth-type"
	headerRoleARN      = "aws-role-arn"
	headerS3Bucket     = "aws-s3-bucket"
	headerS3ObjectKey  = "aws-s3-object-key"
	headerModel        = "aws-bedrock-model"
	headerSSE          = "aws-server-side-encryption"
	headerSSEKMSKeyID  = "aws-server-side-encryption-kms-key-id"
	headerFilePurpose  = "file-purpose"
	headerModelType    = "model-type"
	headerStrict       = "strict-openai-compliance"
)

// Credential modes.
const (
	AuthTypeStatic      = "static"
	AuthTypeAssumedRole = "assumedRole"
)

// Target identifies the upstream endpoint and credentials for one request.
// It is derived from inbound headers and immutable for that request.
type Target struct {
	Provider        string
	Region          string
	AuthType        string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	RoleARN         string

	S3Bucket    string
	S3ObjectKey string
	Model       string

	ServerSideEncryption string
	KMSKeyID             string

	FilePurpose string
	ModelType   string

	StrictOpenAICompliance bool
}

// StrictFromHeaders reads the strict-compliance flag on its own, so error
// envelopes written before a target exists still honor it.
func StrictFromHeaders(h http.Header) bool {
	return strings.EqualFold(h.Get(HeaderPrefix+headerStrict), "true")
}

// TargetFromHeaders builds the per-request target from the x-bgw-* headers.
func TargetFromHeaders(h http.Header) (*Target, error) {
	get := func(name string) string { return h.Get(HeaderPrefix + name) }

	t := &Target{
		Provider:             get(headerProvider),
		Region:               get(headerRegion),
		AuthType:             get(headerAuthType),
		AccessKeyID:          get(headerAccessKeyID),
		SecretAccessKey:      get(headerSecretKey),
		SessionToken:         get(headerSessionToken),
		RoleARN:              get(headerRoleARN),
		S3Bucket:             get(headerS3Bucket),
		S3ObjectKey:          get(headerS3ObjectKey),
		Model:                get(headerModel),
		ServerSideEncryption: get(headerSSE),
		KMSKeyID:             get(headerSSEKMSKeyID),
		FilePurpose:          get(headerFilePurpose),
		ModelType:            get(headerModelType),
	}
	if t.Provider == "" {
		t.Provider = ProviderName
	}
	if t.AuthType == "" {
		t.AuthType = AuthTypeStatic
	}
	t.StrictOpenAICompliance = StrictFromHeaders(h)

	if t.Region == "" {
		return nil, newValidationError(fmt.Sprintf("missing %s%s header", HeaderPrefix, headerRegion))
	}
	switch t.AuthType {
	case AuthTypeStatic:
	case AuthTypeAssumedRole:
		if t.RoleARN == "" {
			return nil, newValidationError(fmt.Sprintf("auth type %s requires %s%s", AuthTypeAssumedRole, HeaderPrefix, headerRoleARN))
		}
	default:
		return nil, newValidationError(fmt.Sprintf("unknown auth type %q", t.AuthType))
	}
	return t, nil
}
