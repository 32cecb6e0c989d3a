package bedrock

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"k8s.io/utils/ptr"

	"github.com/yduwcui/bedrock-gateway/internal/apischema/openai"
	"github.com/yduwcui/bedrock-gateway/internal/signer"
)

// Gateway executes canonical operations against AWS Bedrock and S3. It owns
// the HTTP client and the request signer; per-request state arrives as a
// Target.
type Gateway struct {
	client *http.Client
	signer *signer.Signer
	logger *slog.Logger

	// baseURL overrides the upstream scheme and host when non-empty. Tests
	// point it at an httptest server.
	baseURL string
}

// NewGateway constructs a Gateway. The client timeout is generous because
// model invocations and large S3 transfers routinely run for minutes.
func NewGateway(logger *slog.Logger) *Gateway {
	return &Gateway{
		client: &http.Client{Timeout: 10 * time.Minute},
		signer: signer.New(),
		logger: logger,
	}
}

func signOptions(t *Target) signer.Options {
	opts := signer.Options{
		Region: t.Region,
		Credentials: signer.Credentials{
			AccessKeyID:     t.AccessKeyID,
			SecretAccessKey: t.SecretAccessKey,
			SessionToken:    t.SessionToken,
		},
	}
	if t.AuthType == AuthTypeAssumedRole {
		opts.RoleARN = t.RoleARN
	}
	return opts
}

// signedRequest builds and signs the upstream request for one operation.
func (g *Gateway) signedRequest(ctx context.Context, op Operation, t *Target, arg string, stream bool, body []byte) (*http.Request, string, error) {
	method, service, rawURL, err := endpoint(op, t, arg, stream)
	if err != nil {
		return nil, "", err
	}
	rawURL = g.rebase(rawURL)
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, "", err
	}
	if body != nil && service != serviceS3 {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := g.signer.Sign(ctx, req, body, service, signOptions(t)); err != nil {
		return nil, "", g.asGatewayError(err)
	}
	return req, service, nil
}

// rebase swaps the upstream scheme and host for the test override.
func (g *Gateway) rebase(rawURL string) string {
	if g.baseURL == "" {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	base, err := url.Parse(g.baseURL)
	if err != nil {
		return rawURL
	}
	u.Scheme, u.Host = base.Scheme, base.Host
	return u.String()
}

// do executes the signed request and normalizes non-2xx responses into the
// canonical error envelope. On 2xx the caller owns the response body.
func (g *Gateway) do(req *http.Request, t *Target) (*http.Response, error) {
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &GatewayError{
			StatusCode: http.StatusBadGateway,
			Response: openai.ErrorResponse{
				Error:    openai.ErrorDetail{Message: err.Error(), Type: ptr.To(openai.ErrorTypeInvalidProviderResponse)},
				Provider: ProviderName,
			},
		}
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		gerr := mapUpstreamError(resp)
		resp.Body.Close()
		if resp.StatusCode == http.StatusForbidden && t.AuthType == AuthTypeAssumedRole {
			// Expired temporary credentials; force a fresh AssumeRole next time.
			g.signer.InvalidateRole(t.RoleARN)
		}
		g.logger.Warn("upstream error",
			slog.String("url", req.URL.String()),
			slog.Int("status", resp.StatusCode),
			slog.String("message", gerr.Response.Error.Message))
		return nil, gerr
	}
	return resp, nil
}

// call is the one-shot JSON round trip used by the unary operations.
func (g *Gateway) call(ctx context.Context, op Operation, t *Target, arg string, body []byte) ([]byte, http.Header, error) {
	req, _, err := g.signedRequest(ctx, op, t, arg, false, body)
	if err != nil {
		return nil, nil, err
	}
	resp, err := g.do(req, t)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, newTransformError("read upstream response: " + err.Error())
	}
	return out, resp.Header, nil
}

// asGatewayError wraps signer failures in the canonical envelope.
func (g *Gateway) asGatewayError(err error) error {
	var gerr *GatewayError
	if errors.As(err, &gerr) {
		return err
	}
	status := http.StatusBadGateway
	errType := openai.ErrorTypeInvalidProviderResponse
	if errors.Is(err, signer.ErrMissingCredentials) {
		status = http.StatusUnauthorized
		errType = openai.ErrorTypeAuthentication
	}
	return &GatewayError{
		StatusCode: status,
		Response: openai.ErrorResponse{
			Error:    openai.ErrorDetail{Message: err.Error(), Type: ptr.To(errType)},
			Provider: ProviderName,
		},
	}
}

// ChatCompletion executes a unary chat completion.
func (g *Gateway) ChatCompletion(ctx context.Context, t *Target, canonical []byte) (*openai.ChatCompletionResponse, error) {
	model := gjson.GetBytes(canonical, "model").String()
	if model == "" {
		return nil, newValidationError("model is required")
	}

	var providerBody []byte
	var err error
	if converseEligible(model) {
		providerBody, err = BuildConverseRequest(canonical)
	} else {
		providerBody, err = BuildInvokeChatRequest(model, canonical)
	}
	if err != nil {
		return nil, err
	}

	out, headers, err := g.call(ctx, OpChatComplete, t, model, providerBody)
	if err != nil {
		return nil, err
	}
	if converseEligible(model) {
		return ConverseResponseToOpenAI(out, model, t.StrictOpenAICompliance)
	}
	return InvokeChatResponseToOpenAI(model, out, headers)
}

// ChatCompletionStream executes a streamed chat completion, writing SSE
// frames to w as upstream frames decode.
func (g *Gateway) ChatCompletionStream(ctx context.Context, t *Target, canonical []byte, w io.Writer) error {
	model := gjson.GetBytes(canonical, "model").String()
	if model == "" {
		return newValidationError("model is required")
	}

	var providerBody []byte
	var err error
	converse := converseEligible(model)
	if converse {
		providerBody, err = BuildConverseRequest(canonical)
	} else {
		providerBody, err = BuildInvokeChatRequest(model, canonical)
		// Cohere command streams only when asked in the body.
		if err == nil && modelFamily(model) == "cohere" {
			providerBody, err = sjson.SetBytes(providerBody, "stream", true)
		}
	}
	if err != nil {
		return err
	}

	req, _, err := g.signedRequest(ctx, OpChatComplete, t, model, true, providerBody)
	if err != nil {
		return err
	}
	resp, err := g.do(req, t)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, ContentTypeEventStream) {
		return newTransformError(fmt.Sprintf("unexpected content type for streaming: %s", ct))
	}

	tr := NewStreamTranslator(model, t.StrictOpenAICompliance)
	if converse {
		return tr.StreamConverse(resp.Body, w)
	}
	return tr.StreamInvoke(resp.Body, w)
}

// Completion executes a unary text completion against an invoke-only model.
func (g *Gateway) Completion(ctx context.Context, t *Target, canonical []byte) (*openai.CompletionResponse, error) {
	model := gjson.GetBytes(canonical, "model").String()
	if model == "" {
		return nil, newValidationError("model is required")
	}
	providerBody, err := BuildInvokeCompletionRequest(model, canonical)
	if err != nil {
		return nil, err
	}
	out, headers, err := g.call(ctx, OpComplete, t, model, providerBody)
	if err != nil {
		return nil, err
	}
	return InvokeCompletionResponseToOpenAI(model, out, headers)
}

// Embeddings executes an embeddings request. Titan takes one input per
// invocation, so multi-input requests fan out sequentially.
func (g *Gateway) Embeddings(ctx context.Context, t *Target, req *openai.EmbeddingRequest) (*openai.EmbeddingResponse, error) {
	bodies, err := BuildEmbeddingRequest(req)
	if err != nil {
		return nil, err
	}
	outs := make([][]byte, 0, len(bodies))
	var headers http.Header
	for _, body := range bodies {
		out, h, err := g.call(ctx, OpEmbed, t, req.Model, body)
		if err != nil {
			return nil, err
		}
		outs = append(outs, out)
		headers = h
	}
	return EmbeddingResponseToOpenAI(req.Model, outs, headers)
}

// GenerateImage executes an image generation request.
func (g *Gateway) GenerateImage(ctx context.Context, t *Target, req *openai.ImageGenerationRequest) (*openai.ImageGenerationResponse, error) {
	body, err := BuildImageRequest(req)
	if err != nil {
		return nil, err
	}
	out, _, err := g.call(ctx, OpGenerateImage, t, req.Model, body)
	if err != nil {
		return nil, err
	}
	return ImageResponseToOpenAI(req.Model, out)
}
