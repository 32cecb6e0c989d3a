package bedrock

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/yduwcui/bedrock-gateway/internal/apischema/awsbedrock"
	"github.com/yduwcui/bedrock-gateway/internal/apischema/openai"
)

// Cohere embeddings require an input_type; search_document is the least
// surprising default for uploaded corpora.
const cohereDefaultInputType = "search_document"

// BuildEmbeddingRequest maps a canonical embeddings request to the model
// family's InvokeModel body. Titan embeds a single text per call; the caller
// fans multi-input requests out one call per input.
func BuildEmbeddingRequest(req *openai.EmbeddingRequest) ([][]byte, error) {
	if len(req.Input.Values) == 0 {
		return nil, newValidationError("input is required")
	}
	switch modelFamily(req.Model) {
	case "amazon":
		bodies := make([][]byte, 0, len(req.Input.Values))
		for _, text := range req.Input.Values {
			body, err := json.Marshal(&awsbedrock.TitanEmbeddingRequest{
				InputText:  text,
				Dimensions: req.Dimensions,
			})
			if err != nil {
				return nil, err
			}
			bodies = append(bodies, body)
		}
		return bodies, nil
	case "cohere":
		inputType := req.InputType
		if inputType == "" {
			inputType = cohereDefaultInputType
		}
		body, err := json.Marshal(&awsbedrock.CohereEmbeddingRequest{
			Texts:     req.Input.Values,
			InputType: inputType,
		})
		if err != nil {
			return nil, err
		}
		return [][]byte{body}, nil
	default:
		return nil, newValidationError(fmt.Sprintf("model %q is not an embedding model", req.Model))
	}
}

// EmbeddingResponseToOpenAI merges one or more InvokeModel embedding
// responses into the canonical list response. Titan reports token usage in
// the body; Cohere in the invoke usage headers.
func EmbeddingResponseToOpenAI(model string, bodies [][]byte, headers http.Header) (*openai.EmbeddingResponse, error) {
	out := &openai.EmbeddingResponse{Object: "list", Model: model}
	switch modelFamily(model) {
	case "amazon":
		for i, body := range bodies {
			var resp awsbedrock.TitanEmbeddingResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return nil, newTransformError("unmarshal titan embedding response: " + err.Error())
			}
			out.Data = append(out.Data, openai.Embedding{
				Object:    "embedding",
				Embedding: resp.Embedding,
				Index:     i,
			})
			out.Usage.PromptTokens += resp.InputTextTokenCount
		}
		out.Usage.TotalTokens = out.Usage.PromptTokens
	case "cohere":
		if len(bodies) != 1 {
			return nil, newTransformError("cohere embedding expects a single response body")
		}
		var resp awsbedrock.CohereEmbeddingResponse
		if err := json.Unmarshal(bodies[0], &resp); err != nil {
			return nil, newTransformError("unmarshal cohere embedding response: " + err.Error())
		}
		for i, vec := range resp.Embeddings {
			out.Data = append(out.Data, openai.Embedding{
				Object:    "embedding",
				Embedding: vec,
				Index:     i,
			})
		}
		out.Usage = headerUsage(headers)
		out.Usage.CompletionTokens = 0
		out.Usage.TotalTokens = out.Usage.PromptTokens
	default:
		return nil, newTransformError(fmt.Sprintf("model %q is not an embedding model", model))
	}
	return out, nil
}

// embeddingModel reports whether the model id names an embedding model, used
// by the server to route /v1/embeddings inputs before transformation.
func embeddingModel(model string) bool {
	return strings.Contains(model, "embed")
}
