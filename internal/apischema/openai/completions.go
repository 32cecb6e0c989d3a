package openai

// CompletionRequest is the canonical request body of /v1/completions.
type CompletionRequest struct {
	Model       string        `json:"model"`
	Prompt      StringOrArray `json:"prompt"`
	MaxTokens   *int64        `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	TopK        *int64        `json:"top_k,omitempty"`
	N           *int64        `json:"n,omitempty"`
	Stop        StringOrArray `json:"stop,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// CompletionResponse is the canonical unary text completion response.
type CompletionResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []CompletionChoice `json:"choices"`
	Usage   Usage              `json:"usage"`
}

// CompletionChoice is one text completion alternative.
type CompletionChoice struct {
	Index        int    `json:"index"`
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason"`
}

// EmbeddingRequest is the canonical request body of /v1/embeddings.
type EmbeddingRequest struct {
	Model string        `json:"model"`
	Input StringOrArray `json:"input"`
	// InputType is a Cohere extension selecting the embedding task type.
	InputType      string `json:"input_type,omitempty"`
	EncodingFormat string `json:"encoding_format,omitempty"`
	Dimensions     *int64 `json:"dimensions,omitempty"`
}

// EmbeddingResponse is the canonical embeddings list response.
type EmbeddingResponse struct {
	Object string      `json:"object"`
	Data   []Embedding `json:"data"`
	Model  string      `json:"model"`
	Usage  Usage       `json:"usage"`
}

// Embedding is a single embedding vector.
type Embedding struct {
	Object    string    `json:"object"`
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

// ImageGenerationRequest is the canonical request body of /v1/images/generations.
type ImageGenerationRequest struct {
	Model          string   `json:"model"`
	Prompt         string   `json:"prompt"`
	N              *int64   `json:"n,omitempty"`
	Size           string   `json:"size,omitempty"`
	ResponseFormat string   `json:"response_format,omitempty"`
	Style          string   `json:"style,omitempty"`
	Seed           *int64   `json:"seed,omitempty"`
	CfgScale       *float64 `json:"cfg_scale,omitempty"`
	Steps          *int64   `json:"steps,omitempty"`
	NegativePrompt string   `json:"negative_prompt,omitempty"`
}

// ImageGenerationResponse is the canonical image generation response.
type ImageGenerationResponse struct {
	Created int64       `json:"created"`
	Data    []ImageData `json:"data"`
}

// ImageData is a single generated image, base64-encoded.
type ImageData struct {
	B64JSON string `json:"b64_json"`
}
