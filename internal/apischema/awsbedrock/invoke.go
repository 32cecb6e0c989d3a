package awsbedrock

// InvokeModel wire shapes for the model families that are not
// Converse-eligible: the native Anthropic request plus the response and
// stream-chunk bodies of each family. The other families' request bodies are
// assembled field by field by the transform engine.

// Anthropic native messages format, used for batch record transformation and
// raw InvokeModel calls against Claude models.
const AnthropicVersionBedrock = "bedrock-2023-05-31"

// AnthropicMessage is one turn of the native Anthropic messages format.
type AnthropicMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// AnthropicInvokeRequest is the native Anthropic InvokeModel body.
type AnthropicInvokeRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	System           string             `json:"system,omitempty"`
	Messages         []AnthropicMessage `json:"messages"`
	MaxTokens        int64              `json:"max_tokens"`
	Temperature      *float64           `json:"temperature,omitempty"`
	TopP             *float64           `json:"top_p,omitempty"`
	TopK             *int64             `json:"top_k,omitempty"`
	StopSequences    []string           `json:"stop_sequences,omitempty"`
}

// AnthropicInvokeResponse is the native Anthropic InvokeModel response.
type AnthropicInvokeResponse struct {
	ID         string                  `json:"id"`
	Model      string                  `json:"model"`
	Role       string                  `json:"role"`
	Content    []AnthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      AnthropicUsage          `json:"usage"`
}

// AnthropicContentBlock is one native Anthropic response block.
type AnthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// AnthropicUsage is the native Anthropic token accounting.
type AnthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// CohereCommandResponse is the Cohere command generation response.
type CohereCommandResponse struct {
	Generations []CohereGeneration `json:"generations"`
}

// CohereGeneration is one generated alternative.
type CohereGeneration struct {
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason,omitempty"`
	IsFinished   bool   `json:"is_finished,omitempty"`
}

// AI21CompleteResponse is the Jurassic-2 completion response.
type AI21CompleteResponse struct {
	Completions []AI21Completion `json:"completions"`
}

// AI21Completion is one completion alternative.
type AI21Completion struct {
	Data         AI21CompletionData `json:"data"`
	FinishReason *AI21FinishReason  `json:"finishReason,omitempty"`
}

// AI21CompletionData holds the generated text.
type AI21CompletionData struct {
	Text string `json:"text"`
}

// AI21FinishReason wraps the stop reason string.
type AI21FinishReason struct {
	Reason string `json:"reason"`
}

// TitanTextResponse is the Titan text generation response.
type TitanTextResponse struct {
	InputTextTokenCount int               `json:"inputTextTokenCount"`
	Results             []TitanTextResult `json:"results"`
}

// TitanTextResult is one Titan generation.
type TitanTextResult struct {
	TokenCount       int    `json:"tokenCount"`
	OutputText       string `json:"outputText"`
	CompletionReason string `json:"completionReason"`
}

// TitanStreamChunk is one Titan invoke-stream chunk.
type TitanStreamChunk struct {
	OutputText                string             `json:"outputText"`
	CompletionReason          *string            `json:"completionReason,omitempty"`
	InputTextTokenCount       *int               `json:"inputTextTokenCount,omitempty"`
	TotalOutputTextTokenCount *int               `json:"totalOutputTextTokenCount,omitempty"`
	InvocationMetrics         *InvocationMetrics `json:"amazon-bedrock-invocationMetrics,omitempty"`
}

// MetaLlamaResponse is the Llama text generation response.
type MetaLlamaResponse struct {
	Generation           string             `json:"generation"`
	PromptTokenCount     int                `json:"prompt_token_count"`
	GenerationTokenCount int                `json:"generation_token_count"`
	StopReason           string             `json:"stop_reason"`
	InvocationMetrics    *InvocationMetrics `json:"amazon-bedrock-invocationMetrics,omitempty"`
}

// MistralResponse is the Mistral text generation response.
type MistralResponse struct {
	Outputs           []MistralOutput    `json:"outputs"`
	InvocationMetrics *InvocationMetrics `json:"amazon-bedrock-invocationMetrics,omitempty"`
}

// MistralOutput is one Mistral generation.
type MistralOutput struct {
	Text       string `json:"text"`
	StopReason string `json:"stop_reason,omitempty"`
}

// CohereStreamChunk is one Cohere command invoke-stream chunk.
type CohereStreamChunk struct {
	Text              string             `json:"text,omitempty"`
	IsFinished        bool               `json:"is_finished,omitempty"`
	FinishReason      string             `json:"finish_reason,omitempty"`
	InvocationMetrics *InvocationMetrics `json:"amazon-bedrock-invocationMetrics,omitempty"`
}

// InvocationMetrics is the trailer Bedrock appends to the final chunk of an
// invoke-with-response-stream response.
type InvocationMetrics struct {
	InputTokenCount   int `json:"inputTokenCount"`
	OutputTokenCount  int `json:"outputTokenCount"`
	InvocationLatency int `json:"invocationLatency"`
	FirstByteLatency  int `json:"firstByteLatency"`
}

// TitanEmbeddingRequest is the Titan embeddings body.
type TitanEmbeddingRequest struct {
	InputText  string `json:"inputText"`
	Dimensions *int64 `json:"dimensions,omitempty"`
}

// TitanEmbeddingResponse is the Titan embeddings response.
type TitanEmbeddingResponse struct {
	Embedding           []float64 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

// CohereEmbeddingRequest is the Cohere embeddings body.
type CohereEmbeddingRequest struct {
	Texts     []string `json:"texts"`
	InputType string   `json:"input_type"`
	Truncate  string   `json:"truncate,omitempty"`
}

// CohereEmbeddingResponse is the Cohere embeddings response.
type CohereEmbeddingResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// StabilityV1Request is the Stability SDXL (V1) image generation body.
type StabilityV1Request struct {
	TextPrompts []StabilityTextPrompt `json:"text_prompts"`
	CfgScale    *float64              `json:"cfg_scale,omitempty"`
	Steps       *int64                `json:"steps,omitempty"`
	Seed        *int64                `json:"seed,omitempty"`
	Width       *int64                `json:"width,omitempty"`
	Height      *int64                `json:"height,omitempty"`
	Samples     *int64                `json:"samples,omitempty"`
	StylePreset string                `json:"style_preset,omitempty"`
}

// StabilityTextPrompt is one weighted prompt.
type StabilityTextPrompt struct {
	Text   string   `json:"text"`
	Weight *float64 `json:"weight,omitempty"`
}

// StabilityV1Response is the SDXL response.
type StabilityV1Response struct {
	Artifacts []StabilityArtifact `json:"artifacts"`
}

// StabilityArtifact is one generated image.
type StabilityArtifact struct {
	Base64       string `json:"base64"`
	FinishReason string `json:"finishReason,omitempty"`
	Seed         int64  `json:"seed,omitempty"`
}

// StabilityV2Request is the Stability SD3/Core (V2) image generation body.
type StabilityV2Request struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	AspectRatio    string `json:"aspect_ratio,omitempty"`
	Seed           *int64 `json:"seed,omitempty"`
	OutputFormat   string `json:"output_format,omitempty"`
	Mode           string `json:"mode,omitempty"`
}

// StabilityV2Response is the V2 response: base64 images plus diagnostics.
type StabilityV2Response struct {
	Images        []string `json:"images"`
	Seeds         []int64  `json:"seeds,omitempty"`
	FinishReasons []string `json:"finish_reasons,omitempty"`
}
