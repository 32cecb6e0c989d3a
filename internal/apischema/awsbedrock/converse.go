// Package awsbedrock defines the AWS Bedrock wire types the gateway speaks:
// the Converse and InvokeModel runtime APIs, the model-invocation and
// model-customization control-plane jobs, and the S3 XML documents used by
// the file bridge.
package awsbedrock

// Stop reason enum values returned by Converse.
const (
	StopReasonEndTurn             = "end_turn"
	StopReasonToolUse             = "tool_use"
	StopReasonMaxTokens           = "max_tokens"
	StopReasonStopSequence        = "stop_sequence"
	StopReasonGuardrailIntervened = "guardrail_intervened"
	StopReasonContentFiltered     = "content_filtered"
)

// Conversation role enum values.
const (
	ConversationRoleUser      = "user"
	ConversationRoleAssistant = "assistant"
)

// SystemContentBlock is one entry of the Converse system prompt list.
type SystemContentBlock struct {
	Text       string      `json:"text,omitempty"`
	CachePoint *CachePoint `json:"cachePoint,omitempty"`
}

// Message is one conversation turn.
type Message struct {
	Content []*ContentBlock `json:"content"`
	Role    string          `json:"role"`
}

// ImageSource carries raw image bytes (base64 on the wire).
type ImageSource struct {
	Bytes []byte `json:"bytes"`
}

// ImageBlock is image content of a message.
type ImageBlock struct {
	Format string      `json:"format"`
	Source ImageSource `json:"source"`
}

// DocumentSource carries a document either inline or by S3 location.
type DocumentSource struct {
	Bytes      []byte      `json:"bytes,omitempty"`
	S3Location *S3Location `json:"s3Location,omitempty"`
}

// S3Location points at an object by s3:// URI.
type S3Location struct {
	URI string `json:"uri"`
}

// DocumentBlock is a document attached to a message.
type DocumentBlock struct {
	Format string         `json:"format"`
	Name   string         `json:"name"`
	Source DocumentSource `json:"source"`
}

// CachePoint marks the preceding prefix as cacheable.
type CachePoint struct {
	Type string `json:"type"`
}

// ReasoningTextBlock is model reasoning with an integrity signature.
type ReasoningTextBlock struct {
	Text      string `json:"text"`
	Signature string `json:"signature,omitempty"`
}

// ReasoningContentBlock is the reasoning union: readable text or redacted bytes.
type ReasoningContentBlock struct {
	ReasoningText   *ReasoningTextBlock `json:"reasoningText,omitempty"`
	RedactedContent []byte              `json:"redactedContent,omitempty"`
}

// ToolResultContentBlock is one element of a tool result.
type ToolResultContentBlock struct {
	Document *DocumentBlock `json:"document,omitempty"`
	Image    *ImageBlock    `json:"image,omitempty"`
	Text     *string        `json:"text,omitempty"`
	JSON     *string        `json:"json,omitempty"`
}

// ToolResultBlock returns the result of a prior tool use to the model.
type ToolResultBlock struct {
	Content   []*ToolResultContentBlock `json:"content"`
	Status    *string                   `json:"status,omitempty"`
	ToolUseID *string                   `json:"toolUseId"`
}

// ToolUseBlock is a model request to run a tool.
type ToolUseBlock struct {
	Name      string         `json:"name"`
	Input     map[string]any `json:"input"`
	ToolUseID string         `json:"toolUseId"`
}

// ContentBlock is the Converse content union; exactly one member is set.
type ContentBlock struct {
	CachePoint       *CachePoint            `json:"cachePoint,omitempty"`
	Document         *DocumentBlock         `json:"document,omitempty"`
	Image            *ImageBlock            `json:"image,omitempty"`
	ReasoningContent *ReasoningContentBlock `json:"reasoningContent,omitempty"`
	Text             *string                `json:"text,omitempty"`
	ToolResult       *ToolResultBlock       `json:"toolResult,omitempty"`
	ToolUse          *ToolUseBlock          `json:"toolUse,omitempty"`
}

// ConverseResponse is the unary response of Converse.
type ConverseResponse struct {
	Output     *ConverseOutput `json:"output"`
	StopReason *string         `json:"stopReason"`
	Usage      *TokenUsage     `json:"usage"`
}

// ConverseOutput wraps the assistant message.
type ConverseOutput struct {
	Message Message `json:"message,omitempty"`
}

// TokenUsage is the Converse token accounting block.
type TokenUsage struct {
	InputTokens              int  `json:"inputTokens"`
	OutputTokens             int  `json:"outputTokens"`
	TotalTokens              int  `json:"totalTokens"`
	CacheReadInputTokens     *int `json:"cacheReadInputTokens,omitempty"`
	CacheCreationInputTokens *int `json:"cacheWriteInputTokens,omitempty"`
}

// ConverseStreamEvent is the union of all ConverseStream frame payloads.
type ConverseStreamEvent struct {
	ContentBlockIndex int                `json:"contentBlockIndex,omitempty"`
	Delta             *ContentBlockDelta `json:"delta,omitempty"`
	Role              *string            `json:"role,omitempty"`
	StopReason        *string            `json:"stopReason,omitempty"`
	Usage             *TokenUsage        `json:"usage,omitempty"`
	Start             *ContentBlockStart `json:"start,omitempty"`
}

// ContentBlockDelta is the per-frame incremental content union.
type ContentBlockDelta struct {
	Text             *string                `json:"text,omitempty"`
	ToolUse          *ToolUseBlockDelta     `json:"toolUse,omitempty"`
	ReasoningContent *ReasoningContentDelta `json:"reasoningContent,omitempty"`
}

// ReasoningContentDelta is an incremental reasoning update.
type ReasoningContentDelta struct {
	Text            *string `json:"text,omitempty"`
	Signature       *string `json:"signature,omitempty"`
	RedactedContent []byte  `json:"redactedContent,omitempty"`
}

// ContentBlockStart announces the start of a content block.
type ContentBlockStart struct {
	ToolUse *ToolUseBlockStart `json:"toolUse,omitempty"`
}

// ToolUseBlockStart carries the id and name of a starting tool use.
type ToolUseBlockStart struct {
	Name      string `json:"name"`
	ToolUseID string `json:"toolUseId"`
}

// ToolUseBlockDelta is a partial JSON fragment of the tool input.
type ToolUseBlockDelta struct {
	Input string `json:"input"`
}

// BedrockException is the JSON error body of Bedrock APIs.
type BedrockException struct {
	Code    string `json:"code,omitempty"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
}

// AnyToolChoice forces the model to request at least one tool.
type AnyToolChoice struct{}

// AutoToolChoice lets the model decide whether to call a tool.
type AutoToolChoice struct{}

// SpecificToolChoice forces a particular tool.
type SpecificToolChoice struct {
	Name *string `json:"name"`
}

// ToolChoice is the tool selection union.
type ToolChoice struct {
	Any  *AnyToolChoice      `json:"any,omitempty"`
	Auto *AutoToolChoice     `json:"auto,omitempty"`
	Tool *SpecificToolChoice `json:"tool,omitempty"`
}

// Tool is a tool entry; either a spec or a cache point marker.
type Tool struct {
	ToolSpec   *ToolSpecification `json:"toolSpec,omitempty"`
	CachePoint *CachePoint        `json:"cachePoint,omitempty"`
}

// ToolInputSchema wraps the JSON schema of a tool's input.
type ToolInputSchema struct {
	JSON any `json:"json"`
}

// ToolSpecification describes one tool.
type ToolSpecification struct {
	Description *string          `json:"description,omitempty"`
	InputSchema *ToolInputSchema `json:"inputSchema"`
	Name        *string          `json:"name"`
}
