// Package openai defines the canonical OpenAI-compatible wire schema that
// the gateway exposes to its clients. Only the subset of the API surface the
// gateway translates is modeled; unknown fields are ignored on input and
// never emitted on output.
package openai

import "encoding/json"

// Message roles accepted on /v1/chat/completions.
const (
	ChatMessageRoleSystem    = "system"
	ChatMessageRoleDeveloper = "developer"
	ChatMessageRoleUser      = "user"
	ChatMessageRoleAssistant = "assistant"
	ChatMessageRoleTool      = "tool"
)

// Content part types inside a structured message content list.
const (
	ContentTypeText             = "text"
	ContentTypeImageURL         = "image_url"
	ContentTypeFile             = "file"
	ContentTypeThinking         = "thinking"
	ContentTypeRedactedThinking = "redacted_thinking"
)

// Finish reasons surfaced on choices.
const (
	FinishReasonStop          = "stop"
	FinishReasonLength        = "length"
	FinishReasonToolCalls     = "tool_calls"
	FinishReasonContentFilter = "content_filter"
	FinishReasonError         = "error"
)

// ChatCompletionRequest is the canonical request body of /v1/chat/completions.
type ChatCompletionRequest struct {
	Model               string         `json:"model"`
	Messages            []ChatMessage  `json:"messages"`
	MaxTokens           *int64         `json:"max_tokens,omitempty"`
	MaxCompletionTokens *int64         `json:"max_completion_tokens,omitempty"`
	Temperature         *float64       `json:"temperature,omitempty"`
	TopP                *float64       `json:"top_p,omitempty"`
	TopK                *int64         `json:"top_k,omitempty"`
	N                   *int64         `json:"n,omitempty"`
	Stop                StringOrArray  `json:"stop,omitempty"`
	Stream              bool           `json:"stream,omitempty"`
	Tools               []Tool         `json:"tools,omitempty"`
	ToolChoice          *ToolChoice    `json:"tool_choice,omitempty"`
	FrequencyPenalty    *float64       `json:"frequency_penalty,omitempty"`
	PresencePenalty     *float64       `json:"presence_penalty,omitempty"`
	LogitBias           map[string]int `json:"logit_bias,omitempty"`

	// Vendor passthrough fields. Thinking is forwarded verbatim into the
	// provider's additional model request fields for Anthropic models.
	AnthropicVersion string          `json:"anthropic_version,omitempty"`
	Thinking         json.RawMessage `json:"thinking,omitempty"`
	GuardrailConfig  json.RawMessage `json:"guardrail_config,omitempty"`
}

// ChatMessage is a single conversation turn. Content is either a plain
// string or an ordered list of content parts.
type ChatMessage struct {
	Role         string         `json:"role"`
	Content      MessageContent `json:"content"`
	Name         string         `json:"name,omitempty"`
	ToolCalls    []ToolCall     `json:"tool_calls,omitempty"`
	ToolCallID   string         `json:"tool_call_id,omitempty"`
	CacheControl *CacheControl  `json:"cache_control,omitempty"`
}

// MessageContent is the string-or-parts union used by message content.
type MessageContent struct {
	// Text is set when the wire value was a plain JSON string.
	Text *string
	// Parts is set when the wire value was an array of content parts.
	Parts []ContentPart
}

// UnmarshalJSON accepts a JSON string, null, or an array of content parts.
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		c.Text = &s
		return nil
	}
	return json.Unmarshal(data, &c.Parts)
}

// MarshalJSON emits the original wire form.
func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.Text != nil {
		return json.Marshal(*c.Text)
	}
	if c.Parts != nil {
		return json.Marshal(c.Parts)
	}
	return []byte("null"), nil
}

// IsEmpty reports whether no content was provided at all.
func (c MessageContent) IsEmpty() bool { return c.Text == nil && c.Parts == nil }

// ContentPart is one element of a structured content list.
type ContentPart struct {
	Type         string        `json:"type"`
	Text         string        `json:"text,omitempty"`
	ImageURL     *ImageURL     `json:"image_url,omitempty"`
	File         *FilePart     `json:"file,omitempty"`
	Thinking     string        `json:"thinking,omitempty"`
	Signature    string        `json:"signature,omitempty"`
	Data         string        `json:"data,omitempty"`
	CacheControl *CacheControl `json:"cache_control,omitempty"`
}

// ImageURL carries an image reference, usually a data URI.
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// FilePart references a document either by URL or by inline base64 data.
type FilePart struct {
	Filename string `json:"filename,omitempty"`
	FileURL  string `json:"file_url,omitempty"`
	FileData string `json:"file_data,omitempty"`
}

// CacheControl marks the preceding prefix as cacheable on providers that
// support prompt caching.
type CacheControl struct {
	Type string `json:"type"`
}

// StringOrArray is the `stop` union: a single string or a list of strings.
type StringOrArray struct {
	Values []string
}

// UnmarshalJSON accepts a JSON string or array of strings.
func (s *StringOrArray) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		s.Values = []string{v}
		return nil
	}
	return json.Unmarshal(data, &s.Values)
}

// MarshalJSON emits the list form.
func (s StringOrArray) MarshalJSON() ([]byte, error) {
	if s.Values == nil {
		return []byte("null"), nil
	}
	return json.Marshal(s.Values)
}

// Tool is a function tool definition.
type Tool struct {
	Type         string        `json:"type"`
	Function     *ToolFunction `json:"function,omitempty"`
	CacheControl *CacheControl `json:"cache_control,omitempty"`
}

// ToolFunction describes the callable function behind a tool.
type ToolFunction struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

// ToolChoice is the `tool_choice` union: "auto" | "none" | "required" or a
// named function selector.
type ToolChoice struct {
	Mode     string
	Function string
}

// UnmarshalJSON accepts a mode string or a {type:"function",function:{name}} object.
func (t *ToolChoice) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &t.Mode)
	}
	var named struct {
		Type     string `json:"type"`
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	}
	if err := json.Unmarshal(data, &named); err != nil {
		return err
	}
	t.Function = named.Function.Name
	return nil
}

// MarshalJSON emits the original wire form.
func (t ToolChoice) MarshalJSON() ([]byte, error) {
	if t.Function != "" {
		return json.Marshal(map[string]any{
			"type":     "function",
			"function": map[string]string{"name": t.Function},
		})
	}
	return json.Marshal(t.Mode)
}

// ToolCall is an assistant-emitted function invocation.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction carries the function name and JSON-encoded arguments.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Usage is the canonical token accounting block. The cache counters are
// extensions and are suppressed under strict OpenAI compliance.
type Usage struct {
	PromptTokens             int  `json:"prompt_tokens"`
	CompletionTokens         int  `json:"completion_tokens"`
	TotalTokens              int  `json:"total_tokens"`
	CacheReadInputTokens     *int `json:"cache_read_input_tokens,omitempty"`
	CacheCreationInputTokens *int `json:"cache_creation_input_tokens,omitempty"`
}

// ContentBlock is a structured response block kept alongside the joined
// content string when strict compliance is off.
type ContentBlock struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`
	Data      string `json:"data,omitempty"`
}

// ChatCompletionResponse is the canonical unary chat response.
type ChatCompletionResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Model   string                 `json:"model"`
	Choices []ChatCompletionChoice `json:"choices"`
	Usage   Usage                  `json:"usage"`
}

// ChatCompletionChoice is one response alternative. Bedrock always returns
// exactly one.
type ChatCompletionChoice struct {
	Index        int                 `json:"index"`
	Message      ChatResponseMessage `json:"message"`
	FinishReason string              `json:"finish_reason"`
}

// ChatResponseMessage is the assistant message of a unary response.
type ChatResponseMessage struct {
	Role          string         `json:"role"`
	Content       *string        `json:"content"`
	ContentBlocks []ContentBlock `json:"content_blocks,omitempty"`
	ToolCalls     []ToolCall     `json:"tool_calls,omitempty"`
}

// ChatCompletionChunk is one SSE frame of a streamed chat response.
type ChatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
	Usage   *Usage        `json:"usage,omitempty"`
}

// ChunkChoice is the delta container of a stream frame.
type ChunkChoice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// Delta carries the incremental assistant output of one frame.
type Delta struct {
	Role          string              `json:"role,omitempty"`
	Content       *string             `json:"content,omitempty"`
	ContentBlocks []ContentBlockDelta `json:"content_blocks,omitempty"`
	ToolCalls     []ToolCallDelta     `json:"tool_calls,omitempty"`
}

// ContentBlockDelta is an incremental structured block update.
type ContentBlockDelta struct {
	Index int          `json:"index"`
	Delta ContentBlock `json:"delta"`
}

// ToolCallDelta is an incremental tool call update. Index orders distinct
// tool calls within one stream and is monotonically non-decreasing.
type ToolCallDelta struct {
	Index    int              `json:"index"`
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Function ToolCallFunction `json:"function"`
}
