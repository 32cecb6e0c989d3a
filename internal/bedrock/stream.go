package bedrock

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws/protocol/eventstream"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"k8s.io/utils/ptr"

	"github.com/yduwcui/bedrock-gateway/internal/apischema/awsbedrock"
	"github.com/yduwcui/bedrock-gateway/internal/apischema/openai"
)

// ContentTypeEventStream is the Bedrock streaming response content type.
const ContentTypeEventStream = "application/vnd.amazon.eventstream"

// StreamTranslator converts one Bedrock event stream into OpenAI SSE frames.
// It pulls frames from the upstream body and writes each translated chunk as
// soon as it decodes, so the client sees tokens at upstream latency. A
// translator serves exactly one response.
type StreamTranslator struct {
	model  string
	strict bool

	id      string
	created int64

	// toolIndex tracks the current tool_calls index; -1 until the first
	// toolUse block starts. Indexes are assigned in arrival order starting
	// at zero.
	toolIndex  int
	stopReason string
	usage      *openai.Usage
}

// NewStreamTranslator returns a translator for one streamed response.
func NewStreamTranslator(model string, strict bool) *StreamTranslator {
	return &StreamTranslator{
		model:     model,
		strict:    strict,
		id:        "chatcmpl-" + uuid.NewString(),
		created:   time.Now().Unix(),
		toolIndex: -1,
	}
}

func (s *StreamTranslator) chunk(choices ...openai.ChunkChoice) *openai.ChatCompletionChunk {
	return &openai.ChatCompletionChunk{
		ID:      s.id,
		Object:  "chat.completion.chunk",
		Created: s.created,
		Model:   s.model,
		Choices: choices,
	}
}

func writeEvent(w io.Writer, payload []byte) error {
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

func writeChunk(w io.Writer, chunk *openai.ChatCompletionChunk) error {
	payload, err := json.Marshal(chunk)
	if err != nil {
		return err
	}
	return writeEvent(w, payload)
}

func writeDone(w io.Writer) error {
	if _, err := io.WriteString(w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// finish writes the terminal frame: an empty delta carrying the recorded
// finish reason and usage, then the [DONE] sentinel.
func (s *StreamTranslator) finish(w io.Writer) error {
	final := s.chunk(openai.ChunkChoice{FinishReason: ptr.To(finishReason(s.stopReason))})
	final.Usage = s.usage
	if err := writeChunk(w, final); err != nil {
		return err
	}
	return writeDone(w)
}

// abort terminates the stream after a malformed upstream frame: the client
// gets a finish_reason "error" frame and [DONE] rather than a dangling
// connection.
func (s *StreamTranslator) abort(w io.Writer, cause error) error {
	final := s.chunk(openai.ChunkChoice{FinishReason: ptr.To(openai.FinishReasonError)})
	final.Usage = s.usage
	if err := writeChunk(w, final); err != nil {
		return err
	}
	if err := writeDone(w); err != nil {
		return err
	}
	return cause
}

// StreamConverse translates a ConverseStream response body.
func (s *StreamTranslator) StreamConverse(body io.Reader, w io.Writer) error {
	dec := eventstream.NewDecoder()
	var buf []byte
	for {
		msg, err := dec.Decode(body, buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return s.finish(w)
			}
			return s.abort(w, fmt.Errorf("decode event stream: %w", err))
		}
		buf = msg.Payload[:0]

		if t := eventType(&msg); t == "exception" || headerValue(&msg, ":message-type") == "exception" {
			return s.abort(w, fmt.Errorf("upstream exception: %s", msg.Payload))
		}

		var event awsbedrock.ConverseStreamEvent
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			return s.abort(w, fmt.Errorf("unmarshal stream event: %w", err))
		}
		if err := s.converseEvent(w, &event); err != nil {
			return err
		}
	}
}

// converseEvent translates one decoded ConverseStream event. Terminal state
// (stop reason, usage) is recorded and emitted by finish.
func (s *StreamTranslator) converseEvent(w io.Writer, event *awsbedrock.ConverseStreamEvent) error {
	switch {
	case event.Usage != nil:
		usage := converseUsage(event.Usage, s.strict)
		s.usage = &usage
		return nil
	case event.StopReason != nil:
		s.stopReason = *event.StopReason
		return nil
	case event.Role != nil:
		return writeChunk(w, s.chunk(openai.ChunkChoice{
			Delta: openai.Delta{Role: *event.Role, Content: ptr.To("")},
		}))
	case event.Start != nil && event.Start.ToolUse != nil:
		s.toolIndex++
		return writeChunk(w, s.chunk(openai.ChunkChoice{
			Delta: openai.Delta{ToolCalls: []openai.ToolCallDelta{{
				Index: s.toolIndex,
				ID:    event.Start.ToolUse.ToolUseID,
				Type:  "function",
				Function: openai.ToolCallFunction{
					Name:      event.Start.ToolUse.Name,
					Arguments: "",
				},
			}}},
		}))
	case event.Delta != nil:
		return s.contentDelta(w, event)
	default:
		// contentBlockStart for text blocks and messageStart variants we
		// do not surface.
		return nil
	}
}

func (s *StreamTranslator) contentDelta(w io.Writer, event *awsbedrock.ConverseStreamEvent) error {
	delta := event.Delta
	switch {
	case delta.Text != nil:
		return writeChunk(w, s.chunk(openai.ChunkChoice{
			Delta: openai.Delta{Content: delta.Text},
		}))
	case delta.ToolUse != nil:
		if s.toolIndex < 0 {
			return s.abort(w, errors.New("tool input delta before tool use start"))
		}
		return writeChunk(w, s.chunk(openai.ChunkChoice{
			Delta: openai.Delta{ToolCalls: []openai.ToolCallDelta{{
				Index:    s.toolIndex,
				Function: openai.ToolCallFunction{Arguments: delta.ToolUse.Input},
			}}},
		}))
	case delta.ReasoningContent != nil:
		if s.strict {
			return nil
		}
		block := openai.ContentBlock{Type: openai.ContentTypeThinking}
		if delta.ReasoningContent.Text != nil {
			block.Thinking = *delta.ReasoningContent.Text
		}
		if delta.ReasoningContent.Signature != nil {
			block.Signature = *delta.ReasoningContent.Signature
		}
		if len(delta.ReasoningContent.RedactedContent) > 0 {
			block.Type = openai.ContentTypeRedactedThinking
			block.Data = base64.StdEncoding.EncodeToString(delta.ReasoningContent.RedactedContent)
		}
		return writeChunk(w, s.chunk(openai.ChunkChoice{
			Delta: openai.Delta{ContentBlocks: []openai.ContentBlockDelta{{
				Index: event.ContentBlockIndex,
				Delta: block,
			}}},
		}))
	default:
		return nil
	}
}

// StreamInvoke translates an invoke-with-response-stream body for the
// invoke-only families. Chunk payloads may arrive wrapped as
// {"bytes": base64}; the final chunk carries the invocation metrics trailer
// that becomes the usage frame.
func (s *StreamTranslator) StreamInvoke(body io.Reader, w io.Writer) error {
	family := modelFamily(s.model)
	dec := eventstream.NewDecoder()
	var buf []byte
	roleSent := false
	for {
		msg, err := dec.Decode(body, buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return s.finish(w)
			}
			return s.abort(w, fmt.Errorf("decode event stream: %w", err))
		}
		buf = msg.Payload[:0]

		if t := headerValue(&msg, ":message-type"); t == "exception" {
			return s.abort(w, fmt.Errorf("upstream exception: %s", msg.Payload))
		}

		payload := unwrapInvokePayload(msg.Payload)
		if !roleSent {
			roleSent = true
			if err := writeChunk(w, s.chunk(openai.ChunkChoice{
				Delta: openai.Delta{Role: openai.ChatMessageRoleAssistant, Content: ptr.To("")},
			})); err != nil {
				return err
			}
		}
		if err := s.invokeChunk(w, family, payload); err != nil {
			return err
		}
	}
}

// unwrapInvokePayload unwraps the {"bytes": base64} envelope some invoke
// streams use; payloads without it pass through unchanged.
func unwrapInvokePayload(payload []byte) []byte {
	if b := gjson.GetBytes(payload, "bytes"); b.Exists() {
		if decoded, err := base64.StdEncoding.DecodeString(b.String()); err == nil {
			return decoded
		}
	}
	return payload
}

func (s *StreamTranslator) invokeChunk(w io.Writer, family string, payload []byte) error {
	text, stopReason, metrics, err := parseInvokeChunk(family, payload)
	if err != nil {
		return s.abort(w, fmt.Errorf("unmarshal stream chunk: %w", err))
	}
	if metrics != nil {
		s.usage = &openai.Usage{
			PromptTokens:     metrics.InputTokenCount,
			CompletionTokens: metrics.OutputTokenCount,
			TotalTokens:      metrics.InputTokenCount + metrics.OutputTokenCount,
		}
	}
	if stopReason != "" {
		s.stopReason = stopReason
	}
	if text == "" {
		return nil
	}
	return writeChunk(w, s.chunk(openai.ChunkChoice{
		Delta: openai.Delta{Content: ptr.To(text)},
	}))
}

// parseInvokeChunk extracts the incremental text, stop reason, and metrics
// trailer from one invoke stream chunk for the model family.
func parseInvokeChunk(family string, payload []byte) (text, stopReason string, metrics *awsbedrock.InvocationMetrics, err error) {
	switch family {
	case "meta":
		var chunk awsbedrock.MetaLlamaResponse
		if err := json.Unmarshal(payload, &chunk); err != nil {
			return "", "", nil, err
		}
		return chunk.Generation, chunk.StopReason, chunk.InvocationMetrics, nil
	case "mistral":
		var chunk awsbedrock.MistralResponse
		if err := json.Unmarshal(payload, &chunk); err != nil {
			return "", "", nil, err
		}
		if len(chunk.Outputs) == 0 {
			return "", "", chunk.InvocationMetrics, nil
		}
		return chunk.Outputs[0].Text, chunk.Outputs[0].StopReason, chunk.InvocationMetrics, nil
	case "amazon":
		var chunk awsbedrock.TitanStreamChunk
		if err := json.Unmarshal(payload, &chunk); err != nil {
			return "", "", nil, err
		}
		if chunk.CompletionReason != nil {
			stopReason = *chunk.CompletionReason
		}
		return chunk.OutputText, stopReason, chunk.InvocationMetrics, nil
	case "cohere":
		var chunk awsbedrock.CohereStreamChunk
		if err := json.Unmarshal(payload, &chunk); err != nil {
			return "", "", nil, err
		}
		if chunk.IsFinished {
			return "", chunk.FinishReason, chunk.InvocationMetrics, nil
		}
		return chunk.Text, "", chunk.InvocationMetrics, nil
	case "ai21":
		var chunk struct {
			awsbedrock.AI21CompleteResponse
			InvocationMetrics *awsbedrock.InvocationMetrics `json:"amazon-bedrock-invocationMetrics"`
		}
		if err := json.Unmarshal(payload, &chunk); err != nil {
			return "", "", nil, err
		}
		if len(chunk.Completions) == 0 {
			return "", "", chunk.InvocationMetrics, nil
		}
		comp := chunk.Completions[0]
		if comp.FinishReason != nil {
			stopReason = comp.FinishReason.Reason
		}
		return comp.Data.Text, stopReason, chunk.InvocationMetrics, nil
	default:
		var chunk struct {
			InvocationMetrics *awsbedrock.InvocationMetrics `json:"amazon-bedrock-invocationMetrics"`
		}
		if err := json.Unmarshal(payload, &chunk); err != nil {
			return "", "", nil, err
		}
		return "", "", chunk.InvocationMetrics, nil
	}
}

func eventType(msg *eventstream.Message) string {
	return headerValue(msg, ":event-type")
}

func headerValue(msg *eventstream.Message, name string) string {
	for _, h := range msg.Headers {
		if h.Name == name {
			if s, ok := h.Value.(eventstream.StringValue); ok {
				return string(s)
			}
		}
	}
	return ""
}
