package bedrock

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"k8s.io/utils/ptr"

	"github.com/yduwcui/bedrock-gateway/internal/apischema/awsbedrock"
	"github.com/yduwcui/bedrock-gateway/internal/apischema/openai"
	"github.com/yduwcui/bedrock-gateway/internal/transform"
)

// converseChatConfig is the declarative canonical→Converse mapping for chat
// completions. Structural fields (messages, tools) fan out through transform
// functions; scalar knobs collapse into inferenceConfig; family-specific
// parameters merge into additionalModelRequestFields.
var converseChatConfig = transform.FieldConfig{
	"messages": {
		{ParamPath: "system", Transform: converseSystem},
		{ParamPath: "messages", Required: true, Transform: converseMessages},
	},
	"max_tokens": {
		{ParamPath: "inferenceConfig.maxTokens", Transform: converseMaxTokens},
	},
	"temperature": {
		{ParamPath: "inferenceConfig.temperature", Min: ptr.To(0.0), Max: ptr.To(2.0)},
	},
	"top_p": {
		{ParamPath: "inferenceConfig.topP", Min: ptr.To(0.0), Max: ptr.To(1.0)},
	},
	"stop": {
		{ParamPath: "inferenceConfig.stopSequences", Transform: converseStop},
	},
	"tools": {
		{ParamPath: "toolConfig.tools", Transform: converseTools},
	},
	"tool_choice": {
		{ParamPath: "toolConfig.toolChoice", Transform: converseToolChoice},
	},
	"model": {
		{ParamPath: "additionalModelRequestFields", Transform: converseFamilyFields},
	},
	"guardrail_config": {
		{ParamPath: "guardrailConfig", Transform: copyJSON("guardrail_config")},
	},
}

// BuildConverseRequest produces the Converse request body for a canonical
// chat completion body.
func BuildConverseRequest(canonical []byte) ([]byte, error) {
	out, err := transform.Apply(converseChatConfig, canonical)
	if err != nil {
		return nil, newValidationError(err.Error())
	}
	return out, nil
}

func parseChatRequest(body gjson.Result) (*openai.ChatCompletionRequest, error) {
	var req openai.ChatCompletionRequest
	if err := json.Unmarshal([]byte(body.Raw), &req); err != nil {
		return nil, fmt.Errorf("invalid chat completion request: %w", err)
	}
	return &req, nil
}

func copyJSON(key string) func(gjson.Result) (any, error) {
	return func(body gjson.Result) (any, error) {
		v := body.Get(key)
		if !v.Exists() {
			return nil, nil
		}
		return json.RawMessage(v.Raw), nil
	}
}

// converseMaxTokens prefers max_completion_tokens over the deprecated
// max_tokens, mirroring the OpenAI deprecation order.
func converseMaxTokens(body gjson.Result) (any, error) {
	if v := body.Get("max_completion_tokens"); v.Exists() {
		return v.Int(), nil
	}
	if v := body.Get("max_tokens"); v.Exists() {
		return v.Int(), nil
	}
	return nil, nil
}

func converseStop(body gjson.Result) (any, error) {
	v := body.Get("stop")
	if !v.Exists() {
		return nil, nil
	}
	if v.Type == gjson.String {
		return []string{v.String()}, nil
	}
	var seqs []string
	for _, e := range v.Array() {
		seqs = append(seqs, e.String())
	}
	if len(seqs) == 0 {
		return nil, nil
	}
	return seqs, nil
}

// converseSystem folds system and developer messages into the Converse
// system block list. A cache-marked message appends a cachePoint entry.
func converseSystem(body gjson.Result) (any, error) {
	req, err := parseChatRequest(body)
	if err != nil {
		return nil, err
	}
	var system []*awsbedrock.SystemContentBlock
	for i := range req.Messages {
		msg := &req.Messages[i]
		if msg.Role != openai.ChatMessageRoleSystem && msg.Role != openai.ChatMessageRoleDeveloper {
			continue
		}
		if msg.Content.Text != nil {
			system = append(system, &awsbedrock.SystemContentBlock{Text: *msg.Content.Text})
		}
		for j := range msg.Content.Parts {
			part := &msg.Content.Parts[j]
			if part.Type != openai.ContentTypeText {
				continue
			}
			system = append(system, &awsbedrock.SystemContentBlock{Text: part.Text})
			if part.CacheControl != nil {
				system = append(system, &awsbedrock.SystemContentBlock{CachePoint: &awsbedrock.CachePoint{Type: "default"}})
			}
		}
		if msg.CacheControl != nil {
			system = append(system, &awsbedrock.SystemContentBlock{CachePoint: &awsbedrock.CachePoint{Type: "default"}})
		}
	}
	if len(system) == 0 {
		return nil, nil
	}
	return system, nil
}

// converseMessages converts the canonical message list, stripping system
// messages and coalescing adjacent messages that land on the same Converse
// role (tool results become user turns).
func converseMessages(body gjson.Result) (any, error) {
	req, err := parseChatRequest(body)
	if err != nil {
		return nil, err
	}
	var out []*awsbedrock.Message
	for i := range req.Messages {
		msg := &req.Messages[i]
		var converted *awsbedrock.Message
		switch msg.Role {
		case openai.ChatMessageRoleSystem, openai.ChatMessageRoleDeveloper:
			continue
		case openai.ChatMessageRoleUser:
			converted, err = converseUserMessage(msg)
		case openai.ChatMessageRoleAssistant:
			converted, err = converseAssistantMessage(msg)
		case openai.ChatMessageRoleTool:
			converted, err = converseToolMessage(msg)
		default:
			return nil, fmt.Errorf("unexpected message role: %s", msg.Role)
		}
		if err != nil {
			return nil, err
		}
		// Bedrock rejects consecutive same-role turns; merge content blocks
		// of adjacent user/tool messages into one turn.
		if n := len(out); n > 0 && out[n-1].Role == converted.Role && converted.Role == awsbedrock.ConversationRoleUser {
			out[n-1].Content = append(out[n-1].Content, converted.Content...)
			continue
		}
		out = append(out, converted)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("request contains no user or assistant messages")
	}
	return out, nil
}

func converseUserMessage(msg *openai.ChatMessage) (*awsbedrock.Message, error) {
	out := &awsbedrock.Message{Role: awsbedrock.ConversationRoleUser}
	if msg.Content.Text != nil {
		out.Content = []*awsbedrock.ContentBlock{{Text: msg.Content.Text}}
	}
	for i := range msg.Content.Parts {
		part := &msg.Content.Parts[i]
		block, err := converseContentBlock(part)
		if err != nil {
			return nil, err
		}
		if block != nil {
			out.Content = append(out.Content, block)
		}
		if part.CacheControl != nil {
			out.Content = append(out.Content, &awsbedrock.ContentBlock{CachePoint: &awsbedrock.CachePoint{Type: "default"}})
		}
	}
	if msg.CacheControl != nil {
		out.Content = append(out.Content, &awsbedrock.ContentBlock{CachePoint: &awsbedrock.CachePoint{Type: "default"}})
	}
	return out, nil
}

// finishReason maps a provider stop reason to the canonical finish_reason.
// Guardrail and content-filter stops normalize to content_filter; every
// other value passes through verbatim.
func finishReason(stopReason string) string {
	switch stopReason {
	case "":
		return openai.FinishReasonStop
	case awsbedrock.StopReasonGuardrailIntervened, awsbedrock.StopReasonContentFiltered:
		return openai.FinishReasonContentFilter
	default:
		return stopReason
	}
}

// regDataURI follows the web data URI syntax.
var regDataURI = regexp.MustCompile(`\Adata:(.+?)?(;base64)?,`)

// parseDataURI decodes data:{mime};base64,{payload}.
func parseDataURI(uri string) (contentType string, data []byte, err error) {
	matches := regDataURI.FindStringSubmatch(uri)
	if len(matches) != 3 {
		return "", nil, fmt.Errorf("data uri does not have a valid format")
	}
	data, err = base64.StdEncoding.DecodeString(uri[len(matches[0]):])
	if err != nil {
		return "", nil, err
	}
	return matches[1], data, nil
}

// imageFormats maps supported image MIME subtypes to Converse formats.
var imageFormats = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpeg",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// documentFormats maps document MIME types to Converse document formats.
var documentFormats = map[string]string{
	"application/pdf": "pdf",
	"text/plain":      "txt",
	"text/csv":        "csv",
	"text/html":       "html",
	"text/markdown":   "md",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "docx",
}

func converseContentBlock(part *openai.ContentPart) (*awsbedrock.ContentBlock, error) {
	switch part.Type {
	case openai.ContentTypeText:
		return &awsbedrock.ContentBlock{Text: ptr.To(part.Text)}, nil
	case openai.ContentTypeThinking:
		rt := &awsbedrock.ReasoningTextBlock{Text: part.Thinking, Signature: part.Signature}
		if rt.Text == "" {
			rt.Text = part.Text
		}
		return &awsbedrock.ContentBlock{ReasoningContent: &awsbedrock.ReasoningContentBlock{ReasoningText: rt}}, nil
	case openai.ContentTypeRedactedThinking:
		return &awsbedrock.ContentBlock{ReasoningContent: &awsbedrock.ReasoningContentBlock{
			RedactedContent: []byte(part.Data),
		}}, nil
	case openai.ContentTypeImageURL:
		if part.ImageURL == nil {
			return nil, fmt.Errorf("image_url part without image_url")
		}
		contentType, data, err := parseDataURI(part.ImageURL.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse image URL: %w", err)
		}
		if format, ok := imageFormats[contentType]; ok {
			return &awsbedrock.ContentBlock{Image: &awsbedrock.ImageBlock{
				Format: format,
				Source: awsbedrock.ImageSource{Bytes: data},
			}}, nil
		}
		if format, ok := documentFormats[contentType]; ok {
			return &awsbedrock.ContentBlock{Document: &awsbedrock.DocumentBlock{
				Format: format,
				Name:   documentName(""),
				Source: awsbedrock.DocumentSource{Bytes: data},
			}}, nil
		}
		return nil, fmt.Errorf("unsupported content type %q, use one of [png, jpeg, gif, webp] images or a document type", contentType)
	case openai.ContentTypeFile:
		if part.File == nil {
			return nil, fmt.Errorf("file part without file")
		}
		block := &awsbedrock.DocumentBlock{
			Format: documentFormat(part.File.Filename),
			Name:   documentName(part.File.Filename),
		}
		switch {
		case part.File.FileURL != "":
			block.Source = awsbedrock.DocumentSource{S3Location: &awsbedrock.S3Location{URI: part.File.FileURL}}
		case part.File.FileData != "":
			_, data, err := parseDataURI(part.File.FileData)
			if err != nil {
				// Not a data URI; treat as raw base64.
				data, err = base64.StdEncoding.DecodeString(part.File.FileData)
				if err != nil {
					return nil, fmt.Errorf("failed to decode file data: %w", err)
				}
			}
			block.Source = awsbedrock.DocumentSource{Bytes: data}
		default:
			return nil, fmt.Errorf("file part requires file_url or file_data")
		}
		return &awsbedrock.ContentBlock{Document: block}, nil
	default:
		return nil, fmt.Errorf("unexpected content part type: %s", part.Type)
	}
}

func documentFormat(filename string) string {
	if i := strings.LastIndexByte(filename, '.'); i >= 0 {
		return strings.ToLower(filename[i+1:])
	}
	return "pdf"
}

func documentName(filename string) string {
	if filename == "" {
		return "document"
	}
	name := filename
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	return name
}

func converseAssistantMessage(msg *openai.ChatMessage) (*awsbedrock.Message, error) {
	out := &awsbedrock.Message{Role: awsbedrock.ConversationRoleAssistant, Content: []*awsbedrock.ContentBlock{}}
	if msg.Content.Text != nil && *msg.Content.Text != "" {
		out.Content = append(out.Content, &awsbedrock.ContentBlock{Text: msg.Content.Text})
	}
	for i := range msg.Content.Parts {
		part := &msg.Content.Parts[i]
		switch part.Type {
		case openai.ContentTypeText, openai.ContentTypeThinking, openai.ContentTypeRedactedThinking:
			block, err := converseContentBlock(part)
			if err != nil {
				return nil, err
			}
			out.Content = append(out.Content, block)
		default:
			return nil, fmt.Errorf("unexpected assistant content part type: %s", part.Type)
		}
	}
	for i := range msg.ToolCalls {
		call := &msg.ToolCalls[i]
		var input map[string]any
		if err := json.Unmarshal([]byte(call.Function.Arguments), &input); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tool call arguments: %w", err)
		}
		out.Content = append(out.Content, &awsbedrock.ContentBlock{ToolUse: &awsbedrock.ToolUseBlock{
			Name:      call.Function.Name,
			ToolUseID: call.ID,
			Input:     input,
		}})
	}
	return out, nil
}

// converseToolMessage renders a tool result as a user turn. The tool result
// content is always a list, and an empty result stays an empty list.
func converseToolMessage(msg *openai.ChatMessage) (*awsbedrock.Message, error) {
	content := []*awsbedrock.ToolResultContentBlock{}
	if msg.Content.Text != nil && *msg.Content.Text != "" {
		content = append(content, &awsbedrock.ToolResultContentBlock{Text: msg.Content.Text})
	}
	for i := range msg.Content.Parts {
		part := &msg.Content.Parts[i]
		if part.Type != openai.ContentTypeText {
			return nil, fmt.Errorf("unexpected tool content part type: %s", part.Type)
		}
		content = append(content, &awsbedrock.ToolResultContentBlock{Text: ptr.To(part.Text)})
	}
	return &awsbedrock.Message{
		Role: awsbedrock.ConversationRoleUser,
		Content: []*awsbedrock.ContentBlock{{
			ToolResult: &awsbedrock.ToolResultBlock{
				Content:   content,
				ToolUseID: ptr.To(msg.ToolCallID),
			},
		}},
	}, nil
}

// converseTools builds the tool list. Cache-marked tools are followed by a
// cachePoint entry on families that support it (Amazon excluded).
func converseTools(body gjson.Result) (any, error) {
	req, err := parseChatRequest(body)
	if err != nil {
		return nil, err
	}
	if len(req.Tools) == 0 {
		return nil, nil
	}
	allowCachePoints := modelFamily(req.Model) != "amazon"
	tools := make([]*awsbedrock.Tool, 0, len(req.Tools))
	for i := range req.Tools {
		def := &req.Tools[i]
		if def.Function == nil {
			continue
		}
		var desc *string
		if def.Function.Description != "" {
			desc = ptr.To(def.Function.Description)
		}
		tools = append(tools, &awsbedrock.Tool{ToolSpec: &awsbedrock.ToolSpecification{
			Name:        ptr.To(def.Function.Name),
			Description: desc,
			InputSchema: &awsbedrock.ToolInputSchema{JSON: def.Function.Parameters},
		}})
		if def.CacheControl != nil && allowCachePoints {
			tools = append(tools, &awsbedrock.Tool{CachePoint: &awsbedrock.CachePoint{Type: "default"}})
		}
	}
	return tools, nil
}

func converseToolChoice(body gjson.Result) (any, error) {
	req, err := parseChatRequest(body)
	if err != nil {
		return nil, err
	}
	if req.ToolChoice == nil || len(req.Tools) == 0 {
		return nil, nil
	}
	if req.ToolChoice.Function != "" {
		return &awsbedrock.ToolChoice{Tool: &awsbedrock.SpecificToolChoice{Name: ptr.To(req.ToolChoice.Function)}}, nil
	}
	switch req.ToolChoice.Mode {
	case "auto":
		return &awsbedrock.ToolChoice{Auto: &awsbedrock.AutoToolChoice{}}, nil
	case "required", "any":
		return &awsbedrock.ToolChoice{Any: &awsbedrock.AnyToolChoice{}}, nil
	case "none", "":
		return nil, nil
	default:
		// Claude accepts forcing a named tool given as a bare string.
		if modelFamily(req.Model) == "anthropic" {
			return &awsbedrock.ToolChoice{Tool: &awsbedrock.SpecificToolChoice{Name: ptr.To(req.ToolChoice.Mode)}}, nil
		}
		return nil, nil
	}
}

// converseFamilyFields merges family-specific knobs into
// additionalModelRequestFields.
func converseFamilyFields(body gjson.Result) (any, error) {
	fields := map[string]any{}
	switch modelFamily(body.Get("model").String()) {
	case "anthropic":
		if v := body.Get("top_k"); v.Exists() {
			fields["top_k"] = v.Int()
		}
		if v := body.Get("anthropic_version"); v.Exists() {
			fields["anthropic_version"] = v.String()
		}
		if v := body.Get("thinking"); v.Exists() {
			fields["thinking"] = json.RawMessage(v.Raw)
		}
	case "cohere":
		if v := body.Get("frequency_penalty"); v.Exists() {
			fields["frequency_penalty"] = v.Float()
		}
		if v := body.Get("presence_penalty"); v.Exists() {
			fields["presence_penalty"] = v.Float()
		}
		if v := body.Get("logit_bias"); v.Exists() {
			fields["logit_bias"] = json.RawMessage(v.Raw)
		}
		if v := body.Get("n"); v.Exists() {
			fields["num_generations"] = v.Int()
		}
	case "ai21":
		if v := body.Get("frequency_penalty"); v.Exists() {
			fields["countPenalty"] = map[string]any{"scale": v.Float()}
		}
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return fields, nil
}

// ConverseResponseToOpenAI maps the unary Converse response to the canonical
// chat completion response. The model is echoed from the request since
// Bedrock omits it.
func ConverseResponseToOpenAI(providerBody []byte, model string, strict bool) (*openai.ChatCompletionResponse, error) {
	var resp awsbedrock.ConverseResponse
	if err := json.Unmarshal(providerBody, &resp); err != nil {
		return nil, newTransformError(fmt.Sprintf("failed to unmarshal Converse response: %v", err))
	}
	if resp.Output == nil {
		return nil, newTransformError("Converse response has no output")
	}

	out := &openai.ChatCompletionResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
	}
	if resp.Usage != nil {
		out.Usage = converseUsage(resp.Usage, strict)
	}

	choice := openai.ChatCompletionChoice{
		Message:      openai.ChatResponseMessage{Role: openai.ChatMessageRoleAssistant},
		FinishReason: openai.FinishReasonStop,
	}
	if resp.StopReason != nil {
		choice.FinishReason = finishReason(*resp.StopReason)
	}

	var texts []string
	var blocks []openai.ContentBlock
	for _, block := range resp.Output.Message.Content {
		switch {
		case block.Text != nil:
			texts = append(texts, *block.Text)
			blocks = append(blocks, openai.ContentBlock{Type: openai.ContentTypeText, Text: *block.Text})
		case block.ToolUse != nil:
			args, err := json.Marshal(block.ToolUse.Input)
			if err != nil {
				return nil, newTransformError(fmt.Sprintf("failed to marshal tool input: %v", err))
			}
			choice.Message.ToolCalls = append(choice.Message.ToolCalls, openai.ToolCall{
				ID:   block.ToolUse.ToolUseID,
				Type: "function",
				Function: openai.ToolCallFunction{
					Name:      block.ToolUse.Name,
					Arguments: string(args),
				},
			})
		case block.ReasoningContent != nil:
			rc := block.ReasoningContent
			switch {
			case rc.ReasoningText != nil:
				blocks = append(blocks, openai.ContentBlock{
					Type:      openai.ContentTypeThinking,
					Thinking:  rc.ReasoningText.Text,
					Signature: rc.ReasoningText.Signature,
				})
			case rc.RedactedContent != nil:
				blocks = append(blocks, openai.ContentBlock{
					Type: openai.ContentTypeRedactedThinking,
					Data: base64.StdEncoding.EncodeToString(rc.RedactedContent),
				})
			}
		}
	}
	choice.Message.Content = ptr.To(strings.Join(texts, "\n"))
	if !strict && len(blocks) > 0 {
		choice.Message.ContentBlocks = blocks
	}
	out.Choices = append(out.Choices, choice)
	return out, nil
}

// converseUsage maps the Converse token block; cache counters are reported
// only when nonzero and strict compliance is off.
func converseUsage(u *awsbedrock.TokenUsage, strict bool) openai.Usage {
	out := openai.Usage{
		PromptTokens:     u.InputTokens,
		CompletionTokens: u.OutputTokens,
		TotalTokens:      u.TotalTokens,
	}
	if strict {
		return out
	}
	if u.CacheReadInputTokens != nil && *u.CacheReadInputTokens > 0 {
		out.CacheReadInputTokens = u.CacheReadInputTokens
	}
	if u.CacheCreationInputTokens != nil && *u.CacheCreationInputTokens > 0 {
		out.CacheCreationInputTokens = u.CacheCreationInputTokens
	}
	// Cached tokens count toward the total so that
	// total = prompt + completion + cache_read + cache_creation holds.
	if out.CacheReadInputTokens != nil || out.CacheCreationInputTokens != nil {
		out.TotalTokens = out.PromptTokens + out.CompletionTokens
		if out.CacheReadInputTokens != nil {
			out.TotalTokens += *out.CacheReadInputTokens
		}
		if out.CacheCreationInputTokens != nil {
			out.TotalTokens += *out.CacheCreationInputTokens
		}
	}
	return out
}
