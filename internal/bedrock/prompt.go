package bedrock

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"k8s.io/utils/ptr"

	"github.com/yduwcui/bedrock-gateway/internal/apischema/awsbedrock"
	"github.com/yduwcui/bedrock-gateway/internal/apischema/openai"
	"github.com/yduwcui/bedrock-gateway/internal/transform"
)

// Usage headers of the InvokeModel API.
const (
	headerInputTokenCount  = "X-Amzn-Bedrock-Input-Token-Count"
	headerOutputTokenCount = "X-Amzn-Bedrock-Output-Token-Count"
)

// Field configs for the invoke-only families. The prompt rule renders the
// canonical messages (or raw prompt) into the family's control-token format.

var llamaChatConfig = transform.FieldConfig{
	"messages":    {{ParamPath: "prompt", Required: true, Transform: promptFromMessages}},
	"max_tokens":  {{ParamPath: "max_gen_len", Transform: converseMaxTokens}},
	"temperature": {{ParamPath: "temperature", Min: ptr.To(0.0), Max: ptr.To(1.0)}},
	"top_p":       {{ParamPath: "top_p", Min: ptr.To(0.0), Max: ptr.To(1.0)}},
}

var mistralChatConfig = transform.FieldConfig{
	"messages":    {{ParamPath: "prompt", Required: true, Transform: promptFromMessages}},
	"max_tokens":  {{ParamPath: "max_tokens", Transform: converseMaxTokens}},
	"temperature": {{ParamPath: "temperature", Min: ptr.To(0.0), Max: ptr.To(1.0)}},
	"top_p":       {{ParamPath: "top_p", Min: ptr.To(0.0), Max: ptr.To(1.0)}},
	"top_k":       {{ParamPath: "top_k"}},
	"stop":        {{ParamPath: "stop", Transform: converseStop}},
}

var titanChatConfig = transform.FieldConfig{
	"messages":    {{ParamPath: "inputText", Required: true, Transform: promptFromMessages}},
	"max_tokens":  {{ParamPath: "textGenerationConfig.maxTokenCount", Transform: converseMaxTokens}},
	"temperature": {{ParamPath: "textGenerationConfig.temperature", Min: ptr.To(0.0), Max: ptr.To(1.0)}},
	"top_p":       {{ParamPath: "textGenerationConfig.topP", Min: ptr.To(0.0), Max: ptr.To(1.0)}},
	"stop":        {{ParamPath: "textGenerationConfig.stopSequences", Transform: converseStop}},
}

var cohereChatConfig = transform.FieldConfig{
	"messages":    {{ParamPath: "prompt", Required: true, Transform: promptFromMessages}},
	"max_tokens":  {{ParamPath: "max_tokens", Transform: converseMaxTokens}},
	"temperature": {{ParamPath: "temperature", Min: ptr.To(0.0), Max: ptr.To(5.0)}},
	"top_p":       {{ParamPath: "p", Min: ptr.To(0.0), Max: ptr.To(1.0)}},
	"top_k":       {{ParamPath: "k"}},
	"stop":        {{ParamPath: "stop_sequences", Transform: converseStop}},
	"n":           {{ParamPath: "num_generations"}},
}

var ai21ChatConfig = transform.FieldConfig{
	"messages":    {{ParamPath: "prompt", Required: true, Transform: promptFromMessages}},
	"max_tokens":  {{ParamPath: "maxTokens", Transform: converseMaxTokens}},
	"temperature": {{ParamPath: "temperature", Min: ptr.To(0.0), Max: ptr.To(1.0)}},
	"top_p":       {{ParamPath: "topP", Min: ptr.To(0.0), Max: ptr.To(1.0)}},
	"stop":        {{ParamPath: "stopSequences", Transform: converseStop}},
	"frequency_penalty": {{ParamPath: "countPenalty.scale"}},
}

// invokeChatConfigs selects the family config for invoke-only chat.
var invokeChatConfigs = map[string]transform.FieldConfig{
	"meta":    llamaChatConfig,
	"mistral": mistralChatConfig,
	"amazon":  titanChatConfig,
	"cohere":  cohereChatConfig,
	"ai21":    ai21ChatConfig,
}

// BuildInvokeChatRequest builds the InvokeModel body for a chat completion
// against an invoke-only model.
func BuildInvokeChatRequest(model string, canonical []byte) ([]byte, error) {
	cfg, ok := invokeChatConfigs[modelFamily(model)]
	if !ok {
		return nil, newValidationError(fmt.Sprintf("model %q is not supported for chat completions", model))
	}
	out, err := transform.Apply(cfg, canonical)
	if err != nil {
		return nil, newValidationError(err.Error())
	}
	return out, nil
}

// BuildInvokeCompletionRequest builds the InvokeModel body for a plain text
// completion. The prompt passes through; the knob mapping is the family's.
func BuildInvokeCompletionRequest(model string, canonical []byte) ([]byte, error) {
	cfg, ok := invokeChatConfigs[modelFamily(model)]
	if !ok {
		return nil, newValidationError(fmt.Sprintf("model %q is not supported for completions", model))
	}
	// Rebind the prompt rule: completions carry a prompt, not messages.
	rebound := transform.FieldConfig{}
	for key, rules := range cfg {
		if key == "messages" {
			rebound["prompt"] = []transform.FieldRule{{
				ParamPath: rules[0].ParamPath,
				Required:  true,
				Transform: completionPrompt,
			}}
			continue
		}
		rebound[key] = rules
	}
	out, err := transform.Apply(rebound, canonical)
	if err != nil {
		return nil, newValidationError(err.Error())
	}
	return out, nil
}

func completionPrompt(body gjson.Result) (any, error) {
	v := body.Get("prompt")
	if !v.Exists() {
		return nil, nil
	}
	if v.Type == gjson.String {
		return v.String(), nil
	}
	var parts []string
	for _, e := range v.Array() {
		parts = append(parts, e.String())
	}
	return strings.Join(parts, "\n"), nil
}

// promptFromMessages renders the canonical messages into the model's native
// prompt format.
func promptFromMessages(body gjson.Result) (any, error) {
	req, err := parseChatRequest(body)
	if err != nil {
		return nil, err
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("request contains no messages")
	}
	turns, err := flattenMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	model := req.Model
	switch {
	case strings.Contains(model, "llama3") || strings.Contains(model, "llama-3"):
		return renderLlama3(turns), nil
	case modelFamily(model) == "meta":
		return renderLlama2(turns), nil
	case modelFamily(model) == "mistral":
		return renderMistral(turns), nil
	case modelFamily(model) == "amazon":
		return renderTitan(turns), nil
	default:
		return renderPlain(turns), nil
	}
}

// turn is a flattened role/text pair used by the prompt renderers.
type turn struct {
	role string
	text string
}

func flattenMessages(messages []openai.ChatMessage) ([]turn, error) {
	turns := make([]turn, 0, len(messages))
	for i := range messages {
		msg := &messages[i]
		text, err := messageText(msg)
		if err != nil {
			return nil, err
		}
		role := msg.Role
		if role == openai.ChatMessageRoleDeveloper {
			role = openai.ChatMessageRoleSystem
		}
		turns = append(turns, turn{role: role, text: text})
	}
	return turns, nil
}

func messageText(msg *openai.ChatMessage) (string, error) {
	if msg.Content.Text != nil {
		return *msg.Content.Text, nil
	}
	var texts []string
	for i := range msg.Content.Parts {
		part := &msg.Content.Parts[i]
		if part.Type != openai.ContentTypeText {
			return "", fmt.Errorf("model does not support %s content parts", part.Type)
		}
		texts = append(texts, part.Text)
	}
	return strings.Join(texts, "\n"), nil
}

// renderLlama3 uses the Llama 3 chat template.
func renderLlama3(turns []turn) string {
	var b strings.Builder
	b.WriteString("<|begin_of_text|>")
	for _, t := range turns {
		b.WriteString("<|start_header_id|>")
		b.WriteString(t.role)
		b.WriteString("<|end_header_id|>\n\n")
		b.WriteString(t.text)
		b.WriteString("<|eot_id|>")
	}
	b.WriteString("<|start_header_id|>assistant<|end_header_id|>\n\n")
	return b.String()
}

// renderLlama2 uses the Llama 2 [INST] template with the system message
// folded into the first user turn.
func renderLlama2(turns []turn) string {
	var system string
	var b strings.Builder
	pendingUser := ""
	flushTurn := func(assistant string) {
		user := pendingUser
		if system != "" {
			user = "<<SYS>>\n" + system + "\n<</SYS>>\n\n" + user
			system = ""
		}
		b.WriteString("<s>[INST] ")
		b.WriteString(user)
		b.WriteString(" [/INST]")
		if assistant != "" {
			b.WriteString(" ")
			b.WriteString(assistant)
			b.WriteString(" </s>")
		}
		pendingUser = ""
	}
	for _, t := range turns {
		switch t.role {
		case openai.ChatMessageRoleSystem:
			system = t.text
		case openai.ChatMessageRoleAssistant:
			flushTurn(t.text)
		default:
			if pendingUser != "" {
				pendingUser += "\n"
			}
			pendingUser += t.text
		}
	}
	if pendingUser != "" || system != "" {
		flushTurn("")
	}
	return b.String()
}

// renderMistral uses one <s>[INST] ... [/INST] per user turn.
func renderMistral(turns []turn) string {
	var b strings.Builder
	for _, t := range turns {
		switch t.role {
		case openai.ChatMessageRoleAssistant:
			b.WriteString(" ")
			b.WriteString(t.text)
			b.WriteString("</s>")
		default:
			b.WriteString("<s>[INST] ")
			b.WriteString(t.text)
			b.WriteString(" [/INST]")
		}
	}
	return b.String()
}

// renderTitan uses the User:/Bot: convention Titan text models expect.
func renderTitan(turns []turn) string {
	var b strings.Builder
	for _, t := range turns {
		switch t.role {
		case openai.ChatMessageRoleSystem:
			b.WriteString(t.text)
			b.WriteString("\n\n")
		case openai.ChatMessageRoleAssistant:
			b.WriteString("Bot: ")
			b.WriteString(t.text)
			b.WriteString("\n")
		default:
			b.WriteString("User: ")
			b.WriteString(t.text)
			b.WriteString("\n")
		}
	}
	b.WriteString("Bot:")
	return b.String()
}

// renderPlain is the fallback for families without a documented template
// (Cohere command text, AI21 Jurassic-2).
func renderPlain(turns []turn) string {
	var b strings.Builder
	for _, t := range turns {
		switch t.role {
		case openai.ChatMessageRoleSystem:
			b.WriteString(t.text)
			b.WriteString("\n\n")
		case openai.ChatMessageRoleAssistant:
			b.WriteString("Assistant: ")
			b.WriteString(t.text)
			b.WriteString("\n")
		default:
			b.WriteString("User: ")
			b.WriteString(t.text)
			b.WriteString("\n")
		}
	}
	b.WriteString("Assistant:")
	return b.String()
}

// invokeGeneration extracts the generated text and stop reason from an
// InvokeModel response body for the model's family.
func invokeGeneration(model string, body []byte) (text, stopReason string, err error) {
	switch modelFamily(model) {
	case "meta":
		var resp awsbedrock.MetaLlamaResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", "", fmt.Errorf("unmarshal llama response: %w", err)
		}
		return resp.Generation, resp.StopReason, nil
	case "mistral":
		var resp awsbedrock.MistralResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", "", fmt.Errorf("unmarshal mistral response: %w", err)
		}
		if len(resp.Outputs) == 0 {
			return "", "", fmt.Errorf("mistral response has no outputs")
		}
		return resp.Outputs[0].Text, resp.Outputs[0].StopReason, nil
	case "amazon":
		var resp awsbedrock.TitanTextResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", "", fmt.Errorf("unmarshal titan response: %w", err)
		}
		if len(resp.Results) == 0 {
			return "", "", fmt.Errorf("titan response has no results")
		}
		return resp.Results[0].OutputText, resp.Results[0].CompletionReason, nil
	case "cohere":
		var resp awsbedrock.CohereCommandResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", "", fmt.Errorf("unmarshal cohere response: %w", err)
		}
		if len(resp.Generations) == 0 {
			return "", "", fmt.Errorf("cohere response has no generations")
		}
		return resp.Generations[0].Text, resp.Generations[0].FinishReason, nil
	case "ai21":
		var resp awsbedrock.AI21CompleteResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", "", fmt.Errorf("unmarshal ai21 response: %w", err)
		}
		if len(resp.Completions) == 0 {
			return "", "", fmt.Errorf("ai21 response has no completions")
		}
		comp := resp.Completions[0]
		if comp.FinishReason != nil {
			stopReason = comp.FinishReason.Reason
		}
		return comp.Data.Text, stopReason, nil
	default:
		return "", "", fmt.Errorf("unsupported invoke family for model %q", model)
	}
}

// headerUsage reads the invoke usage headers; both counts default to zero.
func headerUsage(headers http.Header) openai.Usage {
	in, _ := strconv.Atoi(headers.Get(headerInputTokenCount))
	out, _ := strconv.Atoi(headers.Get(headerOutputTokenCount))
	return openai.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out}
}

// InvokeChatResponseToOpenAI maps an invoke-only unary response to the
// canonical chat completion response. Finish reasons map 1:1 from the
// family's stop reason field.
func InvokeChatResponseToOpenAI(model string, providerBody []byte, headers http.Header) (*openai.ChatCompletionResponse, error) {
	text, stopReason, err := invokeGeneration(model, providerBody)
	if err != nil {
		return nil, newTransformError(err.Error())
	}
	return &openai.ChatCompletionResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatResponseMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: ptr.To(text),
			},
			FinishReason: finishReason(stopReason),
		}},
		Usage: headerUsage(headers),
	}, nil
}

// InvokeCompletionResponseToOpenAI maps an invoke-only unary response to the
// canonical text completion response.
func InvokeCompletionResponseToOpenAI(model string, providerBody []byte, headers http.Header) (*openai.CompletionResponse, error) {
	text, stopReason, err := invokeGeneration(model, providerBody)
	if err != nil {
		return nil, newTransformError(err.Error())
	}
	return &openai.CompletionResponse{
		ID:      "cmpl-" + uuid.NewString(),
		Object:  "text_completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []openai.CompletionChoice{{
			Text:         text,
			FinishReason: finishReason(stopReason),
		}},
		Usage: headerUsage(headers),
	}, nil
}
