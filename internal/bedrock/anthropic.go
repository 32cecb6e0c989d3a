package bedrock

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"k8s.io/utils/ptr"

	"github.com/yduwcui/bedrock-gateway/internal/apischema/awsbedrock"
	"github.com/yduwcui/bedrock-gateway/internal/apischema/openai"
)

// Default max_tokens for native Anthropic bodies, which require the field.
const anthropicDefaultMaxTokens = 4096

// BuildAnthropicInvokeRequest maps a canonical chat completion request to the
// native Anthropic messages body Bedrock expects in InvokeModel calls and
// batch record modelInput. System and developer messages fold into the
// top-level system field.
func BuildAnthropicInvokeRequest(canonical []byte) ([]byte, error) {
	body := gjson.ParseBytes(canonical)
	req, err := parseChatRequest(body)
	if err != nil {
		return nil, newValidationError(err.Error())
	}

	out := &awsbedrock.AnthropicInvokeRequest{
		AnthropicVersion: awsbedrock.AnthropicVersionBedrock,
		MaxTokens:        anthropicDefaultMaxTokens,
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		TopK:             req.TopK,
	}
	if req.AnthropicVersion != "" {
		out.AnthropicVersion = req.AnthropicVersion
	}
	if req.MaxCompletionTokens != nil {
		out.MaxTokens = *req.MaxCompletionTokens
	} else if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	}
	out.StopSequences = req.Stop.Values

	var system []string
	for i := range req.Messages {
		msg := &req.Messages[i]
		switch msg.Role {
		case openai.ChatMessageRoleSystem, openai.ChatMessageRoleDeveloper:
			text, err := messageText(msg)
			if err != nil {
				return nil, newValidationError(err.Error())
			}
			system = append(system, text)
		case openai.ChatMessageRoleUser, openai.ChatMessageRoleAssistant:
			content, err := anthropicContent(msg)
			if err != nil {
				return nil, newValidationError(err.Error())
			}
			out.Messages = append(out.Messages, awsbedrock.AnthropicMessage{
				Role:    msg.Role,
				Content: content,
			})
		case openai.ChatMessageRoleTool:
			// Batch inputs carry plain conversations; tool results fold
			// into a user turn with the native tool_result block.
			out.Messages = append(out.Messages, awsbedrock.AnthropicMessage{
				Role: openai.ChatMessageRoleUser,
				Content: []map[string]any{{
					"type":        "tool_result",
					"tool_use_id": msg.ToolCallID,
					"content":     contentString(msg),
				}},
			})
		}
	}
	out.System = strings.Join(system, "\n")

	return json.Marshal(out)
}

// anthropicContent renders a canonical message's content for the native
// messages format: plain string when the message is a bare string, a block
// array otherwise.
func anthropicContent(msg *openai.ChatMessage) (any, error) {
	if msg.Content.Text != nil {
		return *msg.Content.Text, nil
	}
	blocks := make([]map[string]any, 0, len(msg.Content.Parts))
	for i := range msg.Content.Parts {
		part := &msg.Content.Parts[i]
		switch part.Type {
		case openai.ContentTypeText:
			blocks = append(blocks, map[string]any{"type": "text", "text": part.Text})
		case openai.ContentTypeImageURL:
			if part.ImageURL == nil {
				return nil, fmt.Errorf("image_url part without payload")
			}
			contentType, data, err := parseDataURI(part.ImageURL.URL)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, map[string]any{
				"type": "image",
				"source": map[string]any{
					"type":       "base64",
					"media_type": contentType,
					"data":       base64.StdEncoding.EncodeToString(data),
				},
			})
		default:
			return nil, fmt.Errorf("unsupported content part %q", part.Type)
		}
	}
	return blocks, nil
}

func contentString(msg *openai.ChatMessage) string {
	if msg.Content.Text != nil {
		return *msg.Content.Text
	}
	var texts []string
	for i := range msg.Content.Parts {
		if msg.Content.Parts[i].Type == openai.ContentTypeText {
			texts = append(texts, msg.Content.Parts[i].Text)
		}
	}
	return strings.Join(texts, "\n")
}

// AnthropicResponseToOpenAI maps a native Anthropic response (batch record
// modelOutput or raw InvokeModel body) to the canonical chat completion
// response. The stop reason passes through verbatim.
func AnthropicResponseToOpenAI(providerBody []byte, model string) (*openai.ChatCompletionResponse, error) {
	var resp awsbedrock.AnthropicInvokeResponse
	if err := json.Unmarshal(providerBody, &resp); err != nil {
		return nil, newTransformError("unmarshal anthropic response: " + err.Error())
	}

	var texts []string
	for _, block := range resp.Content {
		if block.Type == "text" {
			texts = append(texts, block.Text)
		}
	}
	id := resp.ID
	if id == "" {
		id = "chatcmpl-" + uuid.NewString()
	}
	if model == "" {
		model = resp.Model
	}
	return &openai.ChatCompletionResponse{
		ID:      id,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatResponseMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: ptr.To(strings.Join(texts, "\n")),
			},
			FinishReason: finishReason(resp.StopReason),
		}},
		Usage: openai.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}
