package bedrock

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"k8s.io/utils/ptr"

	"github.com/yduwcui/bedrock-gateway/internal/apischema/openai"
)

func TestBuildConverseRequest_TextChat(t *testing.T) {
	canonical := []byte(`{
		"model": "anthropic.claude-3-sonnet-20240229-v1:0",
		"messages": [
			{"role": "system", "content": "You are terse."},
			{"role": "user", "content": "Hi"}
		],
		"max_tokens": 16,
		"temperature": 0.2
	}`)

	out, err := BuildConverseRequest(canonical)
	require.NoError(t, err)

	got := gjson.ParseBytes(out)
	require.Equal(t, "You are terse.", got.Get("system.0.text").String())
	require.Equal(t, int64(1), got.Get("messages.#").Int())
	require.Equal(t, "user", got.Get("messages.0.role").String())
	require.Equal(t, "Hi", got.Get("messages.0.content.0.text").String())
	require.Equal(t, int64(16), got.Get("inferenceConfig.maxTokens").Int())
	require.Equal(t, 0.2, got.Get("inferenceConfig.temperature").Float())
	// The model id travels in the URL path, never in the body.
	require.False(t, got.Get("model").Exists())
	require.False(t, got.Get("modelId").Exists())
}

func TestBuildConverseRequest_DeveloperRoleFoldsIntoSystem(t *testing.T) {
	canonical := []byte(`{
		"model": "anthropic.claude-3-sonnet-20240229-v1:0",
		"messages": [
			{"role": "developer", "content": "Be brief."},
			{"role": "user", "content": "Hi"}
		]
	}`)
	out, err := BuildConverseRequest(canonical)
	require.NoError(t, err)

	got := gjson.ParseBytes(out)
	require.Equal(t, "Be brief.", got.Get("system.0.text").String())
	require.Equal(t, int64(1), got.Get("messages.#").Int())
}

func TestBuildConverseRequest_CoalescesAdjacentUserTurns(t *testing.T) {
	canonical := []byte(`{
		"model": "anthropic.claude-3-sonnet-20240229-v1:0",
		"messages": [
			{"role": "user", "content": "first"},
			{"role": "user", "content": "second"}
		]
	}`)
	out, err := BuildConverseRequest(canonical)
	require.NoError(t, err)

	got := gjson.ParseBytes(out)
	require.Equal(t, int64(1), got.Get("messages.#").Int())
	require.Equal(t, "first", got.Get("messages.0.content.0.text").String())
	require.Equal(t, "second", got.Get("messages.0.content.1.text").String())
}

func TestBuildConverseRequest_ToolsAndChoice(t *testing.T) {
	canonical := []byte(`{
		"model": "anthropic.claude-3-sonnet-20240229-v1:0",
		"messages": [{"role": "user", "content": "What time is it?"}],
		"tools": [{"type": "function", "function": {"name": "get_time", "description": "Current time.", "parameters": {"type": "object", "properties": {}}}}],
		"tool_choice": "auto"
	}`)
	out, err := BuildConverseRequest(canonical)
	require.NoError(t, err)

	got := gjson.ParseBytes(out)
	require.Equal(t, "get_time", got.Get("toolConfig.tools.0.toolSpec.name").String())
	require.Equal(t, "object", got.Get("toolConfig.tools.0.toolSpec.inputSchema.json.type").String())
	require.True(t, got.Get("toolConfig.toolChoice.auto").Exists())
}

func TestBuildConverseRequest_AnthropicFamilyFields(t *testing.T) {
	canonical := []byte(`{
		"model": "anthropic.claude-3-sonnet-20240229-v1:0",
		"messages": [{"role": "user", "content": "Hi"}],
		"top_k": 40
	}`)
	out, err := BuildConverseRequest(canonical)
	require.NoError(t, err)
	require.Equal(t, int64(40),
		gjson.GetBytes(out, "additionalModelRequestFields.top_k").Int())
}

func TestBuildConverseRequest_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing messages", `{"model":"anthropic.claude-3-sonnet-20240229-v1:0"}`},
		{"temperature out of range", `{"model":"anthropic.claude-3-sonnet-20240229-v1:0","messages":[{"role":"user","content":"Hi"}],"temperature":3.5}`},
		{"only system messages", `{"model":"anthropic.claude-3-sonnet-20240229-v1:0","messages":[{"role":"system","content":"x"}]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := BuildConverseRequest([]byte(tc.body))
			require.Error(t, err)
			var gerr *GatewayError
			require.ErrorAs(t, err, &gerr)
			require.Equal(t, 400, gerr.StatusCode)
		})
	}
}

func TestConverseResponseToOpenAI(t *testing.T) {
	providerBody := []byte(`{
		"output": {"message": {"role": "assistant", "content": [{"text": "Hello."}]}},
		"stopReason": "end_turn",
		"usage": {"inputTokens": 7, "outputTokens": 2, "totalTokens": 9}
	}`)

	resp, err := ConverseResponseToOpenAI(providerBody, "anthropic.claude-3-sonnet-20240229-v1:0", false)
	require.NoError(t, err)

	require.Len(t, resp.Choices, 1)
	require.Equal(t, "Hello.", *resp.Choices[0].Message.Content)
	require.Equal(t, "end_turn", resp.Choices[0].FinishReason)
	require.Equal(t, "anthropic.claude-3-sonnet-20240229-v1:0", resp.Model)
	require.Empty(t, cmp.Diff(openai.Usage{
		PromptTokens:     7,
		CompletionTokens: 2,
		TotalTokens:      9,
	}, resp.Usage))
}

func TestConverseResponseToOpenAI_ToolUse(t *testing.T) {
	providerBody := []byte(`{
		"output": {"message": {"role": "assistant", "content": [
			{"toolUse": {"toolUseId": "t1", "name": "get_time", "input": {"tz": "UTC"}}}
		]}},
		"stopReason": "tool_use",
		"usage": {"inputTokens": 10, "outputTokens": 5, "totalTokens": 15}
	}`)

	resp, err := ConverseResponseToOpenAI(providerBody, "anthropic.claude-3-sonnet-20240229-v1:0", false)
	require.NoError(t, err)

	require.Equal(t, "tool_use", resp.Choices[0].FinishReason)
	require.Len(t, resp.Choices[0].Message.ToolCalls, 1)
	call := resp.Choices[0].Message.ToolCalls[0]
	require.Equal(t, "t1", call.ID)
	require.Equal(t, "function", call.Type)
	require.Equal(t, "get_time", call.Function.Name)
	require.JSONEq(t, `{"tz":"UTC"}`, call.Function.Arguments)
}

func TestConverseResponseToOpenAI_ContentFilterNormalized(t *testing.T) {
	providerBody := []byte(`{
		"output": {"message": {"role": "assistant", "content": [{"text": ""}]}},
		"stopReason": "guardrail_intervened"
	}`)
	resp, err := ConverseResponseToOpenAI(providerBody, "anthropic.claude-3-sonnet-20240229-v1:0", false)
	require.NoError(t, err)
	require.Equal(t, openai.FinishReasonContentFilter, resp.Choices[0].FinishReason)
}

func TestConverseResponseToOpenAI_StrictCompliance(t *testing.T) {
	providerBody := []byte(`{
		"output": {"message": {"role": "assistant", "content": [
			{"reasoningContent": {"reasoningText": {"text": "let me think", "signature": "sig"}}},
			{"text": "Answer."}
		]}},
		"stopReason": "end_turn",
		"usage": {"inputTokens": 5, "outputTokens": 3, "totalTokens": 8, "cacheReadInputTokens": 4}
	}`)

	strict, err := ConverseResponseToOpenAI(providerBody, "anthropic.claude-3-sonnet-20240229-v1:0", true)
	require.NoError(t, err)
	require.Nil(t, strict.Choices[0].Message.ContentBlocks)
	require.Nil(t, strict.Usage.CacheReadInputTokens)

	raw, err := json.Marshal(strict)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "content_blocks")
	require.NotContains(t, string(raw), "cache_read_input_tokens")

	relaxed, err := ConverseResponseToOpenAI(providerBody, "anthropic.claude-3-sonnet-20240229-v1:0", false)
	require.NoError(t, err)
	require.Len(t, relaxed.Choices[0].Message.ContentBlocks, 2)
	require.Equal(t, openai.ContentTypeThinking, relaxed.Choices[0].Message.ContentBlocks[0].Type)
	require.Equal(t, ptr.To(4), relaxed.Usage.CacheReadInputTokens)
	// total = prompt + completion + cache_read
	require.Equal(t, 12, relaxed.Usage.TotalTokens)
}

// Round-trip: the response transform recovers the text an echoing provider
// returns for the request transform's output.
func TestConverse_RoundTripText(t *testing.T) {
	canonical := []byte(`{
		"model": "anthropic.claude-3-sonnet-20240229-v1:0",
		"messages": [{"role": "user", "content": "echo me"}]
	}`)
	providerReq, err := BuildConverseRequest(canonical)
	require.NoError(t, err)

	echoed := gjson.GetBytes(providerReq, "messages.0.content.0.text").String()
	providerResp, err := json.Marshal(map[string]any{
		"output": map[string]any{
			"message": map[string]any{
				"role":    "assistant",
				"content": []map[string]any{{"text": echoed}},
			},
		},
		"stopReason": "end_turn",
	})
	require.NoError(t, err)

	resp, err := ConverseResponseToOpenAI(providerResp, "anthropic.claude-3-sonnet-20240229-v1:0", false)
	require.NoError(t, err)
	require.Equal(t, "echo me", *resp.Choices[0].Message.Content)
}
