package bedrock

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestBuildInvokeChatRequest_Llama3(t *testing.T) {
	canonical := []byte(`{
		"model": "meta.llama3-8b-instruct-v1:0",
		"messages": [
			{"role": "system", "content": "Be terse."},
			{"role": "user", "content": "Hi"}
		],
		"max_tokens": 64,
		"temperature": 0.5
	}`)

	out, err := BuildInvokeChatRequest("meta.llama3-8b-instruct-v1:0", canonical)
	require.NoError(t, err)

	got := gjson.ParseBytes(out)
	require.Equal(t,
		"<|begin_of_text|>"+
			"<|start_header_id|>system<|end_header_id|>\n\nBe terse.<|eot_id|>"+
			"<|start_header_id|>user<|end_header_id|>\n\nHi<|eot_id|>"+
			"<|start_header_id|>assistant<|end_header_id|>\n\n",
		got.Get("prompt").String())
	require.Equal(t, int64(64), got.Get("max_gen_len").Int())
	require.Equal(t, 0.5, got.Get("temperature").Float())
}

func TestBuildInvokeChatRequest_Llama2(t *testing.T) {
	canonical := []byte(`{
		"model": "meta.llama2-13b-chat-v1",
		"messages": [
			{"role": "system", "content": "Be terse."},
			{"role": "user", "content": "Hi"},
			{"role": "assistant", "content": "Hello."},
			{"role": "user", "content": "Bye"}
		]
	}`)

	out, err := BuildInvokeChatRequest("meta.llama2-13b-chat-v1", canonical)
	require.NoError(t, err)

	require.Equal(t,
		"<s>[INST] <<SYS>>\nBe terse.\n<</SYS>>\n\nHi [/INST] Hello. </s>"+
			"<s>[INST] Bye [/INST]",
		gjson.GetBytes(out, "prompt").String())
}

func TestBuildInvokeChatRequest_Mistral(t *testing.T) {
	canonical := []byte(`{
		"model": "mistral.mistral-7b-instruct-v0:2",
		"messages": [
			{"role": "user", "content": "Hi"},
			{"role": "assistant", "content": "Hello."},
			{"role": "user", "content": "Bye"}
		],
		"stop": ["END"]
	}`)

	out, err := BuildInvokeChatRequest("mistral.mistral-7b-instruct-v0:2", canonical)
	require.NoError(t, err)

	got := gjson.ParseBytes(out)
	require.Equal(t, "<s>[INST] Hi [/INST] Hello.</s><s>[INST] Bye [/INST]", got.Get("prompt").String())
	require.JSONEq(t, `["END"]`, got.Get("stop").Raw)
}

func TestBuildInvokeChatRequest_Titan(t *testing.T) {
	canonical := []byte(`{
		"model": "amazon.titan-text-express-v1",
		"messages": [
			{"role": "system", "content": "Be terse."},
			{"role": "user", "content": "Hi"},
			{"role": "assistant", "content": "Hello."},
			{"role": "user", "content": "Bye"}
		],
		"max_tokens": 100
	}`)

	out, err := BuildInvokeChatRequest("amazon.titan-text-express-v1", canonical)
	require.NoError(t, err)

	got := gjson.ParseBytes(out)
	require.Equal(t, "Be terse.\n\nUser: Hi\nBot: Hello.\nUser: Bye\nBot:", got.Get("inputText").String())
	require.Equal(t, int64(100), got.Get("textGenerationConfig.maxTokenCount").Int())
}

func TestBuildInvokeChatRequest_PlainFallback(t *testing.T) {
	canonical := []byte(`{
		"model": "ai21.j2-ultra-v1",
		"messages": [
			{"role": "user", "content": "Hi"}
		]
	}`)

	out, err := BuildInvokeChatRequest("ai21.j2-ultra-v1", canonical)
	require.NoError(t, err)
	require.Equal(t, "User: Hi\nAssistant:", gjson.GetBytes(out, "prompt").String())
}

func TestBuildInvokeChatRequest_UnsupportedFamily(t *testing.T) {
	_, err := BuildInvokeChatRequest("stability.sd3-large-v1:0", []byte(`{"messages":[{"role":"user","content":"x"}]}`))
	require.Error(t, err)
}

func TestBuildInvokeCompletionRequest(t *testing.T) {
	canonical := []byte(`{
		"model": "meta.llama3-8b-instruct-v1:0",
		"prompt": "Once upon a time",
		"max_tokens": 32
	}`)

	out, err := BuildInvokeCompletionRequest("meta.llama3-8b-instruct-v1:0", canonical)
	require.NoError(t, err)

	got := gjson.ParseBytes(out)
	require.Equal(t, "Once upon a time", got.Get("prompt").String())
	require.Equal(t, int64(32), got.Get("max_gen_len").Int())
}

func TestBuildInvokeCompletionRequest_ArrayPrompt(t *testing.T) {
	canonical := []byte(`{
		"model": "meta.llama3-8b-instruct-v1:0",
		"prompt": ["a", "b"]
	}`)

	out, err := BuildInvokeCompletionRequest("meta.llama3-8b-instruct-v1:0", canonical)
	require.NoError(t, err)
	require.Equal(t, "a\nb", gjson.GetBytes(out, "prompt").String())
}

func TestHeaderUsage(t *testing.T) {
	h := http.Header{}
	h.Set("X-Amzn-Bedrock-Input-Token-Count", "12")
	h.Set("X-Amzn-Bedrock-Output-Token-Count", "5")

	usage := headerUsage(h)
	require.Equal(t, 12, usage.PromptTokens)
	require.Equal(t, 5, usage.CompletionTokens)
	require.Equal(t, 17, usage.TotalTokens)

	// Missing or garbled headers count as zero.
	empty := headerUsage(http.Header{})
	require.Zero(t, empty.PromptTokens)
	require.Zero(t, empty.TotalTokens)
}

func TestInvokeChatResponseToOpenAI(t *testing.T) {
	h := http.Header{}
	h.Set("X-Amzn-Bedrock-Input-Token-Count", "4")
	h.Set("X-Amzn-Bedrock-Output-Token-Count", "2")

	tests := []struct {
		name   string
		model  string
		body   string
		text   string
		finish string
	}{
		{
			name:   "llama",
			model:  "meta.llama3-8b-instruct-v1:0",
			body:   `{"generation":"Hello.","stop_reason":"stop"}`,
			text:   "Hello.",
			finish: "stop",
		},
		{
			name:   "mistral",
			model:  "mistral.mistral-7b-instruct-v0:2",
			body:   `{"outputs":[{"text":"Hello.","stop_reason":"length"}]}`,
			text:   "Hello.",
			finish: "length",
		},
		{
			name:   "titan",
			model:  "amazon.titan-text-express-v1",
			body:   `{"results":[{"outputText":"Hello.","completionReason":"FINISH"}]}`,
			text:   "Hello.",
			finish: "FINISH",
		},
		{
			name:   "cohere",
			model:  "cohere.command-text-v14",
			body:   `{"generations":[{"text":"Hello.","finish_reason":"COMPLETE"}]}`,
			text:   "Hello.",
			finish: "COMPLETE",
		},
		{
			name:   "ai21",
			model:  "ai21.j2-ultra-v1",
			body:   `{"completions":[{"data":{"text":"Hello."},"finishReason":{"reason":"endoftext"}}]}`,
			text:   "Hello.",
			finish: "endoftext",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := InvokeChatResponseToOpenAI(tc.model, []byte(tc.body), h)
			require.NoError(t, err)
			require.Equal(t, tc.text, *resp.Choices[0].Message.Content)
			require.Equal(t, tc.finish, resp.Choices[0].FinishReason)
			require.Equal(t, 6, resp.Usage.TotalTokens)
		})
	}
}

func TestInvokeChatResponseToOpenAI_MalformedBody(t *testing.T) {
	_, err := InvokeChatResponseToOpenAI("mistral.mistral-7b-instruct-v0:2", []byte(`{}`), http.Header{})
	var gerr *GatewayError
	require.ErrorAs(t, err, &gerr)
	require.Equal(t, http.StatusBadGateway, gerr.StatusCode)
}

func TestInvokeCompletionResponseToOpenAI(t *testing.T) {
	h := http.Header{}
	h.Set("X-Amzn-Bedrock-Input-Token-Count", "3")
	h.Set("X-Amzn-Bedrock-Output-Token-Count", "7")

	resp, err := InvokeCompletionResponseToOpenAI("meta.llama3-8b-instruct-v1:0",
		[]byte(`{"generation":" there was a fox","stop_reason":"stop"}`), h)
	require.NoError(t, err)
	require.Equal(t, "text_completion", resp.Object)
	require.Equal(t, " there was a fox", resp.Choices[0].Text)
	require.Equal(t, "stop", resp.Choices[0].FinishReason)
	require.Equal(t, 10, resp.Usage.TotalTokens)
}
