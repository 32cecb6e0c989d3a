package bedrock

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"k8s.io/utils/ptr"

	"github.com/yduwcui/bedrock-gateway/internal/apischema/openai"
)

func TestBuildEmbeddingRequest_Cohere(t *testing.T) {
	req := &openai.EmbeddingRequest{
		Model:     "cohere.embed-english-v3",
		Input:     openai.StringOrArray{Values: []string{"hello", "world"}},
		InputType: "search_query",
	}
	bodies, err := BuildEmbeddingRequest(req)
	require.NoError(t, err)
	require.Len(t, bodies, 1)

	got := gjson.ParseBytes(bodies[0])
	require.JSONEq(t, `["hello","world"]`, got.Get("texts").Raw)
	require.Equal(t, "search_query", got.Get("input_type").String())
}

func TestBuildEmbeddingRequest_CohereDefaultInputType(t *testing.T) {
	req := &openai.EmbeddingRequest{
		Model: "cohere.embed-english-v3",
		Input: openai.StringOrArray{Values: []string{"hello"}},
	}
	bodies, err := BuildEmbeddingRequest(req)
	require.NoError(t, err)
	require.Equal(t, cohereDefaultInputType, gjson.GetBytes(bodies[0], "input_type").String())
}

func TestBuildEmbeddingRequest_TitanFansOut(t *testing.T) {
	req := &openai.EmbeddingRequest{
		Model:      "amazon.titan-embed-text-v2:0",
		Input:      openai.StringOrArray{Values: []string{"one", "two", "three"}},
		Dimensions: ptr.To(int64(256)),
	}
	bodies, err := BuildEmbeddingRequest(req)
	require.NoError(t, err)
	require.Len(t, bodies, 3)
	for i, want := range []string{"one", "two", "three"} {
		got := gjson.ParseBytes(bodies[i])
		require.Equal(t, want, got.Get("inputText").String())
		require.Equal(t, int64(256), got.Get("dimensions").Int())
	}
}

func TestBuildEmbeddingRequest_Validation(t *testing.T) {
	_, err := BuildEmbeddingRequest(&openai.EmbeddingRequest{Model: "cohere.embed-english-v3"})
	require.Error(t, err)

	_, err = BuildEmbeddingRequest(&openai.EmbeddingRequest{
		Model: "meta.llama3-8b-instruct-v1:0",
		Input: openai.StringOrArray{Values: []string{"x"}},
	})
	require.Error(t, err)
}

func TestEmbeddingResponseToOpenAI_Cohere(t *testing.T) {
	h := http.Header{}
	h.Set("X-Amzn-Bedrock-Input-Token-Count", "2")

	bodies := [][]byte{[]byte(`{"embeddings":[[0.1,0.2],[0.3,0.4]]}`)}
	resp, err := EmbeddingResponseToOpenAI("cohere.embed-english-v3", bodies, h)
	require.NoError(t, err)

	require.Equal(t, "list", resp.Object)
	require.Len(t, resp.Data, 2)
	require.Equal(t, []float64{0.1, 0.2}, resp.Data[0].Embedding)
	require.Equal(t, 0, resp.Data[0].Index)
	require.Equal(t, 1, resp.Data[1].Index)
	require.Equal(t, 2, resp.Usage.PromptTokens)
	require.Zero(t, resp.Usage.CompletionTokens)
	require.Equal(t, 2, resp.Usage.TotalTokens)
}

func TestEmbeddingResponseToOpenAI_TitanSumsUsage(t *testing.T) {
	bodies := [][]byte{
		[]byte(`{"embedding":[0.1],"inputTextTokenCount":3}`),
		[]byte(`{"embedding":[0.2],"inputTextTokenCount":4}`),
	}
	resp, err := EmbeddingResponseToOpenAI("amazon.titan-embed-text-v2:0", bodies, http.Header{})
	require.NoError(t, err)

	require.Len(t, resp.Data, 2)
	require.Equal(t, []float64{0.2}, resp.Data[1].Embedding)
	require.Equal(t, 7, resp.Usage.PromptTokens)
	require.Equal(t, 7, resp.Usage.TotalTokens)
}

func TestEmbeddingModel(t *testing.T) {
	require.True(t, embeddingModel("cohere.embed-english-v3"))
	require.True(t, embeddingModel("amazon.titan-embed-text-v2:0"))
	require.False(t, embeddingModel("anthropic.claude-3-sonnet-20240229-v1:0"))
}
