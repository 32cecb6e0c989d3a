package bedrock

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"k8s.io/utils/ptr"

	"github.com/yduwcui/bedrock-gateway/internal/apischema/openai"
)

func TestBuildImageRequest_V1(t *testing.T) {
	req := &openai.ImageGenerationRequest{
		Model:          "stability.stable-diffusion-xl-v1",
		Prompt:         "a lighthouse at dusk",
		NegativePrompt: "blurry",
		Size:           "1024x768",
		Steps:          ptr.To(int64(30)),
	}
	out, err := BuildImageRequest(req)
	require.NoError(t, err)

	got := gjson.ParseBytes(out)
	require.Equal(t, "a lighthouse at dusk", got.Get("text_prompts.0.text").String())
	require.Equal(t, "blurry", got.Get("text_prompts.1.text").String())
	require.Equal(t, -1.0, got.Get("text_prompts.1.weight").Float())
	require.Equal(t, int64(1024), got.Get("width").Int())
	require.Equal(t, int64(768), got.Get("height").Int())
	require.Equal(t, int64(30), got.Get("steps").Int())
}

func TestBuildImageRequest_V2(t *testing.T) {
	req := &openai.ImageGenerationRequest{
		Model:          "stability.sd3-large-v1:0",
		Prompt:         "a lighthouse at dusk",
		NegativePrompt: "blurry",
		Size:           "1024x768",
	}
	out, err := BuildImageRequest(req)
	require.NoError(t, err)

	got := gjson.ParseBytes(out)
	require.Equal(t, "a lighthouse at dusk", got.Get("prompt").String())
	require.Equal(t, "blurry", got.Get("negative_prompt").String())
	require.Equal(t, "4:3", got.Get("aspect_ratio").String())
	require.False(t, got.Get("width").Exists())
}

func TestBuildImageRequest_Validation(t *testing.T) {
	_, err := BuildImageRequest(&openai.ImageGenerationRequest{Model: "stability.sd3-large-v1:0"})
	require.Error(t, err)

	_, err = BuildImageRequest(&openai.ImageGenerationRequest{
		Model: "anthropic.claude-3-sonnet-20240229-v1:0", Prompt: "x",
	})
	require.Error(t, err)
}

func TestImageResponseToOpenAI(t *testing.T) {
	v1, err := ImageResponseToOpenAI("stability.stable-diffusion-xl-v1",
		[]byte(`{"artifacts":[{"base64":"aW1n","finishReason":"SUCCESS"}]}`))
	require.NoError(t, err)
	require.Len(t, v1.Data, 1)
	require.Equal(t, "aW1n", v1.Data[0].B64JSON)

	v2, err := ImageResponseToOpenAI("stability.sd3-large-v1:0",
		[]byte(`{"images":["aW1nMg=="]}`))
	require.NoError(t, err)
	require.Len(t, v2.Data, 1)
	require.Equal(t, "aW1nMg==", v2.Data[0].B64JSON)
}

func TestSizeToAspectRatio(t *testing.T) {
	require.Equal(t, "1:1", sizeToAspectRatio("1024x1024"))
	require.Equal(t, "16:9", sizeToAspectRatio("1920x1080"))
	require.Equal(t, "", sizeToAspectRatio("square"))
}
