package bedrock

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yduwcui/bedrock-gateway/internal/apischema/awsbedrock"
	"github.com/yduwcui/bedrock-gateway/internal/apischema/openai"
)

// stabilityV2 reports whether the Stability model uses the V2 (SD3/Core)
// request shape rather than the SDXL text_prompts shape.
func stabilityV2(model string) bool {
	return strings.Contains(model, "sd3") || strings.Contains(model, "stable-image")
}

// BuildImageRequest maps a canonical image generation request to the
// Stability InvokeModel body for the model's generation.
func BuildImageRequest(req *openai.ImageGenerationRequest) ([]byte, error) {
	if modelFamily(req.Model) != "stability" {
		return nil, newValidationError(fmt.Sprintf("model %q is not an image model", req.Model))
	}
	if req.Prompt == "" {
		return nil, newValidationError("prompt is required")
	}

	if stabilityV2(req.Model) {
		out := &awsbedrock.StabilityV2Request{
			Prompt:         req.Prompt,
			NegativePrompt: req.NegativePrompt,
			Seed:           req.Seed,
			AspectRatio:    sizeToAspectRatio(req.Size),
		}
		return json.Marshal(out)
	}

	out := &awsbedrock.StabilityV1Request{
		TextPrompts: []awsbedrock.StabilityTextPrompt{{Text: req.Prompt}},
		CfgScale:    req.CfgScale,
		Steps:       req.Steps,
		Seed:        req.Seed,
		Samples:     req.N,
	}
	if req.NegativePrompt != "" {
		weight := -1.0
		out.TextPrompts = append(out.TextPrompts, awsbedrock.StabilityTextPrompt{
			Text:   req.NegativePrompt,
			Weight: &weight,
		})
	}
	if w, h, ok := parseSize(req.Size); ok {
		out.Width, out.Height = &w, &h
	}
	return json.Marshal(out)
}

// parseSize splits the OpenAI "WxH" size string.
func parseSize(size string) (w, h int64, ok bool) {
	ws, hs, found := strings.Cut(size, "x")
	if !found {
		return 0, 0, false
	}
	w, errW := strconv.ParseInt(ws, 10, 64)
	h, errH := strconv.ParseInt(hs, 10, 64)
	if errW != nil || errH != nil {
		return 0, 0, false
	}
	return w, h, true
}

// sizeToAspectRatio reduces "WxH" to the V2 aspect_ratio string.
func sizeToAspectRatio(size string) string {
	w, h, ok := parseSize(size)
	if !ok || w == 0 || h == 0 {
		return ""
	}
	d := gcd(w, h)
	return fmt.Sprintf("%d:%d", w/d, h/d)
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// ImageResponseToOpenAI maps a Stability response to the canonical image
// generation response. Both generations return base64 payloads.
func ImageResponseToOpenAI(model string, providerBody []byte) (*openai.ImageGenerationResponse, error) {
	out := &openai.ImageGenerationResponse{Created: time.Now().Unix()}
	if stabilityV2(model) {
		var resp awsbedrock.StabilityV2Response
		if err := json.Unmarshal(providerBody, &resp); err != nil {
			return nil, newTransformError("unmarshal stability response: " + err.Error())
		}
		for _, img := range resp.Images {
			out.Data = append(out.Data, openai.ImageData{B64JSON: img})
		}
		return out, nil
	}
	var resp awsbedrock.StabilityV1Response
	if err := json.Unmarshal(providerBody, &resp); err != nil {
		return nil, newTransformError("unmarshal stability response: " + err.Error())
	}
	for _, artifact := range resp.Artifacts {
		out.Data = append(out.Data, openai.ImageData{B64JSON: artifact.Base64})
	}
	return out, nil
}
