package transform

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"k8s.io/utils/ptr"
)

func TestApply_CopyAndDefaults(t *testing.T) {
	cfg := FieldConfig{
		"temperature": {{ParamPath: "inferenceConfig.temperature"}},
		"max_tokens":  {{ParamPath: "inferenceConfig.maxTokens", Default: 512}},
		"top_p":       {{ParamPath: "inferenceConfig.topP"}},
	}
	out, err := Apply(cfg, []byte(`{"temperature":0.2}`))
	require.NoError(t, err)

	got := gjson.ParseBytes(out)
	require.Equal(t, 0.2, got.Get("inferenceConfig.temperature").Float())
	require.Equal(t, int64(512), got.Get("inferenceConfig.maxTokens").Int())
	require.False(t, got.Get("inferenceConfig.topP").Exists())
}

func TestApply_RequiredMissing(t *testing.T) {
	cfg := FieldConfig{
		"messages": {{ParamPath: "messages", Required: true}},
	}
	_, err := Apply(cfg, []byte(`{"model":"m"}`))
	require.ErrorIs(t, err, ErrMissingRequiredField)
}

func TestApply_Range(t *testing.T) {
	cfg := FieldConfig{
		"temperature": {{ParamPath: "temperature", Min: ptr.To(0.0), Max: ptr.To(1.0)}},
	}
	_, err := Apply(cfg, []byte(`{"temperature":1.5}`))
	require.ErrorIs(t, err, ErrOutOfRange)

	out, err := Apply(cfg, []byte(`{"temperature":1.0}`))
	require.NoError(t, err)
	require.Equal(t, 1.0, gjson.GetBytes(out, "temperature").Float())
}

func TestApply_Transform(t *testing.T) {
	cfg := FieldConfig{
		"stop": {{ParamPath: "stopSequences", Transform: func(body gjson.Result) (any, error) {
			v := body.Get("stop")
			if !v.Exists() {
				return nil, nil
			}
			if v.Type == gjson.String {
				return []string{v.String()}, nil
			}
			var out []string
			for _, e := range v.Array() {
				out = append(out, e.String())
			}
			return out, nil
		}}},
	}

	out, err := Apply(cfg, []byte(`{"stop":"END"}`))
	require.NoError(t, err)
	require.JSONEq(t, `{"stopSequences":["END"]}`, string(out))

	out, err = Apply(cfg, []byte(`{"stop":["a","b"]}`))
	require.NoError(t, err)
	require.JSONEq(t, `{"stopSequences":["a","b"]}`, string(out))

	out, err = Apply(cfg, []byte(`{}`))
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(out))
}

func TestApply_Fanout(t *testing.T) {
	cfg := FieldConfig{
		"n": {
			{ParamPath: "numGenerations"},
			{ParamPath: "candidateCount"},
		},
	}
	out, err := Apply(cfg, []byte(`{"n":3}`))
	require.NoError(t, err)
	require.JSONEq(t, `{"numGenerations":3,"candidateCount":3}`, string(out))
}

func TestApply_ConflictingPlacement(t *testing.T) {
	cfg := FieldConfig{
		"a": {{ParamPath: "x"}},
		"b": {{ParamPath: "x"}},
	}
	_, err := Apply(cfg, []byte(`{"a":1,"b":2}`))
	require.ErrorIs(t, err, ErrConflictingPlacement)

	// Identical values at the same path are not a conflict.
	out, err := Apply(cfg, []byte(`{"a":1,"b":1}`))
	require.NoError(t, err)
	require.JSONEq(t, `{"x":1}`, string(out))
}

func TestApply_Deterministic(t *testing.T) {
	cfg := FieldConfig{
		"b": {{ParamPath: "p.b"}},
		"a": {{ParamPath: "p.a"}},
		"c": {{ParamPath: "p.c"}},
	}
	body := []byte(`{"a":1,"b":2,"c":3}`)
	first, err := Apply(cfg, body)
	require.NoError(t, err)
	for range 10 {
		out, err := Apply(cfg, body)
		require.NoError(t, err)
		require.Empty(t, cmp.Diff(string(first), string(out)))
	}
}
