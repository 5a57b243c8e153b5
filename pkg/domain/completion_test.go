package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCompletionRequest(t *testing.T) {
	t.Run("メッセージがなければ MissingField(messages)", func(t *testing.T) {
		_, err := NewCompletionRequest(CompletionParams{})

		var vErr *ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, "messages", vErr.Field)
	})

	t.Run("WithMessage は元のリクエストを変更しない", func(t *testing.T) {
		req, err := NewCompletionRequest(CompletionParams{
			Messages: []Message{{Role: RoleSystem, Text: "You are a professional mathematician"}},
		})
		require.NoError(t, err)

		next := req.WithMessage(Message{Role: RoleUser, Text: "2 + 2?"})

		assert.Len(t, req.Messages(), 1)
		assert.Len(t, next.Messages(), 2)
		assert.Equal(t, RoleUser, next.Messages()[1].Role)
	})
}

func TestCompletionRequest_Payload(t *testing.T) {
	temp := 0.3
	maxTokens := int64(500)
	jsonObject := true
	req, err := NewCompletionRequest(CompletionParams{
		Messages: []Message{
			{Role: RoleSystem, Text: "sys"},
			{Role: RoleUser, Text: "hi"},
		},
		Options: &CompletionOptions{
			Temperature:      &temp,
			MaxTokens:        &maxTokens,
			ReasoningOptions: &ReasoningOptions{Mode: ReasoningDisabled},
		},
		JSONObject: &jsonObject,
		ToolChoice: &ToolChoice{Mode: ToolChoiceAuto},
	})
	require.NoError(t, err)

	body, err := json.Marshal(req.Payload("gpt://folder/yandexgpt/rc"))
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"modelUri": "gpt://folder/yandexgpt/rc",
		"completionOptions": {
			"stream": false,
			"temperature": 0.3,
			"maxTokens": "500",
			"reasoningOptions": {"mode": "DISABLED"}
		},
		"messages": [
			{"role": "system", "text": "sys"},
			{"role": "user", "text": "hi"}
		],
		"jsonObject": true,
		"toolChoice": {"mode": "AUTO"}
	}`, string(body))
}

func TestCompletionResult_Unmarshal(t *testing.T) {
	raw := `{
		"result": {
			"alternatives": [{"message": {"role": "assistant", "text": "Proof: 2 + 2 = 5 — QED"}, "status": "ALTERNATIVE_STATUS_FINAL"}],
			"usage": {"inputTextTokens": "19", "completionTokens": "6", "totalTokens": "25", "completionTokensDetails": {"reasoningTokens": "0"}},
			"modelVersion": "23.10.2024"
		}
	}`

	var res CompletionResult
	require.NoError(t, json.Unmarshal([]byte(raw), &res))

	text, ok := res.FirstText()
	require.True(t, ok)
	assert.Equal(t, "Proof: 2 + 2 = 5 — QED", text)
	assert.Equal(t, int64(25), res.Result.Usage.TotalTokens)
	assert.Equal(t, "ALTERNATIVE_STATUS_FINAL", res.Result.Alternatives[0].Status)
	require.NotNil(t, res.Result.Usage.CompletionTokensDetails)

	var empty CompletionResult
	_, ok = empty.FirstText()
	assert.False(t, ok)
}

func TestParseModel(t *testing.T) {
	m, err := ParseModelType("yandexgpt-lite")
	require.NoError(t, err)
	assert.Equal(t, ModelGPTLite, m)

	v, err := ParseModelVersion("rc")
	require.NoError(t, err)
	assert.Equal(t, VersionRC, v)

	_, err = ParseModelType("gpt-5")
	assert.Error(t, err)
	_, err = ParseModelVersion("nightly")
	assert.Error(t, err)
}
