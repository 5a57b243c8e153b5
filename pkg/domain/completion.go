package domain

import (
	"encoding/json"
	"fmt"
)

// ModelType はテキスト生成モデルの種類です。
type ModelType string

const (
	ModelGPTLite  ModelType = "yandexgpt-lite"
	ModelGPTPro   ModelType = "yandexgpt"
	ModelLlama8B  ModelType = "llama-lite"
	ModelLlama70B ModelType = "llama"
)

// ModelVersion はモデルのリリースブランチです。
type ModelVersion string

const (
	VersionDeprecated ModelVersion = "deprecated"
	VersionLatest     ModelVersion = "latest"
	VersionRC         ModelVersion = "rc"
)

// ParseModelType は文字列から ModelType を得ます。
func ParseModelType(s string) (ModelType, error) {
	switch m := ModelType(s); m {
	case ModelGPTLite, ModelGPTPro, ModelLlama8B, ModelLlama70B:
		return m, nil
	}
	return "", fmt.Errorf("unknown model type: %q", s)
}

// ParseModelVersion は文字列から ModelVersion を得ます。
func ParseModelVersion(s string) (ModelVersion, error) {
	switch v := ModelVersion(s); v {
	case VersionDeprecated, VersionLatest, VersionRC:
		return v, nil
	}
	return "", fmt.Errorf("unknown model version: %q", s)
}

// Role はメッセージの発言者です。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message は会話の 1 メッセージです。アシスタントの返答もこの型で返ります。
type Message struct {
	Role           Role            `json:"role"`
	Text           string          `json:"text"`
	ToolCallList   *ToolCallList   `json:"toolCallList,omitempty"`
	ToolResultList *ToolResultList `json:"toolResultList,omitempty"`
}

type ToolCallList struct {
	ToolCalls []ToolCall `json:"toolCalls"`
}

type ToolCall struct {
	FunctionCall FunctionCall `json:"functionCall"`
}

type FunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type ToolResultList struct {
	ToolResults []ToolResult `json:"toolResults"`
}

type ToolResult struct {
	FunctionResult FunctionResult `json:"functionResult"`
}

type FunctionResult struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Tool はモデルに公開する関数定義です。
type Tool struct {
	Function Function `json:"function"`
}

type Function struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
	Strict      bool            `json:"strict"`
}

type JSONSchema struct {
	Schema json.RawMessage `json:"schema"`
}

type ToolChoiceMode string

const (
	ToolChoiceUnspecified ToolChoiceMode = "TOOL_CHOICE_MODE_UNSPECIFIED"
	ToolChoiceAuto        ToolChoiceMode = "AUTO"
	ToolChoiceNone        ToolChoiceMode = "NONE"
	ToolChoiceRequired    ToolChoiceMode = "REQUIRED"
)

type ToolChoice struct {
	Mode         ToolChoiceMode `json:"mode"`
	FunctionName string         `json:"functionName,omitempty"`
}

type ReasoningMode string

const (
	ReasoningUnspecified   ReasoningMode = "REASONING_MODE_UNSPECIFIED"
	ReasoningDisabled      ReasoningMode = "DISABLED"
	ReasoningEnabledHidden ReasoningMode = "ENABLED_HIDDEN"
)

type ReasoningOptions struct {
	Mode ReasoningMode `json:"mode"`
}

// CompletionOptions はテキスト生成のオプションです。ストリーミングには対応しません。
type CompletionOptions struct {
	Temperature      *float64
	MaxTokens        *int64
	ReasoningOptions *ReasoningOptions
}

// CompletionParams は CompletionRequest の材料です。
type CompletionParams struct {
	Messages          []Message
	Options           *CompletionOptions
	Tools             []Tool
	JSONObject        *bool
	JSONSchema        *JSONSchema
	ParallelToolCalls *bool
	ToolChoice        *ToolChoice
}

// CompletionRequest は検証済みのテキスト生成要求です。
type CompletionRequest struct {
	params CompletionParams
}

// NewCompletionRequest はメッセージが 1 件以上あることを確認して CompletionRequest を作ります。
func NewCompletionRequest(params CompletionParams) (*CompletionRequest, error) {
	if len(params.Messages) == 0 {
		return nil, MissingField("messages")
	}
	p := params
	p.Messages = append([]Message(nil), params.Messages...)
	p.Tools = append([]Tool(nil), params.Tools...)
	return &CompletionRequest{params: p}, nil
}

// Messages はメッセージのコピーを返します。
func (r *CompletionRequest) Messages() []Message {
	return append([]Message(nil), r.params.Messages...)
}

// WithMessage は msg を末尾に加えた新しいリクエストを返します。会話を続ける用途です。
func (r *CompletionRequest) WithMessage(msg Message) *CompletionRequest {
	p := r.params
	p.Messages = append(r.Messages(), msg)
	return &CompletionRequest{params: p}
}

// CompletionPayload は completion エンドポイントに送る JSON ボディです。
type CompletionPayload struct {
	ModelURI          string                `json:"modelUri"`
	CompletionOptions completionOptionsWire `json:"completionOptions"`
	Messages          []Message             `json:"messages"`
	Tools             []Tool                `json:"tools,omitempty"`
	JSONObject        *bool                 `json:"jsonObject,omitempty"`
	JSONSchema        *JSONSchema           `json:"jsonSchema,omitempty"`
	ParallelToolCalls *bool                 `json:"parallelToolCalls,omitempty"`
	ToolChoice        *ToolChoice           `json:"toolChoice,omitempty"`
}

type completionOptionsWire struct {
	Stream           bool              `json:"stream"`
	Temperature      *float64          `json:"temperature,omitempty"`
	MaxTokens        *int64            `json:"maxTokens,string,omitempty"`
	ReasoningOptions *ReasoningOptions `json:"reasoningOptions,omitempty"`
}

// Payload は modelURI を差し込んだワイヤ表現を返します。stream は常に false です。
func (r *CompletionRequest) Payload(modelURI string) CompletionPayload {
	p := CompletionPayload{
		ModelURI:          modelURI,
		Messages:          r.Messages(),
		Tools:             r.params.Tools,
		JSONObject:        r.params.JSONObject,
		JSONSchema:        r.params.JSONSchema,
		ParallelToolCalls: r.params.ParallelToolCalls,
		ToolChoice:        r.params.ToolChoice,
	}
	if opts := r.params.Options; opts != nil {
		p.CompletionOptions.Temperature = opts.Temperature
		p.CompletionOptions.MaxTokens = opts.MaxTokens
		p.CompletionOptions.ReasoningOptions = opts.ReasoningOptions
	}
	return p
}

// CompletionResult は completion エンドポイントの成功レスポンスです。
type CompletionResult struct {
	Result CompletionOutput `json:"result"`
}

type CompletionOutput struct {
	Alternatives []Alternative `json:"alternatives"`
	Usage        Usage         `json:"usage"`
	ModelVersion string        `json:"modelVersion"`
}

type Alternative struct {
	Message Message `json:"message"`
	Status  string  `json:"status,omitempty"`
}

// Usage のトークン数は proto JSON の int64 として文字列で届きます。
type Usage struct {
	InputTextTokens         int64                    `json:"inputTextTokens,string"`
	CompletionTokens        int64                    `json:"completionTokens,string"`
	TotalTokens             int64                    `json:"totalTokens,string"`
	CompletionTokensDetails *CompletionTokensDetails `json:"completionTokensDetails,omitempty"`
}

type CompletionTokensDetails struct {
	ReasoningTokens int64 `json:"reasoningTokens,string"`
}

// FirstText は最初の候補のテキストを返します。
func (r *CompletionResult) FirstText() (string, bool) {
	if r == nil || len(r.Result.Alternatives) == 0 {
		return "", false
	}
	return r.Result.Alternatives[0].Message.Text, true
}
