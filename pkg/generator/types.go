package generator

import (
	"time"

	"github.com/shouni/yandex-foundation-kit/pkg/domain"
)

const (
	DefaultCompletionURL      = "https://llm.api.cloud.yandex.net/foundationModels/v1/completion"
	DefaultImageGenerationURL = "https://llm.api.cloud.yandex.net/foundationModels/v1/imageGenerationAsync"
	DefaultOperationURL       = "https://operation.api.cloud.yandex.net/operations"

	// DefaultPollInterval はオペレーション照会の間隔です。0 にはできません。
	DefaultPollInterval = time.Second

	artModel        = "yandex-art"
	artModelVersion = "latest"
)

// Endpoints は Foundation Models API のエンドポイント一式です。
type Endpoints struct {
	Completion      string
	ImageGeneration string
	Operation       string
}

// DefaultEndpoints は本番環境のエンドポイントを返します。
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Completion:      DefaultCompletionURL,
		ImageGeneration: DefaultImageGenerationURL,
		Operation:       DefaultOperationURL,
	}
}

// State はオペレーションポーラーの状態です。
type State int

const (
	StateSubmitting State = iota
	StatePolling
	StateSucceeded
	StateFailed
	StateProtocolViolation
	StateTransportFailed
)

var stateNames = map[State]string{
	StateSubmitting:        "Submitting",
	StatePolling:           "Polling",
	StateSucceeded:         "Succeeded",
	StateFailed:            "Failed",
	StateProtocolViolation: "ProtocolViolation",
	StateTransportFailed:   "TransportFailed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// Terminal は以後遷移しない状態かどうかを返します。TransportFailed は 1 回の試行の失敗なので含みません。
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateProtocolViolation
}

// PollResult は 1 回の送信または照会の結果です。
type PollResult struct {
	State State
	// Operation はデコードできたスナップショットです。TransportFailed では nil です。
	Operation *domain.Operation
	// Image は Succeeded のときだけ設定されます。
	Image *domain.ImageResponse
}

// OperationID はスナップショットの ID を返します。
func (r *PollResult) OperationID() string {
	if r == nil || r.Operation == nil {
		return ""
	}
	return r.Operation.ID
}
