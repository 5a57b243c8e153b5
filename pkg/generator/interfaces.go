package generator

import (
	"context"

	"github.com/shouni/yandex-foundation-kit/pkg/domain"
)

// Transport は 1 回の HTTP 呼び出しを担当するアダプターです。
// 非 2xx はエラーにせずそのまま RawResponse で返し、通信自体の失敗だけをエラーにします。
type Transport interface {
	Post(ctx context.Context, url, authHeader string, body []byte) (*domain.RawResponse, error)
	Get(ctx context.Context, url, authHeader string) (*domain.RawResponse, error)
}

// ImageGenerator は画像生成の LRO を扱う窓口です。
type ImageGenerator interface {
	Submit(ctx context.Context, req *domain.ImageGenerationRequest) (*PollResult, error)
	Poll(ctx context.Context, operationID string) (*PollResult, error)
	Wait(ctx context.Context, operationID string) (*domain.ImageResponse, error)
	GenerateAndWait(ctx context.Context, req *domain.ImageGenerationRequest) (*domain.ImageResponse, error)
}

// TextCompleter は同期テキスト生成の窓口です。
type TextCompleter interface {
	Complete(ctx context.Context, model domain.ModelType, version domain.ModelVersion, req *domain.CompletionRequest) (*domain.CompletionResult, error)
}

var (
	_ ImageGenerator = (*ArtGenerator)(nil)
	_ TextCompleter  = (*TextGenerator)(nil)
)
