package generator

import (
	"context"
	"fmt"

	"github.com/shouni/yandex-foundation-kit/pkg/domain"
	"github.com/shouni/yandex-foundation-kit/pkg/utils"
)

// TextGenerator は同期テキスト生成のクライアントです。
// 送信と同時に結果が確定するため、ポーリングは行いません。
type TextGenerator struct {
	core *Core
}

// NewTextGenerator は Core を使う TextGenerator を初期化します。
func NewTextGenerator(core *Core) (*TextGenerator, error) {
	if core == nil {
		return nil, fmt.Errorf("core is required")
	}
	return &TextGenerator{core: core}, nil
}

// Complete はテキスト生成を 1 回実行します。
// モデル URI は認証情報のフォルダ ID と model、version から組み立てます。
func (g *TextGenerator) Complete(ctx context.Context, model domain.ModelType, version domain.ModelVersion, req *domain.CompletionRequest) (*domain.CompletionResult, error) {
	if req == nil {
		return nil, domain.MissingField("request")
	}
	if model == "" {
		return nil, domain.MissingField("model")
	}
	if version == "" {
		version = domain.VersionLatest
	}

	creds := g.core.creds.Load()
	payload := req.Payload(GPTModelURI(creds.FolderID, model, version))
	g.core.logger.InfoContext(ctx, "テキスト生成をリクエストします",
		"model", model, "version", version,
		"messages", len(payload.Messages),
		"temperature", utils.Deref(payload.CompletionOptions.Temperature),
		"max_tokens", utils.Deref(payload.CompletionOptions.MaxTokens))

	resp, err := g.core.postJSON(ctx, g.core.endpoints.Completion, creds, payload)
	if err != nil {
		return nil, err
	}
	res, err := decodeCompletion(resp)
	if err != nil {
		g.core.logger.WarnContext(ctx, "テキスト生成に失敗しました", "model", model, "error", err)
		return nil, err
	}

	g.core.logger.InfoContext(ctx, "テキスト生成が完了しました",
		"model_version", res.Result.ModelVersion,
		"alternatives", len(res.Result.Alternatives),
		"total_tokens", res.Result.Usage.TotalTokens)
	return res, nil
}
