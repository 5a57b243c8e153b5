package generator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shouni/yandex-foundation-kit/pkg/domain"
	"github.com/shouni/yandex-foundation-kit/pkg/imgutil"
)

// ArtGenerator は YandexART の非同期画像生成を、送信から終端状態まで駆動するポーラーです。
// 1 つの ArtGenerator を複数の goroutine から同時に使えます（オペレーションごとの状態は呼び出し内に閉じます）。
type ArtGenerator struct {
	core         *Core
	pollInterval time.Duration
	pollTimeout  time.Duration
}

// ArtOption は ArtGenerator の設定を変更します。
type ArtOption func(*ArtGenerator)

// WithPollInterval は照会間隔を変更します。0 以下の値は無視して既定値を使います。
func WithPollInterval(d time.Duration) ArtOption {
	return func(g *ArtGenerator) {
		if d > 0 {
			g.pollInterval = d
		}
	}
}

// WithPollTimeout は Wait 全体の上限時間を設定します。0 は無制限です。
func WithPollTimeout(d time.Duration) ArtOption {
	return func(g *ArtGenerator) {
		if d >= 0 {
			g.pollTimeout = d
		}
	}
}

// NewArtGenerator は Core を使う ArtGenerator を初期化します。
func NewArtGenerator(core *Core, opts ...ArtOption) (*ArtGenerator, error) {
	if core == nil {
		return nil, fmt.Errorf("core is required")
	}
	g := &ArtGenerator{
		core:         core,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// PollInterval は現在の照会間隔を返します。
func (g *ArtGenerator) PollInterval() time.Duration { return g.pollInterval }

// Submit は生成リクエストを 1 回だけ送信し、返ってきたオペレーションを分類します。
// モデル URI は認証情報のフォルダ ID から組み立てます。
// 戻り値の PollResult は検証エラー以外では常に非 nil で、State で結果を判定できます。
func (g *ArtGenerator) Submit(ctx context.Context, req *domain.ImageGenerationRequest) (*PollResult, error) {
	if req == nil {
		return nil, domain.MissingField("request")
	}

	creds := g.core.creds.Load()
	payload := req.Payload(ArtModelURI(creds.FolderID))
	seed, hasSeed := req.Seed()
	g.core.logger.InfoContext(ctx, "画像生成をリクエストします",
		"fragments", len(payload.Messages),
		"mime_type", req.MimeType(),
		"aspect_ratio", fmt.Sprintf("%d:%d", req.AspectRatio().WidthRatio, req.AspectRatio().HeightRatio),
		"seed", seed, "has_seed", hasSeed)

	resp, err := g.core.postJSON(ctx, g.core.endpoints.ImageGeneration, creds, payload)
	if err != nil {
		return failedAttempt(err), err
	}
	op, err := decodeOperation(resp)
	if err != nil {
		return failedAttempt(err), err
	}

	res, err := g.classify(ctx, op)
	g.logResult(ctx, "submit", res, err)
	return res, err
}

// Poll はオペレーションの状態を 1 回だけ照会します。通信失敗でも自動で再試行しません。
// 未完了はエラーではなく State == StatePolling で返ります。
func (g *ArtGenerator) Poll(ctx context.Context, operationID string) (*PollResult, error) {
	if operationID == "" {
		return nil, domain.MissingField("operationId")
	}

	creds := g.core.creds.Load()
	url := operationURL(g.core.endpoints.Operation, operationID)
	resp, err := g.core.get(ctx, url, creds)
	if err != nil {
		return failedAttempt(err), err
	}
	op, err := decodeOperation(resp)
	if err != nil {
		var svcErr *domain.ServiceError
		if errors.As(err, &svcErr) {
			svcErr.OperationID = operationID
		}
		return failedAttempt(err), err
	}
	if op.ID != operationID {
		err := &domain.ProtocolViolationError{
			OperationID: operationID,
			Reason:      fmt.Sprintf("polled operation returned a different id %q", op.ID),
		}
		res := &PollResult{State: StateProtocolViolation, Operation: op}
		g.logResult(ctx, "poll", res, err)
		return res, err
	}

	res, err := g.classify(ctx, op)
	g.logResult(ctx, "poll", res, err)
	return res, err
}

// Wait は終端状態になるまで Poll を繰り返します。照会の合間は PollInterval だけ待ちます。
// 通信失敗はその場で呼び出し元へ返します。再試行したい場合は WaitWithRetry を使います。
func (g *ArtGenerator) Wait(ctx context.Context, operationID string) (*domain.ImageResponse, error) {
	ctx, cancel := g.withPollTimeout(ctx)
	defer cancel()

	var tracker modifiedTracker
	for attempt := 1; ; attempt++ {
		res, err := g.Poll(ctx, operationID)
		if err != nil {
			return nil, err
		}
		tracker.observe(ctx, g.core.logger, res.Operation)
		if res.State == StateSucceeded {
			return res.Image, nil
		}

		g.core.logger.DebugContext(ctx, "オペレーションは未完了です", "operation_id", operationID, "attempt", attempt)
		if err := sleepContext(ctx, g.pollInterval); err != nil {
			return nil, fmt.Errorf("operation %s: polling abandoned: %w", operationID, err)
		}
	}
}

// GenerateAndWait は Submit と Wait をまとめて実行します。
func (g *ArtGenerator) GenerateAndWait(ctx context.Context, req *domain.ImageGenerationRequest) (*domain.ImageResponse, error) {
	res, err := g.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	if res.State == StateSucceeded {
		return res.Image, nil
	}

	if err := sleepContext(ctx, g.pollInterval); err != nil {
		return nil, fmt.Errorf("operation %s: polling abandoned: %w", res.OperationID(), err)
	}
	return g.Wait(ctx, res.OperationID())
}

// classify はスナップショットを状態に振り分けます。
func (g *ArtGenerator) classify(ctx context.Context, op *domain.Operation) (*PollResult, error) {
	violation := func(reason string, cause error) (*PollResult, error) {
		return &PollResult{State: StateProtocolViolation, Operation: op},
			&domain.ProtocolViolationError{OperationID: op.ID, Reason: reason, Err: cause}
	}

	switch {
	case op.Error != nil && op.Response != nil:
		return violation("operation carries both error and response", nil)
	case op.Error != nil:
		return &PollResult{State: StateFailed, Operation: op}, &domain.ServiceError{
			StatusCode:  http.StatusOK,
			OperationID: op.ID,
			Code:        op.Error.Code.String(),
			Message:     op.Error.Message,
			Details:     op.Error.Details,
		}
	case !op.Done && op.Response != nil:
		return violation("operation is not done but carries a response", nil)
	case !op.Done:
		return &PollResult{State: StatePolling, Operation: op}, nil
	case op.Response == nil:
		return violation("operation is done without error or response", nil)
	}

	data, err := op.Response.Decode()
	if err != nil {
		return violation("response image is not valid base64", err)
	}
	img := &domain.ImageResponse{
		OperationID:  op.ID,
		Data:         data,
		MimeType:     http.DetectContentType(data),
		ModelVersion: op.Response.ModelVersion,
	}
	if info, err := imgutil.Inspect(data); err == nil {
		img.Width, img.Height = info.Width, info.Height
	} else {
		g.core.logger.WarnContext(ctx, "生成画像のヘッダを解析できませんでした", "operation_id", op.ID, "error", err)
	}
	return &PollResult{State: StateSucceeded, Operation: op, Image: img}, nil
}

func (g *ArtGenerator) logResult(ctx context.Context, phase string, res *PollResult, err error) {
	attrs := []any{"phase", phase, "operation_id", res.OperationID(), "state", res.State.String()}
	if err != nil {
		g.core.logger.WarnContext(ctx, "オペレーションが失敗しました", append(attrs, "error", err)...)
		return
	}
	g.core.logger.InfoContext(ctx, "オペレーションの状態を受信しました", attrs...)
}

func (g *ArtGenerator) withPollTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.pollTimeout > 0 {
		return context.WithTimeout(ctx, g.pollTimeout)
	}
	return context.WithCancel(ctx)
}

// failedAttempt は送信・照会段階のエラーを状態に対応づけます。
func failedAttempt(err error) *PollResult {
	if errors.Is(err, domain.ErrService) {
		return &PollResult{State: StateFailed}
	}
	return &PollResult{State: StateTransportFailed}
}
