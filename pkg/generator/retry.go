package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shouni/yandex-foundation-kit/pkg/domain"
)

// RetryPolicy は WaitWithRetry が通信失敗とデコード失敗を再試行する範囲です。
// 予算は連続した失敗に対して数え、照会が成功するたびにリセットします。
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// MaxElapsedTime は連続失敗が続く最大時間です。0 は無制限です。
	MaxElapsedTime time.Duration
	// MaxRetries は連続失敗の最大再試行回数です。0 は無制限です。
	MaxRetries uint64
}

// DefaultRetryPolicy は既定の再試行方針を返します。
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		MaxElapsedTime:  2 * time.Minute,
		MaxRetries:      5,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		exp.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		exp.MaxInterval = p.MaxInterval
	}
	exp.MaxElapsedTime = p.MaxElapsedTime

	var b backoff.BackOff = exp
	if p.MaxRetries > 0 {
		b = backoff.WithMaxRetries(b, p.MaxRetries)
	}
	return backoff.WithContext(b, ctx)
}

// isSoftFailure は再試行してよい失敗かどうかを返します。終端状態のエラーは再試行しません。
func isSoftFailure(err error) bool {
	return errors.Is(err, domain.ErrTransport) || errors.Is(err, domain.ErrDecode)
}

// WaitWithRetry は Wait と同じく終端状態まで照会を続けますが、
// TransportFailed と DecodeError だけは policy に従って同じ照会をやり直します。
// Failed と ProtocolViolation は再試行せずにそのまま返します。
func (g *ArtGenerator) WaitWithRetry(ctx context.Context, operationID string, policy RetryPolicy) (*domain.ImageResponse, error) {
	ctx, cancel := g.withPollTimeout(ctx)
	defer cancel()

	b := policy.backOff(ctx)
	var tracker modifiedTracker
	attempt := 0

	operation := func() (*domain.ImageResponse, error) {
		for {
			attempt++
			res, err := g.Poll(ctx, operationID)
			if err != nil {
				if isSoftFailure(err) && ctx.Err() == nil {
					return nil, err
				}
				return nil, backoff.Permanent(err)
			}
			b.Reset()
			tracker.observe(ctx, g.core.logger, res.Operation)
			if res.State == StateSucceeded {
				return res.Image, nil
			}

			g.core.logger.DebugContext(ctx, "オペレーションは未完了です", "operation_id", operationID, "attempt", attempt)
			if err := sleepContext(ctx, g.pollInterval); err != nil {
				return nil, backoff.Permanent(fmt.Errorf("operation %s: polling abandoned: %w", operationID, err))
			}
		}
	}
	notify := func(err error, next time.Duration) {
		g.core.logger.WarnContext(ctx, "照会に失敗したため再試行します",
			"operation_id", operationID, "attempt", attempt, "retry_in", next, "error", err)
	}

	img, err := backoff.RetryNotifyWithData(operation, b, notify)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && err == ctxErr {
			return nil, fmt.Errorf("operation %s: polling abandoned: %w", operationID, ctxErr)
		}
		return nil, err
	}
	return img, nil
}
