package generator

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/shouni/yandex-foundation-kit/pkg/domain"
)

// sleepContext は d だけ待機します。途中でコンテキストが終了した場合はそのエラーを返します。
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// operationURL はオペレーション照会の URL を組み立てます。ID はパスセグメントとしてエスケープします。
func operationURL(base, operationID string) string {
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(operationID)
}

// modifiedTracker は同じオペレーションの modifiedAt が巻き戻っていないかを監視します。
// 巻き戻りはサービス側の問題なので、警告だけ出してポーリングは続けます。
type modifiedTracker struct {
	last *time.Time
}

func (t *modifiedTracker) observe(ctx context.Context, logger *slog.Logger, op *domain.Operation) {
	if op == nil || op.ModifiedAt == nil {
		return
	}
	if t.last != nil && op.ModifiedAt.Before(*t.last) {
		logger.WarnContext(ctx, "modifiedAt が前回より古くなっています",
			"operation_id", op.ID,
			"previous", t.last.Format(time.RFC3339Nano),
			"current", op.ModifiedAt.Format(time.RFC3339Nano))
		return
	}
	t.last = op.ModifiedAt
}
