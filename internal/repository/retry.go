package repository

import (
	"context"
	"log/slog"
	"time"
)

// RetryPolicy は読み取り操作の一時的エラーに対するリトライ方針。
// 書き込み操作はリトライしない。
type RetryPolicy struct {
	Attempts int           // 最大試行回数（初回を含む）
	Backoff  time.Duration // 初回リトライまでの待機時間。以降は2倍ずつ増加する
}

// DefaultRetryPolicy はデフォルトのリトライ方針を返す。
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts: 3,
		Backoff:  100 * time.Millisecond,
	}
}

// maxRetryBackoff はリトライ待機時間の上限。
const maxRetryBackoff = 2 * time.Second

// readWithRetry は読み取り操作fnを実行し、一時的エラーの場合のみ有限回リトライする。
// 一時的でないエラーやコンテキストのキャンセルは即座に返す。
func readWithRetry(ctx context.Context, policy RetryPolicy, op string, fn func() error) error {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := policy.Backoff

	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil || !IsTransient(err) {
			return err
		}
		if i == attempts-1 {
			break
		}

		slog.Warn("一時的なデータストアエラーのため読み取りをリトライします",
			slog.String("operation", op),
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxRetryBackoff {
			delay = maxRetryBackoff
		}
	}
	return err
}
