package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/lib/pq"
)

// インフラ層の事実を表すセンチネルエラー。
// サービス層はerrors.Isで判定し、ドメインエラーに変換する。
var (
	// ErrNotFound は対象の行が存在しないことを表す。
	ErrNotFound = errors.New("not found")
	// ErrDuplicate は一意制約違反を表す。
	ErrDuplicate = errors.New("duplicate")
	// ErrUnavailable はデータストアへの一時的な接続障害を表す。
	ErrUnavailable = errors.New("store unavailable")
)

// PostgreSQLのSQLSTATE
const (
	pqUniqueViolation       = "23505"
	pqClassConnectionFailed = "08"
	pqAdminShutdown         = "57P01"
	pqCrashShutdown         = "57P02"
	pqCannotConnectNow      = "57P03"
	pqTooManyConnections    = "53300"
)

// translate はドライバーのエラーをセンチネルエラーでラップして返す。
// 操作名opはログ用の文脈として付与する。nilはnilのまま返す。
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w: %w", op, ErrDuplicate, err)
	case IsTransient(err):
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// isUniqueViolation は一意制約違反（23505）かどうかを返す。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	return false
}

// IsTransient は接続断など、リトライで回復し得る一時的なエラーかどうかを返す。
// コンテキストのキャンセルやタイムアウトは一時的エラーとして扱わない。
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code.Class() == pqClassConnectionFailed {
			return true
		}
		switch pqErr.Code {
		case pqAdminShutdown, pqCrashShutdown, pqCannotConnectNow, pqTooManyConnections:
			return true
		}
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
