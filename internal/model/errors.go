// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, voting, proposal, member, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Is はエラーコードが一致する場合にtrueを返す。
// errors.Is(err, model.NewAlreadyVotedError()) のような比較を可能にする。
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeInvalidID           = "INVALID_ID"
	ErrCodeInvalidVoteKind     = "INVALID_VOTE_KIND"
	ErrCodeInvalidStatus       = "INVALID_STATUS"
	ErrCodeInvalidRole         = "INVALID_ROLE"
	ErrCodeInvalidInput        = "INVALID_INPUT"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeSessionNotFound     = "SESSION_NOT_FOUND"
	ErrCodeProposalNotFound    = "PROPOSAL_NOT_FOUND"
	ErrCodeMemberNotFound      = "MEMBER_NOT_FOUND"
	ErrCodeAlreadyVoted        = "ALREADY_VOTED"
	ErrCodeSessionClosed       = "SESSION_CLOSED"
	ErrCodeAlreadyFinalized    = "ALREADY_FINALIZED"
	ErrCodeSessionAlreadyOpen  = "SESSION_ALREADY_OPEN"
	ErrCodeProposalNotEligible = "PROPOSAL_NOT_ELIGIBLE"
	ErrCodeProposalNotEditable = "PROPOSAL_NOT_EDITABLE"
	ErrCodeEmailTaken          = "EMAIL_TAKEN"
	ErrCodeAdminExists         = "ADMIN_EXISTS"
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeServiceUnavailable  = "SERVICE_UNAVAILABLE"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewInvalidIDError は不正なID形式のエラーを生成する。
func NewInvalidIDError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidID,
		Message:  fmt.Sprintf("IDの形式が不正です: %s", field),
		Category: "validation",
		Action:   "UUID形式のIDを指定してください。",
	}
}

// NewInvalidVoteKindError は未定義の票種別のエラーを生成する。
func NewInvalidVoteKindError(kind string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidVoteKind,
		Message:  fmt.Sprintf("無効な票の種類です: %q", kind),
		Category: "validation",
		Action:   "票の種類には approve、reject、abstain のいずれかを指定してください。",
	}
}

// NewInvalidStatusError は未定義の状態値のエラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効な状態です: %q", status),
		Category: "validation",
		Action:   "定義済みの状態値を指定してください。",
	}
}

// NewInvalidRoleError は未定義のロールのエラーを生成する。
func NewInvalidRoleError(role string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRole,
		Message:  fmt.Sprintf("無効なロールです: %q", role),
		Category: "validation",
		Action:   "ロールには admin または member を指定してください。",
	}
}

// NewInvalidInputError は入力値の検証エラーを生成する。
func NewInvalidInputError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInput,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
// 認証失敗の理由はクライアントに区別させない。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を実行する権限がありません。",
		Category: "auth",
		Action:   "管理者に問い合わせてください。",
	}
}

// NewSessionNotFoundError は投票セッション未検出エラーを生成する。
func NewSessionNotFoundError(sessionID string) *APIError {
	return &APIError{
		Code:     ErrCodeSessionNotFound,
		Message:  fmt.Sprintf("指定された投票セッションが見つかりません: %s", sessionID),
		Category: "voting",
		Action:   "セッションIDを確認してください。",
	}
}

// NewProposalNotFoundError は議案未検出エラーを生成する。
func NewProposalNotFoundError(proposalID string) *APIError {
	return &APIError{
		Code:     ErrCodeProposalNotFound,
		Message:  fmt.Sprintf("指定された議案が見つかりません: %s", proposalID),
		Category: "proposal",
		Action:   "議案IDを確認してください。",
	}
}

// NewMemberNotFoundError はメンバー未検出エラーを生成する。
func NewMemberNotFoundError(memberID string) *APIError {
	return &APIError{
		Code:     ErrCodeMemberNotFound,
		Message:  fmt.Sprintf("指定されたメンバーが見つかりません: %s", memberID),
		Category: "member",
		Action:   "メンバーIDを確認してください。",
	}
}

// NewAlreadyVotedError は同一セッションへの二重投票エラーを生成する。
func NewAlreadyVotedError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyVoted,
		Message:  "このセッションでは既に投票済みです。",
		Category: "voting",
		Action:   "投票は1セッションにつき1回のみです。投票後の変更はできません。",
	}
}

// NewSessionClosedError は確定済みセッションへの投票エラーを生成する。
func NewSessionClosedError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionClosed,
		Message:  "この投票セッションは終了しています。",
		Category: "voting",
		Action:   "進行中のセッションを選択してください。",
	}
}

// NewAlreadyFinalizedError は確定済みセッションの再確定エラーを生成する。
func NewAlreadyFinalizedError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyFinalized,
		Message:  "この投票セッションは既に確定しています。",
		Category: "voting",
		Action:   "セッションの結果を確認してください。",
	}
}

// NewSessionAlreadyOpenError は同一議案に進行中のセッションが存在するエラーを生成する。
func NewSessionAlreadyOpenError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionAlreadyOpen,
		Message:  "この議案には既に進行中の投票セッションがあります。",
		Category: "voting",
		Action:   "進行中のセッションを確定してから再度お試しください。",
	}
}

// NewProposalNotEligibleError は投票開始できない状態の議案のエラーを生成する。
func NewProposalNotEligibleError(status ProposalStatus) *APIError {
	return &APIError{
		Code:     ErrCodeProposalNotEligible,
		Message:  fmt.Sprintf("この議案は投票を開始できる状態ではありません: %s", status),
		Category: "proposal",
		Action:   "投票は pending 状態の議案に対してのみ開始できます。",
	}
}

// NewProposalNotEditableError は編集できない状態の議案のエラーを生成する。
func NewProposalNotEditableError() *APIError {
	return &APIError{
		Code:     ErrCodeProposalNotEditable,
		Message:  "この議案は編集できる状態ではありません。",
		Category: "proposal",
		Action:   "編集は pending 状態の議案に対してのみ可能です。",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "member",
		Action:   "別のメールアドレスを指定してください。",
	}
}

// NewAdminExistsError は初期管理者が既に存在する場合のエラーを生成する。
func NewAdminExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeAdminExists,
		Message:  "有効な管理者が既に存在します。",
		Category: "member",
		Action:   "既存の管理者でログインしてメンバーを追加してください。",
	}
}

// NewRateLimitedError はレート制限超過のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "指定された時間待ってから再度お試しください。",
	}
}

// NewServiceUnavailableError はデータストアの一時的な障害エラーを生成する。
func NewServiceUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeServiceUnavailable,
		Message:  "データストアに一時的に接続できません。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
