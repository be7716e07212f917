// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"

	"github.com/pdrxSolucoes/pro-voto-sub000/internal/model"
)

// Querier はSQL実行を抽象化するインターフェース。
// *sql.DB と *sql.Tx の両方を受け付ける。
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// MemberRepository はメンバーデータの永続化インターフェース。
type MemberRepository interface {
	// FindByID は指定IDのメンバーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Member, error)

	// FindByEmail はメールアドレスでメンバーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Member, error)

	// Create はメンバーを作成する。メールアドレスが重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, member *model.Member) error

	// List はメンバー一覧を名前順で返す。includeInactiveがfalseの場合は有効なメンバーのみ。
	List(ctx context.Context, includeInactive bool) ([]*model.Member, error)

	// ListEligible は定足数の算定対象（有効なadmin/member）を名前順で返す。
	ListEligible(ctx context.Context) ([]*model.Member, error)

	// ListByIDs は指定IDのメンバーを返す。無効化されたメンバーも含む。
	ListByIDs(ctx context.Context, ids []string) ([]*model.Member, error)

	// Deactivate はメンバーを論理削除する。対象が存在しない場合はErrNotFoundを返す。
	Deactivate(ctx context.Context, id string) error

	// CountActiveAdmins は有効な管理者の数を返す。
	CountActiveAdmins(ctx context.Context) (int, error)
}

// ProposalRepository は議案データの永続化インターフェース。
type ProposalRepository interface {
	// FindByID は指定IDの議案を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Proposal, error)

	// Create は議案を作成する。
	Create(ctx context.Context, proposal *model.Proposal) error

	// List は議案一覧を提出日時の降順で返す。statusがnilの場合は全件。
	List(ctx context.Context, status *model.ProposalStatus) ([]*model.Proposal, error)

	// UpdatePending はpending状態の議案のみを更新する。
	// 対象がpendingでない、または存在しない場合はfalseを返す。
	UpdatePending(ctx context.Context, id string, update model.ProposalUpdate) (bool, error)
}

// SessionReader はトランザクション外での投票セッション参照インターフェース。
// 一時的な障害に対しては有限回リトライする。
type SessionReader interface {
	// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.VotingSession, error)

	// ListByResult はセッション一覧を開始日時の降順で返す。resultがnilの場合は全件。
	ListByResult(ctx context.Context, result *model.SessionResult) ([]*model.VotingSession, error)

	// ListByProposal は議案のセッション履歴を開始日時の降順で返す。
	ListByProposal(ctx context.Context, proposalID string) ([]*model.VotingSession, error)

	// ListVotes はセッションの票を投票日時順で返す。
	ListVotes(ctx context.Context, sessionID string) ([]*model.Vote, error)

	// CountVotes は投票台帳を走査して種類別の票数を返す。
	CountVotes(ctx context.Context, sessionID string) (model.Tally, error)

	// ListQuorumReached は進行中かつ票数が有効な有権者数に達しているセッションのIDを返す。
	ListQuorumReached(ctx context.Context) ([]string, error)
}

// VotingStore は投票ライフサイクルのトランザクション内で使用する操作のインターフェース。
// 実装は単一トランザクションに束縛される。
type VotingStore interface {
	// LockSession はセッション行をFOR UPDATEで取得する。見つからない場合はnilを返す。
	LockSession(ctx context.Context, id string) (*model.VotingSession, error)

	// LockProposal は議案行をFOR UPDATEで取得する。見つからない場合はnilを返す。
	LockProposal(ctx context.Context, id string) (*model.Proposal, error)

	// HasOpenSession は議案に進行中のセッションが存在するかを返す。
	HasOpenSession(ctx context.Context, proposalID string) (bool, error)

	// CreateSession はセッションを作成する。
	// 同一議案の進行中セッションが既に存在する場合はErrDuplicateを返す。
	CreateSession(ctx context.Context, session *model.VotingSession) error

	// InsertVote は票を記録する。(session_id, member_id)が重複する場合はErrDuplicateを返す。
	InsertVote(ctx context.Context, vote *model.Vote) error

	// CountVotes は投票台帳を走査して種類別の票数を返す。
	CountVotes(ctx context.Context, sessionID string) (model.Tally, error)

	// SaveCounters はセッションのキャッシュカウンタを更新する。
	SaveCounters(ctx context.Context, sessionID string, tally model.Tally) error

	// CloseSession は進行中のセッションのみを確定する条件付き更新を行う。
	// 更新行が0件（既に確定済み）の場合はfalseを返す。
	CloseSession(ctx context.Context, sessionID string, result model.SessionResult, tally model.Tally) (*model.VotingSession, bool, error)

	// UpdateProposalStatus は議案の状態を更新する。
	UpdateProposalStatus(ctx context.Context, proposalID string, status model.ProposalStatus) error

	// CountEligibleMembers は有効なadmin/memberの数を返す。
	CountEligibleMembers(ctx context.Context) (int, error)
}

// UnitOfWork はVotingStoreをトランザクション境界で提供するインターフェース。
// fnがエラーを返した場合、すべての変更はロールバックされる。
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, store VotingStore) error) error
}
