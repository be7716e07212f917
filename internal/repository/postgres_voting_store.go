package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pdrxSolucoes/pro-voto-sub000/internal/model"
)

// PostgresUnitOfWork はREAD COMMITTEDトランザクションでVotingStoreを提供する。
type PostgresUnitOfWork struct {
	db TxBeginner
}

// NewPostgresUnitOfWork はPostgresUnitOfWorkを生成する。
func NewPostgresUnitOfWork(db TxBeginner) *PostgresUnitOfWork {
	return &PostgresUnitOfWork{db: db}
}

// WithinTx はトランザクションを開始し、fnが成功した場合のみコミットする。
// fnがエラーを返した場合やコンテキストがキャンセルされた場合はロールバックする。
func (u *PostgresUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, store VotingStore) error) error {
	tx, err := u.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return translate("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &PostgresVotingStore{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return translate("failed to commit transaction", err)
	}
	return nil
}

// PostgresVotingStore は単一トランザクションに束縛されたVotingStore実装。
type PostgresVotingStore struct {
	q Querier
}

// NewPostgresVotingStore は任意のQuerier（通常は*sql.Tx）からVotingStoreを生成する。
func NewPostgresVotingStore(q Querier) *PostgresVotingStore {
	return &PostgresVotingStore{q: q}
}

// LockSession はセッション行をFOR UPDATEで取得する。見つからない場合はnilを返す。
// 同一セッションへの投票・確定はこの行ロックで直列化される。
func (s *PostgresVotingStore) LockSession(ctx context.Context, id string) (*model.VotingSession, error) {
	vs, err := scanSession(s.q.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM voting_sessions WHERE id = $1 FOR UPDATE`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, translate("failed to lock session", err)
	}
	return vs, nil
}

// LockProposal は議案行をFOR UPDATEで取得する。見つからない場合はnilを返す。
func (s *PostgresVotingStore) LockProposal(ctx context.Context, id string) (*model.Proposal, error) {
	p, err := scanProposal(s.q.QueryRowContext(ctx,
		`SELECT `+proposalColumns+` FROM proposals WHERE id = $1 FOR UPDATE`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, translate("failed to lock proposal", err)
	}
	return p, nil
}

// HasOpenSession は議案に進行中のセッションが存在するかを返す。
func (s *PostgresVotingStore) HasOpenSession(ctx context.Context, proposalID string) (bool, error) {
	var exists bool
	err := s.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM voting_sessions WHERE proposal_id = $1 AND result = 'in_progress')`,
		proposalID,
	).Scan(&exists)
	if err != nil {
		return false, translate("failed to check open session", err)
	}
	return exists, nil
}

// CreateSession はセッションを作成する。
// 部分一意インデックス（議案ごとに進行中は1件）に違反した場合はErrDuplicateを返す。
func (s *PostgresVotingStore) CreateSession(ctx context.Context, session *model.VotingSession) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO voting_sessions
		   (id, proposal_id, started_at, ended_at, result, favor_count, against_count, abstain_count)
		 VALUES ($1, $2, $3, NULL, $4, $5, $6, $7)`,
		session.ID, session.ProposalID, session.StartedAt, string(session.Result),
		session.Counters.Favor, session.Counters.Against, session.Counters.Abstain,
	)
	return translate("failed to insert session", err)
}

// InsertVote は票を記録する。
// UNIQUE(session_id, member_id)制約に違反した場合はErrDuplicateを返す。
func (s *PostgresVotingStore) InsertVote(ctx context.Context, vote *model.Vote) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO votes (id, session_id, member_id, kind, cast_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		vote.ID, vote.SessionID, vote.MemberID, string(vote.Kind), vote.CastAt,
	)
	return translate("failed to insert vote", err)
}

// CountVotes は投票台帳を走査して種類別の票数を返す。
// 同一トランザクション内の未コミットの票も含まれる。
func (s *PostgresVotingStore) CountVotes(ctx context.Context, sessionID string) (model.Tally, error) {
	var tally model.Tally
	err := countVotes(ctx, s.q, sessionID, &tally)
	return tally, err
}

// SaveCounters はセッションのキャッシュカウンタを更新する。
func (s *PostgresVotingStore) SaveCounters(ctx context.Context, sessionID string, tally model.Tally) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE voting_sessions
		 SET favor_count = $2, against_count = $3, abstain_count = $4
		 WHERE id = $1`,
		sessionID, tally.Favor, tally.Against, tally.Abstain,
	)
	return translate("failed to save counters", err)
}

// CloseSession は進行中のセッションのみを確定する条件付きUPDATEを実行する。
// 更新行が0件（既に確定済み）の場合はfalseを返す。
func (s *PostgresVotingStore) CloseSession(ctx context.Context, sessionID string, result model.SessionResult, tally model.Tally) (*model.VotingSession, bool, error) {
	vs, err := scanSession(s.q.QueryRowContext(ctx,
		`UPDATE voting_sessions
		 SET result = $2, ended_at = now(),
		     favor_count = $3, against_count = $4, abstain_count = $5
		 WHERE id = $1 AND result = 'in_progress'
		 RETURNING `+sessionColumns,
		sessionID, string(result), tally.Favor, tally.Against, tally.Abstain,
	))
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, translate("failed to close session", err)
	}
	return vs, true, nil
}

// UpdateProposalStatus は議案の状態を更新する。
func (s *PostgresVotingStore) UpdateProposalStatus(ctx context.Context, proposalID string, status model.ProposalStatus) error {
	result, err := s.q.ExecContext(ctx,
		`UPDATE proposals SET status = $2, updated_at = now() WHERE id = $1`,
		proposalID, string(status),
	)
	if err != nil {
		return translate("failed to update proposal status", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("proposal %s: %w", proposalID, ErrNotFound)
	}
	return nil
}

// CountEligibleMembers は有効なadmin/memberの数を返す。
func (s *PostgresVotingStore) CountEligibleMembers(ctx context.Context) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx,
		`SELECT count(*) FROM members WHERE active AND role IN ('admin', 'member')`,
	).Scan(&count)
	if err != nil {
		return 0, translate("failed to count eligible members", err)
	}
	return count, nil
}

// compile-time interface checks
var _ UnitOfWork = (*PostgresUnitOfWork)(nil)
var _ VotingStore = (*PostgresVotingStore)(nil)
