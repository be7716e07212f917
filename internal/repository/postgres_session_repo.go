package repository

import (
	"context"
	"database/sql"

	"github.com/pdrxSolucoes/pro-voto-sub000/internal/model"
)

const sessionColumns = `id, proposal_id, started_at, ended_at, result, favor_count, against_count, abstain_count`

// countVotesQuery は投票台帳から種類別の票数を集計する。
const countVotesQuery = `SELECT
	count(*) FILTER (WHERE kind = 'approve'),
	count(*) FILTER (WHERE kind = 'reject'),
	count(*) FILTER (WHERE kind = 'abstain')
 FROM votes WHERE session_id = $1`

// PostgresSessionRepo はPostgreSQLを使用した投票セッションの参照用リポジトリ。
// 書き込みはPostgresUnitOfWork経由のトランザクションでのみ行う。
type PostgresSessionRepo struct {
	db    *sql.DB
	retry RetryPolicy
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB, retry RetryPolicy) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db, retry: retry}
}

// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.VotingSession, error) {
	var session *model.VotingSession
	err := readWithRetry(ctx, r.retry, "find session by ID", func() error {
		s, err := scanSession(r.db.QueryRowContext(ctx,
			`SELECT `+sessionColumns+` FROM voting_sessions WHERE id = $1`, id))
		if err == sql.ErrNoRows {
			session = nil
			return nil
		}
		if err != nil {
			return translate("failed to find session by ID", err)
		}
		session = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ListByResult はセッション一覧を開始日時の降順で返す。resultがnilの場合は全件。
func (r *PostgresSessionRepo) ListByResult(ctx context.Context, result *model.SessionResult) ([]*model.VotingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM voting_sessions`
	var args []any
	if result != nil {
		query += ` WHERE result = $1`
		args = append(args, string(*result))
	}
	query += ` ORDER BY started_at DESC, id`
	return r.listSessions(ctx, "list sessions", query, args...)
}

// ListByProposal は議案のセッション履歴を開始日時の降順で返す。
func (r *PostgresSessionRepo) ListByProposal(ctx context.Context, proposalID string) ([]*model.VotingSession, error) {
	return r.listSessions(ctx, "list sessions by proposal",
		`SELECT `+sessionColumns+` FROM voting_sessions WHERE proposal_id = $1 ORDER BY started_at DESC, id`,
		proposalID)
}

func (r *PostgresSessionRepo) listSessions(ctx context.Context, op, query string, args ...any) ([]*model.VotingSession, error) {
	var sessions []*model.VotingSession
	err := readWithRetry(ctx, r.retry, op, func() error {
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return translate("failed to "+op, err)
		}
		defer rows.Close()

		sessions = sessions[:0]
		for rows.Next() {
			s, err := scanSession(rows)
			if err != nil {
				return translate("failed to scan session", err)
			}
			sessions = append(sessions, s)
		}
		return translate("failed to iterate sessions", rows.Err())
	})
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// ListVotes はセッションの票を投票日時順で返す。
func (r *PostgresSessionRepo) ListVotes(ctx context.Context, sessionID string) ([]*model.Vote, error) {
	var votes []*model.Vote
	err := readWithRetry(ctx, r.retry, "list votes", func() error {
		rows, err := r.db.QueryContext(ctx,
			`SELECT id, session_id, member_id, kind, cast_at
			 FROM votes WHERE session_id = $1
			 ORDER BY cast_at, id`,
			sessionID,
		)
		if err != nil {
			return translate("failed to list votes", err)
		}
		defer rows.Close()

		votes = votes[:0]
		for rows.Next() {
			v := &model.Vote{}
			var kind string
			if err := rows.Scan(&v.ID, &v.SessionID, &v.MemberID, &kind, &v.CastAt); err != nil {
				return translate("failed to scan vote", err)
			}
			v.Kind = model.VoteKind(kind)
			votes = append(votes, v)
		}
		return translate("failed to iterate votes", rows.Err())
	})
	if err != nil {
		return nil, err
	}
	return votes, nil
}

// CountVotes は投票台帳を走査して種類別の票数を返す。
func (r *PostgresSessionRepo) CountVotes(ctx context.Context, sessionID string) (model.Tally, error) {
	var tally model.Tally
	err := readWithRetry(ctx, r.retry, "count votes", func() error {
		return countVotes(ctx, r.db, sessionID, &tally)
	})
	return tally, err
}

// ListQuorumReached は進行中かつ票数が有効な有権者数に達しているセッションのIDを返す。
// 有権者が0人の場合は対象外とする。
func (r *PostgresSessionRepo) ListQuorumReached(ctx context.Context) ([]string, error) {
	var ids []string
	err := readWithRetry(ctx, r.retry, "list quorum reached sessions", func() error {
		rows, err := r.db.QueryContext(ctx,
			`WITH eligible AS (
				SELECT count(*) AS n FROM members WHERE active AND role IN ('admin', 'member')
			 )
			 SELECT s.id
			 FROM voting_sessions s, eligible e
			 WHERE s.result = 'in_progress'
			   AND e.n > 0
			   AND (SELECT count(*) FROM votes v WHERE v.session_id = s.id) >= e.n
			 ORDER BY s.started_at`,
		)
		if err != nil {
			return translate("failed to list quorum reached sessions", err)
		}
		defer rows.Close()

		ids = ids[:0]
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return translate("failed to scan session ID", err)
			}
			ids = append(ids, id)
		}
		return translate("failed to iterate session IDs", rows.Err())
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func countVotes(ctx context.Context, q Querier, sessionID string, tally *model.Tally) error {
	err := q.QueryRowContext(ctx, countVotesQuery, sessionID).
		Scan(&tally.Favor, &tally.Against, &tally.Abstain)
	return translate("failed to count votes", err)
}

func scanSession(s rowScanner) (*model.VotingSession, error) {
	vs := &model.VotingSession{}
	var endedAt sql.NullTime
	var result string
	if err := s.Scan(&vs.ID, &vs.ProposalID, &vs.StartedAt, &endedAt, &result,
		&vs.Counters.Favor, &vs.Counters.Against, &vs.Counters.Abstain); err != nil {
		return nil, err
	}
	if endedAt.Valid {
		t := endedAt.Time
		vs.EndedAt = &t
	}
	vs.Result = model.SessionResult(result)
	return vs, nil
}

// compile-time interface check
var _ SessionReader = (*PostgresSessionRepo)(nil)
