package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pdrxSolucoes/pro-voto-sub000/internal/model"
)

const proposalColumns = `id, title, body, status, submitted_at, updated_at`

// PostgresProposalRepo はPostgreSQLを使用した議案リポジトリ。
type PostgresProposalRepo struct {
	db    *sql.DB
	retry RetryPolicy
}

// NewPostgresProposalRepo はPostgresProposalRepoを生成する。
func NewPostgresProposalRepo(db *sql.DB, retry RetryPolicy) *PostgresProposalRepo {
	return &PostgresProposalRepo{db: db, retry: retry}
}

// FindByID は指定IDの議案を取得する。見つからない場合はnilを返す。
func (r *PostgresProposalRepo) FindByID(ctx context.Context, id string) (*model.Proposal, error) {
	var proposal *model.Proposal
	err := readWithRetry(ctx, r.retry, "find proposal by ID", func() error {
		p, err := scanProposal(r.db.QueryRowContext(ctx,
			`SELECT `+proposalColumns+` FROM proposals WHERE id = $1`, id))
		if err == sql.ErrNoRows {
			proposal = nil
			return nil
		}
		if err != nil {
			return translate("failed to find proposal by ID", err)
		}
		proposal = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return proposal, nil
}

// Create は議案を作成する。
func (r *PostgresProposalRepo) Create(ctx context.Context, proposal *model.Proposal) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO proposals (id, title, body, status, submitted_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		proposal.ID, proposal.Title, proposal.Body, string(proposal.Status),
		proposal.SubmittedAt, proposal.UpdatedAt,
	)
	return translate("failed to insert proposal", err)
}

// List は議案一覧を提出日時の降順で返す。statusがnilの場合は全件。
func (r *PostgresProposalRepo) List(ctx context.Context, status *model.ProposalStatus) ([]*model.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals`
	var args []any
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, string(*status))
	}
	query += ` ORDER BY submitted_at DESC, id`

	var proposals []*model.Proposal
	err := readWithRetry(ctx, r.retry, "list proposals", func() error {
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return translate("failed to list proposals", err)
		}
		defer rows.Close()

		proposals = proposals[:0]
		for rows.Next() {
			p, err := scanProposal(rows)
			if err != nil {
				return translate("failed to scan proposal", err)
			}
			proposals = append(proposals, p)
		}
		return translate("failed to iterate proposals", rows.Err())
	})
	if err != nil {
		return nil, err
	}
	return proposals, nil
}

// UpdatePending はpending状態の議案のみを更新する条件付きUPDATEを実行する。
// 対象がpendingでない、または存在しない場合はfalseを返す。
func (r *PostgresProposalRepo) UpdatePending(ctx context.Context, id string, update model.ProposalUpdate) (bool, error) {
	sets := []string{"updated_at = now()"}
	args := []any{id}

	if update.Title != nil {
		args = append(args, *update.Title)
		sets = append(sets, fmt.Sprintf("title = $%d", len(args)))
	}
	if update.Body != nil {
		args = append(args, *update.Body)
		sets = append(sets, fmt.Sprintf("body = $%d", len(args)))
	}
	if update.Status != nil {
		args = append(args, string(*update.Status))
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `UPDATE proposals SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 AND status = 'pending'`
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, translate("failed to update proposal", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

func scanProposal(s rowScanner) (*model.Proposal, error) {
	p := &model.Proposal{}
	var status string
	if err := s.Scan(&p.ID, &p.Title, &p.Body, &status, &p.SubmittedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Status = model.ProposalStatus(status)
	return p, nil
}

// compile-time interface check
var _ ProposalRepository = (*PostgresProposalRepo)(nil)
