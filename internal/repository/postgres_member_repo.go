package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/model"
)

const memberColumns = `id, name, email, password_hash, role, active, created_at, updated_at`

// PostgresMemberRepo はPostgreSQLを使用したメンバーリポジトリ。
type PostgresMemberRepo struct {
	db    *sql.DB
	retry RetryPolicy
}

// NewPostgresMemberRepo はPostgresMemberRepoを生成する。
func NewPostgresMemberRepo(db *sql.DB, retry RetryPolicy) *PostgresMemberRepo {
	return &PostgresMemberRepo{db: db, retry: retry}
}

// FindByID は指定IDのメンバーを取得する。見つからない場合はnilを返す。
func (r *PostgresMemberRepo) FindByID(ctx context.Context, id string) (*model.Member, error) {
	return r.findOne(ctx, "find member by ID",
		`SELECT `+memberColumns+` FROM members WHERE id = $1`, id)
}

// FindByEmail はメールアドレスでメンバーを検索する。見つからない場合はnilを返す。
// メールアドレスは大文字小文字を区別しない。
func (r *PostgresMemberRepo) FindByEmail(ctx context.Context, email string) (*model.Member, error) {
	return r.findOne(ctx, "find member by email",
		`SELECT `+memberColumns+` FROM members WHERE lower(email) = lower($1)`, email)
}

func (r *PostgresMemberRepo) findOne(ctx context.Context, op, query string, args ...any) (*model.Member, error) {
	var member *model.Member
	err := readWithRetry(ctx, r.retry, op, func() error {
		m, err := scanMember(r.db.QueryRowContext(ctx, query, args...))
		if err == sql.ErrNoRows {
			member = nil
			return nil
		}
		if err != nil {
			return translate("failed to "+op, err)
		}
		member = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// Create はメンバーを作成する。メールアドレスが重複する場合はErrDuplicateを返す。
func (r *PostgresMemberRepo) Create(ctx context.Context, member *model.Member) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO members (id, name, email, password_hash, role, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		member.ID, member.Name, member.Email, member.PasswordHash,
		string(member.Role), member.Active, member.CreatedAt, member.UpdatedAt,
	)
	return translate("failed to insert member", err)
}

// List はメンバー一覧を名前順で返す。
func (r *PostgresMemberRepo) List(ctx context.Context, includeInactive bool) ([]*model.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members`
	if !includeInactive {
		query += ` WHERE active`
	}
	query += ` ORDER BY name, id`
	return r.list(ctx, "list members", query)
}

// ListEligible は定足数の算定対象（有効なadmin/member）を名前順で返す。
func (r *PostgresMemberRepo) ListEligible(ctx context.Context) ([]*model.Member, error) {
	return r.list(ctx, "list eligible members",
		`SELECT `+memberColumns+` FROM members
		 WHERE active AND role IN ('admin', 'member')
		 ORDER BY name, id`)
}

// ListByIDs は指定IDのメンバーを返す。無効化されたメンバーも含む。
func (r *PostgresMemberRepo) ListByIDs(ctx context.Context, ids []string) ([]*model.Member, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.list(ctx, "list members by IDs",
		`SELECT `+memberColumns+` FROM members WHERE id = ANY($1::uuid[]) ORDER BY name, id`,
		pq.Array(ids))
}

func (r *PostgresMemberRepo) list(ctx context.Context, op, query string, args ...any) ([]*model.Member, error) {
	var members []*model.Member
	err := readWithRetry(ctx, r.retry, op, func() error {
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return translate("failed to "+op, err)
		}
		defer rows.Close()

		members = members[:0]
		for rows.Next() {
			m, err := scanMember(rows)
			if err != nil {
				return translate("failed to scan member", err)
			}
			members = append(members, m)
		}
		return translate("failed to iterate members", rows.Err())
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

// Deactivate はメンバーを論理削除する。対象が存在しない場合はErrNotFoundを返す。
// 既に無効化されている場合も成功として扱う（冪等）。
func (r *PostgresMemberRepo) Deactivate(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE members SET active = false, updated_at = now() WHERE id = $1`,
		id,
	)
	if err != nil {
		return translate("failed to deactivate member", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("member %s: %w", id, ErrNotFound)
	}
	return nil
}

// CountActiveAdmins は有効な管理者の数を返す。
func (r *PostgresMemberRepo) CountActiveAdmins(ctx context.Context) (int, error) {
	var count int
	err := readWithRetry(ctx, r.retry, "count active admins", func() error {
		err := r.db.QueryRowContext(ctx,
			`SELECT count(*) FROM members WHERE active AND role = 'admin'`,
		).Scan(&count)
		return translate("failed to count active admins", err)
	})
	return count, err
}

// rowScanner は *sql.Row と *sql.Rows の共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(s rowScanner) (*model.Member, error) {
	m := &model.Member{}
	var role string
	if err := s.Scan(&m.ID, &m.Name, &m.Email, &m.PasswordHash, &role, &m.Active, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.Role = model.Role(role)
	return m, nil
}

// compile-time interface check
var _ MemberRepository = (*PostgresMemberRepo)(nil)
