// Package memstore はテスト用のインメモリ永続化層を提供する。
// トランザクションは直列化され、fnがエラーを返した場合は変更を破棄する。
// (session, member)の一意性と議案ごとの進行中セッションの一意性はPostgreSQLスキーマと同様に強制する。
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pdrxSolucoes/pro-voto-sub000/internal/model"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/repository"
)

type state struct {
	members   map[string]model.Member
	proposals map[string]model.Proposal
	sessions  map[string]model.VotingSession
	votes     []model.Vote
}

func newState() *state {
	return &state{
		members:   make(map[string]model.Member),
		proposals: make(map[string]model.Proposal),
		sessions:  make(map[string]model.VotingSession),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.members {
		c.members[k] = v
	}
	for k, v := range s.proposals {
		c.proposals[k] = v
	}
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	c.votes = append([]model.Vote(nil), s.votes...)
	return c
}

// Store はインメモリのUnitOfWork、および各リポジトリの実装。
type Store struct {
	mu        sync.Mutex
	st        *state
	commitErr error
	txCount   int
}

// New は空のStoreを生成する。
func New() *Store {
	return &Store{st: newState()}
}

// FailCommits は以降のコミットを指定エラーで失敗させる。nilで解除する。
func (s *Store) FailCommits(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitErr = err
}

// TxCount はコミットまたはロールバックされたトランザクションの数を返す。
func (s *Store) TxCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txCount
}

// WithinTx は状態の複製に対してfnを実行し、成功した場合のみ反映する。
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, store repository.VotingStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCount++

	if err := ctx.Err(); err != nil {
		return err
	}

	working := s.st.clone()
	if err := fn(ctx, &txStore{st: working}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.commitErr != nil {
		return fmt.Errorf("commit: %w", s.commitErr)
	}
	s.st = working
	return nil
}

// --- シード・検査用ヘルパー ---

// PutMember はメンバーをそのまま保存する。
func (s *Store) PutMember(m model.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.members[m.ID] = m
}

// PutProposal は議案をそのまま保存する。
func (s *Store) PutProposal(p model.Proposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.proposals[p.ID] = p
}

// PutSession はセッションをそのまま保存する。
func (s *Store) PutSession(vs model.VotingSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.sessions[vs.ID] = vs
}

// Votes はセッションの票を投票順で返す。
func (s *Store) Votes(sessionID string) []model.Vote {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Vote
	for _, v := range s.st.votes {
		if v.SessionID == sessionID {
			out = append(out, v)
		}
	}
	return out
}

// Session はセッションの現在の状態を返す。
func (s *Store) Session(id string) (model.VotingSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	vs, ok := s.st.sessions[id]
	return vs, ok
}

// Proposal は議案の現在の状態を返す。
func (s *Store) Proposal(id string) (model.Proposal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.proposals[id]
	return p, ok
}

// --- MemberRepository ---

func (s *Store) FindByID(_ context.Context, id string) (*model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.st.members[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *Store) FindByEmail(_ context.Context, email string) (*model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.st.members {
		if strings.EqualFold(m.Email, email) {
			return &m, nil
		}
	}
	return nil, nil
}

func (s *Store) Create(_ context.Context, member *model.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.st.members {
		if strings.EqualFold(m.Email, member.Email) {
			return fmt.Errorf("insert member: %w", repository.ErrDuplicate)
		}
	}
	s.st.members[member.ID] = *member
	return nil
}

func (s *Store) List(_ context.Context, includeInactive bool) ([]*model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.listMembers(func(m model.Member) bool { return includeInactive || m.Active }), nil
}

func (s *Store) ListEligible(_ context.Context) ([]*model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.listMembers(func(m model.Member) bool { return m.IsEligibleVoter() }), nil
}

func (s *Store) ListByIDs(_ context.Context, ids []string) ([]*model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	return s.st.listMembers(func(m model.Member) bool { return want[m.ID] }), nil
}

func (s *Store) Deactivate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.st.members[id]
	if !ok {
		return fmt.Errorf("member %s: %w", id, repository.ErrNotFound)
	}
	m.Active = false
	m.UpdatedAt = time.Now()
	s.st.members[id] = m
	return nil
}

func (s *Store) CountActiveAdmins(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.st.members {
		if m.Active && m.Role == model.RoleAdmin {
			n++
		}
	}
	return n, nil
}

func (st *state) listMembers(keep func(model.Member) bool) []*model.Member {
	var out []*model.Member
	for _, m := range st.members {
		if keep(m) {
			m := m
			out = append(out, &m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (st *state) countEligible() int {
	n := 0
	for _, m := range st.members {
		if m.IsEligibleVoter() {
			n++
		}
	}
	return n
}

func (st *state) countVotes(sessionID string) model.Tally {
	var t model.Tally
	for _, v := range st.votes {
		if v.SessionID == sessionID {
			t = t.Add(v.Kind)
		}
	}
	return t
}

// compile-time interface checks
var (
	_ repository.UnitOfWork         = (*Store)(nil)
	_ repository.MemberRepository   = (*Store)(nil)
	_ repository.SessionReader      = Sessions{}
	_ repository.ProposalRepository = Proposals{}
)
