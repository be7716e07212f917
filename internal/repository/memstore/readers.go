package memstore

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pdrxSolucoes/pro-voto-sub000/internal/model"
)

// Proposals はStoreをProposalRepositoryとして公開する。
type Proposals struct{ *Store }

// Sessions はStoreをSessionReaderとして公開する。
type Sessions struct{ *Store }

// ProposalRepo はStoreのProposalRepositoryビューを返す。
func (s *Store) ProposalRepo() Proposals { return Proposals{s} }

// SessionRepo はStoreのSessionReaderビューを返す。
func (s *Store) SessionRepo() Sessions { return Sessions{s} }

// --- ProposalRepository ---

func (p Proposals) FindByID(_ context.Context, id string) (*model.Proposal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.st.proposals[id]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (p Proposals) Create(_ context.Context, proposal *model.Proposal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.st.proposals[proposal.ID] = *proposal
	return nil
}

func (p Proposals) List(_ context.Context, status *model.ProposalStatus) ([]*model.Proposal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*model.Proposal
	for _, v := range p.st.proposals {
		if status == nil || v.Status == *status {
			v := v
			out = append(out, &v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}

func (p Proposals) UpdatePending(_ context.Context, id string, update model.ProposalUpdate) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.st.proposals[id]
	if !ok || v.Status != model.ProposalStatusPending {
		return false, nil
	}
	if update.Title != nil {
		v.Title = *update.Title
	}
	if update.Body != nil {
		v.Body = *update.Body
	}
	if update.Status != nil {
		v.Status = *update.Status
	}
	v.UpdatedAt = time.Now()
	p.st.proposals[id] = v
	return true, nil
}

// --- SessionReader ---

func (r Sessions) FindByID(_ context.Context, id string) (*model.VotingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.st.sessions[id]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (r Sessions) ListByResult(_ context.Context, result *model.SessionResult) ([]*model.VotingSession, error) {
	return r.listSessions(func(s model.VotingSession) bool { return result == nil || s.Result == *result }), nil
}

func (r Sessions) ListByProposal(_ context.Context, proposalID string) ([]*model.VotingSession, error) {
	return r.listSessions(func(s model.VotingSession) bool { return s.ProposalID == proposalID }), nil
}

func (r Sessions) listSessions(keep func(model.VotingSession) bool) []*model.VotingSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.VotingSession
	for _, v := range r.st.sessions {
		if keep(v) {
			v := v
			out = append(out, &v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return strings.Compare(out[i].ID, out[j].ID) < 0
	})
	return out
}

func (r Sessions) ListVotes(_ context.Context, sessionID string) ([]*model.Vote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Vote
	for _, v := range r.st.votes {
		if v.SessionID == sessionID {
			v := v
			out = append(out, &v)
		}
	}
	return out, nil
}

func (r Sessions) CountVotes(_ context.Context, sessionID string) (model.Tally, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.countVotes(sessionID), nil
}

func (r Sessions) ListQuorumReached(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	eligible := r.st.countEligible()
	if eligible == 0 {
		return nil, nil
	}
	var ids []string
	for id, s := range r.st.sessions {
		if s.IsOpen() && r.st.countVotes(id).Total() >= eligible {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
