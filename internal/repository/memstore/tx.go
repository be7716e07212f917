package memstore

import (
	"context"
	"fmt"
	"time"

	"github.com/pdrxSolucoes/pro-voto-sub000/internal/model"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/repository"
)

// txStore はトランザクション中の作業用状態に対するVotingStore。
type txStore struct {
	st *state
}

func (t *txStore) LockSession(_ context.Context, id string) (*model.VotingSession, error) {
	v, ok := t.st.sessions[id]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (t *txStore) LockProposal(_ context.Context, id string) (*model.Proposal, error) {
	v, ok := t.st.proposals[id]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (t *txStore) HasOpenSession(_ context.Context, proposalID string) (bool, error) {
	for _, s := range t.st.sessions {
		if s.ProposalID == proposalID && s.IsOpen() {
			return true, nil
		}
	}
	return false, nil
}

func (t *txStore) CreateSession(ctx context.Context, session *model.VotingSession) error {
	open, _ := t.HasOpenSession(ctx, session.ProposalID)
	if open && session.IsOpen() {
		return fmt.Errorf("insert session: %w", repository.ErrDuplicate)
	}
	t.st.sessions[session.ID] = *session
	return nil
}

func (t *txStore) InsertVote(_ context.Context, vote *model.Vote) error {
	if _, ok := t.st.sessions[vote.SessionID]; !ok {
		return fmt.Errorf("insert vote: session %s does not exist", vote.SessionID)
	}
	for _, v := range t.st.votes {
		if v.SessionID == vote.SessionID && v.MemberID == vote.MemberID {
			return fmt.Errorf("insert vote: %w", repository.ErrDuplicate)
		}
	}
	t.st.votes = append(t.st.votes, *vote)
	return nil
}

func (t *txStore) CountVotes(_ context.Context, sessionID string) (model.Tally, error) {
	return t.st.countVotes(sessionID), nil
}

func (t *txStore) SaveCounters(_ context.Context, sessionID string, tally model.Tally) error {
	s, ok := t.st.sessions[sessionID]
	if !ok {
		return nil
	}
	s.Counters = tally
	t.st.sessions[sessionID] = s
	return nil
}

func (t *txStore) CloseSession(_ context.Context, sessionID string, result model.SessionResult, tally model.Tally) (*model.VotingSession, bool, error) {
	s, ok := t.st.sessions[sessionID]
	if !ok || !s.IsOpen() {
		return nil, false, nil
	}
	now := time.Now()
	s.Result = result
	s.EndedAt = &now
	s.Counters = tally
	t.st.sessions[sessionID] = s
	return &s, true, nil
}

func (t *txStore) UpdateProposalStatus(_ context.Context, proposalID string, status model.ProposalStatus) error {
	p, ok := t.st.proposals[proposalID]
	if !ok {
		return fmt.Errorf("proposal %s: %w", proposalID, repository.ErrNotFound)
	}
	p.Status = status
	p.UpdatedAt = time.Now()
	t.st.proposals[proposalID] = p
	return nil
}

func (t *txStore) CountEligibleMembers(_ context.Context) (int, error) {
	return t.st.countEligible(), nil
}

var _ repository.VotingStore = (*txStore)(nil)
