package voting

import (
	"context"
	"fmt"
	"sort"

	"github.com/pdrxSolucoes/pro-voto-sub000/internal/auth"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/model"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/tally"
)

// GetSession はセッションと、台帳から再集計した集計、メンバーごとの投票状況を返す。
// キャッシュカウンタではなく投票台帳を根拠とする。
func (c *Controller) GetSession(ctx context.Context, actor *model.Member, sessionID string) (*model.SessionDetail, error) {
	if err := auth.Authorize(actor, model.RoleMember); err != nil {
		return nil, err
	}
	if err := validateID("sessionId", sessionID); err != nil {
		return nil, err
	}

	session, err := c.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, model.NewSessionNotFoundError(sessionID)
	}

	proposal, err := c.proposals.FindByID(ctx, session.ProposalID)
	if err != nil {
		return nil, fmt.Errorf("failed to find proposal: %w", err)
	}

	votes, err := c.sessions.ListVotes(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}
	eligible, err := c.members.ListEligible(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible members: %w", err)
	}

	statuses, err := c.memberStatuses(ctx, eligible, votes)
	if err != nil {
		return nil, err
	}

	return &model.SessionDetail{
		Session:       *session,
		Proposal:      proposal,
		Tally:         tally.FromVotes(votes),
		EligibleCount: len(eligible),
		Members:       statuses,
	}, nil
}

// memberStatuses は有効な有権者ごとの投票状況を組み立てる。
// 投票後に無効化されたメンバーの票も表示対象に含める。
func (c *Controller) memberStatuses(ctx context.Context, eligible []*model.Member, votes []*model.Vote) ([]model.MemberVoteStatus, error) {
	byMember := make(map[string]*model.Vote, len(votes))
	for _, v := range votes {
		byMember[v.MemberID] = v
	}

	statuses := make([]model.MemberVoteStatus, 0, len(eligible))
	seen := make(map[string]bool, len(eligible))
	for _, m := range eligible {
		seen[m.ID] = true
		statuses = append(statuses, statusFor(m, byMember[m.ID]))
	}

	var former []string
	for _, v := range votes {
		if !seen[v.MemberID] {
			former = append(former, v.MemberID)
		}
	}
	if len(former) == 0 {
		return statuses, nil
	}

	others, err := c.members.ListByIDs(ctx, former)
	if err != nil {
		return nil, fmt.Errorf("failed to list former voters: %w", err)
	}
	for _, m := range others {
		statuses = append(statuses, statusFor(m, byMember[m.ID]))
	}
	sort.SliceStable(statuses, func(i, j int) bool { return statuses[i].MemberName < statuses[j].MemberName })
	return statuses, nil
}

func statusFor(m *model.Member, v *model.Vote) model.MemberVoteStatus {
	s := model.MemberVoteStatus{MemberID: m.ID, MemberName: m.Name}
	if v != nil {
		castAt := v.CastAt
		s.Kind = v.Kind
		s.CastAt = &castAt
	}
	return s
}

// ListSessions はセッション一覧を返す。statusが空の場合は全件。
func (c *Controller) ListSessions(ctx context.Context, actor *model.Member, status string) ([]*model.VotingSession, error) {
	if err := auth.Authorize(actor, model.RoleMember); err != nil {
		return nil, err
	}

	var filter *model.SessionResult
	if status != "" {
		result, ok := model.ParseSessionResult(status)
		if !ok {
			return nil, model.NewInvalidStatusError(status)
		}
		filter = &result
	}

	sessions, err := c.sessions.ListByResult(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}
