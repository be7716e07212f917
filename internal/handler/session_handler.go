package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pdrxSolucoes/pro-voto-sub000/internal/model"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/voting"
)

// SessionServiceInterface は投票セッションハンドラーが必要とするサービスインターフェース。
// voting.Controllerが実装する。
type SessionServiceInterface interface {
	OpenSession(ctx context.Context, actor *model.Member, proposalID string) (*model.VotingSession, error)
	RegisterVote(ctx context.Context, actor *model.Member, sessionID, kind string) (*voting.VoteOutcome, error)
	FinalizeSession(ctx context.Context, actor *model.Member, sessionID string) (*model.VotingSession, error)
	GetSession(ctx context.Context, actor *model.Member, sessionID string) (*model.SessionDetail, error)
	ListSessions(ctx context.Context, actor *model.Member, status string) ([]*model.VotingSession, error)
}

// SessionHandler は投票セッションのHTTPハンドラー。
type SessionHandler struct {
	service SessionServiceInterface
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(service SessionServiceInterface) *SessionHandler {
	return &SessionHandler{service: service}
}

type openSessionRequest struct {
	ProposalID string `json:"proposalId"`
}

type registerVoteRequest struct {
	Kind string `json:"voteKind"`
}

type tallyResponse struct {
	Favor   int `json:"favor"`
	Against int `json:"against"`
	Abstain int `json:"abstain"`
}

type sessionResponse struct {
	ID         string        `json:"id"`
	ProposalID string        `json:"proposal_id"`
	StartedAt  time.Time     `json:"started_at"`
	EndedAt    *time.Time    `json:"ended_at"`
	Result     string        `json:"result"`
	Counters   tallyResponse `json:"counters"`
}

type voteResponse struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	MemberID  string    `json:"member_id"`
	Kind      string    `json:"kind"`
	CastAt    time.Time `json:"cast_at"`
}

// registerVoteResponse は投票結果。finalizedがtrueの場合、この票で定足数に達し確定した。
type registerVoteResponse struct {
	Vote      voteResponse  `json:"vote"`
	Finalized bool          `json:"finalized"`
	Result    string        `json:"result"`
	Counters  tallyResponse `json:"counters"`
}

type memberVoteStatusResponse struct {
	MemberID   string     `json:"member_id"`
	MemberName string     `json:"member_name"`
	Status     string     `json:"status"`
	CastAt     *time.Time `json:"cast_at"`
}

type sessionDetailResponse struct {
	Session       sessionResponse            `json:"session"`
	Proposal      *proposalResponse          `json:"proposal"`
	Tally         tallyResponse              `json:"tally"`
	EligibleCount int                        `json:"eligible_count"`
	Members       []memberVoteStatusResponse `json:"members"`
}

func toTallyResponse(t model.Tally) tallyResponse {
	return tallyResponse{Favor: t.Favor, Against: t.Against, Abstain: t.Abstain}
}

func toSessionResponse(s *model.VotingSession) sessionResponse {
	return sessionResponse{
		ID:         s.ID,
		ProposalID: s.ProposalID,
		StartedAt:  s.StartedAt,
		EndedAt:    s.EndedAt,
		Result:     string(s.Result),
		Counters:   toTallyResponse(s.Counters),
	}
}

func toSessionResponses(sessions []*model.VotingSession) []sessionResponse {
	resp := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		resp = append(resp, toSessionResponse(s))
	}
	return resp
}

func toSessionDetailResponse(d *model.SessionDetail) sessionDetailResponse {
	resp := sessionDetailResponse{
		Session:       toSessionResponse(&d.Session),
		Tally:         toTallyResponse(d.Tally),
		EligibleCount: d.EligibleCount,
		Members:       make([]memberVoteStatusResponse, 0, len(d.Members)),
	}
	if d.Proposal != nil {
		p := toProposalResponse(d.Proposal)
		resp.Proposal = &p
	}
	for _, m := range d.Members {
		resp.Members = append(resp.Members, memberVoteStatusResponse{
			MemberID:   m.MemberID,
			MemberName: m.MemberName,
			Status:     m.Status(),
			CastAt:     m.CastAt,
		})
	}
	return resp
}

// OpenSession は議案の投票セッションを開始する。
// POST /api/sessions
func (h *SessionHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentMember(w, r)
	if !ok {
		return
	}

	var req openSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	session, err := h.service.OpenSession(r.Context(), actor, req.ProposalID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(session))
}

// ListSessions はセッション一覧を返す。?status= で結果により絞り込む。
// GET /api/sessions
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentMember(w, r)
	if !ok {
		return
	}

	sessions, err := h.service.ListSessions(r.Context(), actor, r.URL.Query().Get("status"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponses(sessions))
}

// GetSession はセッション詳細（台帳からの集計とメンバーごとの投票状況）を返す。
// GET /api/sessions/{id}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentMember(w, r)
	if !ok {
		return
	}

	detail, err := h.service.GetSession(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDetailResponse(detail))
}

// RegisterVote は認証済みメンバーの票を記録する。
// POST /api/sessions/{id}/votes
func (h *SessionHandler) RegisterVote(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentMember(w, r)
	if !ok {
		return
	}

	var req registerVoteRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	outcome, err := h.service.RegisterVote(r.Context(), actor, chi.URLParam(r, "id"), req.Kind)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerVoteResponse{
		Vote: voteResponse{
			ID:        outcome.Vote.ID,
			SessionID: outcome.Vote.SessionID,
			MemberID:  outcome.Vote.MemberID,
			Kind:      string(outcome.Vote.Kind),
			CastAt:    outcome.Vote.CastAt,
		},
		Finalized: outcome.Finalized,
		Result:    string(outcome.Result),
		Counters:  toTallyResponse(outcome.Counters),
	})
}

// FinalizeSession は管理者がセッションを手動で確定する。
// POST /api/sessions/{id}/finalize
func (h *SessionHandler) FinalizeSession(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentMember(w, r)
	if !ok {
		return
	}

	session, err := h.service.FinalizeSession(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}
