package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pdrxSolucoes/pro-voto-sub000/internal/model"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/proposal"
)

// ProposalServiceInterface は議案ハンドラーが必要とするサービスインターフェース。
type ProposalServiceInterface interface {
	Create(ctx context.Context, actor *model.Member, title, body string) (*model.Proposal, error)
	Get(ctx context.Context, actor *model.Member, id string) (*model.Proposal, error)
	List(ctx context.Context, actor *model.Member, status string) ([]*model.Proposal, error)
	Update(ctx context.Context, actor *model.Member, id string, in proposal.UpdateInput) (*model.Proposal, error)
	ListSessions(ctx context.Context, actor *model.Member, id string) ([]*model.VotingSession, error)
}

// ProposalHandler は議案管理のHTTPハンドラー。
type ProposalHandler struct {
	service ProposalServiceInterface
}

// NewProposalHandler はProposalHandlerを生成する。
func NewProposalHandler(service ProposalServiceInterface) *ProposalHandler {
	return &ProposalHandler{service: service}
}

type createProposalRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// updateProposalRequest は部分更新リクエスト。省略したフィールドは変更しない。
type updateProposalRequest struct {
	Title  *string `json:"title"`
	Body   *string `json:"body"`
	Status *string `json:"status"`
}

type proposalResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toProposalResponse(p *model.Proposal) proposalResponse {
	return proposalResponse{
		ID:          p.ID,
		Title:       p.Title,
		Body:        p.Body,
		Status:      string(p.Status),
		SubmittedAt: p.SubmittedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// CreateProposal は議案を登録する。
// POST /api/proposals
func (h *ProposalHandler) CreateProposal(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentMember(w, r)
	if !ok {
		return
	}

	var req createProposalRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	p, err := h.service.Create(r.Context(), actor, req.Title, req.Body)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProposalResponse(p))
}

// GetProposal は議案を取得する。
// GET /api/proposals/{id}
func (h *ProposalHandler) GetProposal(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentMember(w, r)
	if !ok {
		return
	}

	p, err := h.service.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProposalResponse(p))
}

// ListProposals は議案一覧を返す。?status= で絞り込む。
// GET /api/proposals
func (h *ProposalHandler) ListProposals(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentMember(w, r)
	if !ok {
		return
	}

	proposals, err := h.service.List(r.Context(), actor, r.URL.Query().Get("status"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]proposalResponse, 0, len(proposals))
	for _, p := range proposals {
		resp = append(resp, toProposalResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateProposal は投票前の議案を部分更新する。
// PATCH /api/proposals/{id}
func (h *ProposalHandler) UpdateProposal(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentMember(w, r)
	if !ok {
		return
	}

	var req updateProposalRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	p, err := h.service.Update(r.Context(), actor, chi.URLParam(r, "id"), proposal.UpdateInput{
		Title:  req.Title,
		Body:   req.Body,
		Status: req.Status,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProposalResponse(p))
}

// ListProposalSessions は議案の投票セッション履歴を返す。
// GET /api/proposals/{id}/sessions
func (h *ProposalHandler) ListProposalSessions(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentMember(w, r)
	if !ok {
		return
	}

	sessions, err := h.service.ListSessions(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponses(sessions))
}
