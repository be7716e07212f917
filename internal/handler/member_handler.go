package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pdrxSolucoes/pro-voto-sub000/internal/member"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/model"
)

// MemberServiceInterface はメンバーハンドラーが必要とするサービスインターフェース。
type MemberServiceInterface interface {
	CreateMember(ctx context.Context, actor *model.Member, in member.CreateInput) (*model.Member, error)
	ListMembers(ctx context.Context, actor *model.Member, includeInactive bool) ([]*model.Member, error)
	DeactivateMember(ctx context.Context, actor *model.Member, id string) error
}

// MemberHandler はメンバー管理のHTTPハンドラー。
type MemberHandler struct {
	service MemberServiceInterface
}

// NewMemberHandler はMemberHandlerを生成する。
func NewMemberHandler(service MemberServiceInterface) *MemberHandler {
	return &MemberHandler{service: service}
}

type createMemberRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// memberResponse はメンバー情報のAPIレスポンス。パスワードハッシュは含めない。
type memberResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func toMemberResponse(m *model.Member) memberResponse {
	return memberResponse{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Role:      string(m.Role),
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
	}
}

// CreateMember はメンバーを作成する。
// POST /api/members
func (h *MemberHandler) CreateMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentMember(w, r)
	if !ok {
		return
	}

	var req createMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	created, err := h.service.CreateMember(r.Context(), actor, member.CreateInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toMemberResponse(created))
}

// ListMembers はメンバー一覧を返す。?include_inactive=true で無効化済みも含める。
// GET /api/members
func (h *MemberHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentMember(w, r)
	if !ok {
		return
	}

	includeInactive := r.URL.Query().Get("include_inactive") == "true"
	members, err := h.service.ListMembers(r.Context(), actor, includeInactive)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]memberResponse, 0, len(members))
	for _, m := range members {
		resp = append(resp, toMemberResponse(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeactivateMember はメンバーを論理削除する。
// DELETE /api/members/{id}
func (h *MemberHandler) DeactivateMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentMember(w, r)
	if !ok {
		return
	}

	if err := h.service.DeactivateMember(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
