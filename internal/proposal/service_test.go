package proposal

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/model"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/repository/memstore"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/security"
)

var (
	admin  = &model.Member{ID: uuid.NewString(), Name: "Presidente", Role: model.RoleAdmin, Active: true}
	member = &model.Member{ID: uuid.NewString(), Name: "Vereador", Role: model.RoleMember, Active: true}
)

func newTestService() (*Service, *memstore.Store) {
	store := memstore.New()
	return NewService(store.ProposalRepo(), store.SessionRepo(), security.NewContentSanitizer()), store
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError with code %s, got %T: %v", code, err, err)
	}
	if apiErr.Code != code {
		t.Errorf("Code = %q, want %q", apiErr.Code, code)
	}
}

func strPtr(s string) *string { return &s }

func TestCreate_SanitizesAndStoresPending(t *testing.T) {
	svc, _ := newTestService()

	p, err := svc.Create(context.Background(), admin, "<b>PL 7/2026</b>", `<p>Art. 1º</p><script>alert(1)</script>`)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if p.Title != "PL 7/2026" {
		t.Errorf("Title = %q, want sanitized title", p.Title)
	}
	if strings.Contains(p.Body, "script") || !strings.Contains(p.Body, "<p>Art. 1º</p>") {
		t.Errorf("Body = %q", p.Body)
	}
	if p.Status != model.ProposalStatusPending {
		t.Errorf("Status = %q, want pending", p.Status)
	}

	got, err := svc.Get(context.Background(), member, p.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("Get returned %+v", got)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Create(context.Background(), admin, "<script>x</script>", "corpo")
	assertCode(t, err, model.ErrCodeInvalidInput)

	_, err = svc.Create(context.Background(), admin, "PL", "<iframe></iframe>")
	assertCode(t, err, model.ErrCodeInvalidInput)

	_, err = svc.Create(context.Background(), admin, strings.Repeat("a", maxTitleLength+1), "corpo")
	assertCode(t, err, model.ErrCodeInvalidInput)

	_, err = svc.Create(context.Background(), member, "PL", "corpo")
	assertCode(t, err, model.ErrCodeForbidden)
}

func TestGet_Failures(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Get(context.Background(), member, "abc")
	assertCode(t, err, model.ErrCodeInvalidID)

	_, err = svc.Get(context.Background(), member, uuid.NewString())
	assertCode(t, err, model.ErrCodeProposalNotFound)

	_, err = svc.Get(context.Background(), nil, uuid.NewString())
	assertCode(t, err, model.ErrCodeUnauthorized)
}

func TestList_FilterByStatus(t *testing.T) {
	svc, store := newTestService()
	now := time.Now()
	store.PutProposal(model.Proposal{ID: uuid.NewString(), Title: "A", Status: model.ProposalStatusPending, SubmittedAt: now})
	store.PutProposal(model.Proposal{ID: uuid.NewString(), Title: "B", Status: model.ProposalStatusApproved, SubmittedAt: now.Add(time.Minute)})

	all, err := svc.List(context.Background(), member, "")
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(all) != 2 || all[0].Title != "B" {
		t.Errorf("提出日時の降順で全件を返すべき: %+v", all)
	}

	approved, _ := svc.List(context.Background(), member, "approved")
	if len(approved) != 1 || approved[0].Title != "B" {
		t.Errorf("approved = %+v", approved)
	}

	_, err = svc.List(context.Background(), member, "archived")
	assertCode(t, err, model.ErrCodeInvalidStatus)
}

func TestUpdate(t *testing.T) {
	svc, store := newTestService()
	p, err := svc.Create(context.Background(), admin, "PL 1", "corpo")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	t.Run("pendingの議案は編集できる", func(t *testing.T) {
		got, err := svc.Update(context.Background(), admin, p.ID, UpdateInput{Title: strPtr("PL 1 (emenda)")})
		if err != nil {
			t.Fatalf("Update returned error: %v", err)
		}
		if got.Title != "PL 1 (emenda)" || got.Body != "corpo" {
			t.Errorf("unexpected proposal: %+v", got)
		}
	})

	t.Run("votingへの変更は拒否される", func(t *testing.T) {
		_, err := svc.Update(context.Background(), admin, p.ID, UpdateInput{Status: strPtr("voting")})
		assertCode(t, err, model.ErrCodeInvalidStatus)
	})

	t.Run("変更内容なし", func(t *testing.T) {
		_, err := svc.Update(context.Background(), admin, p.ID, UpdateInput{})
		assertCode(t, err, model.ErrCodeInvalidRequest)
	})

	t.Run("議員は編集できない", func(t *testing.T) {
		_, err := svc.Update(context.Background(), member, p.ID, UpdateInput{Title: strPtr("x")})
		assertCode(t, err, model.ErrCodeForbidden)
	})

	t.Run("存在しない議案", func(t *testing.T) {
		_, err := svc.Update(context.Background(), admin, uuid.NewString(), UpdateInput{Title: strPtr("x")})
		assertCode(t, err, model.ErrCodeProposalNotFound)
	})

	t.Run("投票中の議案は編集できない", func(t *testing.T) {
		voting, _ := store.Proposal(p.ID)
		voting.Status = model.ProposalStatusVoting
		store.PutProposal(voting)

		_, err := svc.Update(context.Background(), admin, p.ID, UpdateInput{Body: strPtr("novo corpo")})
		assertCode(t, err, model.ErrCodeProposalNotEditable)
	})
}

func TestListSessions(t *testing.T) {
	svc, store := newTestService()
	p, _ := svc.Create(context.Background(), admin, "PL 2", "corpo")
	store.PutSession(model.VotingSession{ID: uuid.NewString(), ProposalID: p.ID, StartedAt: time.Now(), Result: model.SessionResultRejected})
	store.PutSession(model.VotingSession{ID: uuid.NewString(), ProposalID: uuid.NewString(), StartedAt: time.Now(), Result: model.SessionResultInProgress})

	sessions, err := svc.ListSessions(context.Background(), member, p.ID)
	if err != nil {
		t.Fatalf("ListSessions returned error: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ProposalID != p.ID {
		t.Errorf("sessions = %+v", sessions)
	}

	_, err = svc.ListSessions(context.Background(), member, uuid.NewString())
	assertCode(t, err, model.ErrCodeProposalNotFound)
}
