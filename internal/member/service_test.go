package member

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/auth"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/model"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/repository"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/repository/memstore"
)

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

func newAdmin(store *memstore.Store) *model.Member {
	admin := model.Member{ID: uuid.NewString(), Name: "Presidente", Email: "presidente@camara.gov.br", Role: model.RoleAdmin, Active: true}
	store.PutMember(admin)
	return &admin
}

func TestCreateMember_Success(t *testing.T) {
	store := memstore.New()
	svc := NewService(store)
	admin := newAdmin(store)

	m, err := svc.CreateMember(context.Background(), admin, CreateInput{
		Name: " Ana Souza ", Email: "Ana@Camara.gov.br", Password: "senha-segura", Role: "member",
	})
	if err != nil {
		t.Fatalf("CreateMember returned error: %v", err)
	}
	if m.Name != "Ana Souza" || m.Email != "ana@camara.gov.br" || m.Role != model.RoleMember || !m.Active {
		t.Errorf("unexpected member: %+v", m)
	}
	if m.PasswordHash == "senha-segura" || !auth.VerifyPassword(m.PasswordHash, "senha-segura") {
		t.Error("パスワードはハッシュ化して保存されるべき")
	}
}

func TestCreateMember_Validation(t *testing.T) {
	tests := []struct {
		name     string
		in       CreateInput
		wantCode string
	}{
		{"名前なし", CreateInput{Name: " ", Email: "a@b.com", Password: "12345678", Role: "member"}, model.ErrCodeInvalidInput},
		{"不正なメール", CreateInput{Name: "A", Email: "not-an-email", Password: "12345678", Role: "member"}, model.ErrCodeInvalidInput},
		{"表示名付きメール", CreateInput{Name: "A", Email: "Ana <a@b.com>", Password: "12345678", Role: "member"}, model.ErrCodeInvalidInput},
		{"不正なロール", CreateInput{Name: "A", Email: "a@b.com", Password: "12345678", Role: "vereador"}, model.ErrCodeInvalidRole},
		{"短いパスワード", CreateInput{Name: "A", Email: "a@b.com", Password: "123", Role: "member"}, model.ErrCodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memstore.New()
			_, err := NewService(store).CreateMember(context.Background(), newAdmin(store), tt.in)
			assertCode(t, err, tt.wantCode)
		})
	}
}

func TestCreateMember_EmailTaken(t *testing.T) {
	store := memstore.New()
	svc := NewService(store)
	admin := newAdmin(store)
	in := CreateInput{Name: "Ana", Email: "ana@camara.gov.br", Password: "12345678", Role: "member"}

	if _, err := svc.CreateMember(context.Background(), admin, in); err != nil {
		t.Fatalf("1件目でエラー: %v", err)
	}
	in.Email = "ANA@camara.gov.br"
	_, err := svc.CreateMember(context.Background(), admin, in)
	assertCode(t, err, model.ErrCodeEmailTaken)
}

func TestCreateMember_Forbidden(t *testing.T) {
	store := memstore.New()
	member := &model.Member{ID: uuid.NewString(), Role: model.RoleMember, Active: true}
	_, err := NewService(store).CreateMember(context.Background(), member, CreateInput{})
	assertCode(t, err, model.ErrCodeForbidden)
}

func TestListMembers(t *testing.T) {
	store := memstore.New()
	svc := NewService(store)
	admin := newAdmin(store)
	store.PutMember(model.Member{ID: uuid.NewString(), Name: "Inativo", Role: model.RoleMember, Active: false})

	active, err := svc.ListMembers(context.Background(), admin, false)
	if err != nil {
		t.Fatalf("ListMembers returned error: %v", err)
	}
	if len(active) != 1 {
		t.Errorf("active members = %d, want 1", len(active))
	}
	all, _ := svc.ListMembers(context.Background(), admin, true)
	if len(all) != 2 {
		t.Errorf("all members = %d, want 2", len(all))
	}
}

func TestDeactivateMember(t *testing.T) {
	store := memstore.New()
	svc := NewService(store)
	admin := newAdmin(store)
	target := model.Member{ID: uuid.NewString(), Name: "Ana", Role: model.RoleMember, Active: true}
	store.PutMember(target)

	if err := svc.DeactivateMember(context.Background(), admin, target.ID); err != nil {
		t.Fatalf("DeactivateMember returned error: %v", err)
	}
	got, _ := store.FindByID(context.Background(), target.ID)
	if got == nil || got.Active {
		t.Errorf("メンバーは論理削除されるべき: %+v", got)
	}

	assertCode(t, svc.DeactivateMember(context.Background(), admin, admin.ID), model.ErrCodeInvalidInput)
	assertCode(t, svc.DeactivateMember(context.Background(), admin, uuid.NewString()), model.ErrCodeMemberNotFound)
	assertCode(t, svc.DeactivateMember(context.Background(), admin, "x"), model.ErrCodeInvalidID)
}

func TestBootstrapAdmin(t *testing.T) {
	store := memstore.New()
	svc := NewService(store)

	m, err := svc.BootstrapAdmin(context.Background(), "Presidente", "presidente@camara.gov.br", "senha-inicial")
	if err != nil {
		t.Fatalf("BootstrapAdmin returned error: %v", err)
	}
	if m.Role != model.RoleAdmin {
		t.Errorf("role = %q, want admin", m.Role)
	}

	_, err = svc.BootstrapAdmin(context.Background(), "Outro", "outro@camara.gov.br", "senha-inicial")
	assertCode(t, err, model.ErrCodeAdminExists)
}

type failingRepo struct {
	repository.MemberRepository
}

func (failingRepo) CountActiveAdmins(context.Context) (int, error) {
	return 0, repository.ErrUnavailable
}

func TestBootstrapAdmin_StoreError(t *testing.T) {
	_, err := NewService(failingRepo{}).BootstrapAdmin(context.Background(), "A", "a@b.com", "12345678")
	if !errors.Is(err, repository.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}
