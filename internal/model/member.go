// Package model はドメインモデルを定義する。
package model

import "time"

// Role はメンバーの権限ロールを表す。
type Role string

const (
	// RoleAdmin は管理者ロール。セッション開始・確定、議案・メンバー管理が可能。
	RoleAdmin Role = "admin"
	// RoleMember は議員（vereador）ロール。投票のみ可能。
	RoleMember Role = "member"
)

// ParseRole は文字列をRoleに変換する。admin、member以外はfalseを返す。
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin, RoleMember:
		return Role(s), true
	default:
		return "", false
	}
}

// Satisfies はこのロールがrequiredで要求される操作を実行できるかを返す。
// adminはmember向け操作もすべて実行できるが、その逆はない。
func (r Role) Satisfies(required Role) bool {
	switch required {
	case RoleMember:
		return r == RoleMember || r == RoleAdmin
	case RoleAdmin:
		return r == RoleAdmin
	default:
		return false
	}
}

// Member はシステムの利用者（議員または管理者）を表す。
// 物理削除は行わず、Activeをfalseにする論理削除のみ。
type Member struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsEligibleVoter は定足数の算定対象となるメンバーかどうかを返す。
// 管理者も投票権を持つ。
func (m *Member) IsEligibleVoter() bool {
	return m.Active && (m.Role == RoleMember || m.Role == RoleAdmin)
}
