// Package model はドメインモデルを定義する。
package model

import "time"

// SessionResult は投票セッションの結果を表す。
type SessionResult string

const (
	// SessionResultInProgress は投票受付中。
	SessionResultInProgress SessionResult = "in_progress"
	// SessionResultApproved は可決で確定済み。
	SessionResultApproved SessionResult = "approved"
	// SessionResultRejected は否決で確定済み。
	SessionResultRejected SessionResult = "rejected"
)

// ParseSessionResult は文字列をSessionResultに変換する。
func ParseSessionResult(s string) (SessionResult, bool) {
	switch SessionResult(s) {
	case SessionResultInProgress, SessionResultApproved, SessionResultRejected:
		return SessionResult(s), true
	default:
		return "", false
	}
}

// IsFinal は確定済みの結果かどうかを返す。
func (r SessionResult) IsFinal() bool {
	return r == SessionResultApproved || r == SessionResultRejected
}

// ProposalStatus は確定結果を議案の状態に変換する。
func (r SessionResult) ProposalStatus() ProposalStatus {
	switch r {
	case SessionResultApproved:
		return ProposalStatusApproved
	case SessionResultRejected:
		return ProposalStatusRejected
	default:
		return ProposalStatusVoting
	}
}

// VoteKind は票の種類を表す。
type VoteKind string

const (
	// VoteKindApprove は賛成票。
	VoteKindApprove VoteKind = "approve"
	// VoteKindReject は反対票。
	VoteKindReject VoteKind = "reject"
	// VoteKindAbstain は棄権票。
	VoteKindAbstain VoteKind = "abstain"
)

// ParseVoteKind は文字列をVoteKindに変換する。approve、reject、abstain以外はfalseを返す。
func ParseVoteKind(s string) (VoteKind, bool) {
	switch VoteKind(s) {
	case VoteKindApprove, VoteKindReject, VoteKindAbstain:
		return VoteKind(s), true
	default:
		return "", false
	}
}

// Tally は票の集計結果を表す。
type Tally struct {
	Favor   int
	Against int
	Abstain int
}

// Total は投じられた票の総数を返す。
func (t Tally) Total() int {
	return t.Favor + t.Against + t.Abstain
}

// Add は票を1件加算した集計を返す。
func (t Tally) Add(kind VoteKind) Tally {
	switch kind {
	case VoteKindApprove:
		t.Favor++
	case VoteKindReject:
		t.Against++
	case VoteKindAbstain:
		t.Abstain++
	}
	return t
}

// VotingSession は1つの議案に対する1回の投票ラウンドを表す。
// Favor/Against/Abstainは投票台帳の集計のキャッシュであり、
// 票を記録したトランザクション内で必ず再計算される。
type VotingSession struct {
	ID         string
	ProposalID string
	StartedAt  time.Time
	EndedAt    *time.Time
	Result     SessionResult
	Counters   Tally
}

// IsOpen は投票を受け付けている状態かどうかを返す。
func (s *VotingSession) IsOpen() bool {
	return s.Result == SessionResultInProgress
}

// Vote は投票台帳の1行を表す。(SessionID, MemberID) ごとに最大1件。
type Vote struct {
	ID        string
	SessionID string
	MemberID  string
	Kind      VoteKind
	CastAt    time.Time
}

// FinalizeTrigger はセッション確定の契機を表す。
type FinalizeTrigger string

const (
	// FinalizeTriggerQuorum は全有権者の投票完了による自動確定。
	FinalizeTriggerQuorum FinalizeTrigger = "quorum"
	// FinalizeTriggerAdmin は管理者による手動確定。
	FinalizeTriggerAdmin FinalizeTrigger = "admin"
	// FinalizeTriggerSweep は定期スイープによる確定。
	FinalizeTriggerSweep FinalizeTrigger = "sweep"
)

// MemberVoteStatus は表示用のメンバーごとの投票状況を表す。
// Kindが空の場合は未投票（pending）。
type MemberVoteStatus struct {
	MemberID   string
	MemberName string
	Kind       VoteKind
	CastAt     *time.Time
}

// Status は表示用の状態文字列（pending/approve/reject/abstain）を返す。
func (s MemberVoteStatus) Status() string {
	if s.Kind == "" {
		return "pending"
	}
	return string(s.Kind)
}

// SessionDetail はセッションと台帳から再集計した集計、メンバーごとの投票状況をまとめたもの。
type SessionDetail struct {
	Session       VotingSession
	Proposal      *Proposal
	Tally         Tally
	EligibleCount int
	Members       []MemberVoteStatus
}
