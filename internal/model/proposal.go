// Package model はドメインモデルを定義する。
package model

import "time"

// ProposalStatus は議案の状態を表す。
type ProposalStatus string

const (
	// ProposalStatusPending は投票前の状態。編集可能。
	ProposalStatusPending ProposalStatus = "pending"
	// ProposalStatusVoting は投票セッションが進行中の状態。
	ProposalStatusVoting ProposalStatus = "voting"
	// ProposalStatusApproved は可決された状態。
	ProposalStatusApproved ProposalStatus = "approved"
	// ProposalStatusRejected は否決された状態。
	ProposalStatusRejected ProposalStatus = "rejected"
)

// ParseProposalStatus は文字列をProposalStatusに変換する。
func ParseProposalStatus(s string) (ProposalStatus, bool) {
	switch ProposalStatus(s) {
	case ProposalStatusPending, ProposalStatusVoting, ProposalStatusApproved, ProposalStatusRejected:
		return ProposalStatus(s), true
	default:
		return "", false
	}
}

// Proposal は投票対象となる議案（projeto/emenda）を表す。
type Proposal struct {
	ID          string
	Title       string
	Body        string
	Status      ProposalStatus
	SubmittedAt time.Time
	UpdatedAt   time.Time
}

// ProposalUpdate は議案の部分更新内容を表す。nilフィールドは変更しない。
type ProposalUpdate struct {
	Title  *string
	Body   *string
	Status *ProposalStatus
}
