package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/pdrxSolucoes/pro-voto-sub000/internal/model"
)

// findMetric は指定名・ラベルのメトリクスを返す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return nil
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string)
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	if NewCollector(prometheus.NewRegistry()) == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestNewCollector_DoubleRegisterPanics は同一レジストリへの二重登録がpanicすることを検証する。
func TestNewCollector_DoubleRegisterPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	NewCollector(reg)
}

func TestVoteCast_CountsByKind(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.VoteCast(model.VoteKindApprove)
	c.VoteCast(model.VoteKindApprove)
	c.VoteCast(model.VoteKindAbstain)

	if v := findMetric(t, reg, "provoto_votes_cast_total", map[string]string{"kind": "approve"}).GetCounter().GetValue(); v != 2 {
		t.Errorf("approve = %v, want 2", v)
	}
	if v := findMetric(t, reg, "provoto_votes_cast_total", map[string]string{"kind": "abstain"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("abstain = %v, want 1", v)
	}
}

func TestSessionFinalized_CountsByResultAndTrigger(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SessionOpened()
	c.SessionFinalized(model.SessionResultApproved, model.FinalizeTriggerQuorum)

	m := findMetric(t, reg, "provoto_sessions_finalized_total", map[string]string{"result": "approved", "trigger": "quorum"})
	if v := m.GetCounter().GetValue(); v != 1 {
		t.Errorf("finalized = %v, want 1", v)
	}
	if v := findMetric(t, reg, "provoto_sessions_opened_total", nil).GetCounter().GetValue(); v != 1 {
		t.Errorf("opened = %v, want 1", v)
	}
}

func TestWorkerCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSweepFinalized(3)
	c.RecordReconciled(2)
	c.VoteRejected("already_voted")

	if v := findMetric(t, reg, "provoto_sweep_finalized_total", nil).GetCounter().GetValue(); v != 3 {
		t.Errorf("sweep = %v, want 3", v)
	}
	if v := findMetric(t, reg, "provoto_reconciled_sessions_total", nil).GetCounter().GetValue(); v != 2 {
		t.Errorf("reconciled = %v, want 2", v)
	}
	if v := findMetric(t, reg, "provoto_vote_rejections_total", map[string]string{"reason": "already_voted"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("rejections = %v, want 1", v)
	}
}

func TestObserveTx_RecordsHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveTx("register_vote", 15*time.Millisecond)
	c.ObserveTx("register_vote", 25*time.Millisecond)

	h := findMetric(t, reg, "provoto_tx_duration_seconds", map[string]string{"operation": "register_vote"}).GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("sample count = %d, want 2", h.GetSampleCount())
	}
	if h.GetSampleSum() < 0.039 || h.GetSampleSum() > 0.041 {
		t.Errorf("sample sum = %v, want ~0.04", h.GetSampleSum())
	}
}
