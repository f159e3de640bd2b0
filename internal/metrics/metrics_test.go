package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveOperation(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveOperation("AddExpense", "ok", 5*time.Millisecond)
	m.ObserveOperation("AddExpense", "ok", 7*time.Millisecond)
	m.ObserveOperation("AddExpense", "validation", time.Millisecond)

	if got := testutil.ToFloat64(m.operations.WithLabelValues("AddExpense", "ok")); got != 2 {
		t.Errorf("ok count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("AddExpense", "validation")); got != 1 {
		t.Errorf("validation count = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.duration); got != 1 {
		t.Errorf("duration series = %d, want 1", got)
	}
}

func TestCountersAndGauges(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.CommitConflict("JoinGroup")
	m.CascadeDeleted(3)
	m.CascadeDeleted(2)
	m.SummaryCache(true)
	m.SummaryCache(false)
	m.SummaryCache(false)

	if got := testutil.ToFloat64(m.conflicts.WithLabelValues("JoinGroup")); got != 1 {
		t.Errorf("conflicts = %v", got)
	}
	if got := testutil.ToFloat64(m.cascade); got != 5 {
		t.Errorf("cascade = %v, want 5", got)
	}
	if got := testutil.ToFloat64(m.cache.WithLabelValues("miss")); got != 2 {
		t.Errorf("cache misses = %v, want 2", got)
	}

	done := m.SubscriptionOpened("groups")
	if got := testutil.ToFloat64(m.subscriptions.WithLabelValues("groups")); got != 1 {
		t.Errorf("subscriptions = %v, want 1", got)
	}
	done()
	if got := testutil.ToFloat64(m.subscriptions.WithLabelValues("groups")); got != 0 {
		t.Errorf("subscriptions after close = %v, want 0", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveOperation("x", "ok", time.Second)
	m.CommitConflict("x")
	m.CascadeDeleted(1)
	m.SummaryCache(true)
	m.SubscriptionOpened("groups")()
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := NewRegistry()
	m := New(reg)
	m.CascadeDeleted(1)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, "splitledger_cascade_deleted_expenses_total 1") {
		t.Errorf("metrics output missing cascade counter:\n%s", body)
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Error("metrics output missing runtime collector")
	}
}
