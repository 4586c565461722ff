package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMetrics(t *testing.T) {
	logger := zap.NewNop()
	m := New(logger, prometheus.NewRegistry())

	m.RecordResolution("booking", "confirmed")
	m.RecordResolution("booking", "confirmed")
	m.RecordLedgerWrite(true, "booking", decimal.NewFromInt(5000))
	m.RecordLedgerWrite(false, "booking", decimal.NewFromInt(5000))
	m.RecordBooking("created")
	m.RecordVIPRequest(false)
	m.RecordReferralLink(true)
	m.RecordReward("30off")
	m.SetGauge("pending_approvals", 3)

	// неизвестные имена только логируются
	m.IncrementCounter("unknown_total", "x")
	m.SetGauge("unknown", 1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.approvalsResolved.WithLabelValues("booking", "confirmed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ledgerWrites.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ledgerWrites.WithLabelValues("duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.vipRequests.WithLabelValues("rejected")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.pendingApprovals))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordResolution("vip", "declined")
		m.RecordLedgerWrite(true, "vip", decimal.NewFromInt(2500))
		m.RecordBooking("healed")
		m.SetGauge("active_vips", 1)
	})
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		pinger     Pinger
		wantStatus int
	}{
		{name: "хранилище доступно", pinger: fakePinger{}, wantStatus: http.StatusOK},
		{name: "хранилище недоступно", pinger: fakePinger{err: errors.New("нет соединения")}, wantStatus: http.StatusServiceUnavailable},
		{name: "без хранилища", pinger: nil, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(nil, tt.pinger, zap.NewNop())
			rec := httptest.NewRecorder()
			h.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
