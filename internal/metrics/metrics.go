package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Metrics содержит все метрики приложения. Нулевой указатель допустим: методы ничего не делают.
type Metrics struct {
	logger   *zap.Logger
	gatherer prometheus.Gatherer

	// Счетчики
	approvalsResolved *prometheus.CounterVec
	ledgerWrites      *prometheus.CounterVec
	bookings          *prometheus.CounterVec
	vipRequests       *prometheus.CounterVec
	referralLinks     *prometheus.CounterVec
	rewardsGranted    *prometheus.CounterVec

	// Гистограммы
	settledAmount *prometheus.HistogramVec

	// Gauge метрики
	pendingApprovals prometheus.Gauge
	activeVIPs       prometheus.Gauge

	mu sync.RWMutex
}

// New создает метрики и регистрирует их в reg. При nil используется глобальный реестр.
func New(logger *zap.Logger, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		logger: logger,

		approvalsResolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "approvals_resolved_total",
				Help: "Количество решенных заявок",
			},
			[]string{"type", "outcome"}, // type: booking, vip; outcome: confirmed, declined, noop
		),

		ledgerWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_writes_total",
				Help: "Количество попыток записи в журнал",
			},
			[]string{"result"}, // created, duplicate
		),

		bookings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookings_total",
				Help: "События жизненного цикла бронирований",
			},
			[]string{"event"}, // created, queued, confirmed, cancelled, healed
		),

		vipRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vip_requests_total",
				Help: "Количество VIP-заявок",
			},
			[]string{"result"}, // submitted, rejected
		),

		referralLinks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "referral_links_total",
				Help: "Количество попыток привязки реферального кода",
			},
			[]string{"result"}, // linked, unknown_code
		),

		rewardsGranted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "referral_rewards_total",
				Help: "Количество выданных реферальных наград",
			},
			[]string{"reward"},
		),

		settledAmount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "settled_amount",
				Help:    "Проведенные суммы",
				Buckets: []float64{500, 1000, 2500, 5000, 10000, 25000, 50000, 100000},
			},
			[]string{"type"},
		),

		pendingApprovals: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pending_approvals",
				Help: "Количество ожидающих заявок при последнем запросе списка",
			},
		),

		activeVIPs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "active_vips",
				Help: "Количество VIP-пользователей при последней проверке",
			},
		),
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	} else {
		m.gatherer = prometheus.DefaultGatherer
	}

	// Регистрируем все метрики
	reg.MustRegister(
		m.approvalsResolved,
		m.ledgerWrites,
		m.bookings,
		m.vipRequests,
		m.referralLinks,
		m.rewardsGranted,
		m.settledAmount,
		m.pendingApprovals,
		m.activeVIPs,
	)

	return m
}

// IncrementCounter увеличивает счетчик
func (m *Metrics) IncrementCounter(name string, labels ...string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var counter *prometheus.CounterVec

	switch name {
	case "approvals_resolved_total":
		counter = m.approvalsResolved
	case "ledger_writes_total":
		counter = m.ledgerWrites
	case "bookings_total":
		counter = m.bookings
	case "vip_requests_total":
		counter = m.vipRequests
	case "referral_links_total":
		counter = m.referralLinks
	case "referral_rewards_total":
		counter = m.rewardsGranted
	default:
		m.logger.Error("неизвестная метрика", zap.String("name", name))
		return
	}

	counter.WithLabelValues(labels...).Inc()
	m.logger.Debug("метрика увеличена", zap.String("metric", name), zap.Strings("labels", labels))
}

// SetGauge устанавливает значение gauge метрики
func (m *Metrics) SetGauge(name string, value float64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var gauge prometheus.Gauge

	switch name {
	case "pending_approvals":
		gauge = m.pendingApprovals
	case "active_vips":
		gauge = m.activeVIPs
	default:
		m.logger.Error("неизвестная gauge метрика", zap.String("name", name))
		return
	}

	gauge.Set(value)
}

// RecordResolution записывает решение по заявке
func (m *Metrics) RecordResolution(approvalType, outcome string) {
	m.IncrementCounter("approvals_resolved_total", approvalType, outcome)
}

// RecordLedgerWrite записывает попытку записи в журнал
func (m *Metrics) RecordLedgerWrite(created bool, entryType string, amount decimal.Decimal) {
	if m == nil {
		return
	}
	if !created {
		m.IncrementCounter("ledger_writes_total", "duplicate")
		return
	}
	m.IncrementCounter("ledger_writes_total", "created")

	m.mu.Lock()
	defer m.mu.Unlock()
	m.settledAmount.WithLabelValues(entryType).Observe(amount.InexactFloat64())
}

// RecordBooking записывает событие бронирования
func (m *Metrics) RecordBooking(event string) {
	m.IncrementCounter("bookings_total", event)
}

// RecordVIPRequest записывает результат подачи VIP-заявки
func (m *Metrics) RecordVIPRequest(submitted bool) {
	result := "submitted"
	if !submitted {
		result = "rejected"
	}
	m.IncrementCounter("vip_requests_total", result)
}

// RecordReferralLink записывает результат привязки кода
func (m *Metrics) RecordReferralLink(linked bool) {
	result := "linked"
	if !linked {
		result = "unknown_code"
	}
	m.IncrementCounter("referral_links_total", result)
}

// RecordReward записывает выданную награду
func (m *Metrics) RecordReward(reward string) {
	m.IncrementCounter("referral_rewards_total", reward)
}

// Handler возвращает HTTP handler для метрик
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
