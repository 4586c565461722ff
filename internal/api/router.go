// Package api содержит HTTP API для клиентов и персонала барбершопа
package api

import (
	"celeb-barber/internal/approval"
	"celeb-barber/internal/booking"
	"celeb-barber/internal/ledger"
	"celeb-barber/internal/metrics"
	"celeb-barber/internal/reconciler"
	"celeb-barber/internal/referral"
	"celeb-barber/internal/settings"
	"celeb-barber/internal/user"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Deps содержит сервисы, которые обслуживает API
type Deps struct {
	Tokens     TokenParser
	Users      *user.Service
	Bookings   *booking.Service
	Approvals  *approval.Service
	Ledger     *ledger.Service
	Reconciler *reconciler.Service
	Referrals  *referral.Service
	Settings   *settings.Service
	Metrics    *metrics.Handler
}

// Server обрабатывает HTTP запросы
type Server struct {
	deps   Deps
	logger *zap.Logger
}

// NewRouter создает gin.Engine со всеми маршрутами
func NewRouter(deps Deps, logger *zap.Logger) *gin.Engine {
	s := &Server{deps: deps, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	if deps.Metrics != nil {
		r.GET("/health", gin.WrapF(deps.Metrics.HealthHandler))
		r.GET("/metrics", gin.WrapH(deps.Metrics.MetricsHandler()))
	}

	api := r.Group("/api")
	api.POST("/auth/signup", s.signup)
	api.POST("/auth/login", s.login)

	client := api.Group("", s.authRequired())
	client.GET("/me", s.profile)
	client.GET("/me/bookings", s.myBookings)
	client.GET("/me/referrals", s.myReferrals)
	client.POST("/bookings", s.createBooking)
	client.GET("/bookings/:id", s.getBooking)
	client.POST("/bookings/:id/queue", s.queueBooking)
	client.GET("/vip/price", s.vipPrice)
	client.POST("/vip/requests", s.submitVIP)

	admin := api.Group("/admin", s.authRequired(), s.adminRequired())
	admin.GET("/approvals", s.listPending)
	admin.POST("/approvals/:id/resolve", s.resolveApproval)
	admin.POST("/bookings/:id/finalize", s.finalizeBooking)
	admin.GET("/users", s.listUsers)
	admin.GET("/users/:id/spend", s.userSpend)
	admin.POST("/users/:id/vip/gift", s.giftVIP)
	admin.DELETE("/users/:id/vip", s.revokeVIP)
	admin.GET("/vips", s.listMemberships)
	admin.GET("/referrals", s.listReferrals)
	admin.POST("/referrals/:id/verify", s.verifyReferral)
	admin.POST("/referrals/:id/reward", s.grantReward)
	admin.DELETE("/referrals/:id", s.unlinkReferral)
	admin.GET("/ledger", s.listLedger)
	admin.DELETE("/ledger/:id", s.correctLedger)
	admin.GET("/revenue", s.revenue)
	admin.PUT("/settings/vip-price", s.setVIPPrice)
	admin.POST("/reconcile", s.reconcile)

	return r
}
