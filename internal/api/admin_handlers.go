package api

import (
	"net/http"

	"celeb-barber/internal/amount"

	"github.com/gin-gonic/gin"
)

type resolveBody struct {
	Outcome string `json:"outcome" binding:"required"` // confirmed, declined
	Reason  string `json:"reason"`
}

type finalizeBody struct {
	Outcome string `json:"outcome" binding:"required"` // approve, cancel
}

type giftBody struct {
	Days int `json:"days"`
}

type rewardBody struct {
	Reward string `json:"reward"` // 30off, freecut
}

type priceBody struct {
	Price any `json:"price"`
}

type reconcileBody struct {
	UserIDs []string `json:"user_ids"`
	DryRun  bool     `json:"dry_run"`
}

func (s *Server) listPending(c *gin.Context) {
	requests, err := s.deps.Approvals.ListPending(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respond(c, http.StatusOK, "ожидающие заявки", requests)
}

func (s *Server) resolveApproval(c *gin.Context) {
	var body resolveBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.badRequest(c, err)
		return
	}

	req, err := s.deps.Approvals.Resolve(c.Request.Context(), c.Param("id"), body.Outcome, claimsFrom(c).Email, body.Reason)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respond(c, http.StatusOK, "решение сохранено", req)
}

func (s *Server) finalizeBooking(c *gin.Context) {
	var body finalizeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.badRequest(c, err)
		return
	}

	b, err := s.deps.Bookings.Finalize(c.Request.Context(), c.Param("id"), body.Outcome)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respond(c, http.StatusOK, "бронирование завершено", b)
}

func (s *Server) listUsers(c *gin.Context) {
	users, err := s.deps.Users.GetAllUsers(c.Request.Context())
	respondList(s, c, users, err)
}

func (s *Server) userSpend(c *gin.Context) {
	spend, err := s.deps.Reconciler.GetUserSpend(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respond(c, http.StatusOK, "траты пользователя", spend)
}

func (s *Server) giftVIP(c *gin.Context) {
	var body giftBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.badRequest(c, err)
		return
	}

	expires, err := s.deps.Reconciler.GiftDays(c.Request.Context(), c.Param("id"), body.Days)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respond(c, http.StatusOK, "VIP продлен", gin.H{"vip_expires": expires})
}

func (s *Server) revokeVIP(c *gin.Context) {
	if err := s.deps.Reconciler.Revoke(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	s.respond(c, http.StatusOK, "VIP отозван", nil)
}

func (s *Server) listMemberships(c *gin.Context) {
	members, err := s.deps.Reconciler.Memberships(c.Request.Context())
	respondList(s, c, members, err)
}

func (s *Server) listReferrals(c *gin.Context) {
	links, err := s.deps.Referrals.List(c.Request.Context())
	respondList(s, c, links, err)
}

func (s *Server) verifyReferral(c *gin.Context) {
	if err := s.deps.Referrals.Verify(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	s.respond(c, http.StatusOK, "приглашение подтверждено", nil)
}

func (s *Server) grantReward(c *gin.Context) {
	var body rewardBody
	if err := bindOptional(c, &body); err != nil {
		s.badRequest(c, err)
		return
	}

	if err := s.deps.Referrals.GrantReward(c.Request.Context(), c.Param("id"), body.Reward); err != nil {
		s.fail(c, err)
		return
	}
	s.respond(c, http.StatusOK, "награда выдана", nil)
}

func (s *Server) unlinkReferral(c *gin.Context) {
	if err := s.deps.Referrals.Unlink(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	s.respond(c, http.StatusOK, "приглашение отвязано", nil)
}

func (s *Server) listLedger(c *gin.Context) {
	entries, err := s.deps.Ledger.All(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respond(c, http.StatusOK, "журнал выручки", entries)
}

func (s *Server) correctLedger(c *gin.Context) {
	if err := s.deps.Ledger.Correct(c.Request.Context(), c.Param("id"), claimsFrom(c).Email); err != nil {
		s.fail(c, err)
		return
	}
	s.respond(c, http.StatusOK, "запись журнала исправлена", nil)
}

func (s *Server) revenue(c *gin.Context) {
	rev, err := s.deps.Ledger.Revenue(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respond(c, http.StatusOK, "выручка", rev)
}

func (s *Server) setVIPPrice(c *gin.Context) {
	var body priceBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.badRequest(c, err)
		return
	}

	price := amount.Parse(body.Price)
	if err := s.deps.Settings.SetVIPPrice(c.Request.Context(), price); err != nil {
		s.fail(c, err)
		return
	}
	s.respond(c, http.StatusOK, "цена VIP обновлена", gin.H{"price": price})
}

func (s *Server) reconcile(c *gin.Context) {
	var body reconcileBody
	if err := bindOptional(c, &body); err != nil {
		s.badRequest(c, err)
		return
	}

	results, err := s.deps.Reconciler.Reconcile(c.Request.Context(), body.UserIDs, body.DryRun)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respond(c, http.StatusOK, "сверка выполнена", results)
}
