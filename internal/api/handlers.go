package api

import (
	"errors"
	"io"
	"net/http"

	"celeb-barber/internal/amount"
	"celeb-barber/internal/apperr"
	"celeb-barber/pkg/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type signupBody struct {
	Email        string `json:"email" binding:"required"`
	Password     string `json:"password" binding:"required"`
	FullName     string `json:"full_name"`
	Phone        string `json:"phone"`
	ReferralCode string `json:"referral_code"`
}

type loginBody struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type bookingBody struct {
	Service string `json:"service"`
	Price   any    `json:"price"` // число или строка вида "₦5,000"
	Date    string `json:"date"`
	Notes   string `json:"notes"`
	Receipt string `json:"receipt"`
}

type receiptBody struct {
	Receipt string `json:"receipt"`
}

// bindOptional разбирает тело, пустое тело допустимо
func bindOptional(c *gin.Context, dest any) error {
	if err := c.ShouldBindJSON(dest); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// respondList отдает список. Недоступное хранилище дает пустой список.
func respondList[T any](s *Server, c *gin.Context, items []T, err error) {
	if err != nil {
		if errors.Is(err, apperr.ErrStoreUnavailable) {
			s.logger.Warn("список недоступен, отдаем пустой", zap.String("path", c.FullPath()), zap.Error(err))
			s.respond(c, http.StatusOK, "список временно недоступен", []T{})
			return
		}
		s.fail(c, err)
		return
	}
	if items == nil {
		items = []T{}
	}
	s.respond(c, http.StatusOK, "список", items)
}

func (s *Server) signup(c *gin.Context) {
	var body signupBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.badRequest(c, err)
		return
	}

	u, err := s.deps.Users.Signup(c.Request.Context(), &models.SignupRequest{
		Email:        body.Email,
		Secret:       body.Password,
		FullName:     body.FullName,
		Phone:        body.Phone,
		ReferralCode: body.ReferralCode,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respond(c, http.StatusCreated, "пользователь зарегистрирован", u)
}

func (s *Server) login(c *gin.Context) {
	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.badRequest(c, err)
		return
	}

	session, err := s.deps.Users.Login(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respond(c, http.StatusOK, "вход выполнен", session)
}

func (s *Server) profile(c *gin.Context) {
	p, err := s.deps.Users.Profile(c.Request.Context(), claimsFrom(c).Subject)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respond(c, http.StatusOK, "профиль", p)
}

func (s *Server) myBookings(c *gin.Context) {
	bookings, err := s.deps.Bookings.ListForUser(c.Request.Context(), claimsFrom(c).Subject)
	respondList(s, c, bookings, err)
}

func (s *Server) myReferrals(c *gin.Context) {
	links, err := s.deps.Referrals.ForReferrer(c.Request.Context(), claimsFrom(c).Subject)
	respondList(s, c, links, err)
}

func (s *Server) createBooking(c *gin.Context) {
	var body bookingBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.badRequest(c, err)
		return
	}

	b, err := s.deps.Bookings.Create(c.Request.Context(), &models.CreateBookingRequest{
		UserID:  claimsFrom(c).Subject,
		Service: body.Service,
		Price:   amount.Parse(body.Price),
		Date:    body.Date,
		Notes:   body.Notes,
		Receipt: body.Receipt,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respond(c, http.StatusCreated, "бронирование создано", b)
}

// ownBooking возвращает бронирование, если оно принадлежит пользователю или запрос от персонала
func (s *Server) ownBooking(c *gin.Context) (*models.Booking, bool) {
	b, err := s.deps.Bookings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	claims := claimsFrom(c)
	if b.UserID != claims.Subject && !claims.IsAdmin() {
		s.fail(c, apperr.Forbidden("чужое бронирование"))
		return nil, false
	}
	return b, true
}

func (s *Server) getBooking(c *gin.Context) {
	if b, ok := s.ownBooking(c); ok {
		s.respond(c, http.StatusOK, "бронирование", b)
	}
}

func (s *Server) queueBooking(c *gin.Context) {
	var body receiptBody
	if err := bindOptional(c, &body); err != nil {
		s.badRequest(c, err)
		return
	}

	b, ok := s.ownBooking(c)
	if !ok {
		return
	}

	req, err := s.deps.Bookings.QueueForApproval(c.Request.Context(), b.ID, body.Receipt)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respond(c, http.StatusAccepted, "бронирование отправлено на подтверждение", req)
}

func (s *Server) vipPrice(c *gin.Context) {
	price, err := s.deps.Settings.VIPPrice(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respond(c, http.StatusOK, "цена VIP", gin.H{"price": price})
}

func (s *Server) submitVIP(c *gin.Context) {
	var body receiptBody
	if err := bindOptional(c, &body); err != nil {
		s.badRequest(c, err)
		return
	}

	req, err := s.deps.Approvals.SubmitVIPRequest(c.Request.Context(), claimsFrom(c).Subject, body.Receipt)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respond(c, http.StatusAccepted, "заявка на VIP отправлена", req)
}
