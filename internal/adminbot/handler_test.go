package adminbot

import (
	"context"
	"errors"
	"testing"
	"time"

	"celeb-barber/internal/apperr"
	"celeb-barber/internal/approval"
	"celeb-barber/internal/booking"
	"celeb-barber/internal/config"
	"celeb-barber/internal/ledger"
	"celeb-barber/internal/reconciler"
	"celeb-barber/internal/referral"
	"celeb-barber/internal/settings"
	"celeb-barber/internal/store/memstore"
	"celeb-barber/pkg/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const adminChat int64 = 777

type fixture struct {
	st       *memstore.Store
	handler  *Handler
	bookings *booking.Service
	ledger   *ledger.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memstore.New()
	logger := zap.NewNop()

	refs := referral.NewService(st.User(), st.Booking(), "CELEB-", nil, logger)
	led := ledger.NewService(st.Ledger(), st.Booking(), nil, logger)
	rec := reconciler.NewService(st.User(), st.Booking(), led, refs, 30, nil, logger)
	bk := booking.NewService(st.Booking(), st.Approval(), st.User(), rec, nil, logger)
	set := settings.NewService(st.Settings(), nil, time.Minute, decimal.NewFromInt(2500), logger)
	approvals := approval.NewService(st.Approval(), st.User(), led, bk, rec, set, nil, logger)

	require.NoError(t, st.User().Create(context.Background(), &models.User{
		ID:           "u1",
		FullName:     "Тунде",
		Email:        "tunde@example.com",
		ReferralCode: "CELEB-U1",
	}))

	return &fixture{
		st:       st,
		handler:  NewHandler(nil, approvals, rec, refs, config.TelegramConfig{AdminChatIDs: []int64{adminChat}}, logger),
		bookings: bk,
		ledger:   led,
	}
}

func (f *fixture) queueBooking(t *testing.T) *models.ApprovalRequest {
	t.Helper()
	ctx := context.Background()
	b, err := f.bookings.Create(ctx, &models.CreateBookingRequest{
		UserID:  "u1",
		Service: "Стрижка",
		Price:   decimal.NewFromInt(5000),
		Date:    "2026-10-20 14:00",
	})
	require.NoError(t, err)
	req, err := f.bookings.QueueForApproval(ctx, b.ID, "")
	require.NoError(t, err)
	return req
}

func TestHandleCommand_ApproveFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.queueBooking(t)

	reply, err := f.handler.HandleCommand(ctx, adminChat, "/pending")
	require.NoError(t, err)
	assert.Contains(t, reply, "Ожидают решения: 1")
	assert.Contains(t, reply, req.ID)

	reply, err = f.handler.HandleCommand(ctx, adminChat, "/approve@celeb_bot "+req.ID)
	require.NoError(t, err)
	assert.Contains(t, reply, "подтверждена")

	// повтор не создает вторую проводку
	_, err = f.handler.HandleCommand(ctx, adminChat, "/approve "+req.ID)
	require.NoError(t, err)

	entries, err := f.ledger.ForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	resolved, err := f.st.Approval().GetByID(ctx, req.ID)
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, "telegram:777", *resolved.ResolvedBy)

	reply, err = f.handler.HandleCommand(ctx, adminChat, "/spend u1")
	require.NoError(t, err)
	assert.Contains(t, reply, "5000")

	reply, err = f.handler.HandleCommand(ctx, adminChat, "/pending")
	require.NoError(t, err)
	assert.Equal(t, "Ожидающих заявок нет", reply)
}

func TestHandleCommand_Decline(t *testing.T) {
	tests := []struct {
		name       string
		args       string
		wantReason string
	}{
		{name: "с причиной", args: " чек не найден", wantReason: "чек не найден"},
		{name: "без причины", args: "", wantReason: approval.DefaultDeclineReason},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := f.queueBooking(t)

			reply, err := f.handler.HandleCommand(context.Background(), adminChat, "/decline "+req.ID+tt.args)
			require.NoError(t, err)
			assert.Contains(t, reply, "отклонена")
			assert.Contains(t, reply, tt.wantReason)
		})
	}
}

func TestHandleCommand_GiftRevokeReward(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reply, err := f.handler.HandleCommand(ctx, adminChat, "/gift u1 10")
	require.NoError(t, err)
	assert.Contains(t, reply, "VIP продлен до")

	u, err := f.st.User().GetByID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, u.VIPExpires)

	reply, err = f.handler.HandleCommand(ctx, adminChat, "/revoke u1")
	require.NoError(t, err)
	assert.Equal(t, "VIP снят", reply)

	reply, err = f.handler.HandleCommand(ctx, adminChat, "/reward u1 freecut")
	require.NoError(t, err)
	assert.Contains(t, reply, "Награда выдана")

	u, err = f.st.User().GetByID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, u.LastClaimedReward)
	assert.Equal(t, models.RewardFreeCut, *u.LastClaimedReward)
}

func TestHandleCommand_Errors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		text    string
		wantErr error
	}{
		{name: "approve без ID", text: "/approve", wantErr: apperr.ErrInvalidInput},
		{name: "неизвестная заявка", text: "/approve missing", wantErr: apperr.ErrNotFound},
		{name: "дни не число", text: "/gift u1 много", wantErr: apperr.ErrInvalidInput},
		{name: "ноль дней", text: "/gift u1 0", wantErr: apperr.ErrInvalidInput},
		{name: "неизвестный клиент", text: "/revoke nobody", wantErr: apperr.ErrNotFound},
		{name: "неизвестная награда", text: "/reward u1 bonus", wantErr: apperr.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.handler.HandleCommand(context.Background(), adminChat, tt.text)
			assert.True(t, errors.Is(err, tt.wantErr), "ошибка %v", err)
		})
	}
}

func TestHandleCommand_Help(t *testing.T) {
	f := newFixture(t)

	for _, text := range []string{"/help", "/start", "", "просто текст"} {
		reply, err := f.handler.HandleCommand(context.Background(), adminChat, text)
		require.NoError(t, err)
		assert.Equal(t, helpText, reply)
	}

	reply, err := f.handler.HandleCommand(context.Background(), adminChat, "/unknown")
	require.NoError(t, err)
	assert.Contains(t, reply, "Неизвестная команда")
}

func TestHandleUpdate_ForeignChat(t *testing.T) {
	f := newFixture(t)
	req := f.queueBooking(t)

	text := "/approve " + req.ID
	update := tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: 1},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len("/approve")}},
	}}
	require.NoError(t, f.handler.HandleUpdate(context.Background(), update))

	stored, err := f.st.Approval().GetByID(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusPending, stored.Status)

	update.Message.Chat.ID = adminChat
	require.NoError(t, f.handler.HandleUpdate(context.Background(), update))

	stored, err = f.st.Approval().GetByID(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusConfirmed, stored.Status)
}

func TestDescribeError(t *testing.T) {
	assert.Contains(t, describeError(apperr.NotFound("заявка %s", "x")), "Не найдено")
	assert.Equal(t, "База недоступна, повторите позже", describeError(apperr.Unavailable("op", errors.New("x"))))
	assert.Equal(t, "Внутренняя ошибка", describeError(errors.New("x")))
}
