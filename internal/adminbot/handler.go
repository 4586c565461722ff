// Package adminbot дает персоналу доступ к очереди заявок и VIP через Telegram
package adminbot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"celeb-barber/internal/apperr"
	"celeb-barber/internal/config"
	"celeb-barber/pkg/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Approvals очередь заявок
type Approvals interface {
	ListPending(ctx context.Context) ([]*models.ApprovalRequest, error)
	Resolve(ctx context.Context, id, outcome, actor, reason string) (*models.ApprovalRequest, error)
}

// Memberships управление VIP и тратами
type Memberships interface {
	GiftDays(ctx context.Context, userID string, days int) (time.Time, error)
	Revoke(ctx context.Context, userID string) error
	GetUserSpend(ctx context.Context, userID string) (*models.SpendSummary, error)
}

// Rewards выдача реферальных наград
type Rewards interface {
	GrantReward(ctx context.Context, referredID, reward string) error
}

const helpText = `Команды персонала:
/pending - ожидающие заявки
/approve <id> - подтвердить оплату
/decline <id> [причина] - отклонить
/gift <user_id> <дни> - продлить VIP
/revoke <user_id> - снять VIP
/spend <user_id> - траты клиента
/reward <user_id> [30off|freecut] - выдать награду`

// Handler обрабатывает команды персонала
type Handler struct {
	bot         *tgbotapi.BotAPI
	approvals   Approvals
	memberships Memberships
	rewards     Rewards
	chats       config.TelegramConfig
	logger      *zap.Logger
}

// NewHandler создает обработчик. bot может быть nil, тогда ответы только логируются.
func NewHandler(
	bot *tgbotapi.BotAPI,
	approvals Approvals,
	memberships Memberships,
	rewards Rewards,
	chats config.TelegramConfig,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		bot:         bot,
		approvals:   approvals,
		memberships: memberships,
		rewards:     rewards,
		chats:       chats,
		logger:      logger,
	}
}

// Run читает обновления до отмены ctx
func (h *Handler) Run(ctx context.Context) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60

	updates := h.bot.GetUpdatesChan(updateConfig)
	defer h.bot.StopReceivingUpdates()

	for {
		select {
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			if err := h.HandleUpdate(ctx, update); err != nil {
				h.logger.Error("ошибка обработки обновления",
					zap.Int64("chat_id", update.Message.Chat.ID),
					zap.Error(err))
			}

		case <-ctx.Done():
			h.logger.Info("остановка обработки обновлений")
			return
		}
	}
}

// HandleUpdate отвечает на команду из чата персонала
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	msg := update.Message
	if msg == nil || !msg.IsCommand() {
		return nil
	}

	chatID := msg.Chat.ID
	if !h.chats.IsAdminChat(chatID) {
		h.logger.Warn("команда из чужого чата", zap.Int64("chat_id", chatID), zap.String("command", msg.Command()))
		return h.sendMessage(chatID, "Нет доступа")
	}

	reply, err := h.HandleCommand(ctx, chatID, msg.Text)
	if err != nil {
		fields := []zap.Field{zap.Int64("chat_id", chatID), zap.String("command", msg.Command()), zap.Error(err)}
		if apperr.Kind(err) == "internal" {
			h.logger.Error("ошибка выполнения команды", fields...)
		} else {
			h.logger.Warn("команда отклонена", fields...)
		}
		reply = describeError(err)
	}
	return h.sendMessage(chatID, reply)
}

// HandleCommand выполняет команду и возвращает текст ответа
func (h *Handler) HandleCommand(ctx context.Context, chatID int64, text string) (string, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return helpText, nil
	}

	command := strings.TrimPrefix(fields[0], "/")
	if i := strings.Index(command, "@"); i >= 0 {
		command = command[:i]
	}
	args := fields[1:]
	actor := fmt.Sprintf("telegram:%d", chatID)

	switch command {
	case "start", "help":
		return helpText, nil
	case "pending":
		return h.handlePending(ctx)
	case "approve":
		return h.handleResolve(ctx, args, models.ApprovalStatusConfirmed, actor)
	case "decline":
		return h.handleResolve(ctx, args, models.ApprovalStatusDeclined, actor)
	case "gift":
		return h.handleGift(ctx, args)
	case "revoke":
		return h.handleRevoke(ctx, args)
	case "spend":
		return h.handleSpend(ctx, args)
	case "reward":
		return h.handleReward(ctx, args)
	default:
		return "Неизвестная команда\n\n" + helpText, nil
	}
}

func (h *Handler) handlePending(ctx context.Context) (string, error) {
	requests, err := h.approvals.ListPending(ctx)
	if err != nil {
		return "", err
	}
	if len(requests) == 0 {
		return "Ожидающих заявок нет", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Ожидают решения: %d\n", len(requests))
	for i, r := range requests {
		fmt.Fprintf(&b, "\n%d. [%s] %s (%s)\n%s, %s ₦\nID: %s\n",
			i+1, r.Type, displayName(r), r.UserEmail, r.Service, r.Amount.String(), r.ID)
	}
	return b.String(), nil
}

func (h *Handler) handleResolve(ctx context.Context, args []string, outcome, actor string) (string, error) {
	if len(args) == 0 {
		return "", apperr.Invalid("укажите ID заявки")
	}
	reason := strings.Join(args[1:], " ")

	req, err := h.approvals.Resolve(ctx, args[0], outcome, actor, reason)
	if err != nil {
		return "", err
	}

	if req.Status == models.ApprovalStatusDeclined {
		declined := ""
		if req.DeclineReason != nil {
			declined = *req.DeclineReason
		}
		return fmt.Sprintf("Заявка %s отклонена. Причина: %s", req.ID, declined), nil
	}
	return fmt.Sprintf("Заявка %s подтверждена: %s ₦ от %s", req.ID, req.Amount.String(), displayName(req)), nil
}

func (h *Handler) handleGift(ctx context.Context, args []string) (string, error) {
	if len(args) < 2 {
		return "", apperr.Invalid("формат: /gift <user_id> <дни>")
	}
	days, err := strconv.Atoi(args[1])
	if err != nil {
		return "", apperr.Invalid("количество дней должно быть числом: %s", args[1])
	}

	expires, err := h.memberships.GiftDays(ctx, args[0], days)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("VIP продлен до %s", expires.Format("02.01.2006")), nil
}

func (h *Handler) handleRevoke(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return "", apperr.Invalid("укажите ID пользователя")
	}
	if err := h.memberships.Revoke(ctx, args[0]); err != nil {
		return "", err
	}
	return "VIP снят", nil
}

func (h *Handler) handleSpend(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return "", apperr.Invalid("укажите ID пользователя")
	}
	spend, err := h.memberships.GetUserSpend(ctx, args[0])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Потрачено: %s ₦ (%s)", spend.TotalSpent.StringFixed(0), spend.Source), nil
}

func (h *Handler) handleReward(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return "", apperr.Invalid("укажите ID пользователя")
	}
	reward := models.RewardThirtyOff
	if len(args) > 1 {
		reward = args[1]
	}
	if err := h.rewards.GrantReward(ctx, args[0], reward); err != nil {
		return "", err
	}
	return "Награда выдана: " + models.RewardLabel(reward), nil
}

func (h *Handler) sendMessage(chatID int64, text string) error {
	if h.bot == nil {
		h.logger.Debug("бот не подключен, сообщение не отправлено", zap.Int64("chat_id", chatID))
		return nil
	}

	if _, err := h.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("ошибка отправки сообщения: %w", err)
	}
	return nil
}

func displayName(r *models.ApprovalRequest) string {
	if r.UserName != "" {
		return r.UserName
	}
	return r.UserEmail
}

// describeError переводит ошибку в текст для персонала
func describeError(err error) string {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return "Не найдено: " + err.Error()
	case errors.Is(err, apperr.ErrInvalidInput):
		return "Неверный запрос: " + err.Error()
	case errors.Is(err, apperr.ErrConflict):
		return "Конфликт: " + err.Error()
	case errors.Is(err, apperr.ErrStoreUnavailable):
		return "База недоступна, повторите позже"
	default:
		return "Внутренняя ошибка"
	}
}
