// Package importer переносит выгрузку старого документного хранилища в текущую схему
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"celeb-barber/internal/apperr"
	"celeb-barber/internal/referral"
	"celeb-barber/internal/store"
	"celeb-barber/pkg/models"

	"go.uber.org/zap"
)

// Export выгрузка коллекций: ID документа -> документ
type Export struct {
	Users     map[string]models.Document `json:"users"`
	Bookings  map[string]models.Document `json:"bookings"`
	Approvals map[string]models.Document `json:"approvals"`
	Ledger    map[string]models.Document `json:"ledger"`
}

// Stats итоги импорта одной коллекции
type Stats struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"` // уже существуют
	Failed   int `json:"failed"`
}

// Report итоги импорта по коллекциям
type Report struct {
	Users     Stats `json:"users"`
	Bookings  Stats `json:"bookings"`
	Approvals Stats `json:"approvals"`
	Ledger    Stats `json:"ledger"`
}

// Decode читает выгрузку в формате JSON
func Decode(r io.Reader) (*Export, error) {
	var export Export
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return nil, fmt.Errorf("ошибка разбора выгрузки: %w", err)
	}
	return &export, nil
}

// Importer записывает документы в хранилище
type Importer struct {
	store  store.Store
	prefix string
	logger *zap.Logger
}

// New создает импортер. prefix используется для пользователей без реферального кода.
func New(st store.Store, prefix string, logger *zap.Logger) *Importer {
	return &Importer{store: st, prefix: prefix, logger: logger}
}

// Run импортирует пользователей, затем бронирования, заявки и журнал.
// Повторный запуск пропускает уже перенесенные записи.
func (i *Importer) Run(ctx context.Context, export *Export) (*Report, error) {
	report := &Report{}

	err := each(export.Users, func(id string, d models.Document) error {
		u := models.UserFromDocument(id, d)
		if u.ReferralCode == "" {
			u.ReferralCode = referral.CodeN(i.prefix, id, len(id))
		}
		return i.store.User().Create(ctx, u)
	}, &report.Users, i.logger.With(zap.String("collection", "users")))
	if err != nil {
		return report, err
	}

	err = each(export.Bookings, func(id string, d models.Document) error {
		return i.store.Booking().Create(ctx, models.BookingFromDocument(id, d))
	}, &report.Bookings, i.logger.With(zap.String("collection", "bookings")))
	if err != nil {
		return report, err
	}

	err = each(export.Approvals, func(id string, d models.Document) error {
		return i.store.Approval().Create(ctx, models.ApprovalFromDocument(id, d))
	}, &report.Approvals, i.logger.With(zap.String("collection", "approvals")))
	if err != nil {
		return report, err
	}

	err = each(export.Ledger, func(id string, d models.Document) error {
		if strings.EqualFold(d.String("type"), legacyExpenseType) {
			return errNotRevenue
		}
		created, err := i.store.Ledger().Insert(ctx, models.LedgerEntryFromDocument(id, d))
		if err == nil && !created {
			return apperr.Conflict("запись журнала %s уже перенесена", id)
		}
		return err
	}, &report.Ledger, i.logger.With(zap.String("collection", "ledger")))

	return report, err
}

// legacyExpenseType помечает расходы в старом журнале. В выручку они не входят.
const legacyExpenseType = "expense"

var errNotRevenue = errors.New("запись не относится к выручке")

// each обходит документы в порядке ID. Недоступное хранилище прерывает импорт.
func each(docs map[string]models.Document, write func(id string, d models.Document) error, stats *Stats, logger *zap.Logger) error {
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		err := write(id, docs[id])
		switch {
		case err == nil:
			stats.Imported++
		case errors.Is(err, errNotRevenue):
			stats.Skipped++
			logger.Info("расход не переносится в журнал выручки", zap.String("id", id))
		case errors.Is(err, apperr.ErrConflict):
			stats.Skipped++
			logger.Debug("документ уже перенесен", zap.String("id", id))
		case errors.Is(err, apperr.ErrStoreUnavailable):
			return err
		default:
			stats.Failed++
			logger.Warn("документ не перенесен", zap.String("id", id), zap.Error(err))
		}
	}

	logger.Info("коллекция перенесена",
		zap.Int("imported", stats.Imported),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed))
	return nil
}
