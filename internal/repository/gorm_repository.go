package repository

import (
	"context"
	"errors"
	"time"

	"mpesa-service/internal/apperrors"
	"mpesa-service/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned by lookups that match no record.
var ErrNotFound = errors.New("transaction not found")

type GormTransactionStore struct {
	DB *gorm.DB
}

func NewGormTransactionStore(db *gorm.DB) *GormTransactionStore {
	return &GormTransactionStore{DB: db}
}

func (s *GormTransactionStore) Create(ctx context.Context, trx *models.Transaction) error {
	if trx.Status == "" {
		trx.Status = models.StatusPending
	}
	err := s.DB.WithContext(ctx).Create(trx).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &apperrors.ConflictError{CheckoutRequestID: trx.CheckoutRequestID}
	}
	if err != nil {
		return apperrors.Persistence("create", err)
	}
	return nil
}

func (s *GormTransactionStore) UpsertByCheckoutID(ctx context.Context, checkoutRequestID string, patch models.TransactionPatch) (*models.Transaction, error) {
	record := patch.NewRecord(checkoutRequestID)

	conflict := clause.OnConflict{Columns: []clause.Column{{Name: "checkout_request_id"}}}
	if cols := patch.UpdateColumns(); len(cols) > 0 {
		conflict.DoUpdates = clause.AssignmentColumns(append(cols, "updated_at"))
	} else {
		conflict.DoNothing = true
	}

	if err := s.DB.WithContext(ctx).Clauses(conflict).Create(&record).Error; err != nil {
		return nil, apperrors.Persistence("upsert", err)
	}

	stored, err := s.FindByCheckoutID(ctx, checkoutRequestID)
	if err != nil {
		return nil, apperrors.Persistence("upsert", err)
	}
	return stored, nil
}

func (s *GormTransactionStore) MergeInitiation(ctx context.Context, trx *models.Transaction) error {
	err := s.DB.WithContext(ctx).Model(&models.Transaction{}).
		Where("checkout_request_id = ?", trx.CheckoutRequestID).
		Updates(map[string]interface{}{
			"payer_phone":         trx.PayerPhone,
			"recipient_phone":     trx.RecipientPhone,
			"merchant_request_id": gorm.Expr("CASE WHEN merchant_request_id = '' THEN ? ELSE merchant_request_id END", trx.MerchantRequestID),
			"amount":              gorm.Expr("CASE WHEN amount = 0 THEN ? ELSE amount END", trx.Amount),
		}).Error
	if err != nil {
		return apperrors.Persistence("merge", err)
	}
	return nil
}

func (s *GormTransactionStore) FindByCheckoutID(ctx context.Context, checkoutRequestID string) (*models.Transaction, error) {
	var trx models.Transaction
	err := s.DB.WithContext(ctx).Where("checkout_request_id = ?", checkoutRequestID).First(&trx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Persistence("find", err)
	}
	return &trx, nil
}

func (s *GormTransactionStore) List(ctx context.Context, limit int) ([]models.Transaction, error) {
	var transactions []models.Transaction
	err := s.DB.WithContext(ctx).
		Order("created_at desc").
		Order("id desc").
		Limit(ClampLimit(limit)).
		Find(&transactions).Error
	if err != nil {
		return nil, apperrors.Persistence("list", err)
	}
	return transactions, nil
}

func (s *GormTransactionStore) ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]models.Transaction, error) {
	var transactions []models.Transaction
	err := s.DB.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.StatusPending, createdBefore).
		Order("created_at asc").
		Limit(ClampLimit(limit)).
		Find(&transactions).Error
	if err != nil {
		return nil, apperrors.Persistence("list pending", err)
	}
	return transactions, nil
}

type GormCallbackLogStore struct {
	DB *gorm.DB
}

func NewGormCallbackLogStore(db *gorm.DB) *GormCallbackLogStore {
	return &GormCallbackLogStore{DB: db}
}

func (s *GormCallbackLogStore) Append(ctx context.Context, entry *models.CallbackLog) error {
	return s.DB.WithContext(ctx).Create(entry).Error
}
