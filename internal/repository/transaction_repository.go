package repository

import (
	"context"
	"time"

	"mpesa-service/internal/models"
)

// TransactionStore persists push payments keyed by checkout request id.
// Implementations return *apperrors.ConflictError from Create on a duplicate
// key and wrap every other failure in *apperrors.PersistenceError.
type TransactionStore interface {
	Create(ctx context.Context, trx *models.Transaction) error
	// UpsertByCheckoutID merges patch into the record under checkoutRequestID,
	// creating it from patch alone when absent, in one atomic statement.
	UpsertByCheckoutID(ctx context.Context, checkoutRequestID string, patch models.TransactionPatch) (*models.Transaction, error)
	// MergeInitiation writes the initiation-owned fields of trx onto a record a
	// callback created first. Outcome fields are never touched; merchant id and
	// amount are only filled when still empty.
	MergeInitiation(ctx context.Context, trx *models.Transaction) error
	FindByCheckoutID(ctx context.Context, checkoutRequestID string) (*models.Transaction, error)
	List(ctx context.Context, limit int) ([]models.Transaction, error)
	ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]models.Transaction, error)
}

// CallbackLogStore appends audit rows for inbound callbacks.
type CallbackLogStore interface {
	Append(ctx context.Context, entry *models.CallbackLog) error
}

const (
	DefaultListLimit = 20
	MaxListLimit     = 200
)

// ClampLimit bounds a caller supplied list size.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
