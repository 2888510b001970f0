package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"mpesa-service/internal/apperrors"
	"mpesa-service/internal/gateway"
	"mpesa-service/internal/metrics"
	"mpesa-service/internal/models"
	"mpesa-service/internal/phone"
	"mpesa-service/internal/repository"
	"mpesa-service/pkg/common"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// CallbackService reconciles gateway notifications with their transactions.
type CallbackService struct {
	Store repository.TransactionStore
	Logs  repository.CallbackLogStore
}

func NewCallbackService(store repository.TransactionStore, logs repository.CallbackLogStore) *CallbackService {
	return &CallbackService{Store: store, Logs: logs}
}

// PatchFromCallback turns a parsed callback into a store patch. Every text
// value is XML escaped and a reported phone number is normalized when it can be.
// Metadata names that are absent become empty strings; an absent amount leaves
// the recorded amount alone.
func PatchFromCallback(cb *gateway.STKCallback, raw []byte) models.TransactionPatch {
	code := *cb.ResultCode
	patch := models.TransactionPatch{
		MerchantRequestID:  escaped(cb.MerchantRequestID),
		ResultCode:         &code,
		ResultDescription:  escaped(cb.ResultDesc),
		RawCallbackPayload: datatypes.JSON(raw),
	}

	if !cb.HasMetadata() {
		return patch
	}

	if amount, ok := cb.Amount(); ok {
		patch.Amount = &amount
	}
	receipt, _ := cb.Text(gateway.ItemReceiptNumber)
	patch.ReceiptNumber = escaped(receipt)
	date, _ := cb.Text(gateway.ItemTransactionDate)
	patch.TransactionTimestamp = escaped(date)
	if msisdn, ok := cb.Text(gateway.ItemPhoneNumber); ok {
		if n, err := phone.Normalize(msisdn); err == nil {
			msisdn = n
		}
		patch.PayerPhone = escaped(msisdn)
	}
	return patch
}

// Reconcile parses raw and applies the outcome to the matching transaction,
// creating it when no pending record exists.
func (s *CallbackService) Reconcile(ctx context.Context, raw []byte) (*models.Transaction, error) {
	cb, err := gateway.ParseCallback(raw)
	if err != nil {
		return nil, err
	}

	trx, err := s.Store.UpsertByCheckoutID(ctx, cb.CheckoutRequestID, PatchFromCallback(cb, raw))
	if err != nil {
		return nil, err
	}
	return trx, nil
}

// Handle reconciles raw and builds the acknowledgment owed to the gateway.
// The ack confirms receipt only; a failed payment is still accepted.
func (s *CallbackService) Handle(ctx context.Context, raw []byte) (int, common.CallbackAck) {
	log := logrus.WithField("component", "callback_service")

	trx, err := s.Reconcile(ctx, raw)

	var (
		status int
		ack    common.CallbackAck
		id     string
	)
	var malformed *apperrors.MalformedCallbackError
	switch {
	case err == nil:
		status, ack, id = http.StatusOK, common.Accepted(), trx.CheckoutRequestID
		metrics.CallbacksTotal.WithLabelValues(trx.Status).Inc()
		log.WithFields(logrus.Fields{
			"checkout_request_id": id,
			"status":              trx.Status,
		}).Info("callback reconciled")
	case errors.As(err, &malformed):
		status, ack = http.StatusBadRequest, common.Rejected(malformed.Reason)
		metrics.CallbacksTotal.WithLabelValues("malformed").Inc()
		log.WithError(err).Warn("rejected malformed callback")
	default:
		status, ack = http.StatusInternalServerError, common.Rejected("failed to record callback")
		metrics.CallbacksTotal.WithLabelValues("store_error").Inc()
		log.WithError(err).Error("failed to persist callback")
	}

	s.audit(ctx, raw, ack, id)
	return status, ack
}

func (s *CallbackService) audit(ctx context.Context, raw []byte, ack common.CallbackAck, checkoutRequestID string) {
	if s.Logs == nil {
		return
	}
	response, _ := json.Marshal(ack)
	entry := &models.CallbackLog{
		Request:           string(raw),
		Response:          string(response),
		Status:            models.CallbackRejected,
		RequestType:       "STKCallback",
		CheckoutRequestID: checkoutRequestID,
	}
	if ack.ResultCode == 0 {
		entry.Status = models.CallbackAccepted
	}
	if err := s.Logs.Append(ctx, entry); err != nil {
		logrus.WithField("component", "callback_service").WithError(err).Warn("failed to write callback log")
	}
}

func escaped(s string) *string {
	v := common.EscapeXML(s)
	return &v
}
