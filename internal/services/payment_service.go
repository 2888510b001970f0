package services

import (
	"context"
	"errors"

	"mpesa-service/internal/apperrors"
	"mpesa-service/internal/gateway"
	"mpesa-service/internal/metrics"
	"mpesa-service/internal/models"
	"mpesa-service/internal/phone"
	"mpesa-service/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// PushGateway is the part of the gateway client the services call.
type PushGateway interface {
	Push(ctx context.Context, token string, req gateway.STKPushRequest) (*gateway.STKPushResponse, error)
	QueryPush(ctx context.Context, token string, req gateway.STKQueryRequest) (*gateway.STKQueryResponse, error)
}

// Tokens hands out a valid bearer token.
type Tokens interface {
	Token(ctx context.Context) (string, error)
}

type InitiateRequest struct {
	PayerPhone     string           `json:"payerPhone"`
	Amount         *decimal.Decimal `json:"amount"`
	RecipientPhone string           `json:"recipientPhone"`
}

type PaymentService struct {
	Store   repository.TransactionStore
	Gateway PushGateway
	Tokens  Tokens
	Builder *PaymentRequestBuilder
}

func NewPaymentService(store repository.TransactionStore, gw PushGateway, tokens Tokens, builder *PaymentRequestBuilder) *PaymentService {
	return &PaymentService{
		Store:   store,
		Gateway: gw,
		Tokens:  tokens,
		Builder: builder,
	}
}

// Initiate prompts the payer's handset and records the push as pending.
// Input is fully validated before any outbound call. Once the gateway has
// accepted the push, a failure to record it is logged and not returned.
func (s *PaymentService) Initiate(ctx context.Context, req InitiateRequest) (*gateway.STKPushResponse, error) {
	if req.PayerPhone == "" {
		return nil, apperrors.Validation("payerPhone", "payerPhone is required")
	}
	payer, err := phone.Normalize(req.PayerPhone)
	if err != nil {
		return nil, err
	}

	recipient := ""
	if req.RecipientPhone != "" {
		if recipient, err = phone.Normalize(req.RecipientPhone); err != nil {
			var ve *apperrors.ValidationError
			if errors.As(err, &ve) {
				return nil, apperrors.Validation("recipientPhone", ve.Reason)
			}
			return nil, err
		}
	}

	if err := ValidateAmount(req.Amount); err != nil {
		return nil, err
	}

	token, err := s.Tokens.Token(ctx)
	if err != nil {
		metrics.PushRequestsTotal.WithLabelValues("auth_error").Inc()
		return nil, err
	}

	payload, err := s.Builder.Build(payer, recipient, req.Amount)
	if err != nil {
		return nil, err
	}

	res, err := s.Gateway.Push(ctx, token, payload)
	if err != nil {
		metrics.PushRequestsTotal.WithLabelValues("gateway_error").Inc()
		logrus.WithFields(logrus.Fields{
			"component": "payment_service",
			"payer":     payer,
		}).WithError(err).Error("stk push failed")
		return nil, err
	}
	metrics.PushRequestsTotal.WithLabelValues("ok").Inc()

	if recipient == "" {
		recipient = payer
	}
	trx := &models.Transaction{
		MerchantRequestID: res.MerchantRequestID,
		CheckoutRequestID: res.CheckoutRequestID,
		Status:            models.StatusPending,
		Amount:            *req.Amount,
		PayerPhone:        payer,
		RecipientPhone:    recipient,
	}

	log := logrus.WithFields(logrus.Fields{
		"component":           "payment_service",
		"checkout_request_id": res.CheckoutRequestID,
	})
	if err := s.Store.Create(ctx, trx); err != nil {
		var conflict *apperrors.ConflictError
		if errors.As(err, &conflict) {
			// The callback got there first; fill in what only the request knows.
			if err := s.Store.MergeInitiation(ctx, trx); err != nil {
				log.WithError(err).Error("failed to merge initiation into callback record")
			} else {
				log.Warn("callback recorded before initiation, merged")
			}
		} else {
			log.WithError(err).Error("failed to record pending transaction")
		}
	} else {
		log.Info("stk push accepted")
	}

	return res, nil
}

func (s *PaymentService) List(ctx context.Context, limit int) ([]models.Transaction, error) {
	return s.Store.List(ctx, repository.ClampLimit(limit))
}

func (s *PaymentService) Get(ctx context.Context, checkoutRequestID string) (*models.Transaction, error) {
	return s.Store.FindByCheckoutID(ctx, checkoutRequestID)
}

// AccessToken exposes the cached or freshly fetched bearer token.
func (s *PaymentService) AccessToken(ctx context.Context) (string, error) {
	return s.Tokens.Token(ctx)
}
