package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mpesa-service/internal/gateway"
	"mpesa-service/internal/metrics"
	"mpesa-service/internal/models"
	"mpesa-service/internal/repository"
	"mpesa-service/internal/worker"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// TaskEnqueuer is satisfied by *asynq.Client.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// StatusService catches pushes whose callback never arrived. The sweep
// enqueues one status query per stale pending record; the worker resolves it.
type StatusService struct {
	Store   repository.TransactionStore
	Gateway PushGateway
	Tokens  Tokens
	Builder *PaymentRequestBuilder
	Queue   TaskEnqueuer
	Grace   time.Duration
	Batch   int
	now     func() time.Time
}

func NewStatusService(store repository.TransactionStore, gw PushGateway, tokens Tokens, builder *PaymentRequestBuilder, queue TaskEnqueuer, grace time.Duration, batch int) *StatusService {
	if batch <= 0 {
		batch = 100
	}
	return &StatusService{
		Store:   store,
		Gateway: gw,
		Tokens:  tokens,
		Builder: builder,
		Queue:   queue,
		Grace:   grace,
		Batch:   batch,
		now:     time.Now,
	}
}

// Sweep enqueues a status query for every pending record older than Grace and
// returns how many were newly queued.
func (s *StatusService) Sweep(ctx context.Context) (int, error) {
	pending, err := s.Store.ListPending(ctx, s.now().Add(-s.Grace), s.Batch)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, trx := range pending {
		task, err := worker.NewStatusQueryTask(worker.StatusQueryPayload{CheckoutRequestID: trx.CheckoutRequestID})
		if err != nil {
			return queued, err
		}
		if _, err := s.Queue.EnqueueContext(ctx, task); err != nil {
			if errors.Is(err, asynq.ErrTaskIDConflict) {
				continue
			}
			return queued, fmt.Errorf("enqueue %s: %w", trx.CheckoutRequestID, err)
		}
		queued++
	}
	return queued, nil
}

// Resolve asks the gateway for the outcome of one push. A record that is no
// longer pending, or a push the gateway is still processing, is left alone.
func (s *StatusService) Resolve(ctx context.Context, checkoutRequestID string) error {
	log := logrus.WithFields(logrus.Fields{
		"component":           "status_service",
		"checkout_request_id": checkoutRequestID,
	})

	trx, err := s.Store.FindByCheckoutID(ctx, checkoutRequestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("transaction %s not found: %w", checkoutRequestID, asynq.SkipRetry)
		}
		return err
	}
	if !trx.Pending() {
		metrics.StatusQueriesTotal.WithLabelValues("already_resolved").Inc()
		return nil
	}

	token, err := s.Tokens.Token(ctx)
	if err != nil {
		return err
	}

	res, err := s.Gateway.QueryPush(ctx, token, s.Builder.Query(checkoutRequestID))
	if errors.Is(err, gateway.ErrStillProcessing) {
		metrics.StatusQueriesTotal.WithLabelValues("processing").Inc()
		log.Debug("push still processing")
		return nil
	}
	if err != nil {
		metrics.StatusQueriesTotal.WithLabelValues("error").Inc()
		return err
	}

	code, ok := gateway.ParseResultCode(res.ResultCode)
	if !ok {
		metrics.StatusQueriesTotal.WithLabelValues("processing").Inc()
		return nil
	}

	updated, err := s.Store.UpsertByCheckoutID(ctx, checkoutRequestID, models.TransactionPatch{
		ResultCode:        &code,
		ResultDescription: escaped(res.ResultDesc),
	})
	if err != nil {
		return err
	}
	metrics.StatusQueriesTotal.WithLabelValues(updated.Status).Inc()
	log.WithField("status", updated.Status).Info("resolved pending transaction by status query")
	return nil
}

// StartScheduler runs Sweep on schedule until the returned cron is stopped.
func (s *StatusService) StartScheduler(schedule string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		n, err := s.Sweep(ctx)
		if err != nil {
			logrus.WithField("component", "status_service").WithError(err).Error("pending sweep failed")
			return
		}
		if n > 0 {
			logrus.WithField("component", "status_service").WithField("queued", n).Info("queued pending status queries")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule pending sweep: %w", err)
	}
	c.Start()
	logrus.WithField("schedule", schedule).Info("pending sweep scheduler started")
	return c, nil
}
