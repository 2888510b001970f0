package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// StatusResolver queries the gateway for one pending push and records the outcome.
type StatusResolver interface {
	Resolve(ctx context.Context, checkoutRequestID string) error
}

type Worker struct {
	Resolver StatusResolver
}

func NewWorker(resolver StatusResolver) *Worker {
	return &Worker{
		Resolver: resolver,
	}
}

func (w *Worker) HandleStatusQuery(ctx context.Context, t *asynq.Task) error {
	var p StatusQueryPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	if p.CheckoutRequestID == "" {
		return fmt.Errorf("empty checkout request id: %w", asynq.SkipRetry)
	}
	return w.Resolver.Resolve(ctx, p.CheckoutRequestID)
}

// NewServeMux registers every task handler.
func NewServeMux(w *Worker) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeStatusQuery, w.HandleStatusQuery)
	return mux
}

func StartWorker(redisOpt asynq.RedisClientOpt, resolver StatusResolver) error {
	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				QueueDefault: 1,
			},
			Logger: logrus.WithField("component", "worker"),
		},
	)

	if err := srv.Run(NewServeMux(NewWorker(resolver))); err != nil {
		return fmt.Errorf("could not run worker: %w", err)
	}
	return nil
}
