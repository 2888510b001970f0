package worker

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// Task Types
const (
	TypeStatusQuery = "status-query"
)

const (
	QueueDefault       = "default"
	statusQueryRetries = 5
	statusQueryTimeout = 30 * time.Second
)

type StatusQueryPayload struct {
	CheckoutRequestID string `json:"checkout_request_id"`
}

// StatusQueryTaskID keeps at most one queued query per checkout request id.
func StatusQueryTaskID(checkoutRequestID string) string {
	return TypeStatusQuery + ":" + checkoutRequestID
}

// Task Creators

func NewStatusQueryTask(payload StatusQueryPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeStatusQuery, data,
		asynq.TaskID(StatusQueryTaskID(payload.CheckoutRequestID)),
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(statusQueryRetries),
		asynq.Timeout(statusQueryTimeout),
	), nil
}
