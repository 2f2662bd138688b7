// Package notify is the fire-and-forget notification boundary. Delivery
// rides on asynq tasks so a slow or failing notifier never blocks the
// booking path; the core does not depend on the result.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

type Event string

const (
	EventBookingConfirmed Event = "booking_confirmed"
	EventBookingCancelled Event = "booking_cancelled"
)

const TaskTypeNotifyUser = "notify:user"

type UserNotification struct {
	UserID  int64           `json:"user_id"`
	Event   Event           `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, userID int64, event Event, payload any) error
}

// Enqueuer queues notification tasks for the background worker.
type Enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

func (e *Enqueuer) Notify(ctx context.Context, userID int64, event Event, payload any) error {
	const op = "notify.Enqueuer.Notify"

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	body, err := json.Marshal(UserNotification{
		UserID:  userID,
		Event:   event,
		Payload: raw,
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	task := asynq.NewTask(TaskTypeNotifyUser, body)
	if _, err := e.client.EnqueueContext(ctx, task, asynq.Queue("low"), asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}
