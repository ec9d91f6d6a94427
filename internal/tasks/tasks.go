// Package tasks moves committed redemption records off the pricing hot path
// into durable storage through an asynq queue.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/mn-ibiz/promo-engine/internal/promo"
	"github.com/mn-ibiz/promo-engine/internal/record"
)

// TypePersistRedemptions is the asynq task type for redemption batches.
const TypePersistRedemptions = "redemption:persist"

type persistPayload struct {
	Records []promo.RedemptionRecord `json:"records"`
}

// Sink enqueues redemption batches for asynchronous persistence. It is the
// pricing service's RecordSink.
type Sink struct {
	Client *asynq.Client
	Queue  string
}

// EnqueueRedemptions publishes one task per batch. Batches are idempotent on
// the worker side, so at-least-once delivery is fine.
func (s *Sink) EnqueueRedemptions(ctx context.Context, records []promo.RedemptionRecord) error {
	if s == nil || s.Client == nil || len(records) == 0 {
		return nil
	}
	payload, err := json.Marshal(persistPayload{Records: records})
	if err != nil {
		return err
	}
	opts := []asynq.Option{asynq.MaxRetry(10)}
	if s.Queue != "" {
		opts = append(opts, asynq.Queue(s.Queue))
	}
	_, err = s.Client.EnqueueContext(ctx, asynq.NewTask(TypePersistRedemptions, payload), opts...)
	return err
}

// Worker consumes persistence tasks.
type Worker struct {
	Store  record.Store
	Logger zerolog.Logger
}

// HandlePersistRedemptions writes the batch. Insertion is keyed on record id,
// so redelivery cannot duplicate rows.
func (w *Worker) HandlePersistRedemptions(ctx context.Context, task *asynq.Task) error {
	var payload persistPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		w.Logger.Error().Err(err).Msg("malformed redemption batch")
		return fmt.Errorf("malformed redemption batch: %w", asynq.SkipRetry)
	}
	if err := w.Store.InsertRedemptions(ctx, payload.Records); err != nil {
		w.Logger.Error().Err(err).Int("records", len(payload.Records)).Msg("persist redemption batch")
		return err
	}
	w.Logger.Debug().Int("records", len(payload.Records)).Msg("redemption batch persisted")
	return nil
}

// Register binds the worker's handlers onto an asynq mux.
func (w *Worker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypePersistRedemptions, w.HandlePersistRedemptions)
}
