package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mn-ibiz/promo-engine/internal/money"
	"github.com/mn-ibiz/promo-engine/internal/promo"
)

type stubStore struct {
	inserted []promo.RedemptionRecord
	fail     bool
}

func (s *stubStore) InsertRedemptions(_ context.Context, records []promo.RedemptionRecord) error {
	if s.fail {
		return errors.New("db down")
	}
	s.inserted = append(s.inserted, records...)
	return nil
}

func (s *stubStore) ListByTransaction(context.Context, string) ([]promo.RedemptionRecord, error) {
	return s.inserted, nil
}

func sampleRecord() promo.RedemptionRecord {
	return promo.RedemptionRecord{
		ID:            uuid.New(),
		PromotionID:   uuid.New(),
		TransactionID: "tx-1",
		Count:         1,
		Discount:      money.MustFromString("10.00"),
		CommittedAt:   time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestHandlePersistRedemptions(t *testing.T) {
	store := &stubStore{}
	w := &Worker{Store: store, Logger: zerolog.Nop()}

	payload, err := json.Marshal(persistPayload{Records: []promo.RedemptionRecord{sampleRecord()}})
	require.NoError(t, err)

	err = w.HandlePersistRedemptions(context.Background(), asynq.NewTask(TypePersistRedemptions, payload))
	require.NoError(t, err)
	require.Len(t, store.inserted, 1)
}

func TestHandlePersistRedemptionsRetriesOnStoreError(t *testing.T) {
	w := &Worker{Store: &stubStore{fail: true}, Logger: zerolog.Nop()}
	payload, err := json.Marshal(persistPayload{Records: []promo.RedemptionRecord{sampleRecord()}})
	require.NoError(t, err)

	err = w.HandlePersistRedemptions(context.Background(), asynq.NewTask(TypePersistRedemptions, payload))
	require.Error(t, err)
	require.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestHandlePersistRedemptionsSkipsPoisonPayload(t *testing.T) {
	w := &Worker{Store: &stubStore{}, Logger: zerolog.Nop()}
	err := w.HandlePersistRedemptions(context.Background(), asynq.NewTask(TypePersistRedemptions, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestSinkNoopWithoutClient(t *testing.T) {
	var s *Sink
	require.NoError(t, s.EnqueueRedemptions(context.Background(), []promo.RedemptionRecord{sampleRecord()}))
	require.NoError(t, (&Sink{}).EnqueueRedemptions(context.Background(), nil))
}
