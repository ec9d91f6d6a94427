package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/mn-ibiz/promo-engine/internal/ledger"
)

func newRedisLedger(t *testing.T) (*ledger.Redis, *time.Time) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Now()
	led := &ledger.Redis{
		R:   client,
		TTL: 10 * time.Second,
		Now: func() time.Time { return now },
	}
	return led, &now
}

func TestRedisBudgetSafety(t *testing.T) {
	led, _ := newRedisLedger(t)
	ctx := context.Background()

	const budget = 3
	const attempts = 20

	var wg sync.WaitGroup
	results := make([]int, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n, err := led.TryReserve(ctx, "coupon-x", budget, token(i), 1)
			require.NoError(t, err)
			results[i] = n
		}(i)
	}
	wg.Wait()

	total := 0
	for _, n := range results {
		total += n
	}
	require.Equal(t, budget, total)
}

func TestRedisCommitIdempotent(t *testing.T) {
	led, _ := newRedisLedger(t)
	ctx := context.Background()

	n, err := led.TryReserve(ctx, "c", 5, "tx-1", 2)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	first, err := led.Commit(ctx, "c", "tx-1")
	require.NoError(t, err)
	require.Equal(t, 2, first)

	second, err := led.Commit(ctx, "c", "tx-1")
	require.NoError(t, err)
	require.Equal(t, 2, second)

	used, err := led.Used(ctx, "c")
	require.NoError(t, err)
	require.Equal(t, 2, used)
}

func TestRedisCommitUnknownToken(t *testing.T) {
	led, _ := newRedisLedger(t)
	_, err := led.Commit(context.Background(), "c", "never-reserved")
	require.ErrorIs(t, err, ledger.ErrUnknownReservation)
}

func TestRedisReservationExpiry(t *testing.T) {
	led, now := newRedisLedger(t)
	ctx := context.Background()

	n, err := led.TryReserve(ctx, "c", 1, "tx-1", 1)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = led.TryReserve(ctx, "c", 1, "tx-2", 1)
	require.NoError(t, err)
	require.Zero(t, n)

	*now = now.Add(11 * time.Second)

	n, err = led.TryReserve(ctx, "c", 1, "tx-2", 1)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = led.Commit(ctx, "c", "tx-1")
	require.ErrorIs(t, err, ledger.ErrUnknownReservation)
}

func TestRedisReleaseReturnsBudget(t *testing.T) {
	led, _ := newRedisLedger(t)
	ctx := context.Background()

	n, err := led.TryReserve(ctx, "c", 1, "tx-1", 1)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.NoError(t, led.Release(ctx, "c", "tx-1"))

	n, err = led.TryReserve(ctx, "c", 1, "tx-2", 1)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestRedisRefundAfterVoid(t *testing.T) {
	led, _ := newRedisLedger(t)
	ctx := context.Background()

	n, err := led.TryReserve(ctx, "c", 2, "tx-1", 2)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	_, err = led.Commit(ctx, "c", "tx-1")
	require.NoError(t, err)

	require.NoError(t, led.Refund(ctx, "c", 2))

	used, err := led.Used(ctx, "c")
	require.NoError(t, err)
	require.Zero(t, used)
}

func TestRedisShrinkKeepsRemainderHeld(t *testing.T) {
	led, _ := newRedisLedger(t)
	ctx := context.Background()

	n, err := led.TryReserve(ctx, "c", 3, "tx-1", 3)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	require.NoError(t, led.Shrink(ctx, "c", "tx-1", 1))

	// Only the freed units reach a competing transaction.
	n, err = led.TryReserve(ctx, "c", 3, "tx-2", 3)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	count, err := led.Commit(ctx, "c", "tx-1")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestRedisShrinkToZeroReleases(t *testing.T) {
	led, _ := newRedisLedger(t)
	ctx := context.Background()

	n, err := led.TryReserve(ctx, "c", 2, "tx-1", 2)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.NoError(t, led.Shrink(ctx, "c", "tx-1", 0))

	n, err = led.TryReserve(ctx, "c", 2, "tx-2", 2)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	_, err = led.Commit(ctx, "c", "tx-1")
	require.ErrorIs(t, err, ledger.ErrUnknownReservation)
}

func TestRedisShrinkNeverGrows(t *testing.T) {
	led, _ := newRedisLedger(t)
	ctx := context.Background()

	n, err := led.TryReserve(ctx, "c", 5, "tx-1", 2)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.NoError(t, led.Shrink(ctx, "c", "tx-1", 4))
	require.NoError(t, led.Shrink(ctx, "c", "unknown", 1))

	count, err := led.Commit(ctx, "c", "tx-1")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}
