package mutation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/felixgeelhaar/eventify/internal/errors"
	"github.com/felixgeelhaar/eventify/internal/log"
	"github.com/felixgeelhaar/eventify/internal/metrics"
	"github.com/felixgeelhaar/eventify/internal/query"
)

var listKey = query.Key{"events"}

func setup(t *testing.T, opts ...Option) (*Coordinator, *query.Cache, *Recorder) {
	t.Helper()
	cache := query.New(query.WithLogger(log.Discard()))
	rec := &Recorder{}
	opts = append([]Option{WithNotifier(rec), WithLogger(log.Discard())}, opts...)
	return NewCoordinator(cache, opts...), cache, rec
}

func without(id int) func(any) any {
	return func(old any) any {
		ids, _ := old.([]int)
		out := make([]int, 0, len(ids))
		for _, v := range ids {
			if v != id {
				out = append(out, v)
			}
		}
		return out
	}
}

func TestMutate_OptimisticDeleteRollsBackOnFailure(t *testing.T) {
	coord, cache, rec := setup(t)
	cache.SetData(listKey, func(any) any { return []int{3, 5, 7} })

	var duringRequest []int
	err := coord.Run(context.Background(), Mutation{
		Name:       "delete_event",
		Target:     listKey,
		Optimistic: without(5),
		Do: func(ctx context.Context) error {
			duringRequest, _ = query.DataAs[[]int](cache, listKey)
			return apperrors.New(apperrors.ErrCodeValidation, "Event has bookings")
		},
		FailureMessage: "Failed to delete event",
	})

	require.Error(t, err)
	assert.Equal(t, []int{3, 7}, duringRequest)

	after, ok := query.DataAs[[]int](cache, listKey)
	require.True(t, ok)
	assert.ElementsMatch(t, []int{3, 5, 7}, after)

	entry, _ := cache.Peek(listKey)
	assert.True(t, entry.Stale)

	n, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, LevelError, n.Level)
	assert.Equal(t, "Event has bookings", n.Message)
}

func TestMutate_FallbackMessageForTransportErrors(t *testing.T) {
	coord, _, rec := setup(t)

	err := coord.Run(context.Background(), Mutation{
		Name:           "cancel_booking",
		Do:             func(context.Context) error { return apperrors.NewNetworkError(errors.New("dial")) },
		FailureMessage: "Failed to cancel booking",
	})

	require.Error(t, err)
	n, _ := rec.Last()
	assert.Equal(t, "Failed to cancel booking", n.Message)
}

func TestMutate_SuccessKeepsOptimisticStateAndInvalidates(t *testing.T) {
	coord, cache, rec := setup(t)
	ctx := context.Background()
	cache.SetData(listKey, func(any) any { return []int{3, 5, 7} })

	publicKey := query.Key{"publicEvents", query.AnonymousViewer}
	refetched := 0
	_, err := cache.Fetch(ctx, publicKey, func(context.Context) (any, error) {
		refetched++
		return []int{3, 5, 7}, nil
	}, query.FetchOptions{})
	require.NoError(t, err)

	err = coord.Run(ctx, Mutation{
		Name:           "delete_event",
		Target:         listKey,
		Optimistic:     without(5),
		Do:             func(context.Context) error { return nil },
		Invalidate:     []query.Key{{"events"}},
		Refetch:        []query.Key{{"publicEvents"}},
		SuccessMessage: "Event deleted",
	})
	require.NoError(t, err)

	got, _ := query.DataAs[[]int](cache, listKey)
	assert.Equal(t, []int{3, 7}, got)
	assert.Equal(t, 2, refetched)

	entry, _ := cache.Peek(listKey)
	assert.True(t, entry.Stale)

	n, _ := rec.Last()
	assert.Equal(t, LevelSuccess, n.Level)
	assert.Equal(t, "Event deleted", n.Message)
}

func TestMutate_NonOptimisticLeavesCacheAlone(t *testing.T) {
	coord, cache, _ := setup(t)
	cache.SetData(listKey, func(any) any { return []int{1} })

	var seen []int
	err := coord.Run(context.Background(), Mutation{
		Name:   "book_event",
		Target: listKey,
		Do: func(context.Context) error {
			seen, _ = query.DataAs[[]int](cache, listKey)
			return errors.New("nope")
		},
	})
	require.Error(t, err)
	assert.Equal(t, []int{1}, seen)
	assert.Equal(t, apperrors.ErrCodeUnexpected, apperrors.CodeOf(err))
}

func TestControl_RejectsWhilePending(t *testing.T) {
	coord, _, _ := setup(t)
	ctl := coord.Control()
	started := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = ctl.Mutate(context.Background(), Mutation{
			Name: "book_event",
			Do: func(context.Context) error {
				close(started)
				<-release
				return nil
			},
		})
	}()

	<-started
	assert.True(t, ctl.Pending())

	called := false
	err := ctl.Mutate(context.Background(), Mutation{
		Name: "book_event",
		Do:   func(context.Context) error { called = true; return nil },
	})
	assert.ErrorIs(t, err, ErrPending)
	assert.False(t, called)

	close(release)
	wg.Wait()
	assert.False(t, ctl.Pending())
}

func TestControl_CloseDropsHooksButKeepsCacheEffects(t *testing.T) {
	coord, cache, _ := setup(t)
	cache.SetData(listKey, func(any) any { return []int{1, 2} })
	ctl := coord.Control()

	hookCalled := false
	err := ctl.Mutate(context.Background(), Mutation{
		Name:       "delete_event",
		Target:     listKey,
		Optimistic: without(2),
		Do: func(context.Context) error {
			ctl.Close()
			return errors.New("fail")
		},
		OnError: func(error) { hookCalled = true },
	})

	require.Error(t, err)
	assert.False(t, hookCalled)
	got, _ := query.DataAs[[]int](cache, listKey)
	assert.Equal(t, []int{1, 2}, got)
}

func TestMutate_PanicIsCaught(t *testing.T) {
	var hooked error
	coord, cache, rec := setup(t, WithFailureHook(func(err error) { hooked = err }))
	cache.SetData(listKey, func(any) any { return []int{9} })

	err := coord.Run(context.Background(), Mutation{
		Name:       "delete_event",
		Target:     listKey,
		Optimistic: without(9),
		Do:         func(context.Context) error { panic("boom") },
	})

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeUnexpected, apperrors.CodeOf(err))
	assert.Equal(t, err, hooked)
	got, _ := query.DataAs[[]int](cache, listKey)
	assert.Equal(t, []int{9}, got)
	assert.Len(t, rec.All(), 1)
}

func TestMutate_ExpiredCredentialRollsBackWithoutErrorNotification(t *testing.T) {
	var hooked error
	coord, cache, rec := setup(t, WithFailureHook(func(err error) { hooked = err }))
	cache.SetData(listKey, func(any) any { return []int{1, 2} })

	err := coord.Run(context.Background(), Mutation{
		Name:       "cancel_booking",
		Target:     listKey,
		Optimistic: without(2),
		Do: func(context.Context) error {
			return apperrors.New(apperrors.ErrCodeAuthExpired, "Token expired")
		},
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsAuthExpired(hooked))
	got, _ := query.DataAs[[]int](cache, listKey)
	assert.Equal(t, []int{1, 2}, got)
	assert.Empty(t, rec.All())
}

func TestMutate_LateFetchCannotClobberOptimisticEdit(t *testing.T) {
	coord, cache, _ := setup(t)
	ctx := context.Background()
	release := make(chan struct{})
	fetchDone := make(chan struct{})

	cache.SetData(listKey, func(any) any { return []int{3, 5, 7} })
	go func() {
		defer close(fetchDone)
		_, _ = cache.Fetch(ctx, listKey, func(context.Context) (any, error) {
			<-release
			return []int{3, 5, 7}, nil
		}, query.FetchOptions{Force: true})
	}()
	require.Eventually(t, func() bool {
		e, _ := cache.Peek(listKey)
		return e.Status == query.Fetching
	}, time.Second, time.Millisecond)

	err := coord.Run(ctx, Mutation{
		Name:       "delete_event",
		Target:     listKey,
		Optimistic: without(5),
		Do: func(context.Context) error {
			close(release)
			<-fetchDone
			return nil
		},
	})
	require.NoError(t, err)

	got, _ := query.DataAs[[]int](cache, listKey)
	assert.Equal(t, []int{3, 7}, got)
}

func TestMutate_RecordsMetrics(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	coord, _, _ := setup(t, WithMetrics(m))

	_ = coord.Run(context.Background(), Mutation{Name: "create_event", Do: func(context.Context) error { return nil }})
	_ = coord.Run(context.Background(), Mutation{Name: "create_event", Do: func(context.Context) error { return errors.New("x") }})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Mutations.WithLabelValues("create_event", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Mutations.WithLabelValues("create_event", "error")))
}
