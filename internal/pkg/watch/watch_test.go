package watch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for emission")
	}
	var zero T
	return zero
}

func TestHubCoalescesNotifications(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(TopicPosts)
	defer cancel()

	h.Notify(TopicPosts)
	h.Notify(TopicPosts)
	h.Notify(TopicAlbums)

	receive(t, ch)
	select {
	case <-ch:
		t.Fatal("expected notifications to be coalesced")
	default:
	}
}

func TestHubCancel(t *testing.T) {
	h := NewHub()
	_, cancel := h.Subscribe(TopicPosts, TopicComments)
	assert.Equal(t, 1, h.Subscribers(TopicPosts))

	cancel()
	cancel()
	assert.Equal(t, 0, h.Subscribers(TopicPosts))
	assert.Equal(t, 0, h.Subscribers(TopicComments))
}

func TestStream(t *testing.T) {
	h := NewHub()
	var calls int32
	q := func(ctx context.Context) ([]int, error) {
		n := atomic.AddInt32(&calls, 1)
		return []int{int(n)}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	out := Stream(ctx, h, q, nil, TopicPosts)

	assert.Equal(t, []int{1}, receive(t, out))

	h.Notify(TopicPosts)
	assert.Equal(t, []int{2}, receive(t, out))

	cancel()
	for range out {
	}
	assert.Eventually(t, func() bool { return h.Subscribers(TopicPosts) == 0 }, time.Second, 10*time.Millisecond)
}

func TestStreamReportsQueryErrors(t *testing.T) {
	h := NewHub()
	var fail atomic.Bool
	fail.Store(true)
	q := func(ctx context.Context) ([]string, error) {
		if fail.Load() {
			return nil, errors.New("boom")
		}
		return []string{"ok"}, nil
	}

	errs := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := Stream(ctx, h, q, func(err error) { errs <- err }, TopicPosts)

	assert.EqualError(t, receive(t, errs), "boom")

	fail.Store(false)
	h.Notify(TopicPosts)
	assert.Equal(t, []string{"ok"}, receive(t, out))
}
