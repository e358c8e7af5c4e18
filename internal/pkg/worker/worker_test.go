package worker

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"rankkings/internal/pkg/apperr"

	"github.com/stretchr/testify/assert"
)

type fakePusher struct {
	mu    sync.Mutex
	calls map[uint]int
	errs  map[uint][]error
}

func newFakePusher() *fakePusher {
	return &fakePusher{calls: make(map[uint]int), errs: make(map[uint][]error)}
}

func (f *fakePusher) PushPost(_ context.Context, postID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[postID]++
	if q := f.errs[postID]; len(q) > 0 {
		err := q[0]
		f.errs[postID] = q[1:]
		return err
	}
	return nil
}

func (f *fakePusher) count(postID uint) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[postID]
}

func newPool(p Pusher, maxRetry int) *WorkerPool {
	pool := NewWorkerPool(p, 2, 10, maxRetry, nil)
	pool.RetryDelay = time.Millisecond
	pool.Start()
	return pool
}

func TestWorkerPool(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		pusher := newFakePusher()
		pool := newPool(pusher, 3)
		defer pool.Stop()

		pool.Enqueue(1)
		assert.Eventually(t, func() bool { return pusher.count(1) == 1 }, time.Second, 5*time.Millisecond)
	})

	t.Run("Retries transport failures", func(t *testing.T) {
		pusher := newFakePusher()
		pusher.errs[2] = []error{apperr.ErrRemote, &apperr.RemoteError{Status: http.StatusBadGateway}}
		pool := newPool(pusher, 3)
		defer pool.Stop()

		pool.Enqueue(2)
		assert.Eventually(t, func() bool { return pusher.count(2) == 3 }, time.Second, 5*time.Millisecond)
	})

	t.Run("Gives up after max retries", func(t *testing.T) {
		pusher := newFakePusher()
		pusher.errs[3] = []error{apperr.ErrRemote, apperr.ErrRemote, apperr.ErrRemote, apperr.ErrRemote}
		pool := newPool(pusher, 1)
		defer pool.Stop()

		pool.Enqueue(3)
		assert.Eventually(t, func() bool { return pusher.count(3) == 2 }, time.Second, 5*time.Millisecond)
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, 2, pusher.count(3))
	})

	t.Run("Client errors are not retried", func(t *testing.T) {
		pusher := newFakePusher()
		pusher.errs[4] = []error{&apperr.RemoteError{Status: http.StatusBadRequest}}
		pool := newPool(pusher, 3)
		defer pool.Stop()

		pool.Enqueue(4)
		assert.Eventually(t, func() bool { return pusher.count(4) == 1 }, time.Second, 5*time.Millisecond)
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, 1, pusher.count(4))
	})
}

func TestStopIsPrompt(t *testing.T) {
	pool := NewWorkerPool(newFakePusher(), 1, 4, 3, nil)
	pool.Start()

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
	assert.True(t, pool.AddTask(PushTask{PostID: 1}))
}
