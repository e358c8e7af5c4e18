package watch

import (
	"context"
	"sync"
)

// 表级变更主题
const (
	TopicPosts    = "posts"
	TopicAlbums   = "albums"
	TopicComments = "comments"
)

// Hub 表级变更通知
// 订阅者只收到"发生过变化"的信号，需自行重新查询完整列表
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]chan struct{})}
}

// Subscribe 订阅一个或多个主题，返回的 cancel 必须调用以释放订阅
func (h *Hub) Subscribe(topics ...string) (<-chan struct{}, func()) {
	// 容量为 1：多次通知合并为一次重新查询
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	for _, t := range topics {
		if h.subs[t] == nil {
			h.subs[t] = make(map[int]chan struct{})
		}
		h.subs[t][id] = ch
	}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			for _, t := range topics {
				delete(h.subs[t], id)
			}
			h.mu.Unlock()
		})
	}
	return ch, cancel
}

// Notify 通知主题发生变更，不阻塞
func (h *Hub) Notify(topics ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range topics {
		for _, ch := range h.subs[t] {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}
}

// Subscribers 当前主题的订阅数
func (h *Hub) Subscribers(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[topic])
}

// Query 重新读取完整列表
type Query[T any] func(ctx context.Context) ([]T, error)

// Stream 先推送当前结果，之后每次主题变更都重新查询并推送完整列表，直到 ctx 结束
// 查询出错时调用 onErr 并跳过本次推送
func Stream[T any](ctx context.Context, h *Hub, q Query[T], onErr func(error), topics ...string) <-chan []T {
	out := make(chan []T, 1)
	changed, cancel := h.Subscribe(topics...)

	go func() {
		defer close(out)
		defer cancel()

		emit := func() bool {
			items, err := q(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return false
				}
				if onErr != nil {
					onErr(err)
				}
				return true
			}
			select {
			case out <- items:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-changed:
				if !emit() {
					return
				}
			}
		}
	}()

	return out
}
