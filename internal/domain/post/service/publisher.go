package service

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"rankkings/internal/domain/post/model"
	userModel "rankkings/internal/domain/user/model"
	"rankkings/internal/pkg/apperr"
	"rankkings/pkg/logger"

	"go.uber.org/zap"
)

// PublishState 发布流程状态
type PublishState int

const (
	StateIdle PublishState = iota
	StateLoading
	StateSuccess
	StateError
)

func (s PublishState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

func (s PublishState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *PublishState) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "loading":
		*s = StateLoading
	case "success":
		*s = StateSuccess
	case "error":
		*s = StateError
	default:
		*s = StateIdle
	}
	return nil
}

// PublishStatus 状态快照
type PublishStatus struct {
	State   PublishState `json:"state"`
	Message string       `json:"message,omitempty"`
	PostID  uint         `json:"postId,omitempty"`
}

// CurrentUser 提供当前登录用户，未登录返回 nil
type CurrentUser interface {
	CurrentUser() *userModel.User
}

// PushQueue 发布成功后的远端推送队列
type PushQueue interface {
	Enqueue(postID uint)
}

// PublishRequest 一次发布的内容
type PublishRequest struct {
	Title       string
	Description string
	IsPrivate   bool
	Albums      []model.Album
}

// Publisher 发布流程状态机 Idle → Loading → {Success | Error}
// Success 与 Error 保持到调用 Reset
type Publisher struct {
	posts PostService
	users CurrentUser
	queue PushQueue

	mu       sync.Mutex
	status   PublishStatus
	nextSub  int
	watchers map[int]chan PublishStatus
}

// NewPublisher queue 可为 nil
func NewPublisher(posts PostService, users CurrentUser, queue PushQueue) *Publisher {
	return &Publisher{
		posts:    posts,
		users:    users,
		queue:    queue,
		watchers: make(map[int]chan PublishStatus),
	}
}

func (p *Publisher) Status() PublishStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Publish 校验失败时返回 ErrValidation 且状态不变；非 Idle 时返回 ErrState
func (p *Publisher) Publish(ctx context.Context, req PublishRequest) (*model.Post, error) {
	p.mu.Lock()
	if p.status.State != StateIdle {
		state := p.status.State
		p.mu.Unlock()
		return nil, apperr.State("publish not allowed while " + state.String())
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		p.mu.Unlock()
		return nil, apperr.Validation("title is required")
	}
	if len(req.Albums) < model.MinAlbums {
		p.mu.Unlock()
		return nil, apperr.Validation("at least 2 albums are required")
	}
	user := p.users.CurrentUser()
	if user == nil {
		p.mu.Unlock()
		return nil, apperr.Validation("no signed-in user")
	}

	p.setLocked(PublishStatus{State: StateLoading})
	p.mu.Unlock()

	post := &model.Post{
		UserID:      user.ID,
		Name:        user.Name,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		IsPrivate:   req.IsPrivate,
	}
	// 按传入名次排序后压实为 1..n
	albums := make([]model.Album, len(req.Albums))
	copy(albums, req.Albums)
	sort.SliceStable(albums, func(i, j int) bool { return albums[i].Rank < albums[j].Rank })
	for i := range albums {
		albums[i].Rank = i + 1
	}

	if err := p.posts.CreatePostWithAlbums(ctx, post, albums); err != nil {
		p.set(PublishStatus{State: StateError, Message: apperr.Message(err)})
		return nil, err
	}

	p.set(PublishStatus{State: StateSuccess, PostID: post.ID})
	logger.L().Info("post published", zap.Uint("post_id", post.ID), zap.Int("albums", len(albums)))

	if p.queue != nil && !post.IsPrivate {
		p.queue.Enqueue(post.ID)
	}
	return post, nil
}

// Reset Success/Error 回到 Idle；Loading 期间不允许
func (p *Publisher) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status.State == StateLoading {
		return apperr.State("cannot reset while loading")
	}
	if p.status.State != StateIdle {
		p.setLocked(PublishStatus{State: StateIdle})
	}
	return nil
}

// Subscribe 订阅状态变化，先收到当前状态；cancel 后通道关闭
func (p *Publisher) Subscribe() (<-chan PublishStatus, func()) {
	ch := make(chan PublishStatus, 4)

	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.watchers[id] = ch
	ch <- p.status
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.watchers, id)
			p.mu.Unlock()
			close(ch)
		})
	}
}

func (p *Publisher) set(st PublishStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setLocked(st)
}

func (p *Publisher) setLocked(st PublishStatus) {
	p.status = st
	for _, ch := range p.watchers {
		select {
		case ch <- st:
		default:
			// 慢订阅者丢弃中间状态
		}
	}
}
