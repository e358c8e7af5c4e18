package service

import (
	"context"
	"strings"
	"sync"

	"rankkings/internal/domain/post/model"
	"rankkings/internal/pkg/apperr"
)

// Draft 编辑中的排行榜，名次始终为 1..n
// 草稿属于当前会话用户，换人后自动丢弃
type Draft struct {
	publisher *Publisher

	mu          sync.Mutex
	owner       uint
	title       string
	description string
	isPrivate   bool
	albums      []model.Album
}

// DraftView 草稿快照
type DraftView struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	IsPrivate   bool          `json:"isPrivate"`
	Albums      []model.Album `json:"albums"`
	Status      PublishStatus `json:"status"`
}

func NewDraft(publisher *Publisher) *Draft {
	return &Draft{publisher: publisher}
}

// SetDetails 更新标题、描述与可见性
func (d *Draft) SetDetails(title, description string, isPrivate bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.claimLocked()
	d.title = title
	d.description = description
	d.isPrivate = isPrivate
}

// AddAlbum 追加条目，名次为追加后的列表长度
func (d *Draft) AddAlbum(name, artist, imageURI string) (model.Album, error) {
	name = strings.TrimSpace(name)
	artist = strings.TrimSpace(artist)
	if name == "" || artist == "" {
		return model.Album{}, apperr.Validation("album name and artist are required")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.claimLocked()
	d.albums = append(d.albums, model.Album{
		AlbumName:     name,
		ArtistName:    artist,
		AlbumImageURI: imageURI,
	})
	n := len(d.albums)
	d.albums[n-1].Rank = n
	return d.albums[n-1], nil
}

// RemoveAlbum 删除指定名次并重新编号
func (d *Draft) RemoveAlbum(rank int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.claimLocked()

	idx := -1
	for i, a := range d.albums {
		if a.Rank == rank {
			idx = i
			break
		}
	}
	if idx < 0 {
		return apperr.NotFound("album rank", rank)
	}

	d.albums = append(d.albums[:idx], d.albums[idx+1:]...)
	for i := range d.albums {
		d.albums[i].Rank = i + 1
	}
	return nil
}

func (d *Draft) Albums() []model.Album {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.claimLocked()
	out := make([]model.Album, len(d.albums))
	copy(out, d.albums)
	return out
}

func (d *Draft) View() DraftView {
	d.mu.Lock()
	d.claimLocked()
	view := DraftView{
		Title:       d.title,
		Description: d.description,
		IsPrivate:   d.isPrivate,
		Albums:      make([]model.Album, len(d.albums)),
	}
	copy(view.Albums, d.albums)
	d.mu.Unlock()

	view.Status = d.publisher.Status()
	return view
}

func (d *Draft) Status() PublishStatus {
	return d.publisher.Status()
}

// Publish 发布当前草稿，成功后清空
func (d *Draft) Publish(ctx context.Context) (*model.Post, error) {
	d.mu.Lock()
	d.claimLocked()
	req := PublishRequest{
		Title:       d.title,
		Description: d.description,
		IsPrivate:   d.isPrivate,
		Albums:      make([]model.Album, len(d.albums)),
	}
	copy(req.Albums, d.albums)
	d.mu.Unlock()

	post, err := d.publisher.Publish(ctx, req)
	if err != nil {
		return nil, err
	}
	d.Clear()
	return post, nil
}

// Reset 状态回到 Idle，草稿内容保留以便重新提交
func (d *Draft) Reset() error {
	return d.publisher.Reset()
}

func (d *Draft) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clearLocked()
}

func (d *Draft) clearLocked() {
	d.title, d.description, d.isPrivate = "", "", false
	d.albums = nil
}

// claimLocked 会话用户与草稿所属用户不同时，清空内容并把发布状态退回 Idle
func (d *Draft) claimLocked() {
	var id uint
	if u := d.publisher.users.CurrentUser(); u != nil {
		id = u.ID
	}
	if id == d.owner {
		return
	}
	d.owner = id
	d.clearLocked()
	// 上一位用户的发布仍在进行时 Reset 会失败，结束后状态由其自行落定
	_ = d.publisher.Reset()
}
