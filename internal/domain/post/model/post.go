package model

import "time"

// Post 排行榜动态
// 计数字段是冗余存储，所有修改路径必须同时维护标记与计数
type Post struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"index;not null" json:"userId"`
	Name         string    `json:"name"` // 作者昵称快照
	Title        string    `gorm:"not null" json:"title"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `gorm:"index" json:"createdAt"`
	LikeCount    int       `gorm:"not null" json:"likesCount"`
	CommentCount int       `gorm:"not null" json:"commentsCount"`
	SaveCount    int       `gorm:"not null" json:"savesCount"`
	IsLiked      bool      `gorm:"not null" json:"isLiked"`
	IsSaved      bool      `gorm:"not null" json:"isSaved"`
	IsPrivate    bool      `gorm:"not null;index" json:"isPrivate"`
	RemoteID     *uint     `gorm:"uniqueIndex" json:"remoteId,omitempty"`

	// 关联，仅用于建表时生成外键约束
	Albums   []Album   `gorm:"constraint:OnDelete:CASCADE;" json:"albums,omitempty"`
	Comments []Comment `gorm:"constraint:OnDelete:CASCADE;" json:"comments,omitempty"`
}

// MinAlbums 一个排行榜至少包含的条目数
const MinAlbums = 2

// Album 排行条目，Rank 在同一 Post 内从 1 开始连续且唯一
type Album struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	PostID        uint   `gorm:"not null;uniqueIndex:idx_albums_post_rank" json:"postId"`
	AlbumImageURI string `json:"albumImageUri"`
	AlbumName     string `gorm:"not null" json:"albumName"`
	ArtistName    string `gorm:"not null" json:"artistName"`
	Rank          int    `gorm:"not null;uniqueIndex:idx_albums_post_rank" json:"ranking"`
}

// Comment 评论，Name 为评论时的作者昵称快照
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"index;not null" json:"postId"`
	UserID    uint      `gorm:"not null" json:"userId"`
	Name      string    `json:"name"`
	Content   string    `gorm:"not null" json:"content"`
	CreatedAt time.Time `gorm:"index" json:"timestamp"`
}

// CounterFields 计数与标记的局部更新，nil 字段不修改
type CounterFields struct {
	LikeCount    *int
	CommentCount *int
	SaveCount    *int
	IsLiked      *bool
	IsSaved      *bool
	IsPrivate    *bool
}

// Columns 转换为 gorm Updates 使用的列映射
func (f CounterFields) Columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if f.LikeCount != nil {
		cols["like_count"] = *f.LikeCount
	}
	if f.CommentCount != nil {
		cols["comment_count"] = *f.CommentCount
	}
	if f.SaveCount != nil {
		cols["save_count"] = *f.SaveCount
	}
	if f.IsLiked != nil {
		cols["is_liked"] = *f.IsLiked
	}
	if f.IsSaved != nil {
		cols["is_saved"] = *f.IsSaved
	}
	if f.IsPrivate != nil {
		cols["is_private"] = *f.IsPrivate
	}
	return cols
}
