package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"rankkings/internal/domain/post/model"
	"rankkings/internal/pkg/apperr"
	"rankkings/internal/pkg/schema"
	"rankkings/pkg/database"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepo(t *testing.T) (PostRepository, *gorm.DB) {
	t.Helper()
	db, err := database.OpenMemory(uuid.NewString())
	require.NoError(t, err)
	require.NoError(t, schema.Migrate(db))
	return NewPostRepository(db), db
}

func albums(n int) []model.Album {
	out := make([]model.Album, n)
	for i := range out {
		out[i] = model.Album{
			AlbumName:  "Album " + string(rune('A'+i)),
			ArtistName: "Artist",
			Rank:       i + 1,
		}
	}
	return out
}

func ranks(as []model.Album) []int {
	out := make([]int, len(as))
	for i, a := range as {
		out[i] = a.Rank
	}
	return out
}

func TestCreatePostWithAlbums(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	post := &model.Post{UserID: 1, Name: "Ana", Title: "Top 90s"}
	entries := albums(3)
	entries[0].PostID = 999 // 会被改写

	require.NoError(t, repo.CreatePostWithAlbums(ctx, post, entries))
	require.NotZero(t, post.ID)

	got, err := repo.GetAlbumsByPostID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, ranks(got))
	for _, a := range got {
		assert.Equal(t, post.ID, a.PostID)
	}

	stored, err := repo.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.LikeCount)
	assert.Zero(t, stored.CommentCount)
	assert.Zero(t, stored.SaveCount)
	assert.False(t, stored.IsLiked)
}

func TestCreatePostWithAlbumsRollsBack(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	entries := albums(2)
	entries[1].Rank = 1 // 重复名次触发唯一索引

	err := repo.CreatePostWithAlbums(ctx, &model.Post{UserID: 1, Title: "Broken"}, entries)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrConstraint)

	posts, err := repo.GetAllPosts(ctx)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestCreatePostWithAlbumsRollbackSQL(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "posts"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "albums"`)).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	repo := NewPostRepository(db)
	err = repo.CreatePostWithAlbums(context.Background(), &model.Post{UserID: 1, Title: "Top"}, albums(2))
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrdering(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	base := time.Now().Add(-time.Hour)
	for i, p := range []model.Post{
		{UserID: 1, Title: "old", CreatedAt: base},
		{UserID: 2, Title: "private", CreatedAt: base.Add(time.Minute), IsPrivate: true},
		{UserID: 1, Title: "new", CreatedAt: base.Add(2 * time.Minute), IsSaved: true},
	} {
		p := p
		require.NoError(t, repo.CreatePost(ctx, &p), i)
	}

	public, err := repo.GetPublicPosts(ctx)
	require.NoError(t, err)
	require.Len(t, public, 2)
	assert.Equal(t, "new", public[0].Title)
	assert.Equal(t, "old", public[1].Title)

	all, err := repo.GetAllPosts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := repo.GetPostsByUserID(ctx, 2)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.True(t, mine[0].IsPrivate)

	saved, err := repo.GetSavedPosts(ctx)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "new", saved[0].Title)
}

func TestComments(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	post := &model.Post{UserID: 1, Title: "t"}
	require.NoError(t, repo.CreatePost(ctx, post))

	base := time.Now()
	require.NoError(t, repo.CreateComment(ctx, &model.Comment{PostID: post.ID, UserID: 1, Content: "first", CreatedAt: base}))
	require.NoError(t, repo.CreateComment(ctx, &model.Comment{PostID: post.ID, UserID: 2, Content: "second", CreatedAt: base.Add(time.Second)}))

	comments, err := repo.GetCommentsByPostID(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "second", comments[0].Content)

	n, err := repo.CountComments(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	err = repo.CreateComment(ctx, &model.Comment{PostID: 404, UserID: 1, Content: "orphan"})
	assert.ErrorIs(t, err, apperr.ErrConstraint)
}

func TestDeleteCascade(t *testing.T) {
	ctx := context.Background()
	repo, db := newTestRepo(t)

	post := &model.Post{UserID: 1, Title: "t"}
	require.NoError(t, repo.CreatePostWithAlbums(ctx, post, albums(3)))
	require.NoError(t, repo.CreateComment(ctx, &model.Comment{PostID: post.ID, UserID: 1, Content: "c"}))

	require.NoError(t, repo.DeleteCascade(ctx, post.ID))

	var albumCount, commentCount int64
	db.Model(&model.Album{}).Where("post_id = ?", post.ID).Count(&albumCount)
	db.Model(&model.Comment{}).Where("post_id = ?", post.ID).Count(&commentCount)
	assert.Zero(t, albumCount)
	assert.Zero(t, commentCount)

	_, err := repo.GetPostByID(ctx, post.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.ErrorIs(t, repo.DeleteCascade(ctx, post.ID), apperr.ErrNotFound)
}

func TestRemoveAlbum(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	post := &model.Post{UserID: 1, Title: "t"}
	require.NoError(t, repo.CreatePostWithAlbums(ctx, post, albums(4)))

	require.NoError(t, repo.RemoveAlbum(ctx, post.ID, 2))

	got, err := repo.GetAlbumsByPostID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, ranks(got))
	assert.Equal(t, "Album A", got[0].AlbumName)
	assert.Equal(t, "Album C", got[1].AlbumName)
	assert.Equal(t, "Album D", got[2].AlbumName)

	assert.ErrorIs(t, repo.RemoveAlbum(ctx, post.ID, 9), apperr.ErrNotFound)
}

func TestRemoveAlbumKeepsMinimum(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	post := &model.Post{UserID: 1, Title: "three"}
	require.NoError(t, repo.CreatePostWithAlbums(ctx, post, albums(3)))

	require.NoError(t, repo.RemoveAlbum(ctx, post.ID, 1))
	assert.ErrorIs(t, repo.RemoveAlbum(ctx, post.ID, 1), apperr.ErrValidation)
	assert.ErrorIs(t, repo.RemoveAlbum(ctx, post.ID, 2), apperr.ErrValidation)

	got, err := repo.GetAlbumsByPostID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, ranks(got))
	assert.Equal(t, "Album B", got[0].AlbumName)
}

func newMySQLMock(t *testing.T) (PostRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewPostRepository(db), mock
}

func TestMySQLRankQuoted(t *testing.T) {
	ctx := context.Background()

	t.Run("Ordering", func(t *testing.T) {
		repo, mock := newMySQLMock(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `albums` WHERE post_id = ? ORDER BY `rank`")).
			WithArgs(7).
			WillReturnRows(sqlmock.NewRows([]string{"id", "post_id", "rank"}).AddRow(1, 7, 1).AddRow(2, 7, 2))

		got, err := repo.GetAlbumsByPostID(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, ranks(got))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Remove and re-rank", func(t *testing.T) {
		repo, mock := newMySQLMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `albums` WHERE post_id = ?")).
			WithArgs(7).
			WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(3))
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `albums` WHERE `post_id` = ? AND `rank` = ?")).
			WithArgs(7, 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `albums` WHERE post_id = ? ORDER BY `rank`")).
			WithArgs(7).
			WillReturnRows(sqlmock.NewRows([]string{"id", "post_id", "rank"}).AddRow(2, 7, 2).AddRow(3, 7, 3))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE `albums` SET `rank`=? WHERE id = ?")).
			WithArgs(1, 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE `albums` SET `rank`=? WHERE id = ?")).
			WithArgs(2, 3).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.RemoveAlbum(ctx, 7, 1))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpdatePostUnchangedRow(t *testing.T) {
	ctx := context.Background()

	t.Run("Row exists", func(t *testing.T) {
		repo, mock := newMySQLMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE `posts` SET")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()
		mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `posts` WHERE id = ?")).
			WithArgs(5).
			WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(1))

		assert.NoError(t, repo.UpdatePost(ctx, &model.Post{ID: 5, UserID: 1, Title: "same"}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Row missing", func(t *testing.T) {
		repo, mock := newMySQLMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE `posts` SET")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()
		mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `posts` WHERE id = ?")).
			WithArgs(5).
			WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(0))

		assert.ErrorIs(t, repo.UpdatePost(ctx, &model.Post{ID: 5, UserID: 1, Title: "gone"}), apperr.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpdateCounterFields(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	post := &model.Post{UserID: 1, Title: "t", Description: "d"}
	require.NoError(t, repo.CreatePost(ctx, post))

	likes, liked := 1, true
	require.NoError(t, repo.UpdateCounterFields(ctx, post.ID, model.CounterFields{LikeCount: &likes, IsLiked: &liked}))

	got, err := repo.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.LikeCount)
	assert.True(t, got.IsLiked)
	assert.Equal(t, "d", got.Description)

	err = repo.UpdateCounterFields(ctx, 404, model.CounterFields{LikeCount: &likes})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	err = repo.UpdateCounterFields(ctx, 404, model.CounterFields{})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdatePost(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	post := &model.Post{UserID: 1, Title: "t"}
	require.NoError(t, repo.CreatePost(ctx, post))

	post.Title = "renamed"
	post.IsPrivate = true
	require.NoError(t, repo.UpdatePost(ctx, post))

	got, err := repo.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)
	assert.True(t, got.IsPrivate)

	assert.ErrorIs(t, repo.UpdatePost(ctx, &model.Post{ID: 404, Title: "x"}), apperr.ErrNotFound)
}

func TestUpsertRemotePosts(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	rid := uint(11)
	require.NoError(t, repo.UpsertRemotePosts(ctx, []model.Post{{UserID: 3, Title: "remote", RemoteID: &rid}}))

	posts, err := repo.GetAllPosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	id := posts[0].ID

	likes, liked := 1, true
	require.NoError(t, repo.UpdateCounterFields(ctx, id, model.CounterFields{LikeCount: &likes, IsLiked: &liked}))

	require.NoError(t, repo.UpsertRemotePosts(ctx, []model.Post{{UserID: 3, Title: "remote v2", RemoteID: &rid}}))

	got, err := repo.GetPostByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "remote v2", got.Title)
	assert.Equal(t, 1, got.LikeCount)
	assert.True(t, got.IsLiked)

	all, err := repo.GetAllPosts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSetRemoteID(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	post := &model.Post{UserID: 1, Title: "t"}
	require.NoError(t, repo.CreatePost(ctx, post))
	require.NoError(t, repo.SetRemoteID(ctx, post.ID, 42))

	got, err := repo.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	require.NotNil(t, got.RemoteID)
	assert.Equal(t, uint(42), *got.RemoteID)

	assert.ErrorIs(t, repo.SetRemoteID(ctx, 404, 1), apperr.ErrNotFound)
}

func TestTransactionRollback(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	post := &model.Post{UserID: 1, Title: "t"}
	require.NoError(t, repo.CreatePost(ctx, post))

	boom := errors.New("boom")
	err := repo.Transaction(ctx, func(tx PostRepository) error {
		if err := tx.CreateComment(ctx, &model.Comment{PostID: post.ID, UserID: 1, Content: "c"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err := repo.CountComments(ctx, post.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}
