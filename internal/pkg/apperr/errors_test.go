package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestTranslate(t *testing.T) {
	t.Run("record not found", func(t *testing.T) {
		err := Translate(fmt.Errorf("query post: %w", gorm.ErrRecordNotFound))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("duplicated key", func(t *testing.T) {
		assert.ErrorIs(t, Translate(gorm.ErrDuplicatedKey), ErrConstraint)
	})

	t.Run("sqlite constraint text", func(t *testing.T) {
		err := Translate(errors.New("UNIQUE constraint failed: albums.post_id, albums.rank"))
		assert.ErrorIs(t, err, ErrConstraint)
	})

	t.Run("already classified", func(t *testing.T) {
		err := Validation("title is required")
		assert.Same(t, err, Translate(err))
	})

	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, Translate(nil))
	})
}

func TestRemoteError(t *testing.T) {
	err := fmt.Errorf("login: %w", &RemoteError{Status: 401, Message: "Invalid credentials"})

	assert.ErrorIs(t, err, ErrRemote)
	assert.Equal(t, "Invalid credentials", Message(err))

	var re *RemoteError
	assert.True(t, errors.As(err, &re))
	assert.Equal(t, 401, re.Status)
}
