package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	t.Run("Defaults", func(t *testing.T) {
		res := Page(items, Pagination{})
		assert.Equal(t, []int{1, 2, 3, 4, 5}, res.List)
		assert.Equal(t, int64(5), res.Total)
		assert.Equal(t, 1, res.Page)
		assert.Equal(t, 10, res.Limit)
	})

	t.Run("Second page", func(t *testing.T) {
		res := Page(items, Pagination{Page: 2, Limit: 2})
		assert.Equal(t, []int{3, 4}, res.List)
	})

	t.Run("Past the end", func(t *testing.T) {
		res := Page(items, Pagination{Page: 4, Limit: 2})
		assert.Equal(t, []int{}, res.List)
		assert.Equal(t, int64(5), res.Total)
	})

	t.Run("Limit capped", func(t *testing.T) {
		res := Page(items, Pagination{Limit: 500})
		assert.Equal(t, 100, res.Limit)
	})
}
