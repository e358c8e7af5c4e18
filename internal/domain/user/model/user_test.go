package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringList(t *testing.T) {
	t.Run("value and scan", func(t *testing.T) {
		in := StringList{"Rock", "Jazz, Fusion"}
		v, err := in.Value()
		require.NoError(t, err)

		var out StringList
		require.NoError(t, out.Scan(v))
		assert.Equal(t, in, out)
	})

	t.Run("nil is stored as empty array", func(t *testing.T) {
		var in StringList
		v, err := in.Value()
		require.NoError(t, err)
		assert.Equal(t, "[]", v)

		b, err := in.MarshalJSON()
		require.NoError(t, err)
		assert.Equal(t, "[]", string(b))
	})

	t.Run("scan bytes", func(t *testing.T) {
		var out StringList
		require.NoError(t, out.Scan([]byte(`["Pop"]`)))
		assert.Equal(t, StringList{"Pop"}, out)
	})

	t.Run("scan unsupported", func(t *testing.T) {
		var out StringList
		assert.Error(t, out.Scan(42))
	})
}

func TestIsAdmin(t *testing.T) {
	var nilUser *User
	assert.False(t, nilUser.IsAdmin())
	assert.False(t, (&User{Role: RoleUser}).IsAdmin())
	assert.True(t, (&User{Role: RoleAdmin}).IsAdmin())
}
