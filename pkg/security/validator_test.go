package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailValidator(t *testing.T) {
	v := NewEmailValidator(true)

	for _, ok := range []string{"a@b.com", "ana.maria+x@mail.example.org"} {
		assert.NoError(t, v.Validate(ok), ok)
	}
	for _, bad := range []string{"", "  ", "a@b", "ab.com", "a@@b.com", "a b@c.com"} {
		assert.Error(t, v.Validate(bad), bad)
	}
	assert.Equal(t, "a@b.com", v.Sanitize("  A@B.com "))
}

func TestStringValidator(t *testing.T) {
	v := NewStringValidator("password", 6, 0, true)
	assert.Error(t, v.Validate(""))
	assert.EqualError(t, v.Validate("12345"), "password must be at least 6 characters")
	assert.NoError(t, v.Validate("123456"))

	optional := NewStringValidator("description", 0, 5, false)
	assert.NoError(t, optional.Validate(""))
	assert.Error(t, optional.Validate("too long"))

	assert.Equal(t, "hi there", v.Sanitize("\x00 hi there \t"))
}

func TestValidatorSet(t *testing.T) {
	set := NewValidatorSet().
		AddRule("email", NewEmailValidator(true)).
		AddRule("password", NewStringValidator("password", 6, 0, true))

	out, err := set.Validate(map[string]string{"email": " A@B.com", "password": "secret1", "name": "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", out["email"])
	assert.Equal(t, "Ana", out["name"])

	_, err = set.Validate(map[string]string{"email": "bad", "password": "secret1"})
	assert.EqualError(t, err, "invalid email format")
}
