package user_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduva/eduva/core/user"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		digest string
		want   user.Format
	}{
		{name: "empty", digest: "", want: user.Legacy},
		{name: "$2a$", digest: "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy", want: user.Hashed},
		{name: "$2b$", digest: "$2b$12$KIXQJQmJ0tVvZ3/v7KJ6PeRMj1cK1V5M5q8y4sX1q0Yw8Pa1ZgX2e", want: user.Hashed},
		{name: "$2y$", digest: "$2y$10$abcdefghijklmnopqrstuv", want: user.Hashed},
		{name: "bare prefix", digest: "$2b$", want: user.Hashed},
		{name: "plaintext", digest: "SMK1234", want: user.Legacy},
		{name: "prefix not at start", digest: "x$2a$10$abc", want: user.Legacy},
		{name: "leading space", digest: " $2b$10$abc", want: user.Legacy},
		{name: "unknown minor", digest: "$2x$10$abc", want: user.Legacy},
		{name: "truncated prefix", digest: "$2a", want: user.Legacy},
		{name: "upper case", digest: "$2A$10$abc", want: user.Legacy},
		{name: "argon2", digest: "$argon2id$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA", want: user.Legacy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, user.Classify(tt.digest))
		})
	}
}

func TestBcryptHasher(t *testing.T) {
	digest, err := hasher.Hash("hunter2")
	require.NoError(t, err)

	assert.Equal(t, user.Hashed, user.Classify(digest))
	assert.True(t, hasher.Compare("hunter2", digest))
	assert.False(t, hasher.Compare("Hunter2", digest))
	assert.False(t, hasher.Compare("hunter2", "hunter2"), "plaintext is not a hash")

	other, err := hasher.Hash("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, digest, other, "salted")

	// PHP-style $2y$ digests verify as well
	y := "$2y$" + strings.TrimPrefix(digest, digest[:4])
	assert.Equal(t, user.Hashed, user.Classify(y))
	assert.True(t, hasher.Compare("hunter2", y))
}

func TestNewBcryptHasher_InvalidCost(t *testing.T) {
	h := user.NewBcryptHasher(1000)
	digest, err := h.Hash("pwd")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(digest, "$2a$10$"), "falls back to the default cost")
}
