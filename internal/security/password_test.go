package security_test

import (
	"strings"
	"testing"

	"github.com/dom/auth-server/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	hasher := security.NewBcryptHasher(bcrypt.MinCost)

	hash, err := hasher.Hash("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hash)

	tests := []struct {
		name     string
		password string
		hash     string
		want     bool
	}{
		{name: "matching password", password: "secret1", hash: hash, want: true},
		{name: "wrong password", password: "secret2", hash: hash, want: false},
		{name: "empty password", password: "", hash: hash, want: false},
		{name: "malformed hash", password: "secret1", hash: "not-a-hash", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hasher.Compare(tt.password, tt.hash))
		})
	}
}

func TestBcryptHasher_InvalidCostFallsBack(t *testing.T) {
	hasher := security.NewBcryptHasher(0)

	hash, err := hasher.Hash("secret1")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
}

func TestBcryptHasher_LongPasswords(t *testing.T) {
	hasher := security.NewBcryptHasher(bcrypt.MinCost)

	long := strings.Repeat("p", 100)
	hash, err := hasher.Hash(long)
	require.NoError(t, err)

	tests := []struct {
		name     string
		password string
		want     bool
	}{
		{name: "same long password", password: long, want: true},
		{name: "differs after byte 72", password: strings.Repeat("p", 99) + "q", want: false},
		{name: "first 72 bytes only", password: long[:72], want: false},
		{name: "multibyte over limit", password: strings.Repeat("é", 40), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hasher.Compare(tt.password, hash))
		})
	}

	t.Run("multibyte round trip", func(t *testing.T) {
		password := strings.Repeat("é", 40)
		hash, err := hasher.Hash(password)
		require.NoError(t, err)
		assert.True(t, hasher.Compare(password, hash))
	})
}
