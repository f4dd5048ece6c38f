package password_test

import (
	"testing"

	"github.com/amit918/Bookstore-backend/pkg/password"
	"github.com/stretchr/testify/require"
)

func TestHashVerify(t *testing.T) {
	t.Parallel()
	hash, err := password.Hash("correct horse battery staple")
	require.NoError(t, err)
	require.NotEqual(t, "correct horse battery staple", hash)

	require.True(t, password.Verify("correct horse battery staple", hash))
	require.False(t, password.Verify("wrong", hash))
}
