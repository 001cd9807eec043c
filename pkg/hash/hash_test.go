package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hashed, err := HashPassword("s3cret-pa55")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pa55", hashed)

	assert.True(t, CheckPasswordHash("s3cret-pa55", hashed))
	assert.False(t, CheckPasswordHash("wrong-password", hashed))
}
