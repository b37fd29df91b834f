package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	encoded, err := Hash("s3cret!")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=65536,t=1,p=4$"))

	assert.True(t, Verify("s3cret!", encoded))
	assert.False(t, Verify("s3cret?", encoded))
}

func TestHashIsSalted(t *testing.T) {
	a, err := Hash("same")
	require.NoError(t, err)
	b, err := Hash("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyRejectsMalformed(t *testing.T) {
	for _, encoded := range []string{
		"",
		"plain",
		"$argon2i$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=1,t=1,p=1$!!$aGFzaA",
	} {
		assert.False(t, Verify("pw", encoded), encoded)
	}
}
