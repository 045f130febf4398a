package hasher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSum(t *testing.T) {
	t.Run("known vector", func(t *testing.T) {
		// sha256("") is a published constant.
		assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Sum(nil))
		assert.Equal(t, Sum(nil), Sum([]byte{}))
	})

	t.Run("deterministic", func(t *testing.T) {
		body := []byte(`{"content_id":"abc00012","title":"Sample"}`)
		require.Equal(t, Sum(body), Sum(body))
	})

	t.Run("differs on any change", func(t *testing.T) {
		a := Sum([]byte("payload-a"))
		b := Sum([]byte("payload-b"))
		assert.NotEqual(t, a, b)
	})

	t.Run("length and alphabet", func(t *testing.T) {
		d := Sum([]byte("x"))
		require.Len(t, d, HexLength)
		assert.True(t, IsValidDigest(d))
	})
}

func TestIsValidDigest(t *testing.T) {
	assert.False(t, IsValidDigest(""))
	assert.False(t, IsValidDigest("abc"))
	assert.False(t, IsValidDigest("zz b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b85"))
	assert.True(t, IsValidDigest(Sum([]byte("ok"))))
}
