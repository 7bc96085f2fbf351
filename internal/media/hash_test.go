package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilenameIsPureFunctionOfBytes(t *testing.T) {
	t.Parallel()

	a := Filename([]byte("same bytes"), "jpg")
	b := Filename([]byte("same bytes"), "jpg")
	c := Filename([]byte("other bytes"), "jpg")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, ContentHash([]byte("same bytes"))+".jpg", a)
}

func TestContentHash(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", ContentHash(nil))
	assert.Len(t, ContentHash([]byte("x")), 64)
}

func TestFilenameNormalizesExtension(t *testing.T) {
	t.Parallel()

	hash := ContentHash([]byte("x"))
	assert.Equal(t, hash+".png", Filename([]byte("x"), ".png"))
	assert.Equal(t, hash+".bin", Filename([]byte("x"), ""))
}
