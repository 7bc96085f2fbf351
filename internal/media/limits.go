package media

import (
	"bytes"
	"fmt"
)

const (
	// MaxAssetBytes is the global max accepted payload size.
	MaxAssetBytes int64 = 200 * 1024 * 1024
)

// limitedBuffer collects a download in memory and rejects writes past maxBytes.
type limitedBuffer struct {
	buf      bytes.Buffer
	maxBytes int64
}

func newLimitedBuffer(maxBytes int64) *limitedBuffer {
	if maxBytes <= 0 {
		maxBytes = MaxAssetBytes
	}
	return &limitedBuffer{maxBytes: maxBytes}
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if int64(b.buf.Len())+int64(len(p)) > b.maxBytes {
		return 0, fmt.Errorf("%w: max %d bytes", ErrAssetTooLarge, b.maxBytes)
	}
	return b.buf.Write(p)
}

func (b *limitedBuffer) Bytes() []byte {
	return b.buf.Bytes()
}

func (b *limitedBuffer) Len() int {
	return b.buf.Len()
}
