package chunkpool

import (
	"bytes"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"io/ioutil"
	"testing"
)

func testBuffer(sz int) *Buffer {
	return newBuffer(&Factory{chunkSz: sz}, 0)
}

func TestBufferWrite(t *testing.T) {
	buf := testBuffer(8)
	n, err := buf.Write([]byte{0x01, 0x02, 0x03, 0x04})
	assert.NoError(t, err)
	assert.Equal(t, 4, n)
	n, err = buf.Write([]byte{0x0a, 0x0b, 0x0c, 0x0d})
	assert.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.True(t, buf.Full())
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04, 0x0a, 0x0b, 0x0c, 0x0d}, buf.Bytes())

	n, err = buf.Write([]byte{0xff})
	assert.Equal(t, 0, n)
	assert.True(t, errors.Is(err, ErrBufferFull))
	assert.Equal(t, 8, buf.Len())
}

func TestBufferResetAndWithIndex(t *testing.T) {
	buf := testBuffer(16)
	_, _ = buf.Write([]byte("chunk"))
	assert.Equal(t, 5, buf.Len())
	assert.Equal(t, 11, buf.Remaining())

	buf.Reset()
	assert.Equal(t, 0, buf.Len())
	assert.Equal(t, 16, buf.Cap())
	assert.Empty(t, buf.Bytes())

	assert.Same(t, buf, buf.WithIndex(42))
	assert.Equal(t, 42, buf.Index())
}

func TestBufferReadFrom(t *testing.T) {
	buf := testBuffer(4)
	n, err := buf.ReadFrom(bytes.NewReader([]byte("abcdefgh")))
	assert.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, []byte("abcd"), buf.Bytes())

	buf.Reset()
	n, err = buf.ReadFrom(bytes.NewReader([]byte("xy")))
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, []byte("xy"), buf.Bytes())
	assert.False(t, buf.Full())
}

func TestBufferReader(t *testing.T) {
	buf := testBuffer(32)
	_, _ = buf.Write([]byte("opaque byte source"))
	data, err := ioutil.ReadAll(buf.Reader())
	assert.NoError(t, err)
	assert.Equal(t, "opaque byte source", string(data))
}

func TestDetachedBufferRelease(t *testing.T) {
	buf := NewDetachedBuffer(16, 4)
	assert.Equal(t, 16, buf.Cap())
	assert.Equal(t, 4, buf.Index())
	assert.NotPanics(t, buf.Release)
}
