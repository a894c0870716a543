package chunkpool

import (
	"bytes"
	"github.com/pkg/errors"
	"io"
)

var ErrBufferFull = errors.New("chunk buffer full")

// Buffer is a fixed-capacity chunk carrying the logical index it currently represents. A Buffer has exactly one
// owner at a time (a caller, or the idle set of the Factory that minted it) and does no locking of its own.
//
type Buffer struct {
	data    []byte
	uz      int
	index   int
	factory *Factory
}

func newBuffer(factory *Factory, index int) *Buffer {
	return &Buffer{
		data:    make([]byte, factory.chunkSz),
		uz:      0,
		index:   index,
		factory: factory,
	}
}

// NewDetachedBuffer returns a buffer that belongs to no Factory. Releasing it does nothing.
//
func NewDetachedBuffer(sz, index int) *Buffer {
	return &Buffer{data: make([]byte, sz), index: index}
}

func (self *Buffer) Reset() {
	self.uz = 0
}

func (self *Buffer) WithIndex(index int) *Buffer {
	self.index = index
	return self
}

func (self *Buffer) Index() int {
	return self.index
}

func (self *Buffer) Write(p []byte) (n int, err error) {
	if self.uz+len(p) > len(self.data) {
		return 0, errors.Wrapf(ErrBufferFull, "short [%d + %d > %d]", self.uz, len(p), len(self.data))
	}
	n = copy(self.data[self.uz:], p)
	self.uz += n
	return n, nil
}

// ReadFrom fills the remaining space from r, stopping when the buffer is full or r is exhausted.
//
func (self *Buffer) ReadFrom(r io.Reader) (int64, error) {
	total := int64(0)
	for self.uz < len(self.data) {
		n, err := r.Read(self.data[self.uz:])
		self.uz += n
		total += int64(n)
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (self *Buffer) Bytes() []byte {
	return self.data[:self.uz]
}

func (self *Buffer) Reader() io.Reader {
	return bytes.NewReader(self.data[:self.uz])
}

func (self *Buffer) Len() int {
	return self.uz
}

func (self *Buffer) Cap() int {
	return len(self.data)
}

func (self *Buffer) Remaining() int {
	return len(self.data) - self.uz
}

func (self *Buffer) Full() bool {
	return self.uz == len(self.data)
}

// Release returns the buffer to the Factory that minted it. The caller must not touch the buffer afterwards.
//
func (self *Buffer) Release() {
	if self.factory != nil {
		self.factory.Release(self)
	}
}
