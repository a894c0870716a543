package loop

import (
	"crypto/sha512"
	"github.com/openziti/chunkpool"
	"github.com/pkg/errors"
	"io"
	"math/rand"
)

// DataSet describes a synthetic transfer of Sz bytes split into ChunkSz chunks. The payload of each chunk is derived
// from its index, so any chunk can be regenerated for verification.
//
type DataSet struct {
	Sz      int64
	ChunkSz int
}

func NewDataSet(sz int64, chunkSz int) (*DataSet, error) {
	if sz < 0 {
		return nil, errors.Errorf("invalid data set size [%d]", sz)
	}
	if chunkSz < 1 {
		return nil, errors.Errorf("invalid chunk size [%d]", chunkSz)
	}
	return &DataSet{Sz: sz, ChunkSz: chunkSz}, nil
}

func (self *DataSet) Chunks() int {
	return int((self.Sz + int64(self.ChunkSz) - 1) / int64(self.ChunkSz))
}

func (self *DataSet) ChunkLen(index int) int {
	remain := self.Sz - int64(index)*int64(self.ChunkSz)
	if remain <= 0 {
		return 0
	}
	if remain < int64(self.ChunkSz) {
		return int(remain)
	}
	return self.ChunkSz
}

func (self *DataSet) Fill(buf *chunkpool.Buffer) error {
	want := self.ChunkLen(buf.Index())
	if want > buf.Remaining() {
		return errors.Errorf("chunk #%d needs [%d] bytes, buffer has [%d]", buf.Index(), want, buf.Remaining())
	}
	n, err := buf.ReadFrom(io.LimitReader(self.source(buf.Index()), int64(want)))
	if err != nil {
		return errors.Wrapf(err, "fill chunk #%d", buf.Index())
	}
	if int(n) != want {
		return errors.Errorf("short fill for chunk #%d [%d != %d]", buf.Index(), n, want)
	}
	return nil
}

// Hash returns the sha512 of the whole data set in index order.
//
func (self *DataSet) Hash() []byte {
	h := sha512.New()
	for i := 0; i < self.Chunks(); i++ {
		_, _ = io.Copy(h, io.LimitReader(self.source(i), int64(self.ChunkLen(i))))
	}
	return h.Sum(nil)
}

func (self *DataSet) source(index int) io.Reader {
	return rand.New(rand.NewSource(int64(index) + 1))
}
