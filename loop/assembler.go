package loop

import (
	"context"
	"crypto/sha512"
	"github.com/emirpasic/gods/trees/btree"
	"github.com/emirpasic/gods/utils"
	"github.com/openziti/chunkpool"
	"github.com/openziti/chunkpool/util"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"hash"
	"io"
	"io/ioutil"
	"time"
)

// Assembler receives filled chunks in any order, holds early arrivals in a btree keyed by index, and writes them to
// its output strictly in index order, releasing each chunk back to its factory once written.
//
type Assembler struct {
	in         chan *chunkpool.Buffer
	tree       *btree.Tree
	next       int
	w          io.Writer
	hash       hash.Hash
	drainDelay time.Duration
	metrics    *Metrics
	reporter   *transferReporter
	written    int64
	maxPending int
}

func NewAssembler(w io.Writer, queueLen int, drainDelay time.Duration, metrics *Metrics) *Assembler {
	if w == nil {
		w = ioutil.Discard
	}
	return &Assembler{
		in:         make(chan *chunkpool.Buffer, queueLen),
		tree:       btree.NewWith(32, utils.IntComparator),
		w:          w,
		hash:       sha512.New(),
		drainDelay: drainDelay,
		metrics:    metrics,
	}
}

func (self *Assembler) In() chan<- *chunkpool.Buffer {
	return self.in
}

func (self *Assembler) Close() {
	close(self.in)
}

// Run consumes until In is closed and everything pending has been written, or until ctx ends. Chunks still pending
// when Run returns are released.
//
func (self *Assembler) Run(ctx context.Context) error {
	logrus.Debug("[assembler] starting")
	defer logrus.Debug("[assembler] exiting")
	defer self.releasePending()

	for {
		select {
		case buf, ok := <-self.in:
			if !ok {
				if self.tree.Size() > 0 {
					return errors.Errorf("input closed with [%d] chunks pending, next expected #%d", self.tree.Size(), self.next)
				}
				return nil
			}
			if buf.Index() < self.next {
				buf.Release()
				return errors.Errorf("chunk #%d arrived after it was written", buf.Index())
			}
			if _, found := self.tree.Get(buf.Index()); found {
				buf.Release()
				return errors.Errorf("duplicate chunk #%d", buf.Index())
			}
			self.tree.Put(buf.Index(), buf)
			if self.tree.Size() > self.maxPending {
				self.maxPending = self.tree.Size()
			}
			if err := self.drain(ctx); err != nil {
				return err
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (self *Assembler) drain(ctx context.Context) error {
	for {
		v, found := self.tree.Get(self.next)
		if !found {
			return nil
		}
		buf := v.(*chunkpool.Buffer)
		self.tree.Remove(self.next)

		n, err := io.Copy(io.MultiWriter(self.w, self.hash), buf.Reader())
		if err != nil {
			buf.Release()
			return errors.Wrapf(err, "write chunk #%d", self.next)
		}
		self.written += n
		if self.metrics != nil {
			self.metrics.Rx(n)
		}
		if self.reporter != nil {
			self.reporter.report(n)
		}
		if self.drainDelay > 0 {
			select {
			case <-time.After(util.Jitter(self.drainDelay)):
			case <-ctx.Done():
				buf.Release()
				return ctx.Err()
			}
		}
		buf.Release()
		self.next++
	}
}

func (self *Assembler) releasePending() {
	for _, v := range self.tree.Values() {
		v.(*chunkpool.Buffer).Release()
	}
	self.tree.Clear()
}

func (self *Assembler) Written() int64 {
	return self.written
}

func (self *Assembler) Chunks() int {
	return self.next
}

func (self *Assembler) MaxPending() int {
	return self.maxPending
}

func (self *Assembler) Sum() []byte {
	return self.hash.Sum(nil)
}
