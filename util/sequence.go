package util

import (
	"sync/atomic"
)

// Sequence hands out consecutive chunk indices to concurrent producers.
//
type Sequence struct {
	nextValue int64
}

func NewSequence(nextValue int) *Sequence {
	return &Sequence{nextValue: int64(nextValue) - 1}
}

func (self *Sequence) ResetTo(nextValue int) {
	atomic.StoreInt64(&self.nextValue, int64(nextValue)-1)
}

func (self *Sequence) Next() int {
	return int(atomic.AddInt64(&self.nextValue, 1))
}

// Last returns the most recently issued value, or one less than the starting value when nothing has been issued.
//
func (self *Sequence) Last() int {
	return int(atomic.LoadInt64(&self.nextValue))
}
