package chunkpool

import (
	"context"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"sync"
	"sync/atomic"
	"time"
)

// Factory hands out fixed-size chunk buffers to concurrent workers. Idle buffers are reused immediately; when none is
// available the Factory mints a new one, first sleeping for a delay that grows along a logistic curve as the number of
// outstanding buffers approaches (and passes) the soft capacity. Capacity is never enforced by rejection.
//
// The idle set (a buffered channel) and the outstanding count (an atomic counter) are independent, so reuse never
// waits on pressure accounting.
//
type Factory struct {
	id          string
	chunkSz     int
	capacity    int
	pollTimeout time.Duration
	curve       Curve
	idle        chan *Buffer
	count       int32
	ii          InstrumentInstance
	sleep       func(ctx context.Context, d time.Duration) error
	closeOnce   sync.Once
}

func NewFactory(id string, p *Profile) (*Factory, error) {
	if p == nil {
		p = NewBaselineProfile()
	}
	if err := p.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid profile")
	}
	f := &Factory{
		id:          id,
		chunkSz:     p.ChunkSz,
		capacity:    p.Capacity,
		pollTimeout: p.PollTimeout(),
		curve:       p.Curve(),
		idle:        make(chan *Buffer, p.Capacity),
		sleep:       sleep,
	}
	if i := p.Instrument(); i != nil {
		f.ii = i.NewInstance(id)
	} else {
		f.ii = NilInstrumentInstance{}
	}
	return f, nil
}

// Acquire returns a buffer carrying index, reusing an idle one when one turns up within the poll timeout and minting
// (after the throttle delay) otherwise. When ctx ends first the returned error wraps ctx.Err() and no buffer is handed
// out. An outstanding increment made before the cancellation is kept.
//
func (self *Factory) Acquire(ctx context.Context, index int) (*Buffer, error) {
	if buf, err := self.poll(ctx, index); err != nil || buf != nil {
		return buf, err
	}

	current := int(atomic.AddInt32(&self.count, 1) - 1)
	delay := self.curve.Delay(current, self.capacity)
	logrus.Debugf("[%s] creating a new buffer count=%d; capacity=%d; delay=%dms", self.id, current, self.capacity, delay.Milliseconds())
	self.ii.Allocated(index, current, self.capacity, delay)

	if err := self.sleep(ctx, delay); err != nil {
		self.ii.Cancelled(index, err)
		return nil, errors.Wrapf(err, "acquire #%d cancelled during allocation delay", index)
	}
	return newBuffer(self, index), nil
}

func (self *Factory) poll(ctx context.Context, index int) (*Buffer, error) {
	select {
	case buf := <-self.idle:
		return self.reuse(buf, index), nil
	default:
	}
	if self.pollTimeout <= 0 {
		if err := ctx.Err(); err != nil {
			self.ii.Cancelled(index, err)
			return nil, errors.Wrapf(err, "acquire #%d cancelled waiting for an idle buffer", index)
		}
		return nil, nil
	}

	timer := time.NewTimer(self.pollTimeout)
	defer timer.Stop()
	select {
	case buf := <-self.idle:
		return self.reuse(buf, index), nil

	case <-timer.C:
		return nil, nil

	case <-ctx.Done():
		self.ii.Cancelled(index, ctx.Err())
		return nil, errors.Wrapf(ctx.Err(), "acquire #%d cancelled waiting for an idle buffer", index)
	}
}

func (self *Factory) reuse(buf *Buffer, index int) *Buffer {
	buf.Reset()
	self.ii.Reused(index, len(self.idle))
	return buf.WithIndex(index)
}

// Release re-idles buf while the idle set is below capacity, otherwise discards it for the garbage collector and
// decrements the outstanding count. Release never blocks.
//
func (self *Factory) Release(buf *Buffer) {
	if buf == nil {
		return
	}
	if buf.factory != self {
		logrus.Warnf("[%s] ignoring release of buffer #%d minted elsewhere", self.id, buf.index)
		return
	}

	select {
	case self.idle <- buf:
		idleSz := len(self.idle)
		logrus.Debugf("[%s] returning buffer index=%d to pool size=%d", self.id, buf.index, idleSz)
		self.ii.Returned(buf.index, idleSz)

	default:
		cc := int(atomic.AddInt32(&self.count, -1))
		idleSz := len(self.idle)
		logrus.Debugf("[%s] returning buffer index=%d for GC; pool size=%d; count=%d", self.id, buf.index, idleSz, cc)
		self.ii.Discarded(buf.index, idleSz, cc)
	}
}

// Drain empties the idle set so its buffers can be reclaimed, returning how many were drained.
//
func (self *Factory) Drain() int {
	drained := 0
	for {
		select {
		case <-self.idle:
			drained++
			atomic.AddInt32(&self.count, -1)
		default:
			cc := self.Outstanding()
			logrus.Debugf("[%s] drained %d buffers; count=%d", self.id, drained, cc)
			self.ii.Drained(drained, cc)
			return drained
		}
	}
}

// Close drains the idle set and shuts down the instrument instance. Only the first call has any effect.
//
func (self *Factory) Close() {
	self.closeOnce.Do(func() {
		self.Drain()
		self.ii.Shutdown()
	})
}

func (self *Factory) Id() string {
	return self.id
}

func (self *Factory) ChunkSz() int {
	return self.chunkSz
}

func (self *Factory) Capacity() int {
	return self.capacity
}

func (self *Factory) Outstanding() int {
	return int(atomic.LoadInt32(&self.count))
}

func (self *Factory) IdleSz() int {
	return len(self.idle)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
