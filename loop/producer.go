package loop

import (
	"context"
	"github.com/openziti/chunkpool"
	"github.com/openziti/chunkpool/util"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Producer acquires chunks for consecutive indices taken from a shared sequence, fills them and hands them to the
// assembler. Several producers sharing one sequence deliver chunks out of order.
//
type Producer struct {
	id      int
	factory *chunkpool.Factory
	ds      *DataSet
	seq     *util.Sequence
	out     chan<- *chunkpool.Buffer
	metrics *Metrics
}

func NewProducer(id int, factory *chunkpool.Factory, ds *DataSet, seq *util.Sequence, out chan<- *chunkpool.Buffer, metrics *Metrics) *Producer {
	return &Producer{
		id:      id,
		factory: factory,
		ds:      ds,
		seq:     seq,
		out:     out,
		metrics: metrics,
	}
}

func (self *Producer) Run(ctx context.Context) error {
	logrus.Debugf("[producer %d] starting", self.id)
	defer logrus.Debugf("[producer %d] exiting", self.id)

	chunks := self.ds.Chunks()
	for {
		index := self.seq.Next()
		if index >= chunks {
			return nil
		}

		buf, err := self.factory.Acquire(ctx, index)
		if err != nil {
			return errors.Wrapf(err, "producer %d", self.id)
		}
		if err := self.ds.Fill(buf); err != nil {
			self.factory.Release(buf)
			return errors.Wrapf(err, "producer %d", self.id)
		}
		if self.metrics != nil {
			self.metrics.Tx(int64(buf.Len()))
		}

		select {
		case self.out <- buf:
		case <-ctx.Done():
			self.factory.Release(buf)
			return errors.Wrapf(ctx.Err(), "producer %d", self.id)
		}
	}
}
