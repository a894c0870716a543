package loop

import (
	"github.com/eapache/queue"
	"github.com/openziti/chunkpool"
	"github.com/openziti/chunkpool/util"
	"github.com/sirupsen/logrus"
	"time"
)

type transferReport struct {
	stamp time.Time
	bytes int64
}

// transferReporter logs the assembled byte rate once per interval, along with the pool's pressure.
//
type transferReporter struct {
	in         chan *transferReport
	factory    *chunkpool.Factory
	interval   time.Duration
	pending    *queue.Queue
	lastReport time.Time
	done       chan struct{}
}

func newTransferReporter(factory *chunkpool.Factory, interval time.Duration) *transferReporter {
	return &transferReporter{
		in:       make(chan *transferReport, 1024),
		factory:  factory,
		interval: interval,
		pending:  queue.New(),
		done:     make(chan struct{}),
	}
}

func (self *transferReporter) report(bytes int64) {
	select {
	case self.in <- &transferReport{time.Now(), bytes}:
	default:
		logrus.Debug("reporter backlogged, dropping report")
	}
}

func (self *transferReporter) close() {
	close(self.in)
	<-self.done
}

func (self *transferReporter) run() {
	logrus.Debug("started")
	defer logrus.Debug("exited")
	defer close(self.done)

	self.lastReport = time.Now()
	ticker := time.NewTicker(self.interval)
	defer ticker.Stop()

	for {
		select {
		case tr, ok := <-self.in:
			if !ok {
				self.emit(time.Now())
				return
			}
			self.pending.Add(tr)

		case now := <-ticker.C:
			self.emit(now)
		}
	}
}

func (self *transferReporter) emit(now time.Time) {
	cutoff := self.lastReport.Add(self.interval)
	totalBytes := int64(0)
	for self.pending.Length() > 0 && self.pending.Peek().(*transferReport).stamp.Before(cutoff) {
		totalBytes += self.pending.Remove().(*transferReport).bytes
	}
	self.lastReport = now

	seconds := self.interval.Seconds()
	logrus.Infof("%s/sec [%d pending] outstanding=%d idle=%d capacity=%d",
		util.BytesToSize(int64(float64(totalBytes)/seconds)), self.pending.Length(),
		self.factory.Outstanding(), self.factory.IdleSz(), self.factory.Capacity())
}
