package loop

import (
	"github.com/openziti/chunkpool/util"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"io/ioutil"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

const MetricsId = "chunkpoolLoop"

type Metrics struct {
	close     chan struct{}
	closeOnce sync.Once

	start        time.Time
	lock         sync.Mutex
	RxBytes      []*util.Sample
	RxBytesAccum int64
	TxBytes      []*util.Sample
	TxBytesAccum int64
}

func NewMetrics(interval time.Duration) *Metrics {
	m := &Metrics{close: make(chan struct{})}
	if interval > 0 {
		go m.snapshotter(interval)
	}
	return m
}

func (self *Metrics) Start() {
	self.start = time.Now()
}

func (self *Metrics) Rx(bytes int64) {
	atomic.AddInt64(&self.RxBytesAccum, bytes)
}

func (self *Metrics) Tx(bytes int64) {
	atomic.AddInt64(&self.TxBytesAccum, bytes)
}

// Close stops the snapshotter and takes a final snapshot so nothing accumulated is lost.
//
func (self *Metrics) Close() {
	self.closeOnce.Do(func() {
		close(self.close)
		self.snapshot()
	})
}

type Summary struct {
	RxBytes   int64
	RxSeconds float64
	TxBytes   int64
	TxSeconds float64
}

func (self *Metrics) Summarize() *Summary {
	self.lock.Lock()
	defer self.lock.Unlock()

	s := &Summary{}
	s.RxBytes, s.RxSeconds = total(self.start, self.RxBytes)
	s.TxBytes, s.TxSeconds = total(self.start, self.TxBytes)
	if s.TxBytes > 0 {
		logrus.Infof("Tx: %s in %0.2f sec = %s/sec", util.BytesToSize(s.TxBytes), s.TxSeconds, util.BytesToSize(rate(s.TxBytes, s.TxSeconds)))
	}
	if s.RxBytes > 0 {
		logrus.Infof("Rx: %s in %0.2f sec = %s/sec", util.BytesToSize(s.RxBytes), s.RxSeconds, util.BytesToSize(rate(s.RxBytes, s.RxSeconds)))
	}
	return s
}

func total(start time.Time, samples []*util.Sample) (int64, float64) {
	totalBytes := int64(0)
	last := start
	for _, sample := range samples {
		if sample.V > 0 {
			totalBytes += sample.V
			last = sample.Ts
		}
	}
	return totalBytes, last.Sub(start).Seconds()
}

func rate(bytes int64, seconds float64) int64 {
	if seconds <= 0 {
		return bytes
	}
	return int64(float64(bytes) / seconds)
}

func (self *Metrics) snapshotter(interval time.Duration) {
	logrus.Debug("started")
	defer logrus.Debug("exited")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			self.snapshot()
		case <-self.close:
			return
		}
	}
}

func (self *Metrics) snapshot() {
	now := time.Now()
	self.lock.Lock()
	defer self.lock.Unlock()
	self.RxBytes = append(self.RxBytes, &util.Sample{Ts: now, V: atomic.SwapInt64(&self.RxBytesAccum, 0)})
	self.TxBytes = append(self.TxBytes, &util.Sample{Ts: now, V: atomic.SwapInt64(&self.TxBytesAccum, 0)})
}

// WriteSamples writes the rx and tx series into a new directory under root and returns its path.
//
func (self *Metrics) WriteSamples(root string, values map[string]string) (string, error) {
	if err := os.MkdirAll(root, os.ModePerm); err != nil {
		return "", err
	}
	outPath, err := ioutil.TempDir(root, "loop_")
	if err != nil {
		return "", errors.Wrapf(err, "unable to create metrics directory in [%s]", root)
	}
	logrus.Infof("writing metrics to: %s", outPath)

	self.lock.Lock()
	defer self.lock.Unlock()
	if err := util.WriteMetricsId(MetricsId, outPath, values); err != nil {
		return "", err
	}
	if err := util.WriteSamples("rx_bytes", outPath, self.RxBytes); err != nil {
		return "", err
	}
	if err := util.WriteSamples("tx_bytes", outPath, self.TxBytes); err != nil {
		return "", err
	}
	return outPath, nil
}
