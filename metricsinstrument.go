package chunkpool

import (
	"fmt"
	"github.com/openziti/chunkpool/cf"
	"github.com/openziti/chunkpool/util"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"io/ioutil"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const MetricsId = "chunkpool"

// MetricsDatasets names every series a metrics instrument instance writes.
var MetricsDatasets = []string{
	"outstanding",
	"idle_sz",
	"allocations",
	"reuses",
	"returns",
	"discards",
	"cancels",
	"delay_ms",
}

type MetricsInstrument struct {
	lock      sync.Mutex
	Config    *MetricsInstrumentConfig
	enabled   int32
	cl        *util.CtrlListener
	instances []*metricsInstrumentInstance
}

type MetricsInstrumentConfig struct {
	Path       string `cf:"path"`
	SnapshotMs int    `cf:"snapshot_ms"`
	Enabled    bool   `cf:"enabled"`
	Ctrl       bool   `cf:"ctrl"`
}

func NewMetricsInstrument(config map[string]interface{}) (Instrument, error) {
	i := &MetricsInstrument{
		Config: &MetricsInstrumentConfig{
			Path:       os.TempDir(),
			SnapshotMs: 1000,
			Enabled:    true,
			Ctrl:       true,
		},
	}
	if err := cf.Load(config, i.Config); err != nil {
		return nil, errors.Wrap(err, "unable to load config")
	}
	if i.Config.SnapshotMs < 1 {
		return nil, errors.Errorf("invalid snapshot_ms [%d]", i.Config.SnapshotMs)
	}
	i.SetEnabled(i.Config.Enabled)
	if i.Config.Ctrl {
		if err := i.addCtrlListener(); err != nil {
			return nil, err
		}
	}
	logrus.Info(cf.Dump("metrics instrument", i.Config))
	return i, nil
}

func (self *MetricsInstrument) addCtrlListener() error {
	cl, err := util.GetCtrlListener(self.Config.Path, MetricsId)
	if err != nil {
		return errors.Wrap(err, "unable to get metrics ctrl listener")
	}
	cl.AddCallback("start", func(string, net.Conn) (int64, error) {
		self.SetEnabled(true)
		return 0, nil
	})
	cl.AddCallback("stop", func(string, net.Conn) (int64, error) {
		self.SetEnabled(false)
		return 0, nil
	})
	cl.AddCallback("write", func(string, net.Conn) (int64, error) {
		_, err := self.WriteAllSamples()
		if err != nil {
			logrus.Errorf("error writing samples (%v)", err)
		}
		return 0, err
	})
	cl.AddCallback("clean", func(string, net.Conn) (int64, error) {
		self.clean()
		return 0, nil
	})
	cl.Start()
	self.cl = cl
	return nil
}

func (self *MetricsInstrument) CtrlAddress() string {
	if self.cl == nil {
		return ""
	}
	return self.cl.Address()
}

func (self *MetricsInstrument) Enabled() bool {
	return atomic.LoadInt32(&self.enabled) == 1
}

func (self *MetricsInstrument) SetEnabled(enabled bool) {
	if enabled {
		atomic.StoreInt32(&self.enabled, 1)
	} else {
		atomic.StoreInt32(&self.enabled, 0)
	}
}

func (self *MetricsInstrument) NewInstance(id string) InstrumentInstance {
	self.lock.Lock()
	defer self.lock.Unlock()
	ii := &metricsInstrumentInstance{id: id, i: self, close: make(chan struct{})}
	go ii.snapshotter(time.Duration(self.Config.SnapshotMs) * time.Millisecond)
	self.instances = append(self.instances, ii)
	return ii
}

// WriteAllSamples writes every instance's series into its own directory under the configured path, returning the
// directories written.
//
func (self *MetricsInstrument) WriteAllSamples() ([]string, error) {
	self.lock.Lock()
	defer self.lock.Unlock()

	if err := os.MkdirAll(self.Config.Path, 0755); err != nil {
		return nil, err
	}
	var outPaths []string
	for _, ii := range self.instances {
		outPath, err := ii.writeSamples(self.Config.Path)
		if err != nil {
			return outPaths, errors.Wrapf(err, "error writing samples for [%s]", ii.id)
		}
		outPaths = append(outPaths, outPath)
	}
	return outPaths, nil
}

func (self *MetricsInstrument) clean() {
	self.lock.Lock()
	defer self.lock.Unlock()

	var open []*metricsInstrumentInstance
	for _, ii := range self.instances {
		if ii.isClosed() {
			logrus.Infof("removed metricsInstrumentInstance [%s]", ii.id)
		} else {
			open = append(open, ii)
		}
	}
	self.instances = open
}

type metricsInstrumentInstance struct {
	id        string
	i         *MetricsInstrument
	close     chan struct{}
	closeOnce sync.Once
	closed    int32
	capacity  int64

	lock        sync.Mutex
	outstanding []*util.Sample
	idleSz      []*util.Sample
	allocations []*util.Sample
	reuses      []*util.Sample
	returns     []*util.Sample
	discards    []*util.Sample
	cancels     []*util.Sample
	delayMs     []*util.Sample

	outstandingVal   int64
	idleSzVal        int64
	allocationsAccum int64
	reusesAccum      int64
	returnsAccum     int64
	discardsAccum    int64
	cancelsAccum     int64
	delayMsMax       int64
}

/*
 * acquire
 */
func (self *metricsInstrumentInstance) Reused(_, idleSz int) {
	if self.i.Enabled() {
		atomic.AddInt64(&self.reusesAccum, 1)
		atomic.StoreInt64(&self.idleSzVal, int64(idleSz))
	}
}

func (self *metricsInstrumentInstance) Allocated(_, outstanding, capacity int, delay time.Duration) {
	if self.i.Enabled() {
		atomic.AddInt64(&self.allocationsAccum, 1)
		atomic.StoreInt64(&self.outstandingVal, int64(outstanding))
		atomic.StoreInt64(&self.capacity, int64(capacity))
		ms := delay.Milliseconds()
		for {
			max := atomic.LoadInt64(&self.delayMsMax)
			if ms <= max || atomic.CompareAndSwapInt64(&self.delayMsMax, max, ms) {
				break
			}
		}
	}
}

func (self *metricsInstrumentInstance) Cancelled(index int, err error) {
	if self.i.Enabled() {
		logrus.Warnf("[%s] acquire of #%d cancelled (%v)", self.id, index, err)
		atomic.AddInt64(&self.cancelsAccum, 1)
	}
}

/*
 * release
 */
func (self *metricsInstrumentInstance) Returned(_, idleSz int) {
	if self.i.Enabled() {
		atomic.AddInt64(&self.returnsAccum, 1)
		atomic.StoreInt64(&self.idleSzVal, int64(idleSz))
	}
}

func (self *metricsInstrumentInstance) Discarded(_, idleSz, outstanding int) {
	if self.i.Enabled() {
		atomic.AddInt64(&self.discardsAccum, 1)
		atomic.StoreInt64(&self.idleSzVal, int64(idleSz))
		atomic.StoreInt64(&self.outstandingVal, int64(outstanding))
	}
}

func (self *metricsInstrumentInstance) Drained(count, outstanding int) {
	if self.i.Enabled() {
		atomic.AddInt64(&self.discardsAccum, int64(count))
		atomic.StoreInt64(&self.idleSzVal, 0)
		atomic.StoreInt64(&self.outstandingVal, int64(outstanding))
	}
}

/*
 * instrument lifecycle
 */
func (self *metricsInstrumentInstance) Shutdown() {
	self.closeOnce.Do(func() {
		atomic.StoreInt32(&self.closed, 1)
		close(self.close)
		self.snapshot()
	})
}

func (self *metricsInstrumentInstance) isClosed() bool {
	return atomic.LoadInt32(&self.closed) == 1
}

func (self *metricsInstrumentInstance) snapshotter(interval time.Duration) {
	logrus.Debugf("[%s] started", self.id)
	defer logrus.Debugf("[%s] exited", self.id)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if self.i.Enabled() {
				self.snapshot()
			}
		case <-self.close:
			return
		}
	}
}

func (self *metricsInstrumentInstance) snapshot() {
	now := time.Now()
	self.lock.Lock()
	defer self.lock.Unlock()
	self.outstanding = append(self.outstanding, &util.Sample{Ts: now, V: atomic.LoadInt64(&self.outstandingVal)})
	self.idleSz = append(self.idleSz, &util.Sample{Ts: now, V: atomic.LoadInt64(&self.idleSzVal)})
	self.allocations = append(self.allocations, &util.Sample{Ts: now, V: atomic.SwapInt64(&self.allocationsAccum, 0)})
	self.reuses = append(self.reuses, &util.Sample{Ts: now, V: atomic.SwapInt64(&self.reusesAccum, 0)})
	self.returns = append(self.returns, &util.Sample{Ts: now, V: atomic.SwapInt64(&self.returnsAccum, 0)})
	self.discards = append(self.discards, &util.Sample{Ts: now, V: atomic.SwapInt64(&self.discardsAccum, 0)})
	self.cancels = append(self.cancels, &util.Sample{Ts: now, V: atomic.SwapInt64(&self.cancelsAccum, 0)})
	self.delayMs = append(self.delayMs, &util.Sample{Ts: now, V: atomic.SwapInt64(&self.delayMsMax, 0)})
}

func (self *metricsInstrumentInstance) series() map[string][]*util.Sample {
	self.lock.Lock()
	defer self.lock.Unlock()
	return map[string][]*util.Sample{
		"outstanding": self.outstanding,
		"idle_sz":     self.idleSz,
		"allocations": self.allocations,
		"reuses":      self.reuses,
		"returns":     self.returns,
		"discards":    self.discards,
		"cancels":     self.cancels,
		"delay_ms":    self.delayMs,
	}
}

func (self *metricsInstrumentInstance) writeSamples(root string) (string, error) {
	prefix := strings.ReplaceAll(fmt.Sprintf("%s_", self.id), ":", "-")
	outPath, err := ioutil.TempDir(root, prefix)
	if err != nil {
		return "", err
	}
	logrus.Infof("writing metrics to: %s", outPath)

	values := map[string]string{
		"pool":     self.id,
		"capacity": strconv.FormatInt(atomic.LoadInt64(&self.capacity), 10),
	}
	if err := util.WriteMetricsId(MetricsId, outPath, values); err != nil {
		return "", err
	}
	series := self.series()
	for _, name := range MetricsDatasets {
		if err := util.WriteSamples(name, outPath, series[name]); err != nil {
			return "", err
		}
	}
	return outPath, nil
}
