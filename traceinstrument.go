package chunkpool

import (
	"fmt"
	"github.com/michaelquigley/pfxlog"
	"github.com/openziti/chunkpool/cf"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"io"
	"os"
	"sync"
	"time"
)

type traceInstrument struct {
	config *traceInstrumentConfig
	out    io.Writer
	lock   sync.Mutex
}

type traceInstrumentConfig struct {
	Acquire bool `cf:"acquire"`
	Release bool `cf:"release"`
	Error   bool `cf:"error"`
}

type traceInstrumentInstance struct {
	id string
	i  *traceInstrument
}

func NewTraceInstrument(config map[string]interface{}) (Instrument, error) {
	i := &traceInstrument{
		config: &traceInstrumentConfig{Acquire: true, Release: true, Error: true},
		out:    os.Stdout,
	}
	if err := cf.Load(config, i.config); err != nil {
		return nil, errors.Wrap(err, "unable to load config")
	}
	logrus.Info(cf.Dump("trace instrument", i.config))
	return i, nil
}

func (self *traceInstrument) NewInstance(id string) InstrumentInstance {
	return &traceInstrumentInstance{id, self}
}

func (self *traceInstrument) println(line string) {
	self.lock.Lock()
	defer self.lock.Unlock()
	_, _ = fmt.Fprintln(self.out, line)
}

/*
 * acquire
 */
func (self *traceInstrumentInstance) Reused(index, idleSz int) {
	if self.i.config.Acquire {
		self.i.println(fmt.Sprintf("&& %-24s %-10s #%-8d idle=%d", self.id, "REUSE", index, idleSz))
	}
}

func (self *traceInstrumentInstance) Allocated(index, outstanding, capacity int, delay time.Duration) {
	if self.i.config.Acquire {
		self.i.println(fmt.Sprintf("&& %-24s %-10s #%-8d count=%d capacity=%d delay=%dms", self.id, "ALLOCATE", index, outstanding, capacity, delay.Milliseconds()))
	}
}

func (self *traceInstrumentInstance) Cancelled(index int, err error) {
	if self.i.config.Error {
		self.i.println(fmt.Sprintf("!! %-24s %-10s #%-8d (%v)", self.id, "CANCELLED", index, err))
		pfxlog.ContextLogger(self.id).Debugf("acquire of #%d cancelled (%v)", index, err)
	}
}

/*
 * release
 */
func (self *traceInstrumentInstance) Returned(index, idleSz int) {
	if self.i.config.Release {
		self.i.println(fmt.Sprintf("&& %-24s %-10s #%-8d idle=%d", self.id, "RETURN", index, idleSz))
	}
}

func (self *traceInstrumentInstance) Discarded(index, idleSz, outstanding int) {
	if self.i.config.Release {
		self.i.println(fmt.Sprintf("&& %-24s %-10s #%-8d idle=%d count=%d", self.id, "DISCARD", index, idleSz, outstanding))
	}
}

func (self *traceInstrumentInstance) Drained(count, outstanding int) {
	if self.i.config.Release {
		self.i.println(fmt.Sprintf("&& %-24s %-10s %d buffers, count=%d", self.id, "DRAIN", count, outstanding))
	}
}

/*
 * instrument lifecycle
 */
func (self *traceInstrumentInstance) Shutdown() {
	self.i.println(fmt.Sprintf("@@ %-24s SHUTDOWN", self.id))
}
