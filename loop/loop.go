package loop

import (
	"bytes"
	"context"
	"github.com/openziti/chunkpool"
	"github.com/openziti/chunkpool/util"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"io"
	"sync"
	"time"
)

type Config struct {
	Producers      int
	Size           int64
	DrainDelay     time.Duration
	Output         io.Writer
	Metrics        *Metrics
	ReportInterval time.Duration
}

type Result struct {
	Chunks      int
	Bytes       int64
	Hash        []byte
	Expected    []byte
	MaxPending  int
	Outstanding int
	Elapsed     time.Duration
}

func (self *Result) Verified() bool {
	return bytes.Equal(self.Hash, self.Expected)
}

// Run moves cfg.Size bytes through factory: cfg.Producers producers acquire and fill chunks concurrently, and a single
// assembler writes them to cfg.Output in index order and releases them. The first failure cancels the rest.
//
func Run(ctx context.Context, factory *chunkpool.Factory, cfg Config) (*Result, error) {
	if cfg.Producers < 1 {
		return nil, errors.Errorf("invalid producer count [%d]", cfg.Producers)
	}
	ds, err := NewDataSet(cfg.Size, factory.ChunkSz())
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a := NewAssembler(cfg.Output, cfg.Producers, cfg.DrainDelay, cfg.Metrics)
	if cfg.ReportInterval > 0 {
		a.reporter = newTransferReporter(factory, cfg.ReportInterval)
		go a.reporter.run()
		defer a.reporter.close()
	}
	if cfg.Metrics != nil {
		cfg.Metrics.Start()
	}

	start := time.Now()
	errs := make(chan error, cfg.Producers+1)
	seq := util.NewSequence(0)

	var producers sync.WaitGroup
	for i := 0; i < cfg.Producers; i++ {
		producers.Add(1)
		go func(id int) {
			defer producers.Done()
			if err := NewProducer(id, factory, ds, seq, a.In(), cfg.Metrics).Run(ctx); err != nil {
				errs <- err
				cancel()
			}
		}(i)
	}
	go func() {
		producers.Wait()
		a.Close()
	}()

	if err := a.Run(ctx); err != nil {
		errs <- errors.Wrap(err, "assembler")
		cancel()
	}
	producers.Wait()
	for buf := range a.in {
		buf.Release()
	}
	close(errs)

	if err := firstError(errs); err != nil {
		return nil, err
	}

	r := &Result{
		Chunks:      a.Chunks(),
		Bytes:       a.Written(),
		Hash:        a.Sum(),
		Expected:    ds.Hash(),
		MaxPending:  a.MaxPending(),
		Outstanding: factory.Outstanding(),
		Elapsed:     time.Since(start),
	}
	logrus.Infof("assembled %d chunks (%d bytes) in %v; max pending=%d; outstanding=%d; verified=%v",
		r.Chunks, r.Bytes, r.Elapsed, r.MaxPending, r.Outstanding, r.Verified())
	return r, nil
}

func firstError(errs <-chan error) error {
	var first error
	for err := range errs {
		if first == nil {
			first = err
		} else {
			logrus.Debugf("additional failure (%v)", err)
		}
	}
	return first
}
