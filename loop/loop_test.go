package loop

import (
	"bytes"
	"context"
	"github.com/openziti/chunkpool"
	"github.com/openziti/chunkpool/util"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"path/filepath"
	"testing"
	"time"
)

func newTestFactory(t *testing.T, chunkSz, capacity int) *chunkpool.Factory {
	p := chunkpool.NewBaselineProfile()
	p.ChunkSz = chunkSz
	p.Capacity = capacity
	p.PollTimeoutMs = 1
	p.DelayMaxMs = 5
	f, err := chunkpool.NewFactory("loop", p)
	require.NoError(t, err)
	return f
}

func expected(ds *DataSet) []byte {
	out := new(bytes.Buffer)
	for i := 0; i < ds.Chunks(); i++ {
		buf := chunkpool.NewDetachedBuffer(ds.ChunkSz, i)
		if err := ds.Fill(buf); err != nil {
			panic(err)
		}
		out.Write(buf.Bytes())
	}
	return out.Bytes()
}

func TestDataSetChunks(t *testing.T) {
	ds, err := NewDataSet(1000, 256)
	require.NoError(t, err)
	assert.Equal(t, 4, ds.Chunks())
	assert.Equal(t, 256, ds.ChunkLen(0))
	assert.Equal(t, 232, ds.ChunkLen(3))
	assert.Equal(t, 0, ds.ChunkLen(4))

	empty, err := NewDataSet(0, 256)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Chunks())

	_, err = NewDataSet(10, 0)
	assert.Error(t, err)
	_, err = NewDataSet(-1, 10)
	assert.Error(t, err)
}

func TestDataSetFillDeterministic(t *testing.T) {
	ds, err := NewDataSet(1024, 128)
	require.NoError(t, err)

	a := chunkpool.NewDetachedBuffer(128, 2)
	b := chunkpool.NewDetachedBuffer(128, 2)
	c := chunkpool.NewDetachedBuffer(128, 3)
	require.NoError(t, ds.Fill(a))
	require.NoError(t, ds.Fill(b))
	require.NoError(t, ds.Fill(c))
	assert.Equal(t, a.Bytes(), b.Bytes())
	assert.NotEqual(t, a.Bytes(), c.Bytes())
	assert.True(t, a.Full())

	small := chunkpool.NewDetachedBuffer(64, 0)
	assert.Error(t, ds.Fill(small))
}

func TestAssemblerOrdersOutOfOrderChunks(t *testing.T) {
	f := newTestFactory(t, 128, 8)
	ds, err := NewDataSet(5*128-10, 128)
	require.NoError(t, err)

	out := new(bytes.Buffer)
	a := NewAssembler(out, 5, 0, nil)
	for i := 4; i >= 0; i-- {
		buf, err := f.Acquire(context.Background(), i)
		require.NoError(t, err)
		require.NoError(t, ds.Fill(buf))
		a.In() <- buf
	}
	a.Close()

	assert.NoError(t, a.Run(context.Background()))
	assert.Equal(t, expected(ds), out.Bytes())
	assert.Equal(t, int64(5*128-10), a.Written())
	assert.Equal(t, 5, a.Chunks())
	assert.Equal(t, 5, a.MaxPending())
	assert.Equal(t, ds.Hash(), a.Sum())
	assert.Equal(t, 5, f.IdleSz())
}

func TestAssemblerGap(t *testing.T) {
	f := newTestFactory(t, 64, 4)
	a := NewAssembler(nil, 4, 0, nil)
	for _, i := range []int{0, 2, 3} {
		buf, err := f.Acquire(context.Background(), i)
		require.NoError(t, err)
		a.In() <- buf
	}
	a.Close()

	err := a.Run(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, a.Chunks())
	assert.Equal(t, 3, f.IdleSz(), "pending chunks are released on exit")
}

func TestAssemblerDuplicate(t *testing.T) {
	f := newTestFactory(t, 64, 4)
	a := NewAssembler(nil, 4, 0, nil)
	for _, i := range []int{1, 1} {
		buf, err := f.Acquire(context.Background(), i)
		require.NoError(t, err)
		a.In() <- buf
	}
	a.Close()

	assert.Error(t, a.Run(context.Background()))
	assert.Equal(t, 2, f.IdleSz())
}

func TestRun(t *testing.T) {
	f := newTestFactory(t, 256, 4)
	out := new(bytes.Buffer)
	m := NewMetrics(0)

	size := int64(40*256 + 17)
	r, err := Run(context.Background(), f, Config{
		Producers:      4,
		Size:           size,
		DrainDelay:     100 * time.Microsecond,
		Output:         out,
		Metrics:        m,
		ReportInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	m.Close()

	assert.True(t, r.Verified())
	assert.Equal(t, 41, r.Chunks)
	assert.Equal(t, size, r.Bytes)
	assert.Equal(t, size, int64(out.Len()))

	ds, _ := NewDataSet(size, 256)
	assert.Equal(t, expected(ds), out.Bytes())

	assert.True(t, f.IdleSz() <= f.Capacity())
	assert.Equal(t, f.Outstanding(), f.IdleSz(), "every chunk is back in the pool or discarded")

	s := m.Summarize()
	assert.Equal(t, size, s.TxBytes)
	assert.Equal(t, size, s.RxBytes)
}

func TestRunCancelled(t *testing.T) {
	f := newTestFactory(t, 256, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, f, Config{Producers: 2, Size: 4096})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRunInvalidConfig(t *testing.T) {
	f := newTestFactory(t, 256, 4)
	_, err := Run(context.Background(), f, Config{Producers: 0, Size: 10})
	assert.Error(t, err)
}

func TestMetricsWriteSamples(t *testing.T) {
	root := t.TempDir()
	m := NewMetrics(0)
	m.Start()
	m.Tx(100)
	m.Rx(60)
	m.Close()

	outPath, err := m.WriteSamples(root, map[string]string{"pool": "loop"})
	require.NoError(t, err)

	found, err := util.DiscoverMetrics(root)
	require.NoError(t, err)
	require.Contains(t, found, outPath)
	assert.Equal(t, MetricsId, found[outPath].Id)
	assert.Equal(t, "loop", found[outPath].Values["pool"])

	rx, err := util.ReadSamples(filepath.Join(outPath, "rx_bytes.csv"))
	require.NoError(t, err)
	require.Len(t, rx, 1)
	assert.Equal(t, int64(60), rx[0].V)
}

func TestTransferReporterEmit(t *testing.T) {
	f := newTestFactory(t, 64, 2)
	r := newTransferReporter(f, time.Second)

	base := time.Now()
	r.lastReport = base.Add(-time.Second)
	r.pending.Add(&transferReport{stamp: base.Add(-10 * time.Millisecond), bytes: 100})
	r.pending.Add(&transferReport{stamp: base.Add(-5 * time.Millisecond), bytes: 50})
	r.pending.Add(&transferReport{stamp: base.Add(10 * time.Millisecond), bytes: 25})

	r.emit(base)
	assert.Equal(t, 1, r.pending.Length())
	assert.Equal(t, base, r.lastReport)
}

func TestTransferReporterLifecycle(t *testing.T) {
	f := newTestFactory(t, 64, 2)
	r := newTransferReporter(f, 5*time.Millisecond)
	go r.run()
	for i := 0; i < 10; i++ {
		r.report(64)
	}
	time.Sleep(20 * time.Millisecond)
	r.close()
}
