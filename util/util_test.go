package util

import (
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestSequenceNext(t *testing.T) {
	seq := NewSequence(5)
	assert.Equal(t, 4, seq.Last())
	assert.Equal(t, 5, seq.Next())
	assert.Equal(t, 6, seq.Next())
	seq.ResetTo(0)
	assert.Equal(t, 0, seq.Next())
}

func TestSequenceConcurrent(t *testing.T) {
	seq := NewSequence(0)
	seen := make(map[int]bool)
	var lock sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				v := seq.Next()
				lock.Lock()
				seen[v] = true
				lock.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 8000, len(seen))
	assert.Equal(t, 7999, seq.Last())
}

func TestBytesToSize(t *testing.T) {
	assert.Equal(t, "999 B", BytesToSize(999))
	assert.Equal(t, "1.0 kB", BytesToSize(1000))
	assert.Equal(t, "1.5 MB", BytesToSize(1500*1000))
	assert.Equal(t, "-2.0 kB", BytesToSize(-2000))
}

func TestJitter(t *testing.T) {
	assert.Equal(t, time.Duration(0), Jitter(0))
	for i := 0; i < 100; i++ {
		j := Jitter(10 * time.Millisecond)
		assert.True(t, j >= 5*time.Millisecond)
		assert.True(t, j < 15*time.Millisecond)
	}
}

func TestWriteReadSamples(t *testing.T) {
	root := t.TempDir()
	now := time.Now()
	samples := []*Sample{
		{Ts: now.Add(time.Second), V: 2},
		{Ts: now, V: 1},
	}
	assert.NoError(t, WriteSamples("outstanding", root, samples))
	assert.NoError(t, WriteMetricsId("chunkpool", root, map[string]string{"capacity": "10"}))

	in, err := ReadSamples(filepath.Join(root, "outstanding.csv"))
	assert.NoError(t, err)
	assert.Len(t, in, 2)
	assert.Equal(t, int64(1), in[0].V)
	assert.Equal(t, now.UnixNano(), in[0].Ts.UnixNano())
	assert.Equal(t, int64(2), in[1].V)

	found, err := DiscoverMetrics(root)
	assert.NoError(t, err)
	assert.Len(t, found, 1)
	assert.Equal(t, "chunkpool", found[root].Id)
	assert.Equal(t, "10", found[root].Values["capacity"])
}

func TestCtrlListener(t *testing.T) {
	root := t.TempDir()
	cl, err := GetCtrlListener(root, "test")
	assert.NoError(t, err)
	defer func() { _ = cl.Close() }()

	again, err := GetCtrlListener(root, "test")
	assert.NoError(t, err)
	assert.Equal(t, cl, again)

	got := make(chan string, 1)
	cl.AddCallback("hello", func(line string, _ net.Conn) (int64, error) {
		got <- line
		return 0, nil
	})
	cl.AddCallback("fail", func(string, net.Conn) (int64, error) {
		return 0, errors.New("nope")
	})
	cl.Start()

	response, err := SendCtrl(cl.Address(), "hello world")
	assert.NoError(t, err)
	assert.Equal(t, "ok\n", response)
	assert.Equal(t, "hello world", <-got)

	response, err = SendCtrl(cl.Address(), "fail")
	assert.NoError(t, err)
	assert.Equal(t, "error (nope)\n", response)

	response, err = SendCtrl(cl.Address(), "unknown")
	assert.NoError(t, err)
	assert.Equal(t, "syntax error?\n", response)
}
