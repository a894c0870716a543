package loop

import (
	"context"
	pool "github.com/openziti/chunkpool"
	"github.com/openziti/chunkpool/cmd/chunkpool/chunkpool"
	"github.com/openziti/chunkpool/loop"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"io"
	"io/ioutil"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
)

func init() {
	loopCmd.Flags().Int64VarP(&size, "size", "z", 256*1024*1024, "Size of the data set (in bytes)")
	loopCmd.Flags().IntVarP(&producers, "producers", "n", 8, "Number of concurrent producers")
	loopCmd.Flags().IntVarP(&drainMs, "drain", "r", 0, "Per-chunk drain delay (in milliseconds, jittered)")
	loopCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the assembled data set to this path")
	loopCmd.Flags().StringVarP(&webdavUrl, "webdav", "w", "", "Upload assembled chunks to this WebDAV endpoint (into the --output directory)")
	loopCmd.Flags().StringVarP(&webdavUsername, "webdav-username", "", "", "WebDAV username")
	loopCmd.Flags().StringVarP(&webdavPassword, "webdav-password", "", "", "WebDAV password")
	loopCmd.Flags().StringVarP(&metricsRoot, "metrics", "m", "", "Write loop and pool metrics under this root")
	loopCmd.Flags().IntVarP(&reportMs, "report", "", 1000, "Throughput report interval (in milliseconds, 0 disables)")
	loopCmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "Abandon the run after this long")
	chunkpool.RootCmd.AddCommand(loopCmd)
}

var loopCmd = &cobra.Command{
	Use:   "loop",
	Short: "Push a synthetic data set through a chunk pool for load and veracity measurements",
	Args:  cobra.NoArgs,
	Run:   loopRun,
}
var size int64
var producers int
var drainMs int
var outputPath string
var webdavUrl string
var webdavUsername string
var webdavPassword string
var metricsRoot string
var reportMs int
var timeout time.Duration

func loopRun(_ *cobra.Command, _ []string) {
	if err := runLoop(); err != nil {
		logrus.Fatalf("error (%v)", err)
	}
}

func runLoop() error {
	p, err := chunkpool.Profile()
	if err != nil {
		return err
	}
	f, err := pool.NewFactory("loop", p)
	if err != nil {
		return err
	}
	defer f.Close()

	var out io.Writer = ioutil.Discard
	if webdavUrl != "" {
		dir := outputPath
		if dir == "" {
			dir = "chunkpool"
		}
		w, err := newWebdavWriter(webdavUrl, webdavUsername, webdavPassword, dir)
		if err != nil {
			return err
		}
		out = w
	} else if outputPath != "" {
		oF, err := os.Create(outputPath)
		if err != nil {
			return errors.Wrapf(err, "unable to create output [%s]", outputPath)
		}
		defer func() { _ = oF.Close() }()
		out = oF
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
		<-sigs
		logrus.Warn("interrupted, cancelling run")
		cancel()
	}()
	if timeout > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, timeout)
		defer tcancel()
	}

	m := loop.NewMetrics(time.Second)
	r, err := loop.Run(ctx, f, loop.Config{
		Producers:      producers,
		Size:           size,
		DrainDelay:     time.Duration(drainMs) * time.Millisecond,
		Output:         out,
		Metrics:        m,
		ReportInterval: time.Duration(reportMs) * time.Millisecond,
	})
	m.Close()
	if err != nil {
		return err
	}
	m.Summarize()
	if !r.Verified() {
		return errors.New("assembled data set does not match")
	}

	if metricsRoot != "" {
		values := map[string]string{
			"pool":      f.Id(),
			"capacity":  strconv.Itoa(f.Capacity()),
			"producers": strconv.Itoa(producers),
		}
		if _, err := m.WriteSamples(metricsRoot, values); err != nil {
			return err
		}
		if mi, ok := p.Instrument().(*pool.MetricsInstrument); ok {
			f.Close()
			if _, err := mi.WriteAllSamples(); err != nil {
				return err
			}
		}
	}
	return nil
}
