package influx

import (
	"fmt"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	pool "github.com/openziti/chunkpool"
	"github.com/openziti/chunkpool/loop"
	"github.com/openziti/chunkpool/util"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"path/filepath"
	"sort"
)

func init() {
	influxCmd.AddCommand(influxLoadCmd)
}

var influxLoadCmd = &cobra.Command{
	Use:   "load <metricsRoot>",
	Short: "Load recorded pool and loop metrics into InfluxDB",
	Args:  cobra.ExactArgs(1),
	Run:   influxLoad,
}

var datasets = map[string][]string{
	pool.MetricsId: pool.MetricsDatasets,
	loop.MetricsId: {"rx_bytes", "tx_bytes"},
}

func influxLoad(_ *cobra.Command, args []string) {
	authToken := ""
	if influxDbUsername != "" || influxDbPassword != "" {
		authToken = fmt.Sprintf("%s:%s", influxDbUsername, influxDbPassword)
	}
	client := influxdb2.NewClient(influxDbUrl, authToken)
	defer client.Close()

	writeApi := client.WriteAPI("", influxDbDatabase)
	go func() {
		for err := range writeApi.Errors() {
			logrus.Errorf("write error (%v)", err)
		}
	}()

	if err := loadMetrics(args[0], writeApi); err != nil {
		logrus.Fatalf("error (%v)", err)
	}
	writeApi.Flush()
}

func loadMetrics(root string, writeApi api.WriteAPI) error {
	found, err := util.DiscoverMetrics(root)
	if err != nil {
		return errors.Wrapf(err, "unable to discover metrics in [%s]", root)
	}
	var paths []string
	for path := range found {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		mid := found[path]
		names, ok := datasets[mid.Id]
		if !ok {
			logrus.Warnf("skipping [%s] with unknown metrics id [%s]", path, mid.Id)
			continue
		}
		tags := map[string]string{"type": mid.Id, "run": filepath.Base(path)}
		for k, v := range mid.Values {
			tags[k] = v
		}
		for _, dataset := range names {
			samples, err := util.ReadSamples(filepath.Join(path, dataset+".csv"))
			if err != nil {
				return errors.Wrapf(err, "error reading dataset [%s]", dataset)
			}
			for _, sample := range samples {
				writeApi.WritePoint(influxdb2.NewPoint(dataset, tags, map[string]interface{}{"v": sample.V}, sample.Ts))
			}
			logrus.Infof("wrote [%d] points for [%s] dataset [%s]", len(samples), tags["pool"], dataset)
		}
	}
	return nil
}
