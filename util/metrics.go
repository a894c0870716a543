package util

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const MetricsIdFile = "metrics.id"

type MetricsId struct {
	Id     string            `json:"id"`
	Values map[string]string `json:"values,omitempty"`
}

func WriteMetricsId(id, outPath string, values map[string]string) error {
	mid := &MetricsId{Id: id, Values: values}
	data, err := json.MarshalIndent(mid, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal metrics id")
	}
	if err := ioutil.WriteFile(filepath.Join(outPath, MetricsIdFile), data, 0644); err != nil {
		return errors.Wrapf(err, "write metrics id to [%s]", outPath)
	}
	return nil
}

func ReadMetricsId(path string) (*MetricsId, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	metricsId := &MetricsId{}
	if err = json.Unmarshal(data, metricsId); err != nil {
		return nil, errors.Wrapf(err, "unmarshal [%s]", path)
	}
	return metricsId, nil
}

// DiscoverMetrics walks root and returns every metrics directory (keyed by path) along with its id.
//
func DiscoverMetrics(root string) (map[string]*MetricsId, error) {
	var metricsIdPaths []string
	err := filepath.Walk(root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.IsDir() && filepath.Base(path) == MetricsIdFile {
			metricsIdPaths = append(metricsIdPaths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metricsMap := make(map[string]*MetricsId)
	for _, metricsIdPath := range metricsIdPaths {
		metricsId, err := ReadMetricsId(metricsIdPath)
		if err != nil {
			return nil, errors.Wrapf(err, "error reading [%s]", metricsIdPath)
		}
		metricsMap[filepath.Dir(metricsIdPath)] = metricsId
	}
	return metricsMap, nil
}

type Sample struct {
	Ts time.Time
	V  int64
}

func WriteSamples(name, outPath string, samples []*Sample) error {
	path := filepath.Join(outPath, fmt.Sprintf("%s.csv", name))
	oF, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer func() { _ = oF.Close() }()

	w := bufio.NewWriter(oF)
	for _, sample := range samples {
		if _, err := fmt.Fprintf(w, "%d,%d\n", sample.Ts.UnixNano(), sample.V); err != nil {
			return errors.Wrapf(err, "write [%s]", path)
		}
	}
	if err := w.Flush(); err != nil {
		return errors.Wrapf(err, "flush [%s]", path)
	}
	logrus.Infof("wrote [%d] samples to [%s]", len(samples), path)
	return nil
}

// ReadSamples reads a series written by WriteSamples, ordered by timestamp.
//
func ReadSamples(path string) ([]*Sample, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var samples []*Sample
	scanner := bufio.NewScanner(bytes.NewBuffer(raw))
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		tokens := strings.Split(text, ",")
		if len(tokens) != 2 {
			return nil, errors.Errorf("[%s:%d] expected 2 fields, found %d", path, line, len(tokens))
		}
		ts, err := strconv.ParseInt(tokens[0], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "[%s:%d] timestamp", path, line)
		}
		v, err := strconv.ParseInt(tokens[1], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "[%s:%d] value", path, line)
		}
		samples = append(samples, &Sample{Ts: time.Unix(0, ts), V: v})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].Ts.Before(samples[j].Ts) })
	return samples, nil
}
