package cf

import (
	"github.com/stretchr/testify/assert"
	"testing"
	"time"
)

type testConfig struct {
	Count    int           `cf:"count"`
	Big      int64         `cf:"big"`
	Scale    float64       `cf:"scale"`
	Enabled  bool          `cf:"enabled"`
	Path     string        `cf:"path"`
	Timeout  time.Duration `cf:"timeout"`
	Untagged string
	hidden   int
}

func TestLoad(t *testing.T) {
	c := &testConfig{Count: 1, Scale: 0.5}
	err := Load(map[string]interface{}{
		"count":    33,
		"big":      int64(1) << 40,
		"scale":    2,
		"enabled":  true,
		"path":     "/tmp/metrics",
		"timeout":  "250ms",
		"Untagged": "yes",
		"unknown":  "ignored",
	}, c)
	assert.NoError(t, err)
	assert.Equal(t, 33, c.Count)
	assert.Equal(t, int64(1)<<40, c.Big)
	assert.Equal(t, 2.0, c.Scale)
	assert.True(t, c.Enabled)
	assert.Equal(t, "/tmp/metrics", c.Path)
	assert.Equal(t, 250*time.Millisecond, c.Timeout)
	assert.Equal(t, "yes", c.Untagged)
	assert.Equal(t, 0, c.hidden)
}

func TestLoadLeavesMissingKeys(t *testing.T) {
	c := &testConfig{Count: 7, Scale: 0.9}
	assert.NoError(t, Load(map[string]interface{}{"path": "x"}, c))
	assert.Equal(t, 7, c.Count)
	assert.Equal(t, 0.9, c.Scale)
}

func TestLoadDurationMs(t *testing.T) {
	c := &testConfig{}
	assert.NoError(t, Load(map[string]interface{}{"timeout": 100}, c))
	assert.Equal(t, 100*time.Millisecond, c.Timeout)
}

func TestLoadTypeMismatch(t *testing.T) {
	c := &testConfig{}
	err := Load(map[string]interface{}{"count": "many"}, c)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "count")

	err = Load(map[string]interface{}{"timeout": "soon"}, c)
	assert.Error(t, err)
}

func TestLoadNotStruct(t *testing.T) {
	i := 0
	assert.Error(t, Load(map[string]interface{}{}, &i))
	assert.Error(t, Load(map[string]interface{}{}, testConfig{}))
}

func TestDump(t *testing.T) {
	out := Dump("config", &testConfig{Count: 3})
	assert.Contains(t, out, "config {")
	assert.Contains(t, out, "count")
	assert.NotContains(t, out, "hidden")
}

func TestNormalize(t *testing.T) {
	in := map[interface{}]interface{}{
		"instrument": map[interface{}]interface{}{"name": "trace"},
		1:            []interface{}{map[interface{}]interface{}{"a": 1}},
	}
	out := MapIToMapS(in)
	instrument, ok := out["instrument"].(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, "trace", instrument["name"])
	list, ok := out["1"].([]interface{})
	assert.True(t, ok)
	assert.Equal(t, map[string]interface{}{"a": 1}, list[0])
}
