package chunkpool

import (
	"github.com/pkg/errors"
	"time"
)

type Instrument interface {
	NewInstance(id string) InstrumentInstance
}

type InstrumentInstance interface {
	// acquire
	Reused(index, idleSz int)
	Allocated(index, outstanding, capacity int, delay time.Duration)
	Cancelled(index int, err error)

	// release
	Returned(index, idleSz int)
	Discarded(index, idleSz, outstanding int)
	Drained(count, outstanding int)

	// instrument lifecycle
	Shutdown()
}

func NewInstrument(name string, config map[string]interface{}) (i Instrument, err error) {
	switch name {
	case "", "nil":
		return NewNilInstrument(), nil
	case "trace":
		return NewTraceInstrument(config)
	case "metrics":
		return NewMetricsInstrument(config)
	default:
		return nil, errors.Errorf("unknown instrument '%s'", name)
	}
}
