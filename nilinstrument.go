package chunkpool

import "time"

type nilInstrument struct{}

func NewNilInstrument() Instrument {
	return &nilInstrument{}
}

func (self *nilInstrument) NewInstance(_ string) InstrumentInstance {
	return &NilInstrumentInstance{}
}

type NilInstrumentInstance struct{}

/*
 * acquire
 */
func (n NilInstrumentInstance) Reused(int, int)                        {}
func (n NilInstrumentInstance) Allocated(int, int, int, time.Duration) {}
func (n NilInstrumentInstance) Cancelled(int, error)                   {}

/*
 * release
 */
func (n NilInstrumentInstance) Returned(int, int)       {}
func (n NilInstrumentInstance) Discarded(int, int, int) {}
func (n NilInstrumentInstance) Drained(int, int)        {}

/*
 * instrument lifecycle
 */
func (n NilInstrumentInstance) Shutdown() {}
