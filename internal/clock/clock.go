package clock

import (
	"sync/atomic"
	"time"

	interfaces "github.com/sheikh-saqib/micropayments-ledger/internal/interfaces"
)

// System reads the wall clock as unix seconds.
type System struct{}

func (System) Now() uint64 {
	return uint64(time.Now().Unix())
}

// Manual is a settable clock for tests and replays.
type Manual struct {
	now atomic.Uint64
}

func NewManual(start uint64) *Manual {
	m := &Manual{}
	m.now.Store(start)
	return m
}

func (m *Manual) Now() uint64 {
	return m.now.Load()
}

func (m *Manual) Set(v uint64) {
	m.now.Store(v)
}

// Advance moves the clock forward by d and returns the new reading.
func (m *Manual) Advance(d uint64) uint64 {
	return m.now.Add(d)
}

var (
	_ interfaces.Clock = System{}
	_ interfaces.Clock = (*Manual)(nil)
)
