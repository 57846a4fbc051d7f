package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystemReturnsUnixSeconds(t *testing.T) {
	before := uint64(time.Now().Unix())
	got := System{}.Now()
	after := uint64(time.Now().Unix())

	assert.GreaterOrEqual(t, got, before)
	assert.LessOrEqual(t, got, after)
}

func TestManual(t *testing.T) {
	m := NewManual(100)
	assert.Equal(t, uint64(100), m.Now())

	assert.Equal(t, uint64(105), m.Advance(5))
	assert.Equal(t, uint64(105), m.Now())

	m.Set(7)
	assert.Equal(t, uint64(7), m.Now())
}
