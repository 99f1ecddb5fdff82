package chrome

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRequestTrackerIdle(t *testing.T) {
	tr := newRequestTracker()
	quiet := 500 * time.Millisecond

	tr.begin("1")
	tr.begin("2")
	assert.False(t, tr.idleFor(time.Now().Add(time.Hour), quiet), "requests in flight")

	tr.end("1")
	assert.False(t, tr.idleFor(time.Now().Add(time.Hour), quiet), "one request left")

	tr.end("2")
	assert.False(t, tr.idleFor(time.Now(), quiet), "quiet window not elapsed")
	assert.True(t, tr.idleFor(time.Now().Add(quiet), quiet))
}

func TestRequestTrackerIgnoresUnknownEnd(t *testing.T) {
	tr := newRequestTracker()
	tr.end("never-started")
	assert.True(t, tr.idleFor(time.Now().Add(time.Second), time.Millisecond))
}
