package progress

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackerTicks(t *testing.T) {
	var buf bytes.Buffer
	tr := newTracker(&buf, "demo", 10)

	for range 3 {
		tr.Tick()
	}
	assert.Contains(t, buf.String(), "demo")
	assert.Contains(t, buf.String(), "3/10")
	tr.FinishSuccess()
}

func TestTrackerTickConcurrent(t *testing.T) {
	var buf bytes.Buffer
	tr := newTracker(&buf, "concurrent", 100)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				tr.Tick()
			}
		}()
	}
	wg.Wait()
	tr.FinishSuccess()
	assert.Contains(t, buf.String(), "100/100")
}

func TestTrackerFinishError(t *testing.T) {
	var buf bytes.Buffer
	tr := newTracker(&buf, "broken", 2)
	tr.FinishError(errors.New("missing history"))
	assert.Contains(t, buf.String(), "broken error: missing history")
}

func TestSpinner(t *testing.T) {
	var buf bytes.Buffer
	tr := newSpinner(&buf, "indexing")
	tr.Tick()
	tr.FinishSuccess()
	assert.NotNil(t, NewSpinner("x"))
}

func TestProjects(t *testing.T) {
	var buf bytes.Buffer
	start := Projects(&buf)

	tick, done := start("alpha", 2)
	tick()
	tick()
	done()
	assert.Contains(t, buf.String(), "alpha")
}
