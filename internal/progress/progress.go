// Package progress draws per-project progress bars on stderr.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Tracker wraps a progress bar over a project's target commits.
type Tracker struct {
	bar   *progressbar.ProgressBar
	label string
	out   io.Writer
}

// NewSpinner creates a spinner for operations with unknown total count, such
// as building a history index.
func NewSpinner(label string) *Tracker {
	return newSpinner(os.Stderr, label)
}

func newSpinner(w io.Writer, label string) *Tracker {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(20),
		progressbar.OptionSetDescription(label),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	return &Tracker{bar: bar, label: label, out: w}
}

// NewTracker creates a progress bar with the given label and total count.
func NewTracker(label string, total int) *Tracker {
	return newTracker(os.Stderr, label, total)
}

func newTracker(w io.Writer, label string, total int) *Tracker {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(label),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return &Tracker{bar: bar, label: label, out: w}
}

// Tick advances the bar by one. Safe for concurrent use.
func (t *Tracker) Tick() {
	t.bar.Add(1)
}

// FinishSuccess clears the bar.
func (t *Tracker) FinishSuccess() {
	t.bar.Finish()
	t.bar.Clear()
}

// FinishError clears the bar and prints err.
func (t *Tracker) FinishError(err error) {
	t.bar.Finish()
	t.bar.Clear()
	fmt.Fprintf(t.out, "  %s error: %v\n", t.label, err)
}

// Projects returns a per-project progress starter writing to w. Its
// signature matches the engine's progress hook.
func Projects(w io.Writer) func(project string, total int) (tick func(), done func()) {
	return func(project string, total int) (func(), func()) {
		t := newTracker(w, project, total)
		return t.Tick, t.FinishSuccess
	}
}
