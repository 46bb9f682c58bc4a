// Package progress samples elapsed/total time from the playback engine and
// arbitrates between periodic sampling and user seeking.
package progress

import (
	"math"
	"strconv"
	"time"

	"github.com/osa030/voxbox/internal/app/notification"
	"github.com/osa030/voxbox/internal/app/scheduler"
)

// Clock reports elapsed and total seconds of the loaded track.
type Clock interface {
	Elapsed() float64
	Total() float64
}

// Sample is one normalized progress reading.
type Sample struct {
	Elapsed    float64
	Total      float64
	Percentage float64
	Seeking    bool
}

// Display renders the sample as "m:ss / m:ss".
func (s Sample) Display() string {
	return FormatClock(s.Elapsed) + " / " + FormatClock(s.Total)
}

// Notification converts the sample into a progress notification.
func (s Sample) Notification() notification.Notification {
	return notification.Notification{
		Type: notification.TypeProgress,
		Progress: &notification.Progress{
			Elapsed:    s.Elapsed,
			Total:      s.Total,
			Percentage: s.Percentage,
			Display:    s.Display(),
			Seeking:    s.Seeking,
		},
	}
}

// FormatClock renders seconds as "m:ss". NaN, infinite and negative values
// render as "0:00".
func FormatClock(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return "0:00"
	}
	total := int(seconds)
	s := total % 60
	pad := strconv.Itoa(s)
	if s < 10 {
		pad = "0" + pad
	}
	return strconv.Itoa(total/60) + ":" + pad
}

// Percentage returns min(elapsed/total*100, 100). ok is false when the
// reading cannot be used.
func Percentage(elapsed, total float64) (float64, bool) {
	if math.IsNaN(elapsed) || math.IsNaN(total) || total <= 0 || elapsed < 0 || math.IsInf(total, 0) {
		return 0, false
	}
	return math.Min(elapsed/total*100, 100), true
}

// Tracker runs a periodic sampling task while playing and not seeking.
// Tracker methods must be called on the scheduler's loop.
type Tracker struct {
	sched    scheduler.Scheduler
	interval time.Duration
	clock    Clock
	onSample func(Sample)

	ticker  scheduler.Handle
	running bool // Start was called and Stop was not
	seeking bool
	pending float64 // seek control percentage while seeking
	last    Sample
}

// NewTracker creates a tracker sampling clock every interval.
// onSample receives every accepted sample and every seek preview.
func NewTracker(sched scheduler.Scheduler, interval time.Duration, clock Clock, onSample func(Sample)) *Tracker {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if onSample == nil {
		onSample = func(Sample) {}
	}
	return &Tracker{
		sched:    sched,
		interval: interval,
		clock:    clock,
		onSample: onSample,
	}
}

// Start begins periodic sampling. Idempotent.
func (t *Tracker) Start() {
	t.running = true
	if t.seeking || t.ticker != nil {
		return
	}
	t.ticker = t.sched.Every(t.interval, t.sample)
}

// Stop halts periodic sampling.
func (t *Tracker) Stop() {
	t.running = false
	t.ticker = scheduler.Stop(t.ticker)
}

// Running reports whether the sampling task is armed.
func (t *Tracker) Running() bool {
	return t.ticker != nil
}

// Reset stops sampling and clears progress for a track change.
func (t *Tracker) Reset() {
	t.Stop()
	t.seeking = false
	t.pending = 0
	t.last = Sample{}
	t.onSample(t.last)
}

// Last returns the most recent sample.
func (t *Tracker) Last() Sample {
	return t.last
}

// Seeking reports whether a seek control is being dragged.
func (t *Tracker) Seeking() bool {
	return t.seeking
}

func (t *Tracker) sample() {
	if t.seeking {
		return
	}
	elapsed, total := t.clock.Elapsed(), t.clock.Total()
	pct, ok := Percentage(elapsed, total)
	if !ok {
		return
	}
	// Never move backwards between seeks on the same track.
	if total == t.last.Total && pct < t.last.Percentage {
		elapsed, pct = t.last.Elapsed, t.last.Percentage
	}
	t.last = Sample{Elapsed: elapsed, Total: total, Percentage: pct}
	t.onSample(t.last)
}

// BeginSeek suspends sampling while the user drags the seek control.
func (t *Tracker) BeginSeek() {
	if t.seeking {
		return
	}
	t.seeking = true
	t.pending = t.last.Percentage
	t.ticker = scheduler.Stop(t.ticker)
}

// UpdateSeek records the pending seek percentage and returns the preview
// sample shown instead of the engine's time.
func (t *Tracker) UpdateSeek(pct float64) Sample {
	if !t.seeking {
		t.BeginSeek()
	}
	t.pending = clampPercent(pct)
	preview := Sample{
		Elapsed:    t.pending / 100 * t.total(),
		Total:      t.total(),
		Percentage: t.pending,
		Seeking:    true,
	}
	t.onSample(preview)
	return preview
}

// EndSeek finishes seeking and returns the target in seconds for the single
// engine seek. ok is false when the duration is unknown. Sampling resumes
// if it was running before the seek began.
func (t *Tracker) EndSeek() (seconds float64, ok bool) {
	if !t.seeking {
		return 0, false
	}
	t.seeking = false

	total := t.total()
	if total > 0 {
		seconds, ok = t.pending/100*total, true
		t.last = Sample{Elapsed: seconds, Total: total, Percentage: t.pending}
		t.onSample(t.last)
	}
	if t.running {
		t.ticker = t.sched.Every(t.interval, t.sample)
	}
	return seconds, ok
}

func (t *Tracker) total() float64 {
	if t.last.Total > 0 {
		return t.last.Total
	}
	total := t.clock.Total()
	if math.IsNaN(total) || total < 0 {
		return 0
	}
	return total
}

func clampPercent(pct float64) float64 {
	switch {
	case math.IsNaN(pct), pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}
