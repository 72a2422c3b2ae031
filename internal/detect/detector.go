// Package detect turns conditioned multi-channel records into gated intent
// commands. It owns the session's arming state machine: warm-up, a fixed
// initial countdown, then the ready state in which classification may emit.
package detect

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/gazelink-data/gazelink/internal/command"
	"github.com/gazelink-data/gazelink/internal/dsp"
	"github.com/gazelink-data/gazelink/internal/monitoring"
)

// initialCountdownSeconds is the fixed arming countdown that follows
// warm-up. Records are scored but never emitted while it runs.
const initialCountdownSeconds = 3

// visibleCountdownSeconds is the operator-feedback countdown reset by every
// fired event. It gates nothing.
const visibleCountdownSeconds = 3

// settlingSkipCount is how many rule-satisfying events are absorbed after
// the machine first arms (counting detections made during the countdown).
// The first classifications after amplifier stabilization are empirically
// noisy and must not drive navigation.
const settlingSkipCount = 2

// Emitter receives commands that survived all gating. *command.Sink
// satisfies it.
type Emitter interface {
	Enqueue(cmd command.Command)
}

// EventWriter persists the per-kind diagnostic record of every fired
// event. *eventlog.Log satisfies it.
type EventWriter interface {
	Record(kind string, trigger float64) error
}

// HistoryRecorder receives detections and parse errors for the session
// store. Implementations must not block; failures are their own problem.
type HistoryRecorder interface {
	RecordDetection(kind string, trigger float64, emitted bool, reason string, at time.Time)
	RecordParseError(line, message string, at time.Time)
}

// Config carries the immutable classification parameters for a session.
type Config struct {
	Channels     int
	WindowLength int
	Chain        dsp.ChainParams

	// Conditioning overrides the per-channel filter construction. Nil
	// means a Butterworth chain designed from Chain.
	Conditioning func() (Conditioner, error)

	// NeutralMin/Max bound the resting band, checked on filtered values.
	NeutralMin float64
	NeutralMax float64

	// The excursion bands classify blinks, checked on raw values.
	ExcursionPosMin  float64
	ExcursionPosMax  float64
	ExcursionNegLow  float64
	ExcursionNegHigh float64

	InitialDelay    time.Duration
	PrintDelay      time.Duration
	EyeOpenDuration time.Duration
	BlinkCooldown   time.Duration
}

// Detector consumes one record at a time, conditions every channel, and
// applies the classification and gating rules. All mutation happens on the
// Run goroutine; the mutex only makes Status safe to call from outside.
type Detector struct {
	cfg      Config
	emitter  Emitter
	events   EventWriter
	history  HistoryRecorder
	channels []*Channel

	mu      sync.Mutex
	started time.Time

	// Arming state. One-way progression: warm-up, countdown, ready.
	warmupDone         bool
	ready              bool
	countdownRemaining int

	lastEmit     time.Time // global rate limiter across both kinds
	lastMoveNext time.Time // per-kind cooldown for move-next

	pendingKind    command.Kind // provisional command captured during countdown
	pendingTrigger float64

	countdownSkipped int // detections scored but skipped during countdown
	suppressed       int // detections absorbed by the settling policy
	parseErrors      int

	visibleRemaining int // operator feedback only
}

// Status is a point-in-time snapshot of the arming machine, for operator
// feedback and observability.
type Status struct {
	State              string
	CountdownRemaining int
	VisibleCountdown   int
	CountdownSkipped   int
	Suppressed         int
	ParseErrors        int
}

// New builds a detector with one conditioning chain per channel. The
// events writer and history recorder may be nil.
func New(cfg Config, emitter Emitter, events EventWriter, history HistoryRecorder) (*Detector, error) {
	d := &Detector{
		cfg:     cfg,
		emitter: emitter,
		events:  events,
		history: history,
	}
	makeConditioner := cfg.Conditioning
	if makeConditioner == nil {
		makeConditioner = func() (Conditioner, error) { return dsp.NewChain(cfg.Chain) }
	}
	for i := 0; i < cfg.Channels; i++ {
		cond, err := makeConditioner()
		if err != nil {
			return nil, err
		}
		ch, err := newChannel(i, cond, cfg.WindowLength)
		if err != nil {
			return nil, err
		}
		d.channels = append(d.channels, ch)
	}
	return d, nil
}

// Start marks the beginning of the session's warm-up. Run calls it
// automatically; tests call it with a controlled clock.
func (d *Detector) Start(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started.IsZero() {
		d.started = now
	}
}

// Run processes records and countdown ticks on a single goroutine until
// the context is cancelled or the line channel closes. Serializing both
// here keeps every arming-state mutation single-threaded.
func (d *Detector) Run(ctx context.Context, lines <-chan string) error {
	d.Start(time.Now())

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			d.Tick(now)
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			d.HandleLine(line, time.Now())
		}
	}
}

// HandleLine processes one raw input line at the given time.
func (d *Detector) HandleLine(line string, now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.warmupDone {
		if !d.started.IsZero() && now.Sub(d.started) >= d.cfg.InitialDelay {
			d.beginCountdown()
		}
		// Records during warm-up are dropped whole: no parse, no filter.
		return
	}

	if line == "" {
		return
	}

	raw, err := parseRecord(line, d.cfg.Channels)
	if err != nil {
		d.parseErrors++
		monitoring.Logf("detect: dropping record: %v", err)
		if d.history != nil {
			d.history.RecordParseError(line, err.Error(), now)
		}
		return
	}

	filtered := make([]float64, len(raw))
	for i, ch := range d.channels {
		filtered[i] = ch.condition(raw[i])
	}

	if !d.ready {
		d.scoreCountdown(raw, filtered, now)
		return
	}
	d.score(raw, filtered, now)
}

// beginCountdown transitions warm-up to the initial countdown.
func (d *Detector) beginCountdown() {
	d.warmupDone = true
	d.countdownRemaining = initialCountdownSeconds
	d.countdownSkipped = 0
	d.suppressed = 0
	monitoring.Logf("detect: warm-up complete, arming in %ds", initialCountdownSeconds)
}

// scoreCountdown evaluates the classification rules during the initial
// countdown. At most one provisional command is captured; it is never
// emitted and is discarded when the countdown expires.
func (d *Detector) scoreCountdown(raw, filtered []float64, now time.Time) {
	if d.pendingKind != "" {
		return
	}

	if d.allNeutral(filtered) {
		if now.Sub(d.lastEmit) >= d.cfg.EyeOpenDuration {
			trigger := maxByMagnitude(filtered)
			d.pendingKind = command.Select
			d.pendingTrigger = trigger
			d.countdownSkipped++
			monitoring.Logf("detect: select (%.3f) during countdown, skipping", trigger)
			if d.history != nil {
				d.history.RecordDetection(string(command.Select), trigger, false, "countdown", now)
			}
		}
	} else if d.anyExcursion(raw) {
		trigger, ok := d.firstBeyondNeutral(filtered)
		if !ok {
			return
		}
		d.pendingKind = command.MoveNext
		d.pendingTrigger = trigger
		d.countdownSkipped++
		monitoring.Logf("detect: move-next (%.3f) during countdown, skipping", trigger)
		if d.history != nil {
			d.history.RecordDetection(string(command.MoveNext), trigger, false, "countdown", now)
		}
	}
}

// score evaluates one ready-state record. The open-gesture rule has strict
// priority over the blink rule: the neutral check runs on filtered values,
// the excursion check on raw values, and the asymmetry is deliberate.
func (d *Detector) score(raw, filtered []float64, now time.Time) {
	if now.Sub(d.lastEmit) < d.cfg.PrintDelay {
		return
	}

	if d.allNeutral(filtered) {
		if now.Sub(d.lastEmit) < d.cfg.EyeOpenDuration {
			return
		}
		d.fire(command.Select, maxByMagnitude(filtered), now)
	} else if d.anyExcursion(raw) {
		trigger, ok := d.firstBeyondNeutral(filtered)
		if !ok {
			return
		}
		d.fire(command.MoveNext, trigger, now)
	}
}

// fire handles one classified event: diagnostic log, rate-limiter update,
// settling suppression, per-kind cooldown, then emission.
func (d *Detector) fire(kind command.Kind, trigger float64, now time.Time) {
	if d.events != nil {
		if err := d.events.Record(string(kind), trigger); err != nil {
			monitoring.Logf("detect: event log write failed: %v", err)
		}
	}
	d.lastEmit = now

	switch {
	case d.countdownSkipped+d.suppressed < settlingSkipCount:
		d.suppressed++
		monitoring.Logf("detect: suppressing %s (%d/%d settling)",
			kind, d.countdownSkipped+d.suppressed, settlingSkipCount)
		if d.history != nil {
			d.history.RecordDetection(string(kind), trigger, false, "settling", now)
		}

	case kind == command.MoveNext && now.Sub(d.lastMoveNext) < d.cfg.BlinkCooldown:
		monitoring.Logf("detect: move-next (%.3f) inside cooldown, not emitted", trigger)
		if d.history != nil {
			d.history.RecordDetection(string(kind), trigger, false, "cooldown", now)
		}

	default:
		d.emitter.Enqueue(command.Command{Kind: kind, Trigger: trigger})
		if kind == command.MoveNext {
			d.lastMoveNext = now
		}
		if d.history != nil {
			d.history.RecordDetection(string(kind), trigger, true, "", now)
		}
	}

	d.visibleRemaining = visibleCountdownSeconds
}

// Tick advances the second-resolution countdowns. It is driven by Run's
// ticker and, in tests, called directly.
func (d *Detector) Tick(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.visibleRemaining > 0 {
		d.visibleRemaining--
	}

	if !d.warmupDone || d.ready || d.countdownRemaining <= 0 {
		return
	}
	d.countdownRemaining--
	if d.countdownRemaining > 0 {
		return
	}

	d.ready = true
	monitoring.Logf("detect: ready")

	// A provisional command captured during the countdown is discarded,
	// never promoted.
	if d.pendingKind != "" {
		monitoring.Logf("detect: ignoring stored command from countdown: %s (%.3f)",
			d.pendingKind, d.pendingTrigger)
		d.pendingKind = ""
		d.pendingTrigger = 0
	}
}

// Status snapshots the arming machine.
func (d *Detector) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	state := "warm-up"
	switch {
	case d.ready:
		state = "ready"
	case d.warmupDone:
		state = "countdown"
	}
	return Status{
		State:              state,
		CountdownRemaining: d.countdownRemaining,
		VisibleCountdown:   d.visibleRemaining,
		CountdownSkipped:   d.countdownSkipped,
		Suppressed:         d.suppressed,
		ParseErrors:        d.parseErrors,
	}
}

// Window returns a copy of the given channel's filtered-sample window.
func (d *Detector) Window(channel int) []float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if channel < 0 || channel >= len(d.channels) {
		return nil
	}
	return d.channels[channel].Window()
}

func (d *Detector) allNeutral(filtered []float64) bool {
	for _, v := range filtered {
		if v < d.cfg.NeutralMin || v > d.cfg.NeutralMax {
			return false
		}
	}
	return true
}

func (d *Detector) anyExcursion(raw []float64) bool {
	for _, v := range raw {
		if v >= d.cfg.ExcursionPosMin && v <= d.cfg.ExcursionPosMax {
			return true
		}
		if v >= d.cfg.ExcursionNegLow && v <= d.cfg.ExcursionNegHigh {
			return true
		}
	}
	return false
}

// firstBeyondNeutral picks the first filtered value outside the neutral
// band. A blink on raw values whose filtered trace stayed neutral yields
// no trigger, and the record produces no event.
func (d *Detector) firstBeyondNeutral(filtered []float64) (float64, bool) {
	for _, v := range filtered {
		if v > d.cfg.NeutralMax || v < d.cfg.NeutralMin {
			return v, true
		}
	}
	return 0, false
}

// maxByMagnitude returns the value with the greatest absolute magnitude,
// keeping its sign. Ties keep the earliest channel.
func maxByMagnitude(values []float64) float64 {
	best := values[0]
	for _, v := range values[1:] {
		if math.Abs(v) > math.Abs(best) {
			best = v
		}
	}
	return best
}
