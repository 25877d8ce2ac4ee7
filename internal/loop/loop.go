// Package loop drives the decision pipeline from the simulation tick.
//
// Tick is called once per simulation frame. It never blocks on the network:
// requests run on a worker and their results are picked up by a later tick,
// so every memory mutation and every order happens on the tick goroutine.
package loop

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mrblmoore/hannibal-ai/internal/battle"
	"github.com/mrblmoore/hannibal-ai/internal/command"
	"github.com/mrblmoore/hannibal-ai/internal/fallback"
	"github.com/mrblmoore/hannibal-ai/internal/inference"
	"github.com/mrblmoore/hannibal-ai/internal/metrics"
	"github.com/mrblmoore/hannibal-ai/internal/sim"
	"github.com/mrblmoore/hannibal-ai/internal/snapshot"
)

// State is the battle lifecycle as seen by the loop.
type State int

const (
	StateIdle State = iota
	StateBattleActive
	StateBattleEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBattleActive:
		return "battle_active"
	case StateBattleEnded:
		return "battle_ended"
	default:
		return "unknown"
	}
}

// Decider produces decisions from a snapshot. *inference.Client implements it.
type Decider interface {
	RequestDecision(ctx context.Context, snap battle.BattleSnapshot, cmdCtx battle.CommanderContext, timeout time.Duration) (battle.Decision, error)
}

// Memory is the commander memory the loop reads and updates.
type Memory interface {
	RecordInteraction(id string)
	Decay(dt float64)
	RecordOutcome(id string, tactics []string, won bool)
	Context(id string) battle.CommanderContext
	Record(id string) (battle.CommanderRecord, bool)
}

// CommanderSaver persists a commander record after a battle.
type CommanderSaver interface {
	SaveCommander(ctx context.Context, rec battle.CommanderRecord) error
}

// Config paces the loop.
type Config struct {
	Side            battle.Side   // side the pipeline controls
	Interval        float64       // simulated seconds between requests
	Timeout         time.Duration // per-request deadline
	BackoffFailures int           // consecutive failures before suspending requests; 0 disables
	BackoffCooldown float64       // simulated seconds requests stay suspended
	SaveTimeout     time.Duration
}

// DefaultConfig returns the pacing used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Side:            battle.SidePlayer,
		Interval:        5,
		Timeout:         10 * time.Second,
		BackoffFailures: 3,
		BackoffCooldown: 30,
		SaveTimeout:     5 * time.Second,
	}
}

// Deps are the collaborators built once per session.
type Deps struct {
	Client     Decider // nil runs on the fallback only
	Memory     Memory
	Translator *command.Translator
	Fallback   *fallback.Controller
}

// Option configures a Loop.
type Option func(*Loop)

// WithRunner replaces how background work is started. The default starts a
// goroutine; tests pass a runner that calls f synchronously or later.
func WithRunner(run func(f func())) Option {
	return func(l *Loop) {
		l.run = run
	}
}

// WithSaver persists commander records when a battle ends.
func WithSaver(s CommanderSaver) Option {
	return func(l *Loop) {
		l.saver = s
	}
}

// WithEvents publishes loop events to sink.
func WithEvents(sink EventSink) Option {
	return func(l *Loop) {
		l.events = sink
	}
}

type token struct {
	session string
	seq     uint64
}

type result struct {
	token    token
	decision battle.Decision
	err      error
	elapsed  time.Duration
}

// Loop is the decision state machine. Tick must be called from one goroutine;
// Status may be called from any.
type Loop struct {
	cfg        Config
	sim        sim.Simulation
	client     Decider
	memory     Memory
	translator *command.Translator
	fallback   *fallback.Controller
	saver      CommanderSaver
	events     EventSink
	run        func(f func())

	ctx     context.Context
	cancel  context.CancelFunc
	results chan result

	mu          sync.Mutex
	state       State
	clock       float64
	session     string
	seq         uint64
	commander   string
	accum       float64
	outstanding *token
	cancelReq   context.CancelFunc
	decided     bool
	tactics     map[string]struct{}
	last        *battle.Decision
	lastSource  string
	backoff     backoff
	battles     int
}

// New builds a loop over s. Memory, Translator and Fallback are required.
func New(cfg Config, s sim.Simulation, deps Deps, opts ...Option) (*Loop, error) {
	if s == nil {
		return nil, fmt.Errorf("loop: nil simulation")
	}
	if deps.Memory == nil || deps.Translator == nil || deps.Fallback == nil {
		return nil, fmt.Errorf("loop: memory, translator and fallback are required")
	}
	def := DefaultConfig()
	if cfg.Side == "" {
		cfg.Side = def.Side
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = def.SaveTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Loop{
		cfg:        cfg,
		sim:        s,
		client:     deps.Client,
		memory:     deps.Memory,
		translator: deps.Translator,
		fallback:   deps.Fallback,
		run:        func(f func()) { go f() },
		ctx:        ctx,
		cancel:     cancel,
		// Only one request is outstanding at a time, so its send never blocks.
		results: make(chan result, 1),
		backoff: newBackoff(cfg.BackoffFailures, cfg.BackoffCooldown),
	}
	for _, o := range opts {
		o(l)
	}
	return l, nil
}

// Close cancels any outstanding request.
func (l *Loop) Close() {
	l.cancel()
}

// Tick advances the loop by dt simulated seconds.
func (l *Loop) Tick(dt float64) {
	if dt < 0 {
		dt = 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	defer l.recoverTick()

	l.clock += dt
	l.guard("decay", func() { l.memory.Decay(dt) })
	l.drain()

	switch l.state {
	case StateIdle:
		if l.sim.InBattle() && l.bothSidesActive() {
			l.startBattle()
		}
	case StateBattleActive:
		if !l.sim.InBattle() || !l.bothSidesActive() {
			l.endBattle()
			return
		}
		l.sample(dt)
	case StateBattleEnded:
		l.reset()
	}
}

func (l *Loop) bothSidesActive() bool {
	return sim.ActiveCount(l.sim, l.cfg.Side) > 0 && sim.ActiveCount(l.sim, l.cfg.Side.Opposite()) > 0
}

func (l *Loop) logger() *zerolog.Logger {
	lg := log.With().Str("session", l.session).Str("commander", l.commander).Logger()
	return &lg
}

func (l *Loop) startBattle() {
	l.session = uuid.NewString()
	l.commander = snapshot.CommanderID(snapshot.Capture(l.sim), l.cfg.Side.Opposite())
	l.accum = 0
	l.decided = false
	l.tactics = make(map[string]struct{})
	l.last = nil
	l.lastSource = ""
	l.state = StateBattleActive
	l.battles++
	metrics.BattlesStarted.Inc()

	l.logger().Info().
		Int("own", sim.ActiveCount(l.sim, l.cfg.Side)).
		Int("enemy", sim.ActiveCount(l.sim, l.cfg.Side.Opposite())).
		Msg("Battle started")
	l.publish(Event{Type: EventBattleStarted})

	l.applyFallback("battle_start")
}

func (l *Loop) endBattle() {
	own := sim.ActiveCount(l.sim, l.cfg.Side)
	enemy := sim.ActiveCount(l.sim, l.cfg.Side.Opposite())
	won := own > 0 && enemy == 0
	outcome := "defeat"
	if won {
		outcome = "victory"
	}

	if l.cancelReq != nil {
		l.cancelReq()
	}

	tactics := l.tacticsUsed()
	l.guard("record outcome", func() { l.memory.RecordOutcome(l.commander, tactics, won) })
	l.save()

	metrics.BattlesEnded.WithLabelValues(outcome).Inc()
	l.logger().Info().
		Str("outcome", outcome).
		Strs("tactics", tactics).
		Int("own", own).
		Int("enemy", enemy).
		Msg("Battle ended")
	l.publish(Event{Type: EventBattleEnded, Outcome: outcome, Actions: tactics})

	// Results for this session are stale from here on.
	l.session = ""
	l.state = StateBattleEnded
}

// reset clears per-battle state. An outstanding request is left to finish
// so a new one cannot start alongside it.
func (l *Loop) reset() {
	l.commander = ""
	l.accum = 0
	l.decided = false
	l.tactics = nil
	l.last = nil
	l.lastSource = ""
	l.state = StateIdle
}

func (l *Loop) save() {
	if l.saver == nil || l.commander == "" {
		return
	}
	rec, ok := l.memory.Record(l.commander)
	if !ok {
		return
	}
	saver, timeout := l.saver, l.cfg.SaveTimeout
	l.run(func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := saver.SaveCommander(ctx, rec); err != nil {
			log.Error().Err(err).Str("commander", rec.ID).Msg("Failed to save commander")
		}
	})
}

func (l *Loop) sample(dt float64) {
	l.accum += dt
	if l.accum < l.cfg.Interval {
		return
	}
	l.accum = 0

	if l.outstanding != nil {
		l.logger().Debug().Uint64("seq", l.outstanding.seq).Msg("Request still in flight, skipping interval")
		if !l.decided {
			l.applyFallback("in_flight")
		}
		return
	}
	if l.client == nil {
		l.applyFallback("no_client")
		return
	}
	if !l.backoff.allow(l.clock) {
		l.applyFallback("backoff")
		return
	}

	var snap battle.BattleSnapshot
	if !l.guard("capture", func() { snap = snapshot.Capture(l.sim) }) || snap.Empty() {
		return
	}
	var cmdCtx battle.CommanderContext
	l.guard("commander context", func() { cmdCtx = l.memory.Context(l.commander) })
	if cmdCtx.ID == "" {
		cmdCtx.ID = l.commander
	}

	l.seq++
	tok := token{session: l.session, seq: l.seq}
	ctx, cancel := context.WithCancel(l.ctx)
	l.outstanding = &tok
	l.cancelReq = cancel

	client, timeout, results := l.client, l.cfg.Timeout, l.results
	l.run(func() {
		defer cancel()
		start := time.Now()
		r := result{token: tok}
		func() {
			defer func() {
				if p := recover(); p != nil {
					metrics.LoopPanics.Inc()
					r.err = fmt.Errorf("decider panic: %v", p)
				}
			}()
			r.decision, r.err = client.RequestDecision(ctx, snap, cmdCtx, timeout)
		}()
		r.elapsed = time.Since(start)
		results <- r
	})

	// A synchronous runner has already delivered the result.
	l.drain()
}

func (l *Loop) drain() {
	for {
		select {
		case r := <-l.results:
			l.handle(r)
		default:
			return
		}
	}
}

func (l *Loop) handle(r result) {
	if l.outstanding != nil && *l.outstanding == r.token {
		l.outstanding = nil
		l.cancelReq = nil
	}

	if r.token.session != l.session || l.state != StateBattleActive {
		metrics.StaleResponses.Inc()
		log.Info().
			Str("session", r.token.session).
			Uint64("seq", r.token.seq).
			Dur("elapsed", r.elapsed).
			Msg("Discarded response for finished battle")
		l.publish(Event{Type: EventStaleDiscarded, Session: r.token.session})
		return
	}

	if r.err != nil {
		reason := "error"
		if kind := inference.KindOf(r.err); kind != inference.KindNone {
			reason = kind.String()
		}
		l.logger().Error().Err(r.err).
			Str("kind", reason).
			Dur("elapsed", r.elapsed).
			Msg("Decision request failed")
		l.publish(Event{Type: EventRequestFailed, Reason: reason})
		if l.backoff.failure(l.clock) {
			l.logger().Warn().
				Int("failures", l.backoff.failures).
				Float64("cooldown", l.cfg.BackoffCooldown).
				Msg("Suspending decision requests")
			l.publish(Event{Type: EventBackoffOpened, Reason: reason})
		}
		l.applyFallback(reason)
		return
	}

	l.backoff.success()
	res, ok := l.translate(r.decision)
	if !ok || len(res.Applied) == 0 {
		l.applyFallback("untranslatable")
		return
	}
	l.guard("record interaction", func() { l.memory.RecordInteraction(l.commander) })
	l.decided = true
	dec := r.decision
	l.last = &dec
	l.lastSource = "remote"

	l.logger().Info().
		Strs("actions", res.Actions()).
		Int("skipped", len(res.Skipped)).
		Dur("elapsed", r.elapsed).
		Str("rationale", dec.Rationale).
		Msg("Applied decision")
	l.publish(Event{Type: EventDecision, Actions: res.Actions(), Skipped: len(res.Skipped), Rationale: dec.Rationale})
}

func (l *Loop) applyFallback(reason string) {
	var dec battle.Decision
	if !l.guard("fallback", func() { dec = l.fallback.Decision(l.sim) }) {
		return
	}
	res, ok := l.translate(dec)
	if !ok {
		return
	}
	metrics.FallbackApplied.WithLabelValues(reason).Inc()
	if !l.decided {
		l.last = &dec
		l.lastSource = "fallback"
	}
	l.logger().Info().
		Str("reason", reason).
		Strs("actions", res.Actions()).
		Msg("Applied fallback")
	l.publish(Event{Type: EventFallback, Reason: reason, Actions: res.Actions(), Skipped: len(res.Skipped)})
}

func (l *Loop) translate(d battle.Decision) (command.Result, bool) {
	var res command.Result
	ok := l.guard("translate", func() {
		res = l.translator.Translate(d, command.ResolverFor(l.sim, l.cfg.Side))
	})
	for _, a := range res.Applied {
		if l.tactics != nil {
			l.tactics[a.Command.Name()] = struct{}{}
		}
	}
	return res, ok
}

func (l *Loop) tacticsUsed() []string {
	out := make([]string, 0, len(l.tactics))
	for name := range l.tactics {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (l *Loop) publish(e Event) {
	if l.events == nil {
		return
	}
	if e.Session == "" {
		e.Session = l.session
	}
	if e.Commander == "" {
		e.Commander = l.commander
	}
	e.Time = l.clock
	l.guard("publish", func() { l.events.Publish(e) })
}

// guard runs fn, converting a panic into a logged failure. It reports
// whether fn completed.
func (l *Loop) guard(what string, fn func()) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			metrics.LoopPanics.Inc()
			log.Error().
				Str("stage", what).
				Str("panic", fmt.Sprint(p)).
				Bytes("stack", debug.Stack()).
				Msg("Recovered panic in decision loop")
			ok = false
		}
	}()
	fn()
	return true
}

func (l *Loop) recoverTick() {
	if p := recover(); p != nil {
		metrics.LoopPanics.Inc()
		log.Error().Str("panic", fmt.Sprint(p)).Str("state", l.state.String()).Msg("Recovered panic in decision loop tick")
	}
}

// Status is a point-in-time view of the loop for observers.
type Status struct {
	State     string           `json:"state"`
	Session   string           `json:"session,omitempty"`
	Commander string           `json:"commander,omitempty"`
	Clock     float64          `json:"clock"`
	InFlight  bool             `json:"inFlight"`
	Backoff   bool             `json:"backoff"`
	Failures  int              `json:"consecutiveFailures"`
	Battles   int              `json:"battles"`
	Tactics   []string         `json:"tactics,omitempty"`
	Last      *battle.Decision `json:"lastDecision,omitempty"`
	Source    string           `json:"lastSource,omitempty"`
}

// Status returns the current loop status.
func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := Status{
		State:     l.state.String(),
		Session:   l.session,
		Commander: l.commander,
		Clock:     l.clock,
		InFlight:  l.outstanding != nil,
		Backoff:   l.backoff.open,
		Failures:  l.backoff.failures,
		Battles:   l.battles,
		Tactics:   l.tacticsUsed(),
		Source:    l.lastSource,
	}
	if l.last != nil {
		d := *l.last
		d.Commands = append([]battle.Command(nil), d.Commands...)
		st.Last = &d
	}
	return st
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}
