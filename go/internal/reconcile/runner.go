package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/escaperoom/go/internal/models"
)

// Endpoint is the server surface a runner reconciles against. Heartbeat must
// return the sentinel errors from models for authoritative failures and
// anything else for transport trouble.
type Endpoint interface {
	CheckSession(ctx context.Context) (bool, error)
	Join(ctx context.Context, nickname string) (token string, gameActive bool, err error)
	Heartbeat(ctx context.Context, token string) (Observation, error)
}

type RunnerConfig struct {
	HeartbeatInterval time.Duration
	TickInterval      time.Duration
	MaxMissed         int
	Tolerance         int
	// Master runners log in rather than join and also follow the session clock.
	Master bool
}

func DefaultRunnerConfig() RunnerConfig {
	return PlayerRunnerConfig(models.DefaultRules())
}

func PlayerRunnerConfig(rules models.Rules) RunnerConfig {
	return RunnerConfig{
		HeartbeatInterval: rules.PlayerHeartbeatInterval,
		TickInterval:      time.Second,
		MaxMissed:         DefaultMaxMissed,
		Tolerance:         DefaultTolerance,
	}
}

// MasterRunnerConfig uses tolerance 0: the master display always shows the
// server value.
func MasterRunnerConfig(rules models.Rules) RunnerConfig {
	return RunnerConfig{
		HeartbeatInterval: rules.MasterHeartbeatInterval,
		TickInterval:      time.Second,
		MaxMissed:         DefaultMaxMissed,
		Tolerance:         0,
		Master:            true,
	}
}

// Runner drives a Machine and two Countdowns, game and session, from
// heartbeats, local ticks and nudges. Nudge is safe to call from any goroutine.
type Runner struct {
	endpoint  Endpoint
	tokens    TokenStore
	clock     clockwork.Clock
	config    RunnerConfig
	machine   *Machine
	countdown *Countdown
	session   *Countdown
	nudgeCh   chan struct{}

	mu       sync.Mutex
	last     Observation
	onChange func(Transition)
}

func NewRunner(endpoint Endpoint, tokens TokenStore, clock clockwork.Clock, cfg RunnerConfig) *Runner {
	machine := NewMachine(cfg.MaxMissed)
	if cfg.Master {
		machine = NewMasterMachine(cfg.MaxMissed)
	}
	return &Runner{
		endpoint:  endpoint,
		tokens:    tokens,
		clock:     clock,
		config:    cfg,
		machine:   machine,
		countdown: NewCountdown(cfg.Tolerance),
		session:   NewCountdown(cfg.Tolerance),
		nudgeCh:   make(chan struct{}, 1),
	}
}

// OnTransition registers a callback for every state change. Set it before Run.
func (r *Runner) OnTransition(fn func(Transition)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

func (r *Runner) State() State {
	return r.machine.State()
}

// Remaining is the advisory game countdown for display.
func (r *Runner) Remaining() int {
	return r.countdown.Remaining()
}

// SessionRemaining is the advisory session countdown. Only master runners
// track it.
func (r *Runner) SessionRemaining() int {
	return r.session.Remaining()
}

// Last returns the most recent authoritative observation.
func (r *Runner) Last() Observation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Nudge asks for an immediate heartbeat, e.g. on visibility regain or a push hint.
func (r *Runner) Nudge() {
	select {
	case r.nudgeCh <- struct{}{}:
	default:
	}
}

// Probe checks whether a session exists and, with a stored token, verifies it
// with a heartbeat.
func (r *Runner) Probe(ctx context.Context) error {
	active, err := r.endpoint.CheckSession(ctx)
	if err != nil {
		return fmt.Errorf("failed to probe session: %w", err)
	}
	token, err := r.tokens.Load()
	if err != nil {
		return err
	}
	r.apply(r.machine.ProbeResult(active, token != ""))
	if r.machine.Verifying() {
		return r.Beat(ctx)
	}
	return nil
}

// Join registers under nickname and stores the new token.
func (r *Runner) Join(ctx context.Context, nickname string) error {
	token, gameActive, err := r.endpoint.Join(ctx, nickname)
	if err != nil {
		return err
	}
	if err := r.tokens.Save(token); err != nil {
		return err
	}
	r.apply(r.machine.Joined(gameActive))
	r.Nudge()
	return nil
}

// Beat sends one heartbeat with the stored token and applies the answer.
func (r *Runner) Beat(ctx context.Context) error {
	token, err := r.tokens.Load()
	if err != nil {
		return err
	}
	if token == "" {
		return nil
	}

	obs, err := r.endpoint.Heartbeat(ctx, token)
	if err != nil {
		r.apply(r.machine.HeartbeatFailed(err))
		return err
	}

	r.mu.Lock()
	r.last = obs
	r.mu.Unlock()

	r.countdown.Reconcile(obs.GameRemainingSeconds, obs.GameActive && !obs.GamePaused)
	if r.config.Master {
		r.session.Reconcile(obs.RemainingSeconds, !obs.Expired)
	}
	r.apply(r.machine.Heartbeat(obs))
	return nil
}

// Run probes, then heartbeats and ticks until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.Probe(ctx); err != nil {
		log.Warn().Err(err).Msg("initial probe failed")
	}

	heartbeat := r.clock.NewTicker(r.config.HeartbeatInterval)
	defer heartbeat.Stop()
	tick := r.clock.NewTicker(r.config.TickInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-heartbeat.Chan():
			r.step(ctx)
		case <-r.nudgeCh:
			r.step(ctx)
		case <-tick.Chan():
			// Local zero is only a reason to ask; the answer decides.
			confirm := r.config.Master && r.machine.State().Active() && r.session.Tick()
			if r.ticking() && r.countdown.Tick() {
				confirm = true
			}
			if confirm {
				r.step(ctx)
			}
		}
	}
}

func (r *Runner) step(ctx context.Context) {
	var err error
	switch r.machine.State() {
	case StateLogin:
		// waiting for the user to join
		return
	case StateLoading, StateNoSession, StateExpired:
		err = r.Probe(ctx)
	default:
		err = r.Beat(ctx)
	}
	if err != nil {
		log.Debug().Err(err).Str("state", string(r.machine.State())).Msg("reconcile step failed")
	}
}

func (r *Runner) ticking() bool {
	r.mu.Lock()
	last := r.last
	r.mu.Unlock()
	return r.machine.State() == StatePlaying && last.GameActive && !last.GamePaused
}

func (r *Runner) apply(t Transition) {
	if t.DiscardToken {
		if err := r.tokens.Clear(); err != nil {
			log.Error().Err(err).Msg("failed to discard token")
		}
	}
	if !t.Changed() {
		return
	}
	log.Info().Str("from", string(t.From)).Str("to", string(t.To)).Msg("client state changed")

	r.mu.Lock()
	fn := r.onChange
	r.mu.Unlock()
	if fn != nil {
		fn(t)
	}
}
