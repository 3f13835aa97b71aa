// Package netmon tracks connectivity to the remote order service and runs a
// circuit breaker over every outbound call.
package netmon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/exp/slog"
)

// ErrUnavailable is returned by Do when the transport is offline or the
// circuit breaker is open; the call is never attempted.
var ErrUnavailable = errors.New("network unavailable or circuit breaker open")

// Prober performs a lightweight reachability check against the remote
// service. Implemented by the remote HTTP client.
type Prober interface {
	Ping(ctx context.Context) error
}

type Config struct {
	FailureThreshold int
	Cooldown         time.Duration
	ProbeInterval    time.Duration
	ProbeTimeout     time.Duration
	BreakerInterval  time.Duration
	CallTimeout      time.Duration
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		Cooldown:         60 * time.Second,
		ProbeInterval:    30 * time.Second,
		ProbeTimeout:     5 * time.Second,
		BreakerInterval:  10 * time.Second,
		CallTimeout:      10 * time.Second,
	}
}

// Status is a snapshot of the connection state, exposed for the
// online/offline indicator.
type Status struct {
	Online              bool      `json:"online"`
	BreakerOpen         bool      `json:"breaker_open"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastSuccess         time.Time `json:"last_success"`
}

type Monitor struct {
	cfg    Config
	log    *slog.Logger
	prober Prober
	cron   *cron.Cron

	mu                  sync.Mutex
	online              bool
	breakerOpen         bool
	consecutiveFailures int
	lastSuccess         time.Time
	subs                []func(online bool)

	now func() time.Time
}

func New(prober Prober, cfg Config, log *slog.Logger) *Monitor {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 60 * time.Second
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}

	return &Monitor{
		cfg:    cfg,
		log:    log.With("component", "netmon"),
		prober: prober,
		cron:   cron.New(),
		now:    time.Now,
	}
}

// Start schedules the periodic reachability probe and the breaker cool-down
// check, and fires one immediate probe to settle the initial state.
func (m *Monitor) Start() error {
	if m.cfg.ProbeInterval > 0 {
		spec := fmt.Sprintf("@every %s", m.cfg.ProbeInterval)
		if _, err := m.cron.AddFunc(spec, m.probe); err != nil {
			return fmt.Errorf("schedule probe: %w", err)
		}
	}
	if m.cfg.BreakerInterval > 0 {
		spec := fmt.Sprintf("@every %s", m.cfg.BreakerInterval)
		if _, err := m.cron.AddFunc(spec, m.checkBreaker); err != nil {
			return fmt.Errorf("schedule breaker check: %w", err)
		}
	}
	m.cron.Start()

	go m.probe()
	return nil
}

func (m *Monitor) Stop() {
	m.cron.Stop()
}

// Subscribe registers a callback invoked on every raw online/offline
// transition. The callback runs outside the monitor's lock.
func (m *Monitor) Subscribe(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// SetOnline feeds the raw transport signal. A transition notifies every
// subscriber; steady state is silent.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	subs := m.subs
	m.mu.Unlock()

	if !changed {
		return
	}
	m.log.Info("connectivity changed", "online", online)
	for _, fn := range subs {
		fn(online)
	}
}

func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// CanMakeAPICall reports whether an outbound call may be attempted right now.
func (m *Monitor) CanMakeAPICall() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online && !m.breakerOpen
}

// ReportSuccess records a successful outbound call: failures reset, the
// breaker closes and the success time is stamped.
func (m *Monitor) ReportSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consecutiveFailures = 0
	m.lastSuccess = m.now()
	if m.breakerOpen {
		m.breakerOpen = false
		m.log.Info("circuit breaker closed after successful request")
	}
}

// ReportFailure records a failed outbound call and opens the breaker once
// the consecutive-failure threshold is reached.
func (m *Monitor) ReportFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consecutiveFailures++
	if m.consecutiveFailures >= m.cfg.FailureThreshold && !m.breakerOpen {
		m.breakerOpen = true
		m.log.Warn("circuit breaker opened", "consecutive_failures", m.consecutiveFailures)
	}
}

// Do wraps an outbound call: it refuses to attempt the call while blocked,
// applies the timeout and reports the outcome. A timeout counts as a
// transport failure and feeds the breaker.
func (m *Monitor) Do(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if !m.CanMakeAPICall() {
		return ErrUnavailable
	}
	if timeout <= 0 {
		timeout = m.cfg.CallTimeout
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := fn(cctx); err != nil {
		m.ReportFailure()
		return err
	}
	m.ReportSuccess()
	return nil
}

func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Online:              m.online,
		BreakerOpen:         m.breakerOpen,
		ConsecutiveFailures: m.consecutiveFailures,
		LastSuccess:         m.lastSuccess,
	}
}

// probe runs the reachability check independently of the breaker so the
// monitor can recover state even while calls are blocked. Its outcome feeds
// both the breaker counters and the raw online signal.
func (m *Monitor) probe() {
	if m.prober == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ProbeTimeout)
	defer cancel()

	if err := m.prober.Ping(ctx); err != nil {
		m.log.Debug("reachability probe failed", "error", err)
		m.ReportFailure()
		m.SetOnline(false)
		return
	}
	m.ReportSuccess()
	m.SetOnline(true)
}

// checkBreaker closes an open breaker once the cool-down window has elapsed
// since the last successful request. The close is purely time-based; no
// fresh probe is required first.
func (m *Monitor) checkBreaker() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.breakerOpen {
		return
	}
	if m.now().Sub(m.lastSuccess) > m.cfg.Cooldown {
		m.breakerOpen = false
		m.consecutiveFailures = 0
		m.log.Info("circuit breaker closed after cool-down")
	}
}
