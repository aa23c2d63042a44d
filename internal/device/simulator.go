package device

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// LoopState is the phase of the simulation loop.
type LoopState int32

// Loop states.
const (
	StateWaiting LoopState = iota
	StateTicking
)

// String returns the lowercase state name.
func (s LoopState) String() string {
	if s == StateTicking {
		return "ticking"
	}
	return "waiting"
}

// ReadingsListener is called once per tick with the readings it produced.
type ReadingsListener func(readings []Reading)

// SimulatorStats reports loop progress.
type SimulatorStats struct {
	Ticks    uint64        `json:"ticks"`
	LastTick time.Time     `json:"last_tick"`
	Interval time.Duration `json:"interval"`
	State    string        `json:"state"`
}

// Simulator drives the periodic tick over a Registry.
type Simulator struct {
	registry *Registry
	interval time.Duration
	src      Source
	now      func() time.Time
	logger   Logger

	listenersMu sync.RWMutex
	listeners   []ReadingsListener

	state    atomic.Int32
	ticks    atomic.Uint64
	lastTick atomic.Int64
}

// SimulatorOption configures a Simulator.
type SimulatorOption func(*Simulator)

// WithSource sets the random source. Defaults to a time-seeded NewSource.
func WithSource(src Source) SimulatorOption {
	return func(s *Simulator) { s.src = src }
}

// WithClock sets the clock used to stamp samples.
func WithClock(now func() time.Time) SimulatorOption {
	return func(s *Simulator) { s.now = now }
}

// WithLogger sets the simulator logger.
func WithLogger(logger Logger) SimulatorOption {
	return func(s *Simulator) { s.logger = logger }
}

// NewSimulator creates a loop that ticks registry every interval.
func NewSimulator(registry *Registry, interval time.Duration, opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		registry: registry,
		interval: interval,
		now:      time.Now,
		logger:   noopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.src == nil {
		s.src = NewSource(0)
	}
	return s
}

// OnTick registers a listener for tick readings.
func (s *Simulator) OnTick(l ReadingsListener) {
	s.listenersMu.Lock()
	s.listeners = append(s.listeners, l)
	s.listenersMu.Unlock()
}

// Run ticks once immediately and then every interval until ctx is done.
// A late tick fires late; missed ticks are dropped, never queued.
func (s *Simulator) Run(ctx context.Context) {
	s.logger.Info("simulation loop started", "interval", s.interval.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.TickOnce()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("simulation loop stopped", "ticks", s.ticks.Load())
			return
		case <-ticker.C:
			s.TickOnce()
		}
	}
}

// TickOnce performs a single tick and notifies listeners.
func (s *Simulator) TickOnce() []Reading {
	s.state.Store(int32(StateTicking))
	now := s.now()
	readings := s.registry.Tick(s.src, now)
	s.state.Store(int32(StateWaiting))

	s.ticks.Add(1)
	s.lastTick.Store(now.UnixNano())

	s.logger.Debug("tick complete", "readings", len(readings))

	s.listenersMu.RLock()
	listeners := append([]ReadingsListener(nil), s.listeners...)
	s.listenersMu.RUnlock()

	for _, l := range listeners {
		l(readings)
	}
	return readings
}

// Stats returns the tick counter, last tick time and current state.
func (s *Simulator) Stats() SimulatorStats {
	stats := SimulatorStats{
		Ticks:    s.ticks.Load(),
		Interval: s.interval,
		State:    LoopState(s.state.Load()).String(),
	}
	if ns := s.lastTick.Load(); ns != 0 {
		stats.LastTick = time.Unix(0, ns).UTC()
	}
	return stats
}
