// Package timer provides the periodic physical timer that drives guest
// timer ticks.
package timer

import (
	"log/slog"

	"github.com/sarchlab/hyparm/fault"
)

// DefaultPeriod is the number of cycles between ticks when none is set.
const DefaultPeriod = 1000

// Sink receives a tick for the timer's physical interrupt line.
type Sink func(irq int) error

// Stats holds timer statistics.
type Stats struct {
	// Cycles is the number of cycles counted while enabled.
	Cycles uint64
	// Fired is the number of ticks delivered to the sink.
	Fired uint64
}

// Periodic fires its sink every period cycles while enabled.
type Periodic struct {
	irq     int
	period  uint64
	elapsed uint64
	enabled bool
	sink    Sink
	logger  *slog.Logger
	stats   Stats
}

// Option configures a Periodic timer.
type Option func(*Periodic)

// WithPeriod sets the number of cycles between ticks.
func WithPeriod(cycles uint64) Option {
	return func(p *Periodic) {
		p.period = cycles
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Periodic) {
		p.logger = l
	}
}

// New creates a disabled timer on physical line irq that reports to sink.
func New(irq int, sink Sink, opts ...Option) (*Periodic, error) {
	p := &Periodic{
		irq:    irq,
		period: DefaultPeriod,
		sink:   sink,
		logger: slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.period == 0 {
		return nil, fault.Config("timer", "period must be positive")
	}
	if sink == nil {
		return nil, fault.Config("timer", "no sink for irq %d", irq)
	}

	return p, nil
}

// IRQ returns the physical interrupt line.
func (p *Periodic) IRQ() int { return p.irq }

// Period returns the number of cycles between ticks.
func (p *Periodic) Period() uint64 { return p.period }

// Enable starts counting. The count restarts from zero.
func (p *Periodic) Enable() {
	if p.enabled {
		return
	}
	p.enabled = true
	p.elapsed = 0
	p.logger.Debug("timer enabled", "irq", p.irq, "period", p.period)
}

// Disable stops counting.
func (p *Periodic) Disable() {
	p.enabled = false
	p.logger.Debug("timer disabled", "irq", p.irq)
}

// Enabled reports whether the timer is counting.
func (p *Periodic) Enabled() bool { return p.enabled }

// Fired returns the number of ticks delivered.
func (p *Periodic) Fired() uint64 { return p.stats.Fired }

// Stats returns timer statistics.
func (p *Periodic) Stats() Stats { return p.stats }

// Tick advances the timer by one cycle.
func (p *Periodic) Tick() error {
	if !p.enabled {
		return nil
	}

	p.stats.Cycles++
	p.elapsed++
	if p.elapsed < p.period {
		return nil
	}

	p.elapsed = 0
	p.stats.Fired++
	p.logger.Debug("timer fired", "irq", p.irq, "count", p.stats.Fired)
	return p.sink(p.irq)
}

// RunCycles advances the timer by the given number of cycles, stopping at
// the first sink error.
func (p *Periodic) RunCycles(cycles uint64) error {
	for i := uint64(0); i < cycles; i++ {
		if err := p.Tick(); err != nil {
			return err
		}
	}
	return nil
}

// Reset disables the timer and clears its statistics.
func (p *Periodic) Reset() {
	p.enabled = false
	p.elapsed = 0
	p.stats = Stats{}
}
