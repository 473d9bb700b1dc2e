package gpu

import (
	"context"
	"time"

	"codeberg.org/mutker/nvidiapl/internal/logger"
)

// DefaultPollInterval is the stats refresh interval
const DefaultPollInterval = 2 * time.Second

// Poller reads stats on a fixed interval and publishes each successful
// reading. A failed reading is logged and skipped, so consumers keep their
// previous values.
type Poller struct {
	reader   Reader
	interval time.Duration
	logger   logger.Logger
	samples  chan Stats
}

func NewPoller(reader Reader, interval time.Duration, log logger.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Poller{
		reader:   reader,
		interval: interval,
		logger:   log,
		samples:  make(chan Stats, 1),
	}
}

// Samples returns the channel readings are published on. It is closed when
// Run returns.
func (p *Poller) Samples() <-chan Stats {
	return p.samples
}

// Run polls immediately and then on every tick until ctx is cancelled
func (p *Poller) Run(ctx context.Context) {
	defer close(p.samples)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// Poll performs a single stats query
func (p *Poller) Poll(ctx context.Context) (Stats, error) {
	return p.reader.Stats(ctx)
}

func (p *Poller) tick(ctx context.Context) {
	stats, err := p.Poll(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Debug().Err(err).Msg("Stats poll failed")
		}
		return
	}

	p.publish(stats)
}

// publish replaces an unread reading so the consumer always sees the latest
func (p *Poller) publish(stats Stats) {
	for {
		select {
		case p.samples <- stats:
			return
		default:
		}

		select {
		case <-p.samples:
		default:
		}
	}
}
