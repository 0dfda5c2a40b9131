package appointment

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// DefaultSweepInterval matches the one-second clock sampling of the ledger.
const DefaultSweepInterval = time.Second

// Sweeper periodically completes appointments whose bed allocation lapsed.
// It keeps no state between ticks.
type Sweeper struct {
	ledger   *Ledger
	clock    clockwork.Clock
	interval time.Duration
	log      *zap.Logger
}

func NewSweeper(ledger *Ledger, clock clockwork.Clock, interval time.Duration, log *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{
		ledger:   ledger,
		clock:    clock,
		interval: interval,
		log:      log,
	}
}

// Run sweeps once immediately, then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	s.runOnce(ctx)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("expiry sweeper stopped")
			return
		case <-ticker.Chan():
			s.runOnce(ctx)
		}
	}
}

// Start runs the sweeper in the background. The returned stop function
// cancels it and waits until the loop has exited.
func (s *Sweeper) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Run(ctx)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	now := s.clock.Now()
	if n := s.ledger.SweepExpired(ctx, now); n > 0 {
		s.log.Info("expired bed allocations released", zap.Int("count", n), zap.Time("now", now))
	}
}
