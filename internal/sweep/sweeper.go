// Package sweep runs the background expiry sweep that periodically retires
// GoodTillDate/Day resting orders, supervised with gopkg.in/tomb.v2 the same
// way the reference server supervises its connection workers.
package sweep

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

// Expirer is anything that can retire due orders given the current tick,
// returning how many it removed. *book.Book satisfies this.
type Expirer interface {
	ExpireBefore(tick uint64) int
}

// TickSource supplies the caller's monotonic millisecond tick (spec §3: the
// engine has no wall-clock authority of its own).
type TickSource func() uint64

// Sweeper periodically calls ExpireBefore on a set of books. It holds no
// lock of its own — Expirer implementations must already be safe for
// concurrent ExpireBefore calls, which book.Book is.
type Sweeper struct {
	books    []Expirer
	interval time.Duration
	now      TickSource

	tomb *tomb.Tomb
	log  zerolog.Logger
}

// New returns a Sweeper that will, once Run is called, call ExpireBefore on
// every book in books every interval.
func New(interval time.Duration, now TickSource, books ...Expirer) *Sweeper {
	return &Sweeper{
		books:    books,
		interval: interval,
		now:      now,
		log:      log.With().Str("component", "sweep").Logger(),
	}
}

// Run starts the sweeper's supervised goroutine and blocks until ctx is
// cancelled or Stop is called. It is safe to call Run exactly once per
// Sweeper.
func (s *Sweeper) Run(ctx context.Context) error {
	t, ctx := tomb.WithContext(ctx)
	s.tomb = t

	t.Go(func() error {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-t.Dying():
				return nil
			case <-ticker.C:
				s.sweepOnce()
			}
		}
	})

	select {
	case <-ctx.Done():
	case <-t.Dying():
	}
	s.tomb.Kill(nil)
	return s.tomb.Wait()
}

// Stop requests the sweeper's goroutine to exit and waits for it to do so.
func (s *Sweeper) Stop() error {
	if s.tomb == nil {
		return nil
	}
	s.tomb.Kill(nil)
	return s.tomb.Wait()
}

func (s *Sweeper) sweepOnce() {
	tick := s.now()
	total := 0
	for _, b := range s.books {
		total += b.ExpireBefore(tick)
	}
	if total > 0 {
		s.log.Debug().Int("count", total).Uint64("tick", tick).Msg("swept expired orders")
	}
}
