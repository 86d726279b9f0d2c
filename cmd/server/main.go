package main

import (
	"context"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"levelforge/internal/book"
	"levelforge/internal/net"
	"levelforge/internal/sweep"
)

// main wires the TCP order-entry transport onto a single-instrument book,
// with a background sweeper retiring expired GTD/Day orders. Tick is
// advanced off the wall clock here only because this binary has nowhere
// else to source one — the engine itself takes ticks purely as caller
// input (spec §3).
func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	b := book.New("DEMO")

	var tick atomic.Uint64
	go func() {
		start := time.Now()
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				tick.Store(uint64(now.Sub(start).Milliseconds()))
			}
		}
	}()
	now := func() uint64 { return tick.Load() }

	sweeper := sweep.New(time.Second, now, b)
	go func() {
		if err := sweeper.Run(ctx); err != nil {
			log.Error().Err(err).Msg("sweeper exited with error")
		}
	}()

	srv := net.New("0.0.0.0", 9001, b, now)
	go srv.Run(ctx)

	<-ctx.Done()
}
