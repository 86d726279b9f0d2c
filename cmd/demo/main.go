package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"levelforge/internal/book"
	"levelforge/internal/level"
	"levelforge/internal/sweep"
)

// main wires a single-instrument book with a background expiry sweeper and
// runs a handful of illustrative orders through it. It is a demonstration
// harness, not a server: it wires no transport onto book.Book; cmd/server
// is the binary that serves the book over TCP.
func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	b := book.New("DEMO")

	var tick uint64
	now := func() uint64 { return tick }
	sweeper := sweep.New(time.Second, now, b)

	go func() {
		if err := sweeper.Run(ctx); err != nil {
			log.Error().Err(err).Msg("sweeper exited with error")
		}
	}()

	tick = 1
	if _, err := b.PlaceOrder(level.Descriptor{
		Side:     level.Sell,
		Price:    100,
		Quantity: 10,
		Kind:     level.StandardLimit,
		TIF:      level.TIF{Kind: level.GoodTillCanceled},
	}, tick); err != nil {
		log.Error().Err(err).Msg("failed to add resting sell order")
	}

	tick = 2
	result, err := b.PlaceOrder(level.Descriptor{
		Side:     level.Buy,
		Price:    100,
		Quantity: 7,
		Kind:     level.StandardLimit,
		TIF:      level.TIF{Kind: level.GoodTillCanceled},
	}, tick)
	if err != nil {
		log.Error().Err(err).Msg("failed to place taker order")
	} else {
		log.Info().
			Int("transactions", len(result.Transactions)).
			Uint64("filled", result.FilledQty).
			Uint64("remaining", result.RemainingQty).
			Msg("demo order placed")
	}

	log.Info().Msg("demo running, press ctrl-c to exit")
	<-ctx.Done()
	log.Info().Msg("shutting down")
}
