// Package workerpool provides a tomb-supervised, fixed-size pool of
// goroutines draining a task channel, the same pattern the order-entry
// transport uses to bound the number of connections served concurrently.
package workerpool

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const defaultTaskChanSize = 100

// WorkFunc is the per-task unit of work. A non-nil error from WorkFunc is
// fatal to the tomb supervising the pool.
type WorkFunc = func(t *tomb.Tomb, task any) error

// Pool is a fixed-size pool of workers pulling tasks off a shared channel.
type Pool struct {
	size  int
	tasks chan any
	work  WorkFunc
}

// New returns a Pool sized for size concurrent workers.
func New(size int) Pool {
	return Pool{
		tasks: make(chan any, defaultTaskChanSize),
		size:  size,
	}
}

// AddTask enqueues a task for a worker to pick up.
func (p *Pool) AddTask(task any) {
	p.tasks <- task
}

// Setup starts size workers under t, each pulling tasks off the shared
// queue until t dies. A task that re-enqueues itself (the transport server
// does this for a connection expecting more messages) is simply seen again
// by whichever worker dequeues it next.
func (p *Pool) Setup(t *tomb.Tomb, work WorkFunc) {
	p.work = work
	log.Info().Int("size", p.size).Msg("starting worker pool")
	for i := 0; i < p.size; i++ {
		t.Go(func() error {
			return p.runLoop(t)
		})
	}
}

func (p *Pool) runLoop(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case task := <-p.tasks:
			if err := p.work(t, task); err != nil {
				log.Error().Err(err).Msg("worker exiting")
				return err
			}
		}
	}
}
