package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tomb "gopkg.in/tomb.v2"
)

func TestPool_SetupDrainsAllTasks(t *testing.T) {
	p := New(4)
	var processed atomic.Int64

	tb, _ := tomb.WithContext(context.Background())
	go p.Setup(tb, func(_ *tomb.Tomb, task any) error {
		n, ok := task.(int)
		require.True(t, ok)
		processed.Add(int64(n))
		return nil
	})

	for i := 1; i <= 10; i++ {
		p.AddTask(i)
	}

	require.Eventually(t, func() bool {
		return processed.Load() == 55
	}, time.Second, time.Millisecond)

	tb.Kill(nil)
}

func TestPool_WorkerErrorKillsTomb(t *testing.T) {
	p := New(2)
	boom := errors.New("boom")

	tb, _ := tomb.WithContext(context.Background())
	go p.Setup(tb, func(_ *tomb.Tomb, task any) error {
		return boom
	})

	p.AddTask(1)

	select {
	case <-tb.Dead():
		assert.ErrorIs(t, tb.Err(), boom)
	case <-time.After(time.Second):
		t.Fatal("tomb never died after worker error")
	}
}
