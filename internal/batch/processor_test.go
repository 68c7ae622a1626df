package batch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProcessor_Run(t *testing.T) {
	t.Run("processes every item within the worker limit", func(t *testing.T) {
		p := NewProcessor(3)
		var active, maxActive, done int32

		err := p.Run(context.Background(), 20, func(ctx context.Context, i int) error {
			cur := atomic.AddInt32(&active, 1)
			for {
				prev := atomic.LoadInt32(&maxActive)
				if cur <= prev || atomic.CompareAndSwapInt32(&maxActive, prev, cur) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			atomic.AddInt32(&done, 1)
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, int32(20), atomic.LoadInt32(&done))
		assert.LessOrEqual(t, atomic.LoadInt32(&maxActive), int32(3))
	})

	t.Run("first error is returned and cancels the rest", func(t *testing.T) {
		p := NewProcessor(1)
		boom := errors.New("boom")
		var calls int32

		err := p.Run(context.Background(), 10, func(ctx context.Context, i int) error {
			atomic.AddInt32(&calls, 1)
			if i == 2 {
				return boom
			}
			return nil
		})

		assert.ErrorIs(t, err, boom)
		assert.Less(t, atomic.LoadInt32(&calls), int32(10))
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := NewProcessor(2).Run(ctx, 5, func(ctx context.Context, i int) error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("no items", func(t *testing.T) {
		assert.NoError(t, NewProcessor(2).Run(context.Background(), 0, nil))
	})
}
