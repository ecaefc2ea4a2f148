package snapshot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/san-kum/cosim/internal/dynamo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatestBeforePublish(t *testing.T) {
	p := NewPublisher()
	f, ok := p.Latest()
	assert.False(t, ok)
	assert.Nil(t, f)
}

func TestLatestWins(t *testing.T) {
	p := NewPublisher()
	for i := uint64(0); i < 3; i++ {
		require.NoError(t, p.Publish(&Frame{Step: i}))
	}
	f, err := p.Next(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), f.Step)
	assert.Equal(t, uint64(3), f.Generation)
	assert.Equal(t, uint64(3), p.Generation())
}

func TestNextWaitsForNewer(t *testing.T) {
	p := NewPublisher()
	require.NoError(t, p.Publish(&Frame{Step: 0}))

	got := make(chan *Frame, 1)
	go func() {
		f, err := p.Next(context.Background(), 1)
		assert.NoError(t, err)
		got <- f
	}()

	select {
	case <-got:
		t.Fatal("Next returned before a newer frame existed")
	case <-time.After(20 * time.Millisecond):
	}
	require.NoError(t, p.Publish(&Frame{Step: 1}))
	select {
	case f := <-got:
		assert.Equal(t, uint64(1), f.Step)
	case <-time.After(time.Second):
		t.Fatal("reader was not woken")
	}
}

func TestNextCancelled(t *testing.T) {
	p := NewPublisher()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Next(ctx, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCloseSemantics(t *testing.T) {
	p := NewPublisher()
	p.Close()
	_, err := p.Next(context.Background(), 0)
	assert.ErrorIs(t, err, dynamo.ErrNoSnapshot)

	p = NewPublisher()
	require.NoError(t, p.Publish(&Frame{Step: 5}))
	p.Close()
	p.Close()
	assert.True(t, p.Closed())
	assert.ErrorIs(t, p.Publish(&Frame{Step: 6}), dynamo.ErrStopped)

	f, err := p.Next(context.Background(), 1)
	assert.ErrorIs(t, err, dynamo.ErrStopped)
	require.NotNil(t, f)
	assert.Equal(t, uint64(5), f.Step, "last frame is final")
}

func TestCloseWakesWaiters(t *testing.T) {
	p := NewPublisher()
	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = p.Next(context.Background(), 0)
		}(i)
	}
	time.Sleep(10 * time.Millisecond)
	p.Close()
	wg.Wait()
	for _, err := range errs {
		assert.ErrorIs(t, err, dynamo.ErrNoSnapshot)
	}
}

func TestConcurrentReaders(t *testing.T) {
	p := NewPublisher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var gen, step uint64
			for {
				f, err := p.Next(ctx, gen)
				if err != nil {
					return
				}
				assert.Greater(t, f.Generation, gen)
				if gen > 0 {
					assert.GreaterOrEqual(t, f.Step, step)
				}
				gen, step = f.Generation, f.Step
			}
		}()
	}
	for i := uint64(0); i < 1000; i++ {
		require.NoError(t, p.Publish(&Frame{Step: i}))
	}
	p.Close()
	wg.Wait()
}

func TestFrameHelpers(t *testing.T) {
	f := &Frame{
		Domains: []DomainFrame{
			{Kind: dynamo.KindSPH, Positions: make([]Vec3, 3)},
			{Kind: dynamo.KindMPM, Positions: make([]Vec3, 2)},
		},
		Surfaces: map[dynamo.ID]dynamo.Surface{1: {Color: dynamo.Color{1, 0, 0, 1}, VisMode: dynamo.VisParticle}},
	}
	assert.Equal(t, 5, f.ParticleCount())
	d, ok := f.Domain(dynamo.KindMPM)
	require.True(t, ok)
	assert.Len(t, d.Positions, 2)
	_, ok = f.Domain(dynamo.KindPBD)
	assert.False(t, ok)
	assert.Equal(t, dynamo.Color{1, 0, 0, 1}, f.SurfaceOf(1).Color)
	assert.Equal(t, dynamo.DefaultSurface(), f.SurfaceOf(9))
}
