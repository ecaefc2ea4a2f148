// Package sim drives a scene: one goroutine steps it while consumers read
// the frames it publishes.
package sim

import (
	"context"
	"time"

	"github.com/san-kum/cosim/internal/snapshot"
)

// Stepper is what the run loop needs from a scene.
type Stepper interface {
	Step() error
	Stop()
	StepIndex() uint64
	Publisher() *snapshot.Publisher
}

// Script runs on the stepping goroutine before the step with the given
// index. It may emit particles or otherwise poke the scene.
type Script func(step uint64) error

// Consumer reads frames on its own goroutine. It should return once the
// publisher reports ErrStopped or ctx is done.
type Consumer func(ctx context.Context, pub *snapshot.Publisher) error

type Metric interface {
	Name() string
	Observe(f *snapshot.Frame)
	Value() float64
	Reset()
}

type Config struct {
	// Steps is the number of outer steps; zero runs until cancelled.
	Steps int
	// Pace, when set, spaces steps at least this far apart in wall time.
	Pace time.Duration
}

type Result struct {
	Steps   uint64
	Elapsed time.Duration
	Metrics map[string]float64
	// Last is the final published frame, nil if nothing was published.
	Last *snapshot.Frame
}

func (r *Result) StepsPerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Steps) / r.Elapsed.Seconds()
}
