package sim

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/san-kum/cosim/internal/dynamo"
	"github.com/san-kum/cosim/internal/snapshot"
)

// counter publishes an empty frame per step and fails at step failAt.
type counter struct {
	pub     *snapshot.Publisher
	step    atomic.Uint64
	stopped atomic.Bool
	failAt  uint64
}

func newCounter() *counter { return &counter{pub: snapshot.NewPublisher()} }

func (c *counter) Step() error {
	if c.stopped.Load() {
		return dynamo.ErrStopped
	}
	n := c.step.Load() + 1
	if n == c.failAt {
		return &dynamo.SimulationError{Domain: dynamo.KindSPH, Step: n, Wrapped: dynamo.ErrInvalidState}
	}
	c.step.Store(n)
	return c.pub.Publish(&snapshot.Frame{Step: n})
}

func (c *counter) Stop() {
	c.stopped.Store(true)
	c.pub.Close()
}

func (c *counter) StepIndex() uint64              { return c.step.Load() }
func (c *counter) Publisher() *snapshot.Publisher { return c.pub }

type lastStep struct{ v float64 }

func (m *lastStep) Name() string              { return "last_step" }
func (m *lastStep) Observe(f *snapshot.Frame) { m.v = float64(f.Step) }
func (m *lastStep) Value() float64            { return m.v }
func (m *lastStep) Reset()                    { m.v = -1 }

func TestRunnerSteps(t *testing.T) {
	c := newCounter()
	r := New(c, nil)
	var seen []uint64
	r.AddScript(func(step uint64) error {
		seen = append(seen, step)
		return nil
	})
	r.AddMetric(&lastStep{})

	res, err := r.Run(context.Background(), Config{Steps: 5})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.Steps != 5 {
		t.Errorf("expected 5 steps, got %d", res.Steps)
	}
	if len(seen) != 5 || seen[0] != 0 || seen[4] != 4 {
		t.Errorf("script saw steps %v", seen)
	}
	if res.Metrics["last_step"] != 5 {
		t.Errorf("metric = %v", res.Metrics["last_step"])
	}
	if res.Last == nil || res.Last.Step != 5 {
		t.Errorf("last frame %+v", res.Last)
	}
	if !c.pub.Closed() {
		t.Error("scene must be stopped after the run")
	}
}

func TestRunnerInvalidConfig(t *testing.T) {
	_, err := New(newCounter(), nil).Run(context.Background(), Config{Steps: -1})
	if !errors.Is(err, dynamo.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRunnerScriptError(t *testing.T) {
	c := newCounter()
	r := New(c, nil)
	boom := errors.New("boom")
	r.AddScript(func(step uint64) error {
		if step == 2 {
			return boom
		}
		return nil
	})
	res, err := r.Run(context.Background(), Config{Steps: 10})
	if !errors.Is(err, boom) {
		t.Fatalf("expected script error, got %v", err)
	}
	if res.Steps != 2 {
		t.Errorf("expected 2 steps before the failure, got %d", res.Steps)
	}
}

func TestRunnerSimulationError(t *testing.T) {
	c := newCounter()
	c.failAt = 3
	_, err := New(c, nil).Run(context.Background(), Config{Steps: 10})
	var serr *dynamo.SimulationError
	if !errors.As(err, &serr) || serr.Step != 3 {
		t.Fatalf("expected simulation error at step 3, got %v", err)
	}
	if !errors.Is(err, dynamo.ErrInvalidState) {
		t.Errorf("cause lost: %v", err)
	}
}

func TestRunnerSlowConsumerDoesNotBlock(t *testing.T) {
	c := newCounter()
	r := New(c, nil)
	var frames atomic.Int64
	r.AddConsumer(func(ctx context.Context, pub *snapshot.Publisher) error {
		var gen uint64
		for {
			f, err := pub.Next(ctx, gen)
			if err != nil {
				return nil
			}
			gen = f.Generation
			frames.Add(1)
			time.Sleep(20 * time.Millisecond)
		}
	})

	start := time.Now()
	res, err := r.Run(context.Background(), Config{Steps: 2000})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.Steps != 2000 {
		t.Errorf("expected 2000 steps, got %d", res.Steps)
	}
	if n := frames.Load(); n >= 2000 {
		t.Errorf("slow consumer saw %d frames, expected it to skip", n)
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("stepping waited on the consumer: %v", time.Since(start))
	}
}

func TestRunnerConsumerError(t *testing.T) {
	c := newCounter()
	r := New(c, nil)
	bad := errors.New("sink failed")
	r.AddConsumer(func(ctx context.Context, pub *snapshot.Publisher) error {
		if _, err := pub.Next(ctx, 0); err != nil {
			return nil
		}
		return bad
	})
	_, err := r.Run(context.Background(), Config{})
	if !errors.Is(err, bad) {
		t.Fatalf("expected consumer error, got %v", err)
	}
	if !c.stopped.Load() {
		t.Error("scene still running")
	}
}

func TestRunnerCancel(t *testing.T) {
	c := newCounter()
	r := New(c, nil)
	ctx, cancel := context.WithCancel(context.Background())
	r.AddScript(func(step uint64) error {
		if step == 10 {
			cancel()
		}
		return nil
	})
	res, err := r.Run(ctx, Config{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if res.Steps < 10 || res.Steps > 11 {
		t.Errorf("stepping did not stop promptly: %d steps", res.Steps)
	}
}

func TestRunnerExternalStop(t *testing.T) {
	c := newCounter()
	r := New(c, nil)
	r.AddScript(func(step uint64) error {
		if step == 4 {
			c.Stop()
		}
		return nil
	})
	res, err := r.Run(context.Background(), Config{})
	if err != nil {
		t.Fatalf("external stop is not an error: %v", err)
	}
	if res.Steps != 4 {
		t.Errorf("expected 4 steps, got %d", res.Steps)
	}
}

func TestRunnerPace(t *testing.T) {
	start := time.Now()
	_, err := New(newCounter(), nil).Run(context.Background(), Config{Steps: 4, Pace: 10 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	if el := time.Since(start); el < 25*time.Millisecond {
		t.Errorf("4 paced steps took only %v", el)
	}
}

func TestEnsemble(t *testing.T) {
	var built atomic.Int32
	e := NewEnsemble(4, func(replica int) (*Runner, error) {
		built.Add(1)
		c := newCounter()
		return New(c, nil), nil
	})
	e.SetLimit(2)
	results, err := e.Run(context.Background(), Config{Steps: 7})
	if err != nil {
		t.Fatal(err)
	}
	if built.Load() != 4 || len(results) != 4 {
		t.Fatalf("built %d replicas, %d results", built.Load(), len(results))
	}
	for i, r := range results {
		if r.Steps != 7 {
			t.Errorf("replica %d ran %d steps", i, r.Steps)
		}
	}

	bad := NewEnsemble(3, func(replica int) (*Runner, error) {
		if replica == 1 {
			return nil, &dynamo.ConfigError{Field: "seed", Reason: "bad"}
		}
		return New(newCounter(), nil), nil
	})
	if _, err := bad.Run(context.Background(), Config{Steps: 1}); !errors.Is(err, dynamo.ErrConfiguration) {
		t.Errorf("expected build error, got %v", err)
	}
}
