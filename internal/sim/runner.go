package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/san-kum/cosim/internal/dynamo"
	"golang.org/x/sync/errgroup"
)

type Runner struct {
	scene     Stepper
	scripts   []Script
	consumers []Consumer
	metrics   []Metric
	logger    *log.Logger
}

func New(s Stepper, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Runner{scene: s, logger: logger}
}

func (r *Runner) AddScript(s Script)     { r.scripts = append(r.scripts, s) }
func (r *Runner) AddConsumer(c Consumer) { r.consumers = append(r.consumers, c) }
func (r *Runner) AddMetric(m Metric)     { r.metrics = append(r.metrics, m) }

// Run steps the scene until cfg.Steps are done, a consumer fails or ctx is
// cancelled. The scene is stopped on return in every case, which releases
// the consumers. A scene stopped from elsewhere ends the run normally.
func (r *Runner) Run(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.Steps < 0 {
		return nil, &dynamo.ConfigError{Field: "steps", Reason: fmt.Sprintf("must be >= 0, got %d", cfg.Steps)}
	}
	for _, m := range r.metrics {
		m.Reset()
	}

	pub := r.scene.Publisher()
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range r.consumers {
		g.Go(func() error { return c(gctx, pub) })
	}

	start := time.Now()
	first := r.scene.StepIndex()
	g.Go(func() error {
		defer r.scene.Stop()
		return r.loop(gctx, cfg)
	})
	err := g.Wait()

	res := &Result{
		Steps:   r.scene.StepIndex() - first,
		Elapsed: time.Since(start),
		Metrics: make(map[string]float64, len(r.metrics)),
	}
	res.Last, _ = pub.Latest()
	for _, m := range r.metrics {
		res.Metrics[m.Name()] = m.Value()
	}
	r.logger.Info("run finished",
		"steps", res.Steps,
		"elapsed", res.Elapsed.Round(time.Millisecond),
		"steps_per_sec", fmt.Sprintf("%.1f", res.StepsPerSecond()),
	)

	if err != nil {
		return res, err
	}
	return res, ctx.Err()
}

func (r *Runner) loop(ctx context.Context, cfg Config) error {
	var tick <-chan time.Time
	if cfg.Pace > 0 {
		t := time.NewTicker(cfg.Pace)
		defer t.Stop()
		tick = t.C
	}
	pub := r.scene.Publisher()

	for i := 0; cfg.Steps == 0 || i < cfg.Steps; i++ {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if tick != nil && i > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		}

		idx := r.scene.StepIndex()
		for _, s := range r.scripts {
			if err := s(idx); err != nil {
				return fmt.Errorf("script at step %d: %w", idx, err)
			}
		}
		if err := r.scene.Step(); err != nil {
			if errors.Is(err, dynamo.ErrStopped) {
				return nil
			}
			return err
		}
		if len(r.metrics) > 0 {
			f, _ := pub.Latest()
			for _, m := range r.metrics {
				m.Observe(f)
			}
		}
	}
	return nil
}
