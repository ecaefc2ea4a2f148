package sim

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Ensemble runs independent replicas of a scenario side by side. Each
// replica gets its own engine and scene from build, so nothing is shared.
type Ensemble struct {
	build func(replica int) (*Runner, error)
	n     int
	limit int
}

func NewEnsemble(n int, build func(replica int) (*Runner, error)) *Ensemble {
	return &Ensemble{build: build, n: n, limit: runtime.GOMAXPROCS(0)}
}

// SetLimit caps the replicas running at once.
func (e *Ensemble) SetLimit(n int) {
	if n > 0 {
		e.limit = n
	}
}

func (e *Ensemble) Run(ctx context.Context, cfg Config) ([]*Result, error) {
	results := make([]*Result, e.n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.limit)
	for i := 0; i < e.n; i++ {
		g.Go(func() error {
			r, err := e.build(i)
			if err != nil {
				return err
			}
			results[i], err = r.Run(gctx, cfg)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
