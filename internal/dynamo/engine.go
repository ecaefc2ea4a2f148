package dynamo

import (
	"io"
	"math/rand"
	"os"

	"github.com/charmbracelet/log"
	"github.com/san-kum/cosim/internal/compute"
)

type EngineOptions struct {
	Seed     int64
	Backend  string
	LogLevel string
	LogOut   io.Writer
}

// Engine holds the choices made once before any scene exists. Scenes take
// it by reference so several can run side by side without shared globals.
type Engine struct {
	Seed    int64
	Backend compute.Backend
	Logger  *log.Logger
}

func NewEngine(opts EngineOptions) (*Engine, error) {
	out := opts.LogOut
	if out == nil {
		out = os.Stderr
	}
	logger := log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		Prefix:          "cosim",
	})
	if opts.LogLevel != "" {
		lvl, err := log.ParseLevel(opts.LogLevel)
		if err != nil {
			return nil, &ConfigError{Field: "logging_level", Reason: err.Error()}
		}
		logger.SetLevel(lvl)
	}

	backend, fellBack, err := compute.Select(opts.Backend)
	if err != nil {
		return nil, &ConfigError{Field: "backend", Reason: err.Error()}
	}
	if fellBack {
		logger.Warn("accelerator unavailable, using cpu", "requested", opts.Backend)
	}
	logger.Debug("engine initialized", "seed", opts.Seed, "backend", backend.Name())

	return &Engine{Seed: opts.Seed, Backend: backend, Logger: logger}, nil
}

// Replica shares the backend and logger under a different seed.
func (e *Engine) Replica(i int, seed int64) *Engine {
	return &Engine{Seed: seed, Backend: e.Backend, Logger: e.Logger.With("replica", i)}
}

// Rand returns a fresh generator seeded from the engine seed.
func (e *Engine) Rand() *rand.Rand {
	return rand.New(rand.NewSource(e.Seed))
}

func (e *Engine) Close() {
	e.Backend.Cleanup()
}
