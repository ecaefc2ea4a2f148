package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for scene and solver operations.
var (
	// ErrConfiguration indicates malformed bounds, timestep, substeps or an
	// unbuildable morph. Raised at build time and never recovered.
	ErrConfiguration = errors.New("dynamo: invalid configuration")

	// ErrNotBuilt indicates stepping, advancing or emitting before Build.
	ErrNotBuilt = errors.New("dynamo: scene not built")

	// ErrAlreadyBuilt indicates adding entities or emitters after Build.
	ErrAlreadyBuilt = errors.New("dynamo: scene already built")

	// ErrStopped indicates the scene was stopped; the last published
	// snapshot is final.
	ErrStopped = errors.New("dynamo: scene stopped")

	// ErrNoSnapshot indicates a consumer read a stopped publisher that never
	// published a frame.
	ErrNoSnapshot = errors.New("dynamo: no snapshot was ever published")

	// ErrInvalidState indicates a solver produced NaN or Inf.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")
)

// ConfigError names the offending field of a rejected configuration.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("dynamo: invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}

// SimulationError wraps an error with simulation context.
type SimulationError struct {
	Domain  DomainKind
	Step    uint64
	Time    float64
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.6f) %s: %v", e.Step, e.Time, e.Domain, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
