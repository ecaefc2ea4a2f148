package dynamo

// Counters tallies conditions that are absorbed locally instead of being
// reported as errors.
type Counters struct {
	// EmissionRefused counts emit requests that hit the particle cap.
	EmissionRefused uint64 `json:"emission_refused"`
	// SpawnDropped counts emitted particles that would start outside bounds.
	SpawnDropped uint64 `json:"spawn_dropped"`
	// BoundsClamped counts particles pushed back inside their domain.
	BoundsClamped uint64 `json:"bounds_clamped"`
	// CouplingDegenerate counts contacts resolved as zero impulse.
	CouplingDegenerate uint64 `json:"coupling_degenerate"`
	// VelocityClamped counts particles whose coupled speed hit the limit.
	VelocityClamped uint64 `json:"velocity_clamped"`
	Contacts        uint64 `json:"contacts"`
}

func (c *Counters) Add(o Counters) {
	c.EmissionRefused += o.EmissionRefused
	c.SpawnDropped += o.SpawnDropped
	c.BoundsClamped += o.BoundsClamped
	c.CouplingDegenerate += o.CouplingDegenerate
	c.VelocityClamped += o.VelocityClamped
	c.Contacts += o.Contacts
}

// Absorbed reports the conditions worth logging; Contacts is steady state.
func (c Counters) Absorbed() uint64 {
	return c.EmissionRefused + c.SpawnDropped + c.BoundsClamped + c.CouplingDegenerate + c.VelocityClamped
}
