package scene

import (
	"math"

	"github.com/san-kum/cosim/internal/physics"
	"github.com/san-kum/cosim/internal/snapshot"
)

// frame copies the current world state. Nothing in the result aliases
// solver memory.
func (s *Scene) frame() *snapshot.Frame {
	f := &snapshot.Frame{
		Step:     s.step,
		Time:     s.time,
		Counters: s.Counters(),
		Surfaces: s.surfaces,
	}
	for _, d := range s.domains {
		switch d := d.(type) {
		case physics.ParticleSolver:
			p := d.Particles()
			f.Domains = append(f.Domains, snapshot.DomainFrame{
				Kind:       d.Kind(),
				Positions:  append([]physics.Vec3(nil), p.Pos...),
				Velocities: append([]physics.Vec3(nil), p.Vel...),
				Owners:     append(p.Owner[:0:0], p.Owner...),
			})
		case physics.BodySolver:
			for i := 0; i < d.NumBodies(); i++ {
				b := d.Body(i)
				f.Bodies = append(f.Bodies, snapshot.BodyFrame{
					Entity:     b.Entity,
					Shape:      b.Morph.Shape.Name(),
					Pos:        b.Morph.Pos,
					Rot:        b.Morph.Rotation(),
					Vel:        b.Vel,
					HalfExtent: finiteExtent(b.Morph.Shape.HalfExtent()),
					Fixed:      b.Fixed(),
				})
			}
		}
	}
	for i, c := range s.cameras {
		f.Cameras = append(f.Cameras, c.Frame(i))
	}
	return f
}

// finiteExtent zeroes the unbounded axes so frames stay JSON encodable.
func finiteExtent(h physics.Vec3) physics.Vec3 {
	for i := range h {
		if math.IsInf(h[i], 0) {
			h[i] = 0
		}
	}
	return h
}
