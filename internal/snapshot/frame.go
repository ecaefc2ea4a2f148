// Package snapshot hands immutable frames from the stepping goroutine to
// any number of readers.
package snapshot

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/cosim/internal/dynamo"
)

type Vec3 = dynamo.Vec3

type DomainFrame struct {
	Kind       dynamo.DomainKind `json:"kind"`
	Positions  []Vec3            `json:"positions"`
	Velocities []Vec3            `json:"velocities"`
	Owners     []dynamo.ID       `json:"owners"`
}

// BodyFrame.HalfExtent is zero along unbounded axes.
type BodyFrame struct {
	Entity     dynamo.ID  `json:"entity"`
	Shape      string     `json:"shape"`
	Pos        Vec3       `json:"pos"`
	Rot        mgl64.Quat `json:"rot"`
	Vel        Vec3       `json:"vel"`
	HalfExtent Vec3       `json:"half_extent"`
	Fixed      bool       `json:"fixed"`
}

type CameraFrame struct {
	Index  int        `json:"index"`
	Res    [2]int     `json:"res"`
	Pos    Vec3       `json:"pos"`
	LookAt Vec3       `json:"lookat"`
	Up     Vec3       `json:"up"`
	Fov    float64    `json:"fov"`
	View   mgl64.Mat4 `json:"view"`
	Proj   mgl64.Mat4 `json:"proj"`
}

// Frame is the world state after one outer step. It is never modified
// once published.
type Frame struct {
	Step       uint64                       `json:"step"`
	Time       float64                      `json:"time"`
	Generation uint64                       `json:"generation"`
	Domains    []DomainFrame                `json:"domains"`
	Bodies     []BodyFrame                  `json:"bodies"`
	Cameras    []CameraFrame                `json:"cameras"`
	Counters   dynamo.Counters              `json:"counters"`
	Surfaces   map[dynamo.ID]dynamo.Surface `json:"surfaces"`
}

func (f *Frame) Domain(k dynamo.DomainKind) (*DomainFrame, bool) {
	for i := range f.Domains {
		if f.Domains[i].Kind == k {
			return &f.Domains[i], true
		}
	}
	return nil, false
}

func (f *Frame) ParticleCount() int {
	n := 0
	for _, d := range f.Domains {
		n += len(d.Positions)
	}
	return n
}

// SurfaceOf returns the surface of the particle's owner, or the default
// surface for unknown owners.
func (f *Frame) SurfaceOf(owner dynamo.ID) dynamo.Surface {
	if s, ok := f.Surfaces[owner]; ok {
		return s
	}
	return dynamo.DefaultSurface()
}
