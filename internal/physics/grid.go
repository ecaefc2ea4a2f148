package physics

import (
	"math"

	"github.com/san-kum/cosim/internal/dynamo"
)

// maxGridCells caps the neighbor grid; coarser cells only cost extra checks.
const maxGridCells = 1 << 22

// Grid is a uniform cell index over a fixed box. The cell tables are sized
// once; Build only reorders particle indices, stable by index so neighbor
// visits happen in the same order on every run.
type Grid struct {
	origin Vec3
	cell   float64
	inv    float64
	dims   [3]int
	start  []int32
	fill   []int32
	order  []int32
	cellOf []int32
}

func NewGrid(b dynamo.Bounds, cell float64) *Grid {
	ext := b.Extent()
	var dims [3]int
	for {
		total := 1
		for i := 0; i < 3; i++ {
			dims[i] = int(math.Ceil(ext[i]/cell)) + 1
			total *= dims[i]
		}
		if total <= maxGridCells {
			break
		}
		cell *= 1.25
	}
	n := dims[0] * dims[1] * dims[2]
	return &Grid{
		origin: b.Lower,
		cell:   cell,
		inv:    1 / cell,
		dims:   dims,
		start:  make([]int32, n+1),
		fill:   make([]int32, n),
	}
}

func (g *Grid) CellSize() float64 { return g.cell }

func (g *Grid) coord(p Vec3) [3]int {
	var c [3]int
	for i := 0; i < 3; i++ {
		v := int(math.Floor((p[i] - g.origin[i]) * g.inv))
		if v < 0 {
			v = 0
		} else if v >= g.dims[i] {
			v = g.dims[i] - 1
		}
		c[i] = v
	}
	return c
}

func (g *Grid) index(c [3]int) int {
	return (c[2]*g.dims[1]+c[1])*g.dims[0] + c[0]
}

// Build indexes pos with a counting sort.
func (g *Grid) Build(pos []Vec3) {
	n := len(pos)
	if cap(g.order) < n {
		g.order = make([]int32, n, n+n/2)
		g.cellOf = make([]int32, n, n+n/2)
	}
	g.order, g.cellOf = g.order[:n], g.cellOf[:n]
	for i := range g.start {
		g.start[i] = 0
	}
	for i, p := range pos {
		c := int32(g.index(g.coord(p)))
		g.cellOf[i] = c
		g.start[c+1]++
	}
	for c := 1; c < len(g.start); c++ {
		g.start[c] += g.start[c-1]
	}
	copy(g.fill, g.start[:len(g.fill)])
	for i := range pos {
		c := g.cellOf[i]
		g.order[g.fill[c]] = int32(i)
		g.fill[c]++
	}
}

// Query calls fn for every indexed particle in the cells overlapping the
// sphere of radius r around p. Callers filter by exact distance.
func (g *Grid) Query(p Vec3, r float64, fn func(j int)) {
	lo := g.coord(p.Sub(Vec3{r, r, r}))
	hi := g.coord(p.Add(Vec3{r, r, r}))
	for z := lo[2]; z <= hi[2]; z++ {
		for y := lo[1]; y <= hi[1]; y++ {
			for x := lo[0]; x <= hi[0]; x++ {
				c := g.index([3]int{x, y, z})
				for k := g.start[c]; k < g.start[c+1]; k++ {
					fn(int(g.order[k]))
				}
			}
		}
	}
}
