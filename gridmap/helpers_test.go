package gridmap

import (
	"testing"
)

type stubAction struct{ cost int }

func (a stubAction) Execute(agent Transform, from *Cell, to Positioned, onComplete func()) {
	agent.SetPosition(to.Position())
	if onComplete != nil {
		onComplete()
	}
}

func (a stubAction) ActionCost(from, to Vector3) int { return a.cost }

type stubRequester struct {
	attrs   AttributeMask
	radius  float64
	results []*PathResult
}

func (r *stubRequester) Attributes() AttributeMask { return r.attrs }
func (r *stubRequester) Radius() float64           { return r.radius }

func (r *stubRequester) ConsumePathResult(res *PathResult) { r.results = append(r.results, res) }

func newTestGrid(t testing.TB, name string, origin Vector3, cols, rows int) *Grid {
	t.Helper()
	m := NewCellMatrix(MatrixConfig{Origin: origin, Columns: cols, Rows: rows, CellSize: 1}, BakeSources{})
	return NewGrid(name, m, GridOptions{SectionSize: 5, SectionOverlap: 1})
}

func cellBounds(x, z int) Bounds {
	return Bounds{MinX: float64(x), MinZ: float64(z), MaxX: float64(x + 1), MaxZ: float64(z + 1)}
}
