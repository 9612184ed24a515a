package pathing

import (
	"math/rand"
	"testing"

	"gridnav/gridmap"
)

type testRequester struct {
	attrs   gridmap.AttributeMask
	radius  float64
	results []*gridmap.PathResult
}

func (r *testRequester) Attributes() gridmap.AttributeMask { return r.attrs }
func (r *testRequester) Radius() float64                   { return r.radius }

func (r *testRequester) ConsumePathResult(res *gridmap.PathResult) {
	r.results = append(r.results, res)
}

type fixedCostAction struct{ cost int }

func (a fixedCostAction) Execute(agent gridmap.Transform, from *gridmap.Cell, to gridmap.Positioned, onComplete func()) {
	agent.SetPosition(to.Position())
	if onComplete != nil {
		onComplete()
	}
}

func (a fixedCostAction) ActionCost(from, to gridmap.Vector3) int { return a.cost }

// dijkstraCost 启发值恒为 0, 用作最优代价的参照.
type dijkstraCost struct{ gridmap.DiagonalDistance }

func (dijkstraCost) Heuristic(from, to gridmap.Node) int { return 0 }

func openGrid(t testing.TB, name string, origin gridmap.Vector3, cols, rows int) *gridmap.Grid {
	t.Helper()
	m := gridmap.NewCellMatrix(gridmap.MatrixConfig{Origin: origin, Columns: cols, Rows: rows, CellSize: 1}, gridmap.BakeSources{})
	return gridmap.NewGrid(name, m, gridmap.GridOptions{})
}

func block(g *gridmap.Grid, x, z int) {
	g.Matrix().CellAt(x, z).SetBlocked(true)
}

// randomGrid 约 density 比例的格子被阻挡, 起点和终点格保持可走.
func randomGrid(t testing.TB, seed int64, size int, density float64) *gridmap.Grid {
	t.Helper()
	g := openGrid(t, "rand", gridmap.Vec3(0, 0, 0), size, size)
	rng := rand.New(rand.NewSource(seed))
	for z := 0; z < size; z++ {
		for x := 0; x < size; x++ {
			if (x == 0 && z == 0) || (x == size-1 && z == size-1) {
				continue
			}
			if rng.Float64() < density {
				block(g, x, z)
			}
		}
	}
	return g
}

func request(g *gridmap.Grid, from, to gridmap.Vector3) (*gridmap.PathRequest, *testRequester) {
	rq := &testRequester{}
	req := gridmap.NewPathRequest(from, to, rq)
	req.FromGrid, req.ToGrid = g, g
	return req, rq
}

func run(t testing.TB, e *Engine, req *gridmap.PathRequest) *gridmap.PathResult {
	t.Helper()
	res, err := e.Run(req)
	if err != nil {
		t.Fatalf("run %s: %v", req, err)
	}
	return res
}

// assertWalkablePath 路径上每个点都落在可走格子上(或网格外).
func assertWalkablePath(t testing.TB, g *gridmap.Grid, p *gridmap.Path) {
	t.Helper()
	for _, pt := range p.Points() {
		if c := g.GetCell(pt); c != nil && !c.IsWalkable(gridmap.AttributesNone) {
			t.Fatalf("path point %v lies in blocked cell %v", pt, c)
		}
	}
}
