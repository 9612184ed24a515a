package direct

import (
	"testing"

	"gridnav/gridmap"
)

type testRequester struct {
	attrs   gridmap.AttributeMask
	results []*gridmap.PathResult
}

func (r *testRequester) Attributes() gridmap.AttributeMask { return r.attrs }
func (r *testRequester) Radius() float64                   { return 0 }

func (r *testRequester) ConsumePathResult(res *gridmap.PathResult) {
	r.results = append(r.results, res)
}

type noopAction struct{}

func (noopAction) Execute(agent gridmap.Transform, from *gridmap.Cell, to gridmap.Positioned, onComplete func()) {
	if onComplete != nil {
		onComplete()
	}
}

func (noopAction) ActionCost(from, to gridmap.Vector3) int { return 1 }

func newWorld(t *testing.T) (*gridmap.Manager, *gridmap.Grid) {
	t.Helper()
	mgr := gridmap.NewManager()
	m := gridmap.NewCellMatrix(gridmap.MatrixConfig{Columns: 10, Rows: 10, CellSize: 1}, gridmap.BakeSources{})
	g := gridmap.NewGrid("main", m, gridmap.GridOptions{})
	if err := mgr.RegisterGrid(g); err != nil {
		t.Fatal(err)
	}
	return mgr, g
}

func resolve(mgr *gridmap.Manager, req *gridmap.PathRequest) *gridmap.PathRequest {
	return New(mgr, nil).Resolve(req)
}

// onlyResult 请求已直接完成, 返回其唯一结果.
func onlyResult(t *testing.T, out *gridmap.PathRequest, rq *testRequester) *gridmap.PathResult {
	t.Helper()
	if out != nil {
		t.Fatalf("request %v handed to search", out)
	}
	if len(rq.results) != 1 {
		t.Fatalf("got %d results, want 1", len(rq.results))
	}
	return rq.results[0]
}

func assertPoints(t *testing.T, p *gridmap.Path, want ...gridmap.Vector3) {
	t.Helper()
	got := p.Points()
	if len(got) != len(want) {
		t.Fatalf("path = %v, want %v", got, want)
	}
	for i := range want {
		if !got[i].ApproxEqual(want[i], 1e-9) {
			t.Fatalf("path = %v, want %v", got, want)
		}
	}
}

func TestBothEndpointsOffGrid(t *testing.T) {
	mgr, _ := newWorld(t)
	from, to := gridmap.Vec3(-20, 0, -20), gridmap.Vec3(-20, 0, 30)

	rq := &testRequester{}
	res := onlyResult(t, resolve(mgr, gridmap.NewPathRequest(from, to, rq)), rq)
	if res.Status != gridmap.StatusComplete {
		t.Fatalf("status = %v", res.Status)
	}
	assertPoints(t, res.Path, from, to)

	rq = &testRequester{}
	req := gridmap.NewPathRequest(from, to, rq)
	req.PreventOffGridNavigation = true
	if res := onlyResult(t, resolve(mgr, req), rq); res.Status != gridmap.StatusNoRouteExists {
		t.Fatalf("prevented: status = %v", res.Status)
	}
}

func TestSameGridPassesThrough(t *testing.T) {
	mgr, g := newWorld(t)
	rq := &testRequester{}
	req := gridmap.NewPathRequest(gridmap.Vec3(1.5, 0, 1.5), gridmap.Vec3(8.5, 0, 8.5), rq)

	out := resolve(mgr, req)
	if out != req {
		t.Fatalf("got %v, want the request back", out)
	}
	if req.FromGrid != g || req.ToGrid != g {
		t.Fatalf("grids not injected: %v %v", req.FromGrid, req.ToGrid)
	}
	if len(rq.results) != 0 {
		t.Fatal("request completed early")
	}
}

func TestBlockedOriginEscape(t *testing.T) {
	mgr, g := newWorld(t)
	g.Matrix().CellAt(5, 5).SetBlocked(true)
	from, to := gridmap.Vec3(5.5, 0, 5.5), gridmap.Vec3(9.5, 0, 9.5)

	rq := &testRequester{}
	req := gridmap.NewPathRequest(from, to, rq)
	req.MaxEscapeCellDistanceIfOriginBlocked = 2
	res := onlyResult(t, resolve(mgr, req), rq)
	if res.Status != gridmap.StatusComplete {
		t.Fatalf("status = %v", res.Status)
	}
	pts := res.Path.Points()
	if len(pts) != 2 || pts[0] != from {
		t.Fatalf("path = %v", pts)
	}
	escape := g.GetCell(pts[1])
	if escape == nil || !escape.IsWalkable(gridmap.AttributesNone) || pts[1].DistXZ(from) > 1 {
		t.Fatalf("escape point %v", pts[1])
	}
	if len(res.PendingWaypoints) != 1 || res.PendingWaypoints[0] != to {
		t.Fatalf("pending = %v", res.PendingWaypoints)
	}
}

func TestBlockedOriginEscapeBounded(t *testing.T) {
	mgr, g := newWorld(t)
	g.SetBlocked(gridmap.Bounds{MinX: 3, MinZ: 3, MaxX: 8, MaxZ: 8}, true)

	tests := []struct {
		name string
		max  int
		want gridmap.PathStatus
	}{
		{name: "zero", max: 0, want: gridmap.StatusNoRouteExists},
		{name: "inside block", max: 2, want: gridmap.StatusNoRouteExists},
		{name: "reaches edge", max: 3, want: gridmap.StatusComplete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rq := &testRequester{}
			req := gridmap.NewPathRequest(gridmap.Vec3(5.5, 0, 5.5), gridmap.Vec3(0.5, 0, 0.5), rq)
			req.MaxEscapeCellDistanceIfOriginBlocked = tt.max
			if res := onlyResult(t, resolve(mgr, req), rq); res.Status != tt.want {
				t.Fatalf("status = %v, want %v", res.Status, tt.want)
			}
		})
	}
}

func TestBlockedOriginEscapeRespectsCliffs(t *testing.T) {
	mgr := gridmap.NewManager()
	cliff := gridmap.HeightSamplerFunc(func(p gridmap.Vector3) float64 {
		if p.X >= 6 {
			return 3
		}
		return 0
	})
	m := gridmap.NewCellMatrix(gridmap.MatrixConfig{Columns: 10, Rows: 10, CellSize: 1}, gridmap.BakeSources{Heights: cliff})
	g := gridmap.NewGrid("main", m, gridmap.GridOptions{})
	if err := mgr.RegisterGrid(g); err != nil {
		t.Fatal(err)
	}
	g.SetBlocked(gridmap.Bounds{MinX: 4, MinZ: 4, MaxX: 7, MaxZ: 7}, true)
	m.CellAt(6, 5).SetBlocked(false)
	if m.CellAt(6, 5).IsWalkableFrom(m.CellAt(5, 5), gridmap.AttributesNone) {
		t.Fatal("cliff cell should not be enterable from the origin")
	}

	for _, tt := range []struct {
		max  int
		want gridmap.PathStatus
	}{
		{max: 1, want: gridmap.StatusNoRouteExists},
		{max: 2, want: gridmap.StatusComplete},
	} {
		rq := &testRequester{}
		req := gridmap.NewPathRequest(gridmap.Vec3(5.5, 0, 5.5), gridmap.Vec3(0.5, 0, 0.5), rq)
		req.MaxEscapeCellDistanceIfOriginBlocked = tt.max
		res := onlyResult(t, resolve(mgr, req), rq)
		if res.Status != tt.want {
			t.Fatalf("max %d: status = %v, want %v", tt.max, res.Status, tt.want)
		}
		if tt.want == gridmap.StatusComplete {
			if end, _ := res.Path.Last(); g.GetCell(end) == m.CellAt(6, 5) {
				t.Fatalf("max %d: escaped up the cliff", tt.max)
			}
		}
	}
}

func TestBlockedDestination(t *testing.T) {
	mgr, g := newWorld(t)
	g.Matrix().CellAt(7, 7).SetBlocked(true)
	from, to := gridmap.Vec3(1.5, 0, 1.5), gridmap.Vec3(7.5, 0, 7.5)

	rq := &testRequester{}
	res := onlyResult(t, resolve(mgr, gridmap.NewPathRequest(from, to, rq)), rq)
	if res.Status != gridmap.StatusDestinationBlocked {
		t.Fatalf("status = %v", res.Status)
	}

	rq = &testRequester{}
	req := gridmap.NewPathRequest(from, to, rq)
	req.NavigateToNearestIfBlocked = true
	if out := resolve(mgr, req); out != req {
		t.Fatalf("nearest-if-blocked request was not handed to search")
	}
}

func TestOffGridStartWithNavigationPrevented(t *testing.T) {
	mgr, _ := newWorld(t)
	rq := &testRequester{}
	req := gridmap.NewPathRequest(gridmap.Vec3(-5, 0, 5), gridmap.Vec3(5.5, 0, 5.5), rq)
	req.PreventOffGridNavigation = true

	if res := onlyResult(t, resolve(mgr, req), rq); res.Status != gridmap.StatusNoRouteExists {
		t.Fatalf("status = %v", res.Status)
	}
}

func TestEnteringGrid(t *testing.T) {
	mgr, _ := newWorld(t)
	from, to := gridmap.Vec3(-5, 0, 5.5), gridmap.Vec3(5.5, 0, 5.5)
	rq := &testRequester{}
	req := gridmap.NewPathRequest(from, to, rq)
	req.PendingWaypoints = []gridmap.Vector3{gridmap.Vec3(7, 0, 7)}

	res := onlyResult(t, resolve(mgr, req), rq)
	if res.Status != gridmap.StatusComplete {
		t.Fatalf("status = %v", res.Status)
	}
	assertPoints(t, res.Path, from, gridmap.Vec3(-0.5, 0, 5.5), gridmap.Vec3(0.5, 0, 5.5))
	if len(res.PendingWaypoints) != 2 || res.PendingWaypoints[0] != to || res.PendingWaypoints[1] != gridmap.Vec3(7, 0, 7) {
		t.Fatalf("pending = %v", res.PendingWaypoints)
	}
}

func TestLeavingGrid(t *testing.T) {
	mgr, g := newWorld(t)
	to := gridmap.Vec3(20, 0, 5.5)

	rq := &testRequester{}
	req := gridmap.NewPathRequest(gridmap.Vec3(5.5, 0, 5.5), to, rq)
	out := resolve(mgr, req)
	if out != req {
		t.Fatalf("exit request was not reissued")
	}
	if req.To != gridmap.Vec3(9.5, 0, 5.5) || req.ToGrid != g {
		t.Fatalf("reissued to %v on %v", req.To, req.ToGrid)
	}
	if req.Type != gridmap.RequestPathboundWaypoint {
		t.Fatalf("reissued leg type = %v", req.Type)
	}
	if len(req.PendingWaypoints) != 2 || req.PendingWaypoints[0] != gridmap.Vec3(10.5, 0, 5.5) || req.PendingWaypoints[1] != to {
		t.Fatalf("pending = %v", req.PendingWaypoints)
	}

	// 已经站在出口格上.
	rq = &testRequester{}
	from := gridmap.Vec3(9.5, 0, 5.5)
	res := onlyResult(t, resolve(mgr, gridmap.NewPathRequest(from, to, rq)), rq)
	assertPoints(t, res.Path, from, gridmap.Vec3(10.5, 0, 5.5))
	if len(res.PendingWaypoints) != 1 || res.PendingWaypoints[0] != to {
		t.Fatalf("pending = %v", res.PendingWaypoints)
	}
}

func TestLeavingThroughPerpendicular(t *testing.T) {
	mgr, g := newWorld(t)
	g.SetBlocked(gridmap.Bounds{MinX: 9, MinZ: 0, MaxX: 10, MaxZ: 10}, true)
	to := gridmap.Vec3(20, 0, 5.5)

	rq := &testRequester{}
	req := gridmap.NewPathRequest(gridmap.Vec3(5.5, 0, 5.5), to, rq)
	if out := resolve(mgr, req); out != req {
		t.Fatal("exit request was not reissued")
	}
	// 上边比下边离起点更近.
	if req.To != gridmap.Vec3(8.5, 0, 9.5) {
		t.Fatalf("reissued to %v, want top edge cell", req.To)
	}
	if req.PendingWaypoints[0] != gridmap.Vec3(8.5, 0, 10.5) {
		t.Fatalf("outside point = %v", req.PendingWaypoints[0])
	}
}

func TestBlockedGridRoutesAroundCorner(t *testing.T) {
	mgr, g := newWorld(t)
	g.SetBlocked(gridmap.Bounds{MinX: 0, MinZ: 0, MaxX: 10, MaxZ: 10}, true)
	from, to := gridmap.Vec3(-5, 0, 5.5), gridmap.Vec3(15, 0, 5.5)

	rq := &testRequester{}
	res := onlyResult(t, resolve(mgr, gridmap.NewPathRequest(from, to, rq)), rq)
	if res.Status != gridmap.StatusComplete {
		t.Fatalf("status = %v", res.Status)
	}
	assertPoints(t, res.Path, from, gridmap.Vec3(11, 0, 11))
	if len(res.PendingWaypoints) != 1 || res.PendingWaypoints[0] != to {
		t.Fatalf("pending = %v", res.PendingWaypoints)
	}
}

func TestGridsJoinedByPortal(t *testing.T) {
	mgr, a := newWorld(t)
	bm := gridmap.NewCellMatrix(gridmap.MatrixConfig{Origin: gridmap.Vec3(30, 0, 0), Columns: 10, Rows: 10, CellSize: 1}, gridmap.BakeSources{})
	b := gridmap.NewGrid("other", bm, gridmap.GridOptions{})
	if err := mgr.RegisterGrid(b); err != nil {
		t.Fatal(err)
	}
	from, to := gridmap.Vec3(5.5, 0, 5.5), gridmap.Vec3(35.5, 0, 5.5)

	// 没有传送门: 先走到 a 的出口.
	rq := &testRequester{}
	req := gridmap.NewPathRequest(from, to, rq)
	if out := resolve(mgr, req); out != req || req.ToGrid != a {
		t.Fatalf("without portal: out=%v toGrid=%v", out, req.ToGrid)
	}

	p, err := gridmap.NewPortal(gridmap.PortalConfig{
		Name:      "gate",
		Type:      gridmap.PortalConnector,
		Action:    noopAction{},
		GridOne:   a,
		BoundsOne: gridmap.Bounds{MinX: 9, MinZ: 5, MaxX: 10, MaxZ: 6},
		GridTwo:   b,
		BoundsTwo: gridmap.Bounds{MinX: 30, MinZ: 5, MaxX: 31, MaxZ: 6},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := mgr.RegisterPortal(p); err != nil {
		t.Fatal(err)
	}
	rq = &testRequester{}
	req = gridmap.NewPathRequest(from, to, rq)
	if out := resolve(mgr, req); out != req || req.To != to || req.ToGrid != b {
		t.Fatalf("with portal: out=%v to=%v toGrid=%v", out, req.To, req.ToGrid)
	}
}
