package gridmap

import (
	"errors"
	"testing"
)

func newTestManager(t *testing.T) (*Manager, *Grid, *Grid) {
	t.Helper()
	m := NewManager()
	a := newTestGrid(t, "a", Vec3(0, 0, 0), 10, 10)
	b := newTestGrid(t, "b", Vec3(20, 0, 0), 10, 10)
	for _, g := range []*Grid{a, b} {
		if err := m.RegisterGrid(g); err != nil {
			t.Fatal(err)
		}
	}
	return m, a, b
}

func TestManagerRegistry(t *testing.T) {
	m, a, _ := newTestManager(t)
	if err := m.RegisterGrid(a); !errors.Is(err, ErrDuplicateGrid) {
		t.Fatalf("duplicate register err = %v", err)
	}
	if m.GridByName("b") == nil || len(m.Grids()) != 2 {
		t.Fatal("grids not registered")
	}
	if m.GridAt(Vec3(25, 0, 5)).Name() != "b" {
		t.Fatal("GridAt resolved the wrong grid")
	}
	if m.GridAt(Vec3(15, 0, 5)) != nil {
		t.Fatal("gap between grids resolved to a grid")
	}
	if err := m.UnregisterGrid("nope"); !errors.Is(err, ErrUnknownGrid) {
		t.Fatalf("unregister unknown err = %v", err)
	}
}

func TestInjectGrids(t *testing.T) {
	m, a, b := newTestManager(t)

	req := NewPathRequest(Vec3(1, 0, 1), Vec3(25, 0, 5), nil)
	m.InjectGrids(req)
	if req.FromGrid != a || req.ToGrid != b {
		t.Fatalf("got %v / %v", req.FromGrid, req.ToGrid)
	}

	// 起点在两网格之间, 线段先穿过 b 的对角线.
	req = NewPathRequest(Vec3(15, 0, 5), Vec3(40, 0, 5), nil)
	m.InjectGrids(req)
	if req.FromGrid != b || req.ToGrid != nil {
		t.Fatalf("got %v / %v", req.FromGrid, req.ToGrid)
	}

	// 穿过两个网格时取离起点最近的.
	req = NewPathRequest(Vec3(-10, 0, 5), Vec3(40, 0, 5), nil)
	m.InjectGrids(req)
	if req.FromGrid != a {
		t.Fatalf("got %v", req.FromGrid)
	}

	// 没有穿过对角线, 退回终点所在网格.
	req = NewPathRequest(Vec3(-1, 0, -1), Vec3(0.5, 0, 9.5), nil)
	m.InjectGrids(req)
	if req.FromGrid != a || req.ToGrid != a {
		t.Fatalf("got %v / %v", req.FromGrid, req.ToGrid)
	}

	req = NewPathRequest(Vec3(-10, 0, -10), Vec3(-20, 0, -20), nil)
	m.InjectGrids(req)
	if req.FromGrid != nil || req.ToGrid != nil {
		t.Fatal("request away from every grid resolved to a grid")
	}
}

func TestPortalExists(t *testing.T) {
	m, a, b := newTestManager(t)
	const key AttributeMask = 1 << 3

	p, err := NewPortal(PortalConfig{
		Name:               "door",
		Type:               PortalConnector,
		RequiredAttributes: key,
		Action:             stubAction{cost: 1},
		GridOne:            a,
		BoundsOne:          cellBounds(9, 5),
		GridTwo:            b,
		BoundsTwo:          cellBounds(20, 5),
	})
	if err != nil {
		t.Fatal(err)
	}
	if m.PortalExists(a, b, key) {
		t.Fatal("unregistered portal reported")
	}
	if err := m.RegisterPortal(p); err != nil {
		t.Fatal(err)
	}
	if !m.PortalExists(a, b, key) || !m.PortalExists(b, a, key) {
		t.Fatal("portal should connect a and b in both orders")
	}
	if m.PortalExists(a, b, AttributesNone) {
		t.Fatal("portal requires an attribute")
	}
	if !a.Matrix().CellAt(9, 5).HasVirtualNeighbours() {
		t.Fatal("endpoint not registered on its cell")
	}

	p.Disable()
	if m.PortalExists(a, b, key) {
		t.Fatal("disabled portal reported")
	}
	p.Enable()

	if err := m.UnregisterGrid("b"); err != nil {
		t.Fatal(err)
	}
	if m.Portal("door") != nil || a.Matrix().CellAt(9, 5).HasVirtualNeighbours() {
		t.Fatal("portal should go away with its grid")
	}
}

func TestShortcutPortalRegistersWithMatrix(t *testing.T) {
	m, a, _ := newTestManager(t)
	p, err := NewPortal(PortalConfig{
		Name:      "jump",
		Type:      PortalShortcut,
		Action:    stubAction{cost: 1},
		GridOne:   a,
		BoundsOne: cellBounds(0, 0),
		GridTwo:   a,
		BoundsTwo: cellBounds(9, 9),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.RegisterPortal(p); err != nil {
		t.Fatal(err)
	}
	if len(a.Matrix().Shortcuts()) != 1 {
		t.Fatalf("shortcuts = %d", len(a.Matrix().Shortcuts()))
	}
	if got := p.One().Position(); got.X != 0.5 || got.Z != 0.5 {
		t.Fatalf("endpoint position = %v", got)
	}
	if p.One().Partner() != p.Two() || p.One().EnterCost(10) != 10 {
		t.Fatal("endpoint wiring")
	}
	if err := m.UnregisterPortal("jump"); err != nil {
		t.Fatal(err)
	}
	if len(a.Matrix().Shortcuts()) != 0 {
		t.Fatal("shortcut not unregistered")
	}
}

func TestPathStack(t *testing.T) {
	p := NewPath(Vec3(0, 0, 0), Vec3(3, 0, 4), Vec3(3, 0, 10))
	if p.Len() != 3 || p.Length() != 11 {
		t.Fatalf("len %d length %v", p.Len(), p.Length())
	}
	if v, _ := p.Peek(); v != Vec3(0, 0, 0) {
		t.Fatalf("peek = %v", v)
	}
	if v, _ := p.PeekNext(); v != Vec3(3, 0, 4) {
		t.Fatalf("peek next = %v", v)
	}
	if v, _ := p.Last(); v != Vec3(3, 0, 10) {
		t.Fatalf("last = %v", v)
	}
	v, ok := p.Pop()
	if !ok || v != Vec3(0, 0, 0) || p.Len() != 2 {
		t.Fatalf("pop = %v %v", v, ok)
	}
	pts := p.Points()
	if len(pts) != 2 || pts[0] != Vec3(3, 0, 4) {
		t.Fatalf("points = %v", pts)
	}
}

func TestRequestCompletesOnce(t *testing.T) {
	r := &stubRequester{}
	req := NewPathRequest(Vec3(0, 0, 0), Vec3(1, 0, 1), r)
	req.PendingWaypoints = []Vector3{Vec3(5, 0, 5)}
	if !req.Fail(StatusNoRouteExists) {
		t.Fatal("first completion ignored")
	}
	if req.Complete(&PathResult{Status: StatusComplete}) {
		t.Fatal("second completion accepted")
	}
	if len(r.results) != 1 || r.results[0].Status != StatusNoRouteExists {
		t.Fatalf("results = %v", r.results)
	}
	if r.results[0].Request != req || len(r.results[0].PendingWaypoints) != 1 {
		t.Fatal("result not linked to request")
	}
}
