package gridmap

import (
	"testing"
	"time"
)

func TestPerimeterLinkage(t *testing.T) {
	g := newTestGrid(t, "g", Vec3(0, 0, 0), 10, 10)
	left, right := g.Perimeter(SideLeft), g.Perimeter(SideRight)
	bottom, top := g.Perimeter(SideBottom), g.Perimeter(SideTop)

	if left.Opposite != right || bottom.Opposite != top {
		t.Fatal("opposites not linked")
	}
	if left.PerpendicularOne != bottom || left.PerpendicularTwo != top {
		t.Fatal("left perpendiculars not linked")
	}
	if top.PerpendicularOne != left || top.PerpendicularTwo != right {
		t.Fatal("top perpendiculars not linked")
	}
	if left.Edge != 0 || right.Edge != 10 || top.Edge != 10 || bottom.Edge != 0 {
		t.Fatalf("edges: %v %v %v %v", left.Edge, right.Edge, bottom.Edge, top.Edge)
	}
	if got := left.OutsideCornerOne; got.X != -1 || got.Z != -1 {
		t.Fatalf("left outside corner one = %v", got)
	}
	if got := top.OutsideCornerTwo; got.X != 11 || got.Z != 11 {
		t.Fatalf("top outside corner two = %v", got)
	}
}

func TestCrossedPerimeters(t *testing.T) {
	g := newTestGrid(t, "g", Vec3(0, 0, 0), 10, 10)
	tests := []struct {
		name     string
		from, to Vector3
		want     []PerimeterSide
	}{
		{name: "through", from: Vec3(-5, 0, 5), to: Vec3(15, 0, 5), want: []PerimeterSide{SideLeft, SideRight}},
		{name: "entering from below", from: Vec3(5, 0, -3), to: Vec3(5, 0, 4), want: []PerimeterSide{SideBottom}},
		{name: "leaving through top", from: Vec3(5, 0, 4), to: Vec3(6, 0, 20), want: []PerimeterSide{SideTop}},
		{name: "miss", from: Vec3(-5, 0, -5), to: Vec3(-5, 0, 20), want: nil},
		{name: "inside", from: Vec3(1, 0, 1), to: Vec3(8, 0, 8), want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := g.CrossedPerimeters(tt.from, tt.to)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d crossings, want %d", len(got), len(tt.want))
			}
			for i, c := range got {
				if c.Perimeter.Side != tt.want[i] {
					t.Fatalf("crossing %d = %v, want %v", i, c.Perimeter.Side, tt.want[i])
				}
			}
		})
	}
}

func TestNearestWalkablePerimeterCell(t *testing.T) {
	g := newTestGrid(t, "g", Vec3(0, 0, 0), 10, 10)
	g.SetBlocked(Bounds{MinX: 0, MinZ: 3, MaxX: 1, MaxZ: 7}, true)
	left := g.Perimeter(SideLeft)

	c := g.GetNearestWalkablePerimeterCell(left, Vec3(-3, 0, 4.5), AttributesNone, true)
	if c == nil || c.X() != 0 || c.Z() != 2 {
		t.Fatalf("got %v, want [0,2]", c)
	}

	c = g.GetNearestWalkablePerimeterCell(left, Vec3(-3, 0, 5.5), AttributesNone, true)
	if c == nil || c.X() != 0 || c.Z() != 7 {
		t.Fatalf("got %v, want [0,7]", c)
	}

	// 截断到网格范围.
	c = g.GetNearestWalkablePerimeterCell(left, Vec3(-3, 0, 50), AttributesNone, true)
	if c == nil || c.X() != 0 || c.Z() != 9 {
		t.Fatalf("got %v, want [0,9]", c)
	}

	g.SetBlocked(Bounds{MinX: 0, MinZ: 0, MaxX: 1, MaxZ: 10}, true)
	if c := g.GetNearestWalkablePerimeterCell(left, Vec3(-3, 0, 4.5), AttributesNone, true); c != nil {
		t.Fatalf("fully blocked edge returned %v", c)
	}

	// 不投影时沿 pos 所在列搜索.
	c = g.GetNearestWalkablePerimeterCell(left, Vec3(4.5, 0, 4.5), AttributesNone, false)
	if c == nil || c.X() != 4 || c.Z() != 4 {
		t.Fatalf("got %v, want [4,4]", c)
	}
}

func TestOutsidePoint(t *testing.T) {
	g := newTestGrid(t, "g", Vec3(0, 0, 0), 10, 10)
	c := g.Matrix().CellAt(0, 4)
	got := g.OutsidePoint(g.Perimeter(SideLeft), c)
	if got.X != -0.5 || got.Z != 4.5 {
		t.Fatalf("outside point = %v", got)
	}
	c = g.Matrix().CellAt(3, 9)
	got = g.OutsidePoint(g.Perimeter(SideTop), c)
	if got.X != 3.5 || got.Z != 10.5 {
		t.Fatalf("outside point = %v", got)
	}
}

func TestSectionsTrackChanges(t *testing.T) {
	g := newTestGrid(t, "g", Vec3(0, 0, 0), 10, 10)
	if n := len(g.Sections()); n != 4 {
		t.Fatalf("sections = %d, want 4", n)
	}
	clock := time.Unix(1000, 0)
	g.now = func() time.Time { return clock }
	before := clock.Add(-time.Second)

	rock := NewDynamicObstacle("rock", AttributesNone)
	if !g.AddDynamicObstacle(rock, cellBounds(1, 1)) {
		t.Fatal("obstacle should change the cell")
	}
	if !g.HasChangedSince(MatrixBounds{MinX: 0, MinZ: 0, MaxX: 2, MaxZ: 2}, before) {
		t.Fatal("lower left section should be dirty")
	}
	if g.HasChangedSince(MatrixBounds{MinX: 8, MinZ: 8, MaxX: 9, MaxZ: 9}, before) {
		t.Fatal("upper right section should be clean")
	}

	// 重叠一格: 靠近分区边界的修改会标记相邻分区.
	g.AddDynamicObstacle(rock, cellBounds(4, 1))
	if !g.HasChangedSince(MatrixBounds{MinX: 6, MinZ: 0, MaxX: 9, MaxZ: 3}, before) {
		t.Fatal("overlapping neighbour section should be dirty")
	}

	clock = clock.Add(time.Minute)
	mid := clock.Add(-time.Second)
	if g.AddDynamicObstacle(rock, cellBounds(1, 1)) {
		t.Fatal("re-adding must not report a change")
	}
	if g.HasChangedSince(MatrixBounds{MinX: 0, MinZ: 0, MaxX: 2, MaxZ: 2}, mid) {
		t.Fatal("no-op update marked section dirty")
	}
	if !g.RemoveDynamicObstacle(rock, cellBounds(1, 1)) {
		t.Fatal("remove should report a change")
	}
	if !g.HasChangedSince(MatrixBounds{MinX: 0, MinZ: 0, MaxX: 2, MaxZ: 2}, mid) {
		t.Fatal("remove should mark section dirty")
	}
}
