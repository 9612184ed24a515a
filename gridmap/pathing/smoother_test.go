package pathing

import (
	"math"
	"testing"

	"gridnav/gridmap"
)

func TestSmoothedEndpointsAreExact(t *testing.T) {
	g := openGrid(t, "g", gridmap.Vec3(0, 0, 0), 10, 10)
	for z := 2; z < 10; z++ {
		block(g, 4, z)
	}
	from, to := gridmap.Vec3(0.2, 0, 8.3), gridmap.Vec3(8.7, 0, 9.1)
	for _, e := range []*Engine{NewEngine(diag, Options{}), NewJPSEngine(diag, Options{})} {
		req, _ := request(g, from, to)
		req.UsePathSmoothing = true
		res := run(t, e, req)
		if res.Status != gridmap.StatusComplete {
			t.Fatalf("%s: status = %v", e.Name(), res.Status)
		}
		pts := res.Path.Points()
		if pts[0] != from || pts[len(pts)-1] != to {
			t.Fatalf("%s: endpoints %v .. %v", e.Name(), pts[0], pts[len(pts)-1])
		}
		if len(pts) < 3 {
			t.Fatalf("%s: path %v cuts through the wall", e.Name(), pts)
		}
		assertWalkablePath(t, g, res.Path)
	}
}

func TestSmoothingRespectsRadius(t *testing.T) {
	g := openGrid(t, "g", gridmap.Vec3(0, 0, 0), 10, 3)
	block(g, 5, 0)
	from, to := gridmap.Vec3(0.5, 0, 1.5), gridmap.Vec3(9.5, 0, 1.5)

	tests := []struct {
		radius float64
		points int
	}{
		{radius: 0, points: 2},
		{radius: 0.3, points: 2},
		{radius: 0.8, points: 3},
	}
	for _, tt := range tests {
		rq := &testRequester{radius: tt.radius}
		req := gridmap.NewPathRequest(from, to, rq)
		req.FromGrid, req.ToGrid = g, g
		req.UsePathSmoothing = true
		res := run(t, NewEngine(diag, Options{}), req)
		if got := res.Path.Len(); got != tt.points {
			t.Fatalf("radius %v: %d points %v, want %d", tt.radius, got, res.Path.Points(), tt.points)
		}
	}
}

func TestCorridorClear(t *testing.T) {
	g := openGrid(t, "g", gridmap.Vec3(0, 0, 0), 10, 10)
	block(g, 5, 5)
	m := g.Matrix()
	s := NewSmoother()

	tests := []struct {
		name   string
		a, b   gridmap.Vector3
		radius float64
		want   bool
	}{
		{name: "through blocked cell", a: gridmap.Vec3(0.5, 0, 5.5), b: gridmap.Vec3(9.5, 0, 5.5), want: false},
		{name: "row below", a: gridmap.Vec3(0.5, 0, 4.5), b: gridmap.Vec3(9.5, 0, 4.5), want: true},
		{name: "row below wide", a: gridmap.Vec3(0.5, 0, 4.5), b: gridmap.Vec3(9.5, 0, 4.5), radius: 0.6, want: false},
		{name: "diagonal clear of block", a: gridmap.Vec3(4, 0, 4), b: gridmap.Vec3(6, 0, 2), want: true},
		{name: "touching corner", a: gridmap.Vec3(3, 0, 7), b: gridmap.Vec3(7, 0, 3), want: false},
		{name: "outside matrix", a: gridmap.Vec3(-5, 0, -5), b: gridmap.Vec3(-1, 0, -5), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.corridorClear(m, tt.a, tt.b, tt.radius, gridmap.AttributesNone); got != tt.want {
				t.Fatalf("corridorClear = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSegmentRectDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b gridmap.Vector3
		want float64
	}{
		{name: "crossing", a: gridmap.Vec3(-1, 0, 0.5), b: gridmap.Vec3(2, 0, 0.5), want: 0},
		{name: "above", a: gridmap.Vec3(-1, 0, 2), b: gridmap.Vec3(2, 0, 2), want: 1},
		{name: "diagonal past corner", a: gridmap.Vec3(2, 0, 1), b: gridmap.Vec3(1, 0, 2), want: math.Sqrt2 / 2},
		{name: "endpoint nearest", a: gridmap.Vec3(3, 0, 0.5), b: gridmap.Vec3(5, 0, 0.5), want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := segmentRectDistance(tt.a, tt.b, 0, 0, 1, 1)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("distance = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFixupGoal(t *testing.T) {
	g := openGrid(t, "g", gridmap.Vec3(0, 0, 0), 10, 10)
	block(g, 6, 5) // east of (5,5)
	block(g, 4, 6) // north-west of (5,5)
	c := g.Matrix().CellAt(5, 5)

	tests := []struct {
		name   string
		dest   gridmap.Vector3
		radius float64
		want   gridmap.Vector3
	}{
		{name: "zero radius", dest: gridmap.Vec3(5.95, 0, 5.5), radius: 0, want: gridmap.Vec3(5.95, 0, 5.5)},
		{name: "near east wall", dest: gridmap.Vec3(5.9, 0, 5.5), radius: 0.3, want: gridmap.Vec3(5.7, 0, 5.5)},
		{name: "far from walls", dest: gridmap.Vec3(5.5, 0, 5.5), radius: 0.3, want: gridmap.Vec3(5.5, 0, 5.5)},
		{name: "open west side", dest: gridmap.Vec3(5.1, 0, 5.5), radius: 0.3, want: gridmap.Vec3(5.1, 0, 5.5)},
		{name: "north west corner", dest: gridmap.Vec3(5.1, 0, 5.9), radius: 0.3, want: gridmap.Vec3(5.3, 0, 5.7)},
		{name: "radius capped at half cell", dest: gridmap.Vec3(5.9, 0, 5.5), radius: 2, want: gridmap.Vec3(5.5, 0, 5.5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fixupGoal(c, tt.dest, tt.radius, gridmap.AttributesNone)
			if !got.ApproxEqual(tt.want, 1e-9) {
				t.Fatalf("fixupGoal = %v, want %v", got, tt.want)
			}
		})
	}
}
