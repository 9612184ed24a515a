package gridmap

import (
	"fmt"
	"math"
)

// Vector3 is a world position. Y is height, the grid plane is XZ.
type Vector3 struct {
	X, Y, Z float64
}

func Vec3(x, y, z float64) Vector3 { return Vector3{X: x, Y: y, Z: z} }

func (v Vector3) Add(o Vector3) Vector3 { return Vector3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vector3) Sub(o Vector3) Vector3 { return Vector3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vector3) Scale(s float64) Vector3 {
	return Vector3{v.X * s, v.Y * s, v.Z * s}
}

func (v Vector3) Len() float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

// SqrDistXZ 忽略高度的距离平方.
func (v Vector3) SqrDistXZ(o Vector3) float64 {
	dx, dz := v.X-o.X, v.Z-o.Z
	return dx*dx + dz*dz
}

func (v Vector3) DistXZ(o Vector3) float64 { return math.Sqrt(v.SqrDistXZ(o)) }

// ApproxEqual compares on all three axes with an absolute tolerance.
func (v Vector3) ApproxEqual(o Vector3, eps float64) bool {
	return math.Abs(v.X-o.X) <= eps && math.Abs(v.Y-o.Y) <= eps && math.Abs(v.Z-o.Z) <= eps
}

func (v Vector3) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f)", v.X, v.Y, v.Z)
}

// Positioned is anything with a world position.
type Positioned interface {
	Position() Vector3
}

// segmentIntersectXZ returns the parameter t along a->b at which it crosses c->d.
func segmentIntersectXZ(a, b, c, d Vector3) (t float64, ok bool) {
	rX, rZ := b.X-a.X, b.Z-a.Z
	sX, sZ := d.X-c.X, d.Z-c.Z
	denom := rX*sZ - rZ*sX
	if denom == 0 {
		return 0, false
	}
	qpX, qpZ := c.X-a.X, c.Z-a.Z
	t = (qpX*sZ - qpZ*sX) / denom
	u := (qpX*rZ - qpZ*rX) / denom
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return 0, false
	}
	return t, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func absInt(a int) int {
	if a < 0 {
		return -a
	}
	return a
}

func signInt(a int) int {
	if a < 0 {
		return -1
	}
	if a > 0 {
		return 1
	}
	return 0
}
