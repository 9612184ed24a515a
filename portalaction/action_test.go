package portalaction

import (
	"testing"

	"github.com/sirupsen/logrus"

	"gridnav/gridmap"
)

type agent struct {
	pos     gridmap.Vector3
	history []gridmap.Vector3
}

func (a *agent) Position() gridmap.Vector3 { return a.pos }

func (a *agent) SetPosition(p gridmap.Vector3) {
	a.pos = p
	a.history = append(a.history, p)
}

func quiet() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestTeleport(t *testing.T) {
	a := &agent{pos: gridmap.Vec3(1, 0, 1)}
	done := 0
	Teleport{Cost: 3}.Execute(a, nil, At(gridmap.Vec3(9, 2, 9)), func() { done++ })
	if a.pos != gridmap.Vec3(9, 2, 9) || done != 1 {
		t.Fatalf("pos %v, done %d", a.pos, done)
	}
	if c := (Teleport{Cost: -4}).ActionCost(gridmap.Vector3{}, gridmap.Vec3(5, 0, 0)); c != 0 {
		t.Fatalf("negative cost clamped to %d", c)
	}
}

func TestMoveTween(t *testing.T) {
	m := NewMove(2, 1)
	a := &agent{pos: gridmap.Vec3(0, 0, 0)}
	done := false
	m.Execute(a, nil, At(gridmap.Vec3(4, 0, 0)), func() { done = true })
	if m.Running() != 1 || len(a.history) != 0 {
		t.Fatalf("move should wait for Update")
	}

	if left := m.Update(1); left != 1 {
		t.Fatalf("left = %d after 1s of 2s", left)
	}
	if !a.pos.ApproxEqual(gridmap.Vec3(2, 0, 0), 1e-4) {
		t.Fatalf("halfway pos %v", a.pos)
	}
	if done {
		t.Fatalf("completed early")
	}

	if left := m.Update(1.5); left != 0 {
		t.Fatalf("left = %d after overshoot", left)
	}
	if a.pos != gridmap.Vec3(4, 0, 0) || !done {
		t.Fatalf("final pos %v done %v", a.pos, done)
	}
}

func TestMoveZeroDistanceCompletesImmediately(t *testing.T) {
	m := NewMove(5, 1)
	a := &agent{pos: gridmap.Vec3(3, 0, 3)}
	done := false
	m.Execute(a, nil, At(gridmap.Vec3(3, 0, 3)), func() { done = true })
	if !done || m.Running() != 0 {
		t.Fatalf("zero distance move should complete inline")
	}
}

func TestMoveCost(t *testing.T) {
	m := NewMove(1, 0.5)
	cases := []struct {
		to   gridmap.Vector3
		want int
	}{
		{gridmap.Vec3(10, 0, 0), 5},
		{gridmap.Vec3(3, 0, 0), 2},
		{gridmap.Vec3(0, 0, 0), 1},
	}
	for _, c := range cases {
		if got := m.ActionCost(gridmap.Vector3{}, c.to); got != c.want {
			t.Errorf("cost to %v = %d, want %d", c.to, got, c.want)
		}
	}
}

const climbScript = `
if phase == "cost" {
	cost = to.y > from.y ? 4 : 2
}
if phase == "execute" {
	log("arriving at", to.x, to.z)
	arrival = {x: to.x, y: to.y + 1, z: to.z}
}
`

func TestScriptedCost(t *testing.T) {
	s, err := NewScripted("climb", climbScript, quiet())
	if err != nil {
		t.Fatal(err)
	}
	if c := s.ActionCost(gridmap.Vec3(0, 0, 0), gridmap.Vec3(5, 3, 5)); c != 4 {
		t.Fatalf("uphill cost %d", c)
	}
	if c := s.ActionCost(gridmap.Vec3(5, 3, 5), gridmap.Vec3(0, 0, 0)); c != 2 {
		t.Fatalf("downhill cost %d", c)
	}
	if len(s.costs) != 2 {
		t.Fatalf("cost cache has %d entries", len(s.costs))
	}
}

func TestScriptedExecute(t *testing.T) {
	s, err := NewScripted("climb", climbScript, quiet())
	if err != nil {
		t.Fatal(err)
	}
	a := &agent{pos: gridmap.Vec3(0, 0, 0)}
	done := false
	s.Execute(a, nil, At(gridmap.Vec3(5, 3, 5)), func() { done = true })
	if !done || a.pos != gridmap.Vec3(5, 4, 5) {
		t.Fatalf("pos %v done %v", a.pos, done)
	}
}

func TestScriptedErrors(t *testing.T) {
	if _, err := NewScripted("empty", "  \n", quiet()); err == nil {
		t.Fatal("empty script accepted")
	}
	if _, err := NewScripted("broken", "cost = (", quiet()); err == nil {
		t.Fatal("syntax error accepted")
	}

	s, err := NewScripted("fails", `if phase == "cost" { cost = phase() }`, quiet())
	if err != nil {
		t.Fatal(err)
	}
	s.DefaultCost = 7
	if c := s.ActionCost(gridmap.Vector3{}, gridmap.Vec3(1, 0, 0)); c != 7 {
		t.Fatalf("runtime error should fall back to default, got %d", c)
	}
}

func TestScriptedThenMove(t *testing.T) {
	s, err := NewScripted("climb", climbScript, quiet())
	if err != nil {
		t.Fatal(err)
	}
	m := NewMove(10, 1)
	s.Then = m
	a := &agent{pos: gridmap.Vec3(0, 0, 0)}
	s.Execute(a, nil, At(gridmap.Vec3(0, 0, 5)), nil)
	if m.Running() != 1 {
		t.Fatalf("move not started")
	}
	m.Update(10)
	if a.pos != gridmap.Vec3(0, 1, 5) {
		t.Fatalf("pos %v", a.pos)
	}
}
