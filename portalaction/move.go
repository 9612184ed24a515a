package portalaction

import (
	"math"
	"sync"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"

	"gridnav/gridmap"
)

type moveRun struct {
	agent      gridmap.Transform
	from, to   gridmap.Vector3
	onComplete func()
}

// Move 用补间把代理从入口移动到出口, 由宿主每帧调用 Update 推进.
type Move struct {
	// Speed 世界单位每秒.
	Speed float64
	// CostPerUnit 每个世界单位的代价, 以基础移动代价为单位.
	CostPerUnit float64
	Ease        ease.TweenFunc

	mu     sync.Mutex
	tweens map[*gween.Tween]*moveRun
}

func NewMove(speed, costPerUnit float64) *Move {
	return &Move{
		Speed:       speed,
		CostPerUnit: costPerUnit,
		Ease:        ease.Linear,
		tweens:      make(map[*gween.Tween]*moveRun),
	}
}

func (m *Move) Execute(agent gridmap.Transform, _ *gridmap.Cell, to gridmap.Positioned, onComplete func()) {
	from, dest := agent.Position(), to.Position()
	dist := from.Sub(dest).Len()
	if dist == 0 || m.Speed <= 0 {
		agent.SetPosition(dest)
		if onComplete != nil {
			onComplete()
		}
		return
	}
	easing := m.Ease
	if easing == nil {
		easing = ease.Linear
	}
	t := gween.New(0, 1, float32(dist/m.Speed), easing)

	m.mu.Lock()
	if m.tweens == nil {
		m.tweens = make(map[*gween.Tween]*moveRun)
	}
	m.tweens[t] = &moveRun{agent: agent, from: from, to: dest, onComplete: onComplete}
	m.mu.Unlock()
}

// Update advances every running move by dt seconds and returns how many are
// still running. Completion callbacks run outside the lock.
func (m *Move) Update(dt float32) int {
	var finished []func()

	m.mu.Lock()
	for t, run := range m.tweens {
		curr, done := t.Update(dt)
		if done {
			run.agent.SetPosition(run.to)
			if run.onComplete != nil {
				finished = append(finished, run.onComplete)
			}
			delete(m.tweens, t)
			continue
		}
		f := float64(curr)
		run.agent.SetPosition(run.from.Add(run.to.Sub(run.from).Scale(f)))
	}
	left := len(m.tweens)
	m.mu.Unlock()

	for _, f := range finished {
		f()
	}
	return left
}

// Running reports how many moves are in flight.
func (m *Move) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tweens)
}

// ActionCost 按两端距离计价, 至少为 1.
func (m *Move) ActionCost(from, to gridmap.Vector3) int {
	return max(int(math.Ceil(from.Sub(to).Len()*m.CostPerUnit)), 1)
}
