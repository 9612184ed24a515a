package portalaction

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/sirupsen/logrus"

	"gridnav/gridmap"
)

var ErrEmptyScript = errors.New("portalaction: empty script")

const (
	phaseCost    = "cost"
	phaseExecute = "execute"
)

// Scripted 用 tengo 脚本决定代价和落点. 脚本可以读取 phase, from, to
// (含 x, y, z 的 map), 并通过赋值 (不是 :=) 修改 cost 和 arrival.
// 落点确定后交给 Then 执行, 默认瞬移.
//
//	if phase == "cost" { cost = to.y > from.y ? 4 : 2 }
//	if phase == "execute" { arrival = {x: to.x, y: to.y + 1, z: to.z} }
type Scripted struct {
	Then gridmap.PortalAction
	// DefaultCost 脚本出错时使用.
	DefaultCost int

	log logrus.FieldLogger

	mu       sync.Mutex
	compiled *tengo.Compiled
	costs    map[[2]gridmap.Vector3]int
}

// NewScripted compiles src once; each call reruns the compiled program.
func NewScripted(name, src string, log logrus.FieldLogger) (*Scripted, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("script %q: %w", name, ErrEmptyScript)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Scripted{
		Then:        Teleport{},
		DefaultCost: 1,
		log:         log.WithField("script", name),
		costs:       make(map[[2]gridmap.Vector3]int),
	}

	script := tengo.NewScript([]byte(src))
	_ = script.Add("phase", "")
	_ = script.Add("from", vecMap(gridmap.Vector3{}))
	_ = script.Add("to", vecMap(gridmap.Vector3{}))
	_ = script.Add("cost", 0)
	_ = script.Add("arrival", vecMap(gridmap.Vector3{}))
	_ = script.Add("log", &tengo.UserFunction{Name: "log", Value: s.logFunc})
	script.SetImports(stdlib.GetModuleMap("math", "text"))

	compiled, err := script.Compile()
	if err != nil {
		return nil, fmt.Errorf("script %q: %w", name, err)
	}
	s.compiled = compiled
	return s, nil
}

func (s *Scripted) logFunc(args ...tengo.Object) (tengo.Object, error) {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		parts = append(parts, objectAsString(a))
	}
	s.log.Debug(strings.Join(parts, " "))
	return tengo.UndefinedValue, nil
}

// run 调用方持有 s.mu.
func (s *Scripted) run(phase string, from, to gridmap.Vector3, cost int) error {
	for name, v := range map[string]any{
		"phase":   phase,
		"from":    vecMap(from),
		"to":      vecMap(to),
		"cost":    cost,
		"arrival": vecMap(to),
	} {
		if err := s.compiled.Set(name, v); err != nil {
			return err
		}
	}
	return s.compiled.Run()
}

// ActionCost 结果按端点缓存, 端点固定的入口脚本只运行一次.
func (s *Scripted) ActionCost(from, to gridmap.Vector3) int {
	key := [2]gridmap.Vector3{from, to}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.costs[key]; ok {
		return c
	}
	c := s.DefaultCost
	if err := s.run(phaseCost, from, to, s.DefaultCost); err != nil {
		s.log.WithError(err).Warn("cost script failed, using default cost")
	} else {
		c = s.compiled.Get("cost").Int()
	}
	c = max(c, 0)
	s.costs[key] = c
	return c
}

func (s *Scripted) Execute(agent gridmap.Transform, from *gridmap.Cell, to gridmap.Positioned, onComplete func()) {
	dest := to.Position()

	s.mu.Lock()
	if err := s.run(phaseExecute, agent.Position(), dest, s.DefaultCost); err != nil {
		s.log.WithError(err).Warn("execute script failed, using portal exit")
	} else if v, ok := mapVec(s.compiled.Get("arrival").Map()); ok {
		dest = v
	}
	s.mu.Unlock()

	then := s.Then
	if then == nil {
		then = Teleport{}
	}
	then.Execute(agent, from, At(dest), onComplete)
}

func vecMap(v gridmap.Vector3) map[string]any {
	return map[string]any{"x": v.X, "y": v.Y, "z": v.Z}
}

func mapVec(m map[string]any) (gridmap.Vector3, bool) {
	var v gridmap.Vector3
	for key, dst := range map[string]*float64{"x": &v.X, "y": &v.Y, "z": &v.Z} {
		f, ok := toFloat(m[key])
		if !ok {
			return gridmap.Vector3{}, false
		}
		*dst = f
	}
	return v, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

func objectAsString(obj tengo.Object) string {
	if obj == nil {
		return ""
	}
	if s, ok := obj.(*tengo.String); ok {
		return s.Value
	}
	return strings.Trim(obj.String(), "\"")
}
