package pathing

import (
	"container/heap"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"gridnav/gridmap"
)

var (
	ErrEngineBusy  = errors.New("pathing: engine already has a request in flight")
	ErrNilRequest  = errors.New("pathing: nil request")
	ErrNoRequester = errors.New("pathing: request has no requester")
)

const (
	defaultArenaHint = 256
	// budgetCheckEvery 每扩展这么多个节点检查一次时间片.
	budgetCheckEvery = 64
)

type Options struct {
	Smoother *Smoother
	Logger   logrus.FieldLogger
	// ArenaHint 预分配的节点数.
	ArenaHint int
}

// successorFunc 枚举 cur 的后继, 对每个后继调用 emit(节点, 边代价).
type successorFunc func(e *Engine, cur int32, emit func(n gridmap.Node, cost int))

// Engine 可分步推进的 A* 搜索. 同一时刻只处理一个请求, 不可并发使用;
// 需要并行时创建多个 Engine.
type Engine struct {
	provider   gridmap.MoveCostProvider
	successors successorFunc
	smoother   *Smoother
	log        logrus.FieldLogger
	name       string

	arena *arena
	open  openHeap

	req     *gridmap.PathRequest
	mask    gridmap.AttributeMask
	status  gridmap.PathStatus
	result  *gridmap.PathResult
	goal    gridmap.Node
	exits   map[*gridmap.PortalCell]int
	goalIdx int32
	nearest int32
	started time.Time
}

// NewEngine returns a plain A* engine.
func NewEngine(provider gridmap.MoveCostProvider, opts Options) *Engine {
	return newEngine("astar", provider, opts, (*Engine).gridSuccessors)
}

func newEngine(name string, provider gridmap.MoveCostProvider, opts Options, succ successorFunc) *Engine {
	if provider == nil {
		provider = gridmap.DiagonalDistance{Base: gridmap.DefaultBaseMoveCost}
	}
	if opts.Smoother == nil {
		opts.Smoother = NewSmoother()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.ArenaHint <= 0 {
		opts.ArenaHint = defaultArenaHint
	}
	e := &Engine{
		provider:   provider,
		successors: succ,
		smoother:   opts.Smoother,
		log:        opts.Logger.WithField("engine", name),
		name:       name,
		arena:      newArena(opts.ArenaHint),
		exits:      make(map[*gridmap.PortalCell]int),
	}
	e.open.a = e.arena
	return e
}

func (e *Engine) Name() string                       { return e.name }
func (e *Engine) Provider() gridmap.MoveCostProvider { return e.provider }
func (e *Engine) Status() gridmap.PathStatus         { return e.status }

// Result 最近一次结束的搜索结果, 搜索未结束时为 nil.
func (e *Engine) Result() *gridmap.PathResult { return e.result }

// Release returns the scratch arena to the shared pool. The engine must not be
// used afterwards.
func (e *Engine) Release() {
	e.arena.release()
}

// Start 校验请求并进入 Running. 起终点解析失败时直接以对应状态结束, 不返回错误.
func (e *Engine) Start(req *gridmap.PathRequest) error {
	if req == nil {
		return ErrNilRequest
	}
	if req.Requester == nil {
		return ErrNoRequester
	}
	if e.status == gridmap.StatusRunning {
		return ErrEngineBusy
	}

	e.arena.reset()
	e.open.reset()
	e.req = req
	e.mask = req.Attributes()
	e.result = nil
	e.goal = nil
	clear(e.exits)
	e.goalIdx = noParent
	e.nearest = noParent
	e.started = time.Now()
	e.status = gridmap.StatusRunning

	if req.FromGrid == nil {
		e.finish(gridmap.StatusStartOutsideGrid)
		return nil
	}
	if req.ToGrid == nil {
		e.finish(gridmap.StatusEndOutsideGrid)
		return nil
	}
	start := req.FromGrid.GetCell(req.From)
	if start == nil {
		e.finish(gridmap.StatusStartOutsideGrid)
		return nil
	}
	goal := req.ToGrid.GetCell(req.To)
	if goal == nil {
		e.finish(gridmap.StatusEndOutsideGrid)
		return nil
	}
	if !goal.IsWalkable(e.mask) && !req.NavigatesToNearest() {
		e.finish(gridmap.StatusDestinationBlocked)
		return nil
	}
	e.goal = goal

	idx := e.arena.add(start, 0, e.heuristic(start), noParent)
	e.nearest = idx
	heap.Push(&e.open, idx)
	return nil
}

// Advance 推进搜索直到结束或用完时间片. budget <= 0 表示不限时.
// 返回 true 表示还有剩余工作.
func (e *Engine) Advance(budget time.Duration) bool {
	if e.status != gridmap.StatusRunning {
		return false
	}
	var deadline time.Time
	if budget > 0 {
		deadline = time.Now().Add(budget)
	}
	for i := 1; ; i++ {
		if !e.step() {
			return false
		}
		if budget > 0 && i%budgetCheckEvery == 0 && time.Now().After(deadline) {
			return true
		}
	}
}

// Run drives req to completion and returns its result.
func (e *Engine) Run(req *gridmap.PathRequest) (*gridmap.PathResult, error) {
	if err := e.Start(req); err != nil {
		return nil, err
	}
	for e.Advance(0) {
	}
	return e.result, nil
}

// step 扩展一个节点, 搜索结束时返回 false.
func (e *Engine) step() bool {
	if e.open.Len() == 0 {
		if e.req.NavigatesToNearest() && e.nearest != noParent {
			e.succeed(e.nearest)
		} else if e.goal.IsWalkable(e.mask) {
			e.finish(gridmap.StatusNoRouteExists)
		} else {
			e.finish(gridmap.StatusDestinationBlocked)
		}
		return false
	}

	cur := heap.Pop(&e.open).(int32)
	s := e.arena.at(cur)
	s.closed = true
	if s.node == e.goal {
		e.succeed(cur)
		return false
	}
	if _, isCell := s.node.(*gridmap.Cell); isCell && s.h < e.arena.at(e.nearest).h {
		e.nearest = cur
	}

	g := s.g
	e.successors(e, cur, func(n gridmap.Node, cost int) {
		ng := g + cost
		if idx, seen := e.arena.lookup(n); seen {
			ns := e.arena.at(idx)
			if ng >= ns.g {
				return
			}
			ns.g, ns.f, ns.parent = ng, ng+ns.h, cur
			if ns.closed {
				ns.closed = false
				heap.Push(&e.open, idx)
			} else {
				heap.Fix(&e.open, ns.heapIdx)
			}
			return
		}
		idx := e.arena.add(n, ng, e.heuristic(n), cur)
		heap.Push(&e.open, idx)
	})
	return true
}

// heuristic 普通启发值与经由 shortcut 传送门的估价取小.
// 传送门节点已经付过进入代价, 离开代价为 0, 估价从另一端覆盖的格子算起.
func (e *Engine) heuristic(n gridmap.Node) int {
	if pc, ok := n.(*gridmap.PortalCell); ok {
		return e.exitBound(pc)
	}
	h := e.provider.Heuristic(n, e.goal)
	m := n.Matrix()
	if m == nil {
		return h
	}
	base := e.provider.BaseMoveCost()
	for _, p := range m.Shortcuts() {
		if !p.IsUsableBy(e.mask) {
			continue
		}
		for _, end := range [2]*gridmap.PortalCell{p.One(), p.Two()} {
			if end.Matrix() != m {
				continue
			}
			via := e.entryBound(n, end) + end.EnterCost(base) + e.exitBound(end.Partner())
			if via < h {
				h = via
			}
		}
	}
	return h
}

// entryBound n 走到 pc 覆盖的任一格子的估价下界.
func (e *Engine) entryBound(n gridmap.Node, pc *gridmap.PortalCell) int {
	best := -1
	for _, c := range pc.Cells() {
		if h := e.provider.Heuristic(n, c); best < 0 || h < best {
			best = h
		}
	}
	return max(best, 0)
}

// exitBound 从 pc 覆盖的格子到终点的最小普通估价, 每次搜索内缓存.
func (e *Engine) exitBound(pc *gridmap.PortalCell) int {
	if h, ok := e.exits[pc]; ok {
		return h
	}
	best := -1
	for _, c := range pc.Cells() {
		if h := e.provider.Heuristic(c, e.goal); best < 0 || h < best {
			best = h
		}
	}
	best = max(best, 0)
	e.exits[pc] = best
	return best
}

func (e *Engine) succeed(goalIdx int32) {
	e.goalIdx = goalIdx
	gs := e.arena.at(goalIdx)
	chain := e.arena.chain(goalIdx)

	dest := e.req.To
	if gs.node != e.goal {
		// 改道到最近可达点.
		dest = gs.node.Position()
	}
	if c, ok := gs.node.(*gridmap.Cell); ok {
		dest = fixupGoal(c, dest, e.req.Radius(), e.mask)
	}

	var path *gridmap.Path
	if e.req.UsePathSmoothing {
		maxLength := gs.g/max(e.provider.BaseMoveCost(), 1) + len(chain)
		path = e.smoother.Smooth(chain, maxLength, e.req, dest)
	} else {
		path = rawPath(chain, e.req.From, dest)
	}
	e.complete(gridmap.StatusComplete, path, gs.g)
}

func (e *Engine) finish(status gridmap.PathStatus) {
	e.complete(status, gridmap.NewPath(), 0)
}

func (e *Engine) complete(status gridmap.PathStatus, path *gridmap.Path, cost int) {
	e.status = status
	e.result = &gridmap.PathResult{
		Status:   status,
		Path:     path,
		Request:  e.req,
		Cost:     cost,
		Expanded: e.arena.len(),
		Elapsed:  time.Since(e.started),
	}
	e.log.WithFields(logrus.Fields{
		"request":  e.req.String(),
		"status":   status.String(),
		"cost":     cost,
		"expanded": e.result.Expanded,
	}).Debug("search finished")
	e.req.Complete(e.result)
}

// rawPath 从终点往起点压栈, 起点替换为请求的精确起点.
func rawPath(chain []gridmap.Node, from, dest gridmap.Vector3) *gridmap.Path {
	path := gridmap.NewPath()
	path.Push(dest)
	for i := 1; i < len(chain)-1; i++ {
		n := chain[i]
		if pc, ok := n.(*gridmap.PortalCell); ok {
			pushDistinct(path, pc.Partner().Position())
		}
		pushDistinct(path, n.Position())
	}
	if path.Len() > 1 {
		pushDistinct(path, from)
	} else {
		path.Push(from)
	}
	return path
}

func pushDistinct(p *gridmap.Path, v gridmap.Vector3) {
	if top, ok := p.Peek(); ok && top == v {
		return
	}
	p.Push(v)
}
