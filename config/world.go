package config

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"gridnav/bake"
	"gridnav/gridmap"
	"gridnav/gridmap/pathing"
	"gridnav/portalaction"
	"gridnav/service"
)

var (
	ErrUnknownPortal  = errors.New("config: unknown portal")
	ErrNotOnPortal    = errors.New("config: position is not on a portal endpoint")
	ErrPortalDisabled = errors.New("config: portal disabled")
)

// World 由配置构建出的一整套寻路对象.
type World struct {
	Config  *Config
	Manager *gridmap.Manager
	Engine  *pathing.Engine
	Service *service.Service

	log     logrus.FieldLogger
	cache   *bake.Cache
	spaces  map[string]*bake.Space
	columns map[string]*bake.ColumnMap
	moves   []*portalaction.Move
}

type buildOptions struct {
	cache   *bake.Cache
	service []service.Option
}

type BuildOption func(*buildOptions)

// WithBakeCache 复用缓存中输入相同的网格烘焙结果, 新的结果也写回缓存.
func WithBakeCache(c *bake.Cache) BuildOption {
	return func(o *buildOptions) { o.cache = c }
}

func WithServiceOptions(opts ...service.Option) BuildOption {
	return func(o *buildOptions) { o.service = append(o.service, opts...) }
}

func (c *Config) area(a Area) gridmap.Bounds {
	return gridmap.Bounds{MinX: a.Min[0], MinZ: a.Min[1], MaxX: a.Max[0], MaxZ: a.Max[1]}
}

func (c *Config) provider() gridmap.MoveCostProvider {
	base := c.Engine.BaseCost
	switch c.Engine.Heuristic {
	case "euclidean":
		return gridmap.EuclideanDistance{Base: base}
	case "manhattan":
		return gridmap.ManhattanDistance{Base: base}
	case "cardinal":
		return gridmap.CardinalDistance{Base: base}
	}
	return gridmap.DiagonalDistance{Base: base}
}

// BuildWorld bakes every grid, registers portals and starts the path service.
func BuildWorld(cfg *Config, log logrus.FieldLogger, opts ...BuildOption) (*World, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}
	w := &World{
		Config:  cfg,
		Manager: gridmap.NewManager(),
		log:     log,
		cache:   bo.cache,
		spaces:  make(map[string]*bake.Space, len(cfg.Grids)),
		columns: make(map[string]*bake.ColumnMap),
	}

	for _, gs := range cfg.Grids {
		g, err := w.buildGrid(gs)
		if err != nil {
			return nil, err
		}
		if err := w.Manager.RegisterGrid(g); err != nil {
			return nil, fmt.Errorf("config: register grid %q: %w", gs.Name, err)
		}
		log.WithFields(logrus.Fields{"grid": gs.Name, "size": fmt.Sprintf("%dx%d", gs.Columns, gs.Rows)}).
			Info("grid baked")
	}

	for _, ps := range cfg.Portals {
		if err := w.buildPortal(ps); err != nil {
			return nil, err
		}
	}

	popts := pathing.Options{
		Logger:    log,
		ArenaHint: cfg.Engine.ArenaHint,
	}
	if cfg.Engine.SmoothingEpsilon > 0 {
		popts.Smoother = &pathing.Smoother{Epsilon: cfg.Engine.SmoothingEpsilon}
	}
	if cfg.Engine.Algorithm == "astar" {
		w.Engine = pathing.NewEngine(cfg.provider(), popts)
	} else {
		w.Engine = pathing.NewJPSEngine(cfg.provider(), popts)
	}

	scfg := service.Config{
		Async:       cfg.Service.Async,
		PoolSize:    cfg.Service.PoolSize,
		SliceBudget: cfg.Service.SliceBudget,
	}
	w.Service = service.New(w.Manager, w.Engine, scfg, append([]service.Option{service.WithLogger(log)}, bo.service...)...)
	return w, nil
}

func (w *World) buildGrid(gs GridSpec) (*gridmap.Grid, error) {
	mcfg := gridmap.MatrixConfig{
		Origin:                   gridmap.Vec3(gs.Origin[0], gs.Origin[1], gs.Origin[2]),
		Columns:                  gs.Columns,
		Rows:                     gs.Rows,
		CellSize:                 gs.CellSize,
		MaxSlopeAngle:            gs.MaxSlopeAngle,
		MaxScaleHeight:           gs.MaxScaleHeight,
		HeightGranularity:        gs.HeightGranularity,
		ObstacleSensitivityRange: gs.ObstacleSensitivityRange,
	}

	var src gridmap.BakeSources
	if h := gs.Height; h != nil {
		switch {
		case h.Plane != nil:
			src.Heights = bake.Plane{Origin: mcfg.Origin, SlopeX: h.Plane.SlopeX, SlopeZ: h.Plane.SlopeZ}
		case h.Field != nil:
			hf, err := bake.NewHeightField(mcfg.Origin, h.Field.Spacing, h.Field.Columns, h.Field.Rows, h.Field.Heights)
			if err != nil {
				return nil, fmt.Errorf("config: grid %q: %w", gs.Name, err)
			}
			src.Heights = hf
		case h.Columns != nil:
			cm := buildColumns(mcfg.Origin, h.Columns)
			src.Heights = cm
			w.columns[gs.Name] = cm
		}
	}

	space, err := w.obstaclesFor(gs.Name)
	if err != nil {
		return nil, err
	}
	if space != nil {
		w.spaces[gs.Name] = space
	}
	switch cm := w.columns[gs.Name]; {
	case cm != nil && space != nil:
		src.Obstruction = bake.AnyOf{space, cm}
	case cm != nil:
		src.Obstruction = cm
	case space != nil:
		src.Obstruction = space
	}

	m, err := w.bakeMatrix(gs, mcfg, src)
	if err != nil {
		return nil, fmt.Errorf("config: grid %q: %w", gs.Name, err)
	}
	g := gridmap.NewGrid(gs.Name, m, gridmap.GridOptions{SectionSize: gs.SectionSize, SectionOverlap: gs.SectionOverlap})
	for _, a := range gs.Blocked {
		g.SetBlocked(w.Config.area(a), true)
	}
	for _, cs := range gs.Costs {
		m.CellsIn(m.BoundsOf(w.Config.area(cs.Area)), func(c *gridmap.Cell) { c.SetCost(cs.Cost) })
	}
	return g, nil
}

func buildColumns(origin gridmap.Vector3, cs *ColumnsSpec) *bake.ColumnMap {
	rule := bake.SupportRule{
		StepUp:   uint16(cs.StepUp * bake.HeightScale),
		Headroom: uint16(cs.Headroom * bake.HeightScale),
	}
	cm := bake.NewColumnMap(origin, cs.Spacing, rule, uint16(cs.Reference*bake.HeightScale))
	for _, cell := range cs.Cells {
		spans := make([]bake.Span, 0, len(cell.Spans))
		for _, sp := range cell.Spans {
			spans = append(spans, bake.Span{
				Begin:    uint16(sp.Begin * bake.HeightScale),
				End:      uint16(sp.End * bake.HeightScale),
				Material: bake.Material(sp.Material),
			})
		}
		cm.Set(cell.At[0], cell.At[1], bake.NewColumn(spans...))
	}
	return cm
}

// bakeKey 网格烘焙的全部输入: 网格本身和作用于它的障碍.
func (w *World) bakeKey(gs GridSpec) ([]byte, error) {
	in := struct {
		Grid      GridSpec       `yaml:"grid"`
		Obstacles []ObstacleSpec `yaml:"obstacles"`
	}{Grid: gs}
	for _, o := range w.Config.Obstacles {
		if o.Grid == "" || o.Grid == gs.Name {
			in.Obstacles = append(in.Obstacles, o)
		}
	}
	return yaml.Marshal(in)
}

// bakeMatrix 优先从缓存恢复, 否则烘焙并写回缓存.
func (w *World) bakeMatrix(gs GridSpec, mcfg gridmap.MatrixConfig, src gridmap.BakeSources) (*gridmap.CellMatrix, error) {
	if w.cache == nil {
		return gridmap.BakeCellMatrix(mcfg, src)
	}
	log := w.log.WithField("grid", gs.Name)
	key, err := w.bakeKey(gs)
	if err != nil {
		log.WithError(err).Warn("bake cache key failed, baking uncached")
		return gridmap.BakeCellMatrix(mcfg, src)
	}
	if snap, ok := w.cache.Get(key); ok {
		m, err := gridmap.RestoreCellMatrix(mcfg, src, bytes.NewReader(snap))
		if err == nil {
			log.Debug("grid restored from bake cache")
			return m, nil
		}
		log.WithError(err).Warn("bake cache entry unusable")
	}
	m, err := gridmap.BakeCellMatrix(mcfg, src)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := m.WriteSnapshot(&buf); err != nil {
		log.WithError(err).Warn("bake snapshot failed")
		return m, nil
	}
	w.cache.Put(key, buf.Bytes())
	return m, nil
}

// obstaclesFor 返回作用于该网格的障碍空间, 没有障碍时返回 nil.
func (w *World) obstaclesFor(grid string) (*bake.Space, error) {
	var space *bake.Space
	for _, o := range w.Config.Obstacles {
		if o.Grid != "" && o.Grid != grid {
			continue
		}
		if space == nil {
			space = bake.NewSpace()
		}
		var err error
		switch {
		case o.Box != nil:
			err = space.AddBox(o.Name, w.Config.area(*o.Box))
		case o.Circle != nil:
			err = space.AddCircle(o.Name, gridmap.Vec3(o.Circle.Center[0], 0, o.Circle.Center[1]), o.Circle.Radius)
		case o.Wall != nil:
			pts := make([]gridmap.Vector3, 0, len(o.Wall.Points))
			for _, p := range o.Wall.Points {
				pts = append(pts, gridmap.Vec3(p[0], 0, p[1]))
			}
			err = space.AddWall(o.Name, o.Wall.Thickness, pts...)
		}
		if err != nil {
			return nil, fmt.Errorf("config: grid %q: %w", grid, err)
		}
	}
	return space, nil
}

func (w *World) buildAction(ps PortalSpec) (gridmap.PortalAction, error) {
	a := ps.Action
	switch a.Kind {
	case "move":
		m := portalaction.NewMove(a.Speed, a.CostPerUnit)
		w.moves = append(w.moves, m)
		return m, nil
	case "script":
		src, err := w.Config.ScriptSource(a)
		if err != nil {
			return nil, err
		}
		s, err := portalaction.NewScripted(ps.Name, src, w.log)
		if err != nil {
			return nil, fmt.Errorf("config: portal %q: %w", ps.Name, err)
		}
		if a.Cost > 0 {
			s.DefaultCost = a.Cost
		}
		return s, nil
	}
	return portalaction.Teleport{Cost: a.Cost}, nil
}

func (w *World) buildPortal(ps PortalSpec) error {
	action, err := w.buildAction(ps)
	if err != nil {
		return err
	}
	typ := gridmap.PortalConnector
	if ps.Type == "shortcut" {
		typ = gridmap.PortalShortcut
	}
	p, err := gridmap.NewPortal(gridmap.PortalConfig{
		Name:               ps.Name,
		Type:               typ,
		RequiredAttributes: gridmap.AttributeMask(ps.RequiredAttributes),
		Action:             action,
		GridOne:            w.Manager.GridByName(ps.One.Grid),
		BoundsOne:          w.Config.area(ps.One.Area),
		GridTwo:            w.Manager.GridByName(ps.Two.Grid),
		BoundsTwo:          w.Config.area(ps.Two.Area),
	})
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := w.Manager.RegisterPortal(p); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if ps.Disabled {
		p.Disable()
	}
	w.log.WithFields(logrus.Fields{"portal": ps.Name, "type": typ.String()}).Debug("portal registered")
	return nil
}

// Space returns the obstacle space baked into grid, nil when it has none.
func (w *World) Space(grid string) *bake.Space { return w.spaces[grid] }

// Columns returns the voxel columns of grid, nil unless its height source is columns.
func (w *World) Columns(grid string) *bake.ColumnMap { return w.columns[grid] }

// Tick 推进补间动作; 非异步模式下同时给服务一个时间片.
func (w *World) Tick(dt time.Duration) {
	secs := float32(dt.Seconds())
	for _, m := range w.moves {
		m.Update(secs)
	}
	if !w.Config.Service.Async {
		w.Service.Advance(0)
	}
}

type agent struct {
	mu  sync.Mutex
	pos gridmap.Vector3
}

func (a *agent) Position() gridmap.Vector3 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pos
}

func (a *agent) SetPosition(p gridmap.Vector3) {
	a.mu.Lock()
	a.pos = p
	a.mu.Unlock()
}

// Traverse runs the action of the named portal for an agent standing at from
// and calls done with the agent's final position. Tweened actions finish on
// later Ticks.
func (w *World) Traverse(name string, from gridmap.Vector3, done func(gridmap.Vector3)) error {
	p := w.Manager.Portal(name)
	if p == nil {
		return fmt.Errorf("%w: %s", ErrUnknownPortal, name)
	}
	if !p.Enabled() {
		return fmt.Errorf("%w: %s", ErrPortalDisabled, name)
	}
	var entry, exit *gridmap.PortalCell
	for _, pc := range [2]*gridmap.PortalCell{p.One(), p.Two()} {
		if c := pc.Grid().GetCell(from); c != nil && pc.Covers(c) {
			entry, exit = pc, pc.Partner()
			break
		}
	}
	if entry == nil {
		return fmt.Errorf("%w: %s at %v", ErrNotOnPortal, name, from)
	}
	a := &agent{pos: from}
	p.Action().Execute(a, entry.Grid().GetCell(from), exit, func() {
		if done != nil {
			done(a.Position())
		}
	})
	return nil
}

func (w *World) Close() {
	w.Service.Close()
	w.Engine.Release()
}
