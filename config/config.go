// Package config loads the gridnav yaml configuration and builds a world
// (grids, obstacles, portals, engine and service) from it.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"gridnav/bake"
)

var (
	ErrInvalid     = errors.New("config: invalid")
	ErrUnknownGrid = errors.New("config: unknown grid")
)

type Config struct {
	LogLevel  string         `yaml:"log_level"`
	Server    ServerSpec     `yaml:"server"`
	Service   ServiceSpec    `yaml:"service"`
	Engine    EngineSpec     `yaml:"engine"`
	Grids     []GridSpec     `yaml:"grids"`
	Obstacles []ObstacleSpec `yaml:"obstacles"`
	Portals   []PortalSpec   `yaml:"portals"`

	// dir 配置文件所在目录, 用于解析脚本的相对路径.
	dir string
}

type ServerSpec struct {
	Addr string `yaml:"addr"`
	// Tick 驱动协作式处理和补间动作的间隔.
	Tick time.Duration `yaml:"tick"`
}

type ServiceSpec struct {
	Async       bool          `yaml:"async"`
	PoolSize    int64         `yaml:"pool_size"`
	SliceBudget time.Duration `yaml:"slice_budget"`
}

type EngineSpec struct {
	Algorithm        string  `yaml:"algorithm"` // astar | jps
	Heuristic        string  `yaml:"heuristic"` // diagonal | euclidean | manhattan | cardinal
	BaseCost         int     `yaml:"base_cost"`
	SmoothingEpsilon float64 `yaml:"smoothing_epsilon"`
	ArenaHint        int     `yaml:"arena_hint"`
}

// Area is a world rectangle on the XZ plane given as [x, z] corners.
type Area struct {
	Min [2]float64 `yaml:"min"`
	Max [2]float64 `yaml:"max"`
}

type CostSpec struct {
	Area Area `yaml:"area"`
	Cost int  `yaml:"cost"`
}

type PlaneSpec struct {
	SlopeX float64 `yaml:"slope_x"`
	SlopeZ float64 `yaml:"slope_z"`
}

type FieldSpec struct {
	Spacing float64   `yaml:"spacing"`
	Columns int       `yaml:"columns"`
	Rows    int       `yaml:"rows"`
	Heights []float64 `yaml:"heights"`
}

// SpanSpec 柱列中的一段阻挡, 单位米, 相对网格原点高度.
type SpanSpec struct {
	Begin    float64 `yaml:"begin"`
	End      float64 `yaml:"end"`
	Material uint32  `yaml:"material"`
}

type ColumnCellSpec struct {
	At    [2]int     `yaml:"at"`
	Spans []SpanSpec `yaml:"spans"`
}

// ColumnsSpec 体素柱列地形: 高度取 Reference 附近可站立的上表面, 无处可站的柱列阻挡.
type ColumnsSpec struct {
	Spacing   float64          `yaml:"spacing"`
	Reference float64          `yaml:"reference"`
	StepUp    float64          `yaml:"step_up"`
	Headroom  float64          `yaml:"headroom"`
	Cells     []ColumnCellSpec `yaml:"cells"`
}

type HeightSpec struct {
	Plane   *PlaneSpec   `yaml:"plane"`
	Field   *FieldSpec   `yaml:"field"`
	Columns *ColumnsSpec `yaml:"columns"`
}

type GridSpec struct {
	Name     string     `yaml:"name"`
	Origin   [3]float64 `yaml:"origin"`
	Columns  int        `yaml:"columns"`
	Rows     int        `yaml:"rows"`
	CellSize float64    `yaml:"cell_size"`

	SectionSize    int `yaml:"section_size"`
	SectionOverlap int `yaml:"section_overlap"`

	MaxSlopeAngle            float64 `yaml:"max_slope_angle"`
	MaxScaleHeight           float64 `yaml:"max_scale_height"`
	HeightGranularity        float64 `yaml:"height_granularity"`
	ObstacleSensitivityRange float64 `yaml:"obstacle_sensitivity_range"`

	Height  *HeightSpec `yaml:"height"`
	Blocked []Area      `yaml:"blocked"`
	Costs   []CostSpec  `yaml:"costs"`
}

type CircleSpec struct {
	Center [2]float64 `yaml:"center"`
	Radius float64    `yaml:"radius"`
}

type WallSpec struct {
	Points    [][2]float64 `yaml:"points"`
	Thickness float64      `yaml:"thickness"`
}

// ObstacleSpec 烘焙进网格的静态障碍, 三种形状选其一.
// Grid 为空时作用于所有网格.
type ObstacleSpec struct {
	Name   string      `yaml:"name"`
	Grid   string      `yaml:"grid"`
	Box    *Area       `yaml:"box"`
	Circle *CircleSpec `yaml:"circle"`
	Wall   *WallSpec   `yaml:"wall"`
}

type EndpointSpec struct {
	Grid string `yaml:"grid"`
	Area Area   `yaml:"area"`
}

type ActionSpec struct {
	Kind string `yaml:"kind"` // teleport | move | script

	Cost        int     `yaml:"cost"`
	Speed       float64 `yaml:"speed"`
	CostPerUnit float64 `yaml:"cost_per_unit"`

	Script     string `yaml:"script"`
	ScriptFile string `yaml:"script_file"`
}

type PortalSpec struct {
	Name               string       `yaml:"name"`
	Type               string       `yaml:"type"` // shortcut | connector
	RequiredAttributes uint32       `yaml:"required_attributes"`
	Disabled           bool         `yaml:"disabled"`
	One                EndpointSpec `yaml:"one"`
	Two                EndpointSpec `yaml:"two"`
	Action             ActionSpec   `yaml:"action"`
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.dir = filepath.Dir(path)
	return cfg, nil
}

// Parse decodes data, fills defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.Tick <= 0 {
		c.Server.Tick = 20 * time.Millisecond
	}
	if c.Engine.Algorithm == "" {
		c.Engine.Algorithm = "jps"
	}
	if c.Engine.Heuristic == "" {
		c.Engine.Heuristic = "diagonal"
	}
	for i := range c.Grids {
		g := &c.Grids[i]
		if g.CellSize <= 0 {
			g.CellSize = 1
		}
		if h := g.Height; h != nil && h.Columns != nil {
			cs := h.Columns
			if cs.Spacing <= 0 {
				cs.Spacing = g.CellSize
			}
			if cs.StepUp <= 0 {
				cs.StepUp = float64(bake.DefaultStepUp) / bake.HeightScale
			}
			if cs.Headroom <= 0 {
				cs.Headroom = float64(bake.DefaultHeadroom) / bake.HeightScale
			}
		}
	}
	for i := range c.Portals {
		if c.Portals[i].Type == "" {
			c.Portals[i].Type = "connector"
		}
		if c.Portals[i].Action.Kind == "" {
			c.Portals[i].Action.Kind = "teleport"
		}
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func (a Area) valid() bool { return a.Max[0] > a.Min[0] && a.Max[1] > a.Min[1] }

// Validate 检查引用和取值范围, 返回遇到的所有错误.
func (c *Config) Validate() error {
	var errs []error
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, invalid("log_level: %v", err))
	}
	switch c.Engine.Algorithm {
	case "astar", "jps":
	default:
		errs = append(errs, invalid("engine.algorithm %q", c.Engine.Algorithm))
	}
	switch c.Engine.Heuristic {
	case "diagonal", "euclidean", "manhattan", "cardinal":
	default:
		errs = append(errs, invalid("engine.heuristic %q", c.Engine.Heuristic))
	}
	if c.Engine.BaseCost < 0 {
		errs = append(errs, invalid("engine.base_cost %d", c.Engine.BaseCost))
	}

	grids := make(map[string]bool, len(c.Grids))
	for i, g := range c.Grids {
		switch {
		case g.Name == "":
			errs = append(errs, invalid("grids[%d]: missing name", i))
		case grids[g.Name]:
			errs = append(errs, invalid("grids[%d]: duplicate name %q", i, g.Name))
		}
		grids[g.Name] = true
		if g.Columns <= 0 || g.Rows <= 0 {
			errs = append(errs, invalid("grid %q: size %dx%d", g.Name, g.Columns, g.Rows))
		}
		for j, a := range g.Blocked {
			if !a.valid() {
				errs = append(errs, invalid("grid %q: blocked[%d] is empty", g.Name, j))
			}
		}
		for j, cs := range g.Costs {
			if !cs.Area.valid() || cs.Cost < 0 {
				errs = append(errs, invalid("grid %q: costs[%d]", g.Name, j))
			}
		}
		if h := g.Height; h != nil {
			sources := 0
			for _, set := range []bool{h.Plane != nil, h.Field != nil, h.Columns != nil} {
				if set {
					sources++
				}
			}
			if sources != 1 {
				errs = append(errs, invalid("grid %q: height needs exactly one of plane, field or columns", g.Name))
			}
			if cs := h.Columns; cs != nil {
				for j, cell := range cs.Cells {
					for _, sp := range cell.Spans {
						if sp.Begin < 0 || sp.End <= sp.Begin || sp.End*bake.HeightScale > math.MaxUint16 {
							errs = append(errs, invalid("grid %q: columns.cells[%d] span [%v, %v]", g.Name, j, sp.Begin, sp.End))
						}
					}
				}
			}
		}
	}

	for i, o := range c.Obstacles {
		shapes := 0
		for _, set := range []bool{o.Box != nil, o.Circle != nil, o.Wall != nil} {
			if set {
				shapes++
			}
		}
		if o.Name == "" || shapes != 1 {
			errs = append(errs, invalid("obstacles[%d] %q: needs a name and exactly one shape", i, o.Name))
		}
		if o.Grid != "" && !grids[o.Grid] {
			errs = append(errs, fmt.Errorf("obstacle %q: %w %q", o.Name, ErrUnknownGrid, o.Grid))
		}
	}

	portals := make(map[string]bool, len(c.Portals))
	for i, p := range c.Portals {
		if p.Name == "" || portals[p.Name] {
			errs = append(errs, invalid("portals[%d]: missing or duplicate name %q", i, p.Name))
		}
		portals[p.Name] = true
		switch p.Type {
		case "shortcut", "connector":
		default:
			errs = append(errs, invalid("portal %q: type %q", p.Name, p.Type))
		}
		for _, ep := range []EndpointSpec{p.One, p.Two} {
			if !grids[ep.Grid] {
				errs = append(errs, fmt.Errorf("portal %q: %w %q", p.Name, ErrUnknownGrid, ep.Grid))
			}
			if !ep.Area.valid() {
				errs = append(errs, invalid("portal %q: empty endpoint area", p.Name))
			}
		}
		switch a := p.Action; a.Kind {
		case "teleport", "move":
		case "script":
			if strings.TrimSpace(a.Script) == "" && a.ScriptFile == "" {
				errs = append(errs, invalid("portal %q: script action without script", p.Name))
			}
		default:
			errs = append(errs, invalid("portal %q: action kind %q", p.Name, a.Kind))
		}
	}
	return errors.Join(errs...)
}

// Level returns the parsed log level, info when unparsable.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// ScriptSource 返回动作脚本源码, script_file 相对配置文件目录解析.
func (c *Config) ScriptSource(a ActionSpec) (string, error) {
	if a.ScriptFile == "" {
		return a.Script, nil
	}
	path := a.ScriptFile
	if !filepath.IsAbs(path) && c.dir != "" {
		path = filepath.Join(c.dir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: load script %s: %w", path, err)
	}
	return string(data), nil
}
