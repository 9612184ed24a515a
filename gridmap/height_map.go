package gridmap

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// HeightSampler samples terrain height at a world position.
type HeightSampler interface {
	SampleHeight(pos Vector3) float64
}

// HeightSamplerFunc adapts a function to HeightSampler.
type HeightSamplerFunc func(pos Vector3) float64

func (f HeightSamplerFunc) SampleHeight(pos Vector3) float64 { return f(pos) }

// ErrHeightSample wraps a panic raised by a HeightSampler during Populate.
var ErrHeightSample = errors.New("gridmap: height sampler failed")

type heightKey struct{ x, z int32 }

type heightSample struct {
	key heightKey
	h   float64
}

// HeightMap 稀疏高度图, 精度与格子大小无关且更细.
type HeightMap struct {
	mu          sync.RWMutex
	origin      Vector3
	granularity float64
	samples     map[heightKey]float64
}

func NewHeightMap(origin Vector3, granularity float64) *HeightMap {
	return &HeightMap{
		origin:      origin,
		granularity: granularity,
		samples:     make(map[heightKey]float64),
	}
}

func (hm *HeightMap) Granularity() float64 { return hm.granularity }

func (hm *HeightMap) Len() int {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	return len(hm.samples)
}

func (hm *HeightMap) keyOf(x, z float64) heightKey {
	return heightKey{
		x: int32(math.Round((x - hm.origin.X) / hm.granularity)),
		z: int32(math.Round((z - hm.origin.Z) / hm.granularity)),
	}
}

func (hm *HeightMap) posOf(k heightKey) Vector3 {
	return Vector3{
		X: hm.origin.X + float64(k.x)*hm.granularity,
		Z: hm.origin.Z + float64(k.z)*hm.granularity,
	}
}

// Sample returns the nearest stored sample.
func (hm *HeightMap) Sample(x, z float64) (float64, bool) {
	hm.mu.RLock()
	h, ok := hm.samples[hm.keyOf(x, z)]
	hm.mu.RUnlock()
	return h, ok
}

func (hm *HeightMap) set(k heightKey, h float64) {
	hm.mu.Lock()
	hm.samples[k] = h
	hm.mu.Unlock()
}

// Populate 对区域内所有采样点重新采样, 按行并行. 采样器 panic 时返回
// ErrHeightSample, 已有的采样保持不变.
func (hm *HeightMap) Populate(area Bounds, sampler HeightSampler) error {
	if sampler == nil {
		return nil
	}
	lo := hm.keyOf(area.MinX, area.MinZ)
	hi := hm.keyOf(area.MaxX, area.MaxZ)

	rows := make([][]heightSample, int(hi.z-lo.z)+1)
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for iz := lo.z; iz <= hi.z; iz++ {
		row := int(iz - lo.z)
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: row %d: %v", ErrHeightSample, iz, r)
				}
			}()
			out := make([]heightSample, 0, int(hi.x-lo.x)+1)
			for ix := lo.x; ix <= hi.x; ix++ {
				k := heightKey{ix, iz}
				out = append(out, heightSample{key: k, h: sampler.SampleHeight(hm.posOf(k))})
			}
			rows[row] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	hm.mu.Lock()
	defer hm.mu.Unlock()
	for _, row := range rows {
		for _, s := range row {
			hm.samples[s.key] = s.h
		}
	}
	return nil
}

func (hm *HeightMap) each(f func(k heightKey, h float64)) {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	for k, h := range hm.samples {
		f(k, h)
	}
}
