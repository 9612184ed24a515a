package gridmap

import (
	"math"
)

// AttributeMask 描述请求者的特殊通行能力，或障碍物的豁免能力. 每个 bit 一种属性.
type AttributeMask uint32

const (
	AttributesNone AttributeMask = 0
	AttributesAll  AttributeMask = math.MaxUint32
)

func (m AttributeMask) Has(o AttributeMask) bool { return m&o == o }

func (m AttributeMask) Any(o AttributeMask) bool { return m&o != 0 }

// DynamicObstacle blocks every cell it is applied to, except for requesters
// carrying one of the Exceptions attributes.
type DynamicObstacle struct {
	Name       string
	Exceptions AttributeMask
}

func NewDynamicObstacle(name string, exceptions AttributeMask) *DynamicObstacle {
	return &DynamicObstacle{Name: name, Exceptions: exceptions}
}
