package gridmap

// Dir is one of the eight neighbour directions. N is +Z, E is +X.
type Dir int8

const (
	N Dir = iota
	NE
	E
	SE
	S
	SW
	W
	NW

	DirNone Dir = -1
)

var dirDX = [8]int{0, 1, 1, 1, 0, -1, -1, -1}
var dirDZ = [8]int{1, 1, 0, -1, -1, -1, 0, 1}

// forwardDirs 每对相邻格只处理一次.
var forwardDirs = [4]Dir{N, NE, E, SE}

var straightDirs = [4]Dir{N, E, S, W}
var diagonalDirs = [4]Dir{NE, SE, SW, NW}

func (d Dir) DX() int { return dirDX[d] }
func (d Dir) DZ() int { return dirDZ[d] }

func (d Dir) IsDiagonal() bool { return d&1 == 1 }

func (d Dir) Opposite() Dir { return (d + 4) & 7 }

func (d Dir) bit() uint8 { return 1 << uint8(d) }

// Flanks returns the two straight directions a diagonal passes between.
func (d Dir) Flanks() (Dir, Dir) {
	return (d - 1) & 7, (d + 1) & 7
}

func (d Dir) String() string {
	switch d {
	case N:
		return "N"
	case NE:
		return "NE"
	case E:
		return "E"
	case SE:
		return "SE"
	case S:
		return "S"
	case SW:
		return "SW"
	case W:
		return "W"
	case NW:
		return "NW"
	}
	return "none"
}

// DirOf 由位移符号得到方向，dx,dz 只看符号.
func DirOf(dx, dz int) Dir {
	dx, dz = signInt(dx), signInt(dz)
	for d := N; d <= NW; d++ {
		if dirDX[d] == dx && dirDZ[d] == dz {
			return d
		}
	}
	return DirNone
}
