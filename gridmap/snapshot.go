package gridmap

import (
	"errors"
	"fmt"
	"io"
)

const (
	snapshotMagic   uint32 = 0x47_4E_41_56 // "GNAV"
	snapshotVersion uint16 = 2
)

var (
	ErrSnapshotFormat   = errors.New("gridmap: bad snapshot format")
	ErrSnapshotMismatch = errors.New("gridmap: snapshot does not match matrix dimensions")
)

const cellFlagBlocked uint8 = 1

// WriteSnapshot 烘焙数据快照: 每格的阻挡标志, 坡度阻挡, 高度阻挡, 代价和高度, 再加稀疏高度图.
func (m *CellMatrix) WriteSnapshot(w io.Writer) error {
	bw := NewBinWriter(w, true)
	bw.WriteUint32(snapshotMagic)
	bw.WriteUint16(snapshotVersion)
	bw.WriteUint32(uint32(m.cfg.Columns))
	bw.WriteUint32(uint32(m.cfg.Rows))
	bw.WriteFloat64(m.cfg.CellSize)

	for i := range m.cells {
		c := &m.cells[i]
		var flags uint8
		if c.blocked {
			flags |= cellFlagBlocked
		}
		bw.WriteUint8(flags)
		bw.WriteUint8(c.slopeBlocks)
		bw.WriteUint8(c.heightBlocked)
		bw.WriteInt32(int32(c.cost))
		bw.WriteFloat64(c.position.Y)
	}

	bw.WriteUint32(uint32(m.heights.Len()))
	m.heights.each(func(k heightKey, h float64) {
		bw.WriteInt32(k.x)
		bw.WriteInt32(k.z)
		bw.WriteFloat64(h)
	})
	return bw.Flush()
}

// RestoreSnapshot loads data written by WriteSnapshot. Dynamic obstacles and
// portal registrations are runtime state and are left untouched.
func (m *CellMatrix) RestoreSnapshot(r io.Reader) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrSnapshotFormat, rec)
		}
	}()

	br := NewBinReader(r, true)
	if br.ReadUint32() != snapshotMagic {
		return ErrSnapshotFormat
	}
	if v := br.ReadUint16(); v != snapshotVersion {
		return fmt.Errorf("%w: version %d", ErrSnapshotFormat, v)
	}
	cols, rows := int(br.ReadUint32()), int(br.ReadUint32())
	cellSize := br.ReadFloat64()
	if cols != m.cfg.Columns || rows != m.cfg.Rows || cellSize != m.cfg.CellSize {
		return fmt.Errorf("%w: got %dx%d@%v, want %dx%d@%v", ErrSnapshotMismatch,
			cols, rows, cellSize, m.cfg.Columns, m.cfg.Rows, m.cfg.CellSize)
	}

	for i := range m.cells {
		c := &m.cells[i]
		flags := br.ReadUint8()
		c.blocked = flags&cellFlagBlocked != 0
		c.slopeBlocks = br.ReadUint8()
		c.heightBlocked = br.ReadUint8()
		c.cost = int(br.ReadInt32())
		c.position.Y = br.ReadFloat64()
	}

	n := int(br.ReadUint32())
	for i := 0; i < n; i++ {
		k := heightKey{x: br.ReadInt32(), z: br.ReadInt32()}
		m.heights.set(k, br.ReadFloat64())
	}
	return nil
}

// RestoreCellMatrix lays out a matrix and fills it from a snapshot instead of
// baking. src is kept for later UpdateRegion calls.
func RestoreCellMatrix(cfg MatrixConfig, src BakeSources, r io.Reader) (*CellMatrix, error) {
	m := newCellMatrix(cfg, src)
	if err := m.RestoreSnapshot(r); err != nil {
		return nil, err
	}
	return m, nil
}
