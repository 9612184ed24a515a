package gridmap

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
)

type BinWriter struct {
	writer       *bufio.Writer
	littleEndian bool
	endianBuf    []byte
}

func NewBinWriter(file io.Writer, littleEndian bool) *BinWriter {
	return &BinWriter{
		writer:       bufio.NewWriter(file),
		littleEndian: littleEndian,
		endianBuf:    make([]byte, 8),
	}
}

func (w *BinWriter) byteOrder() binary.ByteOrder {
	if w.littleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

func (w *BinWriter) WriteBool(v bool) {
	_ = w.writer.WriteByte(BoolToByte(v))
}

func (w *BinWriter) WriteUint8(v uint8) {
	_ = w.writer.WriteByte(v)
}

func (w *BinWriter) WriteUint16(v uint16) {
	w.byteOrder().PutUint16(w.endianBuf, v)
	_, _ = w.writer.Write(w.endianBuf[:2])
}

func (w *BinWriter) WriteUint32(v uint32) {
	w.byteOrder().PutUint32(w.endianBuf, v)
	_, _ = w.writer.Write(w.endianBuf[:4])
}

func (w *BinWriter) WriteInt32(v int32) {
	w.WriteUint32(uint32(v))
}

func (w *BinWriter) WriteFloat64(v float64) {
	w.byteOrder().PutUint64(w.endianBuf, math.Float64bits(v))
	_, _ = w.writer.Write(w.endianBuf[:8])
}

func (w *BinWriter) Flush() error {
	return w.writer.Flush()
}

// BinReader panics on short reads; callers recover at the format boundary.
type BinReader struct {
	reader       io.Reader
	littleEndian bool
	endianBuf    []byte
}

func NewBinReader(file io.Reader, littleEndian bool) *BinReader {
	return &BinReader{
		reader:       bufio.NewReader(file),
		littleEndian: littleEndian,
		endianBuf:    make([]byte, 8),
	}
}

func (r *BinReader) byteOrder() binary.ByteOrder {
	if r.littleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

func (r *BinReader) fill(n int) []byte {
	if _, err := io.ReadFull(r.reader, r.endianBuf[:n]); err != nil {
		panic(err)
	}
	return r.endianBuf[:n]
}

func (r *BinReader) ReadBool() bool {
	return r.fill(1)[0] != 0
}

func (r *BinReader) ReadUint8() uint8 {
	return r.fill(1)[0]
}

func (r *BinReader) ReadUint16() uint16 {
	return r.byteOrder().Uint16(r.fill(2))
}

func (r *BinReader) ReadUint32() uint32 {
	return r.byteOrder().Uint32(r.fill(4))
}

func (r *BinReader) ReadInt32() int32 {
	return int32(r.ReadUint32())
}

func (r *BinReader) ReadFloat64() float64 {
	return math.Float64frombits(r.byteOrder().Uint64(r.fill(8)))
}

func BoolToByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
