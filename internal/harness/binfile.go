package harness

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/samcharles93/blockmac/internal/fixed"
)

// Binary matrix file layout, all little endian:
//
//	[0:4)   magic "BMX1"
//	[4]     element bits (8, 16 or 32)
//	[5:8)   reserved, zero
//	[8:12)  rows
//	[12:16) cols
//	[16:)   rows*cols elements, row-major
const (
	binMagic      = "BMX1"
	binHeaderSize = 16
)

var (
	ErrInvalidMagic = errors.New("invalid matrix file magic")
	ErrCorruptFile  = errors.New("corrupt matrix file")
)

// MatrixFile is a binary matrix mapped read-only into memory.
type MatrixFile struct {
	Rows, Cols int
	Bits       uint

	data    []byte
	mmapped bool
}

// OpenMatrix maps a binary matrix file. When mmap is unavailable it reads
// the file instead. The returned file must be closed.
func OpenMatrix(path string) (*MatrixFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size64 := stat.Size()
	if size64 < binHeaderSize || size64 > int64(int(^uint(0)>>1)) {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorruptFile, size64)
	}
	size := int(size64)

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err == nil {
		mf, perr := parseMatrix(data, true)
		if perr != nil {
			_ = unix.Munmap(data)
			return nil, perr
		}
		return mf, nil
	}

	data = make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(f, 0, size64), data); err != nil {
		return nil, err
	}
	return parseMatrix(data, false)
}

func parseMatrix(data []byte, mmapped bool) (*MatrixFile, error) {
	if len(data) < binHeaderSize {
		return nil, ErrCorruptFile
	}
	if string(data[:4]) != binMagic {
		return nil, ErrInvalidMagic
	}
	bits := uint(data[4])
	if !fixed.ValidWidth(bits) {
		return nil, fmt.Errorf("%w: element width %d", ErrCorruptFile, bits)
	}
	rows := uint64(binary.LittleEndian.Uint32(data[8:12]))
	cols := uint64(binary.LittleEndian.Uint32(data[12:16]))
	// rows*cols fits in 64 bits; the byte size may not, so compare counts.
	body, size := uint64(len(data)-binHeaderSize), uint64(bits/8)
	if body%size != 0 || rows*cols != body/size {
		return nil, fmt.Errorf("%w: %dx%d int%d does not match %d data bytes", ErrCorruptFile, rows, cols, bits, body)
	}
	return &MatrixFile{Rows: int(rows), Cols: int(cols), Bits: bits, data: data, mmapped: mmapped}, nil
}

// Values decodes the elements in row-major order.
func (m *MatrixFile) Values() []int64 {
	body := m.data[binHeaderSize:]
	out := make([]int64, m.Rows*m.Cols)
	for i := range out {
		switch m.Bits {
		case 8:
			out[i] = int64(int8(body[i]))
		case 16:
			out[i] = int64(int16(binary.LittleEndian.Uint16(body[2*i:])))
		default:
			out[i] = int64(int32(binary.LittleEndian.Uint32(body[4*i:])))
		}
	}
	return out
}

// Close releases the mapping.
func (m *MatrixFile) Close() error {
	if m == nil || m.data == nil {
		return nil
	}
	var err error
	if m.mmapped {
		err = unix.Munmap(m.data)
	}
	m.data = nil
	m.mmapped = false
	return err
}

// EncodeMatrix writes a binary matrix of bits-wide elements. Every value
// must fit the width.
func EncodeMatrix(w io.Writer, rows, cols int, bits uint, vals []int64) error {
	if !fixed.ValidWidth(bits) {
		return fmt.Errorf("unsupported element width %d", bits)
	}
	if len(vals) != rows*cols {
		return fmt.Errorf("matrix %dx%d: have %d values", rows, cols, len(vals))
	}
	buf := make([]byte, binHeaderSize, binHeaderSize+len(vals)*int(bits/8))
	copy(buf, binMagic)
	buf[4] = byte(bits)
	binary.LittleEndian.PutUint32(buf[8:], uint32(rows))
	binary.LittleEndian.PutUint32(buf[12:], uint32(cols))
	lo, hi := fixed.MinOf(bits), fixed.MaxOf(bits)
	for i, v := range vals {
		if v < lo || v > hi {
			return fmt.Errorf("value %d at %d does not fit int%d", v, i, bits)
		}
		switch bits {
		case 8:
			buf = append(buf, byte(int8(v)))
		case 16:
			buf = binary.LittleEndian.AppendUint16(buf, uint16(int16(v)))
		default:
			buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(v)))
		}
	}
	_, err := w.Write(buf)
	return err
}
