// Package blocking maps logical matrix indices to offsets in blocked tile
// storage and validates that a mapping is a bijection onto the buffer.
package blocking

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrShape         = errors.New("invalid blocking shape")
	ErrOutOfRange    = errors.New("offset out of range")
	ErrOverlap       = errors.New("offsets overlap")
	ErrGap           = errors.New("offsets leave a gap")
	ErrNotContiguous = errors.New("tile is not contiguous")
)

// Scheme is a static mapping from logical (row, col) to a physical offset in
// a buffer of Rows()*Cols() elements.
type Scheme interface {
	Name() string
	Rows() int
	Cols() int
	Offset(row, col int) int
	// Check validates the shape parameters only. Use Validate for the full
	// coverage check.
	Check() error
}

// RowMajor is the unblocked layout.
type RowMajor struct {
	R, C int
}

func (s RowMajor) Name() string            { return "row-major" }
func (s RowMajor) Rows() int               { return s.R }
func (s RowMajor) Cols() int               { return s.C }
func (s RowMajor) Offset(row, col int) int { return row*s.C + col }

func (s RowMajor) Check() error {
	if s.R <= 0 || s.C <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrShape, s.R, s.C)
	}
	return nil
}

// Interleaved splits the columns into Q groups by col%Q. Group q holds
// columns q, q+Q, q+2Q, ... and every column is stored as R contiguous values,
// so one load fetches a whole column for a multiply against one scalar.
// Q=1 is plain column-major storage.
type Interleaved struct {
	R, C, Q int
}

func (s Interleaved) Name() string { return fmt.Sprintf("interleaved/q%d", s.Q) }
func (s Interleaved) Rows() int    { return s.R }
func (s Interleaved) Cols() int    { return s.C }

func (s Interleaved) Offset(row, col int) int {
	slot := (col%s.Q)*(s.C/s.Q) + col/s.Q
	return slot*s.R + row
}

func (s Interleaved) Check() error {
	if s.R <= 0 || s.C <= 0 || s.Q <= 0 {
		return fmt.Errorf("%w: %dx%d q=%d", ErrShape, s.R, s.C, s.Q)
	}
	if s.C%s.Q != 0 {
		return fmt.Errorf("%w: %d columns not divisible into %d groups", ErrShape, s.C, s.Q)
	}
	return nil
}

// TileOrder is the element order inside one tile.
type TileOrder uint8

const (
	TileRowMajor TileOrder = iota
	TileColMajor
)

// Tiled partitions the matrix into TileR x TileC tiles stored one after
// another in row-major tile order.
type Tiled struct {
	R, C         int
	TileR, TileC int
	Order        TileOrder
}

func (s Tiled) Name() string {
	if s.Order == TileColMajor {
		return fmt.Sprintf("tiled-col/%dx%d", s.TileR, s.TileC)
	}
	return fmt.Sprintf("tiled/%dx%d", s.TileR, s.TileC)
}

func (s Tiled) Rows() int { return s.R }
func (s Tiled) Cols() int { return s.C }

func (s Tiled) Offset(row, col int) int {
	tileSize := s.TileR * s.TileC
	tile := (row/s.TileR)*(s.C/s.TileC) + col/s.TileC
	r, c := row%s.TileR, col%s.TileC
	if s.Order == TileColMajor {
		return tile*tileSize + c*s.TileR + r
	}
	return tile*tileSize + r*s.TileC + c
}

func (s Tiled) Check() error {
	if s.R <= 0 || s.C <= 0 || s.TileR <= 0 || s.TileC <= 0 {
		return fmt.Errorf("%w: %dx%d tiles %dx%d", ErrShape, s.R, s.C, s.TileR, s.TileC)
	}
	if s.R%s.TileR != 0 || s.C%s.TileC != 0 {
		return fmt.Errorf("%w: %dx%d not divisible by %dx%d tiles", ErrShape, s.R, s.C, s.TileR, s.TileC)
	}
	return nil
}

// Params describes a scheme in configuration form.
type Params struct {
	Kind  string
	Q     int
	TileR int
	TileC int
}

// New builds a scheme for a rows x cols matrix.
// Kinds: row-major, interleaved, tiled, tiled-col.
func New(p Params, rows, cols int) (Scheme, error) {
	var s Scheme
	switch strings.ToLower(p.Kind) {
	case "", "row-major", "rowmajor":
		s = RowMajor{R: rows, C: cols}
	case "interleaved":
		q := p.Q
		if q == 0 {
			q = 1
		}
		s = Interleaved{R: rows, C: cols, Q: q}
	case "tiled":
		s = Tiled{R: rows, C: cols, TileR: p.TileR, TileC: p.TileC}
	case "tiled-col":
		s = Tiled{R: rows, C: cols, TileR: p.TileR, TileC: p.TileC, Order: TileColMajor}
	default:
		return nil, fmt.Errorf("%w: unknown scheme %q", ErrShape, p.Kind)
	}
	if err := s.Check(); err != nil {
		return nil, err
	}
	return s, nil
}
