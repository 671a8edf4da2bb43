package blocking

import "fmt"

// Validate checks that every logical index maps to exactly one offset in
// [0, Rows*Cols). A scheme passing Validate covers the buffer with no overlap
// and no gap.
func Validate(s Scheme) error {
	if err := s.Check(); err != nil {
		return err
	}
	rows, cols := s.Rows(), s.Cols()
	size := rows * cols
	seen := make([]bool, size)
	for r := range rows {
		for c := range cols {
			off := s.Offset(r, c)
			if off < 0 || off >= size {
				return fmt.Errorf("%s: (%d,%d) -> %d: %w", s.Name(), r, c, off, ErrOutOfRange)
			}
			if seen[off] {
				return fmt.Errorf("%s: (%d,%d) -> %d: %w", s.Name(), r, c, off, ErrOverlap)
			}
			seen[off] = true
		}
	}
	for off, ok := range seen {
		if !ok {
			return fmt.Errorf("%s: offset %d: %w", s.Name(), off, ErrGap)
		}
	}
	return nil
}

// ContiguousRun returns the offset of (row, col) when the n elements starting
// there are stored consecutively. down walks rows (row..row+n-1 at col),
// otherwise columns (col..col+n-1 at row).
func ContiguousRun(s Scheme, row, col, n int, down bool) (int, error) {
	base := s.Offset(row, col)
	for i := 1; i < n; i++ {
		r, c := row, col+i
		if down {
			r, c = row+i, col
		}
		if s.Offset(r, c) != base+i {
			return 0, fmt.Errorf("%s: run at (%d,%d) len %d: %w", s.Name(), row, col, n, ErrNotContiguous)
		}
	}
	return base, nil
}

// TileRun returns the offset of the tile with top-left (row, col) when its
// tr x tc elements are stored consecutively in row-major order.
func TileRun(s Scheme, row, col, tr, tc int) (int, error) {
	base := s.Offset(row, col)
	for r := range tr {
		for c := range tc {
			if s.Offset(row+r, col+c) != base+r*tc+c {
				return 0, fmt.Errorf("%s: tile at (%d,%d) %dx%d: %w", s.Name(), row, col, tr, tc, ErrNotContiguous)
			}
		}
	}
	return base, nil
}

// Pack lays out a row-major matrix according to s.
func Pack[T any](s Scheme, rowMajor []T) ([]T, error) {
	rows, cols := s.Rows(), s.Cols()
	if len(rowMajor) != rows*cols {
		return nil, fmt.Errorf("%w: have %d elements, want %dx%d", ErrShape, len(rowMajor), rows, cols)
	}
	out := make([]T, len(rowMajor))
	for r := range rows {
		for c := range cols {
			out[s.Offset(r, c)] = rowMajor[r*cols+c]
		}
	}
	return out, nil
}

// Unpack is the inverse of Pack.
func Unpack[T any](s Scheme, packed []T) ([]T, error) {
	rows, cols := s.Rows(), s.Cols()
	if len(packed) != rows*cols {
		return nil, fmt.Errorf("%w: have %d elements, want %dx%d", ErrShape, len(packed), rows, cols)
	}
	out := make([]T, len(packed))
	for r := range rows {
		for c := range cols {
			out[r*cols+c] = packed[s.Offset(r, c)]
		}
	}
	return out, nil
}
