package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// BinaryExt marks binary matrix files; anything else is read as text.
const BinaryExt = ".bmx"

// LoadMatrix reads a rows x cols row-major matrix from a text or binary
// file. Binary files must also declare elements no wider than bits.
func LoadMatrix(path string, rows, cols int, bits uint) ([]int64, error) {
	if strings.EqualFold(filepath.Ext(path), BinaryExt) {
		mf, err := OpenMatrix(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		defer func() { _ = mf.Close() }()
		if mf.Rows != rows || mf.Cols != cols {
			return nil, fmt.Errorf("%s: matrix is %dx%d, want %dx%d", path, mf.Rows, mf.Cols, rows, cols)
		}
		if mf.Bits > bits {
			return nil, fmt.Errorf("%s: int%d elements do not fit int%d", path, mf.Bits, bits)
		}
		return mf.Values(), nil
	}
	vals, err := ReadIntsFile(path)
	if err != nil {
		return nil, err
	}
	if len(vals) != rows*cols {
		return nil, fmt.Errorf("%s: have %d values, want %dx%d", path, len(vals), rows, cols)
	}
	return vals, nil
}

// SaveMatrix writes a row-major matrix as text, or binary when path ends
// in BinaryExt.
func SaveMatrix(path string, rows, cols int, bits uint, vals []int64, perLine int) error {
	if !strings.EqualFold(filepath.Ext(path), BinaryExt) {
		return WriteIntsFile(path, vals, perLine)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodeMatrix(f, rows, cols, bits, vals); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
