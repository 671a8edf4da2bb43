// Package harness moves matrix and stream data between files and the
// stream graph: plain text streams, binary matrix files, generated datasets
// and output verification.
package harness

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/samcharles93/blockmac/internal/fixed"
	"github.com/samcharles93/blockmac/internal/stream"
)

// DefaultPerLine matches a 128-bit stream word of int32 values.
const DefaultPerLine = 4

// ReadInts parses whitespace-separated decimal integers.
func ReadInts(r io.Reader) ([]int64, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	sc.Split(bufio.ScanWords)
	var out []int64
	for sc.Scan() {
		v, err := strconv.ParseInt(sc.Text(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", len(out), err)
		}
		out = append(out, v)
	}
	return out, sc.Err()
}

// ReadIntsFile reads a text stream file.
func ReadIntsFile(path string) ([]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	vals, err := ReadInts(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return vals, nil
}

// WriteInts writes vals perLine to a line.
func WriteInts(w io.Writer, vals []int64, perLine int) error {
	if perLine <= 0 {
		perLine = DefaultPerLine
	}
	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 24)
	for i, v := range vals {
		buf = strconv.AppendInt(buf[:0], v, 10)
		if (i+1)%perLine == 0 || i == len(vals)-1 {
			buf = append(buf, '\n')
		} else {
			buf = append(buf, ' ')
		}
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteIntsFile creates path and writes vals to it.
func WriteIntsFile(path string, vals []int64, perLine int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteInts(f, vals, perLine); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// TextSource streams T values parsed from text, one chunk at a time.
type TextSource[T fixed.Element] struct {
	sc *bufio.Scanner
	n  int
}

func NewTextSource[T fixed.Element](r io.Reader) *TextSource[T] {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	return &TextSource[T]{sc: sc}
}

func (s *TextSource[T]) Read(ctx context.Context, dst []T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for i := range dst {
		if !s.sc.Scan() {
			if err := s.sc.Err(); err != nil {
				return err
			}
			if i == 0 {
				return io.EOF
			}
			return fmt.Errorf("%w: stream ended %d values into a %d-value chunk", stream.ErrUnderrun, i, len(dst))
		}
		v, err := strconv.ParseInt(s.sc.Text(), 10, 64)
		if err != nil {
			return fmt.Errorf("value %d: %w", s.n, err)
		}
		if !fixed.InRange[T](v) {
			return fmt.Errorf("value %d: %d does not fit int%d", s.n, v, fixed.Bits[T]())
		}
		dst[i] = T(v)
		s.n++
	}
	return nil
}

// TextSink writes every chunk as text, perLine values to a line.
type TextSink[T fixed.Element] struct {
	w       *bufio.Writer
	perLine int
	col     int
	buf     []byte
}

func NewTextSink[T fixed.Element](w io.Writer, perLine int) *TextSink[T] {
	if perLine <= 0 {
		perLine = DefaultPerLine
	}
	return &TextSink[T]{w: bufio.NewWriter(w), perLine: perLine}
}

func (s *TextSink[T]) Write(ctx context.Context, src []T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, v := range src {
		s.buf = s.buf[:0]
		if s.col > 0 {
			s.buf = append(s.buf, ' ')
		}
		s.buf = strconv.AppendInt(s.buf, int64(v), 10)
		s.col++
		if s.col == s.perLine {
			s.buf = append(s.buf, '\n')
			s.col = 0
		}
		if _, err := s.w.Write(s.buf); err != nil {
			return err
		}
	}
	return nil
}

// Flush terminates a partial line and flushes buffered output.
func (s *TextSink[T]) Flush() error {
	if s.col != 0 {
		if err := s.w.WriteByte('\n'); err != nil {
			return err
		}
		s.col = 0
	}
	return s.w.Flush()
}
