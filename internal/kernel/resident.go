package kernel

import (
	"fmt"

	"github.com/samcharles93/blockmac/internal/blocking"
	"github.com/samcharles93/blockmac/internal/fixed"
)

// Resident is the stationary matrix held in blocked local storage. It is
// immutable after construction and may be shared by kernels on different
// goroutines.
type Resident[T fixed.Element] struct {
	scheme blocking.Scheme
	data   []T
}

// NewResident wraps an already packed buffer. The scheme must be a valid
// bijection and the buffer must hold exactly Rows*Cols elements.
func NewResident[T fixed.Element](s blocking.Scheme, packed []T) (*Resident[T], error) {
	if err := blocking.Validate(s); err != nil {
		return nil, err
	}
	if want := s.Rows() * s.Cols(); len(packed) != want {
		return nil, fmt.Errorf("resident %s: have %d elements, want %d: %w", s.Name(), len(packed), want, blocking.ErrShape)
	}
	return &Resident[T]{scheme: s, data: packed}, nil
}

// PackResident lays out a row-major matrix according to s.
func PackResident[T fixed.Element](s blocking.Scheme, rowMajor []T) (*Resident[T], error) {
	if err := blocking.Validate(s); err != nil {
		return nil, err
	}
	packed, err := blocking.Pack(s, rowMajor)
	if err != nil {
		return nil, err
	}
	return &Resident[T]{scheme: s, data: packed}, nil
}

func (r *Resident[T]) Scheme() blocking.Scheme { return r.scheme }
func (r *Resident[T]) Rows() int               { return r.scheme.Rows() }
func (r *Resident[T]) Cols() int               { return r.scheme.Cols() }
