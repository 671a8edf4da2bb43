package fixed

import (
	"fmt"
	"strings"
)

// Rounding selects how the bits dropped by the output shift are treated.
type Rounding uint8

const (
	// RoundFloor is a plain arithmetic shift (round toward negative infinity).
	RoundFloor Rounding = iota
	// RoundHalfUp adds half an output unit before shifting.
	RoundHalfUp
)

func (r Rounding) String() string {
	switch r {
	case RoundFloor:
		return "floor"
	case RoundHalfUp:
		return "half-up"
	default:
		return fmt.Sprintf("rounding(%d)", uint8(r))
	}
}

// ParseRounding parses "floor" or "half-up". The empty string is floor.
func ParseRounding(s string) (Rounding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "floor":
		return RoundFloor, nil
	case "half-up", "halfup", "round":
		return RoundHalfUp, nil
	default:
		return 0, fmt.Errorf("unknown rounding %q", s)
	}
}

func (r Rounding) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Rounding) UnmarshalText(b []byte) error {
	v, err := ParseRounding(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Overflow selects what happens when a shifted accumulator does not fit the
// output width.
type Overflow uint8

const (
	// Saturate clamps to the output range.
	Saturate Overflow = iota
	// Truncate keeps the low output bits (two's complement wrap).
	Truncate
)

func (o Overflow) String() string {
	switch o {
	case Saturate:
		return "saturate"
	case Truncate:
		return "truncate"
	default:
		return fmt.Sprintf("overflow(%d)", uint8(o))
	}
}

// ParseOverflow parses "saturate" or "truncate". The empty string is saturate.
func ParseOverflow(s string) (Overflow, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "saturate", "sat":
		return Saturate, nil
	case "truncate", "wrap":
		return Truncate, nil
	default:
		return 0, fmt.Errorf("unknown overflow mode %q", s)
	}
}

func (o Overflow) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Overflow) UnmarshalText(b []byte) error {
	v, err := ParseOverflow(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// Narrowing converts accumulator lanes to output elements:
// out = overflow(round(acc >> Shift), width).
type Narrowing struct {
	Shift    uint
	Rounding Rounding
	Overflow Overflow
}

// Apply narrows a to a signed bits-wide value.
func (n Narrowing) Apply(a Acc, bits uint) int64 {
	if n.Shift > 0 {
		if n.Rounding == RoundHalfUp {
			a.AddAcc(bitAcc(n.Shift - 1))
		}
		a = a.Shr(n.Shift)
	}
	if n.Overflow == Truncate {
		return wrap(int64(a.Low()), bits)
	}
	v, ok := a.Int64()
	if !ok {
		if a.Sign() < 0 {
			return MinOf(bits)
		}
		return MaxOf(bits)
	}
	return clamp(v, bits)
}

// NarrowTo narrows a into the output element type O.
func NarrowTo[O Element](n Narrowing, a Acc) O {
	return O(n.Apply(a, Bits[O]()))
}

func clamp(v int64, bits uint) int64 {
	lo, hi := MinOf(bits), MaxOf(bits)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func wrap(v int64, bits uint) int64 {
	s := 64 - bits
	return v << s >> s
}
