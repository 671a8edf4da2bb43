package harness

// Mismatch is one differing output position.
type Mismatch struct {
	Index int   `json:"index"`
	Got   int64 `json:"got"`
	Want  int64 `json:"want"`
}

// Comparison is the element-wise difference of two output streams.
type Comparison struct {
	Compared   int        `json:"compared"`
	GotLen     int        `json:"got_len"`
	WantLen    int        `json:"want_len"`
	Mismatches int        `json:"mismatches"`
	First      []Mismatch `json:"first,omitempty"`
}

// OK reports whether both streams are identical.
func (c Comparison) OK() bool {
	return c.Mismatches == 0 && c.GotLen == c.WantLen
}

// Compare diffs got against want, keeping at most keep mismatches.
func Compare(got, want []int64, keep int) Comparison {
	c := Comparison{GotLen: len(got), WantLen: len(want)}
	n := min(len(got), len(want))
	c.Compared = n
	for i := range n {
		if got[i] == want[i] {
			continue
		}
		c.Mismatches++
		if len(c.First) < keep {
			c.First = append(c.First, Mismatch{Index: i, Got: got[i], Want: want[i]})
		}
	}
	return c
}
