package graph

import "github.com/samcharles93/blockmac/internal/fixed"

// Port describes one stream endpoint of the graph.
type Port struct {
	Name       string `json:"name"`
	ElemBits   uint   `json:"elem_bits"`
	Chunk      int    `json:"chunk"`
	PerInvoke  int    `json:"per_invocation"`
	BlockOrder string `json:"block_order"`
}

// Description is the static shape of a graph.
type Description struct {
	Variant     string `json:"variant"`
	Kind        string `json:"kind"`
	Invocations int    `json:"invocations"`
	Matrix      string `json:"matrix"`
	Input       Port   `json:"input"`
	Output      Port   `json:"output"`
	AccBits     uint   `json:"acc_bits"`
	GuardBits   int    `json:"guard_bits"`
	Shift       uint   `json:"shift"`
	Rounding    string `json:"rounding"`
	Overflow    string `json:"overflow"`
}

// Describe reports the graph's ports and kernel configuration.
func (g *Graph[I, O]) Describe() Description {
	cfg := g.kernel.Config()
	matrix := cfg.SchemeParams().Kind
	if s, err := cfg.MatrixScheme(); err == nil {
		matrix = s.Name()
	}
	inBits := fixed.Bits[I]()
	return Description{
		Variant:     cfg.Variant,
		Kind:        string(cfg.Kind),
		Invocations: g.invocations,
		Matrix:      matrix,
		Input: Port{
			Name:       "in",
			ElemBits:   inBits,
			Chunk:      cfg.InChunk,
			PerInvoke:  cfg.InputLen(),
			BlockOrder: cfg.InputScheme().Name(),
		},
		Output: Port{
			Name:       "out",
			ElemBits:   fixed.Bits[O](),
			Chunk:      cfg.OutChunk,
			PerInvoke:  cfg.OutputLen(),
			BlockOrder: "row-major",
		},
		AccBits:   cfg.AccBits,
		GuardBits: fixed.GuardBits(cfg.K, inBits, inBits, cfg.AccBits),
		Shift:     cfg.Shift,
		Rounding:  cfg.Rounding.String(),
		Overflow:  cfg.Overflow.String(),
	}
}
