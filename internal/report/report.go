// Package report writes the JSON summary of a graph run.
package report

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/samcharles93/blockmac/internal/graph"
	"github.com/samcharles93/blockmac/internal/harness"
	"github.com/samcharles93/blockmac/internal/kernel"
	"github.com/samcharles93/blockmac/internal/version"
)

type Run struct {
	ID        string              `json:"id"`
	StartedAt time.Time           `json:"started_at"`
	Variant   string              `json:"variant"`
	InBits    uint                `json:"in_bits"`
	OutBits   uint                `json:"out_bits"`
	Config    kernel.Config       `json:"config"`
	Stats     graph.Stats         `json:"stats"`
	Elapsed   string              `json:"elapsed"`
	Verify    *harness.Comparison `json:"verify,omitempty"`
	Error     string              `json:"error,omitempty"`
	Version   version.Info        `json:"version"`
}

// New starts a report with a fresh run id.
func New(v kernel.Variant) *Run {
	return &Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Variant:   v.Name,
		InBits:    v.InBits,
		OutBits:   v.OutBits,
		Config:    v.Config,
		Version:   version.Resolve(),
	}
}

// Finish records the run outcome.
func (r *Run) Finish(stats graph.Stats, err error) {
	r.Stats = stats
	r.Elapsed = stats.Elapsed.String()
	if err != nil {
		r.Error = err.Error()
	}
}

// OK reports whether the run succeeded and, when verified, matched.
func (r *Run) OK() bool {
	return r.Error == "" && (r.Verify == nil || r.Verify.OK())
}

func (r *Run) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteFile writes the report to path, or to stdout for "-".
func (r *Run) WriteFile(path string) error {
	if path == "-" {
		return r.Encode(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := r.Encode(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("report %s: %w", path, err)
	}
	return f.Close()
}

// Read decodes a report.
func Read(rd io.Reader) (*Run, error) {
	var r Run
	if err := json.NewDecoder(rd).Decode(&r); err != nil {
		return nil, err
	}
	return &r, nil
}
