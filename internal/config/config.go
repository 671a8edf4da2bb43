// Package config reads the blockmac graph file (YAML). Kernel fields are
// pointers so an absent key leaves the variant default in place.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/samcharles93/blockmac/internal/fixed"
	"github.com/samcharles93/blockmac/internal/kernel"
)

// Kernel overrides fields of a variant's static configuration.
type Kernel struct {
	M           *int    `yaml:"m"`
	K           *int    `yaml:"k"`
	N           *int    `yaml:"n"`
	Scheme      *string `yaml:"scheme"`
	InChunk     *int    `yaml:"in_chunk"`
	OutChunk    *int    `yaml:"out_chunk"`
	Lanes       *int    `yaml:"lanes"`
	Unroll      *int    `yaml:"unroll"`
	Q           *int    `yaml:"q"`
	TileM       *int    `yaml:"tile_m"`
	TileK       *int    `yaml:"tile_k"`
	TileN       *int    `yaml:"tile_n"`
	Splits      *int    `yaml:"splits"`
	Prefetch    *int    `yaml:"prefetch"`
	Shift       *uint   `yaml:"shift"`
	Rounding    *string `yaml:"rounding"`
	Overflow    *string `yaml:"overflow"`
	AccBits     *uint   `yaml:"acc_bits"`
	Invocations *int    `yaml:"invocations"`
}

// File is the graph file, by default ~/.config/blockmac/config.yaml.
type File struct {
	Variant string `yaml:"variant"`
	Kernel  Kernel `yaml:"kernel"`

	Matrix   string `yaml:"matrix"`
	Input    string `yaml:"input"`
	Output   string `yaml:"output"`
	Expected string `yaml:"expected"`
	Report   string `yaml:"report"`
	PerLine  *int   `yaml:"per_line"`

	LogLevel      string `yaml:"log_level"`
	LogFormat     string `yaml:"log_format"`
	ServerAddress string `yaml:"server_address"`
}

// DefaultPath returns the per-user graph file location, or "" when the
// platform has no config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "blockmac", "config.yaml")
}

// Load reads path. An empty path means DefaultPath, which may be absent.
func Load(path string) (File, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
		if path == "" {
			return File{}, nil
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return File{}, nil
		}
		return File{}, err
	}
	f, err := Parse(data)
	if err != nil {
		return File{}, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a graph file. Unknown keys are rejected.
func Parse(data []byte) (File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return File{}, err
	}
	return f, nil
}

// Merge returns k with every field set in over replacing k's.
func (k Kernel) Merge(over Kernel) Kernel {
	pick(&k.M, over.M)
	pick(&k.K, over.K)
	pick(&k.N, over.N)
	pick(&k.Scheme, over.Scheme)
	pick(&k.InChunk, over.InChunk)
	pick(&k.OutChunk, over.OutChunk)
	pick(&k.Lanes, over.Lanes)
	pick(&k.Unroll, over.Unroll)
	pick(&k.Q, over.Q)
	pick(&k.TileM, over.TileM)
	pick(&k.TileK, over.TileK)
	pick(&k.TileN, over.TileN)
	pick(&k.Splits, over.Splits)
	pick(&k.Prefetch, over.Prefetch)
	pick(&k.Shift, over.Shift)
	pick(&k.Rounding, over.Rounding)
	pick(&k.Overflow, over.Overflow)
	pick(&k.AccBits, over.AccBits)
	pick(&k.Invocations, over.Invocations)
	return k
}

// Apply overlays k on cfg.
func (k Kernel) Apply(cfg kernel.Config) (kernel.Config, error) {
	set(&cfg.M, k.M)
	set(&cfg.K, k.K)
	set(&cfg.N, k.N)
	set(&cfg.Scheme, k.Scheme)
	set(&cfg.InChunk, k.InChunk)
	set(&cfg.OutChunk, k.OutChunk)
	set(&cfg.Lanes, k.Lanes)
	set(&cfg.Unroll, k.Unroll)
	set(&cfg.Q, k.Q)
	set(&cfg.TileM, k.TileM)
	set(&cfg.TileK, k.TileK)
	set(&cfg.TileN, k.TileN)
	set(&cfg.Splits, k.Splits)
	set(&cfg.Prefetch, k.Prefetch)
	set(&cfg.Shift, k.Shift)
	set(&cfg.AccBits, k.AccBits)
	set(&cfg.Invocations, k.Invocations)
	if k.Rounding != nil {
		r, err := fixed.ParseRounding(*k.Rounding)
		if err != nil {
			return cfg, err
		}
		cfg.Rounding = r
	}
	if k.Overflow != nil {
		o, err := fixed.ParseOverflow(*k.Overflow)
		if err != nil {
			return cfg, err
		}
		cfg.Overflow = o
	}
	return cfg, nil
}

// Resolve looks up the variant named by f (or fallback when f names none)
// and applies f's kernel overrides followed by flags.
func (f File) Resolve(fallback string, flags Kernel) (kernel.Variant, error) {
	name := f.Variant
	if name == "" {
		name = fallback
	}
	v, err := kernel.Lookup(name)
	if err != nil {
		return kernel.Variant{}, err
	}
	cfg, err := f.Kernel.Merge(flags).Apply(v.Config)
	if err != nil {
		return kernel.Variant{}, err
	}
	v.Config = cfg
	return v, nil
}

func pick[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
