package api

import (
	"github.com/samcharles93/blockmac/internal/graph"
)

// InvokeRequest carries one operand per invocation: K-element vectors for
// GEMV graphs, row-major K x N matrices for GEMM graphs.
type InvokeRequest struct {
	Vectors [][]int64 `json:"vectors"`
}

type Invocation struct {
	ID        string      `json:"id"`
	Object    string      `json:"object"`
	CreatedAt int64       `json:"created_at"`
	Variant   string      `json:"variant"`
	Outputs   [][]int64   `json:"outputs"`
	Stats     graph.Stats `json:"stats"`
}

type DeleteResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Variant string `json:"variant"`
	Version string `json:"version"`
	Stored  int    `json:"stored"`
}

type ErrorBody struct {
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
	Param   string `json:"param,omitempty"`
}
