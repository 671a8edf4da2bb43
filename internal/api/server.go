// Package api exposes a loaded graph over HTTP: describe it, list the
// kernel variants and run invocations against the resident matrix.
package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/blockmac/internal/fixed"
	"github.com/samcharles93/blockmac/internal/harness"
	"github.com/samcharles93/blockmac/internal/kernel"
	"github.com/samcharles93/blockmac/internal/logger"
	"github.com/samcharles93/blockmac/internal/version"
)

// MaxVectors caps the invocations one request may run.
const MaxVectors = 4096

type Server struct {
	engine harness.Engine
	store  *InvocationStore
	log    logger.Logger
	clock  func() time.Time
}

func NewServer(engine harness.Engine, store *InvocationStore, log logger.Logger) *Server {
	if store == nil {
		store = NewInvocationStore(0)
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Server{engine: engine, store: store, log: log, clock: time.Now}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)
	e.GET("/v1/graph", s.handleGraph)
	e.GET("/v1/variants", s.handleVariants)
	e.POST("/v1/invoke", s.handleInvoke)
	e.GET("/v1/invocations/:id", s.handleGetInvocation)
	e.DELETE("/v1/invocations/:id", s.handleDeleteInvocation)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Variant: s.engine.Config().Variant,
		Version: version.String(),
		Stored:  s.store.Len(),
	})
}

func (s *Server) handleGraph(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.engine.Describe())
}

func (s *Server) handleVariants(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"object": "list",
		"data":   kernel.Variants(),
	})
}

func (s *Server) handleInvoke(c *echo.Context) error {
	req, err := decodeJSON[InvokeRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err)
	}
	if err := s.validate(req); err != nil {
		return writeBadRequest(c, err)
	}

	outputs, stats, err := s.engine.Invoke(c.Request().Context(), req.Vectors)
	if err != nil {
		s.log.Error("invocation failed", "error", err, "vectors", len(req.Vectors))
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "")
	}
	inv := Invocation{
		ID:        uuid.NewString(),
		Object:    "invocation",
		CreatedAt: s.clock().Unix(),
		Variant:   s.engine.Config().Variant,
		Outputs:   outputs,
		Stats:     stats,
	}
	s.store.Put(inv)
	s.log.Debug("invocation", "id", inv.ID, "vectors", len(req.Vectors), "elapsed", stats.Elapsed)
	return c.JSON(http.StatusOK, inv)
}

// validate rejects malformed operands before they reach the graph, so
// stream faults on this path are server errors.
func (s *Server) validate(req InvokeRequest) error {
	cfg := s.engine.Config()
	if len(req.Vectors) == 0 {
		return newInvalidRequest("vectors", "vectors must not be empty")
	}
	if len(req.Vectors) > MaxVectors {
		return newInvalidRequest("vectors", fmt.Sprintf("at most %d vectors per request", MaxVectors))
	}
	want := cfg.InputLen()
	for i, v := range req.Vectors {
		if len(v) != want {
			return newInvalidRequest(fmt.Sprintf("vectors[%d]", i), fmt.Sprintf("vectors[%d] has %d values, want %d", i, len(v), want))
		}
	}
	bits := s.engine.Describe().Input.ElemBits
	lo, hi := fixed.MinOf(bits), fixed.MaxOf(bits)
	for i, v := range req.Vectors {
		for j, x := range v {
			if x < lo || x > hi {
				return newInvalidRequest(fmt.Sprintf("vectors[%d][%d]", i, j), fmt.Sprintf("%d does not fit int%d", x, bits))
			}
		}
	}
	return nil
}

func (s *Server) handleGetInvocation(c *echo.Context) error {
	inv, ok := s.store.Get(c.Param("id"))
	if !ok {
		return writeNotFound(c, "invocation not found")
	}
	return c.JSON(http.StatusOK, inv)
}

func (s *Server) handleDeleteInvocation(c *echo.Context) error {
	id := c.Param("id")
	if !s.store.Delete(id) {
		return writeNotFound(c, "invocation not found")
	}
	return c.JSON(http.StatusOK, DeleteResponse{ID: id, Object: "invocation.deleted", Deleted: true})
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		if errors.Is(err, io.EOF) {
			return out, newInvalidRequest("", "request body is empty")
		}
		return out, newInvalidRequest("", fmt.Sprintf("invalid JSON: %v", err))
	}
	return out, nil
}
