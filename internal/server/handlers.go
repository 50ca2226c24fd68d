package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	amerrors "github.com/Aman-CERP/amanrdf/internal/errors"
	"github.com/Aman-CERP/amanrdf/internal/schema"
	"github.com/Aman-CERP/amanrdf/internal/store"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.Health(c.Request.Context()); err != nil {
		sendError(c, amerrors.BackendError("store is not healthy", err))
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Store: s.store.Location()})
}

func (s *Server) handleListIndices(c *gin.Context) {
	indices, err := s.store.Indices(c.Request.Context())
	if err != nil {
		sendError(c, err)
		return
	}
	if indices == nil {
		indices = []schema.Schema{}
	}
	c.JSON(http.StatusOK, store.IndicesResponse{Indices: indices})
}

// indexParam returns the :index path parameter, or aborts with 400 when
// it is not a usable index name.
func indexParam(c *gin.Context) (string, bool) {
	index := c.Param("index")
	if err := schema.ValidateName(index); err != nil {
		sendInvalid(c, "invalid index name", err)
		return "", false
	}
	return index, true
}

func (s *Server) handleCreateIndex(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	var sc schema.Schema
	if err := c.ShouldBindJSON(&sc); err != nil {
		sendInvalid(c, "malformed schema", err)
		return
	}
	if sc.Index == "" {
		sc.Index = index
	}
	if sc.Index != index {
		sendInvalid(c, fmt.Sprintf("schema names index %q but the path names %q", sc.Index, index), nil)
		return
	}
	if err := sc.Validate(); err != nil {
		sendInvalid(c, "invalid schema", err)
		return
	}
	if err := s.store.CreateIndex(c.Request.Context(), sc); err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, sc)
}

func (s *Server) handleIndexExists(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	exists, err := s.store.Exists(c.Request.Context(), index)
	if err != nil {
		sendError(c, err)
		return
	}
	if !exists {
		c.Status(http.StatusNotFound)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) handleDeleteIndex(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	exists, err := s.store.Exists(ctx, index)
	if err != nil {
		sendError(c, err)
		return
	}
	if !exists {
		sendError(c, amerrors.IndexMissingError(index))
		return
	}
	if err := s.store.DeleteIndex(ctx, index); err != nil {
		sendError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleBulk(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	var req store.BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendInvalid(c, "malformed bulk request", err)
		return
	}
	if err := s.store.BulkIndex(c.Request.Context(), index, req.Documents); err != nil {
		slog.Warn("bulk_request_failed",
			slog.String("index", index),
			slog.Int("documents", len(req.Documents)),
			slog.String("error", err.Error()))
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, store.BulkResponse{Indexed: len(req.Documents)})
}

func (s *Server) handleCount(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	n, err := s.store.Count(c.Request.Context(), index)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, store.CountResponse{Count: n})
}

// limitParam reads ?limit=, defaulting to store.DefaultLookupLimit.
func limitParam(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return store.DefaultLookupLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		sendInvalid(c, fmt.Sprintf("limit %q is not a positive integer", raw), nil)
		return 0, false
	}
	return n, true
}

func (s *Server) handleLookup(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	field, value := c.Query("field"), c.Query("value")
	if field == "" {
		sendInvalid(c, "field is required", nil)
		return
	}
	limit, ok := limitParam(c)
	if !ok {
		return
	}
	docs, err := s.store.Lookup(c.Request.Context(), index, field, value, limit)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, store.LookupResponse{Documents: docs})
}

func (s *Server) handleSearch(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	limit, ok := limitParam(c)
	if !ok {
		return
	}
	hits, err := s.store.Search(c.Request.Context(), index, c.Query("q"), limit)
	if err != nil {
		sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, store.SearchResponse{Hits: hits})
}
