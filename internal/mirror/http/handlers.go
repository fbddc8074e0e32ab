package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jessm23/portafolio-backend/internal/logging"
	"github.com/jessm23/portafolio-backend/internal/mirror"
	"github.com/jessm23/portafolio-backend/internal/mirror/repository"
)

const (
	defaultRecent = 20
	maxRecent     = 200
)

// StatusReader is the read side of the sync status log.
type StatusReader interface {
	Get(ctx context.Context, remotePath string) (*mirror.Status, error)
	Recent(ctx context.Context, n int) ([]mirror.Status, error)
}

type Handler struct {
	statuses StatusReader
}

// New creates the sync status handler. statuses may be nil when no status
// log is configured; status routes then answer 503.
func New(statuses StatusReader) *Handler {
	return &Handler{statuses: statuses}
}

func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/sync")
	g.GET("/status", h.status)
	g.GET("/recent", h.recent)
	g.GET("/metrics", h.metrics)
}

func (h *Handler) status(c *gin.Context) {
	if h.statuses == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sync status log is not configured"})
		return
	}
	p := mirror.NormalizeRemote(c.Query("path"))
	if p == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
		return
	}

	st, err := h.statuses.Get(c.Request.Context(), p)
	if errors.Is(err, repository.ErrStatusNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no sync recorded for path"})
		return
	}
	if err != nil {
		logging.NewLogger(c.Request.Context()).With("remote_path", p).LogError("sync_status", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read sync status"})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) recent(c *gin.Context) {
	if h.statuses == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sync status log is not configured"})
		return
	}

	limit := defaultRecent
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxRecent)
	}

	items, err := h.statuses.Recent(c.Request.Context(), limit)
	if err != nil {
		logging.NewLogger(c.Request.Context()).LogError("sync_recent", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read sync log"})
		return
	}
	if items == nil {
		items = []mirror.Status{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (h *Handler) metrics(c *gin.Context) {
	c.JSON(http.StatusOK, mirror.GetMetrics())
}
