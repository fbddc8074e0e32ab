package http

import "github.com/gin-gonic/gin"

// Register attaches project routes to r. guard runs in front of every
// mutating route.
func (h *Handler) Register(r gin.IRouter, guard ...gin.HandlerFunc) {
	r.GET("/proyectos", h.list)

	mutating := r.Group("", guard...)
	mutating.POST("/upload", h.upload)
	mutating.PUT("/proyectos/:id", h.update)
	mutating.DELETE("/proyectos/:id", h.delete)
	mutating.POST("/sync", h.syncUploads)
}
