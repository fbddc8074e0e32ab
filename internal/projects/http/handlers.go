package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jessm23/portafolio-backend/internal/logging"
	"github.com/jessm23/portafolio-backend/internal/mirror"
	"github.com/jessm23/portafolio-backend/internal/projects/domain"
	"github.com/jessm23/portafolio-backend/internal/projects/service"
)

func (h *Handler) list(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context())
	if err != nil {
		logging.NewLogger(c.Request.Context()).LogError("list_projects", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read projects"})
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) upload(c *gin.Context) {
	file, err := c.FormFile("archivo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file was uploaded"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read uploaded file"})
		return
	}
	defer src.Close()

	res, err := h.svc.Upload(c.Request.Context(), service.UploadInput{
		Title:        c.PostForm("titulo"),
		Description:  c.PostForm("descripcion"),
		OriginalName: file.Filename,
		Content:      src,
	})
	if err != nil {
		logging.NewLogger(c.Request.Context()).LogError("upload", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store upload"})
		return
	}

	c.JSON(http.StatusOK, uploadResponse{Project: res.Project, Mirror: res.Mirror})
}

func (h *Handler) update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var patch domain.Patch
	if err := c.ShouldBindJSON(&patch); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid body"})
		return
	}

	if _, err := h.svc.Update(c.Request.Context(), id, patch); err != nil {
		h.writeMutationError(c, "update_project", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		h.writeMutationError(c, "delete_project", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) syncUploads(c *gin.Context) {
	report, err := h.svc.SyncUploads(c.Request.Context())
	switch {
	case errors.Is(err, service.ErrMirrorDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": err.Error()})
		return
	case err != nil && mirror.KindOf(err) == mirror.KindLocalNotFound:
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": err.Error()})
		return
	case err != nil && report == nil:
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	failures := make([]syncFailure, 0, len(report.Failures))
	for _, f := range report.Failures {
		failures = append(failures, syncFailure{
			LocalPath:  f.LocalPath,
			RemotePath: f.RemotePath,
			Kind:       string(f.Kind),
			Error:      f.Error(),
		})
	}

	status := http.StatusOK
	if err != nil {
		status = http.StatusMultiStatus
	}
	c.JSON(status, gin.H{
		"ok":       err == nil,
		"synced":   report.Results,
		"failures": failures,
	})
}

func (h *Handler) writeMutationError(c *gin.Context, operation string, err error) {
	if errors.Is(err, domain.ErrProjectNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "project not found"})
		return
	}
	logging.NewLogger(c.Request.Context()).LogError(operation, err)
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid project id"})
		return 0, false
	}
	return id, true
}
