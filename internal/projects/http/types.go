package http

import (
	"github.com/jessm23/portafolio-backend/internal/projects/domain"
	"github.com/jessm23/portafolio-backend/internal/projects/service"
)

// Handler bundles the dependencies for projects HTTP endpoints.
type Handler struct {
	svc *service.ProjectService
}

func New(svc *service.ProjectService) *Handler {
	return &Handler{svc: svc}
}

// uploadResponse is the project record with the mirror outcome alongside.
type uploadResponse struct {
	domain.Project
	Mirror service.MirrorOutcome `json:"mirror"`
}

type syncFailure struct {
	LocalPath  string `json:"local_path"`
	RemotePath string `json:"remote_path"`
	Kind       string `json:"kind"`
	Error      string `json:"error"`
}
