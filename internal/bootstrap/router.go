package bootstrap

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	httpapi "github.com/jessm23/portafolio-backend/internal/api/http"
	"github.com/jessm23/portafolio-backend/internal/api/http/middleware"
	mirrorhttp "github.com/jessm23/portafolio-backend/internal/mirror/http"
	projecthttp "github.com/jessm23/portafolio-backend/internal/projects/http"
	"github.com/jessm23/portafolio-backend/internal/projects/service"
	"github.com/jessm23/portafolio-backend/internal/uploads"
)

type RouterDeps struct {
	ServiceName string
	Version     string
	APIKey      string
	MaxUploadMB int
	UploadDir   string
	StaticDir   string

	Projects *service.ProjectService
	Statuses mirrorhttp.StatusReader
	Health   map[string]httpapi.Pinger
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", middleware.APIKeyHeader, middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	if dep.MaxUploadMB > 0 {
		r.MaxMultipartMemory = int64(dep.MaxUploadMB) << 20
	}

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, dep.Health)
	healthHandler.RegisterRoutes(r)

	guard := middleware.APIKeyMiddleware(dep.APIKey)

	projecthttp.New(dep.Projects).Register(r, guard)
	mirrorhttp.New(dep.Statuses).Register(r)

	r.Static(strings.TrimSuffix(uploads.URLPrefix, "/"), dep.UploadDir)
	if dep.StaticDir != "" {
		files := http.FileServer(http.Dir(dep.StaticDir))
		r.NoRoute(func(c *gin.Context) {
			if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			files.ServeHTTP(c.Writer, c.Request)
		})
	}

	return r
}
