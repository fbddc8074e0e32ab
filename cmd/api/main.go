package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/jessm23/portafolio-backend/config"
	httpapi "github.com/jessm23/portafolio-backend/internal/api/http"
	"github.com/jessm23/portafolio-backend/internal/bootstrap"
	"github.com/jessm23/portafolio-backend/internal/logging"
	"github.com/jessm23/portafolio-backend/internal/mirror"
	cronjob "github.com/jessm23/portafolio-backend/internal/mirror/cron"
	mirrorhttp "github.com/jessm23/portafolio-backend/internal/mirror/http"
	"github.com/jessm23/portafolio-backend/internal/mirror/repository"
	projectrepo "github.com/jessm23/portafolio-backend/internal/projects/repository"
	"github.com/jessm23/portafolio-backend/internal/projects/service"
	"github.com/jessm23/portafolio-backend/internal/uploads"
)

const serviceName = "portafolio-backend"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logging.Configure(cfg.App.LogLevel, cfg.App.Environment)
	bootstrap.SetGinMode(cfg.App.Environment)

	if cfg.GitHub.Token == "" {
		log.Warn("No GitHub token configured; mirroring will be rejected by the remote host")
	}

	fs := afero.NewOsFs()
	if err := fs.MkdirAll(cfg.Storage.UploadDir, 0o755); err != nil {
		log.Fatalf("create upload dir: %v", err)
	}

	health := map[string]httpapi.Pinger{
		"record_store": storePinger(fs, cfg.Storage.DataFile),
		"redis":        nil,
	}

	var recorder mirror.Recorder
	var statuses mirrorhttp.StatusReader
	if cfg.Redis.Addr != "" {
		rdb, err := bootstrap.OpenRedis(context.Background(), bootstrap.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Warnf("Redis unavailable, sync status log disabled: %v", err)
		} else {
			defer rdb.Close()
			repo := repository.NewStatusRepository(rdb)
			recorder = repo
			statuses = repo
			health["redis"] = repo
			log.WithField("addr", cfg.Redis.Addr).Info("Sync status log connected")
		}
	}

	syncer := bootstrap.NewSyncer(cfg.GitHub, fs, recorder)
	files := uploads.NewStore(fs, cfg.Storage.UploadDir)
	svc := service.NewProjectService(
		projectrepo.NewJSONStore(fs, cfg.Storage.DataFile),
		files,
		syncer,
		cfg.GitHub.RemoteDir,
	)

	var scheduler *cronjob.Scheduler
	if cfg.Sync.Schedule != "" {
		scheduler = cronjob.NewScheduler(syncer, files.Dir(), cfg.GitHub.RemoteDir, 10*time.Minute)
		if err := scheduler.Start(cfg.Sync.Schedule); err != nil {
			log.Fatalf("invalid SYNC_SCHEDULE %q: %v", cfg.Sync.Schedule, err)
		}
	}

	r := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName: serviceName,
		Version:     cfg.App.Version,
		APIKey:      cfg.Server.APIKey,
		MaxUploadMB: cfg.Server.MaxUploadMB,
		UploadDir:   cfg.Storage.UploadDir,
		StaticDir:   cfg.Storage.StaticDir,
		Projects:    svc,
		Statuses:    statuses,
		Health:      health,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithFields(log.Fields{
			"port":       cfg.Server.Port,
			"repository": cfg.GitHub.Owner + "/" + cfg.GitHub.Repo,
			"branch":     cfg.GitHub.Branch,
		}).Info("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	if scheduler != nil {
		scheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
}

// storePinger reports the record store as down when its directory is gone.
func storePinger(fs afero.Fs, dataFile string) httpapi.Pinger {
	return httpapi.PingFunc(func(context.Context) error {
		_, err := fs.Stat(filepath.Dir(dataFile))
		return err
	})
}
