package main

import (
	"context"
	"errors"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/jessm23/portafolio-backend/config"
	"github.com/jessm23/portafolio-backend/internal/bootstrap"
	"github.com/jessm23/portafolio-backend/internal/logging"
	"github.com/jessm23/portafolio-backend/internal/mirror"
)

// Syncer is the part of mirror.Syncer the commands drive.
type Syncer interface {
	SyncFile(ctx context.Context, localPath, remotePath, message string) (*mirror.Result, error)
	SyncTree(ctx context.Context, localDir, remoteDirName string) (*mirror.TreeReport, error)
}

type syncerFactory func(cfg *config.Config) (Syncer, error)

var errNoToken = errors.New("no GitHub token configured: set GITHUB_TOKEN, mitoken or GITHUB_TOKEN_FILE")

func main() {
	if err := newRootCmd(config.Load, defaultSyncer).Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func newRootCmd(load func() (*config.Config, error), newSyncer syncerFactory) *cobra.Command {
	var cfg *config.Config
	var syncer Syncer

	rootCmd := &cobra.Command{
		Use:           "mirror",
		Short:         "Mirror local files to the configured GitHub repository",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			var err error
			if cfg, err = load(); err != nil {
				return err
			}
			logging.Configure(cfg.App.LogLevel, cfg.App.Environment)
			syncer, err = newSyncer(cfg)
			return err
		},
	}

	get := func() (*config.Config, Syncer) { return cfg, syncer }
	rootCmd.AddCommand(newFileCmd(get), newTreeCmd(get))
	return rootCmd
}

func defaultSyncer(cfg *config.Config) (Syncer, error) {
	if cfg.GitHub.Token == "" {
		return nil, errNoToken
	}
	return bootstrap.NewSyncer(cfg.GitHub, afero.NewOsFs(), nil), nil
}

func commandContext(cmd *cobra.Command, name string) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return logging.WithRequestID(ctx, "cli-"+name)
}
