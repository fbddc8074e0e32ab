package bootstrap

import (
	"github.com/spf13/afero"

	"github.com/jessm23/portafolio-backend/config"
	"github.com/jessm23/portafolio-backend/internal/mirror"
)

// NewSyncer builds the contents client and syncer for the configured
// repository. rec may be nil.
func NewSyncer(gh config.GitHubConfig, fs afero.Fs, rec mirror.Recorder) *mirror.Syncer {
	client := mirror.NewContentsClient(mirror.Coordinates{
		BaseURL: gh.APIBaseURL,
		Owner:   gh.Owner,
		Repo:    gh.Repo,
		Branch:  gh.Branch,
	}, mirror.ClientOptions{
		Token:     gh.Token,
		RateLimit: gh.RateLimit,
		RateBurst: gh.RateBurst,
		Timeout:   gh.Timeout,
	})

	return mirror.NewSyncer(client, fs, mirror.Config{
		Branch:         gh.Branch,
		RequestTimeout: gh.Timeout,
	}, mirror.WithRecorder(rec))
}
