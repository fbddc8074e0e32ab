package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/jessm23/portafolio-backend/internal/logging"
	"github.com/jessm23/portafolio-backend/internal/mirror"
	"github.com/jessm23/portafolio-backend/internal/projects/domain"
)

// Store is the record store the service reads and mutates.
type Store interface {
	ReadAll(ctx context.Context) ([]domain.Project, error)
	Update(ctx context.Context, fn func([]domain.Project) ([]domain.Project, error)) error
}

// FileStore persists uploaded binaries.
type FileStore interface {
	Save(originalName string, r io.Reader) (string, error)
	Path(storedName string) string
	URL(storedName string) string
	Dir() string
	Remove(storedName string) error
}

// Mirror copies local files to the remote host.
type Mirror interface {
	SyncFile(ctx context.Context, localPath, remotePath, message string) (*mirror.Result, error)
	SyncTree(ctx context.Context, localDir, remoteDirName string) (*mirror.TreeReport, error)
}

// ErrMirrorDisabled is reported when no Mirror is configured.
var ErrMirrorDisabled = errors.New("remote mirroring is not configured")

// CreateInput holds the fields of a new project record.
type CreateInput struct {
	Title       string
	Description string
	FileName    string
}

// UploadInput is a project submission with its file.
type UploadInput struct {
	Title        string
	Description  string
	OriginalName string
	Content      io.Reader
}

// MirrorOutcome reports how the remote copy of an upload went.
type MirrorOutcome struct {
	OK         bool        `json:"ok"`
	RemotePath string      `json:"remote_path"`
	SHA        string      `json:"sha,omitempty"`
	Created    bool        `json:"created,omitempty"`
	Kind       mirror.Kind `json:"kind,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// UploadResult is the stored record plus the mirror outcome.
type UploadResult struct {
	Project domain.Project
	Mirror  MirrorOutcome
}

// ProjectService handles project-related business logic
type ProjectService struct {
	store     Store
	files     FileStore
	mirror    Mirror
	remoteDir string
	now       func() time.Time
}

// NewProjectService creates a new project service. m may be nil, in which
// case uploads are stored but never mirrored.
func NewProjectService(store Store, files FileStore, m Mirror, remoteDir string) *ProjectService {
	return &ProjectService{
		store:     store,
		files:     files,
		mirror:    m,
		remoteDir: remoteDir,
		now:       time.Now,
	}
}

// List returns all projects, newest first
func (s *ProjectService) List(ctx context.Context) ([]domain.Project, error) {
	return s.store.ReadAll(ctx)
}

// Create stores a new record at the head of the list
func (s *ProjectService) Create(ctx context.Context, in CreateInput) (*domain.Project, error) {
	now := s.now()
	var created domain.Project

	err := s.store.Update(ctx, func(items []domain.Project) ([]domain.Project, error) {
		created = domain.Project{
			ID:          nextID(items, now),
			Title:       in.Title,
			Description: in.Description,
			FileName:    in.FileName,
			FileURL:     s.files.URL(in.FileName),
			CreatedAt:   now.Format(domain.CreatedAtLayout),
		}
		return append([]domain.Project{created}, items...), nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Update merges patch into the project with the given id
func (s *ProjectService) Update(ctx context.Context, id int64, patch domain.Patch) (*domain.Project, error) {
	var updated domain.Project

	err := s.store.Update(ctx, func(items []domain.Project) ([]domain.Project, error) {
		for i := range items {
			if items[i].ID == id {
				items[i].Apply(patch)
				updated = items[i]
				return items, nil
			}
		}
		return nil, domain.ErrProjectNotFound
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes the project with the given id. The stored file and its
// remote copy are left in place.
func (s *ProjectService) Delete(ctx context.Context, id int64) error {
	return s.store.Update(ctx, func(items []domain.Project) ([]domain.Project, error) {
		out := make([]domain.Project, 0, len(items))
		for _, p := range items {
			if p.ID != id {
				out = append(out, p)
			}
		}
		if len(out) == len(items) {
			return nil, domain.ErrProjectNotFound
		}
		return out, nil
	})
}

// Upload saves the file, records the project and mirrors the file to the
// remote host. A mirror failure is reported in the result, never as an error.
func (s *ProjectService) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	logger := logging.NewLogger(ctx)

	storedName, err := s.files.Save(in.OriginalName, in.Content)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	project, err := s.Create(ctx, CreateInput{
		Title:       in.Title,
		Description: in.Description,
		FileName:    storedName,
	})
	if err != nil {
		if rmErr := s.files.Remove(storedName); rmErr != nil {
			logger.LogWarnf("upload", "could not remove orphaned upload %s: %v", storedName, rmErr)
		}
		return nil, fmt.Errorf("create project: %w", err)
	}
	logger.LogInfof("upload", "stored project id=%d file=%s", project.ID, storedName)

	// the mirror must finish even if the client goes away
	outcome := s.mirrorFile(context.WithoutCancel(ctx), storedName)
	if !outcome.OK {
		logger.LogWarnf("upload", "project id=%d saved but mirror failed: %s", project.ID, outcome.Error)
	}

	return &UploadResult{Project: *project, Mirror: outcome}, nil
}

// SyncUploads mirrors the whole upload directory to the remote folder.
func (s *ProjectService) SyncUploads(ctx context.Context) (*mirror.TreeReport, error) {
	if s.mirror == nil {
		return nil, ErrMirrorDisabled
	}
	return s.mirror.SyncTree(ctx, s.files.Dir(), s.remoteDir)
}

func (s *ProjectService) mirrorFile(ctx context.Context, storedName string) MirrorOutcome {
	remotePath := path.Join(s.remoteDir, storedName)
	outcome := MirrorOutcome{RemotePath: remotePath}

	if s.mirror == nil {
		outcome.Error = ErrMirrorDisabled.Error()
		return outcome
	}

	res, err := s.mirror.SyncFile(ctx, s.files.Path(storedName), remotePath, "Upload "+storedName)
	if err != nil {
		outcome.Kind = mirror.KindOf(err)
		outcome.Error = err.Error()
		return outcome
	}

	outcome.OK = true
	outcome.SHA = res.SHA
	outcome.Created = res.Created
	return outcome
}

// nextID derives a unique id from now, bumping past the current maximum.
func nextID(items []domain.Project, now time.Time) int64 {
	id := now.UnixMilli()
	for _, p := range items {
		if p.ID >= id {
			id = p.ID + 1
		}
	}
	return id
}
