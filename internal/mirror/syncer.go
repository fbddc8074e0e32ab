package mirror

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/multierr"

	"github.com/jessm23/portafolio-backend/internal/logging"
)

// Remote is the create-or-update surface of the remote host.
type Remote interface {
	GetContent(ctx context.Context, remotePath, ref string) (*Content, error)
	PutContent(ctx context.Context, remotePath string, req PutRequest) (*PutResult, error)
}

// Config is the immutable configuration of a Syncer.
type Config struct {
	Branch         string
	RequestTimeout time.Duration
}

// Result describes one acknowledged remote write.
type Result struct {
	LocalPath   string `json:"local_path"`
	RemotePath  string `json:"remote_path"`
	SHA         string `json:"sha"`
	PreviousSHA string `json:"previous_sha,omitempty"`
	CommitSHA   string `json:"commit_sha,omitempty"`
	Created     bool   `json:"created"`
}

// TreeReport collects the outcome of a SyncTree call.
type TreeReport struct {
	LocalDir  string       `json:"local_dir"`
	RemoteDir string       `json:"remote_dir"`
	Results   []Result     `json:"results"`
	Failures  []*SyncError `json:"-"`
}

// Attempted returns the number of files SyncTree tried to mirror.
func (r *TreeReport) Attempted() int {
	return len(r.Results) + len(r.Failures)
}

// Syncer mirrors local files onto the remote host.
type Syncer struct {
	remote   Remote
	fs       afero.Fs
	cfg      Config
	recorder Recorder
}

type Option func(*Syncer)

// WithRecorder makes the Syncer log every outcome to r.
func WithRecorder(r Recorder) Option {
	return func(s *Syncer) {
		if r != nil {
			s.recorder = r
		}
	}
}

// NewSyncer creates a Syncer reading local files from fs.
func NewSyncer(remote Remote, fs afero.Fs, cfg Config, opts ...Option) *Syncer {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	s := &Syncer{
		remote:   remote,
		fs:       fs,
		cfg:      cfg,
		recorder: NopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncFile uploads localPath to remotePath, overwriting any existing remote
// content. At most one existence check precedes the single write; a stale
// revision marker surfaces as KindRemoteWriteFailed and is not retried.
func (s *Syncer) SyncFile(ctx context.Context, localPath, remotePath, message string) (res *Result, err error) {
	remotePath = NormalizeRemote(remotePath)
	logger := logging.NewLogger(ctx).With("remote_path", remotePath)

	defer func() {
		recordFileSync(res, err)
		s.record(ctx, logger, localPath, remotePath, res, err)
		if err != nil {
			logger.LogError("sync_file", err)
			return
		}
		verb := "updated"
		if res.Created {
			verb = "created"
		}
		logger.LogInfof("sync_file", "%s remote file sha=%s", verb, res.SHA)
	}()

	if remotePath == "" {
		return nil, &SyncError{Kind: KindInvalidPath, LocalPath: localPath, Err: errEmptyRemote}
	}

	info, statErr := s.fs.Stat(localPath)
	if statErr != nil {
		return nil, &SyncError{Kind: KindLocalNotFound, LocalPath: localPath, RemotePath: remotePath, Err: statErr}
	}
	if info.IsDir() {
		return nil, &SyncError{Kind: KindLocalNotFound, LocalPath: localPath, RemotePath: remotePath, Err: errIsDirectory}
	}

	data, readErr := afero.ReadFile(s.fs, localPath)
	if readErr != nil {
		return nil, &SyncError{Kind: KindLocalNotFound, LocalPath: localPath, RemotePath: remotePath, Err: readErr}
	}
	encoded := base64.StdEncoding.EncodeToString(data)

	var previous string
	qctx, cancel := s.callContext(ctx)
	existing, qErr := s.remote.GetContent(qctx, remotePath, s.cfg.Branch)
	cancel()
	switch {
	case qErr == nil:
		previous = existing.SHA
	case errors.Is(qErr, ErrNotFound):
	default:
		return nil, s.failure(KindRemoteQueryFailed, localPath, remotePath, qErr)
	}

	wctx, cancel := s.callContext(ctx)
	defer cancel()
	put, wErr := s.remote.PutContent(wctx, remotePath, PutRequest{
		Message: message,
		Content: encoded,
		Branch:  s.cfg.Branch,
		SHA:     previous,
	})
	if wErr != nil {
		return nil, s.failure(KindRemoteWriteFailed, localPath, remotePath, wErr)
	}

	return &Result{
		LocalPath:   localPath,
		RemotePath:  remotePath,
		SHA:         put.Content.SHA,
		PreviousSHA: previous,
		CommitSHA:   put.Commit.SHA,
		Created:     previous == "",
	}, nil
}

// SyncTree mirrors every file below localDir to remoteDirName, keeping
// relative paths. Children are processed one at a time; a failing file does
// not stop the walk. When any file fails the error is a *SyncError of kind
// KindPartialTreeFailure combining every failure.
func (s *Syncer) SyncTree(ctx context.Context, localDir, remoteDirName string) (*TreeReport, error) {
	recordTreeRun()
	remoteDirName = NormalizeRemote(remoteDirName)
	logger := logging.NewLogger(ctx).With("local_dir", localDir).With("remote_dir", remoteDirName)

	info, err := s.fs.Stat(localDir)
	if err != nil {
		serr := &SyncError{Kind: KindLocalNotFound, LocalPath: localDir, RemotePath: remoteDirName, Err: err}
		logger.LogError("sync_tree", serr)
		return nil, serr
	}
	if !info.IsDir() {
		serr := &SyncError{Kind: KindLocalNotFound, LocalPath: localDir, RemotePath: remoteDirName, Err: errNotDirectory}
		logger.LogError("sync_tree", serr)
		return nil, serr
	}

	report := &TreeReport{LocalDir: localDir, RemoteDir: remoteDirName, Results: []Result{}}
	walkErr := s.syncDir(ctx, localDir, remoteDirName, []os.FileInfo{info}, report)

	var combined error
	for _, f := range report.Failures {
		combined = multierr.Append(combined, f)
	}
	combined = multierr.Append(combined, walkErr)

	logger.LogInfof("sync_tree", "mirrored %d of %d files", len(report.Results), report.Attempted())
	if combined != nil {
		return report, &SyncError{Kind: KindPartialTreeFailure, LocalPath: localDir, RemotePath: remoteDirName, Err: combined}
	}
	return report, nil
}

// syncDir walks localDir. ancestors holds the directories on the current
// path so a symlink pointing back up the tree is not followed.
func (s *Syncer) syncDir(ctx context.Context, localDir, remoteDir string, ancestors []os.FileInfo, report *TreeReport) error {
	entries, err := afero.ReadDir(s.fs, localDir)
	if err != nil {
		report.Failures = append(report.Failures, &SyncError{Kind: KindLocalNotFound, LocalPath: localDir, RemotePath: remoteDir, Err: err})
		return nil
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("walk of %s interrupted: %w", localDir, err)
		}

		localPath := filepath.Join(localDir, entry.Name())
		remotePath := path.Join(remoteDir, entry.Name())

		info := entry
		if resolved, err := s.fs.Stat(localPath); err == nil {
			info = resolved
		}

		if info.IsDir() {
			if isAncestor(info, ancestors) {
				report.Failures = append(report.Failures, &SyncError{Kind: KindInvalidPath, LocalPath: localPath, RemotePath: remotePath, Err: errSymlinkCycle})
				continue
			}
			if err := s.syncDir(ctx, localPath, remotePath, append(ancestors, info), report); err != nil {
				return err
			}
			continue
		}

		message := fmt.Sprintf("Add %s to project %s", entry.Name(), remoteDir)
		res, err := s.SyncFile(ctx, localPath, remotePath, message)
		if err != nil {
			var serr *SyncError
			if !errors.As(err, &serr) {
				serr = &SyncError{Kind: KindRemoteWriteFailed, LocalPath: localPath, RemotePath: remotePath, Err: err}
			}
			report.Failures = append(report.Failures, serr)
			continue
		}
		report.Results = append(report.Results, *res)
	}
	return nil
}

func isAncestor(info os.FileInfo, ancestors []os.FileInfo) bool {
	for _, a := range ancestors {
		if os.SameFile(info, a) {
			return true
		}
	}
	return false
}

func (s *Syncer) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.RequestTimeout)
}

func (s *Syncer) failure(kind Kind, localPath, remotePath string, err error) *SyncError {
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &SyncError{Kind: kind, LocalPath: localPath, RemotePath: remotePath, Err: err}
}

func (s *Syncer) record(ctx context.Context, logger *logging.Logger, localPath, remotePath string, res *Result, err error) {
	st := Status{
		RemotePath: remotePath,
		LocalPath:  localPath,
		State:      StateSynced,
		SyncedAt:   time.Now().UTC(),
	}
	if err != nil {
		st.State = StateFailed
		st.Kind = KindOf(err)
		st.Error = err.Error()
	} else if res != nil {
		st.SHA = res.SHA
	}
	if remotePath == "" {
		return
	}
	if rerr := s.recorder.Record(context.WithoutCancel(ctx), st); rerr != nil {
		logger.LogWarnf("record_status", "could not record sync status: %v", rerr)
	}
}

// NormalizeRemote converts p to the slash-separated, cleaned form under which
// remote paths are written and recorded.
func NormalizeRemote(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	p = path.Clean(p)
	if p == "." {
		return ""
	}
	return p
}
