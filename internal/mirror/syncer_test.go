package mirror

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRecorder struct {
	mu       sync.Mutex
	statuses []Status
}

func (m *memRecorder) Record(_ context.Context, st Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, st)
	return nil
}

func newTestSyncer(t *testing.T, remote *fakeRemote, opts ...Option) (*Syncer, afero.Fs) {
	fs := afero.NewMemMapFs()
	return NewSyncer(remote.client(), fs, Config{Branch: "main", RequestTimeout: 5 * time.Second}, opts...), fs
}

func TestSyncFile_CreatesWithoutMarker(t *testing.T) {
	remote := newFakeRemote(t)
	syncer, fs := newTestSyncer(t, remote)
	require.NoError(t, afero.WriteFile(fs, "/up/a.txt", []byte("hello"), 0o644))

	res, err := syncer.SyncFile(context.Background(), "/up/a.txt", "site/a.txt", "Upload a.txt")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Empty(t, res.PreviousSHA)
	assert.NotEmpty(t, res.SHA)

	calls := remote.snapshotCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, http.MethodGet, calls[0].Method)
	assert.Equal(t, http.MethodPut, calls[1].Method)
	assert.False(t, calls[1].HasSHA, "create must not carry a guard marker")
	assert.Equal(t, "main", calls[1].Body.Branch)
	assert.Equal(t, "Upload a.txt", calls[1].Body.Message)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("hello")), calls[1].Body.Content)
}

func TestSyncFile_IdempotentUpsert(t *testing.T) {
	remote := newFakeRemote(t)
	syncer, fs := newTestSyncer(t, remote)
	require.NoError(t, afero.WriteFile(fs, "/up/a.txt", []byte("v1"), 0o644))

	first, err := syncer.SyncFile(context.Background(), "/up/a.txt", "site/a.txt", "one")
	require.NoError(t, err)

	require.NoError(t, afero.WriteFile(fs, "/up/a.txt", []byte("v2"), 0o644))
	second, err := syncer.SyncFile(context.Background(), "/up/a.txt", "site/a.txt", "two")
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.Equal(t, first.SHA, second.PreviousSHA)

	puts := remote.putPaths()
	assert.Equal(t, []string{"site/a.txt", "site/a.txt"}, puts)

	calls := remote.snapshotCalls()
	last := calls[len(calls)-1]
	assert.True(t, last.HasSHA)
	assert.Equal(t, first.SHA, last.Body.SHA)

	remote.mu.Lock()
	assert.Len(t, remote.files, 1)
	remote.mu.Unlock()
}

func TestSyncFile_ExistingMarkerIsSent(t *testing.T) {
	var putBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(`{"sha":"abc"}`))
			return
		}
		putBody = map[string]interface{}{}
		assert.NoError(t, jsonDecode(r, &putBody))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"content":{"sha":"def"}}`))
	}))
	defer server.Close()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "f.bin", []byte{0, 1, 2}, 0o644))
	client := NewContentsClient(Coordinates{BaseURL: server.URL, Owner: "o", Repo: "r"}, ClientOptions{})
	syncer := NewSyncer(client, fs, Config{Branch: "main"})

	res, err := syncer.SyncFile(context.Background(), "f.bin", "f.bin", "m")
	require.NoError(t, err)
	assert.Equal(t, "abc", putBody["sha"])
	assert.Equal(t, "abc", res.PreviousSHA)
	assert.Equal(t, "def", res.SHA)
	assert.False(t, res.Created)
}

func TestSyncFile_LocalNotFound_NoNetwork(t *testing.T) {
	remote := newFakeRemote(t)
	syncer, fs := newTestSyncer(t, remote)
	require.NoError(t, fs.MkdirAll("/up/dir", 0o755))

	for _, p := range []string{"/up/missing.txt", "/up/dir"} {
		_, err := syncer.SyncFile(context.Background(), p, "site/x", "m")
		require.Error(t, err)
		assert.Equal(t, KindLocalNotFound, KindOf(err))
	}
	assert.Empty(t, remote.snapshotCalls())
}

func TestSyncFile_EmptyRemotePath(t *testing.T) {
	remote := newFakeRemote(t)
	syncer, fs := newTestSyncer(t, remote)
	require.NoError(t, afero.WriteFile(fs, "a.txt", []byte("x"), 0o644))

	_, err := syncer.SyncFile(context.Background(), "a.txt", "/", "m")
	assert.Equal(t, KindInvalidPath, KindOf(err))
	assert.Empty(t, remote.snapshotCalls())
}

func TestSyncFile_QueryFailure(t *testing.T) {
	remote := newFakeRemote(t)
	remote.getStatus["site/a.txt"] = http.StatusInternalServerError
	syncer, fs := newTestSyncer(t, remote)
	require.NoError(t, afero.WriteFile(fs, "a.txt", []byte("x"), 0o644))

	_, err := syncer.SyncFile(context.Background(), "a.txt", "site/a.txt", "m")
	require.Error(t, err)
	assert.Equal(t, KindRemoteQueryFailed, KindOf(err))
	assert.Empty(t, remote.putPaths(), "no write after a failed existence check")
}

func TestSyncFile_WriteRejected(t *testing.T) {
	remote := newFakeRemote(t)
	remote.putStatus["site/a.txt"] = http.StatusForbidden
	syncer, fs := newTestSyncer(t, remote)
	require.NoError(t, afero.WriteFile(fs, "a.txt", []byte("x"), 0o644))

	assert.NotPanics(t, func() {
		_, err := syncer.SyncFile(context.Background(), "a.txt", "site/a.txt", "m")
		require.Error(t, err)
		assert.Equal(t, KindRemoteWriteFailed, KindOf(err))

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
		assert.Equal(t, "forced failure", apiErr.Message)
	})
}

func TestSyncFile_StaleMarkerSurfacesConflict(t *testing.T) {
	// The remote changes between the existence check and the write.
	var gets int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			gets++
			w.Write([]byte(`{"sha":"stale"}`))
			return
		}
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"message":"is at newer but expected stale"}`))
	}))
	defer server.Close()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "a.txt", []byte("x"), 0o644))
	client := NewContentsClient(Coordinates{BaseURL: server.URL, Owner: "o", Repo: "r"}, ClientOptions{})
	syncer := NewSyncer(client, fs, Config{Branch: "main"})

	_, err := syncer.SyncFile(context.Background(), "a.txt", "a.txt", "m")
	require.Error(t, err)
	assert.Equal(t, KindRemoteWriteFailed, KindOf(err))
	assert.True(t, IsConflict(err))
	assert.Equal(t, 1, gets, "exactly one guard check, no retry")
}

func TestSyncFile_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "a.txt", []byte("x"), 0o644))
	client := NewContentsClient(Coordinates{BaseURL: server.URL, Owner: "o", Repo: "r"}, ClientOptions{})
	syncer := NewSyncer(client, fs, Config{Branch: "main", RequestTimeout: 50 * time.Millisecond})

	_, err := syncer.SyncFile(context.Background(), "a.txt", "a.txt", "m")
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestSyncFile_RecordsStatus(t *testing.T) {
	remote := newFakeRemote(t)
	rec := &memRecorder{}
	syncer, fs := newTestSyncer(t, remote, WithRecorder(rec))
	require.NoError(t, afero.WriteFile(fs, "a.txt", []byte("x"), 0o644))

	res, err := syncer.SyncFile(context.Background(), "a.txt", "site/a.txt", "m")
	require.NoError(t, err)
	_, err = syncer.SyncFile(context.Background(), "gone.txt", "site/gone.txt", "m")
	require.Error(t, err)

	require.Len(t, rec.statuses, 2)
	assert.Equal(t, StateSynced, rec.statuses[0].State)
	assert.Equal(t, res.SHA, rec.statuses[0].SHA)
	assert.Equal(t, StateFailed, rec.statuses[1].State)
	assert.Equal(t, KindLocalNotFound, rec.statuses[1].Kind)
}

func TestSyncTree_PreservesRelativePaths(t *testing.T) {
	remote := newFakeRemote(t)
	syncer, fs := newTestSyncer(t, remote)
	require.NoError(t, afero.WriteFile(fs, filepath.Join("/proj", "a.txt"), []byte("a"), 0o644))
	require.NoError(t, afero.WriteFile(fs, filepath.Join("/proj", "sub", "b.txt"), []byte("b"), 0o644))

	report, err := syncer.SyncTree(context.Background(), "/proj", "name")
	require.NoError(t, err)
	assert.Len(t, report.Results, 2)
	assert.ElementsMatch(t, []string{"name/a.txt", "name/sub/b.txt"}, remote.putPaths())

	for _, c := range remote.snapshotCalls() {
		if c.Path == "name/sub/b.txt" && c.Method == http.MethodPut {
			assert.Equal(t, "Add b.txt to project name/sub", c.Body.Message)
		}
	}
}

func TestSyncTree_ContinuesAfterFailure(t *testing.T) {
	remote := newFakeRemote(t)
	remote.putStatus["name/a.txt"] = http.StatusBadGateway
	syncer, fs := newTestSyncer(t, remote)
	require.NoError(t, afero.WriteFile(fs, "/proj/a.txt", []byte("a"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/proj/sub/b.txt", []byte("b"), 0o644))

	report, err := syncer.SyncTree(context.Background(), "/proj", "name")
	require.Error(t, err)
	assert.Equal(t, KindPartialTreeFailure, KindOf(err))

	require.NotNil(t, report)
	assert.Equal(t, 2, report.Attempted())
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "name/a.txt", report.Failures[0].RemotePath)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "name/sub/b.txt", report.Results[0].RemotePath)
	assert.Equal(t, []string{"name/a.txt", "name/sub/b.txt"}, remote.putPaths())
}

func TestSyncTree_MissingDirectory(t *testing.T) {
	remote := newFakeRemote(t)
	syncer, fs := newTestSyncer(t, remote)
	require.NoError(t, afero.WriteFile(fs, "/file.txt", []byte("x"), 0o644))

	for _, dir := range []string{"/nope", "/file.txt"} {
		report, err := syncer.SyncTree(context.Background(), dir, "name")
		assert.Nil(t, report)
		assert.Equal(t, KindLocalNotFound, KindOf(err))
	}
	assert.Empty(t, remote.snapshotCalls())
}

func TestSyncTree_StopsOnCancelledContext(t *testing.T) {
	remote := newFakeRemote(t)
	syncer, fs := newTestSyncer(t, remote)
	require.NoError(t, afero.WriteFile(fs, "/proj/a.txt", []byte("a"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := syncer.SyncTree(ctx, "/proj", "name")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, report.Attempted())
	assert.Empty(t, remote.snapshotCalls())
}

func TestSyncTree_FollowsSymlinkedDirectories(t *testing.T) {
	remote := newFakeRemote(t)
	root := t.TempDir()
	proj := filepath.Join(root, "proj")
	target := filepath.Join(root, "real")
	require.NoError(t, os.MkdirAll(proj, 0o755))
	require.NoError(t, os.MkdirAll(target, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(proj, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(target, "b.txt"), []byte("b"), 0o644))
	if err := os.Symlink(target, filepath.Join(proj, "link")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	syncer := NewSyncer(remote.client(), afero.NewOsFs(), Config{Branch: "main", RequestTimeout: 5 * time.Second})
	report, err := syncer.SyncTree(context.Background(), proj, "name")
	require.NoError(t, err)
	assert.Len(t, report.Results, 2)
	assert.Empty(t, report.Failures)
	assert.Equal(t, []string{"name/a.txt", "name/link/b.txt"}, remote.putPaths())
}

func TestSyncTree_SkipsSymlinkCycles(t *testing.T) {
	remote := newFakeRemote(t)
	proj := filepath.Join(t.TempDir(), "proj")
	require.NoError(t, os.MkdirAll(filepath.Join(proj, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(proj, "sub", "b.txt"), []byte("b"), 0o644))
	if err := os.Symlink(proj, filepath.Join(proj, "sub", "back")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	syncer := NewSyncer(remote.client(), afero.NewOsFs(), Config{Branch: "main", RequestTimeout: 5 * time.Second})
	report, err := syncer.SyncTree(context.Background(), proj, "name")
	require.Error(t, err)
	assert.Equal(t, KindPartialTreeFailure, KindOf(err))

	require.Len(t, report.Failures, 1)
	assert.Equal(t, "name/sub/back", report.Failures[0].RemotePath)
	assert.ErrorIs(t, report.Failures[0], errSymlinkCycle)
	assert.Equal(t, []string{"name/sub/b.txt"}, remote.putPaths())
}

func TestSyncFile_RateLimitPastDeadlineIsTimeout(t *testing.T) {
	remote := newFakeRemote(t)
	client := NewContentsClient(Coordinates{BaseURL: remote.server.URL, Owner: "owner", Repo: "repo"},
		ClientOptions{Token: "test-token", RateLimit: 0.1, RateBurst: 1})
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "a.txt", []byte("x"), 0o644))
	syncer := NewSyncer(client, fs, Config{Branch: "main", RequestTimeout: 200 * time.Millisecond})

	start := time.Now()
	_, err := syncer.SyncFile(context.Background(), "a.txt", "a.txt", "m")
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Empty(t, remote.putPaths())
}

func TestNormalizeRemote(t *testing.T) {
	tests := map[string]string{
		"":                   "",
		"/":                  "",
		".":                  "",
		"/site/a.txt":        "site/a.txt",
		`site\sub\a.txt`:     "site/sub/a.txt",
		"site//sub/../a.txt": "site/a.txt",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeRemote(in), "input %q", in)
	}
}
