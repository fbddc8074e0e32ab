package mirror

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type remoteCall struct {
	Method string
	Path   string
	Body   PutRequest
	HasSHA bool
}

// fakeRemote is an in-memory contents API with optimistic concurrency.
type fakeRemote struct {
	t      *testing.T
	mu     sync.Mutex
	files  map[string]string // path -> sha
	data   map[string]string // path -> base64 content
	calls  []remoteCall
	server *httptest.Server

	// hooks to force failures
	getStatus map[string]int
	putStatus map[string]int
}

func newFakeRemote(t *testing.T) *fakeRemote {
	f := &fakeRemote{
		t:         t,
		files:     map[string]string{},
		data:      map[string]string{},
		getStatus: map[string]int{},
		putStatus: map[string]int{},
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeRemote) client() *ContentsClient {
	return NewContentsClient(Coordinates{
		BaseURL: f.server.URL,
		Owner:   "owner",
		Repo:    "repo",
		Branch:  "main",
	}, ClientOptions{Token: "test-token"})
}

func (f *fakeRemote) handle(w http.ResponseWriter, r *http.Request) {
	const prefix = "/repos/owner/repo/contents/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		f.t.Errorf("unexpected path: %s", r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
		f.t.Errorf("unexpected Authorization header: %q", got)
	}
	p := strings.TrimPrefix(r.URL.Path, prefix)

	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.Method {
	case http.MethodGet:
		f.calls = append(f.calls, remoteCall{Method: r.Method, Path: p})
		if code, ok := f.getStatus[p]; ok {
			w.WriteHeader(code)
			_, _ = w.Write([]byte(`{"message":"forced failure"}`))
			return
		}
		sha, ok := f.files[p]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Not Found"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(Content{Type: "file", Path: p, SHA: sha})

	case http.MethodPut:
		var body PutRequest
		var raw map[string]interface{}
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(&raw); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		b, _ := json.Marshal(raw)
		_ = json.Unmarshal(b, &body)
		_, hasSHA := raw["sha"]
		f.calls = append(f.calls, remoteCall{Method: r.Method, Path: p, Body: body, HasSHA: hasSHA})

		if code, ok := f.putStatus[p]; ok {
			w.WriteHeader(code)
			_, _ = w.Write([]byte(`{"message":"forced failure"}`))
			return
		}

		current, exists := f.files[p]
		switch {
		case exists && body.SHA == "":
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message":"\"sha\" wasn't supplied."}`))
			return
		case exists && body.SHA != current:
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"message":"sha does not match"}`))
			return
		}

		sum := sha1.Sum([]byte(p + ":" + body.Content + ":" + current))
		newSHA := hex.EncodeToString(sum[:])
		f.files[p] = newSHA
		f.data[p] = body.Content

		if exists {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusCreated)
		}
		_, _ = w.Write([]byte(`{"content":{"path":"` + p + `","sha":"` + newSHA + `"},"commit":{"sha":"c-` + newSHA[:7] + `"}}`))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeRemote) snapshotCalls() []remoteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]remoteCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeRemote) putPaths() []string {
	var out []string
	for _, c := range f.snapshotCalls() {
		if c.Method == http.MethodPut {
			out = append(out, c.Path)
		}
	}
	return out
}

func jsonDecode(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}
