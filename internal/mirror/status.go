package mirror

import (
	"context"
	"time"
)

const (
	StateSynced = "synced"
	StateFailed = "failed"
)

// Status is the last observed outcome of mirroring one remote path.
type Status struct {
	RemotePath string    `json:"remote_path"`
	LocalPath  string    `json:"local_path"`
	SHA        string    `json:"sha,omitempty"`
	State      string    `json:"state"`
	Kind       Kind      `json:"kind,omitempty"`
	Error      string    `json:"error,omitempty"`
	SyncedAt   time.Time `json:"synced_at"`
}

// Recorder keeps a log of sync outcomes.
type Recorder interface {
	Record(ctx context.Context, st Status) error
}

// NopRecorder discards every status.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Status) error { return nil }
