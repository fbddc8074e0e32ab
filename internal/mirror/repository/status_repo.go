package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jessm23/portafolio-backend/internal/mirror"
)

const (
	fileKeyPrefix = "mirror:file:"      // Hash of the last outcome: mirror:file:{remote_path}
	recentKey     = "mirror:recent"     // Sorted set of remote paths by last sync time (unix ms)
	statusTTL     = 30 * 24 * time.Hour // TTL for status hashes (30 days)
	recentLimit   = 200
)

// ErrStatusNotFound is returned when no outcome was recorded for a path.
var ErrStatusNotFound = errors.New("sync status not found")

// StatusRepository keeps the last sync outcome per remote path in Redis
type StatusRepository struct {
	client *redis.Client
}

// NewStatusRepository creates a new StatusRepository
func NewStatusRepository(client *redis.Client) *StatusRepository {
	return &StatusRepository{client: client}
}

// Record stores st as the latest outcome for st.RemotePath.
func (r *StatusRepository) Record(ctx context.Context, st mirror.Status) error {
	if st.RemotePath == "" {
		return fmt.Errorf("remote path required")
	}
	if st.SyncedAt.IsZero() {
		st.SyncedAt = time.Now().UTC()
	}

	key := r.fileKey(st.RemotePath)

	// Use pipeline for atomic operations
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, map[string]interface{}{
		"remote_path": st.RemotePath,
		"local_path":  st.LocalPath,
		"sha":         st.SHA,
		"state":       st.State,
		"kind":        string(st.Kind),
		"error":       st.Error,
		"synced_at":   st.SyncedAt.UTC().Format(time.RFC3339Nano),
	})
	pipe.Expire(ctx, key, statusTTL)
	pipe.ZAdd(ctx, recentKey, redis.Z{Score: float64(st.SyncedAt.UnixMilli()), Member: st.RemotePath})
	pipe.ZRemRangeByRank(ctx, recentKey, 0, -(recentLimit + 1))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record sync status: %w", err)
	}
	return nil
}

// Get returns the latest outcome recorded for remotePath.
func (r *StatusRepository) Get(ctx context.Context, remotePath string) (*mirror.Status, error) {
	fields, err := r.client.HGetAll(ctx, r.fileKey(remotePath)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get sync status: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrStatusNotFound
	}
	return decodeStatus(fields)
}

// Recent returns up to n outcomes, newest first.
func (r *StatusRepository) Recent(ctx context.Context, n int) ([]mirror.Status, error) {
	if n <= 0 || n > recentLimit {
		n = recentLimit
	}

	paths, err := r.client.ZRevRange(ctx, recentKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list recent syncs: %w", err)
	}

	out := make([]mirror.Status, 0, len(paths))
	for _, p := range paths {
		st, err := r.Get(ctx, p)
		if errors.Is(err, ErrStatusNotFound) {
			// hash expired before the index entry was trimmed
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, nil
}

// Ping reports whether Redis is reachable.
func (r *StatusRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *StatusRepository) fileKey(remotePath string) string {
	return fmt.Sprintf("%s%s", fileKeyPrefix, remotePath)
}

func decodeStatus(fields map[string]string) (*mirror.Status, error) {
	st := &mirror.Status{
		RemotePath: fields["remote_path"],
		LocalPath:  fields["local_path"],
		SHA:        fields["sha"],
		State:      fields["state"],
		Kind:       mirror.Kind(fields["kind"]),
		Error:      fields["error"],
	}
	if ts := fields["synced_at"]; ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("failed to parse synced_at: %w", err)
		}
		st.SyncedAt = t
	}
	return st, nil
}
