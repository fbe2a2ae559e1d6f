// Package backup stores ledger snapshots in Google Cloud Storage and
// restores them.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/dvloznov/mintbalance/internal/domain"
	"github.com/dvloznov/mintbalance/internal/store"
	"github.com/google/uuid"
)

// FormatVersion is written into every snapshot.
const FormatVersion = 1

// ErrNoBucket is returned when no backup bucket is configured.
var ErrNoBucket = errors.New("no backup bucket configured")

// Snapshot is the stored form of a ledger backup.
type Snapshot struct {
	Version   int           `json:"version"`
	CreatedAt time.Time     `json:"createdAt"`
	Ledger    domain.Ledger `json:"ledger"`
}

// Service writes and reads snapshots under bucket/prefix.
type Service struct {
	objects ObjectStore
	bucket  string
	prefix  string
	now     func() time.Time
}

// NewService creates a backup service.
func NewService(objects ObjectStore, bucket, prefix string) *Service {
	return &Service{
		objects: objects,
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
		now:     time.Now,
	}
}

// objectName lays snapshots out by date so listings sort chronologically.
func (s *Service) objectName(at time.Time) string {
	name := fmt.Sprintf("%s-%s.json", at.UTC().Format("20060102T150405Z"), uuid.New().String()[:8])
	return path.Join(s.prefix, at.UTC().Format("2006/01/02"), name)
}

// Backup uploads l and returns the gs:// URI of the new snapshot.
func (s *Service) Backup(ctx context.Context, l domain.Ledger) (string, error) {
	if s.bucket == "" {
		return "", fmt.Errorf("Backup: %w", ErrNoBucket)
	}

	now := s.now()
	data, err := json.Marshal(Snapshot{Version: FormatVersion, CreatedAt: now.UTC(), Ledger: l})
	if err != nil {
		return "", fmt.Errorf("Backup: encode snapshot: %w", err)
	}

	object := s.objectName(now)
	if err := s.objects.Upload(ctx, s.bucket, object, data); err != nil {
		return "", fmt.Errorf("Backup: %w", err)
	}
	return URI(s.bucket, object), nil
}

// Fetch downloads and decodes the snapshot at uri.
func (s *Service) Fetch(ctx context.Context, uri string) (Snapshot, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return Snapshot{}, fmt.Errorf("Fetch: %w", err)
	}

	data, err := s.objects.Download(ctx, bucket, object)
	if err != nil {
		return Snapshot{}, fmt.Errorf("Fetch: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("Fetch: decode %s: %w", Filename(uri), err)
	}
	if snap.Version != FormatVersion {
		return Snapshot{}, fmt.Errorf("Fetch: unsupported snapshot version %d", snap.Version)
	}
	return snap, nil
}

// Restore replaces everything in repo with the snapshot at uri.
func (s *Service) Restore(ctx context.Context, uri string, repo store.Repository) (Snapshot, error) {
	snap, err := s.Fetch(ctx, uri)
	if err != nil {
		return Snapshot{}, fmt.Errorf("Restore: %w", err)
	}

	settings := snap.Ledger.Settings
	err = repo.ReplaceAll(ctx, store.Replacement{
		Transactions:  nonNil(snap.Ledger.Transactions),
		Subscriptions: nonNil(snap.Ledger.Subscriptions),
		Settings:      &settings,
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("Restore: %w", err)
	}
	return snap, nil
}

// nonNil turns a missing list into an empty one so ReplaceAll clears it.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// List returns the URIs of stored snapshots, newest first.
func (s *Service) List(ctx context.Context) ([]string, error) {
	if s.bucket == "" {
		return nil, fmt.Errorf("List: %w", ErrNoBucket)
	}

	prefix := s.prefix
	if prefix != "" {
		prefix += "/"
	}
	objects, err := s.objects.List(ctx, s.bucket, prefix)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}

	sort.SliceStable(objects, func(i, j int) bool {
		return objects[i].Name > objects[j].Name
	})

	uris := make([]string, 0, len(objects))
	for _, o := range objects {
		if !strings.HasSuffix(o.Name, ".json") {
			continue
		}
		uris = append(uris, URI(s.bucket, o.Name))
	}
	return uris, nil
}
