package progress

import "context"

// Store persists whole snapshots. Load never fails: problems come back as a
// Warning alongside an empty snapshot.
type Store interface {
	Load(ctx context.Context) (Snapshot, *Warning)
	Save(ctx context.Context, snap Snapshot) error
	Close() error
}
