package token

import (
	"context"
	"time"
)

// Snapshot is the persisted form of a suite AccessToken - a plain
// credential/expiry record so host applications can serialize it to whatever
// storage they share between processes.
type Snapshot struct {
	Credential string `json:"credential"`
	ExpiresAt  int64  `json:"expires_at"` // unix seconds
}

// Store persists the process-wide suite token so that multi-process
// deployments can share a single credential. Implementations must be safe for
// concurrent use.
//
// Load returns (nil, nil) when no token is stored; that is a cache miss, not
// an error. Save with a nil snapshot erases the stored token.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
}

// Token normalizes a snapshot into an AccessToken. A nil snapshot yields the
// zero token, which is never valid.
func (s *Snapshot) Token() AccessToken {
	if s == nil {
		return AccessToken{}
	}
	return Restore(s.Credential, unixTime(s.ExpiresAt))
}

// SnapshotOf converts an AccessToken into its persisted form.
func SnapshotOf(t AccessToken) *Snapshot {
	return &Snapshot{Credential: t.Credential(), ExpiresAt: t.ExpiresAt().Unix()}
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0)
}
