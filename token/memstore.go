package token

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

var _ Store = (*InMemoryStore)(nil)

// InMemoryStore holds the suite token in a process-local variable. It is the
// default Store and is unsuitable for multi-process or multi-host
// deployments: each process will mint its own suite token and the remote
// service may invalidate all but the most recent one. Hosts running more than
// one process must supply a shared Store instead.
type InMemoryStore struct {
	mu   sync.RWMutex
	snap *Snapshot
}

// NewInMemoryStore builds the process-local store. The warning is deliberate:
// silent use of process-local storage in production is exactly the failure
// mode this log line exists to surface.
func NewInMemoryStore(log zerolog.Logger) *InMemoryStore {
	log.Warn().Msg("using in-memory suite token store; tokens are not shared across processes")
	return &InMemoryStore{}
}

func (s *InMemoryStore) Load(_ context.Context) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snap == nil {
		return nil, nil
	}
	snap := *s.snap
	return &snap, nil
}

func (s *InMemoryStore) Save(_ context.Context, snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap == nil {
		s.snap = nil
		return nil
	}
	copied := *snap
	s.snap = &copied
	return nil
}
