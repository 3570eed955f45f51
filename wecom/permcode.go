package wecom

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// PermanentCodeSource resolves the long-lived permanent code for an
// authorized corp. The permanent code is obtained once per tenant
// authorization (see the service package) and is required every time a corp
// token is minted.
type PermanentCodeSource interface {
	PermanentCode(ctx context.Context, corpID string) (string, error)
}

var _ PermanentCodeSource = (*StaticPermanentCodes)(nil)

// StaticPermanentCodes is an in-memory PermanentCodeSource. Hosts that
// persist permanent codes (they should - losing one means re-authorizing the
// tenant) implement the interface over their own storage instead.
type StaticPermanentCodes struct {
	mu    sync.RWMutex
	codes map[string]string
}

func NewStaticPermanentCodes() *StaticPermanentCodes {
	return &StaticPermanentCodes{codes: make(map[string]string)}
}

// Register stores the permanent code for corpID, replacing any previous one.
func (s *StaticPermanentCodes) Register(corpID, permanentCode string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.codes[corpID] = permanentCode
}

func (s *StaticPermanentCodes) PermanentCode(_ context.Context, corpID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	code, ok := s.codes[corpID]
	if !ok {
		return "", errors.Wrap(ErrNoPermanentCode, corpID)
	}
	return code, nil
}
