package memstore

import (
	"context"
	"sync"
	"time"
)

// Revocations is a process-local token revocation list.
type Revocations struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewRevocations() *Revocations {
	return &Revocations{revoked: make(map[string]time.Time), now: time.Now}
}

func (r *Revocations) Revoke(_ context.Context, jti string, exp time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[jti] = exp
	return nil
}

func (r *Revocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	exp, ok := r.revoked[jti]
	if !ok {
		return false, nil
	}
	if !r.now().Before(exp) {
		delete(r.revoked, jti)
		return false, nil
	}
	return true, nil
}
