package orders

import (
	"context"
	"fmt"
	"sync"
	"time"

	pkgerrors "github.com/angelmondragon/dailyledger/pkg/errors"
	"github.com/google/uuid"
)

const (
	leaseAttempts = 5
	leaseBackoff  = 100 * time.Millisecond
)

// LeaseLocker holds a named lease shared by every process writing a ledger.
type LeaseLocker interface {
	AcquireLock(ctx context.Context, name, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name, token string) error
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

// keyedMutex serializes work per key inside this process.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{entries: map[string]*keyedEntry{}}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &keyedEntry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}

func ledgerLockName(sheetID string) string {
	return "ledger:" + sheetID
}

// lockLedger serializes read-reconcile-write for one ledger. The lease is
// only taken when a LeaseLocker is configured.
func (s *service) lockLedger(ctx context.Context, sheetID string) (func(), error) {
	unlock := s.mutex.Lock(sheetID)
	if s.lease == nil {
		return unlock, nil
	}

	name := ledgerLockName(sheetID)
	token := uuid.NewString()
	for attempt := 0; ; attempt++ {
		ok, err := s.lease.AcquireLock(ctx, name, token, s.lockTTL)
		if err != nil {
			unlock()
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire ledger lock")
		}
		if ok {
			break
		}
		if attempt+1 >= leaseAttempts {
			unlock()
			return nil, pkgerrors.New(pkgerrors.CodeSchemaConflict, fmt.Sprintf("ledger %s is being written by another process", sheetID))
		}
		select {
		case <-ctx.Done():
			unlock()
			return nil, pkgerrors.Wrap(pkgerrors.CodeSchemaConflict, ctx.Err(), "waiting for ledger lock")
		case <-time.After(leaseBackoff):
		}
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := s.lease.ReleaseLock(releaseCtx, name, token); err != nil {
			logCtx := s.logg.WithFields(releaseCtx, map[string]any{"lock": name, "error": err.Error()})
			s.logg.Warn(logCtx, "ledger lock release failed")
		}
		unlock()
	}, nil
}
