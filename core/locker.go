package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var ErrOwnerLockTimeout = errors.New("core: timed out waiting for owner lock")

type ownerSlot struct {
	ch   chan struct{}
	refs int
}

// MemoryOwnerLocker serializes workflows for the same owner inside one
// process. Waiters queue on a one-slot channel per owner.
type MemoryOwnerLocker struct {
	mu    sync.Mutex
	slots map[string]*ownerSlot
}

func NewMemoryOwnerLocker() *MemoryOwnerLocker {
	return &MemoryOwnerLocker{slots: make(map[string]*ownerSlot)}
}

func (l *MemoryOwnerLocker) Acquire(ctx context.Context, owner string) (LockHandle, error) {
	if l == nil {
		return nil, fmt.Errorf("core: owner locker is not configured")
	}
	owner = NormalizeAddress(owner)
	if owner == "" {
		return nil, fmt.Errorf("core: owner is required for lock acquisition")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	l.mu.Lock()
	slot, ok := l.slots[owner]
	if !ok {
		slot = &ownerSlot{ch: make(chan struct{}, 1)}
		l.slots[owner] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
		return &memoryLockHandle{locker: l, owner: owner, slot: slot}, nil
	case <-ctx.Done():
		l.release(owner, slot)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrOwnerLockTimeout, owner)
		}
		return nil, ctx.Err()
	}
}

func (l *MemoryOwnerLocker) release(owner string, slot *ownerSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs <= 0 {
		delete(l.slots, owner)
	}
}

// held reports the number of owners with an active or queued lock.
func (l *MemoryOwnerLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

type memoryLockHandle struct {
	locker *MemoryOwnerLocker
	owner  string
	slot   *ownerSlot
	once   sync.Once
}

func (h *memoryLockHandle) Unlock(_ context.Context) error {
	if h == nil || h.locker == nil {
		return nil
	}
	h.once.Do(func() {
		<-h.slot.ch
		h.locker.release(h.owner, h.slot)
	})
	return nil
}

// lockOwner acquires the per-owner lock bounded by the configured timeout.
// The returned release func is safe to defer.
func (s *Service) lockOwner(ctx context.Context, owner string) (func(), error) {
	if s.ownerLocker == nil {
		return func() {}, nil
	}
	lockCtx := ctx
	cancel := func() {}
	if timeout := s.config.Issuance.LockTimeout; timeout > 0 {
		lockCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	handle, err := s.ownerLocker.Acquire(lockCtx, owner)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %s", ErrOwnerLockTimeout, NormalizeAddress(owner))
		}
		return nil, err
	}
	return func() {
		if unlockErr := handle.Unlock(context.WithoutCancel(ctx)); unlockErr != nil {
			s.logWarn(ctx, "owner lock release failed", map[string]any{
				"owner": NormalizeAddress(owner),
				"error": unlockErr.Error(),
			})
		}
	}, nil
}
