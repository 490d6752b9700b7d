package core

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MemoryCertificateStore keeps certificates in process. A single mutex makes
// every append a per-owner critical section.
type MemoryCertificateStore struct {
	mu      sync.Mutex
	records map[string]Certificate
	nowFn   func() time.Time
}

func NewMemoryCertificateStore() *MemoryCertificateStore {
	return &MemoryCertificateStore{
		records: map[string]Certificate{},
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryCertificateStore) FindByOwner(_ context.Context, owner string) (Certificate, bool, error) {
	if s == nil {
		return Certificate{}, false, fmt.Errorf("core: certificate store is not configured")
	}
	owner = NormalizeAddress(owner)
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[owner]
	if !ok {
		return Certificate{}, false, nil
	}
	return record.Clone(), true, nil
}

func (s *MemoryCertificateStore) FindByToken(_ context.Context, tokenID string) (Certificate, bool, error) {
	if s == nil {
		return Certificate{}, false, fmt.Errorf("core: certificate store is not configured")
	}
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return Certificate{}, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.records {
		if record.TokenID == tokenID {
			return record.Clone(), true, nil
		}
	}
	return Certificate{}, false, nil
}

func (s *MemoryCertificateStore) UpsertContent(_ context.Context, in UpsertContentInput) (Certificate, bool, error) {
	if s == nil {
		return Certificate{}, false, fmt.Errorf("core: certificate store is not configured")
	}
	owner := NormalizeAddress(in.Owner)
	if owner == "" {
		return Certificate{}, false, fmt.Errorf("core: owner is required")
	}
	now := s.nowFn()

	s.mu.Lock()
	defer s.mu.Unlock()
	record, exists := s.records[owner]
	if !exists {
		record = Certificate{Owner: owner, CreatedAt: now}
		for _, referral := range in.InitialReferrals {
			if referral = NormalizeAddress(referral); referral != "" && !record.HasReferral(referral) {
				record.Referrals = append(record.Referrals, referral)
			}
		}
	}
	record.Content = in.Content.Clone()
	record.CID = strings.TrimSpace(in.CID)
	record.MetadataURI = strings.TrimSpace(in.URI)
	record.UpdatedAt = now
	s.records[owner] = record
	return record.Clone(), !exists, nil
}

func (s *MemoryCertificateStore) AppendVersion(_ context.Context, in AppendVersionInput) (Version, error) {
	if s == nil {
		return Version{}, fmt.Errorf("core: certificate store is not configured")
	}
	owner := NormalizeAddress(in.Owner)
	now := s.nowFn()

	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[owner]
	if !ok {
		return Version{}, ErrCertificateNotFound
	}
	next := 1
	if count := len(record.Versions); count > 0 {
		last, err := strconv.Atoi(record.Versions[count-1].VersionID)
		if err != nil {
			return Version{}, fmt.Errorf("core: stored version id %q is not numeric", record.Versions[count-1].VersionID)
		}
		next = last + 1
	}
	version := Version{VersionID: strconv.Itoa(next), CID: strings.TrimSpace(in.CID), CreatedAt: now}
	record.Versions = append(append([]Version(nil), record.Versions...), version)
	record.Content = in.Content.Clone()
	record.CID = version.CID
	record.MetadataURI = strings.TrimSpace(in.URI)
	record.UpdatedAt = now
	s.records[owner] = record
	return version, nil
}

func (s *MemoryCertificateStore) AppendReferral(_ context.Context, owner string, referee string) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("core: certificate store is not configured")
	}
	owner = NormalizeAddress(owner)
	referee = NormalizeAddress(referee)
	if referee == "" {
		return false, fmt.Errorf("core: referee is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[owner]
	if !ok {
		return false, ErrCertificateNotFound
	}
	if record.HasReferral(referee) {
		return false, nil
	}
	record.Referrals = append(append([]string(nil), record.Referrals...), referee)
	record.UpdatedAt = s.nowFn()
	s.records[owner] = record
	return true, nil
}

func (s *MemoryCertificateStore) BindToken(_ context.Context, owner string, tokenID string) error {
	if s == nil {
		return fmt.Errorf("core: certificate store is not configured")
	}
	owner = NormalizeAddress(owner)
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[owner]
	if !ok {
		return ErrCertificateNotFound
	}
	record.TokenID = strings.TrimSpace(tokenID)
	record.UpdatedAt = s.nowFn()
	s.records[owner] = record
	return nil
}

func (s *MemoryCertificateStore) DeleteByToken(_ context.Context, tokenID string) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("core: certificate store is not configured")
	}
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for owner, record := range s.records {
		if record.TokenID == tokenID {
			delete(s.records, owner)
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryCertificateStore) DeleteByOwner(_ context.Context, owner string) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("core: certificate store is not configured")
	}
	owner = NormalizeAddress(owner)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[owner]; !ok {
		return false, nil
	}
	delete(s.records, owner)
	return true, nil
}

type MemorySagaStore struct {
	mu    sync.Mutex
	sagas map[string]Saga
}

func NewMemorySagaStore() *MemorySagaStore {
	return &MemorySagaStore{sagas: map[string]Saga{}}
}

func (s *MemorySagaStore) Save(_ context.Context, saga Saga) error {
	if s == nil {
		return fmt.Errorf("core: saga store is not configured")
	}
	if strings.TrimSpace(saga.ID) == "" {
		return fmt.Errorf("core: saga id is required")
	}
	s.mu.Lock()
	s.sagas[saga.ID] = saga.Clone()
	s.mu.Unlock()
	return nil
}

func (s *MemorySagaStore) Get(_ context.Context, id string) (Saga, error) {
	if s == nil {
		return Saga{}, fmt.Errorf("core: saga store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	saga, ok := s.sagas[strings.TrimSpace(id)]
	if !ok {
		return Saga{}, ErrSagaNotFound
	}
	return saga.Clone(), nil
}

func (s *MemorySagaStore) ListOpen(_ context.Context, updatedBefore time.Time, limit int) ([]Saga, error) {
	if s == nil {
		return nil, fmt.Errorf("core: saga store is not configured")
	}
	s.mu.Lock()
	open := make([]Saga, 0)
	for _, saga := range s.sagas {
		if !saga.Status.Open() {
			continue
		}
		if !updatedBefore.IsZero() && !saga.UpdatedAt.Before(updatedBefore) {
			continue
		}
		open = append(open, saga.Clone())
	}
	s.mu.Unlock()

	sort.Slice(open, func(i, j int) bool {
		return open[i].UpdatedAt.Before(open[j].UpdatedAt)
	})
	if limit > 0 && len(open) > limit {
		open = open[:limit]
	}
	return open, nil
}
