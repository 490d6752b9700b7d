package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/goliatone/go-certledger/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const certificateCacheKeyPrefix = "go-certledger::certificate::v1"

// CachedCertificateStore serves FindByOwner through a read-through cache and
// evicts the owner's entry after every write that touches it. A read that
// overlapped a write drops what it cached and returns a fresh read, so a
// fetch started before the write can not put the old record back.
type CachedCertificateStore struct {
	base   core.CertificateStore
	cache  repositorycache.CacheService
	writes atomic.Uint64
}

type cachedCertificate struct {
	Certificate core.Certificate
	Found       bool
}

func NewCachedCertificateStore(
	base core.CertificateStore,
	cacheService repositorycache.CacheService,
) (*CachedCertificateStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base certificate store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: certificate cache service is required")
	}
	return &CachedCertificateStore{base: base, cache: cacheService}, nil
}

// CertificateCacheKey returns go-certledger::certificate::v1::owner::<owner>
// with the normalized owner URL-path escaped.
func CertificateCacheKey(owner string) (string, error) {
	owner = core.NormalizeAddress(owner)
	if owner == "" {
		return "", fmt.Errorf("sqlstore: owner is required for certificate cache key")
	}
	return strings.Join([]string{certificateCacheKeyPrefix, "owner", url.PathEscape(owner)}, "::"), nil
}

func (s *CachedCertificateStore) FindByOwner(ctx context.Context, owner string) (core.Certificate, bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Certificate{}, false, errStoreNotConfigured
	}
	owner = core.NormalizeAddress(owner)
	cacheKey, err := CertificateCacheKey(owner)
	if err != nil {
		return core.Certificate{}, false, nil
	}
	generation := s.writes.Load()
	entry, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (cachedCertificate, error) {
		cert, found, fetchErr := s.base.FindByOwner(ctx, owner)
		if fetchErr != nil {
			return cachedCertificate{}, fetchErr
		}
		return cachedCertificate{Certificate: cert.Clone(), Found: found}, nil
	})
	if err != nil {
		return core.Certificate{}, false, err
	}
	if s.writes.Load() != generation {
		if err := s.cache.Delete(ctx, cacheKey); err != nil {
			return core.Certificate{}, false, err
		}
		return s.base.FindByOwner(ctx, owner)
	}
	return entry.Certificate.Clone(), entry.Found, nil
}

func (s *CachedCertificateStore) FindByToken(ctx context.Context, tokenID string) (core.Certificate, bool, error) {
	if s == nil || s.base == nil {
		return core.Certificate{}, false, errStoreNotConfigured
	}
	return s.base.FindByToken(ctx, tokenID)
}

func (s *CachedCertificateStore) UpsertContent(ctx context.Context, in core.UpsertContentInput) (core.Certificate, bool, error) {
	if s == nil || s.base == nil {
		return core.Certificate{}, false, errStoreNotConfigured
	}
	cert, created, err := s.base.UpsertContent(ctx, in)
	if evictErr := s.evict(ctx, in.Owner); err == nil && evictErr != nil {
		return cert, created, evictErr
	}
	return cert, created, err
}

func (s *CachedCertificateStore) AppendVersion(ctx context.Context, in core.AppendVersionInput) (core.Version, error) {
	if s == nil || s.base == nil {
		return core.Version{}, errStoreNotConfigured
	}
	version, err := s.base.AppendVersion(ctx, in)
	if evictErr := s.evict(ctx, in.Owner); err == nil && evictErr != nil {
		return version, evictErr
	}
	return version, err
}

func (s *CachedCertificateStore) AppendReferral(ctx context.Context, owner string, referee string) (bool, error) {
	if s == nil || s.base == nil {
		return false, errStoreNotConfigured
	}
	appended, err := s.base.AppendReferral(ctx, owner, referee)
	if evictErr := s.evict(ctx, owner); err == nil && evictErr != nil {
		return appended, evictErr
	}
	return appended, err
}

func (s *CachedCertificateStore) BindToken(ctx context.Context, owner string, tokenID string) error {
	if s == nil || s.base == nil {
		return errStoreNotConfigured
	}
	err := s.base.BindToken(ctx, owner, tokenID)
	if evictErr := s.evict(ctx, owner); err == nil && evictErr != nil {
		return evictErr
	}
	return err
}

func (s *CachedCertificateStore) DeleteByToken(ctx context.Context, tokenID string) (bool, error) {
	if s == nil || s.base == nil {
		return false, errStoreNotConfigured
	}
	cert, found, err := s.base.FindByToken(ctx, tokenID)
	if err != nil {
		return false, err
	}
	deleted, err := s.base.DeleteByToken(ctx, tokenID)
	if found {
		if evictErr := s.evict(ctx, cert.Owner); err == nil && evictErr != nil {
			return deleted, evictErr
		}
	}
	return deleted, err
}

func (s *CachedCertificateStore) DeleteByOwner(ctx context.Context, owner string) (bool, error) {
	if s == nil || s.base == nil {
		return false, errStoreNotConfigured
	}
	deleted, err := s.base.DeleteByOwner(ctx, owner)
	if evictErr := s.evict(ctx, owner); err == nil && evictErr != nil {
		return deleted, evictErr
	}
	return deleted, err
}

// evict runs after the base write so readers that started before it see the
// generation move.
func (s *CachedCertificateStore) evict(ctx context.Context, owner string) error {
	s.writes.Add(1)
	if s.cache == nil {
		return nil
	}
	cacheKey, err := CertificateCacheKey(owner)
	if err != nil {
		return nil
	}
	return s.cache.Delete(ctx, cacheKey)
}

