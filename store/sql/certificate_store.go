package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-certledger/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// maxAppendAttempts bounds the retry after a concurrent writer took the same
// version number or referral position.
const maxAppendAttempts = 2

type CertificateStore struct {
	db        *bun.DB
	repo      repository.Repository[*certificateRecord]
	versions  repository.Repository[*certificateVersionRecord]
	referrals repository.Repository[*certificateReferralRecord]
	now       func() time.Time
}

func NewCertificateStore(db *bun.DB) (*CertificateStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*certificateRecord](db, certificateHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid certificate repository wiring: %w", err)
		}
	}
	versions := repository.NewRepository[*certificateVersionRecord](db, certificateVersionHandlers())
	if validator, ok := versions.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid certificate version repository wiring: %w", err)
		}
	}
	referrals := repository.NewRepository[*certificateReferralRecord](db, certificateReferralHandlers())
	if validator, ok := referrals.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid certificate referral repository wiring: %w", err)
		}
	}
	return &CertificateStore{
		db:        db,
		repo:      repo,
		versions:  versions,
		referrals: referrals,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *CertificateStore) FindByOwner(ctx context.Context, owner string) (core.Certificate, bool, error) {
	if s == nil || s.repo == nil {
		return core.Certificate{}, false, errStoreNotConfigured
	}
	owner = core.NormalizeAddress(owner)
	if owner == "" {
		return core.Certificate{}, false, nil
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("owner", "=", owner),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Certificate{}, false, err
	}
	if len(records) == 0 {
		return core.Certificate{}, false, nil
	}
	return s.hydrate(ctx, records[0])
}

func (s *CertificateStore) FindByToken(ctx context.Context, tokenID string) (core.Certificate, bool, error) {
	if s == nil || s.repo == nil {
		return core.Certificate{}, false, errStoreNotConfigured
	}
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return core.Certificate{}, false, nil
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("token_id", "=", tokenID),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Certificate{}, false, err
	}
	if len(records) == 0 {
		return core.Certificate{}, false, nil
	}
	return s.hydrate(ctx, records[0])
}

// UpsertContent creates the record or overwrites its current snapshot. The
// version list is never touched. Initial referrals only apply on create.
func (s *CertificateStore) UpsertContent(ctx context.Context, in core.UpsertContentInput) (core.Certificate, bool, error) {
	if s == nil || s.db == nil {
		return core.Certificate{}, false, errStoreNotConfigured
	}
	in.Owner = core.NormalizeAddress(in.Owner)
	if in.Owner == "" {
		return core.Certificate{}, false, fmt.Errorf("sqlstore: owner is required")
	}

	var created bool
	var err error
	for attempt := 1; attempt <= maxAppendAttempts; attempt++ {
		created, err = s.upsertContentTx(ctx, in)
		if err == nil || !isUniqueViolation(err) {
			break
		}
	}
	if err != nil {
		return core.Certificate{}, false, err
	}
	cert, found, err := s.FindByOwner(ctx, in.Owner)
	if err != nil {
		return core.Certificate{}, false, err
	}
	if !found {
		return core.Certificate{}, false, core.ErrCertificateNotFound
	}
	return cert, created, nil
}

func (s *CertificateStore) upsertContentTx(ctx context.Context, in core.UpsertContentInput) (bool, error) {
	created := false
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := s.now()
		record, err := findCertificateTx(ctx, tx, in.Owner)
		if err != nil {
			return err
		}
		if record != nil {
			record.apply(in.Content, in.CID, in.URI, now)
			_, err := tx.NewUpdate().
				Model(record).
				Column("student_name", "degree", "institution", "issue_date", "image_url", "cid", "metadata_uri", "updated_at").
				Where("id = ?", record.ID).
				Exec(ctx)
			return err
		}

		created = true
		record = newCertificateRecord(in, now)
		if _, err := s.repo.CreateTx(ctx, tx, record); err != nil {
			return err
		}
		position := 0
		seen := map[string]struct{}{}
		for _, referee := range in.InitialReferrals {
			referee = core.NormalizeAddress(referee)
			if referee == "" || referee == record.Owner {
				continue
			}
			if _, dup := seen[referee]; dup {
				continue
			}
			seen[referee] = struct{}{}
			position++
			if _, err := tx.NewInsert().Model(&certificateReferralRecord{
				ID:            uuid.NewString(),
				CertificateID: record.ID,
				Referee:       referee,
				Position:      position,
				CreatedAt:     now,
			}).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	return created, err
}

// AppendVersion appends MAX(version)+1 and moves the current snapshot in the
// same transaction. A concurrent append that wins the unique index forces a
// single retry.
func (s *CertificateStore) AppendVersion(ctx context.Context, in core.AppendVersionInput) (core.Version, error) {
	if s == nil || s.db == nil {
		return core.Version{}, errStoreNotConfigured
	}
	in.Owner = core.NormalizeAddress(in.Owner)

	var appended core.Version
	var err error
	for attempt := 1; attempt <= maxAppendAttempts; attempt++ {
		appended, err = s.appendVersionTx(ctx, in)
		if err == nil || !isUniqueViolation(err) {
			break
		}
	}
	return appended, err
}

func (s *CertificateStore) appendVersionTx(ctx context.Context, in core.AppendVersionInput) (core.Version, error) {
	var appended core.Version
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := s.now()
		record, err := findCertificateTx(ctx, tx, in.Owner)
		if err != nil {
			return err
		}
		if record == nil {
			return core.ErrCertificateNotFound
		}

		next, err := nextVersionNumber(ctx, tx, record.ID)
		if err != nil {
			return err
		}
		version := &certificateVersionRecord{
			ID:            uuid.NewString(),
			CertificateID: record.ID,
			VersionNumber: next,
			CID:           strings.TrimSpace(in.CID),
			CreatedAt:     now,
		}
		if _, err := s.versions.CreateTx(ctx, tx, version); err != nil {
			return err
		}

		record.apply(in.Content, in.CID, in.URI, now)
		if _, err := tx.NewUpdate().
			Model(record).
			Column("student_name", "degree", "institution", "issue_date", "image_url", "cid", "metadata_uri", "updated_at").
			Where("id = ?", record.ID).
			Exec(ctx); err != nil {
			return err
		}
		appended = version.toDomain()
		return nil
	})
	return appended, err
}

// AppendReferral credits referee to owner once. It reports false when the
// referee was already credited.
func (s *CertificateStore) AppendReferral(ctx context.Context, owner string, referee string) (bool, error) {
	if s == nil || s.db == nil {
		return false, errStoreNotConfigured
	}
	owner = core.NormalizeAddress(owner)
	referee = core.NormalizeAddress(referee)
	if referee == "" {
		return false, fmt.Errorf("sqlstore: referee is required")
	}

	var appended bool
	var err error
	for attempt := 1; attempt <= maxAppendAttempts; attempt++ {
		appended, err = s.appendReferralTx(ctx, owner, referee)
		if err == nil || !isUniqueViolation(err) {
			break
		}
	}
	return appended, err
}

func (s *CertificateStore) appendReferralTx(ctx context.Context, owner string, referee string) (bool, error) {
	appended := false
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findCertificateTx(ctx, tx, owner)
		if err != nil {
			return err
		}
		if record == nil {
			return core.ErrCertificateNotFound
		}

		exists, err := tx.NewSelect().
			Model((*certificateReferralRecord)(nil)).
			Where("?TableAlias.certificate_id = ?", record.ID).
			Where("?TableAlias.referee = ?", referee).
			Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}

		var maxPosition int
		if err := tx.NewSelect().
			Model((*certificateReferralRecord)(nil)).
			ColumnExpr("COALESCE(MAX(position), 0)").
			Where("?TableAlias.certificate_id = ?", record.ID).
			Scan(ctx, &maxPosition); err != nil {
			return err
		}
		if _, err := s.referrals.CreateTx(ctx, tx, &certificateReferralRecord{
			ID:            uuid.NewString(),
			CertificateID: record.ID,
			Referee:       referee,
			Position:      maxPosition + 1,
			CreatedAt:     s.now(),
		}); err != nil {
			return err
		}
		if _, err := tx.NewUpdate().
			Model((*certificateRecord)(nil)).
			Set("updated_at = ?", s.now()).
			Where("id = ?", record.ID).
			Exec(ctx); err != nil {
			return err
		}
		appended = true
		return nil
	})
	return appended, err
}

func (s *CertificateStore) BindToken(ctx context.Context, owner string, tokenID string) error {
	if s == nil || s.db == nil {
		return errStoreNotConfigured
	}
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return fmt.Errorf("sqlstore: token id is required")
	}
	res, err := s.db.NewUpdate().
		Model((*certificateRecord)(nil)).
		Set("token_id = ?", tokenID).
		Set("updated_at = ?", s.now()).
		Where("owner = ?", core.NormalizeAddress(owner)).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return core.ErrCertificateNotFound
	}
	return nil
}

func (s *CertificateStore) DeleteByToken(ctx context.Context, tokenID string) (bool, error) {
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return false, nil
	}
	return s.deleteWhere(ctx, "token_id = ?", tokenID)
}

func (s *CertificateStore) DeleteByOwner(ctx context.Context, owner string) (bool, error) {
	owner = core.NormalizeAddress(owner)
	if owner == "" {
		return false, nil
	}
	return s.deleteWhere(ctx, "owner = ?", owner)
}

// deleteWhere removes the matching certificate with its versions and
// referrals.
func (s *CertificateStore) deleteWhere(ctx context.Context, query string, arg string) (bool, error) {
	if s == nil || s.db == nil {
		return false, errStoreNotConfigured
	}
	deleted := false
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var ids []string
		if err := tx.NewSelect().
			Model((*certificateRecord)(nil)).
			Column("id").
			Where(query, arg).
			Scan(ctx, &ids); err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if _, err := tx.NewDelete().
			Model((*certificateVersionRecord)(nil)).
			Where("certificate_id IN (?)", bun.In(ids)).
			Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().
			Model((*certificateReferralRecord)(nil)).
			Where("certificate_id IN (?)", bun.In(ids)).
			Exec(ctx); err != nil {
			return err
		}
		res, err := tx.NewDelete().
			Model((*certificateRecord)(nil)).
			Where("id IN (?)", bun.In(ids)).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, _ := res.RowsAffected()
		deleted = affected > 0
		return nil
	})
	return deleted, err
}

func (s *CertificateStore) hydrate(ctx context.Context, record *certificateRecord) (core.Certificate, bool, error) {
	versions, _, err := s.versions.List(ctx,
		repository.SelectBy("certificate_id", "=", record.ID),
		repository.OrderBy("version_number ASC"),
	)
	if err != nil {
		return core.Certificate{}, false, err
	}
	referrals, _, err := s.referrals.List(ctx,
		repository.SelectBy("certificate_id", "=", record.ID),
		repository.OrderBy("position ASC"),
	)
	if err != nil {
		return core.Certificate{}, false, err
	}
	return record.toDomain(versions, referrals), true, nil
}

// findCertificateTx loads the owner's row for a write. On Postgres the row is
// locked until tx ends so concurrent appends for one owner queue behind each
// other instead of racing on MAX()+1. SQLite already serializes writers.
func findCertificateTx(ctx context.Context, tx bun.Tx, owner string) (*certificateRecord, error) {
	record := &certificateRecord{}
	err := selectCertificateForUpdate(tx, record, owner).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func selectCertificateForUpdate(db bun.IDB, record *certificateRecord, owner string) *bun.SelectQuery {
	query := db.NewSelect().
		Model(record).
		Where("?TableAlias.owner = ?", owner).
		Limit(1)
	if db.Dialect().Name() == dialect.PG {
		query = query.For("UPDATE")
	}
	return query
}

func nextVersionNumber(ctx context.Context, tx bun.Tx, certificateID string) (int, error) {
	var maxVersion int
	if err := tx.NewSelect().
		Model((*certificateVersionRecord)(nil)).
		ColumnExpr("COALESCE(MAX(version_number), 0)").
		Where("?TableAlias.certificate_id = ?", certificateID).
		Scan(ctx, &maxVersion); err != nil {
		return 0, err
	}
	return maxVersion + 1, nil
}

