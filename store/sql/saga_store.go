package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-certledger/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// SagaStore persists the issuance saga journal. Each Save replaces the full
// step list.
type SagaStore struct {
	db   *bun.DB
	repo repository.Repository[*issuanceSagaRecord]
}

func NewSagaStore(db *bun.DB) (*SagaStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*issuanceSagaRecord](db, issuanceSagaHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid saga repository wiring: %w", err)
		}
	}
	return &SagaStore{db: db, repo: repo}, nil
}

func (s *SagaStore) Save(ctx context.Context, saga core.Saga) error {
	if s == nil || s.db == nil {
		return errStoreNotConfigured
	}
	if strings.TrimSpace(saga.ID) == "" {
		return fmt.Errorf("sqlstore: saga id is required")
	}
	record := newIssuanceSagaRecord(saga)
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now().UTC()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = record.UpdatedAt
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*issuanceSagaRecord)(nil)).
			Where("?TableAlias.id = ?", record.ID).
			Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			_, err := s.repo.CreateTx(ctx, tx, record)
			return err
		}
		_, err = tx.NewUpdate().
			Model(record).
			Column("status", "owner", "input", "steps", "updated_at").
			Where("id = ?", record.ID).
			Exec(ctx)
		return err
	})
}

func (s *SagaStore) Get(ctx context.Context, id string) (core.Saga, error) {
	if s == nil || s.db == nil {
		return core.Saga{}, errStoreNotConfigured
	}
	record := &issuanceSagaRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Saga{}, core.ErrSagaNotFound
		}
		return core.Saga{}, err
	}
	return record.toDomain(), nil
}

// ListOpen returns running and pending-confirmation sagas last touched before
// updatedBefore, oldest first.
func (s *SagaStore) ListOpen(ctx context.Context, updatedBefore time.Time, limit int) ([]core.Saga, error) {
	if s == nil || s.db == nil {
		return nil, errStoreNotConfigured
	}
	var records []*issuanceSagaRecord
	query := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.status IN (?)", bun.In([]string{
			string(core.SagaRunning),
			string(core.SagaPendingConfirmation),
		})).
		OrderExpr("?TableAlias.updated_at ASC")
	if !updatedBefore.IsZero() {
		query = query.Where("?TableAlias.updated_at < ?", updatedBefore.UTC())
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]core.Saga, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

