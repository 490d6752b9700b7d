package sqlstore

import (
	"database/sql"
	"strings"
	"testing"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

func renderDB(t *testing.T, driver string, dsn string, d schema.Dialect) *bun.DB {
	t.Helper()
	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		t.Fatalf("open %s: %v", driver, err)
	}
	db := bun.NewDB(sqlDB, d)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSelectCertificateForUpdate_LocksRowOnPostgres(t *testing.T) {
	db := renderDB(t, "postgres", "postgres://localhost/certledger?sslmode=disable", pgdialect.New())

	query := selectCertificateForUpdate(db, &certificateRecord{}, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa").String()
	if !strings.HasSuffix(query, "LIMIT 1 FOR UPDATE") {
		t.Fatalf("expected row lock after the limit, got %s", query)
	}
}

func TestSelectCertificateForUpdate_PlainSelectOnSQLite(t *testing.T) {
	db := renderDB(t, "sqlite3", "file::memory:", sqlitedialect.New())

	query := selectCertificateForUpdate(db, &certificateRecord{}, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa").String()
	if strings.Contains(query, "FOR UPDATE") {
		t.Fatalf("expected no row lock clause on sqlite, got %s", query)
	}
}
