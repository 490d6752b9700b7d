package certledger

import (
	"embed"
	"io/fs"
)

//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var migrationsFS embed.FS

// GetCoreMigrationsFS returns the certificate, referral, token, and saga
// journal schema. Postgres files live under data/sql/migrations and their
// sqlite equivalents under data/sql/migrations/sqlite.
func GetCoreMigrationsFS() fs.FS {
	return migrationsFS
}
