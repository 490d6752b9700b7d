// Package migrations exposes the certledger schema per SQL dialect and hands
// it to a migration runner such as go-persistence-bun.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	certledger "github.com/goliatone/go-certledger"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	defaultSourceLabel = "go-certledger"
	migrationsDir      = "data/sql/migrations"
)

// FilesystemSpec is one dialect's migration tree. Versions lists the
// migration names without the .up.sql suffix, in apply order.
type FilesystemSpec struct {
	Dialect  string
	Path     string
	FS       fs.FS
	Versions []string
}

type Registration struct {
	SourceLabel string
	Dialects    []string
	Filesystems []FilesystemSpec
}

type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*Registration)

func WithSourceLabel(label string) Option {
	return func(r *Registration) {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			r.SourceLabel = trimmed
		}
	}
}

// WithValidationTargets limits registration to the given dialects.
func WithValidationTargets(dialects ...string) Option {
	return func(r *Registration) {
		if next := normalizeDialects(dialects); len(next) > 0 {
			r.Dialects = next
		}
	}
}

// Filesystems resolves the postgres tree and its sqlite alternative from root,
// defaulting to the embedded schema. Every up migration must have a down
// migration, and both dialects must carry the same versions.
func Filesystems(root ...fs.FS) ([]FilesystemSpec, error) {
	source := certledger.GetCoreMigrationsFS()
	if len(root) > 0 && root[0] != nil {
		source = root[0]
	}
	base, err := fs.Sub(source, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", migrationsDir, err)
	}
	sqliteFS, err := fs.Sub(base, DialectSQLite)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite filesystem: %w", err)
	}

	filesystems := []FilesystemSpec{
		{Dialect: DialectPostgres, Path: migrationsDir, FS: base},
		{Dialect: DialectSQLite, Path: migrationsDir + "/" + DialectSQLite, FS: sqliteFS},
	}
	for i := range filesystems {
		versions, err := Versions(filesystems[i].FS)
		if err != nil {
			return nil, fmt.Errorf("migrations: %s %q: %w", filesystems[i].Dialect, filesystems[i].Path, err)
		}
		filesystems[i].Versions = versions
	}
	if !slices.Equal(filesystems[0].Versions, filesystems[1].Versions) {
		return nil, fmt.Errorf("migrations: dialects diverge: postgres %v, sqlite %v", filesystems[0].Versions, filesystems[1].Versions)
	}
	return filesystems, nil
}

// Versions lists the migrations in fsys and checks each has a down file.
func Versions(fsys fs.FS) ([]string, error) {
	ups, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return nil, err
	}
	if len(ups) == 0 {
		return nil, fmt.Errorf("no *.up.sql files")
	}
	versions := make([]string, 0, len(ups))
	for _, up := range ups {
		version := strings.TrimSuffix(up, ".up.sql")
		if _, err := fs.Stat(fsys, version+".down.sql"); err != nil {
			return nil, fmt.Errorf("migration %s has no down file", version)
		}
		versions = append(versions, version)
	}
	slices.Sort(versions)
	return versions, nil
}

// Register hands each selected dialect tree to registerFn. Both dialects are
// registered unless WithValidationTargets narrows them.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel: defaultSourceLabel,
		Dialects:    []string{DialectPostgres, DialectSQLite},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}
	for _, dialect := range reg.Dialects {
		if dialect != DialectPostgres && dialect != DialectSQLite {
			return reg, fmt.Errorf("migrations: unsupported dialect %q", dialect)
		}
	}

	filesystems, err := Filesystems()
	if err != nil {
		return reg, err
	}
	for _, fsys := range filesystems {
		if !slices.Contains(reg.Dialects, fsys.Dialect) {
			continue
		}
		if err := registerFn(ctx, fsys.Dialect, reg.SourceLabel, fsys.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s (%s): %w", fsys.Dialect, fsys.Path, err)
		}
		reg.Filesystems = append(reg.Filesystems, fsys)
	}
	return reg, nil
}

func normalizeDialects(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value != "" && !slices.Contains(out, value) {
			out = append(out, value)
		}
	}
	return out
}
