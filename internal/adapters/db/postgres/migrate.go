package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	_ "github.com/lib/pq" // postgres driver for database/sql
)

// Migrations holds the embedded schema migrations
//
//go:embed migrations/*.sql
var Migrations embed.FS

// migration is one versioned SQL file
type migration struct {
	version int
	name    string
}

// OpenDB opens a database/sql handle with the lib/pq driver
func OpenDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// RunMigrations applies *.sql files of fsys in numeric order (prefix before first underscore) using schema_migrations table.
func RunMigrations(ctx context.Context, db *sql.DB, fsys fs.FS) error {
	// advisory lock to avoid concurrent migration (lock key 42)
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer func() {
		_ = conn.Close()
	}()
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock(42)`); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock(42)`)
	}()

	applied := map[int]bool{}
	rows, err := conn.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err == nil { // if table doesn't exist that's okay (first migration creates it)
		for rows.Next() {
			var v int
			if err = rows.Scan(&v); err != nil {
				_ = rows.Close()
				return err
			}
			applied[v] = true
		}
		_ = rows.Close()
	}

	migrations, err := listMigrations(fsys)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		sqlBytes, err := fs.ReadFile(fsys, m.name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", m.name, err)
		}
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		if _, err = tx.ExecContext(ctx, string(sqlBytes)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", m.name, err)
		}
		if _, err = tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", m.name, err)
		}
		if err = tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.name, err)
		}
		log.Info().Int("version", m.version).Str("file", path.Base(m.name)).Msg("migration applied")
	}
	return nil
}

// listMigrations returns the versioned *.sql files of fsys sorted by version.
// Files without a numeric prefix are ignored.
func listMigrations(fsys fs.FS) ([]migration, error) {
	var out []migration
	seen := map[int]string{}
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".sql") {
			return nil
		}
		version, ok := migrationVersion(d.Name())
		if !ok {
			return nil
		}
		if prev, dup := seen[version]; dup {
			return fmt.Errorf("duplicate migration version %d: %s and %s", version, prev, p)
		}
		seen[version] = p
		out = append(out, migration{version: version, name: p})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

func migrationVersion(name string) (int, bool) {
	parts := strings.SplitN(name, "_", 2)
	if len(parts) != 2 {
		return 0, false
	}
	version, err := strconv.Atoi(strings.TrimLeft(parts[0], "0"))
	if err != nil || version <= 0 {
		return 0, false
	}
	return version, true
}
