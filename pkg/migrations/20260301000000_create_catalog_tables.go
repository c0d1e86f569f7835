package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`
			CREATE TABLE products (
				id INTEGER PRIMARY KEY,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				title TEXT NOT NULL,
				sanitized_title TEXT NOT NULL,
				date_modified INTEGER NOT NULL DEFAULT 0,
				languages TEXT NOT NULL DEFAULT '',
				publishers TEXT NOT NULL DEFAULT '',
				legal_status TEXT NOT NULL DEFAULT '',
				category_id INTEGER,
				category_title TEXT,
				year INTEGER
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE releases (
				id INTEGER PRIMARY KEY,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				product_id INTEGER NOT NULL REFERENCES products (id),
				title TEXT NOT NULL,
				date_modified INTEGER NOT NULL DEFAULT 0,
				languages TEXT NOT NULL DEFAULT '',
				publishers TEXT NOT NULL DEFAULT '',
				year INTEGER,
				release_type TEXT NOT NULL DEFAULT '',
				version TEXT NOT NULL DEFAULT '',
				hardware TEXT
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_releases_product_id ON releases (product_id)`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE files (
				id INTEGER PRIMARY KEY,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				release_id INTEGER NOT NULL REFERENCES releases (id),
				md5 TEXT NOT NULL DEFAULT '',
				type TEXT NOT NULL DEFAULT '',
				original_file_name TEXT NOT NULL DEFAULT '',
				file_name TEXT
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_files_release_id ON files (release_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		// Resolved names are unique across the whole catalog.
		_, err = db.Exec(`CREATE UNIQUE INDEX ux_files_file_name ON files (file_name) WHERE file_name IS NOT NULL`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE file_paths (
				id TEXT PRIMARY KEY,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				file_id INTEGER NOT NULL REFERENCES files (id) ON DELETE CASCADE,
				path TEXT NOT NULL
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_file_paths_file_id ON file_paths (file_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE UNIQUE INDEX ux_file_paths_path ON file_paths (path)`)
		return errors.WithStack(err)
	}

	down := func(_ context.Context, db *bun.DB) error {
		for _, table := range []string{"file_paths", "files", "releases", "products"} {
			if _, err := db.Exec(`DROP TABLE IF EXISTS ` + table); err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}

	Migrations.MustRegister(up, down)
}
