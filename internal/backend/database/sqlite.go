package database

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS images (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	filename TEXT NOT NULL DEFAULT '',
	content_type TEXT NOT NULL DEFAULT '',
	payload BLOB
);
CREATE TABLE IF NOT EXISTS showcases (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	rank TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS showcase_images (
	showcase_id TEXT NOT NULL,
	image_id TEXT NOT NULL,
	rank TEXT NOT NULL,
	PRIMARY KEY (showcase_id, image_id)
);
CREATE INDEX IF NOT EXISTS idx_showcase_images_rank ON showcase_images (showcase_id, rank);
CREATE TABLE IF NOT EXISTS avatars (
	key TEXT PRIMARY KEY,
	id TEXT NOT NULL,
	content_type TEXT NOT NULL DEFAULT '',
	payload BLOB
);`

type SQLiteDatabase struct {
	db               *sql.DB
	connectionString string

	images    *sqliteImageRepository
	showcases *sqliteShowcaseRepository
	avatars   *sqliteAvatarRepository
}

func NewSQLiteDatabase(connectionString string) (DatabaseService, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	return &SQLiteDatabase{
		db:               db,
		connectionString: connectionString,
		images:           &sqliteImageRepository{db: db},
		showcases:        &sqliteShowcaseRepository{db: db},
		avatars:          &sqliteAvatarRepository{db: db},
	}, nil
}

func (s *SQLiteDatabase) CreateDatabase() (*sql.DB, error) {
	if _, err := s.db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return s.db, nil
}

func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteDatabase) DoesDatabaseExist() bool {
	// In SQLite, the database file is created when you connect to it.
	// So we can assume it exists if we can successfully ping the database.
	err := s.db.Ping()
	return err == nil
}

func (s *SQLiteDatabase) Images() Repository[Image] {
	return s.images
}

func (s *SQLiteDatabase) Showcases() Repository[Showcase] {
	return s.showcases
}

func (s *SQLiteDatabase) Avatars() Repository[Avatar] {
	return s.avatars
}

// rollback is deferred after BeginTx; it is a no-op once the transaction committed
func rollback(tx *sql.Tx) {
	_ = tx.Rollback()
}
