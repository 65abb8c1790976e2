package database

import (
	"context"
	"database/sql"
	"errors"
)

type sqliteAvatarRepository struct {
	db *sql.DB
}

func (r *sqliteAvatarRepository) Get(ctx context.Context, key string) (*Avatar, error) {
	row := r.db.QueryRowContext(ctx, "SELECT key, id, content_type, payload FROM avatars WHERE key = ?", key)
	var avatar Avatar
	err := row.Scan(&avatar.Key, &avatar.ID, &avatar.ContentType, &avatar.Payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &avatar, nil
}

func (r *sqliteAvatarRepository) GetAll(ctx context.Context) ([]*Avatar, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT key, id, content_type, payload FROM avatars ORDER BY key")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var avatars []*Avatar
	for rows.Next() {
		var avatar Avatar
		if err := rows.Scan(&avatar.Key, &avatar.ID, &avatar.ContentType, &avatar.Payload); err != nil {
			return nil, err
		}
		avatars = append(avatars, &avatar)
	}
	return avatars, rows.Err()
}

// Put replaces the avatar stored under avatar.Key
func (r *sqliteAvatarRepository) Put(ctx context.Context, avatar *Avatar) error {
	if avatar == nil || avatar.Key == "" {
		return errors.New("avatar key must not be empty")
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO avatars (key, id, content_type, payload) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			id = excluded.id,
			content_type = excluded.content_type,
			payload = excluded.payload`,
		avatar.Key, avatar.ID, avatar.ContentType, avatar.Payload)
	return err
}

func (r *sqliteAvatarRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM avatars WHERE key = ?", key)
	return err
}

func (r *sqliteAvatarRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM avatars").Scan(&count)
	return count, err
}
