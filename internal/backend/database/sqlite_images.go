package database

import (
	"context"
	"database/sql"
	"errors"
)

type sqliteImageRepository struct {
	db *sql.DB
}

const imageColumns = "id, title, description, filename, content_type, payload"

func scanImage(row interface{ Scan(...any) error }) (*Image, error) {
	var img Image
	if err := row.Scan(&img.ID, &img.Title, &img.Description, &img.Filename, &img.ContentType, &img.Payload); err != nil {
		return nil, err
	}
	return &img, nil
}

func (r *sqliteImageRepository) Get(ctx context.Context, id string) (*Image, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+imageColumns+" FROM images WHERE id = ?", id)
	img, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return img, nil
}

// GetAll returns every image in insertion order
func (r *sqliteImageRepository) GetAll(ctx context.Context) ([]*Image, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+imageColumns+" FROM images ORDER BY rowid")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close() // Explicitly ignore error as we're already returning an error from the function
	}()

	var images []*Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// Put inserts or updates an image; an update keeps the original insertion position
func (r *sqliteImageRepository) Put(ctx context.Context, img *Image) error {
	if img == nil || img.ID == "" {
		return errors.New("image id must not be empty")
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO images (`+imageColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			filename = excluded.filename,
			content_type = excluded.content_type,
			payload = excluded.payload`,
		img.ID, img.Title, img.Description, img.Filename, img.ContentType, img.Payload)
	return err
}

func (r *sqliteImageRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM images WHERE id = ?", id)
	return err
}

func (r *sqliteImageRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM images").Scan(&count)
	return count, err
}
