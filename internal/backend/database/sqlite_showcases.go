package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type sqliteShowcaseRepository struct {
	db *sql.DB
}

func (r *sqliteShowcaseRepository) Get(ctx context.Context, id string) (*Showcase, error) {
	var showcase Showcase
	err := r.db.QueryRowContext(ctx, "SELECT id, title, rank FROM showcases WHERE id = ?", id).
		Scan(&showcase.ID, &showcase.Title, &showcase.Rank)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT image_id FROM showcase_images WHERE showcase_id = ? ORDER BY rank, image_id", id)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	showcase.ImageIDs = []string{}
	for rows.Next() {
		var imageID string
		if err := rows.Scan(&imageID); err != nil {
			return nil, err
		}
		showcase.ImageIDs = append(showcase.ImageIDs, imageID)
	}
	return &showcase, rows.Err()
}

// GetAll returns every showcase ordered by rank, each with its ordered image ids
func (r *sqliteShowcaseRepository) GetAll(ctx context.Context) ([]*Showcase, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, title, rank FROM showcases ORDER BY rank, id")
	if err != nil {
		return nil, err
	}

	var showcases []*Showcase
	byID := make(map[string]*Showcase)
	for rows.Next() {
		showcase := &Showcase{ImageIDs: []string{}}
		if err := rows.Scan(&showcase.ID, &showcase.Title, &showcase.Rank); err != nil {
			_ = rows.Close()
			return nil, err
		}
		showcases = append(showcases, showcase)
		byID[showcase.ID] = showcase
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	// Release the single connection before the membership query
	_ = rows.Close()

	memberRows, err := r.db.QueryContext(ctx,
		"SELECT showcase_id, image_id FROM showcase_images ORDER BY showcase_id, rank, image_id")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = memberRows.Close()
	}()

	for memberRows.Next() {
		var showcaseID, imageID string
		if err := memberRows.Scan(&showcaseID, &imageID); err != nil {
			return nil, err
		}
		if showcase, ok := byID[showcaseID]; ok {
			showcase.ImageIDs = append(showcase.ImageIDs, imageID)
		}
	}
	return showcases, memberRows.Err()
}

// Put upserts the showcase and stores its image order. Only memberships whose
// rank no longer fits the requested order are rewritten; images missing from
// ImageIDs are removed from the showcase. A new showcase without a rank is
// placed after the last one.
func (r *sqliteShowcaseRepository) Put(ctx context.Context, showcase *Showcase) error {
	if showcase == nil || showcase.ID == "" {
		return errors.New("showcase id must not be empty")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer rollback(tx)

	rank, err := r.resolveRank(ctx, tx, showcase)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO showcases (id, title, rank) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, rank = excluded.rank`,
		showcase.ID, showcase.Title, rank)
	if err != nil {
		return fmt.Errorf("failed to upsert showcase %s: %w", showcase.ID, err)
	}

	existing, err := memberRanks(ctx, tx, showcase.ID)
	if err != nil {
		return err
	}

	order := dedupe(showcase.ImageIDs)
	wanted := make(map[string]struct{}, len(order))
	for _, id := range order {
		wanted[id] = struct{}{}
	}
	for id := range existing {
		if _, keep := wanted[id]; keep {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM showcase_images WHERE showcase_id = ? AND image_id = ?", showcase.ID, id); err != nil {
			return fmt.Errorf("failed to remove image %s from showcase %s: %w", id, showcase.ID, err)
		}
		delete(existing, id)
	}

	for id, newRank := range Reorder(existing, order) {
		_, err := tx.ExecContext(ctx, `INSERT INTO showcase_images (showcase_id, image_id, rank) VALUES (?, ?, ?)
			ON CONFLICT(showcase_id, image_id) DO UPDATE SET rank = excluded.rank`,
			showcase.ID, id, newRank)
		if err != nil {
			return fmt.Errorf("failed to rank image %s in showcase %s: %w", id, showcase.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	showcase.Rank = rank
	return nil
}

func (r *sqliteShowcaseRepository) resolveRank(ctx context.Context, tx *sql.Tx, showcase *Showcase) (string, error) {
	if showcase.Rank != "" {
		return showcase.Rank, nil
	}

	var current string
	err := tx.QueryRowContext(ctx, "SELECT rank FROM showcases WHERE id = ?", showcase.ID).Scan(&current)
	if err == nil && current != "" {
		return current, nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	var last sql.NullString
	if err := tx.QueryRowContext(ctx, "SELECT MAX(rank) FROM showcases").Scan(&last); err != nil {
		return "", err
	}
	return Next(last.String), nil
}

func memberRanks(ctx context.Context, tx *sql.Tx, showcaseID string) (map[string]string, error) {
	rows, err := tx.QueryContext(ctx, "SELECT image_id, rank FROM showcase_images WHERE showcase_id = ?", showcaseID)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	ranks := make(map[string]string)
	for rows.Next() {
		var id, rank string
		if err := rows.Scan(&id, &rank); err != nil {
			return nil, err
		}
		ranks[id] = rank
	}
	return ranks, rows.Err()
}

// Delete removes the showcase and its memberships; the images themselves stay
func (r *sqliteShowcaseRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer rollback(tx)

	if _, err := tx.ExecContext(ctx, "DELETE FROM showcase_images WHERE showcase_id = ?", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM showcases WHERE id = ?", id); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *sqliteShowcaseRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM showcases").Scan(&count)
	return count, err
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
