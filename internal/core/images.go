package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/jo-hoe/mebloggy/internal/backend/commands"
	"github.com/jo-hoe/mebloggy/internal/backend/database"
)

// NewImage carries the metadata of an upload. Filename is the name of the
// uploaded file and becomes the title when none is given.
type NewImage struct {
	ShowcaseID  string
	Title       string
	Description string
	Filename    string
}

// AddImage stores an upload, puts it first in the target showcase and
// features it. Without a target the first showcase is used, or the default
// showcase is created when there is none.
func (s *CoreService) AddImage(ctx context.Context, payload []byte, meta NewImage) (*ImageView, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: image payload is empty", ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := s.uploadTarget(ctx, meta.ShowcaseID)
	if err != nil {
		return nil, err
	}

	id, err := database.NewImageID()
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(meta.Title)
	if title == "" {
		title = meta.Filename
	}

	img := &database.Image{
		ID:          id,
		Title:       title,
		Description: meta.Description,
		ContentType: mimetype.Detect(payload).String(),
		Payload:     payload,
	}
	if err := s.databaseService.Images().Put(ctx, img); err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	target.ImageIDs = append([]string{id}, target.ImageIDs...)
	if err := s.databaseService.Showcases().Put(ctx, target); err != nil {
		if rollbackErr := s.databaseService.Images().Delete(ctx, id); rollbackErr != nil {
			slog.Error("failed to remove unreferenced image", "id", id, "error", rollbackErr)
		}
		return nil, fmt.Errorf("failed to add image %s to showcase %s: %w", id, target.ID, err)
	}
	if err := s.preferences.Set(ctx, LastShowcaseKey, target.ID); err != nil {
		slog.Warn("failed to store last showcase", "id", target.ID, "error", err)
	}

	if err := s.reload(ctx); err != nil {
		return nil, err
	}

	view := s.images[id]
	s.featured.Next(&view)
	slog.Info("image added", "id", id, "showcase", target.ID, "size_bytes", len(payload))
	return &view, nil
}

func (s *CoreService) uploadTarget(ctx context.Context, showcaseID string) (*database.Showcase, error) {
	if showcaseID != "" {
		showcase, err := s.databaseService.Showcases().Get(ctx, showcaseID)
		if err != nil {
			return nil, fmt.Errorf("failed to load showcase %s: %w", showcaseID, err)
		}
		if showcase == nil {
			return nil, ErrShowcaseNotFound
		}
		return showcase, nil
	}

	showcases, err := s.databaseService.Showcases().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load showcases: %w", err)
	}
	if len(showcases) > 0 {
		return showcases[0], nil
	}
	return &database.Showcase{ID: DefaultShowcaseID, Title: DefaultShowcaseTitle}, nil
}

// DeleteImage removes an image and every reference to it. Showcases left
// without images are deleted.
func (s *CoreService) DeleteImage(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	img, err := s.databaseService.Images().Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load image %s: %w", id, err)
	}

	if img != nil {
		if err := s.databaseService.Images().Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete image %s: %w", id, err)
		}
	}

	referenced, err := s.detachImage(ctx, id, "")
	if err != nil {
		// the record goes back so showcases still pointing at it stay valid
		if img != nil {
			if restoreErr := s.databaseService.Images().Put(ctx, img); restoreErr != nil {
				slog.Error("failed to restore image after failed delete", "id", id, "error", restoreErr)
			}
		}
		return err
	}
	if img == nil && !referenced {
		return ErrImageNotFound
	}
	slog.Info("image deleted", "id", id)

	if err := s.reload(ctx); err != nil {
		return err
	}
	return s.fixLastShowcase(ctx)
}

// MoveImageToShowcase takes an image out of every showcase and puts it first
// in the target showcase
func (s *CoreService) MoveImageToShowcase(ctx context.Context, imageID, showcaseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	img, err := s.databaseService.Images().Get(ctx, imageID)
	if err != nil {
		return fmt.Errorf("failed to load image %s: %w", imageID, err)
	}
	if img == nil {
		return ErrImageNotFound
	}
	target, err := s.databaseService.Showcases().Get(ctx, showcaseID)
	if err != nil {
		return fmt.Errorf("failed to load showcase %s: %w", showcaseID, err)
	}
	if target == nil {
		return ErrShowcaseNotFound
	}

	if _, err := s.detachImage(ctx, imageID, showcaseID); err != nil {
		return err
	}

	target.ImageIDs = append([]string{imageID}, removeID(target.ImageIDs, imageID)...)
	if err := s.databaseService.Showcases().Put(ctx, target); err != nil {
		return fmt.Errorf("failed to add image %s to showcase %s: %w", imageID, showcaseID, err)
	}
	slog.Info("image moved", "id", imageID, "showcase", showcaseID)

	if err := s.reload(ctx); err != nil {
		return err
	}
	return s.fixLastShowcase(ctx)
}

// detachImage removes the image from every showcase except keep and deletes
// the showcases left empty. It reports whether any showcase referenced it.
func (s *CoreService) detachImage(ctx context.Context, imageID, keep string) (bool, error) {
	showcases, err := s.databaseService.Showcases().GetAll(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load showcases: %w", err)
	}

	referenced := false
	for _, showcase := range showcases {
		if showcase.ID == keep || !slices.Contains(showcase.ImageIDs, imageID) {
			continue
		}
		referenced = true

		showcase.ImageIDs = removeID(showcase.ImageIDs, imageID)
		if len(showcase.ImageIDs) == 0 {
			if err := s.databaseService.Showcases().Delete(ctx, showcase.ID); err != nil {
				return referenced, fmt.Errorf("failed to delete empty showcase %s: %w", showcase.ID, err)
			}
			slog.Info("showcase deleted after emptying", "id", showcase.ID)
			continue
		}
		if err := s.databaseService.Showcases().Put(ctx, showcase); err != nil {
			return referenced, fmt.Errorf("failed to update showcase %s: %w", showcase.ID, err)
		}
	}
	return referenced, nil
}

// UpdateImageMetadata changes title and description; filename and payload are
// kept. An image known to the projection but missing from the store is
// restored from its seed file.
func (s *CoreService) UpdateImageMetadata(ctx context.Context, id, title, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	img, err := s.databaseService.Images().Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load image %s: %w", id, err)
	}

	if img == nil {
		view, ok := s.images[id]
		if !ok || view.Filename == "" {
			return ErrImageNotFound
		}
		payload, err := fs.ReadFile(s.seed, view.Filename)
		if err != nil {
			return fmt.Errorf("failed to restore image %s from %s: %w", id, view.Filename, err)
		}
		img = &database.Image{
			ID:          id,
			Filename:    view.Filename,
			ContentType: mimetype.Detect(payload).String(),
			Payload:     payload,
		}
		slog.Info("restoring image from seed file", "id", id, "filename", view.Filename)
	}

	img.Title = title
	img.Description = description
	if err := s.databaseService.Images().Put(ctx, img); err != nil {
		return fmt.Errorf("failed to update image %s: %w", id, err)
	}
	return s.reload(ctx)
}

// SetFeaturedImage features the image with the given id
func (s *CoreService) SetFeaturedImage(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	view, ok := s.images[id]
	if !ok {
		return ErrImageNotFound
	}
	s.featured.Next(&view)
	return nil
}

// ClearFeatured removes the featured image until the next reload
func (s *CoreService) ClearFeatured() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.featured.Next(nil)
}

// ImagePayload returns the stored bytes of an image and their content type.
// Seeded images without a stored payload are read from their seed file.
func (s *CoreService) ImagePayload(ctx context.Context, id string) ([]byte, string, error) {
	img, err := s.databaseService.Images().Get(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load image %s: %w", id, err)
	}
	if img == nil {
		return nil, "", ErrImageNotFound
	}
	if len(img.Payload) > 0 {
		return img.Payload, img.ContentType, nil
	}
	if img.Filename == "" {
		return nil, "", ErrImageNotFound
	}

	payload, err := fs.ReadFile(s.seed, img.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read seed file %s: %w", img.Filename, err)
	}
	return payload, mimetype.Detect(payload).String(), nil
}

// Thumbnail renders a PNG preview of an image no wider than the configured
// thumbnail width
func (s *CoreService) Thumbnail(ctx context.Context, id string) ([]byte, error) {
	payload, _, err := s.ImagePayload(ctx, id)
	if err != nil {
		return nil, err
	}
	thumbnail, err := s.thumbnailCommands.Execute(payload)
	if errors.Is(err, commands.ErrImageTooLarge) {
		return nil, fmt.Errorf("%w: image %s: %w", ErrInvalidArgument, id, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to render thumbnail for image %s: %w", id, err)
	}
	return thumbnail, nil
}
