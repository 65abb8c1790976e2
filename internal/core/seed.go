package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/gabriel-vasile/mimetype"

	"github.com/jo-hoe/mebloggy/internal/assets"
	"github.com/jo-hoe/mebloggy/internal/backend/database"
)

type seedShowcase struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Images []struct {
		ID string `json:"id"`
	} `json:"images"`
}

type seedImage struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Filename    string `json:"filename"`
}

// Init seeds an empty store from the seed files, gives images without any
// showcase the default showcase and loads the projection and the avatar.
// Calling it again on a populated store only reloads.
func (s *CoreService) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	imageCount, err := s.databaseService.Images().Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count images: %w", err)
	}
	showcaseCount, err := s.databaseService.Showcases().Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count showcases: %w", err)
	}

	switch {
	case imageCount == 0 && showcaseCount == 0:
		if err := s.seedStore(ctx); err != nil {
			return err
		}
	case showcaseCount == 0:
		if err := s.createDefaultShowcase(ctx); err != nil {
			return err
		}
	}

	if err := s.reload(ctx); err != nil {
		return err
	}

	if _, err := s.loadAvatar(ctx); err != nil {
		slog.Warn("failed to load avatar", "error", err)
	}
	return nil
}

func (s *CoreService) seedStore(ctx context.Context) error {
	var showcases []seedShowcase
	if err := readSeedJSON(s.seed, assets.ShowcasesFile, &showcases); err != nil {
		return err
	}
	var images []seedImage
	if err := readSeedJSON(s.seed, assets.ImagesFile, &images); err != nil {
		return err
	}

	stored := make(map[string]struct{}, len(images))
	for _, img := range images {
		payload, err := fs.ReadFile(s.seed, img.Filename)
		if err != nil {
			slog.Warn("could not read seed image, skipping", "id", img.ID, "filename", img.Filename, "error", err)
			continue
		}
		err = s.databaseService.Images().Put(ctx, &database.Image{
			ID:          img.ID,
			Title:       img.Title,
			Description: img.Description,
			Filename:    img.Filename,
			ContentType: mimetype.Detect(payload).String(),
			Payload:     payload,
		})
		if err != nil {
			return fmt.Errorf("failed to store seed image %s: %w", img.ID, err)
		}
		stored[img.ID] = struct{}{}
	}

	for _, showcase := range showcases {
		ids := make([]string, 0, len(showcase.Images))
		for _, ref := range showcase.Images {
			if _, ok := stored[ref.ID]; ok {
				ids = append(ids, ref.ID)
			}
		}
		if len(ids) == 0 {
			slog.Warn("seed showcase has no readable images, skipping", "id", showcase.ID)
			continue
		}
		err := s.databaseService.Showcases().Put(ctx, &database.Showcase{ID: showcase.ID, Title: showcase.Title, ImageIDs: ids})
		if err != nil {
			return fmt.Errorf("failed to store seed showcase %s: %w", showcase.ID, err)
		}
	}

	slog.Info("seeded gallery", "images", len(stored), "showcases", len(showcases))
	return nil
}

// createDefaultShowcase collects every stored image into the default showcase
func (s *CoreService) createDefaultShowcase(ctx context.Context) error {
	images, err := s.databaseService.Images().GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load images: %w", err)
	}
	ids := make([]string, 0, len(images))
	for _, img := range images {
		ids = append(ids, img.ID)
	}

	err = s.databaseService.Showcases().Put(ctx, &database.Showcase{ID: DefaultShowcaseID, Title: DefaultShowcaseTitle, ImageIDs: ids})
	if err != nil {
		return fmt.Errorf("failed to create default showcase: %w", err)
	}
	slog.Info("created default showcase", "images", len(ids))
	return nil
}

func readSeedJSON(seed fs.FS, name string, target any) error {
	data, err := fs.ReadFile(seed, name)
	if err != nil {
		return fmt.Errorf("failed to read seed file %s: %w", name, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to parse seed file %s: %w", name, err)
	}
	return nil
}
