package core

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/jo-hoe/mebloggy/internal/backend/database"
)

// GetShowcases returns the current projection
func (s *CoreService) GetShowcases() []ShowcaseView {
	return s.showcases.Value()
}

// GetShowcase returns the showcase with the given id or nil
func (s *CoreService) GetShowcase(id string) *ShowcaseView {
	for _, showcase := range s.showcases.Value() {
		if showcase.ID == id {
			return &showcase
		}
	}
	return nil
}

// VisibleShowcases returns the showcases in the current selection
func (s *CoreService) VisibleShowcases() []ShowcaseView {
	showcases := s.showcases.Value()
	selected := s.selected.Value()
	if len(selected) == 0 {
		return showcases
	}

	visible := make([]ShowcaseView, 0, len(selected))
	for _, showcase := range showcases {
		if slices.Contains(selected, showcase.ID) {
			visible = append(visible, showcase)
		}
	}
	return visible
}

// CreateShowcase appends an empty showcase and returns its id
func (s *CoreService) CreateShowcase(ctx context.Context, title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("%w: showcase title must not be empty", ErrInvalidArgument)
	}

	id, err := database.NewShowcaseID()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.databaseService.Showcases().Put(ctx, &database.Showcase{ID: id, Title: title}); err != nil {
		return "", fmt.Errorf("failed to create showcase: %w", err)
	}
	slog.Info("showcase created", "id", id, "title", title)
	return id, s.reload(ctx)
}

// UpdateShowcaseImageOrder stores a new image order for a showcase. Unknown
// and duplicate image ids are dropped; a showcase left without images is
// deleted.
func (s *CoreService) UpdateShowcaseImageOrder(ctx context.Context, showcaseID string, imageIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	showcase, err := s.databaseService.Showcases().Get(ctx, showcaseID)
	if err != nil {
		return fmt.Errorf("failed to load showcase %s: %w", showcaseID, err)
	}
	if showcase == nil {
		return ErrShowcaseNotFound
	}

	order := make([]string, 0, len(imageIDs))
	for _, id := range imageIDs {
		if _, ok := s.images[id]; ok && !slices.Contains(order, id) {
			order = append(order, id)
		}
	}

	if len(order) == 0 {
		if err := s.databaseService.Showcases().Delete(ctx, showcaseID); err != nil {
			return fmt.Errorf("failed to delete showcase %s: %w", showcaseID, err)
		}
		slog.Info("showcase deleted after emptying", "id", showcaseID)
	} else {
		showcase.ImageIDs = order
		if err := s.databaseService.Showcases().Put(ctx, showcase); err != nil {
			return fmt.Errorf("failed to update showcase %s: %w", showcaseID, err)
		}
	}

	if err := s.reload(ctx); err != nil {
		return err
	}
	return s.fixLastShowcase(ctx)
}

// ReorderShowcases moves the given showcases to the front in the given order;
// showcases not listed keep their relative order behind them
func (s *CoreService) ReorderShowcases(ctx context.Context, showcaseIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	showcases, err := s.databaseService.Showcases().GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load showcases: %w", err)
	}

	byID := make(map[string]*database.Showcase, len(showcases))
	ranks := make(map[string]string, len(showcases))
	for _, showcase := range showcases {
		byID[showcase.ID] = showcase
		ranks[showcase.ID] = showcase.Rank
	}

	order := make([]string, 0, len(showcases))
	for _, id := range showcaseIDs {
		if _, ok := byID[id]; !ok {
			return fmt.Errorf("%w: %s", ErrShowcaseNotFound, id)
		}
		if !slices.Contains(order, id) {
			order = append(order, id)
		}
	}
	for _, showcase := range showcases {
		if !slices.Contains(order, showcase.ID) {
			order = append(order, showcase.ID)
		}
	}

	for id, rank := range database.Reorder(ranks, order) {
		showcase := byID[id]
		showcase.Rank = rank
		if err := s.databaseService.Showcases().Put(ctx, showcase); err != nil {
			return fmt.Errorf("failed to move showcase %s: %w", id, err)
		}
	}
	return s.reload(ctx)
}

// SetSelectedShowcaseIDs replaces the selection; unknown and duplicate ids are
// dropped
func (s *CoreService) SetSelectedShowcaseIDs(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	selection := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := s.knownShowcases[id]; ok && !slices.Contains(selection, id) {
			selection = append(selection, id)
		}
	}
	s.selected.Next(selection)
}

// LastShowcase returns the showcase last uploaded to. When the stored one no
// longer exists the first showcase is returned; the stored value is left as
// it is.
func (s *CoreService) LastShowcase(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, _, id, err := s.resolveLastShowcase(ctx)
	return id, err
}

// SetLastShowcase remembers the showcase used for the next upload
func (s *CoreService) SetLastShowcase(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.knownShowcases[id]; !ok {
		return ErrShowcaseNotFound
	}
	if err := s.preferences.Set(ctx, LastShowcaseKey, id); err != nil {
		return fmt.Errorf("failed to store last showcase: %w", err)
	}
	return nil
}

// resolveLastShowcase reads the stored last showcase and picks the one that
// should be in effect: the stored id while it exists, otherwise the first
// showcase, or "" when there is none. Callers must hold mu.
func (s *CoreService) resolveLastShowcase(ctx context.Context) (stored string, found bool, effective string, err error) {
	stored, found, err = s.preferences.Get(ctx, LastShowcaseKey)
	if err != nil {
		return "", false, "", fmt.Errorf("failed to read last showcase: %w", err)
	}
	if _, exists := s.knownShowcases[stored]; found && exists {
		return stored, found, stored, nil
	}
	if showcases := s.showcases.Value(); len(showcases) > 0 {
		return stored, found, showcases[0].ID, nil
	}
	return stored, found, "", nil
}

// fixLastShowcase writes the effective last showcase back to the preference
// store after a mutation. Callers must hold mu.
func (s *CoreService) fixLastShowcase(ctx context.Context) error {
	stored, found, effective, err := s.resolveLastShowcase(ctx)
	if err != nil {
		return err
	}
	switch {
	case found && stored == effective:
		return nil
	case effective == "":
		if !found {
			return nil
		}
		if err := s.preferences.Delete(ctx, LastShowcaseKey); err != nil {
			return fmt.Errorf("failed to clear last showcase: %w", err)
		}
		return nil
	}
	if err := s.preferences.Set(ctx, LastShowcaseKey, effective); err != nil {
		return fmt.Errorf("failed to reset last showcase: %w", err)
	}
	return nil
}
