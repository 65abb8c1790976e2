package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gabriel-vasile/mimetype"

	"github.com/jo-hoe/mebloggy/internal/backend/commands"
	"github.com/jo-hoe/mebloggy/internal/backend/database"
)

// SetAvatar normalizes the payload with the avatar commands, replaces the
// stored avatar and verifies the write by reading it back. When the commands
// fail the raw payload is stored instead, unless the image is too large to
// process at all. Failures are published on AvatarError.
func (s *CoreService) SetAvatar(ctx context.Context, payload []byte) (*AvatarView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	view, err := s.storeAvatar(ctx, payload)
	if err != nil {
		slog.Error("failed to set avatar", "error", err)
		s.avatarError.Next(err.Error())
		return nil, err
	}

	s.avatar.Next(view)
	s.avatarError.Next("")
	return view, nil
}

func (s *CoreService) storeAvatar(ctx context.Context, payload []byte) (*AvatarView, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: avatar payload is empty", ErrInvalidArgument)
	}

	processed, err := s.avatarCommands.Execute(payload)
	if errors.Is(err, commands.ErrImageTooLarge) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if err != nil {
		slog.Warn("avatar commands failed, storing original payload", "error", err)
		processed = payload
	}

	id, err := database.NewAvatarID()
	if err != nil {
		return nil, err
	}
	avatar := &database.Avatar{
		Key:         database.AvatarKey,
		ID:          id,
		ContentType: mimetype.Detect(processed).String(),
		Payload:     processed,
	}
	if err := s.databaseService.Avatars().Put(ctx, avatar); err != nil {
		return nil, fmt.Errorf("failed to store avatar: %w", err)
	}

	stored, err := s.databaseService.Avatars().Get(ctx, database.AvatarKey)
	if err != nil {
		return nil, fmt.Errorf("failed to verify avatar: %w", err)
	}
	if stored == nil || stored.ID != id || len(stored.Payload) == 0 {
		return nil, fmt.Errorf("avatar %s was not persisted", id)
	}

	slog.Info("avatar stored", "id", id, "size_bytes", len(stored.Payload), "content_type", stored.ContentType)
	return avatarView(stored), nil
}

// GetAvatar reads the stored avatar and publishes it; nil when none is set
func (s *CoreService) GetAvatar(ctx context.Context) (*AvatarView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadAvatar(ctx)
}

// loadAvatar requires mu to be held
func (s *CoreService) loadAvatar(ctx context.Context) (*AvatarView, error) {
	avatar, err := s.databaseService.Avatars().Get(ctx, database.AvatarKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load avatar: %w", err)
	}
	view := avatarView(avatar)
	s.avatar.Next(view)
	return view, nil
}

// RemoveAvatar deletes the stored avatar
func (s *CoreService) RemoveAvatar(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.databaseService.Avatars().Delete(ctx, database.AvatarKey); err != nil {
		err = fmt.Errorf("failed to remove avatar: %w", err)
		s.avatarError.Next(err.Error())
		return err
	}
	s.avatar.Next(nil)
	s.avatarError.Next("")
	slog.Info("avatar removed")
	return nil
}

// AvatarPayload returns the stored avatar bytes and their content type
func (s *CoreService) AvatarPayload(ctx context.Context) ([]byte, string, error) {
	avatar, err := s.databaseService.Avatars().Get(ctx, database.AvatarKey)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load avatar: %w", err)
	}
	if avatar == nil {
		return nil, "", ErrAvatarNotFound
	}
	return avatar.Payload, avatar.ContentType, nil
}
