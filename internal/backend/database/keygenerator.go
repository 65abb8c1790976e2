package database

import (
	"fmt"

	"github.com/google/uuid"
)

const (
	imageIDPrefix    = "img"
	showcaseIDPrefix = "s"
	avatarIDPrefix   = "avatar"
)

// NewImageID returns a fresh image id of the form img-<uuid>
func NewImageID() (string, error) {
	return generateID(imageIDPrefix)
}

// NewShowcaseID returns a fresh showcase id of the form s-<uuid>
func NewShowcaseID() (string, error) {
	return generateID(showcaseIDPrefix)
}

// NewAvatarID returns a fresh avatar id of the form avatar-<uuid>
func NewAvatarID() (string, error) {
	return generateID(avatarIDPrefix)
}

func generateID(prefix string) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate %s id: %w", prefix, err)
	}
	return prefix + "-" + id.String(), nil
}
