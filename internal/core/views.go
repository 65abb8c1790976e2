package core

import (
	"net/url"

	"github.com/jo-hoe/mebloggy/internal/backend/database"
)

const (
	ImageBlobPathPrefix = "/api/images/"
	AvatarBlobPath      = "/api/avatar/blob"
)

// ImageView is an image as presented to clients. Src is the URL to display:
// the asset path for seeded images unless blob URLs are preferred, the blob
// endpoint otherwise.
type ImageView struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Src         string `json:"src"`
	AssetSrc    string `json:"assetSrc,omitempty"`
	BlobSrc     string `json:"blobSrc,omitempty"`
}

type ShowcaseView struct {
	ID     string      `json:"id"`
	Title  string      `json:"title"`
	Images []ImageView `json:"images"`
}

type AvatarView struct {
	ID          string `json:"id"`
	ContentType string `json:"contentType"`
	Src         string `json:"src"`
}

// ImageBlobURL returns the endpoint serving the stored payload of an image
func ImageBlobURL(id string) string {
	return ImageBlobPathPrefix + url.PathEscape(id) + "/blob"
}

func (s *CoreService) imageView(img *database.Image) ImageView {
	view := ImageView{
		ID:          img.ID,
		Title:       img.Title,
		Description: img.Description,
		Filename:    img.Filename,
		ContentType: img.ContentType,
	}
	if len(img.Payload) > 0 {
		view.BlobSrc = ImageBlobURL(img.ID)
	}
	if img.Filename != "" {
		view.AssetSrc = s.config.AssetBasePath + img.Filename
	}

	view.Src = view.AssetSrc
	if view.Src == "" || (s.config.UseBlobURLs && view.BlobSrc != "") {
		view.Src = view.BlobSrc
	}
	return view
}

func avatarView(avatar *database.Avatar) *AvatarView {
	if avatar == nil {
		return nil
	}
	// the id changes with every upload, so it doubles as a cache buster
	return &AvatarView{
		ID:          avatar.ID,
		ContentType: avatar.ContentType,
		Src:         AvatarBlobPath + "?v=" + url.QueryEscape(avatar.ID),
	}
}
