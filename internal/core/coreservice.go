package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"sync"

	"github.com/jo-hoe/mebloggy/internal/assets"
	"github.com/jo-hoe/mebloggy/internal/backend/commandstructure"
	"github.com/jo-hoe/mebloggy/internal/backend/database"
	"github.com/jo-hoe/mebloggy/internal/backend/preferences"
	"github.com/jo-hoe/mebloggy/internal/observable"
)

var (
	ErrImageNotFound    = errors.New("image not found")
	ErrShowcaseNotFound = errors.New("showcase not found")
	ErrAvatarNotFound   = errors.New("avatar not found")
	ErrInvalidArgument  = errors.New("invalid argument")
)

const (
	DefaultShowcaseID    = "s_auto_all"
	DefaultShowcaseTitle = "All Photos"
	LastShowcaseKey      = "mebloggy.lastShowcase"
)

// CoreService owns the gallery store and keeps an in-memory projection of it.
// Every mutation is written to the store first, then the projection is
// rebuilt from all records and published on the subjects.
type CoreService struct {
	config            *ServiceConfig
	databaseService   database.DatabaseService
	preferences       preferences.Store
	seed              fs.FS
	avatarCommands    *commandstructure.CommandInvoker
	thumbnailCommands *commandstructure.CommandInvoker

	// mu serializes mutations and reloads
	mu             sync.Mutex
	images         map[string]ImageView
	knownShowcases map[string]struct{}

	showcases   *observable.Subject[[]ShowcaseView]
	featured    *observable.Subject[*ImageView]
	avatar      *observable.Subject[*AvatarView]
	avatarError *observable.Subject[string]
	selected    *observable.Subject[[]string]
}

// NewCoreService opens the database, the preference store and the seed
// files described by config
func NewCoreService(ctx context.Context, config *ServiceConfig) (*CoreService, error) {
	databaseService, err := getDatabaseService(config)
	if err != nil {
		return nil, err
	}

	store, err := preferences.NewStore(ctx, config.Preferences)
	if err != nil {
		_ = databaseService.Close()
		return nil, err
	}

	seed, err := assets.Open(config.Seed.Directory)
	if err != nil {
		_ = databaseService.Close()
		_ = store.Close()
		return nil, err
	}

	return NewCoreServiceWithStores(config, databaseService, store, seed)
}

// NewCoreServiceWithStores builds the service on top of already opened stores
func NewCoreServiceWithStores(config *ServiceConfig, databaseService database.DatabaseService,
	store preferences.Store, seed fs.FS) (*CoreService, error) {
	avatarCommands, err := commandstructure.NewCommandInvokerFromConfigs(commandstructure.DefaultRegistry, config.Avatar.Commands)
	if err != nil {
		return nil, fmt.Errorf("failed to build avatar commands: %w", err)
	}
	thumbnailCommands, err := commandstructure.NewCommandInvokerFromConfigs(commandstructure.DefaultRegistry,
		thumbnailPipeline(config.ThumbnailWidth))
	if err != nil {
		return nil, fmt.Errorf("failed to build thumbnail commands: %w", err)
	}

	return &CoreService{
		config:            config,
		databaseService:   databaseService,
		preferences:       store,
		seed:              seed,
		avatarCommands:    avatarCommands,
		thumbnailCommands: thumbnailCommands,
		images:            make(map[string]ImageView),
		knownShowcases:    make(map[string]struct{}),
		showcases:         observable.NewSubject([]ShowcaseView{}),
		featured:          observable.NewSubject[*ImageView](nil),
		avatar:            observable.NewSubject[*AvatarView](nil),
		avatarError:       observable.NewSubject(""),
		selected:          observable.NewSubject([]string{}),
	}, nil
}

func thumbnailPipeline(width int) []commandstructure.CommandConfig {
	return []commandstructure.CommandConfig{
		{Name: "PngConverterCommand", Params: map[string]any{"svgFallbackWidth": width, "svgFallbackHeight": width}},
		{Name: "PixelScaleCommand", Params: map[string]any{"width": width, "noUpscale": true}},
	}
}

func getDatabaseService(config *ServiceConfig) (database.DatabaseService, error) {
	databaseService, err := database.NewDatabase(config.Database.Type, config.Database.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("database initialized successfully", "type", config.Database.Type)
	return databaseService, nil
}

// Showcases publishes the resolved showcase list after every reload
func (s *CoreService) Showcases() observable.Observable[[]ShowcaseView] {
	return s.showcases
}

// Featured publishes the featured image, nil when nothing is featured
func (s *CoreService) Featured() observable.Observable[*ImageView] {
	return s.featured
}

// Avatar publishes the current avatar, nil when none is set
func (s *CoreService) Avatar() observable.Observable[*AvatarView] {
	return s.avatar
}

// AvatarError publishes the last avatar failure, empty after a success
func (s *CoreService) AvatarError() observable.Observable[string] {
	return s.avatarError
}

// SelectedShowcaseIDs publishes the ids of the showcases chosen for display
func (s *CoreService) SelectedShowcaseIDs() observable.Observable[[]string] {
	return s.selected
}

// SeedFS returns the files the gallery was seeded from
func (s *CoreService) SeedFS() fs.FS {
	return s.seed
}

// Close ends all subscriptions and releases the stores
func (s *CoreService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.showcases.Close()
	s.featured.Close()
	s.avatar.Close()
	s.avatarError.Close()
	s.selected.Close()

	return errors.Join(s.preferences.Close(), s.databaseService.Close())
}

// reload rebuilds the projection from the store and publishes it.
// Callers must hold mu.
func (s *CoreService) reload(ctx context.Context) error {
	images, err := s.databaseService.Images().GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load images: %w", err)
	}
	showcases, err := s.databaseService.Showcases().GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load showcases: %w", err)
	}

	index := make(map[string]ImageView, len(images))
	for _, img := range images {
		index[img.ID] = s.imageView(img)
	}

	views := make([]ShowcaseView, 0, len(showcases))
	for _, showcase := range showcases {
		view := ShowcaseView{ID: showcase.ID, Title: showcase.Title, Images: make([]ImageView, 0, len(showcase.ImageIDs))}
		for _, id := range showcase.ImageIDs {
			// references to images that no longer exist are skipped
			if img, ok := index[id]; ok {
				view.Images = append(view.Images, img)
			}
		}
		views = append(views, view)
	}

	s.images = index
	s.showcases.Next(views)
	s.reconcileSelection(views)
	s.refreshFeatured(views)

	slog.Debug("projection reloaded", "images", len(images), "showcases", len(showcases))
	return nil
}

// refreshFeatured republishes the featured image from the new projection so
// metadata changes show up. A featured image that vanished, or no featured
// image at all, is replaced by the first image of the first showcase.
func (s *CoreService) refreshFeatured(views []ShowcaseView) {
	if current := s.featured.Value(); current != nil {
		if img, ok := s.images[current.ID]; ok {
			s.featured.Next(&img)
			return
		}
	}
	s.featured.Next(firstImage(views))
}

// reconcileSelection drops vanished showcases from the selection and selects
// showcases that appeared since the last reload. An empty selection selects all.
func (s *CoreService) reconcileSelection(views []ShowcaseView) {
	current := s.selected.Value()

	valid := make(map[string]struct{}, len(views))
	for _, view := range views {
		valid[view.ID] = struct{}{}
	}

	next := make([]string, 0, len(views))
	if len(current) > 0 {
		for _, id := range current {
			if _, ok := valid[id]; ok {
				next = append(next, id)
			}
		}
		for _, view := range views {
			if _, known := s.knownShowcases[view.ID]; !known && !slices.Contains(next, view.ID) {
				next = append(next, view.ID)
			}
		}
	}
	if len(next) == 0 {
		for _, view := range views {
			next = append(next, view.ID)
		}
	}

	s.knownShowcases = valid
	if !slices.Equal(current, next) {
		s.selected.Next(next)
	}
}

func firstImage(views []ShowcaseView) *ImageView {
	if len(views) == 0 || len(views[0].Images) == 0 {
		return nil
	}
	img := views[0].Images[0]
	return &img
}

func removeID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
