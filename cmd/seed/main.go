package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jo-hoe/mebloggy/internal/core"
	"github.com/joho/godotenv"
)

func getConfigPath() string {
	// First check if config path is provided via environment variable
	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		return configPath
	}

	cwd, err := os.Getwd()
	if err != nil {
		panic(err)
	}
	return filepath.Join(cwd, "config.yaml")
}

// seed initializes the configured store without starting the server and
// prints what it holds afterwards
func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	if err := run(context.Background(), getConfigPath()); err != nil {
		slog.Error("seeding failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) (err error) {
	config, err := core.LoadConfig(configPath)
	if err != nil {
		return err
	}

	coreService, err := core.NewCoreService(ctx, config)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, coreService.Close())
	}()

	if err := coreService.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize gallery: %w", err)
	}

	for _, showcase := range coreService.GetShowcases() {
		fmt.Printf("%s\t%s\t%d images\n", showcase.ID, showcase.Title, len(showcase.Images))
	}
	return nil
}
