package assets

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
)

const (
	ShowcasesFile = "data/showcases.json"
	ImagesFile    = "data/images.json"
)

//go:embed data/*.json images/*.svg
var embedded embed.FS

// Embedded returns the bundled seed files
func Embedded() fs.FS {
	return embedded
}

// Open returns the seed file system: the given directory when set, the
// bundled files otherwise
func Open(directory string) (fs.FS, error) {
	if directory == "" {
		return embedded, nil
	}

	info, err := os.Stat(directory)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed directory %s: %w", directory, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("seed path %s is not a directory", directory)
	}
	slog.Info("using seed directory", "path", directory)
	return os.DirFS(directory), nil
}
