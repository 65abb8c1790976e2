package commands

import (
	"fmt"
	"image"
	"image/draw"
	"log/slog"

	"github.com/jo-hoe/mebloggy/internal/backend/commandstructure"
)

// CropParams represents typed parameters for crop command
type CropParams struct {
	Height int
	Width  int
	// Square crops to the largest centered square; Height and Width are ignored
	Square bool
}

// NewCropParamsFromMap creates CropParams from a generic map
func NewCropParamsFromMap(params map[string]any) (*CropParams, error) {
	if commandstructure.GetBoolParam(params, "square", false) {
		return &CropParams{Square: true}, nil
	}

	// Validate required parameters exist
	if err := commandstructure.ValidateRequiredParams(params, []string{"height", "width"}); err != nil {
		return nil, err
	}

	height := commandstructure.GetIntParam(params, "height", 0)
	width := commandstructure.GetIntParam(params, "width", 0)

	// Validate dimensions are positive
	if height <= 0 {
		return nil, fmt.Errorf("height must be positive, got %d", height)
	}
	if width <= 0 {
		return nil, fmt.Errorf("width must be positive, got %d", width)
	}

	return &CropParams{
		Height: height,
		Width:  width,
	}, nil
}

// CropCommand center-crops an image and returns it as PNG
type CropCommand struct {
	name   string
	params *CropParams
}

// NewCropCommand creates a new crop command from configuration parameters
func NewCropCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewCropParamsFromMap(params)
	if err != nil {
		return nil, err
	}

	return &CropCommand{
		name:   "CropCommand",
		params: typedParams,
	}, nil
}

// Name returns the command name
func (c *CropCommand) Name() string {
	return c.name
}

// Execute crops the image to the configured dimensions
func (c *CropCommand) Execute(imageData []byte) ([]byte, error) {
	img, format, err := decodeImage(imageData)
	if err != nil {
		slog.Error("CropCommand: failed to decode image", "error", err)
		return nil, err
	}

	bounds := img.Bounds()
	originalWidth := bounds.Dx()
	originalHeight := bounds.Dy()

	cropWidth, cropHeight := c.params.Width, c.params.Height
	if c.params.Square {
		cropWidth = min(originalWidth, originalHeight)
		cropHeight = cropWidth
	}

	// Nothing to cut away: keep PNG input untouched, re-encode other formats
	if cropWidth >= originalWidth && cropHeight >= originalHeight {
		slog.Debug("CropCommand: no crop needed", "width", originalWidth, "height", originalHeight)
		if format == "png" {
			return imageData, nil
		}
		return encodePNG(img)
	}

	// Limit crop dimensions to original size
	cropWidth = min(cropWidth, originalWidth)
	cropHeight = min(cropHeight, originalHeight)

	x0 := bounds.Min.X + (originalWidth-cropWidth)/2
	y0 := bounds.Min.Y + (originalHeight-cropHeight)/2

	slog.Debug("CropCommand: performing center crop",
		"crop_x", x0,
		"crop_y", y0,
		"crop_width", cropWidth,
		"crop_height", cropHeight)

	cropped := image.NewRGBA(image.Rect(0, 0, cropWidth, cropHeight))
	draw.Draw(cropped, cropped.Bounds(), img, image.Point{X: x0, Y: y0}, draw.Src)

	out, err := encodePNG(cropped)
	if err != nil {
		slog.Error("CropCommand: failed to encode cropped image", "error", err)
		return nil, fmt.Errorf("failed to encode cropped PNG image: %w", err)
	}
	return out, nil
}

// GetParams returns the typed parameters
func (c *CropCommand) GetParams() *CropParams {
	return c.params
}

func init() {
	// Register the command in the default registry
	if err := commandstructure.DefaultRegistry.Register("CropCommand", NewCropCommand); err != nil {
		panic(fmt.Sprintf("failed to register CropCommand: %v", err))
	}
}
