package commands

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/jo-hoe/mebloggy/internal/backend/commandstructure"
)

func TestNewPixelScaleCommand_BothDimensions(t *testing.T) {
	params := map[string]any{
		"height": 800,
		"width":  600,
	}

	command, err := NewPixelScaleCommand(params)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	scaleCmd, ok := command.(*PixelScaleCommand)
	if !ok {
		t.Fatal("Expected command to be *PixelScaleCommand")
	}

	if scaleCmd.GetHeight() == nil || *scaleCmd.GetHeight() != 800 {
		t.Errorf("Expected height 800, got %v", scaleCmd.GetHeight())
	}
	if scaleCmd.GetWidth() == nil || *scaleCmd.GetWidth() != 600 {
		t.Errorf("Expected width 600, got %v", scaleCmd.GetWidth())
	}
}

func TestNewPixelScaleCommand_OnlyHeight(t *testing.T) {
	params := map[string]any{
		"height": 800,
	}

	command, err := NewPixelScaleCommand(params)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	scaleCmd, ok := command.(*PixelScaleCommand)
	if !ok {
		t.Fatal("Expected command to be *PixelScaleCommand")
	}

	if scaleCmd.GetHeight() == nil || *scaleCmd.GetHeight() != 800 {
		t.Errorf("Expected height 800, got %v", scaleCmd.GetHeight())
	}
	if scaleCmd.GetWidth() != nil {
		t.Errorf("Expected width to be nil, got %v", *scaleCmd.GetWidth())
	}
}

func TestNewPixelScaleCommand_MissingBothDimensions(t *testing.T) {
	params := map[string]any{}

	_, err := NewPixelScaleCommand(params)
	if err == nil {
		t.Error("Expected error when both dimensions are missing")
	}
}

func TestNewPixelScaleCommand_InvalidHeight(t *testing.T) {
	tests := []struct {
		name   string
		height any
	}{
		{"Zero height", 0},
		{"Negative height", -100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := map[string]any{
				"height": tt.height,
			}

			_, err := NewPixelScaleCommand(params)
			if err == nil {
				t.Error("Expected error for invalid height")
			}
		})
	}
}

func TestPixelScaleCommand_Name(t *testing.T) {
	command, err := NewPixelScaleCommand(map[string]any{
		"height": 800,
	})
	if err != nil {
		t.Fatalf("Failed to create command: %v", err)
	}

	if command.Name() != "PixelScaleCommand" {
		t.Errorf("Expected name 'PixelScaleCommand', got '%s'", command.Name())
	}
}

func TestPixelScaleCommand_Execute_InvalidImage(t *testing.T) {
	command, err := NewPixelScaleCommand(map[string]any{
		"height": 100,
	})
	if err != nil {
		t.Fatalf("Failed to create command: %v", err)
	}

	// Test with invalid image data - should return error
	testData := []byte("not a valid image")
	_, err = command.Execute(testData)
	if err == nil {
		t.Error("Expected error for invalid image data, got nil")
	}
}

func TestPixelScaleCommand_RegisteredInDefaultRegistry(t *testing.T) {
	if !commandstructure.DefaultRegistry.IsRegistered("PixelScaleCommand") {
		t.Error("Expected PixelScaleCommand to be registered in DefaultRegistry")
	}

	// Test creating via registry with only height
	command, err := commandstructure.DefaultRegistry.Create("PixelScaleCommand", map[string]any{
		"height": 1024,
	})
	if err != nil {
		t.Fatalf("Failed to create command via registry: %v", err)
	}

	scaleCmd, ok := command.(*PixelScaleCommand)
	if !ok {
		t.Fatal("Expected command to be *PixelScaleCommand")
	}

	if scaleCmd.GetHeight() == nil || *scaleCmd.GetHeight() != 1024 {
		t.Errorf("Expected height 1024, got %v", scaleCmd.GetHeight())
	}
	if scaleCmd.GetWidth() != nil {
		t.Errorf("Expected width to be nil, got %v", *scaleCmd.GetWidth())
	}
}

func TestPixelScaleCommand_WithFloat64Params(t *testing.T) {
	// YAML unmarshaling often produces float64 for numbers
	params := map[string]any{
		"height": float64(800),
		"width":  float64(600),
	}

	command, err := NewPixelScaleCommand(params)
	if err != nil {
		t.Fatalf("Expected no error with float64 params, got %v", err)
	}

	scaleCmd, ok := command.(*PixelScaleCommand)
	if !ok {
		t.Fatal("Expected command to be *PixelScaleCommand")
	}

	if scaleCmd.GetHeight() == nil || *scaleCmd.GetHeight() != 800 {
		t.Errorf("Expected height 800, got %v", scaleCmd.GetHeight())
	}
	if scaleCmd.GetWidth() == nil || *scaleCmd.GetWidth() != 600 {
		t.Errorf("Expected width 600, got %v", scaleCmd.GetWidth())
	}
}

func newTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test PNG: %v", err)
	}
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("result is not a valid PNG: %v", err)
	}
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestPixelScaleCommand_Execute_PreservesAspectRatio(t *testing.T) {
	tests := []struct {
		name       string
		params     map[string]any
		wantWidth  int
		wantHeight int
	}{
		{"width only", map[string]any{"width": 50}, 50, 25},
		{"height only", map[string]any{"height": 10}, 20, 10},
		{"both dimensions", map[string]any{"width": 30, "height": 30}, 30, 30},
	}

	input := newTestPNG(t, 100, 50)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			command, err := NewPixelScaleCommand(tt.params)
			if err != nil {
				t.Fatalf("Failed to create command: %v", err)
			}
			out, err := command.Execute(input)
			if err != nil {
				t.Fatalf("Execute failed: %v", err)
			}
			w, h := decodeSize(t, out)
			if w != tt.wantWidth || h != tt.wantHeight {
				t.Errorf("Expected %dx%d, got %dx%d", tt.wantWidth, tt.wantHeight, w, h)
			}
		})
	}
}

func TestPixelScaleCommand_Execute_NoUpscale(t *testing.T) {
	command, err := NewPixelScaleCommand(map[string]any{"width": 320, "noUpscale": true})
	if err != nil {
		t.Fatalf("Failed to create command: %v", err)
	}

	input := newTestPNG(t, 40, 20)
	out, err := command.Execute(input)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !bytes.Equal(out, input) {
		t.Error("Expected small PNG to be returned unchanged")
	}
}

func TestPixelScaleCommand_Execute_AcceptsJPEG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 32))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("failed to encode test JPEG: %v", err)
	}

	command, err := NewPixelScaleCommand(map[string]any{"width": 16})
	if err != nil {
		t.Fatalf("Failed to create command: %v", err)
	}
	out, err := command.Execute(buf.Bytes())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if w, h := decodeSize(t, out); w != 16 || h != 8 {
		t.Errorf("Expected 16x8, got %dx%d", w, h)
	}
}
