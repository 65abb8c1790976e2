package commands

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/jo-hoe/mebloggy/internal/backend/commandstructure"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// maxSVGEdge is the longest edge an SVG is rendered at; larger declared sizes
// are scaled down keeping their aspect ratio.
const maxSVGEdge = 4096

var pngSignature = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

func hasCorrectPngSignature(data []byte) bool {
	return bytes.HasPrefix(data, pngSignature)
}

// PngConverterCommand normalizes uploads and seeded SVG assets to PNG so the
// following commands in a pipeline only deal with one format
type PngConverterCommand struct {
	name string
	// used when an SVG declares no width and height of its own
	fallback svgSize
}

type svgSize struct {
	width, height int
}

func (s svgSize) valid() bool {
	return s.width > 0 && s.height > 0
}

// fit scales s down so that neither edge exceeds maxSVGEdge
func (s svgSize) fit() svgSize {
	longest := max(s.width, s.height)
	if longest <= maxSVGEdge {
		return s
	}
	scale := float64(maxSVGEdge) / float64(longest)
	return svgSize{
		width:  max(1, int(math.Round(float64(s.width)*scale))),
		height: max(1, int(math.Round(float64(s.height)*scale))),
	}
}

// NewPngConverterCommand creates a new PNG converter command
func NewPngConverterCommand(params map[string]any) (commandstructure.Command, error) {
	return &PngConverterCommand{
		name: "PngConverterCommand",
		fallback: svgSize{
			width:  commandstructure.GetIntParam(params, "svgFallbackWidth", 0),
			height: commandstructure.GetIntParam(params, "svgFallbackHeight", 0),
		},
	}, nil
}

// Name returns the command name
func (c *PngConverterCommand) Name() string {
	return c.name
}

func (c *PngConverterCommand) Execute(imageData []byte) ([]byte, error) {
	slog.Debug("PngConverterCommand: start", "input_size_bytes", len(imageData))

	switch {
	case hasCorrectPngSignature(imageData):
		// PNG passes through untouched, but its header still has to be sane
		if _, _, err := decodeConfig(imageData); err != nil {
			slog.Error("PngConverterCommand: rejected PNG input", "error", err)
			return nil, err
		}
		return imageData, nil
	case IsSVGData(imageData):
		return c.convertSVG(imageData)
	}

	img, format, err := decodeImage(imageData)
	if err != nil {
		slog.Error("PngConverterCommand: failed to decode image", "error", err)
		return nil, err
	}
	slog.Debug("PngConverterCommand: decoded raster image",
		"format", format,
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy())

	out, err := encodePNG(img)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image to PNG: %w", err)
	}
	return out, nil
}

func (c *PngConverterCommand) convertSVG(data []byte) ([]byte, error) {
	size, ok := svgDeclaredSize(data)
	if !ok {
		if !c.fallback.valid() {
			return nil, errors.New("SVG has no explicit size and no fallback size is configured")
		}
		size = c.fallback
	}
	target := size.fit()
	slog.Debug("PngConverterCommand: rendering SVG",
		"declared_width", size.width, "declared_height", size.height,
		"width", target.width, "height", target.height)

	out, err := renderSVGToPNG(data, target.width, target.height)
	if err != nil {
		slog.Error("PngConverterCommand: failed to render SVG", "error", err)
		return nil, fmt.Errorf("failed to render SVG to PNG: %w", err)
	}
	return out, nil
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("PngConverterCommand", NewPngConverterCommand); err != nil {
		panic(fmt.Sprintf("failed to register PngConverterCommand: %v", err))
	}
}

// svgDeclaredSize reads width and height from the root svg element. A viewBox
// alone is not treated as a pixel size.
func svgDeclaredSize(data []byte) (svgSize, bool) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Strict = false
	for {
		token, err := decoder.Token()
		if err != nil {
			return svgSize{}, false
		}
		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		if !strings.EqualFold(start.Name.Local, "svg") {
			return svgSize{}, false
		}
		var size svgSize
		for _, attr := range start.Attr {
			switch strings.ToLower(attr.Name.Local) {
			case "width":
				size.width, _ = parseSVGLength(attr.Value)
			case "height":
				size.height, _ = parseSVGLength(attr.Value)
			}
		}
		return size, size.valid()
	}
}

// parseSVGLength parses absolute lengths such as "120", "120px" or "12.5".
// Relative units are rejected.
func parseSVGLength(value string) (int, bool) {
	value = strings.TrimSpace(value)
	end := 0
	for end < len(value) && (value[end] == '.' || (value[end] >= '0' && value[end] <= '9')) {
		end++
	}
	if unit := strings.ToLower(value[end:]); unit != "" && unit != "px" {
		return 0, false
	}
	f, err := strconv.ParseFloat(value[:end], 64)
	if err != nil || f < 1 || math.IsInf(f, 0) {
		return 0, false
	}
	if f > math.MaxInt32 {
		f = math.MaxInt32
	}
	return int(math.Round(f)), true
}

// IsSVGData performs a lightweight detection of SVG content from raw bytes.
// It checks for "<svg" tag or SVG namespace in the initial portion of the data.
func IsSVGData(data []byte) bool {
	header := data[:min(len(data), 4096)]
	header = bytes.ToLower(bytes.TrimSpace(header))
	return bytes.Contains(header, []byte("<svg")) ||
		bytes.Contains(header, []byte("xmlns=\"http://www.w3.org/2000/svg\"")) ||
		bytes.Contains(header, []byte("xmlns='http://www.w3.org/2000/svg'"))
}

// renderSVGToPNG rasterizes svgData onto a white canvas of the given size.
func renderSVGToPNG(svgData []byte, targetW, targetH int) ([]byte, error) {
	if err := checkImageSize(targetW, targetH); err != nil {
		return nil, err
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svgData))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SVG: %w", err)
	}
	icon.SetTarget(0, 0, float64(targetW), float64(targetH))

	dst := createTargetCanvas(targetW, targetH, color.RGBA{255, 255, 255, 255})
	scanner := rasterx.NewScannerGV(targetW, targetH, dst, dst.Bounds())
	icon.Draw(rasterx.NewDasher(targetW, targetH, scanner), 1.0)

	out, err := encodePNG(dst)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rendered SVG as PNG: %w", err)
	}
	return out, nil
}
