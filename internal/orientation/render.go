package orientation

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	"github.com/ryoh827/imgmeta/internal/metadata"
	"github.com/ryoh827/imgmeta/internal/source"
)

const fallbackFileType = "image/png"

// Image is an image ready for display.
type Image struct {
	Data     []byte
	Width    int
	Height   int
	FileType string
	// Rendered is false when Data is the original input.
	Rendered  bool
	Transform Transform
	Metadata  *metadata.ImageMetadata
}

// Apply draws src into a new image according to t.
func Apply(src image.Image, t Transform) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, t.Width, t.Height))
	draw.NearestNeighbor.Transform(dst, t.Matrix(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// Renderer produces upright images. The zero value loads references through
// source.Default and re-encodes as JPEG.
type Renderer struct {
	Source  source.Source
	Options metadata.Options
}

func (r Renderer) logger() *slog.Logger {
	if r.Options.Logger == nil {
		return slog.Default()
	}
	return r.Options.Logger
}

func (r Renderer) loader() source.Source {
	if r.Source == nil {
		return source.Default()
	}
	return r.Source
}

// Orient loads ref and returns it upright. Loading and extraction errors are
// returned as is. When the orientation is absent or 1 the original bytes are
// returned untouched; when rendering fails the original is returned too.
func (r Renderer) Orient(ctx context.Context, ref string) (*Image, error) {
	data, md, err := metadata.ExtractSource(ctx, r.loader(), ref, r.Options)
	if err != nil {
		return nil, err
	}
	return r.orient(data, md), nil
}

// OrientData is Orient for an image already in memory.
func (r Renderer) OrientData(data []byte) (*Image, error) {
	md, err := metadata.Extract(data, r.Options)
	if err != nil {
		return nil, err
	}
	return r.orient(data, md), nil
}

func (r Renderer) orient(data []byte, md *metadata.ImageMetadata) *Image {
	width, height := dimensions(data, md)
	img := &Image{
		Data:     data,
		Width:    width,
		Height:   height,
		FileType: r.Options.MIMEType(),
		Metadata: md,
	}

	code, ok := md.Orientation()
	if !ok || code == 1 {
		img.Transform = Resolve(1, width, height)
		return img
	}

	img.Transform = Resolve(code, width, height)
	if img.Transform.IsIdentity() {
		return img
	}

	out, t, fileType, err := r.Render(data, code)
	if err != nil {
		r.logger().Warn("render oriented image, keeping original",
			slog.Int("orientation", code),
			slog.Any("error", err),
		)
		return img
	}

	img.Data = out
	img.Width, img.Height = t.Width, t.Height
	img.FileType = fileType
	img.Transform = t
	img.Rendered = true
	return img
}

// Render decodes data, applies the transform for code and encodes the result
// in the configured file type. Types imaging cannot encode fall back to PNG.
func (r Renderer) Render(data []byte, code int) ([]byte, Transform, string, error) {
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(false))
	if err != nil {
		return nil, Transform{}, "", fmt.Errorf("decode image: %w", err)
	}

	b := src.Bounds()
	t := Resolve(code, b.Dx(), b.Dy())
	dst := Apply(src, t)

	fileType := r.Options.MIMEType()
	format, err := formatOf(fileType)
	if err != nil {
		r.logger().Debug("unsupported file type, encoding png", slog.String("fileType", fileType))
		fileType = fallbackFileType
		format = imaging.PNG
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, dst, format, imaging.JPEGQuality(100)); err != nil {
		return nil, Transform{}, "", fmt.Errorf("encode %s: %w", format, err)
	}
	return buf.Bytes(), t, fileType, nil
}

func formatOf(fileType string) (imaging.Format, error) {
	_, subtype, _ := strings.Cut(fileType, "/")
	subtype, _, _ = strings.Cut(subtype, ";")
	return imaging.FormatFromExtension(strings.TrimSpace(subtype))
}

// dimensions reads the size from the image header and falls back to the
// EXIF ImageWidth and ImageHeight when the header reports none.
func dimensions(data []byte, md *metadata.ImageMetadata) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err == nil && cfg.Width > 0 && cfg.Height > 0 {
		return cfg.Width, cfg.Height
	}
	if w, h, ok := md.Dimensions(); ok {
		return w, h
	}
	return cfg.Width, cfg.Height
}
