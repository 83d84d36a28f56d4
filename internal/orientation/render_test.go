package orientation

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/ryoh827/imgmeta/internal/jpeg"
	"github.com/ryoh827/imgmeta/internal/jpegtest"
	"github.com/ryoh827/imgmeta/internal/metadata"
	"github.com/ryoh827/imgmeta/internal/source"
)

const (
	tagOrientation = 0x0112
	tagImageWidth  = 0x0100
	tagImageHeight = 0x0101
)

var (
	red  = color.NRGBA{R: 0xFF, A: 0xFF}
	blue = color.NRGBA{B: 0xFF, A: 0xFF}
)

func exifSegment(orientation uint16, width, height uint32) []byte {
	order := binary.BigEndian
	tiff := jpegtest.TIFF{
		Order: order,
		IFD0: jpegtest.IFD{Entries: []jpegtest.Entry{
			jpegtest.LongEntry(order, tagImageWidth, width),
			jpegtest.LongEntry(order, tagImageHeight, height),
			jpegtest.ShortEntry(order, tagOrientation, orientation),
		}},
	}
	return jpegtest.ExifSegment(tiff.Bytes())
}

// buildPhoto encodes a 64x32 JPEG whose left half is red and right half is
// blue, tagged with the given orientation.
func buildPhoto(t *testing.T, orientation uint16) []byte {
	t.Helper()

	img := imaging.New(64, 32, blue)
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.SetNRGBA(x, y, red)
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(100)); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	encoded := buf.Bytes()

	out := append([]byte{}, encoded[:2]...)
	out = append(out, exifSegment(orientation, 64, 32)...)
	return append(out, encoded[2:]...)
}

func assertColor(t *testing.T, img image.Image, x, y int, want color.NRGBA) {
	t.Helper()

	got := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	near := func(a, b uint8) bool {
		d := int(a) - int(b)
		return d > -48 && d < 48
	}
	if !near(got.R, want.R) || !near(got.G, want.G) || !near(got.B, want.B) {
		t.Fatalf("pixel (%d,%d) = %v, want about %v", x, y, got, want)
	}
}

func TestOrientDataRotates(t *testing.T) {
	data := buildPhoto(t, 6)

	r := Renderer{Options: metadata.Options{FileType: "image/png"}}
	out, err := r.OrientData(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Rendered {
		t.Fatalf("expected a rendered image")
	}
	if out.Width != 32 || out.Height != 64 || out.FileType != "image/png" {
		t.Fatalf("result = %dx%d %s", out.Width, out.Height, out.FileType)
	}

	img, err := imaging.Decode(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if img.Bounds().Dx() != 32 || img.Bounds().Dy() != 64 {
		t.Fatalf("bounds = %v", img.Bounds())
	}
	// a clockwise quarter turn moves the left half to the top
	assertColor(t, img, 16, 8, red)
	assertColor(t, img, 16, 56, blue)

	if code, _ := out.Metadata.Orientation(); code != 6 {
		t.Fatalf("metadata orientation = %d", code)
	}
}

func TestOrientDataKeepsUprightImages(t *testing.T) {
	for _, code := range []uint16{1, 0} {
		data := buildPhoto(t, code)

		out, err := Renderer{}.OrientData(data)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.Rendered || &out.Data[0] != &data[0] {
			t.Fatalf("orientation %d: original bytes must be returned untouched", code)
		}
		if out.Width != 64 || out.Height != 32 || !out.Transform.IsIdentity() {
			t.Fatalf("orientation %d: result = %+v", code, out.Transform)
		}
	}

	noExif := jpegtest.JPEG(jpegtest.SOF0)
	out, err := Renderer{}.OrientData(noExif)
	if err != nil || out.Rendered || !bytes.Equal(out.Data, noExif) {
		t.Fatalf("image without exif: %+v, %v", out, err)
	}
}

func TestOrientDataFallsBackOnRenderFailure(t *testing.T) {
	// no frame data: the header cannot be decoded either
	data := jpegtest.JPEG(exifSegment(6, 4000, 3000))

	out, err := Renderer{}.OrientData(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Rendered || !bytes.Equal(out.Data, data) {
		t.Fatalf("expected the original image")
	}
	if out.Width != 4000 || out.Height != 3000 {
		t.Fatalf("dimensions = %dx%d, want exif fallback 4000x3000", out.Width, out.Height)
	}
	want := Transform{Y: -3000, Width: 3000, Height: 4000, Rotation: 90, Orientation: 6}
	if out.Transform != want {
		t.Fatalf("transform = %+v, want %+v", out.Transform, want)
	}
}

func TestRenderUnsupportedFileTypeEncodesPNG(t *testing.T) {
	r := Renderer{Options: metadata.Options{FileType: "image/webp"}}

	out, tr, fileType, err := r.Render(buildPhoto(t, 8), 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fileType != "image/png" || tr.Rotation != 270 {
		t.Fatalf("fileType = %s, transform = %+v", fileType, tr)
	}
	if _, format, err := image.DecodeConfig(bytes.NewReader(out)); err != nil || format != "png" {
		t.Fatalf("output format = %q, %v", format, err)
	}
}

func TestOrient(t *testing.T) {
	ref := source.DataURL(buildPhoto(t, 3), "image/jpeg")

	out, err := Renderer{}.Orient(context.Background(), ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Rendered || out.Width != 64 || out.Height != 32 || out.FileType != metadata.DefaultFileType {
		t.Fatalf("result = %dx%d %s rendered=%v", out.Width, out.Height, out.FileType, out.Rendered)
	}

	img, err := imaging.Decode(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("decode result: %v", err)
	}
	// a half turn moves the left half to the right
	assertColor(t, img, 56, 16, red)
	assertColor(t, img, 8, 16, blue)
}

func TestOrientPropagatesErrors(t *testing.T) {
	cases := []struct {
		name string
		ref  string
		want error
	}{
		{"not a jpeg", source.DataURL([]byte("GIF89a"), "image/gif"), jpeg.ErrNotAJpeg},
		{"empty reference", "", source.ErrInvalidImageFormat},
		{"unsupported scheme", "blob:https://example.com/1", source.ErrInvalidImageFormat},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := (Renderer{}).Orient(context.Background(), tc.ref); !errors.Is(err, tc.want) {
				t.Fatalf("expected error %v, got %v", tc.want, err)
			}
		})
	}
}
