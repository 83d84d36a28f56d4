package metadata

import (
	"context"
	"encoding/binary"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/ryoh827/imgmeta/internal/exif"
	"github.com/ryoh827/imgmeta/internal/jpeg"
	"github.com/ryoh827/imgmeta/internal/jpegtest"
	"github.com/ryoh827/imgmeta/internal/source"
)

const (
	tagOrientation  = 0x0112
	tagMake         = 0x010F
	tagImageWidth   = 0x0100
	tagImageHeight  = 0x0101
	tagExifPointer  = 0x8769
	tagExposureTime = 0x829A
	tagWhiteBalance = 0xA403

	datasetKeywords = 0x19
	datasetCaption  = 0x78
)

const xmpPacket = `<x:xmpmeta xmlns:x="adobe:ns:meta/"><rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">` +
	`<rdf:Description rdf:about="" tiff:Make="Canon"/></rdf:RDF></x:xmpmeta>`

func exifSegment(orientation uint16) []byte {
	order := binary.LittleEndian
	tiff := jpegtest.TIFF{
		Order: order,
		IFD0: jpegtest.IFD{
			Entries: []jpegtest.Entry{
				jpegtest.ASCIIEntry(tagMake, "TestMake"),
				jpegtest.ShortEntry(order, tagOrientation, orientation),
				jpegtest.LongEntry(order, tagImageWidth, 4000),
				jpegtest.LongEntry(order, tagImageHeight, 3000),
			},
			Sub: map[uint16]*jpegtest.IFD{
				tagExifPointer: {Entries: []jpegtest.Entry{
					jpegtest.RationalEntry(order, tagExposureTime, 1, 100),
					jpegtest.ShortEntry(order, tagWhiteBalance, 0),
				}},
			},
		},
	}
	return jpegtest.ExifSegment(tiff.Bytes())
}

func TestExtract(t *testing.T) {
	data := jpegtest.JPEG(
		exifSegment(6),
		jpegtest.IRBSegment(
			jpegtest.IPTCRecord{Dataset: datasetKeywords, Value: "mountain"},
			jpegtest.IPTCRecord{Dataset: datasetKeywords, Value: "snow"},
			jpegtest.IPTCRecord{Dataset: datasetCaption, Value: "Summit"},
		),
		jpegtest.XMPSegment(xmpPacket),
		jpegtest.SOF0,
	)

	md, err := Extract(data, Options{EnableXMP: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := md.Warnings(); err != nil {
		t.Fatalf("unexpected warnings: %v", err)
	}

	if code, ok := md.Orientation(); !ok || code != 6 {
		t.Fatalf("Orientation = %d, %v", code, ok)
	}
	if v, _ := md.Tag("WhiteBalance"); v != exif.String("Auto white balance") {
		t.Fatalf("WhiteBalance = %#v", v)
	}
	if w, h, ok := md.Dimensions(); !ok || w != 4000 || h != 3000 {
		t.Fatalf("Dimensions = %d, %d, %v", w, h, ok)
	}

	keywords, ok := md.IPTCTag("keywords")
	if !ok || !reflect.DeepEqual(keywords, []string{"mountain", "snow"}) {
		t.Fatalf("keywords = %#v", keywords)
	}

	root, ok := md.XMP["x:xmpmeta"].(map[string]any)
	if !ok {
		t.Fatalf("xmp = %#v", md.XMP)
	}
	rdf := root["rdf:RDF"].(map[string]any)
	desc := rdf["rdf:Description"].(map[string]any)
	if desc["tiff:Make"] != "Canon" {
		t.Fatalf("rdf:Description = %#v", desc)
	}
}

func TestExtractXMPIsOptIn(t *testing.T) {
	data := jpegtest.JPEG(jpegtest.XMPSegment(xmpPacket))

	md, err := Extract(data, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md.XMP != nil {
		t.Fatalf("xmp decoded without EnableXMP: %#v", md.XMP)
	}
}

func TestExtractWithoutMetadata(t *testing.T) {
	md, err := Extract(jpegtest.JPEG(jpegtest.SOF0), Options{EnableXMP: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(md.EXIF) != 0 || len(md.IPTC) != 0 || md.XMP != nil || md.Thumbnail != nil {
		t.Fatalf("expected empty metadata, got %#v", md)
	}
	if md.Warnings() != nil {
		t.Fatalf("unexpected warnings: %v", md.Warnings())
	}
	if _, ok := md.Orientation(); ok {
		t.Fatalf("orientation must be absent")
	}
}

func TestExtractNotAJpeg(t *testing.T) {
	_, err := Extract([]byte("\x89PNG\r\n\x1a\n"), Options{})
	if !errors.Is(err, jpeg.ErrNotAJpeg) {
		t.Fatalf("expected ErrNotAJpeg, got %v", err)
	}
}

func TestExtractMalformedMarkerKeepsIPTC(t *testing.T) {
	data := jpegtest.JPEG(
		jpegtest.Segment(0xE0, []byte("JFIF\x00")),
		[]byte{0x00, 0x00},
		exifSegment(6),
		jpegtest.IRBSegment(jpegtest.IPTCRecord{Dataset: datasetCaption, Value: "Summit"}),
	)

	md, err := Extract(data, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(md.EXIF) != 0 {
		t.Fatalf("exif must be empty, got %#v", md.EXIF)
	}
	if !errors.Is(md.Warnings(), jpeg.ErrMalformedMarker) {
		t.Fatalf("warnings = %v, want malformed marker", md.Warnings())
	}
	if caption, _ := md.IPTCTag("caption"); !reflect.DeepEqual(caption, []string{"Summit"}) {
		t.Fatalf("caption = %#v", caption)
	}
}

func TestExtractBrokenXMPIsAWarning(t *testing.T) {
	broken := `<x:xmpmeta xmlns:x="adobe:ns:meta/"><rdf:RDF></x:xmpmeta>`
	data := jpegtest.JPEG(exifSegment(1), jpegtest.XMPSegment(broken))

	md, err := Extract(data, Options{EnableXMP: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md.XMP != nil {
		t.Fatalf("xmp = %#v, want nil", md.XMP)
	}
	if md.Warnings() == nil || !strings.Contains(md.Warnings().Error(), "xmp:") {
		t.Fatalf("warnings = %v, want xmp failure", md.Warnings())
	}
	if code, ok := md.Orientation(); !ok || code != 1 {
		t.Fatalf("Orientation = %d, %v", code, ok)
	}
}

func TestExtractSource(t *testing.T) {
	data := jpegtest.JPEG(exifSegment(3))
	ref := source.DataURL(data, "image/jpeg")

	loaded, md, err := ExtractSource(context.Background(), source.Default(), ref, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(loaded) != string(data) {
		t.Fatalf("loaded bytes differ")
	}
	if code, _ := md.Orientation(); code != 3 {
		t.Fatalf("Orientation = %d", code)
	}

	_, _, err = ExtractSource(context.Background(), source.Default(), "ftp://example.com/a.jpg", Options{})
	if !errors.Is(err, source.ErrInvalidImageFormat) {
		t.Fatalf("expected ErrInvalidImageFormat, got %v", err)
	}
}
