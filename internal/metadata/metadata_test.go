package metadata

import (
	"encoding/json"
	"testing"

	"github.com/ryoh827/imgmeta/internal/exif"
	"github.com/ryoh827/imgmeta/internal/iptc"
)

func TestPretty(t *testing.T) {
	md := &ImageMetadata{EXIF: exif.Directory{
		"Orientation":   exif.Uint(6),
		"Make":          exif.String("Canon"),
		"ExposureTime":  exif.Rational{Numerator: 1, Denominator: 100, Value: 0.01},
		"BitsPerSample": exif.Uints{8, 8, 8},
	}}

	want := "BitsPerSample : [3 values]\n" +
		"ExposureTime : 0.01 [1/100]\n" +
		"Make : Canon\n" +
		"Orientation : 6\n"
	if got := md.Pretty(); got != want {
		t.Fatalf("Pretty =\n%s\nwant\n%s", got, want)
	}
}

func TestAccessorsOnNil(t *testing.T) {
	var md *ImageMetadata

	if _, ok := md.Tag("Orientation"); ok {
		t.Fatalf("Tag on nil metadata")
	}
	if _, ok := md.Orientation(); ok {
		t.Fatalf("Orientation on nil metadata")
	}
	if len(md.AllTags()) != 0 || len(md.AllIPTCTags()) != 0 {
		t.Fatalf("expected empty copies")
	}
	if md.Pretty() != "" || md.Warnings() != nil {
		t.Fatalf("expected zero values")
	}
}

func TestAllTagsIsACopy(t *testing.T) {
	md := &ImageMetadata{
		EXIF: exif.Directory{"Make": exif.String("Canon")},
		IPTC: iptc.Fields{"keywords": {"a", "b"}},
	}

	tags := md.AllTags()
	tags["Make"] = exif.String("Nikon")
	fields := md.AllIPTCTags()
	fields["keywords"][0] = "z"

	if md.EXIF["Make"] != exif.String("Canon") || md.IPTC["keywords"][0] != "a" {
		t.Fatalf("metadata mutated through a copy: %#v", md)
	}
}

func TestJSON(t *testing.T) {
	md := &ImageMetadata{
		EXIF: exif.Directory{"Orientation": exif.Uint(6)},
		IPTC: iptc.Fields{"keywords": {"a", "b"}, "caption": {"c"}},
	}

	got, err := json.Marshal(md)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"exif":{"Orientation":6},"iptc":{"caption":"c","keywords":["a","b"]}}`
	if string(got) != want {
		t.Fatalf("json = %s, want %s", got, want)
	}
}

func TestJSONThumbnailBesideEXIF(t *testing.T) {
	md := &ImageMetadata{
		EXIF: exif.Directory{"Make": exif.String("Canon")},
		Thumbnail: &exif.Thumbnail{
			Tags:     exif.Directory{"Compression": exif.Uint(6)},
			MIMEType: "image/jpeg",
			Offset:   320,
			Length:   4,
			Data:     []byte{0xFF, 0xD8, 0xFF, 0xD9},
		},
		IPTC: iptc.Fields{},
	}

	got, err := json.Marshal(md)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"exif":{"Make":"Canon"},` +
		`"thumbnail":{"tags":{"Compression":6},"mimeType":"image/jpeg","offset":320,"length":4},` +
		`"iptc":{}}`
	if string(got) != want {
		t.Fatalf("json = %s, want %s", got, want)
	}
}
