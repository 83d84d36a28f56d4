package metadata

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/ryoh827/imgmeta/internal/exif"
	"github.com/ryoh827/imgmeta/internal/iptc"
)

// ImageMetadata is the metadata of one image. It is not modified after
// Extract returns.
type ImageMetadata struct {
	EXIF      exif.Directory  `json:"exif"`
	Thumbnail *exif.Thumbnail `json:"thumbnail,omitempty"`
	IPTC      iptc.Fields     `json:"iptc"`
	XMP       map[string]any  `json:"xmp,omitempty"`

	warnings error
}

// Warnings reports why a block was left empty, or nil.
func (md *ImageMetadata) Warnings() error {
	if md == nil {
		return nil
	}
	return md.warnings
}

// Tag returns the EXIF value named name.
func (md *ImageMetadata) Tag(name string) (exif.Value, bool) {
	if md == nil {
		return nil, false
	}
	v, ok := md.EXIF[name]
	return v, ok
}

// IPTCTag returns the values of the IPTC field name.
func (md *ImageMetadata) IPTCTag(name string) ([]string, bool) {
	if md == nil {
		return nil, false
	}
	values, ok := md.IPTC[name]
	return slices.Clone(values), ok
}

// AllTags returns a copy of the EXIF directory.
func (md *ImageMetadata) AllTags() exif.Directory {
	if md == nil {
		return exif.Directory{}
	}
	return maps.Clone(md.EXIF)
}

// AllIPTCTags returns a copy of the IPTC fields.
func (md *ImageMetadata) AllIPTCTags() iptc.Fields {
	out := iptc.Fields{}
	if md == nil {
		return out
	}
	for name, values := range md.IPTC {
		out[name] = slices.Clone(values)
	}
	return out
}

// Orientation returns the EXIF orientation code.
func (md *ImageMetadata) Orientation() (int, bool) {
	v, ok := md.Tag("Orientation")
	if !ok {
		return 0, false
	}
	code, ok := v.(exif.Uint)
	if !ok {
		return 0, false
	}
	return int(code), true
}

// Dimensions returns the EXIF ImageWidth and ImageHeight.
func (md *ImageMetadata) Dimensions() (width, height int, ok bool) {
	w, okW := md.uintTag("ImageWidth")
	h, okH := md.uintTag("ImageHeight")
	if !okW || !okH {
		return 0, 0, false
	}
	return w, h, true
}

func (md *ImageMetadata) uintTag(name string) (int, bool) {
	v, ok := md.Tag(name)
	if !ok {
		return 0, false
	}
	n, ok := v.(exif.Uint)
	return int(n), ok
}

// Pretty renders one "name : value" line per EXIF tag, sorted by name.
func (md *ImageMetadata) Pretty() string {
	if md == nil || len(md.EXIF) == 0 {
		return ""
	}

	names := make([]string, 0, len(md.EXIF))
	for name := range md.EXIF {
		names = append(names, name)
	}
	slices.Sort(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "%s : %s\n", name, exif.Format(md.EXIF[name]))
	}
	return b.String()
}
