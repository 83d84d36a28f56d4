package exif

import (
	"fmt"
	"strings"

	"github.com/ryoh827/imgmeta/internal/cursor"
	"github.com/ryoh827/imgmeta/internal/tags"
)

var versionTags = []string{"ExifVersion", "FlashpixVersion"}

// normalizeExif replaces raw codes of the Exif sub-directory with their
// readable form. An enumerated tag whose code has no entry is removed.
func normalizeExif(dir Directory) {
	for _, name := range tags.Enumerated {
		value, ok := dir[name]
		if !ok {
			continue
		}
		code, isUint := value.(Uint)
		text, known := tags.Lookup(name, uint32(code))
		if !isUint || !known {
			delete(dir, name)
			continue
		}
		dir[name] = String(text)
	}

	for _, name := range versionTags {
		if raw, ok := dir[name].(Bytes); ok && len(raw) >= 4 {
			dir[name] = String(cursor.Latin1(raw[:4]))
		}
	}

	if raw, ok := dir["ComponentsConfiguration"].(Bytes); ok {
		var b strings.Builder
		for i := 0; i < len(raw) && i < 4; i++ {
			b.WriteString(tags.Components[uint32(raw[i])])
		}
		dir["ComponentsConfiguration"] = String(b.String())
	}
}

func normalizeGPS(dir Directory) {
	if raw, ok := dir["GPSVersionID"].(Bytes); ok && len(raw) >= 4 {
		dir["GPSVersionID"] = String(fmt.Sprintf("%d.%d.%d.%d", raw[0], raw[1], raw[2], raw[3]))
	}
}
