// Package orientation turns an EXIF orientation code into the transform that
// displays an image upright, and renders it.
package orientation

import "golang.org/x/image/math/f64"

// Transform describes how to draw a width x height source so it appears
// upright: mirror horizontally when Flip is set, rotate clockwise by
// Rotation degrees, and draw the source at (X, Y) in the rotated space.
// Width and Height are the dimensions of the result.
type Transform struct {
	X           int
	Y           int
	Width       int
	Height      int
	Rotation    int
	Flip        bool
	Orientation int
}

// Resolve returns the transform for an orientation code. Codes outside 2..8
// leave the image as it is.
func Resolve(code, width, height int) Transform {
	t := Transform{
		Width:       width,
		Height:      height,
		Orientation: code,
	}

	switch code {
	case 3, 4:
		t.X, t.Y = -width, -height
		t.Rotation = 180
	case 5, 6:
		t.Width, t.Height = height, width
		t.Y = -height
		t.Rotation = 90
	case 7, 8:
		t.Width, t.Height = height, width
		t.X = -width
		t.Rotation = 270
	}

	switch code {
	case 2, 4, 5, 7:
		t.Flip = true
	}

	return t
}

// IsIdentity reports whether t leaves the image unchanged.
func (t Transform) IsIdentity() bool {
	return t.Rotation == 0 && !t.Flip
}

// Matrix returns the source to destination mapping of t: translate by
// (X, Y), rotate, then mirror across the destination width.
func (t Transform) Matrix() f64.Aff3 {
	var cos, sin float64
	switch t.Rotation {
	case 90:
		cos, sin = 0, 1
	case 180:
		cos, sin = -1, 0
	case 270:
		cos, sin = 0, -1
	default:
		cos, sin = 1, 0
	}

	x, y := float64(t.X), float64(t.Y)
	m := f64.Aff3{
		cos, -sin, cos*x - sin*y,
		sin, cos, sin*x + cos*y,
	}
	if t.Flip {
		m[0], m[1], m[2] = -m[0], -m[1], float64(t.Width)-m[2]
	}
	return m
}
