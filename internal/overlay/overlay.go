// Package overlay draws hand detections onto frames and images.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"gocv.io/x/gocv"

	"github.com/ayusman/fingers/internal/detector"
)

const (
	// Thickness of box outlines in pixels.
	Thickness = 2
	// KeypointRadius is the radius of keypoint dots in pixels.
	KeypointRadius = 3
)

var (
	keypointColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	labelColor    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Color maps a confidence in [0,1] onto a red to green hue.
func Color(confidence float32) color.RGBA {
	c := float64(confidence)
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	r, g, b := colorful.Hsv(120*c, 0.85, 0.95).Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// Label is the caption drawn above a detection.
func Label(d detector.Detection) string {
	return fmt.Sprintf("hand %.0f%%", d.Confidence*100)
}

// pixelRect scales a normalized box to a w x h frame.
func pixelRect(b detector.Box, w, h int) image.Rectangle {
	b = b.Clamp()
	return image.Rect(
		int(b.XMin*float32(w)), int(b.YMin*float32(h)),
		int(b.XMax*float32(w)), int(b.YMax*float32(h)),
	)
}

func pixelPoint(p detector.Point, w, h int) image.Point {
	return image.Pt(int(p.X*float32(w)), int(p.Y*float32(h)))
}

// labelOrigin keeps the caption inside the frame when the box touches the
// top edge.
func labelOrigin(r image.Rectangle) image.Point {
	y := r.Min.Y - 4
	if y < 12 {
		y = r.Min.Y + 14
	}
	return image.Pt(r.Min.X, y)
}

// DrawMat draws dets onto mat in place.
func DrawMat(mat *gocv.Mat, dets []detector.Detection) {
	if mat == nil || mat.Empty() {
		return
	}
	w, h := mat.Cols(), mat.Rows()

	for _, d := range dets {
		c := Color(d.Confidence)
		r := pixelRect(d.Box, w, h)
		gocv.Rectangle(mat, r, c, Thickness)
		for _, kp := range d.Keypoints {
			gocv.Circle(mat, pixelPoint(kp, w, h), KeypointRadius, keypointColor, -1)
		}
		gocv.PutText(mat, Label(d), labelOrigin(r), gocv.FontHersheyPlain, 1.1, c, Thickness)
	}
}

// DrawImage returns a copy of img with dets drawn on it.
func DrawImage(img image.Image, dets []detector.Detection) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(out, out.Bounds(), img, bounds.Min, draw.Src)

	w, h := bounds.Dx(), bounds.Dy()
	for _, d := range dets {
		c := Color(d.Confidence)
		r := pixelRect(d.Box, w, h)
		strokeRect(out, r, c, Thickness)
		for _, kp := range d.Keypoints {
			p := pixelPoint(kp, w, h)
			fillRect(out, image.Rect(p.X-KeypointRadius, p.Y-KeypointRadius, p.X+KeypointRadius+1, p.Y+KeypointRadius+1), keypointColor)
		}
		drawLabel(out, labelOrigin(r), Label(d), c)
	}
	return out
}

func fillRect(dst *image.RGBA, r image.Rectangle, c color.RGBA) {
	draw.Draw(dst, r.Intersect(dst.Bounds()), image.NewUniform(c), image.Point{}, draw.Src)
}

func strokeRect(dst *image.RGBA, r image.Rectangle, c color.RGBA, t int) {
	fillRect(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t), c)
	fillRect(dst, image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y), c)
	fillRect(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y), c)
	fillRect(dst, image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y), c)
}

// drawLabel writes text on a filled background of the detection colour.
func drawLabel(dst *image.RGBA, at image.Point, text string, bg color.RGBA) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	fillRect(dst, image.Rect(at.X, at.Y-face.Ascent, at.X+width+2, at.Y+face.Descent), bg)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(labelColor),
		Face: face,
		Dot:  fixed.P(at.X+1, at.Y),
	}
	d.DrawString(text)
}

// Save writes img to path, choosing PNG or JPEG from the extension.
func Save(path string, img image.Image) error {
	var enc imgio.Encoder
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		enc = imgio.PNGEncoder()
	case ".jpg", ".jpeg":
		enc = imgio.JPEGEncoder(90)
	default:
		return errors.Errorf("unsupported image extension %q", filepath.Ext(path))
	}
	return errors.Wrapf(imgio.Save(path, img, enc), "save %s", path)
}

// Load reads an image file.
func Load(path string) (image.Image, error) {
	img, err := imgio.Open(path)
	return img, errors.Wrapf(err, "open %s", path)
}
