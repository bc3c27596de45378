package preprocess

import (
	"image"
	"image/color"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// twoByTwo is an RGBA image: red, green / blue, white.
func twoByTwo() []byte {
	return []byte{
		255, 0, 0, 255, 0, 255, 0, 255,
		0, 0, 255, 255, 255, 255, 255, 255,
	}
}

func TestOptions_Validate(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())
	require.NoError(t, Options{Layout: LayoutHWC, Normalization: MinusOneToOne}.Validate())

	err := Options{Layout: "nchw", Normalization: ZeroToOne}.Validate()
	assert.True(t, errors.Is(err, ErrUnsupported))

	err = Options{Layout: LayoutCHW, Normalization: "imagenet"}.Validate()
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestPlacement(t *testing.T) {
	p := Placement{Canvas: 256, Width: 256, Height: 192, Left: 0, Top: 32}
	require.NoError(t, p.Validate())
	assert.Equal(t, 0, p.Right())
	assert.Equal(t, 32, p.Bottom())

	bad := []Placement{
		{Canvas: 0, Width: 1, Height: 1},
		{Canvas: 10, Width: 0, Height: 5},
		{Canvas: 10, Width: 8, Height: 8, Left: 3},
		{Canvas: 10, Width: 8, Height: 8, Top: -1},
	}
	for _, b := range bad {
		assert.True(t, errors.Is(b.Validate(), ErrInvalidPlacement), "%+v", b)
	}
}

func TestPack_CHW(t *testing.T) {
	out, err := Pack(twoByTwo(), 2, 4, 8, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, out, 12)

	// Red plane, green plane, blue plane.
	want := []float32{
		1, 0, 0, 1,
		0, 1, 0, 1,
		0, 0, 1, 1,
	}
	assert.InDeltaSlice(t, want, out, 1e-6)
}

func TestPack_HWC(t *testing.T) {
	out, err := Pack(twoByTwo(), 2, 4, 8, Options{Layout: LayoutHWC, Normalization: ZeroToOne})
	require.NoError(t, err)

	want := []float32{
		1, 0, 0, 0, 1, 0,
		0, 0, 1, 1, 1, 1,
	}
	assert.InDeltaSlice(t, want, out, 1e-6)
}

func TestPack_MinusOneToOne(t *testing.T) {
	pix := []byte{0, 128, 255}
	out, err := Pack(pix, 1, 3, 3, Options{Layout: LayoutCHW, Normalization: MinusOneToOne})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{-1, 0.00392, 1}, out, 1e-4)
}

func TestPack_RowStride(t *testing.T) {
	// Two RGB pixels per row plus two bytes of row padding.
	pix := []byte{
		10, 20, 30, 40, 50, 60, 99, 99,
		70, 80, 90, 100, 110, 120, 99, 99,
	}
	out, err := Pack(pix, 2, 3, 8, Options{Layout: LayoutHWC, Normalization: ZeroToOne})
	require.NoError(t, err)
	assert.InDelta(t, 70.0/255, out[6], 1e-6)
	assert.InDelta(t, 120.0/255, out[11], 1e-6)
}

func TestPack_ShortBuffer(t *testing.T) {
	_, err := Pack(make([]byte, 10), 2, 4, 8, DefaultOptions())
	assert.True(t, errors.Is(err, ErrInvalidPlacement))

	_, err = Pack(make([]byte, 16), 2, 2, 4, DefaultOptions())
	assert.True(t, errors.Is(err, ErrInvalidPlacement))
}

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestFromImage_PadsWithBlack(t *testing.T) {
	img := solid(40, 20, color.RGBA{R: 255, A: 255})
	p := Placement{Canvas: 8, Width: 8, Height: 4, Left: 0, Top: 2}

	out, err := FromImage(img, p, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, out, 3*8*8)

	plane := 64
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			i := y*8 + x
			inside := y >= 2 && y < 6
			if inside {
				assert.InDelta(t, 1, out[i], 0.02, "red at %d,%d", x, y)
			} else {
				assert.Equal(t, float32(0), out[i], "padding at %d,%d", x, y)
			}
			assert.InDelta(t, 0, out[plane+i], 0.02)
			assert.InDelta(t, 0, out[2*plane+i], 0.02)
		}
	}
}

func TestFromImage_Errors(t *testing.T) {
	p := Placement{Canvas: 8, Width: 8, Height: 8}

	_, err := FromImage(nil, p, DefaultOptions())
	assert.True(t, errors.Is(err, ErrEmptyImage))

	_, err = FromImage(image.NewRGBA(image.Rect(0, 0, 0, 0)), p, DefaultOptions())
	assert.True(t, errors.Is(err, ErrEmptyImage))

	_, err = FromImage(solid(4, 4, color.White), Placement{Canvas: 8, Width: 9, Height: 8}, DefaultOptions())
	assert.True(t, errors.Is(err, ErrInvalidPlacement))

	_, err = FromImage(solid(4, 4, color.White), p, Options{Layout: "planar"})
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestFromMat_ConvertsBGR(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping OpenCV test in short mode")
	}

	// Pure blue in BGR order.
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), 30, 60, gocv.MatTypeCV8UC3)
	defer mat.Close()

	p := Placement{Canvas: 16, Width: 16, Height: 8, Left: 0, Top: 4}
	out, err := FromMat(&mat, p, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, out, 3*16*16)

	plane := 16 * 16
	centre := 8*16 + 8
	assert.InDelta(t, 0, out[centre], 0.02, "red")
	assert.InDelta(t, 0, out[plane+centre], 0.02, "green")
	assert.InDelta(t, 1, out[2*plane+centre], 0.02, "blue")

	// Top padding row is black.
	assert.Equal(t, float32(0), out[2*plane])
}

func TestFromMat_Empty(t *testing.T) {
	_, err := FromMat(nil, Placement{Canvas: 8, Width: 8, Height: 8}, DefaultOptions())
	assert.True(t, errors.Is(err, ErrEmptyImage))
}
