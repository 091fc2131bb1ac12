package page

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flatmapit/printscp/pkg/types"
)

func readyImageBox(uid string, position int) *types.ImageBox {
	return &types.ImageBox{
		SOPInstanceUID: uid,
		ImagePosition:  position,
		PixelData:      []byte{1, 2, 3, 4},
		Metadata: types.ImagePixelMetadata{
			Rows: 2, Columns: 2, SamplesPerPixel: 1, BitsAllocated: 8,
		},
	}
}

func fixedGraySource(w, h int) ImageSource {
	return func(box *types.ImageBox) (*types.Raster, error) {
		return &types.Raster{Width: w, Height: h, Gray: true, Pix: make([]byte, w*h), Stride: w}, nil
	}
}

func TestAssembleProducesPageSizedRaster(t *testing.T) {
	fb := &types.FilmBox{
		ImageDisplayFormat: `STANDARD\1,1`,
		FilmSizeID:         "8INX10IN",
	}
	images := []*types.ImageBox{readyImageBox("img-1", 1)}

	raster, err := Assemble(fb, images, fixedGraySource(4, 4), false)
	require.NoError(t, err)
	w, h := PageSize("8INX10IN", types.OrientationPortrait)
	assert.Equal(t, w, raster.Width)
	assert.Equal(t, h, raster.Height)
}

func TestAssembleUnreadyImageBoxRendersAsPlaceholderWithoutError(t *testing.T) {
	fb := &types.FilmBox{
		ImageDisplayFormat: `STANDARD\1,1`,
		FilmSizeID:         "8INX10IN",
	}
	notReady := &types.ImageBox{SOPInstanceUID: "img-1", ImagePosition: 1}
	images := []*types.ImageBox{notReady}

	raster, err := Assemble(fb, images, fixedGraySource(4, 4), false)
	require.NoError(t, err)
	assert.NotNil(t, raster)
}

func TestAssembleSourceErrorPropagates(t *testing.T) {
	fb := &types.FilmBox{
		ImageDisplayFormat: `STANDARD\1,1`,
		FilmSizeID:         "8INX10IN",
	}
	images := []*types.ImageBox{readyImageBox("img-1", 1)}
	failing := func(box *types.ImageBox) (*types.Raster, error) {
		return nil, assert.AnError
	}
	_, err := Assemble(fb, images, failing, false)
	assert.Error(t, err)
}

func TestAssembleMalformedDisplayFormatErrors(t *testing.T) {
	fb := &types.FilmBox{ImageDisplayFormat: "BOGUS", FilmSizeID: "8INX10IN"}
	_, err := Assemble(fb, nil, fixedGraySource(4, 4), false)
	assert.Error(t, err)
}

func TestPageSizeLandscapeSwapsDimensions(t *testing.T) {
	pw, ph := PageSize("8INX10IN", types.OrientationPortrait)
	lw, lh := PageSize("8INX10IN", types.OrientationLandscape)
	assert.Equal(t, pw, lh)
	assert.Equal(t, ph, lw)
}

func TestPageSizeUnknownFilmSizeFallsBackToA4(t *testing.T) {
	w, h := PageSize("UNKNOWN", types.OrientationPortrait)
	assert.Equal(t, a4Width, w)
	assert.Equal(t, a4Height, h)
}

func TestMagnificationForPrefersImageBoxOverFilmBox(t *testing.T) {
	box := &types.ImageBox{MagnificationType: types.MagnificationCubic}
	fb := &types.FilmBox{MagnificationType: types.MagnificationBilinear}
	assert.Equal(t, types.MagnificationCubic, magnificationFor(box, fb))

	boxNoOverride := &types.ImageBox{}
	assert.Equal(t, types.MagnificationBilinear, magnificationFor(boxNoOverride, fb))
}

func TestIntegerScaleFitRoundsDownToWholeNumber(t *testing.T) {
	// a 10x10 source in a 99x99 cell fits at scale 9, not 9.9
	assert.Equal(t, 9, integerScaleFit(10, 10, 99, 99))
}

func TestIntegerScaleFitNeverGoesBelowOne(t *testing.T) {
	// a source bigger than the cell still gets scale 1, never 0
	assert.Equal(t, 1, integerScaleFit(50, 50, 10, 10))
}

func TestIntegerScaleFitDegenerateSourceDimensionReturnsOne(t *testing.T) {
	assert.Equal(t, 1, integerScaleFit(0, 10, 100, 100))
	assert.Equal(t, 1, integerScaleFit(10, 0, 100, 100))
}

func TestReplicatePixelsProducesExactBlockReplicationForGray(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 2, 1))
	src.SetGray(0, 0, color.Gray{Y: 10})
	src.SetGray(1, 0, color.Gray{Y: 200})

	out := replicatePixels(src, 3)
	require.Equal(t, image.Rect(0, 0, 6, 3), out.Bounds())
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			assert.Equal(t, uint8(10), out.At(x, y).(color.Gray).Y)
		}
		for x := 3; x < 6; x++ {
			assert.Equal(t, uint8(200), out.At(x, y).(color.Gray).Y)
		}
	}
}

// drawImage with MagnificationReplicate must not produce the same
// output as MagnificationNone: REPLICATE fits by a whole-number scale
// and repeats pixel blocks, NONE resamples at the cell's arbitrary fit
// ratio (spec.md: REPLICATE is "nearest with integer scale").
func TestDrawImageReplicateDiffersFromNone(t *testing.T) {
	raster := &types.Raster{Width: 3, Height: 3, Gray: true, Stride: 3, Pix: []byte{
		0, 0, 0,
		0, 255, 0,
		0, 0, 0,
	}}
	rect := image.Rect(0, 0, 10, 10)

	none := image.NewRGBA(rect)
	draw.Draw(none, rect, image.White, image.Point{}, draw.Src)
	drawImage(none, rect, raster, types.MagnificationNone)

	replicate := image.NewRGBA(rect)
	draw.Draw(replicate, rect, image.White, image.Point{}, draw.Src)
	drawImage(replicate, rect, raster, types.MagnificationReplicate)

	assert.NotEqual(t, none.Pix, replicate.Pix)

	// REPLICATE must scale the 3x3 source by the integer factor that
	// fits the 10x10 cell: scale 3, giving a 9x9 block, not 10x10.
	scale := integerScaleFit(raster.Width, raster.Height, rect.Dx(), rect.Dy())
	assert.Equal(t, 3, scale)
}
