package pixel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flatmapit/printscp/pkg/types"
)

func grayBox(pixelData []byte, meta types.ImagePixelMetadata) *types.ImageBox {
	return &types.ImageBox{PixelData: pixelData, Metadata: meta}
}

func TestDecodeMonochrome2PassesThroughAfterRescale(t *testing.T) {
	meta := types.ImagePixelMetadata{
		Rows: 1, Columns: 4, SamplesPerPixel: 1, BitsAllocated: 8, BitsStored: 8,
		PhotometricInterpretation: "MONOCHROME2",
	}
	box := grayBox([]byte{0, 85, 170, 255}, meta)
	raster, err := Decode(box, nil)
	require.NoError(t, err)
	assert.True(t, raster.Gray)
	assert.Equal(t, []byte{0, 85, 170, 255}, raster.Pix)
}

func TestDecodeMonochrome1InvertsNormalSamples(t *testing.T) {
	meta := types.ImagePixelMetadata{
		Rows: 1, Columns: 2, SamplesPerPixel: 1, BitsAllocated: 8, BitsStored: 8,
		PhotometricInterpretation: "MONOCHROME1",
	}
	// raw 0 and 255 invert to 255 and 0, then rescale (min=0,max=255) is
	// already the full range so pixel values are unchanged by rescale.
	box := grayBox([]byte{0, 255}, meta)
	raster, err := Decode(box, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{255, 0}, raster.Pix)
}

// TestDecodeMonochrome1AllZeroInputRescalesToWhite guards the degenerate
// case: an all-zero MONOCHROME1 source inverts to a uniform non-zero
// value, which must rescale to uniform white (255), not collapse to
// black the way a naive "uniform input -> zero output" rule would.
func TestDecodeMonochrome1AllZeroInputRescalesToWhite(t *testing.T) {
	meta := types.ImagePixelMetadata{
		Rows: 1, Columns: 3, SamplesPerPixel: 1, BitsAllocated: 8, BitsStored: 8,
		PhotometricInterpretation: "MONOCHROME1",
	}
	box := grayBox([]byte{0, 0, 0}, meta)
	raster, err := Decode(box, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{255, 255, 255}, raster.Pix)
}

func TestDecodeAllZeroMonochrome2RescalesToUniformZero(t *testing.T) {
	meta := types.ImagePixelMetadata{
		Rows: 1, Columns: 3, SamplesPerPixel: 1, BitsAllocated: 8, BitsStored: 8,
		PhotometricInterpretation: "MONOCHROME2",
	}
	box := grayBox([]byte{0, 0, 0}, meta)
	raster, err := Decode(box, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0}, raster.Pix)
}

func TestDecodeYBRFullConvertsToRGB(t *testing.T) {
	meta := types.ImagePixelMetadata{
		Rows: 1, Columns: 1, SamplesPerPixel: 3, BitsAllocated: 8, BitsStored: 8,
		PhotometricInterpretation: "YBR_FULL",
	}
	// Y=255, Cb=128, Cr=128 is pure white in YCbCr.
	box := grayBox([]byte{255, 128, 128}, meta)
	raster, err := Decode(box, nil)
	require.NoError(t, err)
	assert.False(t, raster.Gray)
	assert.Equal(t, []byte{255, 255, 255}, raster.Pix)
}

func TestDecodePlanarConfigurationDeinterleaves(t *testing.T) {
	meta := types.ImagePixelMetadata{
		Rows: 1, Columns: 2, SamplesPerPixel: 3, BitsAllocated: 8, BitsStored: 8,
		PhotometricInterpretation: "RGB", PlanarConfiguration: 1,
	}
	// planar: R R, G G, B B -> pixel0=(10,20,30) pixel1=(40,50,60)
	box := grayBox([]byte{10, 40, 20, 50, 30, 60}, meta)
	raster, err := Decode(box, nil)
	require.NoError(t, err)
	// values 10..60 rescale across the full observed range (min10,max60).
	assert.Len(t, raster.Pix, 6)
}

func TestDecodeSignedPixelRepresentationBiasesToUnsigned(t *testing.T) {
	meta := types.ImagePixelMetadata{
		Rows: 1, Columns: 1, SamplesPerPixel: 1, BitsAllocated: 8, BitsStored: 8,
		PixelRepresentation:       1,
		PhotometricInterpretation: "MONOCHROME2",
	}
	box := grayBox([]byte{0x00}, meta)
	raster, err := Decode(box, nil)
	require.NoError(t, err)
	require.Len(t, raster.Pix, 1)
}

func TestDecodeUnsupportedPhotometricInterpretation(t *testing.T) {
	meta := types.ImagePixelMetadata{
		Rows: 1, Columns: 1, SamplesPerPixel: 1, BitsAllocated: 8, BitsStored: 8,
		PhotometricInterpretation: "BOGUS",
	}
	box := grayBox([]byte{0}, meta)
	_, err := Decode(box, nil)
	require.Error(t, err)
	var unsupported *UnsupportedPixelEncodingError
	assert.ErrorAs(t, err, &unsupported)
}

func TestDecodeUndersizedPixelDataZeroPads(t *testing.T) {
	meta := types.ImagePixelMetadata{
		Rows: 1, Columns: 4, SamplesPerPixel: 1, BitsAllocated: 8, BitsStored: 8,
		PhotometricInterpretation: "MONOCHROME2",
	}
	box := grayBox([]byte{10, 20}, meta) // only 2 of 4 expected samples
	raster, err := Decode(box, nil)
	require.NoError(t, err)
	assert.Len(t, raster.Pix, 4)
}

func TestDecodeWindowingClampsOutsideRange(t *testing.T) {
	center, width := 128.0, 64.0
	meta := types.ImagePixelMetadata{
		Rows: 1, Columns: 3, SamplesPerPixel: 1, BitsAllocated: 8, BitsStored: 8,
		PhotometricInterpretation: "MONOCHROME2",
		WindowCenter:              &center,
		WindowWidth:               &width,
	}
	box := grayBox([]byte{0, 128, 255}, meta)
	raster, err := Decode(box, nil)
	require.NoError(t, err)
	assert.Equal(t, byte(0), raster.Pix[0])
	assert.Equal(t, byte(255), raster.Pix[2])
}
