// Package pixel implements the pixel pipeline (4.E): it turns the raw
// bytes and metadata an Image Box carries into a normalized 8-bit
// raster, generalizing the teacher's internal/export/exporter.go manual
// unpack-and-rescale loop to the full set of photometric interpretations
// a Print SCP client may send.
package pixel

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/flatmapit/printscp/pkg/types"
)

// UnsupportedPixelEncodingError is returned for a photometric
// interpretation this pipeline cannot decode (4.E).
type UnsupportedPixelEncodingError struct {
	Photometric string
}

func (e *UnsupportedPixelEncodingError) Error() string {
	return fmt.Sprintf("pixel: unsupported photometric interpretation %q", e.Photometric)
}

// Decode normalizes box's pixel data and metadata into a Raster,
// following the five steps of 4.E: unpack, signed->unsigned fixup,
// photometric fixup, VOI LUT/windowing rescale, downcast to 8 bits.
func Decode(box *types.ImageBox, log *logrus.Entry) (*types.Raster, error) {
	meta := box.Metadata
	samples, err := unpack(box.PixelData, meta, log)
	if err != nil {
		return nil, err
	}

	if meta.PixelRepresentation == 1 {
		bias := uint32(1) << uint(meta.BitsStored-1)
		for i, v := range samples {
			samples[i] = v + bias
		}
	}

	switch meta.PhotometricInterpretation {
	case "", "MONOCHROME2":
		// pass through
	case "MONOCHROME1":
		maxVal := uint32(1)<<uint(meta.BitsStored) - 1
		for i, v := range samples {
			samples[i] = maxVal - v
		}
	case "RGB":
		// pass through
	case "YBR_FULL", "YBR_FULL_422":
		ybrToRGB(samples, meta)
	case "PALETTE COLOR":
		// No LUT is carried in this service's simplified attribute set;
		// treat as grayscale (4.E: "otherwise treat as grayscale").
		if log != nil {
			log.Warn("PALETTE COLOR received with no LUT; treating as grayscale")
		}
	default:
		return nil, &UnsupportedPixelEncodingError{Photometric: meta.PhotometricInterpretation}
	}

	if meta.SamplesPerPixel == 3 && meta.PlanarConfiguration == 1 {
		samples = deplanarize(samples, meta)
	}

	maxSample := uint32(1)<<uint(meta.BitsStored) - 1
	pix := rescale(samples, meta, maxSample)

	gray := meta.SamplesPerPixel == 1
	stride := meta.Columns
	if !gray {
		stride = meta.Columns * 3
	}
	return &types.Raster{
		Width:  meta.Columns,
		Height: meta.Rows,
		Gray:   gray,
		Pix:    pix,
		Stride: stride,
	}, nil
}

// unpack reads raw bytes into a flat per-sample array (step 1), zero-
// padding or truncating to rows*cols*samples, logging a warning on
// mismatch per 4.E.
func unpack(raw []byte, meta types.ImagePixelMetadata, log *logrus.Entry) ([]uint32, error) {
	want := meta.Rows * meta.Columns * meta.SamplesPerPixel
	if want <= 0 {
		return nil, fmt.Errorf("pixel: non-positive dimensions (rows=%d cols=%d samples=%d)", meta.Rows, meta.Columns, meta.SamplesPerPixel)
	}

	bytesPerSample := meta.BitsAllocated / 8
	if meta.BitsAllocated%8 != 0 {
		bytesPerSample++
	}
	if bytesPerSample <= 0 {
		bytesPerSample = 1
	}

	out := make([]uint32, want)
	haveSamples := len(raw) / bytesPerSample
	if haveSamples != want && log != nil {
		log.Warnf("pixel: decoded sample count %d does not match expected %d, padding/truncating", haveSamples, want)
	}

	for i := 0; i < want; i++ {
		off := i * bytesPerSample
		if off+bytesPerSample > len(raw) {
			break // remaining samples stay zero (zero-pad)
		}
		var v uint32
		if bytesPerSample == 1 {
			v = uint32(raw[off])
		} else {
			v = uint32(raw[off]) | uint32(raw[off+1])<<8
		}
		out[i] = v
	}
	return out, nil
}

// ybrToRGB converts in place via the ITU-R BT.601 transform (4.E step 3).
func ybrToRGB(samples []uint32, meta types.ImagePixelMetadata) {
	if meta.SamplesPerPixel != 3 {
		return
	}
	pixels := len(samples) / 3
	for i := 0; i < pixels; i++ {
		var y, cb, cr float64
		if meta.PlanarConfiguration == 1 {
			y = float64(samples[i])
			cb = float64(samples[pixels+i])
			cr = float64(samples[2*pixels+i])
		} else {
			y = float64(samples[i*3])
			cb = float64(samples[i*3+1])
			cr = float64(samples[i*3+2])
		}
		r := y + 1.402*(cr-128)
		g := y - 0.344136*(cb-128) - 0.714136*(cr-128)
		b := y + 1.772*(cb-128)

		if meta.PlanarConfiguration == 1 {
			samples[i] = clamp8(r)
			samples[pixels+i] = clamp8(g)
			samples[2*pixels+i] = clamp8(b)
		} else {
			samples[i*3] = clamp8(r)
			samples[i*3+1] = clamp8(g)
			samples[i*3+2] = clamp8(b)
		}
	}
}

func clamp8(v float64) uint32 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint32(v)
}

// deplanarize turns planar R...R G...G B...B ordering into interleaved
// RGBRGBRGB (4.E step 5).
func deplanarize(samples []uint32, meta types.ImagePixelMetadata) []uint32 {
	pixels := meta.Rows * meta.Columns
	if pixels <= 0 || len(samples) < pixels*3 {
		return samples
	}
	out := make([]uint32, len(samples))
	for i := 0; i < pixels; i++ {
		out[i*3] = samples[i]
		out[i*3+1] = samples[pixels+i]
		out[i*3+2] = samples[2*pixels+i]
	}
	return out
}

// rescale applies VOI LUT/windowing if present, else a min-anchored,
// max-normalized linear rescale to 0..255, downcasting to 8 bits
// (4.E steps 4-5). A zero-max input rescales to a uniform-zero output.
func rescale(samples []uint32, meta types.ImagePixelMetadata, maxSample uint32) []byte {
	out := make([]byte, len(samples))

	if meta.WindowCenter != nil && meta.WindowWidth != nil && *meta.WindowWidth > 0 {
		center, width := *meta.WindowCenter, *meta.WindowWidth
		low := center - width/2
		high := center + width/2
		for i, v := range samples {
			fv := float64(v)
			switch {
			case fv <= low:
				out[i] = 0
			case fv >= high:
				out[i] = 255
			default:
				out[i] = byte(((fv - low) / (high - low)) * 255)
			}
		}
		return out
	}

	minV, maxV := maxSample, uint32(0)
	for _, v := range samples {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	if maxV == 0 {
		// Uniform-zero output on a zero-max input.
		return out
	}
	if maxV == minV {
		// Constant non-zero input rescales to uniform white, not black:
		// a degenerate min==max window still must reflect the sample
		// value's position at the top of its own range.
		for i := range out {
			out[i] = 255
		}
		return out
	}
	rangeV := float64(maxV - minV)
	for i, v := range samples {
		out[i] = byte(float64(v-minV) / rangeV * 255)
	}
	return out
}
