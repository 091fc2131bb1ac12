// Package page implements the Page Assembler (4.F): it parses the
// Image Display Format grammar (layout.go) and composes Image Boxes
// into a single film page raster.
package page

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/flatmapit/printscp/internal/pixel"
	"github.com/flatmapit/printscp/pkg/types"
)

// DPI this assembler renders at; film size -> pixel dimensions below
// follows spec.md 4.F's "A4 @ 300 DPI = 2480x3508 portrait" example.
const dpi = 300

// PageSize returns the blank canvas size in pixels for filmSizeID and
// orientation. Unrecognized film sizes fall back to A4.
func PageSize(filmSizeID string, orientation types.FilmOrientation) (width, height int) {
	w, h := a4Width, a4Height
	switch filmSizeID {
	case "14INX17IN":
		w, h = 14*dpi, 17*dpi
	case "8INX10IN":
		w, h = 8*dpi, 10*dpi
	case "10INX12IN":
		w, h = 10*dpi, 12*dpi
	}
	if orientation == types.OrientationLandscape {
		w, h = h, w
	}
	return w, h
}

const a4Width = 2480
const a4Height = 3508

// ImageSource decodes an Image Box's pixel data into a raster; the
// concrete implementation is internal/pixel.Decode, indirected here so
// tests can supply fixed rasters without going through the full pixel
// pipeline.
type ImageSource func(box *types.ImageBox) (*types.Raster, error)

// DefaultImageSource adapts internal/pixel.Decode.
func DefaultImageSource(box *types.ImageBox) (*types.Raster, error) {
	return pixel.Decode(box, nil)
}

// Assemble lays out images into a single page raster per fb's
// image_display_format, film size, and orientation (4.F). images must
// be ordered by ImagePosition ascending and aligned with the layout's
// cell traversal order.
func Assemble(fb *types.FilmBox, images []*types.ImageBox, source ImageSource, swapRowsColumns bool) (*types.Raster, error) {
	layout, err := ParseLayout(fb.ImageDisplayFormat, swapRowsColumns)
	if err != nil {
		return nil, fmt.Errorf("page: %w", err)
	}

	width, height := PageSize(fb.FilmSizeID, fb.FilmOrientation)
	allGray := true
	rasters := make([]*types.Raster, len(images))
	for i, box := range images {
		if !box.Ready() {
			continue
		}
		r, err := source(box)
		if err != nil {
			return nil, fmt.Errorf("page: image box %s: %w", box.SOPInstanceUID, err)
		}
		rasters[i] = r
		if !r.Gray {
			allGray = false
		}
	}

	page := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(page, page.Bounds(), image.White, image.Point{}, draw.Src)

	cellW := width / maxInt(layout.Cols, 1)
	cellH := height / maxInt(layout.Rows, 1)

	for i := 0; i < layout.Count() && i < len(images); i++ {
		cell := layout.Cells[i]
		x0, y0 := cell.Col*cellW, cell.Row*cellH

		box := images[i]
		rect := image.Rect(x0, y0, x0+cellW, y0+cellH)
		if fb.Trim {
			rect = shrink(rect, cellW/40, cellH/40)
		}

		if rasters[i] == nil {
			drawPlaceholder(page, rect, box.ImagePosition)
			continue
		}
		drawImage(page, rect, rasters[i], magnificationFor(box, fb))
		if fb.BorderDensity != "" {
			drawBorder(page, rect)
		}
	}

	return rgbaToRaster(page, allGray), nil
}

func magnificationFor(box *types.ImageBox, fb *types.FilmBox) types.MagnificationType {
	if box.MagnificationType != "" {
		return box.MagnificationType
	}
	return fb.MagnificationType
}

func resampleFilter(mag types.MagnificationType) imaging.ResampleFilter {
	switch mag {
	case types.MagnificationCubic:
		return imaging.CatmullRom
	case types.MagnificationBilinear:
		return imaging.Linear
	default: // types.MagnificationNone
		return imaging.NearestNeighbor
	}
}

// drawImage scales src to fit rect preserving aspect ratio and centers
// it (4.F: "scale to fit the cell preserving aspect ratio (center in
// cell)"), honoring the cell/box magnification type for the resample
// algorithm. REPLICATE is distinct from NONE: it fits by the largest
// whole-number scale factor and repeats pixel blocks rather than
// resampling at an arbitrary ratio.
func drawImage(dst *image.RGBA, rect image.Rectangle, r *types.Raster, mag types.MagnificationType) {
	src := rasterToImage(r)
	cellW, cellH := rect.Dx(), rect.Dy()

	var fitted image.Image
	if mag == types.MagnificationReplicate {
		fitted = replicatePixels(src, integerScaleFit(r.Width, r.Height, cellW, cellH))
	} else {
		fitted = imaging.Fit(src, cellW, cellH, resampleFilter(mag))
	}

	offX := rect.Min.X + (cellW-fitted.Bounds().Dx())/2
	offY := rect.Min.Y + (cellH-fitted.Bounds().Dy())/2
	draw.Draw(dst, image.Rect(offX, offY, offX+fitted.Bounds().Dx(), offY+fitted.Bounds().Dy()),
		fitted, image.Point{}, draw.Src)
}

// integerScaleFit returns the largest whole-number scale that fits a
// srcW x srcH image inside a cellW x cellH cell, never less than 1
// (spec.md: "REPLICATE: nearest with integer scale").
func integerScaleFit(srcW, srcH, cellW, cellH int) int {
	if srcW <= 0 || srcH <= 0 {
		return 1
	}
	scale := minInt(cellW/srcW, cellH/srcH)
	if scale < 1 {
		scale = 1
	}
	return scale
}

// replicatePixels repeats each source pixel into a scale x scale block,
// the nearest-neighbor variant with no interpolation whatsoever.
func replicatePixels(src image.Image, scale int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if gray, ok := src.(*image.Gray); ok {
		out := image.NewGray(image.Rect(0, 0, w*scale, h*scale))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				v := gray.GrayAt(bounds.Min.X+x, bounds.Min.Y+y)
				for dy := 0; dy < scale; dy++ {
					for dx := 0; dx < scale; dx++ {
						out.SetGray(x*scale+dx, y*scale+dy, v)
					}
				}
			}
		}
		return out
	}

	out := image.NewRGBA(image.Rect(0, 0, w*scale, h*scale))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := src.At(bounds.Min.X+x, bounds.Min.Y+y)
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					out.Set(x*scale+dx, y*scale+dy, c)
				}
			}
		}
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func rasterToImage(r *types.Raster) image.Image {
	if r.Gray {
		img := image.NewGray(image.Rect(0, 0, r.Width, r.Height))
		copy(img.Pix, r.Pix)
		return img
	}
	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	for i := 0; i < r.Width*r.Height; i++ {
		img.Pix[i*4] = r.Pix[i*3]
		img.Pix[i*4+1] = r.Pix[i*3+1]
		img.Pix[i*4+2] = r.Pix[i*3+2]
		img.Pix[i*4+3] = 0xFF
	}
	return img
}

func rgbaToRaster(img *image.RGBA, gray bool) *types.Raster {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if !gray {
		pix := make([]byte, w*h*3)
		for i := 0; i < w*h; i++ {
			pix[i*3] = img.Pix[i*4]
			pix[i*3+1] = img.Pix[i*4+1]
			pix[i*3+2] = img.Pix[i*4+2]
		}
		return &types.Raster{Width: w, Height: h, Gray: false, Pix: pix, Stride: w * 3}
	}
	pix := make([]byte, w*h)
	for i := 0; i < w*h; i++ {
		// Copies the red channel; page composition is already all-grayscale
		// input in this branch so the three channels are equal.
		pix[i] = img.Pix[i*4]
	}
	return &types.Raster{Width: w, Height: h, Gray: true, Pix: pix, Stride: w}
}

func shrink(r image.Rectangle, dx, dy int) image.Rectangle {
	return image.Rect(r.Min.X+dx, r.Min.Y+dy, r.Max.X-dx, r.Max.Y-dy)
}

func drawBorder(dst *image.RGBA, rect image.Rectangle) {
	black := color.RGBA{0, 0, 0, 255}
	for x := rect.Min.X; x < rect.Max.X; x++ {
		dst.Set(x, rect.Min.Y, black)
		dst.Set(x, rect.Max.Y-1, black)
	}
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		dst.Set(rect.Min.X, y, black)
		dst.Set(rect.Max.X-1, y, black)
	}
}

// drawPlaceholder renders an empty cell: a dashed rectangle with the
// image position number burnt in (4.F: "draw a placeholder rectangle
// with the image position number").
func drawPlaceholder(dst *image.RGBA, rect image.Rectangle, position int) {
	gray := color.RGBA{0xC0, 0xC0, 0xC0, 0xFF}
	for x := rect.Min.X; x < rect.Max.X; x += 4 {
		dst.Set(x, rect.Min.Y, gray)
		dst.Set(x, rect.Max.Y-1, gray)
	}
	for y := rect.Min.Y; y < rect.Max.Y; y += 4 {
		dst.Set(rect.Min.X, y, gray)
		dst.Set(rect.Max.X-1, y, gray)
	}

	label := fmt.Sprintf("%d", position)
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.RGBA{0x80, 0x80, 0x80, 0xFF}),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I(rect.Min.X + rect.Dx()/2 - (len(label)*7)/2),
			Y: fixed.I(rect.Min.Y + rect.Dy()/2),
		},
	}
	d.DrawString(label)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
