// Package sink implements the Job Sink (4.G): handing a rendered page
// to a destination and turning that into a queryable PrintJob. The
// default implementation writes a lossless PNG plus a PDF sidecar to a
// configured directory, following the teacher's internal/export/
// exporter.go ExportStudy directory-per-object layout.
package sink

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/sirupsen/logrus"

	"github.com/flatmapit/printscp/pkg/types"
)

// JobMetadata carries the identifying context submit needs, independent
// of any particular wire representation.
type JobMetadata struct {
	AssociationID string
	FilmBoxUID    string
}

// JobSink is the abstract 4.G operation. The core treats Submit as
// synchronous-with-timeout; the association worker blocks on its
// result before emitting the DIMSE response.
type JobSink interface {
	Submit(raster *types.Raster, meta JobMetadata) (*types.PrintJob, error)
}

// FilesystemSink is the default sink: pages land under
// <outputDir>/<association-id>/<film-box-uid>.{png,pdf} (§6 Persistent
// state).
type FilesystemSink struct {
	outputDir string
	log       *logrus.Entry
}

// NewFilesystemSink returns a sink rooted at outputDir, created on
// first use.
func NewFilesystemSink(outputDir string, log *logrus.Entry) *FilesystemSink {
	return &FilesystemSink{outputDir: outputDir, log: log}
}

// Submit writes raster as a PNG plus a PDF sidecar and returns a DONE
// PrintJob recording both output paths, or a FAILURE job if either
// write fails (§7: "Sink failure: status 0x0110; mark Print Job
// FAILURE").
func (s *FilesystemSink) Submit(raster *types.Raster, meta JobMetadata) (*types.PrintJob, error) {
	dir := filepath.Join(s.outputDir, meta.AssociationID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return failedJob(meta, err), err
	}

	pngPath := filepath.Join(dir, meta.FilmBoxUID+".png")
	if err := writePNG(raster, pngPath); err != nil {
		return failedJob(meta, err), err
	}

	pdfPath := filepath.Join(dir, meta.FilmBoxUID+".pdf")
	if err := writePDF(raster, pdfPath); err != nil {
		return failedJob(meta, err), err
	}

	if s.log != nil {
		s.log.WithFields(logrus.Fields{
			"association_id": meta.AssociationID,
			"film_box_uid":   meta.FilmBoxUID,
		}).Info("print job rendered")
	}

	return &types.PrintJob{
		ExecutionStatus: types.JobDone,
		CreatedAt:       time.Now(),
		FilmBoxUID:      meta.FilmBoxUID,
		OutputPaths:     []string{pngPath, pdfPath},
	}, nil
}

func failedJob(meta JobMetadata, err error) *types.PrintJob {
	return &types.PrintJob{
		ExecutionStatus: types.JobFailure,
		StatusInfo:      err.Error(),
		CreatedAt:       time.Now(),
		FilmBoxUID:      meta.FilmBoxUID,
	}
}

func writePNG(r *types.Raster, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("sink: create %s: %w", path, err)
	}
	defer f.Close()

	if r.Gray {
		img := image.NewGray(image.Rect(0, 0, r.Width, r.Height))
		copy(img.Pix, r.Pix)
		return png.Encode(f, img)
	}
	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	for i := 0; i < r.Width*r.Height; i++ {
		img.Pix[i*4] = r.Pix[i*3]
		img.Pix[i*4+1] = r.Pix[i*3+1]
		img.Pix[i*4+2] = r.Pix[i*3+2]
		img.Pix[i*4+3] = 0xFF
	}
	return png.Encode(f, img)
}

// writePDF embeds raster as a single full-page image, following the
// teacher's createPDFReport's gofpdf.New/AddPage/Image shape.
func writePDF(r *types.Raster, path string) error {
	orientation := "P"
	if r.Width > r.Height {
		orientation = "L"
	}
	pdf := gofpdf.New(orientation, "pt", "", "")
	pdf.AddPage()

	pngPath := path + ".tmp.png"
	if err := writePNG(r, pngPath); err != nil {
		return err
	}
	defer os.Remove(pngPath)

	pdf.RegisterImageOptions(pngPath, gofpdf.ImageOptions{ImageType: "PNG"})
	pageW, pageH := pdf.GetPageSize()
	pdf.ImageOptions(pngPath, 0, 0, pageW, pageH, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	return pdf.OutputFileAndClose(path)
}
