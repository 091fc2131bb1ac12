package server

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/flatmapit/printscp/internal/page"
	"github.com/flatmapit/printscp/internal/sink"
	"github.com/flatmapit/printscp/pkg/types"
)

// pageRenderer implements printstore.Renderer by composing the Page
// Assembler (4.F) and a Job Sink (4.G): the store hands it a Film Box
// subtree snapshot, it returns the PrintJob the store then records.
type pageRenderer struct {
	sink            sink.JobSink
	associationID   string
	swapRowsColumns bool
	log             *logrus.Entry
}

func newPageRenderer(jobSink sink.JobSink, associationID string, swapRowsColumns bool, log *logrus.Entry) *pageRenderer {
	return &pageRenderer{sink: jobSink, associationID: associationID, swapRowsColumns: swapRowsColumns, log: log}
}

// Render assembles the page and submits it to the sink, satisfying
// printstore.Renderer.
func (r *pageRenderer) Render(session *types.FilmSession, box *types.FilmBox, images []*types.ImageBox) (*types.PrintJob, error) {
	if r.log != nil {
		r.log.WithFields(logrus.Fields{
			"association_id": r.associationID,
			"film_box_uid":   box.SOPInstanceUID,
			"images":         len(images),
		}).Info("rendering film box")
	}

	raster, err := page.Assemble(box, images, page.DefaultImageSource, r.swapRowsColumns)
	if err != nil {
		return nil, fmt.Errorf("render: assemble: %w", err)
	}

	job, err := r.sink.Submit(raster, sink.JobMetadata{
		AssociationID: r.associationID,
		FilmBoxUID:    box.SOPInstanceUID,
	})
	if err != nil {
		return job, fmt.Errorf("render: submit: %w", err)
	}
	return job, nil
}
