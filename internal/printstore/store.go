// Package printstore implements the per-association Print Object Store
// (4.D): a hierarchical Film Session -> Film Box -> Image Box registry
// keyed by SOP Instance UID, plus the singleton Printer and the Print
// Jobs produced by print actions.
package printstore

import (
	"fmt"
	"sync"

	"github.com/flatmapit/printscp/internal/dimse"
	"github.com/flatmapit/printscp/internal/page"
	"github.com/flatmapit/printscp/internal/pdu"
	"github.com/flatmapit/printscp/internal/sop"
	"github.com/flatmapit/printscp/pkg/types"
)

// Renderer turns a completed Film Box subtree into a PrintJob. It is the
// store's only hand-off to the Page Assembler/Job Sink (4.D/4.F/4.G);
// the store itself never touches pixels or files.
type Renderer interface {
	Render(session *types.FilmSession, box *types.FilmBox, images []*types.ImageBox) (*types.PrintJob, error)
}

// defaultMaxPixelBytes bounds the total pixel data this store will accept
// before rejecting further N-SET with 0x0213 (§5 resource limits), unless
// SetMaxPixelBytes overrides it.
const defaultMaxPixelBytes = 256 * 1024 * 1024

// Store is the per-association print object store. Every method except
// SetMaxPixelBytes holds mu while it runs; per 4.C/5, a single
// association worker drives it strictly in order.
type Store struct {
	mu sync.Mutex

	swapRowsColumns bool
	maxPixelBytes   int64
	pixelBytesUsed  int64

	// imageBoxClassUID is the Image Box SOP Class this association
	// negotiated: sop.BasicColorImageBox or sop.BasicGrayscaleImageBox
	// (§3/§6). It decides both what class is referenced in a Film Box's
	// Referenced Image Box Sequence and what pixel data an Image Box N-SET
	// may accept.
	imageBoxClassUID string

	renderer Renderer

	allUIDs      map[string]bool // I3: no SOP Instance UID reused within an association
	filmSessions map[string]*types.FilmSession
	filmBoxes    map[string]*types.FilmBox
	imageBoxes   map[string]*types.ImageBox
	printJobs    map[string]*types.PrintJob

	sessionOrder []string // live Film Sessions in creation order; createFilmBox falls back to a sole entry

	storedInstances map[string]storedInstance // C-STORE fallback ingestion (§6), keyed by SOP Instance UID
}

type storedInstance struct {
	metadata  types.ImagePixelMetadata
	pixelData []byte
}

// New returns an empty store. swapRowsColumns controls the STANDARD\a,b
// reading (§9 Open Question); renderer performs the print hand-off.
// imageBoxClassUID is the negotiated Image Box SOP Class (§3/§6:
// sop.BasicGrayscaleImageBox or sop.BasicColorImageBox).
func New(renderer Renderer, swapRowsColumns bool, imageBoxClassUID string) *Store {
	if imageBoxClassUID == "" {
		imageBoxClassUID = sop.BasicGrayscaleImageBox
	}
	return &Store{
		swapRowsColumns:  swapRowsColumns,
		maxPixelBytes:    defaultMaxPixelBytes,
		imageBoxClassUID: imageBoxClassUID,
		renderer:         renderer,
		allUIDs:          make(map[string]bool),
		filmSessions:     make(map[string]*types.FilmSession),
		filmBoxes:        make(map[string]*types.FilmBox),
		imageBoxes:       make(map[string]*types.ImageBox),
		printJobs:        make(map[string]*types.PrintJob),
		storedInstances:  make(map[string]storedInstance),
	}
}

// StoreInstance records a C-STORE'd data set's pixel data and metadata
// under its own SOP Instance UID, for later reference by
// PopulateImageBoxFromStorage (§6 Storage SOP Class fallback).
func (s *Store) StoreInstance(instanceUID string, meta types.ImagePixelMetadata, pixelData []byte) uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.allUIDs[instanceUID] {
		return dimse.StatusInvalidAttributeValue
	}
	s.allUIDs[instanceUID] = true
	s.storedInstances[instanceUID] = storedInstance{metadata: meta, pixelData: pixelData}
	return dimse.StatusSuccess
}

// PopulateImageBoxFromStorage copies a previously C-STORE'd instance's
// pixel data/metadata into an Image Box, the same way an explicit N-SET
// would, so a single association can receive an image via C-STORE and
// reference it by Image Box UID in a later N-ACTION(print).
func (s *Store) PopulateImageBoxFromStorage(imageBoxUID, storedInstanceUID string) uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ib, ok := s.imageBoxes[imageBoxUID]
	if !ok {
		return dimse.StatusNoSuchObjectInstance
	}
	return s.populateFromStorageLocked(ib, storedInstanceUID)
}

func (s *Store) populateFromStorageLocked(ib *types.ImageBox, storedInstanceUID string) uint16 {
	stored, ok := s.storedInstances[storedInstanceUID]
	if !ok {
		return dimse.StatusNoSuchObjectInstance
	}
	if fb, ok := s.filmBoxes[ib.FilmBoxUID]; ok && fb.PrintInProgress {
		return dimse.StatusInvalidObjectInstance
	}

	candidate := &types.ImageBox{Metadata: stored.metadata}
	if candidate.IsColor() && s.imageBoxClassUID != sop.BasicColorImageBox {
		return dimse.StatusInvalidAttributeValue
	}

	newTotal := s.pixelBytesUsed - int64(len(ib.PixelData)) + int64(len(stored.pixelData))
	if newTotal > s.maxPixelBytes {
		return dimse.StatusResourceLimitation
	}
	s.pixelBytesUsed = newTotal
	ib.Metadata = stored.metadata
	ib.PixelData = stored.pixelData
	return dimse.StatusSuccess
}

// SetMaxPixelBytes overrides the default in-memory pixel budget (§5).
func (s *Store) SetMaxPixelBytes(n int64) { s.maxPixelBytes = n }

// Create inserts a new instance of classUID identified by instanceUID,
// populated from attrs, and returns the status and the effective
// (server-assigned-included) attribute data set, per 4.D's create
// contract. For a Film Box, the synthesized Image Box references are
// included as a (2010,0500) Referenced Image Box Sequence.
func (s *Store) Create(classUID, instanceUID string, attrs *pdu.Dataset) (uint16, *pdu.Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if instanceUID == "" {
		return dimse.StatusInvalidAttributeValue, nil
	}
	if s.allUIDs[instanceUID] {
		return dimse.StatusInvalidAttributeValue, nil
	}

	switch classUID {
	case sop.BasicFilmSession:
		return s.createFilmSession(instanceUID, attrs)
	case sop.BasicFilmBox:
		return s.createFilmBox(instanceUID, attrs)
	default:
		return dimse.StatusProcessingFailure, nil
	}
}

func (s *Store) createFilmSession(instanceUID string, attrs *pdu.Dataset) (uint16, *pdu.Dataset) {
	fs := &types.FilmSession{
		SOPInstanceUID: instanceUID,
		NumberOfCopies: 1,
		PrintPriority:  types.PriorityMedium,
	}
	if n, ok := attrs.Int(tagNumberOfCopies); ok && n > 0 {
		fs.NumberOfCopies = n
	}
	if v := attrs.String(tagPrintPriority); v != "" {
		fs.PrintPriority = types.PrintPriority(v)
	}
	fs.MediumType = attrs.String(tagMediumType)
	fs.FilmDestination = attrs.String(tagFilmDestination)

	s.allUIDs[instanceUID] = true
	s.filmSessions[instanceUID] = fs
	s.sessionOrder = append(s.sessionOrder, instanceUID)

	return dimse.StatusSuccess, s.filmSessionDataset(fs)
}

func (s *Store) createFilmBox(instanceUID string, attrs *pdu.Dataset) (uint16, *pdu.Dataset) {
	format := attrs.String(tagImageDisplayFormat)
	if format == "" {
		return dimse.StatusInvalidAttributeValue, nil
	}
	layout, err := page.ParseLayout(format, s.swapRowsColumns)
	if err != nil {
		return dimse.StatusInvalidAttributeValue, nil
	}

	// The client identifies the owning Film Session via (0000,1000) of
	// the enclosing request in most stacks, but some send it as a data
	// set attribute; accept either by falling back to the sole existing
	// session when there is exactly one (§3 "at most one Film Session
	// per association may exist in practice").
	sessionUID := attrs.String(pdu.Tag{Group: 0x2010, Element: 0x0500})
	if sessionUID == "" {
		if len(s.sessionOrder) != 1 {
			return dimse.StatusInvalidAttributeValue, nil
		}
		sessionUID = s.sessionOrder[0]
	}
	session, ok := s.filmSessions[sessionUID]
	if !ok {
		return dimse.StatusInvalidObjectInstance, nil
	}

	fb := &types.FilmBox{
		SOPInstanceUID:     instanceUID,
		FilmSessionUID:     sessionUID,
		ImageDisplayFormat: format,
		FilmOrientation:    types.OrientationPortrait,
		MagnificationType:  types.MagnificationNone,
	}
	if v := attrs.String(tagFilmOrientation); v != "" {
		fb.FilmOrientation = types.FilmOrientation(v)
	}
	fb.FilmSizeID = attrs.String(tagFilmSizeID)
	if v := attrs.String(tagFilmBoxMagnification); v != "" {
		fb.MagnificationType = types.MagnificationType(v)
	}
	fb.BorderDensity = attrs.String(tagBorderDensity)
	fb.Trim = attrs.String(tagTrim) == "YES"
	if n, ok := attrs.Int(tagMaxDensity); ok {
		fb.MaxDensity = n
	}

	s.allUIDs[instanceUID] = true
	s.filmBoxes[instanceUID] = fb
	session.FilmBoxUIDs = append(session.FilmBoxUIDs, instanceUID)

	// Synthesize the Image Boxes the display format implies (I1: image
	// position is the 1-based traversal order, distinct within the box).
	for i := 0; i < layout.Count(); i++ {
		imgUID := generateUID()
		s.allUIDs[imgUID] = true
		s.imageBoxes[imgUID] = &types.ImageBox{
			SOPInstanceUID:    imgUID,
			FilmBoxUID:        instanceUID,
			ImagePosition:     i + 1,
			Polarity:          types.PolarityNormal,
			MagnificationType: fb.MagnificationType,
		}
		fb.ImageBoxUIDs = append(fb.ImageBoxUIDs, imgUID)
	}

	return dimse.StatusSuccess, s.filmBoxDataset(fb)
}

// Set merges mods into the instance identified by instanceUID,
// enforcing I1-I4. The no-op confirmation rule (§9 Open Question): an
// empty modification list always succeeds even with no pixel data.
func (s *Store) Set(instanceUID string, mods *pdu.Dataset) uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(mods.Elements()) == 0 {
		return dimse.StatusSuccess
	}

	if fb, ok := s.filmBoxes[instanceUID]; ok {
		return s.setFilmBox(fb, mods)
	}
	if ib, ok := s.imageBoxes[instanceUID]; ok {
		return s.setImageBox(ib, mods)
	}
	if fs, ok := s.filmSessions[instanceUID]; ok {
		return s.setFilmSession(fs, mods)
	}
	return dimse.StatusNoSuchObjectInstance
}

func (s *Store) setFilmSession(fs *types.FilmSession, mods *pdu.Dataset) uint16 {
	if n, ok := mods.Int(tagNumberOfCopies); ok {
		if n <= 0 {
			return dimse.StatusInvalidAttributeValue
		}
		fs.NumberOfCopies = n
	}
	if _, ok := mods.Get(tagPrintPriority); ok {
		fs.PrintPriority = types.PrintPriority(mods.String(tagPrintPriority))
	}
	if _, ok := mods.Get(tagMediumType); ok {
		fs.MediumType = mods.String(tagMediumType)
	}
	if _, ok := mods.Get(tagFilmDestination); ok {
		fs.FilmDestination = mods.String(tagFilmDestination)
	}
	return dimse.StatusSuccess
}

func (s *Store) setFilmBox(fb *types.FilmBox, mods *pdu.Dataset) uint16 {
	if fb.PrintInProgress {
		// I4: modifications while the print action is in progress are
		// rejected. printFilmBox clears the flag once Render returns, so
		// a printed Film Box accepts modifications again.
		return dimse.StatusInvalidObjectInstance
	}
	if _, ok := mods.Get(tagFilmOrientation); ok {
		fb.FilmOrientation = types.FilmOrientation(mods.String(tagFilmOrientation))
	}
	if _, ok := mods.Get(tagFilmSizeID); ok {
		fb.FilmSizeID = mods.String(tagFilmSizeID)
	}
	if _, ok := mods.Get(tagFilmBoxMagnification); ok {
		fb.MagnificationType = types.MagnificationType(mods.String(tagFilmBoxMagnification))
	}
	if _, ok := mods.Get(tagBorderDensity); ok {
		fb.BorderDensity = mods.String(tagBorderDensity)
	}
	if _, ok := mods.Get(tagTrim); ok {
		fb.Trim = mods.String(tagTrim) == "YES"
	}
	if n, ok := mods.Int(tagMaxDensity); ok {
		fb.MaxDensity = n
	}
	return dimse.StatusSuccess
}

func (s *Store) setImageBox(ib *types.ImageBox, mods *pdu.Dataset) uint16 {
	if fb, ok := s.filmBoxes[ib.FilmBoxUID]; ok && fb.PrintInProgress {
		return dimse.StatusInvalidObjectInstance // I4
	}

	if _, ok := mods.Get(tagPolarity); ok {
		ib.Polarity = types.Polarity(mods.String(tagPolarity))
	}
	if _, ok := mods.Get(tagImageBoxMagnification); ok {
		ib.MagnificationType = types.MagnificationType(mods.String(tagImageBoxMagnification))
	}

	refUID := mods.String(tagReferencedStorageInstance)
	if refUID != "" {
		if status := s.populateFromStorageLocked(ib, refUID); status != dimse.StatusSuccess {
			return status
		}
		if len(mods.Elements()) == 1 {
			return dimse.StatusSuccess // storage reference was the whole modification list
		}
	}

	meta := ib.Metadata
	hasMeta := false
	if n, ok := mods.Int(tagRows); ok {
		meta.Rows, hasMeta = n, true
	}
	if n, ok := mods.Int(tagColumns); ok {
		meta.Columns, hasMeta = n, true
	}
	if n, ok := mods.Int(tagBitsAllocated); ok {
		meta.BitsAllocated, hasMeta = n, true
	}
	if n, ok := mods.Int(tagBitsStored); ok {
		meta.BitsStored, hasMeta = n, true
	}
	if n, ok := mods.Int(tagHighBit); ok {
		meta.HighBit, hasMeta = n, true
	}
	if n, ok := mods.Int(tagPixelRepresentation); ok {
		meta.PixelRepresentation, hasMeta = n, true
	}
	if v := mods.String(tagPhotometricInterpretation); v != "" {
		meta.PhotometricInterpretation, hasMeta = v, true
	}
	if n, ok := mods.Int(tagSamplesPerPixel); ok {
		meta.SamplesPerPixel, hasMeta = n, true
	}
	if n, ok := mods.Int(tagPlanarConfiguration); ok {
		meta.PlanarConfiguration, hasMeta = n, true
	}
	if v := mods.String(tagWindowCenter); v != "" {
		if f, err := parseFloat(v); err == nil {
			meta.WindowCenter = &f
		}
	}
	if v := mods.String(tagWindowWidth); v != "" {
		if f, err := parseFloat(v); err == nil {
			meta.WindowWidth = &f
		}
	}

	pixelData := mods.Bytes(tagPixelData)
	if pixelData == nil && refUID != "" && !hasMeta {
		// Pixels came from the referenced stored instance above; the
		// other modifications (e.g. polarity) have been applied.
		ib.Metadata = meta
		return dimse.StatusSuccess
	}
	if pixelData == nil {
		// §9 Open Question: N-SET with no Pixel Data is rejected unless
		// the whole modification list is empty (handled in Set).
		return dimse.StatusInvalidAttributeValue
	}

	bytesPerSample := (meta.BitsAllocated + 7) / 8
	required := int64(meta.Rows) * int64(meta.Columns) * int64(meta.SamplesPerPixel) * int64(bytesPerSample)
	if required <= 0 || int64(len(pixelData)) < required {
		// I2: rows*cols*samples*ceil(bits/8) <= len(pixel_data).
		return dimse.StatusInvalidAttributeValue
	}

	candidate := &types.ImageBox{Metadata: meta}
	if candidate.IsColor() && s.imageBoxClassUID != sop.BasicColorImageBox {
		// A Basic Grayscale Image Box cannot carry a 3-samples-per-pixel
		// image; the SCU negotiated the wrong Image Box class for it.
		return dimse.StatusInvalidAttributeValue
	}

	newTotal := s.pixelBytesUsed - int64(len(ib.PixelData)) + int64(len(pixelData))
	if newTotal > s.maxPixelBytes {
		return dimse.StatusResourceLimitation
	}
	s.pixelBytesUsed = newTotal

	ib.Metadata = meta
	ib.PixelData = pixelData // move, not copy: caller hands over ownership (§9 pixel buffer ownership)
	return dimse.StatusSuccess
}

// Action executes an N-ACTION. Film Session action type 1 prints every
// owned Film Box in insertion order; Film Box action type 1 prints that
// box alone. Returns the status and, on success, the Print Job UID.
func (s *Store) Action(instanceUID string, actionTypeID int) (uint16, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fb, ok := s.filmBoxes[instanceUID]; ok {
		if actionTypeID != 1 {
			return dimse.StatusInvalidAttributeValue, ""
		}
		return s.printFilmBox(fb)
	}
	if fs, ok := s.filmSessions[instanceUID]; ok {
		if actionTypeID != 1 {
			return dimse.StatusInvalidAttributeValue, ""
		}
		var lastJobUID string
		for _, fbUID := range fs.FilmBoxUIDs {
			fb, ok := s.filmBoxes[fbUID]
			if !ok {
				continue
			}
			status, jobUID := s.printFilmBox(fb)
			if dimse.IsFailure(status) {
				return status, ""
			}
			lastJobUID = jobUID
		}
		return dimse.StatusSuccess, lastJobUID
	}
	return dimse.StatusNoSuchObjectInstance, ""
}

func (s *Store) printFilmBox(fb *types.FilmBox) (uint16, string) {
	if fb.PrintInProgress {
		return dimse.StatusInvalidObjectInstance, ""
	}
	session, ok := s.filmSessions[fb.FilmSessionUID]
	if !ok {
		return dimse.StatusInvalidObjectInstance, ""
	}

	images := make([]*types.ImageBox, 0, len(fb.ImageBoxUIDs))
	for _, uid := range fb.ImageBoxUIDs {
		if ib, ok := s.imageBoxes[uid]; ok {
			images = append(images, ib)
		}
	}

	fb.PrintInProgress = true
	if s.renderer == nil {
		fb.PrintInProgress = false
		return dimse.StatusProcessingFailure, ""
	}

	job, err := s.renderer.Render(session, fb, images)
	fb.PrintInProgress = false
	if job == nil {
		job = &types.PrintJob{FilmBoxUID: fb.SOPInstanceUID}
	}
	if job.SOPInstanceUID == "" {
		job.SOPInstanceUID = generateUID() // the renderer/sink owns pixels, not UID assignment
	}
	s.allUIDs[job.SOPInstanceUID] = true
	s.printJobs[job.SOPInstanceUID] = job
	fb.PrintJobUID = job.SOPInstanceUID

	if err != nil {
		job.ExecutionStatus = types.JobFailure
		job.StatusInfo = err.Error()
		return dimse.StatusProcessingFailure, job.SOPInstanceUID
	}
	return dimse.StatusSuccess, job.SOPInstanceUID
}

// Delete removes instanceUID and, for Film Session/Film Box, cascades
// to its owned children (§3 "deletion is permitted on Film Session
// (cascades) and Film Box (cascades)").
func (s *Store) Delete(instanceUID string) uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(instanceUID)
}

func (s *Store) deleteLocked(instanceUID string) uint16 {
	if fs, ok := s.filmSessions[instanceUID]; ok {
		for _, fbUID := range append([]string(nil), fs.FilmBoxUIDs...) {
			s.deleteLocked(fbUID)
		}
		delete(s.filmSessions, instanceUID)
		delete(s.allUIDs, instanceUID)
		for i, uid := range s.sessionOrder {
			if uid == instanceUID {
				s.sessionOrder = append(s.sessionOrder[:i], s.sessionOrder[i+1:]...)
				break
			}
		}
		return dimse.StatusSuccess
	}
	if fb, ok := s.filmBoxes[instanceUID]; ok {
		for _, ibUID := range fb.ImageBoxUIDs {
			if ib, ok := s.imageBoxes[ibUID]; ok {
				s.pixelBytesUsed -= int64(len(ib.PixelData))
				delete(s.imageBoxes, ibUID)
				delete(s.allUIDs, ibUID)
			}
		}
		delete(s.filmBoxes, instanceUID)
		delete(s.allUIDs, instanceUID)
		return dimse.StatusSuccess
	}
	if _, ok := s.imageBoxes[instanceUID]; ok {
		// §3: "Image Boxes cannot be individually deleted."
		return dimse.StatusInvalidObjectInstance
	}
	return dimse.StatusNoSuchObjectInstance
}

// Reset cascades a full teardown of every owned entity, used on
// association abort (§8: "store_a is empty and no Print Job from a is
// accepted by the sink").
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allUIDs = make(map[string]bool)
	s.filmSessions = make(map[string]*types.FilmSession)
	s.filmBoxes = make(map[string]*types.FilmBox)
	s.imageBoxes = make(map[string]*types.ImageBox)
	s.printJobs = make(map[string]*types.PrintJob)
	s.storedInstances = make(map[string]storedInstance)
	s.sessionOrder = nil
	s.pixelBytesUsed = 0
}

// Get returns the current attribute data set for instanceUID (used for
// N-GET of Film Session/Film Box/Image Box/Print Job/Printer).
func (s *Store) Get(instanceUID string) (uint16, *pdu.Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if instanceUID == sop.PrinterInstanceUID {
		ds := pdu.NewDataset()
		ds.Set(tagPrinterStatus, pdu.VRCS, "NORMAL")
		return dimse.StatusSuccess, ds
	}
	if fs, ok := s.filmSessions[instanceUID]; ok {
		return dimse.StatusSuccess, s.filmSessionDataset(fs)
	}
	if fb, ok := s.filmBoxes[instanceUID]; ok {
		return dimse.StatusSuccess, s.filmBoxDataset(fb)
	}
	if ib, ok := s.imageBoxes[instanceUID]; ok {
		return dimse.StatusSuccess, s.imageBoxDataset(ib)
	}
	if job, ok := s.printJobs[instanceUID]; ok {
		ds := pdu.NewDataset()
		ds.Set(tagExecutionStatus, pdu.VRCS, string(job.ExecutionStatus))
		ds.Set(tagStatusInfo, pdu.VRLO, job.StatusInfo)
		return dimse.StatusSuccess, ds
	}
	return dimse.StatusNoSuchObjectInstance, nil
}

// ImageBox returns a copy-free reference to an Image Box. The server's
// DIMSE handlers do not call it; Action does not check readiness.
func (s *Store) ImageBox(instanceUID string) (*types.ImageBox, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ib, ok := s.imageBoxes[instanceUID]
	return ib, ok
}

func (s *Store) filmSessionDataset(fs *types.FilmSession) *pdu.Dataset {
	ds := pdu.NewDataset()
	ds.Set(tagSOPInstanceUID, pdu.VRUI, fs.SOPInstanceUID)
	ds.Set(tagNumberOfCopies, pdu.VRIS, fmt.Sprintf("%d", fs.NumberOfCopies))
	ds.Set(tagPrintPriority, pdu.VRCS, string(fs.PrintPriority))
	ds.Set(tagMediumType, pdu.VRCS, fs.MediumType)
	ds.Set(tagFilmDestination, pdu.VRCS, fs.FilmDestination)
	return ds
}

func (s *Store) filmBoxDataset(fb *types.FilmBox) *pdu.Dataset {
	ds := pdu.NewDataset()
	ds.Set(tagSOPInstanceUID, pdu.VRUI, fb.SOPInstanceUID)
	ds.Set(tagImageDisplayFormat, pdu.VRST, fb.ImageDisplayFormat)
	ds.Set(tagFilmOrientation, pdu.VRCS, string(fb.FilmOrientation))
	ds.Set(tagFilmSizeID, pdu.VRCS, fb.FilmSizeID)
	ds.Set(tagFilmBoxMagnification, pdu.VRCS, string(fb.MagnificationType))

	items := make([]*pdu.Dataset, 0, len(fb.ImageBoxUIDs))
	for _, uid := range fb.ImageBoxUIDs {
		item := pdu.NewDataset()
		item.Set(tagSOPClassUID, pdu.VRUI, s.imageBoxClassUID)
		item.Set(tagSOPInstanceUID, pdu.VRUI, uid)
		items = append(items, item)
	}
	ds.Set(tagReferencedImageBoxSeq, pdu.VRSQ, items)
	return ds
}

func (s *Store) imageBoxDataset(ib *types.ImageBox) *pdu.Dataset {
	ds := pdu.NewDataset()
	ds.Set(tagSOPInstanceUID, pdu.VRUI, ib.SOPInstanceUID)
	ds.Set(tagImagePosition, pdu.VRUS, uint16(ib.ImagePosition))
	ds.Set(tagPolarity, pdu.VRCS, string(ib.Polarity))
	ds.Set(tagImageBoxMagnification, pdu.VRCS, string(ib.MagnificationType))
	return ds
}

func parseFloat(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(s, "%g", &f)
	return f, err
}
