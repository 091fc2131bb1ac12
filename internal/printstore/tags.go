package printstore

import "github.com/flatmapit/printscp/internal/pdu"

// Attribute tags for the print data model entities (§3), exchanged in
// N-CREATE/N-SET/N-GET data sets.
var (
	tagNumberOfCopies  = pdu.Tag{Group: 0x2000, Element: 0x0010}
	tagPrintPriority   = pdu.Tag{Group: 0x2000, Element: 0x0020}
	tagMediumType      = pdu.Tag{Group: 0x2000, Element: 0x0030}
	tagFilmDestination = pdu.Tag{Group: 0x2000, Element: 0x0040}

	tagImageDisplayFormat    = pdu.Tag{Group: 0x2010, Element: 0x0010}
	tagFilmOrientation       = pdu.Tag{Group: 0x2010, Element: 0x0040}
	tagFilmSizeID            = pdu.Tag{Group: 0x2010, Element: 0x0050}
	tagFilmBoxMagnification  = pdu.Tag{Group: 0x2010, Element: 0x0060}
	tagBorderDensity         = pdu.Tag{Group: 0x2010, Element: 0x0100}
	tagMaxDensity            = pdu.Tag{Group: 0x2010, Element: 0x0130}
	tagTrim                  = pdu.Tag{Group: 0x2010, Element: 0x0140}
	tagReferencedImageBoxSeq = pdu.Tag{Group: 0x2010, Element: 0x0500}

	tagImagePosition         = pdu.Tag{Group: 0x2020, Element: 0x0010}
	tagPolarity              = pdu.Tag{Group: 0x2020, Element: 0x0020}
	tagImageBoxMagnification = pdu.Tag{Group: 0x2020, Element: 0x0030}

	tagSamplesPerPixel            = pdu.Tag{Group: 0x0028, Element: 0x0002}
	tagPhotometricInterpretation  = pdu.Tag{Group: 0x0028, Element: 0x0004}
	tagPlanarConfiguration        = pdu.Tag{Group: 0x0028, Element: 0x0006}
	tagRows                       = pdu.Tag{Group: 0x0028, Element: 0x0010}
	tagColumns                    = pdu.Tag{Group: 0x0028, Element: 0x0011}
	tagBitsAllocated              = pdu.Tag{Group: 0x0028, Element: 0x0100}
	tagBitsStored                 = pdu.Tag{Group: 0x0028, Element: 0x0101}
	tagHighBit                    = pdu.Tag{Group: 0x0028, Element: 0x0102}
	tagPixelRepresentation        = pdu.Tag{Group: 0x0028, Element: 0x0103}
	tagWindowCenter               = pdu.Tag{Group: 0x0028, Element: 0x1050}
	tagWindowWidth                = pdu.Tag{Group: 0x0028, Element: 0x1051}
	tagPixelData                  = pdu.Tag{Group: 0x7FE0, Element: 0x0010}

	tagSOPInstanceUID = pdu.Tag{Group: 0x0008, Element: 0x0018}
	tagSOPClassUID     = pdu.Tag{Group: 0x0008, Element: 0x0016}

	tagExecutionStatus = pdu.Tag{Group: 0x2100, Element: 0x0020}
	tagStatusInfo      = pdu.Tag{Group: 0x2100, Element: 0x0030}

	tagPrinterStatus = pdu.Tag{Group: 0x2110, Element: 0x0010}

	// tagReferencedStorageInstance is a private-group extension this
	// service accepts on N-SET Image Box: instead of carrying Pixel Data
	// inline, the client may reference a SOP Instance already delivered
	// via C-STORE on the same association (§6 Storage SOP Class fallback).
	tagReferencedStorageInstance = pdu.Tag{Group: 0x0099, Element: 0x0010}
)
