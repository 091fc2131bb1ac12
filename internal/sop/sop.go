// Package sop holds the SOP Class and Transfer Syntax UID constants this
// service recognizes (spec.md §6).
package sop

// Transfer syntaxes the wire codec accepts (4.A). Other transfer syntaxes
// may be proposed during association negotiation but are never selected.
const (
	ImplicitVRLittleEndian = "1.2.840.10008.1.2"
	ExplicitVRLittleEndian = "1.2.840.10008.1.2.1"
)

// Application Context Name (4.B negotiation).
const ApplicationContext = "1.2.840.10008.3.1.1.1"

// Required accepted abstract syntaxes (§6), each served as SCP.
const (
	Verification                   = "1.2.840.10008.1.1"
	BasicGrayscalePrintManagement  = "1.2.840.10008.5.1.1.9"
	BasicColorPrintManagement      = "1.2.840.10008.5.1.1.18"
	BasicFilmSession               = "1.2.840.10008.5.1.1.1"
	BasicFilmBox                   = "1.2.840.10008.5.1.1.2"
	BasicGrayscaleImageBox         = "1.2.840.10008.5.1.1.4"
	BasicColorImageBox             = "1.2.840.10008.5.1.1.4.1"
	Printer                        = "1.2.840.10008.5.1.1.16"
	PrinterConfigurationRetrieval  = "1.2.840.10008.5.1.1.16.376"
)

// Storage SOP Classes optionally accepted to support the C-STORE fallback
// path (4.B). Only a representative subset is enumerated, and only these
// exact UIDs are accepted; other Storage SOP Class UIDs are not.
var StorageSOPClasses = map[string]bool{
	"1.2.840.10008.5.1.4.1.1.1":   true, // Computed Radiography
	"1.2.840.10008.5.1.4.1.1.1.1": true, // Digital X-Ray (Presentation)
	"1.2.840.10008.5.1.4.1.1.2":   true, // CT
	"1.2.840.10008.5.1.4.1.1.4":   true, // MR
	"1.2.840.10008.5.1.4.1.1.6.1": true, // Ultrasound
	"1.2.840.10008.5.1.4.1.1.7":   true, // Secondary Capture
}

// IsStorageSOPClass reports whether uid names one of the Storage SOP
// Classes this service may optionally accept as SCP.
func IsStorageSOPClass(uid string) bool {
	return StorageSOPClasses[uid]
}

// acceptedAbstractSyntaxes is the full set of abstract syntaxes the
// association acceptor (4.B) will negotiate as SCP.
var acceptedAbstractSyntaxes = map[string]bool{
	Verification:                  true,
	BasicGrayscalePrintManagement: true,
	BasicColorPrintManagement:     true,
	BasicFilmSession:              true,
	BasicFilmBox:                  true,
	BasicGrayscaleImageBox:        true,
	BasicColorImageBox:            true,
	Printer:                       true,
	PrinterConfigurationRetrieval: true,
}

// IsAcceptedAbstractSyntax reports whether uid is one of the abstract
// syntaxes this service negotiates, including any Storage SOP Class.
func IsAcceptedAbstractSyntax(uid string) bool {
	return acceptedAbstractSyntaxes[uid] || IsStorageSOPClass(uid)
}

// SupportedTransferSyntax reports whether uid is a transfer syntax this
// service can encode/decode (4.A).
func SupportedTransferSyntax(uid string) bool {
	return uid == ImplicitVRLittleEndian || uid == ExplicitVRLittleEndian
}

// well-known Printer SOP Instance UID (§3/SUPPLEMENTED FEATURES): this
// service reports a single configured printer, queryable via N-GET,
// exactly as original_source/printer.py always reports one printer.
const PrinterInstanceUID = "1.2.840.10008.5.1.1.16.1"
