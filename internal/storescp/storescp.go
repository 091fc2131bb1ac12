// Package storescp implements the optional C-STORE fallback path
// (§6 "Storage SOP Classes may additionally be accepted"): ingesting a
// Part10-less DICOM data set pushed by a modality or viewer and folding
// it into an Image Box's pixel data/metadata, so a single association
// can both receive an image via C-STORE and print it.
package storescp

import (
	"bytes"
	"fmt"

	dicomsdk "github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/flatmapit/printscp/pkg/types"
)

// Ingest decodes a C-STORE data set (the DIMSE data set bytes, not a
// full Part10 file: no 128-byte preamble or "DICM" magic) and extracts
// the pixel data plus the image metadata this service's print pipeline
// needs, using github.com/suyashkumar/dicom's element-level reader.
func Ingest(data []byte) (*types.ImagePixelMetadata, []byte, error) {
	dataset, err := dicomsdk.Parse(bytes.NewReader(data), int64(len(data)), nil, dicomsdk.SkipPixelData(false))
	if err != nil {
		return nil, nil, fmt.Errorf("storescp: parse: %w", err)
	}
	return extractPixelMetadata(dataset.Elements)
}

// extractPixelMetadata walks a parsed element list for the fields the
// print pipeline needs, split out from Ingest so it can be exercised
// without driving the library's own transfer-syntax detection.
func extractPixelMetadata(elements []*dicomsdk.Element) (*types.ImagePixelMetadata, []byte, error) {
	meta := types.ImagePixelMetadata{SamplesPerPixel: 1, BitsAllocated: 8, BitsStored: 8, HighBit: 7}
	var pixelBytes []byte

	for _, elem := range elements {
		switch elem.Tag {
		case tag.Rows:
			meta.Rows = intValue(elem)
		case tag.Columns:
			meta.Columns = intValue(elem)
		case tag.BitsAllocated:
			meta.BitsAllocated = intValue(elem)
		case tag.BitsStored:
			meta.BitsStored = intValue(elem)
		case tag.HighBit:
			meta.HighBit = intValue(elem)
		case tag.PixelRepresentation:
			meta.PixelRepresentation = intValue(elem)
		case tag.PhotometricInterpretation:
			meta.PhotometricInterpretation = stringValue(elem)
		case tag.SamplesPerPixel:
			meta.SamplesPerPixel = intValue(elem)
		case tag.PlanarConfiguration:
			meta.PlanarConfiguration = intValue(elem)
		case tag.PixelData:
			pixelBytes = pixelDataBytes(elem)
		}
	}

	if meta.Rows == 0 || meta.Columns == 0 || len(pixelBytes) == 0 {
		return nil, nil, fmt.Errorf("storescp: data set missing rows/columns/pixel data")
	}
	return &meta, pixelBytes, nil
}

func intValue(elem *dicomsdk.Element) int {
	vals := elem.Value.GetValue()
	if ints, ok := vals.([]int); ok && len(ints) > 0 {
		return ints[0]
	}
	return 0
}

func stringValue(elem *dicomsdk.Element) string {
	vals := elem.Value.GetValue()
	if strs, ok := vals.([]string); ok && len(strs) > 0 {
		return strs[0]
	}
	return ""
}

// pixelDataBytes flattens the native PixelDataInfo frames into one
// contiguous buffer, matching the layout internal/pixel expects. Each
// frame's NativeData.Data is already the raw little-endian sample bytes
// for that frame, so frames are simply concatenated.
func pixelDataBytes(elem *dicomsdk.Element) []byte {
	vals := elem.Value.GetValue()
	info, ok := vals.(dicomsdk.PixelDataInfo)
	if !ok {
		return nil
	}
	var out []byte
	for _, frame := range info.Frames {
		if frame.NativeData.Data == nil {
			continue
		}
		out = append(out, frame.NativeData.Data...)
	}
	return out
}
