package pdu

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Value Representations this codec understands. VR constants and the
// short/long length-field split below follow dicomnet/dicom/dataset.go.
const (
	VRAE = "AE"
	VRAS = "AS"
	VRAT = "AT"
	VRCS = "CS"
	VRDA = "DA"
	VRDS = "DS"
	VRDT = "DT"
	VRFL = "FL"
	VRFD = "FD"
	VRIS = "IS"
	VRLO = "LO"
	VRLT = "LT"
	VROB = "OB"
	VROW = "OW"
	VRPN = "PN"
	VRSH = "SH"
	VRSL = "SL"
	VRSQ = "SQ"
	VRSS = "SS"
	VRST = "ST"
	VRTM = "TM"
	VRUI = "UI"
	VRUL = "UL"
	VRUN = "UN"
	VRUS = "US"
	VRUT = "UT"
)

// longFormVR is the set of VRs that use the 4-byte-length explicit-VR
// encoding (2 reserved bytes + 4-byte length) rather than the 2-byte
// short form. Mirrors dicomnet/dicom/dataset.go's isLongVR table.
var longFormVR = map[string]bool{
	"OB": true, "OD": true, "OF": true, "OL": true, "OW": true,
	"SQ": true, "UC": true, "UR": true, "UT": true, "UN": true,
	"OV": true, "SV": true, "UV": true,
}

// Tag identifies a DICOM data element by (group, element).
type Tag struct {
	Group   uint16
	Element uint16
}

func (t Tag) String() string {
	return fmt.Sprintf("(%04X,%04X)", t.Group, t.Element)
}

// ItemTag / ItemDelimitationTag / SeqDelimitationTag are the special tags
// that bound SQ items and SQ values of undefined length.
var (
	ItemTag             = Tag{0xFFFE, 0xE000}
	ItemDelimitationTag = Tag{0xFFFE, 0xE00D}
	SeqDelimitationTag  = Tag{0xFFFE, 0xE0DD}
)

const undefinedLength = 0xFFFFFFFF

// Element is a single DICOM data element. Value holds a string, a
// uint16 (US), a uint32 (UL), a []byte (OB/OW/UN/pixel data), or a
// []*Dataset (SQ).
type Element struct {
	Tag   Tag
	VR    string
	Value interface{}
}

// Dataset is an ordered-by-insertion collection of elements, matching
// the hierarchical attribute bags N-CREATE/N-SET/N-GET exchange.
type Dataset struct {
	order    []Tag
	elements map[Tag]*Element
}

// NewDataset returns an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{elements: make(map[Tag]*Element)}
}

// Set adds or replaces an element.
func (d *Dataset) Set(tag Tag, vr string, value interface{}) {
	if _, exists := d.elements[tag]; !exists {
		d.order = append(d.order, tag)
	}
	d.elements[tag] = &Element{Tag: tag, VR: vr, Value: value}
}

// Get returns the element for tag, if present.
func (d *Dataset) Get(tag Tag) (*Element, bool) {
	e, ok := d.elements[tag]
	return e, ok
}

// String returns a trimmed string value for tag, or "" if absent or not
// string-shaped.
func (d *Dataset) String(tag Tag) string {
	if e, ok := d.elements[tag]; ok {
		if s, ok := e.Value.(string); ok {
			return strings.TrimRight(strings.TrimSpace(s), "\x00")
		}
	}
	return ""
}

// Int returns an integer value for tag, taken from an int, a uint16 (US)
// or a decimal string (IS); any other value shape (including UL's
// uint32) and an absent tag report 0, false.
func (d *Dataset) Int(tag Tag) (int, bool) {
	e, ok := d.elements[tag]
	if !ok {
		return 0, false
	}
	switch v := e.Value.(type) {
	case int:
		return v, true
	case uint16:
		return int(v), true
	case string:
		var n int
		if _, err := fmt.Sscanf(strings.TrimSpace(v), "%d", &n); err == nil {
			return n, true
		}
	}
	return 0, false
}

// Bytes returns a []byte value for tag (OB/OW/UN), or nil if absent.
func (d *Dataset) Bytes(tag Tag) []byte {
	if e, ok := d.elements[tag]; ok {
		if b, ok := e.Value.([]byte); ok {
			return b
		}
	}
	return nil
}

// Elements returns the dataset's elements in insertion order.
func (d *Dataset) Elements() []*Element {
	out := make([]*Element, 0, len(d.order))
	for _, t := range d.order {
		out = append(out, d.elements[t])
	}
	return out
}

// Transcoding: implicit VR carries no VR byte on the wire, so the decoder
// must look the VR up; this service only needs a small table of the tags
// it actually reads/writes (command elements plus the print attributes
// in spec.md §3). Unknown tags decode as UN (raw bytes), matching
// dicomnet/dicom/dataset.go's behavior of treating unrecognized short
// forms as opaque.
var implicitVRTable = map[Tag]string{
	{0x0000, 0x0000}: VRUL, // Command Group Length
	{0x0000, 0x0002}: VRUI, // Affected SOP Class UID
	{0x0000, 0x0003}: VRUI, // Requested SOP Class UID
	{0x0000, 0x0100}: VRUS, // Command Field
	{0x0000, 0x0110}: VRUS, // Message ID
	{0x0000, 0x0120}: VRUS, // Message ID Being Responded To
	{0x0000, 0x0600}: VRAE, // Move Destination
	{0x0000, 0x0700}: VRUS, // Priority
	{0x0000, 0x0800}: VRUS, // Command Data Set Type
	{0x0000, 0x0900}: VRUS, // Status
	{0x0000, 0x1000}: VRUI, // Affected SOP Instance UID
	{0x0000, 0x1001}: VRUI, // Requested SOP Instance UID
	{0x0000, 0x1008}: VRUS, // Action Type ID

	{0x0008, 0x0016}: VRUI, // SOP Class UID
	{0x0008, 0x0018}: VRUI, // SOP Instance UID

	{0x0028, 0x0002}: VRUS, // Samples per Pixel
	{0x0028, 0x0004}: VRCS, // Photometric Interpretation
	{0x0028, 0x0006}: VRUS, // Planar Configuration
	{0x0028, 0x0010}: VRUS, // Rows
	{0x0028, 0x0011}: VRUS, // Columns
	{0x0028, 0x0100}: VRUS, // Bits Allocated
	{0x0028, 0x0101}: VRUS, // Bits Stored
	{0x0028, 0x0102}: VRUS, // High Bit
	{0x0028, 0x0103}: VRUS, // Pixel Representation
	{0x0028, 0x1050}: VRDS, // Window Center
	{0x0028, 0x1051}: VRDS, // Window Width

	{0x2000, 0x0010}: VRIS, // Number of Copies
	{0x2000, 0x0020}: VRCS, // Print Priority
	{0x2000, 0x0030}: VRCS, // Medium Type
	{0x2000, 0x0040}: VRCS, // Film Destination
	{0x2010, 0x0010}: VRST, // Image Display Format
	{0x2010, 0x0040}: VRCS, // Film Orientation
	{0x2010, 0x0050}: VRCS, // Film Size ID
	{0x2010, 0x0060}: VRCS, // Magnification Type (film box)
	{0x2010, 0x0100}: VRCS, // Border Density
	{0x2010, 0x0130}: VRUS, // Max Density
	{0x2010, 0x0140}: VRCS, // Trim
	{0x2010, 0x0500}: VRSQ, // Referenced Image Box Sequence
	{0x2020, 0x0010}: VRUS, // Image Position
	{0x2020, 0x0020}: VRCS, // Polarity
	{0x2020, 0x0030}: VRCS, // Magnification Type (image box)
	{0x7FE0, 0x0010}: VROB, // Pixel Data

	{0x0099, 0x0010}: VRUI, // Referenced Storage SOP Instance UID (private extension)
}

func vrFor(tag Tag) string {
	if vr, ok := implicitVRTable[tag]; ok {
		return vr
	}
	return VRUN
}

// DecodeDataset parses data as a sequence of data elements using either
// Implicit VR Little Endian or Explicit VR Little Endian, the two
// transfer syntaxes this service accepts (4.A). Sequences (SQ) recurse
// to arbitrary depth, including the undefined-length form terminated by
// a Sequence Delimitation Item.
func DecodeDataset(data []byte, explicitVR bool) (*Dataset, error) {
	ds := NewDataset()
	_, err := decodeElements(data, explicitVR, ds)
	return ds, err
}

func decodeElements(data []byte, explicitVR bool, into *Dataset) (int, error) {
	offset := 0
	for offset < len(data) {
		if offset+8 > len(data) {
			return offset, fmt.Errorf("pdu: truncated element header at offset %d", offset)
		}

		group := binary.LittleEndian.Uint16(data[offset : offset+2])
		element := binary.LittleEndian.Uint16(data[offset+2 : offset+4])
		tag := Tag{group, element}

		if tag == SeqDelimitationTag || tag == ItemDelimitationTag {
			offset += 8
			return offset, nil
		}

		var vr string
		var length uint32
		var valueOffset int

		if explicitVR {
			vr = string(data[offset+4 : offset+6])
			if longFormVR[vr] {
				if offset+12 > len(data) {
					return offset, fmt.Errorf("pdu: truncated long-VR header at offset %d", offset)
				}
				length = binary.LittleEndian.Uint32(data[offset+8 : offset+12])
				valueOffset = offset + 12
			} else {
				length = uint32(binary.LittleEndian.Uint16(data[offset+6 : offset+8]))
				valueOffset = offset + 8
			}
		} else {
			vr = vrFor(tag)
			if offset+8 > len(data) {
				return offset, fmt.Errorf("pdu: truncated implicit header at offset %d", offset)
			}
			length = binary.LittleEndian.Uint32(data[offset+4 : offset+8])
			valueOffset = offset + 8
		}

		if tag.Group == 0xFFFE && tag == ItemTag {
			// bare Item outside of a sequence value loop: treat as opaque
			vr = VRUN
		}

		if vr == VRSQ {
			seq, next, err := decodeSequence(data, valueOffset, length, explicitVR)
			if err != nil {
				return offset, err
			}
			into.Set(tag, VRSQ, seq)
			offset = next
			continue
		}

		if length == undefinedLength {
			return offset, fmt.Errorf("pdu: undefined length on non-SQ element %s", tag)
		}

		if valueOffset+int(length) > len(data) {
			return offset, fmt.Errorf("pdu: element %s value exceeds buffer", tag)
		}

		raw := data[valueOffset : valueOffset+int(length)]
		into.Set(tag, vr, decodeValue(vr, raw))

		next := valueOffset + int(length)
		if length%2 == 1 {
			next++
		}
		offset = next
	}
	return offset, nil
}

// decodeSequence reads SQ items starting at offset. A defined length
// bounds the whole sequence value; an undefined length (0xFFFFFFFF) means
// read items until a Sequence Delimitation Item is seen.
func decodeSequence(data []byte, offset int, length uint32, explicitVR bool) ([]*Dataset, int, error) {
	var items []*Dataset
	end := len(data)
	if length != undefinedLength {
		end = offset + int(length)
		if end > len(data) {
			return nil, offset, fmt.Errorf("pdu: sequence value exceeds buffer")
		}
	}

	for offset < end {
		if offset+8 > len(data) {
			return nil, offset, fmt.Errorf("pdu: truncated sequence item header")
		}
		group := binary.LittleEndian.Uint16(data[offset : offset+2])
		element := binary.LittleEndian.Uint16(data[offset+2 : offset+4])
		itemLength := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		offset += 8

		if (Tag{group, element}) == SeqDelimitationTag {
			return items, offset, nil
		}
		if (Tag{group, element}) != ItemTag {
			return nil, offset, fmt.Errorf("pdu: expected Item tag in sequence, got (%04X,%04X)", group, element)
		}

		item := NewDataset()
		if itemLength == undefinedLength {
			consumed, err := decodeElements(data[offset:], explicitVR, item)
			if err != nil {
				return nil, offset, err
			}
			offset += consumed
		} else {
			if offset+int(itemLength) > len(data) {
				return nil, offset, fmt.Errorf("pdu: sequence item exceeds buffer")
			}
			if _, err := decodeElements(data[offset:offset+int(itemLength)], explicitVR, item); err != nil {
				return nil, offset, err
			}
			offset += int(itemLength)
		}
		items = append(items, item)

		if length == undefinedLength && offset >= len(data) {
			break
		}
	}
	return items, offset, nil
}

func decodeValue(vr string, raw []byte) interface{} {
	switch vr {
	case VRUS:
		if len(raw) >= 2 {
			return uint16(binary.LittleEndian.Uint16(raw))
		}
		return uint16(0)
	case VRUL:
		if len(raw) >= 4 {
			return binary.LittleEndian.Uint32(raw)
		}
		return uint32(0)
	case VROB, VROW, VRUN:
		out := make([]byte, len(raw))
		copy(out, raw)
		return out
	default:
		return strings.TrimRight(string(raw), "\x00 ")
	}
}

// EncodeDataset serializes a dataset back to wire bytes using the given
// transfer syntax. Round-tripping DecodeDataset(EncodeDataset(ds)) yields
// the same tags and values (spec.md §8 round-trip property), except that
// an odd-length OB/OW/UN value comes back with its 0x00 pad byte, since
// every value is padded to even length on the wire.
func EncodeDataset(ds *Dataset, explicitVR bool) []byte {
	var buf []byte
	for _, tag := range ds.order {
		el := ds.elements[tag]
		buf = appendElement(buf, el, explicitVR)
	}
	return buf
}

func appendElement(buf []byte, el *Element, explicitVR bool) []byte {
	tagBuf := make([]byte, 4)
	binary.LittleEndian.PutUint16(tagBuf[0:2], el.Tag.Group)
	binary.LittleEndian.PutUint16(tagBuf[2:4], el.Tag.Element)
	buf = append(buf, tagBuf...)

	if el.VR == VRSQ {
		items, _ := el.Value.([]*Dataset)
		var body []byte
		for _, item := range items {
			itemBody := EncodeDataset(item, explicitVR)
			if len(itemBody)%2 == 1 {
				itemBody = append(itemBody, 0x00)
			}
			itemHeader := make([]byte, 8)
			binary.LittleEndian.PutUint16(itemHeader[0:2], ItemTag.Group)
			binary.LittleEndian.PutUint16(itemHeader[2:4], ItemTag.Element)
			binary.LittleEndian.PutUint32(itemHeader[4:8], uint32(len(itemBody)))
			body = append(body, itemHeader...)
			body = append(body, itemBody...)
		}
		return appendHeaderAndValue(buf, el, explicitVR, body)
	}

	value := encodeValue(el.VR, el.Value)
	return appendHeaderAndValue(buf, el, explicitVR, value)
}

func appendHeaderAndValue(buf []byte, el *Element, explicitVR bool, value []byte) []byte {
	if len(value)%2 == 1 {
		value = append(value, padByte(el.VR))
	}

	if explicitVR {
		buf = append(buf, el.VR[0], el.VR[1])
		if longFormVR[el.VR] {
			buf = append(buf, 0x00, 0x00) // reserved
			lenBuf := make([]byte, 4)
			binary.LittleEndian.PutUint32(lenBuf, uint32(len(value)))
			buf = append(buf, lenBuf...)
		} else {
			lenBuf := make([]byte, 2)
			binary.LittleEndian.PutUint16(lenBuf, uint16(len(value)))
			buf = append(buf, lenBuf...)
		}
	} else {
		lenBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(lenBuf, uint32(len(value)))
		buf = append(buf, lenBuf...)
	}
	return append(buf, value...)
}

func padByte(vr string) byte {
	if vr == VRUI || vr == VROB || vr == VROW || vr == VRUN {
		return 0x00
	}
	return ' '
}

func encodeValue(vr string, value interface{}) []byte {
	switch vr {
	case VRUS:
		v, _ := value.(uint16)
		out := make([]byte, 2)
		binary.LittleEndian.PutUint16(out, v)
		return out
	case VRUL:
		v, _ := value.(uint32)
		out := make([]byte, 4)
		binary.LittleEndian.PutUint32(out, v)
		return out
	case VROB, VROW, VRUN:
		b, _ := value.([]byte)
		return b
	default:
		s, _ := value.(string)
		return []byte(s)
	}
}
