package pdu

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/flatmapit/printscp/internal/sop"
)

// PDU type bytes (4.A), following the constant names the teacher uses in
// internal/pacs/client.go, generalized to the acceptor side.
const (
	TypeAssociateRQ = 0x01
	TypeAssociateAC = 0x02
	TypeAssociateRJ = 0x03
	TypeDataTF      = 0x04
	TypeReleaseRQ   = 0x05
	TypeReleaseRP   = 0x06
	TypeAbort       = 0x07
)

// MalformedPDUError is raised on truncation, an unknown PDU type, or a
// length exceeding 2^31 (4.A).
type MalformedPDUError struct {
	Reason string
}

func (e *MalformedPDUError) Error() string { return "pdu: malformed PDU: " + e.Reason }

// UnsupportedTransferSyntaxError describes a received fragment that names
// a transfer syntax that was not accepted during negotiation (4.A). No
// decoder in this repository returns it: PDVs are decoded with the codec
// chosen for the association, without a per-fragment syntax check.
type UnsupportedTransferSyntaxError struct {
	UID string
}

func (e *UnsupportedTransferSyntaxError) Error() string {
	return "pdu: unsupported transfer syntax: " + e.UID
}

// RawPDU is a PDU as read off the wire before type-specific parsing.
type RawPDU struct {
	Type byte
	Data []byte
}

const maxPDULength = 1 << 31

// ReadRawPDU reads one PDU header + body from r.
func ReadRawPDU(r io.Reader) (*RawPDU, error) {
	header := make([]byte, 6)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	pduType := header[0]
	length := binary.BigEndian.Uint32(header[2:6])
	if length > maxPDULength {
		return nil, &MalformedPDUError{Reason: fmt.Sprintf("length %d exceeds maximum", length)}
	}
	switch pduType {
	case TypeAssociateRQ, TypeAssociateAC, TypeAssociateRJ, TypeDataTF, TypeReleaseRQ, TypeReleaseRP, TypeAbort:
	default:
		return nil, &MalformedPDUError{Reason: fmt.Sprintf("unknown PDU type 0x%02X", pduType)}
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, &MalformedPDUError{Reason: "truncated body: " + err.Error()}
	}
	return &RawPDU{Type: pduType, Data: body}, nil
}

func writeRawPDU(w io.Writer, pduType byte, body []byte) error {
	header := make([]byte, 6)
	header[0] = pduType
	header[1] = 0x00
	binary.BigEndian.PutUint32(header[2:6], uint32(len(body)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// PresentationContextRequest is one proposed presentation context from
// an A-ASSOCIATE-RQ.
type PresentationContextRequest struct {
	ID               byte
	AbstractSyntax   string
	TransferSyntaxes []string
}

// PresentationContextResult is the negotiated outcome for one context,
// carried back in A-ASSOCIATE-AC (4.B).
type PresentationContextResult struct {
	ID             byte
	Result         byte // 0 = acceptance
	AbstractSyntax string
	TransferSyntax string // only meaningful when Result == 0
}

const (
	ResultAcceptance           byte = 0x00
	ResultRejectAbstractSyntax byte = 0x03
	ResultRejectTransferSyntax byte = 0x04
)

// AssociateRQ is a parsed A-ASSOCIATE-RQ.
type AssociateRQ struct {
	CalledAETitle    string
	CallingAETitle   string
	PresentationCtxs []PresentationContextRequest
	MaxPDULength     uint32
}

// ParseAssociateRQ decodes an A-ASSOCIATE-RQ PDU body (4.A/4.B).
func ParseAssociateRQ(data []byte) (*AssociateRQ, error) {
	if len(data) < 68 {
		return nil, &MalformedPDUError{Reason: "A-ASSOCIATE-RQ too short"}
	}
	rq := &AssociateRQ{
		CalledAETitle:  strings.TrimSpace(string(data[4:20])),
		CallingAETitle: strings.TrimSpace(string(data[20:36])),
	}

	offset := 68
	for offset+4 <= len(data) {
		itemType := data[offset]
		itemLength := int(binary.BigEndian.Uint16(data[offset+2 : offset+4]))
		valueStart := offset + 4
		valueEnd := valueStart + itemLength
		if valueEnd > len(data) {
			return nil, &MalformedPDUError{Reason: "association item exceeds PDU length"}
		}
		value := data[valueStart:valueEnd]

		switch itemType {
		case 0x20: // Presentation Context Item
			pc, err := parsePresentationContextRequest(value)
			if err != nil {
				return nil, err
			}
			rq.PresentationCtxs = append(rq.PresentationCtxs, *pc)
		case 0x50: // User Information Item
			if maxLen, ok := parseMaxPDULength(value); ok {
				rq.MaxPDULength = maxLen
			}
		}
		offset = valueEnd
	}
	return rq, nil
}

func parsePresentationContextRequest(data []byte) (*PresentationContextRequest, error) {
	if len(data) < 4 {
		return nil, &MalformedPDUError{Reason: "presentation context item too short"}
	}
	pc := &PresentationContextRequest{ID: data[0]}
	offset := 4
	for offset+4 <= len(data) {
		subType := data[offset]
		subLength := int(binary.BigEndian.Uint16(data[offset+2 : offset+4]))
		valueStart := offset + 4
		valueEnd := valueStart + subLength
		if valueEnd > len(data) {
			return nil, &MalformedPDUError{Reason: "presentation context sub-item exceeds length"}
		}
		value := strings.TrimRight(string(data[valueStart:valueEnd]), "\x00")
		switch subType {
		case 0x30: // Abstract Syntax
			pc.AbstractSyntax = value
		case 0x40: // Transfer Syntax
			pc.TransferSyntaxes = append(pc.TransferSyntaxes, value)
		}
		offset = valueEnd
	}
	return pc, nil
}

func parseMaxPDULength(data []byte) (uint32, bool) {
	offset := 0
	for offset+4 <= len(data) {
		subType := data[offset]
		subLength := int(binary.BigEndian.Uint16(data[offset+2 : offset+4]))
		valueStart := offset + 4
		valueEnd := valueStart + subLength
		if valueEnd > len(data) {
			return 0, false
		}
		if subType == 0x51 && subLength == 4 {
			return binary.BigEndian.Uint32(data[valueStart:valueEnd]), true
		}
		offset = valueEnd
	}
	return 0, false
}

// NegotiatePresentationContexts selects, for each proposed context, the
// first transfer syntax this service accepts, and either accepts or
// rejects the context (4.B). Unknown abstract syntaxes are rejected with
// "abstract syntax not supported" (ResultRejectAbstractSyntax).
func NegotiatePresentationContexts(requested []PresentationContextRequest) []PresentationContextResult {
	results := make([]PresentationContextResult, 0, len(requested))
	for _, rq := range requested {
		res := PresentationContextResult{ID: rq.ID, AbstractSyntax: rq.AbstractSyntax, Result: ResultRejectAbstractSyntax}
		if sop.IsAcceptedAbstractSyntax(rq.AbstractSyntax) {
			res.Result = ResultRejectTransferSyntax
			for _, ts := range rq.TransferSyntaxes {
				if sop.SupportedTransferSyntax(ts) {
					res.Result = ResultAcceptance
					res.TransferSyntax = ts
					break
				}
			}
		}
		results = append(results, res)
	}
	return results
}

// BuildAssociateAC encodes an A-ASSOCIATE-AC PDU accepting calledAE with
// the given negotiated contexts and maximum PDU length (4.B).
func BuildAssociateAC(calledAE, callingAE string, results []PresentationContextResult, maxPDULength uint32) []byte {
	var body []byte
	body = append(body, 0x00, 0x01) // protocol version
	body = append(body, 0x00, 0x00) // reserved
	body = append(body, padAET(calledAE)...)
	body = append(body, padAET(callingAE)...)
	body = append(body, make([]byte, 32)...) // reserved

	body = append(body, applicationContextItem()...)
	for _, res := range results {
		body = append(body, presentationContextACItem(res)...)
	}
	body = append(body, userInformationItem(maxPDULength)...)

	var pdu []byte
	header := make([]byte, 6)
	header[0] = TypeAssociateAC
	binary.BigEndian.PutUint32(header[2:6], uint32(len(body)))
	pdu = append(pdu, header...)
	pdu = append(pdu, body...)
	return pdu
}

func padAET(aet string) []byte {
	out := make([]byte, 16)
	for i := range out {
		out[i] = ' '
	}
	copy(out, aet)
	return out
}

func applicationContextItem() []byte {
	value := []byte(sop.ApplicationContext)
	if len(value)%2 == 1 {
		value = append(value, 0x00)
	}
	item := []byte{0x10, 0x00}
	lenBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(lenBuf, uint16(len(value)))
	item = append(item, lenBuf...)
	return append(item, value...)
}

func presentationContextACItem(res PresentationContextResult) []byte {
	var sub []byte
	if res.TransferSyntax != "" {
		tsValue := []byte(res.TransferSyntax)
		if len(tsValue)%2 == 1 {
			tsValue = append(tsValue, 0x00)
		}
		tsItem := []byte{0x40, 0x00}
		tsLen := make([]byte, 2)
		binary.BigEndian.PutUint16(tsLen, uint16(len(tsValue)))
		tsItem = append(tsItem, tsLen...)
		tsItem = append(tsItem, tsValue...)
		sub = append(sub, tsItem...)
	}

	body := []byte{res.ID, 0x00, res.Result, 0x00}
	body = append(body, sub...)

	item := []byte{0x21, 0x00}
	lenBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(lenBuf, uint16(len(body)))
	item = append(item, lenBuf...)
	return append(item, body...)
}

func userInformationItem(maxPDULength uint32) []byte {
	maxLenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(maxLenBuf, maxPDULength)
	maxLenSub := []byte{0x51, 0x00, 0x00, 0x04}
	maxLenSub = append(maxLenSub, maxLenBuf...)

	item := []byte{0x50, 0x00}
	lenBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(lenBuf, uint16(len(maxLenSub)))
	item = append(item, lenBuf...)
	return append(item, maxLenSub...)
}

// AssociationRejectReason / AssociationRejectSource per PS3.8, used to
// build A-ASSOCIATE-RJ (4.B).
const (
	RejectSourceServiceUser     = 0x01
	RejectSourceServiceProvider = 0x02

	RejectReasonNoReasonGiven               = 0x01
	RejectReasonCalledAETitleNotRecognized  = 0x07
	RejectReasonNoAcceptablePresentationCtx = 0x02
)

// BuildAssociateRJ encodes an A-ASSOCIATE-RJ PDU (4.B).
func BuildAssociateRJ(source, reason byte) []byte {
	body := []byte{0x00, 0x01 /*result=rejected-permanent*/, source, reason}
	var pdu []byte
	header := make([]byte, 6)
	header[0] = TypeAssociateRJ
	binary.BigEndian.PutUint32(header[2:6], uint32(len(body)))
	pdu = append(pdu, header...)
	pdu = append(pdu, body...)
	return pdu
}

// PDV is one Presentation Data Value fragment carried in a P-DATA-TF
// PDU: a chunk of either the DIMSE command set or its data set.
type PDV struct {
	PresentationContextID byte
	IsCommand             bool
	IsLast                bool
	Data                  []byte
}

// ParsePDataTF decodes a P-DATA-TF PDU body into its PDV fragments.
func ParsePDataTF(data []byte) ([]PDV, error) {
	var pdvs []PDV
	offset := 0
	for offset+4 <= len(data) {
		pdvLength := binary.BigEndian.Uint32(data[offset : offset+4])
		offset += 4
		if offset+int(pdvLength) > len(data) {
			return nil, &MalformedPDUError{Reason: "PDV exceeds P-DATA-TF body"}
		}
		if pdvLength < 2 {
			return nil, &MalformedPDUError{Reason: "PDV shorter than header"}
		}
		pcID := data[offset]
		ctrl := data[offset+1]
		fragment := data[offset+2 : offset+int(pdvLength)]
		pdvs = append(pdvs, PDV{
			PresentationContextID: pcID,
			IsCommand:             ctrl&0x01 != 0,
			IsLast:                ctrl&0x02 != 0,
			Data:                  fragment,
		})
		offset += int(pdvLength)
	}
	return pdvs, nil
}

// WritePDataTF fragments data into PDVs no larger than maxPDULength
// allows and writes one P-DATA-TF PDU per fragment, following the
// teacher's internal/pacs/dimse.go sendPDataTF framing.
func WritePDataTF(w io.Writer, presContextID byte, maxPDULength uint32, data []byte, isCommand bool) error {
	maxPDVData := int(maxPDULength) - 6 - 2
	if maxPDVData <= 0 {
		maxPDVData = 16384 - 8
	}
	if len(data) == 0 {
		return writePDV(w, presContextID, isCommand, true, nil)
	}
	offset := 0
	for offset < len(data) {
		chunkSize := len(data) - offset
		last := true
		if chunkSize > maxPDVData {
			chunkSize = maxPDVData
			last = false
		}
		if err := writePDV(w, presContextID, isCommand, last, data[offset:offset+chunkSize]); err != nil {
			return err
		}
		offset += chunkSize
	}
	return nil
}

func writePDV(w io.Writer, presContextID byte, isCommand, isLast bool, fragment []byte) error {
	pdvLength := uint32(2 + len(fragment))
	body := make([]byte, 4, 4+pdvLength)
	binary.BigEndian.PutUint32(body, pdvLength)
	body = append(body, presContextID)
	ctrl := byte(0)
	if isCommand {
		ctrl |= 0x01
	}
	if isLast {
		ctrl |= 0x02
	}
	body = append(body, ctrl)
	body = append(body, fragment...)
	return writeRawPDU(w, TypeDataTF, body)
}

// BuildReleaseRP encodes an A-RELEASE-RP PDU.
func BuildReleaseRP() []byte {
	header := make([]byte, 10)
	header[0] = TypeReleaseRP
	binary.BigEndian.PutUint32(header[2:6], 4)
	return header
}

// BuildAbort encodes an A-ABORT PDU with the given source/reason.
func BuildAbort(source, reason byte) []byte {
	body := []byte{0x00, 0x00, source, reason}
	header := make([]byte, 6)
	header[0] = TypeAbort
	binary.BigEndian.PutUint32(header[2:6], uint32(len(body)))
	return append(header, body...)
}

// Abort sources/reasons used when this service originates the abort
// (service-provider), per §7.
const (
	AbortSourceServiceProvider = 0x02
	AbortReasonNotSpecified    = 0x00
	AbortReasonUnexpectedPDU   = 0x02
)
