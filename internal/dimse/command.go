// Package dimse implements the DIMSE command codec and dispatcher (4.C):
// it turns PDV fragments into typed request/response commands and routes
// them to the print-data-model handlers in internal/printstore.
package dimse

import (
	"fmt"
	"io"

	"github.com/flatmapit/printscp/internal/pdu"
)

// Command Field values (PS3.7 Annex E), the operations this service's
// DIMSE dispatcher (4.C) must route.
const (
	CEchoRQ      uint16 = 0x0030
	CEchoRSP     uint16 = 0x8030
	CStoreRQ     uint16 = 0x0001
	CStoreRSP    uint16 = 0x8001
	NGetRQ       uint16 = 0x0110
	NGetRSP      uint16 = 0x8110
	NSetRQ       uint16 = 0x0120
	NSetRSP      uint16 = 0x8120
	NActionRQ    uint16 = 0x0130
	NActionRSP   uint16 = 0x8130
	NCreateRQ    uint16 = 0x0140
	NCreateRSP   uint16 = 0x8140
	NDeleteRQ    uint16 = 0x0150
	NDeleteRSP   uint16 = 0x8150
)

// Status codes (§4.C).
const (
	StatusSuccess                  uint16 = 0x0000
	StatusWarningMaxDensity        uint16 = 0xB605
	StatusInvalidAttributeValue    uint16 = 0x0106
	StatusProcessingFailure        uint16 = 0x0110
	StatusNoSuchObjectInstance     uint16 = 0x0112
	StatusInvalidObjectInstance    uint16 = 0x0117
	StatusResourceLimitation       uint16 = 0x0213
)

// IsFailure reports whether status is in the 0xC000-0xCFFF processing
// failure range or one of the other failure codes this service emits.
func IsFailure(status uint16) bool {
	if status == StatusSuccess || status == StatusWarningMaxDensity {
		return false
	}
	return true
}

// Tags used in the command set itself (group 0000), per PS3.7.
var (
	TagCommandGroupLength        = pdu.Tag{Group: 0x0000, Element: 0x0000}
	TagAffectedSOPClassUID       = pdu.Tag{Group: 0x0000, Element: 0x0002}
	TagRequestedSOPClassUID      = pdu.Tag{Group: 0x0000, Element: 0x0003}
	TagCommandField              = pdu.Tag{Group: 0x0000, Element: 0x0100}
	TagMessageID                 = pdu.Tag{Group: 0x0000, Element: 0x0110}
	TagMessageIDBeingRespondedTo = pdu.Tag{Group: 0x0000, Element: 0x0120}
	TagPriority                  = pdu.Tag{Group: 0x0000, Element: 0x0700}
	TagCommandDataSetType        = pdu.Tag{Group: 0x0000, Element: 0x0800}
	TagStatus                    = pdu.Tag{Group: 0x0000, Element: 0x0900}
	TagAffectedSOPInstanceUID    = pdu.Tag{Group: 0x0000, Element: 0x1000}
	TagRequestedSOPInstanceUID   = pdu.Tag{Group: 0x0000, Element: 0x1001}
	TagActionTypeID              = pdu.Tag{Group: 0x0000, Element: 0x1008}
)

const noDataSetPresent = 0x0101
const dataSetPresent = 0x0000

// Command is a parsed DIMSE command set, generalized from
// dicomnet/dimse/store.go's two-command Message struct to the five
// Normalized operations plus C-ECHO/C-STORE this service drives.
type Command struct {
	CommandField              uint16
	MessageID                 uint16
	MessageIDBeingRespondedTo uint16
	AffectedSOPClassUID       string
	RequestedSOPClassUID      string
	AffectedSOPInstanceUID    string
	RequestedSOPInstanceUID   string
	ActionTypeID              int
	Status                    uint16
	HasDataSet                bool
}

// EncodeCommand serializes cmd as an Implicit VR Little Endian command
// set, following dicomnet/dimse/store.go's EncodeCommand element order.
func EncodeCommand(cmd *Command) []byte {
	ds := pdu.NewDataset()
	if cmd.AffectedSOPClassUID != "" {
		ds.Set(TagAffectedSOPClassUID, pdu.VRUI, cmd.AffectedSOPClassUID)
	}
	if cmd.RequestedSOPClassUID != "" {
		ds.Set(TagRequestedSOPClassUID, pdu.VRUI, cmd.RequestedSOPClassUID)
	}
	ds.Set(TagCommandField, pdu.VRUS, cmd.CommandField)
	if cmd.MessageID != 0 {
		ds.Set(TagMessageID, pdu.VRUS, cmd.MessageID)
	}
	if cmd.MessageIDBeingRespondedTo != 0 {
		ds.Set(TagMessageIDBeingRespondedTo, pdu.VRUS, cmd.MessageIDBeingRespondedTo)
	}
	if cmd.AffectedSOPInstanceUID != "" {
		ds.Set(TagAffectedSOPInstanceUID, pdu.VRUI, cmd.AffectedSOPInstanceUID)
	}
	if cmd.RequestedSOPInstanceUID != "" {
		ds.Set(TagRequestedSOPInstanceUID, pdu.VRUI, cmd.RequestedSOPInstanceUID)
	}
	if cmd.CommandField == NActionRQ {
		ds.Set(TagActionTypeID, pdu.VRUS, uint16(cmd.ActionTypeID))
	}
	dataSetType := uint16(noDataSetPresent)
	if cmd.HasDataSet {
		dataSetType = dataSetPresent
	}
	ds.Set(TagCommandDataSetType, pdu.VRUS, dataSetType)
	if isResponse(cmd.CommandField) {
		ds.Set(TagStatus, pdu.VRUS, cmd.Status)
	}

	body := pdu.EncodeDataset(ds, false)
	groupLen := uint32(len(body))
	// The group length element (0000,0000) is itself excluded from the
	// length it reports, but must be the first element on the wire.
	glDS := pdu.NewDataset()
	glDS.Set(TagCommandGroupLength, pdu.VRUL, groupLen)
	header := pdu.EncodeDataset(glDS, false)
	return append(header, body...)
}

func isResponse(commandField uint16) bool {
	return commandField&0x8000 != 0
}

// DecodeCommand parses an Implicit VR Little Endian command set.
func DecodeCommand(data []byte) (*Command, error) {
	ds, err := pdu.DecodeDataset(data, false)
	if err != nil {
		return nil, fmt.Errorf("dimse: decode command: %w", err)
	}
	cmd := &Command{}
	if v, ok := ds.Get(TagCommandField); ok {
		cmd.CommandField, _ = v.Value.(uint16)
	}
	cmd.AffectedSOPClassUID = ds.String(TagAffectedSOPClassUID)
	cmd.RequestedSOPClassUID = ds.String(TagRequestedSOPClassUID)
	cmd.AffectedSOPInstanceUID = ds.String(TagAffectedSOPInstanceUID)
	cmd.RequestedSOPInstanceUID = ds.String(TagRequestedSOPInstanceUID)
	if v, ok := ds.Get(TagMessageID); ok {
		cmd.MessageID, _ = v.Value.(uint16)
	}
	if v, ok := ds.Get(TagMessageIDBeingRespondedTo); ok {
		cmd.MessageIDBeingRespondedTo, _ = v.Value.(uint16)
	}
	if v, ok := ds.Get(TagActionTypeID); ok {
		if n, ok := v.Value.(uint16); ok {
			cmd.ActionTypeID = int(n)
		}
	}
	if v, ok := ds.Get(TagStatus); ok {
		cmd.Status, _ = v.Value.(uint16)
	}
	if v, ok := ds.Get(TagCommandDataSetType); ok {
		if n, ok := v.Value.(uint16); ok {
			cmd.HasDataSet = n != noDataSetPresent
		}
	}
	return cmd, nil
}

// Message is a fully-assembled DIMSE request or response: the command
// set plus its optional data set, already defragmented from PDVs.
type Message struct {
	Command *Command
	Data    []byte // raw data-set bytes, encoded per the association's transfer syntax
}

// ReadMessage reads PDVs from the presentation data stream until a
// complete command (and, if CommandDataSetType indicates one, data set)
// has been assembled. pdvs is typically produced by repeated calls to
// pdu.ParsePDataTF as P-DATA-TF PDUs arrive.
func ReadMessage(nextPDV func() (pdu.PDV, error)) (*Message, byte, error) {
	var commandBuf []byte
	var presContextID byte
	for {
		pdv, err := nextPDV()
		if err != nil {
			return nil, 0, err
		}
		if !pdv.IsCommand {
			return nil, 0, fmt.Errorf("dimse: expected command PDV, got data PDV")
		}
		presContextID = pdv.PresentationContextID
		commandBuf = append(commandBuf, pdv.Data...)
		if pdv.IsLast {
			break
		}
	}

	cmd, err := DecodeCommand(commandBuf)
	if err != nil {
		return nil, 0, err
	}

	msg := &Message{Command: cmd}
	if cmd.HasDataSet {
		var dataBuf []byte
		for {
			pdv, err := nextPDV()
			if err != nil {
				return nil, 0, err
			}
			if pdv.IsCommand {
				return nil, 0, fmt.Errorf("dimse: expected data PDV, got command PDV")
			}
			dataBuf = append(dataBuf, pdv.Data...)
			if pdv.IsLast {
				break
			}
		}
		msg.Data = dataBuf
	}
	return msg, presContextID, nil
}

// WriteMessage fragments and sends cmd (and, if non-empty, data) as one
// or more P-DATA-TF PDUs, following dicomnet/dimse/store.go's
// SendDIMSEMessage shape.
func WriteMessage(w io.Writer, presContextID byte, maxPDULength uint32, cmd *Command, data []byte) error {
	cmd.HasDataSet = len(data) > 0
	commandBytes := EncodeCommand(cmd)
	if err := pdu.WritePDataTF(w, presContextID, maxPDULength, commandBytes, true); err != nil {
		return err
	}
	if len(data) > 0 {
		if err := pdu.WritePDataTF(w, presContextID, maxPDULength, data, false); err != nil {
			return err
		}
	}
	return nil
}
