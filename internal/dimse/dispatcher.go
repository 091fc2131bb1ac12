package dimse

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// HandlerFunc processes one DIMSE request and returns the pieces needed
// to build its response. It never panics across the dispatcher boundary
// without being recovered into StatusProcessingFailure (§7 "Exception-
// as-control-flow" design note: the dispatcher is the only component
// that converts an uncaught panic into 0x0110).
type HandlerFunc func(msg *Message) (status uint16, affectedInstanceUID string, responseData []byte, err error)

// Dispatcher routes incoming DIMSE requests to per-command handlers,
// generalized from dicomnet/services/registry.go's RegisterHandler/
// HandleDIMSE shape to this service's five Normalized operations.
type Dispatcher struct {
	handlers map[uint16]HandlerFunc
	log      *logrus.Entry
}

// NewDispatcher returns an empty dispatcher. Handlers are registered
// with RegisterHandler before the association's request loop starts.
func NewDispatcher(log *logrus.Entry) *Dispatcher {
	return &Dispatcher{handlers: make(map[uint16]HandlerFunc), log: log}
}

// RegisterHandler installs handler for the given request command field
// (e.g. NCreateRQ). Only one handler may be registered per command.
func (d *Dispatcher) RegisterHandler(commandField uint16, handler HandlerFunc) {
	d.handlers[commandField] = handler
}

// responseCommandField returns the response command code matching a
// request command code (PS3.7: bit 0x8000 set).
func responseCommandField(request uint16) uint16 {
	return request | 0x8000
}

// Dispatch processes one request message and returns the response
// command and data set to send back (4.C "the dispatcher must emit
// exactly one response carrying the same Message ID ... and the
// matching response command code").
func (d *Dispatcher) Dispatch(req *Message) (resp *Command, data []byte) {
	status, affectedUID, respData := d.run(req)

	resp = &Command{
		CommandField:              responseCommandField(req.Command.CommandField),
		MessageIDBeingRespondedTo: req.Command.MessageID,
		AffectedSOPClassUID:       req.Command.AffectedSOPClassUID,
		AffectedSOPInstanceUID:    affectedUID,
		Status:                    status,
	}
	return resp, respData
}

func (d *Dispatcher) run(req *Message) (status uint16, affectedUID string, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			if d.log != nil {
				d.log.WithField("message_id", req.Command.MessageID).
					Errorf("DIMSE handler panic: %v", r)
			}
			status = StatusProcessingFailure
			affectedUID = req.Command.AffectedSOPInstanceUID
			data = nil
		}
	}()

	handler, ok := d.handlers[req.Command.CommandField]
	if !ok {
		if d.log != nil {
			d.log.Warnf("no handler for command field 0x%04X", req.Command.CommandField)
		}
		return StatusProcessingFailure, req.Command.AffectedSOPInstanceUID, nil
	}

	st, uid, respData, err := handler(req)
	if err != nil {
		if d.log != nil {
			d.log.WithFields(logrus.Fields{
				"message_id":       req.Command.MessageID,
				"sop_instance_uid": req.Command.AffectedSOPInstanceUID,
			}).Warnf("DIMSE handler error: %v", err)
		}
		if st == StatusSuccess {
			st = StatusProcessingFailure
		}
	}
	return st, uid, respData
}

// StatusName renders a status code for logging, per §7's requirement
// that every status be logged alongside association id / message id /
// SOP UID.
func StatusName(status uint16) string {
	switch status {
	case StatusSuccess:
		return "Success"
	case StatusWarningMaxDensity:
		return "Warning:MaxDensityExceeded"
	case StatusInvalidAttributeValue:
		return "InvalidAttributeValue"
	case StatusProcessingFailure:
		return "ProcessingFailure"
	case StatusNoSuchObjectInstance:
		return "NoSuchObjectInstance"
	case StatusInvalidObjectInstance:
		return "InvalidObjectInstance"
	case StatusResourceLimitation:
		return "ResourceLimitation"
	default:
		return fmt.Sprintf("0x%04X", status)
	}
}
