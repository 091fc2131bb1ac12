package dimse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatchRoutesToRegisteredHandler(t *testing.T) {
	d := NewDispatcher(nil)
	d.RegisterHandler(NCreateRQ, func(msg *Message) (uint16, string, []byte, error) {
		return StatusSuccess, "1.2.3", []byte{0x01}, nil
	})

	req := &Message{Command: &Command{CommandField: NCreateRQ, MessageID: 5}}
	resp, data := d.Dispatch(req)

	assert.Equal(t, NCreateRSP, resp.CommandField)
	assert.Equal(t, uint16(5), resp.MessageIDBeingRespondedTo)
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, "1.2.3", resp.AffectedSOPInstanceUID)
	assert.Equal(t, []byte{0x01}, data)
}

func TestDispatchUnregisteredCommandIsProcessingFailure(t *testing.T) {
	d := NewDispatcher(nil)
	req := &Message{Command: &Command{CommandField: NGetRQ, MessageID: 1}}
	resp, _ := d.Dispatch(req)
	assert.Equal(t, StatusProcessingFailure, resp.Status)
}

func TestDispatchRecoversHandlerPanic(t *testing.T) {
	d := NewDispatcher(nil)
	d.RegisterHandler(NSetRQ, func(msg *Message) (uint16, string, []byte, error) {
		panic("boom")
	})
	req := &Message{Command: &Command{CommandField: NSetRQ, MessageID: 1, AffectedSOPInstanceUID: "1.2.3"}}
	resp, data := d.Dispatch(req)
	assert.Equal(t, StatusProcessingFailure, resp.Status)
	assert.Equal(t, "1.2.3", resp.AffectedSOPInstanceUID)
	assert.Nil(t, data)
}

func TestDispatchHandlerErrorDowngradesSuccessStatus(t *testing.T) {
	d := NewDispatcher(nil)
	d.RegisterHandler(NDeleteRQ, func(msg *Message) (uint16, string, []byte, error) {
		return StatusSuccess, "", nil, assert.AnError
	})
	req := &Message{Command: &Command{CommandField: NDeleteRQ, MessageID: 1}}
	resp, _ := d.Dispatch(req)
	assert.Equal(t, StatusProcessingFailure, resp.Status)
}

func TestStatusName(t *testing.T) {
	assert.Equal(t, "Success", StatusName(StatusSuccess))
	assert.Equal(t, "NoSuchObjectInstance", StatusName(StatusNoSuchObjectInstance))
	assert.Contains(t, StatusName(0x1234), "0x1234")
}
