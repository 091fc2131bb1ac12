package dimse

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flatmapit/printscp/internal/pdu"
)

func TestEncodeDecodeCommandRoundTrip(t *testing.T) {
	cmd := &Command{
		CommandField:           NCreateRQ,
		MessageID:              7,
		AffectedSOPClassUID:    "1.2.840.10008.5.1.1.1",
		AffectedSOPInstanceUID: "1.2.3.4.5",
		HasDataSet:             true,
	}

	encoded := EncodeCommand(cmd)
	decoded, err := DecodeCommand(encoded)
	require.NoError(t, err)

	assert.Equal(t, cmd.CommandField, decoded.CommandField)
	assert.Equal(t, cmd.MessageID, decoded.MessageID)
	assert.Equal(t, cmd.AffectedSOPClassUID, decoded.AffectedSOPClassUID)
	assert.Equal(t, cmd.AffectedSOPInstanceUID, decoded.AffectedSOPInstanceUID)
	assert.True(t, decoded.HasDataSet)
}

func TestEncodeCommandResponseIncludesStatus(t *testing.T) {
	cmd := &Command{
		CommandField:              NCreateRSP,
		MessageIDBeingRespondedTo: 3,
		Status:                    StatusSuccess,
	}
	encoded := EncodeCommand(cmd)
	decoded, err := DecodeCommand(encoded)
	require.NoError(t, err)
	assert.Equal(t, uint16(3), decoded.MessageIDBeingRespondedTo)
	assert.Equal(t, StatusSuccess, decoded.Status)
}

func TestEncodeCommandNActionIncludesActionTypeID(t *testing.T) {
	cmd := &Command{
		CommandField:            NActionRQ,
		RequestedSOPInstanceUID: "1.2.3",
		ActionTypeID:            1,
	}
	encoded := EncodeCommand(cmd)
	decoded, err := DecodeCommand(encoded)
	require.NoError(t, err)
	assert.Equal(t, 1, decoded.ActionTypeID)
	assert.Equal(t, "1.2.3", decoded.RequestedSOPInstanceUID)
}

func TestIsFailure(t *testing.T) {
	assert.False(t, IsFailure(StatusSuccess))
	assert.False(t, IsFailure(StatusWarningMaxDensity))
	assert.True(t, IsFailure(StatusProcessingFailure))
	assert.True(t, IsFailure(StatusNoSuchObjectInstance))
}

// TestWriteThenReadMessageRoundTrip exercises WriteMessage/ReadMessage
// back to back over an in-memory buffer, standing in for the P-DATA-TF
// wire exchange a real association carries out (4.A/4.C).
func TestWriteThenReadMessageRoundTrip(t *testing.T) {
	cmd := &Command{
		CommandField:            NSetRQ,
		MessageID:               1,
		RequestedSOPInstanceUID: "1.2.3",
	}
	dataBytes := []byte{0xAA, 0xBB, 0xCC}

	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, 1, 16*1024, cmd, dataBytes))

	var allPDVs []pdu.PDV
	for buf.Len() > 0 {
		raw, err := pdu.ReadRawPDU(&buf)
		require.NoError(t, err)
		require.Equal(t, byte(pdu.TypeDataTF), raw.Type)
		pdvs, err := pdu.ParsePDataTF(raw.Data)
		require.NoError(t, err)
		allPDVs = append(allPDVs, pdvs...)
	}

	i := 0
	next := func() (pdu.PDV, error) {
		v := allPDVs[i]
		i++
		return v, nil
	}

	msg, presContextID, err := ReadMessage(next)
	require.NoError(t, err)
	assert.Equal(t, byte(1), presContextID)
	assert.Equal(t, NSetRQ, msg.Command.CommandField)
	assert.Equal(t, "1.2.3", msg.Command.RequestedSOPInstanceUID)
	assert.Equal(t, dataBytes, msg.Data)
}
