package assoc

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flatmapit/printscp/internal/pdu"
	"github.com/flatmapit/printscp/internal/sop"
)

// buildAssociateRQ hand-assembles an A-ASSOCIATE-RQ PDU body matching what
// pdu.ParseAssociateRQ expects, since this service only ever needs to
// parse one, never build one.
func buildAssociateRQ(calledAE, callingAE string, contexts []pdu.PresentationContextRequest, maxPDU uint32) []byte {
	pad := func(s string) []byte {
		out := make([]byte, 16)
		for i := range out {
			out[i] = ' '
		}
		copy(out, s)
		return out
	}

	var body []byte
	body = append(body, 0x00, 0x01) // protocol version
	body = append(body, 0x00, 0x00) // reserved
	body = append(body, pad(calledAE)...)
	body = append(body, pad(callingAE)...)
	body = append(body, make([]byte, 32)...)

	acValue := []byte(sop.ApplicationContext)
	if len(acValue)%2 == 1 {
		acValue = append(acValue, 0x00)
	}
	acItem := []byte{0x10, 0x00, 0x00, 0x00}
	binary.BigEndian.PutUint16(acItem[2:4], uint16(len(acValue)))
	body = append(body, acItem...)
	body = append(body, acValue...)

	for _, ctx := range contexts {
		var sub []byte
		asValue := []byte(ctx.AbstractSyntax)
		if len(asValue)%2 == 1 {
			asValue = append(asValue, 0x00)
		}
		asItem := []byte{0x30, 0x00, 0x00, 0x00}
		binary.BigEndian.PutUint16(asItem[2:4], uint16(len(asValue)))
		sub = append(sub, asItem...)
		sub = append(sub, asValue...)

		for _, ts := range ctx.TransferSyntaxes {
			tsValue := []byte(ts)
			if len(tsValue)%2 == 1 {
				tsValue = append(tsValue, 0x00)
			}
			tsItem := []byte{0x40, 0x00, 0x00, 0x00}
			binary.BigEndian.PutUint16(tsItem[2:4], uint16(len(tsValue)))
			sub = append(sub, tsItem...)
			sub = append(sub, tsValue...)
		}

		pcBody := []byte{ctx.ID, 0x00, 0x00, 0x00}
		pcBody = append(pcBody, sub...)
		pcItem := []byte{0x20, 0x00, 0x00, 0x00}
		binary.BigEndian.PutUint16(pcItem[2:4], uint16(len(pcBody)))
		body = append(body, pcItem...)
		body = append(body, pcBody...)
	}

	maxLenSub := []byte{0x51, 0x00, 0x00, 0x04, 0, 0, 0, 0}
	binary.BigEndian.PutUint32(maxLenSub[4:8], maxPDU)
	uiBody := maxLenSub
	uiItem := []byte{0x50, 0x00, 0x00, 0x00}
	binary.BigEndian.PutUint16(uiItem[2:4], uint16(len(uiBody)))
	body = append(body, uiItem...)
	body = append(body, uiBody...)

	header := make([]byte, 6)
	header[0] = pdu.TypeAssociateRQ
	binary.BigEndian.PutUint32(header[2:6], uint32(len(body)))
	return append(header, body...)
}

func defaultContexts() []pdu.PresentationContextRequest {
	return []pdu.PresentationContextRequest{
		{ID: 1, AbstractSyntax: sop.Verification, TransferSyntaxes: []string{sop.ImplicitVRLittleEndian}},
	}
}

func TestNegotiateAcceptsMatchingAETitleAndContext(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	a := New("assoc-1", serverConn, "PRINTSCP", 16*1024, 0, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- a.Negotiate() }()

	rq := buildAssociateRQ("PRINTSCP", "CALLER", defaultContexts(), 16*1024)
	_, err := clientConn.Write(rq)
	require.NoError(t, err)

	ac, err := pdu.ReadRawPDU(clientConn)
	require.NoError(t, err)
	assert.Equal(t, byte(pdu.TypeAssociateAC), ac.Type)

	require.NoError(t, <-errCh)
	assert.Equal(t, StateOpen, a.State)
	assert.Equal(t, "CALLER", a.CallingAETitle)
	assert.Len(t, a.Contexts, 1)
}

func TestNegotiateRejectsMismatchedCalledAETitle(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	a := New("assoc-2", serverConn, "PRINTSCP", 16*1024, 0, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- a.Negotiate() }()

	rq := buildAssociateRQ("SOMEONE_ELSE", "CALLER", defaultContexts(), 16*1024)
	_, err := clientConn.Write(rq)
	require.NoError(t, err)

	rj, err := pdu.ReadRawPDU(clientConn)
	require.NoError(t, err)
	assert.Equal(t, byte(pdu.TypeAssociateRJ), rj.Type)

	require.Error(t, <-errCh)
	assert.Equal(t, StateClosed, a.State)
}

func TestNegotiateRejectsWhenNoContextIsAcceptable(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	a := New("assoc-3", serverConn, "PRINTSCP", 16*1024, 0, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- a.Negotiate() }()

	unknownContexts := []pdu.PresentationContextRequest{
		{ID: 1, AbstractSyntax: "1.2.3.4.5", TransferSyntaxes: []string{sop.ImplicitVRLittleEndian}},
	}
	rq := buildAssociateRQ("PRINTSCP", "CALLER", unknownContexts, 16*1024)
	_, err := clientConn.Write(rq)
	require.NoError(t, err)

	rj, err := pdu.ReadRawPDU(clientConn)
	require.NoError(t, err)
	assert.Equal(t, byte(pdu.TypeAssociateRJ), rj.Type)

	require.Error(t, <-errCh)
}

func TestNegotiateAbortsOnUnexpectedFirstPDU(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	a := New("assoc-4", serverConn, "PRINTSCP", 16*1024, 0, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- a.Negotiate() }()

	_, err := clientConn.Write(pdu.BuildReleaseRP())
	require.NoError(t, err)

	abort, err := pdu.ReadRawPDU(clientConn)
	require.NoError(t, err)
	assert.Equal(t, byte(pdu.TypeAbort), abort.Type)

	require.Error(t, <-errCh)
	assert.Equal(t, StateAborted, a.State)
}

func TestReleaseTransitionsToClosedAndRepliesWithReleaseRP(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	a := New("assoc-5", serverConn, "PRINTSCP", 16*1024, 0, nil)
	a.State = StateOpen

	errCh := make(chan error, 1)
	go func() { errCh <- a.Release() }()

	rp, err := pdu.ReadRawPDU(clientConn)
	require.NoError(t, err)
	assert.Equal(t, byte(pdu.TypeReleaseRP), rp.Type)
	require.NoError(t, <-errCh)
	assert.Equal(t, StateClosed, a.State)
}

func TestAbortFromOpenEmitsAbortPDUAndIsIdempotent(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	a := New("assoc-6", serverConn, "PRINTSCP", 16*1024, 0, nil)
	a.State = StateOpen

	done := make(chan struct{})
	go func() {
		a.Abort(pdu.AbortReasonNotSpecified)
		close(done)
	}()

	raw, err := pdu.ReadRawPDU(clientConn)
	require.NoError(t, err)
	assert.Equal(t, byte(pdu.TypeAbort), raw.Type)
	<-done
	assert.Equal(t, StateAborted, a.State)

	// aborting an already-aborted association is a no-op, not a second write.
	a.Abort(pdu.AbortReasonNotSpecified)
	assert.Equal(t, StateAborted, a.State)
}

func TestTransferSyntaxForUnknownContextReturnsFalse(t *testing.T) {
	a := New("assoc-7", nil, "PRINTSCP", 16*1024, 0, nil)
	_, ok := a.TransferSyntaxFor(99)
	assert.False(t, ok)
}

func TestNegotiateRespectsConfiguredMaxPDULength(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	a := New("assoc-8", serverConn, "PRINTSCP", 8*1024, 0, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- a.Negotiate() }()

	rq := buildAssociateRQ("PRINTSCP", "CALLER", defaultContexts(), 64*1024)
	_, err := clientConn.Write(rq)
	require.NoError(t, err)

	_, err = pdu.ReadRawPDU(clientConn)
	require.NoError(t, err)
	require.NoError(t, <-errCh)

	assert.Equal(t, uint32(8*1024), a.MaxPDULength)
}
