package server

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/flatmapit/printscp/internal/assoc"
	"github.com/flatmapit/printscp/internal/dimse"
)

func TestAssociationUsesExplicitVRTrueWhenNegotiated(t *testing.T) {
	a := &assoc.Association{
		Contexts: map[byte]assoc.Context{
			1: {TransferSyntax: "1.2.840.10008.1.2.1"},
		},
	}
	assert.True(t, associationUsesExplicitVR(a))
}

func TestAssociationUsesExplicitVRFalseForImplicit(t *testing.T) {
	a := &assoc.Association{
		Contexts: map[byte]assoc.Context{
			1: {TransferSyntax: "1.2.840.10008.1.2"},
		},
	}
	assert.False(t, associationUsesExplicitVR(a))
}

func TestAssociationUsesExplicitVRFalseWhenNoContexts(t *testing.T) {
	a := &assoc.Association{Contexts: map[byte]assoc.Context{}}
	assert.False(t, associationUsesExplicitVR(a))
}

func TestDispatchWithTimeoutReturnsHandlerResultWithinBudget(t *testing.T) {
	s := &Server{cfg: Config{RequestTimeout: time.Second}, log: logrus.NewEntry(logrus.New())}
	d := dimse.NewDispatcher(nil)
	d.RegisterHandler(dimse.NCreateRQ, func(msg *dimse.Message) (uint16, string, []byte, error) {
		return dimse.StatusSuccess, "1.2.3", nil, nil
	})
	msg := &dimse.Message{Command: &dimse.Command{CommandField: dimse.NCreateRQ, MessageID: 1}}

	resp, _ := s.dispatchWithTimeout(d, msg)
	assert.Equal(t, dimse.StatusSuccess, resp.Status)
}

func TestDispatchWithTimeoutAbandonsSlowHandler(t *testing.T) {
	s := &Server{cfg: Config{RequestTimeout: 10 * time.Millisecond}, log: logrus.NewEntry(logrus.New())}
	d := dimse.NewDispatcher(nil)
	d.RegisterHandler(dimse.NSetRQ, func(msg *dimse.Message) (uint16, string, []byte, error) {
		time.Sleep(100 * time.Millisecond)
		return dimse.StatusSuccess, "", nil, nil
	})
	msg := &dimse.Message{Command: &dimse.Command{CommandField: dimse.NSetRQ, MessageID: 7}}

	resp, data := s.dispatchWithTimeout(d, msg)
	assert.Equal(t, dimse.StatusProcessingFailure, resp.Status)
	assert.Equal(t, uint16(7), resp.MessageIDBeingRespondedTo)
	assert.Nil(t, data)
}

func TestDispatchWithTimeoutUsesPrintTimeoutForNAction(t *testing.T) {
	s := &Server{
		cfg: Config{RequestTimeout: 10 * time.Millisecond, PrintTimeout: time.Second},
		log: logrus.NewEntry(logrus.New()),
	}
	d := dimse.NewDispatcher(nil)
	d.RegisterHandler(dimse.NActionRQ, func(msg *dimse.Message) (uint16, string, []byte, error) {
		time.Sleep(50 * time.Millisecond)
		return dimse.StatusSuccess, "", nil, nil
	})
	msg := &dimse.Message{Command: &dimse.Command{CommandField: dimse.NActionRQ, MessageID: 2}}

	resp, _ := s.dispatchWithTimeout(d, msg)
	assert.Equal(t, dimse.StatusSuccess, resp.Status)
}

func TestDispatchWithTimeoutZeroBudgetRunsUnbounded(t *testing.T) {
	s := &Server{cfg: Config{}, log: logrus.NewEntry(logrus.New())}
	d := dimse.NewDispatcher(nil)
	d.RegisterHandler(dimse.CEchoRQ, func(msg *dimse.Message) (uint16, string, []byte, error) {
		return dimse.StatusSuccess, "", nil, nil
	})
	msg := &dimse.Message{Command: &dimse.Command{CommandField: dimse.CEchoRQ, MessageID: 3}}

	resp, _ := s.dispatchWithTimeout(d, msg)
	assert.Equal(t, dimse.StatusSuccess, resp.Status)
}
