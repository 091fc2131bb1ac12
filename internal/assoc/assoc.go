// Package assoc implements the association acceptor state machine
// (4.B): Idle -> AwaitingAssociateRQ -> Open -> Releasing -> Closed,
// with Aborted as a terminal state reachable from any other.
package assoc

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/flatmapit/printscp/internal/pdu"
)

// State is one of the association's lifecycle states (4.B).
type State int

const (
	StateIdle State = iota
	StateAwaitingAssociateRQ
	StateOpen
	StateReleasing
	StateClosed
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAwaitingAssociateRQ:
		return "AwaitingAssociateRQ"
	case StateOpen:
		return "Open"
	case StateReleasing:
		return "Releasing"
	case StateClosed:
		return "Closed"
	case StateAborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// Context is a negotiated presentation context, keyed by its ID for
// O(1) lookup when dispatching DIMSE messages (4.C needs to know the
// transfer syntax active on the context a PDV arrived on).
type Context struct {
	AbstractSyntax string
	TransferSyntax string
}

// Association wraps one accepted TCP connection through its full
// negotiation/request/release lifecycle (4.B). It owns no DIMSE or
// print-data-model logic; internal/server drives those on top.
type Association struct {
	ID    string
	Conn  net.Conn
	State State
	Log   *logrus.Entry

	AETitle      string // configured called AE title this acceptor matches against
	MaxPDULength uint32

	CalledAETitle  string
	CallingAETitle string
	Contexts       map[byte]Context

	IdleTimeout time.Duration
}

// New wraps conn in an Association awaiting its A-ASSOCIATE-RQ.
func New(id string, conn net.Conn, aeTitle string, maxPDULength uint32, idleTimeout time.Duration, log *logrus.Entry) *Association {
	return &Association{
		ID:           id,
		Conn:         conn,
		State:        StateAwaitingAssociateRQ,
		Log:          log,
		AETitle:      aeTitle,
		MaxPDULength: maxPDULength,
		Contexts:     make(map[byte]Context),
		IdleTimeout:  idleTimeout,
	}
}

// Negotiate reads the first PDU, which must be an A-ASSOCIATE-RQ, and
// either accepts (emitting A-ASSOCIATE-AC) or rejects it (emitting
// A-ASSOCIATE-RJ), per 4.B's AwaitingAssociateRQ transitions.
func (a *Association) Negotiate() error {
	a.deadline()
	raw, err := pdu.ReadRawPDU(a.Conn)
	if err != nil {
		a.State = StateAborted
		return fmt.Errorf("assoc: read A-ASSOCIATE-RQ: %w", err)
	}
	if raw.Type != pdu.TypeAssociateRQ {
		a.abortProtocolError("expected A-ASSOCIATE-RQ")
		return fmt.Errorf("assoc: expected A-ASSOCIATE-RQ, got PDU type 0x%02X", raw.Type)
	}

	rq, err := pdu.ParseAssociateRQ(raw.Data)
	if err != nil {
		a.abortProtocolError(err.Error())
		return err
	}
	a.CalledAETitle = rq.CalledAETitle
	a.CallingAETitle = rq.CallingAETitle

	if !strings.EqualFold(strings.TrimSpace(rq.CalledAETitle), strings.TrimSpace(a.AETitle)) {
		a.reject(pdu.RejectSourceServiceUser, pdu.RejectReasonCalledAETitleNotRecognized)
		return fmt.Errorf("assoc: called AE title %q does not match %q", rq.CalledAETitle, a.AETitle)
	}

	results := pdu.NegotiatePresentationContexts(rq.PresentationCtxs)
	accepted := 0
	for _, res := range results {
		if res.Result == pdu.ResultAcceptance {
			a.Contexts[res.ID] = Context{AbstractSyntax: res.AbstractSyntax, TransferSyntax: res.TransferSyntax}
			accepted++
		}
	}
	if accepted == 0 {
		a.reject(pdu.RejectSourceServiceUser, pdu.RejectReasonNoAcceptablePresentationCtx)
		return fmt.Errorf("assoc: no acceptable presentation context")
	}

	maxPDU := a.MaxPDULength
	if rq.MaxPDULength > 0 && rq.MaxPDULength < maxPDU {
		maxPDU = rq.MaxPDULength
	}
	a.MaxPDULength = maxPDU

	ac := pdu.BuildAssociateAC(rq.CalledAETitle, rq.CallingAETitle, results, maxPDU)
	if _, err := a.Conn.Write(ac); err != nil {
		a.State = StateAborted
		return fmt.Errorf("assoc: write A-ASSOCIATE-AC: %w", err)
	}

	a.State = StateOpen
	if a.Log != nil {
		a.Log.WithFields(logrus.Fields{
			"association_id": a.ID,
			"calling_ae":     a.CallingAETitle,
			"contexts":       accepted,
		}).Info("association opened")
	}
	return nil
}

func (a *Association) reject(source, reason byte) {
	rj := pdu.BuildAssociateRJ(source, reason)
	a.Conn.Write(rj)
	a.State = StateClosed
	if a.Log != nil {
		a.Log.WithField("association_id", a.ID).Warn("association rejected")
	}
}

func (a *Association) abortProtocolError(reason string) {
	a.State = StateAborted
	a.Conn.Write(pdu.BuildAbort(pdu.AbortSourceServiceProvider, pdu.AbortReasonUnexpectedPDU))
	if a.Log != nil {
		a.Log.WithField("association_id", a.ID).Warnf("protocol error: %s", reason)
	}
}

// Abort transitions to Aborted and emits A-ABORT, per 4.B "any ->
// Aborted on A-ABORT, on timeout, or on unrecoverable codec error".
func (a *Association) Abort(reason byte) {
	if a.State == StateAborted || a.State == StateClosed {
		return
	}
	a.State = StateAborted
	a.Conn.Write(pdu.BuildAbort(pdu.AbortSourceServiceProvider, reason))
	if a.Log != nil {
		a.Log.WithField("association_id", a.ID).Info("association aborted")
	}
}

// Release transitions Open -> Releasing -> Closed, replying to an
// A-RELEASE-RQ with A-RELEASE-RP.
func (a *Association) Release() error {
	a.State = StateReleasing
	if _, err := a.Conn.Write(pdu.BuildReleaseRP()); err != nil {
		a.State = StateAborted
		return err
	}
	a.State = StateClosed
	if a.Log != nil {
		a.Log.WithField("association_id", a.ID).Info("association released")
	}
	return nil
}

// deadline applies the configured idle timeout to the next read (4.B
// "if no PDU is received for the configured interval ... emit A-ABORT").
func (a *Association) deadline() {
	if a.IdleTimeout > 0 {
		a.Conn.SetReadDeadline(time.Now().Add(a.IdleTimeout))
	}
}

// NextPDU reads the next raw PDU, applying the idle timeout.
func (a *Association) NextPDU() (*pdu.RawPDU, error) {
	a.deadline()
	return pdu.ReadRawPDU(a.Conn)
}

// TransferSyntaxFor returns the negotiated transfer syntax for a
// presentation context ID, used by the DIMSE layer to pick the codec.
func (a *Association) TransferSyntaxFor(presContextID byte) (string, bool) {
	ctx, ok := a.Contexts[presContextID]
	if !ok {
		return "", false
	}
	return ctx.TransferSyntax, true
}
