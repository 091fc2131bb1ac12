// Package server implements the accept loop and per-association
// worker (4.B/4.C/5): one independent goroutine per accepted
// connection, each strictly single-threaded internally, with a fresh
// Print Object Store per association (no cross-association state),
// following the teacher-adjacent dicomnet/server/server.go accept-loop
// shape generalized to this service's DIMSE routing and resource limits.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/flatmapit/printscp/internal/assoc"
	"github.com/flatmapit/printscp/internal/dimse"
	"github.com/flatmapit/printscp/internal/pdu"
	"github.com/flatmapit/printscp/internal/printstore"
	"github.com/flatmapit/printscp/internal/sink"
	"github.com/flatmapit/printscp/internal/sop"
)

// Config carries the resource limits and negotiation parameters 4.B/§5
// name: AE title, PDU size bounds, association/timeouts, output dir.
type Config struct {
	AETitle           string
	MaxAssociations   int
	MaxPDULength      uint32
	IdleTimeout       time.Duration
	RequestTimeout    time.Duration
	PrintTimeout      time.Duration
	MaxPixelBytes     int64
	SwapRowsColumns   bool
	OutputDir         string
}

// Server accepts connections and spawns one association worker per
// connection, capped at MaxAssociations concurrently (§5 resource
// limits: "excess rejected with local limit exceeded").
type Server struct {
	cfg Config
	log *logrus.Entry
	sink sink.JobSink

	active int64 // atomic count of associations currently open
	nextID uint64
}

// New returns a Server ready to Serve. log and jobSink are shared,
// thread-safe collaborators per §5's global-state list.
func New(cfg Config, jobSink sink.JobSink, log *logrus.Entry) *Server {
	return &Server{cfg: cfg, sink: jobSink, log: log}
}

// Serve accepts connections on listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.log.WithFields(logrus.Fields{
		"address":  listener.Addr().String(),
		"ae_title": s.cfg.AETitle,
	}).Info("printscp listening")

	var wg sync.WaitGroup
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return fmt.Errorf("server: accept: %w", err)
		}

		if atomic.LoadInt64(&s.active) >= int64(s.cfg.MaxAssociations) {
			s.log.Warn("rejecting connection: local limit exceeded")
			// source 0x03 = service-provider (presentation related);
			// reason 0x02 = local-limit-exceeded.
			conn.Write(pdu.BuildAssociateRJ(0x03, 0x02))
			conn.Close()
			continue
		}

		atomic.AddInt64(&s.active, 1)
		id := atomic.AddUint64(&s.nextID, 1)
		wg.Add(1)
		go func(c net.Conn, assocNum uint64) {
			defer wg.Done()
			defer atomic.AddInt64(&s.active, -1)
			s.handleConnection(c, fmt.Sprintf("assoc-%d", assocNum))
		}(conn, id)
	}
	wg.Wait()
	return ctx.Err()
}

func (s *Server) handleConnection(conn net.Conn, associationID string) {
	defer conn.Close()

	log := s.log.WithField("association_id", associationID)
	a := assoc.New(associationID, conn, s.cfg.AETitle, s.cfg.MaxPDULength, s.cfg.IdleTimeout, log)

	if err := a.Negotiate(); err != nil {
		log.WithError(err).Info("association negotiation failed")
		return
	}

	renderer := newPageRenderer(s.sink, associationID, s.cfg.SwapRowsColumns, log)
	store := printstore.New(renderer, s.cfg.SwapRowsColumns, imageBoxClassFor(a))
	if s.cfg.MaxPixelBytes > 0 {
		store.SetMaxPixelBytes(s.cfg.MaxPixelBytes)
	}

	dispatcher := dimse.NewDispatcher(log)
	explicitVR := associationUsesExplicitVR(a)
	registerHandlers(dispatcher, store, explicitVR)

	if err := s.requestLoop(a, dispatcher); err != nil {
		log.WithError(err).Info("association ended")
	}

	if a.State == assoc.StateAborted {
		// §8: "After A-ABORT on association a, store_a is empty and no
		// Print Job from a is accepted by the sink." The renderer has
		// already returned by the time Abort fires (4.C handlers are
		// synchronous), so it is safe to discard everything now.
		store.Reset()
	}
}

// imageBoxClassFor reports which Image Box SOP Class this association
// negotiated (§3/§6: Basic Grayscale vs Basic Color Print Management
// Meta both require their own abstract syntax presentation context),
// so the store synthesizes and validates Image Boxes of the right
// class instead of always assuming grayscale.
func imageBoxClassFor(a *assoc.Association) string {
	for _, ctx := range a.Contexts {
		if ctx.AbstractSyntax == sop.BasicColorImageBox {
			return sop.BasicColorImageBox
		}
	}
	return sop.BasicGrayscaleImageBox
}

// associationUsesExplicitVR picks the codec for the association's
// negotiated contexts; this service only ever negotiates one transfer
// syntax family per context but a mixed negotiation is legal, so this
// picks by the syntax of the context with the lowest ID as a simplifying
// assumption documented as the association-wide codec.
func associationUsesExplicitVR(a *assoc.Association) bool {
	explicit, found := false, false
	var lowest byte
	for id, ctx := range a.Contexts {
		if !found || id < lowest {
			lowest, found = id, true
			explicit = ctx.TransferSyntax == "1.2.840.10008.1.2.1"
		}
	}
	return explicit
}

func (s *Server) requestLoop(a *assoc.Association, dispatcher *dimse.Dispatcher) error {
	for {
		raw, err := a.NextPDU()
		if err != nil {
			a.Abort(pdu.AbortReasonUnexpectedPDU)
			return err
		}

		switch raw.Type {
		case pdu.TypeDataTF:
			if err := s.handleDataTF(a, dispatcher, raw.Data); err != nil {
				a.Abort(pdu.AbortReasonUnexpectedPDU)
				return err
			}
		case pdu.TypeReleaseRQ:
			return a.Release()
		case pdu.TypeAbort:
			a.State = assoc.StateAborted
			return nil
		default:
			a.Abort(pdu.AbortReasonUnexpectedPDU)
			return fmt.Errorf("server: unexpected PDU type 0x%02X in state %s", raw.Type, a.State)
		}
	}
}

func (s *Server) handleDataTF(a *assoc.Association, dispatcher *dimse.Dispatcher, body []byte) error {
	pdvs, err := pdu.ParsePDataTF(body)
	if err != nil {
		return err
	}
	i := 0
	next := func() (pdu.PDV, error) {
		for i >= len(pdvs) {
			// The message continues in a later P-DATA-TF PDU.
			raw, err := a.NextPDU()
			if err != nil {
				return pdu.PDV{}, err
			}
			if raw.Type != pdu.TypeDataTF {
				return pdu.PDV{}, fmt.Errorf("server: expected P-DATA-TF mid-message, got PDU type 0x%02X", raw.Type)
			}
			more, err := pdu.ParsePDataTF(raw.Data)
			if err != nil {
				return pdu.PDV{}, err
			}
			pdvs, i = more, 0
		}
		v := pdvs[i]
		i++
		return v, nil
	}

	msg, presContextID, err := dimse.ReadMessage(next)
	if err != nil {
		return err
	}

	resp, data := s.dispatchWithTimeout(dispatcher, msg)
	return dimse.WriteMessage(a.Conn, presContextID, a.MaxPDULength, resp, data)
}

// dispatchWithTimeout bounds handler execution per §5: a 30s default
// for most requests, 120s for the print action. A handler that blows
// its budget is abandoned (its result discarded, matching the abort
// cancellation semantics) and answered with 0x0110.
func (s *Server) dispatchWithTimeout(dispatcher *dimse.Dispatcher, msg *dimse.Message) (*dimse.Command, []byte) {
	budget := s.cfg.RequestTimeout
	if msg.Command.CommandField == dimse.NActionRQ {
		budget = s.cfg.PrintTimeout
	}
	if budget <= 0 {
		return dispatcher.Dispatch(msg)
	}

	type result struct {
		resp *dimse.Command
		data []byte
	}
	done := make(chan result, 1)
	go func() {
		resp, data := dispatcher.Dispatch(msg)
		done <- result{resp, data}
	}()

	select {
	case r := <-done:
		return r.resp, r.data
	case <-time.After(budget):
		return &dimse.Command{
			CommandField:              msg.Command.CommandField | 0x8000,
			MessageIDBeingRespondedTo: msg.Command.MessageID,
			AffectedSOPClassUID:       msg.Command.AffectedSOPClassUID,
			AffectedSOPInstanceUID:    msg.Command.AffectedSOPInstanceUID,
			Status:                    dimse.StatusProcessingFailure,
		}, nil
	}
}
