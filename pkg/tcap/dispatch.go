package tcap

import (
	"bytes"
	"context"

	"github.com/capnode/tcapd/internal/address"
	"github.com/capnode/tcapd/internal/logger"
	"github.com/capnode/tcapd/internal/wire"
	"github.com/capnode/tcapd/pkg/metrics"
)

// dispatch runs the unsolicited packet parser (§4.3.2) for one datagram
// that did not correlate to an outstanding stream. It runs in its own
// goroutine per datagram so a slow handler never blocks reception.
func (s *Service) dispatch(ctx context.Context, header wire.CommonHeader, peer address.Address, payload []byte) {
	s.countDispatch(header.Cmd)

	switch header.Cmd {
	case wire.OpCapRevoke:
		s.handleCapRevoke(ctx, header)
	case wire.OpCapInvalid:
		s.handleCapInvalid(header)
	case wire.OpRequestInvoke:
		s.handleRequestInvoke(ctx, header, peer, payload)
	case wire.OpInsertCap:
		s.handleInsertCap(header, payload)
	case wire.OpRequestResponse:
		s.handleRequestResponse(header, peer, payload)
	case wire.OpMemoryCopy:
		s.handleMemoryCopy(ctx, header, peer)
	case wire.OpMemoryCopyResponse:
		s.handleMemoryCopyResponseUnsolicited(header, peer, payload)
	default:
		logger.Warn("dispatch: unimplemented opcode", "opcode", header.Cmd.String())
	}
}

func (s *Service) countDispatch(op wire.Opcode) {
	if m := metrics.Get(); m != nil {
		m.Dispatches.WithLabelValues(op.String()).Inc()
	}
}

// handleCapRevoke looks up cap_id locally; if present, it propagates the
// revoke to this node's own delegatees and removes the table entry. If
// absent, it logs and drops.
func (s *Service) handleCapRevoke(ctx context.Context, header wire.CommonHeader) {
	cap, ok := s.table.Get(header.CapID)
	if !ok {
		logger.Warn("CapRevoke for unknown capability", "cap_id", fmtCapID(header.CapID[:]))
		return
	}
	cap.onRevokeReceived(ctx)
}

// handleCapInvalid only logs; callers detect invalid responses via the
// correlation path, not via this unsolicited path.
func (s *Service) handleCapInvalid(header wire.CommonHeader) {
	logger.Debug("CapInvalid received", "cap_id", fmtCapID(header.CapID[:]))
}

// handleRequestInvoke resolves continuations, invokes the bound handler,
// and replies with RequestResponse if REQUIRE_RESPONSE was set.
func (s *Service) handleRequestInvoke(ctx context.Context, header wire.CommonHeader, peer address.Address, payload []byte) {
	cap, ok := s.table.Get(header.CapID)
	if !ok {
		s.replyCapInvalid(ctx, header, peer)
		return
	}

	invoke, err := wire.DecodeRequestInvokePayload(bytes.NewReader(payload))
	if err != nil {
		logger.Warn("RequestInvoke: malformed payload", "error", err.Error())
		return
	}

	conts, err := s.resolveContinuations(invoke.Continuations[:invoke.NumConts])
	if err != nil {
		logger.Warn("RequestInvoke: continuation resolution failed", "error", err.Error())
	}

	responseCode, invokeErr := cap.invokeLocalHandler(conts)
	if invokeErr != nil {
		logger.Warn("RequestInvoke: handler failed", "cap_id", fmtCapID(header.CapID[:]), "error", invokeErr.Error())
	}

	if !invoke.RequireResponse() {
		return
	}

	resp := wire.RequestResponsePayload{ResponseCode: responseCode}
	respHeader := wire.CommonHeader{StreamID: header.StreamID, Cmd: wire.OpRequestResponse, CapID: header.CapID}
	if err := s.sendPacket(ctx, respHeader, resp, peer); err != nil {
		s.logSendFailure("RequestInvoke response", err)
	}
}

func (s *Service) replyCapInvalid(ctx context.Context, header wire.CommonHeader, peer address.Address) {
	payload := wire.CapInvalidPayload{Addr: s.address, CapID: header.CapID}
	respHeader := wire.CommonHeader{StreamID: header.StreamID, Cmd: wire.OpCapInvalid, CapID: header.CapID}
	if err := s.sendPacket(ctx, respHeader, payload, peer); err != nil {
		s.logSendFailure("CapInvalid reply", err)
	}
	if s.cfg.DirectControlPlaneCopies {
		if err := s.sendPacket(ctx, respHeader, payload, s.switchAddr); err != nil {
			s.logSendFailure("CapInvalid switch copy", err)
		}
	}
}

// handleInsertCap constructs a non-local capability from the header and
// payload and inserts it into the table.
func (s *Service) handleInsertCap(header wire.CommonHeader, payload []byte) {
	insert, err := wire.DecodeInsertCapPayload(bytes.NewReader(payload))
	if err != nil {
		logger.Warn("InsertCap: malformed payload", "error", err.Error())
		return
	}

	cap := newCapability(s, header.CapID, insert.ObjectOwner)
	cap.typ = insert.CapType
	s.table.Insert(cap)
	s.refreshTableSizeMetric()
}

// handleRequestResponse posts the response to the responses table and
// releases the stream's notifier, handling the race where this dispatch
// runs because the receiver task raced the correlation check.
func (s *Service) handleRequestResponse(header wire.CommonHeader, peer address.Address, payload []byte) {
	s.storeResponse(header.StreamID, dispatchedResponse{header: header, from: peer, payload: payload})
	if n := s.lookupNotifier(header.StreamID); n != nil {
		n.Release()
	}
}

// handleMemoryCopy chunks the local memory capability's buffer into
// ≤1024-byte MemoryCopyResponse packets and sends all of them.
func (s *Service) handleMemoryCopy(ctx context.Context, header wire.CommonHeader, peer address.Address) {
	cap, ok := s.table.Get(header.CapID)
	if !ok {
		s.replyCapInvalid(ctx, header, peer)
		return
	}
	if cap.Type() != wire.CapTypeMemory {
		logger.Error("MemoryCopy on non-memory capability", "cap_id", fmtCapID(header.CapID[:]))
		return
	}

	buf, err := cap.GetBuffer(ctx)
	if err != nil {
		logger.Error("MemoryCopy: local get_buffer failed", "cap_id", fmtCapID(header.CapID[:]), "error", err.Error())
		return
	}

	for _, chunk := range wire.ChunkMemory(buf) {
		respHeader := wire.CommonHeader{StreamID: header.StreamID, Cmd: wire.OpMemoryCopyResponse, CapID: header.CapID}
		if err := s.sendPacket(ctx, respHeader, chunk, peer); err != nil {
			s.logSendFailure("MemoryCopyResponse chunk", err)
		}
	}
}

// handleMemoryCopyResponseUnsolicited stores an out-of-order memory chunk
// that arrived before (or after) the correlation check matched it. The
// response is stored per chunk (stream_id + sequence); the notifier it
// signals is the one shared semaphore for the whole stream (bare
// stream_id), matching registerNotifier/sendAndWait.
func (s *Service) handleMemoryCopyResponseUnsolicited(header wire.CommonHeader, peer address.Address, payload []byte) {
	chunk, err := wire.DecodeMemoryCopyResponsePayload(bytes.NewReader(payload))
	if err != nil {
		logger.Warn("MemoryCopyResponse: malformed payload", "error", err.Error())
		return
	}
	responseKey := header.StreamID + chunk.Sequence
	s.storeResponse(responseKey, dispatchedResponse{header: header, from: peer, payload: payload})
	if n := s.lookupNotifier(header.StreamID); n != nil {
		n.Release()
	}
}
