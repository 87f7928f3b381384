// Package tcap implements the per-node capability runtime: the Service
// I/O and dispatch engine, the Capability Table, and the Capability
// object model. These live in a single package because Capability,
// Service, and the bound objects form a reference cycle that Go's import
// graph cannot express across separate packages without an artificial
// interface seam (see the design record for how the original's
// shared-ownership cycle is resolved here).
package tcap

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/capnode/tcapd/internal/address"
	"github.com/capnode/tcapd/internal/buildinfo"
	"github.com/capnode/tcapd/internal/logger"
	"github.com/capnode/tcapd/internal/wire"
	"github.com/capnode/tcapd/pkg/metrics"
)

// sendQueueCapacity is the bounded depth of the outgoing send queue.
const sendQueueCapacity = 256

// recvBufferSize is the minimum size of the receiver task's read buffer.
const recvBufferSize = 10 * 1024

// Config carries the parameters needed to construct a Service.
type Config struct {
	Interface                string
	Address                  address.Address
	SwitchAddr               address.Address
	DirectControlPlaneCopies bool
}

// sendRequest is one entry on the outgoing send queue.
type sendRequest struct {
	data []byte
	dest address.Address
}

// dispatchedResponse is what the receiver task stores into responses
// when a datagram correlates to an outstanding stream.
type dispatchedResponse struct {
	header  wire.CommonHeader
	from    address.Address
	payload []byte
}

func (r dispatchedResponse) reader() *bytes.Reader {
	return bytes.NewReader(r.payload)
}

// Service is the process-wide I/O and dispatch engine: UDP socket, send
// queue, stream correlation tables, and the capability table.
type Service struct {
	cfg        Config
	address    address.Address
	switchAddr address.Address
	conn       *net.UDPConn
	table      *CapabilityTable

	sendCh chan sendRequest

	notifiersMu sync.Mutex
	notifiers   map[uint32]*notifier

	responsesMu sync.Mutex
	responses   map[uint32]dispatchedResponse

	terminated atomic.Bool
	cancel     context.CancelFunc
	group      *errgroup.Group
	groupCtx   context.Context
}

// New binds the UDP socket (and the named interface, if supported) and
// constructs a Service with empty tables. The socket is not read from
// until Run is called.
func New(cfg Config) (*Service, error) {
	conn, err := net.ListenUDP("udp4", cfg.Address.UDPAddr())
	if err != nil {
		return nil, fmt.Errorf("tcap: bind %s: %w", cfg.Address, err)
	}

	if cfg.Interface != "" {
		bindToInterface(conn, cfg.Interface)
	}

	svc := &Service{
		cfg:        cfg,
		address:    cfg.Address,
		switchAddr: cfg.SwitchAddr,
		conn:       conn,
		table:      NewCapabilityTable(),
		sendCh:     make(chan sendRequest, sendQueueCapacity),
		notifiers:  make(map[uint32]*notifier),
		responses:  make(map[uint32]dispatchedResponse),
	}
	return svc, nil
}

// bindToInterface binds conn to the named network device via
// SO_BINDTODEVICE. On platforms or permission levels where this isn't
// available, it logs and continues rather than failing the Service,
// matching the "if supported" wording of the binding contract.
func bindToInterface(conn *net.UDPConn, iface string) {
	raw, err := conn.SyscallConn()
	if err != nil {
		logger.Warn("interface bind unavailable", "interface", iface, "error", err.Error())
		return
	}

	var bindErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		bindErr = unix.BindToDevice(int(fd), iface)
	})
	if ctrlErr != nil {
		logger.Warn("interface bind control failed", "interface", iface, "error", ctrlErr.Error())
		return
	}
	if bindErr != nil {
		logger.Warn("interface bind failed", "interface", iface, "error", bindErr.Error())
	}
}

// Run spawns the sender and receiver tasks under an errgroup.Group bound
// to ctx, and blocks until the group's context is cancelled — either by
// the caller cancelling ctx or by Terminate being called concurrently.
func (s *Service) Run(ctx context.Context) error {
	groupCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(groupCtx)
	s.cancel = cancel
	s.group = group
	s.groupCtx = groupCtx

	group.Go(func() error { return s.senderTask(groupCtx) })
	group.Go(func() error { return s.receiverTask(groupCtx) })
	group.Go(func() error {
		// Termination watcher: closing the socket unblocks the receiver's
		// pending read so it can observe the cancelled context.
		<-groupCtx.Done()
		s.conn.Close()
		return groupCtx.Err()
	})

	err := group.Wait()
	s.conn.Close()
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// senderTask dequeues one sendRequest at a time and writes it to the
// socket. Send failures are logged and the packet is dropped; a failing
// send never aborts the task (per §4.3's failure policy).
func (s *Service) senderTask(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-s.sendCh:
			if _, err := s.conn.WriteToUDP(req.data, req.dest.UDPAddr()); err != nil {
				s.logSendFailure("socket write", err)
				continue
			}
			if m := metrics.Get(); m != nil {
				m.PacketsSent.Inc()
			}
		}
	}
}

// receiverTask loops on recv_from, suppresses loopback datagrams, and
// either posts a correlated response or spawns a dispatch task for an
// unsolicited packet. Each dispatch runs in its own goroutine so a slow
// handler never blocks further reception.
func (s *Service) receiverTask(ctx context.Context) error {
	buf := make([]byte, recvBufferSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, peer, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			logger.Warn("receiver read failed", "error", err.Error())
			continue
		}

		if m := metrics.Get(); m != nil {
			m.PacketsReceived.Inc()
		}

		peerAddr, err := address.FromUDPAddr(peer)
		if err != nil {
			logger.Warn("receiver: non-IPv4 peer", "peer", peer.String())
			continue
		}
		if peerAddr.Equal(s.address) {
			continue // loopback suppression
		}

		datagram := make([]byte, n)
		copy(datagram, buf[:n])

		header, err := wire.DecodeHeader(bytes.NewReader(datagram))
		if err != nil {
			logger.Warn("receiver: short datagram", "peer", peerAddr.String())
			continue
		}
		payload := datagram[wire.HeaderSize:]

		// The notifier for a stream is registered once, under the bare
		// stream_id (registerNotifier), and covers every chunk of a
		// MemoryCopyResponse via repeated Acquire/Release on the same
		// semaphore. Stored responses, by contrast, need one slot per
		// chunk, so those are keyed by stream_id + sequence.
		notifyKey := header.StreamID
		responseKey := notifyKey
		if header.Cmd == wire.OpMemoryCopyResponse {
			if resp, err := wire.DecodeMemoryCopyResponsePayload(bytes.NewReader(payload)); err == nil {
				responseKey = header.StreamID + resp.Sequence
			}
		}

		if n := s.lookupNotifier(notifyKey); n != nil {
			s.storeResponse(responseKey, dispatchedResponse{header: header, from: peerAddr, payload: payload})
			n.Release()
			continue
		}

		go s.dispatch(s.groupCtx, header, peerAddr, payload)
	}
}

// logSendFailure logs a dropped send and increments the drop counter.
func (s *Service) logSendFailure(context string, err error) {
	logger.Warn("send failed", "context", context, "error", err.Error())
	if m := metrics.Get(); m != nil {
		m.SendsDropped.Inc()
	}
}

// Terminate revokes every capability in the local table, then cancels
// the Service's run context so the sender and receiver tasks stop.
func (s *Service) Terminate(ctx context.Context) {
	if s.terminated.Load() {
		return
	}

	for _, id := range s.table.ListIDs() {
		if cap, ok := s.table.Get(id); ok {
			if err := cap.Revoke(ctx); err != nil {
				logger.Warn("terminate: revoke failed", "cap_id", fmtCapID(id[:]), "error", err.Error())
			}
		}
	}

	if !s.terminated.CompareAndSwap(false, true) {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
}

// CreateCapability returns a new, unbound, locally owned capability with
// a random ID, inserted into the table.
func (s *Service) CreateCapability() *Capability {
	return s.CreateCapabilityWithID(wire.NewCapabilityID())
}

// CreateCapabilityWithID is the deterministic-ID variant used as a
// bootstrap workaround in the absence of a naming service.
func (s *Service) CreateCapabilityWithID(id wire.CapabilityID) *Capability {
	cap := newCapability(s, id, s.address)
	s.table.Insert(cap)
	s.refreshTableSizeMetric()
	return cap
}

// CreateRemoteCapabilityWithID constructs a non-local capability
// referencing a foreign owner and inserts it into the table.
func (s *Service) CreateRemoteCapabilityWithID(owner address.Address, id wire.CapabilityID) *Capability {
	cap := newCapability(s, id, owner)
	s.table.Insert(cap)
	s.refreshTableSizeMetric()
	return cap
}

// DeleteCapability removes cap from the table without emitting Revoke.
func (s *Service) DeleteCapability(cap *Capability) {
	s.table.Remove(cap.ID())
	s.refreshTableSizeMetric()
}

// CapExists reports whether id has a live table entry.
func (s *Service) CapExists(id wire.CapabilityID) bool {
	return s.table.Contains(id)
}

// CompilationCommit returns the GIT_HASH this binary was built from.
func (s *Service) CompilationCommit() string {
	return buildinfo.CompilationCommit()
}

// Address returns this Service's own bind address.
func (s *Service) Address() address.Address { return s.address }

// Table returns the underlying capability table.
func (s *Service) Table() *CapabilityTable { return s.table }

func (s *Service) refreshTableSizeMetric() {
	if m := metrics.Get(); m != nil {
		m.TableSize.Set(float64(len(s.table.ListIDs())))
	}
}

// sendPacket encodes header+payload and enqueues it for delivery to
// dest. Callers that don't need a response (delegate, revoke, fire-and-
// forget invoke) use this directly.
func (s *Service) sendPacket(ctx context.Context, header wire.CommonHeader, payload wire.Payload, dest address.Address) error {
	if s.terminated.Load() {
		return ErrTerminated
	}

	data, err := wire.EncodePacket(header, payload)
	if err != nil {
		return err
	}

	select {
	case s.sendCh <- sendRequest{data: data, dest: dest}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrSendQueueFull
	}
}

// sendAndWait registers a notifier for streamID, enqueues the packet, and
// returns the notifier for the caller to Acquire on. This corresponds to
// §4.3.1's "send(req, wait=true)" — the notifier is created here rather
// than by the sender task so the caller can hold a reference to it
// before the datagram has necessarily left the socket.
func (s *Service) sendAndWait(ctx context.Context, header wire.CommonHeader, payload wire.Payload, dest address.Address, streamID uint32) (*notifier, error) {
	n := s.registerNotifier(streamID)
	if err := s.sendPacket(ctx, header, payload, dest); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Service) registerNotifier(streamID uint32) *notifier {
	s.notifiersMu.Lock()
	defer s.notifiersMu.Unlock()
	n := newNotifier()
	s.notifiers[streamID] = n
	return n
}

func (s *Service) lookupNotifier(streamID uint32) *notifier {
	s.notifiersMu.Lock()
	defer s.notifiersMu.Unlock()
	return s.notifiers[streamID]
}

// forgetNotifier garbage-collects a stream's notifier once all expected
// permits have been consumed, per §4.3.1's cleanup note.
func (s *Service) forgetNotifier(streamID uint32) {
	s.notifiersMu.Lock()
	defer s.notifiersMu.Unlock()
	delete(s.notifiers, streamID)
}

func (s *Service) storeResponse(key uint32, resp dispatchedResponse) {
	s.responsesMu.Lock()
	defer s.responsesMu.Unlock()
	s.responses[key] = resp
}

// getResponse consumes (removes) the response stored under key.
func (s *Service) getResponse(key uint32) (dispatchedResponse, bool) {
	s.responsesMu.Lock()
	defer s.responsesMu.Unlock()
	resp, ok := s.responses[key]
	if ok {
		delete(s.responses, key)
	}
	return resp, ok
}

// getResponseNoDelete reads the response stored under key without
// removing it.
func (s *Service) getResponseNoDelete(key uint32) (dispatchedResponse, bool) {
	s.responsesMu.Lock()
	defer s.responsesMu.Unlock()
	resp, ok := s.responses[key]
	return resp, ok
}

// resolveContinuations maps up to four continuation capability IDs
// against the local table. A NilCapabilityID slot maps to nil; an
// unknown non-zero ID maps to nil with a logged error, per §4.3.2.
func (s *Service) resolveContinuations(ids []wire.CapabilityID) ([]*Capability, error) {
	out := make([]*Capability, 0, len(ids))
	for _, id := range ids {
		if id == wire.NilCapabilityID {
			out = append(out, nil)
			continue
		}
		cap, ok := s.table.Get(id)
		if !ok {
			logger.Error("unknown continuation capability", "cap_id", fmtCapID(id[:]))
			out = append(out, nil)
			continue
		}
		out = append(out, cap)
	}
	return out, nil
}

// controllerSend sends a bare controller-opcode header to the switch.
func (s *Service) controllerSend(ctx context.Context, op wire.Opcode) error {
	header := wire.NewControllerHeader(op)
	return s.sendPacket(ctx, header, nil, s.switchAddr)
}

// ControllerResetSwitch sends the ResetSwitch controller opcode.
func (s *Service) ControllerResetSwitch(ctx context.Context) error {
	return s.controllerSend(ctx, wire.OpControllerReset)
}

// ControllerStop sends the Stop controller opcode.
func (s *Service) ControllerStop(ctx context.Context) error {
	return s.controllerSend(ctx, wire.OpControllerStop)
}

// ControllerStartTimer sends the StartTimer controller opcode.
func (s *Service) ControllerStartTimer(ctx context.Context) error {
	return s.controllerSend(ctx, wire.OpControllerStartTmr)
}

// ControllerStopTimer sends the StopTimer controller opcode.
func (s *Service) ControllerStopTimer(ctx context.Context) error {
	return s.controllerSend(ctx, wire.OpControllerStopTmr)
}
