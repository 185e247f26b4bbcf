package wschat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hilthontt/wschat/internal/infrastructure/ratelimiter"
)

type connState int

const (
	stateClosed connState = iota
	stateOpening
	stateOpen
	stateClosing
)

// Client is the connection façade: it owns one logical connection to
// the chat server, turns fire-and-forget sends into awaitable
// request/reply calls, and mirrors the room state the server pushes.
type Client struct {
	address string
	base    *zap.Logger
	tracer  trace.Tracer

	handshakeTimeout time.Duration
	transport        Transport
	limiter          *ratelimiter.FixedWindow

	seq    *sequencer
	events *emitter

	mu     sync.Mutex
	state  connState
	log    *zap.Logger
	openCh chan error
	rooms  map[string]*Room
}

// New builds a client for the chat server at address. The connection
// is not established until Open is called.
func New(address string, opts ...Option) *Client {
	c := &Client{
		address: address,
		base:    zap.NewNop(),
		rooms:   make(map[string]*Room),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.tracer == nil {
		c.tracer = defaultTracer()
	}
	if c.transport == nil {
		c.transport = newWSTransport(address, c.handshakeTimeout)
	}

	c.log = c.base
	c.seq = newSequencer()
	c.events = newEmitter(c.base)
	return c
}

// On subscribes fn to the named event and returns a subscription id.
func (c *Client) On(name string, fn Handler) int {
	return c.events.On(name, fn)
}

// Once subscribes fn for a single delivery of the named event.
func (c *Client) Once(name string, fn Handler) int {
	return c.events.Once(name, fn)
}

// Off removes the subscription with the given id from the named event.
func (c *Client) Off(name string, id int) {
	c.events.Off(name, id)
}

// Open establishes the connection. It fails fast with
// ErrAlreadyConnected unless the client is fully closed, and completes
// when the transport reports open or fails on a connection error
// raised before that.
func (c *Client) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.state != stateClosed {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = stateOpening
	c.log = c.base.With(zap.String("conn_id", uuid.NewString()))
	openCh := make(chan error, 1)
	c.openCh = openCh
	c.mu.Unlock()

	err := c.transport.Connect(ctx, TransportCallbacks{
		OnOpen:    c.handleTransportOpen,
		OnClose:   c.handleTransportClose,
		OnMessage: c.handleFrame,
		OnError:   c.handleTransportError,
	})
	if err != nil {
		c.mu.Lock()
		c.state = stateClosed
		c.openCh = nil
		c.mu.Unlock()
		return err
	}

	select {
	case err := <-openCh:
		if err != nil {
			c.mu.Lock()
			if c.state == stateOpening {
				c.state = stateClosed
			}
			c.mu.Unlock()
		}
		return err
	case <-ctx.Done():
		_ = c.Close()
		return ctx.Err()
	}
}

// Close tears the connection down: every pending request is rejected
// with ErrConnectionClosed, the room registry is emptied and all event
// subscriptions are dropped. Closing an already-closed client is a
// no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.state == stateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = stateClosing
	c.mu.Unlock()

	err := c.transport.Close()
	c.teardown()
	return err
}

// teardown resets all client-side state so a fresh connection starts
// clean. Safe to call from both Close and the transport close
// callback; only the first caller does the work.
func (c *Client) teardown() {
	c.mu.Lock()
	if c.state == stateClosed {
		c.mu.Unlock()
		return
	}
	c.state = stateClosed
	openCh := c.openCh
	c.openCh = nil
	c.rooms = make(map[string]*Room)
	log := c.log
	c.mu.Unlock()

	if openCh != nil {
		openCh <- ErrConnectionClosed
	}
	if c.limiter != nil {
		c.limiter.Reset()
	}
	c.seq.clear(ErrConnectionClosed)
	c.events.Emit(Event{Name: EventClose})
	c.events.Reset()
	log.Debug("connection torn down")
}

// AuthByKey authenticates with a user key.
func (c *Client) AuthByKey(ctx context.Context, key string) (*AuthInfo, error) {
	return c.authRequest(ctx, authRequest{Type: PacketAuth, UKey: key})
}

// AuthByAPIKey authenticates with an API key.
func (c *Client) AuthByAPIKey(ctx context.Context, key string) (*AuthInfo, error) {
	return c.authRequest(ctx, authRequest{Type: PacketAuth, APIKey: key})
}

// AuthByLoginAndPassword authenticates with account credentials.
func (c *Client) AuthByLoginAndPassword(ctx context.Context, login, password string) (*AuthInfo, error) {
	return c.authRequest(ctx, authRequest{Type: PacketAuth, Login: login, Password: password})
}

// RestoreConnection re-authenticates with a session token obtained
// from an earlier AuthInfo.
func (c *Client) RestoreConnection(ctx context.Context, token string) (*AuthInfo, error) {
	return c.authRequest(ctx, authRequest{Type: PacketAuth, Token: token})
}

func (c *Client) authRequest(ctx context.Context, req authRequest) (*AuthInfo, error) {
	payload, err := c.request(ctx, PacketAuth, "", func(id int64) any {
		req.SequenceID = id
		return req
	})
	if err != nil {
		return nil, err
	}
	info, ok := payload.(*AuthInfo)
	if !ok {
		return nil, fmt.Errorf("unexpected auth reply payload %T", payload)
	}
	return info, nil
}

// ChangeStatus announces a status transition for the whole connection.
// The server does not reply to it.
func (c *Client) ChangeStatus(status UserStatus) error {
	return c.sendPacket(statusRequest{Type: PacketStatus, Status: status})
}

// JoinRoomOpts tune a join request.
type JoinRoomOpts struct {
	AutoLogin   bool
	LoadHistory bool
}

// JoinRoom joins the named room. The returned Room is complete: the
// call resolves only after the initial roster snapshot has been
// applied.
func (c *Client) JoinRoom(ctx context.Context, target string, opts JoinRoomOpts) (*Room, error) {
	if target == "" {
		return nil, ErrMissingTarget
	}

	payload, err := c.request(ctx, PacketJoin, target, func(id int64) any {
		return joinRequest{
			Type:        PacketJoin,
			SequenceID:  id,
			Target:      target,
			AutoLogin:   opts.AutoLogin,
			LoadHistory: opts.LoadHistory,
		}
	})
	if err != nil {
		return nil, err
	}
	room, ok := payload.(*Room)
	if !ok {
		return nil, fmt.Errorf("unexpected join reply payload %T", payload)
	}
	return room, nil
}

// LeaveRoom leaves the named room.
func (c *Client) LeaveRoom(ctx context.Context, target string) error {
	if target == "" {
		return ErrMissingTarget
	}
	_, err := c.request(ctx, PacketLeave, target, func(id int64) any {
		return targetRequest{Type: PacketLeave, SequenceID: id, Target: target}
	})
	return err
}

// CreateRoom creates a room on the server without joining it.
func (c *Client) CreateRoom(ctx context.Context, target string) error {
	if target == "" {
		return ErrMissingTarget
	}
	_, err := c.request(ctx, PacketCreateRoom, target, func(id int64) any {
		return targetRequest{Type: PacketCreateRoom, SequenceID: id, Target: target}
	})
	return err
}

// RemoveRoom removes a room on the server.
func (c *Client) RemoveRoom(ctx context.Context, target string) error {
	if target == "" {
		return ErrMissingTarget
	}
	_, err := c.request(ctx, PacketRemoveRoom, target, func(id int64) any {
		return targetRequest{Type: PacketRemoveRoom, SequenceID: id, Target: target}
	})
	return err
}

// RoomByTarget returns the registered room for target, or nil.
func (c *Client) RoomByTarget(target string) *Room {
	if target == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rooms[target]
}

// ConnectedRooms returns all rooms the client currently occupies.
func (c *Client) ConnectedRooms() []*Room {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*Room, 0, len(c.rooms))
	for _, room := range c.rooms {
		out = append(out, room)
	}
	return out
}

// request sends one correlated packet and waits for the reply that
// echoes its id. If ctx expires first the caller gets ctx.Err(); the
// entry itself stays pending until the reply or teardown, whichever
// comes first (the engine defines no timeout policy of its own).
func (c *Client) request(ctx context.Context, typ PacketType, target string, build func(id int64) any) (any, error) {
	ctx, span := c.tracer.Start(ctx, "wschat."+typ.String(),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("chat.packet_type", typ.String()),
			attribute.String("chat.target", target),
		))
	defer span.End()

	ch, id := c.seq.createPending()
	span.SetAttributes(attribute.Int64("chat.sequence_id", id))

	raw, err := encodePacket(build(id))
	if err == nil {
		err = c.send(raw)
	}
	if err != nil {
		// Never sent; take the pending entry back.
		c.seq.complete(id, nil, err)
	}

	select {
	case r := <-ch:
		if r.err != nil {
			span.RecordError(r.err)
			span.SetStatus(codes.Error, r.err.Error())
			return nil, r.err
		}
		return r.payload, nil
	case <-ctx.Done():
		span.SetStatus(codes.Error, ctx.Err().Error())
		return nil, ctx.Err()
	}
}

// allowSend consults the outbound flood guard for one chat message to
// target. With no limit configured every send passes.
func (c *Client) allowSend(target string) error {
	if c.limiter == nil {
		return nil
	}
	ok, retry := c.limiter.Allow(target)
	if !ok {
		return &SendLimitError{Target: target, RetryAfter: retry}
	}
	return nil
}

func (c *Client) sendPacket(v any) error {
	raw, err := encodePacket(v)
	if err != nil {
		return err
	}
	return c.send(raw)
}

func (c *Client) send(raw []byte) error {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	if state != stateOpen {
		return ErrNotConnected
	}
	return c.transport.Send(string(raw))
}

func (c *Client) handleTransportOpen() {
	c.mu.Lock()
	c.state = stateOpen
	openCh := c.openCh
	c.openCh = nil
	c.mu.Unlock()

	if openCh != nil {
		openCh <- nil
	}
	c.events.Emit(Event{Name: EventOpen})
}

func (c *Client) handleTransportClose() {
	c.teardown()
}

func (c *Client) handleTransportError(err error) {
	c.mu.Lock()
	opening := c.state == stateOpening
	openCh := c.openCh
	c.openCh = nil
	log := c.log
	c.mu.Unlock()

	log.Warn("transport error", zap.Error(err))
	if opening && openCh != nil {
		openCh <- err
		return
	}
	c.events.Emit(Event{Name: EventConnectionError, Err: err})
}

// handleFrame is the dispatch pipeline: one inbound frame is fully
// processed (state mutated, events emitted) before the transport
// delivers the next. A malformed frame is dropped with a diagnostic
// and never aborts processing of subsequent frames.
func (c *Client) handleFrame(text string) {
	pkt, err := decodePacket([]byte(text))
	if err != nil {
		c.logger().Warn("dropping malformed frame", zap.Error(err))
		return
	}

	switch p := pkt.(type) {
	case errorFrame:
		c.handleError(p)

	case systemFrame:
		c.events.Emit(Event{
			Name:   EventSysMessage,
			Room:   c.RoomByTarget(p.Target),
			Target: p.Target,
			Text:   p.Message,
		})

	case messageFrame:
		msg := p.Message
		c.events.Emit(Event{
			Name:    EventMessage,
			Room:    c.RoomByTarget(msg.Target),
			Target:  msg.Target,
			Message: &msg,
		})

	case onlineListFrame:
		c.handleOnlineList(p)

	case authFrame:
		info := p.AuthInfo
		if !c.seq.complete(p.SequenceID, &info, nil) {
			c.logger().Warn("unsolicited auth reply",
				zap.Int64("sequence_id", p.SequenceID))
		}

	case statusFrame:
		c.handleStatus(p.StatusUpdate)

	case joinFrame:
		c.handleJoin(p)

	case leaveFrame:
		c.handleLeave(p)

	case createRoomFrame:
		if !c.seq.complete(p.SequenceID, p.Target, nil) {
			c.events.Emit(Event{Name: EventRoomCreated, Target: p.Target})
		}

	case removeRoomFrame:
		if !c.seq.complete(p.SequenceID, p.Target, nil) {
			c.events.Emit(Event{Name: EventRoomRemoved, Target: p.Target})
		}

	case pingFrame:
		// Keepalive contract: echo immediately and unconditionally.
		if err := c.sendPacket(pingReply{Type: PacketPing}); err != nil {
			c.logger().Debug("ping echo failed", zap.Error(err))
		}
	}
}

func (c *Client) handleError(p errorFrame) {
	perr := &ProtocolError{
		Source: p.Source,
		Target: p.Target,
		Code:   p.Code,
		Info:   p.Info,
	}
	if p.SequenceID != 0 && c.seq.complete(p.SequenceID, nil, perr) {
		return
	}
	c.events.Emit(Event{
		Name:   EventError,
		Room:   c.RoomByTarget(p.Target),
		Target: p.Target,
		Err:    perr,
	})
}

// handleJoin processes the join reply. The room enters the registry in
// the joining state; the pending request resolves later, when the
// roster snapshot arrives.
func (c *Client) handleJoin(p joinFrame) {
	c.mu.Lock()
	room, ok := c.rooms[p.Target]
	if !ok {
		room = newRoom(c, p.Target)
		c.rooms[p.Target] = room
	}
	c.mu.Unlock()

	room.setJoinInfo(p.MemberID, p.Login, p.SequenceID)
}

func (c *Client) handleOnlineList(p onlineListFrame) {
	room := c.RoomByTarget(p.Target)
	if room == nil {
		c.logger().Warn("roster snapshot for unknown room",
			zap.String("target", p.Target))
		return
	}

	first, joinSeq := room.applyRoster(p.List)
	seq := p.SequenceID
	if seq == 0 {
		seq = joinSeq
	}

	if first {
		if seq == 0 || !c.seq.complete(seq, room, nil) {
			c.events.Emit(Event{Name: EventJoinRoom, Room: room, Target: p.Target})
		}
		return
	}
	// A later snapshot replaced the roster wholesale; subscribers see
	// it as a status change with no specific payload.
	c.events.Emit(Event{Name: EventUserStatusChange, Room: room, Target: p.Target})
}

func (c *Client) handleStatus(upd StatusUpdate) {
	room := c.RoomByTarget(upd.Target)
	if room == nil {
		c.logger().Warn("status event for unknown room",
			zap.String("target", upd.Target),
			zap.Stringer("status", upd.Status),
			zap.Int64("member_id", upd.MemberID))
	} else if err := room.applyStatus(upd); err != nil {
		c.logger().Warn("status event skipped", zap.Error(err))
	}

	c.events.Emit(Event{
		Name:   EventUserStatusChange,
		Room:   room,
		Target: upd.Target,
		Status: &upd,
	})
}

// handleLeave removes the room whether the leave was self-initiated
// (correlated) or server-pushed, e.g. a kick. Both paths use the same
// removal; only the notification differs.
func (c *Client) handleLeave(p leaveFrame) {
	c.mu.Lock()
	room := c.rooms[p.Target]
	if room != nil {
		delete(c.rooms, p.Target)
	}
	c.mu.Unlock()

	if p.SequenceID != 0 && c.seq.complete(p.SequenceID, room, nil) {
		return
	}
	if room == nil {
		// Leave for a room we never joined: nothing to unregister,
		// but subscribers still get a room reference for the target.
		room = newRoom(c, p.Target)
	}
	c.events.Emit(Event{Name: EventLeaveRoom, Room: room, Target: p.Target})
}

func (c *Client) logger() *zap.Logger {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.log
}
