package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"devsocial/pkg/auth"
	"devsocial/pkg/envelope"
	"devsocial/pkg/models"
	"devsocial/pkg/services"

	"github.com/fasthttp/websocket"
	"go.uber.org/zap"
)

type ActionHandler func(c *Conn, env envelope.Envelope)

type Options struct {
	SendQueue    int
	WriteTimeout time.Duration
}

// Sessions owns the lifecycle of real-time connections: authentication,
// the personal room, frame dispatch and teardown.
type Sessions struct {
	verifier auth.Verifier
	router   *Router
	rooms    *Rooms
	opts     Options
	log      *zap.Logger
	handlers map[string]ActionHandler

	mu        sync.RWMutex
	conns     map[*Conn]struct{}
	byAccount map[int64]int
}

func NewSessions(verifier auth.Verifier, router *Router, opts Options, log *zap.Logger) *Sessions {
	if opts.SendQueue <= 0 {
		opts.SendQueue = 64
	}
	s := &Sessions{
		verifier:  verifier,
		router:    router,
		rooms:     router.Rooms(),
		opts:      opts,
		log:       log.Named("hub"),
		handlers:  make(map[string]ActionHandler),
		conns:     make(map[*Conn]struct{}),
		byAccount: make(map[int64]int),
	}
	s.registerActions()
	return s
}

// On registers a handler for a client action. Handlers run on the
// connection's read goroutine, in frame order.
func (s *Sessions) On(action string, fn ActionHandler) {
	s.handlers[action] = fn
}

// Authenticate verifies the handshake token.
func (s *Sessions) Authenticate(ctx context.Context, token string) (models.Identity, error) {
	if strings.TrimSpace(token) == "" {
		return models.Identity{}, &services.Error{Kind: services.KindAuthenticationFailed, Message: "authentication error"}
	}
	return s.verifier.Verify(ctx, token)
}

// Serve runs one connection until the socket fails or ctx is cancelled.
// Unauthenticated sockets get an error frame and are closed.
func (s *Sessions) Serve(ctx context.Context, socket Socket, identity models.Identity) {
	if !identity.Authenticated() {
		frame, _ := envelope.NewError(envelope.Envelope{}, 401, "authentication error").Marshal()
		socket.WriteMessage(websocket.TextMessage, frame)
		socket.Close()
		return
	}

	c := newConn(socket, identity, s.opts.SendQueue, s.opts.WriteTimeout, s.log)
	s.register(c)
	s.rooms.Join(c, PersonalRoom(identity.ID))
	go c.writeLoop()

	stop := context.AfterFunc(ctx, c.close)
	defer func() {
		stop()
		s.teardown(c)
	}()

	s.log.Info("client connected",
		zap.String("conn", c.id), zap.Int64("account", identity.ID), zap.String("username", identity.Handle),
		zap.Int("total", s.ConnectionCount()))

	for {
		_, raw, err := socket.ReadMessage()
		if err != nil {
			return
		}
		s.dispatch(c, raw)
	}
}

func (s *Sessions) register(c *Conn) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.byAccount[c.identity.ID]++
	s.mu.Unlock()
}

func (s *Sessions) teardown(c *Conn) {
	s.rooms.RemoveAll(c)

	s.mu.Lock()
	delete(s.conns, c)
	if s.byAccount[c.identity.ID]--; s.byAccount[c.identity.ID] <= 0 {
		delete(s.byAccount, c.identity.ID)
	}
	s.mu.Unlock()

	c.close()
	s.log.Info("client disconnected",
		zap.String("conn", c.id), zap.Int64("account", c.identity.ID), zap.Int("total", s.ConnectionCount()))
}

func (s *Sessions) dispatch(c *Conn, raw []byte) {
	env, err := envelope.Unmarshal(raw)
	if err != nil {
		c.send(envelope.NewError(envelope.Envelope{}, 400, "invalid JSON"))
		return
	}

	if env.Action == ActionPing {
		pong := envelope.New(EventPong)
		pong.ReplyTo = env.ID
		c.send(pong)
		return
	}

	handler, ok := s.handlers[env.Action]
	if !ok {
		c.send(envelope.NewError(env, 404, "unknown action: "+env.Action))
		return
	}
	handler(c, env)
}

func (s *Sessions) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

func (s *Sessions) AuthenticatedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byAccount)
}

func (s *Sessions) RoomCount() int {
	return s.rooms.Len()
}

func (s *Sessions) reply(c *Conn, original envelope.Envelope, data interface{}) {
	env, err := envelope.NewReply(original, data)
	if err != nil {
		s.log.Sugar().Errorf("failed to build reply for %s: %s", original.Action, err.Error())
		return
	}
	c.send(env)
}

func (s *Sessions) replyError(c *Conn, original envelope.Envelope, code int, msg string) {
	c.send(envelope.NewError(original, code, msg))
}

// ──────────────────────────────────────────────
// Actions
// ──────────────────────────────────────────────

func (s *Sessions) registerActions() {
	s.On(ActionJoinChat, s.joinRoom("chatId", ChatRoom))
	s.On(ActionJoinProject, s.joinRoom("projectId", ProjectRoom))
	s.On(ActionJoinNotifications, s.joinNotifications)
	s.On(ActionSendMessage, s.sendMessage)
	s.On(ActionTypingStart, s.typing(true))
	s.On(ActionTypingStop, s.typing(false))
	s.On(ActionProjectUpdate, s.projectUpdate)
}

func (s *Sessions) joinRoom(field string, room func(string) string) ActionHandler {
	return func(c *Conn, env envelope.Envelope) {
		id, ok := roomArg(env.Data, field)
		if !ok {
			s.replyError(c, env, 400, field+" is required")
			return
		}
		name := room(id)
		s.rooms.Join(c, name)
		s.reply(c, env, joinResult{Room: name})
	}
}

// joinNotifications acknowledges the personal room joined at connect time.
func (s *Sessions) joinNotifications(c *Conn, env envelope.Envelope) {
	name := PersonalRoom(c.identity.ID)
	s.rooms.Join(c, name)
	s.reply(c, env, joinResult{Room: name})
}

// memberRoom resolves the target room and checks the sender joined it.
func (s *Sessions) memberRoom(c *Conn, env envelope.Envelope, field string, room func(string) string) (string, bool) {
	id, ok := roomArg(env.Data, field)
	if !ok {
		s.replyError(c, env, 400, field+" is required")
		return "", false
	}
	name := room(id)
	if !s.rooms.IsMember(c, name) {
		s.replyError(c, env, 403, "not a member of "+name)
		return "", false
	}
	return name, true
}

func (s *Sessions) sendMessage(c *Conn, env envelope.Envelope) {
	room, ok := s.memberRoom(c, env, "chatId", ChatRoom)
	if !ok {
		return
	}
	if len(bytes.TrimSpace(env.Data)) == 0 || env.Data[0] != '{' {
		s.replyError(c, env, 400, "message must be an object")
		return
	}
	n := s.router.PublishFrom(c, room, EventNewMessage, env.Data)
	s.reply(c, env, publishResult{Room: room, Delivered: n})
}

func (s *Sessions) typing(active bool) ActionHandler {
	return func(c *Conn, env envelope.Envelope) {
		room, ok := s.memberRoom(c, env, "chatId", ChatRoom)
		if !ok {
			return
		}
		chatID, _ := roomArg(env.Data, "chatId")
		s.router.PublishFrom(c, room, EventUserTyping, typingPayload{ChatID: chatID, User: c.sender(), IsTyping: active})
	}
}

func (s *Sessions) projectUpdate(c *Conn, env envelope.Envelope) {
	room, ok := s.memberRoom(c, env, "projectId", ProjectRoom)
	if !ok {
		return
	}
	n := s.router.Publish(room, Event{Kind: EventProjectUpdated, Payload: env.Data}, c)
	s.reply(c, env, publishResult{Room: room, Delivered: n})
}

const maxRoomID = 128

// roomArg extracts a room id given as a JSON string, a number, or a field of
// an object.
func roomArg(data json.RawMessage, field string) (string, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return "", false
	}

	var id string
	switch data[0] {
	case '"':
		if err := json.Unmarshal(data, &id); err != nil {
			return "", false
		}
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return "", false
		}
		inner, ok := obj[field]
		if !ok {
			return "", false
		}
		inner = bytes.TrimSpace(inner)
		if len(inner) == 0 || inner[0] == '{' {
			return "", false
		}
		return roomArg(inner, field)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return "", false
		}
		if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
			return "", false
		}
		id = n.String()
	}

	id = strings.TrimSpace(id)
	if id == "" || len(id) > maxRoomID {
		return "", false
	}
	return id, true
}
