package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/livedesk/internal/broker"
	"github.com/Rrens/livedesk/internal/chat"
	"github.com/Rrens/livedesk/internal/domain"
	"github.com/Rrens/livedesk/internal/security"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// The widget embeds on arbitrary customer sites.
		return true
	},
}

// Close codes handed to dashboard connections: 4401 means "re-login",
// 4403 means the account lacks the required role. 4408 tells an idle peer
// the read deadline expired.
const (
	closeUnauthorized = 4401
	closeForbidden    = 4403
	closeIdleTimeout  = 4408
)

// Gateway owns every live websocket. It authenticates connections, applies
// the per-role subscription policy and routes client frames to the engine.
// It is also the chat.Binder: assignment subscribes the winning agent's
// connections to the session topic.
type Gateway struct {
	svc            *chat.Service
	broker         *broker.Broker
	auth           security.Authenticator
	handlerTimeout time.Duration

	mu     sync.RWMutex
	agents map[uuid.UUID]map[*Client]struct{}
}

// NewGateway wires the websocket layer to the engine
func NewGateway(svc *chat.Service, b *broker.Broker, auth security.Authenticator, handlerTimeout time.Duration) *Gateway {
	gw := &Gateway{
		svc:            svc,
		broker:         b,
		auth:           auth,
		handlerTimeout: handlerTimeout,
		agents:         make(map[uuid.UUID]map[*Client]struct{}),
	}
	svc.SetBinder(gw)
	return gw
}

// ---- chat.Binder ----

// BindAgent subscribes every live connection of the agent to a topic.
func (g *Gateway) BindAgent(agentID uuid.UUID, topic string) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for c := range g.agents[agentID] {
		g.broker.Subscribe(c, topic)
	}
}

// UnbindAgent removes the agent's connections from a topic.
func (g *Gateway) UnbindAgent(agentID uuid.UUID, topic string) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for c := range g.agents[agentID] {
		g.broker.Unsubscribe(c, topic)
	}
}

// ---- connection handlers ----

// HandleCustomer upgrades a widget connection. A customer_token query
// parameter resumes an existing session; without one the connection stays
// latent until start_chat.
func (g *Gateway) HandleCustomer(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("customer upgrade failed")
		return
	}

	client := newClient(conn, g, domain.Principal{Kind: domain.PrincipalCustomer})
	go client.writePump()

	if token := r.URL.Query().Get("token"); token != "" {
		g.restoreCustomer(r.Context(), client, token)
	}

	client.readPump()
}

// HandleAgent upgrades a dashboard connection for cs and admin users.
func (g *Gateway) HandleAgent(w http.ResponseWriter, r *http.Request) {
	g.handleStaff(w, r, false)
}

// HandleAdmin upgrades an admin monitoring connection. Subscribes the stats
// feed on top of the regular agent channels.
func (g *Gateway) HandleAdmin(w http.ResponseWriter, r *http.Request) {
	g.handleStaff(w, r, true)
}

func (g *Gateway) handleStaff(w http.ResponseWriter, r *http.Request, adminOnly bool) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("staff upgrade failed")
		return
	}

	principal, err := g.auth.Authenticate(r.Context(), bearerToken(r))
	if err != nil {
		rejectConn(conn, closeUnauthorized, "unauthorized")
		return
	}
	if adminOnly && !principal.IsAdmin() {
		rejectConn(conn, closeForbidden, "admin role required")
		return
	}

	client := newClient(conn, g, *principal)
	go client.writePump()

	g.registerAgent(client, principal.UserID)
	g.broker.Subscribe(client, broker.AgentTopic(principal.UserID))
	g.broker.Subscribe(client, broker.TopicQueue)
	g.broker.Subscribe(client, broker.TopicBroadcast)
	if principal.IsAdmin() {
		g.broker.Subscribe(client, broker.TopicAdminStats)
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.handlerTimeout)
	if err := g.svc.AgentConnected(ctx, principal.UserID); err != nil {
		log.Warn().Err(err).Str("agent", principal.UserID.String()).Msg("failed to register agent presence")
	}
	// Replay the agent's active chats so a reconnecting dashboard rebinds.
	if active, err := g.svc.ActiveChats(ctx, principal.UserID); err == nil {
		for _, session := range active {
			g.broker.Subscribe(client, broker.SessionTopic(session.ID))
		}
	}
	cancel()

	log.Info().Str("agent", principal.Name).Str("conn", client.id).Msg("agent connected")
	client.readPump()
}

func (g *Gateway) restoreCustomer(ctx context.Context, client *Client, token string) {
	session, restored, err := g.svc.RestoreSession(ctx, token)
	if err != nil {
		g.sendError(client, err, "")
		return
	}

	client.bindSession(session.ID, token)
	g.broker.Subscribe(client, broker.SessionTopic(session.ID))
	client.Enqueue(broker.NewEnvelope(broker.EventSessionRestored, restored), false)
}

func (g *Gateway) registerAgent(c *Client, agentID uuid.UUID) {
	g.mu.Lock()
	set, ok := g.agents[agentID]
	if !ok {
		set = make(map[*Client]struct{})
		g.agents[agentID] = set
	}
	set[c] = struct{}{}
	g.mu.Unlock()
}

// drop runs the disconnect policy once a connection's read loop ends.
func (g *Gateway) drop(c *Client) {
	g.broker.UnsubscribeAll(c)

	p := c.Principal()
	if p.Kind != domain.PrincipalAgent {
		return
	}

	g.mu.Lock()
	set := g.agents[p.UserID]
	delete(set, c)
	last := len(set) == 0
	if last {
		delete(g.agents, p.UserID)
	}
	g.mu.Unlock()

	if last {
		ctx, cancel := context.WithTimeout(context.Background(), g.handlerTimeout)
		g.svc.AgentDisconnected(ctx, p.UserID)
		cancel()
		log.Info().Str("agent", p.Name).Msg("agent disconnected")
	}
}

// ---- frame dispatch ----

type startChatPayload struct {
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
	SourceURL     string `json:"sourceUrl"`
}

type sessionPayload struct {
	SessionID uuid.UUID `json:"sessionId"`
}

type messagePayload struct {
	SessionID uuid.UUID          `json:"sessionId"`
	Content   string             `json:"content"`
	Kind      domain.MessageKind `json:"messageType"`
}

type typingPayload struct {
	SessionID uuid.UUID `json:"sessionId"`
	IsTyping  bool      `json:"isTyping"`
}

type ratingPayload struct {
	Rating   int    `json:"rating"`
	Feedback string `json:"feedback"`
}

type statusPayload struct {
	Status domain.AgentState `json:"status"`
}

type transferPayload struct {
	SessionID  uuid.UUID `json:"sessionId"`
	TargetCSID uuid.UUID `json:"toCsId"`
}

type forceAssignPayload struct {
	SessionID uuid.UUID `json:"sessionId"`
	CSID      uuid.UUID `json:"csId"`
}

type broadcastPayload struct {
	Message string `json:"message"`
}

// dispatch routes one client frame. Unknown events and events outside the
// sender's role get a system:error, never a disconnect.
func (g *Gateway) dispatch(ctx context.Context, c *Client, frame clientFrame) {
	p := c.Principal()

	var err error
	switch p.Kind {
	case domain.PrincipalCustomer:
		err = g.dispatchCustomer(ctx, c, p, frame)
	case domain.PrincipalAgent:
		err = g.dispatchAgent(ctx, c, p, frame)
	default:
		err = chat.ErrUnauthorized
	}

	if err != nil {
		g.sendError(c, err, frame.RequestID)
	}
}

func (g *Gateway) dispatchCustomer(ctx context.Context, c *Client, p domain.Principal, frame clientFrame) error {
	switch frame.Event {
	case broker.EventCustomerStartChat:
		var payload startChatPayload
		if err := unmarshal(frame.Data, &payload); err != nil {
			return err
		}
		res, err := g.svc.StartChat(ctx, domain.ChatInitRequest{
			CustomerName:  payload.CustomerName,
			CustomerEmail: payload.CustomerEmail,
			SourceURL:     payload.SourceURL,
		})
		if err != nil {
			return err
		}
		c.bindSession(res.Session.ID, res.CustomerToken)
		g.broker.Subscribe(c, broker.SessionTopic(res.Session.ID))
		c.Enqueue(broker.NewEnvelope(broker.EventChatStarted, res).WithRequestID(frame.RequestID), false)
		// Inline assignment happened before this connection joined the
		// session topic, so replay the frame it missed.
		if res.AssignedCS != nil {
			c.Enqueue(broker.NewEnvelope(broker.EventChatAssigned, map[string]any{
				"sessionId": res.Session.ID,
				"cs":        res.AssignedCS,
			}), false)
		}
		return nil

	case broker.EventCustomerSendMessage:
		var payload messagePayload
		if err := unmarshal(frame.Data, &payload); err != nil {
			return err
		}
		_, err := g.svc.SendCustomerMessage(ctx, p, payload.SessionID, payload.Content, payload.Kind)
		return err

	case broker.EventCustomerTyping:
		var payload typingPayload
		if err := unmarshal(frame.Data, &payload); err != nil {
			return err
		}
		return g.svc.Typing(ctx, p, payload.SessionID, payload.IsTyping)

	case broker.EventCustomerEndChat:
		var payload sessionPayload
		if err := unmarshal(frame.Data, &payload); err != nil {
			return err
		}
		return g.svc.EndChat(ctx, p, payload.SessionID)

	case broker.EventCustomerRating:
		var payload ratingPayload
		if err := unmarshal(frame.Data, &payload); err != nil {
			return err
		}
		if p.CustomerToken == "" {
			return chat.ErrInvalidSession
		}
		return g.svc.SetRating(ctx, p.CustomerToken, payload.Rating, payload.Feedback)
	}

	log.Debug().Str("event", frame.Event).Str("conn", c.id).Msg("unknown customer event")
	return errUnknownEvent
}

func (g *Gateway) dispatchAgent(ctx context.Context, c *Client, p domain.Principal, frame clientFrame) error {
	switch frame.Event {
	case broker.EventCSSetStatus:
		var payload statusPayload
		if err := unmarshal(frame.Data, &payload); err != nil {
			return err
		}
		return g.svc.SetAgentStatus(ctx, p.UserID, payload.Status)

	case broker.EventCSAcceptChat:
		var payload sessionPayload
		if err := unmarshal(frame.Data, &payload); err != nil {
			return err
		}
		_, err := g.svc.AcceptChat(ctx, p.UserID, payload.SessionID)
		return err

	case broker.EventCSSendMessage:
		var payload messagePayload
		if err := unmarshal(frame.Data, &payload); err != nil {
			return err
		}
		_, err := g.svc.SendAgentMessage(ctx, p.UserID, payload.SessionID, payload.Content, payload.Kind)
		return err

	case broker.EventCSTyping:
		var payload typingPayload
		if err := unmarshal(frame.Data, &payload); err != nil {
			return err
		}
		return g.svc.Typing(ctx, p, payload.SessionID, payload.IsTyping)

	case broker.EventCSResolveChat:
		var payload sessionPayload
		if err := unmarshal(frame.Data, &payload); err != nil {
			return err
		}
		return g.svc.ResolveChat(ctx, p.UserID, payload.SessionID)

	case broker.EventCSTransferChat:
		var payload transferPayload
		if err := unmarshal(frame.Data, &payload); err != nil {
			return err
		}
		return g.svc.TransferChat(ctx, p.UserID, payload.SessionID, payload.TargetCSID)

	case broker.EventAdminSubscribeStats:
		if !p.IsAdmin() {
			return chat.ErrUnauthorized
		}
		g.broker.Subscribe(c, broker.TopicAdminStats)
		c.Enqueue(broker.NewEnvelope(broker.EventStatsUpdate, g.svc.Stats(ctx)).WithRequestID(frame.RequestID), true)
		return nil

	case broker.EventAdminForceAssign:
		if !p.IsAdmin() {
			return chat.ErrUnauthorized
		}
		var payload forceAssignPayload
		if err := unmarshal(frame.Data, &payload); err != nil {
			return err
		}
		_, err := g.svc.ForceAssign(ctx, p.UserID, payload.SessionID, payload.CSID)
		return err

	case broker.EventAdminBroadcast:
		if !p.IsAdmin() {
			return chat.ErrUnauthorized
		}
		var payload broadcastPayload
		if err := unmarshal(frame.Data, &payload); err != nil {
			return err
		}
		return g.svc.Broadcast(ctx, p.UserID, payload.Message)
	}

	log.Debug().Str("event", frame.Event).Str("conn", c.id).Msg("unknown agent event")
	return errUnknownEvent
}

var errUnknownEvent = &chat.Error{Code: "UNKNOWN_EVENT", Message: "unsupported event for this connection"}

func (g *Gateway) sendError(c *Client, err error, requestID string) {
	wire := chat.WireError(err)
	c.Enqueue(broker.NewEnvelope(broker.EventSystemError, map[string]any{
		"code":    wire.Code,
		"message": wire.Message,
	}).WithRequestID(requestID), false)
}

func unmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return chat.ErrEmptyMessage
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &chat.Error{Code: "BAD_PAYLOAD", Message: "malformed payload"}
	}
	return nil
}

func rejectConn(conn *websocket.Conn, code int, reason string) {
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(writeWait))
	conn.Close()
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
