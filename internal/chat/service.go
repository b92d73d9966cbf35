package chat

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/livedesk/internal/broker"
	"github.com/Rrens/livedesk/internal/config"
	"github.com/Rrens/livedesk/internal/domain"
	"github.com/Rrens/livedesk/internal/presence"
	"github.com/Rrens/livedesk/internal/repository/redis"
	"github.com/Rrens/livedesk/internal/security"
)

// Binder lets the engine attach an agent's live connections to a session
// topic without knowing about sockets. Implemented by the ws hub.
type Binder interface {
	BindAgent(agentID uuid.UUID, topic string)
	UnbindAgent(agentID uuid.UUID, topic string)
}

// AgentRef is the public shape of an agent in wire payloads.
type AgentRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// StartChatResult is what the customer learns right after start_chat.
type StartChatResult struct {
	Session       *domain.ChatSession `json:"session"`
	CustomerToken string              `json:"customerToken"`
	AssignedCS    *AgentRef           `json:"assignedCs,omitempty"`
	Position      int                 `json:"position,omitempty"`
	EstimatedWait int                 `json:"estimatedWaitTime,omitempty"`
}

// RestoredSession is the payload of a session:restored frame.
type RestoredSession struct {
	SessionID  uuid.UUID            `json:"sessionId"`
	Status     domain.SessionStatus `json:"status"`
	AssignedCS *AgentRef            `json:"assignedCs,omitempty"`
	Messages   []domain.Message     `json:"messages"`
}

// Service owns the session state machine. Every transition goes through the
// transactional store; the service's job is contract checks, the in-memory
// capacity mirror, and fan-out of the resulting events.
type Service struct {
	cfg config.ChatConfig

	sessions     domain.SessionRepository
	messages     domain.MessageRepository
	presenceRepo domain.PresenceRepository
	store        domain.TxStore
	users        domain.UserRepository
	activity     domain.ActivityRepository

	registry   *presence.Registry
	broker     *broker.Broker
	binder     Binder
	mirror     *redis.PresenceMirror
	dispatcher *Dispatcher
}

// NewService wires the state machine
func NewService(
	cfg config.ChatConfig,
	sessions domain.SessionRepository,
	messages domain.MessageRepository,
	presenceRepo domain.PresenceRepository,
	store domain.TxStore,
	users domain.UserRepository,
	registry *presence.Registry,
	b *broker.Broker,
) *Service {
	return &Service{
		cfg:          cfg,
		sessions:     sessions,
		messages:     messages,
		presenceRepo: presenceRepo,
		store:        store,
		users:        users,
		registry:     registry,
		broker:       b,
	}
}

// SetBinder attaches the connection-level topic binder.
func (s *Service) SetBinder(b Binder) { s.binder = b }

// SetActivitySink attaches the audit sink.
func (s *Service) SetActivitySink(a domain.ActivityRepository) { s.activity = a }

// SetMirror attaches the redis presence/stats mirror.
func (s *Service) SetMirror(m *redis.PresenceMirror) { s.mirror = m }

// SetDispatcher attaches the auto-assignment loop.
func (s *Service) SetDispatcher(d *Dispatcher) { s.dispatcher = d }

// ---- customer lifecycle ----

// StartChat creates a waiting session and, when auto-assignment is on,
// immediately tries to place it.
func (s *Service) StartChat(ctx context.Context, req domain.ChatInitRequest) (*StartChatResult, error) {
	token, err := security.NewCustomerToken()
	if err != nil {
		return nil, ErrInitFailed
	}

	now := time.Now().UTC()
	session := &domain.ChatSession{
		ID:            uuid.New(),
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		CustomerToken: token,
		SourceURL:     req.SourceURL,
		Status:        domain.StatusWaiting,
		CreatedAt:     now,
		LastMessageAt: now,
	}
	welcome := &domain.Message{
		ID:         uuid.New(),
		SessionID:  session.ID,
		SenderType: domain.SenderSystem,
		Content:    "Chat started",
		Kind:       domain.KindSystem,
		CreatedAt:  now,
	}

	if err := s.sessions.Create(ctx, session, welcome); err != nil {
		log.Error().Err(err).Msg("failed to create session")
		return nil, ErrInitFailed
	}

	s.record(ctx, "chat_started", &session.ID, nil, "customer", map[string]any{
		"customer_name": session.CustomerName,
	})
	s.broker.Publish(broker.TopicQueue, broker.NewEnvelope(broker.EventQueueNewChat, map[string]any{
		"sessionId":    session.ID,
		"customerName": session.CustomerName,
		"createdAt":    session.CreatedAt,
	}), false)

	result := &StartChatResult{Session: session, CustomerToken: token}

	if s.cfg.AutoAssign {
		if assigned, agent, ok := s.tryAssign(ctx, session.ID); ok {
			result.Session = assigned
			result.AssignedCS = agent
			s.refreshQueue(ctx)
			return result, nil
		}
	}

	position := s.queuePosition(ctx, session.ID)
	result.Position = position
	result.EstimatedWait = position * 120
	s.broker.Publish(broker.SessionTopic(session.ID), broker.NewEnvelope(broker.EventChatQueuePosition, map[string]any{
		"sessionId":         session.ID,
		"position":          position,
		"estimatedWaitTime": result.EstimatedWait,
	}), true)
	s.refreshQueue(ctx)
	return result, nil
}

// SendCustomerMessage appends a customer message. Accepted while the session
// is waiting or active so the transcript records pre-assignment context.
func (s *Service) SendCustomerMessage(ctx context.Context, p domain.Principal, sessionID uuid.UUID, content string, kind domain.MessageKind) (*domain.Message, error) {
	if !p.Owns(sessionID) {
		return nil, ErrInvalidSession
	}
	content, err := s.cleanContent(content)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, WireError(err)
	}
	if session.Status.Terminal() {
		return nil, ErrSessionClosed
	}

	msg := s.newMessage(sessionID, domain.SenderCustomer, nil, content, kind)
	if err := s.messages.Append(ctx, msg); err != nil {
		log.Error().Err(err).Str("session", sessionID.String()).Msg("failed to append customer message")
		return nil, WireError(err)
	}

	s.publishMessage(msg)
	return msg, nil
}

// EndChat abandons a session on the customer's request.
func (s *Service) EndChat(ctx context.Context, p domain.Principal, sessionID uuid.UUID) error {
	if !p.Owns(sessionID) {
		return ErrInvalidSession
	}

	session, sysMsg, released, err := s.store.Abandon(ctx, sessionID, "Customer left the chat", time.Now().UTC())
	if err != nil {
		return WireError(err)
	}

	if released != nil {
		s.registry.Release(*released)
		s.broker.Publish(broker.AgentTopic(*released), broker.NewEnvelope(broker.EventChatCustomerLeft, map[string]any{
			"sessionId": sessionID,
		}), false)
		s.unbindAgent(*released, sessionID)
	}

	s.publishMessage(sysMsg)
	s.broker.Publish(broker.SessionTopic(sessionID), broker.NewEnvelope(broker.EventChatEnded, map[string]any{
		"sessionId": sessionID,
		"reason":    "customer_left",
	}), false)

	s.record(ctx, "chat_abandoned", &session.ID, nil, "customer", nil)
	s.refreshQueue(ctx)
	s.kick()
	return nil
}

// SetRating records the post-chat rating. Only resolved sessions accept one.
func (s *Service) SetRating(ctx context.Context, token string, rating int, feedback string) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}

	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		return WireError(err)
	}
	if session.Status != domain.StatusResolved {
		return ErrSessionClosed
	}

	if err := s.sessions.SetRating(ctx, session.ID, rating, feedback); err != nil {
		log.Error().Err(err).Str("session", session.ID.String()).Msg("failed to set rating")
		if wire := WireError(err); wire != ErrServerError {
			return wire
		}
		return ErrRatingFailed
	}

	s.record(ctx, "chat_rated", &session.ID, nil, "customer", map[string]any{"rating": rating})
	return nil
}

// RestoreSession rebinds a reconnecting customer and returns the full
// ordered transcript. The session status does not change.
func (s *Service) RestoreSession(ctx context.Context, token string) (*domain.ChatSession, *RestoredSession, error) {
	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		return nil, nil, WireError(err)
	}

	messages, err := s.messages.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, nil, WireError(err)
	}

	restored := &RestoredSession{
		SessionID: session.ID,
		Status:    session.Status,
		Messages:  messages,
	}
	if session.AssignedAgentID != nil {
		if agent, uerr := s.users.GetByID(ctx, *session.AssignedAgentID); uerr == nil && agent != nil {
			restored.AssignedCS = &AgentRef{ID: agent.ID, Name: agent.Name}
		}
	}
	return session, restored, nil
}

// Typing forwards a typing indicator. Best-effort, droppable.
func (s *Service) Typing(ctx context.Context, p domain.Principal, sessionID uuid.UUID, isTyping bool) error {
	event := broker.EventChatCSTyping
	if p.Kind == domain.PrincipalCustomer {
		if !p.Owns(sessionID) {
			return ErrInvalidSession
		}
		event = broker.EventChatCustomerTyping
	} else {
		session, err := s.sessions.GetByID(ctx, sessionID)
		if err != nil {
			return WireError(err)
		}
		if session.AssignedAgentID == nil || *session.AssignedAgentID != p.UserID {
			return ErrNotAssigned
		}
	}

	s.broker.Publish(broker.SessionTopic(sessionID), broker.NewEnvelope(event, map[string]any{
		"sessionId": sessionID,
		"isTyping":  isTyping,
	}), true)
	return nil
}

// ---- agent lifecycle ----

// AgentConnected makes sure a presence record exists for a freshly connected
// agent. State is left as-is: agents announce availability explicitly.
func (s *Service) AgentConnected(ctx context.Context, agentID uuid.UUID) error {
	user, err := s.users.GetByID(ctx, agentID)
	if err != nil {
		return WireError(err)
	}
	if user == nil {
		return ErrUnauthorized
	}

	maxChats := user.MaxChats
	if maxChats <= 0 {
		maxChats = s.cfg.MaxChatsPerCS
	}

	if _, ok := s.registry.Get(user.ID); !ok {
		p := domain.AgentPresence{
			UserID:       user.ID,
			Name:         user.Name,
			State:        domain.AgentOffline,
			MaxChats:     maxChats,
			LastActiveAt: time.Now().UTC(),
		}
		if err := s.presenceRepo.Upsert(ctx, &p); err != nil {
			return WireError(err)
		}
		s.registry.Upsert(p)
	}
	return nil
}

// AgentDisconnected forces the agent offline. Active chats stay assigned;
// anonymous customers get the idle reaper, authenticated staff get their
// chats back on reconnect.
func (s *Service) AgentDisconnected(ctx context.Context, agentID uuid.UUID) {
	if err := s.SetAgentStatus(ctx, agentID, domain.AgentOffline); err != nil {
		log.Warn().Err(err).Str("agent", agentID.String()).Msg("failed to mark disconnected agent offline")
	}

	if s.cfg.RequeueOnDisconnect {
		go s.requeueAfterGrace(agentID)
	}
}

// SetAgentStatus changes availability and re-evaluates the queue when the
// agent came online.
func (s *Service) SetAgentStatus(ctx context.Context, agentID uuid.UUID, state domain.AgentState) error {
	if err := s.presenceRepo.SetState(ctx, agentID, state); err != nil {
		return WireError(err)
	}
	p, ok := s.registry.SetState(agentID, state)
	if !ok {
		return ErrNotOnline
	}

	s.broker.Publish(broker.TopicQueue, broker.NewEnvelope(broker.EventCSStatusChanged, map[string]any{
		"csId":         agentID,
		"status":       state,
		"currentChats": p.CurrentChats,
		"maxChats":     p.MaxChats,
	}), true)
	s.mirrorAgent(ctx, p)
	s.record(ctx, "agent_status", nil, &agentID, "agent", map[string]any{"status": state})
	s.publishStats(ctx)

	if state == domain.AgentOnline {
		s.kick()
	}
	return nil
}

// AcceptChat is a manual claim of a waiting session by a specific agent.
func (s *Service) AcceptChat(ctx context.Context, agentID uuid.UUID, sessionID uuid.UUID) (*domain.ChatSession, error) {
	agent, ok := s.registry.Get(agentID)
	if !ok {
		return nil, ErrNotOnline
	}

	session, err := s.assignTo(ctx, sessionID, agent)
	if err != nil {
		return nil, WireError(err)
	}
	s.refreshQueue(ctx)
	return session, nil
}

// ForceAssign lets an admin pin a waiting session to a chosen agent.
func (s *Service) ForceAssign(ctx context.Context, adminID, sessionID, agentID uuid.UUID) (*domain.ChatSession, error) {
	agent, ok := s.registry.Get(agentID)
	if !ok {
		return nil, ErrNotOnline
	}

	session, err := s.assignTo(ctx, sessionID, agent)
	if err != nil {
		return nil, WireError(err)
	}
	s.record(ctx, "force_assign", &sessionID, &adminID, "admin", map[string]any{"csId": agentID})
	s.refreshQueue(ctx)
	return session, nil
}

// Broadcast pushes an announcement to every connected staff dashboard.
func (s *Service) Broadcast(ctx context.Context, adminID uuid.UUID, message string) error {
	message, err := s.cleanContent(message)
	if err != nil {
		return err
	}

	s.broker.Publish(broker.TopicBroadcast, broker.NewEnvelope(broker.EventSystemAnnouncement, map[string]any{
		"message": message,
	}), false)
	s.record(ctx, "broadcast", nil, &adminID, "admin", map[string]any{"message": message})
	return nil
}

// SendAgentMessage appends an agent message to a chat the agent owns.
func (s *Service) SendAgentMessage(ctx context.Context, agentID uuid.UUID, sessionID uuid.UUID, content string, kind domain.MessageKind) (*domain.Message, error) {
	content, err := s.cleanContent(content)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, WireError(err)
	}
	if session.Status != domain.StatusActive || session.AssignedAgentID == nil || *session.AssignedAgentID != agentID {
		return nil, ErrNotAssigned
	}

	msg := s.newMessage(sessionID, domain.SenderAgent, &agentID, content, kind)
	if err := s.messages.Append(ctx, msg); err != nil {
		log.Error().Err(err).Str("session", sessionID.String()).Msg("failed to append agent message")
		return nil, WireError(err)
	}

	s.registry.Touch(agentID)
	s.publishMessage(msg)
	return msg, nil
}

// TransferChat hands an active session to another agent.
func (s *Service) TransferChat(ctx context.Context, agentID, sessionID, targetID uuid.UUID) error {
	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return WireError(err)
	}
	if target == nil {
		return ErrTargetNotOnline
	}

	if err := s.registry.Reserve(targetID); err != nil {
		switch err {
		case domain.ErrNotOnline:
			return ErrTargetNotOnline
		case domain.ErrAtCapacity:
			return ErrTargetAtCapacity
		}
		return WireError(err)
	}

	session, sysMsg, err := s.store.Transfer(ctx, sessionID, agentID, targetID, target.Name)
	if err != nil {
		s.registry.Release(targetID)
		if wire := WireError(err); wire != ErrServerError {
			return wire
		}
		return ErrTransferFailed
	}
	s.registry.Release(agentID)

	topic := broker.SessionTopic(sessionID)
	s.bindAgent(targetID, sessionID)
	s.publishMessage(sysMsg)
	s.broker.Publish(topic, broker.NewEnvelope(broker.EventChatTransferred, map[string]any{
		"sessionId": sessionID,
		"newCs":     AgentRef{ID: target.ID, Name: target.Name},
	}), false)
	s.broker.Publish(broker.AgentTopic(agentID), broker.NewEnvelope(broker.EventChatTransferredOut, map[string]any{
		"sessionId": sessionID,
	}), false)
	s.broker.Publish(broker.AgentTopic(targetID), broker.NewEnvelope(broker.EventChatTransferredIn, map[string]any{
		"sessionId": sessionID,
		"session":   session,
	}), false)
	s.unbindAgent(agentID, sessionID)

	s.record(ctx, "chat_transferred", &sessionID, &agentID, "agent", map[string]any{"to": targetID})
	s.publishStats(ctx)
	s.kick()
	return nil
}

// ResolveChat terminates an active session held by the acting agent.
func (s *Service) ResolveChat(ctx context.Context, agentID, sessionID uuid.UUID) error {
	session, sysMsg, err := s.store.Resolve(ctx, sessionID, agentID)
	if err != nil {
		if wire := WireError(err); wire != ErrServerError {
			return wire
		}
		return ErrResolveFailed
	}
	s.registry.Release(agentID)

	s.publishMessage(sysMsg)
	s.broker.Publish(broker.SessionTopic(sessionID), broker.NewEnvelope(broker.EventChatEnded, map[string]any{
		"sessionId": sessionID,
		"reason":    "resolved",
	}), false)
	s.broker.Publish(broker.AgentTopic(agentID), broker.NewEnvelope(broker.EventChatResolved, map[string]any{
		"sessionId": sessionID,
	}), false)
	s.unbindAgent(agentID, sessionID)

	s.record(ctx, "chat_resolved", &session.ID, &agentID, "agent", nil)
	s.publishStats(ctx)
	s.kick()
	return nil
}

// AbandonIdle is the reaper's transition for sessions past the idle timeout.
func (s *Service) AbandonIdle(ctx context.Context, sessionID uuid.UUID) error {
	session, sysMsg, released, err := s.store.Abandon(ctx, sessionID, "Chat closed due to inactivity", time.Now().UTC())
	if err != nil {
		return WireError(err)
	}

	if released != nil {
		s.registry.Release(*released)
		s.unbindAgent(*released, sessionID)
	}

	s.publishMessage(sysMsg)
	s.broker.Publish(broker.SessionTopic(sessionID), broker.NewEnvelope(broker.EventChatEnded, map[string]any{
		"sessionId": sessionID,
		"reason":    "idle",
	}), false)

	s.record(ctx, "chat_idle_abandoned", &session.ID, nil, "system", nil)
	s.refreshQueue(ctx)
	s.kick()
	return nil
}

// ActiveChats returns the agent's current active sessions.
func (s *Service) ActiveChats(ctx context.Context, agentID uuid.UUID) ([]domain.ChatSession, error) {
	sessions, err := s.sessions.ListActiveByAgent(ctx, agentID)
	if err != nil {
		return nil, WireError(err)
	}
	return sessions, nil
}

// WaitingQueue returns the queue snapshot in FIFO order.
func (s *Service) WaitingQueue(ctx context.Context) ([]domain.ChatSession, error) {
	waiting, err := s.sessions.ListWaiting(ctx)
	if err != nil {
		return nil, WireError(err)
	}
	return waiting, nil
}

// Transcript returns the ordered message list of one session.
func (s *Service) Transcript(ctx context.Context, sessionID uuid.UUID) ([]domain.Message, error) {
	messages, err := s.messages.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, WireError(err)
	}
	return messages, nil
}

// Stats builds the dashboard snapshot.
func (s *Service) Stats(ctx context.Context) redis.Stats {
	agents := s.registry.Snapshot()
	stats := redis.Stats{Agents: agents, UpdatedAt: time.Now().UTC()}
	for _, a := range agents {
		if a.State != domain.AgentOffline {
			stats.OnlineAgents++
		}
		stats.ActiveCount += a.CurrentChats
	}
	if waiting, err := s.sessions.ListWaiting(ctx); err == nil {
		stats.WaitingCount = len(waiting)
	}
	return stats
}

// ---- assignment internals ----

// tryAssign places one waiting session on the least-loaded available agent.
// Used by StartChat inline and by the dispatcher loop.
func (s *Service) tryAssign(ctx context.Context, sessionID uuid.UUID) (*domain.ChatSession, *AgentRef, bool) {
	for {
		agent, ok := s.registry.PickAvailable()
		if !ok {
			return nil, nil, false
		}
		session, err := s.assignTo(ctx, sessionID, agent)
		if err == nil {
			return session, &AgentRef{ID: agent.UserID, Name: agent.Name}, true
		}
		switch {
		case err == domain.ErrAtCapacity || err == domain.ErrNotOnline:
			// Registry raced ahead of the store; re-select.
			continue
		default:
			return nil, nil, false
		}
	}
}

// assignTo runs the assignment transaction for a pinned agent: registry
// reservation first, store transaction second, reservation rolled back when
// the transaction loses a race.
func (s *Service) assignTo(ctx context.Context, sessionID uuid.UUID, agent domain.AgentPresence) (*domain.ChatSession, error) {
	if err := s.registry.Reserve(agent.UserID); err != nil {
		return nil, err
	}

	session, sysMsg, err := s.store.Assign(ctx, sessionID, agent.UserID, agent.Name)
	if err != nil {
		s.registry.Release(agent.UserID)
		return nil, err
	}

	s.bindAgent(agent.UserID, sessionID)
	s.publishMessage(sysMsg)
	s.broker.Publish(broker.SessionTopic(sessionID), broker.NewEnvelope(broker.EventChatAssigned, map[string]any{
		"sessionId": sessionID,
		"cs":        AgentRef{ID: agent.UserID, Name: agent.Name},
	}), false)
	s.broker.Publish(broker.AgentTopic(agent.UserID), broker.NewEnvelope(broker.EventChatNewAssigned, map[string]any{
		"sessionId":    sessionID,
		"session":      session,
		"customerName": session.CustomerName,
	}), false)

	s.record(ctx, "chat_assigned", &sessionID, &agent.UserID, "system", nil)
	s.publishStats(ctx)
	return session, nil
}

// requeueAfterGrace returns a disconnected agent's active chats to the queue
// if the agent is still offline when the grace period ends.
func (s *Service) requeueAfterGrace(agentID uuid.UUID) {
	time.Sleep(s.cfg.DisconnectGrace)

	if p, ok := s.registry.Get(agentID); !ok || p.State != domain.AgentOffline {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.HandlerTimeout)
	defer cancel()

	active, err := s.sessions.ListActiveByAgent(ctx, agentID)
	if err != nil {
		log.Error().Err(err).Str("agent", agentID.String()).Msg("failed to list chats for requeue")
		return
	}
	for _, session := range active {
		if _, _, err := s.store.Requeue(ctx, session.ID, agentID); err != nil {
			log.Warn().Err(err).Str("session", session.ID.String()).Msg("failed to requeue chat")
			continue
		}
		s.registry.Release(agentID)
		s.unbindAgent(agentID, session.ID)
	}
	s.refreshQueue(ctx)
	s.kick()
}

// queuePosition returns the 1-indexed place of a session in the waiting
// queue, or 0 when it is not waiting.
func (s *Service) queuePosition(ctx context.Context, sessionID uuid.UUID) int {
	waiting, err := s.sessions.ListWaiting(ctx)
	if err != nil {
		return 0
	}
	for i, w := range waiting {
		if w.ID == sessionID {
			return i + 1
		}
	}
	return 0
}

// refreshQueue pushes fresh positions to every waiting customer and a count
// update to the queue topic.
func (s *Service) refreshQueue(ctx context.Context) {
	waiting, err := s.sessions.ListWaiting(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to refresh queue")
		return
	}

	for i, w := range waiting {
		s.broker.Publish(broker.SessionTopic(w.ID), broker.NewEnvelope(broker.EventChatQueuePosition, map[string]any{
			"sessionId":         w.ID,
			"position":          i + 1,
			"estimatedWaitTime": (i + 1) * 120,
		}), true)
	}
	s.broker.Publish(broker.TopicQueue, broker.NewEnvelope(broker.EventQueueUpdate, map[string]any{
		"waitingCount": len(waiting),
	}), true)
}

func (s *Service) publishStats(ctx context.Context) {
	stats := s.Stats(ctx)
	s.broker.Publish(broker.TopicAdminStats, broker.NewEnvelope(broker.EventStatsUpdate, stats), true)
	if s.mirror != nil {
		if err := s.mirror.SetStats(ctx, stats); err != nil {
			log.Debug().Err(err).Msg("failed to mirror stats")
		}
	}
}

func (s *Service) mirrorAgent(ctx context.Context, p domain.AgentPresence) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.SetAgent(ctx, p); err != nil {
		log.Debug().Err(err).Msg("failed to mirror agent presence")
	}
}

func (s *Service) publishMessage(msg *domain.Message) {
	if msg == nil {
		return
	}
	s.broker.Publish(broker.SessionTopic(msg.SessionID), broker.NewEnvelope(broker.EventChatMessage, map[string]any{
		"message": msg,
	}), false)
}

func (s *Service) bindAgent(agentID, sessionID uuid.UUID) {
	if s.binder != nil {
		s.binder.BindAgent(agentID, broker.SessionTopic(sessionID))
	}
}

func (s *Service) unbindAgent(agentID, sessionID uuid.UUID) {
	if s.binder != nil {
		s.binder.UnbindAgent(agentID, broker.SessionTopic(sessionID))
	}
}

func (s *Service) kick() {
	if s.dispatcher != nil && s.cfg.AutoAssign {
		s.dispatcher.Kick()
	}
}

func (s *Service) cleanContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyMessage
	}
	// The bound is characters, not bytes; cutting mid-rune would hand the
	// store invalid UTF-8.
	if max := s.cfg.MaxMessageLength; max > 0 && utf8.RuneCountInString(content) > max {
		content = string([]rune(content)[:max])
	}
	return content, nil
}

func (s *Service) newMessage(sessionID uuid.UUID, sender domain.SenderType, senderID *uuid.UUID, content string, kind domain.MessageKind) *domain.Message {
	if kind == "" {
		kind = domain.KindText
	}
	return &domain.Message{
		ID:         uuid.New(),
		SessionID:  sessionID,
		SenderType: sender,
		SenderID:   senderID,
		Content:    content,
		Kind:       kind,
		CreatedAt:  time.Now().UTC(),
	}
}

func (s *Service) record(ctx context.Context, action string, sessionID, actorID *uuid.UUID, actorType string, detail map[string]any) {
	if s.activity == nil {
		return
	}
	entry := &domain.ActivityEntry{
		ID:        uuid.New(),
		Action:    action,
		SessionID: sessionID,
		ActorID:   actorID,
		ActorType: actorType,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.activity.Record(ctx, entry); err != nil {
		log.Debug().Err(err).Str("action", action).Msg("failed to record activity")
	}
}
