package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Ahmad-Mosha/chat-api/internal/dto"
	"github.com/Ahmad-Mosha/chat-api/internal/models"
	"github.com/Ahmad-Mosha/chat-api/internal/observability"
	"github.com/Ahmad-Mosha/chat-api/internal/repository"
)

const gatewaySendBufferSize = 32

// Audience scopes carried on the cross-node bus.
const (
	scopeRoom       = "room"
	scopeRoomExcept = "room_except"
	scopeUsers      = "users"
	scopeGlobal     = "global"
)

// GatewayConnectionOptions wraps metadata extracted during the HTTP upgrade.
type GatewayConnectionOptions struct {
	UserID        uint
	CorrelationID string
	Context       context.Context
}

// DeliveryService owns websocket sessions and resolves every canonical event
// to the exact set of connections that must receive it. HTTP handlers feed
// their results through the same publishers the socket path uses, so both
// surfaces produce identical fan-out.
type DeliveryService interface {
	Start(ctx context.Context)
	ServeConnection(conn *websocket.Conn, opts GatewayConnectionOptions)

	MessageCreated(ctx context.Context, message dto.MessageResponse)
	MessageEdited(ctx context.Context, message dto.MessageResponse)
	MessageDeleted(ctx context.Context, event dto.MessageDeletedEvent)
	ReactionToggled(ctx context.Context, event dto.ReactionEvent)
	ConversationRead(ctx context.Context, event dto.ConversationReadEvent)
	StatusChanged(ctx context.Context, event dto.PresenceEvent)
	ConversationCreated(ctx context.Context, conversation dto.ConversationResponse)
	ConversationUpdated(ctx context.Context, conversation dto.ConversationResponse)
	ParticipantAdded(ctx context.Context, event dto.ParticipantEvent)
	ParticipantRemoved(ctx context.Context, event dto.ParticipantEvent)
}

type deliveryService struct {
	conversations repository.ConversationRepository
	messages      MessageService
	users         UserService
	presence      *PresenceRegistry
	redis         *redis.Client
	redisChannel  string
	nats          *nats.Conn
	natsSubject   string
	validator     *validator.Validate
	logger        zerolog.Logger
	hub           *gatewayHub
	nodeID        string
}

// gatewayHub indexes live connections by id, user and conversation room.
// It never performs blocking I/O under its lock; slow consumers lose frames.
type gatewayHub struct {
	mu     sync.RWMutex
	conns  map[string]*gatewayClient
	rooms  map[uint]map[string]struct{}
	byConn map[string]map[uint]struct{}
	log    zerolog.Logger
}

type gatewayClient struct {
	id          string
	userID      uint
	conn        *websocket.Conn
	send        chan dto.GatewayEvent
	service     *deliveryService
	closed      chan struct{}
	once        sync.Once
	baseCtx     context.Context
	correlation string
}

// gatewayBusEvent is the cross-node envelope. Subscribe directives apply
// before delivery and unsubscribe directives after it, so a node receiving a
// membership change adjusts its local rooms and still delivers the final
// frame to the affected connections.
type gatewayBusEvent struct {
	Source             string           `json:"source"`
	Scope              string           `json:"scope"`
	ConversationID     uint             `json:"conversation_id,omitempty"`
	UserIDs            []uint           `json:"user_ids,omitempty"`
	ExcludeUserID      uint             `json:"exclude_user_id,omitempty"`
	SubscribeUserIDs   []uint           `json:"subscribe_user_ids,omitempty"`
	UnsubscribeUserIDs []uint           `json:"unsubscribe_user_ids,omitempty"`
	Event              dto.GatewayEvent `json:"event"`
	SentAt             time.Time        `json:"sent_at"`
}

// NewDeliveryService creates the delivery coordinator. Redis and NATS are
// optional; with both nil the coordinator degrades to single-node fan-out.
func NewDeliveryService(conversations repository.ConversationRepository, messages MessageService, users UserService, presence *PresenceRegistry, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, validate *validator.Validate, logger zerolog.Logger) DeliveryService {
	hub := &gatewayHub{
		conns:  make(map[string]*gatewayClient),
		rooms:  make(map[uint]map[string]struct{}),
		byConn: make(map[string]map[uint]struct{}),
		log:    logger.With().Str("component", "gateway_hub").Logger(),
	}

	redisChannel := ""
	natsSubject := ""
	if channelBase != "" {
		redisChannel = channelBase + ":gateway"
		natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".gateway"
	}

	return &deliveryService{
		conversations: conversations,
		messages:      messages,
		users:         users,
		presence:      presence,
		redis:         redisClient,
		redisChannel:  redisChannel,
		nats:          natsConn,
		natsSubject:   natsSubject,
		validator:     validate,
		logger:        logger.With().Str("component", "delivery_service").Logger(),
		hub:           hub,
		nodeID:        uuid.NewString(),
	}
}

func (s *deliveryService) Start(ctx context.Context) {
	if s.redis != nil && s.redisChannel != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

// ServeConnection runs the session until the socket closes. The conversation
// list is fetched before touching the hub or registry so no lock spans the
// query.
func (s *deliveryService) ServeConnection(conn *websocket.Conn, opts GatewayConnectionOptions) {
	baseCtx := opts.Context
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	conversationIDs, err := s.conversations.IDsByUser(baseCtx, opts.UserID)
	if err != nil {
		s.logger.Error().Err(err).Uint("user_id", opts.UserID).Msg("failed to load conversations for connection")
		_ = conn.WriteJSON(dto.GatewayEvent{
			Event: dto.EventError,
			Data:  dto.GatewayErrorPayload{Code: "internal", Message: "failed to establish session"},
		})
		_ = conn.Close()
		return
	}

	client := &gatewayClient{
		id:          uuid.NewString(),
		userID:      opts.UserID,
		conn:        conn,
		send:        make(chan dto.GatewayEvent, gatewaySendBufferSize),
		service:     s,
		closed:      make(chan struct{}),
		baseCtx:     baseCtx,
		correlation: opts.CorrelationID,
	}

	s.hub.register(client, conversationIDs)
	first := s.presence.Connect(opts.UserID, client.id)
	observability.GatewayConnectionsTotal().Inc()
	observability.GatewayConnectionsActive().Inc()

	if first {
		observability.PresenceOnlineUsers().Inc()
		event, err := s.users.SetPresence(baseCtx, opts.UserID, models.UserStatusOnline)
		if err != nil {
			s.logger.Warn().Err(err).Uint("user_id", opts.UserID).Msg("failed to persist online status")
		} else {
			s.deliver(baseCtx, gatewayBusEvent{
				Scope: scopeGlobal,
				Event: dto.GatewayEvent{Event: dto.EventPresenceOnline, Data: event},
			})
		}
	}

	go client.writer()
	client.reader()
}

func (s *deliveryService) MessageCreated(ctx context.Context, message dto.MessageResponse) {
	s.deliver(ctx, gatewayBusEvent{
		Scope:          scopeRoom,
		ConversationID: message.ConversationID,
		Event:          dto.GatewayEvent{Event: dto.EventMessageNew, Data: message},
	})
}

func (s *deliveryService) MessageEdited(ctx context.Context, message dto.MessageResponse) {
	s.deliver(ctx, gatewayBusEvent{
		Scope:          scopeRoom,
		ConversationID: message.ConversationID,
		Event:          dto.GatewayEvent{Event: dto.EventMessageEdited, Data: message},
	})
}

func (s *deliveryService) MessageDeleted(ctx context.Context, event dto.MessageDeletedEvent) {
	s.deliver(ctx, gatewayBusEvent{
		Scope:          scopeRoom,
		ConversationID: event.ConversationID,
		Event:          dto.GatewayEvent{Event: dto.EventMessageDeleted, Data: event},
	})
}

func (s *deliveryService) ReactionToggled(ctx context.Context, event dto.ReactionEvent) {
	s.deliver(ctx, gatewayBusEvent{
		Scope:          scopeRoom,
		ConversationID: event.ConversationID,
		Event:          dto.GatewayEvent{Event: dto.EventMessageReaction, Data: event},
	})
}

func (s *deliveryService) ConversationRead(ctx context.Context, event dto.ConversationReadEvent) {
	s.deliver(ctx, gatewayBusEvent{
		Scope:          scopeRoomExcept,
		ConversationID: event.ConversationID,
		ExcludeUserID:  event.UserID,
		Event:          dto.GatewayEvent{Event: dto.EventConversationRead, Data: event},
	})
}

func (s *deliveryService) StatusChanged(ctx context.Context, event dto.PresenceEvent) {
	s.deliver(ctx, gatewayBusEvent{
		Scope: scopeGlobal,
		Event: dto.GatewayEvent{Event: dto.EventPresenceStatus, Data: event},
	})
}

func (s *deliveryService) ConversationCreated(ctx context.Context, conversation dto.ConversationResponse) {
	s.deliver(ctx, gatewayBusEvent{
		Scope:            scopeUsers,
		ConversationID:   conversation.ID,
		UserIDs:          conversation.ParticipantIDs,
		SubscribeUserIDs: conversation.ParticipantIDs,
		Event:            dto.GatewayEvent{Event: dto.EventConversationCreated, Data: conversation},
	})
}

func (s *deliveryService) ConversationUpdated(ctx context.Context, conversation dto.ConversationResponse) {
	s.deliver(ctx, gatewayBusEvent{
		Scope:          scopeRoom,
		ConversationID: conversation.ID,
		Event:          dto.GatewayEvent{Event: dto.EventConversationUpdated, Data: conversation},
	})
}

// ParticipantAdded subscribes the new member's live connections before the
// room frame goes out, so they receive their own join event.
func (s *deliveryService) ParticipantAdded(ctx context.Context, event dto.ParticipantEvent) {
	s.deliver(ctx, gatewayBusEvent{
		Scope:            scopeRoom,
		ConversationID:   event.ConversationID,
		SubscribeUserIDs: []uint{event.UserID},
		Event:            dto.GatewayEvent{Event: dto.EventConversationJoined, Data: event},
	})
}

// ParticipantRemoved unsubscribes the departing member only after the room
// frame goes out, so they learn about their removal.
func (s *deliveryService) ParticipantRemoved(ctx context.Context, event dto.ParticipantEvent) {
	s.deliver(ctx, gatewayBusEvent{
		Scope:              scopeRoom,
		ConversationID:     event.ConversationID,
		UnsubscribeUserIDs: []uint{event.UserID},
		Event:              dto.GatewayEvent{Event: dto.EventConversationLeft, Data: event},
	})
}

func (s *deliveryService) typingChanged(ctx context.Context, conversationID, userID uint, started bool) {
	name := dto.EventTypingStop
	if started {
		name = dto.EventTypingStart
	}
	s.deliver(ctx, gatewayBusEvent{
		Scope:          scopeRoomExcept,
		ConversationID: conversationID,
		ExcludeUserID:  userID,
		Event: dto.GatewayEvent{
			Event: name,
			Data:  dto.TypingEvent{ConversationID: conversationID, UserID: userID},
		},
	})
}

// deliver applies an event locally and forwards it to the other nodes.
func (s *deliveryService) deliver(ctx context.Context, bus gatewayBusEvent) {
	bus.Source = s.nodeID
	bus.SentAt = time.Now().UTC()

	s.applyLocal(bus)
	if err := s.publish(ctx, bus); err != nil {
		s.logger.Warn().Err(err).Str("event", bus.Event.Event).Msg("failed to publish gateway event")
	}
}

func (s *deliveryService) applyLocal(bus gatewayBusEvent) {
	for _, userID := range bus.SubscribeUserIDs {
		s.hub.subscribeUser(userID, bus.ConversationID)
	}

	switch bus.Scope {
	case scopeRoom:
		s.hub.sendRoom(bus.ConversationID, bus.Event, 0)
	case scopeRoomExcept:
		s.hub.sendRoom(bus.ConversationID, bus.Event, bus.ExcludeUserID)
	case scopeUsers:
		s.hub.sendUsers(bus.UserIDs, bus.Event)
	case scopeGlobal:
		s.hub.sendGlobal(bus.Event)
	default:
		s.logger.Warn().Str("scope", bus.Scope).Msg("unknown gateway event scope")
	}

	for _, userID := range bus.UnsubscribeUserIDs {
		s.hub.unsubscribeUser(userID, bus.ConversationID)
	}

	observability.GatewayEventsTotal().WithLabelValues(bus.Event.Event).Inc()
}

func (s *deliveryService) publish(ctx context.Context, bus gatewayBusEvent) error {
	payload, err := json.Marshal(bus)
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisChannel != "" {
		if err := s.redis.Publish(ctx, s.redisChannel, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *deliveryService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisChannel)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("gateway redis subscription closed")
			return
		}
		s.handleBusEvent([]byte(msg.Payload))
	}
}

func (s *deliveryService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "chat-gateway", func(msg *nats.Msg) {
		s.handleBusEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats gateway subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain gateway nats subscription")
		}
	}()
}

func (s *deliveryService) handleBusEvent(data []byte) {
	var bus gatewayBusEvent
	if err := json.Unmarshal(data, &bus); err != nil {
		s.logger.Warn().Err(err).Msg("invalid gateway bus event")
		return
	}

	if bus.Source == s.nodeID {
		return
	}

	s.applyLocal(bus)
}

// dispatch routes one inbound frame. Returned errors become error events on
// the acting connection; the connection itself is never torn down.
func (s *deliveryService) dispatch(ctx context.Context, client *gatewayClient, envelope dto.GatewayEnvelope) error {
	switch envelope.Event {
	case dto.EventConversationJoin:
		var payload dto.GatewayJoinPayload
		if err := s.decode(envelope.Data, &payload); err != nil {
			return err
		}
		member, err := s.conversations.IsParticipant(ctx, payload.ConversationID, client.userID)
		if err != nil {
			return err
		}
		if !member {
			return ErrConversationNotFound
		}
		s.hub.subscribe(client.id, payload.ConversationID)
		return nil

	case dto.EventMessageSend:
		var payload dto.MessageSendRequest
		if err := s.decode(envelope.Data, &payload); err != nil {
			return err
		}
		message, err := s.messages.Send(ctx, client.userID, payload)
		if err != nil {
			return err
		}
		s.MessageCreated(ctx, message)
		return nil

	case dto.EventMessageEdit:
		var payload dto.GatewayMessageEditPayload
		if err := s.decode(envelope.Data, &payload); err != nil {
			return err
		}
		message, err := s.messages.Edit(ctx, client.userID, payload.MessageID, dto.MessageEditRequest{Content: payload.Content})
		if err != nil {
			return err
		}
		s.MessageEdited(ctx, message)
		return nil

	case dto.EventMessageDelete:
		var payload dto.GatewayMessageDeletePayload
		if err := s.decode(envelope.Data, &payload); err != nil {
			return err
		}
		deleted, err := s.messages.Delete(ctx, client.userID, payload.MessageID)
		if err != nil {
			return err
		}
		s.MessageDeleted(ctx, deleted)
		return nil

	case dto.EventMessageReact:
		var payload dto.GatewayReactionPayload
		if err := s.decode(envelope.Data, &payload); err != nil {
			return err
		}
		reaction, err := s.messages.React(ctx, client.userID, payload.MessageID, dto.ReactionRequest{Emoji: payload.Emoji})
		if err != nil {
			return err
		}
		s.ReactionToggled(ctx, reaction)
		return nil

	case dto.EventConversationRead:
		var payload dto.GatewayReadPayload
		if err := s.decode(envelope.Data, &payload); err != nil {
			return err
		}
		read, err := s.messages.MarkRead(ctx, client.userID, payload.ConversationID)
		if err != nil {
			return err
		}
		s.ConversationRead(ctx, read)
		return nil

	case dto.EventTypingStart, dto.EventTypingStop:
		var payload dto.GatewayTypingPayload
		if err := s.decode(envelope.Data, &payload); err != nil {
			return err
		}
		// Typing rides the room subscription; no storage round-trip.
		if !s.hub.inRoom(client.id, payload.ConversationID) {
			return ErrConversationNotFound
		}
		started := envelope.Event == dto.EventTypingStart
		var changed bool
		if started {
			changed = s.presence.StartTyping(payload.ConversationID, client.userID)
		} else {
			changed = s.presence.StopTyping(payload.ConversationID, client.userID)
		}
		if changed {
			s.typingChanged(ctx, payload.ConversationID, client.userID, started)
		}
		return nil

	case dto.EventPresenceStatus:
		var payload dto.StatusUpdateRequest
		if err := s.decode(envelope.Data, &payload); err != nil {
			return err
		}
		event, err := s.users.UpdateStatus(ctx, client.userID, payload)
		if err != nil {
			return err
		}
		s.StatusChanged(ctx, event)
		return nil

	default:
		return fmt.Errorf("unknown event %q: %w", envelope.Event, ErrInvalid)
	}
}

func (s *deliveryService) decode(data json.RawMessage, payload interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("missing event data: %w", ErrInvalid)
	}
	if err := json.Unmarshal(data, payload); err != nil {
		return fmt.Errorf("malformed event data: %w", ErrInvalid)
	}
	return s.validator.Struct(payload)
}

// handleDisconnect runs exactly once per connection. Registry removal decides
// the last-connection transition atomically; the resulting broadcasts happen
// after the lock is released.
func (s *deliveryService) handleDisconnect(client *gatewayClient) {
	s.hub.unregister(client)
	observability.GatewayConnectionsActive().Dec()

	last, clearedConversations := s.presence.Disconnect(client.userID, client.id)
	if !last {
		return
	}
	observability.PresenceOnlineUsers().Dec()

	ctx := client.baseCtx
	for _, conversationID := range clearedConversations {
		s.typingChanged(ctx, conversationID, client.userID, false)
	}

	event, err := s.users.SetPresence(ctx, client.userID, models.UserStatusOffline)
	if err != nil {
		s.logger.Warn().Err(err).Uint("user_id", client.userID).Msg("failed to persist offline status")
		return
	}
	s.deliver(ctx, gatewayBusEvent{
		Scope: scopeGlobal,
		Event: dto.GatewayEvent{Event: dto.EventPresenceOffline, Data: event},
	})
}

func (h *gatewayHub) register(client *gatewayClient, conversationIDs []uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.conns[client.id] = client
	h.byConn[client.id] = make(map[uint]struct{}, len(conversationIDs))
	for _, conversationID := range conversationIDs {
		h.addToRoomLocked(client.id, conversationID)
	}
	h.log.Debug().Str("conn_id", client.id).Uint("user_id", client.userID).Int("rooms", len(conversationIDs)).Msg("gateway client connected")
}

func (h *gatewayHub) unregister(client *gatewayClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conversationID := range h.byConn[client.id] {
		if conns, ok := h.rooms[conversationID]; ok {
			delete(conns, client.id)
			if len(conns) == 0 {
				delete(h.rooms, conversationID)
			}
		}
	}
	delete(h.byConn, client.id)
	delete(h.conns, client.id)
	h.log.Debug().Str("conn_id", client.id).Uint("user_id", client.userID).Msg("gateway client disconnected")
}

// subscribe is idempotent; joining a room twice is a no-op.
func (h *gatewayHub) subscribe(connID string, conversationID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[connID]; !ok {
		return
	}
	h.addToRoomLocked(connID, conversationID)
}

// subscribeUser adds every live connection of a user to a room, so mid-session
// membership changes take effect without a reconnect.
func (h *gatewayHub) subscribeUser(userID, conversationID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for connID, client := range h.conns {
		if client.userID == userID {
			h.addToRoomLocked(connID, conversationID)
		}
	}
}

func (h *gatewayHub) unsubscribeUser(userID, conversationID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for connID, client := range h.conns {
		if client.userID == userID {
			h.removeFromRoomLocked(connID, conversationID)
		}
	}
}

func (h *gatewayHub) addToRoomLocked(connID string, conversationID uint) {
	if _, ok := h.rooms[conversationID]; !ok {
		h.rooms[conversationID] = make(map[string]struct{})
	}
	h.rooms[conversationID][connID] = struct{}{}
	if _, ok := h.byConn[connID]; !ok {
		h.byConn[connID] = make(map[uint]struct{})
	}
	h.byConn[connID][conversationID] = struct{}{}
}

func (h *gatewayHub) removeFromRoomLocked(connID string, conversationID uint) {
	if conns, ok := h.rooms[conversationID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(h.rooms, conversationID)
		}
	}
	if rooms, ok := h.byConn[connID]; ok {
		delete(rooms, conversationID)
	}
}

func (h *gatewayHub) inRoom(connID string, conversationID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.byConn[connID][conversationID]
	return ok
}

// sendRoom fans an event out to a conversation room. excludeUserID skips every
// connection of that user; zero excludes no one.
func (h *gatewayHub) sendRoom(conversationID uint, event dto.GatewayEvent, excludeUserID uint) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for connID := range h.rooms[conversationID] {
		client, ok := h.conns[connID]
		if !ok {
			continue
		}
		if excludeUserID != 0 && client.userID == excludeUserID {
			continue
		}
		h.push(client, event)
	}
}

func (h *gatewayHub) sendUsers(userIDs []uint, event dto.GatewayEvent) {
	targets := make(map[uint]struct{}, len(userIDs))
	for _, userID := range userIDs {
		targets[userID] = struct{}{}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.conns {
		if _, ok := targets[client.userID]; ok {
			h.push(client, event)
		}
	}
}

func (h *gatewayHub) sendGlobal(event dto.GatewayEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.conns {
		h.push(client, event)
	}
}

func (h *gatewayHub) push(client *gatewayClient, event dto.GatewayEvent) {
	select {
	case client.send <- event:
	default:
		h.log.Warn().Str("conn_id", client.id).Uint("user_id", client.userID).Str("event", event.Event).Msg("dropping gateway event for slow client")
	}
}

func (c *gatewayClient) reader() {
	defer c.close()

	connCtx := c.baseCtx
	if connCtx == nil {
		connCtx = context.Background()
	}

	for {
		var envelope dto.GatewayEnvelope
		if err := c.conn.ReadJSON(&envelope); err != nil {
			c.service.logger.Debug().Err(err).Str("conn_id", c.id).Msg("gateway read loop ended")
			return
		}

		if err := c.service.dispatch(connCtx, c, envelope); err != nil {
			c.service.logger.Warn().Err(err).Str("event", envelope.Event).Uint("user_id", c.userID).Msg("gateway event rejected")
			c.sendEvent(dto.GatewayEvent{Event: dto.EventError, Data: gatewayErrorPayload(err)})
		}
	}
}

func (c *gatewayClient) writer() {
	defer c.close()

	for {
		select {
		case event, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				c.service.logger.Debug().Err(err).Str("conn_id", c.id).Msg("gateway write loop terminated")
				return
			}
		case <-time.After(30 * time.Second):
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.service.logger.Debug().Err(err).Str("conn_id", c.id).Msg("gateway ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *gatewayClient) sendEvent(event dto.GatewayEvent) {
	select {
	case <-c.closed:
		return
	default:
	}

	select {
	case c.send <- event:
	default:
		c.service.logger.Warn().Str("conn_id", c.id).Msg("sender queue full, dropping event")
	}
}

func (c *gatewayClient) close() {
	c.once.Do(func() {
		close(c.closed)
		c.service.handleDisconnect(c)
		_ = c.conn.Close()
	})
}

// gatewayErrorPayload shapes a dispatch failure for the wire. Internal errors
// do not leak their text.
func gatewayErrorPayload(err error) dto.GatewayErrorPayload {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return dto.GatewayErrorPayload{Code: "invalid", Message: err.Error()}
	}

	code := ErrorCode(err)
	message := err.Error()
	if code == "internal" {
		message = "internal error"
	}
	return dto.GatewayErrorPayload{Code: code, Message: message}
}
