package ws

import (
	"context"
	"net/http"
	"sync"

	"voltbid-auction-service/internal/domain/shared"
	"voltbid-auction-service/internal/ports/inbound"
	"voltbid-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WsHandler manages WebSocket connections and routes auction-room
// messages to the application services.
type WsHandler struct {
	clients        map[string]*WsClient // clientID -> Client
	clientsMu      sync.RWMutex
	eventChannels  map[string]chan outbound.Event // clientID -> local event channel
	channelsMu     sync.RWMutex
	upgrader       websocket.Upgrader
	auctionService inbound.AuctionService
	joinService    inbound.JoinService
	bidService     inbound.BidService
	broadcaster    outbound.Broadcaster
	logger         zerolog.Logger
}

type WsHandlerParams struct {
	Upgrader       websocket.Upgrader
	AuctionService inbound.AuctionService
	JoinService    inbound.JoinService
	BidService     inbound.BidService
	Broadcaster    outbound.Broadcaster
	Logger         zerolog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(params WsHandlerParams) *WsHandler {
	return &WsHandler{
		clients:        make(map[string]*WsClient),
		eventChannels:  make(map[string]chan outbound.Event),
		upgrader:       params.Upgrader,
		auctionService: params.AuctionService,
		joinService:    params.JoinService,
		bidService:     params.BidService,
		broadcaster:    params.Broadcaster,
		logger:         params.Logger.With().Str("component", "ws_handler").Logger(),
	}
}

// HandleWebSocket handles WebSocket connection upgrades
func (handler *WsHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userIDStr := r.URL.Query().Get("user_id")
	if userIDStr == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		http.Error(w, "invalid user_id format", http.StatusBadRequest)
		return
	}

	conn, err := handler.upgrader.Upgrade(w, r, nil)
	if err != nil {
		handler.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := NewClient(WsClientParams{
		UserID:  userID,
		Conn:    conn,
		Handler: handler,
		Logger:  handler.logger,
	})

	handler.registerClient(client)
	handler.createEventChannel(client.id)

	client.Start()
	go handler.listenForClientEvents(client)

	go func() {
		<-client.ctx.Done()
		handler.unregisterClient(client)
	}()

	handler.logger.Info().
		Str("client_id", client.id).
		Str("user_id", client.userID.String()).
		Msg("WebSocket client connected")
}

func (handler *WsHandler) createEventChannel(clientID string) chan outbound.Event {
	handler.channelsMu.Lock()
	defer handler.channelsMu.Unlock()

	if eventChan, exists := handler.eventChannels[clientID]; exists {
		return eventChan
	}

	eventChan := make(chan outbound.Event, 100)
	handler.eventChannels[clientID] = eventChan
	return eventChan
}

func (handler *WsHandler) getEventChannel(clientID string) chan outbound.Event {
	handler.channelsMu.RLock()
	defer handler.channelsMu.RUnlock()

	return handler.eventChannels[clientID]
}

func (handler *WsHandler) removeEventChannel(clientID string) {
	handler.channelsMu.Lock()
	defer handler.channelsMu.Unlock()

	if eventChan, exists := handler.eventChannels[clientID]; exists {
		close(eventChan)
		delete(handler.eventChannels, clientID)
	}
}

func (handler *WsHandler) registerClient(client *WsClient) {
	handler.clientsMu.Lock()
	defer handler.clientsMu.Unlock()
	handler.clients[client.id] = client
}

func (handler *WsHandler) unregisterClient(client *WsClient) {
	handler.clientsMu.Lock()
	defer handler.clientsMu.Unlock()

	delete(handler.clients, client.id)
	client.Stop()
	handler.removeEventChannel(client.id)

	handler.logger.Info().
		Str("client_id", client.id).
		Str("user_id", client.userID.String()).
		Int("total_clients", len(handler.clients)).
		Msg("WebSocket client disconnected")
}

// listenForClientEvents forwards room events to the client socket
func (handler *WsHandler) listenForClientEvents(client *WsClient) {
	eventChan := handler.getEventChannel(client.id)
	if eventChan == nil {
		handler.logger.Error().Str("client_id", client.id).Msg("No event channel found for client")
		return
	}

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			wsMessage := handler.convertEventToMessage(event)
			if err := client.Send(wsMessage); err != nil {
				handler.logger.Warn().Err(err).Str("client_id", client.id).Msg("Failed to forward event to client")
			}

		case <-client.ctx.Done():
			return
		}
	}
}

// HandleClientMessage dispatches a validated client message
func (handler *WsHandler) HandleClientMessage(client *WsClient, msg *ClientMessage) error {
	switch msg.Type {
	case MessageTypeJoin:
		return handler.handleJoin(client, msg)

	case MessageTypeLeave:
		return handler.handleLeave(client, msg)

	case MessageTypePlaceBid:
		return handler.handlePlaceBid(client, msg)

	case MessageTypeBuyNow:
		return handler.handleBuyNow(client, msg)

	case MessageTypeGetAuction:
		return handler.handleGetAuction(client, msg)

	default:
		return shared.ErrUnknownMessageType
	}
}

func (handler *WsHandler) convertEventToMessage(event outbound.Event) *ServerMessage {
	var msgType MessageType
	switch event.Type {
	case outbound.EventTypeUserJoined:
		msgType = MessageTypeUserJoined
	case outbound.EventTypeBidUpdate:
		msgType = MessageTypeBidUpdate
	case outbound.EventTypeTimeUpdate:
		msgType = MessageTypeTimeUpdate
	case outbound.EventTypeAuctionClosed:
		msgType = MessageTypeAuctionClosed
	default:
		msgType = MessageTypeAuctionState
	}

	return &ServerMessage{
		Type:      msgType,
		AuctionID: &event.AuctionID,
		Data:      event.Data,
		Timestamp: event.Timestamp,
	}
}

// handleJoin admits the user (debiting the deposit on first join) and
// enters them into the auction room.
func (handler *WsHandler) handleJoin(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	result, err := handler.joinService.Join(ctx, inbound.JoinRequest{
		AuctionID: *msg.AuctionID,
		UserID:    client.userID,
	})
	if err != nil {
		return client.Send(NewErrorMessage(err.Error(), msg.AuctionID))
	}

	eventChan := handler.getEventChannel(client.id)
	if eventChan == nil {
		return shared.ErrClientEventChannelNotFound
	}

	if err := handler.broadcaster.Subscribe(ctx, *msg.AuctionID, client.id, eventChan); err != nil {
		return err
	}

	response := NewAuctionStateMessage(result.Auction, result.RemainingSeconds, MessageTypeJoined)
	return client.Send(response)
}

// handleLeave is purely a room-subscription operation, no state change
func (handler *WsHandler) handleLeave(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	if err := handler.broadcaster.Unsubscribe(ctx, *msg.AuctionID, client.id); err != nil {
		return err
	}

	response := NewServerMessage(MessageTypeAuctionState)
	response.AuctionID = msg.AuctionID
	response.Data["status"] = "left"
	return client.Send(response)
}

func (handler *WsHandler) handlePlaceBid(client *WsClient, msg *ClientMessage) error {
	amount, err := msg.Amount()
	if err != nil {
		return err
	}

	ctx := context.Background()

	result, err := handler.bidService.PlaceBid(ctx, inbound.PlaceBidRequest{
		AuctionID: *msg.AuctionID,
		UserID:    client.userID,
		Amount:    amount,
	})
	if err != nil {
		// Rejections go to the sender only; accepted bids reach the
		// room through the broadcast.
		return client.Send(NewErrorMessage(err.Error(), msg.AuctionID))
	}

	handler.logger.Info().
		Str("auction_id", msg.AuctionID.String()).
		Str("user_id", client.userID.String()).
		Int64("amount", result.WinningPrice).
		Bool("closing", result.Closing).
		Msg("Bid accepted")
	return nil
}

func (handler *WsHandler) handleBuyNow(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	result, err := handler.bidService.BuyNow(ctx, inbound.BuyNowRequest{
		AuctionID: *msg.AuctionID,
		UserID:    client.userID,
	})
	if err != nil {
		return client.Send(NewErrorMessage(err.Error(), msg.AuctionID))
	}

	handler.logger.Info().
		Str("auction_id", msg.AuctionID.String()).
		Str("user_id", client.userID.String()).
		Int64("price", result.WinningPrice).
		Msg("Buy-now accepted")
	return nil
}

func (handler *WsHandler) handleGetAuction(client *WsClient, msg *ClientMessage) error {
	ctx := context.Background()

	a, err := handler.auctionService.GetAuction(ctx, *msg.AuctionID)
	if err != nil {
		return client.Send(NewErrorMessage(err.Error(), msg.AuctionID))
	}

	remaining, err := handler.auctionService.RemainingTime(ctx, *msg.AuctionID)
	if err != nil {
		remaining = 0
	}

	return client.Send(NewAuctionStateMessage(a, remaining, MessageTypeAuctionState))
}

// GetConnectedClients returns the number of connected clients
func (handler *WsHandler) GetConnectedClients() int {
	handler.clientsMu.RLock()
	defer handler.clientsMu.RUnlock()
	return len(handler.clients)
}
