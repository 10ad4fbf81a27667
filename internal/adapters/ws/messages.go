package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"voltbid-auction-service/internal/domain/auction"
	"voltbid-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

type MessageType string

const (
	// Client to Server message types
	MessageTypeJoin       MessageType = "join"
	MessageTypeLeave      MessageType = "leave"
	MessageTypePlaceBid   MessageType = "place_bid"
	MessageTypeBuyNow     MessageType = "buy_now"
	MessageTypeGetAuction MessageType = "get_auction"
	MessageTypePing       MessageType = "ping"

	// Server to Client message types
	MessageTypeJoined        MessageType = "joined"
	MessageTypeUserJoined    MessageType = "user_joined"
	MessageTypeBidUpdate     MessageType = "bid_update"
	MessageTypeTimeUpdate    MessageType = "time_update"
	MessageTypeAuctionClosed MessageType = "auction_closed"
	MessageTypeAuctionState  MessageType = "auction_state"
	MessageTypeError         MessageType = "error"
	MessageTypePong          MessageType = "pong"
)

// ClientMessage represents a message sent from client to server
type ClientMessage struct {
	Type      MessageType            `json:"type"`
	AuctionID *uuid.UUID             `json:"auction_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// ServerMessage represents a message sent from server to client
type ServerMessage struct {
	Type      MessageType            `json:"type"`
	AuctionID *uuid.UUID             `json:"auction_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Error     *string                `json:"error,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

func NewServerMessage(msgType MessageType) *ServerMessage {
	return &ServerMessage{
		Type:      msgType,
		Data:      make(map[string]interface{}),
		Timestamp: time.Now().Unix(),
	}
}

func NewErrorMessage(err string, auctionID *uuid.UUID) *ServerMessage {
	return &ServerMessage{
		Type:      MessageTypeError,
		AuctionID: auctionID,
		Error:     &err,
		Timestamp: time.Now().Unix(),
	}
}

// NewAuctionStateMessage flattens an auction into a response payload
func NewAuctionStateMessage(a *auction.Auction, remaining int64, msgType MessageType) *ServerMessage {
	msg := NewServerMessage(msgType)
	msg.AuctionID = &a.ID
	msg.Data["product_id"] = a.ProductID.String()
	msg.Data["seller_id"] = a.SellerID.String()
	msg.Data["starting_price"] = a.StartingPrice
	msg.Data["target_price"] = a.TargetPrice
	msg.Data["step"] = a.Step
	msg.Data["deposit"] = a.Deposit
	msg.Data["current_price"] = a.CurrentPrice()
	msg.Data["status"] = string(a.Status)
	msg.Data["remaining_seconds"] = remaining
	if a.WinnerID != nil {
		msg.Data["winner_id"] = a.WinnerID.String()
	}
	return msg
}

// ParseClientMessage parses a JSON message from client
func ParseClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse client message: %w", err)
	}

	if msg.Type == "" {
		return nil, shared.ErrMessageTypeRequired
	}

	return &msg, nil
}

func (m *ClientMessage) validateAuctionID() error {
	if m.AuctionID == nil || *m.AuctionID == uuid.Nil {
		return shared.ErrAuctionIDRequired
	}
	return nil
}

// Amount extracts the bid amount as an integer currency unit
func (m *ClientMessage) Amount() (int64, error) {
	raw, ok := m.Data["amount"].(float64)
	if !ok || raw <= 0 || raw != float64(int64(raw)) {
		return 0, shared.ErrInvalidAmount
	}
	return int64(raw), nil
}

// Validate validates a client message
func (m *ClientMessage) Validate() error {
	switch m.Type {
	case MessageTypeJoin, MessageTypeLeave, MessageTypeBuyNow, MessageTypeGetAuction:
		return m.validateAuctionID()

	case MessageTypePlaceBid:
		if err := m.validateAuctionID(); err != nil {
			return err
		}
		_, err := m.Amount()
		return err

	case MessageTypePing:
		return nil

	default:
		return shared.ErrUnknownMessageType
	}
}
