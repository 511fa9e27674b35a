package server

import (
	"encoding/json"
	"time"

	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/history"
	"github.com/lox/cardroom/internal/lobby"
)

// Client → server event names.
const (
	evtAuthenticate      = "authenticate"
	evtJoinTable         = "joinTable"
	evtLeaveTable        = "leaveTable"
	evtStartHand         = "startHand"
	evtAction            = "action"
	evtChangeSeat        = "changeSeat"
	evtWatchTable        = "watchTable"
	evtUnwatchTable      = "unwatchTable"
	evtCreateUserTable   = "createUserTable"
	evtGetTables         = "getTables"
	evtSubscribeTables   = "subscribeTables"
	evtUnsubscribeTables = "unsubscribeTables"
	evtGetState          = "getState"
	evtGetHandHistory    = "getHandHistory"
)

// Server → client event names. Replies echo the request's event name; these
// are the push channels.
const (
	evtGameState      = "gameState"
	evtSpectatorState = "spectatorState"
	evtTableList      = "tableList"
	evtAuthError      = "authError"
	evtTableError     = "tableError"
)

// Message is the envelope every frame uses in both directions.
type Message struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage wraps a payload in an envelope.
func NewMessage(event string, data any) (*Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Message{Event: event, Data: raw}, nil
}

// Client → server payloads.

type authenticatePayload struct {
	Token string `json:"token"`
}

type joinTablePayload struct {
	TableID   string `json:"tableId"`
	BuyIn     int    `json:"buyIn"`
	SeatIndex *int   `json:"seatIndex,omitempty"`
}

// tablePayload serves the single-field events: leaveTable, startHand,
// watchTable, unwatchTable, getState and getHandHistory.
type tablePayload struct {
	TableID string `json:"tableId"`
}

type actionPayload struct {
	TableID string `json:"tableId"`
	// PlayerID is the claimed actor; when present it must match the
	// session's bound identity.
	PlayerID string `json:"playerId,omitempty"`
	Kind     string `json:"kind"`
	Amount   int    `json:"amount,omitempty"`
	// Timestamp is the client's send time. It is recorded nowhere; the
	// server's receipt clock is authoritative.
	Timestamp time.Time `json:"timestamp,omitzero"`
}

type changeSeatPayload struct {
	TableID      string `json:"tableId"`
	PlayerID     string `json:"playerId,omitempty"`
	NewSeatIndex int    `json:"newSeatIndex"`
}

type createUserTablePayload struct {
	Variant     string      `json:"variant"`
	StakeLabel  string      `json:"stakeLabel,omitempty"`
	Blinds      game.Blinds `json:"blinds"`
	BettingType string      `json:"bettingType,omitempty"`
}

// Server → client payloads.

// Reply answers one request. Failures carry a stable code; payload-bearing
// requests return their data on the same object.
type Reply struct {
	Success     bool             `json:"success"`
	Error       string           `json:"error,omitempty"`
	Code        string           `json:"code,omitempty"`
	Cause       string           `json:"cause,omitempty"`
	TableID     string           `json:"tableId,omitempty"`
	SeatIndex   *int             `json:"seatIndex,omitempty"`
	PlayerID    string           `json:"playerId,omitempty"`
	DisplayName string           `json:"displayName,omitempty"`
	Tables      []lobby.Summary  `json:"tables,omitempty"`
	State       *game.TableView  `json:"state,omitempty"`
	Hands       []history.Record `json:"hands,omitempty"`
}

type tableListPayload struct {
	Tables []lobby.Summary `json:"tables"`
}

type authErrorPayload struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type tableErrorPayload struct {
	TableID string `json:"tableId"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
