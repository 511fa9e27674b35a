package game

import (
	"time"

	"github.com/lox/cardroom/internal/deck"
)

// SeatView is one seat as a viewer sees it. HoleCards is only present for
// the viewer's own seat, or for unfolded seats once a contested showdown
// reveals them.
type SeatView struct {
	Seat         int         `json:"seat"`
	PlayerID     string      `json:"playerId"`
	Name         string      `json:"name"`
	Stack        int         `json:"stack"`
	Folded       bool        `json:"folded"`
	AllIn        bool        `json:"isAllIn"`
	HasActed     bool        `json:"hasActed"`
	Connected    bool        `json:"isConnected"`
	RoundBet     int         `json:"currentRoundBet"`
	HandBet      int         `json:"totalBetThisHand"`
	HoleCards    []deck.Card `json:"holeCards,omitempty"`
	LastActionAt time.Time   `json:"lastActionAt,omitzero"`
}

// TableView is the table state as one viewer sees it.
type TableView struct {
	ID           string      `json:"tableId"`
	Variant      Variant     `json:"variant"`
	Betting      BettingType `json:"bettingType"`
	Blinds       Blinds      `json:"blinds"`
	Stake        string      `json:"stake"`
	System       bool        `json:"system"`
	MaxSeats     int         `json:"maxSeats"`
	Stage        Stage       `json:"stage"`
	Seats        []SeatView  `json:"seats"`
	Community    []deck.Card `json:"community"`
	Pot          int         `json:"pot"`
	HighBet      int         `json:"currentHighBet"`
	LastRaise    int         `json:"lastRaiseAmount"`
	Raises       int         `json:"raisesThisRound"`
	HandNum      int         `json:"handNumber"`
	Dealer       int         `json:"dealerIndex"`
	Active       int         `json:"activeSeatIndex"`
	LastAction   *Action     `json:"lastAction,omitempty"`
	LastActionAt time.Time   `json:"lastActionTimestamp,omitzero"`
	Winners      []Winner    `json:"winners,omitempty"`
}

// ViewFor projects the table for one viewer. Spectators pass an empty
// viewer id and see hole cards only at a contested showdown.
func (t *Table) ViewFor(viewerID string) TableView {
	seats := make([]SeatView, len(t.Seats))
	for i, s := range t.Seats {
		sv := SeatView{
			Seat:         s.Index,
			PlayerID:     s.PlayerID,
			Name:         s.Name,
			Stack:        s.Stack,
			Folded:       s.Folded,
			AllIn:        s.AllIn,
			HasActed:     s.HasActed,
			Connected:    s.Connected,
			RoundBet:     s.RoundBet,
			HandBet:      s.HandBet,
			LastActionAt: s.LastActionAt,
		}
		if s.inHand() && (s.PlayerID == viewerID || (t.revealed && !s.Folded)) {
			sv.HoleCards = append([]deck.Card(nil), s.HoleCards...)
		}
		seats[i] = sv
	}

	return TableView{
		ID:           t.ID,
		Variant:      t.Variant,
		Betting:      t.Betting,
		Blinds:       t.Blinds,
		Stake:        t.Stake,
		System:       t.System,
		MaxSeats:     t.MaxSeats,
		Stage:        t.Stage,
		Seats:        seats,
		Community:    append([]deck.Card{}, t.Community...),
		Pot:          t.Pot,
		HighBet:      t.HighBet,
		LastRaise:    t.LastRaise,
		Raises:       t.Raises,
		HandNum:      t.HandNum,
		Dealer:       t.DealerIndex(),
		Active:       t.ActiveIndex(),
		LastAction:   t.LastAction,
		LastActionAt: t.LastActionAt,
		Winners:      append([]Winner(nil), t.Winners...),
	}
}
