package game

import (
	"errors"
	"fmt"
	"time"

	"github.com/lox/cardroom/internal/deck"
	"github.com/lox/cardroom/internal/evaluator"
	"github.com/lox/cardroom/internal/history"
)

// Winner records one share of a settled pot. A player can appear twice in a
// hi-lo hand, once for the high half and once for the low.
type Winner struct {
	PlayerID string `json:"playerId"`
	Seat     int    `json:"seat"`
	Amount   int    `json:"amount"`
	Desc     string `json:"desc"`
	Low      bool   `json:"low,omitempty"`
}

// StartHand deals a new hand: purges unseatable players, advances the
// button, deals hole cards, posts antes and blinds and hands the action to
// the first seat to act. It fails with ErrNotEnoughPlayers when fewer than
// two seats remain after the purge.
func (t *Table) StartHand(now time.Time) (err error) {
	defer t.recoverDeal(&err)

	if t.Stage.betting() {
		return fmt.Errorf("table %s: hand %d still in progress", t.ID, t.HandNum)
	}

	t.purgeSeats()
	if len(t.Seats) < 2 {
		t.Stage = Waiting
		return ErrNotEnoughPlayers
	}

	t.HandNum++
	t.Winners = nil
	t.LastAction = nil
	t.Community = nil
	t.Pot = 0
	t.HighBet = 0
	t.LastRaise = 0
	t.Raises = 0
	t.revealed = false
	for _, s := range t.Seats {
		s.resetForHand()
	}

	if t.nextDeck != nil {
		t.deck = deck.Stacked(t.nextDeck)
		t.nextDeck = nil
	} else {
		t.deck = deck.New(t.Variant.DeckKind(), t.rng)
	}

	t.dealerPos = (t.dealerPos + 1) % len(t.Seats)

	per := t.Variant.HoleCards()
	for _, s := range t.Seats {
		s.HoleCards = t.mustDraw(per)
	}

	// Snapshot before any chips move: starting stacks are pre-blind.
	t.handStartTotal = 0
	starts := make([]history.SeatStart, len(t.Seats))
	for i, s := range t.Seats {
		t.handStartTotal += s.Stack
		starts[i] = history.SeatStart{
			PlayerID:  s.PlayerID,
			Name:      s.Name,
			SeatIndex: s.Index,
			Stack:     s.Stack,
			HoleCards: append([]deck.Card(nil), s.HoleCards...),
		}
	}
	t.log.StartHand(t.HandNum, now, t.dealerPos, starts)

	// Courchevel turns the first board card before the preflop round.
	if t.Variant == Courchevel {
		t.Community = t.mustDraw(1)
	}

	t.Stage = Preflop
	t.postAntes()
	sbPos, bbPos := t.blindPositions()
	t.postBlind(t.Seats[sbPos], t.Blinds.Small)
	t.postBlind(t.Seats[bbPos], t.Blinds.Big)
	t.HighBet = t.Blinds.Big
	t.LastRaise = t.Blinds.Big
	t.LastActionAt = now

	t.activePos = t.nextActor(bbPos)
	if t.activePos == -1 {
		// Blinds left nobody with a decision; run the board out.
		t.runOut()
		t.showdown()
	}
	return nil
}

// blindPositions returns the small and big blind positions for this hand.
// Heads-up the dealer posts the small blind and acts first preflop.
func (t *Table) blindPositions() (sb, bb int) {
	n := len(t.Seats)
	if n == 2 {
		return t.dealerPos, (t.dealerPos + 1) % n
	}
	return (t.dealerPos + 1) % n, (t.dealerPos + 2) % n
}

// postAntes collects the ante from every seat as dead money: it counts
// toward the pot and the hand total but not the seat's round bet.
func (t *Table) postAntes() {
	if t.Blinds.Ante <= 0 {
		return
	}
	for _, s := range t.Seats {
		pay := min(t.Blinds.Ante, s.Stack)
		s.Stack -= pay
		s.HandBet += pay
		t.Pot += pay
		if s.Stack == 0 {
			s.AllIn = true
		}
	}
}

// postBlind puts up a forced bet, short when the stack cannot cover it.
// Blinds do not count as acting; the poster keeps its turn rights.
func (t *Table) postBlind(s *Seat, amount int) {
	t.pay(s, min(amount, s.Stack))
}

// mustDraw draws from the live deck. Deck sizes are checked against seat
// counts at table construction, so exhaustion is a programming error.
func (t *Table) mustDraw(n int) []deck.Card {
	cards, err := t.deck.Draw(n)
	if err != nil {
		panic(fmt.Errorf("table %s hand %d: %w", t.ID, t.HandNum, err))
	}
	return cards
}

// recoverDeal turns a deck exhaustion panic raised mid-deal into an aborted
// hand, refunding every contribution. Other panics propagate.
func (t *Table) recoverDeal(err *error) {
	r := recover()
	if r == nil {
		return
	}
	cause, ok := r.(error)
	if !ok || !errors.Is(cause, deck.ErrExhausted) {
		panic(r)
	}
	*err = t.abortHand(cause)
}

// boardTarget is the community card count once the stage's deal completes.
func boardTarget(s Stage) int {
	switch s {
	case Flop:
		return 3
	case Turn:
		return 4
	case River:
		return 5
	}
	return 0
}

// finishRound closes a completed betting round: on to the next street, or
// straight to showdown after the river, or a full runout when at most one
// seat can still act.
func (t *Table) finishRound() {
	if t.actorCount() <= 1 {
		t.runOut()
		t.showdown()
		return
	}
	if t.Stage == River {
		t.showdown()
		return
	}
	t.advanceStage()
}

// advanceStage deals the next street and resets the betting round. The
// first seat to act is the first live actor clockwise from the dealer.
func (t *Table) advanceStage() {
	t.Stage++
	t.Community = append(t.Community, t.mustDraw(boardTarget(t.Stage)-len(t.Community))...)

	t.HighBet = 0
	t.LastRaise = 0
	t.Raises = 0
	for _, s := range t.Seats {
		s.RoundBet = 0
		if s.canAct() {
			s.HasActed = false
		}
	}

	t.activePos = t.nextActor(t.dealerPos)
	if t.activePos == -1 {
		t.runOut()
		t.showdown()
	}
}

// runOut deals the remaining streets with no betting.
func (t *Table) runOut() {
	for _, stage := range []Stage{Flop, Turn, River} {
		if t.Stage >= stage {
			continue
		}
		t.Stage = stage
		t.Community = append(t.Community, t.mustDraw(boardTarget(stage)-len(t.Community))...)
	}
}

// finishUncontested awards the whole pot to the last live seat without
// revealing any cards.
func (t *Table) finishUncontested() {
	var winner *Seat
	for _, s := range t.Seats {
		if s.live() {
			winner = s
			break
		}
	}
	amount := t.Pot
	winner.Stack += amount
	t.Pot = 0
	t.Stage = Showdown
	t.activePos = -1
	t.Winners = []Winner{{
		PlayerID: winner.PlayerID,
		Seat:     winner.Index,
		Amount:   amount,
		Desc:     "Uncontested",
	}}
	t.endHand()
}

// showdown evaluates every live hand, partitions the pot into layers and
// pays each layer to its best eligible hand, splitting hi-lo pots between
// the high hand and the best qualifying low.
func (t *Table) showdown() {
	t.Stage = Showdown
	t.activePos = -1
	t.revealed = true

	rules := t.Variant.EvalRules()
	values := make(map[int]evaluator.HandValue)
	lowValues := make(map[int]evaluator.LowValue)
	for pos, s := range t.Seats {
		if !s.live() {
			continue
		}
		values[pos] = evaluator.Best(s.HoleCards, t.Community, rules)
		if t.Variant.HiLo() {
			if low, ok := evaluator.Low(s.HoleCards, t.Community, rules); ok {
				lowValues[pos] = low
			}
		}
	}

	type shareKey struct {
		pos int
		low bool
	}
	shares := make(map[shareKey]*Winner)
	var order []shareKey
	credit := func(pos, amount int, desc string, low bool) {
		key := shareKey{pos, low}
		w, ok := shares[key]
		if !ok {
			s := t.Seats[pos]
			w = &Winner{PlayerID: s.PlayerID, Seat: s.Index, Desc: desc, Low: low}
			shares[key] = w
			order = append(order, key)
		}
		w.Amount += amount
		t.Seats[pos].Stack += amount
	}

	for _, pot := range t.buildPots() {
		high := bestPositions(pot.Eligible, values)
		if t.Variant.HiLo() {
			lowWin := bestLowPositions(pot.Eligible, lowValues)
			if len(lowWin) > 0 {
				lowHalf := pot.Amount / 2
				t.payShare(pot.Amount-lowHalf, high, func(pos int) string { return values[pos].Desc }, false, credit)
				t.payShare(lowHalf, lowWin, func(pos int) string { return lowValues[pos].String() }, true, credit)
				continue
			}
		}
		t.payShare(pot.Amount, high, func(pos int) string { return values[pos].Desc }, false, credit)
	}
	t.Pot = 0

	t.Winners = make([]Winner, 0, len(order))
	for _, key := range order {
		t.Winners = append(t.Winners, *shares[key])
	}
	t.endHand()
}

// payShare splits an amount between winning positions, the odd chips going
// to the first winner clockwise from the dealer.
func (t *Table) payShare(amount int, positions []int, desc func(int) string, low bool, credit func(pos, amount int, desc string, low bool)) {
	if amount == 0 || len(positions) == 0 {
		return
	}
	share := amount / len(positions)
	first := t.firstClockwise(positions)
	for _, pos := range positions {
		part := share
		if pos == first {
			part += amount % len(positions)
		}
		credit(pos, part, desc(pos), low)
	}
}

// firstClockwise picks the position reached first going clockwise from the
// seat after the dealer.
func (t *Table) firstClockwise(positions []int) int {
	n := len(t.Seats)
	for i := 1; i <= n; i++ {
		p := (t.dealerPos + i) % n
		for _, pos := range positions {
			if pos == p {
				return pos
			}
		}
	}
	return positions[0]
}

// bestPositions returns the positions holding the strongest high hand.
func bestPositions(eligible []int, values map[int]evaluator.HandValue) []int {
	var best []int
	for _, pos := range eligible {
		v, ok := values[pos]
		if !ok {
			continue
		}
		switch {
		case len(best) == 0 || v.Score > values[best[0]].Score:
			best = []int{pos}
		case v.Score == values[best[0]].Score:
			best = append(best, pos)
		}
	}
	return best
}

// bestLowPositions returns the positions holding the best qualifying low,
// or nothing when no eligible seat qualifies.
func bestLowPositions(eligible []int, lows map[int]evaluator.LowValue) []int {
	var best []int
	for _, pos := range eligible {
		v, ok := lows[pos]
		if !ok {
			continue
		}
		switch {
		case len(best) == 0 || v.Score < lows[best[0]].Score:
			best = []int{pos}
		case v.Score == lows[best[0]].Score:
			best = append(best, pos)
		}
	}
	return best
}

// endHand writes the hand record, snapshots per-player contributions and
// purges seats that cannot play on. The table stays in showdown until the
// next hand starts.
func (t *Table) endHand() {
	total := 0
	winners := make([]history.Winner, len(t.Winners))
	for i, w := range t.Winners {
		total += w.Amount
		winners[i] = history.Winner{PlayerID: w.PlayerID, Amount: w.Amount, Desc: w.Desc}
	}
	finals := make(map[string]int, len(t.Seats))
	for _, s := range t.Seats {
		finals[s.PlayerID] = s.Stack
	}
	t.log.EndHand(t.LastActionAt, append([]deck.Card(nil), t.Community...), total, winners, finals)

	t.Contributions = make(map[string]int, len(t.Seats))
	for _, s := range t.Seats {
		if s.inHand() && s.HandBet > 0 {
			t.Contributions[s.PlayerID] = s.HandBet
		}
	}
	t.purgeSeats()
}

// purgeSeats drops seats that cannot play the next hand: busted stacks and
// disconnected players.
func (t *Table) purgeSeats() {
	for pos := len(t.Seats) - 1; pos >= 0; pos-- {
		s := t.Seats[pos]
		if !s.Connected || s.Stack == 0 {
			t.removeSeatAt(pos)
		}
	}
}
