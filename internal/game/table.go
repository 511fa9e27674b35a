package game

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/lox/cardroom/internal/deck"
	"github.com/lox/cardroom/internal/history"
	"github.com/lox/cardroom/internal/randutil"
)

// Stage is the phase a table is in. It only moves forward during a hand.
type Stage int

const (
	Waiting Stage = iota
	Preflop
	Flop
	Turn
	River
	Showdown
)

// String returns the wire name of the stage.
func (s Stage) String() string {
	return [...]string{"waiting", "preflop", "flop", "turn", "river", "showdown"}[s]
}

// MarshalJSON encodes the stage as its wire name.
func (s Stage) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a stage from its wire name.
func (s *Stage) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for i, n := range [...]string{"waiting", "preflop", "flop", "turn", "river", "showdown"} {
		if n == name {
			*s = Stage(i)
			return nil
		}
	}
	return fmt.Errorf("unknown stage %q", name)
}

// betting reports whether the stage is a betting round.
func (s Stage) betting() bool {
	return s >= Preflop && s <= River
}

// TurnTimeout is how long a seat has to act before the table applies an
// implicit check or fold.
const TurnTimeout = 30 * time.Second

// maxRaisesPerRound caps the raises of each betting round. All-ins are
// exempt.
const maxRaisesPerRound = 4

// Table owns the authoritative state of one game. It is not safe for
// concurrent use; every call must come through the table's serial queue.
type Table struct {
	ID       string
	Variant  Variant
	Betting  BettingType
	Blinds   Blinds
	Stake    string
	System   bool
	MaxSeats int

	Stage Stage
	// Seats holds the occupied seats ordered by Index. Positions in this
	// slice drive rotation; Seat.Index is the persistent address clients
	// see.
	Seats     []*Seat
	Community []deck.Card
	Pot       int
	// HighBet is the highest RoundBet this street; LastRaise the size of
	// the last legal raise increment (drives the min-raise).
	HighBet   int
	LastRaise int
	Raises    int
	HandNum   int

	Winners      []Winner
	LastAction   *Action
	LastActionAt time.Time

	dealerPos int // position in Seats, not a Seat.Index
	activePos int // position in Seats; -1 when nobody is to act

	// revealed marks a contested showdown, where unfolded hole cards are
	// shown to everyone. An uncontested win reveals nothing.
	revealed bool

	deck     *deck.Deck
	nextDeck []deck.Card
	rng      randutil.Source
	log      *history.Log

	// handStartTotal is the chip sum of dealt-in seats at the deal, used
	// to detect conservation violations after every apply.
	handStartTotal int

	// departed collects seats dropped since the last TakeDeparted call so
	// the caller can settle their chips.
	departed []Departure

	// Contributions holds each player's total chips put in during the last
	// completed hand, captured before the end-of-hand purge.
	Contributions map[string]int
}

// Departure is a seat that left the table and the chips it took along.
type Departure struct {
	PlayerID string
	Stack    int
}

// Option configures a new table.
type Option func(*Table)

// WithRand sets the shuffle source, letting tests deal deterministically.
func WithRand(src randutil.Source) Option {
	return func(t *Table) { t.rng = src }
}

// WithDeck stacks the next hand's deck with exact cards, in deal order.
// Only the next StartHand uses it; later hands shuffle normally.
func WithDeck(cards ...deck.Card) Option {
	return func(t *Table) { t.nextDeck = cards }
}

// WithHistoryCapacity bounds the hand history ring.
func WithHistoryCapacity(n int) Option {
	return func(t *Table) { t.log = history.NewLog(n) }
}

// NewTable creates an empty table in the waiting stage.
func NewTable(id string, variant Variant, betting BettingType, blinds Blinds, stake string, system bool, opts ...Option) *Table {
	t := &Table{
		ID:        id,
		Variant:   variant,
		Betting:   betting,
		Blinds:    blinds,
		Stake:     stake,
		System:    system,
		MaxSeats:  variant.MaxSeats(),
		Stage:     Waiting,
		dealerPos: -1,
		activePos: -1,
		log:       history.NewLog(history.DefaultCapacity),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// History exposes the table's hand history log.
func (t *Table) History() *history.Log {
	return t.log
}

// SeatOf returns the seat occupied by the player, or nil.
func (t *Table) SeatOf(playerID string) *Seat {
	for _, s := range t.Seats {
		if s.PlayerID == playerID {
			return s
		}
	}
	return nil
}

// ConnectedSeats counts seats whose session is attached.
func (t *Table) ConnectedSeats() int {
	n := 0
	for _, s := range t.Seats {
		if s.Connected {
			n++
		}
	}
	return n
}

// AddSeat seats a player with the given buy-in. A disconnected existing seat
// re-attaches instead, preserving index, stack and cards. If the wanted seat
// index is taken the lowest free one is used. Reaching two connected seats
// while waiting starts a hand automatically.
func (t *Table) AddSeat(playerID, name string, buyIn, wantSeat int, now time.Time) (int, error) {
	if existing := t.SeatOf(playerID); existing != nil {
		if existing.Connected {
			return 0, ErrAlreadySeated
		}
		existing.Connected = true
		t.maybeAutoStart(now)
		return existing.Index, nil
	}

	if len(t.Seats) >= t.MaxSeats {
		return 0, ErrTableFull
	}

	index := t.assignIndex(wantSeat)
	seat := &Seat{
		PlayerID:  playerID,
		Name:      name,
		Index:     index,
		Stack:     buyIn,
		Connected: true,
	}
	t.insertSeat(seat)
	t.maybeAutoStart(now)
	return index, nil
}

// assignIndex picks the wanted seat index if free, else the lowest free one.
func (t *Table) assignIndex(want int) int {
	taken := make(map[int]bool, len(t.Seats))
	for _, s := range t.Seats {
		taken[s.Index] = true
	}
	if want >= 0 && want < t.MaxSeats && !taken[want] {
		return want
	}
	for i := 0; i < t.MaxSeats; i++ {
		if !taken[i] {
			return i
		}
	}
	return -1 // unreachable, capacity checked by caller
}

// insertSeat places the seat keeping Seats ordered by Index, adjusting the
// rotation positions so the dealer and active seats stay the same.
func (t *Table) insertSeat(seat *Seat) {
	pos := sort.Search(len(t.Seats), func(i int) bool {
		return t.Seats[i].Index > seat.Index
	})
	t.Seats = append(t.Seats, nil)
	copy(t.Seats[pos+1:], t.Seats[pos:])
	t.Seats[pos] = seat

	if t.dealerPos >= pos {
		t.dealerPos++
	}
	if t.activePos >= pos {
		t.activePos++
	}
}

// removeSeatAt drops the seat at the given position, adjusting rotation
// positions. The departure is recorded for TakeDeparted.
func (t *Table) removeSeatAt(pos int) {
	s := t.Seats[pos]
	t.departed = append(t.departed, Departure{PlayerID: s.PlayerID, Stack: s.Stack})
	t.Seats = append(t.Seats[:pos], t.Seats[pos+1:]...)
	if t.dealerPos > pos {
		t.dealerPos--
	} else if t.dealerPos == pos {
		// The departing dealer hands the button to the previous seat so
		// the next rotation lands on its natural successor.
		t.dealerPos--
		if t.dealerPos < 0 && len(t.Seats) > 0 {
			t.dealerPos = len(t.Seats) - 1
		}
	}
	if t.activePos > pos {
		t.activePos--
	} else if t.activePos == pos {
		t.activePos = -1
	}
}

// maybeAutoStart begins a hand once two connected seats are present while
// the table is waiting.
func (t *Table) maybeAutoStart(now time.Time) {
	if t.Stage == Waiting && t.ConnectedSeats() >= 2 {
		// Best effort: a failed start leaves the table waiting.
		_ = t.StartHand(now)
	}
}

// RemoveSeat takes a player off the table. Outside a hand the seat is
// dropped; mid-hand a dealt-in seat folds and is retained disconnected so
// its bets stay in the pot.
func (t *Table) RemoveSeat(playerID string) (err error) {
	defer t.recoverDeal(&err)

	for pos, s := range t.Seats {
		if s.PlayerID != playerID {
			continue
		}
		if t.Stage.betting() && s.inHand() {
			s.Folded = true
			s.Connected = false
			t.afterFoldRemoval(pos)
			return nil
		}
		t.removeSeatAt(pos)
		return nil
	}
	return ErrNotInHand
}

// afterFoldRemoval resolves the hand state after a mid-hand departure: the
// departing seat may have been the active one, or the last contender.
func (t *Table) afterFoldRemoval(pos int) {
	if t.liveCount() == 1 {
		t.finishUncontested()
		return
	}
	if t.activePos == pos {
		if t.bettingComplete() {
			t.finishRound()
		} else {
			t.activePos = t.nextActor(t.activePos)
		}
	}
}

// TakeDeparted returns the seats dropped since the last call and clears the
// list. Every removal lands here, whether requested or purged, so callers
// settle chips in exactly one place.
func (t *Table) TakeDeparted() []Departure {
	d := t.departed
	t.departed = nil
	return d
}

// MarkDisconnected flags a seat's session as gone without removing it.
func (t *Table) MarkDisconnected(playerID string) {
	if s := t.SeatOf(playerID); s != nil {
		s.Connected = false
	}
}

// ChangeSeat moves a player to another seat index between hands.
func (t *Table) ChangeSeat(playerID string, newIndex int) error {
	if t.Stage.betting() {
		return illegal("", "cannot change seats during a hand")
	}
	if newIndex < 0 || newIndex >= t.MaxSeats {
		return illegal("", "seat index %d out of range", newIndex)
	}
	seat := t.SeatOf(playerID)
	if seat == nil {
		return ErrNotInHand
	}
	for _, s := range t.Seats {
		if s != seat && s.Index == newIndex {
			return ErrSeatTaken
		}
	}

	var dealer *Seat
	if t.dealerPos >= 0 && t.dealerPos < len(t.Seats) {
		dealer = t.Seats[t.dealerPos]
	}
	seat.Index = newIndex
	sort.Slice(t.Seats, func(i, j int) bool {
		return t.Seats[i].Index < t.Seats[j].Index
	})
	if dealer != nil {
		for pos, s := range t.Seats {
			if s == dealer {
				t.dealerPos = pos
				break
			}
		}
	}
	return nil
}

// liveCount counts dealt-in seats that have not folded.
func (t *Table) liveCount() int {
	n := 0
	for _, s := range t.Seats {
		if s.live() {
			n++
		}
	}
	return n
}

// actorCount counts seats that can still take actions this hand.
func (t *Table) actorCount() int {
	n := 0
	for _, s := range t.Seats {
		if s.canAct() {
			n++
		}
	}
	return n
}

// nextActor returns the position of the next seat clockwise from pos that
// can act, or -1 when none can.
func (t *Table) nextActor(pos int) int {
	n := len(t.Seats)
	for i := 1; i <= n; i++ {
		p := (pos + i) % n
		if t.Seats[p].canAct() {
			return p
		}
	}
	return -1
}

// ActiveSeat returns the seat whose turn it is, or nil.
func (t *Table) ActiveSeat() *Seat {
	if t.activePos < 0 || t.activePos >= len(t.Seats) {
		return nil
	}
	return t.Seats[t.activePos]
}

// DealerIndex returns the persistent index of the dealer seat, or -1.
func (t *Table) DealerIndex() int {
	if t.dealerPos < 0 || t.dealerPos >= len(t.Seats) {
		return -1
	}
	return t.Seats[t.dealerPos].Index
}

// ActiveIndex returns the persistent index of the seat to act, or -1.
func (t *Table) ActiveIndex() int {
	if s := t.ActiveSeat(); s != nil {
		return s.Index
	}
	return -1
}

// checkIntegrity verifies chip conservation across the dealt-in seats. On
// violation the hand aborts: every contribution is refunded and the table
// resets to waiting.
func (t *Table) checkIntegrity() error {
	contributed, stacks := 0, 0
	for _, s := range t.Seats {
		if !s.inHand() {
			continue
		}
		contributed += s.HandBet
		stacks += s.Stack
	}
	if t.Pot != contributed {
		return t.abortHand(fmt.Errorf("pot %d != contributions %d: %w", t.Pot, contributed, ErrIntegrity))
	}
	if stacks+t.Pot != t.handStartTotal {
		return t.abortHand(fmt.Errorf("chips %d+%d != hand start %d: %w", stacks, t.Pot, t.handStartTotal, ErrIntegrity))
	}
	return nil
}

// abortHand refunds every dealt-in seat's contribution and resets to
// waiting.
func (t *Table) abortHand(cause error) error {
	for _, s := range t.Seats {
		if s.inHand() {
			s.Stack += s.HandBet
		}
		s.resetForHand()
	}
	t.Pot = 0
	t.Community = nil
	t.HighBet = 0
	t.LastRaise = 0
	t.Raises = 0
	t.Winners = nil
	t.activePos = -1
	t.revealed = false
	t.Stage = Waiting
	return cause
}
