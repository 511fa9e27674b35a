package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/cardroom/internal/anticheat"
	"github.com/lox/cardroom/internal/auth"
	"github.com/lox/cardroom/internal/deck"
	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/history"
	"github.com/lox/cardroom/internal/lobby"
	"github.com/lox/cardroom/internal/metrics"
	"github.com/lox/cardroom/internal/phh"
	"github.com/lox/cardroom/internal/wallet"
)

const (
	// graceTimeout is how long a disconnected seat is held before it is
	// removed and its chips are returned.
	graceTimeout = 30 * time.Second

	// nextHandDelay is the pause between a showdown and the next deal.
	nextHandDelay = 5 * time.Second

	// walletAttempts bounds credit retries before the failure is logged
	// for reconciliation.
	walletAttempts = 3
)

// Coordinator routes client requests to rooms and owns everything that
// spans tables: the lobby, wallet settlement, anti-cheat checks and the
// lobby subscription list.
type Coordinator struct {
	logger   *log.Logger
	lobby    *lobby.Lobby
	resolver auth.Resolver
	wallet   wallet.Adapter
	checker  *anticheat.Validator
	metrics  *metrics.Metrics
	clock    quartz.Clock
	archiver *phh.Archiver

	ctx context.Context

	mu        sync.RWMutex
	rooms     map[string]*room
	lobbySubs map[*session]bool
}

// Option configures optional coordinator collaborators.
type Option func(*Coordinator)

// WithArchiver queues every finished hand for the PHH writer.
func WithArchiver(a *phh.Archiver) Option {
	return func(c *Coordinator) { c.archiver = a }
}

func NewCoordinator(lby *lobby.Lobby, resolver auth.Resolver, w wallet.Adapter, checker *anticheat.Validator, m *metrics.Metrics, clock quartz.Clock, logger *log.Logger, opts ...Option) *Coordinator {
	if clock == nil {
		clock = quartz.NewReal()
	}
	c := &Coordinator{
		logger:    logger.WithPrefix("coordinator"),
		lobby:     lby,
		resolver:  resolver,
		wallet:    w,
		checker:   checker,
		metrics:   m,
		clock:     clock,
		rooms:     make(map[string]*room),
		lobbySubs: make(map[*session]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start provisions the configured system tables and opens a room for each.
func (c *Coordinator) Start(ctx context.Context, defs []lobby.StakeDef) {
	c.ctx = ctx
	for _, tbl := range c.lobby.Bootstrap(defs) {
		c.openRoom(tbl)
	}
	c.updateTableGauge(c.lobby.Summaries())
}

func (c *Coordinator) openRoom(tbl *game.Table) *room {
	r := newRoom(c.ctx, tbl, c.logger)
	c.mu.Lock()
	c.rooms[r.id] = r
	c.mu.Unlock()
	go r.run()
	c.logger.Info("table open", "table", r.id, "variant", tbl.Variant, "stake", tbl.Stake)
	return r
}

func (c *Coordinator) room(id string) *room {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rooms[id]
}

// dispatch routes one request from a session's read pump.
func (c *Coordinator) dispatch(s *session, msg *Message) {
	switch msg.Event {
	case evtAuthenticate:
		c.handleAuthenticate(s, msg)
	case evtJoinTable:
		c.handleJoinTable(s, msg)
	case evtLeaveTable:
		c.handleLeaveTable(s, msg)
	case evtStartHand:
		c.handleStartHand(s, msg)
	case evtAction:
		c.handleAction(s, msg)
	case evtChangeSeat:
		c.handleChangeSeat(s, msg)
	case evtWatchTable:
		c.handleWatchTable(s, msg)
	case evtUnwatchTable:
		c.handleUnwatchTable(s, msg)
	case evtCreateUserTable:
		c.handleCreateUserTable(s, msg)
	case evtGetTables:
		c.handleGetTables(s, msg)
	case evtSubscribeTables:
		c.handleSubscribeTables(s, msg)
	case evtUnsubscribeTables:
		c.handleUnsubscribeTables(s, msg)
	case evtGetState:
		c.handleGetState(s, msg)
	case evtGetHandHistory:
		c.handleGetHandHistory(s, msg)
	default:
		c.fail(s, msg, fmt.Errorf("unknown event %q", msg.Event))
	}
}

// fail answers a request with an error reply and counts it.
func (c *Coordinator) fail(s *session, req *Message, err error) {
	code, cause := codeFor(err)
	c.metrics.ErrorsTotal.WithLabelValues(code).Inc()
	s.reply(req, Reply{Success: false, Error: err.Error(), Code: code, Cause: cause})
}

func (c *Coordinator) handleAuthenticate(s *session, req *Message) {
	var p authenticatePayload
	if err := json.Unmarshal(req.Data, &p); err != nil {
		c.fail(s, req, err)
		return
	}
	if ident := s.getIdentity(); ident != nil {
		s.reply(req, Reply{Success: true, PlayerID: ident.ID, DisplayName: ident.DisplayName})
		return
	}
	ident, err := c.resolver.Resolve(c.ctx, p.Token)
	if err != nil {
		s.sendEvent(evtAuthError, authErrorPayload{Error: err.Error(), Code: CodeNotAuthenticated})
		c.metrics.ErrorsTotal.WithLabelValues(CodeNotAuthenticated).Inc()
		s.reply(req, Reply{Success: false, Error: err.Error(), Code: CodeNotAuthenticated})
		return
	}
	if ident == nil {
		c.fail(s, req, errNotAuthenticated)
		return
	}
	if !s.bindIdentity(ident) {
		bound := s.getIdentity()
		s.reply(req, Reply{Success: true, PlayerID: bound.ID, DisplayName: bound.DisplayName})
		return
	}
	s.logger.Info("session authenticated", "player", ident.ID)
	s.reply(req, Reply{Success: true, PlayerID: ident.ID, DisplayName: ident.DisplayName})
}

func (c *Coordinator) handleJoinTable(s *session, req *Message) {
	ident := s.getIdentity()
	if ident == nil {
		c.fail(s, req, errNotAuthenticated)
		return
	}
	var p joinTablePayload
	if err := json.Unmarshal(req.Data, &p); err != nil {
		c.fail(s, req, err)
		return
	}
	r := c.room(p.TableID)
	if r == nil {
		c.fail(s, req, errTableNotFound)
		return
	}

	// A player with a seat here is re-attaching and pays no fresh buy-in.
	reattach := false
	r.do(func(t *game.Table) {
		reattach = t.SeatOf(ident.ID) != nil
	})

	if !reattach {
		if p.BuyIn <= 0 {
			c.fail(s, req, errors.New("buy-in must be positive"))
			return
		}
		if err := c.wallet.Reserve(c.ctx, ident.ID, p.BuyIn); err != nil {
			c.fail(s, req, err)
			return
		}
	}

	want := -1
	if p.SeatIndex != nil {
		want = *p.SeatIndex
	}

	var (
		joined      int
		joinErr     error
		usedReserve bool
	)
	r.do(func(t *game.Table) {
		fresh := t.SeatOf(ident.ID) == nil
		if fresh && reattach {
			// The seat vanished between the peek and now, and no
			// reserve was taken for it.
			joinErr = errSeatVanished
			return
		}
		joined, joinErr = t.AddSeat(ident.ID, ident.DisplayName, p.BuyIn, want, c.clock.Now())
		if joinErr != nil {
			return
		}
		usedReserve = fresh
		c.attachSession(r, ident.ID, s)
		c.postCommit(r, t)
	})

	if joinErr != nil {
		if !reattach {
			go c.credit(p.TableID, ident.ID, p.BuyIn)
		}
		c.fail(s, req, joinErr)
		return
	}
	if !reattach && !usedReserve {
		// The peek missed an existing seat; the join re-attached and
		// consumed nothing.
		go c.credit(p.TableID, ident.ID, p.BuyIn)
	}

	// Keep a free system table of this class on offer.
	if tbl := c.lobby.Replenish(r.table.Variant, r.table.Stake); tbl != nil {
		c.openRoom(tbl)
		c.broadcastTableList()
	}

	s.logger.Info("player seated", "table", p.TableID, "player", ident.ID, "seat", joined)
	si := joined
	s.reply(req, Reply{Success: true, TableID: p.TableID, SeatIndex: &si})
}

func (c *Coordinator) handleLeaveTable(s *session, req *Message) {
	ident := s.getIdentity()
	if ident == nil {
		c.fail(s, req, errNotAuthenticated)
		return
	}
	var p tablePayload
	if err := json.Unmarshal(req.Data, &p); err != nil {
		c.fail(s, req, err)
		return
	}
	r := c.room(p.TableID)
	if r == nil {
		c.fail(s, req, errTableNotFound)
		return
	}

	var leaveErr error
	r.do(func(t *game.Table) {
		leaveErr = t.RemoveSeat(ident.ID)
		if leaveErr != nil {
			return
		}
		c.postCommit(r, t)
	})
	if leaveErr != nil {
		c.fail(s, req, leaveErr)
		return
	}
	s.reply(req, Reply{Success: true, TableID: p.TableID})
}

func (c *Coordinator) handleStartHand(s *session, req *Message) {
	ident := s.getIdentity()
	if ident == nil {
		c.fail(s, req, errNotAuthenticated)
		return
	}
	var p tablePayload
	if err := json.Unmarshal(req.Data, &p); err != nil {
		c.fail(s, req, err)
		return
	}
	r := c.room(p.TableID)
	if r == nil {
		c.fail(s, req, errTableNotFound)
		return
	}

	var startErr error
	r.do(func(t *game.Table) {
		if t.SeatOf(ident.ID) == nil {
			startErr = game.ErrNotInHand
			return
		}
		startErr = t.StartHand(c.clock.Now())
		// An aborted deal refunded chips; push state either way.
		c.postCommit(r, t)
	})
	if startErr != nil {
		c.fail(s, req, startErr)
		return
	}
	s.reply(req, Reply{Success: true, TableID: p.TableID})
}

func (c *Coordinator) handleAction(s *session, req *Message) {
	ident := s.getIdentity()
	if ident == nil {
		c.fail(s, req, errNotAuthenticated)
		return
	}
	var p actionPayload
	if err := json.Unmarshal(req.Data, &p); err != nil {
		c.fail(s, req, err)
		return
	}
	if p.PlayerID != "" && p.PlayerID != ident.ID {
		c.fail(s, req, errUnauthorized)
		return
	}
	r := c.room(p.TableID)
	if r == nil {
		c.fail(s, req, errTableNotFound)
		return
	}

	now := c.clock.Now()
	// Every attempt counts against the rate budget, legal or not.
	if err := c.checker.Check(ident.ID, p.TableID, now); err != nil {
		c.fail(s, req, err)
		return
	}

	a := game.Action{PlayerID: ident.ID, Kind: game.ActionKind(p.Kind), Amount: p.Amount, At: now}
	var applyErr error
	r.do(func(t *game.Table) {
		// An action from a seat we thought disconnected re-attaches the
		// session and cancels its grace timer.
		if seat := t.SeatOf(ident.ID); seat != nil && r.seated[ident.ID] != s {
			c.attachSession(r, ident.ID, s)
			if !seat.Connected {
				_, _ = t.AddSeat(ident.ID, ident.DisplayName, 0, -1, now)
			}
		}
		applyErr = t.ApplyAction(a)
		if applyErr != nil {
			if errors.Is(applyErr, game.ErrIntegrity) || errors.Is(applyErr, deck.ErrExhausted) {
				c.broadcastTableError(r, applyErr)
				c.postCommit(r, t)
			}
			return
		}
		c.postCommit(r, t)
	})
	if applyErr != nil {
		c.fail(s, req, applyErr)
		return
	}
	c.metrics.ActionsTotal.WithLabelValues(string(a.Kind)).Inc()
	s.reply(req, Reply{Success: true, TableID: p.TableID})
}

func (c *Coordinator) handleChangeSeat(s *session, req *Message) {
	ident := s.getIdentity()
	if ident == nil {
		c.fail(s, req, errNotAuthenticated)
		return
	}
	var p changeSeatPayload
	if err := json.Unmarshal(req.Data, &p); err != nil {
		c.fail(s, req, err)
		return
	}
	if p.PlayerID != "" && p.PlayerID != ident.ID {
		c.fail(s, req, errUnauthorized)
		return
	}
	r := c.room(p.TableID)
	if r == nil {
		c.fail(s, req, errTableNotFound)
		return
	}

	var chErr error
	r.do(func(t *game.Table) {
		chErr = t.ChangeSeat(ident.ID, p.NewSeatIndex)
		if chErr != nil {
			return
		}
		c.postCommit(r, t)
	})
	if chErr != nil {
		c.fail(s, req, chErr)
		return
	}
	si := p.NewSeatIndex
	s.reply(req, Reply{Success: true, TableID: p.TableID, SeatIndex: &si})
}

func (c *Coordinator) handleWatchTable(s *session, req *Message) {
	var p tablePayload
	if err := json.Unmarshal(req.Data, &p); err != nil {
		c.fail(s, req, err)
		return
	}
	r := c.room(p.TableID)
	if r == nil {
		c.fail(s, req, errTableNotFound)
		return
	}
	r.do(func(t *game.Table) {
		r.watchers[s] = true
		s.addWatch(p.TableID)
		s.sendEvent(evtSpectatorState, t.ViewFor(""))
	})
	s.reply(req, Reply{Success: true, TableID: p.TableID})
}

func (c *Coordinator) handleUnwatchTable(s *session, req *Message) {
	var p tablePayload
	if err := json.Unmarshal(req.Data, &p); err != nil {
		c.fail(s, req, err)
		return
	}
	r := c.room(p.TableID)
	if r == nil {
		c.fail(s, req, errTableNotFound)
		return
	}
	r.do(func(t *game.Table) {
		delete(r.watchers, s)
	})
	s.removeWatch(p.TableID)
	s.reply(req, Reply{Success: true, TableID: p.TableID})
}

func (c *Coordinator) handleCreateUserTable(s *session, req *Message) {
	ident := s.getIdentity()
	if ident == nil {
		c.fail(s, req, errNotAuthenticated)
		return
	}
	var p createUserTablePayload
	if err := json.Unmarshal(req.Data, &p); err != nil {
		c.fail(s, req, err)
		return
	}
	variant, err := game.ParseVariant(p.Variant)
	if err != nil {
		c.fail(s, req, err)
		return
	}
	betting := game.NoLimit
	if p.BettingType != "" {
		betting, err = game.ParseBettingType(p.BettingType)
		if err != nil {
			c.fail(s, req, err)
			return
		}
	}
	if p.Blinds.Small <= 0 || p.Blinds.Big < p.Blinds.Small || p.Blinds.Ante < 0 {
		c.fail(s, req, errors.New("invalid blinds"))
		return
	}
	label := p.StakeLabel
	if label == "" {
		label = fmt.Sprintf("%d/%d", p.Blinds.Small, p.Blinds.Big)
	}

	tbl := c.lobby.CreateUserTable(variant, betting, label, p.Blinds)
	c.openRoom(tbl)
	c.broadcastTableList()
	s.logger.Info("user table created", "table", tbl.ID, "player", ident.ID, "variant", variant)
	s.reply(req, Reply{Success: true, TableID: tbl.ID})
}

func (c *Coordinator) handleGetTables(s *session, req *Message) {
	s.reply(req, Reply{Success: true, Tables: c.lobby.Summaries()})
}

func (c *Coordinator) handleSubscribeTables(s *session, req *Message) {
	c.mu.Lock()
	c.lobbySubs[s] = true
	c.mu.Unlock()
	s.setLobbySub(true)
	s.sendEvent(evtTableList, tableListPayload{Tables: c.lobby.Summaries()})
	s.reply(req, Reply{Success: true})
}

func (c *Coordinator) handleUnsubscribeTables(s *session, req *Message) {
	c.mu.Lock()
	delete(c.lobbySubs, s)
	c.mu.Unlock()
	s.setLobbySub(false)
	s.reply(req, Reply{Success: true})
}

func (c *Coordinator) handleGetState(s *session, req *Message) {
	var p tablePayload
	if err := json.Unmarshal(req.Data, &p); err != nil {
		c.fail(s, req, err)
		return
	}
	r := c.room(p.TableID)
	if r == nil {
		c.fail(s, req, errTableNotFound)
		return
	}
	viewer := ""
	if ident := s.getIdentity(); ident != nil {
		viewer = ident.ID
	}
	var view game.TableView
	r.do(func(t *game.Table) {
		view = t.ViewFor(viewer)
	})
	s.reply(req, Reply{Success: true, TableID: p.TableID, State: &view})
}

func (c *Coordinator) handleGetHandHistory(s *session, req *Message) {
	var p tablePayload
	if err := json.Unmarshal(req.Data, &p); err != nil {
		c.fail(s, req, err)
		return
	}
	r := c.room(p.TableID)
	if r == nil {
		c.fail(s, req, errTableNotFound)
		return
	}
	viewer := ""
	if ident := s.getIdentity(); ident != nil {
		viewer = ident.ID
	}
	var hands []history.Record
	r.do(func(t *game.Table) {
		hands = t.History().Records()
	})
	// Strip hole cards that were not the viewer's own. Records share
	// backing arrays with the live log, so the seats are copied first.
	for i := range hands {
		seats := make([]history.SeatStart, len(hands[i].Seats))
		copy(seats, hands[i].Seats)
		for j := range seats {
			if seats[j].PlayerID != viewer {
				seats[j].HoleCards = nil
			}
		}
		hands[i].Seats = seats
	}
	s.reply(req, Reply{Success: true, TableID: p.TableID, Hands: hands})
}

// postCommit runs after every table mutation, on the room goroutine: push
// state, re-arm timers, settle departures and report the seat count.
func (c *Coordinator) postCommit(r *room, t *game.Table) {
	c.broadcastState(r, t)
	c.manageTimers(r, t)
	c.settle(r, t)
	c.reportSeats(r, t)
}

func (c *Coordinator) broadcastState(r *room, t *game.Table) {
	for playerID, sess := range r.seated {
		sess.sendEvent(evtGameState, t.ViewFor(playerID))
	}
	if len(r.watchers) == 0 {
		return
	}
	view := t.ViewFor("")
	for sess := range r.watchers {
		sess.sendEvent(evtSpectatorState, view)
	}
}

func (c *Coordinator) manageTimers(r *room, t *game.Table) {
	if t.ActiveSeat() != nil {
		if r.turnTimer != nil {
			r.turnTimer.Stop()
		}
		wait := t.LastActionAt.Add(game.TurnTimeout).Sub(c.clock.Now())
		if wait < 0 {
			wait = 0
		}
		r.turnTimer = c.clock.AfterFunc(wait, func() {
			r.enqueue(func(t *game.Table) { c.fireTurnTimeout(r, t) })
		})
	} else if r.turnTimer != nil {
		r.turnTimer.Stop()
		r.turnTimer = nil
	}

	if t.Stage == game.Showdown && t.ConnectedSeats() >= 2 {
		if r.nextHand == nil {
			r.nextHand = c.clock.AfterFunc(nextHandDelay, func() {
				r.enqueue(func(t *game.Table) { c.fireNextHand(r, t) })
			})
		}
	} else if r.nextHand != nil {
		r.nextHand.Stop()
		r.nextHand = nil
	}
}

func (c *Coordinator) fireTurnTimeout(r *room, t *game.Table) {
	a, err := t.ApplyTurnTimeout(c.clock.Now())
	if err != nil {
		if errors.Is(err, game.ErrIntegrity) || errors.Is(err, deck.ErrExhausted) {
			c.broadcastTableError(r, err)
			c.postCommit(r, t)
			return
		}
		r.logger.Error("turn timeout failed", "error", err)
		return
	}
	if a == nil {
		return
	}
	r.logger.Info("turn timed out", "player", a.PlayerID, "resolved", a.Kind)
	c.metrics.ActionsTotal.WithLabelValues(string(a.Kind)).Inc()
	c.postCommit(r, t)
}

func (c *Coordinator) fireNextHand(r *room, t *game.Table) {
	r.nextHand = nil
	if t.Stage != game.Showdown {
		return
	}
	if err := t.StartHand(c.clock.Now()); err != nil {
		switch {
		case errors.Is(err, game.ErrNotEnoughPlayers):
			r.logger.Debug("not enough players for the next hand")
		default:
			r.logger.Error("failed to start next hand", "error", err)
			c.broadcastTableError(r, err)
		}
	}
	c.postCommit(r, t)
}

// settle drains departures back to the wallet and reports finished hands
// for rake accounting.
func (c *Coordinator) settle(r *room, t *game.Table) {
	for _, dep := range t.TakeDeparted() {
		if timer, ok := r.grace[dep.PlayerID]; ok {
			timer.Stop()
			delete(r.grace, dep.PlayerID)
		}
		if sess, ok := r.seated[dep.PlayerID]; ok {
			sess.clearSeated(r.id)
			delete(r.seated, dep.PlayerID)
		}
		c.checker.Forget(dep.PlayerID, r.id)
		if dep.Stack > 0 {
			go c.credit(r.id, dep.PlayerID, dep.Stack)
		}
		r.logger.Info("seat settled", "player", dep.PlayerID, "stack", dep.Stack)
	}

	if t.Stage == game.Showdown && t.HandNum > r.lastHand {
		r.lastHand = t.HandNum
		c.metrics.HandsTotal.Inc()
		shares := t.Contributions
		total := 0
		for _, v := range shares {
			total += v
		}
		meta := wallet.HandMeta{TableID: r.id, HandNum: t.HandNum, Pot: total, EndedAt: t.LastActionAt}
		go func() {
			if err := c.wallet.RakeContribution(c.ctx, meta, shares); err != nil {
				c.logger.Warn("rake report failed", "table", meta.TableID, "hand", meta.HandNum, "error", err)
			}
		}()

		if c.archiver != nil {
			if rec, ok := t.History().Last(); ok {
				c.archiver.Enqueue(phh.Job{
					Meta: phh.Meta{
						TableID: r.id,
						Variant: t.Variant,
						Betting: t.Betting,
						Blinds:  t.Blinds,
					},
					Record: rec,
				})
			}
		}
	}
}

// credit returns chips to a player's wallet, retrying a bounded number of
// times before logging for reconciliation.
func (c *Coordinator) credit(tableID, playerID string, amount int) {
	var err error
	for attempt := 1; attempt <= walletAttempts; attempt++ {
		if err = c.wallet.Credit(c.ctx, playerID, amount); err == nil {
			return
		}
		if attempt < walletAttempts {
			c.metrics.WalletRetries.Inc()
		}
	}
	c.logger.Error("wallet credit failed, needs reconciliation",
		"table", tableID, "player", playerID, "amount", amount, "error", err)
}

func (c *Coordinator) reportSeats(r *room, t *game.Table) {
	if c.lobby.ReportSeats(r.id, len(t.Seats)) {
		c.broadcastTableList()
	}
}

func (c *Coordinator) broadcastTableList() {
	sums := c.lobby.Summaries()
	c.updateTableGauge(sums)
	payload := tableListPayload{Tables: sums}

	c.mu.RLock()
	subs := make([]*session, 0, len(c.lobbySubs))
	for s := range c.lobbySubs {
		subs = append(subs, s)
	}
	c.mu.RUnlock()

	for _, s := range subs {
		s.sendEvent(evtTableList, payload)
	}
}

func (c *Coordinator) updateTableGauge(sums []lobby.Summary) {
	counts := make(map[[2]string]int)
	for _, sum := range sums {
		counts[[2]string{string(sum.Variant), sum.Stake}]++
	}
	c.metrics.Tables.Reset()
	for k, n := range counts {
		c.metrics.Tables.WithLabelValues(k[0], k[1]).Set(float64(n))
	}
}

// attachSession binds a session to a seated player, cancelling any grace
// timer and superseding an older session for the same player. Runs on the
// room goroutine.
func (c *Coordinator) attachSession(r *room, playerID string, s *session) {
	if timer, ok := r.grace[playerID]; ok {
		timer.Stop()
		delete(r.grace, playerID)
	}
	if old, ok := r.seated[playerID]; ok && old != s {
		old.clearSeated(r.id)
	}
	r.seated[playerID] = s
	s.setSeated(r.id)
}

func (c *Coordinator) armGrace(r *room, playerID string) {
	if timer, ok := r.grace[playerID]; ok {
		timer.Stop()
	}
	r.grace[playerID] = c.clock.AfterFunc(graceTimeout, func() {
		r.enqueue(func(t *game.Table) { c.fireGraceExpiry(r, t, playerID) })
	})
}

func (c *Coordinator) fireGraceExpiry(r *room, t *game.Table, playerID string) {
	delete(r.grace, playerID)
	seat := t.SeatOf(playerID)
	if seat == nil || seat.Connected {
		return
	}
	r.logger.Info("grace expired, removing seat", "player", playerID)
	if err := t.RemoveSeat(playerID); err != nil {
		if errors.Is(err, deck.ErrExhausted) {
			c.broadcastTableError(r, err)
		} else if !errors.Is(err, game.ErrNotInHand) {
			r.logger.Error("grace removal failed", "player", playerID, "error", err)
		}
	}
	c.postCommit(r, t)
}

// sessionClosed detaches a closing session from everything it touched. The
// seat itself survives on a grace timer.
func (c *Coordinator) sessionClosed(s *session) {
	c.mu.Lock()
	delete(c.lobbySubs, s)
	c.mu.Unlock()

	for _, id := range s.watchList() {
		if r := c.room(id); r != nil {
			r.enqueue(func(t *game.Table) { delete(r.watchers, s) })
		}
	}

	tableID := s.seatedTable()
	if tableID == "" {
		return
	}
	ident := s.getIdentity()
	if ident == nil {
		return
	}
	r := c.room(tableID)
	if r == nil {
		return
	}
	r.enqueue(func(t *game.Table) {
		if r.seated[ident.ID] != s {
			// A newer session took the seat over.
			return
		}
		delete(r.seated, ident.ID)
		if t.SeatOf(ident.ID) == nil {
			return
		}
		t.MarkDisconnected(ident.ID)
		c.armGrace(r, ident.ID)
		r.logger.Info("player disconnected, grace started", "player", ident.ID)
		c.postCommit(r, t)
	})
}

// broadcastTableError pushes an out-of-band failure to everyone at the
// table. Runs on the room goroutine.
func (c *Coordinator) broadcastTableError(r *room, err error) {
	code, _ := codeFor(err)
	c.metrics.ErrorsTotal.WithLabelValues(code).Inc()
	payload := tableErrorPayload{TableID: r.id, Code: code, Message: err.Error()}
	for _, sess := range r.seated {
		sess.sendEvent(evtTableError, payload)
	}
	for sess := range r.watchers {
		sess.sendEvent(evtTableError, payload)
	}
}
