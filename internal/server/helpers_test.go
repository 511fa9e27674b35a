package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/lox/cardroom/internal/anticheat"
	"github.com/lox/cardroom/internal/auth"
	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/lobby"
	"github.com/lox/cardroom/internal/metrics"
	"github.com/lox/cardroom/internal/phh"
	"github.com/lox/cardroom/internal/wallet"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

// fixture wires the full stack against an in-memory wallet and a mock clock,
// served on an ephemeral port.
type fixture struct {
	t       *testing.T
	clock   *quartz.Mock
	wallet  *wallet.Memory
	metrics *metrics.Metrics
	checker *anticheat.Validator
	coord   *Coordinator
	lob     *lobby.Lobby
	web     *httptest.Server

	// table is the bootstrapped system table when the fixture starts with
	// a single stake class.
	table string
}

type fixtureConfig struct {
	opening  int
	resolver auth.Resolver
	walletA  wallet.Adapter
	stakes   []lobby.StakeDef
	handDir  string
}

func withOpeningBalance(n int) func(*fixtureConfig) {
	return func(c *fixtureConfig) { c.opening = n }
}

func withResolver(r auth.Resolver) func(*fixtureConfig) {
	return func(c *fixtureConfig) { c.resolver = r }
}

func withWallet(w wallet.Adapter) func(*fixtureConfig) {
	return func(c *fixtureConfig) { c.walletA = w }
}

func withHandHistoryDir(dir string) func(*fixtureConfig) {
	return func(c *fixtureConfig) { c.handDir = dir }
}

func newFixture(t *testing.T, opts ...func(*fixtureConfig)) *fixture {
	t.Helper()

	cfg := fixtureConfig{
		opening: 1000,
		stakes: []lobby.StakeDef{{
			Variant: game.Texas,
			Betting: game.NoLimit,
			Label:   "1/2",
			Blinds:  game.Blinds{Small: 1, Big: 2},
		}},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.resolver == nil {
		cfg.resolver = auth.NewNoopResolver()
	}

	f := &fixture{
		t:       t,
		clock:   quartz.NewMock(t),
		metrics: metrics.New(),
		checker: anticheat.New(),
		lob:     lobby.New(testLogger()),
	}
	adapter := cfg.walletA
	if adapter == nil {
		f.wallet = wallet.NewMemory(cfg.opening)
		adapter = f.wallet
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	var coordOpts []Option
	if cfg.handDir != "" {
		arch := phh.NewArchiver(cfg.handDir, testLogger())
		coordOpts = append(coordOpts, WithArchiver(arch))
		go func() { _ = arch.Run(ctx) }()
	}
	f.coord = NewCoordinator(f.lob, cfg.resolver, adapter, f.checker, f.metrics, f.clock, testLogger(), coordOpts...)
	f.coord.Start(ctx, cfg.stakes)

	srv := NewServer("127.0.0.1:0", cfg.resolver, f.coord, f.metrics, testLogger())
	srv.Start(ctx)
	f.web = httptest.NewServer(srv.Handler())
	t.Cleanup(f.web.Close)

	if sums := f.lob.Summaries(); len(sums) == 1 {
		f.table = sums[0].ID
	}
	return f
}

func (f *fixture) dial(token string) *wsClient {
	f.t.Helper()
	u := "ws" + strings.TrimPrefix(f.web.URL, "http") + "/ws"
	if token != "" {
		u += "?token=" + token
	}
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(f.t, err)
	c := &wsClient{t: f.t, conn: conn}
	f.t.Cleanup(c.close)
	return c
}

func (f *fixture) dialHeader(h http.Header) *wsClient {
	f.t.Helper()
	u := "ws" + strings.TrimPrefix(f.web.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, h)
	require.NoError(f.t, err)
	c := &wsClient{t: f.t, conn: conn}
	f.t.Cleanup(c.close)
	return c
}

// advance moves the mock clock, waiting for fired timers to finish their
// callbacks.
func (f *fixture) advance(d time.Duration) {
	f.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	f.clock.Advance(d).MustWait(ctx)
}

// state reads a table's view straight through its room queue.
func (f *fixture) state(tableID, viewerID string) game.TableView {
	f.t.Helper()
	r := f.coord.room(tableID)
	require.NotNil(f.t, r, "no room for table %s", tableID)
	var v game.TableView
	r.do(func(t *game.Table) { v = t.ViewFor(viewerID) })
	return v
}

// playCheckCall has the active seat call when facing a bet and check
// otherwise, advancing the clock enough to clear the pacing floor.
func (f *fixture) playCheckCall(clients map[string]*wsClient, tableID string) game.TableView {
	f.t.Helper()
	v := f.state(tableID, "")
	actor := seatAt(f.t, v, v.Active)
	kind := "check"
	if actor.RoundBet < v.HighBet {
		kind = "call"
	}
	f.advance(300 * time.Millisecond)
	client, ok := clients[actor.PlayerID]
	require.True(f.t, ok, "no client for %s", actor.PlayerID)
	client.requireOK(evtAction, actionPayload{TableID: tableID, Kind: kind})
	return f.state(tableID, "")
}

// seatAt finds the seat view at an index.
func seatAt(t *testing.T, v game.TableView, index int) game.SeatView {
	t.Helper()
	for _, s := range v.Seats {
		if s.Seat == index {
			return s
		}
	}
	t.Fatalf("no seat at index %d", index)
	return game.SeatView{}
}

// seatOf finds a player's seat view, or nil when the player is not seated.
func seatOf(v game.TableView, playerID string) *game.SeatView {
	for i := range v.Seats {
		if v.Seats[i].PlayerID == playerID {
			return &v.Seats[i]
		}
	}
	return nil
}

// wsClient drives one websocket connection. Pushes read while waiting for a
// reply are buffered in pending.
type wsClient struct {
	t       *testing.T
	conn    *websocket.Conn
	seq     int
	pending []*Message
}

func (c *wsClient) close() { _ = c.conn.Close() }

func (c *wsClient) read() *Message {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var m Message
	require.NoError(c.t, c.conn.ReadJSON(&m))
	return &m
}

// request sends an event and waits for its reply.
func (c *wsClient) request(event string, data any) Reply {
	c.t.Helper()
	msg, err := NewMessage(event, data)
	require.NoError(c.t, err)
	c.seq++
	msg.RequestID = fmt.Sprintf("req-%d", c.seq)
	require.NoError(c.t, c.conn.WriteJSON(msg))

	for {
		m := c.read()
		if m.RequestID == msg.RequestID {
			require.Equal(c.t, event, m.Event, "reply must echo the request event")
			var r Reply
			require.NoError(c.t, json.Unmarshal(m.Data, &r))
			return r
		}
		c.pending = append(c.pending, m)
	}
}

func (c *wsClient) requireOK(event string, data any) Reply {
	c.t.Helper()
	r := c.request(event, data)
	require.True(c.t, r.Success, "%s failed: %s (code %s)", event, r.Error, r.Code)
	return r
}

func (c *wsClient) requireCode(code, event string, data any) Reply {
	c.t.Helper()
	r := c.request(event, data)
	require.False(c.t, r.Success, "%s unexpectedly succeeded", event)
	require.Equal(c.t, code, r.Code, "wrong code for %s: %s", event, r.Error)
	return r
}

// waitEvent returns the next push with the given event name, checking the
// buffer first.
func (c *wsClient) waitEvent(event string) *Message {
	c.t.Helper()
	for i, m := range c.pending {
		if m.Event == event {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return m
		}
	}
	for {
		m := c.read()
		if m.Event == event && m.RequestID == "" {
			return m
		}
		c.pending = append(c.pending, m)
	}
}

// lastView drains buffered pushes of the named state event and decodes the
// freshest, waiting for one if none is buffered.
func (c *wsClient) lastView(event string) game.TableView {
	c.t.Helper()
	var m *Message
	kept := c.pending[:0]
	for _, p := range c.pending {
		if p.Event == event {
			m = p
		} else {
			kept = append(kept, p)
		}
	}
	c.pending = kept
	if m == nil {
		m = c.waitEvent(event)
	}
	var v game.TableView
	require.NoError(c.t, json.Unmarshal(m.Data, &v))
	return v
}

func (c *wsClient) clearPending() { c.pending = nil }

// unmarshalData decodes a push payload.
func unmarshalData(m *Message, v any) error {
	return json.Unmarshal(m.Data, v)
}

// waitView blocks for the next push of the named state event and decodes it.
func (c *wsClient) waitView(event string) game.TableView {
	c.t.Helper()
	m := c.waitEvent(event)
	var v game.TableView
	require.NoError(c.t, json.Unmarshal(m.Data, &v))
	return v
}

// expectSilence asserts no frame arrives within d. The expired read deadline
// poisons the connection, so this must be the client's final use.
func (c *wsClient) expectSilence(d time.Duration) {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(d)))
	var m Message
	err := c.conn.ReadJSON(&m)
	require.Error(c.t, err, "expected no frames, got %+v", m)
}

// failingResolver rejects every non-empty token.
type failingResolver struct{}

func (failingResolver) Resolve(_ context.Context, token string) (*auth.Identity, error) {
	if token == "" {
		return nil, nil
	}
	return nil, auth.ErrInvalidToken
}

// flakyWallet fails Credit a configured number of times before recovering.
type flakyWallet struct {
	*wallet.Memory
	mu       sync.Mutex
	failures int
}

func (w *flakyWallet) Credit(ctx context.Context, playerID string, amount int) error {
	w.mu.Lock()
	if w.failures > 0 {
		w.failures--
		w.mu.Unlock()
		return errors.New("wallet offline")
	}
	w.mu.Unlock()
	return w.Memory.Credit(ctx, playerID, amount)
}
