// Package lobby is the table registry and provisioning policy. It creates
// one system table per configured stake at startup and keeps every stake
// seatable by provisioning a fresh table when a class fills up.
package lobby

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/lox/cardroom/internal/game"
)

// StakeDef is one configured (variant, stake) class.
type StakeDef struct {
	Variant game.Variant
	Betting game.BettingType
	Label   string
	Blinds  game.Blinds
}

// Summary is the table-list entry clients see.
type Summary struct {
	ID       string           `json:"tableId"`
	Variant  game.Variant     `json:"variant"`
	Betting  game.BettingType `json:"bettingType"`
	Stake    string           `json:"stake"`
	Blinds   game.Blinds      `json:"blinds"`
	System   bool             `json:"system"`
	Seated   int              `json:"seatedCount"`
	MaxSeats int              `json:"maxSeats"`
}

type classKey struct {
	variant game.Variant
	label   string
}

// entry pairs a table with the seat count last reported by its serial
// queue. The lobby never reads live table state; summaries and
// replenishment decisions use the reported counts.
type entry struct {
	table *game.Table
	seats int
}

// Lobby is the shared table registry. A single coarse lock guards the map;
// table state itself is owned by each table's serial queue.
type Lobby struct {
	logger *log.Logger

	mu       sync.RWMutex
	tables   map[string]*entry
	defs     map[classKey]StakeDef
	counters map[string]int
}

func New(logger *log.Logger) *Lobby {
	return &Lobby{
		logger:   logger.WithPrefix("lobby"),
		tables:   make(map[string]*entry),
		defs:     make(map[classKey]StakeDef),
		counters: make(map[string]int),
	}
}

// Bootstrap registers the configured stakes and opens one system table for
// each. It returns the created tables so callers can start their queues.
func (l *Lobby) Bootstrap(defs []StakeDef) []*game.Table {
	l.mu.Lock()
	defer l.mu.Unlock()

	created := make([]*game.Table, 0, len(defs))
	for _, def := range defs {
		l.defs[classKey{def.Variant, def.Label}] = def
		created = append(created, l.provision(def))
	}
	return created
}

// provision opens a new system table for the class. Caller holds the lock.
func (l *Lobby) provision(def StakeDef) *game.Table {
	id := l.nextID("sys", def.Variant, def.Label)
	t := game.NewTable(id, def.Variant, def.Betting, def.Blinds, def.Label, true)
	l.tables[id] = &entry{table: t}
	l.logger.Info("table opened", "table", id, "variant", def.Variant, "stake", def.Label)
	return t
}

// nextID builds the next table id for a class. Caller holds the lock.
func (l *Lobby) nextID(prefix string, variant game.Variant, label string) string {
	class := fmt.Sprintf("%s-%s-%s", prefix, variant, strings.ReplaceAll(label, "/", "-"))
	l.counters[class]++
	return fmt.Sprintf("%s-%d", class, l.counters[class])
}

// Table looks up a table by id.
func (l *Lobby) Table(id string) (*game.Table, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.tables[id]
	if !ok {
		return nil, false
	}
	return e.table, true
}

// CreateUserTable registers a player-created table. User tables live in
// their class like any other but are never auto-replenished.
func (l *Lobby) CreateUserTable(variant game.Variant, betting game.BettingType, label string, blinds game.Blinds) *game.Table {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextID("usr", variant, label)
	t := game.NewTable(id, variant, betting, blinds, label, false)
	l.tables[id] = &entry{table: t}
	l.logger.Info("user table opened", "table", id, "variant", variant, "stake", label)
	return t
}

// ReportSeats records a table's seat count after a mutation committed.
// It reports whether the count changed, which is the table-list broadcast
// trigger.
func (l *Lobby) ReportSeats(id string, seats int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.tables[id]
	if !ok || e.seats == seats {
		return false
	}
	e.seats = seats
	return true
}

// Replenish provisions a new system table when every table in a configured
// class is at its seat cap. Classes without a stake definition (user-invented
// stakes) are left alone. Returns the new table, or nil when none was needed.
func (l *Lobby) Replenish(variant game.Variant, label string) *game.Table {
	l.mu.Lock()
	defer l.mu.Unlock()

	def, ok := l.defs[classKey{variant, label}]
	if !ok {
		return nil
	}
	for _, e := range l.tables {
		if e.table.Variant != variant || e.table.Stake != label {
			continue
		}
		if e.seats < e.table.MaxSeats {
			return nil
		}
	}
	return l.provision(def)
}

// Summaries returns a snapshot of every table, ordered by id.
func (l *Lobby) Summaries() []Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Summary, 0, len(l.tables))
	for _, e := range l.tables {
		out = append(out, Summary{
			ID:       e.table.ID,
			Variant:  e.table.Variant,
			Betting:  e.table.Betting,
			Stake:    e.table.Stake,
			Blinds:   e.table.Blinds,
			System:   e.table.System,
			Seated:   e.seats,
			MaxSeats: e.table.MaxSeats,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
