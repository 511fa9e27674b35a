package server

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/cardroom/internal/game"
)

// room owns one table. All table mutation runs on the room's goroutine, fed
// through the queue, so the engine itself never needs a lock.
type room struct {
	id     string
	ctx    context.Context
	queue  chan func(*game.Table)
	table  *game.Table
	logger *log.Logger

	// The fields below are only touched from the room goroutine.
	seated    map[string]*session
	watchers  map[*session]bool
	grace     map[string]*quartz.Timer
	turnTimer *quartz.Timer
	nextHand  *quartz.Timer
	lastHand  int
}

func newRoom(ctx context.Context, tbl *game.Table, logger *log.Logger) *room {
	return &room{
		id:       tbl.ID,
		ctx:      ctx,
		queue:    make(chan func(*game.Table), 64),
		table:    tbl,
		logger:   logger.WithPrefix("room").With("table", tbl.ID),
		seated:   make(map[string]*session),
		watchers: make(map[*session]bool),
		grace:    make(map[string]*quartz.Timer),
	}
}

// run drains the queue until the room context ends.
func (r *room) run() {
	for {
		select {
		case fn := <-r.queue:
			fn(r.table)
		case <-r.ctx.Done():
			r.stopTimers()
			return
		}
	}
}

// do runs fn on the room goroutine and waits for it to finish.
func (r *room) do(fn func(*game.Table)) {
	done := make(chan struct{})
	job := func(t *game.Table) {
		defer close(done)
		fn(t)
	}
	select {
	case r.queue <- job:
	case <-r.ctx.Done():
		return
	}
	select {
	case <-done:
	case <-r.ctx.Done():
	}
}

// enqueue runs fn on the room goroutine without waiting. Timer callbacks use
// this so a firing timer never blocks.
func (r *room) enqueue(fn func(*game.Table)) {
	select {
	case r.queue <- fn:
	case <-r.ctx.Done():
	}
}

func (r *room) stopTimers() {
	if r.turnTimer != nil {
		r.turnTimer.Stop()
		r.turnTimer = nil
	}
	if r.nextHand != nil {
		r.nextHand.Stop()
		r.nextHand = nil
	}
	for id, timer := range r.grace {
		timer.Stop()
		delete(r.grace, id)
	}
}
