package phh

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/cardroom/internal/deck"
	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/history"
)

func testJob(handNum int) Job {
	return Job{
		Meta: Meta{
			TableID: "sys-texas-1-2-1",
			Variant: game.Texas,
			Betting: game.NoLimit,
			Blinds:  game.Blinds{Small: 1, Big: 2},
		},
		Record: history.Record{
			HandNum: handNum,
			Dealer:  0,
			Seats: []history.SeatStart{
				{PlayerID: "alice", Name: "alice", SeatIndex: 0, Stack: 200, HoleCards: deck.MustParseCards("AhKh")},
				{PlayerID: "bob", Name: "bob", SeatIndex: 1, Stack: 200, HoleCards: deck.MustParseCards("7c2d")},
			},
			Actions:   []history.Action{{PlayerID: "alice", Kind: "fold", Stage: "preflop", To: 1}},
			Pot:       3,
			Winners:   []history.Winner{{PlayerID: "bob", Amount: 3}},
			Finishing: []int{199, 201},
		},
	}
}

func TestArchiverWritesHandFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	arch := NewArchiver(dir, log.NewWithOptions(io.Discard, log.Options{}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- arch.Run(ctx) }()

	arch.Enqueue(testJob(4))

	path := filepath.Join(dir, "sys-texas-1-2-1", "hand-000004.phh")
	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	var hand Hand
	_, err := toml.DecodeFile(path, &hand)
	require.NoError(t, err)
	assert.Equal(t, "NT", hand.Variant)
	assert.Equal(t, "sys-texas-1-2-1-4", hand.HandID)
	assert.Equal(t, []int{1, 2}, hand.BlindsOrStraddles)
	assert.Equal(t, []int{199, 201}, hand.FinishingStacks)
	assert.Contains(t, hand.Actions, "p1 f")

	cancel()
	require.NoError(t, <-done)
}

func TestArchiverDrainsQueueOnShutdown(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	arch := NewArchiver(dir, log.NewWithOptions(io.Discard, log.Options{}))
	arch.Enqueue(testJob(1))
	arch.Enqueue(testJob(2))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, arch.Run(ctx))

	for _, name := range []string{"hand-000001.phh", "hand-000002.phh"} {
		_, err := os.Stat(filepath.Join(dir, "sys-texas-1-2-1", name))
		require.NoError(t, err, name)
	}
}
