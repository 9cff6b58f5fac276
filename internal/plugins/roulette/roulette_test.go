package roulette

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayuer/cacophony-go/internal/commands"
	"github.com/dayuer/cacophony-go/internal/plugins/plugintest"
)

type fixture struct {
	host   *plugintest.Host
	p      *Plugin
	bullet int
}

func newFixture(t *testing.T, bullet int) *fixture {
	t.Helper()
	f := &fixture{host: plugintest.New(t), bullet: bullet}
	p, err := New(f.host)
	require.NoError(t, err)
	f.p = p.(*Plugin)
	f.p.intn = func(int) int { return f.bullet }
	require.NoError(t, f.p.OnLoad(context.Background()))
	return f
}

func (f *fixture) pull(t *testing.T, channel, player string, args ...string) string {
	t.Helper()
	f.host.Reset()
	msg := plugintest.Message("S", channel, player, "!roulette")
	require.NoError(t, f.p.roulette(context.Background(), &commands.Request{Name: "roulette", Args: args, Message: msg}))
	out := f.host.Contents()
	require.Len(t, out, 1)
	return out[0]
}

func TestRoulette_EmptyStats(t *testing.T) {
	f := newFixture(t, 0)
	assert.Equal(t, "There are no top players at the moment.\n\nRemaining chambers: 6", f.pull(t, "general", "alice", "stats"))
}

func TestRoulette_RoundScoring(t *testing.T) {
	f := newFixture(t, 2)

	assert.Equal(t, "**alice** pulls the trigger... *Click!*", f.pull(t, "general", "alice"))
	assert.Equal(t, "**bob** pulls the trigger... *Click!*", f.pull(t, "general", "bob"))
	assert.Equal(t, "**carol** pulls the trigger... *BOOM*! **HEADSHOT**!", f.pull(t, "general", "carol"))

	assert.Equal(t, "Top 5 players are:\n\n"+
		"**1**: bob (2 points)\n"+
		"**2**: alice (1 point)\n"+
		"**3**: carol (0 points)\n"+
		"\nRemaining chambers: 6", f.pull(t, "general", "alice", "stats"))
}

func TestRoulette_ShotPlayerLosesPoints(t *testing.T) {
	f := newFixture(t, 3)
	f.pull(t, "general", "alice")
	f.bullet = 1 // next gun
	f.pull(t, "general", "alice")
	f.pull(t, "general", "alice")
	f.pull(t, "general", "bob") // bob shot, alice credited 3

	f.pull(t, "general", "bob")   // bob survives with bonus 1
	f.pull(t, "general", "alice") // alice shot with 4 remaining: -2

	alice, ok, err := f.p.repo.Get(context.Background(), "S", "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, alice.Score)

	bob, _, err := f.p.repo.Get(context.Background(), "S", "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, bob.Score)
}

func TestRoulette_ScoreNeverNegative(t *testing.T) {
	f := newFixture(t, 0)
	require.NoError(t, f.p.repo.Put(context.Background(), Player{ServerID: "S", PlayerID: "alice", Name: "alice", Score: 0}))

	f.bullet = 1
	f.pull(t, "general", "bob")
	f.pull(t, "general", "alice")

	alice, _, err := f.p.repo.Get(context.Background(), "S", "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, alice.Score)
}

func TestRoulette_LastChamberIsFree(t *testing.T) {
	f := newFixture(t, 5)
	require.NoError(t, f.p.repo.Put(context.Background(), Player{ServerID: "S", PlayerID: "alice", Name: "alice", Score: 7}))
	for i := 0; i < 5; i++ {
		f.pull(t, "general", "bob")
	}
	f.pull(t, "general", "alice")

	alice, _, err := f.p.repo.Get(context.Background(), "S", "alice")
	require.NoError(t, err)
	assert.Equal(t, 7, alice.Score)
}

func TestRoulette_GunsArePerChannel(t *testing.T) {
	f := newFixture(t, 4)
	f.pull(t, "general", "alice")
	f.pull(t, "general", "alice")

	assert.Contains(t, f.pull(t, "random", "alice", "stats"), "Remaining chambers: 6")
	assert.Contains(t, f.pull(t, "general", "alice", "stats"), "Remaining chambers: 4")
}

func TestRoulette_ShotWithoutPriorPull(t *testing.T) {
	f := newFixture(t, 0)
	assert.Equal(t, "**dave** pulls the trigger... *BOOM*! **HEADSHOT**!", f.pull(t, "general", "dave"))

	dave, ok, err := f.p.repo.Get(context.Background(), "S", "dave")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, dave.Score)
}
