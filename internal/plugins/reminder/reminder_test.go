package reminder

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayuer/cacophony-go/internal/bus"
	"github.com/dayuer/cacophony-go/internal/commands"
	"github.com/dayuer/cacophony-go/internal/plugins/plugintest"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	host *plugintest.Host
	p    *Plugin
	now  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{host: plugintest.New(t), now: epoch}
	p, err := New(f.host)
	require.NoError(t, err)
	f.p = p.(*Plugin)
	f.p.now = func() time.Time { return f.now }
	require.NoError(t, f.p.OnLoad(context.Background()))
	return f
}

func (f *fixture) remind(t *testing.T, author string, args ...string) string {
	t.Helper()
	f.host.Reset()
	msg := plugintest.Message("S", "general", author, "!remind "+strings.Join(args, " "))
	require.NoError(t, f.p.remind(context.Background(), &commands.Request{Name: "remind", Args: args, Message: msg}))
	out := f.host.Contents()
	require.Len(t, out, 1)
	return out[0]
}

func TestParseDelay(t *testing.T) {
	cases := map[string]time.Duration{
		"10m": 10 * time.Minute,
		"2h":  2 * time.Hour,
		"3d":  72 * time.Hour,
		"1w":  7 * 24 * time.Hour,
	}
	for in, want := range cases {
		got, err := ParseDelay(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "0m", "10", "m", "10x", "-5m", "10m later", " 10m", "99999999999999999999w"} {
		_, err := ParseDelay(in)
		assert.ErrorIs(t, err, ErrInvalidDelay, in)
	}
}

func TestHumanize(t *testing.T) {
	assert.Equal(t, "in 2 weeks", Humanize(15*24*time.Hour))
	assert.Equal(t, "in 7 days", Humanize(7*24*time.Hour))
	assert.Equal(t, "in 1 day", Humanize(30*time.Hour))
	assert.Equal(t, "in 5 hours", Humanize(5*time.Hour+10*time.Minute))
	assert.Equal(t, "in 10 minutes", Humanize(10*time.Minute))
	assert.Equal(t, "in 2 minutes", Humanize(150*time.Second))
	assert.Equal(t, "soon", Humanize(30*time.Second))
	assert.Equal(t, "soon", Humanize(-time.Hour))
}

func TestRemind_AddAndList(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, `_Added reminder **1** **"deploy the thing"** which will be fired in 2 days_`,
		f.remind(t, "alice", "add", "2d", "deploy", "the", "thing"))
	assert.Equal(t, `_Added reminder **2** **"coffee"** which will be fired in 10 minutes_`,
		f.remind(t, "bob", "add", "10m", "coffee"))

	list := f.remind(t, "alice", "list")
	assert.Equal(t, "**2 upcoming reminders:**\n"+
		"- ID:2 **coffee** by **bob** in 10 minutes\n"+
		"- ID:1 **deploy the thing** by **alice** in 2 days\n", list)
}

func TestRemind_ListEmpty(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "_There are currently no reminders at the moment._", f.remind(t, "alice", "list"))
}

func TestRemind_ListLimit(t *testing.T) {
	f := newFixture(t)
	f.host.Options[Name] = "list_limit: 2"
	p, err := New(f.host)
	require.NoError(t, err)
	f.p = p.(*Plugin)
	f.p.now = func() time.Time { return f.now }

	for i := 0; i < 4; i++ {
		f.remind(t, "alice", "add", "1h", "x")
	}
	assert.True(t, strings.HasPrefix(f.remind(t, "alice", "list"), "**2 upcoming reminders:**\n"))
}

func TestRemind_InvalidDelay(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "_Invalid delay format '5y'. Could not add reminder._", f.remind(t, "alice", "add", "5y", "x"))
}

func TestRemind_Delete(t *testing.T) {
	f := newFixture(t)
	f.remind(t, "alice", "add", "1h", "stand-up")

	assert.Equal(t, "_Could not find reminder of yours with ID **1** on this server._", f.remind(t, "bob", "del", "1"))
	assert.Equal(t, "_Successfully deleted reminder **1**._", f.remind(t, "alice", "del", "1"))
	assert.Equal(t, "_Could not find reminder of yours with ID **1** on this server._", f.remind(t, "alice", "del", "1"))
}

func TestRemind_DeleteInvalidID(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"0", "-3", "abc"} {
		assert.Equal(t, "_Invalid reminder ID **"+id+"**. Must be a strictly positive number._", f.remind(t, "alice", "del", id))
	}
}

func TestRemind_UsageAndUnknown(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "_Usage: !remind [add|del|list] ..._", f.remind(t, "alice"))
	assert.Equal(t, "_Usage: !remind add <delay> <description>_", f.remind(t, "alice", "add", "10m"))
	assert.Equal(t, "_Usage: !remind del <id>_", f.remind(t, "alice", "del"))
	assert.Equal(t, "Unknown subcommand 'snooze' for !remind.", f.remind(t, "alice", "snooze"))
}

func TestFire_SendsDueAndDeletes(t *testing.T) {
	f := newFixture(t)
	f.remind(t, "alice", "add", "10m", "tea")
	f.remind(t, "alice", "add", "2h", "lunch")
	f.host.Reset()

	f.now = epoch.Add(15 * time.Minute)
	n, err := f.p.fire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	sent := f.host.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "@here **Reminder:** tea", sent[0].Content)
	assert.Equal(t, bus.ChannelTarget("general-id"), sent[0].Target)
	assert.Equal(t, "test", sent[0].Channel)

	n, err = f.p.fire(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	left, err := f.p.repo.Upcoming(context.Background(), "S", 10)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "lunch", left[0].Description)
}

func TestFire_UndeletableReminderIsSkipped(t *testing.T) {
	f := newFixture(t)
	f.remind(t, "alice", "add", "5m", "stuck")
	f.remind(t, "alice", "add", "10m", "tea")
	f.host.Reset()

	_, err := f.host.DB().Exec(`
		CREATE TRIGGER keep_stuck BEFORE DELETE ON cacophony_remind
		WHEN OLD.description = 'stuck'
		BEGIN SELECT RAISE(ABORT, 'locked'); END`)
	require.NoError(t, err)

	f.now = epoch.Add(15 * time.Minute)
	n, err := f.p.fire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"@here **Reminder:** tea"}, f.host.Contents())

	left, err := f.p.repo.Upcoming(context.Background(), "S", 10)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "stuck", left[0].Description)
}

func TestNew_InvalidSchedule(t *testing.T) {
	host := plugintest.New(t)
	host.Options[Name] = `schedule: "every now and then"`
	_, err := New(host)
	assert.Error(t, err)
}

func TestJob_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	jobs := f.p.Jobs()
	require.Len(t, jobs, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- jobs[0].Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("job did not stop")
	}
}
