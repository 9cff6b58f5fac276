package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dayuer/cacophony-go/internal/bus"
)

func tracer(calls *[]string, name string, cont bool) Hook {
	return func(_ context.Context, _ *Event) (bool, error) {
		*calls = append(*calls, name)
		return cont, nil
	}
}

func TestRegistry_RunInOrder(t *testing.T) {
	r := NewRegistry(nil, zaptest.NewLogger(t))
	var calls []string
	r.Register(KindMessage, "a", tracer(&calls, "h1", true))
	r.Register(KindMessage, "b", tracer(&calls, "h2", true))

	cont, err := r.Run(context.Background(), &Event{Kind: KindMessage})
	require.NoError(t, err)
	assert.True(t, cont)
	assert.Equal(t, []string{"h1", "h2"}, calls)
}

func TestRegistry_StopsOnFalse(t *testing.T) {
	r := NewRegistry(nil, zaptest.NewLogger(t))
	var calls []string
	r.Register(KindAnswer, "urlfilter", tracer(&calls, "h1", false))
	r.Register(KindAnswer, "other", tracer(&calls, "h2", true))

	cont, err := r.Run(context.Background(), &Event{Kind: KindAnswer, Answer: "see https://x"})
	require.NoError(t, err)
	assert.False(t, cont)
	assert.Equal(t, []string{"h1"}, calls)
}

func TestRegistry_EmptyChainContinues(t *testing.T) {
	r := NewRegistry(nil, nil)
	cont, err := r.Run(context.Background(), &Event{Kind: KindServerJoin})
	require.NoError(t, err)
	assert.True(t, cont)
}

func TestRegistry_DuplicatesRunTwice(t *testing.T) {
	r := NewRegistry(nil, zaptest.NewLogger(t))
	var calls []string
	h := tracer(&calls, "h", true)
	r.Register(KindMessage, "a", h)
	r.Register(KindMessage, "a", h)

	_, err := r.Run(context.Background(), &Event{Kind: KindMessage})
	require.NoError(t, err)
	assert.Equal(t, []string{"h", "h"}, calls)
	assert.Equal(t, 2, r.Count(KindMessage))
}

func TestRegistry_ErrorPropagates(t *testing.T) {
	r := NewRegistry(nil, zaptest.NewLogger(t))
	var calls []string
	boom := errors.New("boom")
	r.Register(KindMemberJoin, "welcome", func(context.Context, *Event) (bool, error) {
		return true, boom
	})
	r.Register(KindMemberJoin, "after", tracer(&calls, "after", true))

	cont, err := r.Run(context.Background(), &Event{Kind: KindMemberJoin})
	assert.False(t, cont)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "member_join hook welcome")
	assert.Empty(t, calls)
}

func TestRegistry_KindsAreIndependent(t *testing.T) {
	r := NewRegistry(nil, zaptest.NewLogger(t))
	var calls []string
	r.Register(KindMessage, "a", tracer(&calls, "msg", false))

	cont, err := r.Run(context.Background(), &Event{Kind: KindAnswer})
	require.NoError(t, err)
	assert.True(t, cont)
	assert.Empty(t, calls)
}

func TestRegistry_AppendKeepsOrder(t *testing.T) {
	r := NewRegistry(nil, zaptest.NewLogger(t))
	var calls []string
	r.Register(KindMessage, "first", tracer(&calls, "first", true))
	r.Register(KindMessage, "second", tracer(&calls, "second", true))
	r.Register(KindMessage, "third", tracer(&calls, "third", true))

	assert.Equal(t, []string{"first", "second", "third"}, r.Owners(KindMessage))
}

func TestEvent_ServerID(t *testing.T) {
	assert.Equal(t, "s1", (&Event{Message: &bus.InboundMessage{ServerID: "s1"}}).ServerID())
	assert.Equal(t, "s2", (&Event{Member: &bus.MemberJoin{ServerID: "s2"}}).ServerID())
	assert.Equal(t, "s3", (&Event{Server: &bus.ServerJoin{ServerID: "s3"}}).ServerID())
	assert.Equal(t, "", (&Event{}).ServerID())
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "message", KindMessage.String())
	assert.Equal(t, "server_join", KindServerJoin.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
	assert.Len(t, Kinds(), 4)
}

// serverHooks maps server -> owner -> channels. A server missing from the
// map does not restrict its hooks.
type serverHooks map[string]map[string][]string

func (s serverHooks) HookChannels(serverID, owner string) ([]string, bool) {
	owners, ok := s[serverID]
	if !ok {
		return nil, false
	}
	return owners[owner], true
}

func TestRegistry_RunHonoursRestrictions(t *testing.T) {
	r := NewRegistry(serverHooks{
		"S": {"cheese": {"general"}, "urlfilter": {"*"}},
	}, zaptest.NewLogger(t))
	var calls []string
	r.Register(KindMessage, "cheese", tracer(&calls, "cheese", true))
	r.Register(KindMessage, "urlfilter", tracer(&calls, "urlfilter", true))
	r.Register(KindMessage, "welcome", tracer(&calls, "welcome", true))

	run := func(server, channel string) []string {
		calls = nil
		msg := &bus.InboundMessage{ServerID: server, ChannelName: channel}
		_, err := r.Run(context.Background(), &Event{Kind: KindMessage, Message: msg})
		require.NoError(t, err)
		return calls
	}

	assert.Equal(t, []string{"cheese", "urlfilter"}, run("S", "general"))
	assert.Equal(t, []string{"urlfilter"}, run("S", "random"))
	assert.Equal(t, []string{"cheese", "urlfilter", "welcome"}, run("other", "random"))
}

func TestRegistry_ServerWideEventsOnlyNeedEnabledOwner(t *testing.T) {
	r := NewRegistry(serverHooks{"S": {"welcome": {"general"}}}, zaptest.NewLogger(t))
	var calls []string
	r.Register(KindMemberJoin, "welcome", tracer(&calls, "welcome", true))
	r.Register(KindMemberJoin, "cheese", tracer(&calls, "cheese", true))

	_, err := r.Run(context.Background(), &Event{Kind: KindMemberJoin, Member: &bus.MemberJoin{ServerID: "S"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"welcome"}, calls)
}
