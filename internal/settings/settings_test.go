package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dayuer/cacophony-go/internal/store"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	db, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := New(context.Background(), db, append(opts, WithLogger(zaptest.NewLogger(t)))...)
	require.NoError(t, err)
	return s
}

func TestStore_GetDefault(t *testing.T) {
	s := newTestStore(t)
	v, err := s.Get(context.Background(), "S", "missing", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)
}

func TestStore_SetAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, "S", "welcome_message_file", "/tmp/a.txt"))
	require.NoError(t, s.Set(ctx, "S", "welcome_message_file", "/tmp/b.txt"))

	v, err := s.Get(ctx, "S", "welcome_message_file", "")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/b.txt", v)

	v, err = s.Get(ctx, "other", "welcome_message_file", "none")
	require.NoError(t, err)
	assert.Equal(t, "none", v, "settings are per server")
}

func TestStore_Fallback(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, WithFallback(func(serverID, key string) (string, bool) {
		if serverID == "S" && key == "nickname" {
			return "from-yaml", true
		}
		return "", false
	}))

	v, err := s.Get(ctx, "S", "nickname", "def")
	require.NoError(t, err)
	assert.Equal(t, "from-yaml", v)

	require.NoError(t, s.Set(ctx, "S", "nickname", "stored"))
	v, err = s.Get(ctx, "S", "nickname", "def")
	require.NoError(t, err)
	assert.Equal(t, "stored", v, "database wins over fallback")
}

func TestStore_OnChange(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var got []Change
	s.OnChange(func(c Change) { got = append(got, c) })

	require.NoError(t, s.Set(ctx, "S", "muted", "true"))
	require.Len(t, got, 1)
	assert.Equal(t, Change{ServerID: "S", Key: "muted", Value: "true"}, got[0])
}

func TestStore_All(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Set(ctx, "S", "b", "2"))
	require.NoError(t, s.Set(ctx, "S", "a", "1"))
	require.NoError(t, s.Set(ctx, "T", "c", "3"))

	all, err := s.All(ctx, "S")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, all)
}
