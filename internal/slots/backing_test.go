package slots

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotpaste/agent/internal/keys"
)

// runBackingContract exercises the read/write contract every Backing must meet.
func runBackingContract(t *testing.T, b Backing) {
	t.Helper()
	ctx := context.Background()

	loaded, err := b.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	now := time.Unix(1700000000, 0)
	require.NoError(t, b.Upsert(ctx, keys.SlotJ, "first", now))
	require.NoError(t, b.Upsert(ctx, keys.SlotJ, "second", now.Add(time.Minute)))
	require.NoError(t, b.Upsert(ctx, keys.SlotO, "multi\nline", now))

	loaded, err = b.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[keys.SlotId]string{
		keys.SlotJ: "second",
		keys.SlotO: "multi\nline",
	}, loaded)
}

func TestSQLiteBackingContract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "slotpaste.db")
	db, err := OpenSQLite(path)
	require.NoError(t, err)
	defer db.Close()

	runBackingContract(t, db)

	at, err := db.UpdatedAt(context.Background(), keys.SlotJ)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000060), at.Unix())

	at, err = db.UpdatedAt(context.Background(), keys.SlotK)
	require.NoError(t, err)
	assert.True(t, at.IsZero())
}

func TestSQLiteReopenKeepsSlots(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slotpaste.db")

	db, err := OpenSQLite(path)
	require.NoError(t, err)
	s := Open(context.Background(), db)
	s.Save(keys.SlotL, "survives restart")
	require.NoError(t, s.Close())

	db2, err := OpenSQLite(path)
	require.NoError(t, err)
	s2 := Open(context.Background(), db2)
	defer s2.Close()

	got, ok := s2.Get(keys.SlotL)
	require.True(t, ok)
	assert.Equal(t, "survives restart", got)
}

func TestRedisBackingContract(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	r := NewRedisFromClient(client, WithPrefix("test:slot:"))
	defer r.Close()

	runBackingContract(t, r)

	assert.Equal(t, "second", mr.HGet("test:slot:J", "content"))
	assert.Equal(t, "1700000060", mr.HGet("test:slot:J", "updated_at"))

	at, err := r.UpdatedAt(context.Background(), keys.SlotJ)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000060), at.Unix())

	at, err = r.UpdatedAt(context.Background(), keys.SlotK)
	require.NoError(t, err)
	assert.True(t, at.IsZero())
}

func TestRedisUnavailableFallsBack(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	r := NewRedis(addr, "", 0)
	var failed bool
	s := Open(context.Background(), r, WithErrorHook(func(op string, err error) {
		failed = op == "load"
	}))

	assert.True(t, failed)
	assert.False(t, s.Persistent())
}
