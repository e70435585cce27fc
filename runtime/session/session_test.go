package session

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supergnaw/nestbox/database"
	"github.com/supergnaw/nestbox/internal/debug"
	"github.com/supergnaw/nestbox/runtime/client"
)

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	s, err := Start(ctx, store, "")
	require.NoError(t, err)
	_, err = uuid.Parse(s.ID())
	require.NoError(t, err, "new sessions get a uuid")

	require.NoError(t, s.Save(ctx))
	assert.Zero(t, store.Len(), "nothing is written until a value changes")

	s.Set("user", "ada")
	s.Load(Values{"theme": "dark", "visits": 1})
	require.NoError(t, s.Save(ctx))
	assert.Equal(t, 1, store.Len())

	resumed, err := Start(ctx, store, s.ID())
	require.NoError(t, err)
	assert.Equal(t, Values{"user": "ada", "theme": "dark", "visits": 1}, resumed.Values())

	resumed.Delete("theme")
	resumed.Delete("missing")
	v, ok := resumed.Get("user")
	require.True(t, ok)
	assert.Equal(t, "ada", v)
	_, ok = resumed.Get("theme")
	assert.False(t, ok)

	values := resumed.Values()
	values["user"] = "mutated"
	v, _ = resumed.Get("user")
	assert.Equal(t, "ada", v, "Values returns a copy")

	resumed.Clear()
	assert.Empty(t, resumed.Values())

	require.NoError(t, resumed.Destroy(ctx))
	assert.Zero(t, store.Len())
}

func TestMemoryStoreRejectsEmptyID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Load(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.ErrorIs(t, store.Save(ctx, "", Values{}), ErrInvalidID)

	values, err := store.Load(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestTableStore(t *testing.T) {
	debug.Discard()
	ctx := context.Background()

	c, err := client.Open(ctx, database.Config{Provider: "sqlite"}, client.WithModules(Module()))
	require.NoError(t, err)
	defer c.Close()

	store := NewTableStore(c)

	values, err := store.Load(ctx, "abc")
	require.NoError(t, err, "the table is created on first use")
	assert.Empty(t, values)

	s, err := Start(ctx, store, "abc")
	require.NoError(t, err)
	s.Set("cart", []string{"egg", "milk"})
	s.Set("count", 3)
	require.NoError(t, s.Save(ctx))

	s.Set("count", 4)
	require.NoError(t, s.Save(ctx))

	rows, err := c.Select(ctx, Table, nil)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	loaded, err := store.Load(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, json.Number("4"), loaded["count"])
	assert.Equal(t, []interface{}{"egg", "milk"}, loaded["cart"])

	require.NoError(t, store.Destroy(ctx, "abc"))
	loaded, err = store.Load(ctx, "abc")
	require.NoError(t, err)
	assert.Empty(t, loaded)

	assert.ErrorIs(t, store.Destroy(ctx, ""), ErrInvalidID)
}
