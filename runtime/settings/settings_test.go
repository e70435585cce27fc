package settings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supergnaw/nestbox/database"
	"github.com/supergnaw/nestbox/errdefs"
	"github.com/supergnaw/nestbox/internal/debug"
	"github.com/supergnaw/nestbox/runtime/client"
)

func babblerDefinitions() []Definition {
	return []Definition{
		{Name: "page_size", Type: Int, Default: 10},
		{Name: "show_drafts", Type: Bool, Default: "false"},
		{Name: "title", Type: String, Default: "My Blog"},
		{Name: "ratio", Type: Float, Default: 0.5},
		{Name: "cache_for", Type: Duration, Default: "90s"},
	}
}

func TestNew(t *testing.T) {
	s, err := New("babbler", babblerDefinitions()...)
	require.NoError(t, err)

	assert.Equal(t, []string{"cache_for", "page_size", "ratio", "show_drafts", "title"}, s.Names())
	assert.Equal(t, 10, s.Int("page_size"))
	assert.False(t, s.Bool("show_drafts"))
	assert.Equal(t, "My Blog", s.String("title"))
	assert.Equal(t, 0.5, s.Float("ratio"))
	assert.Equal(t, 90*time.Second, s.Duration("cache_for"))

	tests := []struct {
		name string
		defs []Definition
		want error
	}{
		{"bad name", []Definition{{Name: "page size", Type: Int}}, errdefs.ErrInvalidSchemaSyntax},
		{"duplicate", []Definition{{Name: "a", Type: Int}, {Name: "a", Type: Int}}, nil},
		{"bad default", []Definition{{Name: "a", Type: Int, Default: "ten"}}, nil},
		{"unknown type", []Definition{{Name: "a", Type: "complex"}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New("babbler", tt.defs...)
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestSetAndReset(t *testing.T) {
	s, err := New("babbler", babblerDefinitions()...)
	require.NoError(t, err)

	require.NoError(t, s.Set("page_size", "25"))
	assert.Equal(t, 25, s.Int("page_size"))

	v, ok := s.Get("page_size")
	require.True(t, ok)
	assert.Equal(t, 25, v)

	assert.Error(t, s.Set("page_size", "many"))
	assert.ErrorIs(t, s.Set("nope", 1), ErrUnknownSetting)

	s.Reset()
	assert.Equal(t, 10, s.Int("page_size"))

	_, ok = s.Get("nope")
	assert.False(t, ok)
}

func TestSaveAndLoad(t *testing.T) {
	debug.Discard()
	ctx := context.Background()

	c, err := client.Open(ctx, database.Config{Provider: "sqlite"})
	require.NoError(t, err)
	defer c.Close()

	saved, err := New("babbler", babblerDefinitions()...)
	require.NoError(t, err)
	require.NoError(t, saved.Set("page_size", 50))
	require.NoError(t, saved.Set("show_drafts", true))
	require.NoError(t, saved.Set("cache_for", 2*time.Minute))
	require.NoError(t, saved.Save(ctx, c))

	// saving twice updates in place
	require.NoError(t, saved.Save(ctx, c))
	rows, err := c.Select(ctx, client.SettingsTable, nil)
	require.NoError(t, err)
	assert.Len(t, rows, 5)

	// a value another version of the package stored with a different type
	_, err = c.Update(ctx, client.SettingsTable, client.Row{"setting_value": "lots"}, map[string]interface{}{"setting_name": "ratio"})
	require.NoError(t, err)
	// and a setting this version no longer declares
	_, err = c.Insert(ctx, client.SettingsTable, client.Row{
		"setting_name": "retired", "package_name": "babbler", "setting_type": "int", "setting_value": "1",
	})
	require.NoError(t, err)

	loaded, err := New("babbler", babblerDefinitions()...)
	require.NoError(t, err)
	require.NoError(t, loaded.Load(ctx, c))

	assert.Equal(t, 50, loaded.Int("page_size"))
	assert.True(t, loaded.Bool("show_drafts"))
	assert.Equal(t, 2*time.Minute, loaded.Duration("cache_for"))
	assert.Equal(t, 0.5, loaded.Float("ratio"), "unconvertible values keep the default")
	_, ok := loaded.Get("retired")
	assert.False(t, ok)

	other, err := New("gallery", Definition{Name: "columns", Type: Int, Default: 3})
	require.NoError(t, err)
	require.NoError(t, other.Load(ctx, c))
	assert.Equal(t, 3, other.Int("columns"))
}
