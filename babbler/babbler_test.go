package babbler

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supergnaw/nestbox/database"
	"github.com/supergnaw/nestbox/internal/debug"
	"github.com/supergnaw/nestbox/query/sqlgen"
	"github.com/supergnaw/nestbox/runtime/client"
)

func newTestBabbler(t *testing.T) (*Babbler, *client.Client) {
	t.Helper()
	debug.Discard()

	c, err := client.Open(context.Background(), database.Config{Provider: "sqlite"})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	b, err := New(c)
	require.NoError(t, err)

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return b, c
}

func published() *time.Time {
	p := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	return &p
}

func seed(t *testing.T, b *Babbler) {
	t.Helper()
	entries := []NewEntry{
		{Category: "news", SubCategory: "tech", Title: "Hello World", Content: "The quick brown fox jumps over the lazy dog", Author: "ada", Published: published()},
		{Category: "news", SubCategory: "tech", Title: "Gopher Tips", Content: "Channels orchestrate, mutexes serialize", Author: "ada", Published: published()},
		{Category: "news", SubCategory: "life", Title: "Help Wanted", Content: "Looking for a quick fox", Author: "bob", Published: published(), Draft: true},
		{Category: "blog", SubCategory: "misc", Title: "Hidden Thoughts", Content: "secret", Author: "bob", Published: published(), Hidden: true},
		{Category: "blog", SubCategory: "misc", Title: "Unpublished", Content: "later", Author: "bob"},
	}
	for i, e := range entries {
		id, err := b.AddEntry(context.Background(), e)
		require.NoError(t, err)
		require.Equal(t, int64(i+1), id)
	}
}

func TestAddAndFetchEntry(t *testing.T) {
	ctx := context.Background()
	b, c := newTestBabbler(t)

	id, err := b.AddEntry(ctx, NewEntry{
		Category: " news ", SubCategory: "tech", Title: "Hello World",
		Content: "First post", Author: "ada", Published: published(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	e, err := b.FetchEntry(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "news", e.Category)
	assert.Equal(t, "Hello World", e.Title)
	assert.Equal(t, "ada", e.CreatedBy)
	assert.Equal(t, "ada", e.EditedBy)
	assert.False(t, e.IsDraft)
	require.NotNil(t, e.Published)
	assert.True(t, published().Equal(*e.Published))
	assert.True(t, e.Created.Equal(e.Edited))

	_, err = b.FetchEntry(ctx, 42)
	assert.ErrorIs(t, err, ErrEntryNotFound)

	assert.True(t, c.ValidTrigger(ctx, EntriesTable, "babbler_history_trigger"))
	assert.True(t, c.ValidTrigger(ctx, EntriesTable, "babbler_delete_trigger"))
}

func TestAddEntryRequiresFields(t *testing.T) {
	b, _ := newTestBabbler(t)
	valid := NewEntry{Category: "c", SubCategory: "s", Title: "t", Content: "body", Author: "a"}

	tests := []struct {
		field  string
		mutate func(*NewEntry)
	}{
		{"category", func(e *NewEntry) { e.Category = "" }},
		{"sub_category", func(e *NewEntry) { e.SubCategory = "  " }},
		{"title", func(e *NewEntry) { e.Title = "" }},
		{"content", func(e *NewEntry) { e.Content = "\n" }},
		{"author", func(e *NewEntry) { e.Author = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			e := valid
			tt.mutate(&e)
			_, err := b.AddEntry(context.Background(), e)
			assert.ErrorIs(t, err, ErrMissingField)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestEditAndDeleteKeepHistory(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBabbler(t)
	seed(t, b)

	draft := false
	require.NoError(t, b.EditEntry(ctx, 1, "bob", Changes{Title: "Hello Gophers", Draft: &draft}))

	e, err := b.FetchEntry(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Hello Gophers", e.Title)
	assert.Equal(t, "bob", e.EditedBy)
	assert.Equal(t, "ada", e.CreatedBy)
	assert.Equal(t, "The quick brown fox jumps over the lazy dog", e.Content, "blank changes keep the stored value")
	assert.True(t, e.Edited.After(e.Created))

	history, err := b.FetchHistory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Hello World", history[0].Title)
	assert.Equal(t, "ada", history[0].EditedBy)

	assert.ErrorIs(t, b.EditEntry(ctx, 99, "bob", Changes{Title: "x"}), ErrEntryNotFound)
	assert.ErrorIs(t, b.EditEntry(ctx, 1, " ", Changes{Title: "x"}), ErrMissingField)
	assert.ErrorIs(t, b.EditEntry(ctx, 0, "bob", Changes{}), ErrMissingField)

	require.NoError(t, b.DeleteEntry(ctx, 1))
	_, err = b.FetchEntry(ctx, 1)
	assert.ErrorIs(t, err, ErrEntryNotFound)
	assert.ErrorIs(t, b.DeleteEntry(ctx, 1), ErrEntryNotFound)

	history, err = b.FetchHistory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Hello Gophers", history[1].Title)

	other, err := b.FetchHistory(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestFetchListings(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBabbler(t)
	seed(t, b)

	t.Run("entries", func(t *testing.T) {
		all, err := b.FetchEntries(ctx, "created", "ASC", 0, 0)
		require.NoError(t, err)
		assert.Len(t, all, 5)

		latest, err := b.FetchEntries(ctx, "no_such_column", "DESC", 2, 0)
		require.NoError(t, err)
		require.Len(t, latest, 2)
		assert.Equal(t, "Unpublished", latest[0].Title)
		assert.Equal(t, "Hidden Thoughts", latest[1].Title)

		page, err := b.FetchEntries(ctx, "title", "ASC", 2, 1)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "Hello World", page[0].Title)
	})

	t.Run("categories", func(t *testing.T) {
		cats, err := b.FetchCategories(ctx)
		require.NoError(t, err)
		assert.Equal(t, []CategoryCount{{Name: "blog", Count: 2}, {Name: "news", Count: 3}}, cats)

		subs, err := b.FetchSubCategories(ctx, "news")
		require.NoError(t, err)
		assert.Equal(t, []CategoryCount{{Name: "life", Count: 1}, {Name: "tech", Count: 2}}, subs)

		subs, err = b.FetchSubCategories(ctx, "")
		require.NoError(t, err)
		assert.Len(t, subs, 3)
	})

	t.Run("visible entries by category", func(t *testing.T) {
		news, err := b.FetchEntriesByCategory(ctx, "news", "", "created", "ASC")
		require.NoError(t, err)
		require.Len(t, news, 2, "drafts are left out")
		assert.Equal(t, "Hello World", news[0].Title)
		assert.Equal(t, "Gopher Tips", news[1].Title)

		life, err := b.FetchEntriesByCategory(ctx, "news", "life", "", "")
		require.NoError(t, err)
		assert.Empty(t, life)

		blog, err := b.FetchEntriesByCategory(ctx, "blog", "", "created", "ASC")
		require.NoError(t, err)
		assert.Empty(t, blog, "hidden and unpublished entries are left out")
	})

	t.Run("by title pattern", func(t *testing.T) {
		found, err := b.FetchEntryByCategoryAndTitle(ctx, "news", "He%", "")
		require.NoError(t, err)
		assert.Len(t, found, 2)

		found, err = b.FetchEntryByCategoryAndTitle(ctx, "news", "He%", "tech")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "Hello World", found[0].Title)
	})
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBabbler(t)
	seed(t, b)

	t.Run("title", func(t *testing.T) {
		found, err := b.SearchTitle(ctx, "Gopher Tips")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, int64(2), found[0].ID)

		found, err = b.SearchURLTitle(ctx, "hello-world")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "Hello World", found[0].Title)
	})

	t.Run("exact", func(t *testing.T) {
		matches, err := b.SearchEntriesExact(ctx, "quick fox", "*")
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, "Help Wanted", matches[0].Title, "newest first")
		assert.Equal(t, "Looking for a quick fox", matches[0].Excerpt)

		matches, err = b.SearchEntriesExact(ctx, "quick fox", "blog")
		require.NoError(t, err)
		assert.Empty(t, matches)

		matches, err = b.SearchEntriesExact(ctx, "   ", "")
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("fuzzy", func(t *testing.T) {
		matches, err := b.SearchEntriesFuzzy(ctx, "helo wrld", 3)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "Hello World", matches[0].Title)
		assert.Equal(t, 2, matches[0].Distance)

		matches, err = b.SearchEntriesFuzzy(ctx, "GOPHER", 0)
		require.NoError(t, err)
		require.Len(t, matches, 1, "a subsequence match qualifies regardless of distance")
		assert.Equal(t, "Gopher Tips", matches[0].Title)
	})

	t.Run("titles", func(t *testing.T) {
		titles, err := b.SearchTitles(ctx, "gtips")
		require.NoError(t, err)
		assert.Equal(t, []string{"Gopher Tips"}, titles)
	})
}

func TestExcerpt(t *testing.T) {
	content := strings.Repeat("a", 150) + " needle here " + strings.Repeat("b", 150)
	out := excerpt(content, []string{"needle"})
	assert.True(t, strings.HasPrefix(out, "..."))
	assert.True(t, strings.HasSuffix(out, "..."))
	assert.Contains(t, out, "needle here")
	assert.Len(t, out, 212)

	assert.Equal(t, "The quick brown fox", excerpt("The quick brown fox", []string{"QUICK", "fox"}))
	assert.Equal(t, "", excerpt("nothing to see", []string{"needle"}))
	assert.Equal(t, "costs $5 (tax)", excerpt("costs $5 (tax)", []string{"$5", "(tax)"}))
}

func TestHistoryTriggers(t *testing.T) {
	for _, provider := range []string{sqlgen.MySQL, sqlgen.Postgres, sqlgen.SQLite} {
		t.Run(provider, func(t *testing.T) {
			stmts := historyTriggers(provider)
			require.NotEmpty(t, stmts)
			joined := strings.Join(stmts, "\n")
			assert.Contains(t, joined, "babbler_history_trigger")
			assert.Contains(t, joined, "babbler_delete_trigger")
			assert.Contains(t, joined, "BEFORE DELETE")
			assert.NotContains(t, joined, ":", "trigger bodies carry no placeholders")
		})
	}
}
