// Package babbler is a small blogging module: categorised entries with an
// edit history, exact and fuzzy search.
package babbler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/supergnaw/nestbox/internal/debug"
	"github.com/supergnaw/nestbox/migrate/provision"
	"github.com/supergnaw/nestbox/runtime/client"
)

var (
	// ErrMissingField is returned when a required entry field is blank.
	ErrMissingField = errors.New("missing entry field")
	// ErrEntryNotFound is returned when no entry has the requested id.
	ErrEntryNotFound = errors.New("entry not found")
)

// Entry is one row of babbler_entries.
type Entry struct {
	ID          int64      `db:"entry_id"`
	Created     time.Time  `db:"created"`
	Edited      time.Time  `db:"edited"`
	Published   *time.Time `db:"published"`
	IsDraft     bool       `db:"is_draft"`
	IsHidden    bool       `db:"is_hidden"`
	CreatedBy   string     `db:"created_by"`
	EditedBy    string     `db:"edited_by"`
	Category    string     `db:"category"`
	SubCategory string     `db:"sub_category"`
	Title       string     `db:"title"`
	Content     string     `db:"content"`
}

// NewEntry holds the fields of an entry to add. A zero Created means now.
type NewEntry struct {
	Category    string
	SubCategory string
	Title       string
	Content     string
	Author      string
	Created     time.Time
	Published   *time.Time
	Draft       bool
	Hidden      bool
}

// Changes lists the fields EditEntry updates. Blank strings and nil pointers
// leave the stored value alone.
type Changes struct {
	Category    string
	SubCategory string
	Title       string
	Content     string
	Published   *time.Time
	Draft       *bool
	Hidden      *bool
}

// CategoryCount is the number of entries in a category.
type CategoryCount struct {
	Name  string `db:"name"`
	Count int64  `db:"count"`
}

// Babbler manages blog entries through a client.
type Babbler struct {
	db     *client.Client
	now    func() time.Time
	logger *slog.Logger
}

// New registers the babbler tables with the client. They are created the
// first time an operation finds them missing.
func New(db *client.Client) (*Babbler, error) {
	if err := db.Registry().Register(Module()); err != nil && !errors.Is(err, provision.ErrDuplicateModule) {
		return nil, err
	}
	return &Babbler{
		db:     db,
		now:    func() time.Time { return time.Now().UTC() },
		logger: debug.With("component", "babbler"),
	}, nil
}

// AddEntry inserts an entry and returns its id. The id is zero when the
// driver does not report insert ids.
func (b *Babbler) AddEntry(ctx context.Context, e NewEntry) (int64, error) {
	required := map[string]string{
		"category":     e.Category,
		"sub_category": e.SubCategory,
		"title":        e.Title,
		"content":      e.Content,
		"author":       e.Author,
	}
	for _, name := range []string{"category", "sub_category", "title", "content", "author"} {
		if strings.TrimSpace(required[name]) == "" {
			return 0, fmt.Errorf("%w: %s", ErrMissingField, name)
		}
	}

	created := e.Created
	if created.IsZero() {
		created = b.now()
	}
	author := strings.TrimSpace(e.Author)
	row := client.Row{
		"category":     strings.TrimSpace(e.Category),
		"sub_category": strings.TrimSpace(e.SubCategory),
		"title":        strings.TrimSpace(e.Title),
		"content":      strings.TrimSpace(e.Content),
		"created_by":   author,
		"edited_by":    author,
		"created":      created,
		"edited":       created,
		"published":    nil,
		"is_draft":     e.Draft,
		"is_hidden":    e.Hidden,
	}
	if e.Published != nil {
		row["published"] = e.Published.UTC()
	}

	affected, err := b.db.Insert(ctx, EntriesTable, row, client.NoUpsert())
	if err != nil {
		return 0, fmt.Errorf("failed to add entry: %w", err)
	}
	if affected != 1 {
		return 0, fmt.Errorf("failed to add entry: %d rows inserted", affected)
	}
	id := b.db.LastInsertID()
	b.logger.Debug("added entry", "id", id, "title", row["title"])
	return id, nil
}

// EditEntry applies changes to an entry. The previous version is archived to
// babbler_history.
func (b *Babbler) EditEntry(ctx context.Context, id int64, editor string, c Changes) error {
	if id <= 0 {
		return fmt.Errorf("%w: entry_id", ErrMissingField)
	}
	if strings.TrimSpace(editor) == "" {
		return fmt.Errorf("%w: editor", ErrMissingField)
	}

	set := client.Row{
		"edited_by": strings.TrimSpace(editor),
		"edited":    b.now(),
	}
	for column, value := range map[string]string{
		"category":     c.Category,
		"sub_category": c.SubCategory,
		"title":        c.Title,
		"content":      c.Content,
	} {
		if v := strings.TrimSpace(value); v != "" {
			set[column] = v
		}
	}
	if c.Published != nil {
		set["published"] = c.Published.UTC()
	}
	if c.Draft != nil {
		set["is_draft"] = *c.Draft
	}
	if c.Hidden != nil {
		set["is_hidden"] = *c.Hidden
	}

	affected, err := b.db.Update(ctx, EntriesTable, set, map[string]interface{}{"entry_id": id})
	if err != nil {
		return fmt.Errorf("failed to edit entry %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %d", ErrEntryNotFound, id)
	}
	return nil
}

// DeleteEntry removes an entry. Its last version is archived to
// babbler_history.
func (b *Babbler) DeleteEntry(ctx context.Context, id int64) error {
	affected, err := b.db.Delete(ctx, EntriesTable, map[string]interface{}{"entry_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete entry %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %d", ErrEntryNotFound, id)
	}
	return nil
}

// FetchEntry returns the entry with the given id.
func (b *Babbler) FetchEntry(ctx context.Context, id int64) (*Entry, error) {
	row, err := b.db.SelectOne(ctx, EntriesTable, map[string]interface{}{"entry_id": id})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("%w: %d", ErrEntryNotFound, id)
	}
	return client.DecodeOne[Entry](row)
}

// FetchEntries lists every entry. orderBy falls back to created when it is
// not a column; sort is ASC or DESC. A limit of zero means no limit.
func (b *Babbler) FetchEntries(ctx context.Context, orderBy, sort string, limit, offset int) ([]Entry, error) {
	opts := []client.QueryOption{b.orderBy(ctx, orderBy, sort)}
	if limit > 0 {
		opts = append(opts, client.Limit(limit, offset))
	}
	rows, err := b.db.Select(ctx, EntriesTable, nil, opts...)
	if err != nil {
		return nil, err
	}
	return client.Decode[Entry](rows)
}

// FetchHistory returns the archived versions of an entry, oldest first.
func (b *Babbler) FetchHistory(ctx context.Context, id int64) ([]Entry, error) {
	rows, err := b.db.Select(ctx, HistoryTable, map[string]interface{}{"entry_id": id},
		client.OrderBy("history_id", "ASC"))
	if err != nil {
		return nil, err
	}
	return client.Decode[Entry](rows)
}

// FetchCategories counts entries per category.
func (b *Babbler) FetchCategories(ctx context.Context) ([]CategoryCount, error) {
	return b.countBy(ctx, "category", nil)
}

// FetchSubCategories counts entries per sub-category, optionally within one
// category.
func (b *Babbler) FetchSubCategories(ctx context.Context, category string) ([]CategoryCount, error) {
	if category == "" {
		return b.countBy(ctx, "sub_category", nil)
	}
	return b.countBy(ctx, "sub_category", &category)
}

func (b *Babbler) countBy(ctx context.Context, column string, category *string) ([]CategoryCount, error) {
	q := b.db.QuoteIdentifier
	sql := fmt.Sprintf("SELECT %s AS %s, COUNT(*) AS %s FROM %s", q(column), q("name"), q("count"), q(EntriesTable))
	params := client.Params{}
	if category != nil {
		sql += fmt.Sprintf(" WHERE %s = :category", q("category"))
		params["category"] = *category
	}
	sql += fmt.Sprintf(" GROUP BY %s ORDER BY %s", q(column), q(column))

	rows, err := b.db.Query(ctx, sql, params)
	if err != nil {
		return nil, err
	}
	return client.Decode[CategoryCount](rows)
}

// FetchEntriesByCategory lists the published, visible entries of a category
// and, when given, sub-category.
func (b *Babbler) FetchEntriesByCategory(ctx context.Context, category, subCategory, orderBy, sort string) ([]Entry, error) {
	where := map[string]interface{}{
		"category":     category,
		"published !=": nil,
		"is_draft":     false,
		"is_hidden":    false,
	}
	if subCategory != "" {
		where["sub_category"] = subCategory
	}
	rows, err := b.db.Select(ctx, EntriesTable, where, b.orderBy(ctx, orderBy, sort))
	if err != nil {
		return nil, err
	}
	return client.Decode[Entry](rows)
}

// FetchEntryByCategoryAndTitle finds entries of a category whose title
// matches a LIKE pattern.
func (b *Babbler) FetchEntryByCategoryAndTitle(ctx context.Context, category, title, subCategory string) ([]Entry, error) {
	where := map[string]interface{}{
		"category":   category,
		"title LIKE": title,
	}
	if subCategory != "" {
		where["sub_category"] = subCategory
	}
	rows, err := b.db.Select(ctx, EntriesTable, where)
	if err != nil {
		return nil, err
	}
	return client.Decode[Entry](rows)
}

func (b *Babbler) orderBy(ctx context.Context, column, sort string) client.QueryOption {
	if column == "" || !b.db.ValidColumn(ctx, EntriesTable, column) {
		column = "created"
	}
	return client.OrderBy(column, sort)
}
