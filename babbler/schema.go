package babbler

import (
	"fmt"
	"strings"

	"github.com/supergnaw/nestbox/migrate/provision"
	"github.com/supergnaw/nestbox/query/sqlgen"
)

// Class tables.
const (
	Prefix       = "babbler_"
	EntriesTable = "babbler_entries"
	HistoryTable = "babbler_history"
)

const (
	authorSize      = 32
	categorySize    = 64
	subCategorySize = 64
	titleSize       = 255
)

// archivedColumns are copied from an entry into its history row.
var archivedColumns = []string{
	"entry_id", "created", "edited", "published", "is_draft", "is_hidden",
	"created_by", "edited_by", "category", "sub_category", "title", "content",
}

func entryColumns() []provision.Column {
	return []provision.Column{
		{Name: "created", Type: provision.Timestamp, NotNull: true},
		{Name: "edited", Type: provision.Timestamp, NotNull: true, Default: "CURRENT_TIMESTAMP"},
		{Name: "published", Type: provision.Timestamp},
		{Name: "is_draft", Type: provision.Bool, NotNull: true, Default: "FALSE"},
		{Name: "is_hidden", Type: provision.Bool, NotNull: true, Default: "FALSE"},
		{Name: "created_by", Type: provision.String, Size: authorSize, NotNull: true},
		{Name: "edited_by", Type: provision.String, Size: authorSize, NotNull: true},
		{Name: "category", Type: provision.String, Size: categorySize, NotNull: true},
		{Name: "sub_category", Type: provision.String, Size: subCategorySize, NotNull: true},
		{Name: "title", Type: provision.String, Size: titleSize, NotNull: true},
		{Name: "content", Type: provision.Text, NotNull: true},
	}
}

// Module returns the babbler class tables. The history table is declared
// first so the entry triggers can reference it.
func Module() provision.Module {
	history := append([]provision.Column{
		{Name: "history_id", Type: provision.AutoID},
		{Name: "entry_id", Type: provision.Int, NotNull: true},
	}, entryColumns()...)
	entries := append([]provision.Column{
		{Name: "entry_id", Type: provision.AutoID},
	}, entryColumns()...)

	return provision.Module{
		Name:   "babbler",
		Prefix: Prefix,
		Tables: []provision.TableDef{
			{Name: HistoryTable, Columns: history},
			{Name: EntriesTable, Columns: entries, Extra: historyTriggers},
		},
	}
}

// historyTriggers archives the previous version of an entry on every edit and
// on delete.
func historyTriggers(provider string) []string {
	q := sqlgen.NewGenerator(provider).QuoteIdentifier

	cols := make([]string, len(archivedColumns))
	olds := make([]string, len(archivedColumns))
	for i, c := range archivedColumns {
		cols[i] = q(c)
		olds[i] = "OLD." + q(c)
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s);",
		q(HistoryTable), strings.Join(cols, ", "), strings.Join(olds, ", "))
	edited := q("edited")

	switch provider {
	case sqlgen.Postgres:
		return []string{
			fmt.Sprintf("CREATE OR REPLACE FUNCTION babbler_archive_entry() RETURNS TRIGGER AS $$\nBEGIN\n\t%s\n\tRETURN OLD;\nEND;\n$$ LANGUAGE plpgsql", insert),
			fmt.Sprintf("CREATE OR REPLACE TRIGGER babbler_history_trigger AFTER UPDATE ON %s\nFOR EACH ROW WHEN (OLD.%s IS DISTINCT FROM NEW.%s)\nEXECUTE FUNCTION babbler_archive_entry()",
				q(EntriesTable), edited, edited),
			fmt.Sprintf("CREATE OR REPLACE TRIGGER babbler_delete_trigger BEFORE DELETE ON %s\nFOR EACH ROW EXECUTE FUNCTION babbler_archive_entry()",
				q(EntriesTable)),
		}
	case sqlgen.SQLite:
		return []string{
			fmt.Sprintf("CREATE TRIGGER IF NOT EXISTS %s AFTER UPDATE ON %s\nFOR EACH ROW WHEN OLD.%s IS NOT NEW.%s\nBEGIN\n\t%s\nEND",
				q("babbler_history_trigger"), q(EntriesTable), edited, edited, insert),
			fmt.Sprintf("CREATE TRIGGER IF NOT EXISTS %s BEFORE DELETE ON %s\nFOR EACH ROW\nBEGIN\n\t%s\nEND",
				q("babbler_delete_trigger"), q(EntriesTable), insert),
		}
	default:
		return []string{
			fmt.Sprintf("CREATE TRIGGER IF NOT EXISTS %s AFTER UPDATE ON %s\nFOR EACH ROW\nBEGIN\n\tIF NOT (OLD.%s <=> NEW.%s) THEN\n\t\t%s\n\tEND IF;\nEND",
				q("babbler_history_trigger"), q(EntriesTable), edited, edited, insert),
			fmt.Sprintf("CREATE TRIGGER IF NOT EXISTS %s BEFORE DELETE ON %s\nFOR EACH ROW\nBEGIN\n\t%s\nEND",
				q("babbler_delete_trigger"), q(EntriesTable), insert),
		}
	}
}
