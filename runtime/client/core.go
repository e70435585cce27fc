package client

import (
	"context"
	"unicode/utf8"

	"github.com/supergnaw/nestbox/migrate/provision"
)

// Core class tables.
const (
	CorePrefix    = "nestbox_"
	ErrorsTable   = "nestbox_errors"
	SettingsTable = "nestbox_settings"
)

const (
	maxErrorMessage = 512
	maxErrorQuery   = 4096
)

// CoreModule returns the tables every client owns.
func CoreModule() provision.Module {
	return provision.Module{
		Name:   "nestbox",
		Prefix: CorePrefix,
		Tables: []provision.TableDef{
			{
				Name: ErrorsTable,
				Columns: []provision.Column{
					{Name: "error_id", Type: provision.AutoID},
					{Name: "occurred", Type: provision.Timestamp, NotNull: true, Default: "CURRENT_TIMESTAMP"},
					{Name: "message", Type: provision.String, Size: maxErrorMessage, NotNull: true},
					{Name: "query", Type: provision.String, Size: maxErrorQuery, NotNull: true},
				},
			},
			{
				Name: SettingsTable,
				Columns: []provision.Column{
					{Name: "setting_name", Type: provision.String, Size: 64, PrimaryKey: true},
					{Name: "package_name", Type: provision.String, Size: 64, NotNull: true},
					{Name: "setting_type", Type: provision.String, Size: 16, NotNull: true},
					{Name: "setting_value", Type: provision.Text},
				},
			},
		},
	}
}

// LogError records an error message and the statement that caused it.
func (c *Client) LogError(ctx context.Context, message, query string) error {
	_, err := c.Insert(ctx, ErrorsTable, Row{
		"message": truncate(message, maxErrorMessage),
		"query":   truncate(query, maxErrorQuery),
	}, NoUpsert())
	return err
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
