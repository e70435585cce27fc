package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cast"

	"github.com/supergnaw/nestbox/migrate/provision"
	"github.com/supergnaw/nestbox/runtime/client"
)

// Table is the class table sessions are stored in.
const Table = "session_data"

// Module returns the class table definition for TableStore. Register it with
// client.WithModules so the table is created on first use.
func Module() provision.Module {
	return provision.Module{
		Name:   "session",
		Prefix: "session_",
		Tables: []provision.TableDef{{
			Name: Table,
			Columns: []provision.Column{
				{Name: "session_id", Type: provision.String, Size: 64, PrimaryKey: true},
				{Name: "session_values", Type: provision.Text},
				{Name: "updated", Type: provision.Timestamp, NotNull: true, Default: "CURRENT_TIMESTAMP"},
			},
		}},
	}
}

// DB is the part of the client TableStore needs.
type DB interface {
	SelectOne(ctx context.Context, table string, where map[string]interface{}, opts ...client.QueryOption) (client.Row, error)
	Insert(ctx context.Context, table string, row client.Row, opts ...client.QueryOption) (int64, error)
	Delete(ctx context.Context, table string, where map[string]interface{}, opts ...client.QueryOption) (int64, error)
}

// TableStore keeps sessions as JSON documents in session_data.
type TableStore struct {
	db DB
}

// NewTableStore creates a store backed by db.
func NewTableStore(db DB) *TableStore {
	return &TableStore{db: db}
}

func (t *TableStore) Load(ctx context.Context, id string) (Values, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	row, err := t.db.SelectOne(ctx, Table, map[string]interface{}{"session_id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	values := Values{}
	if row == nil {
		return values, nil
	}
	raw := cast.ToString(row["session_values"])
	if raw == "" {
		return values, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	if err := dec.Decode(&values); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return values, nil
}

func (t *TableStore) Save(ctx context.Context, id string, values Values) error {
	if id == "" {
		return ErrInvalidID
	}
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", id, err)
	}
	_, err = t.db.Insert(ctx, Table, client.Row{
		"session_id":     id,
		"session_values": string(data),
		"updated":        time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (t *TableStore) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}
	if _, err := t.db.Delete(ctx, Table, map[string]interface{}{"session_id": id}); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}
